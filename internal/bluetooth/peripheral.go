package bluetooth

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// ManufacturerData is one advertised company-identifier/payload pair.
type ManufacturerData struct {
	Key  uint16
	Data []byte
}

// Peripheral is a simulated discoverable device. Address doubles as the
// device id reported in prompt events.
type Peripheral struct {
	Address           string
	Name              string
	ManufacturerData  []ManufacturerData
	KnownServiceUUIDs []string
}

// ParseServiceUUID returns the canonical lowercase hyphenated form of s.
func ParseServiceUUID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: service uuid %q: %v", ErrInvalidArgument, s, err)
	}
	return u.String(), nil
}

// NewPeripheral validates and normalizes the advertised identity of a device.
// Service UUIDs are canonicalized and de-duplicated keeping first-seen order.
func NewPeripheral(address, name string, data []ManufacturerData, services []string) (Peripheral, error) {
	if address == "" {
		return Peripheral{}, fmt.Errorf("%w: address is required", ErrInvalidArgument)
	}

	seen := make(map[string]struct{}, len(services))
	canonical := make([]string, 0, len(services))
	for _, s := range services {
		c, err := ParseServiceUUID(s)
		if err != nil {
			return Peripheral{}, err
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		canonical = append(canonical, c)
	}

	p := Peripheral{
		Address:           address,
		Name:              name,
		ManufacturerData:  cloneManufacturerData(data),
		KnownServiceUUIDs: canonical,
	}
	return p, nil
}

// Clone returns a deep copy.
func (p Peripheral) Clone() Peripheral {
	out := p
	out.ManufacturerData = cloneManufacturerData(p.ManufacturerData)
	out.KnownServiceUUIDs = append([]string(nil), p.KnownServiceUUIDs...)
	return out
}

// HasService reports whether the canonical UUID is advertised.
func (p Peripheral) HasService(u string) bool {
	for _, s := range p.KnownServiceUUIDs {
		if s == u {
			return true
		}
	}
	return false
}

// HasManufacturerData reports whether any entry for key satisfies the
// masked prefix. A nil prefix matches on key alone.
func (p Peripheral) HasManufacturerData(key uint16, prefix, mask []byte) bool {
	for _, md := range p.ManufacturerData {
		if md.Key != key {
			continue
		}
		if maskedHasPrefix(md.Data, prefix, mask) {
			return true
		}
	}
	return false
}

func maskedHasPrefix(data, prefix, mask []byte) bool {
	if len(data) < len(prefix) {
		return false
	}
	if mask == nil {
		return bytes.HasPrefix(data, prefix)
	}
	for i := range prefix {
		if data[i]&mask[i] != prefix[i]&mask[i] {
			return false
		}
	}
	return true
}

func cloneManufacturerData(in []ManufacturerData) []ManufacturerData {
	if in == nil {
		return nil
	}
	out := make([]ManufacturerData, len(in))
	for i, md := range in {
		out[i] = ManufacturerData{Key: md.Key, Data: bytes.Clone(md.Data)}
	}
	return out
}

// registry holds a session's peripherals keyed by address, iterated in
// first-insertion order.
type registry struct {
	byAddr map[string]Peripheral
	order  []string
}

func newRegistry() *registry {
	return &registry{byAddr: make(map[string]Peripheral)}
}

// put inserts or replaces. A replaced peripheral keeps its position.
func (r *registry) put(p Peripheral) {
	if _, exists := r.byAddr[p.Address]; !exists {
		r.order = append(r.order, p.Address)
	}
	r.byAddr[p.Address] = p
}

func (r *registry) get(addr string) (Peripheral, bool) {
	p, ok := r.byAddr[addr]
	return p, ok
}

func (r *registry) len() int { return len(r.order) }

// list returns deep copies in insertion order.
func (r *registry) list() []Peripheral {
	out := make([]Peripheral, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.byAddr[addr].Clone())
	}
	return out
}
