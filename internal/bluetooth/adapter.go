package bluetooth

import "fmt"

// ContextID identifies a browsing context.
type ContextID string

// AdapterState is the simulated radio state of a context's adapter.
type AdapterState string

const (
	AdapterAbsent     AdapterState = "absent"
	AdapterPoweredOff AdapterState = "powered-off"
	AdapterPoweredOn  AdapterState = "powered-on"
)

// ParseAdapterState validates a wire value.
func ParseAdapterState(s string) (AdapterState, error) {
	switch st := AdapterState(s); st {
	case AdapterAbsent, AdapterPoweredOff, AdapterPoweredOn:
		return st, nil
	default:
		return "", fmt.Errorf("%w: adapter state %q", ErrInvalidArgument, s)
	}
}

func (s AdapterState) String() string { return string(s) }

// Present reports whether a radio exists at all.
func (s AdapterState) Present() bool { return s == AdapterPoweredOff || s == AdapterPoweredOn }

// Scanning reports whether peripherals are discoverable through the adapter.
func (s AdapterState) Scanning() bool { return s == AdapterPoweredOn }
