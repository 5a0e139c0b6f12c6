package bluetooth

import (
	"fmt"
	"strings"
)

// ManufacturerDataFilter matches advertised manufacturer data by company
// identifier and an optional masked payload prefix.
type ManufacturerDataFilter struct {
	CompanyIdentifier uint16
	DataPrefix        []byte
	Mask              []byte
}

// Filter is one device-request filter. Every predicate that is set must hold.
type Filter struct {
	Name             *string
	NamePrefix       string
	Services         []string
	ManufacturerData []ManufacturerDataFilter
}

// RequestOptions are the options a page passes to its device request.
// A peripheral is offered when AcceptAllDevices is set or any filter matches.
type RequestOptions struct {
	Filters          []Filter
	AcceptAllDevices bool
}

// NameFilter is shorthand for a request matching an exact device name.
func NameFilter(name string) RequestOptions {
	return RequestOptions{Filters: []Filter{{Name: &name}}}
}

// Validate checks the option combinations a page is allowed to request and
// canonicalizes service UUIDs. Filters are copied first so slices shared
// with the caller are never written.
func (o *RequestOptions) Validate() error {
	if o.AcceptAllDevices {
		if len(o.Filters) > 0 {
			return fmt.Errorf("%w: filters and acceptAllDevices are exclusive", ErrInvalidArgument)
		}
		return nil
	}
	if len(o.Filters) == 0 {
		return fmt.Errorf("%w: either filters or acceptAllDevices is required", ErrInvalidArgument)
	}
	o.Filters = append([]Filter(nil), o.Filters...)
	for i := range o.Filters {
		if err := o.Filters[i].validate(); err != nil {
			return fmt.Errorf("filter %d: %w", i, err)
		}
	}
	return nil
}

func (f *Filter) validate() error {
	if f.Name == nil && f.NamePrefix == "" && len(f.Services) == 0 && len(f.ManufacturerData) == 0 {
		return fmt.Errorf("%w: empty filter", ErrInvalidArgument)
	}
	services := make([]string, 0, len(f.Services))
	for _, s := range f.Services {
		c, err := ParseServiceUUID(s)
		if err != nil {
			return err
		}
		services = append(services, c)
	}
	if len(services) > 0 {
		f.Services = services
	}
	for _, md := range f.ManufacturerData {
		if md.Mask != nil && len(md.Mask) != len(md.DataPrefix) {
			return fmt.Errorf("%w: mask length %d does not match prefix length %d",
				ErrInvalidArgument, len(md.Mask), len(md.DataPrefix))
		}
	}
	return nil
}

// Matches reports whether p satisfies the options.
func (o RequestOptions) Matches(p Peripheral) bool {
	if o.AcceptAllDevices {
		return true
	}
	for _, f := range o.Filters {
		if f.Matches(p) {
			return true
		}
	}
	return false
}

// Matches reports whether p satisfies every predicate of the filter.
func (f Filter) Matches(p Peripheral) bool {
	if f.Name != nil && p.Name != *f.Name {
		return false
	}
	if f.NamePrefix != "" && !strings.HasPrefix(p.Name, f.NamePrefix) {
		return false
	}
	for _, s := range f.Services {
		if !p.HasService(s) {
			return false
		}
	}
	for _, md := range f.ManufacturerData {
		if !p.HasManufacturerData(md.CompanyIdentifier, md.DataPrefix, md.Mask) {
			return false
		}
	}
	return true
}
