package bluetooth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatches(t *testing.T) {
	p, err := NewPeripheral(testAddress, "SomeDevice",
		[]ManufacturerData{{Key: 17, Data: []byte{0x00, 0xff, 0x01}}},
		[]string{"12345678-1234-5678-9ABC-DEF123456789"})
	require.NoError(t, err)

	name := func(s string) *string { return &s }

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"exact name", Filter{Name: name("SomeDevice")}, true},
		{"other name", Filter{Name: name("Other")}, false},
		{"prefix", Filter{NamePrefix: "Some"}, true},
		{"prefix longer than name", Filter{NamePrefix: "SomeDevice2"}, false},
		{"service", Filter{Services: []string{testService}}, true},
		{"missing service", Filter{Services: []string{testService, "0000180f-0000-1000-8000-00805f9b34fb"}}, false},
		{"company only", Filter{ManufacturerData: []ManufacturerDataFilter{{CompanyIdentifier: 17}}}, true},
		{"company mismatch", Filter{ManufacturerData: []ManufacturerDataFilter{{CompanyIdentifier: 18}}}, false},
		{"data prefix", Filter{ManufacturerData: []ManufacturerDataFilter{{CompanyIdentifier: 17, DataPrefix: []byte{0x00, 0xff}}}}, true},
		{"masked prefix", Filter{ManufacturerData: []ManufacturerDataFilter{{
			CompanyIdentifier: 17, DataPrefix: []byte{0x10, 0xf0}, Mask: []byte{0x0f, 0xf0},
		}}}, true},
		{"prefix too long", Filter{ManufacturerData: []ManufacturerDataFilter{{CompanyIdentifier: 17, DataPrefix: []byte{0, 0xff, 1, 2}}}}, false},
		{"all predicates", Filter{Name: name("SomeDevice"), NamePrefix: "Some", Services: []string{testService}}, true},
		{"one predicate fails", Filter{Name: name("SomeDevice"), NamePrefix: "Other"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(p))
		})
	}
}

func TestRequestOptionsMatchesAnyFilter(t *testing.T) {
	p, err := NewPeripheral(testAddress, "SomeDevice", nil, nil)
	require.NoError(t, err)
	other, some := "Other", "SomeDevice"

	opts := RequestOptions{Filters: []Filter{{Name: &other}, {Name: &some}}}
	assert.True(t, opts.Matches(p))
	assert.True(t, RequestOptions{AcceptAllDevices: true}.Matches(p))
	assert.False(t, RequestOptions{Filters: []Filter{{Name: &other}}}.Matches(p))
}

func TestRequestOptionsValidate(t *testing.T) {
	some := "SomeDevice"
	tests := []struct {
		name    string
		opts    RequestOptions
		wantErr bool
	}{
		{"name filter", NameFilter("SomeDevice"), false},
		{"accept all", RequestOptions{AcceptAllDevices: true}, false},
		{"nothing", RequestOptions{}, true},
		{"both", RequestOptions{AcceptAllDevices: true, Filters: []Filter{{Name: &some}}}, true},
		{"empty filter", RequestOptions{Filters: []Filter{{}}}, true},
		{"bad service", RequestOptions{Filters: []Filter{{Services: []string{"heart_rate"}}}}, true},
		{"mask length", RequestOptions{Filters: []Filter{{ManufacturerData: []ManufacturerDataFilter{{
			CompanyIdentifier: 1, DataPrefix: []byte{1, 2}, Mask: []byte{1},
		}}}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCanonicalizesServices(t *testing.T) {
	opts := RequestOptions{Filters: []Filter{{Services: []string{"12345678-1234-5678-9ABC-DEF123456789"}}}}
	require.NoError(t, opts.Validate())
	assert.Equal(t, testService, opts.Filters[0].Services[0])
}

func TestValidateLeavesCallerSlicesAlone(t *testing.T) {
	upper := "12345678-1234-5678-9ABC-DEF123456789"
	services := []string{upper}
	filters := []Filter{{Services: services}}
	submitted := RequestOptions{Filters: filters}

	// A by-value copy, as the engine gets through DeviceRequest.
	copied := submitted
	require.NoError(t, copied.Validate())

	assert.Equal(t, testService, copied.Filters[0].Services[0])
	assert.Equal(t, upper, services[0])
	assert.Equal(t, upper, filters[0].Services[0])
	assert.Equal(t, upper, submitted.Filters[0].Services[0])
}

func TestNewPeripheral(t *testing.T) {
	p, err := NewPeripheral(testAddress, "SomeDevice", nil, []string{
		"12345678-1234-5678-9ABC-DEF123456789",
		testService,
		"0000180f-0000-1000-8000-00805f9b34fb",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{testService, "0000180f-0000-1000-8000-00805f9b34fb"}, p.KnownServiceUUIDs)

	_, err = NewPeripheral("", "x", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewPeripheral(testAddress, "x", nil, []string{"not-a-uuid"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseAdapterState(t *testing.T) {
	for _, s := range []string{"absent", "powered-off", "powered-on"} {
		st, err := ParseAdapterState(s)
		require.NoError(t, err)
		assert.Equal(t, s, st.String())
	}
	_, err := ParseAdapterState("on")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
