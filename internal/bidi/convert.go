package bidi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/bluetooth"
	"github.com/shehryarbajwa/bluetooth-emulator/pkg/models"
)

func parseUint16(field string, n json.Number) (uint16, error) {
	v, err := strconv.ParseUint(string(n), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an unsigned 16-bit integer", bluetooth.ErrInvalidArgument, field, n)
	}
	return uint16(v), nil
}

func decodeBase64(field, s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid base64: %v", bluetooth.ErrInvalidArgument, field, err)
	}
	return b, nil
}

// PeripheralFromParams validates the whole payload before anything is
// applied to the engine.
func PeripheralFromParams(p models.SimulatePreconnectedPeripheralParams) (bluetooth.Peripheral, error) {
	data := make([]bluetooth.ManufacturerData, 0, len(p.ManufacturerData))
	for i, md := range p.ManufacturerData {
		key, err := parseUint16(fmt.Sprintf("manufacturerData[%d].key", i), md.Key)
		if err != nil {
			return bluetooth.Peripheral{}, err
		}
		payload, err := decodeBase64(fmt.Sprintf("manufacturerData[%d].data", i), md.Data)
		if err != nil {
			return bluetooth.Peripheral{}, err
		}
		data = append(data, bluetooth.ManufacturerData{Key: key, Data: payload})
	}
	return bluetooth.NewPeripheral(p.Address, p.Name, data, p.KnownServiceUuids)
}

// PeripheralModel is the wire form of a peripheral; payloads go back to base64.
func PeripheralModel(p bluetooth.Peripheral) models.Peripheral {
	out := models.Peripheral{
		Address:           p.Address,
		Name:              p.Name,
		ManufacturerData:  make([]models.ManufacturerData, 0, len(p.ManufacturerData)),
		KnownServiceUuids: append([]string{}, p.KnownServiceUUIDs...),
	}
	for _, md := range p.ManufacturerData {
		out.ManufacturerData = append(out.ManufacturerData, models.ManufacturerData{
			Key:  json.Number(strconv.FormatUint(uint64(md.Key), 10)),
			Data: base64.StdEncoding.EncodeToString(md.Data),
		})
	}
	return out
}

// RequestOptionsFromModel converts page request options.
func RequestOptionsFromModel(m models.RequestDeviceOptions) (bluetooth.RequestOptions, error) {
	opts := bluetooth.RequestOptions{AcceptAllDevices: m.AcceptAllDevices}
	for i, f := range m.Filters {
		filter := bluetooth.Filter{
			Name:       f.Name,
			NamePrefix: f.NamePrefix,
			Services:   append([]string(nil), f.Services...),
		}
		for j, md := range f.ManufacturerData {
			field := fmt.Sprintf("filters[%d].manufacturerData[%d]", i, j)
			company, err := parseUint16(field+".companyIdentifier", md.CompanyIdentifier)
			if err != nil {
				return bluetooth.RequestOptions{}, err
			}
			mf := bluetooth.ManufacturerDataFilter{CompanyIdentifier: company}
			if md.DataPrefix != "" {
				if mf.DataPrefix, err = decodeBase64(field+".dataPrefix", md.DataPrefix); err != nil {
					return bluetooth.RequestOptions{}, err
				}
			}
			if md.Mask != "" {
				if mf.Mask, err = decodeBase64(field+".mask", md.Mask); err != nil {
					return bluetooth.RequestOptions{}, err
				}
			}
			filter.ManufacturerData = append(filter.ManufacturerData, mf)
		}
		opts.Filters = append(opts.Filters, filter)
	}
	if err := opts.Validate(); err != nil {
		return bluetooth.RequestOptions{}, err
	}
	return opts, nil
}

func deviceInfos(devices []bluetooth.PromptDevice) []models.RequestDeviceInfo {
	out := make([]models.RequestDeviceInfo, 0, len(devices))
	for _, d := range devices {
		out = append(out, models.RequestDeviceInfo{ID: d.ID, Name: d.Name})
	}
	return out
}

// EventMessageFrom converts an engine event to its wire message.
func EventMessageFrom(ev bluetooth.Event) (EventMessage, bool) {
	switch e := ev.(type) {
	case bluetooth.PromptUpdatedEvent:
		return EventMessage{
			Type:   TypeEvent,
			Method: e.Method(),
			Params: models.RequestDevicePromptUpdatedParams{
				Context: string(e.Context),
				Prompt:  e.Prompt,
				Devices: deviceInfos(e.Devices),
			},
		}, true
	default:
		return EventMessage{}, false
	}
}

// SnapshotModel converts a session snapshot for the inspection API.
func SnapshotModel(s bluetooth.Snapshot) models.BluetoothContext {
	out := models.BluetoothContext{
		Context:     string(s.Context),
		Adapter:     s.Adapter.String(),
		Peripherals: make([]models.Peripheral, 0, len(s.Peripherals)),
		Prompts:     make([]models.Prompt, 0, len(s.Prompts)),
	}
	for _, p := range s.Peripherals {
		out.Peripherals = append(out.Peripherals, PeripheralModel(p))
	}
	for _, p := range s.Prompts {
		out.Prompts = append(out.Prompts, models.Prompt{
			ID:      p.ID,
			State:   p.State.String(),
			Devices: deviceInfos(p.Devices),
		})
	}
	return out
}

// OutcomeModel converts how a device request settled.
func OutcomeModel(o bluetooth.DeviceRequestOutcome) models.RequestDeviceOutcome {
	out := models.RequestDeviceOutcome{Context: string(o.Context), Prompt: o.Prompt}
	if o.Device != nil {
		out.Device = &models.RequestDeviceInfo{ID: o.Device.Address, Name: o.Device.Name}
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return out
}
