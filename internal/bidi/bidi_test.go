package bidi

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/bluetooth"
	"github.com/shehryarbajwa/bluetooth-emulator/pkg/models"
)

const fakeDeviceAddress = "09:09:09:09:09:09"

type sliceSink struct{ events []bluetooth.Event }

func (s *sliceSink) Publish(ev bluetooth.Event) { s.events = append(s.events, ev) }

func newTestDispatcher(t *testing.T) (*Dispatcher, *bluetooth.Engine, *sliceSink) {
	t.Helper()
	sink := &sliceSink{}
	engine := bluetooth.NewEngine(bluetooth.WithEventSink(sink))
	d := NewDispatcher(nil)
	RegisterBluetooth(d, engine)
	return d, engine, sink
}

var nextID uint64

func command(t *testing.T, method string, params any) Command {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	nextID++
	id := nextID
	return Command{ID: &id, Method: method, Params: raw}
}

func execute(t *testing.T, d *Dispatcher, method string, params any) any {
	t.Helper()
	return d.Respond(context.Background(), command(t, method, params))
}

func requireSuccess(t *testing.T, resp any) {
	t.Helper()
	_, ok := resp.(SuccessMessage)
	require.True(t, ok, "expected success, got %#v", resp)
}

func requireError(t *testing.T, resp any, code string) ErrorMessage {
	t.Helper()
	em, ok := resp.(ErrorMessage)
	require.True(t, ok, "expected error, got %#v", resp)
	assert.Equal(t, code, em.Error)
	return em
}

func peripheralParams(context string) map[string]any {
	return map[string]any{
		"context": context,
		"address": fakeDeviceAddress,
		"name":    "SomeDevice",
		"manufacturerData": []map[string]any{{
			"key":  17,
			"data": "AP8BAX8=",
		}},
		"knownServiceUuids": []string{"12345678-1234-5678-9abc-def123456789"},
	}
}

func setupDevice(t *testing.T, d *Dispatcher, context string) {
	t.Helper()
	requireSuccess(t, execute(t, d, MethodSimulateAdapter, map[string]any{"context": context, "state": "powered-on"}))
	requireSuccess(t, execute(t, d, MethodSimulatePreconnectedPeripheral, peripheralParams(context)))
}

func TestSimulateCreateAdapterTwice(t *testing.T) {
	states := []string{"absent", "powered-off", "powered-on"}
	for _, s1 := range states {
		for _, s2 := range states {
			t.Run(s1+"/"+s2, func(t *testing.T) {
				d, _, _ := newTestDispatcher(t)
				requireSuccess(t, execute(t, d, MethodSimulateAdapter, map[string]any{"context": "ctx", "state": s1}))
				requireSuccess(t, execute(t, d, MethodSimulateAdapter, map[string]any{"context": "ctx", "state": s2}))
			})
		}
	}
}

func TestSimulateAdapterInvalidState(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	requireError(t, execute(t, d, MethodSimulateAdapter, map[string]any{"context": "ctx", "state": "on"}), CodeInvalidArgument)
	requireError(t, execute(t, d, MethodSimulateAdapter, map[string]any{"state": "absent"}), CodeInvalidArgument)
}

func TestDisableSimulationTwice(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	requireSuccess(t, execute(t, d, MethodDisableSimulation, map[string]any{"context": "ctx"}))
	requireSuccess(t, execute(t, d, MethodDisableSimulation, map[string]any{"context": "ctx"}))
}

func TestPeripheralAfterDisable(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	setupDevice(t, d, "ctx")
	requireSuccess(t, execute(t, d, MethodDisableSimulation, map[string]any{"context": "ctx"}))

	em := requireError(t, execute(t, d, MethodSimulatePreconnectedPeripheral, peripheralParams("ctx")), CodeUnknownError)
	assert.Equal(t, "BluetoothEmulation not enabled", em.Message)

	raw, err := json.Marshal(em)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"type":"error","id":%d,"error":"unknown error","message":"BluetoothEmulation not enabled"}`, *em.ID), string(raw))
}

func TestPeripheralMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"bad base64", func(p map[string]any) {
			p["manufacturerData"] = []map[string]any{{"key": 17, "data": "not base64!"}}
		}},
		{"key out of range", func(p map[string]any) {
			p["manufacturerData"] = []map[string]any{{"key": 65536, "data": "AA=="}}
		}},
		{"negative key", func(p map[string]any) {
			p["manufacturerData"] = []map[string]any{{"key": -1, "data": "AA=="}}
		}},
		{"bad uuid", func(p map[string]any) { p["knownServiceUuids"] = []string{"heart_rate"} }},
		{"missing address", func(p map[string]any) { delete(p, "address") }},
		{"wrong type", func(p map[string]any) { p["name"] = 42 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, engine, _ := newTestDispatcher(t)
			requireSuccess(t, execute(t, d, MethodSimulateAdapter, map[string]any{"context": "ctx", "state": "powered-on"}))

			params := peripheralParams("ctx")
			tt.mutate(params)
			requireError(t, execute(t, d, MethodSimulatePreconnectedPeripheral, params), CodeInvalidArgument)

			// Nothing was applied.
			snap, err := engine.Snapshot(context.Background(), "ctx")
			require.NoError(t, err)
			assert.Empty(t, snap.Peripherals)
		})
	}
}

func TestManufacturerDataRoundTrip(t *testing.T) {
	d, engine, _ := newTestDispatcher(t)
	setupDevice(t, d, "ctx")

	snap, err := engine.Snapshot(context.Background(), "ctx")
	require.NoError(t, err)
	require.Len(t, snap.Peripherals, 1)
	assert.Equal(t, []byte{0x00, 0xff, 0x01, 0x01, 0x7f}, snap.Peripherals[0].ManufacturerData[0].Data)

	m := SnapshotModel(snap)
	assert.Equal(t, "AP8BAX8=", m.Peripherals[0].ManufacturerData[0].Data)
	assert.Equal(t, json.Number("17"), m.Peripherals[0].ManufacturerData[0].Key)
	assert.Equal(t, []string{"12345678-1234-5678-9abc-def123456789"}, m.Peripherals[0].KnownServiceUuids)
}

func TestRequestDevicePromptFlow(t *testing.T) {
	for _, accept := range []bool{true, false} {
		t.Run(fmt.Sprintf("accept=%v", accept), func(t *testing.T) {
			d, engine, sink := newTestDispatcher(t)
			setupDevice(t, d, "ctx")

			// Stand-in for the page clicking a button that calls requestDevice().
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go engine.Run(ctx)
			req := bluetooth.NewDeviceRequest("ctx", bluetooth.NameFilter("SomeDevice"))
			require.NoError(t, engine.Submit(ctx, req))

			require.Eventually(t, func() bool {
				snap, err := engine.Snapshot(ctx, "ctx")
				return err == nil && len(snap.Prompts) == 1
			}, time.Second, 5*time.Millisecond)

			require.Len(t, sink.events, 1)
			msg, ok := EventMessageFrom(sink.events[0])
			require.True(t, ok)
			raw, err := json.Marshal(msg)
			require.NoError(t, err)

			var event struct {
				Type   string                                  `json:"type"`
				Method string                                  `json:"method"`
				Params models.RequestDevicePromptUpdatedParams `json:"params"`
			}
			require.NoError(t, json.Unmarshal(raw, &event))
			assert.Equal(t, "event", event.Type)
			assert.Equal(t, "bluetooth.requestDevicePromptUpdated", event.Method)
			assert.Equal(t, "ctx", event.Params.Context)
			require.Len(t, event.Params.Devices, 1)
			assert.Equal(t, fakeDeviceAddress, event.Params.Devices[0].ID)

			requireSuccess(t, execute(t, d, MethodHandleRequestDevicePrompt, map[string]any{
				"context": "ctx",
				"accept":  accept,
				"prompt":  event.Params.Prompt,
				"device":  event.Params.Devices[0].ID,
			}))

			out := OutcomeModel(<-req.Reply)
			if accept {
				require.NotNil(t, out.Device)
				assert.Equal(t, fakeDeviceAddress, out.Device.ID)
				assert.Empty(t, out.Error)
			} else {
				assert.Nil(t, out.Device)
				assert.NotEmpty(t, out.Error)
			}
		})
	}
}

func TestHandleRequestDevicePromptErrors(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	params := map[string]any{"context": "ctx", "accept": true, "prompt": "p", "device": fakeDeviceAddress}
	em := requireError(t, execute(t, d, MethodHandleRequestDevicePrompt, params), CodeUnknownError)
	assert.Equal(t, "BluetoothEmulation not enabled", em.Message)

	setupDevice(t, d, "ctx")
	requireError(t, execute(t, d, MethodHandleRequestDevicePrompt, params), CodeNoSuchPrompt)

	requireError(t, execute(t, d, MethodHandleRequestDevicePrompt,
		map[string]any{"context": "ctx", "prompt": "p"}), CodeInvalidArgument)
	requireError(t, execute(t, d, MethodHandleRequestDevicePrompt,
		map[string]any{"context": "ctx", "prompt": "p", "accept": true}), CodeInvalidArgument)
}

func TestUnknownCommand(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	requireError(t, execute(t, d, "bluetooth.simulateService", map[string]any{}), CodeUnknownCommand)
	assert.Contains(t, d.Methods(), MethodSimulateAdapter)
	assert.Len(t, d.Methods(), 4)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"id":7,"method":"bluetooth.disableSimulation","params":{"context":"c"}}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), *cmd.ID)

	cmd, err = ParseCommand([]byte(`{"id":8,"method":"session.status"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(cmd.Params))

	_, err = ParseCommand([]byte(`{"method":"x"}`))
	assert.Equal(t, CodeInvalidArgument, ErrorFromErr(err).Code)

	_, err = ParseCommand([]byte(`not json`))
	assert.Equal(t, CodeInvalidArgument, ErrorFromErr(err).Code)
}

func TestRequestOptionsFromModel(t *testing.T) {
	name := "SomeDevice"
	opts, err := RequestOptionsFromModel(models.RequestDeviceOptions{
		Filters: []models.RequestDeviceFilter{{
			Name: &name,
			ManufacturerData: []models.ManufacturerDataFilter{{
				CompanyIdentifier: "17",
				DataPrefix:        "AP8=",
				Mask:              "//8=",
			}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, opts.Filters, 1)
	assert.Equal(t, []byte{0x00, 0xff}, opts.Filters[0].ManufacturerData[0].DataPrefix)

	_, err = RequestOptionsFromModel(models.RequestDeviceOptions{})
	assert.ErrorIs(t, err, bluetooth.ErrInvalidArgument)

	_, err = RequestOptionsFromModel(models.RequestDeviceOptions{Filters: []models.RequestDeviceFilter{{
		ManufacturerData: []models.ManufacturerDataFilter{{CompanyIdentifier: "70000"}},
	}}})
	assert.ErrorIs(t, err, bluetooth.ErrInvalidArgument)
}
