package bidi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/bluetooth"
	"github.com/shehryarbajwa/bluetooth-emulator/pkg/models"
)

// Bluetooth command names.
const (
	MethodSimulateAdapter                = "bluetooth.simulateAdapter"
	MethodSimulatePreconnectedPeripheral = "bluetooth.simulatePreconnectedPeripheral"
	MethodDisableSimulation              = "bluetooth.disableSimulation"
	MethodHandleRequestDevicePrompt      = "bluetooth.handleRequestDevicePrompt"
)

// RegisterBluetooth wires the bluetooth.* commands to engine.
func RegisterBluetooth(d *Dispatcher, engine *bluetooth.Engine) {
	h := &bluetoothHandlers{engine: engine}
	d.Register(MethodSimulateAdapter, h.simulateAdapter)
	d.Register(MethodSimulatePreconnectedPeripheral, h.simulatePreconnectedPeripheral)
	d.Register(MethodDisableSimulation, h.disableSimulation)
	d.Register(MethodHandleRequestDevicePrompt, h.handleRequestDevicePrompt)
}

type bluetoothHandlers struct {
	engine *bluetooth.Engine
}

func requireContext(id string) error {
	if id == "" {
		return fmt.Errorf("%w: context is required", bluetooth.ErrInvalidArgument)
	}
	return nil
}

func (h *bluetoothHandlers) simulateAdapter(ctx context.Context, raw json.RawMessage) (any, error) {
	var p models.SimulateAdapterParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := requireContext(p.Context); err != nil {
		return nil, err
	}
	state, err := bluetooth.ParseAdapterState(p.State)
	if err != nil {
		return nil, err
	}
	if err := h.engine.SimulateAdapter(ctx, bluetooth.ContextID(p.Context), state); err != nil {
		return nil, err
	}
	return EmptyResult{}, nil
}

func (h *bluetoothHandlers) simulatePreconnectedPeripheral(ctx context.Context, raw json.RawMessage) (any, error) {
	var p models.SimulatePreconnectedPeripheralParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := requireContext(p.Context); err != nil {
		return nil, err
	}
	per, err := PeripheralFromParams(p)
	if err != nil {
		return nil, err
	}
	if err := h.engine.SimulatePreconnectedPeripheral(ctx, bluetooth.ContextID(p.Context), per); err != nil {
		return nil, err
	}
	return EmptyResult{}, nil
}

func (h *bluetoothHandlers) disableSimulation(ctx context.Context, raw json.RawMessage) (any, error) {
	var p models.DisableSimulationParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := requireContext(p.Context); err != nil {
		return nil, err
	}
	h.engine.DisableSimulation(ctx, bluetooth.ContextID(p.Context))
	return EmptyResult{}, nil
}

func (h *bluetoothHandlers) handleRequestDevicePrompt(ctx context.Context, raw json.RawMessage) (any, error) {
	var p models.HandleRequestDevicePromptParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := requireContext(p.Context); err != nil {
		return nil, err
	}
	if p.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", bluetooth.ErrInvalidArgument)
	}
	if p.Accept == nil {
		return nil, fmt.Errorf("%w: accept is required", bluetooth.ErrInvalidArgument)
	}
	if *p.Accept && p.Device == "" {
		return nil, fmt.Errorf("%w: device is required when accepting", bluetooth.ErrInvalidArgument)
	}
	err := h.engine.HandleRequestDevicePrompt(ctx, bluetooth.ContextID(p.Context), p.Prompt, p.Device, *p.Accept)
	if err != nil {
		return nil, err
	}
	return EmptyResult{}, nil
}
