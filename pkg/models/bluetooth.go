package models

import "encoding/json"

// SimulateAdapterParams is the payload of bluetooth.simulateAdapter
type SimulateAdapterParams struct {
	Context string `json:"context"`
	State   string `json:"state"`
}

// ManufacturerData is one advertised manufacturer entry. Data is base64.
type ManufacturerData struct {
	Key  json.Number `json:"key"`
	Data string      `json:"data"`
}

// SimulatePreconnectedPeripheralParams is the payload of
// bluetooth.simulatePreconnectedPeripheral
type SimulatePreconnectedPeripheralParams struct {
	Context           string             `json:"context"`
	Address           string             `json:"address"`
	Name              string             `json:"name"`
	ManufacturerData  []ManufacturerData `json:"manufacturerData"`
	KnownServiceUuids []string           `json:"knownServiceUuids"`
}

// DisableSimulationParams is the payload of bluetooth.disableSimulation
type DisableSimulationParams struct {
	Context string `json:"context"`
}

// HandleRequestDevicePromptParams is the payload of
// bluetooth.handleRequestDevicePrompt
type HandleRequestDevicePromptParams struct {
	Context string `json:"context"`
	Prompt  string `json:"prompt"`
	Accept  *bool  `json:"accept"`
	Device  string `json:"device,omitempty"`
}

// RequestDeviceInfo is a device entry in a prompt event
type RequestDeviceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// RequestDevicePromptUpdatedParams is the payload of the
// bluetooth.requestDevicePromptUpdated event
type RequestDevicePromptUpdatedParams struct {
	Context string              `json:"context"`
	Prompt  string              `json:"prompt"`
	Devices []RequestDeviceInfo `json:"devices"`
}

// ManufacturerDataFilter mirrors the Web Bluetooth manufacturer data filter.
// DataPrefix and Mask are base64.
type ManufacturerDataFilter struct {
	CompanyIdentifier json.Number `json:"companyIdentifier"`
	DataPrefix        string      `json:"dataPrefix,omitempty"`
	Mask              string      `json:"mask,omitempty"`
}

// RequestDeviceFilter is one entry of the page's filters list
type RequestDeviceFilter struct {
	Name             *string                  `json:"name,omitempty"`
	NamePrefix       string                   `json:"namePrefix,omitempty"`
	Services         []string                 `json:"services,omitempty"`
	ManufacturerData []ManufacturerDataFilter `json:"manufacturerData,omitempty"`
}

// RequestDeviceOptions is what page script passes to requestDevice()
type RequestDeviceOptions struct {
	Filters          []RequestDeviceFilter `json:"filters,omitempty"`
	AcceptAllDevices bool                  `json:"acceptAllDevices,omitempty"`
}

// RequestDeviceOutcome is how a device request settled
type RequestDeviceOutcome struct {
	Context string             `json:"context"`
	Prompt  string             `json:"prompt,omitempty"`
	Device  *RequestDeviceInfo `json:"device,omitempty"`
	Error   string             `json:"error,omitempty"`
}
