package models

// Peripheral is a simulated peripheral as reported by the inspection API
type Peripheral struct {
	Address           string             `json:"address"`
	Name              string             `json:"name"`
	ManufacturerData  []ManufacturerData `json:"manufacturerData"`
	KnownServiceUuids []string           `json:"knownServiceUuids"`
}

// Prompt is an unresolved device prompt
type Prompt struct {
	ID      string              `json:"id"`
	State   string              `json:"state"`
	Devices []RequestDeviceInfo `json:"devices"`
}

// BluetoothContext is the simulation snapshot of one browsing context
type BluetoothContext struct {
	Context     string       `json:"context"`
	Adapter     string       `json:"adapter"`
	Peripherals []Peripheral `json:"peripherals"`
	Prompts     []Prompt     `json:"prompts"`
}

// ContextList is the response of GET /v1/contexts
type ContextList struct {
	Contexts []string `json:"contexts"`
}
