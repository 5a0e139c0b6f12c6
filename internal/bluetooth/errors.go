package bluetooth

import "errors"

// Command errors returned synchronously to the caller.
var (
	ErrNotEnabled      = errors.New("BluetoothEmulation not enabled")
	ErrUnknownPrompt   = errors.New("unknown prompt")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Outcome errors delivered to the page side of a device request.
var (
	ErrAdapterUnavailable = errors.New("bluetooth adapter not available")
	ErrRequestCancelled   = errors.New("user cancelled the requestDevice() chooser")
	ErrPromptAbandoned    = errors.New("device request prompt abandoned")
)
