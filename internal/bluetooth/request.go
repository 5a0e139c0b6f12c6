package bluetooth

// DeviceRequest is the signal raised when page script in Context asks for a
// device. The engine answers on Reply exactly once.
type DeviceRequest struct {
	Context ContextID
	Options RequestOptions
	Reply   chan DeviceRequestOutcome
}

// NewDeviceRequest returns a request with a buffered reply channel.
func NewDeviceRequest(ctx ContextID, opts RequestOptions) DeviceRequest {
	return DeviceRequest{
		Context: ctx,
		Options: opts,
		Reply:   make(chan DeviceRequestOutcome, 1),
	}
}

// DeviceRequestOutcome is what the page-side request settles with. Device
// is set when the prompt was accepted; Err otherwise.
type DeviceRequestOutcome struct {
	Context ContextID
	Prompt  string
	Device  *Peripheral
	Err     error
}

// reply delivers without blocking. A full or nil channel means nobody is
// waiting for this request anymore.
func (r DeviceRequest) reply(out DeviceRequestOutcome) bool {
	if r.Reply == nil {
		return false
	}
	select {
	case r.Reply <- out:
		return true
	default:
		return false
	}
}
