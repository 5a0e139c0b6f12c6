package bluetooth

// EventRequestDevicePromptUpdated is the protocol name of the prompt event.
const EventRequestDevicePromptUpdated = "bluetooth.requestDevicePromptUpdated"

// Event is emitted by the engine for delivery to protocol subscribers.
type Event interface {
	Method() string
	ContextID() ContextID
}

// PromptDevice is a device entry of a prompt event. Name is empty when the
// peripheral advertises none.
type PromptDevice struct {
	ID   string
	Name string
}

// PromptUpdatedEvent reports the current device list of an unresolved prompt.
type PromptUpdatedEvent struct {
	Context ContextID
	Prompt  string
	Devices []PromptDevice
}

func (PromptUpdatedEvent) Method() string { return EventRequestDevicePromptUpdated }

func (e PromptUpdatedEvent) ContextID() ContextID { return e.Context }

// EventSink receives engine events. Publish is called with the context's
// lock held and must not block.
type EventSink interface {
	Publish(Event)
}

type discardSink struct{}

func (discardSink) Publish(Event) {}
