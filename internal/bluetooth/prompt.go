package bluetooth

// PromptState tracks a prompt through created -> updated* -> resolved.
type PromptState int

const (
	PromptCreated PromptState = iota
	PromptUpdated
	PromptResolved
)

func (s PromptState) String() string {
	switch s {
	case PromptCreated:
		return "created"
	case PromptUpdated:
		return "updated"
	case PromptResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Prompt is a pending device chooser opened by a page's device request.
type Prompt struct {
	ID      string
	Context ContextID
	Options RequestOptions

	state   PromptState
	devices []string
	listed  map[string]struct{}
	request DeviceRequest
}

func newPrompt(id string, req DeviceRequest) *Prompt {
	return &Prompt{
		ID:      id,
		Context: req.Context,
		Options: req.Options,
		state:   PromptCreated,
		listed:  make(map[string]struct{}),
		request: req,
	}
}

// State returns the current state.
func (p *Prompt) State() PromptState { return p.state }

// evaluate appends peripherals that newly match. Already listed devices
// keep their position. Reports whether the list grew.
func (p *Prompt) evaluate(adapter AdapterState, reg *registry) bool {
	if p.state == PromptResolved || !adapter.Scanning() {
		return false
	}
	grew := false
	for _, addr := range reg.order {
		if _, ok := p.listed[addr]; ok {
			continue
		}
		if !p.Options.Matches(reg.byAddr[addr]) {
			continue
		}
		p.listed[addr] = struct{}{}
		p.devices = append(p.devices, addr)
		grew = true
	}
	return grew
}

// markUpdated moves a created or updated prompt into updated.
func (p *Prompt) markUpdated() {
	if p.state != PromptResolved {
		p.state = PromptUpdated
	}
}

func (p *Prompt) hasDevice(id string) bool {
	_, ok := p.listed[id]
	return ok
}

// deviceList resolves listed addresses to their current names.
func (p *Prompt) deviceList(reg *registry) []PromptDevice {
	out := make([]PromptDevice, 0, len(p.devices))
	for _, addr := range p.devices {
		d := PromptDevice{ID: addr}
		if per, ok := reg.get(addr); ok {
			d.Name = per.Name
		}
		out = append(out, d)
	}
	return out
}

func (p *Prompt) event(reg *registry) PromptUpdatedEvent {
	return PromptUpdatedEvent{
		Context: p.Context,
		Prompt:  p.ID,
		Devices: p.deviceList(reg),
	}
}

// resolve is terminal. It reports false if the prompt was already resolved.
func (p *Prompt) resolve(out DeviceRequestOutcome) bool {
	if p.state == PromptResolved {
		return false
	}
	p.state = PromptResolved
	out.Context = p.Context
	out.Prompt = p.ID
	p.request.reply(out)
	return true
}
