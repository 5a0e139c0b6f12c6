package bluetooth

// Session is the simulation state of one context: an adapter, its
// peripherals and the prompts still waiting for an answer.
type Session struct {
	context     ContextID
	adapter     AdapterState
	peripherals *registry
	prompts     []*Prompt
}

func newSession(id ContextID) *Session {
	return &Session{
		context:     id,
		adapter:     AdapterAbsent,
		peripherals: newRegistry(),
	}
}

func (s *Session) findPrompt(id string) (*Prompt, int) {
	for i, p := range s.prompts {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

func (s *Session) removePrompt(i int) {
	s.prompts = append(s.prompts[:i], s.prompts[i+1:]...)
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	Context     ContextID
	Adapter     AdapterState
	Peripherals []Peripheral
	Prompts     []PromptSnapshot
}

// PromptSnapshot is a read-only copy of an unresolved prompt.
type PromptSnapshot struct {
	ID      string
	State   PromptState
	Devices []PromptDevice
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		Context:     s.context,
		Adapter:     s.adapter,
		Peripherals: s.peripherals.list(),
		Prompts:     make([]PromptSnapshot, 0, len(s.prompts)),
	}
	for _, p := range s.prompts {
		snap.Prompts = append(snap.Prompts, PromptSnapshot{
			ID:      p.ID,
			State:   p.state,
			Devices: p.deviceList(s.peripherals),
		})
	}
	return snap
}
