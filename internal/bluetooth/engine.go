package bluetooth

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"
)

// DefaultSignalBuffer is the capacity of the device-request signal queue.
const DefaultSignalBuffer = 64

// entry owns one context's session. sem serializes every operation on the
// context; stale is set once the entry has been dropped from the directory.
// enabled mirrors session != nil for lock-free listing.
type entry struct {
	sem     *semaphore.Weighted
	session *Session
	stale   bool
	enabled atomic.Bool
}

// Engine is the process-wide directory of simulation sessions keyed by
// context. Operations on one context run strictly one at a time; distinct
// contexts share nothing but the directory map.
type Engine struct {
	mu      sync.Mutex
	entries map[ContextID]*entry

	sink        EventSink
	logger      *slog.Logger
	signals     chan DeviceRequest
	newPromptID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithEventSink sets where prompt events go.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPromptIDs replaces the ULID prompt id generator.
func WithPromptIDs(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newPromptID = gen
		}
	}
}

// WithSignalBuffer sets the device-request queue capacity.
func WithSignalBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.signals = make(chan DeviceRequest, n)
		}
	}
}

// NewEngine creates an empty directory.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		entries:     make(map[ContextID]*entry),
		sink:        discardSink{},
		logger:      slog.Default(),
		signals:     make(chan DeviceRequest, DefaultSignalBuffer),
		newPromptID: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// acquire locks the context's entry, creating it on first use.
func (e *Engine) acquire(ctx context.Context, id ContextID) (*entry, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: context is required", ErrInvalidArgument)
	}
	for {
		e.mu.Lock()
		en, ok := e.entries[id]
		if !ok {
			en = &entry{sem: semaphore.NewWeighted(1)}
			e.entries[id] = en
		}
		e.mu.Unlock()

		if err := en.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		if !en.stale {
			return en, nil
		}
		// Dropped while we waited; the directory holds a fresh entry now.
		en.sem.Release(1)
	}
}

// release unlocks an entry, dropping it from the directory when it holds
// no session so that unused contexts do not accumulate.
func (e *Engine) release(id ContextID, en *entry) {
	if en.session == nil {
		e.mu.Lock()
		if e.entries[id] == en {
			delete(e.entries, id)
		}
		e.mu.Unlock()
		en.stale = true
	}
	en.sem.Release(1)
}

// SimulateAdapter sets the adapter state of a context, enabling simulation
// for the context if needed. Any state may follow any other.
func (e *Engine) SimulateAdapter(ctx context.Context, id ContextID, state AdapterState) error {
	if _, err := ParseAdapterState(string(state)); err != nil {
		return err
	}
	en, err := e.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer e.release(id, en)

	if en.session == nil {
		en.session = newSession(id)
		en.enabled.Store(true)
		e.logger.Info("bluetooth simulation enabled", "context", id)
	}
	prev := en.session.adapter
	en.session.adapter = state
	e.logger.Debug("adapter state set", "context", id, "from", prev, "to", state)
	return nil
}

// SimulatePreconnectedPeripheral adds or replaces a peripheral and
// re-evaluates the context's unresolved prompts against it.
func (e *Engine) SimulatePreconnectedPeripheral(ctx context.Context, id ContextID, p Peripheral) error {
	if p.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidArgument)
	}
	en, err := e.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer e.release(id, en)

	s := en.session
	if s == nil {
		return ErrNotEnabled
	}
	s.peripherals.put(p.Clone())
	e.logger.Debug("peripheral simulated", "context", id, "address", p.Address, "name", p.Name)

	for _, pr := range s.prompts {
		if pr.evaluate(s.adapter, s.peripherals) {
			pr.markUpdated()
			e.sink.Publish(pr.event(s.peripherals))
		}
	}
	return nil
}

// HandleRequestDevicePrompt answers a prompt. Accepting requires deviceID to
// be listed on the prompt; rejecting ignores it.
func (e *Engine) HandleRequestDevicePrompt(ctx context.Context, id ContextID, promptID, deviceID string, accept bool) error {
	en, err := e.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer e.release(id, en)

	s := en.session
	if s == nil {
		return ErrNotEnabled
	}
	pr, idx := s.findPrompt(promptID)
	if pr == nil {
		return fmt.Errorf("%w: prompt %q", ErrUnknownPrompt, promptID)
	}

	out := DeviceRequestOutcome{Err: ErrRequestCancelled}
	if accept {
		if !pr.hasDevice(deviceID) {
			return fmt.Errorf("%w: device %q is not listed on prompt %q", ErrUnknownPrompt, deviceID, promptID)
		}
		per, _ := s.peripherals.get(deviceID)
		per = per.Clone()
		out = DeviceRequestOutcome{Device: &per}
	}

	pr.resolve(out)
	s.removePrompt(idx)
	e.logger.Info("device prompt resolved", "context", id, "prompt", promptID, "accept", accept, "device", deviceID)
	return nil
}

// DisableSimulation clears all simulation state of a context and abandons
// its unresolved prompts. Calling it for a context without simulation is a
// no-op.
func (e *Engine) DisableSimulation(ctx context.Context, id ContextID) {
	if id == "" {
		return
	}
	// Acquire cannot fail without cancellation.
	en, _ := e.acquire(context.WithoutCancel(ctx), id)
	defer e.release(id, en)

	s := en.session
	en.session = nil
	en.enabled.Store(false)
	if s == nil {
		return
	}

	for _, pr := range s.prompts {
		pr.resolve(DeviceRequestOutcome{Err: ErrPromptAbandoned})
	}
	e.logger.Info("bluetooth simulation disabled", "context", id,
		"peripherals", s.peripherals.len(), "abandoned_prompts", len(s.prompts))
}

// Submit queues a device-request signal for Run.
func (e *Engine) Submit(ctx context.Context, req DeviceRequest) error {
	select {
	case e.signals <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes device-request signals until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-e.signals:
			e.handleDeviceRequest(ctx, req)
		}
	}
}

// handleDeviceRequest opens a prompt for the request and announces its
// initial device list.
func (e *Engine) handleDeviceRequest(ctx context.Context, req DeviceRequest) {
	fail := func(err error) {
		req.reply(DeviceRequestOutcome{Context: req.Context, Err: err})
	}
	if err := req.Options.Validate(); err != nil {
		fail(err)
		return
	}
	en, err := e.acquire(ctx, req.Context)
	if err != nil {
		fail(err)
		return
	}
	defer e.release(req.Context, en)

	s := en.session
	if s == nil {
		fail(ErrNotEnabled)
		return
	}
	if !s.adapter.Present() {
		fail(ErrAdapterUnavailable)
		return
	}

	pr := newPrompt(e.newPromptID(), req)
	pr.evaluate(s.adapter, s.peripherals)
	s.prompts = append(s.prompts, pr)
	e.logger.Info("device prompt opened", "context", req.Context, "prompt", pr.ID, "devices", len(pr.devices))
	e.sink.Publish(pr.event(s.peripherals))
}

// Snapshot returns a copy of the context's simulation state.
func (e *Engine) Snapshot(ctx context.Context, id ContextID) (Snapshot, error) {
	en, err := e.acquire(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	defer e.release(id, en)

	if en.session == nil {
		return Snapshot{}, ErrNotEnabled
	}
	return en.session.snapshot(), nil
}

// Contexts lists contexts with simulation enabled, sorted.
func (e *Engine) Contexts() []ContextID {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]ContextID, 0, len(e.entries))
	for id, en := range e.entries {
		if en.enabled.Load() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
