package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/sasha-s/go-deadlock"

	"buckaneers/server/internal/persist"
	"buckaneers/server/internal/sim"
	"buckaneers/server/internal/telemetry"
	"buckaneers/server/internal/world"
	"buckaneers/server/logging"
	"buckaneers/server/logging/network"
)

const (
	savesMetricKey      = "hub_saves_total"
	saveErrorsMetricKey = "hub_save_errors_total"
	rejectedMetricKey   = "hub_inbound_rejected_total"

	// DefaultSaveIntervalTicks persists the world every ten seconds.
	DefaultSaveIntervalTicks = 600
)

// ErrClientConnected is returned by Connect when the client id already has a
// live subscription.
var ErrClientConnected = errors.New("hub: client already connected")

// Config tunes the hub.
type Config struct {
	World world.Config
	// SaveIntervalTicks is the number of ticks between saves. Zero or less
	// disables periodic saves; the world is still saved on Close.
	SaveIntervalTicks int
}

func DefaultConfig() Config {
	return Config{
		World:             world.DefaultConfig(),
		SaveIntervalTicks: DefaultSaveIntervalTicks,
	}
}

// Deps carries shared infrastructure for the hub, the world and the engine.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
	Store     persist.Store
	Terrain   world.TerrainBuilder
	Proximity sim.Proximity
}

// Hub is the transport contract of the simulation. Send, Receive and Tick
// all run under one mutex so transports never observe a half-run tick.
type Hub struct {
	mu     deadlock.Mutex
	cfg    Config
	deps   Deps
	log    telemetry.Logger
	world  *world.World
	engine *sim.Engine

	last        sim.StepResult
	lastSave    uint64
	saves       uint64
	saveDue     bool
	clearDue    bool
	subscribers map[world.ClientID]chan struct{}
}

// Diagnostics summarises the hub for operators.
type Diagnostics struct {
	Tick     uint64         `json:"tick"`
	Counts   world.Counts   `json:"counts"`
	Config   world.Config   `json:"config"`
	LastStep sim.StepResult `json:"lastStep"`
	Saves    uint64         `json:"saves"`
	Inbox    int            `json:"inbox"`
}

// New builds a hub, restoring the world from deps.Store when a saved state
// exists.
func New(ctx context.Context, cfg Config, deps Deps) (*Hub, error) {
	deps.Logger = telemetry.OrNop(deps.Logger)
	deps.Metrics = telemetry.OrDiscard(deps.Metrics)
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	h := &Hub{
		cfg:         cfg,
		deps:        deps,
		log:         telemetry.Prefixed(deps.Logger, "hub"),
		subscribers: make(map[world.ClientID]chan struct{}),
	}

	w, err := h.loadWorld(ctx)
	if err != nil {
		return nil, err
	}
	h.world = w
	h.lastSave = w.Tick()
	h.engine = sim.NewEngine(w, sim.Deps{
		Logger:    deps.Logger,
		Metrics:   deps.Metrics,
		Publisher: deps.Publisher,
		Clock:     deps.Clock,
		Proximity: deps.Proximity,
		OnReset:   h.markReset,
	})
	return h, nil
}

func (h *Hub) worldDeps() world.Deps {
	return world.Deps{
		Publisher: h.deps.Publisher,
		Metrics:   h.deps.Metrics,
		Terrain:   h.deps.Terrain,
	}
}

func (h *Hub) loadWorld(ctx context.Context) (*world.World, error) {
	if h.deps.Store == nil {
		return world.New(h.cfg.World, h.worldDeps())
	}
	st, err := h.deps.Store.Load(ctx)
	if errors.Is(err, persist.ErrNotFound) {
		return world.New(h.cfg.World, h.worldDeps())
	}
	if err != nil {
		return nil, fmt.Errorf("load world: %w", err)
	}
	w, err := world.Restore(st, h.worldDeps())
	if err != nil {
		return nil, fmt.Errorf("restore world: %w", err)
	}
	h.log.Printf("restored world at tick %d (%d clients)", w.Tick(), len(w.Clients()))
	return w, nil
}

// Register makes a client known and records the codec it speaks.
func (h *Hub) Register(id world.ClientID, codec string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.world.RegisterClient(id)
	h.world.SetClientCodec(id, codec)
}

// Subscribe returns a channel that is signalled after every tick that
// queued something for the client. Frames already waiting signal at once.
func (h *Hub) Subscribe(id world.ClientID) <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.subscribers[id]
	if !ok {
		ch = make(chan struct{}, 1)
		h.subscribers[id] = ch
	}
	if h.world.Pending(id) > 0 {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return ch
}

// Connect registers a client and subscribes it in one step. Only one
// connection may hold an id at a time; a second one gets ErrClientConnected
// and leaves the first untouched.
func (h *Hub) Connect(id world.ClientID, codec string) (<-chan struct{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrClientConnected, id)
	}
	h.world.RegisterClient(id)
	h.world.SetClientCodec(id, codec)
	ch := make(chan struct{}, 1)
	h.subscribers[id] = ch
	if h.world.Pending(id) > 0 {
		ch <- struct{}{}
	}
	return ch, nil
}

// Disconnect forgets a client, its player and its subscription.
func (h *Hub) Disconnect(id world.ClientID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, id)
	return h.world.DisconnectClient(id)
}

// Send queues an inbound frame from a client. It returns false when the
// inbox is full and the frame was dropped.
func (h *Hub) Send(id world.ClientID, payload []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.world.Post(id, payload) {
		return true
	}
	h.deps.Metrics.Add(rejectedMetricKey, 1)
	network.MailboxOverflow(context.Background(), h.deps.Publisher, h.world.Tick(),
		logging.EntityRef{ID: string(id), Kind: logging.EntityKindClient},
		network.MailboxOverflowPayload{Mailbox: "inbox", Capacity: h.world.Inbox().Capacity()}, nil)
	return false
}

// Receive takes the next outbound frame for a client in mailbox order.
func (h *Hub) Receive(id world.ClientID) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.Receive(id)
}

// Tick runs one simulation step and persists the world when a save is due.
// After a reset the store is cleared before the fresh world is saved.
func (h *Hub) Tick() sim.StepResult {
	h.mu.Lock()
	result := h.engine.Step()
	h.last = result
	var st *world.State
	wipe := false
	if h.deps.Store != nil && (h.saveDue || h.periodicSaveDue(result.Tick)) {
		st = h.world.Export()
		h.lastSave = result.Tick
		wipe = h.clearDue
		h.saveDue = false
		h.clearDue = false
	}
	h.notifyLocked()
	h.mu.Unlock()

	if st == nil {
		return result
	}
	ctx := context.Background()
	if wipe {
		if err := h.deps.Store.Clear(ctx); err != nil {
			h.deps.Metrics.Add(saveErrorsMetricKey, 1)
			h.log.Printf("clearing saved world failed: %v", err)
		}
	}
	h.save(ctx, st)
	return result
}

// markReset schedules a clear and save of the store. Callers hold h.mu.
func (h *Hub) markReset() {
	h.saveDue = true
	h.clearDue = true
}

func (h *Hub) periodicSaveDue(tick uint64) bool {
	interval := h.cfg.SaveIntervalTicks
	return interval > 0 && tick-h.lastSave >= uint64(interval)
}

func (h *Hub) notifyLocked() {
	for id, ch := range h.subscribers {
		if h.world.Pending(id) == 0 {
			continue
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) save(ctx context.Context, st *world.State) error {
	if err := h.deps.Store.Save(ctx, st); err != nil {
		h.deps.Metrics.Add(saveErrorsMetricKey, 1)
		h.log.Printf("saving world at tick %d failed: %v", st.Tick, err)
		return err
	}
	h.mu.Lock()
	h.saves++
	h.mu.Unlock()
	h.deps.Metrics.Add(savesMetricKey, 1)
	return nil
}

// Save persists the current world immediately.
func (h *Hub) Save(ctx context.Context) error {
	if h.deps.Store == nil {
		return nil
	}
	h.mu.Lock()
	st := h.world.Export()
	h.lastSave = st.Tick
	h.mu.Unlock()
	return h.save(ctx, st)
}

// Reset rebuilds the world from cfg and returns the normalized config.
func (h *Hub) Reset(cfg world.Config) world.Config {
	h.mu.Lock()
	h.world.Reset(cfg, "admin")
	applied := h.world.Config()
	h.cfg.World = applied
	h.markReset()
	h.mu.Unlock()
	return applied
}

// Config returns the configuration the world currently runs with.
func (h *Hub) Config() world.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.Config()
}

func (h *Hub) Diagnostics() Diagnostics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Diagnostics{
		Tick:     h.world.Tick(),
		Counts:   h.world.Counts(),
		Config:   h.world.Config(),
		LastStep: h.last,
		Saves:    h.saves,
		Inbox:    h.world.Inbox().Len(),
	}
}

// View runs fn with exclusive access to the world.
func (h *Hub) View(fn func(*world.World)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.world)
}

// Close saves the world one last time.
func (h *Hub) Close(ctx context.Context) error {
	return h.Save(ctx)
}
