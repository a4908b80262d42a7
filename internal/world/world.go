package world

import (
	"context"
	"math/rand"
	"slices"
	"strconv"

	"buckaneers/server/internal/terrain"
	"buckaneers/server/internal/vmath"
	"buckaneers/server/logging"
	"buckaneers/server/logging/lifecycle"
)

const (
	wolfSpawnAttempts = 256

	inboxGauge            = "world_inbox_pending"
	clientsMetricKey      = "world_clients"
	entityMetricKeyPrefix = "world_entities_"
)

// TerrainBuilder derives the navigation mask for a seed.
type TerrainBuilder func(seed int) *terrain.Mask

// Deps bundles runtime dependencies required to construct a World instance.
type Deps struct {
	Publisher logging.Publisher
	RNG       RNGFactory
	Metrics   telemetryMetrics
	Terrain   TerrainBuilder
}

// Envelope is one inbound message together with the client that sent it.
type Envelope struct {
	Sender  ClientID
	Payload []byte
}

type client struct {
	outbox *Mailbox[[]byte]
	codec  string
	player EntityID
	dead   bool
}

// World is the canonical mutable state of one shared map. It is owned by a
// single tick driver; only the mailboxes may be touched from other
// goroutines.
type World struct {
	config Config

	publisher  logging.Publisher
	rngFactory RNGFactory
	rng        *rand.Rand
	metrics    telemetryMetrics
	terrain    TerrainBuilder

	mask   *terrain.Mask
	tick   uint64
	lastID EntityID

	clients map[ClientID]*client
	players map[EntityID]*Player
	wolves  map[EntityID]*Wolf
	spears  map[EntityID]*Spear
	hits    *HitTable
	inbox   *Mailbox[Envelope]
}

// New constructs a world with normalized configuration, a freshly built
// navigation mask and the initial wolf population.
func New(cfg Config, deps Deps) (*World, error) {
	w := newEmpty(cfg.normalized(), deps)
	w.mask = w.terrain(w.config.Seed)
	w.rng = w.rngFactory(w.seedLabel(), rngLabel(w.tick))
	w.populate("initial")
	return w, nil
}

func newEmpty(cfg Config, deps Deps) *World {
	factory := deps.RNG
	if factory == nil {
		factory = NewDeterministicRNG
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	builder := deps.Terrain
	if builder == nil {
		builder = terrain.Build
	}
	w := &World{
		config:     cfg,
		publisher:  publisher,
		rngFactory: factory,
		metrics:    deps.Metrics,
		terrain:    builder,
		clients:    make(map[ClientID]*client),
		inbox:      NewMailbox[Envelope](cfg.MailboxCapacity, cfg.MailboxOrder, deps.Metrics, inboxGauge),
	}
	w.resetEntities()
	return w
}

func (w *World) resetEntities() {
	w.players = make(map[EntityID]*Player)
	w.wolves = make(map[EntityID]*Wolf)
	w.spears = make(map[EntityID]*Spear)
	w.hits = NewHitTable()
}

func (w *World) populate(reason string) {
	for i := 0; i < w.config.WolfCount; i++ {
		w.SpawnWolf(reason)
	}
}

func (w *World) seedLabel() string {
	return strconv.Itoa(w.config.Seed)
}

// Config returns the normalized configuration the world was built with.
func (w *World) Config() Config {
	if w == nil {
		return Config{}
	}
	return w.config
}

// Seed reports the map seed.
func (w *World) Seed() int {
	return w.config.Seed
}

// Mask exposes the navigation mask. Only its grab grid changes at runtime.
func (w *World) Mask() *terrain.Mask {
	return w.mask
}

// Tick reports the current tick counter.
func (w *World) Tick() uint64 {
	return w.tick
}

// AdvanceTick increments the tick counter and returns the new value.
func (w *World) AdvanceTick() uint64 {
	w.tick++
	return w.tick
}

// NextID hands out the next entity id. Ids start at one and are never reused.
func (w *World) NextID() EntityID {
	w.lastID++
	return w.lastID
}

// RNG exposes the spawn stream of the world.
func (w *World) RNG() *rand.Rand {
	return w.rng
}

// Hits exposes the hit table.
func (w *World) Hits() *HitTable {
	return w.hits
}

// Publisher exposes the event publisher the world was built with.
func (w *World) Publisher() logging.Publisher {
	return w.publisher
}

// RegisterClient makes a transport endpoint known to the world. It reports
// whether the client was new.
func (w *World) RegisterClient(id ClientID) bool {
	if id == "" {
		return false
	}
	if _, ok := w.clients[id]; ok {
		return false
	}
	w.clients[id] = &client{
		outbox: NewMailbox[[]byte](w.config.MailboxCapacity, w.config.MailboxOrder, w.metrics, ""),
	}
	w.storeGauges()
	lifecycle.ClientRegistered(context.Background(), w.publisher, w.tick, logging.EntityRef{ID: string(id), Kind: logging.EntityKindClient}, lifecycle.ClientPayload{Client: string(id)}, nil)
	return true
}

// SetClientCodec records the wire codec a client speaks.
func (w *World) SetClientCodec(id ClientID, codec string) {
	if c, ok := w.clients[id]; ok {
		c.codec = codec
	}
}

// ClientCodec reports the wire codec of a client; empty means the default.
func (w *World) ClientCodec(id ClientID) string {
	if c, ok := w.clients[id]; ok {
		return c.codec
	}
	return ""
}

// Clients lists registered client ids in sorted order.
func (w *World) Clients() []ClientID {
	ids := make([]ClientID, 0, len(w.clients))
	for id := range w.clients {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// HasClient reports whether id is registered.
func (w *World) HasClient(id ClientID) bool {
	_, ok := w.clients[id]
	return ok
}

// ClientDead reports whether the client's player was killed.
func (w *World) ClientDead(id ClientID) bool {
	c, ok := w.clients[id]
	return ok && c.dead
}

// Revive clears the dead flag so the client respawns on the next tick.
func (w *World) Revive(id ClientID) bool {
	c, ok := w.clients[id]
	if !ok || !c.dead {
		return false
	}
	c.dead = false
	return true
}

// DisconnectClient forgets a client and removes its player.
func (w *World) DisconnectClient(id ClientID) bool {
	c, ok := w.clients[id]
	if !ok {
		return false
	}
	if c.player != 0 {
		w.removePlayer(c.player)
	}
	delete(w.clients, id)
	w.storeGauges()
	lifecycle.ClientDisconnected(context.Background(), w.publisher, w.tick, logging.EntityRef{ID: string(id), Kind: logging.EntityKindClient}, lifecycle.ClientPayload{Client: string(id)}, nil)
	return true
}

// Post queues an inbound message, registering unknown senders. It returns
// false when the inbox is full.
func (w *World) Post(sender ClientID, payload []byte) bool {
	w.RegisterClient(sender)
	return w.inbox.Push(Envelope{Sender: sender, Payload: payload})
}

// DrainInbox empties the inbox in mailbox order.
func (w *World) DrainInbox() []Envelope {
	return w.inbox.Drain()
}

// Inbox exposes the inbound mailbox.
func (w *World) Inbox() *Mailbox[Envelope] {
	return w.inbox
}

// Deliver queues an outbound message for a client, evicting its oldest
// message when the outbox is full. Unknown clients are ignored.
func (w *World) Deliver(id ClientID, payload []byte) bool {
	c, ok := w.clients[id]
	if !ok {
		return false
	}
	c.outbox.PushEvict(payload)
	return true
}

// Receive takes one outbound message for a client. Asking for an unknown
// client registers it.
func (w *World) Receive(id ClientID) ([]byte, bool) {
	w.RegisterClient(id)
	c, ok := w.clients[id]
	if !ok {
		return nil, false
	}
	return c.outbox.Pop()
}

// Pending reports how many outbound messages wait for a client.
func (w *World) Pending(id ClientID) int {
	c, ok := w.clients[id]
	if !ok {
		return 0
	}
	return c.outbox.Len()
}

// Player returns a live player by entity id.
func (w *World) Player(id EntityID) (*Player, bool) {
	p, ok := w.players[id]
	return p, ok
}

// PlayerByClient returns the live player controlled by a client.
func (w *World) PlayerByClient(id ClientID) (*Player, bool) {
	c, ok := w.clients[id]
	if !ok || c.player == 0 {
		return nil, false
	}
	return w.Player(c.player)
}

// Players lists live players in ascending id order.
func (w *World) Players() []*Player {
	return sortedValues(w.players)
}

// SpawnPlayer creates the player of a registered client at the spawn point.
// It returns nil when the client is unknown, dead or already has a player.
func (w *World) SpawnPlayer(id ClientID) *Player {
	c, ok := w.clients[id]
	if !ok || c.dead || c.player != 0 {
		return nil
	}
	p := &Player{
		ID:     w.NextID(),
		Client: id,
		Pos:    PlayerSpawn,
		Cell:   terrain.CellOf(PlayerSpawn),
		Health: PlayerHealth,
	}
	w.players[p.ID] = p
	c.player = p.ID
	w.storeGauges()
	lifecycle.PlayerSpawned(context.Background(), w.publisher, w.tick, logging.Ref(logging.EntityKindPlayer, uint64(p.ID)), lifecycle.PlayerSpawnedPayload{Client: string(id), X: p.Pos.X, Y: p.Pos.Y}, nil)
	return p
}

// KillPlayer removes a player and flags its client dead so it is not
// respawned automatically.
func (w *World) KillPlayer(id, killer EntityID) bool {
	p, ok := w.players[id]
	if !ok {
		return false
	}
	cid := p.Client
	w.removePlayer(id)
	if c, ok := w.clients[cid]; ok {
		c.dead = true
	}
	lifecycle.PlayerKilled(context.Background(), w.publisher, w.tick, logging.Ref(logging.EntityKindWolf, uint64(killer)), logging.Ref(logging.EntityKindPlayer, uint64(id)), lifecycle.PlayerKilledPayload{Client: string(cid)}, nil)
	return true
}

func (w *World) removePlayer(id EntityID) {
	p, ok := w.players[id]
	if !ok {
		return
	}
	for _, wolfID := range p.Waffle {
		if wolf, ok := w.wolves[wolfID]; ok && wolf.Waffle.Player == id {
			wolf.Waffle = WaffleRef{}
		}
	}
	if c, ok := w.clients[p.Client]; ok && c.player == id {
		c.player = 0
	}
	delete(w.players, id)
	w.storeGauges()
}

// Wolf returns a wolf by id, free or carried.
func (w *World) Wolf(id EntityID) (*Wolf, bool) {
	wolf, ok := w.wolves[id]
	return wolf, ok
}

// Wolves lists every wolf in ascending id order.
func (w *World) Wolves() []*Wolf {
	return sortedValues(w.wolves)
}

// FreeWolves lists wolves that are not carried by a spear. Wolves carrying a
// spent spear are included.
func (w *World) FreeWolves() []*Wolf {
	all := w.Wolves()
	out := all[:0]
	for _, wolf := range all {
		if !wolf.Mount.Carried() {
			out = append(out, wolf)
		}
	}
	return out
}

// SpawnWolf places a wolf on a walkable subtile drawn from the spawn stream.
func (w *World) SpawnWolf(reason string) *Wolf {
	var pos vmath.Vec2
	for attempt := 0; attempt < wolfSpawnAttempts; attempt++ {
		pos = vmath.Vec2{X: RandomFloat(w.rng), Y: RandomFloat(w.rng)}
		cell := terrain.CellOf(pos)
		if w.mask.Allows(cell.HX, cell.HY, terrain.Walk) {
			break
		}
	}
	return w.SpawnWolfAt(pos, RandomAngle(w.rng), reason)
}

// SpawnWolfAt places a dormant wolf at pos facing angle.
func (w *World) SpawnWolfAt(pos vmath.Vec2, angle float64, reason string) *Wolf {
	wolf := &Wolf{
		ID:         w.NextID(),
		Pos:        pos,
		Cell:       terrain.CellOf(pos),
		Angle:      angle,
		HP:         WolfHealth,
		HPMax:      WolfHealth,
		Stage:      StageDormant,
		StageStart: w.tick,
		StageEnd:   w.tick,
	}
	w.wolves[wolf.ID] = wolf
	w.storeGauges()
	lifecycle.WolfSpawned(context.Background(), w.publisher, w.tick, logging.Ref(logging.EntityKindWolf, uint64(wolf.ID)), lifecycle.WolfSpawnedPayload{X: pos.X, Y: pos.Y, Reason: reason}, nil)
	return wolf
}

// RemoveWolf deletes a wolf along with the spent spear riding it, its
// waffle slot and its place in a carrying spear.
func (w *World) RemoveWolf(id EntityID) bool {
	wolf, ok := w.wolves[id]
	if !ok {
		return false
	}
	w.clearWaffle(wolf)
	mount := wolf.Mount
	wolf.Mount = Mount{}
	delete(w.wolves, id)
	switch mount.Kind {
	case MountCarriedBy:
		if spear, ok := w.spears[mount.Peer]; ok {
			spear.Passengers = removeID(spear.Passengers, id)
		}
	case MountCarrying:
		w.RemoveSpear(mount.Peer)
	}
	w.storeGauges()
	return true
}

func (w *World) clearWaffle(wolf *Wolf) {
	if !wolf.Waffle.Assigned() {
		return
	}
	if p, ok := w.players[wolf.Waffle.Player]; ok {
		slot := wolf.Waffle.Slot
		if slot >= 0 && slot < WaffleSlots && p.Waffle[slot] == wolf.ID {
			p.Waffle[slot] = 0
		}
	}
	wolf.Waffle = WaffleRef{}
}

// Assign reserves a player's waffle slot for a wolf.
func (w *World) Assign(p *Player, slot int, wolf *Wolf) {
	if slot < 0 || slot >= WaffleSlots {
		return
	}
	w.clearWaffle(wolf)
	p.Waffle[slot] = wolf.ID
	wolf.Waffle = WaffleRef{Player: p.ID, Slot: slot}
}

// Unassign drops a wolf's waffle reservation on both sides.
func (w *World) Unassign(wolf *Wolf) {
	w.clearWaffle(wolf)
}

// Spear returns a spear by id, flying or riding a wolf.
func (w *World) Spear(id EntityID) (*Spear, bool) {
	s, ok := w.spears[id]
	return s, ok
}

// Spears lists every spear in ascending id order.
func (w *World) Spears() []*Spear {
	return sortedValues(w.spears)
}

// FlyingSpears lists spears that are still in flight.
func (w *World) FlyingSpears() []*Spear {
	all := w.Spears()
	out := all[:0]
	for _, s := range all {
		if s.Flying() {
			out = append(out, s)
		}
	}
	return out
}

// SpawnSpear creates a flying spear.
func (w *World) SpawnSpear(owner EntityID, pos, dir vmath.Vec2, death uint64) *Spear {
	s := &Spear{
		ID:    w.NextID(),
		Owner: owner,
		Pos:   pos,
		Cell:  terrain.CellOf(pos),
		Dir:   dir,
		Birth: w.tick,
		Death: death,
	}
	w.spears[s.ID] = s
	w.storeGauges()
	return s
}

// RemoveSpear deletes a spear, any wolves it still carries and its hit table
// entries.
func (w *World) RemoveSpear(id EntityID) bool {
	s, ok := w.spears[id]
	if !ok {
		return false
	}
	if s.Mount.Carried() {
		if wolf, ok := w.wolves[s.Mount.Peer]; ok && wolf.Mount == (Mount{Kind: MountCarrying, Peer: id}) {
			wolf.Mount = Mount{}
		}
	}
	passengers := s.Passengers
	s.Passengers = nil
	delete(w.spears, id)
	for _, wolfID := range passengers {
		w.RemoveWolf(wolfID)
	}
	w.hits.ForgetAttacker(id)
	w.storeGauges()
	return true
}

// Capture moves an uncarried wolf into a flying spear's passenger manifest.
// The wolf keeps its offset from the spear and loses its waffle slot. A
// spent spear riding the wolf is removed so the wolf keeps one relationship.
func (w *World) Capture(spearID, wolfID EntityID) bool {
	s, ok := w.spears[spearID]
	if !ok || !s.Flying() {
		return false
	}
	wolf, ok := w.wolves[wolfID]
	if !ok || wolf.Mount.Carried() {
		return false
	}
	if wolf.Mount.Carrying() {
		w.RemoveSpear(wolf.Mount.Peer)
	}
	w.clearWaffle(wolf)
	wolf.Mount = Mount{Kind: MountCarriedBy, Peer: spearID}
	wolf.Offset = wolf.Pos.Sub(s.Pos)
	s.Passengers = append(s.Passengers, wolfID)
	return true
}

// Release drops every passenger of a spent spear at the spear position plus
// its offset, dormant. A lone passenger takes the spear as a rider in its
// own rotated frame; otherwise the spear is removed. It returns the released
// wolves and whether the spear was mounted.
func (w *World) Release(spearID EntityID) ([]EntityID, bool) {
	s, ok := w.spears[spearID]
	if !ok || !s.Flying() {
		return nil, false
	}
	released := s.Passengers
	s.Passengers = nil
	for _, wolfID := range released {
		wolf, ok := w.wolves[wolfID]
		if !ok {
			continue
		}
		wolf.Pos = vmath.Wrap(s.Pos.Add(wolf.Offset))
		wolf.Cell = terrain.CellOf(wolf.Pos)
		wolf.Offset = vmath.Vec2{}
		wolf.Mount = Mount{Kind: MountFree}
		wolf.Stage = StageDormant
		wolf.StageStart = w.tick
		wolf.StageEnd = w.tick
	}
	w.hits.ForgetAttacker(spearID)

	if len(released) == 1 {
		if wolf, ok := w.wolves[released[0]]; ok {
			s.Offset = vmath.Pivot(s.Pos.Sub(wolf.Pos), -wolf.Angle)
			s.Dir = vmath.Pivot(s.Dir, -wolf.Angle)
			s.Mount = Mount{Kind: MountCarriedBy, Peer: wolf.ID}
			wolf.Mount = Mount{Kind: MountCarrying, Peer: spearID}
			return released, true
		}
	}
	w.RemoveSpear(spearID)
	return released, false
}

// Counts summarises the population of the world.
type Counts struct {
	Clients int `json:"clients"`
	Players int `json:"players"`
	Wolves  int `json:"wolves"`
	Spears  int `json:"spears"`
	Hits    int `json:"hits"`
}

func (w *World) Counts() Counts {
	return Counts{
		Clients: len(w.clients),
		Players: len(w.players),
		Wolves:  len(w.wolves),
		Spears:  len(w.spears),
		Hits:    w.hits.Len(),
	}
}

// Reset rebuilds the map and entity population from cfg. Client
// registrations survive with dead flags cleared; the tick counter and id
// generator keep counting so clients never see time run backwards. Mailboxes
// adopt the new capacity and order and keep what still fits.
func (w *World) Reset(cfg Config, reason string) {
	w.config = cfg.normalized()
	w.resetEntities()
	w.inbox.Reconfigure(w.config.MailboxCapacity, w.config.MailboxOrder)
	for _, c := range w.clients {
		c.player = 0
		c.dead = false
		c.outbox.Reconfigure(w.config.MailboxCapacity, w.config.MailboxOrder)
	}
	w.mask = w.terrain(w.config.Seed)
	w.rng = w.rngFactory(w.seedLabel(), rngLabel(w.tick))
	lifecycle.WorldReset(context.Background(), w.publisher, w.tick, lifecycle.WorldResetPayload{Seed: w.config.Seed, WolfCount: w.config.WolfCount, Reason: reason}, nil)
	w.populate(reason)
	w.storeGauges()
}

func (w *World) storeGauges() {
	if w.metrics == nil {
		return
	}
	w.metrics.Store(clientsMetricKey, uint64(len(w.clients)))
	w.metrics.Store(entityMetricKeyPrefix+"players", uint64(len(w.players)))
	w.metrics.Store(entityMetricKeyPrefix+"wolves", uint64(len(w.wolves)))
	w.metrics.Store(entityMetricKeyPrefix+"spears", uint64(len(w.spears)))
}

func sortedValues[T any](m map[EntityID]*T) []*T {
	ids := make([]EntityID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func removeID(ids []EntityID, id EntityID) []EntityID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
