package world

import (
	"errors"
	"fmt"

	"buckaneers/server/internal/terrain"
)

// StateVersion tags persisted world blobs.
const StateVersion = 2

// ErrInvalidState is returned when a persisted state cannot be restored.
var ErrInvalidState = errors.New("world: invalid state")

// ClientRecord is a persisted client registration.
type ClientRecord struct {
	ID    ClientID `msgpack:"id"`
	Codec string   `msgpack:"codec"`
	Dead  bool     `msgpack:"dead"`
}

// State is the persisted form of a world. Mailbox contents are transient and
// never saved; the walk grid is rebuilt from the seed.
type State struct {
	Version int            `msgpack:"version"`
	Config  Config         `msgpack:"config"`
	Tick    uint64         `msgpack:"tick"`
	LastID  EntityID       `msgpack:"last_id"`
	Grab    []uint8        `msgpack:"grab"`
	Clients []ClientRecord `msgpack:"clients"`
	Players []Player       `msgpack:"players"`
	Wolves  []Wolf         `msgpack:"wolves"`
	Spears  []Spear        `msgpack:"spears"`
	Hits    []HitRecord    `msgpack:"hits"`
}

// Export copies the world into a State value.
func (w *World) Export() *State {
	st := &State{
		Version: StateVersion,
		Config:  w.config,
		Tick:    w.tick,
		LastID:  w.lastID,
		Grab:    append([]uint8(nil), w.mask.Grab...),
		Hits:    w.hits.records(),
	}
	for _, id := range w.Clients() {
		st.Clients = append(st.Clients, ClientRecord{ID: id, Codec: w.clients[id].codec, Dead: w.clients[id].dead})
	}
	for _, p := range w.Players() {
		st.Players = append(st.Players, *p)
	}
	for _, wolf := range w.Wolves() {
		st.Wolves = append(st.Wolves, *wolf)
	}
	for _, s := range w.Spears() {
		cp := *s
		cp.Passengers = append([]EntityID(nil), s.Passengers...)
		st.Spears = append(st.Spears, cp)
	}
	return st
}

// Restore rebuilds a world from a persisted State. The spawn stream is keyed
// by the restored tick so a restarted server does not replay old spawns.
func Restore(st *State, deps Deps) (*World, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvalidState)
	}
	if st.Version != StateVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidState, st.Version)
	}
	w := newEmpty(st.Config.normalized(), deps)
	w.mask = w.terrain(w.config.Seed)
	if len(st.Grab) != len(w.mask.Grab) {
		return nil, fmt.Errorf("%w: grab grid has %d cells, want %d", ErrInvalidState, len(st.Grab), len(w.mask.Grab))
	}
	copy(w.mask.Grab, st.Grab)
	w.tick = st.Tick
	w.lastID = st.LastID
	w.rng = w.rngFactory(w.seedLabel(), rngLabel(w.tick))

	for _, rec := range st.Clients {
		w.clients[rec.ID] = &client{
			outbox: NewMailbox[[]byte](w.config.MailboxCapacity, w.config.MailboxOrder, w.metrics, ""),
			codec:  rec.Codec,
			dead:   rec.Dead,
		}
	}
	for i := range st.Players {
		p := st.Players[i]
		if err := w.claimID(p.ID); err != nil {
			return nil, err
		}
		c, ok := w.clients[p.Client]
		if !ok {
			return nil, fmt.Errorf("%w: player %d belongs to unknown client %q", ErrInvalidState, p.ID, p.Client)
		}
		c.player = p.ID
		w.players[p.ID] = &p
	}
	for i := range st.Wolves {
		wolf := st.Wolves[i]
		if err := w.claimID(wolf.ID); err != nil {
			return nil, err
		}
		w.wolves[wolf.ID] = &wolf
	}
	for i := range st.Spears {
		s := st.Spears[i]
		if err := w.claimID(s.ID); err != nil {
			return nil, err
		}
		w.spears[s.ID] = &s
	}
	if err := w.checkMounts(); err != nil {
		return nil, err
	}
	for _, rec := range st.Hits {
		w.hits.first[rec.Key] = rec.Tick
	}
	for _, p := range w.players {
		p.Cell = terrain.CellOf(p.Pos)
	}
	w.storeGauges()
	return w, nil
}

func (w *World) claimID(id EntityID) error {
	if id == 0 || id > w.lastID {
		return fmt.Errorf("%w: entity id %d outside generator range %d", ErrInvalidState, id, w.lastID)
	}
	_, p := w.players[id]
	_, wolf := w.wolves[id]
	_, s := w.spears[id]
	if p || wolf || s {
		return fmt.Errorf("%w: duplicate entity id %d", ErrInvalidState, id)
	}
	return nil
}

// checkMounts verifies that every passenger manifest and every mount point
// at each other and that no entity holds more than one relationship.
func (w *World) checkMounts() error {
	for id, s := range w.spears {
		for _, wolfID := range s.Passengers {
			wolf, ok := w.wolves[wolfID]
			if !ok || wolf.Mount != (Mount{Kind: MountCarriedBy, Peer: id}) {
				return fmt.Errorf("%w: spear %d lists passenger %d that does not ride it", ErrInvalidState, id, wolfID)
			}
		}
		switch s.Mount.Kind {
		case MountFree:
		case MountCarriedBy:
			wolf, ok := w.wolves[s.Mount.Peer]
			if !ok || wolf.Mount != (Mount{Kind: MountCarrying, Peer: id}) {
				return fmt.Errorf("%w: spear %d rides wolf %d that does not carry it", ErrInvalidState, id, s.Mount.Peer)
			}
			if len(s.Passengers) != 0 {
				return fmt.Errorf("%w: spent spear %d still lists passengers", ErrInvalidState, id)
			}
		default:
			return fmt.Errorf("%w: spear %d has mount kind %d", ErrInvalidState, id, s.Mount.Kind)
		}
	}
	for id, wolf := range w.wolves {
		switch wolf.Mount.Kind {
		case MountFree:
		case MountCarriedBy:
			s, ok := w.spears[wolf.Mount.Peer]
			if !ok || !s.Flying() || !containsID(s.Passengers, id) {
				return fmt.Errorf("%w: wolf %d rides missing spear %d", ErrInvalidState, id, wolf.Mount.Peer)
			}
		case MountCarrying:
			s, ok := w.spears[wolf.Mount.Peer]
			if !ok || s.Mount != (Mount{Kind: MountCarriedBy, Peer: id}) {
				return fmt.Errorf("%w: wolf %d carries spear %d that does not ride it", ErrInvalidState, id, wolf.Mount.Peer)
			}
		default:
			return fmt.Errorf("%w: wolf %d has mount kind %d", ErrInvalidState, id, wolf.Mount.Kind)
		}
	}
	return nil
}

func containsID(ids []EntityID, id EntityID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
