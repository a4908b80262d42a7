package world

import (
	"buckaneers/server/internal/terrain"
	"buckaneers/server/internal/vmath"
)

// EntityID identifies a player, wolf or spear. Zero means "none".
type EntityID uint64

// ClientID identifies a transport endpoint.
type ClientID string

const (
	TicksPerSecond = 60
	WaffleSlots    = 3
	PlayerHealth   = 1
	WolfHealth     = 3
)

// PlayerSpawn is where every player enters the world.
var PlayerSpawn = vmath.Vec2{X: 0.5, Y: 0.5}

// Streak is the attack charge state of a player.
type Streak uint8

const (
	StreakDormant Streak = iota
	StreakActive
	StreakCooldown
)

func (s Streak) String() string {
	switch s {
	case StreakDormant:
		return "dormant"
	case StreakActive:
		return "active"
	case StreakCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

type AttackState struct {
	Earliest     uint64     `msgpack:"earliest"`
	Latest       uint64     `msgpack:"latest"`
	CooldownOver uint64     `msgpack:"cooldown_over"`
	Streak       Streak     `msgpack:"streak"`
	Dir          vmath.Vec2 `msgpack:"dir"`
}

type DashState struct {
	Start uint64     `msgpack:"start"`
	End   uint64     `msgpack:"end"`
	Dir   vmath.Vec2 `msgpack:"dir"`
}

type Player struct {
	ID       EntityID              `msgpack:"id"`
	Client   ClientID              `msgpack:"client"`
	Pos      vmath.Vec2            `msgpack:"pos"`
	Cell     terrain.Cell          `msgpack:"cell"`
	Velocity vmath.Vec2            `msgpack:"velocity"`
	Dash     DashState             `msgpack:"dash"`
	Attack   AttackState           `msgpack:"attack"`
	Health   int                   `msgpack:"health"`
	Waffle   [WaffleSlots]EntityID `msgpack:"waffle"`
}

// WolfStage is the AI state of a wolf.
type WolfStage uint8

const (
	StageDormant WolfStage = iota
	StageTurning
	StageWalking
	StageLunging
	StageCooldown
)

func (s WolfStage) String() string {
	switch s {
	case StageDormant:
		return "dormant"
	case StageTurning:
		return "turning"
	case StageWalking:
		return "walking"
	case StageLunging:
		return "lunging"
	case StageCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// MountKind describes how an entity relates to the one named by its Mount.
type MountKind uint8

const (
	// MountFree entities have no relationship.
	MountFree MountKind = iota
	// MountCarriedBy entities ride Peer and hold an offset from it.
	MountCarriedBy
	// MountCarrying entities move on their own with Peer riding them.
	MountCarrying
)

// Mount is the single relationship of an entity. A wolf is either carried by
// a flying spear or carrying one spent spear, never both.
type Mount struct {
	Kind MountKind `msgpack:"kind"`
	Peer EntityID  `msgpack:"peer"`
}

// Free reports whether the entity has no relationship.
func (m Mount) Free() bool { return m.Kind == MountFree }

// Carried reports whether the entity rides its peer.
func (m Mount) Carried() bool { return m.Kind == MountCarriedBy }

// Carrying reports whether the peer rides the entity.
func (m Mount) Carrying() bool { return m.Kind == MountCarrying }

// WaffleRef is the slot a wolf holds around a player. Player zero means
// unassigned.
type WaffleRef struct {
	Player EntityID `msgpack:"player"`
	Slot   int      `msgpack:"slot"`
}

func (r WaffleRef) Assigned() bool { return r.Player != 0 }

type Wolf struct {
	ID         EntityID     `msgpack:"id"`
	Pos        vmath.Vec2   `msgpack:"pos"`
	Cell       terrain.Cell `msgpack:"cell"`
	Angle      float64      `msgpack:"angle"`
	HP         int          `msgpack:"hp"`
	HPMax      int          `msgpack:"hp_max"`
	Stage      WolfStage    `msgpack:"stage"`
	StageStart uint64       `msgpack:"stage_start"`
	StageEnd   uint64       `msgpack:"stage_end"`
	AngleFrom  float64      `msgpack:"angle_from"`
	AngleTo    float64      `msgpack:"angle_to"`
	WalkDist   float64      `msgpack:"walk_dist"`
	Waffle     WaffleRef    `msgpack:"waffle"`

	// Mount is CarriedBy a spear while captured, with Offset relative to the
	// spear position. It is Carrying while a spent spear rides the wolf.
	Mount  Mount      `msgpack:"mount"`
	Offset vmath.Vec2 `msgpack:"offset"`
}

type Spear struct {
	ID         EntityID     `msgpack:"id"`
	Owner      EntityID     `msgpack:"owner"`
	Pos        vmath.Vec2   `msgpack:"pos"`
	Cell       terrain.Cell `msgpack:"cell"`
	Dir        vmath.Vec2   `msgpack:"dir"`
	Birth      uint64       `msgpack:"birth"`
	Death      uint64       `msgpack:"death"`
	Passengers []EntityID   `msgpack:"passengers"`

	// Mount is CarriedBy a wolf once the spear is spent and riding it;
	// Offset and Dir are then in the wolf's local frame.
	Mount  Mount      `msgpack:"mount"`
	Offset vmath.Vec2 `msgpack:"offset"`
}

// Flying reports whether the spear is still in flight.
func (s *Spear) Flying() bool { return s.Mount.Free() }
