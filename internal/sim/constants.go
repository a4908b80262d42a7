package sim

import (
	"buckaneers/server/internal/terrain"
	"buckaneers/server/internal/vmath"
	"buckaneers/server/internal/world"
)

const ticksPerSecond = world.TicksPerSecond

// Player kinematics.
const (
	PlayerSpeed = 0.003
	DashTicks   = ticksPerSecond * 35 / 100
	DashDist    = 2.4 * terrain.TileSize
)

// Attack streak timing.
const (
	AttackTimeoutTicks  = ticksPerSecond * 2 / 10
	AttackPrepareTicks  = ticksPerSecond * 8 / 10
	AttackCooldownTicks = ticksPerSecond * 15 / 10
	AttackDisplayMax    = 1.1
)

// Spear flight.
const (
	playerSizeRatio = 0.7

	SpearReleaseFwd       = 0.04 * playerSizeRatio
	SpearReleaseOut       = 0.027 * playerSizeRatio
	SpearThrowDist        = 0.35
	SpearThrowTicks       = ticksPerSecond * 8 / 10
	SpearDragPerPassenger = 0.3
	SpearDamageRadius     = 0.435 * terrain.TileSize
	SpearCaptureRadius    = 0.4 * terrain.TileSize
)

// Wolf behaviour.
const (
	WolfRingRadius      = 2 * terrain.TileSize
	WolfRingSnap        = 0.5 * terrain.TileSize
	WolfLungeDist       = 6 * terrain.TileSize
	WolfLungeTicks      = ticksPerSecond * 12 / 10
	WolfLungeRangeSlack = 1.1
	WolfAlignDot        = 0.9
	WolfLungeWindUp     = 0.87
	WolfLungeRecoil     = -0.2
	WolfLungeHoming     = 0.4 * WolfLungeWindUp
	WolfLungeTurnRate   = 0.02 * vmath.Tau
	WolfLungeHitRadius  = 0.435 * terrain.TileSize
	WolfWalkDistMax     = 2 * terrain.TileSize
	WolfWalkTicks       = ticksPerSecond * 3 / 10
	WolfCooldownTicks   = ticksPerSecond * 14 / 10
	WolfTurnTicksMax    = ticksPerSecond * 4 / 10
)

// BacklogCapTicks is the number of owed ticks past which the driver drops
// its backlog instead of catching up.
const BacklogCapTicks = 100
