package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	// NoPlayer is reported in Tick.You while the client controls nothing.
	NoPlayer int64 = -1
)

// Client message type identifiers.
const (
	TypeMove     = "move"
	TypeAttack   = "attack"
	TypeDash     = "dash"
	TypeDevReset = "dev_reset"
)

// TypeTick identifies the per-tick snapshot sent to clients.
const TypeTick = "tick"

var (
	// ErrUnknownType reports a well-formed envelope carrying an unrecognised tag.
	ErrUnknownType = errors.New("proto: unknown message type")
	// ErrMalformed reports an envelope that could not be parsed.
	ErrMalformed = errors.New("proto: malformed message")
)

// ClientMessage is the closed set of intents a client can send. Exactly one
// of Move, Attack, Dash and DevReset implements it.
type ClientMessage interface {
	Type() string
	clientMessage()
}

// Move replaces the sender's velocity intent.
type Move struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Attack aims the sender's attack streak at a world position.
type Attack struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Dash starts a dash along a direction.
type Dash struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// DevReset asks a development server to discard its world.
type DevReset struct{}

func (Move) Type() string     { return TypeMove }
func (Attack) Type() string   { return TypeAttack }
func (Dash) Type() string     { return TypeDash }
func (DevReset) Type() string { return TypeDevReset }

func (Move) clientMessage()     {}
func (Attack) clientMessage()   {}
func (Dash) clientMessage()     {}
func (DevReset) clientMessage() {}

// Tick is the snapshot one client receives each tick.
type Tick struct {
	Tick     uint64       `json:"tick" msgpack:"tick"`
	GrabGrid string       `json:"grab_grid" msgpack:"grab_grid"`
	MapSeed  int          `json:"map_seed" msgpack:"map_seed"`
	Players  []PlayerView `json:"players" msgpack:"players"`
	Spears   []SpearView  `json:"spears" msgpack:"spears"`
	Wolves   []WolfView   `json:"wolves" msgpack:"wolves"`
	You      int64        `json:"you" msgpack:"you"`
}

type PlayerView struct {
	ID     uint64      `json:"id" msgpack:"id"`
	X      float64     `json:"x" msgpack:"x"`
	Y      float64     `json:"y" msgpack:"y"`
	Attack *AttackView `json:"attack,omitempty" msgpack:"attack,omitempty"`
}

// AttackView describes a charging attack. Prog runs from 0 to roughly 1.1.
type AttackView struct {
	Prog float64 `json:"prog" msgpack:"prog"`
	DX   float64 `json:"dx" msgpack:"dx"`
	DY   float64 `json:"dy" msgpack:"dy"`
}

type SpearView struct {
	ID        uint64  `json:"id" msgpack:"id"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	TickDeath uint64  `json:"tick_death" msgpack:"tick_death"`
}

// WolfView is a wolf in world space. HP is the remaining fraction of its
// maximum health.
type WolfView struct {
	ID         uint64          `json:"id" msgpack:"id"`
	X          float64         `json:"x" msgpack:"x"`
	Y          float64         `json:"y" msgpack:"y"`
	Angle      float64         `json:"angle" msgpack:"angle"`
	HP         float64         `json:"hp" msgpack:"hp"`
	Passengers []PassengerView `json:"passengers" msgpack:"passengers"`
}

// PassengerView is a spear riding a wolf, already transformed to world space.
type PassengerView struct {
	ID    uint64  `json:"id" msgpack:"id"`
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	Angle float64 `json:"angle" msgpack:"angle"`
}

// DecodeClientMessage parses a JSON `["tag", payload]` envelope.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(envelope) == 0 {
		return nil, fmt.Errorf("%w: empty envelope", ErrMalformed)
	}
	var tag string
	if err := json.Unmarshal(envelope[0], &tag); err != nil {
		return nil, fmt.Errorf("%w: tag: %v", ErrMalformed, err)
	}
	var payload json.RawMessage
	if len(envelope) > 1 {
		payload = envelope[1]
	}
	return decodeTagged(tag, payload != nil, func(v any) error {
		return json.Unmarshal(payload, v)
	})
}

// EncodeClientMessage renders msg as a JSON envelope.
func EncodeClientMessage(msg ClientMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	}
	if _, ok := msg.(DevReset); ok {
		return json.Marshal([]any{msg.Type()})
	}
	return json.Marshal([]any{msg.Type(), msg})
}

// decodeTagged maps a tag onto its variant. Unknown tags are reported with
// ErrUnknownType so callers can ignore them.
func decodeTagged(tag string, hasPayload bool, unmarshal func(any) error) (ClientMessage, error) {
	switch tag {
	case TypeMove:
		var msg Move
		if err := decodePayload(tag, hasPayload, unmarshal, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeAttack:
		var msg Attack
		if err := decodePayload(tag, hasPayload, unmarshal, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeDash:
		var msg Dash
		if err := decodePayload(tag, hasPayload, unmarshal, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeDevReset:
		return DevReset{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, tag)
	}
}

func decodePayload(tag string, hasPayload bool, unmarshal func(any) error, dst any) error {
	if !hasPayload {
		return fmt.Errorf("%w: %s without payload", ErrMalformed, tag)
	}
	if err := unmarshal(dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, tag, err)
	}
	return nil
}
