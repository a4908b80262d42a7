package proto

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec names accepted on the websocket query string.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec converts between wire frames and protocol values.
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary websocket messages.
	Binary() bool
	EncodeTick(Tick) ([]byte, error)
	DecodeTick([]byte) (Tick, error)
	EncodeClient(ClientMessage) ([]byte, error)
	DecodeClient([]byte) (ClientMessage, error)
}

// CodecByName returns the codec registered under name, defaulting to JSON
// for an empty name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// JSONCodec is the text protocol used by browser clients.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Binary() bool { return false }

func (JSONCodec) EncodeTick(t Tick) ([]byte, error) {
	return json.Marshal([]any{TypeTick, normalizeTick(t)})
}

func (JSONCodec) DecodeTick(data []byte) (Tick, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Tick{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(envelope) != 2 {
		return Tick{}, fmt.Errorf("%w: tick envelope has %d elements", ErrMalformed, len(envelope))
	}
	var tag string
	if err := json.Unmarshal(envelope[0], &tag); err != nil || tag != TypeTick {
		return Tick{}, fmt.Errorf("%w: expected %q", ErrUnknownType, TypeTick)
	}
	var tick Tick
	if err := json.Unmarshal(envelope[1], &tick); err != nil {
		return Tick{}, fmt.Errorf("%w: tick payload: %v", ErrMalformed, err)
	}
	return tick, nil
}

func (JSONCodec) EncodeClient(msg ClientMessage) ([]byte, error) {
	return EncodeClientMessage(msg)
}

func (JSONCodec) DecodeClient(data []byte) (ClientMessage, error) {
	return DecodeClientMessage(data)
}

// MsgpackCodec carries the same envelopes as MessagePack arrays.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }

func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) EncodeTick(t Tick) ([]byte, error) {
	return msgpack.Marshal([]any{TypeTick, normalizeTick(t)})
}

func (MsgpackCodec) DecodeTick(data []byte) (Tick, error) {
	var envelope []msgpack.RawMessage
	if err := msgpack.Unmarshal(data, &envelope); err != nil {
		return Tick{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(envelope) != 2 {
		return Tick{}, fmt.Errorf("%w: tick envelope has %d elements", ErrMalformed, len(envelope))
	}
	var tag string
	if err := msgpack.Unmarshal(envelope[0], &tag); err != nil || tag != TypeTick {
		return Tick{}, fmt.Errorf("%w: expected %q", ErrUnknownType, TypeTick)
	}
	var tick Tick
	if err := msgpack.Unmarshal(envelope[1], &tick); err != nil {
		return Tick{}, fmt.Errorf("%w: tick payload: %v", ErrMalformed, err)
	}
	return tick, nil
}

func (MsgpackCodec) EncodeClient(msg ClientMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	}
	if _, ok := msg.(DevReset); ok {
		return msgpack.Marshal([]any{msg.Type()})
	}
	return msgpack.Marshal([]any{msg.Type(), msg})
}

func (MsgpackCodec) DecodeClient(data []byte) (ClientMessage, error) {
	var envelope []msgpack.RawMessage
	if err := msgpack.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(envelope) == 0 {
		return nil, fmt.Errorf("%w: empty envelope", ErrMalformed)
	}
	var tag string
	if err := msgpack.Unmarshal(envelope[0], &tag); err != nil {
		return nil, fmt.Errorf("%w: tag: %v", ErrMalformed, err)
	}
	var payload msgpack.RawMessage
	if len(envelope) > 1 {
		payload = envelope[1]
	}
	return decodeTagged(tag, payload != nil, func(v any) error {
		return msgpack.Unmarshal(payload, v)
	})
}

// normalizeTick replaces nil slices so every list encodes as an array.
func normalizeTick(t Tick) Tick {
	if t.Players == nil {
		t.Players = []PlayerView{}
	}
	if t.Spears == nil {
		t.Spears = []SpearView{}
	}
	if t.Wolves == nil {
		t.Wolves = []WolfView{}
	}
	for i := range t.Wolves {
		if t.Wolves[i].Passengers == nil {
			t.Wolves[i].Passengers = []PassengerView{}
		}
	}
	return t
}
