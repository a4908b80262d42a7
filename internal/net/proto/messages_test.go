package proto

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecodeClientMessage(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want ClientMessage
	}{
		{name: "move", raw: `["move",{"x":1,"y":-0.5}]`, want: Move{X: 1, Y: -0.5}},
		{name: "attack", raw: `["attack",{"x":0.25,"y":0.75}]`, want: Attack{X: 0.25, Y: 0.75}},
		{name: "dash", raw: `["dash",{"x":0,"y":1}]`, want: Dash{X: 0, Y: 1}},
		{name: "dev reset", raw: `["dev_reset"]`, want: DevReset{}},
		{name: "extra fields ignored", raw: `["move",{"x":2,"y":3,"z":9}]`, want: Move{X: 2, Y: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tc.raw))
			if err != nil {
				t.Fatalf("decode %s: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("decode %s = %#v, want %#v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestDecodeClientMessageErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{name: "not json", raw: `move`, want: ErrMalformed},
		{name: "object envelope", raw: `{"type":"move"}`, want: ErrMalformed},
		{name: "empty envelope", raw: `[]`, want: ErrMalformed},
		{name: "numeric tag", raw: `[4,{}]`, want: ErrMalformed},
		{name: "missing payload", raw: `["dash"]`, want: ErrMalformed},
		{name: "bad payload", raw: `["attack","east"]`, want: ErrMalformed},
		{name: "unknown tag", raw: `["shoot_at",{"x":1,"y":1}]`, want: ErrUnknownType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(tc.raw))
			if !errors.Is(err, tc.want) {
				t.Fatalf("decode %s error = %v, want %v", tc.raw, err, tc.want)
			}
		})
	}
}

func TestEncodeClientMessage(t *testing.T) {
	data, err := EncodeClientMessage(Attack{X: 0.5, Y: 0.25})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data) != `["attack",{"x":0.5,"y":0.25}]` {
		t.Fatalf("unexpected encoding %s", data)
	}
	data, err = EncodeClientMessage(DevReset{})
	if err != nil {
		t.Fatalf("encode reset: %v", err)
	}
	if string(data) != `["dev_reset"]` {
		t.Fatalf("unexpected reset encoding %s", data)
	}
}

func sampleTick() Tick {
	return Tick{
		Tick:     42,
		GrabGrid: "0101",
		MapSeed:  51,
		Players: []PlayerView{
			{ID: 3, X: 0.5, Y: 0.5, Attack: &AttackView{Prog: 0.5, DX: 1}},
			{ID: 4, X: 0.1, Y: 0.2},
		},
		Spears: []SpearView{{ID: 7, X: 0.3, Y: 0.4, TickDeath: 90}},
		Wolves: []WolfView{
			{ID: 9, X: 0.6, Y: 0.7, Angle: 1.5, HP: 2.0 / 3.0, Passengers: []PassengerView{{ID: 11, X: 0.61, Y: 0.71, Angle: 0.2}}},
			{ID: 10, X: 0.2, Y: 0.2, HP: 1},
		},
		You: 3,
	}
}

func TestJSONTickShape(t *testing.T) {
	data, err := JSONCodec{}.EncodeTick(sampleTick())
	if err != nil {
		t.Fatalf("encode tick: %v", err)
	}
	var envelope []map[string]any
	if err := json.Unmarshal(data, &envelope); err == nil {
		t.Fatalf("tick envelope must start with a string tag")
	}
	if !strings.HasPrefix(string(data), `["tick",{`) {
		t.Fatalf("unexpected envelope %s", data)
	}
	for _, field := range []string{`"grab_grid":"0101"`, `"map_seed":51`, `"you":3`, `"tick_death":90`, `"passengers":[]`} {
		if !strings.Contains(string(data), field) {
			t.Fatalf("encoded tick missing %s: %s", field, data)
		}
	}
	if strings.Count(string(data), `"attack"`) != 1 {
		t.Fatalf("expected only the charging player to carry an attack: %s", data)
	}

	decoded, err := JSONCodec{}.DecodeTick(data)
	if err != nil {
		t.Fatalf("decode tick: %v", err)
	}
	if decoded.Tick != 42 || len(decoded.Players) != 2 || decoded.Players[0].Attack == nil || decoded.Wolves[0].Passengers[0].ID != 11 {
		t.Fatalf("unexpected decoded tick %+v", decoded)
	}
}

func TestEmptyTickEncodesArrays(t *testing.T) {
	data, err := JSONCodec{}.EncodeTick(Tick{You: NoPlayer})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, field := range []string{`"players":[]`, `"spears":[]`, `"wolves":[]`, `"you":-1`} {
		if !strings.Contains(string(data), field) {
			t.Fatalf("encoded tick missing %s: %s", field, data)
		}
	}
}

func TestMsgpackCodec(t *testing.T) {
	codec, err := CodecByName(CodecMsgpack)
	if err != nil {
		t.Fatalf("codec lookup: %v", err)
	}
	if !codec.Binary() {
		t.Fatalf("msgpack frames must be binary")
	}
	data, err := codec.EncodeTick(sampleTick())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := codec.DecodeTick(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.You != 3 || len(decoded.Wolves) != 2 || decoded.Spears[0].TickDeath != 90 {
		t.Fatalf("unexpected decoded tick %+v", decoded)
	}

	frame, err := codec.EncodeClient(Dash{X: 1})
	if err != nil {
		t.Fatalf("encode client: %v", err)
	}
	msg, err := codec.DecodeClient(frame)
	if err != nil {
		t.Fatalf("decode client: %v", err)
	}
	if msg != (Dash{X: 1}) {
		t.Fatalf("unexpected client message %#v", msg)
	}

	if _, err := CodecByName("xml"); err == nil {
		t.Fatalf("expected unknown codec to fail")
	}
}

func TestSchemaListsPayloads(t *testing.T) {
	schema := Schema()
	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	for _, name := range []string{"Move", "Attack", "Dash", "Tick", "WolfView", "tick_death"} {
		if !strings.Contains(string(data), name) {
			t.Fatalf("schema missing %s", name)
		}
	}
}
