package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"buckaneers/server/internal/net/proto"
	"buckaneers/server/internal/persist"
	"buckaneers/server/internal/sim"
	"buckaneers/server/internal/terrain"
	"buckaneers/server/internal/world"
	"buckaneers/server/logging/network"
	"buckaneers/server/logging/sinks"
)

func newTestHub(t *testing.T, cfg Config, store persist.Store) (*Hub, *sinks.MemorySink) {
	t.Helper()
	memory := sinks.NewMemorySink()
	h, err := New(context.Background(), cfg, Deps{
		Publisher: memory,
		Store:     store,
		Terrain:   terrain.Open,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return h, memory
}

func TestSendReceiveTick(t *testing.T) {
	h, _ := newTestHub(t, Config{}, nil)
	payload, err := proto.EncodeClientMessage(proto.Move{X: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !h.Send("a", payload) {
		t.Fatalf("Send rejected the frame")
	}
	if _, ok := h.Receive("a"); ok {
		t.Fatalf("snapshot available before any tick")
	}
	result := h.Tick()
	if result.Tick != 1 || result.Messages != 1 {
		t.Fatalf("unexpected step result: %+v", result)
	}
	data, ok := h.Receive("a")
	if !ok {
		t.Fatalf("no snapshot after tick")
	}
	tick, err := proto.JSONCodec{}.DecodeTick(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tick.Tick != 0 || tick.You == proto.NoPlayer {
		t.Fatalf("unexpected snapshot: %+v", tick)
	}
}

func TestReceiveRegistersUnknownClient(t *testing.T) {
	h, _ := newTestHub(t, Config{}, nil)
	h.Receive("watcher")
	h.Tick()
	if got := h.Diagnostics().Counts.Players; got != 1 {
		t.Fatalf("receiving client should spawn, players=%d", got)
	}
}

func TestSendRejectsWhenInboxFull(t *testing.T) {
	h, memory := newTestHub(t, Config{World: world.Config{MailboxCapacity: 2}}, nil)
	for i := 0; i < 2; i++ {
		if !h.Send("a", []byte(`["dash",{"x":1,"y":0}]`)) {
			t.Fatalf("send %d rejected", i)
		}
	}
	if h.Send("a", []byte(`["dash",{"x":1,"y":0}]`)) {
		t.Fatalf("full inbox accepted a frame")
	}
	if memory.Count(network.EventMailboxOverflow) != 1 {
		t.Fatalf("expected overflow event")
	}
}

func TestSubscribeSignalsAfterTick(t *testing.T) {
	h, _ := newTestHub(t, Config{}, nil)
	h.Register("a", proto.CodecMsgpack)
	ready := h.Subscribe("a")
	h.Tick()
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatalf("no signal after tick")
	}
	data, ok := h.Receive("a")
	if !ok {
		t.Fatalf("signalled without a frame")
	}
	if _, err := (proto.MsgpackCodec{}).DecodeTick(data); err != nil {
		t.Fatalf("registered codec not used: %v", err)
	}
}

func TestDisconnectRemovesPlayer(t *testing.T) {
	h, _ := newTestHub(t, Config{}, nil)
	h.Register("a", "")
	h.Tick()
	if !h.Disconnect("a") {
		t.Fatalf("Disconnect reported unknown client")
	}
	if got := h.Diagnostics().Counts; got.Players != 0 || got.Clients != 0 {
		t.Fatalf("client survived disconnect: %+v", got)
	}
}

func TestPeriodicSaveAndRestore(t *testing.T) {
	store := persist.NewMemoryStore()
	cfg := Config{World: world.Config{Seed: 3, WolfCount: 2}, SaveIntervalTicks: 10}
	h, _ := newTestHub(t, cfg, store)
	h.Register("a", "")
	for i := 0; i < 25; i++ {
		h.Tick()
	}
	if store.Saves() != 2 {
		t.Fatalf("expected 2 periodic saves, got %d", store.Saves())
	}
	if err := h.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	restored, _ := newTestHub(t, cfg, store)
	diag := restored.Diagnostics()
	if diag.Tick != 25 || diag.Counts.Players != 1 || diag.Counts.Wolves != 2 {
		t.Fatalf("restored diagnostics: %+v", diag)
	}
	if next := restored.Tick(); next.Tick != 26 {
		t.Fatalf("restored hub resumed at tick %d", next.Tick)
	}
}

func TestResetKeepsTickAndSaves(t *testing.T) {
	store := persist.NewMemoryStore()
	h, memory := newTestHub(t, Config{World: world.Config{WolfCount: 1}}, store)
	h.Register("a", "")
	h.Tick()
	applied := h.Reset(world.Config{Seed: 300, WolfCount: 3, DeathPolicy: "REMOVE"})
	if applied.Seed != 300&255 || applied.DeathPolicy != world.DeathRemove {
		t.Fatalf("reset config not normalized: %+v", applied)
	}
	result := h.Tick()
	if result.Tick != 2 {
		t.Fatalf("tick went backwards after reset: %d", result.Tick)
	}
	if got := h.Diagnostics().Counts; got.Wolves != 3 || got.Players != 1 {
		t.Fatalf("unexpected population after reset: %+v", got)
	}
	if store.Saves() != 1 || store.Clears() != 1 {
		t.Fatalf("reset should clear then save, saves=%d clears=%d", store.Saves(), store.Clears())
	}
	saved, err := store.Load(context.Background())
	if err != nil || saved.Config.Seed != 300&255 {
		t.Fatalf("store should hold the reset world: %+v %v", saved, err)
	}
	if h.Config().WolfCount != 3 {
		t.Fatalf("config not updated")
	}
	if memory.Count("lifecycle.world_reset") != 1 {
		t.Fatalf("expected world reset event")
	}
}

func TestConcurrentSendersAndDriver(t *testing.T) {
	h, _ := newTestHub(t, Config{World: world.Config{WolfCount: 2}}, nil)
	driver := sim.NewDriver(h, sim.DriverConfig{TickRate: 60}, sim.DriverHooks{}, sim.Deps{})

	var wg sync.WaitGroup
	for _, id := range []world.ClientID{"a", "b", "c"} {
		wg.Add(1)
		go func(id world.ClientID) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h.Send(id, []byte(`["move",{"x":1,"y":0}]`))
				h.Receive(id)
			}
		}(id)
	}
	start := time.Unix(0, 0)
	driver.Advance(start)
	for i := 1; i <= 30; i++ {
		driver.Advance(start.Add(time.Duration(i) * time.Second / 60))
	}
	wg.Wait()
	if got := h.Diagnostics().Tick; got != 30 {
		t.Fatalf("tick = %d, want 30", got)
	}
}

func TestSubscribeAfterTickSignalsPendingFrames(t *testing.T) {
	h, _ := newTestHub(t, Config{}, nil)
	h.Register("a", "")
	h.Tick()
	select {
	case <-h.Subscribe("a"):
	case <-time.After(time.Second):
		t.Fatalf("late subscriber missed the queued frame")
	}
}

func TestDevResetClearsStore(t *testing.T) {
	store := persist.NewMemoryStore()
	h, _ := newTestHub(t, Config{World: world.Config{WolfCount: 1, AllowDevReset: true}}, store)
	h.Register("a", "")
	h.Tick()
	h.Tick()
	if store.Clears() != 0 {
		t.Fatalf("store cleared without a reset")
	}

	payload, err := proto.EncodeClientMessage(proto.DevReset{})
	if err != nil {
		t.Fatalf("encode dev_reset: %v", err)
	}
	h.Send("a", payload)
	h.Tick()
	if store.Clears() != 1 || store.Saves() != 1 {
		t.Fatalf("dev_reset should clear then save, saves=%d clears=%d", store.Saves(), store.Clears())
	}
	h.Tick()
	if store.Clears() != 1 {
		t.Fatalf("store cleared again without a reset")
	}
}

func TestConnectRefusesLiveID(t *testing.T) {
	h, _ := newTestHub(t, Config{}, nil)
	if _, err := h.Connect("a", "json"); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if _, err := h.Connect("a", "msgpack"); !errors.Is(err, ErrClientConnected) {
		t.Fatalf("second Connect error = %v, want ErrClientConnected", err)
	}
	h.Disconnect("a")
	ready, err := h.Connect("a", "json")
	if err != nil {
		t.Fatalf("Connect after Disconnect returned error: %v", err)
	}
	h.Tick()
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatalf("reconnected client not signalled")
	}
}
