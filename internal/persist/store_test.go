package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"buckaneers/server/internal/terrain"
	"buckaneers/server/internal/vmath"
	"buckaneers/server/internal/world"
)

func populatedWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.Config{Seed: 9, WolfCount: 3, DeathPolicy: world.DeathRemove}, world.Deps{Terrain: terrain.Open})
	if err != nil {
		t.Fatalf("world.New returned error: %v", err)
	}
	w.RegisterClient("a")
	w.SetClientCodec("a", "msgpack")
	p := w.SpawnPlayer("a")
	w.Assign(p, 1, w.Wolves()[0])
	s := w.SpawnSpear(p.ID, vmath.Vec2{X: 0.4, Y: 0.4}, vmath.Vec2{X: 1}, w.Tick()+48)
	w.Capture(s.ID, w.Wolves()[1].ID)
	w.Hits().Record(s.ID, w.Wolves()[1].ID, w.Tick())
	for i := 0; i < 5; i++ {
		w.AdvanceTick()
	}
	return w
}

func TestStoresRoundTrip(t *testing.T) {
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested", "world.msgpack")),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("empty store Load error = %v, want ErrNotFound", err)
			}

			w := populatedWorld(t)
			if err := store.Save(ctx, w.Export()); err != nil {
				t.Fatalf("Save returned error: %v", err)
			}
			st, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			restored, err := world.Restore(st, world.Deps{Terrain: terrain.Open})
			if err != nil {
				t.Fatalf("Restore returned error: %v", err)
			}
			if restored.Tick() != w.Tick() || restored.Counts() != w.Counts() {
				t.Fatalf("restored tick=%d counts=%+v, want tick=%d counts=%+v", restored.Tick(), restored.Counts(), w.Tick(), w.Counts())
			}
			if restored.ClientCodec("a") != "msgpack" || restored.Config().DeathPolicy != world.DeathRemove {
				t.Fatalf("client codec or config lost")
			}
			if len(restored.FlyingSpears()) != 1 || len(restored.FlyingSpears()[0].Passengers) != 1 {
				t.Fatalf("carried wolf lost in round trip")
			}

			if err := store.Clear(ctx); err != nil {
				t.Fatalf("Clear returned error: %v", err)
			}
			if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("cleared store Load error = %v, want ErrNotFound", err)
			}
			if err := store.Clear(ctx); err != nil {
				t.Fatalf("second Clear returned error: %v", err)
			}
		})
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.msgpack")
	if err := os.WriteFile(path, []byte{0xc1, 0x00}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_, err := NewFileStore(path).Load(context.Background())
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("corrupt file Load error = %v", err)
	}
}

func TestFileStoreLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "world.msgpack"))
	if err := store.Save(context.Background(), populatedWorld(t).Export()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "world.msgpack" {
		t.Fatalf("unexpected files after save: %v", entries)
	}
}

func TestStoresHonourCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemoryStore().Save(ctx, &world.State{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Save with cancelled context = %v", err)
	}
	if _, err := NewFileStore(filepath.Join(t.TempDir(), "x")).Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load with cancelled context = %v", err)
	}
}
