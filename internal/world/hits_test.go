package world

import "testing"

func TestHitTableDedup(t *testing.T) {
	hits := NewHitTable()
	if !hits.Record(10, 1, 5) {
		t.Fatalf("first contact should be recorded")
	}
	if hits.Record(10, 1, 6) {
		t.Fatalf("repeat contact should be ignored")
	}
	if !hits.Record(10, 2, 6) || !hits.Record(11, 1, 6) {
		t.Fatalf("distinct pairs should be recorded")
	}
	if hits.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", hits.Len())
	}
	for _, rec := range hits.records() {
		if rec.Key == (HitKey{Attacker: 10, Victim: 1}) && rec.Tick != 5 {
			t.Fatalf("first contact tick overwritten: %d", rec.Tick)
		}
	}

	hits.ForgetAttacker(10)
	if hits.Seen(10, 1) || hits.Seen(10, 2) {
		t.Fatalf("attacker entries survived")
	}
	if !hits.Seen(11, 1) {
		t.Fatalf("other attacker entries removed")
	}
}
