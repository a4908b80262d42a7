package world

// HitKey pairs the entity that dealt a hit with the entity that took it.
type HitKey struct {
	Attacker EntityID `msgpack:"attacker"`
	Victim   EntityID `msgpack:"victim"`
}

// HitRecord is one persisted hit table entry.
type HitRecord struct {
	Key  HitKey `msgpack:"key"`
	Tick uint64 `msgpack:"tick"`
}

// HitTable remembers the tick of the first contact for each pair.
type HitTable struct {
	first map[HitKey]uint64
}

func NewHitTable() *HitTable {
	return &HitTable{first: make(map[HitKey]uint64)}
}

// Record stores the first contact between attacker and victim. It returns
// false when the pair already hit each other.
func (h *HitTable) Record(attacker, victim EntityID, tick uint64) bool {
	key := HitKey{Attacker: attacker, Victim: victim}
	if _, seen := h.first[key]; seen {
		return false
	}
	h.first[key] = tick
	return true
}

// Seen reports whether the pair already hit each other.
func (h *HitTable) Seen(attacker, victim EntityID) bool {
	_, seen := h.first[HitKey{Attacker: attacker, Victim: victim}]
	return seen
}

// ForgetAttacker drops every entry of an attacker that can no longer hit.
func (h *HitTable) ForgetAttacker(attacker EntityID) {
	for key := range h.first {
		if key.Attacker == attacker {
			delete(h.first, key)
		}
	}
}

func (h *HitTable) Len() int {
	return len(h.first)
}

func (h *HitTable) records() []HitRecord {
	out := make([]HitRecord, 0, len(h.first))
	for key, tick := range h.first {
		out = append(out, HitRecord{Key: key, Tick: tick})
	}
	return out
}
