package terrain

import (
	"math"
	"strings"
)

const (
	TileCount    = 22
	TileSize     = 1.0 / TileCount
	HardsPerTile = 2
	HardCount    = TileCount * HardsPerTile
	HardSize     = TileSize / HardsPerTile
)

// Capability bits stored per subtile.
const (
	Walk uint8 = 1 << iota
	Fly
)

const (
	walkThreshold  = 0.17
	ruinsThreshold = 0.35
	pierGridTiles  = 10
	chamberTiles   = 5
	pierMinNoise   = 0.55
)

// Mask is the navigation grid of one map seed. Walk is read-only after Build;
// Grab depletes as players pick up scrap.
type Mask struct {
	Seed int
	Walk []uint8
	Grab []uint8
}

// Build derives the navigation and scrap grids for seed. Identical seeds
// always produce identical grids.
func Build(seed int) *Mask {
	seed &= 255
	m := &Mask{
		Seed: seed,
		Walk: make([]uint8, HardCount*HardCount),
		Grab: make([]uint8, TileCount*TileCount),
	}
	for i := range m.Walk {
		m.Walk[i] = Fly
	}

	g := generator{seed: seed}

	for x := 0; x < TileCount; x++ {
		for y := 0; y < TileCount; y++ {
			if g.island(x, y) > walkThreshold {
				continue
			}
			m.fillTile(x, y, Walk|Fly)
		}
	}

	for x := 0; x < TileCount; x++ {
		for y := 0; y < TileCount; y++ {
			island := g.island(x, y)
			if island < walkThreshold*0.8 || island > walkThreshold*1.8 {
				continue
			}
			if g.pier(x, y) < pierMinNoise {
				continue
			}
			if x%pierGridTiles == 0 || y%pierGridTiles == 0 {
				m.fillTile(x, y, Walk|Fly)
			}
		}
	}

	for x := 0; x < TileCount; x++ {
		for y := 0; y < TileCount; y++ {
			if g.island(x, y) > walkThreshold*0.8 || g.ruins(x, y) > ruinsThreshold {
				continue
			}
			m.wall(x, y)
		}
	}

	for x := 0; x < TileCount; x++ {
		for y := 0; y < TileCount; y++ {
			if g.island(x, y) > walkThreshold*0.8 {
				continue
			}
			ruins := g.ruins(x, y)
			if ruins > ruinsThreshold*1.56 && ruins < ruinsThreshold*1.65 {
				m.Grab[y*TileCount+x] = 1
			}
			if ruins > ruinsThreshold*2.2 && ruins < ruinsThreshold*3.0 && (x^y)%2 == 0 {
				m.fillTile(x, y, 0)
			}
		}
	}
	return m
}

// wall blocks the subtiles along the open edges of a chamber tile and the
// matching subtiles of the neighbouring tile.
func (m *Mask) wall(x, y int) {
	cx := x % chamberTiles
	cy := y % chamberTiles
	hx := HardsPerTile * x
	hy := HardsPerTile * y
	if cx == 0 {
		m.set(hx+1, hy+1, 0)
		m.set(hx+1, hy, 0)
	}
	if cy == 0 {
		m.set(hx+1, hy, 0)
		m.set(hx, hy, 0)
	}
	if cx == 0 {
		m.set(hx+2, hy, 0)
		m.set(hx+2, hy+1, 0)
	}
	if cy == 0 {
		m.set(hx, hy-1, 0)
		m.set(hx+1, hy-1, 0)
	}
}

func (m *Mask) fillTile(x, y int, bits uint8) {
	hx := HardsPerTile * x
	hy := HardsPerTile * y
	m.set(hx, hy, bits)
	m.set(hx, hy+1, bits)
	m.set(hx+1, hy, bits)
	m.set(hx+1, hy+1, bits)
}

func (m *Mask) set(hx, hy int, bits uint8) {
	if hx < 0 || hy < 0 || hx >= HardCount || hy >= HardCount {
		return
	}
	m.Walk[hy*HardCount+hx] = bits
}

// At returns the capability bits of subtile (hx, hy). Cells outside the map
// are blocked.
func (m *Mask) At(hx, hy int) uint8 {
	if m == nil || hx < 0 || hy < 0 || hx >= HardCount || hy >= HardCount {
		return 0
	}
	return m.Walk[hy*HardCount+hx]
}

// Allows reports whether subtile (hx, hy) carries every bit in need.
func (m *Mask) Allows(hx, hy int, need uint8) bool {
	return m.At(hx, hy)&need == need
}

// AllowsWrapped is Allows with (hx, hy) folded onto the map first.
func (m *Mask) AllowsWrapped(hx, hy int, need uint8) bool {
	return m.Allows(wrapIndex(hx), wrapIndex(hy), need)
}

func wrapIndex(i int) int {
	i %= HardCount
	if i < 0 {
		i += HardCount
	}
	return i
}

// GrabAt reports whether tile (tx, ty) still holds scrap.
func (m *Mask) GrabAt(tx, ty int) bool {
	if m == nil || tx < 0 || ty < 0 || tx >= TileCount || ty >= TileCount {
		return false
	}
	return m.Grab[ty*TileCount+tx] == 1
}

// ConsumeGrab clears the scrap on tile (tx, ty) and reports whether any was
// present.
func (m *Mask) ConsumeGrab(tx, ty int) bool {
	if !m.GrabAt(tx, ty) {
		return false
	}
	m.Grab[ty*TileCount+tx] = 0
	return true
}

// EncodeGrab renders the scrap grid as one digit per tile, row-major.
func (m *Mask) EncodeGrab() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	b.Grow(len(m.Grab))
	for _, v := range m.Grab {
		b.WriteByte('0' + v)
	}
	return b.String()
}

// HardCell returns the subtile containing p.
func HardCell(x, y float64) (int, int) {
	return int(math.Floor(x / HardSize)), int(math.Floor(y / HardSize))
}

// TileCell returns the tile containing p.
func TileCell(x, y float64) (int, int) {
	return int(math.Floor(x / TileSize)), int(math.Floor(y / TileSize))
}

type generator struct {
	seed int
}

func (g generator) island(x, y int) float64 {
	dx := float64(x) * TileSize
	dy := float64(y) * TileSize
	circ := math.Hypot(dx-0.5, dy-0.5) / math.Hypot(0.5, 0.5)
	return circ * noise01(dx, dy, g.seed)
}

func (g generator) pier(x, y int) float64 {
	dx := float64(x) * TileSize * 1.7
	dy := float64(y) * TileSize * 1.7
	return noise01(dx, dy, (g.seed+2)%256)
}

func (g generator) ruins(x, y int) float64 {
	dx := float64(x) * TileSize * 2
	dy := float64(y) * TileSize * 2
	return noise01(dx, dy, (g.seed+1)%256)
}

// Open returns a mask without obstacles or scrap.
func Open(seed int) *Mask {
	m := &Mask{
		Seed: seed & 255,
		Walk: make([]uint8, HardCount*HardCount),
		Grab: make([]uint8, TileCount*TileCount),
	}
	for i := range m.Walk {
		m.Walk[i] = Walk | Fly
	}
	return m
}
