package field

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Geospatial points are projected to spherical mercator and encoded into
// quadkey tiles, so a tile's quadkey is a prefix of all its subtiles and
// containment checks reduce to prefix queries over the term dictionary.

const (
	maxTilePrecision = 30
	circumference    = 2 * math.Pi * 6378137
)

// LngLat is a geodetic coordinate pair accepted as a point-field value.
type LngLat struct {
	Lng float64
	Lat float64
}

func (p LngLat) String() string {
	return fmt.Sprintf("%g,%g", p.Lng, p.Lat)
}

// MercatorPoint is a point in spherical mercator meters.
type MercatorPoint struct {
	X float64
	Y float64
}

// NewPoint projects geodetic coordinates to spherical mercator.
func NewPoint(lng, lat float64) MercatorPoint {
	y := math.Log(math.Tan((lat+90)*math.Pi/360)) * 180 / math.Pi
	return MercatorPoint{
		X: lng * circumference / 360,
		Y: y * circumference / 360,
	}
}

// Distance returns the euclidean distance to other in meters.
func (p MercatorPoint) Distance(other MercatorPoint) float64 {
	dx, dy := p.X-other.X, p.Y-other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Tile returns the enclosing tile at the given zoom level.
func (p MercatorPoint) Tile(zoom int) Tile {
	size := 1 << zoom
	clamp := func(m float64) int {
		t := int(math.Ceil((m/circumference+0.5)*float64(size))) - 1
		if t < 0 {
			return 0
		}
		if t >= size {
			return size - 1
		}
		return t
	}
	return NewTile(clamp(p.X), clamp(p.Y), zoom)
}

// WithinTiles returns the set of tiles at the field's precision whose nearest
// edge is within distance meters of the point, refined one zoom level at a
// time so distant quadrants are pruned early.
func (p MercatorPoint) WithinTiles(distance float64, zoom int) []Tile {
	tiles := []Tile{""}
	for depth := 0; depth < zoom; depth++ {
		var next []Tile
		for _, tile := range tiles {
			for _, sub := range tile.Subtiles() {
				if sub.Distance(p) <= distance {
					next = append(next, sub)
				}
			}
		}
		tiles = next
	}
	return tiles
}

// Tile is a quadkey: each character selects one quadrant of the parent.
type Tile string

// NewTile interleaves x/y tile coordinates into a quadkey of length zoom.
func NewTile(x, y, zoom int) Tile {
	var b strings.Builder
	for i := zoom - 1; i >= 0; i-- {
		xi := (x >> i) & 1
		yi := (y >> i) & 1
		b.WriteByte(byte('0' + xi + 2*(1-yi)))
	}
	return Tile(b.String())
}

// Quadkey returns the tile's term encoding.
func (t Tile) Quadkey() string { return string(t) }

// Coords returns the tile's x/y coordinates at its zoom level.
func (t Tile) Coords() (x, y int) {
	for _, digit := range t {
		d := int(digit - '0')
		x = x<<1 | (d & 1)
		y = y<<1 | (1 - d>>1)
	}
	return x, y
}

// Subtiles returns the four child tiles one zoom level deeper.
func (t Tile) Subtiles() [4]Tile {
	return [4]Tile{t + "0", t + "1", t + "2", t + "3"}
}

// Bounds returns the lower-left and upper-right mercator corners.
func (t Tile) Bounds() (ll, ur MercatorPoint) {
	size := circumference / float64(int(1)<<len(t))
	x, y := t.Coords()
	ll = MercatorPoint{
		X: float64(x)*size - circumference/2,
		Y: float64(y)*size - circumference/2,
	}
	return ll, MercatorPoint{X: ll.X + size, Y: ll.Y + size}
}

// Distance returns the euclidean distance in meters from the tile's nearest
// edge to the point; zero if the point is inside the tile.
func (t Tile) Distance(p MercatorPoint) float64 {
	ll, ur := t.Bounds()
	dx := math.Max(0, math.Max(ll.X-p.X, p.X-ur.X))
	dy := math.Max(0, math.Max(ll.Y-p.Y, p.Y-ur.Y))
	return math.Sqrt(dx*dx + dy*dy)
}

// WithinTiles returns the quadkey terms covering the circle around (lng, lat)
// at this point field's precision.
func (f *Field) WithinTiles(lng, lat, distance float64) []string {
	tiles := NewPoint(lng, lat).WithinTiles(distance, f.Precision)
	keys := make([]string, len(tiles))
	for i, t := range tiles {
		keys[i] = t.Quadkey()
	}
	return keys
}

// toLngLat accepts LngLat values, [2]float64, or "lng,lat" strings.
func toLngLat(value any, text string) (lng, lat float64, err error) {
	switch v := value.(type) {
	case LngLat:
		return v.Lng, v.Lat, nil
	case [2]float64:
		return v[0], v[1], nil
	}
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected \"lng,lat\", got %q", text)
	}
	if lng, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, err
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, err
	}
	return lng, lat, nil
}
