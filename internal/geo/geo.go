// Package geo provides the pure geometry used to place query points
// inside and along a drawn search area. All coordinates are [lon, lat]
// pairs in degrees; nothing here performs I/O.
package geo

// Point is a [lon, lat] coordinate pair.
type Point [2]float64

// Lon returns the longitude component.
func (p Point) Lon() float64 { return p[0] }

// Lat returns the latitude component.
func (p Point) Lat() float64 { return p[1] }

// Ring is an ordered polygon ring. The last vertex implicitly connects
// back to the first; callers need not repeat it.
type Ring []Point

// BBox is an axis-aligned bounding box.
type BBox struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

// Contains reports whether p lies inside b (edges inclusive).
func (b BBox) Contains(p Point) bool {
	return p.Lon() >= b.MinLon && p.Lon() <= b.MaxLon &&
		p.Lat() >= b.MinLat && p.Lat() <= b.MaxLat
}

// BoundingBox computes the bounding box of a ring.
func BoundingBox(ring Ring) BBox {
	if len(ring) == 0 {
		return BBox{}
	}
	b := BBox{
		MinLon: ring[0].Lon(), MaxLon: ring[0].Lon(),
		MinLat: ring[0].Lat(), MaxLat: ring[0].Lat(),
	}
	for _, p := range ring[1:] {
		if p.Lon() < b.MinLon {
			b.MinLon = p.Lon()
		}
		if p.Lon() > b.MaxLon {
			b.MaxLon = p.Lon()
		}
		if p.Lat() < b.MinLat {
			b.MinLat = p.Lat()
		}
		if p.Lat() > b.MaxLat {
			b.MaxLat = p.Lat()
		}
	}
	return b
}

// Contains reports whether pt lies inside ring using even-odd ray
// casting. A horizontal ray is cast to the right of pt; each edge that
// straddles pt's latitude in open-closed fashion and whose intersection
// lies at or beyond pt toggles the parity. Points exactly on the
// boundary may be classified either way.
func Contains(pt Point, ring Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	x, y := pt.Lon(), pt.Lat()
	inside := false

	p1x, p1y := ring[0].Lon(), ring[0].Lat()
	for i := 1; i <= n; i++ {
		p2x, p2y := ring[i%n].Lon(), ring[i%n].Lat()
		if y > min(p1y, p2y) && y <= max(p1y, p2y) && x <= max(p1x, p2x) {
			if p1y != p2y {
				xinters := (y-p1y)*(p2x-p1x)/(p2y-p1y) + p1x
				if p1x == p2x || x <= xinters {
					inside = !inside
				}
			}
		}
		p1x, p1y = p2x, p2y
	}
	return inside
}
