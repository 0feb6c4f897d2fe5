package geo

import (
	"math"
	"math/rand"
)

// degreesPerKm is the flat-earth approximation used when converting a
// minimum spacing in kilometres to degrees. Deliberately not geodesic:
// at the city scales this tool works with, 1 degree ~ 111 km is close
// enough and keeps the sampler free of projection math.
const degreesPerKm = 1.0 / 111.0

// OuterRing extracts the ring to sample from GeoJSON-nested polygon
// coordinates: the first ring of a Polygon ([ring]) or of the first part
// of a MultiPolygon ([[ring]]). It returns nil for shapes it cannot
// interpret rather than panicking on malformed geometry.
func OuterRing(coords any) Ring {
	switch c := coords.(type) {
	case Ring:
		return c
	case []Point:
		return Ring(c)
	case [][]Point: // Polygon: [ring, holes...]
		if len(c) == 0 {
			return nil
		}
		return Ring(c[0])
	case [][][]Point: // MultiPolygon: first part's outer ring
		if len(c) == 0 || len(c[0]) == 0 {
			return nil
		}
		return Ring(c[0][0])
	case [][]float64:
		return ringFromPairs(c)
	case [][][]float64:
		if len(c) == 0 {
			return nil
		}
		return ringFromPairs(c[0])
	case [][][][]float64:
		if len(c) == 0 || len(c[0]) == 0 {
			return nil
		}
		return ringFromPairs(c[0][0])
	case []any: // decoded JSON at any of the nesting depths above
		return ringFromDecoded(c)
	}
	return nil
}

// ringFromDecoded descends json.Unmarshal's []any nesting until it
// reaches a ring of [lon, lat] pairs.
func ringFromDecoded(c []any) Ring {
	if len(c) == 0 {
		return nil
	}
	first, ok := c[0].([]any)
	if !ok || len(first) == 0 {
		return nil
	}
	if _, isNum := first[0].(float64); !isNum {
		return ringFromDecoded(first)
	}

	ring := make(Ring, 0, len(c))
	for _, e := range c {
		pair, ok := e.([]any)
		if !ok || len(pair) < 2 {
			return nil
		}
		lon, ok1 := pair[0].(float64)
		lat, ok2 := pair[1].(float64)
		if !ok1 || !ok2 {
			return nil
		}
		ring = append(ring, Point{lon, lat})
	}
	return ring
}

func ringFromPairs(pairs [][]float64) Ring {
	ring := make(Ring, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			return nil
		}
		ring = append(ring, Point{pair[0], pair[1]})
	}
	return ring
}

// SamplePolygon generates up to targetCount points inside the polygon
// described by coords (GeoJSON Polygon or MultiPolygon nesting; only the
// first outer ring is used). Points come from a regular grid over the
// bounding box; the grid pitch is the larger of the area-derived optimal
// spacing and minSpacingKm. When the grid yields enough interior points
// they are stride-sampled in grid order; otherwise random rejection
// sampling tops the set up, keeping every new point at least half the
// pitch away from all accepted ones. Fewer than targetCount points may
// be returned when sampling attempts run out. Malformed geometry yields
// an empty slice, never an error.
func SamplePolygon(coords any, targetCount int, minSpacingKm float64) []Point {
	return samplePolygon(coords, targetCount, minSpacingKm, rand.Float64)
}

// samplePolygon takes the random source as a parameter so tests can pin it.
func samplePolygon(coords any, targetCount int, minSpacingKm float64, randFloat func() float64) []Point {
	if targetCount <= 0 {
		return nil
	}
	ring := OuterRing(coords)
	if len(ring) < 3 {
		return nil
	}

	b := BoundingBox(ring)
	area := (b.MaxLon - b.MinLon) * (b.MaxLat - b.MinLat)
	if area <= 0 {
		return nil
	}

	spacing := math.Sqrt(area / float64(targetCount))
	if minDeg := minSpacingKm * degreesPerKm; minDeg > spacing {
		spacing = minDeg
	}

	var grid []Point
	for lon := b.MinLon; lon <= b.MaxLon; lon += spacing {
		for lat := b.MinLat; lat <= b.MaxLat; lat += spacing {
			p := Point{lon, lat}
			if Contains(p, ring) {
				grid = append(grid, p)
			}
		}
	}

	var points []Point
	if len(grid) >= targetCount {
		step := len(grid) / targetCount
		if step < 1 {
			step = 1
		}
		for i := 0; i < len(grid) && len(points) < targetCount; i += step {
			points = append(points, grid[i])
		}
	} else {
		points = append(points, grid...)

		attempts := 0
		maxAttempts := (targetCount - len(points)) * 10
		for len(points) < targetCount && attempts < maxAttempts {
			p := Point{
				b.MinLon + randFloat()*(b.MaxLon-b.MinLon),
				b.MinLat + randFloat()*(b.MaxLat-b.MinLat),
			}
			if Contains(p, ring) && minDistance(p, points) >= spacing/2 {
				points = append(points, p)
			}
			attempts++
		}
	}

	if len(points) > targetCount {
		points = points[:targetCount]
	}
	return points
}

func minDistance(p Point, points []Point) float64 {
	d := math.Inf(1)
	for _, q := range points {
		dx, dy := p.Lon()-q.Lon(), p.Lat()-q.Lat()
		if v := math.Sqrt(dx*dx + dy*dy); v < d {
			d = v
		}
	}
	return d
}

// PerimeterCameras places camera points along the perimeter of ring and,
// when internalSpacing > 0, over an interior grid. Each edge gets
// max(1, floor(edgeLength/step)) evenly interpolated points starting at
// its first vertex. Interior grid points are kept when Contains accepts
// them. Perimeter and interior points are not deduplicated against each
// other; duplicates are acceptable and resolved downstream.
func PerimeterCameras(ring Ring, step, internalSpacing float64) []Point {
	if len(ring) < 3 || step <= 0 {
		return nil
	}

	var points []Point
	for i := range ring {
		p1 := ring[i]
		p2 := ring[(i+1)%len(ring)]
		dx, dy := p2.Lon()-p1.Lon(), p2.Lat()-p1.Lat()
		edgeLen := math.Sqrt(dx*dx + dy*dy)
		steps := int(math.Floor(edgeLen / step))
		if steps < 1 {
			steps = 1
		}
		for j := 0; j < steps; j++ {
			t := float64(j) / float64(steps)
			points = append(points, Point{p1.Lon() + dx*t, p1.Lat() + dy*t})
		}
	}

	if internalSpacing > 0 {
		b := BoundingBox(ring)
		for lon := b.MinLon; lon <= b.MaxLon; lon += internalSpacing {
			for lat := b.MinLat; lat <= b.MaxLat; lat += internalSpacing {
				p := Point{lon, lat}
				if Contains(p, ring) {
					points = append(points, p)
				}
			}
		}
	}

	return points
}
