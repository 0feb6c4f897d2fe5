package crawler

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/parsamap/raahgir/internal/raah"
)

// DedupeSet tracks geometries already collected in a session. Identity
// is structural: the geometry type plus its flattened coordinate
// values, so the same place returned by overlapping search points
// hashes the same regardless of JSON key order or whitespace.
type DedupeSet struct {
	seen map[uint64]struct{}
}

func NewDedupeSet() *DedupeSet {
	return &DedupeSet{seen: make(map[uint64]struct{})}
}

// Add reports whether the geometry was new and records it. Geometries
// that cannot be interpreted hash over their raw bytes so malformed
// duplicates still collapse.
func (s *DedupeSet) Add(g *raah.Geometry) bool {
	key := geometryHash(g)
	if _, dup := s.seen[key]; dup {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Len returns the number of distinct geometries seen.
func (s *DedupeSet) Len() int {
	return len(s.seen)
}

func geometryHash(g *raah.Geometry) uint64 {
	d := xxhash.New()
	if g == nil {
		return d.Sum64()
	}

	_, _ = d.WriteString(g.Type)
	_, _ = d.WriteString("|")

	var coords any
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		_, _ = d.Write(g.Coordinates)
		return d.Sum64()
	}
	writeCoords(d, coords)
	return d.Sum64()
}

// writeCoords walks an arbitrarily nested coordinate array and feeds
// every number into the digest in order.
func writeCoords(d *xxhash.Digest, v any) {
	switch t := v.(type) {
	case float64:
		_, _ = d.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
		_, _ = d.WriteString(",")
	case []any:
		_, _ = d.WriteString("[")
		for _, e := range t {
			writeCoords(d, e)
		}
		_, _ = d.WriteString("]")
	}
}
