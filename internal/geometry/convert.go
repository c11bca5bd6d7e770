package geometry

import (
	"math"
	"slices"

	cgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ringsOf returns every ring of a Polygon or MultiPolygon.
func ringsOf(g geom.T) ([][]geom.Coord, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return t.Coords(), nil
	case *geom.MultiPolygon:
		var rings [][]geom.Coord
		for _, p := range t.Coords() {
			rings = append(rings, p...)
		}
		return rings, nil
	default:
		return nil, eris.Errorf("geometry: %T is not polygonal", g)
	}
}

// toClip converts a polygonal go-geom geometry into the clipping library's model.
func toClip(g geom.T) (cgeom.Polygon, error) {
	rings, err := ringsOf(g)
	if err != nil {
		return nil, err
	}
	poly := make(cgeom.Polygon, 0, len(rings))
	for _, r := range rings {
		path := make([]cgeom.Point, 0, len(r))
		for _, c := range r {
			path = append(path, cgeom.Point{X: c[0], Y: c[1]})
		}
		poly = append(poly, path)
	}
	return poly, nil
}

// fromClip converts a clipping result back into a Polygon, or a MultiPolygon
// when it has several outer rings. Holes are assigned to their innermost
// enclosing outer ring.
func fromClip(p cgeom.Polygon) (geom.T, error) {
	var rings [][]geom.Coord
	for _, path := range p {
		ring := closedRing(path)
		if len(ring) < 4 || ringArea(ring) == 0 {
			continue
		}
		rings = append(rings, ring)
	}
	if len(rings) == 0 {
		return nil, eris.New("geometry: empty polygon")
	}

	// parent[i] is the smallest ring containing ring i, or -1.
	parent := make([]int, len(rings))
	depth := make([]int, len(rings))
	for i, r := range rings {
		parent[i] = -1
		for j, other := range rings {
			if i == j || !xy.IsPointInRing(geom.XY, r[0], flatten(other)) {
				continue
			}
			depth[i]++
			if parent[i] < 0 || ringArea(other) < ringArea(rings[parent[i]]) {
				parent[i] = j
			}
		}
	}

	var polys [][][]geom.Coord
	index := make(map[int]int)
	for i, r := range rings {
		if depth[i]%2 == 0 {
			index[i] = len(polys)
			polys = append(polys, [][]geom.Coord{r})
		}
	}
	for i, r := range rings {
		if depth[i]%2 == 1 {
			if k, ok := index[parent[i]]; ok {
				polys[k] = append(polys[k], r)
			}
		}
	}

	if len(polys) == 1 {
		out, err := geom.NewPolygon(geom.XY).SetCoords(polys[0])
		if err != nil {
			return nil, eris.Wrap(err, "geometry: build polygon")
		}
		return out, nil
	}
	out, err := geom.NewMultiPolygon(geom.XY).SetCoords(polys)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: build multipolygon")
	}
	return out, nil
}

func closedRing(path []cgeom.Point) []geom.Coord {
	ring := make([]geom.Coord, 0, len(path)+1)
	for _, pt := range path {
		ring = append(ring, geom.Coord{pt.X, pt.Y})
	}
	if len(ring) > 0 && !slices.Equal(ring[0], ring[len(ring)-1]) {
		ring = append(ring, slices.Clone(ring[0]))
	}
	return ring
}

func flatten(ring []geom.Coord) []float64 {
	flat := make([]float64, 0, 2*len(ring))
	for _, c := range ring {
		flat = append(flat, c[0], c[1])
	}
	return flat
}

// ringArea is the unsigned shoelace area of a closed ring.
func ringArea(ring []geom.Coord) float64 {
	var sum float64
	for i := 1; i < len(ring); i++ {
		sum += ring[i-1][0]*ring[i][1] - ring[i][0]*ring[i-1][1]
	}
	return math.Abs(sum) / 2
}

// distinctVertices counts the distinct points of a closed ring.
func distinctVertices(ring []geom.Coord) int {
	var seen []geom.Coord
	for _, c := range ring {
		if !slices.ContainsFunc(seen, func(s geom.Coord) bool { return slices.Equal(s, c) }) {
			seen = append(seen, c)
		}
	}
	return len(seen)
}
