package zones

import (
	"fmt"
	"math"
)

// cellEpsilon absorbs float error when a coordinate sits exactly on a cell edge.
const cellEpsilon = 1e-9

// DefaultGridSize is the cell size in degrees used when a caller passes a
// non-positive or non-finite grid size.
const DefaultGridSize = 0.01

// keyScale converts degrees to the integer units used in tile keys.
const keyScale = 1e6

// BBox is a geographic bounding box in degrees.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// SW returns the south-west corner.
func (b BBox) SW() GeoPoint { return GeoPoint{Lat: b.MinLat, Lng: b.MinLng} }

// NE returns the north-east corner.
func (b BBox) NE() GeoPoint { return GeoPoint{Lat: b.MaxLat, Lng: b.MaxLng} }

// Diagonal returns the great-circle distance between the SW and NE corners in km.
func (b BBox) Diagonal() float64 { return Distance(b.SW(), b.NE()) }

// Valid reports whether both corners are valid and ordered.
func (b BBox) Valid() bool {
	return b.SW().Valid() && b.NE().Valid() && b.MinLat <= b.MaxLat && b.MinLng <= b.MaxLng
}

// Contains reports whether p lies inside b, edges included.
func (b BBox) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

func cellFloor(v, size float64) int64 {
	return int64(math.Floor(v/size + cellEpsilon))
}

func cellCeil(v, size float64) int64 {
	return int64(math.Ceil(v/size - cellEpsilon))
}

func gridOrDefault(size float64) float64 {
	if !(size > 0) || math.IsInf(size, 1) {
		return DefaultGridSize
	}
	return size
}

func scaled(v float64) int64 {
	return int64(math.Round(v * keyScale))
}

// TileKey identifies the grid cell containing sw. Any two corners that round down
// to the same multiple of gridSize produce the same key. An unusable gridSize
// falls back to DefaultGridSize.
func TileKey(sw GeoPoint, gridSize float64) string {
	gridSize = gridOrDefault(gridSize)
	lat := float64(cellFloor(sw.Lat, gridSize)) * gridSize
	lng := float64(cellFloor(sw.Lng, gridSize)) * gridSize
	return fmt.Sprintf("g%d:%d:%d", scaled(gridSize), scaled(lat), scaled(lng))
}

// SnapBBox expands b outward to whole grid cells.
func SnapBBox(b BBox, gridSize float64) BBox {
	gridSize = gridOrDefault(gridSize)
	return BBox{
		MinLng: float64(cellFloor(b.MinLng, gridSize)) * gridSize,
		MinLat: float64(cellFloor(b.MinLat, gridSize)) * gridSize,
		MaxLng: float64(cellCeil(b.MaxLng, gridSize)) * gridSize,
		MaxLat: float64(cellCeil(b.MaxLat, gridSize)) * gridSize,
	}
}

// CellSpan returns how many grid cells b covers along longitude and latitude,
// at least one in each direction.
func CellSpan(b BBox, gridSize float64) (cols, rows int) {
	gridSize = gridOrDefault(gridSize)
	s := SnapBBox(b, gridSize)
	cols = int(max(1, cellCeil(s.MaxLng, gridSize)-cellFloor(s.MinLng, gridSize)))
	rows = int(max(1, cellCeil(s.MaxLat, gridSize)-cellFloor(s.MinLat, gridSize)))
	return cols, rows
}
