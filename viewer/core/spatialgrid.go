package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PointGrid is a spatial hash over a fixed point set. Unlike an id-only
// grid it keeps the positions, so radius queries are exact.
type PointGrid struct {
	cellSize  float32
	positions []mgl32.Vec3
	cells     map[uint64][]int
}

func NewPointGrid(cellSize float32, positions []mgl32.Vec3) *PointGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	grid := &PointGrid{
		cellSize:  cellSize,
		positions: positions,
		cells:     make(map[uint64][]int),
	}
	for i, p := range positions {
		key := grid.hashKey(grid.cellIndex(p.X()), grid.cellIndex(p.Y()), grid.cellIndex(p.Z()))
		grid.cells[key] = append(grid.cells[key], i)
	}
	return grid
}

func (grid *PointGrid) CellSize() float32 { return grid.cellSize }

func (grid *PointGrid) Len() int { return len(grid.positions) }

// QueryRadius returns the indexes of every point within radius of center,
// in no particular order. When the radius spans more cells than there are
// points, the points are scanned directly instead of the cells.
func (grid *PointGrid) QueryRadius(center mgl32.Vec3, radius float32) []int {
	if radius < 0 || len(grid.positions) == 0 {
		return nil
	}
	r2 := radius * radius
	var results []int
	within := func(idx int) {
		d := grid.positions[idx].Sub(center)
		if d.Dot(d) <= r2 {
			results = append(results, idx)
		}
	}

	span := float64(2*radius/grid.cellSize) + 1
	if span*span*span > float64(len(grid.positions)) {
		for i := range grid.positions {
			within(i)
		}
		return results
	}

	minX, maxX := grid.cellIndex(center.X()-radius), grid.cellIndex(center.X()+radius)
	minY, maxY := grid.cellIndex(center.Y()-radius), grid.cellIndex(center.Y()+radius)
	minZ, maxZ := grid.cellIndex(center.Z()-radius), grid.cellIndex(center.Z()+radius)

	// colliding cells share a bucket; visit each bucket once
	var visited map[uint64]struct{}
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				key := grid.hashKey(x, y, z)
				bucket, ok := grid.cells[key]
				if !ok {
					continue
				}
				if visited == nil {
					visited = make(map[uint64]struct{})
				}
				if _, seen := visited[key]; seen {
					continue
				}
				visited[key] = struct{}{}
				for _, idx := range bucket {
					within(idx)
				}
			}
		}
	}
	return results
}

func (grid *PointGrid) cellIndex(v float32) int {
	return int(math.Floor(float64(v / grid.cellSize)))
}

func (grid *PointGrid) hashKey(x, y, z int) uint64 {
	const p1 = 73856093
	const p2 = 19349663
	const p3 = 83492791
	return uint64(x*p1 ^ y*p2 ^ z*p3)
}
