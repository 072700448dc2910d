package entities

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/scan"
)

// Angles draws one polyline per organ under a shared group so that picking
// can map a hit line back to its organ index.
type Angles struct {
	base
	organs      []*core.Node
	color       [4]float32
	highlighted map[int][4]float32
}

func NewAngles(kit *LineKit, a *scan.Angles, color [4]float32, width float32) *Angles {
	group := core.NewGroup("angles")
	e := &Angles{
		base:        base{node: group},
		color:       color,
		highlighted: make(map[int][4]float32),
	}
	for i, organ := range a.FruitPoints {
		pts := make([]mgl32.Vec3, len(organ))
		for j, p := range organ {
			pts[j] = vec3(p)
		}
		n := kit.NewPolyline(fmt.Sprintf("organ-%d", i), pts, color, width)
		group.Add(n)
		e.organs = append(e.organs, n)
	}
	return e
}

// Group is the subtree to ray cast against.
func (a *Angles) Group() *core.Node { return a.node }

func (a *Angles) OrganCount() int { return len(a.organs) }

// OrganAt maps a hit node back to its organ index.
func (a *Angles) OrganAt(n *core.Node) (int, bool) {
	for i, o := range a.organs {
		if o == n {
			return i, true
		}
	}
	return 0, false
}

func (a *Angles) SetColor(c [4]float32) {
	a.color = c
	a.apply()
}

// SetHighlighted paints the given organs in c and the rest in the base
// colour.
func (a *Angles) SetHighlighted(indexes []int, c [4]float32) {
	clear(a.highlighted)
	for _, i := range indexes {
		if i >= 0 && i < len(a.organs) {
			a.highlighted[i] = c
		}
	}
	a.apply()
}

// AddHighlight paints one more organ without clearing the others.
func (a *Angles) AddHighlight(i int, c [4]float32) {
	if i < 0 || i >= len(a.organs) {
		return
	}
	a.highlighted[i] = c
	a.apply()
}

func (a *Angles) OrganColor(i int) [4]float32 {
	return a.organs[i].Material.Color
}

func (a *Angles) apply() {
	for i, o := range a.organs {
		if c, ok := a.highlighted[i]; ok {
			o.Material.Color = c
		} else {
			o.Material.Color = a.color
		}
	}
}
