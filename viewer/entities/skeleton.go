package entities

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/scan"
)

type Skeleton struct {
	base
}

// NewSkeleton draws one segment per skeleton edge. Edges referencing
// missing points are skipped.
func NewSkeleton(kit *LineKit, s *scan.Skeleton, color [4]float32, width float32) *Skeleton {
	var segs []mgl32.Vec3
	for _, l := range s.Lines {
		a, b := l[0], l[1]
		if a < 0 || b < 0 || a >= len(s.Points) || b >= len(s.Points) {
			continue
		}
		segs = append(segs, vec3(s.Points[a]), vec3(s.Points[b]))
	}
	return &Skeleton{base{node: kit.NewSegments("skeleton", segs, color, width)}}
}

func (s *Skeleton) SetColor(c [4]float32) { s.node.Material.Color = c }

func (s *Skeleton) SetLineWidth(w float32) { s.node.Material.LineWidth = w }

func (s *Skeleton) SegmentCount() int { return len(s.node.Geometry.Positions) / 2 }

var _ Entity = (*Skeleton)(nil)
