// Package scan holds the plant-scan data model as read from a scan
// descriptor file, and the camera-pose math derived from it.
package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNoWorkspace = errors.New("scan: no workspace")
	ErrNoCamera    = errors.New("scan: no camera")
)

// Range is a [min, max] pair.
type Range [2]float64

func (r Range) Min() float64  { return r[0] }
func (r Range) Max() float64  { return r[1] }
func (r Range) Span() float64 { return r[1] - r[0] }
func (r Range) Mid() float64  { return (r[0] + r[1]) / 2 }

// Workspace is the bounding cuboid of the physical scan volume.
type Workspace struct {
	X Range `json:"x"`
	Y Range `json:"y"`
	Z Range `json:"z"`
}

func (w Workspace) Width() float64  { return w.X.Span() }
func (w Workspace) Height() float64 { return w.Y.Span() }
func (w Workspace) Depth() float64  { return w.Z.Span() }

// Anchor is the point the viewer moves to the origin: the centre of the
// footprint, half the depth above the bottom face.
func (w Workspace) Anchor() [3]float64 {
	return [3]float64{w.X.Mid(), w.Y.Mid(), w.Z.Min() + w.Depth()*0.5}
}

// CameraModel holds the intrinsics shared by every pose of a scan.
type CameraModel struct {
	Model  string    `json:"model"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Params []float64 `json:"params"`
}

// FocalLength returns fx, falling back to the image width when the model
// carries no parameters.
func (m *CameraModel) FocalLength() float64 {
	if m == nil {
		return 0
	}
	if len(m.Params) > 0 && m.Params[0] > 0 {
		return m.Params[0]
	}
	return float64(m.Width)
}

// RawPose is one entry of camera.poses as stored in the descriptor.
type RawPose struct {
	Id       string        `json:"id,omitempty"`
	PhotoUri string        `json:"photoUri"`
	Rotmat   [3][3]float64 `json:"rotmat"`
	Tvec     [3]float64    `json:"tvec"`
}

type Camera struct {
	Model *CameraModel `json:"model"`
	Poses []RawPose    `json:"poses"`
}

type Skeleton struct {
	Points [][3]float64 `json:"points"`
	Lines  [][2]int     `json:"lines"`
}

// Angles holds per-organ polylines and the measured sequences derived from
// them. Measured sequences are optional ground truth.
type Angles struct {
	FruitPoints        [][][3]float64 `json:"fruit_points"`
	Angles             []float64      `json:"angles"`
	Internodes         []float64      `json:"internodes,omitempty"`
	MeasuredAngles     []float64      `json:"measured_angles,omitempty"`
	MeasuredInternodes []float64      `json:"measured_internodes,omitempty"`
}

func (a *Angles) OrganCount() int {
	if a == nil {
		return 0
	}
	return len(a.FruitPoints)
}

type Data struct {
	Skeleton            *Skeleton `json:"skeleton,omitempty"`
	Angles              *Angles   `json:"angles,omitempty"`
	Mesh                string    `json:"mesh,omitempty"`
	PointCloud          string    `json:"pointCloud,omitempty"`
	SegmentedPointCloud string    `json:"segmentedPointCloud,omitempty"`
}

type Scan struct {
	Id        string     `json:"id"`
	Workspace *Workspace `json:"workspace"`
	Camera    *Camera    `json:"camera,omitempty"`
	Data      Data       `json:"data"`

	// BaseDir resolves relative URIs. Set by Load.
	BaseDir string `json:"-"`
}

func Parse(data []byte) (*Scan, error) {
	var s Scan
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scan: %w", err)
	}
	if s.Workspace == nil {
		return nil, ErrNoWorkspace
	}
	return &s, nil
}

func Load(path string) (*Scan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.BaseDir = filepath.Dir(path)
	if s.Id == "" {
		s.Id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Resolve turns a descriptor URI into a filesystem path.
func (s *Scan) Resolve(uri string) string {
	if uri == "" || filepath.IsAbs(uri) || s.BaseDir == "" {
		return uri
	}
	return filepath.Join(s.BaseDir, filepath.FromSlash(uri))
}

// Poses derives every calibrated pose of the scan in descriptor order.
func (s *Scan) Poses() ([]*Pose, error) {
	if s.Camera == nil {
		return nil, ErrNoCamera
	}
	poses := make([]*Pose, 0, len(s.Camera.Poses))
	for i, raw := range s.Camera.Poses {
		poses = append(poses, NewPose(i, raw, s.Camera.Model))
	}
	return poses, nil
}
