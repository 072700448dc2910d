package scan

import (
	"math"
	"path"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// WorkingDistance is the distance, in scene units, at which a photo's image
// plane is placed in front of its pose. At this distance one pixel spans one
// unit.
const WorkingDistance = 2000

// DefaultFov is used when no camera model is known.
const DefaultFov = 50

// flipYZ maps the computer-vision camera frame (+Z forward, +Y down) onto
// the viewer camera frame (-Z forward, +Y up).
var flipYZ = mgl64.Diag3(mgl64.Vec3{1, -1, -1})

// Pose is one calibrated photograph. R and T map world points into the
// camera frame: x_cam = R·x_world + T.
type Pose struct {
	Id       string
	Index    int
	PhotoUri string
	Model    *CameraModel

	R mgl64.Mat3
	T mgl64.Vec3

	// Position is the optical centre in world space, -Rᵀ·T.
	Position mgl32.Vec3
	// ObjectRotation orients markers placed at the pose.
	ObjectRotation mgl32.Mat3
	// ViewRotation orients a viewer camera to reproduce the photograph.
	ViewRotation mgl32.Mat3
}

func NewPose(index int, raw RawPose, model *CameraModel) *Pose {
	r := mgl64.Mat3FromRows(
		mgl64.Vec3(raw.Rotmat[0]),
		mgl64.Vec3(raw.Rotmat[1]),
		mgl64.Vec3(raw.Rotmat[2]),
	)
	t := mgl64.Vec3(raw.Tvec)
	rt := r.Transpose()

	id := raw.Id
	if id == "" {
		id = PoseId(raw.PhotoUri)
	}

	return &Pose{
		Id:             id,
		Index:          index,
		PhotoUri:       raw.PhotoUri,
		Model:          model,
		R:              r,
		T:              t,
		Position:       vec32(rt.Mul3x1(t).Mul(-1)),
		ObjectRotation: mat32(rt),
		ViewRotation:   mat32(rt.Mul3(flipYZ)),
	}
}

// PoseId derives a pose id from its photo path: the base name without
// extension.
func PoseId(uri string) string {
	base := path.Base(strings.ReplaceAll(uri, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// ViewQuat returns ViewRotation as a quaternion.
func (p *Pose) ViewQuat() mgl32.Quat {
	return mgl32.Mat4ToQuat(p.ViewRotation.Mat4()).Normalize()
}

// Forward is the optical axis in world space.
func (p *Pose) Forward() mgl32.Vec3 {
	return p.ViewRotation.Mul3x1(mgl32.Vec3{0, 0, -1}).Normalize()
}

// Up is the image "up" direction in world space.
func (p *Pose) Up() mgl32.Vec3 {
	return p.ViewRotation.Mul3x1(mgl32.Vec3{0, 1, 0}).Normalize()
}

// ImageSize returns the photo size in pixels, or zero without a model.
func (p *Pose) ImageSize() (w, h int) {
	if p.Model == nil {
		return 0, 0
	}
	return p.Model.Width, p.Model.Height
}

// ComputeDynamicFOV returns the vertical field of view in degrees that makes
// an image of the model's height exactly fill the view at WorkingDistance.
func ComputeDynamicFOV(model *CameraModel) float32 {
	if model == nil || model.Height <= 0 {
		return DefaultFov
	}
	fov := 2 * math.Atan(float64(model.Height)/(2*WorkingDistance))
	return float32(mgl64.RadToDeg(fov))
}

func vec32(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func mat32(m mgl64.Mat3) mgl32.Mat3 {
	var out mgl32.Mat3
	for i := range m {
		out[i] = float32(m[i])
	}
	return out
}
