package scanview

import (
	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/scan"
	"github.com/gekko3d/scanview/viewer/world"
)

// Interaction is the user-facing selection and highlight state. Pose
// references are pose ids; "" means none.
type Interaction struct {
	HoveredPose  string
	SelectedPose string

	HoveredAngle  *int
	SelectedAngle *int

	SelectedPoints  []int
	ClickedPoint    *int
	SelectionMethod world.SelectionMethod

	Scaling     bool
	Measuring   bool
	Scale       *float32
	Measurement *float32
}

// SegmentedCloud is a point cloud with one label per point.
type SegmentedCloud struct {
	Geometry *core.Geometry
	Labels   []int32
}

type SnapshotRequest struct {
	Width, Height int
}

// ResetFuncs reset the 3D orbit view and the 2D photo view. They are
// published once the viewer exists.
type ResetFuncs struct {
	Reset3D func()
	Reset2D func()
}

// SceneState is the desired scene. Geometry fields are compared by
// identity: installing a new value means assigning a new pointer.
type SceneState struct {
	Scan       *scan.Scan
	Mesh       *core.Geometry
	PointCloud *core.Geometry
	Segmented  *SegmentedCloud

	Layers      world.Layers
	Colors      world.Colors
	Interaction Interaction

	Snapshot    *SnapshotRequest
	SnapshotURL string

	Reset ResetFuncs
}

// Outbound is what one reconciliation pass writes back.
type Outbound struct {
	// Scan is the scan the interaction belongs to.
	Scan        *scan.Scan
	Interaction Interaction
	// SnapshotDone reports that the pending request was served. URL is
	// empty when the capture failed.
	SnapshotDone bool
	SnapshotURL  string
}
