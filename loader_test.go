package scanview

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/ply"
	"github.com/gekko3d/scanview/viewer/scan"
)

func testGeometry(n int) *core.Geometry {
	g := core.NewGeometry(nil)
	for i := 0; i < n; i++ {
		g.Positions = append(g.Positions, mgl32.Vec3{float32(i), 0, 0})
	}
	return g
}

func newTestLoader(scans map[string]*scan.Scan, models map[string]*ply.Model) (*Loader, *Store) {
	store := NewStore(SceneState{})
	l := NewLoader(store, nil)
	l.readScan = func(path string) (*scan.Scan, error) {
		if s, ok := scans[path]; ok {
			return s, nil
		}
		return nil, errors.New("no such scan")
	}
	l.readPLY = func(path string) (*ply.Model, error) {
		if m, ok := models[path]; ok {
			return m, nil
		}
		return nil, errors.New("no such file")
	}
	return l, store
}

func TestLoaderDeliversScanAndGeometry(t *testing.T) {
	s := &scan.Scan{Id: "a", Workspace: &scan.Workspace{}, Data: scan.Data{
		Mesh:                "mesh.ply",
		PointCloud:          "cloud.ply",
		SegmentedPointCloud: "seg.ply",
	}}
	mesh := &ply.Model{Geometry: testGeometry(3)}
	cloud := &ply.Model{Geometry: testGeometry(4)}
	seg := &ply.Model{Geometry: testGeometry(2), Labels: []int32{1, 2}}
	l, store := newTestLoader(map[string]*scan.Scan{"a.json": s},
		map[string]*ply.Model{"mesh.ply": mesh, "cloud.ply": cloud, "seg.ply": seg})

	store.Update(func(st *SceneState) {
		st.Interaction.SelectedPose = "old"
	})
	gen := l.LoadScan("a.json")
	l.Wait()

	assert.Equal(t, gen, l.Generation())
	st := store.Snapshot()
	assert.Same(t, s, st.Scan)
	assert.Same(t, mesh.Geometry, st.Mesh)
	assert.Same(t, cloud.Geometry, st.PointCloud)
	require.NotNil(t, st.Segmented)
	assert.Equal(t, []int32{1, 2}, st.Segmented.Labels)
	assert.Empty(t, st.Interaction.SelectedPose, "a new scan starts with a clean interaction")
}

func TestLoaderDropsStaleGeneration(t *testing.T) {
	first := &scan.Scan{Id: "first", Workspace: &scan.Workspace{}}
	second := &scan.Scan{Id: "second", Workspace: &scan.Workspace{}}
	l, store := newTestLoader(map[string]*scan.Scan{"second.json": second}, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	l.readScan = func(path string) (*scan.Scan, error) {
		if path == "first.json" {
			close(started)
			<-release
			return first, nil
		}
		return second, nil
	}

	l.LoadScan("first.json")
	<-started
	l.LoadScan("second.json")
	close(release)
	l.Wait()

	assert.Same(t, second, store.Snapshot().Scan)
}

func TestLoaderFailuresDeliverNothing(t *testing.T) {
	s := &scan.Scan{Id: "a", Workspace: &scan.Workspace{}, Data: scan.Data{
		Mesh:                "missing.ply",
		SegmentedPointCloud: "unlabelled.ply",
	}}
	l, store := newTestLoader(map[string]*scan.Scan{"a.json": s},
		map[string]*ply.Model{"unlabelled.ply": {Geometry: testGeometry(2)}})

	l.LoadScan("nope.json")
	l.Wait()
	assert.Nil(t, store.Snapshot().Scan)

	l.LoadScan("a.json")
	l.Wait()
	st := store.Snapshot()
	assert.Same(t, s, st.Scan)
	assert.Nil(t, st.Mesh)
	assert.Nil(t, st.Segmented, "a segmented cloud needs one label per point")
}

func TestStorePublish(t *testing.T) {
	s := &scan.Scan{Id: "a"}
	store := NewStore(SceneState{Scan: s, Snapshot: &SnapshotRequest{Width: 1, Height: 1}})
	v := store.Version()

	store.Publish(Outbound{Scan: s, Interaction: Interaction{HoveredPose: "p"}})
	st := store.Snapshot()
	assert.Equal(t, "p", st.Interaction.HoveredPose)
	assert.NotNil(t, st.Snapshot, "the request stays until it is served")
	assert.Greater(t, store.Version(), v)

	store.Publish(Outbound{Scan: s, Interaction: st.Interaction, SnapshotDone: true, SnapshotURL: "data:"})
	st = store.Snapshot()
	assert.Nil(t, st.Snapshot)
	assert.Equal(t, "data:", st.SnapshotURL)

	store.Publish(Outbound{Scan: &scan.Scan{Id: "b"}, Interaction: Interaction{HoveredPose: "stale"}})
	assert.Equal(t, "p", store.Snapshot().Interaction.HoveredPose, "results for a replaced scan are dropped")
}
