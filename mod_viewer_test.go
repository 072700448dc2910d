package scanview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/scanview/viewer/world"
)

func press(keys ...int) *Input {
	in := &Input{}
	for _, k := range keys {
		in.JustPressed[k] = true
	}
	return in
}

func TestApplyKeys(t *testing.T) {
	cfg := DefaultConfig()
	st := SceneState{Layers: world.AllLayers()}

	applyKeys(press(KeyP), &st, cfg)
	assert.Equal(t, world.SelectProximity, st.Interaction.SelectionMethod)
	applyKeys(press(KeyL), &st, cfg)
	assert.Equal(t, world.SelectSameLabel, st.Interaction.SelectionMethod)
	applyKeys(press(KeyO), &st, cfg)
	assert.Equal(t, world.SelectSphere, st.Interaction.SelectionMethod)

	applyKeys(press(KeyC), &st, cfg)
	assert.True(t, st.Interaction.Scaling)
	applyKeys(press(KeyM), &st, cfg)
	assert.True(t, st.Interaction.Measuring)
	assert.False(t, st.Interaction.Scaling, "measuring and scaling exclude each other")

	applyKeys(press(KeyEscape), &st, cfg)
	assert.Equal(t, world.SelectNone, st.Interaction.SelectionMethod)
	assert.False(t, st.Interaction.Measuring)

	st.Interaction.SelectedPose = "p"
	st.Interaction.SelectionMethod = world.SelectSphere
	applyKeys(press(KeyEscape), &st, cfg)
	assert.Empty(t, st.Interaction.SelectedPose)
	assert.Equal(t, world.SelectSphere, st.Interaction.SelectionMethod, "escape leaves the photo first")

	applyKeys(press(Key1, Key7), &st, cfg)
	assert.False(t, st.Layers.Mesh)
	assert.False(t, st.Layers.Workspace)
	assert.True(t, st.Layers.PointCloud)

	applyKeys(press(KeyS), &st, cfg)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, SnapshotRequest{Width: 1920, Height: 1080}, *st.Snapshot)
}

func headlessViewer(render *fakeRenderer) RendererFactory {
	return func(*App, Logger) (world.Renderer, func(), error) {
		return render, func() { render.w, render.h = -1, -1 }, nil
	}
}

func TestViewerModuleRunsHeadless(t *testing.T) {
	render := &fakeRenderer{}
	cfg := DefaultConfig()
	cfg.Window.Width, cfg.Window.Height = 320, 200

	app := NewAppBuilder().
		UseModule(TimeModule{}, ViewerModule{Config: cfg, Renderer: headlessViewer(render)}).
		Build()
	app.addResources(&Input{WindowWidth: 320, WindowHeight: 200})

	v, ok := Resource[*Viewer](app)
	require.True(t, ok)
	st := v.Store.Snapshot()
	assert.NotNil(t, st.Reset.Reset3D)
	assert.NotNil(t, st.Reset.Reset2D)
	assert.Equal(t, cfg.Layers, st.Layers)

	app.Step()
	app.Step()
	assert.Equal(t, 2, render.frames)
	assert.Contains(t, v.Profiler.String(), "render=")

	v.Store.Update(func(st *SceneState) { st.Snapshot = &SnapshotRequest{Width: 16, Height: 8} })
	app.Step()
	st = v.Store.Snapshot()
	assert.Nil(t, st.Snapshot)
	assert.NotEmpty(t, st.SnapshotURL)

	app.exit()
	assert.True(t, v.World.Disposed())
	assert.Equal(t, -1, render.w, "renderer released on exit")
}
