package scanview

import (
	"errors"

	"github.com/gekko3d/scanview/viewer/gpu"
	"github.com/gekko3d/scanview/viewer/world"
)

// RendererFactory creates the renderer of the viewer. The returned func
// releases it.
type RendererFactory func(app *App, log Logger) (world.Renderer, func(), error)

// ViewerModule wires the scan viewer: store, loaders, world and the systems
// that drive it. It needs the time and input modules, and the window module
// unless Renderer is set.
type ViewerModule struct {
	Config   Config
	ScanPath string
	Renderer RendererFactory
}

// Viewer is the resource holding the viewer parts.
type Viewer struct {
	Config     Config
	Store      *Store
	Loader     *Loader
	Textures   *PhotoTextures
	World      *world.World
	Reconciler *Reconciler
	Profiler   *Profiler

	log     Logger
	release func()
}

func gpuRenderer(app *App, log Logger) (world.Renderer, func(), error) {
	ws, ok := Resource[*WindowState](app)
	if !ok {
		return nil, nil, errors.New("viewer needs a window")
	}
	r, err := gpu.New(ws.Glfw(), log)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Release, nil
}

func (m ViewerModule) Install(app *App, cmd *Commands) {
	log := app.Logger()
	newRenderer := m.Renderer
	if newRenderer == nil {
		newRenderer = gpuRenderer
	}
	renderer, release, err := newRenderer(app, Named(log, "gpu"))
	if err != nil {
		panic(err)
	}

	cfg := m.Config
	textures := NewPhotoTextures(cfg.MaxTextureSize, Named(log, "photos"))
	opts := cfg.WorldOptions()
	opts.Renderer = renderer
	opts.Logger = Named(log, "world")
	opts.Textures = textures.Texture
	w := world.New(opts)

	clock, _ := Resource[*Time](app)
	ropts := ReconcilerOptions{
		Logger:      log,
		Textures:    textures,
		ClickWindow: cfg.ClickWindow,
		ClickTravel: cfg.ClickTravel,
	}
	if clock != nil {
		ropts.Now = clock.Now
	}
	rec := NewReconciler(w, ropts)

	store := NewStore(SceneState{
		Layers: cfg.Layers,
		Colors: opts.Colors,
	})
	store.SetResetFuncs(rec.ResetFuncs())

	v := &Viewer{
		Config:     cfg,
		Store:      store,
		Loader:     NewLoader(store, Named(log, "loader")),
		Textures:   textures,
		World:      w,
		Reconciler: rec,
		Profiler:   NewProfiler(),
		log:        log,
		release:    release,
	}
	if m.ScanPath != "" {
		v.Loader.LoadScan(m.ScanPath)
	}

	cmd.AddResources(v)
	cmd.UseSystem(System(viewerKeyboardSystem).InStage(Update))
	cmd.UseSystem(System(viewerReconcileSystem).InStage(PostUpdate))
	cmd.UseSystem(System(viewerRenderSystem).InStage(Render))
	cmd.UseSystem(System(viewerStatsSystem).InStage(PostRender))
	cmd.OnExit(v.Close)
}

// Close disposes the world and releases the renderer. Pending loads are
// left to finish and their results are dropped.
func (v *Viewer) Close() {
	v.World.Dispose()
	if v.release != nil {
		v.release()
		v.release = nil
	}
}

var layerKeys = [...]int{Key1, Key2, Key3, Key4, Key5, Key6, Key7}

func toggleLayer(l *world.Layers, i int) {
	flags := [...]*bool{&l.Mesh, &l.PointCloud, &l.SegmentedPointCloud, &l.Skeleton, &l.Angles, &l.Cameras, &l.Workspace}
	*flags[i] = !*flags[i]
}

func viewerKeyboardSystem(in *Input, v *Viewer) {
	if in.JustPressed[KeyR] {
		if v.World.Mode() == world.ModeSelectedPhoto {
			v.Reconciler.ResetFuncs().Reset2D()
		} else {
			v.Reconciler.ResetFuncs().Reset3D()
		}
	}
	v.Store.Update(func(st *SceneState) {
		applyKeys(in, st, v.Config)
	})
}

// applyKeys maps the keyboard onto the scene state.
func applyKeys(in *Input, st *SceneState, cfg Config) {
	inter := &st.Interaction
	if in.JustPressed[KeyEscape] {
		switch {
		case inter.SelectedPose != "":
			inter.SelectedPose = ""
		default:
			inter.SelectionMethod = world.SelectNone
			inter.ClickedPoint = nil
			inter.Scaling, inter.Measuring = false, false
		}
	}
	if in.JustPressed[KeyS] && st.Snapshot == nil {
		st.Snapshot = &SnapshotRequest{Width: cfg.SnapshotSize[0], Height: cfg.SnapshotSize[1]}
	}
	if in.JustPressed[KeyP] {
		inter.SelectionMethod = world.SelectProximity
	}
	if in.JustPressed[KeyL] {
		inter.SelectionMethod = world.SelectSameLabel
	}
	if in.JustPressed[KeyO] {
		inter.SelectionMethod = world.SelectSphere
	}
	if in.JustPressed[KeyM] {
		inter.Measuring, inter.Scaling = true, false
		inter.Measurement = nil
	}
	if in.JustPressed[KeyC] {
		inter.Scaling, inter.Measuring = true, false
	}
	for i, k := range layerKeys {
		if in.JustPressed[k] {
			toggleLayer(&st.Layers, i)
		}
	}
}

func viewerReconcileSystem(in *Input, v *Viewer) {
	v.Profiler.Begin("reconcile")
	st := v.Store.Snapshot()
	out := v.Reconciler.Apply(st, FrameInput{
		Events: in.Events,
		Width:  in.WindowWidth,
		Height: in.WindowHeight,
	})
	v.Store.Publish(out)
	v.Profiler.End("reconcile")
	v.Profiler.SetCount("events", len(in.Events))
	v.Profiler.SetCount("poses", len(v.World.Poses()))

	if !out.SnapshotDone {
		return
	}
	if out.SnapshotURL == "" {
		v.log.Warnf("snapshot failed")
		return
	}
	if path := v.Config.SnapshotPath; path != "" {
		if err := WriteSnapshot(path, out.SnapshotURL); err != nil {
			v.log.Errorf("%v", err)
			return
		}
		v.log.Infof("snapshot written to %s", path)
	}
}

func viewerRenderSystem(v *Viewer) {
	v.Profiler.Begin("render")
	defer v.Profiler.End("render")
	if err := v.World.Frame(); err != nil && !errors.Is(err, world.ErrDisposed) {
		v.log.Errorf("frame: %v", err)
	}
}

// statsEvery is how many frames pass between two debug stats lines.
const statsEvery = 300

func viewerStatsSystem(v *Viewer, cmd *Commands) {
	if !v.log.DebugEnabled() || cmd.app.Frames()%statsEvery != 0 {
		return
	}
	v.log.Debugf("frame %d: %s", cmd.app.Frames(), v.Profiler)
}
