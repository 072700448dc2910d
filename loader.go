package scanview

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gekko3d/scanview/viewer/ply"
	"github.com/gekko3d/scanview/viewer/scan"
)

// Loader reads scans and their geometry on background goroutines and
// delivers results into the Store. Every LoadScan starts a new
// generation; completions from older generations are dropped.
type Loader struct {
	store *Store
	log   Logger
	gen   atomic.Uint64
	wg    sync.WaitGroup

	readScan func(path string) (*scan.Scan, error)
	readPLY  func(path string) (*ply.Model, error)
}

func NewLoader(store *Store, log Logger) *Loader {
	if log == nil {
		log = NewNopLogger()
	}
	return &Loader{
		store:    store,
		log:      log,
		readScan: scan.Load,
		readPLY:  ply.Load,
	}
}

func (l *Loader) Generation() uint64 { return l.gen.Load() }

// Wait blocks until every load started so far has finished.
func (l *Loader) Wait() { l.wg.Wait() }

// LoadScan replaces the current scan. Selection state and geometry of the
// previous scan are cleared when the new descriptor arrives.
func (l *Loader) LoadScan(path string) uint64 {
	gen := l.gen.Add(1)
	l.spawn(gen, "scan", func(id string) error {
		s, err := l.readScan(path)
		if err != nil {
			return err
		}
		ok := l.deliver(gen, func(st *SceneState) {
			st.Scan = s
			st.Mesh, st.PointCloud, st.Segmented = nil, nil, nil
			st.Interaction = Interaction{}
		})
		if !ok {
			l.log.Debugf("load %s: scan %s is stale", id, s.Id)
			return nil
		}
		l.log.Infof("load %s: scan %s ready", id, s.Id)
		l.loadGeometry(gen, s)
		return nil
	})
	return gen
}

func (l *Loader) loadGeometry(gen uint64, s *scan.Scan) {
	if uri := s.Data.Mesh; uri != "" {
		l.spawn(gen, "mesh", func(id string) error {
			m, err := l.readPLY(s.Resolve(uri))
			if err != nil {
				return err
			}
			l.deliver(gen, func(st *SceneState) { st.Mesh = m.Geometry })
			return nil
		})
	}
	if uri := s.Data.PointCloud; uri != "" {
		l.spawn(gen, "point cloud", func(id string) error {
			m, err := l.readPLY(s.Resolve(uri))
			if err != nil {
				return err
			}
			l.deliver(gen, func(st *SceneState) { st.PointCloud = m.Geometry })
			return nil
		})
	}
	if uri := s.Data.SegmentedPointCloud; uri != "" {
		l.spawn(gen, "segmented point cloud", func(id string) error {
			m, err := l.readPLY(s.Resolve(uri))
			if err != nil {
				return err
			}
			if len(m.Labels) != len(m.Geometry.Positions) {
				return fmt.Errorf("%s has no per-point labels", uri)
			}
			l.deliver(gen, func(st *SceneState) {
				st.Segmented = &SegmentedCloud{Geometry: m.Geometry, Labels: m.Labels}
			})
			return nil
		})
	}
}

// spawn runs fn on a goroutine. Failures are logged and deliver nothing.
func (l *Loader) spawn(gen uint64, what string, fn func(id string) error) {
	id := uuid.NewString()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.log.Debugf("load %s: %s (generation %d)", id, what, gen)
		if err := fn(id); err != nil {
			l.log.Errorf("load %s: %s failed: %v", id, what, err)
		}
	}()
}

// deliver applies fn if gen is still current.
func (l *Loader) deliver(gen uint64, fn func(st *SceneState)) bool {
	delivered := false
	l.store.Update(func(st *SceneState) {
		if gen != l.gen.Load() {
			return
		}
		fn(st)
		delivered = true
	})
	return delivered
}
