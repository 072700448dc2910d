package scanview

import (
	"sync"
)

// Store owns the SceneState. Loader goroutines and the main loop go
// through it; everything else works on snapshots.
type Store struct {
	mu      sync.Mutex
	state   SceneState
	version uint64
}

func NewStore(initial SceneState) *Store {
	return &Store{state: initial, version: 1}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() SceneState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Update applies fn under the store lock.
func (s *Store) Update(fn func(st *SceneState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.version++
}

// Publish writes back the results of a reconciliation pass. The
// interaction is dropped when the scan was replaced in the meantime.
func (s *Store) Publish(out Outbound) {
	s.Update(func(st *SceneState) {
		if st.Scan == out.Scan {
			st.Interaction = out.Interaction
		}
		if out.SnapshotDone {
			st.Snapshot = nil
			st.SnapshotURL = out.SnapshotURL
		}
	})
}

func (s *Store) SetResetFuncs(r ResetFuncs) {
	s.Update(func(st *SceneState) { st.Reset = r })
}
