package sim

import "math/rand"

// Store owns the live SystemState. All mutation goes through Apply with a
// mutation from the closed set; direct field writes from other packages are
// impossible because the document is only ever handed out as a clone.
//
// The Store is not internally locked: it is owned by the engine goroutine,
// which is the only caller of Apply and Snapshot at runtime. Tests drive it
// single-threaded with a fixed seed.
type Store struct {
	cfg   SimConfig
	state SystemState
	seq   uint64
}

// NewStore builds a Store around the boot-time document.
func NewStore(cfg SimConfig) *Store {
	return &Store{
		cfg:   cfg,
		state: NewSystemState(cfg),
	}
}

// Snapshot returns a deep copy of the current document.
func (st *Store) Snapshot() SystemState {
	return st.state.Clone()
}

// Seq returns the number of mutations applied so far. Broadcast snapshots
// carry this as a global sequence number so per-session ordering is
// observable.
func (st *Store) Seq() uint64 {
	return st.seq
}

// Apply performs one mutation atomically with respect to Snapshot calls and
// returns the resulting document as a clone.
func (st *Store) Apply(m Mutation, rng *rand.Rand) SystemState {
	m.apply(&st.state, st.cfg, rng)
	st.seq++
	return st.state.Clone()
}

// Config returns the immutable simulation parameters.
func (st *Store) Config() SimConfig {
	return st.cfg
}
