package anomaly

import (
	"sync/atomic"

	"github.com/lucylow/coral-rush-sub001/internal/domain"
)

// Model lifecycle states.
const (
	StateUninitialized = "uninitialized"
	StateTraining      = "training"
	StateReady         = "ready"
	StateDegraded      = "degraded"
)

// Neutral defaults returned whenever the model cannot score. Midpoint of
// the fraud scale with middling confidence, so fusion steers toward
// review rather than silent approval or rejection.
const (
	NeutralScore      = 5.0
	NeutralConfidence = 0.5
)

// snapshot is the immutable (scaler, forest) pair swapped in atomically by
// the trainer.
type snapshot struct {
	scaler  *StandardScaler
	forest  *IsolationForest
	version string
}

// Model owns the current anomaly-detection snapshot. Reads never block;
// the trainer is the single writer and replaces the whole pair at once so
// inference never sees a scaler from one fit and a forest from another.
type Model struct {
	snap  atomic.Pointer[snapshot]
	state atomic.Value // string
}

// Inference is the ML half of a fraud evaluation.
type Inference struct {
	Score      float64 `json:"score"`      // 0-10
	Confidence float64 `json:"confidence"` // 0-1
	Degraded   bool    `json:"degraded"`   // neutral default was used
}

// NewModel returns a model in the uninitialized state.
func NewModel() *Model {
	m := &Model{}
	m.state.Store(StateUninitialized)
	return m
}

// State returns the current lifecycle state.
func (m *Model) State() string {
	return m.state.Load().(string)
}

// Version returns the version of the published snapshot, or "" if none.
func (m *Model) Version() string {
	if snap := m.snap.Load(); snap != nil {
		return snap.version
	}
	return ""
}

// Ready reports whether inference currently uses a fitted snapshot.
func (m *Model) Ready() bool {
	return m.State() == StateReady
}

// Infer scores a single feature vector. Outside the ready state, or if no
// snapshot is published, it returns the neutral default rather than failing.
func (m *Model) Infer(vec domain.FeatureVector) Inference {
	if m.State() != StateReady {
		return Inference{Score: NeutralScore, Confidence: NeutralConfidence, Degraded: true}
	}
	snap := m.snap.Load()
	if snap == nil {
		return Inference{Score: NeutralScore, Confidence: NeutralConfidence, Degraded: true}
	}

	d := snap.forest.DecisionFunction(snap.scaler.Transform(vec.Slice()))

	score := 5 - d
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}

	confidence := d
	if confidence < 0 {
		confidence = -confidence
	}
	confidence /= 2
	if confidence > 1 {
		confidence = 1
	}

	return Inference{Score: score, Confidence: confidence}
}

// beginTraining moves an idle model into the training state. A ready model
// keeps serving its current snapshot while a retrain runs.
func (m *Model) beginTraining() {
	if m.State() != StateReady {
		m.state.Store(StateTraining)
	}
}

// publish atomically swaps in a new snapshot and marks the model ready.
func (m *Model) publish(scaler *StandardScaler, forest *IsolationForest, version string) {
	m.snap.Store(&snapshot{scaler: scaler, forest: forest, version: version})
	m.state.Store(StateReady)
}

// degrade marks a failed fit. The prior snapshot, if any, is preserved for
// a later retry but is not used while degraded.
func (m *Model) degrade() {
	m.state.Store(StateDegraded)
}
