// Package analysis holds the client-side model of one selfie analysis run:
// the state, the closed set of stream events, the parser that produces
// those events from frame payloads, and the reducer that folds them.
package analysis

// Phase is the coarse lifecycle stage of a run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhasePartiallyReady
	PhaseSucceeded
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseIdle:           "idle",
	PhaseRunning:        "running",
	PhasePartiallyReady: "partially_ready",
	PhaseSucceeded:      "succeeded",
	PhaseFailed:         "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Active reports whether a run in this phase is still receiving events.
func (p Phase) Active() bool {
	return p == PhaseRunning || p == PhasePartiallyReady
}

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// ArtifactType says how a recommended frame is pictured.
type ArtifactType string

const (
	ArtifactOnFace  ArtifactType = "on_face"
	ArtifactProduct ArtifactType = "product"
)

// Valid reports whether t is one of the known artifact types.
func (t ArtifactType) Valid() bool {
	return t == ArtifactOnFace || t == ArtifactProduct
}

// ImageArtifact is one generated recommendation image.
type ImageArtifact struct {
	Style       string       // frame design identifier, e.g. "round acetate"
	Type        ArtifactType // on the user's face or product shot
	FrameName   string
	Description string
	ImageData   string // inline payload, usually a data: URL
}

// UsageMetrics are the producer's token and image counters for a run.
type UsageMetrics struct {
	PromptTokens          int64
	OutputTokens          int64
	TotalTokens           int64
	ImageGenerations      int
	HasTextGeneration     bool
	ProcessingTimeSeconds float64
}

// StartStatus is the progress label of a run that has not reported yet.
const StartStatus = "Iniciando..."

// State is the whole client-visible state of one run. It is replaced,
// never mutated: Reduce and Start return new values and leave their
// input untouched.
type State struct {
	Phase           Phase
	ProgressPercent int
	ProgressStatus  string
	SelfieURL       string // empty until the producer stored the photo
	AnalysisText    string
	Recommendations []ImageArtifact
	Usage           *UsageMetrics
	Err             string // set only when Phase is PhaseFailed
}

// NewState returns the Idle state.
func NewState() State {
	return State{Phase: PhaseIdle}
}

// Start moves an Idle state to Running with zero progress.
func Start(s State) State {
	s.Phase = PhaseRunning
	s.ProgressPercent = 0
	s.ProgressStatus = StartStatus
	s.Err = ""
	return s
}

// HasSelfie reports whether the producer has returned the stored photo URL.
func (s State) HasSelfie() bool {
	return s.SelfieURL != ""
}

// Clone returns a deep copy of s, safe to hand to another goroutine.
func (s State) Clone() State {
	if s.Recommendations != nil {
		recs := make([]ImageArtifact, len(s.Recommendations))
		copy(recs, s.Recommendations)
		s.Recommendations = recs
	}
	if s.Usage != nil {
		u := *s.Usage
		s.Usage = &u
	}
	return s
}
