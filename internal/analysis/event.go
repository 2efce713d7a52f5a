package analysis

// Event is one typed record from the analysis stream. The set of
// implementations is closed: only the types in this file satisfy it.
type Event interface {
	// Kind returns the wire discriminator the event was parsed from.
	Kind() string
	isEvent()
}

// Wire discriminators.
const (
	KindProgress      = "progress"
	KindSelfie        = "selfie"
	KindAnalysis      = "analysis"
	KindImage         = "image"
	KindUsage         = "usage"
	KindComplete      = "complete"
	KindError         = "error"
	KindAnalysisError = "analysis_error"
	KindImagesError   = "images_error"
	// KindFatal is never sent by the producer. The orchestrator raises it
	// for transport failures.
	KindFatal = "fatal"
)

type Progress struct {
	Percent int
	Status  string
}

type SelfieReady struct {
	URL string
}

type AnalysisReady struct {
	Text string
}

type ImageReady struct {
	Artifact ImageArtifact
}

type UsageReady struct {
	Metrics UsageMetrics
}

type Complete struct{}

// PartialError is a failed sub-task. It never fails the run.
type PartialError struct {
	Source  string // KindError, KindAnalysisError or KindImagesError
	Message string
}

// FatalError ends the run in PhaseFailed.
type FatalError struct {
	Message string
}

func (Progress) Kind() string      { return KindProgress }
func (SelfieReady) Kind() string   { return KindSelfie }
func (AnalysisReady) Kind() string { return KindAnalysis }
func (ImageReady) Kind() string    { return KindImage }
func (UsageReady) Kind() string    { return KindUsage }
func (Complete) Kind() string      { return KindComplete }
func (e PartialError) Kind() string {
	if e.Source == "" {
		return KindError
	}
	return e.Source
}
func (FatalError) Kind() string { return KindFatal }

func (Progress) isEvent()      {}
func (SelfieReady) isEvent()   {}
func (AnalysisReady) isEvent() {}
func (ImageReady) isEvent()    {}
func (UsageReady) isEvent()    {}
func (Complete) isEvent()      {}
func (PartialError) isEvent()  {}
func (FatalError) isEvent()    {}

// Terminal reports whether ev ends the run.
func Terminal(ev Event) bool {
	switch ev.(type) {
	case Complete, FatalError:
		return true
	}
	return false
}
