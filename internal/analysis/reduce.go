package analysis

import "fmt"

// Reduce returns the state that follows s after ev. It is pure: s is not
// modified and the result shares no mutable memory with it.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case Progress:
		s.ProgressPercent = clampPercent(e.Percent)
		s.ProgressStatus = e.Status

	case SelfieReady:
		s.SelfieURL = e.URL
		if s.Phase == PhaseRunning {
			s.Phase = PhasePartiallyReady
		}

	case AnalysisReady:
		s.AnalysisText = e.Text

	case ImageReady:
		recs := make([]ImageArtifact, len(s.Recommendations), len(s.Recommendations)+1)
		copy(recs, s.Recommendations)
		s.Recommendations = append(recs, e.Artifact)

	case UsageReady:
		m := e.Metrics
		s.Usage = &m

	case Complete:
		s.Phase = PhaseSucceeded

	case PartialError:
		// Diagnostic only. A failed sub-task leaves the run as it was.

	case FatalError:
		s.Phase = PhaseFailed
		s.Err = e.Message

	default:
		// Unreachable: Event cannot be implemented outside this package.
		panic(fmt.Sprintf("analysis: unhandled event %T", ev))
	}
	return s
}

// clampPercent keeps progress in 0..100. Regressions are allowed; the
// producer's value is shown as reported.
func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
