// Package report renders a finished analysis for the terminal and writes
// its generated images to disk.
package report

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"

	"github.com/raine/visagista/internal/analysis"
)

func formatText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

// Summary renders s as plain text. Sections the run never reached are
// left out; the cost line needs usage metrics.
func Summary(s analysis.State, p analysis.Pricing) string {
	var b strings.Builder

	b.WriteString(formatText(`
		Status: %s
		Progress: %d%% (%s)
	`, s.Phase, s.ProgressPercent, s.ProgressStatus))

	if s.Err != "" {
		b.WriteString("\nError: " + s.Err)
	}
	if s.HasSelfie() {
		b.WriteString("\nSelfie: " + s.SelfieURL)
	}

	if s.AnalysisText != "" {
		b.WriteString("\n\nAnalysis:\n")
		b.WriteString(strings.TrimSpace(s.AnalysisText))
	}

	if len(s.Recommendations) > 0 {
		fmt.Fprintf(&b, "\n\nRecommendations (%d):", len(s.Recommendations))
		for i, r := range s.Recommendations {
			fmt.Fprintf(&b, "\n  %d. %s [%s]", i+1, r.FrameName, r.Type)
			if r.Description != "" {
				b.WriteString(": " + r.Description)
			}
		}
	}

	if s.Usage != nil {
		u := s.Usage
		b.WriteString("\n\n")
		b.WriteString(formatText(`
			Usage:
			  Prompt tokens: %d
			  Output tokens: %d
			  Total tokens: %d
			  Images generated: %d
			  Processing time: %.1fs
			  Estimated cost: %s
		`,
			u.PromptTokens,
			u.OutputTokens,
			u.TotalTokens,
			u.ImageGenerations,
			u.ProcessingTimeSeconds,
			analysis.FormatUSD(p.Estimate(*u)),
		))
	}

	return b.String()
}
