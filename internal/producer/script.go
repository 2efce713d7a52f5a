// Package producer is a scripted stand-in for the analysis backend. It
// speaks the same wire format as the real job and replays a fixed
// sequence of frames, which makes runs reproducible in tests and demos.
package producer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/raine/visagista/internal/analysis"
)

// Step is one write to the stream.
type Step struct {
	Frame map[string]any // encoded as a single data frame
	Raw   string         // written verbatim when Frame is nil
	Delay time.Duration  // wait before writing; zero uses the server default
}

// Script is the ordered list of writes for one request.
type Script []Step

// After returns a copy of s that waits d before being written.
func (s Step) After(d time.Duration) Step {
	s.Delay = d
	return s
}

func (s Step) encode() (string, error) {
	if s.Frame == nil {
		return s.Raw, nil
	}
	data, err := json.Marshal(s.Frame)
	if err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}
	return "data: " + string(data) + "\n\n", nil
}

func Progress(percent int, status string) Step {
	return Step{Frame: map[string]any{"type": analysis.KindProgress, "status": status, "progress": percent}}
}

func Selfie(url string) Step {
	return Step{Frame: map[string]any{"type": analysis.KindSelfie, "selfie_url": url}}
}

func Analysis(text string) Step {
	return Step{Frame: map[string]any{"type": analysis.KindAnalysis, "analysis": text}}
}

func Image(index int, a analysis.ImageArtifact) Step {
	return Step{Frame: map[string]any{
		"type":  analysis.KindImage,
		"index": index,
		"image": map[string]any{
			"style":       a.Style,
			"type":        string(a.Type),
			"frame_name":  a.FrameName,
			"description": a.Description,
			"data":        a.ImageData,
		},
	}}
}

func Usage(m analysis.UsageMetrics) Step {
	textGenerations := 0
	if m.HasTextGeneration {
		textGenerations = 1
	}
	return Step{Frame: map[string]any{
		"type": analysis.KindUsage,
		"usage": map[string]any{
			"prompt_tokens":           m.PromptTokens,
			"output_tokens":           m.OutputTokens,
			"total_tokens":            m.TotalTokens,
			"image_generations":       m.ImageGenerations,
			"text_generations":        textGenerations,
			"processing_time_seconds": m.ProcessingTimeSeconds,
		},
	}}
}

func Complete() Step {
	return Step{Frame: map[string]any{"type": analysis.KindComplete, "success": true, "progress": 100}}
}

// Error reports a failed sub-task; kind is one of the error discriminators.
func Error(kind, message string) Step {
	return Step{Frame: map[string]any{"type": kind, "error": message}}
}

// Raw writes line as is, e.g. a malformed frame or a truncated tail.
func Raw(line string) Step {
	return Step{Raw: line}
}

// SamplePNG is a 1x1 PNG used as image payload by DefaultScript.
const SamplePNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type frameStyle struct {
	style, name, description string
}

var defaultFrames = []frameStyle{
	{"round acetate", "Redondas de Acetato", "Suavizan los ángulos marcados de la mandíbula"},
	{"aviator metal", "Aviador Metálico", "Equilibran una frente amplia con un puente fino"},
}

// DefaultScript reproduces a complete run: upload, text analysis, two
// frame styles pictured on the face and as a product, usage and complete.
func DefaultScript(selfieURL string) Script {
	script := Script{
		Progress(5, "Subiendo imagen..."),
		Selfie(selfieURL),
		Progress(15, "Analizando tu rostro..."),
		Analysis("## Forma del rostro\nOvalada, con pómulos definidos.\n\n## Recomendación\nMonturas redondas o aviador."),
		Progress(50, "Generando monturas..."),
	}

	total := len(defaultFrames) * 2
	sent := 0
	for _, f := range defaultFrames {
		for _, typ := range []analysis.ArtifactType{analysis.ArtifactOnFace, analysis.ArtifactProduct} {
			script = append(script, Image(sent, analysis.ImageArtifact{
				Style:       f.style,
				Type:        typ,
				FrameName:   f.name,
				Description: f.description,
				ImageData:   SamplePNG,
			}))
			sent++
			script = append(script, Progress(50+sent*12, fmt.Sprintf("Imagen %d/%d enviada", sent, total)))
		}
	}

	return append(script,
		Usage(analysis.UsageMetrics{
			PromptTokens:          5230,
			OutputTokens:          1840,
			TotalTokens:           7070,
			ImageGenerations:      total,
			HasTextGeneration:     true,
			ProcessingTimeSeconds: 94.2,
		}),
		Complete(),
	)
}
