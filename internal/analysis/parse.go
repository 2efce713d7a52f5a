package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrMalformed marks a payload that is not a valid event record.
	ErrMalformed = errors.New("malformed event")
	// ErrUnknownType marks a well-formed record with an unrecognized
	// discriminator, e.g. an event kind added by a newer producer.
	ErrUnknownType = errors.New("unknown event type")
)

// wireEvent is the union of every field the producer sends. Pointers
// distinguish an absent field from its zero value.
type wireEvent struct {
	Type      *string    `json:"type"`
	Progress  *float64   `json:"progress"`
	Status    string     `json:"status"`
	SelfieURL string     `json:"selfie_url"`
	Analysis  *string    `json:"analysis"`
	Image     *wireImage `json:"image"`
	Usage     *wireUsage `json:"usage"`
	Error     *string    `json:"error"`
}

type wireImage struct {
	Style       string `json:"style"`
	Type        string `json:"type"`
	FrameName   string `json:"frame_name"`
	Description string `json:"description"`
	Data        string `json:"data"`
}

type wireUsage struct {
	PromptTokens          int64   `json:"prompt_tokens"`
	OutputTokens          int64   `json:"output_tokens"`
	TotalTokens           int64   `json:"total_tokens"`
	ImageGenerations      int     `json:"image_generations"`
	TextGenerations       int     `json:"text_generations"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// Parse turns one frame payload into an Event. Every failure wraps
// ErrMalformed or ErrUnknownType; callers drop the payload and continue.
// Parse never returns FatalError.
func Parse(payload string) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Type == nil || *w.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch kind := *w.Type; kind {
	case KindProgress:
		if w.Progress == nil {
			return nil, fmt.Errorf("%w: progress event without progress", ErrMalformed)
		}
		// Bound before converting; Reduce does the real 0..100 clamp.
		p := math.Max(math.Min(math.Round(*w.Progress), 1e6), -1e6)
		return Progress{Percent: int(p), Status: w.Status}, nil

	case KindSelfie:
		if strings.TrimSpace(w.SelfieURL) == "" {
			return nil, fmt.Errorf("%w: selfie event without selfie_url", ErrMalformed)
		}
		return SelfieReady{URL: w.SelfieURL}, nil

	case KindAnalysis:
		if w.Analysis == nil {
			return nil, fmt.Errorf("%w: analysis event without analysis", ErrMalformed)
		}
		return AnalysisReady{Text: *w.Analysis}, nil

	case KindImage:
		if w.Image == nil {
			return nil, fmt.Errorf("%w: image event without image", ErrMalformed)
		}
		artifact := ImageArtifact{
			Style:       w.Image.Style,
			Type:        ArtifactType(w.Image.Type),
			FrameName:   w.Image.FrameName,
			Description: w.Image.Description,
			ImageData:   w.Image.Data,
		}
		if !artifact.Type.Valid() {
			return nil, fmt.Errorf("%w: image type %q", ErrMalformed, w.Image.Type)
		}
		if artifact.ImageData == "" {
			return nil, fmt.Errorf("%w: image event without data", ErrMalformed)
		}
		return ImageReady{Artifact: artifact}, nil

	case KindUsage:
		if w.Usage == nil {
			return nil, fmt.Errorf("%w: usage event without usage", ErrMalformed)
		}
		return UsageReady{Metrics: UsageMetrics{
			PromptTokens:          w.Usage.PromptTokens,
			OutputTokens:          w.Usage.OutputTokens,
			TotalTokens:           w.Usage.TotalTokens,
			ImageGenerations:      w.Usage.ImageGenerations,
			HasTextGeneration:     w.Usage.TextGenerations > 0,
			ProcessingTimeSeconds: w.Usage.ProcessingTimeSeconds,
		}}, nil

	case KindComplete:
		return Complete{}, nil

	case KindError, KindAnalysisError, KindImagesError:
		// The producer sends null when the sub-task had no message.
		msg := ""
		if w.Error != nil {
			msg = *w.Error
		}
		return PartialError{Source: kind, Message: msg}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, kind)
	}
}
