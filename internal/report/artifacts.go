package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/raine/visagista/internal/analysis"
	"github.com/raine/visagista/internal/photo"
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// SaveArtifacts writes the inline image of each artifact into dir as
// NN_<type>_<style>.<ext> and returns the written paths in order.
// Artifacts without a data URL payload are skipped.
func SaveArtifacts(dir string, artifacts []analysis.ImageArtifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	for i, a := range artifacts {
		mimeType, data, err := photo.ParseDataURL(a.ImageData)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Str("style", a.Style).Msg("skipping artifact without inline image")
			continue
		}

		ext, ok := extensions[mimeType]
		if !ok {
			ext = ".bin"
		}
		name := fmt.Sprintf("%02d_%s_%s%s", i+1, a.Type, slug(a.Style), ext)
		path := filepath.Join(dir, name)

		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write artifact %s: %w", name, err)
		}
		paths = append(paths, path)
	}

	log.Info().Int("saved", len(paths)).Int("total", len(artifacts)).Str("dir", dir).Msg("artifacts saved")
	return paths, nil
}

// slug makes a style identifier safe for a file name.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "frame"
	}
	return out
}
