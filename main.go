package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/raine/visagista/internal/analysis"
	"github.com/raine/visagista/internal/config"
	"github.com/raine/visagista/internal/photo"
	"github.com/raine/visagista/internal/report"
	"github.com/raine/visagista/internal/session"
)

func main() {
	var configPath, outDir string
	flag.StringVar(&configPath, "config", "", "YAML config file")
	flag.StringVar(&outDir, "out", "", "directory to save the generated images to")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: visagista [-config file] [-out dir] <photo path|url>\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  VISAGISTA_ENDPOINT        - analysis endpoint URL\n")
		fmt.Fprintf(os.Stderr, "  VISAGISTA_REQUEST_TIMEOUT - wait for response headers, e.g. 30s\n")
		fmt.Fprintf(os.Stderr, "  LOG_LEVEL                 - debug, info, warn or error\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	config.LoadEnvFile()
	setupLogging()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	state, err := run(ctx, cfg, flag.Arg(0))
	if state.Phase != analysis.PhaseIdle {
		fmt.Println(report.Summary(state, cfg.Pricing))
	}

	if outDir != "" && len(state.Recommendations) > 0 {
		paths, saveErr := report.SaveArtifacts(outDir, state.Recommendations)
		if saveErr != nil {
			log.Error().Err(saveErr).Msg("failed to save images")
		}
		for _, p := range paths {
			fmt.Println(p)
		}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("analysis cancelled")
		} else {
			log.Error().Err(err).Msg("analysis failed")
		}
		cancel()
		os.Exit(1)
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level := zerolog.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		parsed, err := zerolog.ParseLevel(v)
		if err != nil {
			log.Warn().Str("level", v).Msg("unknown LOG_LEVEL, using info")
		} else {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
}

// run loads the photo and drives one analysis while a second goroutine
// reports the published states.
func run(ctx context.Context, cfg *config.Config, source string) (analysis.State, error) {
	image, err := photo.NewLoader().
		WithTimeout(cfg.RequestTimeout).
		WithMaxSize(cfg.MaxPhotoBytes).
		Load(ctx, source)
	if err != nil {
		return analysis.NewState(), fmt.Errorf("failed to load photo: %w", err)
	}

	states := make(chan analysis.State, 16)
	orchestrator := session.New(cfg.Endpoint).
		WithRequestTimeout(cfg.RequestTimeout).
		WithSink(session.ChannelSink(states))

	var result session.Result
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(states)
		var err error
		result, err = orchestrator.Run(gctx, session.Request{Image: image, UserData: cfg.Profile})
		return err
	})

	g.Go(func() error {
		logProgress(states, cfg.Pricing)
		return nil
	})

	err = g.Wait()
	if len(result.PartialErrors) > 0 || result.Dropped > 0 {
		log.Warn().
			Int("partialErrors", len(result.PartialErrors)).
			Int("dropped", result.Dropped).
			Msg("analysis finished with gaps")
	}
	return result.State, err
}

// logProgress logs what changed between consecutive states until states
// is closed.
func logProgress(states <-chan analysis.State, pricing analysis.Pricing) {
	last := analysis.NewState()
	for s := range states {
		if s.ProgressPercent != last.ProgressPercent || s.ProgressStatus != last.ProgressStatus {
			log.Info().Int("progress", s.ProgressPercent).Str("status", s.ProgressStatus).Msg("progress")
		}
		if s.HasSelfie() && !last.HasSelfie() {
			log.Info().Str("selfieUrl", s.SelfieURL).Msg("selfie stored")
		}
		if s.AnalysisText != "" && last.AnalysisText == "" {
			log.Info().Int("length", len(s.AnalysisText)).Msg("analysis text received")
		}
		for _, r := range s.Recommendations[len(last.Recommendations):] {
			log.Info().Str("style", r.Style).Str("type", string(r.Type)).Msg("recommendation received")
		}
		if s.Usage != nil && last.Usage == nil {
			log.Info().Str("cost", analysis.FormatUSD(pricing.Estimate(*s.Usage))).Msg("usage received")
		}
		last = s
	}
}
