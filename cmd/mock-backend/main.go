package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raine/visagista/internal/producer"
)

func main() {
	var addr, selfieURL string
	var delay time.Duration

	flag.StringVar(&addr, "addr", ":3001", "listen address")
	flag.DurationVar(&delay, "delay", 300*time.Millisecond, "pause before each frame")
	flag.StringVar(&selfieURL, "selfie-url", "https://storage.example/selfies/demo.jpg", "selfie URL reported to clients")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	srv := &http.Server{
		Addr:              addr,
		Handler:           producer.New(producer.DefaultScript(selfieURL)).WithDelay(delay).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("addr", addr).Str("path", producer.AnalyzePath).Dur("delay", delay).Msg("mock backend listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}
