package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raine/visagista/internal/analysis"
	"github.com/raine/visagista/internal/report"
	"github.com/raine/visagista/internal/session"
)

func main() {
	var chunk int
	flag.IntVar(&chunk, "chunk", session.DefaultReadSize, "bytes per read")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: replay [-chunk n] <captured-stream-file>\n")
		os.Exit(1)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open stream file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	published := 0
	orchestrator := session.New("").
		WithReadSize(chunk).
		WithSink(session.SinkFunc(func(_ context.Context, s analysis.State) {
			published++
		}))

	res, err := orchestrator.RunStream(context.Background(), f)
	fmt.Println(report.Summary(res.State, analysis.DefaultPricing))
	fmt.Printf("\nStates published: %d, partial errors: %d, dropped frames: %d\n",
		published, len(res.PartialErrors), res.Dropped)

	if err != nil {
		log.Error().Err(err).Msg("replay ended in failure")
		f.Close()
		os.Exit(1)
	}
}
