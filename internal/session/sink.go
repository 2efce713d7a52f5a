package session

import (
	"context"

	"github.com/raine/visagista/internal/analysis"
)

// Sink receives every state the orchestrator publishes, in order, from
// the goroutine running the session. Calls never overlap, even across
// runs. ctx is the run's context; a Sink that may block should give up
// when it is done.
type Sink interface {
	Publish(ctx context.Context, s analysis.State)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, s analysis.State)

func (f SinkFunc) Publish(ctx context.Context, s analysis.State) {
	f(ctx, s)
}

// ChannelSink sends published states on a channel. A send that is still
// blocked when the run is cancelled is dropped.
type ChannelSink chan<- analysis.State

func (c ChannelSink) Publish(ctx context.Context, s analysis.State) {
	select {
	case c <- s:
	case <-ctx.Done():
	}
}

type nopSink struct{}

func (nopSink) Publish(context.Context, analysis.State) {}
