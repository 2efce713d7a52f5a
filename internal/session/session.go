// Package session runs one selfie analysis end to end: it posts the photo,
// reads the event stream, folds every event into the analysis state and
// publishes each new state to a Sink.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raine/visagista/internal/analysis"
	"github.com/raine/visagista/internal/sse"
)

const (
	// DefaultReadSize is the buffer size of each read from the stream.
	DefaultReadSize = 4096
	// DefaultRequestTimeout bounds the wait for response headers. The
	// stream body has no deadline of its own.
	DefaultRequestTimeout = 30 * time.Second
)

var (
	ErrRunActive   = errors.New("a run is already active")
	ErrNotReset    = errors.New("state must be reset before starting a new run")
	ErrStreamEnded = errors.New("stream ended without completion signal")
	ErrSuperseded  = errors.New("run was superseded by a reset")
	ErrFatal       = errors.New("analysis failed")
)

// Result summarizes a finished run.
type Result struct {
	RunID         string
	State         analysis.State
	PartialErrors []analysis.PartialError
	Dropped       int // frames rejected by the parser
}

// Orchestrator owns the analysis state and drives at most one run at a
// time. Run requires an Idle state; call Reset between runs. Sink
// deliveries never overlap, so a Sink may call Reset but must not start
// a run itself.
type Orchestrator struct {
	endpoint string
	client   *resty.Client
	sink     Sink
	logger   zerolog.Logger
	readSize int
	parse    func(payload string) (analysis.Event, error)

	mu     sync.Mutex
	state  analysis.State
	gen    uint64 // bumped by Reset; a run only applies events of its own generation
	active bool
	cancel context.CancelFunc

	// pubMu serializes sink deliveries across runs. It is never held
	// together with mu while the sink runs.
	pubMu sync.Mutex
}

// New creates an Orchestrator posting to endpoint.
func New(endpoint string) *Orchestrator {
	return &Orchestrator{
		endpoint: endpoint,
		client:   newHTTPClient(DefaultRequestTimeout),
		sink:     nopSink{},
		logger:   log.Logger,
		readSize: DefaultReadSize,
		parse:    analysis.Parse,
		state:    analysis.NewState(),
	}
}

func newHTTPClient(headerTimeout time.Duration) *resty.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout

	return resty.New().
		SetDebug(false).
		SetTransport(transport).
		SetHeaders(map[string]string{
			"Accept":       "text/event-stream",
			"Content-Type": "application/json",
		})
}

// WithSink sets where published states go.
func (o *Orchestrator) WithSink(s Sink) *Orchestrator {
	if s == nil {
		s = nopSink{}
	}
	o.sink = s
	return o
}

// WithLogger sets the logger; each run adds its runId field.
func (o *Orchestrator) WithLogger(l zerolog.Logger) *Orchestrator {
	o.logger = l
	return o
}

// WithReadSize sets the size of each stream read.
func (o *Orchestrator) WithReadSize(n int) *Orchestrator {
	if n > 0 {
		o.readSize = n
	}
	return o
}

// WithRequestTimeout makes the current HTTP client wait at most d for
// response headers. A client set with WithHTTPClient keeps its other
// settings; one whose transport is not an *http.Transport is left as is.
func (o *Orchestrator) WithRequestTimeout(d time.Duration) *Orchestrator {
	transport, err := o.client.Transport()
	if err != nil {
		o.logger.Warn().Err(err).Msg("cannot set response header timeout on custom transport")
		return o
	}
	transport = transport.Clone()
	transport.ResponseHeaderTimeout = d
	o.client.SetTransport(transport)
	return o
}

// WithHTTPClient replaces the HTTP client, including any timeout set
// earlier with WithRequestTimeout.
func (o *Orchestrator) WithHTTPClient(c *resty.Client) *Orchestrator {
	if c != nil {
		o.client = c
	}
	return o
}

// State returns a copy of the current state.
func (o *Orchestrator) State() analysis.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Active reports whether a run is in flight.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Reset replaces the state with a fresh Idle state and cancels the active
// run, if any. The cancelled run publishes nothing further.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.gen++
	cancel := o.cancel
	o.cancel = nil
	o.active = false
	o.state = analysis.NewState()
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Run posts req and processes the response stream until Complete, a
// failure, or cancellation of ctx. The error is nil only when the run
// succeeded.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	r, err := o.begin(ctx)
	if err != nil {
		return Result{State: o.State()}, err
	}
	defer o.end(r)

	r.logger.Info().Str("endpoint", o.endpoint).Msg("starting analysis run")
	o.publish(r, r.result.State)

	res, err := o.client.R().
		SetContext(r.ctx).
		SetBody(req).
		SetDoNotParseResponse(true).
		Post(o.endpoint)
	if err != nil {
		if res != nil && res.RawBody() != nil {
			res.RawBody().Close()
		}
		return o.fail(r, fmt.Errorf("failed to send analysis request: %w", err))
	}

	body := res.RawBody()
	defer body.Close()

	if !res.IsSuccess() {
		return o.fail(r, newHTTPStatusError(res.StatusCode(), body))
	}
	return o.consume(r, body)
}

// RunStream processes an already open stream body, e.g. a captured
// response replayed from disk.
func (o *Orchestrator) RunStream(ctx context.Context, body io.Reader) (Result, error) {
	r, err := o.begin(ctx)
	if err != nil {
		return Result{State: o.State()}, err
	}
	defer o.end(r)

	r.logger.Info().Msg("starting analysis stream replay")
	o.publish(r, r.result.State)
	return o.consume(r, body)
}

type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
	logger zerolog.Logger
	result Result
}

func (r *run) done(err error) (Result, error) {
	res := r.result
	res.State = res.State.Clone()
	return res, err
}

func (o *Orchestrator) begin(ctx context.Context) (*run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active {
		return nil, ErrRunActive
	}
	if o.state.Phase != analysis.PhaseIdle {
		return nil, ErrNotReset
	}

	runCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	o.active = true
	o.cancel = cancel
	o.state = analysis.Start(o.state)

	return &run{
		ctx:    runCtx,
		cancel: cancel,
		gen:    o.gen,
		logger: o.logger.With().Str("runId", id).Logger(),
		result: Result{RunID: id, State: o.state},
	}, nil
}

func (o *Orchestrator) end(r *run) {
	o.mu.Lock()
	if o.gen == r.gen {
		o.active = false
		o.cancel = nil
	}
	o.mu.Unlock()
	r.cancel()
}

// live reports whether r may still change state and publish.
func (o *Orchestrator) live(r *run) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen == r.gen && r.ctx.Err() == nil
}

func (o *Orchestrator) consume(r *run, body io.Reader) (Result, error) {
	dec := sse.NewDecoder()
	buf := make([]byte, o.readSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, payload := range dec.Feed(buf[:n]) {
				if done, err := o.dispatch(r, payload); done {
					return r.done(err)
				}
			}
		}
		if readErr == nil {
			continue
		}

		if !o.live(r) {
			return o.abandon(r)
		}
		if errors.Is(readErr, io.EOF) {
			if tail := dec.Close(); tail > 0 {
				r.logger.Warn().Int("bytes", tail).Msg("discarding unterminated frame at end of stream")
			}
			return o.fail(r, ErrStreamEnded)
		}
		return o.fail(r, fmt.Errorf("failed to read analysis stream: %w", readErr))
	}
}

// dispatch parses one frame payload and applies it. It reports done when
// the run is over, with the run's error.
func (o *Orchestrator) dispatch(r *run, payload string) (bool, error) {
	ev, err := o.parse(payload)
	if err != nil {
		r.result.Dropped++
		r.logger.Warn().Err(err).Str("payload", truncate(payload, 120)).Msg("dropping stream frame")
		return false, nil
	}
	return o.step(r, ev)
}

func (o *Orchestrator) step(r *run, ev analysis.Event) (bool, error) {
	if pe, ok := ev.(analysis.PartialError); ok {
		r.result.PartialErrors = append(r.result.PartialErrors, pe)
		r.logger.Warn().Str("kind", pe.Kind()).Str("error", pe.Message).Msg("analysis sub-task failed")
	}

	next, ok := o.apply(r, ev)
	if !ok {
		_, err := o.abandon(r)
		return true, err
	}
	o.publish(r, next)

	switch e := ev.(type) {
	case analysis.Complete:
		r.logger.Info().
			Int("images", len(next.Recommendations)).
			Int("partialErrors", len(r.result.PartialErrors)).
			Int("dropped", r.result.Dropped).
			Msg("analysis run completed")
		return true, nil
	case analysis.FatalError:
		r.logger.Error().Str("error", e.Message).Msg("analysis run failed")
		return true, fmt.Errorf("%w: %s", ErrFatal, e.Message)
	}
	return false, nil
}

func (o *Orchestrator) apply(r *run, ev analysis.Event) (analysis.State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.gen != r.gen || r.ctx.Err() != nil {
		return analysis.State{}, false
	}
	o.state = analysis.Reduce(o.state, ev)
	r.result.State = o.state
	return o.state, true
}

func (o *Orchestrator) publish(r *run, s analysis.State) {
	if !o.live(r) {
		return
	}
	r.logger.Debug().
		Str("phase", s.Phase.String()).
		Int("progress", s.ProgressPercent).
		Str("status", s.ProgressStatus).
		Msg("state published")

	o.pubMu.Lock()
	defer o.pubMu.Unlock()
	// A Reset may have landed since the check above. Once it has, the
	// next run's states must not be preceded by this one.
	if !o.live(r) {
		return
	}
	o.sink.Publish(r.ctx, s.Clone())
}

// fail ends a live run with a FatalError built from cause and returns
// cause. A run that is no longer live is abandoned instead.
func (o *Orchestrator) fail(r *run, cause error) (Result, error) {
	if !o.live(r) {
		return o.abandon(r)
	}
	if _, err := o.step(r, analysis.FatalError{Message: failureMessage(cause)}); !errors.Is(err, ErrFatal) {
		// lost the race against Reset or cancellation
		return r.done(err)
	}
	return r.done(cause)
}

func (o *Orchestrator) abandon(r *run) (Result, error) {
	o.mu.Lock()
	superseded := o.gen != r.gen
	o.mu.Unlock()

	if superseded {
		r.logger.Info().Msg("run superseded by reset")
		return r.done(ErrSuperseded)
	}

	err := r.ctx.Err()
	if err == nil {
		err = context.Canceled
	}
	r.logger.Info().Err(err).Msg("run cancelled")
	return r.done(err)
}

// failureMessage is the user-visible text stored in the failed state.
func failureMessage(err error) string {
	var herr *HTTPStatusError
	if errors.As(err, &herr) {
		return herr.Message
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
