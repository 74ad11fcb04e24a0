package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/interpreter"
	"mercator-hq/callisto/pkg/pairs"
	"mercator-hq/callisto/pkg/telemetry/logging"
	"mercator-hq/callisto/pkg/telemetry/tracing"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("scheduler closed")

// Sections resolves section names to root instructions. *policy.Manager
// implements it.
type Sections interface {
	Section(name string) (interpreter.Instruction, error)
}

// Metrics receives request lifecycle events. *metrics.Collector implements
// it.
type Metrics interface {
	RequestStarted()
	RequestYielded(section string)
	RequestFinished(section, rcode string, duration time.Duration)
}

// Tracer starts spans.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// Outcome is the final state of a submitted request.
type Outcome struct {
	RequestID string
	Section   string
	Result    interpreter.Result
	Err       error
	Yields    int
	Duration  time.Duration
}

// Scheduler advances requests on a fixed pool of workers. A request that
// yields leaves its worker; it is queued again when a module calls Resume,
// or when it is cancelled or times out.
type Scheduler struct {
	interp   *interpreter.Interpreter
	sections Sections
	config   *config.SchedulerConfig
	logger   *slog.Logger
	tracer   Tracer
	metrics  Metrics

	queue chan *task
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
	active map[*task]struct{}
	idle   sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a scheduler and starts its workers.
func New(interp *interpreter.Interpreter, sections Sections, cfg *config.SchedulerConfig, opts ...Option) (*Scheduler, error) {
	if interp == nil {
		return nil, errors.New("interpreter is nil")
	}
	if sections == nil {
		return nil, errors.New("sections is nil")
	}
	if cfg == nil {
		return nil, errors.New("scheduler config is nil")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.QueueSize < 1 {
		return nil, fmt.Errorf("queue_size must be at least 1, got %d", cfg.QueueSize)
	}

	s := &Scheduler{
		interp:   interp,
		sections: sections,
		config:   cfg,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracing.InstrumentationName),
		metrics:  discard{},
		queue:    make(chan *task, cfg.QueueSize),
		done:     make(chan struct{}),
		active:   make(map[*task]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")

	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	s.logger.Info("scheduler started",
		"workers", cfg.Workers,
		"queue_size", cfg.QueueSize,
		"request_timeout", cfg.RequestTimeout,
	)
	return s, nil
}

// NewRequest returns a request with a fresh id.
func NewRequest(lists *pairs.Lists) *interpreter.Request {
	return interpreter.NewRequest(uuid.NewString(), lists)
}

// Submit starts req in the named section. The returned channel receives
// exactly one Outcome. Cancelling ctx cancels the request; the configured
// request timeout is delivered as a timeout signal.
//
// A request without an id is given one.
func (s *Scheduler) Submit(ctx context.Context, section string, req *interpreter.Request) (<-chan Outcome, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	inst, err := s.sections.Section(section)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithRequestID(ctx, req.ID)
	ctx = logging.WithSection(ctx, section)
	ctx, span := s.tracer.Start(ctx, tracing.SpanRequest)
	tracing.SetRequestAttributes(span, req.ID, section)

	t := &task{
		req:     req,
		section: section,
		span:    span,
		start:   time.Now(),
		out:     make(chan Outcome, 1),
	}
	if s.config.RequestTimeout > 0 {
		t.ctx, t.cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
	} else {
		t.ctx, t.cancel = context.WithCancel(ctx)
	}

	req.SetLogger(s.logger.With("section", section))
	req.SetResumeHook(func() { s.wake(t) })

	if err := s.interp.Start(req, inst); err != nil {
		t.cancel()
		tracing.SetStatus(span, err)
		span.End()
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.cancel()
		tracing.SetStatus(span, ErrClosed)
		span.End()
		return nil, ErrClosed
	}
	s.active[t] = struct{}{}
	s.idle.Add(1)
	s.mu.Unlock()

	s.metrics.RequestStarted()
	t.stopWatch = context.AfterFunc(t.ctx, func() { s.interrupt(t) })

	select {
	case s.queue <- t:
	case <-t.ctx.Done():
		// interrupt queues the request, which then tears down.
	}
	return t.out, nil
}

// Active returns the number of requests that have not finished.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Close cancels every unfinished request, waits for them to finish or ctx
// to be done, and stops the workers.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := make([]*task, 0, len(s.active))
	for t := range s.active {
		pending = append(pending, t)
	}
	s.mu.Unlock()

	s.logger.Info("shutting down scheduler", "active", len(pending))
	for _, t := range pending {
		t.cancel()
	}

	drained := make(chan struct{})
	go func() {
		s.idle.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}

	close(s.done)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return err
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case t := <-s.queue:
			s.advance(t)
		case <-s.done:
			return
		}
	}
}

// advance runs t until it yields or finishes.
func (s *Scheduler) advance(t *task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished {
		// Stale wakeup.
		return
	}

	for {
		res, state, err := s.interp.Run(t.ctx, t.req)
		switch state {
		case interpreter.RunYielded:
			t.yields++
			s.metrics.RequestYielded(t.section)
			return
		case interpreter.RunReturned:
			continue
		default:
			s.finish(t, res, err)
			return
		}
	}
}

// wake queues t without blocking the caller, which may be a module
// goroutine or a timer.
func (s *Scheduler) wake(t *task) {
	select {
	case s.queue <- t:
	default:
		go func() {
			select {
			case s.queue <- t:
			case <-s.done:
			}
		}()
	}
}

// interrupt delivers cancel or timeout to t once its context is done and
// queues it so that the next run tears it down.
func (s *Scheduler) interrupt(t *task) {
	sig := interpreter.SignalCancel
	if errors.Is(t.ctx.Err(), context.DeadlineExceeded) {
		sig = interpreter.SignalTimeout
	}

	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	if err := s.interp.Signal(t.req, sig); err != nil {
		t.req.Logger().Warn("failed to signal request", "signal", sig.String(), "error", err)
	}
	t.mu.Unlock()

	s.wake(t)
}

// finish publishes the outcome of t. t.mu must be held.
func (s *Scheduler) finish(t *task, res interpreter.Result, err error) {
	t.finished = true
	t.stopWatch()
	t.cancel()

	d := time.Since(t.start)
	tracing.SetResultAttributes(t.span, res.Rcode.String(), t.yields)
	tracing.SetStatus(t.span, err)
	t.span.End()
	s.metrics.RequestFinished(t.section, res.Rcode.String(), d)

	if err != nil {
		t.req.Logger().Debug("request failed", "rcode", res.Rcode.String(), "error", err, "duration", d)
	} else {
		t.req.Logger().Debug("request finished", "rcode", res.Rcode.String(), "yields", t.yields, "duration", d)
	}

	s.mu.Lock()
	delete(s.active, t)
	s.mu.Unlock()

	t.out <- Outcome{
		RequestID: t.req.ID,
		Section:   t.section,
		Result:    res,
		Err:       err,
		Yields:    t.yields,
		Duration:  d,
	}
	s.idle.Done()
}

type discard struct{}

func (discard) RequestStarted()                               {}
func (discard) RequestYielded(string)                         {}
func (discard) RequestFinished(string, string, time.Duration) {}
