package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/annotie/internal/record"
)

// DefaultTimeout bounds a single send attempt.
const DefaultTimeout = 30 * time.Second

// ErrUndelivered is returned by Run when the syncer was closed while a
// failed change-set was still waiting for a retry.
var ErrUndelivered = errors.New("change-sets left undelivered")

// Delivery is one change-set stamped for transmission.
type Delivery struct {
	AnnotationID string
	// ID is the content-addressed change-set id, the idempotency key of
	// the persistence service.
	ID        string
	Session   string
	Seq       int64
	ChangeSet record.ChangeSet
}

// Transport sends one delivery to the persistence service. Send must be
// safe to call again with the same delivery after a failure.
type Transport interface {
	Send(ctx context.Context, d Delivery) error
}

// Result reports the outcome of one send attempt.
type Result struct {
	Delivery Delivery
	// Err is nil on success, a *TransportError otherwise.
	Err      error
	Attempt  int
	Duration time.Duration
}

// ResultHandler receives every send outcome. It runs on the Run goroutine
// and must not block on the Syncer.
type ResultHandler func(Result)

// Option configures a Syncer.
type Option func(*Syncer)

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(s *Syncer) {
		s.session = id
	}
}

// WithSessionGenerator sets the generator used when no session id is given.
//
// Default: UUIDv7Generator
func WithSessionGenerator(gen SessionGenerator) Option {
	return func(s *Syncer) {
		s.sessionGen = gen
	}
}

// WithClock resumes a session from an existing clock.
func WithClock(c *Clock) Option {
	return func(s *Syncer) {
		s.clock = c
	}
}

// WithTimeout bounds each send attempt.
//
// Default: 30s (DefaultTimeout)
func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		s.timeout = d
	}
}

// WithResultHandler registers the callback for send outcomes.
func WithResultHandler(h ResultHandler) Option {
	return func(s *Syncer) {
		s.onResult = h
	}
}

// Syncer queues the change-sets of one editing session and sends them to
// the persistence service in order.
type Syncer struct {
	transport    Transport
	annotationID string
	session      string
	sessionGen   SessionGenerator
	clock        *Clock
	timeout      time.Duration
	onResult     ResultHandler

	queue *deliveryQueue
	retry chan struct{}
	done  chan struct{}

	mu       sync.Mutex
	closed   bool
	attempts int // attempts made on the current head
}

// New creates a Syncer for one annotation. Run must be started for queued
// change-sets to be sent.
func New(transport Transport, annotationID string, opts ...Option) *Syncer {
	s := &Syncer{
		transport:    transport,
		annotationID: annotationID,
		sessionGen:   UUIDv7Generator{},
		timeout:      DefaultTimeout,
		queue:        newDeliveryQueue(),
		retry:        make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.session == "" {
		s.session = s.sessionGen.Generate()
	}
	if s.clock == nil {
		s.clock = NewClock()
	}
	return s
}

// Session returns the session id stamped on every delivery.
func (s *Syncer) Session() string { return s.session }

// AnnotationID returns the annotation this syncer writes to.
func (s *Syncer) AnnotationID() string { return s.annotationID }

// Pending returns the number of change-sets not yet acknowledged.
func (s *Syncer) Pending() int { return s.queue.Len() }

// Submit stamps a change-set and queues it. It never waits for the
// network. An empty change-set is not sent and Submit reports false.
func (s *Syncer) Submit(cs record.ChangeSet) (Delivery, bool, error) {
	if cs.IsEmpty() {
		deliveriesTotal.WithLabelValues(resultSkipped).Inc()
		return Delivery{}, false, nil
	}

	// Stamping and enqueueing happen under one lock so seq order and queue
	// order agree when Submit is called concurrently.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Delivery{}, false, ErrClosed
	}

	seq := s.clock.Next()
	id, err := record.ChangeSetID(s.annotationID, s.session, seq, cs)
	if err != nil {
		return Delivery{}, false, fmt.Errorf("submit: %w", err)
	}
	d := Delivery{
		AnnotationID: s.annotationID,
		ID:           id,
		Session:      s.session,
		Seq:          seq,
		ChangeSet:    cs,
	}
	if !s.queue.Enqueue(d) {
		return Delivery{}, false, ErrClosed
	}
	pendingDeliveries.Inc()
	slog.Debug("change-set queued",
		"annotation", s.annotationID,
		"session", s.session,
		"seq", seq,
		"changeset", shortID(id),
		"rows", cs.Len(),
	)
	return d, true, nil
}

// Retry resumes sending after a failure. It is a no-op when nothing failed.
func (s *Syncer) Retry() {
	select {
	case s.retry <- struct{}{}:
	default:
	}
}

// Close stops accepting change-sets. Run keeps sending what is queued and
// returns once the queue is empty.
func (s *Syncer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue.Close()
	close(s.done)
}

// Run is the single writer loop. It sends the head of the queue, and on a
// failure waits for Retry before sending it again, so later change-sets
// never overtake an earlier one.
//
// Run returns nil after Close once everything was delivered, ErrUndelivered
// if Close happened while blocked on a failure, or the context error.
// Change-sets still queued on an error return no longer count as pending
// deliveries in the metrics.
func (s *Syncer) Run(ctx context.Context) (err error) {
	slog.Info("syncer starting",
		"annotation", s.annotationID,
		"session", s.session,
	)
	defer func() {
		if err != nil {
			pendingDeliveries.Sub(float64(s.queue.Len()))
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			slog.Info("syncer stopping: context cancelled", "pending", s.queue.Len())
			return err
		}

		if d, ok := s.queue.Peek(); ok {
			if s.deliver(ctx, d) {
				continue
			}
			if err := s.awaitRetry(ctx); err != nil {
				return err
			}
			continue
		}

		// Nothing queued - wait for a submission, Close, or cancellation
		select {
		case <-ctx.Done():
			slog.Info("syncer stopping: context cancelled", "pending", s.queue.Len())
			return ctx.Err()

		case _, open := <-s.queue.Wait():
			if !open && s.queue.Len() == 0 {
				slog.Info("syncer stopping: closed")
				return nil
			}
		}
	}
}

// deliver makes one attempt at the head of the queue and reports whether
// it was acknowledged.
func (s *Syncer) deliver(ctx context.Context, d Delivery) bool {
	s.attempts++
	attempt := s.attempts

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	err := s.transport.Send(sendCtx, d)
	elapsed := time.Since(start)
	cancel()
	sendDuration.Observe(elapsed.Seconds())

	if err != nil {
		terr := asTransportError(d, err)
		deliveriesTotal.WithLabelValues(resultFailure).Inc()
		logDeliveryError(d, attempt, terr)
		// Discard a Retry issued before this failure; the handler may
		// issue a fresh one.
		select {
		case <-s.retry:
		default:
		}
		s.report(Result{Delivery: d, Err: terr, Attempt: attempt, Duration: elapsed})
		return false
	}

	s.queue.Pop()
	s.attempts = 0
	pendingDeliveries.Dec()
	deliveriesTotal.WithLabelValues(resultSuccess).Inc()
	slog.Debug("change-set delivered",
		"annotation", d.AnnotationID,
		"seq", d.Seq,
		"changeset", shortID(d.ID),
		"attempt", attempt,
	)
	s.report(Result{Delivery: d, Attempt: attempt, Duration: elapsed})
	return true
}

func (s *Syncer) awaitRetry(ctx context.Context) error {
	select {
	case <-ctx.Done():
		slog.Info("syncer stopping: context cancelled", "pending", s.queue.Len())
		return ctx.Err()
	case <-s.retry:
		return nil
	case <-s.done:
		// A Retry issued before Close still wins.
		select {
		case <-s.retry:
			return nil
		default:
		}
		n := s.queue.Len()
		slog.Warn("syncer stopping: closed with undelivered change-sets", "pending", n)
		return fmt.Errorf("%w: %d pending", ErrUndelivered, n)
	}
}

func (s *Syncer) report(r Result) {
	if s.onResult != nil {
		s.onResult(r)
	}
}

// asTransportError fills in the delivery context of err.
func asTransportError(d Delivery, err error) *TransportError {
	var terr *TransportError
	if !errors.As(err, &terr) {
		terr = &TransportError{Err: err}
	}
	if terr.AnnotationID == "" {
		terr.AnnotationID = d.AnnotationID
	}
	if terr.ChangeSetID == "" {
		terr.ChangeSetID = d.ID
	}
	if terr.Seq == 0 {
		terr.Seq = d.Seq
	}
	return terr
}

// logDeliveryError logs a failed send with everything needed to replay it.
func logDeliveryError(d Delivery, attempt int, err *TransportError) {
	slog.Error("change-set delivery failed",
		"error", err.Err,
		"status", err.StatusCode,
		"annotation", d.AnnotationID,
		"session", d.Session,
		"seq", d.Seq,
		"changeset", d.ID,
		"attempt", attempt,
	)
}
