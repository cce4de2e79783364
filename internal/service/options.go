package service

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// DefaultStoreTimeout bounds every credential store call made by a service.
const DefaultStoreTimeout = 5 * time.Second

// Outcome labels passed to a Recorder.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeConflict     = "conflict"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

// Recorder receives one observation per completed operation.
type Recorder interface {
	ObserveRegistration(outcome string)
	ObserveLogin(outcome string)
	ObserveKeyIssued(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRegistration(string) {}
func (nopRecorder) ObserveLogin(string)        {}
func (nopRecorder) ObserveKeyIssued(string)    {}

type options struct {
	timeout          time.Duration
	logger           *slog.Logger
	recorder         Recorder
	now              func() time.Time
	persistPlaintext bool
}

// Option configures AuthService and KeyService.
type Option func(*options)

// WithStoreTimeout sets the per-call store deadline. Non-positive values keep
// DefaultStoreTimeout.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger for internal failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithClock overrides the time source used for key expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithPersistPlaintext controls whether issued key secrets are stored next
// to their digest.
func WithPersistPlaintext(persist bool) Option {
	return func(o *options) { o.persistPlaintext = persist }
}

func newOptions(opts []Option) options {
	o := options{
		timeout:          DefaultStoreTimeout,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder:         nopRecorder{},
		now:              time.Now,
		persistPlaintext: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.timeout)
}
