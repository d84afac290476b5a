package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecosight/ecosight/pkg/metrics"
	"github.com/ecosight/ecosight/pkg/threat"
)

// LoadFunc builds the model handle. It may block on network or storage.
type LoadFunc func(ctx context.Context) (*Models, error)

// ModelSource hands out the current model handle.
type ModelSource interface {
	// Models returns the loaded handle, or an error of kind
	// threat.KindModelUnavailable.
	Models() (*Models, error)
}

// Loader loads models at most once. Attempts are serialized; readers never
// block and see either nothing or the complete handle.
type Loader struct {
	load    LoadFunc
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	models  atomic.Pointer[Models]
	lastErr atomic.Pointer[error]
}

var _ ModelSource = (*Loader)(nil)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger. Defaults to slog.Default().
func WithLoaderLogger(l *slog.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// WithLoaderMetrics records load attempts.
func WithLoaderMetrics(m *metrics.Metrics) LoaderOption {
	return func(ld *Loader) { ld.metrics = m }
}

// NewLoader creates a Loader that calls load until it succeeds.
func NewLoader(load LoadFunc, opts ...LoaderOption) *Loader {
	l := &Loader{load: load, logger: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// NewLoaded returns a Loader that already holds m.
func NewLoaded(m *Models) *Loader {
	l := NewLoader(func(context.Context) (*Models, error) { return m, nil })
	l.models.Store(m)
	return l
}

// Load runs one load attempt unless models are already loaded.
func (l *Loader) Load(ctx context.Context) (*Models, error) {
	if m := l.models.Load(); m != nil {
		return m, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if m := l.models.Load(); m != nil {
		return m, nil
	}

	start := time.Now()
	m, err := l.load(ctx)
	if err == nil && m == nil {
		err = threat.ConfigError("models", errors.New("loader returned no models"))
	}
	l.metrics.ObserveLoad(err)
	if err != nil {
		l.lastErr.Store(&err)
		return nil, err
	}
	l.models.Store(m)
	l.lastErr.Store(nil)
	l.logger.Info("models loaded",
		"classes", m.Labels.Len(),
		"labels_version", m.Labels.Version,
		"classifier", m.Classifier.Describe().Name,
		"duration", time.Since(start))
	return m, nil
}

// Models returns the loaded handle without blocking.
func (l *Loader) Models() (*Models, error) {
	if m := l.models.Load(); m != nil {
		return m, nil
	}
	return nil, threat.UnavailableError("models", l.LastError())
}

// Ready reports whether models are loaded.
func (l *Loader) Ready() bool {
	return l.models.Load() != nil
}

// LastError returns the error of the most recent failed attempt, or nil.
func (l *Loader) LastError() error {
	if p := l.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Backoff controls the retry schedule of Run.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff retries after 1s, doubling up to 1m.
var DefaultBackoff = Backoff{Initial: time.Second, Max: time.Minute}

// Run retries Load until it succeeds, ctx is done, or the failure is a
// configuration error, which no retry can fix.
func (l *Loader) Run(ctx context.Context, b Backoff) error {
	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}

	delay := b.Initial
	for attempt := 1; ; attempt++ {
		_, err := l.Load(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, threat.ErrConfig) {
			l.logger.Error("model load failed permanently", "attempt", attempt, "error", err)
			return err
		}
		l.logger.Warn("model load failed, retrying", "attempt", attempt, "retry_in", delay, "error", err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, b.Max)
	}
}
