package history

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/sketchstorm/internal/config"
	"github.com/dshills/sketchstorm/internal/history/codec"
	"github.com/dshills/sketchstorm/internal/scene"
)

// MaxStackSize is the default undo stack capacity.
const MaxStackSize = 30

// DefaultSettleDelay is how long a navigation waits after the scene has
// reloaded before invoking the tool reset callback.
const DefaultSettleDelay = 100 * time.Millisecond

// Codec encodes and restores snapshots. *codec.Codec implements it.
type Codec interface {
	Encode(s scene.Scene) (*codec.Snapshot, error)
	Decode(ctx context.Context, s scene.Scene, snap *codec.Snapshot) error
}

// Observer receives history activity, typically to feed metrics.
type Observer interface {
	ObserveCapture(bytes int)
	ObserveNavigation(direction, outcome string)
	ObserveDepth(undo, redo int)
}

// ErrorReporter is called with every failed navigation.
type ErrorReporter func(ctx context.Context, err error)

// Option configures a History.
type Option func(*History)

// WithMaxEntries sets the undo stack capacity. Non-positive values keep the
// default.
func WithMaxEntries(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.maxEntries = n
		}
	}
}

// WithSettleDelay sets the delay between a completed restore and the tool
// reset callback.
func WithSettleDelay(d time.Duration) Option {
	return func(h *History) {
		if d >= 0 {
			h.settleDelay = d
		}
	}
}

// WithSignature sets the ephemeral indicator signature used by both the
// capture filter and the default codec.
func WithSignature(sig scene.Signature) Option {
	return func(h *History) {
		h.signature = sig
	}
}

// WithCodec replaces the snapshot codec.
func WithCodec(c Codec) Option {
	return func(h *History) {
		h.codec = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *History) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithObserver sets the activity observer.
func WithObserver(o Observer) Option {
	return func(h *History) {
		h.observer = o
	}
}

// WithTracer sets the tracer used for save, undo and redo spans.
func WithTracer(t trace.Tracer) Option {
	return func(h *History) {
		if t != nil {
			h.tracer = t
		}
	}
}

// WithErrorReporter sets the hook called for failed navigations. The
// default logs the error.
func WithErrorReporter(r ErrorReporter) Option {
	return func(h *History) {
		h.report = r
	}
}

// FromConfig translates configuration into options.
func FromConfig(cfg config.HistoryConfig) []Option {
	return []Option{
		WithMaxEntries(cfg.MaxEntries),
		WithSettleDelay(cfg.SettleDelay),
		WithSignature(scene.Signature{Type: cfg.Ephemeral.Type, Fill: cfg.Ephemeral.Fill}),
	}
}
