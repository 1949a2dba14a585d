// Package capture turns scene mutation notifications into history capture
// requests.
//
// Two kinds of notification never reach the history store: those about an
// ephemeral indicator (matched by type and fill), and removals published
// while the scene is in the middle of a bulk clear. Everything else is
// forwarded unless the injected guard reports that a history navigation is
// in progress.
package capture

import (
	"log/slog"
	"sync"

	"github.com/dshills/sketchstorm/internal/scene"
)

// Layer filters notifications for one scene.
type Layer struct {
	scene        scene.Scene
	signature    scene.Signature
	onChange     func()
	isNavigating func() bool
	logger       *slog.Logger

	mu      sync.Mutex
	unsubs  []func()
	dropped map[string]int
}

// Option configures a Layer.
type Option func(*Layer)

// WithSignature sets the ephemeral indicator signature.
func WithSignature(sig scene.Signature) Option {
	return func(l *Layer) {
		l.signature = sig
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Layer) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Attach subscribes to every notification kind of s and calls onChange for
// each one that passes the filters while isNavigating reports false. It
// returns a cleanup function that unsubscribes everything; calling it more
// than once is safe. A nil scene or nil onChange yields a no-op cleanup.
func Attach(s scene.Scene, onChange func(), isNavigating func() bool, opts ...Option) (cleanup func()) {
	l := New(s, onChange, isNavigating, opts...)
	if l == nil {
		return func() {}
	}
	return l.Start()
}

// New creates a layer without subscribing. It returns nil when s or
// onChange is nil.
func New(s scene.Scene, onChange func(), isNavigating func() bool, opts ...Option) *Layer {
	if s == nil || onChange == nil {
		return nil
	}
	l := &Layer{
		scene:        s,
		signature:    scene.DefaultSignature,
		onChange:     onChange,
		isNavigating: isNavigating,
		logger:       slog.New(slog.DiscardHandler),
		dropped:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "capture")
	return l
}

// Start subscribes to the scene and returns the idempotent cleanup.
func (l *Layer) Start() func() {
	l.mu.Lock()
	for _, kind := range scene.Kinds {
		l.unsubs = append(l.unsubs, l.scene.Subscribe(kind, l.handle))
	}
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(l.stop)
	}
}

func (l *Layer) stop() {
	l.mu.Lock()
	unsubs := l.unsubs
	l.unsubs = nil
	l.mu.Unlock()

	for _, unsub := range unsubs {
		if unsub != nil {
			unsub()
		}
	}
}

func (l *Layer) handle(n scene.Notification) {
	if reason, ok := l.Accept(n); !ok {
		l.drop(reason)
		return
	}
	l.onChange()
}

// Accept reports whether n should trigger a capture, and if not, why.
func (l *Layer) Accept(n scene.Notification) (reason string, ok bool) {
	var target *scene.Object
	switch n := n.(type) {
	case scene.ObjectAdded:
		target = n.Target
	case scene.ObjectModified:
		target = n.Target
	case scene.ObjectRemoved:
		if l.scene.IsClearing() {
			return "bulk-clear", false
		}
		target = n.Target
	case scene.PathCreated:
		target = n.Path
	default:
		return "unknown", false
	}

	if l.signature.Matches(target) {
		return "ephemeral", false
	}
	if l.isNavigating != nil && l.isNavigating() {
		return "navigating", false
	}
	return "", true
}

func (l *Layer) drop(reason string) {
	l.mu.Lock()
	l.dropped[reason]++
	l.mu.Unlock()
	l.logger.Debug("notification dropped", "reason", reason)
}

// Dropped returns how many notifications were dropped for reason.
func (l *Layer) Dropped(reason string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped[reason]
}
