package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/sketchstorm/internal/config"
	"github.com/dshills/sketchstorm/internal/history"
	"github.com/dshills/sketchstorm/internal/scene"
)

// DefaultTimeout bounds a single script run.
const DefaultTimeout = 30 * time.Second

// ErrScript is matched by every error raised while running a script.
var ErrScript = errors.New("script failed")

// Error reports a script that failed to compile or raised an error.
type Error struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Name + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Error.
func (e *Error) Is(target error) bool {
	return target == ErrScript
}

// Result summarizes a finished run.
type Result struct {
	Name       string
	Objects    int
	UndoDepth  int
	RedoDepth  int
	Captures   uint64
	Undos      uint64
	Redos      uint64
	Failures   uint64
	ToolResets int
	Duration   time.Duration

	// Snapshot is the encoded current state at the end of the run.
	Snapshot []byte
}

// String formats the result for display.
func (r Result) String() string {
	return fmt.Sprintf("%s: %d objects, undo %d, redo %d (captures %d, undos %d, redos %d, failures %d, tool resets %d) in %s",
		r.Name, r.Objects, r.UndoDepth, r.RedoDepth, r.Captures, r.Undos, r.Redos, r.Failures, r.ToolResets,
		r.Duration.Round(time.Millisecond))
}

// Runner executes scenario scripts.
type Runner struct {
	cfg      config.HistoryConfig
	logger   *slog.Logger
	observer history.Observer
	out      io.Writer
	timeout  time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithHistoryConfig sets the history configuration used for each run.
func WithHistoryConfig(cfg config.HistoryConfig) Option {
	return func(r *Runner) {
		r.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver attaches an observer to every history the runner creates.
func WithObserver(o history.Observer) Option {
	return func(r *Runner) {
		r.observer = o
	}
}

// WithOutput sets where print writes.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.out = w
		}
	}
}

// WithTimeout bounds each run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.timeout = d
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		cfg:     config.Default().History,
		logger:  slog.New(slog.DiscardHandler),
		out:     os.Stdout,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "script")
	return r
}

// RunFile runs the script at path.
func (r *Runner) RunFile(ctx context.Context, path string) (Result, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading script: %w", err)
	}
	return r.Run(ctx, path, string(code))
}

// Run runs code on a fresh canvas and history. The result reflects the
// state reached even when the script fails.
func (r *Runner) Run(ctx context.Context, name, code string) (Result, error) {
	start := time.Now()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	canvas := scene.NewCanvas(scene.WithCanvasLogger(r.logger))
	defer canvas.Close()

	opts := append(history.FromConfig(r.cfg), history.WithLogger(r.logger))
	if r.observer != nil {
		opts = append(opts, history.WithObserver(r.observer))
	}
	h, err := history.New(canvas, opts...)
	if err != nil {
		return Result{}, err
	}
	defer h.Dispose()

	L := newState(r.out)
	defer L.Close()
	L.SetContext(ctx)

	hist := &historyModule{ctx: ctx, history: h, logger: r.logger}
	(&canvasModule{canvas: canvas, history: h}).register(L)
	hist.register(L)

	r.logger.Debug("running script", "name", name)
	runErr := r.exec(ctx, L, name, code)

	stats := h.Stats()
	res := Result{
		Name:       name,
		Objects:    canvas.Len(),
		UndoDepth:  stats.UndoDepth,
		RedoDepth:  stats.RedoDepth,
		Captures:   stats.Captures,
		Undos:      stats.Undos,
		Redos:      stats.Redos,
		Failures:   stats.Failures,
		ToolResets: hist.resets,
		Duration:   time.Since(start),
	}
	if cur := h.Current(); cur != nil {
		res.Snapshot = cur.Bytes()
	}
	return res, runErr
}

func (r *Runner) exec(ctx context.Context, L *lua.LState, name, code string) error {
	fn, err := L.Load(strings.NewReader(code), name)
	if err != nil {
		return &Error{Name: name, Err: err}
	}

	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &Error{Name: name, Err: ctxErr}
		}
		return &Error{Name: name, Err: err}
	}
	return nil
}
