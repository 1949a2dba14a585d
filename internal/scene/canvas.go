package scene

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/sketchstorm/internal/event"
)

// DocumentVersion is written into every serialized canvas.
const DocumentVersion = "1.0"

// Errors returned by Canvas.
var (
	ErrMalformedDocument = errors.New("malformed canvas document")
	ErrObjectNotFound    = errors.New("object not found")
)

// Materializer resolves an object's sub-resources (image data, fonts)
// during Load. It is called concurrently for different objects.
type Materializer func(ctx context.Context, obj *Object) error

// Canvas is an in-memory Scene. Mutations publish notifications on an
// internal event bus; subscribers run synchronously before the mutating
// call returns.
type Canvas struct {
	mu         sync.RWMutex
	objects    []*Object
	background string
	viewport   *Matrix
	zoom       float64
	clearing   bool
	renders    int

	bus         *event.Bus
	materialize Materializer
	logger      *slog.Logger
}

// CanvasOption configures a Canvas.
type CanvasOption func(*Canvas)

// WithMaterializer sets the sub-resource resolver used by Load.
func WithMaterializer(m Materializer) CanvasOption {
	return func(c *Canvas) {
		c.materialize = m
	}
}

// WithBackground sets the background color.
func WithBackground(color string) CanvasOption {
	return func(c *Canvas) {
		c.background = color
	}
}

// WithCanvasLogger sets the logger.
func WithCanvasLogger(logger *slog.Logger) CanvasOption {
	return func(c *Canvas) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCanvas creates an empty canvas.
func NewCanvas(opts ...CanvasOption) *Canvas {
	c := &Canvas{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "canvas")
	c.bus = event.NewBus(event.WithSource("canvas"), event.WithLogger(c.logger))
	return c
}

// Subscribe implements Scene.
func (c *Canvas) Subscribe(kind Kind, fn func(Notification)) func() {
	if fn == nil {
		return func() {}
	}
	sub, err := c.bus.Subscribe(kind.Topic(), func(ctx context.Context, env event.Envelope) error {
		if n, ok := env.Payload.(Notification); ok {
			fn(n)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("subscribe failed", "kind", kind, "error", err)
		return func() {}
	}
	return sub.Cancel
}

func (c *Canvas) publish(n Notification) {
	if err := c.bus.Publish(context.Background(), n.Kind().Topic(), n); err != nil {
		c.logger.Warn("notification delivery failed", "kind", n.Kind(), "error", err)
	}
}

// Add appends obj to the canvas and publishes ObjectAdded.
// An empty ID is replaced by a fresh UUID.
func (c *Canvas) Add(obj *Object) *Object {
	c.insert(obj)
	c.publish(ObjectAdded{Target: obj})
	return obj
}

func (c *Canvas) insert(obj *Object) {
	if obj.ID == "" {
		obj.ID = uuid.NewString()
	}
	obj.SetCoords()

	c.mu.Lock()
	c.objects = append(c.objects, obj)
	c.mu.Unlock()
}

// AddPath commits a freehand stroke and publishes PathCreated.
func (c *Canvas) AddPath(points []Point, stroke string) *Object {
	path := &Object{
		Type:       TypePath,
		Stroke:     stroke,
		Points:     slices.Clone(points),
		Selectable: true,
		Evented:    true,
		Erasable:   true,
	}
	c.insert(path)
	c.publish(PathCreated{Path: path})
	return path
}

// Modify applies fn to the object with the given id and publishes
// ObjectModified.
func (c *Canvas) Modify(id string, fn func(*Object)) error {
	c.mu.Lock()
	obj := c.findLocked(id)
	if obj == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	fn(obj)
	obj.SetCoords()
	c.mu.Unlock()

	c.publish(ObjectModified{Target: obj})
	return nil
}

// Remove deletes the object with the given id and publishes ObjectRemoved.
func (c *Canvas) Remove(id string) error {
	c.mu.Lock()
	idx := slices.IndexFunc(c.objects, func(o *Object) bool { return o.ID == id })
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	obj := c.objects[idx]
	c.objects = slices.Delete(c.objects, idx, idx+1)
	c.mu.Unlock()

	c.publish(ObjectRemoved{Target: obj})
	return nil
}

// Get returns the object with the given id.
func (c *Canvas) Get(id string) (*Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj := c.findLocked(id)
	return obj, obj != nil
}

func (c *Canvas) findLocked(id string) *Object {
	for _, o := range c.objects {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// ClearAll is the user-initiated "clear all". IsClearing reports true while
// the per-object removal notifications are published.
func (c *Canvas) ClearAll() {
	c.mu.Lock()
	c.clearing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.clearing = false
		c.mu.Unlock()
	}()

	c.Clear()
}

// Clear implements Scene. It publishes ObjectRemoved for every object.
func (c *Canvas) Clear() {
	c.mu.Lock()
	removed := c.objects
	c.objects = nil
	c.mu.Unlock()

	for _, obj := range removed {
		c.publish(ObjectRemoved{Target: obj})
	}
}

// Objects implements Scene. The returned slice is a copy.
func (c *Canvas) Objects() []*Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.objects)
}

// Len returns the number of objects.
func (c *Canvas) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}

// SwapObjects implements Scene.
func (c *Canvas) SwapObjects(objs []*Object) []*Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.objects
	c.objects = objs
	return prev
}

// wireObject is the serialized form of an Object. Flags are pointers so
// they are only emitted when requested.
type wireObject struct {
	*Object
	Selectable *bool `json:"selectable,omitempty"`
	Evented    *bool `json:"evented,omitempty"`
	Erasable   *bool `json:"erasable,omitempty"`
}

type document struct {
	Version    string       `json:"version"`
	Background string       `json:"background,omitempty"`
	Objects    []wireObject `json:"objects"`
}

// Serialize implements Scene.
func (c *Canvas) Serialize(extraProps []string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc := document{
		Version:    DocumentVersion,
		Background: c.background,
		Objects:    make([]wireObject, 0, len(c.objects)),
	}
	for _, obj := range c.objects {
		w := wireObject{Object: obj}
		for _, p := range extraProps {
			switch p {
			case PropSelectable:
				w.Selectable = &obj.Selectable
			case PropEvented:
				w.Evented = &obj.Evented
			case PropErasable:
				w.Erasable = &obj.Erasable
			}
		}
		doc.Objects = append(doc.Objects, w)
	}
	return json.Marshal(doc)
}

// Load implements Scene. Sub-resources are materialized concurrently; the
// objects are then added in document order, each publishing ObjectAdded.
func (c *Canvas) Load(ctx context.Context, data []byte) ([]*Object, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	objs := make([]*Object, 0, len(doc.Objects))
	for _, w := range doc.Objects {
		if w.Object == nil {
			return nil, fmt.Errorf("%w: empty object entry", ErrMalformedDocument)
		}
		obj := w.Object
		obj.Selectable = w.Selectable != nil && *w.Selectable
		obj.Evented = w.Evented != nil && *w.Evented
		obj.Erasable = w.Erasable != nil && *w.Erasable
		objs = append(objs, obj)
	}

	if c.materialize != nil {
		g, gctx := errgroup.WithContext(ctx)
		for _, obj := range objs {
			g.Go(func() error {
				return c.materialize(gctx, obj)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("materializing objects: %w", err)
		}
	}

	c.mu.Lock()
	if doc.Background != "" {
		c.background = doc.Background
	}
	c.mu.Unlock()

	for _, obj := range objs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.insert(obj)
		c.publish(ObjectAdded{Target: obj})
	}
	return objs, nil
}

// ViewportTransform implements Scene.
func (c *Canvas) ViewportTransform() (Matrix, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.viewport == nil {
		return Matrix{}, false
	}
	return *c.viewport, true
}

// SetViewportTransform implements Scene.
func (c *Canvas) SetViewportTransform(m Matrix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = &m
}

// Pan translates the camera by (dx, dy).
func (c *Canvas) Pan(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := Identity()
	if c.viewport != nil {
		m = *c.viewport
	}
	m = Translate(dx, dy).Multiply(m)
	c.viewport = &m
}

// Zoom implements Scene.
func (c *Canvas) Zoom() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.zoom
}

// SetZoom implements Scene.
func (c *Canvas) SetZoom(z float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = z
}

// IsClearing implements Scene.
func (c *Canvas) IsClearing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clearing
}

// RequestRenderAll implements Scene. Canvas has no renderer; it counts
// requests so callers can observe them.
func (c *Canvas) RequestRenderAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renders++
}

// RenderCount returns how many redraws have been requested.
func (c *Canvas) RenderCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.renders
}

// Close drops every subscription.
func (c *Canvas) Close() {
	c.bus.Close()
	st := c.bus.Stats()
	c.logger.Debug("canvas closed",
		"published", st.Published, "delivered", st.Delivered,
		"failures", st.Failures, "panics", st.Panics)
}

var _ Scene = (*Canvas)(nil)
