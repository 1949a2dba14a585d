// Package codec converts a live scene to and from history snapshots.
//
// Encoding never alters what the user sees: ephemeral indicators are
// removed from the list handed to the serializer and the original list is
// put back as soon as serialization returns. Decoding keeps the camera the
// user is currently looking at, not the one recorded in the snapshot.
package codec

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/sketchstorm/internal/scene"
)

// SchemaVersion is stamped into every encoded document.
const SchemaVersion = 1

const (
	versionPath   = "historyVersion"
	objectsPath   = "objects"
	transformPath = "camera.transform"
	zoomPath      = "camera.zoom"
)

// DefaultProperties are the per-object flags serialized with every snapshot.
var DefaultProperties = []string{scene.PropSelectable, scene.PropEvented, scene.PropErasable}

// Codec encodes and decodes snapshots.
type Codec struct {
	signature  scene.Signature
	properties []string
	logger     *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithSignature sets the ephemeral indicator signature excluded from snapshots.
func WithSignature(sig scene.Signature) Option {
	return func(c *Codec) {
		c.signature = sig
	}
}

// WithProperties sets the per-object flags included in snapshots.
func WithProperties(props ...string) Option {
	return func(c *Codec) {
		c.properties = props
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a codec.
func New(opts ...Option) *Codec {
	c := &Codec{
		signature:  scene.DefaultSignature,
		properties: DefaultProperties,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "codec")
	return c
}

// Signature returns the ephemeral indicator signature.
func (c *Codec) Signature() scene.Signature {
	return c.signature
}

// Encode serializes s, excluding ephemeral indicators. It returns
// ErrNilScene when s is nil.
func (c *Codec) Encode(s scene.Scene) (*Snapshot, error) {
	if s == nil {
		return nil, ErrNilScene
	}

	data, err := c.serialize(s)
	if err != nil {
		return nil, fmt.Errorf("serializing scene: %w", err)
	}

	data, err = sjson.SetBytes(data, versionPath, SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("stamping snapshot version: %w", err)
	}
	if m, ok := s.ViewportTransform(); ok {
		if data, err = sjson.SetBytes(data, transformPath, m.Array()); err != nil {
			return nil, fmt.Errorf("recording camera transform: %w", err)
		}
	}
	if z := s.Zoom(); z > 0 {
		if data, err = sjson.SetBytes(data, zoomPath, z); err != nil {
			return nil, fmt.Errorf("recording zoom: %w", err)
		}
	}

	snap := newSnapshot(data)
	c.logger.Debug("encoded snapshot", "snapshot", snap.ID(), "bytes", snap.Len())
	return snap, nil
}

// serialize hands the scene a filtered object list for the duration of
// Serialize and restores the live list before returning.
func (c *Codec) serialize(s scene.Scene) ([]byte, error) {
	live := s.Objects()
	filtered := c.signature.Filter(live)
	if len(filtered) == len(live) {
		return s.Serialize(c.properties)
	}

	previous := s.SwapObjects(filtered)
	defer s.SwapObjects(previous)
	return s.Serialize(c.properties)
}

// Validate checks that snap is a well-formed document of the current schema
// version without touching any scene.
func (c *Codec) Validate(snap *Snapshot) error {
	if snap == nil || len(snap.data) == 0 {
		return ErrInvalidSnapshot
	}
	if !gjson.ValidBytes(snap.data) {
		return fmt.Errorf("%w: not valid JSON", ErrInvalidSnapshot)
	}
	if !gjson.GetBytes(snap.data, objectsPath).IsArray() {
		return fmt.Errorf("%w: missing object list", ErrInvalidSnapshot)
	}
	v := gjson.GetBytes(snap.data, versionPath)
	if !v.Exists() || v.Int() != SchemaVersion {
		return fmt.Errorf("%w: got %q, want %d", ErrIncompatibleSnapshot, v.Raw, SchemaVersion)
	}
	return nil
}

// Decode replaces the contents of s with snap. It blocks until the scene
// has finished reloading.
//
// The camera the scene has before the call is kept. When the scene has no
// camera, the one recorded in the snapshot is used before falling back to
// the identity transform with zoom 1, rather than resetting to identity
// straight away.
//
// Snapshots that fail validation are rejected before the scene is cleared.
// A failure while reloading returns a *DecodeError with SceneCleared set.
func (c *Codec) Decode(ctx context.Context, s scene.Scene, snap *Snapshot) error {
	if s == nil {
		return ErrNilScene
	}
	if err := c.Validate(snap); err != nil {
		var id uuid.UUID
		if snap != nil {
			id = snap.id
		}
		return &DecodeError{SnapshotID: id, Err: err}
	}

	transform, hasTransform := s.ViewportTransform()
	zoom := s.Zoom()

	s.Clear()

	objs, err := s.Load(ctx, snap.data)
	if err != nil {
		return &DecodeError{SnapshotID: snap.id, SceneCleared: true, Err: err}
	}

	if !hasTransform {
		transform = recordedTransform(snap.data)
	}
	if zoom <= 0 {
		zoom = recordedZoom(snap.data)
	}
	s.SetViewportTransform(transform)
	s.SetZoom(zoom)

	for _, obj := range objs {
		obj.Selectable = true
		obj.Evented = true
		obj.SetCoords()
	}
	s.RequestRenderAll()

	c.logger.Debug("decoded snapshot", "snapshot", snap.id, "objects", len(objs))
	return nil
}

func recordedTransform(data []byte) scene.Matrix {
	values := gjson.GetBytes(data, transformPath).Array()
	if len(values) != 6 {
		return scene.Identity()
	}
	var arr [6]float64
	for i, v := range values {
		arr[i] = v.Float()
	}
	return scene.MatrixFromArray(arr)
}

func recordedZoom(data []byte) float64 {
	if z := gjson.GetBytes(data, zoomPath).Float(); z > 0 {
		return z
	}
	return 1
}
