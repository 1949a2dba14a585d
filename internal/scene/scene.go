// Package scene defines the drawing surface the history engine works
// against, and provides Canvas, an in-memory implementation.
//
// The history engine never owns a scene. It only subscribes to mutation
// notifications, asks the scene to serialize itself, and asks it to clear
// and reload from a serialized document.
package scene

import "context"

// Scene is the collaborator the history engine is bound to.
type Scene interface {
	// Subscribe registers fn for notifications of the given kind and returns
	// a function that removes the registration.
	Subscribe(kind Kind, fn func(Notification)) (unsubscribe func())

	// Objects returns the live object list in z-order.
	Objects() []*Object

	// SwapObjects replaces the live object list without notifying
	// subscribers and returns the previous list.
	SwapObjects(objs []*Object) (previous []*Object)

	// Serialize encodes the live object list. extraProps names per-object
	// flags to include in the output.
	Serialize(extraProps []string) ([]byte, error)

	// Clear removes every object.
	Clear()

	// Load parses data and adds its objects to the scene. It blocks until
	// every object has been materialized and added, or fails part way.
	Load(ctx context.Context, data []byte) ([]*Object, error)

	// ViewportTransform returns the camera transform and whether one is set.
	ViewportTransform() (Matrix, bool)
	SetViewportTransform(m Matrix)

	// Zoom returns the zoom factor; zero means unset.
	Zoom() float64
	SetZoom(z float64)

	// IsClearing reports whether a user-initiated bulk clear is in progress.
	IsClearing() bool

	// RequestRenderAll schedules a full redraw.
	RequestRenderAll()
}

// Flag names accepted by Serialize.
const (
	PropSelectable = "selectable"
	PropEvented    = "evented"
	PropErasable   = "erasable"
)
