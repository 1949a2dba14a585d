package scene

import "github.com/dshills/sketchstorm/internal/event"

// Kind identifies a mutation notification.
type Kind int

const (
	// KindObjectAdded is published after an object joins the scene.
	KindObjectAdded Kind = iota
	// KindObjectModified is published after an object is transformed.
	KindObjectModified
	// KindObjectRemoved is published after an object leaves the scene.
	KindObjectRemoved
	// KindPathCreated is published after a freehand stroke is committed.
	KindPathCreated
)

// Kinds lists every notification kind.
var Kinds = []Kind{KindObjectAdded, KindObjectModified, KindObjectRemoved, KindPathCreated}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindObjectAdded:
		return "object-added"
	case KindObjectModified:
		return "object-modified"
	case KindObjectRemoved:
		return "object-removed"
	case KindPathCreated:
		return "path-created"
	default:
		return "unknown"
	}
}

// Topic returns the event bus topic for the kind.
func (k Kind) Topic() event.Topic {
	switch k {
	case KindObjectAdded:
		return "object.added"
	case KindObjectModified:
		return "object.modified"
	case KindObjectRemoved:
		return "object.removed"
	case KindPathCreated:
		return "path.created"
	default:
		return ""
	}
}

// Notification is a scene mutation. It is a closed set: ObjectAdded,
// ObjectModified, ObjectRemoved and PathCreated.
type Notification interface {
	Kind() Kind
	// Subject returns the object the notification is about.
	Subject() *Object
	sealed()
}

// ObjectAdded reports that Target joined the scene.
type ObjectAdded struct{ Target *Object }

// ObjectModified reports that Target was transformed.
type ObjectModified struct{ Target *Object }

// ObjectRemoved reports that Target left the scene.
type ObjectRemoved struct{ Target *Object }

// PathCreated reports that a freehand stroke was committed as Path.
type PathCreated struct{ Path *Object }

func (n ObjectAdded) Kind() Kind    { return KindObjectAdded }
func (n ObjectModified) Kind() Kind { return KindObjectModified }
func (n ObjectRemoved) Kind() Kind  { return KindObjectRemoved }
func (n PathCreated) Kind() Kind    { return KindPathCreated }

func (n ObjectAdded) Subject() *Object    { return n.Target }
func (n ObjectModified) Subject() *Object { return n.Target }
func (n ObjectRemoved) Subject() *Object  { return n.Target }
func (n PathCreated) Subject() *Object    { return n.Path }

func (ObjectAdded) sealed()    {}
func (ObjectModified) sealed() {}
func (ObjectRemoved) sealed()  {}
func (PathCreated) sealed()    {}
