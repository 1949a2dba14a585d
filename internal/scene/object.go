package scene

import "math"

// Point is a 2D point in scene coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Object type names understood by Canvas.
const (
	TypeRect    = "rect"
	TypeCircle  = "circle"
	TypePath    = "path"
	TypeImage   = "image"
	TypeText    = "text"
	TypeEllipse = "ellipse"
)

// Object is one drawable item on a scene.
type Object struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Fill   string  `json:"fill,omitempty"`
	Stroke string  `json:"stroke,omitempty"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	ScaleX float64 `json:"scaleX,omitempty"`
	ScaleY float64 `json:"scaleY,omitempty"`
	Angle  float64 `json:"angle,omitempty"`

	// Points holds the vertices of a freehand path.
	Points []Point `json:"points,omitempty"`

	// Src references an external sub-resource (images).
	Src string `json:"src,omitempty"`

	// Interaction flags. Only serialized when requested; see Canvas.Serialize.
	Selectable bool `json:"-"`
	Evented    bool `json:"-"`
	Erasable   bool `json:"-"`

	// Coords is the cached bounding box, recomputed by SetCoords.
	Coords Rect `json:"-"`
}

// Clone returns a deep copy of the object.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	if o.Points != nil {
		c.Points = make([]Point, len(o.Points))
		copy(c.Points, o.Points)
	}
	return &c
}

func (o *Object) scale() (float64, float64) {
	sx, sy := o.ScaleX, o.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}

// SetCoords recomputes the cached bounding box from the object's geometry.
func (o *Object) SetCoords() {
	if len(o.Points) > 0 {
		r := Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
		for _, p := range o.Points {
			r.MinX = math.Min(r.MinX, p.X)
			r.MinY = math.Min(r.MinY, p.Y)
			r.MaxX = math.Max(r.MaxX, p.X)
			r.MaxY = math.Max(r.MaxY, p.Y)
		}
		o.Coords = r
		return
	}

	sx, sy := o.scale()
	o.Coords = Rect{
		MinX: o.Left,
		MinY: o.Top,
		MaxX: o.Left + o.Width*sx,
		MaxY: o.Top + o.Height*sy,
	}
}

// Signature identifies ephemeral indicator objects, such as the eraser
// cursor preview, by their type and fill. Such objects are never captured
// into history.
type Signature struct {
	Type string
	Fill string
}

// DefaultSignature is the eraser preview drawn by the eraser tool.
var DefaultSignature = Signature{Type: TypeCircle, Fill: "rgba(255,0,0,0.3)"}

// IsZero reports whether no signature is configured.
func (s Signature) IsZero() bool {
	return s.Type == "" && s.Fill == ""
}

// Matches reports whether obj is an ephemeral indicator. A zero signature
// matches nothing.
func (s Signature) Matches(obj *Object) bool {
	if obj == nil || s.IsZero() {
		return false
	}
	return obj.Type == s.Type && obj.Fill == s.Fill
}

// Filter returns the objects that do not match s, preserving order.
func (s Signature) Filter(objs []*Object) []*Object {
	out := make([]*Object, 0, len(objs))
	for _, o := range objs {
		if !s.Matches(o) {
			out = append(out, o)
		}
	}
	return out
}
