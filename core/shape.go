package core

import "math"

// ShapeKind is the type tag carried by every shape on the wire.
type ShapeKind string

const (
	KindRectangle ShapeKind = "rectangle"
	KindTriangle  ShapeKind = "triangle"
	KindCircle    ShapeKind = "circle"
	KindLine      ShapeKind = "line"
	KindText      ShapeKind = "text"
	KindFreeform  ShapeKind = "freeform"
	KindImage     ShapeKind = "image"
	KindPath      ShapeKind = "path"

	// KindActiveSelection marks a multi-object selection group.
	KindActiveSelection ShapeKind = "activeSelection"
)

type (
	Pointer struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	Point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Shape is a drawable object owned by a canvas. The factory only
	// initialises it; the canvas decides its lifetime.
	Shape struct {
		ObjectID string    `json:"objectId"`
		Type     ShapeKind `json:"type"`

		Left   float64 `json:"left"`
		Top    float64 `json:"top"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		ScaleX float64 `json:"scaleX"`
		ScaleY float64 `json:"scaleY"`
		Angle  float64 `json:"angle"`
		ZIndex int     `json:"zIndex"`

		Fill        string  `json:"fill,omitempty"`
		Stroke      string  `json:"stroke,omitempty"`
		StrokeWidth float64 `json:"strokeWidth,omitempty"`
		Opacity     float64 `json:"opacity"`

		Radius float64 `json:"radius,omitempty"`

		X1 float64 `json:"x1,omitempty"`
		Y1 float64 `json:"y1,omitempty"`
		X2 float64 `json:"x2,omitempty"`
		Y2 float64 `json:"y2,omitempty"`

		Text       string  `json:"text,omitempty"`
		FontSize   float64 `json:"fontSize,omitempty"`
		FontFamily string  `json:"fontFamily,omitempty"`
		FontWeight string  `json:"fontWeight,omitempty"`

		Src  string  `json:"src,omitempty"`
		Path []Point `json:"path,omitempty"`

		// Objects lists member ids when Type is KindActiveSelection.
		Objects []string `json:"objects,omitempty"`
	}

	// ActiveObjectRef is the caller-owned slot that tracks the selection.
	ActiveObjectRef struct {
		Current *Shape
	}

	// SyncFunc propagates a shape to the shared store. Delivery is the
	// callee's business.
	SyncFunc func(shape *Shape)

	IDGenerator interface {
		NewID() string
	}

	// IDGeneratorFunc adapts a plain function to IDGenerator.
	IDGeneratorFunc func() string

	// Canvas is the surface shapes are drawn on.
	Canvas interface {
		Add(shape *Shape)
		ActiveObject() *Shape
		BringToFront(shape *Shape)
		SendToBack(shape *Shape)
		RequestRenderAll()
		SetDrawingMode(on bool)
		DrawingMode() bool
	}
)

func (f IDGeneratorFunc) NewID() string { return f() }

// IsSelectionGroup reports whether s is a multi-object selection.
func (s *Shape) IsSelectionGroup() bool {
	return s != nil && s.Type == KindActiveSelection
}

func (s *Shape) ScaledWidth() float64  { return s.Width * s.ScaleX }
func (s *Shape) ScaledHeight() float64 { return s.Height * s.ScaleY }

// BoundingSize returns the axis-aligned size of the scaled, rotated shape.
func (s *Shape) BoundingSize() (w, h float64) {
	rad := s.Angle * math.Pi / 180
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
	sw, sh := s.ScaledWidth(), s.ScaledHeight()
	return sw*cos + sh*sin, sw*sin + sh*cos
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Shape) Clone() *Shape {
	if s == nil {
		return nil
	}
	c := *s
	if s.Path != nil {
		c.Path = append([]Point(nil), s.Path...)
	}
	if s.Objects != nil {
		c.Objects = append([]string(nil), s.Objects...)
	}
	return &c
}
