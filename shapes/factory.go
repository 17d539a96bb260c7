package shapes

import (
	"math"
	"myfigma-server/core"

	"github.com/sirupsen/logrus"
)

const (
	DefaultColor       = "#aabbcc"
	DefaultSize        = 100.0
	DefaultRadius      = 100.0
	DefaultLineWidth   = 2.0
	DefaultText        = "Tap to Type"
	DefaultFontSize    = 40.0
	DefaultFontFamily  = "Times New Roman"
	DefaultFontWeight  = "normal"
	DefaultBrushColor  = "#000000"
	DefaultBrushWidth  = 1.0
	textCharWidthRatio = 0.5
	textLineHeight     = 1.16
)

// Factory creates shapes with ids drawn from an injected generator.
type Factory struct {
	ids core.IDGenerator
}

// NewFactory returns a factory using ids, or random UUIDs when ids is nil.
func NewFactory(ids core.IDGenerator) *Factory {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return &Factory{ids: ids}
}

func (f *Factory) newShape(kind core.ShapeKind, left, top float64) *core.Shape {
	return &core.Shape{
		ObjectID: f.ids.NewID(),
		Type:     kind,
		Left:     left,
		Top:      top,
		ScaleX:   1,
		ScaleY:   1,
		Opacity:  1,
	}
}

func (f *Factory) CreateRectangle(p core.Pointer) *core.Shape {
	s := f.newShape(core.KindRectangle, p.X, p.Y)
	s.Width, s.Height = DefaultSize, DefaultSize
	s.Fill = DefaultColor
	return s
}

func (f *Factory) CreateTriangle(p core.Pointer) *core.Shape {
	s := f.newShape(core.KindTriangle, p.X, p.Y)
	s.Width, s.Height = DefaultSize, DefaultSize
	s.Fill = DefaultColor
	return s
}

func (f *Factory) CreateCircle(p core.Pointer) *core.Shape {
	s := f.newShape(core.KindCircle, p.X, p.Y)
	s.Radius = DefaultRadius
	s.Width, s.Height = 2*DefaultRadius, 2*DefaultRadius
	s.Fill = DefaultColor
	return s
}

// CreateLine draws a diagonal from p to p+(100,100).
func (f *Factory) CreateLine(p core.Pointer) *core.Shape {
	s := f.newShape(core.KindLine, p.X, p.Y)
	s.X1, s.Y1 = p.X, p.Y
	s.X2, s.Y2 = p.X+DefaultSize, p.Y+DefaultSize
	s.Width, s.Height = DefaultSize, DefaultSize
	s.Stroke = DefaultColor
	s.StrokeWidth = DefaultLineWidth
	return s
}

func (f *Factory) CreateText(p core.Pointer, text string) *core.Shape {
	s := f.newShape(core.KindText, p.X, p.Y)
	s.Text = text
	s.Fill = DefaultColor
	s.FontSize = DefaultFontSize
	s.FontFamily = DefaultFontFamily
	s.FontWeight = DefaultFontWeight
	measureText(s)
	return s
}

// CreatePath turns a finished free-drawing stroke into a shape. It returns
// nil for an empty stroke.
func (f *Factory) CreatePath(points []core.Point) *core.Shape {
	if len(points) == 0 {
		return nil
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, pt := range points {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
		minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
	}

	s := f.newShape(core.KindPath, minX, minY)
	s.Width, s.Height = maxX-minX, maxY-minY
	s.Path = append([]core.Point(nil), points...)
	s.Stroke = DefaultBrushColor
	s.StrokeWidth = DefaultBrushWidth
	return s
}

// CreateSpecificShape builds a discrete shape for kind, or returns nil when
// kind has no default object.
func (f *Factory) CreateSpecificShape(kind core.ShapeKind, p core.Pointer) *core.Shape {
	switch kind {
	case core.KindRectangle:
		return f.CreateRectangle(p)
	case core.KindTriangle:
		return f.CreateTriangle(p)
	case core.KindCircle:
		return f.CreateCircle(p)
	case core.KindLine:
		return f.CreateLine(p)
	case core.KindText:
		return f.CreateText(p, DefaultText)
	default:
		return nil
	}
}

// CreateShape handles a pointer-down for kind. Freeform switches the canvas
// into drawing mode and yields no object.
func (f *Factory) CreateShape(canvas core.Canvas, p core.Pointer, kind core.ShapeKind) *core.Shape {
	if kind == core.KindFreeform {
		if canvas != nil {
			canvas.SetDrawingMode(true)
		}
		return nil
	}

	s := f.CreateSpecificShape(kind, p)
	if s != nil {
		logrus.WithFields(logrus.Fields{
			"object_id":  s.ObjectID,
			"shape_type": s.Type,
		}).Debug("Shape created")
	}
	return s
}

// measureText estimates the text box from the font size; glyph metrics
// belong to the renderer.
func measureText(s *core.Shape) {
	lines, longest, current := 1, 0, 0
	for _, r := range s.Text {
		if r == '\n' {
			lines++
			current = 0
			continue
		}
		current++
		if current > longest {
			longest = current
		}
	}
	s.Width = float64(longest) * s.FontSize * textCharWidthRatio
	s.Height = float64(lines) * s.FontSize * textLineHeight
}
