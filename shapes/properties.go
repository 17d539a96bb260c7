package shapes

import (
	"errors"
	"fmt"
	"math"
	"myfigma-server/core"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

var (
	ErrUnknownProperty = errors.New("unknown property")
	ErrInvalidValue    = errors.New("invalid property value")
)

// Property names an editable attribute of the active shape.
type Property string

const (
	PropertyWidth       Property = "width"
	PropertyHeight      Property = "height"
	PropertyFill        Property = "fill"
	PropertyStroke      Property = "stroke"
	PropertyStrokeWidth Property = "strokeWidth"
	PropertyOpacity     Property = "opacity"
	PropertyAngle       Property = "angle"
	PropertyLeft        Property = "left"
	PropertyTop         Property = "top"
	PropertyFontSize    Property = "fontSize"
	PropertyFontFamily  Property = "fontFamily"
	PropertyFontWeight  Property = "fontWeight"
	PropertyText        Property = "text"
)

// setter parses raw and writes it to s, reporting whether anything changed.
type setter func(s *core.Shape, raw string) (bool, error)

var setters = map[Property]setter{
	PropertyWidth:  scaleTo(scaleToWidth),
	PropertyHeight: scaleTo(scaleToHeight),

	PropertyFill:   colorSetter(func(s *core.Shape) *string { return &s.Fill }),
	PropertyStroke: colorSetter(func(s *core.Shape) *string { return &s.Stroke }),

	PropertyStrokeWidth: floatSetter(func(s *core.Shape) *float64 { return &s.StrokeWidth }, nonNegative),
	PropertyOpacity:     floatSetter(func(s *core.Shape) *float64 { return &s.Opacity }, unitInterval),
	PropertyAngle:       floatSetter(func(s *core.Shape) *float64 { return &s.Angle }, nil),
	PropertyLeft:        floatSetter(func(s *core.Shape) *float64 { return &s.Left }, nil),
	PropertyTop:         floatSetter(func(s *core.Shape) *float64 { return &s.Top }, nil),

	PropertyFontSize:   textOnly(floatSetter(func(s *core.Shape) *float64 { return &s.FontSize }, positive)),
	PropertyFontFamily: textOnly(stringSetter(func(s *core.Shape) *string { return &s.FontFamily }, nonEmpty)),
	PropertyFontWeight: textOnly(stringSetter(func(s *core.Shape) *string { return &s.FontWeight }, fontWeight)),
	PropertyText:       textOnly(stringSetter(func(s *core.Shape) *string { return &s.Text }, nil)),
}

// ParseProperty rejects names outside the editable set.
func ParseProperty(name string) (Property, error) {
	p := Property(name)
	if _, ok := setters[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	return p, nil
}

func invalid(raw, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidValue, raw, reason)
}

func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid(raw, "not a number")
	}
	return v, nil
}

func floatSetter(field func(*core.Shape) *float64, check func(float64) error) setter {
	return func(s *core.Shape, raw string) (bool, error) {
		v, err := parseFloat(raw)
		if err != nil {
			return false, err
		}
		if check != nil {
			if err := check(v); err != nil {
				return false, invalid(raw, err.Error())
			}
		}
		dst := field(s)
		if *dst == v {
			return false, nil
		}
		*dst = v
		return true, nil
	}
}

func stringSetter(field func(*core.Shape) *string, check func(string) error) setter {
	return func(s *core.Shape, raw string) (bool, error) {
		if check != nil {
			if err := check(raw); err != nil {
				return false, invalid(raw, err.Error())
			}
		}
		dst := field(s)
		if *dst == raw {
			return false, nil
		}
		*dst = raw
		return true, nil
	}
}

// colorSetter accepts hex colours, normalised to #rrggbb, or "transparent".
func colorSetter(field func(*core.Shape) *string) setter {
	return func(s *core.Shape, raw string) (bool, error) {
		v := strings.TrimSpace(raw)
		if v != "transparent" {
			c, err := colorful.Hex(v)
			if err != nil {
				return false, invalid(raw, "not a hex colour")
			}
			v = c.Hex()
		}
		dst := field(s)
		if *dst == v {
			return false, nil
		}
		*dst = v
		return true, nil
	}
}

func textOnly(next setter) setter {
	return func(s *core.Shape, raw string) (bool, error) {
		if s.Type != core.KindText {
			return false, fmt.Errorf("%w for %s shapes", ErrUnknownProperty, s.Type)
		}
		changed, err := next(s, raw)
		if changed {
			measureText(s)
		}
		return changed, err
	}
}

func scaleTo(apply func(*core.Shape, float64) bool) setter {
	return func(s *core.Shape, raw string) (bool, error) {
		v, err := parseFloat(raw)
		if err != nil {
			return false, err
		}
		if v <= 0 {
			return false, invalid(raw, "must be positive")
		}
		return apply(s, v), nil
	}
}

// scaleToWidth scales s uniformly so its bounding box is value wide.
func scaleToWidth(s *core.Shape, value float64) bool {
	bw, _ := s.BoundingSize()
	return scaleBy(s, value, bw, s.ScaledWidth(), s.Width)
}

// scaleToHeight scales s uniformly so its bounding box is value tall.
func scaleToHeight(s *core.Shape, value float64) bool {
	_, bh := s.BoundingSize()
	return scaleBy(s, value, bh, s.ScaledHeight(), s.Height)
}

func scaleBy(s *core.Shape, value, bounding, scaled, raw float64) bool {
	if bounding == 0 || scaled == 0 || raw == 0 {
		return false
	}
	scale := value / raw / (bounding / scaled)
	if s.ScaleX == scale && s.ScaleY == scale {
		return false
	}
	s.ScaleX, s.ScaleY = scale, scale
	return true
}

func nonNegative(v float64) error {
	if v < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

func positive(v float64) error {
	if v <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func unitInterval(v float64) error {
	if v < 0 || v > 1 {
		return errors.New("must be between 0 and 1")
	}
	return nil
}

func nonEmpty(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("must not be empty")
	}
	return nil
}

func fontWeight(v string) error {
	switch v {
	case "normal", "bold", "lighter", "bolder":
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 100 || n > 900 || n%100 != 0 {
		return errors.New("must be a CSS font weight")
	}
	return nil
}
