// Package shapes builds default-styled whiteboard shapes from pointer input
// and applies property edits and paint-order changes to the active shape.
//
// Every function works on a caller-owned core.Canvas and reports changes
// through a caller-owned core.SyncFunc. Nothing here retains a shape.
package shapes

import (
	"errors"
	"fmt"
	"myfigma-server/core"

	"github.com/google/uuid"
)

var (
	ErrUnknownKind      = errors.New("unknown shape kind")
	ErrUnknownDirection = errors.New("unknown direction")
)

// Direction is a target position in the paint order.
type Direction string

const (
	DirectionFront Direction = "front"
	DirectionBack  Direction = "back"
)

// ParseKind maps a wire tag to a kind the factory understands.
func ParseKind(s string) (core.ShapeKind, error) {
	switch k := core.ShapeKind(s); k {
	case core.KindRectangle, core.KindTriangle, core.KindCircle, core.KindLine,
		core.KindText, core.KindFreeform, core.KindImage:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionFront, DirectionBack:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// UUIDGenerator issues random (version 4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }
