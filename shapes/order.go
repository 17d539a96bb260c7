package shapes

import (
	"fmt"
	"myfigma-server/core"
)

// BringElement moves the active shape to the front or back of the paint
// order and syncs it. Without a single selected shape it does nothing.
func BringElement(canvas core.Canvas, direction Direction, sync core.SyncFunc) error {
	if canvas == nil {
		return nil
	}

	selected := canvas.ActiveObject()
	if selected == nil || selected.IsSelectionGroup() {
		return nil
	}

	switch direction {
	case DirectionFront:
		canvas.BringToFront(selected)
	case DirectionBack:
		canvas.SendToBack(selected)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}

	if sync != nil {
		sync(selected)
	}
	return nil
}
