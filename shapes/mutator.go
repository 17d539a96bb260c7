package shapes

import (
	"fmt"
	"myfigma-server/core"

	"github.com/sirupsen/logrus"
)

// ModifyShape applies one property edit to the canvas's active shape.
//
// It does nothing when no single shape is selected or when the edit leaves
// the shape unchanged. Width and height rescale the shape rather than
// rewriting its raw size. After a change the shape is stored in ref, a
// render is requested and sync is called with it.
func ModifyShape(canvas core.Canvas, property Property, value string, ref *core.ActiveObjectRef, sync core.SyncFunc) error {
	if canvas == nil {
		return nil
	}

	selected := canvas.ActiveObject()
	if selected == nil || selected.IsSelectionGroup() {
		return nil
	}

	set, ok := setters[property]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProperty, property)
	}

	changed, err := set(selected, value)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if ref != nil {
		ref.Current = selected
	}

	canvas.RequestRenderAll()

	logrus.WithFields(logrus.Fields{
		"object_id": selected.ObjectID,
		"property":  property,
	}).Debug("Shape modified")

	if sync != nil {
		sync(selected)
	}
	return nil
}
