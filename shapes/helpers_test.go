package shapes

import (
	"fmt"
	"myfigma-server/core"
)

// fakeCanvas records every call the shape functions make.
type fakeCanvas struct {
	objects []*core.Shape
	active  *core.Shape
	drawing bool
	renders int
	front   []*core.Shape
	back    []*core.Shape
}

func (c *fakeCanvas) Add(shape *core.Shape)          { c.objects = append(c.objects, shape) }
func (c *fakeCanvas) ActiveObject() *core.Shape      { return c.active }
func (c *fakeCanvas) BringToFront(shape *core.Shape) { c.front = append(c.front, shape) }
func (c *fakeCanvas) SendToBack(shape *core.Shape)   { c.back = append(c.back, shape) }
func (c *fakeCanvas) RequestRenderAll()              { c.renders++ }
func (c *fakeCanvas) SetDrawingMode(on bool)         { c.drawing = on }
func (c *fakeCanvas) DrawingMode() bool              { return c.drawing }

// syncRecorder collects the shapes passed to a SyncFunc.
type syncRecorder struct {
	calls []*core.Shape
}

func (r *syncRecorder) sync(shape *core.Shape) { r.calls = append(r.calls, shape) }

func sequentialIDs() core.IDGenerator {
	n := 0
	return core.IDGeneratorFunc(func() string {
		n++
		return fmt.Sprintf("shape-%d", n)
	})
}
