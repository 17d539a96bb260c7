// Package board keeps the server-side canvas of each room: its shapes in
// paint order, the active selection, the drawing-mode flag and a count of
// render requests.
package board

import (
	"errors"
	"fmt"
	"myfigma-server/core"
	"sort"
	"sync"
)

var (
	ErrShapeNotFound = errors.New("shape not found")
	// ErrBoardClosed is returned by Update once the room has been deleted.
	ErrBoardClosed = errors.New("board closed")
)

// Board serialises access to one room's Scene.
type Board struct {
	mu     sync.Mutex
	scene  *Scene
	closed bool
}

func New(roomID string) *Board {
	return &Board{scene: &Scene{roomID: roomID}}
}

// Update runs fn with exclusive access to the scene.
func (b *Board) Update(fn func(s *Scene) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBoardClosed
	}
	return fn(b.scene)
}

// Close runs fn under the board lock and, if it succeeds, rejects every
// later Update. A failed fn leaves the board open.
func (b *Board) Close(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	if fn != nil {
		if err := fn(); err != nil {
			return err
		}
	}
	b.closed = true
	return nil
}

func (b *Board) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Snapshot returns copies of the shapes in paint order.
func (b *Board) Snapshot() []*core.Shape {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scene.Objects()
}

// Scene implements core.Canvas. It is not safe for concurrent use; reach it
// through Board.Update.
type Scene struct {
	roomID  string
	objects []*core.Shape
	active  *core.Shape
	drawing bool
	renders int
}

var _ core.Canvas = (*Scene)(nil)

func (s *Scene) RoomID() string { return s.roomID }

// Add puts shape on top of the paint order.
func (s *Scene) Add(shape *core.Shape) {
	if shape == nil {
		return
	}
	shape.ZIndex = s.topIndex() + 1
	s.objects = append(s.objects, shape)
}

func (s *Scene) ActiveObject() *core.Shape { return s.active }

func (s *Scene) BringToFront(shape *core.Shape) {
	i := s.indexOf(shape)
	if i < 0 || i == len(s.objects)-1 {
		return
	}
	shape.ZIndex = s.topIndex() + 1
	s.objects = append(append(s.objects[:i:i], s.objects[i+1:]...), shape)
}

func (s *Scene) SendToBack(shape *core.Shape) {
	i := s.indexOf(shape)
	if i <= 0 {
		return
	}
	shape.ZIndex = s.objects[0].ZIndex - 1
	rest := append(s.objects[:i:i], s.objects[i+1:]...)
	s.objects = append([]*core.Shape{shape}, rest...)
}

func (s *Scene) RequestRenderAll() { s.renders++ }

// Renders reports how many renders have been requested.
func (s *Scene) Renders() int { return s.renders }

func (s *Scene) SetDrawingMode(on bool) { s.drawing = on }

func (s *Scene) DrawingMode() bool { return s.drawing }

// SetActive selects the shapes with the given ids. No ids clears the
// selection; several ids form a selection group.
func (s *Scene) SetActive(ids ...string) error {
	members := make([]*core.Shape, 0, len(ids))
	for _, id := range ids {
		shape := s.Find(id)
		if shape == nil {
			return fmt.Errorf("%w: %s", ErrShapeNotFound, id)
		}
		members = append(members, shape)
	}

	switch len(members) {
	case 0:
		s.active = nil
	case 1:
		s.active = members[0]
	default:
		s.active = &core.Shape{
			Type:    core.KindActiveSelection,
			Objects: append([]string(nil), ids...),
		}
	}
	return nil
}

func (s *Scene) Find(id string) *core.Shape {
	for _, shape := range s.objects {
		if shape.ObjectID == id {
			return shape
		}
	}
	return nil
}

// Objects returns copies of the shapes, back to front.
func (s *Scene) Objects() []*core.Shape {
	out := make([]*core.Shape, len(s.objects))
	for i, shape := range s.objects {
		out[i] = shape.Clone()
	}
	return out
}

// Upsert applies a shape received from storage or a collaborator, keeping
// its ZIndex. The active selection follows the replacement.
func (s *Scene) Upsert(shape *core.Shape) {
	if shape == nil || shape.ObjectID == "" {
		return
	}
	if i := s.indexOf(s.Find(shape.ObjectID)); i >= 0 {
		if s.active == s.objects[i] {
			s.active = shape
		}
		s.objects[i] = shape
	} else {
		s.objects = append(s.objects, shape)
	}
	sort.SliceStable(s.objects, func(i, j int) bool {
		return s.objects[i].ZIndex < s.objects[j].ZIndex
	})
}

func (s *Scene) indexOf(shape *core.Shape) int {
	if shape == nil {
		return -1
	}
	for i, o := range s.objects {
		if o == shape {
			return i
		}
	}
	return -1
}

func (s *Scene) topIndex() int {
	if len(s.objects) == 0 {
		return 0
	}
	return s.objects[len(s.objects)-1].ZIndex
}
