package board

import (
	"errors"
	"myfigma-server/core"
	"testing"
)

func addShapes(s *Scene, ids ...string) []*core.Shape {
	out := make([]*core.Shape, len(ids))
	for i, id := range ids {
		out[i] = &core.Shape{ObjectID: id, Type: core.KindRectangle}
		s.Add(out[i])
	}
	return out
}

func objectIDs(shapes []*core.Shape) []string {
	ids := make([]string, len(shapes))
	for i, s := range shapes {
		ids[i] = s.ObjectID
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScene_AddAssignsIncreasingZIndex(t *testing.T) {
	s := &Scene{roomID: "room"}
	shapes := addShapes(s, "a", "b", "c")

	for i, shape := range shapes {
		if shape.ZIndex != i+1 {
			t.Errorf("ZIndex of %s mismatch: got %d, want %d", shape.ObjectID, shape.ZIndex, i+1)
		}
	}
	s.Add(nil)
	if got := len(s.Objects()); got != 3 {
		t.Errorf("Object count mismatch: got %d, want 3", got)
	}
}

func TestScene_Reorder(t *testing.T) {
	testCases := []struct {
		name   string
		apply  func(s *Scene, shapes []*core.Shape)
		order  []string
		zindex map[string]int
	}{
		{
			name:   "bring bottom to front",
			apply:  func(s *Scene, shapes []*core.Shape) { s.BringToFront(shapes[0]) },
			order:  []string{"b", "c", "a"},
			zindex: map[string]int{"a": 4},
		},
		{
			name:   "send top to back",
			apply:  func(s *Scene, shapes []*core.Shape) { s.SendToBack(shapes[2]) },
			order:  []string{"c", "a", "b"},
			zindex: map[string]int{"c": 0},
		},
		{
			name:   "front of top is a no-op",
			apply:  func(s *Scene, shapes []*core.Shape) { s.BringToFront(shapes[2]) },
			order:  []string{"a", "b", "c"},
			zindex: map[string]int{"c": 3},
		},
		{
			name:   "back of bottom is a no-op",
			apply:  func(s *Scene, shapes []*core.Shape) { s.SendToBack(shapes[0]) },
			order:  []string{"a", "b", "c"},
			zindex: map[string]int{"a": 1},
		},
		{
			name:  "foreign shape is ignored",
			apply: func(s *Scene, _ []*core.Shape) { s.BringToFront(&core.Shape{ObjectID: "x"}) },
			order: []string{"a", "b", "c"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Scene{}
			shapes := addShapes(s, "a", "b", "c")
			tc.apply(s, shapes)

			if got := objectIDs(s.Objects()); !equalIDs(got, tc.order) {
				t.Errorf("Paint order mismatch: got %v, want %v", got, tc.order)
			}
			for id, z := range tc.zindex {
				if got := s.Find(id).ZIndex; got != z {
					t.Errorf("ZIndex of %s mismatch: got %d, want %d", id, got, z)
				}
			}
		})
	}
}

func TestScene_SetActive(t *testing.T) {
	s := &Scene{}
	shapes := addShapes(s, "a", "b")

	if err := s.SetActive("a"); err != nil {
		t.Fatalf("SetActive() failed: %v", err)
	}
	if s.ActiveObject() != shapes[0] {
		t.Error("Single selection does not point at the shape")
	}

	if err := s.SetActive("a", "b"); err != nil {
		t.Fatalf("SetActive() failed: %v", err)
	}
	group := s.ActiveObject()
	if !group.IsSelectionGroup() || !equalIDs(group.Objects, []string{"a", "b"}) {
		t.Errorf("Unexpected group selection: %+v", group)
	}

	if err := s.SetActive(); err != nil || s.ActiveObject() != nil {
		t.Errorf("Clearing selection failed: %v", err)
	}

	if err := s.SetActive("a", "missing"); !errors.Is(err, ErrShapeNotFound) {
		t.Errorf("SetActive() error mismatch: got %v", err)
	}
}

func TestScene_Upsert(t *testing.T) {
	s := &Scene{}
	addShapes(s, "a", "b", "c")
	if err := s.SetActive("b"); err != nil {
		t.Fatalf("SetActive() failed: %v", err)
	}

	replacement := &core.Shape{ObjectID: "b", Fill: "#ff0000", ZIndex: 10}
	s.Upsert(replacement)
	s.Upsert(&core.Shape{ObjectID: "z", ZIndex: -1})
	s.Upsert(&core.Shape{})
	s.Upsert(nil)

	if got := objectIDs(s.Objects()); !equalIDs(got, []string{"z", "a", "c", "b"}) {
		t.Errorf("Paint order mismatch: got %v", got)
	}
	if s.ActiveObject() != replacement {
		t.Error("Active selection did not follow the replacement")
	}
}

func TestScene_ObjectsAreCopies(t *testing.T) {
	s := &Scene{}
	addShapes(s, "a")

	s.Objects()[0].Fill = "#000000"
	if s.Find("a").Fill != "" {
		t.Error("Objects() exposed the scene's shape")
	}
}

func TestBoard_Update(t *testing.T) {
	b := New("room-1")
	want := errors.New("boom")

	err := b.Update(func(s *Scene) error {
		if s.RoomID() != "room-1" {
			t.Errorf("RoomID mismatch: got %q", s.RoomID())
		}
		addShapes(s, "a")
		s.SetDrawingMode(true)
		s.RequestRenderAll()
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("Update() error mismatch: got %v", err)
	}

	_ = b.Update(func(s *Scene) error {
		if !s.DrawingMode() || s.Renders() != 1 {
			t.Errorf("Scene state lost: drawing=%v renders=%d", s.DrawingMode(), s.Renders())
		}
		return nil
	})
	if got := len(b.Snapshot()); got != 1 {
		t.Errorf("Snapshot size mismatch: got %d, want 1", got)
	}
}

func TestBoard_Close(t *testing.T) {
	b := New("room-1")
	_ = b.Update(func(s *Scene) error { addShapes(s, "a"); return nil })

	want := errors.New("store offline")
	if err := b.Close(func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("Close() error mismatch: got %v", err)
	}
	if b.Closed() {
		t.Fatal("Failed Close() left the board closed")
	}
	if err := b.Update(func(s *Scene) error { return nil }); err != nil {
		t.Fatalf("Update() after failed Close() = %v", err)
	}

	ran := false
	if err := b.Close(func() error { ran = true; return nil }); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !ran || !b.Closed() {
		t.Fatalf("Close() state mismatch: ran=%v closed=%v", ran, b.Closed())
	}

	called := false
	err := b.Update(func(s *Scene) error { called = true; return nil })
	if !errors.Is(err, ErrBoardClosed) {
		t.Errorf("Update() after Close() = %v, want %v", err, ErrBoardClosed)
	}
	if called {
		t.Error("Update() ran fn on a closed board")
	}
}
