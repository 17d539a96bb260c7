// Package storetest holds behaviour checks shared by every store back end.
package storetest

import (
	"bytes"
	"context"
	"myfigma-server/core"
	"testing"
)

// DocumentStore checks that documents round-trip unchanged under ULID ids.
func DocumentStore(t *testing.T, store core.DocumentStore) {
	t.Helper()
	ctx := context.Background()

	testCases := []struct {
		name string
		data string
	}{
		{"scene", `{"roomId":"r1","elements":[]}`},
		{"empty", ""},
		{"utf8", "héllo 世界"},
		{"binary-like", "\x00\x01\x02"},
		{"large", string(bytes.Repeat([]byte("x"), 256*1024))},
	}

	for _, tc := range testCases {
		t.Run("document/"+tc.name, func(t *testing.T) {
			id, err := store.Create(ctx, &core.Document{Data: *bytes.NewBufferString(tc.data)})
			if err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
			if len(id) != 26 {
				t.Errorf("Create() returned invalid ID length: got %d, want 26", len(id))
			}

			doc, err := store.FindID(ctx, id)
			if err != nil {
				t.Fatalf("FindID() failed: %v", err)
			}
			if doc.Data.String() != tc.data {
				t.Errorf("Data mismatch: got %d bytes, want %d", doc.Data.Len(), len(tc.data))
			}
		})
	}

	t.Run("document/not found", func(t *testing.T) {
		_, err := store.FindID(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
		if err == nil {
			t.Fatal("FindID() should return error for nonexistent ID")
		}
		want := "document with id 01ARZ3NDEKTSV4RRFFQ69G5FAV not found"
		if err.Error() != want {
			t.Errorf("FindID() error mismatch: got %q, want %q", err.Error(), want)
		}
	})
}

func ids(shapes []*core.Shape) []string {
	out := make([]string, len(shapes))
	for i, s := range shapes {
		out[i] = s.ObjectID
	}
	return out
}

func sameIDs(shapes []*core.Shape, want ...string) bool {
	got := ids(shapes)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// ShapeStore checks upsert, paint-order listing, room isolation and room
// deletion.
func ShapeStore(t *testing.T, store core.ShapeStore) {
	t.Helper()
	ctx := context.Background()

	save := func(t *testing.T, room string, shape *core.Shape) {
		t.Helper()
		if err := store.SaveShape(ctx, room, shape); err != nil {
			t.Fatalf("SaveShape(%s) failed: %v", shape.ObjectID, err)
		}
	}

	t.Run("shapes/list in paint order", func(t *testing.T) {
		save(t, "order", &core.Shape{ObjectID: "c", Type: core.KindCircle, ZIndex: 3})
		save(t, "order", &core.Shape{ObjectID: "a", Type: core.KindRectangle, ZIndex: 1})
		save(t, "order", &core.Shape{ObjectID: "b", Type: core.KindLine, ZIndex: -2})

		got, err := store.ListShapes(ctx, "order")
		if err != nil {
			t.Fatalf("ListShapes() failed: %v", err)
		}
		if !sameIDs(got, "b", "a", "c") {
			t.Errorf("Order mismatch: got %v", ids(got))
		}
	})

	t.Run("shapes/upsert replaces by object id", func(t *testing.T) {
		shape := &core.Shape{ObjectID: "s1", Type: core.KindText, Text: "one", FontSize: 40, ZIndex: 1}
		save(t, "upsert", shape)

		shape.Text = "two"
		shape.ZIndex = 5
		shape.Path = []core.Point{{X: 1, Y: 2}}
		save(t, "upsert", shape)

		got, err := store.ListShapes(ctx, "upsert")
		if err != nil {
			t.Fatalf("ListShapes() failed: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("Shape count mismatch: got %d, want 1", len(got))
		}
		if got[0].Text != "two" || got[0].ZIndex != 5 || len(got[0].Path) != 1 || got[0].FontSize != 40 {
			t.Errorf("Stored shape mismatch: %+v", got[0])
		}

		shape.Text = "mutated after save"
		again, _ := store.ListShapes(ctx, "upsert")
		if again[0].Text != "two" {
			t.Error("Store kept a reference to the caller's shape")
		}
	})

	t.Run("shapes/rooms are isolated", func(t *testing.T) {
		save(t, "room-a", &core.Shape{ObjectID: "x"})
		save(t, "room-b", &core.Shape{ObjectID: "y"})

		a, _ := store.ListShapes(ctx, "room-a")
		b, _ := store.ListShapes(ctx, "room-b")
		if !sameIDs(a, "x") || !sameIDs(b, "y") {
			t.Errorf("Rooms leaked: a=%v b=%v", ids(a), ids(b))
		}
	})

	t.Run("shapes/unknown room is empty", func(t *testing.T) {
		got, err := store.ListShapes(ctx, "never-used")
		if err != nil {
			t.Fatalf("ListShapes() failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Expected no shapes, got %d", len(got))
		}
	})

	t.Run("shapes/delete room", func(t *testing.T) {
		save(t, "doomed", &core.Shape{ObjectID: "d1"})
		save(t, "doomed", &core.Shape{ObjectID: "d2"})
		save(t, "survivor", &core.Shape{ObjectID: "s"})

		if err := store.DeleteRoom(ctx, "doomed"); err != nil {
			t.Fatalf("DeleteRoom() failed: %v", err)
		}
		if got, _ := store.ListShapes(ctx, "doomed"); len(got) != 0 {
			t.Errorf("Shapes left after DeleteRoom: %v", ids(got))
		}
		if got, _ := store.ListShapes(ctx, "survivor"); !sameIDs(got, "s") {
			t.Errorf("DeleteRoom touched another room: %v", ids(got))
		}
	})

	t.Run("shapes/missing object id", func(t *testing.T) {
		if err := store.SaveShape(ctx, "room", &core.Shape{Type: core.KindRectangle}); err == nil {
			t.Error("SaveShape() should reject a shape without object id")
		}
	})
}

// RoomRegistry checks that touched rooms are listed most recent first.
func RoomRegistry(t *testing.T, registry core.RoomRegistry) {
	t.Helper()
	ctx := context.Background()

	for _, id := range []string{"first", "second"} {
		if err := registry.TouchRoom(ctx, id); err != nil {
			t.Fatalf("TouchRoom(%s) failed: %v", id, err)
		}
	}
	if err := registry.TouchRoom(ctx, ""); err == nil {
		t.Error("TouchRoom() should reject an empty room id")
	}

	rooms, err := registry.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms() failed: %v", err)
	}
	seen := make(map[string]bool)
	for i, room := range rooms {
		seen[room.ID] = true
		if room.LastActive <= 0 {
			t.Errorf("Room %s has no activity time", room.ID)
		}
		if i > 0 && rooms[i-1].LastActive < room.LastActive {
			t.Errorf("Rooms not ordered by activity: %v", rooms)
		}
	}
	if !seen["first"] || !seen["second"] {
		t.Errorf("Touched rooms missing: %v", rooms)
	}
}
