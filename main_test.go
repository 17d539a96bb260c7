package main

import (
	"context"
	"myfigma-server/stores/memory"
	"net/http/httptest"
	"testing"
)

func TestAllowLocalOrigin(t *testing.T) {
	testCases := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"https://127.0.0.1", true},
		{"http://[::1]:5173", true},
		{"https://example.com", false},
		{"file://localhost", false},
		{"", false},
	}

	req := httptest.NewRequest("GET", "/", nil)
	for _, tc := range testCases {
		if got := allowLocalOrigin(req, tc.origin); got != tc.want {
			t.Errorf("allowLocalOrigin(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
}

func TestListRooms(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewStore()
	for _, id := range []string{"idle", "busy"} {
		if err := registry.TouchRoom(ctx, id); err != nil {
			t.Fatalf("TouchRoom() failed: %v", err)
		}
	}

	list := listRooms(ctx, map[string]int{"busy": 3, "live-only": 1}, registry)
	if len(list) != 3 {
		t.Fatalf("Room count mismatch: got %d, want 3", len(list))
	}
	if list[0].ID != "busy" || list[0].Users != 3 || list[0].LastActive == nil {
		t.Errorf("Unexpected first room: %+v", list[0])
	}
	if list[1].ID != "live-only" || list[1].LastActive != nil {
		t.Errorf("Unexpected second room: %+v", list[1])
	}
	if list[2].ID != "idle" || list[2].Users != 0 {
		t.Errorf("Unexpected third room: %+v", list[2])
	}
}

func TestListRooms_WithoutRegistry(t *testing.T) {
	list := listRooms(context.Background(), map[string]int{"a": 1}, nil)
	if len(list) != 1 || list[0].ID != "a" {
		t.Errorf("Unexpected rooms: %+v", list)
	}
}
