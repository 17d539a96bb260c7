package core

import (
	"bytes"
	"context"
)

type (
	// Document is an exported scene, stored as an opaque JSON blob.
	Document struct {
		Data bytes.Buffer
	}

	DocumentStore interface {
		FindID(ctx context.Context, id string) (*Document, error)
		Create(ctx context.Context, document *Document) (string, error)
	}

	// ShapeStore is the shared store the sync callback writes to.
	ShapeStore interface {
		// SaveShape inserts or replaces the shape with the same ObjectID.
		SaveShape(ctx context.Context, roomID string, shape *Shape) error
		// ListShapes returns the room's shapes ordered by ZIndex.
		ListShapes(ctx context.Context, roomID string) ([]*Shape, error)
		DeleteRoom(ctx context.Context, roomID string) error
	}

	Room struct {
		ID         string
		LastActive int64
	}

	RoomRegistry interface {
		ListRooms(ctx context.Context) ([]Room, error)
		TouchRoom(ctx context.Context, roomID string) error
	}
)
