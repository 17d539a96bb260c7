package memory

import (
	"context"
	"fmt"
	"myfigma-server/core"
	"sort"

	"github.com/sirupsen/logrus"
)

func (s *Store) SaveShape(ctx context.Context, roomID string, shape *core.Shape) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}
	if shape == nil || shape.ObjectID == "" {
		return fmt.Errorf("shape object id is required")
	}

	s.mu.Lock()
	room, ok := s.shapes[roomID]
	if !ok {
		room = make(map[string]*core.Shape)
		s.shapes[roomID] = room
	}
	room[shape.ObjectID] = shape.Clone()
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"object_id": shape.ObjectID,
	}).Debug("Shape saved")
	return nil
}

func (s *Store) ListShapes(ctx context.Context, roomID string) ([]*core.Shape, error) {
	s.mu.RLock()
	room := s.shapes[roomID]
	shapes := make([]*core.Shape, 0, len(room))
	for _, shape := range room {
		shapes = append(shapes, shape.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(shapes, func(i, j int) bool {
		if shapes[i].ZIndex == shapes[j].ZIndex {
			return shapes[i].ObjectID < shapes[j].ObjectID
		}
		return shapes[i].ZIndex < shapes[j].ZIndex
	})
	return shapes, nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	delete(s.shapes, roomID)
	delete(s.rooms, roomID)
	s.mu.Unlock()

	logrus.WithField("room_id", roomID).Info("Room deleted")
	return nil
}
