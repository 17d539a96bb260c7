// Package rooms ties a room's board to the shape factory, the shared store
// and the collaborators connected to the room.
package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"myfigma-server/board"
	"myfigma-server/core"
	"myfigma-server/shapes"

	"github.com/sirupsen/logrus"
)

// Broadcaster pushes a shape to everybody in a room.
type Broadcaster interface {
	EmitShape(roomID string, shape *core.Shape)
}

type Service struct {
	boards      *board.Registry
	shapes      core.ShapeStore
	documents   core.DocumentStore
	registry    core.RoomRegistry
	factory     *shapes.Factory
	broadcaster Broadcaster
}

type Options struct {
	Shapes      core.ShapeStore
	Documents   core.DocumentStore
	Registry    core.RoomRegistry
	IDs         core.IDGenerator
	Broadcaster Broadcaster
}

func NewService(opts Options) *Service {
	return &Service{
		boards:      board.NewRegistry(opts.Shapes),
		shapes:      opts.Shapes,
		documents:   opts.Documents,
		registry:    opts.Registry,
		factory:     shapes.NewFactory(opts.IDs),
		broadcaster: opts.Broadcaster,
	}
}

// SetBroadcaster wires the collaboration hub once it exists.
func (s *Service) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// syncFunc persists and broadcasts every shape the board hands it.
func (s *Service) syncFunc(ctx context.Context, roomID string) core.SyncFunc {
	return func(shape *core.Shape) {
		snapshot := shape.Clone()
		log := logrus.WithFields(logrus.Fields{
			"room_id":   roomID,
			"object_id": snapshot.ObjectID,
		})

		if s.shapes != nil {
			if err := s.shapes.SaveShape(ctx, roomID, snapshot); err != nil {
				log.WithError(err).Error("Failed to store shape")
			}
		}
		if s.registry != nil {
			if err := s.registry.TouchRoom(ctx, roomID); err != nil {
				log.WithError(err).Warn("Failed to touch room")
			}
		}
		if s.broadcaster != nil {
			s.broadcaster.EmitShape(roomID, snapshot)
		}
	}
}

// closedRetries bounds how often update fetches a fresh board after losing
// a race with DeleteRoom.
const closedRetries = 3

func (s *Service) update(ctx context.Context, roomID string, fn func(scene *board.Scene, sync core.SyncFunc) error) error {
	sync := s.syncFunc(ctx, roomID)
	for attempt := 0; ; attempt++ {
		b, err := s.boards.Get(ctx, roomID)
		if err != nil {
			return err
		}
		err = b.Update(func(scene *board.Scene) error {
			return fn(scene, sync)
		})
		if !errors.Is(err, board.ErrBoardClosed) || attempt+1 >= closedRetries {
			return err
		}
	}
}

// CreateShape handles a pointer-down with kind at p. It returns nil and
// drawing=true when kind switches the board into free drawing.
func (s *Service) CreateShape(ctx context.Context, roomID string, kind core.ShapeKind, p core.Pointer) (created *core.Shape, drawing bool, err error) {
	err = s.update(ctx, roomID, func(scene *board.Scene, sync core.SyncFunc) error {
		shape := s.factory.CreateShape(scene, p, kind)
		drawing = scene.DrawingMode()
		if shape == nil {
			return nil
		}
		scene.Add(shape)
		if err := scene.SetActive(shape.ObjectID); err != nil {
			return err
		}
		scene.RequestRenderAll()
		sync(shape)
		created = shape.Clone()
		return nil
	})
	return created, drawing, err
}

// FinishPath stores a free-drawing stroke as a path shape and leaves
// drawing mode.
func (s *Service) FinishPath(ctx context.Context, roomID string, points []core.Point) (*core.Shape, error) {
	var created *core.Shape
	err := s.update(ctx, roomID, func(scene *board.Scene, sync core.SyncFunc) error {
		scene.SetDrawingMode(false)
		shape := s.factory.CreatePath(points)
		if shape == nil {
			return nil
		}
		scene.Add(shape)
		scene.RequestRenderAll()
		sync(shape)
		created = shape.Clone()
		return nil
	})
	return created, err
}

func (s *Service) Select(ctx context.Context, roomID string, ids []string) error {
	return s.update(ctx, roomID, func(scene *board.Scene, _ core.SyncFunc) error {
		return scene.SetActive(ids...)
	})
}

// Modify edits the active shape and returns it, or nil when nothing
// eligible is selected.
func (s *Service) Modify(ctx context.Context, roomID string, property shapes.Property, value string) (*core.Shape, error) {
	var ref core.ActiveObjectRef
	err := s.update(ctx, roomID, func(scene *board.Scene, sync core.SyncFunc) error {
		if err := shapes.ModifyShape(scene, property, value, &ref, sync); err != nil {
			return err
		}
		if ref.Current == nil {
			if active := scene.ActiveObject(); active != nil && !active.IsSelectionGroup() {
				ref.Current = active
			}
		}
		ref.Current = ref.Current.Clone()
		return nil
	})
	return ref.Current, err
}

func (s *Service) Reorder(ctx context.Context, roomID string, direction shapes.Direction) (*core.Shape, error) {
	var moved *core.Shape
	err := s.update(ctx, roomID, func(scene *board.Scene, sync core.SyncFunc) error {
		var last *core.Shape
		err := shapes.BringElement(scene, direction, func(shape *core.Shape) {
			last = shape
			sync(shape)
		})
		moved = last.Clone()
		return err
	})
	return moved, err
}

// UploadImage decodes file outside the board lock, then places it.
func (s *Service) UploadImage(ctx context.Context, roomID string, file io.Reader) (*core.Shape, error) {
	shape, err := s.factory.DecodeImage(ctx, file)
	if err != nil {
		return nil, err
	}
	err = s.update(ctx, roomID, func(scene *board.Scene, sync core.SyncFunc) error {
		shapes.PlaceImage(scene, shape, sync)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shape.Clone(), nil
}

// ApplyRemote takes a shape edited by a collaborator, stores it and puts it
// on the board. Rebroadcasting is left to the transport.
func (s *Service) ApplyRemote(ctx context.Context, roomID string, shape *core.Shape) error {
	return s.update(ctx, roomID, func(scene *board.Scene, _ core.SyncFunc) error {
		scene.Upsert(shape.Clone())
		if s.shapes == nil {
			return nil
		}
		return s.shapes.SaveShape(ctx, roomID, shape)
	})
}

func (s *Service) Shapes(ctx context.Context, roomID string) (shapes []*core.Shape, err error) {
	err = s.update(ctx, roomID, func(scene *board.Scene, _ core.SyncFunc) error {
		shapes = scene.Objects()
		return nil
	})
	return shapes, err
}

// Scene is the exported document format.
type Scene struct {
	RoomID   string        `json:"roomId"`
	Elements []*core.Shape `json:"elements"`
}

// Export saves the room's current shapes as a document and returns its id.
func (s *Service) Export(ctx context.Context, roomID string) (string, error) {
	elements, err := s.Shapes(ctx, roomID)
	if err != nil {
		return "", err
	}

	var doc core.Document
	if err := json.NewEncoder(&doc.Data).Encode(Scene{RoomID: roomID, Elements: elements}); err != nil {
		return "", err
	}
	return s.documents.Create(ctx, &doc)
}

// DeleteRoom removes the room's shapes from storage and memory. The store
// delete runs under the board lock, so no mutation can save a shape in
// between; callers still holding the old board get board.ErrBoardClosed.
func (s *Service) DeleteRoom(ctx context.Context, roomID string) error {
	b, err := s.boards.Get(ctx, roomID)
	if err != nil {
		return err
	}
	err = b.Close(func() error {
		if s.shapes == nil {
			return nil
		}
		return s.shapes.DeleteRoom(ctx, roomID)
	})
	if err != nil {
		return err
	}
	s.boards.Drop(b)
	return nil
}

// DecodeScene parses an exported document.
func DecodeScene(doc *core.Document) (*Scene, error) {
	var scene Scene
	if err := json.NewDecoder(bytes.NewReader(doc.Data.Bytes())).Decode(&scene); err != nil {
		return nil, err
	}
	return &scene, nil
}
