package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"myfigma-server/core"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	documentsDir = "documents"
	roomsDir     = "rooms"
)

// Store keeps documents and shapes as files under basePath.
type Store struct {
	basePath string
}

// NewStore creates a filesystem-based store rooted at basePath.
func NewStore(basePath string) *Store {
	for _, dir := range []string{documentsDir, roomsDir} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0755); err != nil {
			log.Fatalf("failed to create base directory: %v", err)
		}
	}
	return &Store{basePath: basePath}
}

// safeName rejects ids that would escape their directory.
func safeName(kind, name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid %s id %q", kind, name)
	}
	return nil
}

func (s *Store) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)
	if err := safeName("document", id); err != nil {
		return nil, err
	}

	filePath := filepath.Join(s.basePath, documentsDir, id)
	log.WithField("file_path", filePath).Debug("Retrieving document by ID")
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("error", "document not found").Warn("Document with specified ID not found")
			return nil, fmt.Errorf("document with id %s not found", id)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}

	log.Info("Document retrieved successfully")
	return &core.Document{Data: *bytes.NewBuffer(data)}, nil
}

func (s *Store) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	filePath := filepath.Join(s.basePath, documentsDir, id)
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"file_path":   filePath,
	})

	if err := os.WriteFile(filePath, document.Data.Bytes(), 0644); err != nil {
		log.WithError(err).Error("Failed to create document")
		return "", err
	}

	log.Info("Document created successfully")
	return id, nil
}

func (s *Store) roomPath(roomID string) (string, error) {
	if err := safeName("room", roomID); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, roomsDir, roomID), nil
}

func (s *Store) SaveShape(ctx context.Context, roomID string, shape *core.Shape) error {
	roomPath, err := s.roomPath(roomID)
	if err != nil {
		return err
	}
	if shape == nil {
		return fmt.Errorf("shape is required")
	}
	if err := safeName("object", shape.ObjectID); err != nil {
		return err
	}

	filePath := filepath.Join(roomPath, shape.ObjectID+".json")
	log := logrus.WithFields(logrus.Fields{"room_id": roomID, "object_id": shape.ObjectID, "path": filePath})

	if err := os.MkdirAll(roomPath, 0755); err != nil {
		log.WithError(err).Error("Failed to create room directory")
		return err
	}

	data, err := json.Marshal(shape)
	if err != nil {
		log.WithError(err).Error("Failed to marshal shape")
		return err
	}

	// Write then rename so readers never see a partial file.
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write shape file")
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		log.WithError(err).Error("Failed to move shape file into place")
		return err
	}

	log.Debug("Shape saved")
	return nil
}

func (s *Store) ListShapes(ctx context.Context, roomID string) ([]*core.Shape, error) {
	roomPath, err := s.roomPath(roomID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"room_id": roomID, "path": roomPath})

	files, err := os.ReadDir(roomPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Shape{}, nil
		}
		log.WithError(err).Error("Failed to read room directory")
		return nil, err
	}

	shapes := make([]*core.Shape, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(roomPath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read shape file %s, skipping", file.Name())
			continue
		}

		var shape core.Shape
		if err := json.Unmarshal(data, &shape); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal shape file %s, skipping", file.Name())
			continue
		}
		shapes = append(shapes, &shape)
	}

	sort.Slice(shapes, func(i, j int) bool {
		if shapes[i].ZIndex == shapes[j].ZIndex {
			return shapes[i].ObjectID < shapes[j].ObjectID
		}
		return shapes[i].ZIndex < shapes[j].ZIndex
	})

	log.Debugf("Listed %d shapes", len(shapes))
	return shapes, nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	roomPath, err := s.roomPath(roomID)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(roomPath); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to delete room")
		return err
	}

	logrus.WithField("room_id", roomID).Info("Room deleted")
	return nil
}
