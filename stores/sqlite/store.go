package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"myfigma-server/core"
	"time"

	stdlog "log"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Store persists documents, shapes and rooms in a SQLite database.
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (id TEXT PRIMARY KEY, data BLOB);`,
	`CREATE TABLE IF NOT EXISTS shapes (
		room_id TEXT NOT NULL,
		object_id TEXT NOT NULL,
		z_index INTEGER NOT NULL DEFAULT 0,
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (room_id, object_id)
	);`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		last_active INTEGER NOT NULL
	);`,
}

// NewStore opens (or creates) the database and its tables.
func NewStore(dataSourceName string) *Store {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		stdlog.Fatal(err)
	}

	for _, stmt := range schema {
		if _, err = db.Exec(stmt); err != nil {
			stdlog.Fatal(err)
		}
	}

	return &Store{db}
}

func (s *Store) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)
	log.Debug("Retrieving document by ID")
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM documents WHERE id = ?", id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			log.WithField("error", "document not found").Warn("Document with specified ID not found")
			return nil, fmt.Errorf("document with id %s not found", id)
		}
		log.WithField("error", err).Error("Failed to retrieve document")
		return nil, err
	}
	log.Info("Document retrieved successfully")
	return &core.Document{Data: *bytes.NewBuffer(data)}, nil
}

func (s *Store) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	data := document.Data.Bytes()
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"data_length": len(data),
	})

	_, err := s.db.ExecContext(ctx, "INSERT INTO documents (id, data) VALUES (?, ?)", id, data)
	if err != nil {
		log.WithField("error", err).Error("Failed to create document")
		return "", err
	}
	log.Info("Document created successfully")
	return id, nil
}

func (s *Store) SaveShape(ctx context.Context, roomID string, shape *core.Shape) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}
	if shape == nil || shape.ObjectID == "" {
		return fmt.Errorf("shape object id is required")
	}

	log := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"object_id": shape.ObjectID,
	})

	data, err := json.Marshal(shape)
	if err != nil {
		log.WithField("error", err).Error("Failed to marshal shape")
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shapes (room_id, object_id, z_index, data, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(room_id, object_id) DO UPDATE SET z_index = excluded.z_index, data = excluded.data, updated_at = excluded.updated_at`,
		roomID, shape.ObjectID, shape.ZIndex, data, time.Now().UnixMilli())
	if err != nil {
		log.WithField("error", err).Error("Failed to save shape")
		return err
	}

	log.Debug("Shape saved")
	return nil
}

func (s *Store) ListShapes(ctx context.Context, roomID string) ([]*core.Shape, error) {
	log := logrus.WithField("room_id", roomID)

	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM shapes WHERE room_id = ? ORDER BY z_index ASC, object_id ASC", roomID)
	if err != nil {
		log.WithField("error", err).Error("Failed to list shapes")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close shape rows")
		}
	}()

	shapes := []*core.Shape{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			log.WithField("error", err).Error("Failed to scan shape")
			continue
		}
		var shape core.Shape
		if err := json.Unmarshal(data, &shape); err != nil {
			log.WithField("error", err).Warn("Failed to decode stored shape, skipping")
			continue
		}
		shapes = append(shapes, &shape)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debugf("Listed %d shapes", len(shapes))
	return shapes, nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}
	log := logrus.WithField("room_id", roomID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range []string{
		"DELETE FROM shapes WHERE room_id = ?",
		"DELETE FROM rooms WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, roomID); err != nil {
			_ = tx.Rollback()
			log.WithField("error", err).Error("Failed to delete room")
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info("Room deleted")
	return nil
}

func (s *Store) TouchRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO rooms (id, last_active) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET last_active = excluded.last_active",
		roomID, time.Now().UnixMilli())
	return err
}

func (s *Store) ListRooms(ctx context.Context) ([]core.Room, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, last_active FROM rooms ORDER BY last_active DESC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []core.Room{}
	for rows.Next() {
		var room core.Room
		if err := rows.Scan(&room.ID, &room.LastActive); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
