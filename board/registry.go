package board

import (
	"context"
	"myfigma-server/core"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry hands out one Board per room, seeded from the shape store the
// first time the room is used. Rooms load independently; a slow store read
// for one room does not hold up the others.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	store   core.ShapeStore
}

// entry is a board being loaded or already loaded. ready is closed once
// board or err is set.
type entry struct {
	ready chan struct{}
	board *Board
	err   error
}

func NewRegistry(store core.ShapeStore) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		store:   store,
	}
}

func (r *Registry) Get(ctx context.Context, roomID string) (*Board, error) {
	for {
		r.mu.Lock()
		e, ok := r.entries[roomID]
		if !ok {
			e = &entry{ready: make(chan struct{})}
			r.entries[roomID] = e
			r.mu.Unlock()
			r.load(ctx, roomID, e)
		} else {
			r.mu.Unlock()
		}

		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.err != nil {
			return nil, e.err
		}
		if e.board.Closed() {
			r.forget(roomID, e)
			continue
		}
		return e.board, nil
	}
}

func (r *Registry) load(ctx context.Context, roomID string, e *entry) {
	defer close(e.ready)

	b := New(roomID)
	if r.store != nil {
		persisted, err := r.store.ListShapes(ctx, roomID)
		if err != nil {
			e.err = err
			r.forget(roomID, e)
			return
		}
		for _, shape := range persisted {
			b.scene.Upsert(shape)
		}
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"shapes":  len(persisted),
		}).Info("Board loaded")
	}
	e.board = b
}

// forget removes e only if it is still the current entry for the room.
func (r *Registry) forget(roomID string, e *entry) {
	r.mu.Lock()
	if r.entries[roomID] == e {
		delete(r.entries, roomID)
	}
	r.mu.Unlock()
}

// Drop forgets b if it is still the room's board; the next Get reloads the
// room from the store.
func (r *Registry) Drop(b *Board) {
	roomID := b.scene.roomID
	r.mu.Lock()
	if e, ok := r.entries[roomID]; ok && e.board == b {
		delete(r.entries, roomID)
	}
	r.mu.Unlock()
}
