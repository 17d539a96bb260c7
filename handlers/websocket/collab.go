package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"myfigma-server/core"
	"reflect"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const shapeSyncEvent = "shape-sync"

type ackInvoker func(err error, payload map[string]any)

// ShapeApplier receives shapes edited by collaborators.
type ShapeApplier interface {
	ApplyRemote(ctx context.Context, roomID string, shape *core.Shape) error
}

// Hub owns the Socket.IO server and the live user count of each room.
type Hub struct {
	srv      *socketio.Server
	applier  ShapeApplier
	registry core.RoomRegistry

	mu          sync.RWMutex
	activeRooms map[string]int
}

func NewHub(applier ShapeApplier, registry core.RoomRegistry) *Hub {
	h := &Hub{
		applier:     applier,
		registry:    registry,
		activeRooms: make(map[string]int),
	}
	h.srv = h.setup()
	return h
}

func (h *Hub) Server() *socketio.Server { return h.srv }

func (h *Hub) ActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make(map[string]int, len(h.activeRooms))
	for k, v := range h.activeRooms {
		rooms[k] = v
	}
	return rooms
}

func (h *Hub) setRoomUsers(roomID string, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n == 0 {
		delete(h.activeRooms, roomID)
		return
	}
	h.activeRooms[roomID] = n
}

// EmitShape sends shape to every socket in the room.
func (h *Hub) EmitShape(roomID string, shape *core.Shape) {
	payload, err := shapePayload(shape)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to encode shape")
		return
	}
	if err := h.srv.To(socketio.Room(roomID)).Emit(shapeSyncEvent, payload); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("Failed to emit shape")
	}
}

func (h *Hub) setup() *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin:      []any{localhostOrigin},
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		me := socket.Id()
		_ = srv.To(socketio.Room(me)).Emit("init-room")

		//nolint:errcheck
		socket.On("join-room", func(datas ...any) {
			h.handleJoin(socket, datas)
		})

		//nolint:errcheck
		socket.On("server-broadcast", func(datas ...any) {
			handleBroadcast(socket, datas, false)
		})

		//nolint:errcheck
		socket.On("server-volatile-broadcast", func(datas ...any) {
			handleBroadcast(socket, datas, true)
		})

		//nolint:errcheck
		socket.On(shapeSyncEvent, func(datas ...any) {
			h.handleShapeSync(socket, datas)
		})

		//nolint:errcheck
		socket.On("disconnecting", func(datas ...any) {
			for _, currentRoom := range socket.Rooms().Keys() {
				roomID := string(currentRoom)
				srv.In(currentRoom).FetchSockets()(func(users []*socketio.RemoteSocket, _ error) {
					others := make([]socketio.SocketId, 0, len(users))
					for _, user := range users {
						if user.Id() != me {
							others = append(others, user.Id())
						}
					}

					h.setRoomUsers(roomID, len(others))
					if len(others) > 0 {
						srv.In(currentRoom).Emit("room-user-change", others)
					}
				})
			}
		})

		//nolint:errcheck
		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
		})
	})

	return srv
}

func (h *Hub) handleJoin(socket *socketio.Socket, datas []any) {
	ack, args := extractAck(datas)
	roomID := ""
	if len(args) > 0 {
		roomID, _ = args[0].(string)
	}
	if roomID == "" {
		err := fmt.Errorf("room id is required")
		respondWithAck(socket, ack, "join-room-ack", errorPayload(err), err)
		return
	}

	me := socket.Id()
	room := socketio.Room(roomID)
	socket.Join(room)
	log := logrus.WithFields(logrus.Fields{"room_id": roomID, "socket_id": me})
	log.Info("Socket joined room")

	if h.registry != nil {
		if err := h.registry.TouchRoom(context.Background(), roomID); err != nil {
			log.WithError(err).Warn("Failed to touch room")
		}
	}

	h.srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, err error) {
		if err != nil {
			respondWithAck(socket, ack, "join-room-ack", errorPayload(err), err)
			return
		}

		h.setRoomUsers(roomID, len(users))

		if len(users) <= 1 {
			_ = h.srv.To(socketio.Room(me)).Emit("first-in-room")
		} else {
			_ = socket.Broadcast().To(room).Emit("new-user", me)
		}

		ids := make([]socketio.SocketId, 0, len(users))
		for _, user := range users {
			ids = append(ids, user.Id())
		}
		h.srv.In(room).Emit("room-user-change", ids)

		respondWithAck(socket, ack, "join-room-ack", map[string]any{
			"status":     "ok",
			"user_count": len(users),
		}, nil)
	})
}

// handleShapeSync stores a collaborator's shape and relays it to the rest
// of the room. Arguments: room id, shape.
func (h *Hub) handleShapeSync(socket *socketio.Socket, datas []any) {
	ack, args := extractAck(datas)
	roomID, shape, err := h.applyShapeSync(context.Background(), socket.Rooms().Keys(), args)
	if err != nil {
		respondWithAck(socket, ack, "shape-sync-ack", errorPayload(err), err)
		return
	}

	payload, _ := shapePayload(shape)
	if err := socket.Broadcast().To(socketio.Room(roomID)).Emit(shapeSyncEvent, payload); err != nil {
		respondWithAck(socket, ack, "shape-sync-ack", errorPayload(err), err)
		return
	}

	respondWithAck(socket, ack, "shape-sync-ack", map[string]any{
		"status":   "ok",
		"objectId": shape.ObjectID,
	}, nil)
}

// applyShapeSync validates a shape-sync event from a socket that has joined
// the given rooms and hands the shape to the applier.
func (h *Hub) applyShapeSync(ctx context.Context, joined []socketio.Room, args []any) (string, *core.Shape, error) {
	if len(args) < 2 {
		return "", nil, fmt.Errorf("room id and shape are required")
	}

	roomID, _ := args[0].(string)
	if roomID == "" {
		return "", nil, fmt.Errorf("missing room id")
	}
	if !inRoom(joined, roomID) {
		return "", nil, fmt.Errorf("socket has not joined room %q", roomID)
	}
	shape, err := decodeShape(args[1])
	if err != nil {
		return "", nil, err
	}

	if h.applier != nil {
		if err := h.applier.ApplyRemote(ctx, roomID, shape); err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Error("Failed to apply remote shape")
			return "", nil, err
		}
	}
	return roomID, shape, nil
}

func inRoom(joined []socketio.Room, roomID string) bool {
	for _, room := range joined {
		if string(room) == roomID {
			return true
		}
	}
	return false
}

func handleBroadcast(socket *socketio.Socket, datas []any, volatile bool) {
	roomID, payload, metadata, ack := parseBroadcastArgs(datas)
	if roomID == "" {
		err := fmt.Errorf("missing room id")
		respondWithAck(socket, ack, "broadcast-ack", makeBroadcastAckPayload(payload, err), err)
		return
	}

	var emitErr error
	if volatile {
		emitErr = socket.Volatile().Broadcast().To(socketio.Room(roomID)).Emit("client-broadcast", payload, metadata)
	} else {
		emitErr = socket.Broadcast().To(socketio.Room(roomID)).Emit("client-broadcast", payload, metadata)
	}

	respondWithAck(socket, ack, "broadcast-ack", makeBroadcastAckPayload(payload, emitErr), emitErr)
}

// decodeShape converts a decoded JSON argument into a shape.
func decodeShape(raw any) (*core.Shape, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	var shape core.Shape
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.ObjectID == "" {
		return nil, fmt.Errorf("shape object id is required")
	}
	// Selection groups only exist on the client that made them.
	if shape.IsSelectionGroup() {
		return nil, fmt.Errorf("selection groups cannot be synced")
	}
	return &shape, nil
}

// shapePayload renders shape as the plain map the socket parser expects.
func shapePayload(shape *core.Shape) (map[string]any, error) {
	data, err := json.Marshal(shape)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	return payload, json.Unmarshal(data, &payload)
}

func errorPayload(err error) map[string]any {
	return map[string]any{"status": "error", "error": err.Error()}
}

// extractAck splits a trailing acknowledgement callback off the event args.
func extractAck(datas []any) (ackInvoker, []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	if ack := wrapAck(datas[len(datas)-1]); ack != nil {
		return ack, datas[:len(datas)-1]
	}
	return nil, datas
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// wrapAck adapts whatever callback shape the client library delivered.
// Error parameters get err; slice, map and empty-interface parameters get
// the payload.
func wrapAck(candidate any) ackInvoker {
	fn := reflect.ValueOf(candidate)
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil
	}

	typ := fn.Type()
	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			args[i] = ackArg(typ.In(i), err, payload)
		}
		if typ.IsVariadic() {
			fn.CallSlice(args)
			return
		}
		fn.Call(args)
	}
}

func ackArg(in reflect.Type, err error, payload map[string]any) reflect.Value {
	switch {
	case in == errorType:
		if err == nil {
			return reflect.Zero(in)
		}
		return reflect.ValueOf(err)
	case in.Kind() == reflect.Slice && in.Elem().Kind() == reflect.Interface && in.Elem().NumMethod() == 0:
		return reflect.ValueOf([]any{payload}).Convert(in)
	case in.Kind() == reflect.Interface && in.NumMethod() == 0,
		in.Kind() == reflect.Map && reflect.TypeOf(payload).AssignableTo(in):
		return reflect.ValueOf(payload)
	default:
		return reflect.Zero(in)
	}
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}
	if socket != nil && event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}

func parseBroadcastArgs(datas []any) (roomID string, payload, metadata any, ack ackInvoker) {
	ack, args := extractAck(datas)
	if len(args) < 3 {
		return "", nil, nil, ack
	}

	roomID, _ = args[0].(string)
	return roomID, args[1], args[2], ack
}

func makeBroadcastAckPayload(original any, ackErr error) map[string]any {
	response := map[string]any{"status": "ok"}
	if ackErr != nil {
		response = errorPayload(ackErr)
	}

	if value, ok := original.(map[string]any); ok {
		if id, ok := value["__collabMessageId"].(string); ok && id != "" {
			response["messageId"] = id
		}
	}
	return response
}
