package elements

import (
	"encoding/json"
	"errors"
	"fmt"
	"myfigma-server/board"
	"myfigma-server/core"
	"myfigma-server/rooms"
	"myfigma-server/shapes"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const maxUploadMemory = 1 << 20

type (
	CreateShapeRequest struct {
		Kind string  `json:"kind"`
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
	}

	CreateShapeResponse struct {
		Shape       *core.Shape `json:"shape,omitempty"`
		DrawingMode bool        `json:"drawingMode"`
	}

	PathRequest struct {
		Points []core.Point `json:"points"`
	}

	SelectionRequest struct {
		ObjectIDs []string `json:"objectIds"`
	}

	ModifyRequest struct {
		Property string `json:"property"`
		Value    any    `json:"value"`
	}

	OrderRequest struct {
		Direction string `json:"direction"`
	}

	ExportResponse struct {
		ID string `json:"id"`
	}
)

// Routes mounts the room API under /api/rooms/{roomId}.
func Routes(r chi.Router, svc *rooms.Service) {
	r.Get("/shapes", HandleListShapes(svc))
	r.Post("/shapes", HandleCreateShape(svc))
	r.Post("/paths", HandleFinishPath(svc))
	r.Put("/selection", HandleSelect(svc))
	r.Patch("/active", HandleModify(svc))
	r.Post("/active/order", HandleReorder(svc))
	r.Post("/images", HandleUploadImage(svc))
	r.Post("/export", HandleExport(svc))
	r.Delete("/", HandleDeleteRoom(svc))
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shapes.ErrUnknownKind),
		errors.Is(err, shapes.ErrUnknownProperty),
		errors.Is(err, shapes.ErrInvalidValue),
		errors.Is(err, shapes.ErrUnknownDirection):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrShapeNotFound):
		return http.StatusNotFound
	case errors.Is(err, shapes.ErrImageDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shapes.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func fail(w http.ResponseWriter, roomID, msg string, err error) {
	status := statusFor(err)
	log := logrus.WithError(err).WithField("room_id", roomID)
	if status == http.StatusInternalServerError {
		log.Error(msg)
		http.Error(w, msg, status)
		return
	}
	log.Warn(msg)
	http.Error(w, err.Error(), status)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logrus.WithField("error", err).Error("Failed to decode request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// HandleListShapes returns the room's shapes back to front.
func HandleListShapes(svc *rooms.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		list, err := svc.Shapes(r.Context(), roomID)
		if err != nil {
			fail(w, roomID, "Failed to list shapes", err)
			return
		}

		render.JSON(w, r, list)
	}
}

// HandleCreateShape creates the default shape for a pointer-down.
func HandleCreateShape(svc *rooms.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		var req CreateShapeRequest
		if !decode(w, r, &req) {
			return
		}

		kind, err := shapes.ParseKind(req.Kind)
		if err != nil {
			fail(w, roomID, "Unknown shape kind", err)
			return
		}
		if kind == core.KindImage {
			fail(w, roomID, "Images are created by upload", fmt.Errorf("%w: %q", shapes.ErrUnknownKind, req.Kind))
			return
		}

		shape, drawing, err := svc.CreateShape(r.Context(), roomID, kind, core.Pointer{X: req.X, Y: req.Y})
		if err != nil {
			fail(w, roomID, "Failed to create shape", err)
			return
		}

		if shape == nil {
			render.Status(r, http.StatusOK)
		} else {
			render.Status(r, http.StatusCreated)
		}
		render.JSON(w, r, CreateShapeResponse{Shape: shape, DrawingMode: drawing})
	}
}

// HandleFinishPath stores a completed free-drawing stroke.
func HandleFinishPath(svc *rooms.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		var req PathRequest
		if !decode(w, r, &req) {
			return
		}
		if len(req.Points) == 0 {
			http.Error(w, "points are required", http.StatusBadRequest)
			return
		}

		shape, err := svc.FinishPath(r.Context(), roomID, req.Points)
		if err != nil {
			fail(w, roomID, "Failed to create path", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, shape)
	}
}

// HandleSelect replaces the room's active selection.
func HandleSelect(svc *rooms.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		var req SelectionRequest
		if !decode(w, r, &req) {
			return
		}

		if err := svc.Select(r.Context(), roomID, req.ObjectIDs); err != nil {
			fail(w, roomID, "Failed to select shapes", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleModify edits one property of the active shape.
func HandleModify(svc *rooms.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		var req ModifyRequest
		if !decode(w, r, &req) {
			return
		}

		property, err := shapes.ParseProperty(req.Property)
		if err != nil {
			fail(w, roomID, "Unknown property", err)
			return
		}
		value, err := valueString(req.Value)
		if err != nil {
			fail(w, roomID, "Invalid property value", err)
			return
		}

		shape, err := svc.Modify(r.Context(), roomID, property, value)
		if err != nil {
			fail(w, roomID, "Failed to modify shape", err)
			return
		}
		if shape == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		render.JSON(w, r, shape)
	}
}

// HandleReorder moves the active shape to the front or back.
func HandleReorder(svc *rooms.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		var req OrderRequest
		if !decode(w, r, &req) {
			return
		}

		direction, err := shapes.ParseDirection(req.Direction)
		if err != nil {
			fail(w, roomID, "Unknown direction", err)
			return
		}

		shape, err := svc.Reorder(r.Context(), roomID, direction)
		if err != nil {
			fail(w, roomID, "Failed to reorder shape", err)
			return
		}
		if shape == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		render.JSON(w, r, shape)
	}
}

// HandleUploadImage places the multipart "file" field on the board.
func HandleUploadImage(svc *rooms.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		r.Body = http.MaxBytesReader(w, r.Body, shapes.MaxImageBytes+maxUploadMemory)
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				fail(w, roomID, "Image too large", shapes.ErrImageTooLarge)
				return
			}
			logrus.WithField("error", err).Error("Failed to parse upload")
			http.Error(w, "Invalid upload", http.StatusBadRequest)
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		shape, err := svc.UploadImage(r.Context(), roomID, file)
		if err != nil {
			fail(w, roomID, "Failed to upload image", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, shape)
	}
}

// HandleExport saves the room's scene as a shareable document.
func HandleExport(svc *rooms.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		id, err := svc.Export(r.Context(), roomID)
		if err != nil {
			fail(w, roomID, "Failed to export scene", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, ExportResponse{ID: id})
	}
}

// HandleDeleteRoom drops every stored shape of the room.
func HandleDeleteRoom(svc *rooms.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		if err := svc.DeleteRoom(r.Context(), roomID); err != nil {
			fail(w, roomID, "Failed to delete room", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// valueString renders a JSON property value in the form the typed setters
// parse.
func valueString(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %v", shapes.ErrInvalidValue, v)
	}
}
