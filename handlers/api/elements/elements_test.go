package elements

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"myfigma-server/board"
	"myfigma-server/core"
	"myfigma-server/rooms"
	"myfigma-server/shapes"
	"myfigma-server/stores/memory"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter() http.Handler {
	store := memory.NewStore()
	n := 0
	svc := rooms.NewService(rooms.Options{
		Shapes:    store,
		Documents: store,
		Registry:  store,
		IDs: core.IDGeneratorFunc(func() string {
			n++
			return fmt.Sprintf("obj-%d", n)
		}),
	})

	r := chi.NewRouter()
	r.Route("/api/rooms/{roomId}", func(r chi.Router) {
		Routes(r, svc)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeShape(t *testing.T, rec *httptest.ResponseRecorder) core.Shape {
	t.Helper()
	var shape core.Shape
	if err := json.NewDecoder(rec.Body).Decode(&shape); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return shape
}

func TestHandleCreateShape(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		status  int
		shape   bool
		drawing bool
	}{
		{"rectangle", `{"kind":"rectangle","x":10,"y":20}`, http.StatusCreated, true, false},
		{"text", `{"kind":"text","x":0,"y":0}`, http.StatusCreated, true, false},
		{"freeform", `{"kind":"freeform","x":0,"y":0}`, http.StatusOK, false, true},
		{"unknown kind", `{"kind":"hexagon"}`, http.StatusBadRequest, false, false},
		{"image by pointer", `{"kind":"image"}`, http.StatusBadRequest, false, false},
		{"malformed body", `{"kind":`, http.StatusBadRequest, false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, newTestRouter(), http.MethodPost, "/api/rooms/r1/shapes", tc.body)

			if rec.Code != tc.status {
				t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, tc.status)
			}
			if tc.status >= 300 {
				return
			}

			var resp CreateShapeResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if (resp.Shape != nil) != tc.shape {
				t.Errorf("Shape presence mismatch: got %+v", resp.Shape)
			}
			if resp.DrawingMode != tc.drawing {
				t.Errorf("Drawing mode mismatch: got %v, want %v", resp.DrawingMode, tc.drawing)
			}
		})
	}
}

func TestCreateRectangleResponse(t *testing.T) {
	rec := do(t, newTestRouter(), http.MethodPost, "/api/rooms/r1/shapes", `{"kind":"rectangle","x":10,"y":20}`)

	var resp struct {
		Shape map[string]any `json:"shape"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	want := map[string]any{
		"objectId": "obj-1",
		"type":     "rectangle",
		"left":     10.0,
		"top":      20.0,
		"width":    100.0,
		"height":   100.0,
		"fill":     "#aabbcc",
	}
	for k, v := range want {
		if resp.Shape[k] != v {
			t.Errorf("Field %s mismatch: got %v, want %v", k, resp.Shape[k], v)
		}
	}
}

func TestModifyAndReorderFlow(t *testing.T) {
	h := newTestRouter()

	do(t, h, http.MethodPost, "/api/rooms/r1/shapes", `{"kind":"rectangle","x":0,"y":0}`)
	do(t, h, http.MethodPost, "/api/rooms/r1/shapes", `{"kind":"circle","x":0,"y":0}`)

	rec := do(t, h, http.MethodPatch, "/api/rooms/r1/active", `{"property":"width","value":400}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Modify status mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	if circle := decodeShape(t, rec); circle.ScaleX != 2 || circle.ScaleY != 2 {
		t.Errorf("Circle scale mismatch: got (%v, %v), want 2", circle.ScaleX, circle.ScaleY)
	}

	rec = do(t, h, http.MethodPatch, "/api/rooms/r1/active", `{"property":"fill","value":"#ABC"}`)
	if rec.Code != http.StatusOK || decodeShape(t, rec).Fill != "#aabbcc" {
		t.Errorf("Fill modify mismatch: status %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPut, "/api/rooms/r1/selection", `{"objectIds":["obj-1"]}`); rec.Code != http.StatusNoContent {
		t.Fatalf("Select status mismatch: got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/rooms/r1/active/order", `{"direction":"front"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Reorder status mismatch: got %d", rec.Code)
	}
	if moved := decodeShape(t, rec); moved.ObjectID != "obj-1" {
		t.Errorf("Moved shape mismatch: got %s", moved.ObjectID)
	}

	rec = do(t, h, http.MethodGet, "/api/rooms/r1/shapes", "")
	var list []core.Shape
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(list) != 2 || list[1].ObjectID != "obj-1" {
		t.Errorf("Paint order mismatch: %+v", list)
	}
}

func TestModifyAndReorder_Errors(t *testing.T) {
	h := newTestRouter()
	do(t, h, http.MethodPost, "/api/rooms/r1/shapes", `{"kind":"line","x":0,"y":0}`)

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown property", http.MethodPatch, "/api/rooms/r1/active", `{"property":"shadow","value":"x"}`, http.StatusBadRequest},
		{"boolean value", http.MethodPatch, "/api/rooms/r1/active", `{"property":"opacity","value":true}`, http.StatusBadRequest},
		{"bad colour", http.MethodPatch, "/api/rooms/r1/active", `{"property":"stroke","value":"blue-ish"}`, http.StatusBadRequest},
		{"text property on line", http.MethodPatch, "/api/rooms/r1/active", `{"property":"fontSize","value":12}`, http.StatusBadRequest},
		{"unknown direction", http.MethodPost, "/api/rooms/r1/active/order", `{"direction":"left"}`, http.StatusBadRequest},
		{"select missing shape", http.MethodPut, "/api/rooms/r1/selection", `{"objectIds":["nope"]}`, http.StatusNotFound},
		{"empty path", http.MethodPost, "/api/rooms/r1/paths", `{"points":[]}`, http.StatusBadRequest},
		{"nothing selected", http.MethodPatch, "/api/rooms/other/active", `{"property":"fill","value":"#fff"}`, http.StatusNoContent},
		{"nothing to reorder", http.MethodPost, "/api/rooms/other/active/order", `{"direction":"back"}`, http.StatusNoContent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Errorf("Status code mismatch: got %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestHandleFinishPath(t *testing.T) {
	h := newTestRouter()
	do(t, h, http.MethodPost, "/api/rooms/r1/shapes", `{"kind":"freeform","x":0,"y":0}`)

	rec := do(t, h, http.MethodPost, "/api/rooms/r1/paths", `{"points":[{"x":1,"y":2},{"x":11,"y":22}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusCreated)
	}
	if path := decodeShape(t, rec); path.Type != core.KindPath || len(path.Path) != 2 {
		t.Errorf("Unexpected path shape: %+v", path)
	}
}

func multipartUpload(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "upload.png")
	if err != nil {
		t.Fatalf("CreateFormFile() failed: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func TestHandleUploadImage(t *testing.T) {
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 400, 400))); err != nil {
		t.Fatalf("png.Encode() failed: %v", err)
	}

	testCases := []struct {
		name   string
		data   []byte
		status int
	}{
		{"png", img.Bytes(), http.StatusCreated},
		{"garbage", []byte("not an image"), http.StatusUnprocessableEntity},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tc.data)
			req := httptest.NewRequest(http.MethodPost, "/api/rooms/r1/images", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			newTestRouter().ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, tc.status)
			}
			if tc.status == http.StatusCreated {
				if shape := decodeShape(t, rec); shape.Type != core.KindImage || shape.ScaleX != 0.5 {
					t.Errorf("Unexpected image shape: type=%s scale=%v", shape.Type, shape.ScaleX)
				}
			}
		})
	}
}

func TestHandleUploadImage_MissingFile(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("other", "value")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/r1/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestExportAndDelete(t *testing.T) {
	h := newTestRouter()
	do(t, h, http.MethodPost, "/api/rooms/r1/shapes", `{"kind":"triangle","x":0,"y":0}`)

	rec := do(t, h, http.MethodPost, "/api/rooms/r1/export", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("Export status mismatch: got %d", rec.Code)
	}
	var resp ExportResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || len(resp.ID) != 26 {
		t.Errorf("Unexpected export id %q: %v", resp.ID, err)
	}

	if rec := do(t, h, http.MethodDelete, "/api/rooms/r1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("Delete status mismatch: got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/rooms/r1/shapes", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("Shapes left after delete: %s", rec.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{shapes.ErrUnknownKind, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", shapes.ErrInvalidValue), http.StatusBadRequest},
		{board.ErrShapeNotFound, http.StatusNotFound},
		{shapes.ErrImageDecode, http.StatusUnprocessableEntity},
		{shapes.ErrImageTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestValueString(t *testing.T) {
	if v, err := valueString(12.5); err != nil || v != "12.5" {
		t.Errorf("valueString(12.5) = %q, %v", v, err)
	}
	if v, err := valueString("#fff"); err != nil || v != "#fff" {
		t.Errorf("valueString(#fff) = %q, %v", v, err)
	}
	if _, err := valueString(nil); !errors.Is(err, shapes.ErrInvalidValue) {
		t.Errorf("valueString(nil) error mismatch: got %v", err)
	}
}
