package shapes

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"myfigma-server/core"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() failed: %v", err)
	}
	return buf.Bytes()
}

// pngHeader returns a PNG that declares a w x h grayscale image but carries
// no pixel data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth; colour type, compression, filter and interlace stay 0

	chunk := append([]byte("IHDR"), ihdr...)
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestUploadImage(t *testing.T) {
	testCases := []struct {
		name  string
		w, h  int
		scale float64
	}{
		{"wide", 400, 100, 0.5},
		{"tall", 50, 800, 0.25},
		{"small", 20, 40, 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFactory(sequentialIDs())
			canvas := &fakeCanvas{}
			rec := &syncRecorder{}

			shape, err := f.UploadImage(context.Background(), canvas, bytes.NewReader(pngBytes(t, tc.w, tc.h)), rec.sync)
			if err != nil {
				t.Fatalf("UploadImage() failed: %v", err)
			}

			if shape.ObjectID != "shape-1" || shape.Type != core.KindImage {
				t.Errorf("Unexpected identity: id=%q type=%q", shape.ObjectID, shape.Type)
			}
			if shape.Width != float64(tc.w) || shape.Height != float64(tc.h) {
				t.Errorf("Natural size mismatch: got %vx%v", shape.Width, shape.Height)
			}
			if shape.ScaleX != tc.scale || shape.ScaleY != tc.scale {
				t.Errorf("Scale mismatch: got (%v, %v), want %v", shape.ScaleX, shape.ScaleY, tc.scale)
			}
			if !strings.HasPrefix(shape.Src, "data:image/png;base64,") {
				t.Errorf("Unexpected src prefix: %.40q", shape.Src)
			}
			if len(canvas.objects) != 1 || canvas.objects[0] != shape {
				t.Error("Image not added to canvas")
			}
			if canvas.renders != 1 {
				t.Errorf("Render requests mismatch: got %d, want 1", canvas.renders)
			}
			if len(rec.calls) != 1 || rec.calls[0] != shape {
				t.Errorf("Sync calls mismatch: got %d, want 1", len(rec.calls))
			}
		})
	}
}

func TestUploadImage_Failures(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	testCases := []struct {
		name string
		ctx  context.Context
		data []byte
		want error
	}{
		{"garbage", context.Background(), []byte("definitely not an image"), ErrImageDecode},
		{"empty", context.Background(), nil, ErrImageDecode},
		{"oversize", context.Background(), make([]byte, MaxImageBytes+1), ErrImageTooLarge},
		{"declared dimensions too large", context.Background(), pngHeader(16000, 16000), ErrImageTooLarge},
		{"zero width", context.Background(), pngHeader(0, 10), ErrImageDecode},
		{"cancelled", cancelled, pngBytes(t, 10, 10), context.Canceled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			canvas := &fakeCanvas{}
			rec := &syncRecorder{}

			shape, err := NewFactory(sequentialIDs()).UploadImage(tc.ctx, canvas, bytes.NewReader(tc.data), rec.sync)
			if !errors.Is(err, tc.want) {
				t.Fatalf("UploadImage() error mismatch: got %v, want %v", err, tc.want)
			}
			if shape != nil {
				t.Error("Shape returned on failure")
			}
			if len(canvas.objects) != 0 || canvas.renders != 0 || len(rec.calls) != 0 {
				t.Error("Failed upload touched the canvas or sync")
			}
		})
	}
}

func TestUploadImageAsync(t *testing.T) {
	f := NewFactory(sequentialIDs())
	canvas := &fakeCanvas{}
	rec := &syncRecorder{}

	results := f.UploadImageAsync(context.Background(), canvas, bytes.NewReader(pngBytes(t, 200, 200)), rec.sync)

	res, ok := <-results
	if !ok {
		t.Fatal("Channel closed without a result")
	}
	if res.Err != nil {
		t.Fatalf("Async upload failed: %v", res.Err)
	}
	if res.Shape == nil || res.Shape.ScaleX != 1 {
		t.Errorf("Unexpected shape: %+v", res.Shape)
	}
	if len(rec.calls) != 1 {
		t.Errorf("Sync calls mismatch: got %d, want 1", len(rec.calls))
	}
	if _, ok := <-results; ok {
		t.Error("Channel delivered more than one result")
	}
}

func TestUploadImageAsync_Error(t *testing.T) {
	results := NewFactory(nil).UploadImageAsync(context.Background(), &fakeCanvas{}, strings.NewReader("nope"), nil)

	res := <-results
	if !errors.Is(res.Err, ErrImageDecode) || res.Shape != nil {
		t.Errorf("Unexpected result: %+v", res)
	}
}
