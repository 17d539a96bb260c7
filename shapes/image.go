package shapes

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"myfigma-server/core"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

const (
	// ImageBoundingBox is the side of the square uploaded images are fitted into.
	ImageBoundingBox = 200.0
	MaxImageBytes    = 10 << 20
	// MaxImagePixels caps the declared width*height, checked before any
	// pixel buffer is allocated.
	MaxImagePixels = 40_000_000
)

var (
	ErrImageDecode   = errors.New("image could not be decoded")
	ErrImageTooLarge = errors.New("image exceeds upload limit")
)

// ImageResult is the outcome of an asynchronous upload.
type ImageResult struct {
	Shape *core.Shape
	Err   error
}

// DecodeImage reads an uploaded file and builds an image shape fitted into
// the bounding box. The canvas is not touched.
func (f *Factory) DecodeImage(ctx context.Context, file io.Reader) (*core.Shape, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, MaxImageBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrImageDecode)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrImageDecode)
	}

	s := f.newShape(core.KindImage, 0, 0)
	s.Width, s.Height = float64(bounds.Dx()), float64(bounds.Dy())
	scale := math.Min(ImageBoundingBox/s.Width, ImageBoundingBox/s.Height)
	s.ScaleX, s.ScaleY = scale, scale
	s.Src = "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
	return s, nil
}

// PlaceImage adds a decoded image to the canvas, requests a render and
// syncs it.
func PlaceImage(canvas core.Canvas, shape *core.Shape, sync core.SyncFunc) {
	canvas.Add(shape)
	canvas.RequestRenderAll()

	logrus.WithFields(logrus.Fields{
		"object_id": shape.ObjectID,
		"width":     shape.Width,
		"height":    shape.Height,
	}).Debug("Image placed")

	if sync != nil {
		sync(shape)
	}
}

// UploadImage decodes file and places it on canvas. On error the canvas and
// sync are left untouched.
func (f *Factory) UploadImage(ctx context.Context, canvas core.Canvas, file io.Reader, sync core.SyncFunc) (*core.Shape, error) {
	s, err := f.DecodeImage(ctx, file)
	if err != nil {
		return nil, err
	}
	PlaceImage(canvas, s, sync)
	return s, nil
}

// UploadImageAsync runs UploadImage in the background. The channel yields
// exactly one result and is then closed.
func (f *Factory) UploadImageAsync(ctx context.Context, canvas core.Canvas, file io.Reader, sync core.SyncFunc) <-chan ImageResult {
	out := make(chan ImageResult, 1)
	go func() {
		defer close(out)
		s, err := f.UploadImage(ctx, canvas, file, sync)
		out <- ImageResult{Shape: s, Err: err}
	}()
	return out
}
