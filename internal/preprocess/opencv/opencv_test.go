//go:build opencv

package opencv

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/labocr/internal/preprocess"
)

func TestPreprocess(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(10, 10, 40, 14), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := New().Preprocess(context.Background(), buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 128, out.Bounds().Dx())
	require.Equal(t, 64, out.Bounds().Dy())
}

func TestPreprocess_DecodeError(t *testing.T) {
	_, err := New().Preprocess(context.Background(), []byte("nope"))
	var decErr *preprocess.ImageDecodeError
	require.True(t, errors.As(err, &decErr))
}
