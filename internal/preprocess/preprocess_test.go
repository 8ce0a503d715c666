package preprocess

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func renderReport(t *testing.T, lines ...string) *image.RGBA {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 240, 20+20*len(lines)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13}
	for i, line := range lines {
		d.Dot = fixed.P(10, 25+20*i)
		d.DrawString(line)
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocess_BinaryUpscaled(t *testing.T) {
	src := renderReport(t, "Hemoglobin 13.5 g/dL 13.0-17.0", "HBsAg POSITIVE")
	out, err := New().Preprocess(context.Background(), encodePNG(t, src))
	require.NoError(t, err)

	assert.Equal(t, src.Bounds().Dx()*2, out.Bounds().Dx())
	assert.Equal(t, src.Bounds().Dy()*2, out.Bounds().Dy())

	var black int
	for _, v := range out.Pix {
		require.True(t, v == 0 || v == 255, "non-binary pixel %d", v)
		if v == 0 {
			black++
		}
	}
	assert.Greater(t, black, 0, "text should survive thresholding")
	assert.Less(t, black, len(out.Pix)/2, "background should stay white")
	assert.Equal(t, uint8(255), out.GrayAt(0, 0).Y)
}

func TestPreprocess_Deterministic(t *testing.T) {
	data := encodePNG(t, renderReport(t, "Glucose: 250"))
	p := New()

	a, err := p.Preprocess(context.Background(), data)
	require.NoError(t, err)
	b, err := p.Preprocess(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a.Pix, b.Pix))
}

func TestPreprocess_JPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, renderReport(t, "ESR 12 mm/hr 0-20"), &jpeg.Options{Quality: 90}))

	out, err := New(WithScale(3)).Preprocess(context.Background(), buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 240*3, out.Bounds().Dx())
}

func TestPreprocess_DecodeErrors(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("this is not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New().Preprocess(context.Background(), data)
			require.Error(t, err)
			var decErr *ImageDecodeError
			assert.True(t, errors.As(err, &decErr))
		})
	}

	_, err := New().Preprocess(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestPreprocess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Preprocess(ctx, encodePNG(t, renderReport(t, "TSH 2.1")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptions(t *testing.T) {
	p := New(WithScale(1), WithBlockSize(8), WithOffset(5), WithDenoise(false))
	assert.Equal(t, 2.0, p.scale)
	assert.Equal(t, 9, p.blockSize)
	assert.Equal(t, 5.0, p.offset)
	assert.False(t, p.denoise)

	p = New(WithBlockSize(1))
	assert.Equal(t, defaultBlockSize, p.blockSize)
}

func TestGaussianSigma(t *testing.T) {
	assert.InDelta(t, 2.0, gaussianSigma(11), 1e-9)
	assert.InDelta(t, 0.8, gaussianSigma(3), 1e-9)
}

func TestMajorityFilter_RemovesSpeckle(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 5))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(2, 2, color.Gray{Y: 0})

	out := majorityFilter(img)
	assert.Equal(t, uint8(255), out.GrayAt(2, 2).Y)

	for y := 0; y < 5; y++ {
		for x := 0; x < 3; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	out = majorityFilter(img)
	assert.Equal(t, uint8(0), out.GrayAt(1, 2).Y)
	assert.Equal(t, uint8(255), out.GrayAt(4, 2).Y)
}
