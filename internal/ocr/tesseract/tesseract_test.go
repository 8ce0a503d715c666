package tesseract

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/nikhilbhutani/labocr/internal/ocr"
)

func requireTesseract(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed")
	}
}

// renderLine draws text with the 7x13 bitmap face and scales it up 4x so
// tesseract sees glyphs of a readable size.
func renderLine(text string) *image.Gray {
	const scale = 4
	small := image.NewGray(image.Rect(0, 0, 7*len(text)+20, 30))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  small,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 20),
	}
	d.DrawString(text)

	b := small.Bounds()
	big := image.NewGray(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	for y := 0; y < big.Bounds().Dy(); y++ {
		for x := 0; x < big.Bounds().Dx(); x++ {
			big.SetGray(x, y, color.Gray{Y: small.GrayAt(x/scale, y/scale).Y})
		}
	}
	return big
}

func TestRecognizeRenderedLine(t *testing.T) {
	requireTesseract(t)

	rec := New(ocr.DefaultConfig())
	text, err := rec.Recognize(context.Background(), renderLine("GLUCOSE 250"))
	require.NoError(t, err)
	assert.Contains(t, strings.ToUpper(text), "GLUCOSE")
	assert.NotEmpty(t, rec.Version())
}

func TestRecognizeEmptyRaster(t *testing.T) {
	_, err := New(ocr.DefaultConfig()).Recognize(context.Background(), nil)
	assert.ErrorIs(t, err, ocr.ErrEmptyRaster)
}

func TestRecognizeCancelled(t *testing.T) {
	requireTesseract(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ocr.DefaultConfig()).Recognize(ctx, renderLine("HB 13.5"))
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
