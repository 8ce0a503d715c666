package preprocess

// Decoders beyond PNG, JPEG and GIF, which imaging registers itself.
import (
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)
