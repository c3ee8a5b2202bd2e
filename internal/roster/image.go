package roster

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// maxImageDim bounds the longer edge of images sent to the encoder.
// Roster photos are portraits; anything bigger only slows the upload.
const maxImageDim = 1024

// prepareImage validates that data decodes as an image and downscales it
// to maxImageDim when needed, re-encoding as JPEG. Images already within
// bounds are returned unchanged.
func prepareImage(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxImageDim && height <= maxImageDim {
		return data, nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxImageDim
		newHeight = height * maxImageDim / width
	} else {
		newHeight = maxImageDim
		newWidth = width * maxImageDim / height
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
