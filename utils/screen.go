package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/kbinani/screenshot"
	"golang.org/x/image/draw"
)

const (
	// Frames are downscaled before upload; 1024px is plenty for the vision
	// model and much faster to send.
	screenMaxDim   = 1024
	screenJPEGQual = 80
)

// CaptureScreenJPEG grabs the primary display, downscales it and encodes it
// as JPEG for the screen judge.
func CaptureScreenJPEG() ([]byte, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active displays")
	}

	img, err := screenshot.CaptureDisplay(0)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen: %w", err)
	}

	return encodeThumbnailJPEG(img, screenMaxDim, screenJPEGQual)
}

func encodeThumbnailJPEG(img image.Image, maxDim, quality int) ([]byte, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxDim || h > maxDim {
		scale := float64(maxDim) / float64(w)
		if h > w {
			scale = float64(maxDim) / float64(h)
		}
		dw := int(float64(w) * scale)
		dh := int(float64(h) * scale)
		dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}
