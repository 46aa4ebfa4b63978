package detect

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// preprocessFrame resizes the frame to the model input size and writes a CHW
// RGB float32 tensor normalized to [0, 1] into dst. dst must hold exactly
// 3*height*width values.
func preprocessFrame(frame image.Image, width, height int, dst []float32) error {
	if frame == nil {
		return errors.New("frame is nil")
	}
	bounds := frame.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return errors.Errorf("invalid frame dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}
	if len(dst) != 3*width*height {
		return errors.Errorf("tensor buffer has %d values, need %d", len(dst), 3*width*height)
	}

	resized := resize.Resize(uint(width), uint(height), frame, resize.Bilinear)

	plane := width * height
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			idx := y*width + x
			dst[idx] = float32(r>>8) / 255.0
			dst[plane+idx] = float32(g>>8) / 255.0
			dst[2*plane+idx] = float32(b>>8) / 255.0
		}
	}
	return nil
}
