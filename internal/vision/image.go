// Package vision implements screenshot decoding, card-name region detection
// and annotated output on top of OpenCV.
package vision

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"draft-reader/internal/reader"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded screenshot held as a BGR Mat and its grayscale copy.
type Image struct {
	Color  gocv.Mat
	Gray   gocv.Mat
	closed bool
}

// Width returns the image width in pixels.
func (i *Image) Width() int { return i.Color.Cols() }

// Height returns the image height in pixels.
func (i *Image) Height() int { return i.Color.Rows() }

// Close releases both Mats. Closing twice is a no-op.
func (i *Image) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	if err := i.Gray.Close(); err != nil {
		i.Color.Close()
		return err
	}
	return i.Color.Close()
}

// Decode loads a screenshot from disk. PNG, JPEG, BMP, TIFF and WebP are
// supported.
func Decode(path string) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	src, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return FromImage(src)
}

// FromImage converts a Go image to the BGR and grayscale Mats used for detection.
func FromImage(src image.Image) (*Image, error) {
	bgr, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	if bgr.Empty() {
		bgr.Close()
		return nil, fmt.Errorf("image has no pixels")
	}

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	return &Image{Color: bgr, Gray: gray}, nil
}

// Decoder adapts Decode to the reader.
type Decoder struct{}

// Decode implements reader.Decoder.
func (Decoder) Decode(path string) (reader.Image, error) {
	img, err := Decode(path)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func asImage(img reader.Image) (*Image, error) {
	v, ok := img.(*Image)
	if !ok || v == nil || v.closed {
		return nil, fmt.Errorf("vision: unsupported or released image %T", img)
	}
	return v, nil
}
