package vision

import (
	"context"
	"log"

	"draft-reader/internal/calibration"
	"draft-reader/internal/extract"
	"draft-reader/internal/reader"
	"draft-reader/internal/textclean"
	"draft-reader/pkg/geometry"

	"gocv.io/x/gocv"
)

// RegionRecognizer reads a single line of text from a rectangle of an image.
// *ocr.Engine satisfies it.
type RegionRecognizer interface {
	RecognizeRegion(img gocv.Mat, bounds geometry.RectInt) (string, error)
}

// Detector finds card-name boxes in a screenshot and reads their text.
// Calibrated screenshots use the fixed grid of their profile; anything else
// falls back to contour detection.
type Detector struct {
	ocr RegionRecognizer

	// Debug logs every OCR read.
	Debug bool
}

// NewDetector creates a detector that reads text with ocr.
func NewDetector(ocr RegionRecognizer) *Detector {
	return &Detector{ocr: ocr}
}

// Detect implements reader.Detector.
func (d *Detector) Detect(ctx context.Context, img reader.Image, profile *calibration.Profile, progress func(float64)) ([]extract.Extraction, error) {
	src, err := asImage(img)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return d.detectCalibrated(ctx, src, profile, progress)
	}
	return d.detectContours(ctx, src, progress)
}

// readText runs OCR over bounds of mat and cleans the result. Bounds that
// fall outside the image read as no text, as do logged OCR failures.
func (d *Detector) readText(mat gocv.Mat, bounds geometry.RectInt) string {
	r := bounds.Clamp(mat.Cols(), mat.Rows())
	if r.Empty() {
		return ""
	}

	raw, err := d.ocr.RecognizeRegion(mat, r)
	if err != nil {
		log.Printf("Vision: OCR failed for %v: %v", r, err)
		return ""
	}

	text := textclean.Clean(raw)
	if d.Debug {
		log.Printf("Vision: %v raw=%q clean=%q", r, raw, text)
	}
	return text
}
