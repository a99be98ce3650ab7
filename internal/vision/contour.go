package vision

import (
	"context"
	"image"
	"math"

	"draft-reader/internal/calibration"
	"draft-reader/internal/extract"
	"draft-reader/pkg/geometry"

	"gocv.io/x/gocv"
)

// Contour filter limits for card-name boxes.
const (
	MaxVertices = 50
	MinWidth    = 100
	MinHeight   = 5
	MaxHeight   = 50

	// Margins trimmed from a box before OCR. The right side holds the mana cost.
	LeftMargin  = 0
	RightMargin = 45

	erodeKernel     = 6
	binaryThreshold = 127
	approxEpsilon   = 0.01
)

func (d *Detector) detectContours(ctx context.Context, img *Image, progress func(float64)) ([]extract.Extraction, error) {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: erodeKernel, Y: erodeKernel})
	defer kernel.Close()

	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(img.Gray, &eroded, kernel)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(eroded, &binary, binaryThreshold, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(binary, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	total := contours.Size()
	var out []extract.Extraction

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		box, ok := nameBox(contours.At(i))
		progress(float64(i+1) / float64(total))
		if !ok {
			continue
		}

		var texts []string
		if text := d.readText(img.Gray, ocrBounds(box)); text != "" {
			texts = append(texts, text)
		}
		out = append(out, extract.Extraction{Region: calibration.Free(box), Texts: texts})
	}

	if total == 0 {
		progress(1)
	}
	return out, nil
}

// nameBox reports whether contour outlines a card-name box and returns its bounds.
func nameBox(contour gocv.PointVector) (geometry.RectInt, bool) {
	approx := gocv.ApproxPolyDP(contour, approxEpsilon*gocv.ArcLength(contour, true), true)
	vertices := approx.Size()
	approx.Close()

	rect := gocv.MinAreaRect(contour)
	box := geometry.FromImageRect(rect.BoundingRect)
	return box, acceptBox(vertices, float64(rect.Angle), box)
}

// acceptBox applies the shape filter: few vertices, axis aligned, and wide
// and short like a single line of text.
func acceptBox(vertices int, angle float64, box geometry.RectInt) bool {
	if vertices >= MaxVertices {
		return false
	}
	if math.Mod(angle, 90) != 0 {
		return false
	}
	if box.Width < MinWidth {
		return false
	}
	if box.Height < MinHeight || box.Height > MaxHeight {
		return false
	}
	return box.Height <= box.Width
}

// ocrBounds trims the margins that never hold name text.
func ocrBounds(box geometry.RectInt) geometry.RectInt {
	return geometry.RectInt{
		X:      box.X + LeftMargin,
		Y:      box.Y,
		Width:  box.Width - LeftMargin - RightMargin,
		Height: box.Height,
	}
}
