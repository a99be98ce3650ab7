package vision

import (
	"fmt"
	"image"
	"image/color"

	"draft-reader/internal/reader"

	"gocv.io/x/gocv"
)

var (
	matchedColor   = color.RGBA{0, 255, 0, 255}
	unmatchedColor = color.RGBA{255, 0, 0, 255}
	labelColor     = color.RGBA{255, 255, 255, 255}
)

// Renderer writes annotated screenshots. The output format follows the
// file extension.
type Renderer struct{}

// Render implements reader.Renderer.
func (Renderer) Render(img reader.Image, results []reader.MatchResult, path string) error {
	src, err := asImage(img)
	if err != nil {
		return err
	}

	out := src.Color.Clone()
	defer out.Close()

	for _, m := range results {
		rect := m.Region.Rect.Image()
		if !m.Matched() {
			gocv.Rectangle(&out, rect, unmatchedColor, 2)
			continue
		}
		gocv.Rectangle(&out, rect, matchedColor, 2)
		gocv.PutText(&out, m.Card.Name, image.Point{X: rect.Min.X, Y: rect.Min.Y},
			gocv.FontHersheySimplex, 0.6, labelColor, 2)
	}

	if !gocv.IMWrite(path, out) {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}
