// Package ocr provides OCR (Optical Character Recognition) for card-name boxes.
package ocr

import (
	"fmt"
	"strings"
	"sync"

	"draft-reader/pkg/geometry"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// Options configures the Tesseract engine.
type Options struct {
	Language       string // Tesseract language, "eng" when empty
	TessdataPrefix string // directory holding traineddata; Tesseract default when empty
}

// Engine provides single-line OCR using Tesseract.
// A gosseract client is not safe for concurrent use, so calls are serialized.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewEngine creates a new OCR engine.
func NewEngine(opts Options) (*Engine, error) {
	client := gosseract.NewClient()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}

	lang := opts.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Card names are a single line in a fixed box
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Version returns the Tesseract library version.
func (e *Engine) Version() string {
	return e.client.Version()
}

// RecognizeLine runs single-line OCR over a whole (already cropped) image.
// The returned text is raw apart from surrounding whitespace.
func (e *Engine) RecognizeLine(img gocv.Mat) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("empty image")
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// RecognizeRegion performs single-line OCR on a region of an image.
// The region is clamped to the image bounds.
func (e *Engine) RecognizeRegion(img gocv.Mat, bounds geometry.RectInt) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("empty image")
	}

	r := bounds.Clamp(img.Cols(), img.Rows())
	if r.Empty() {
		return "", fmt.Errorf("invalid region bounds %v", bounds)
	}

	region := img.Region(r.Image())
	defer region.Close()

	return e.RecognizeLine(region)
}
