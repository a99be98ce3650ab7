package vision

import (
	"context"

	"draft-reader/internal/calibration"
	"draft-reader/internal/extract"

	"gocv.io/x/gocv"
)

// PassThreshold is the brightness cut of the second enhancement pass.
const PassThreshold = 100

// enhancementPasses returns the whole-image variants every calibrated region
// is read from, in order: the grayscale image itself and a binary threshold of
// it. Only the second Mat is owned by the caller.
func enhancementPasses(gray gocv.Mat) (passes []gocv.Mat, release func()) {
	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, PassThreshold, 255, gocv.ThresholdBinary)
	return []gocv.Mat{gray, binary}, func() { binary.Close() }
}

func (d *Detector) detectCalibrated(ctx context.Context, img *Image, profile *calibration.Profile, progress func(float64)) ([]extract.Extraction, error) {
	passes, release := enhancementPasses(img.Gray)
	defer release()

	regions := profile.Regions()
	out := make([]extract.Extraction, 0, len(regions))

	for i, region := range regions {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		var texts []string
		for _, pass := range passes {
			if text := d.readText(pass, region.Rect); text != "" {
				texts = append(texts, text)
			}
		}
		out = append(out, extract.Extraction{Region: region, Texts: texts})

		progress(float64(i+1) / float64(len(regions)))
	}

	return out, nil
}
