package calibration

import "draft-reader/pkg/geometry"

// UHDProfile returns the grid for a 3840x2160 draft screen:
// three rows of five cards.
func UHDProfile() *Profile {
	return &Profile{
		Name:       "Draft 4K",
		Resolution: geometry.SizeInt{Width: 3840, Height: 2160},
		Origin:     geometry.PointInt{X: 572, Y: 385},
		Cell:       geometry.SizeInt{Width: 270, Height: 29},
		Spacing:    geometry.PointInt{X: 393, Y: 536},
		Rows:       3,
		Columns:    5,
	}
}
