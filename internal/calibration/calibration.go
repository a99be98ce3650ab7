// Package calibration provides fixed-layout screen profiles for draft screenshots.
//
// A profile describes a regular grid of card-name boxes for one screen
// resolution. Profiles are compiled in and registered from init; adding a
// resolution means adding a constructor and registering it below.
package calibration

import (
	"fmt"
	"sort"

	"draft-reader/pkg/geometry"
)

// Region is a rectangle expected to hold a single card name.
// Row and Column are -1 for regions that did not come from a profile grid.
type Region struct {
	Rect   geometry.RectInt `json:"rect"`
	Row    int              `json:"row"`
	Column int              `json:"column"`
}

// Gridded reports whether the region was produced by a calibration profile.
func (r Region) Gridded() bool {
	return r.Row >= 0 && r.Column >= 0
}

// Free returns a region that has no grid coordinates.
func Free(rect geometry.RectInt) Region {
	return Region{Rect: rect, Row: -1, Column: -1}
}

// Profile describes the card-name grid for one screen resolution.
type Profile struct {
	Name       string            `json:"name"`
	Resolution geometry.SizeInt  `json:"resolution"`
	Origin     geometry.PointInt `json:"origin"`  // top-left of cell (0,0)
	Cell       geometry.SizeInt  `json:"cell"`    // size of every name box
	Spacing    geometry.PointInt `json:"spacing"` // distance between cell origins
	Rows       int               `json:"rows"`
	Columns    int               `json:"columns"`
}

// Key returns the registry key, "WxH".
func (p *Profile) Key() string {
	return p.Resolution.String()
}

// Count returns the number of regions in the grid.
func (p *Profile) Count() int {
	return p.Rows * p.Columns
}

// Region returns the name box at (row, column).
func (p *Profile) Region(row, column int) Region {
	origin := p.Origin.Add(geometry.PointInt{
		X: column * p.Spacing.X,
		Y: row * p.Spacing.Y,
	})
	return Region{
		Rect:   geometry.NewRectInt(origin, p.Cell),
		Row:    row,
		Column: column,
	}
}

// Regions returns every name box in row-major order: row 0 left to right,
// then row 1, and so on. Downstream progress and result ordering follow it.
func (p *Profile) Regions() []Region {
	regions := make([]Region, 0, p.Count())
	for row := 0; row < p.Rows; row++ {
		for col := 0; col < p.Columns; col++ {
			regions = append(regions, p.Region(row, col))
		}
	}
	return regions
}

// Validate checks that the profile describes a usable grid.
func (p *Profile) Validate() error {
	if p.Resolution.Width <= 0 || p.Resolution.Height <= 0 {
		return fmt.Errorf("calibration resolution must be positive")
	}
	if p.Cell.Width <= 0 || p.Cell.Height <= 0 {
		return fmt.Errorf("calibration cell size must be positive")
	}
	if p.Rows <= 0 || p.Columns <= 0 {
		return fmt.Errorf("calibration grid must have at least one row and column")
	}
	last := p.Region(p.Rows-1, p.Columns-1).Rect
	if last.Right() > p.Resolution.Width || last.Bottom() > p.Resolution.Height {
		return fmt.Errorf("calibration %s: grid extends past the screen", p.Key())
	}
	return nil
}

// Sized is anything with pixel dimensions, such as a decoded screenshot.
type Sized interface {
	Width() int
	Height() int
}

// Registry of known profiles, keyed by "WxH".
var registry = make(map[string]*Profile)

// Register adds a profile to the registry. It panics on an invalid profile,
// since profiles are compiled-in constants.
func Register(p *Profile) {
	if err := p.Validate(); err != nil {
		panic(fmt.Sprintf("calibration: register %s: %v", p.Key(), err))
	}
	registry[p.Key()] = p
}

// Find returns the profile for an exact resolution, or nil if none is known.
func Find(width, height int) *Profile {
	key := geometry.SizeInt{Width: width, Height: height}.String()
	if p, ok := registry[key]; ok {
		return p
	}
	return nil
}

// FindForImage looks up a profile by the image's pixel dimensions.
func FindForImage(img Sized) *Profile {
	return Find(img.Width(), img.Height())
}

// List returns all registered resolutions, sorted.
func List() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	Register(UHDProfile())
}
