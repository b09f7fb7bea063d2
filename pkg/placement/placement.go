// Package placement converts device marker positions between the normalized
// coordinates stored with a device and the pixel coordinates of a rendered
// floor plan.
//
// A position is the top-left corner of a square marker expressed as a fraction
// of the distance the marker can travel inside its container, so that (0,0)
// keeps the marker flush with the top-left corner and (1,1) keeps it flush with
// the bottom-right corner regardless of the rendered size.
package placement

import "math"

const (
	MarkerSizeRatio float64 = 0.07
	MinMarkerSize   float64 = 20
	MaxMarkerSize   float64 = 40
)

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Position is a normalized marker position, each axis in [0,1].
type Position struct {
	X float64 `json:"x_percent"`
	Y float64 `json:"y_percent"`
}

// Point is a pixel offset from the top-left corner of the container.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MarkerSize returns the side length of a marker drawn in container.
func MarkerSize(container Size) float64 {
	return clamp(math.Min(container.Width, container.Height)*MarkerSizeRatio, MinMarkerSize, MaxMarkerSize)
}

// Travel returns how far the top-left corner of a marker can move along each axis.
func Travel(container Size) Size {
	m := MarkerSize(container)
	return Size{
		Width:  container.Width - m,
		Height: container.Height - m,
	}
}

func ToPixels(p Position, container Size) Point {
	t := Travel(container)
	return Point{
		X: p.X * t.Width,
		Y: p.Y * t.Height,
	}
}

// ToPercent clamps pt to the travel range of container and normalizes it.
// An axis without any room to travel maps to 0.
func ToPercent(pt Point, container Size) Position {
	t := Travel(container)
	return Position{
		X: normalize(pt.X, t.Width),
		Y: normalize(pt.Y, t.Height),
	}
}

// Reproject applies a drag delta in pixels to p and returns the resulting
// normalized position.
func Reproject(p Position, delta Point, container Size) Position {
	current := ToPixels(p, container)
	return ToPercent(Point{X: current.X + delta.X, Y: current.Y + delta.Y}, container)
}

func Clamp(p Position) Position {
	return Position{
		X: clamp(p.X, 0, 1),
		Y: clamp(p.Y, 0, 1),
	}
}

// AspectBox returns the size of a box that is renderedWidth wide and keeps the
// aspect ratio of natural.
func AspectBox(natural Size, renderedWidth float64) Size {
	if natural.Width <= 0 {
		return Size{Width: renderedWidth}
	}
	return Size{
		Width:  renderedWidth,
		Height: renderedWidth * natural.Height / natural.Width,
	}
}

// Contain scales natural to fit inside box without cropping and centers it.
func Contain(natural Size, box Size) (Point, Size) {
	if natural.Width <= 0 || natural.Height <= 0 {
		return Point{}, Size{}
	}

	scale := math.Min(box.Width/natural.Width, box.Height/natural.Height)
	scaled := Size{
		Width:  natural.Width * scale,
		Height: natural.Height * scale,
	}

	return Point{
		X: (box.Width - scaled.Width) / 2,
		Y: (box.Height - scaled.Height) / 2,
	}, scaled
}

func normalize(v, travel float64) float64 {
	if travel <= 0 {
		return 0
	}
	return clamp(v, 0, travel) / travel
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
