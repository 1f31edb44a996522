package shape

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Rect is an axis-aligned bounding box in world coordinates.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Intersects reports whether the two boxes overlap. The test is strict, so
// boxes that merely touch along an edge do not intersect.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && r.X+r.Width > o.X &&
		r.Y < o.Y+o.Height && r.Y+r.Height > o.Y
}

// Contains reports whether the point lies inside the box, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Union returns the smallest box covering both r and o.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.Width, o.X+o.Width)
	maxY := math.Max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// strokeBuffer widens point-envelope bounds beyond the half stroke width so a
// thin stroke is still clickable at its ends.
const strokeBuffer = 2

// Line spacing and glyph metrics for text bounds. Text is drawn at a font
// size of StrokeWidth*10 with 1.2 line spacing; the glyph advance is an
// approximation since bounds must be computable without a live surface.
const (
	textFontScale    = 10
	textLineSpacing  = 1.2
	textGlyphAdvance = 0.6
	textAscentFactor = 0.8
)

// Bounds returns the shape's axis-aligned bounding box, or nil for a shape
// with no points. A finalized shape always has geometry; the nil case guards
// against records that never should have been produced.
func (s Shape) Bounds() *Rect {
	switch s.Kind {
	case KindRectangle, KindImage:
		return &Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
	case KindCircle:
		return &Rect{
			X:      s.X - s.RadiusX,
			Y:      s.Y - s.RadiusY,
			Width:  s.RadiusX * 2,
			Height: s.RadiusY * 2,
		}
	case KindLine, KindArrow:
		minX := math.Min(s.X1, s.X2)
		minY := math.Min(s.Y1, s.Y2)
		return &Rect{
			X:      minX,
			Y:      minY,
			Width:  math.Max(s.X1, s.X2) - minX,
			Height: math.Max(s.Y1, s.Y2) - minY,
		}
	case KindTriangle:
		minX := math.Min(s.X1, math.Min(s.X2, s.X3))
		minY := math.Min(s.Y1, math.Min(s.Y2, s.Y3))
		maxX := math.Max(s.X1, math.Max(s.X2, s.X3))
		maxY := math.Max(s.Y1, math.Max(s.Y2, s.Y3))
		return &Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	case KindFreehand:
		return pointEnvelope(s.Points, s.StrokeWidth/2+strokeBuffer)
	case KindEraser:
		return pointEnvelope(s.Points, s.Size/2+strokeBuffer)
	case KindText:
		fontSize := s.StrokeWidth * textFontScale
		lines := strings.Split(s.Content, "\n")
		var maxWidth float64
		for _, line := range lines {
			w := float64(utf8.RuneCountInString(line)) * fontSize * textGlyphAdvance
			maxWidth = math.Max(maxWidth, w)
		}
		return &Rect{
			X:      s.X,
			Y:      s.Y - fontSize*textAscentFactor,
			Width:  maxWidth,
			Height: float64(len(lines)) * fontSize * textLineSpacing,
		}
	default:
		return nil
	}
}

func pointEnvelope(points []Point, padding float64) *Rect {
	if len(points) == 0 {
		return nil
	}
	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return &Rect{
		X:      minX - padding,
		Y:      minY - padding,
		Width:  maxX - minX + padding*2,
		Height: maxY - minY + padding*2,
	}
}
