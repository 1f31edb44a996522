package canvas

// View is the board's pan/zoom transform. Panning and zooming never touch the
// shape store; they only move the window onto the world.
type View struct {
	OffsetX float64
	OffsetY float64
	Scale   float64
}

// Zoom limits and wheel sensitivity.
const (
	MinScale      = 0.4
	MaxScale      = 1.0
	zoomIntensity = 0.001
)

// NewView returns the identity transform.
func NewView() View {
	return View{Scale: 1}
}

// WorldAt converts a client-space point to world space.
func (v View) WorldAt(clientX, clientY float64) (float64, float64) {
	return (clientX - v.OffsetX) / v.Scale, (clientY - v.OffsetY) / v.Scale
}

// Zoom applies a wheel delta, rescaling about the client-space cursor so the
// world point under the cursor stays put. The scale is clamped to
// [MinScale, MaxScale].
func (v *View) Zoom(deltaY, clientX, clientY float64) {
	newScale := v.Scale - deltaY*zoomIntensity
	if newScale < MinScale {
		newScale = MinScale
	}
	if newScale > MaxScale {
		newScale = MaxScale
	}
	worldX := (clientX - v.OffsetX) / v.Scale
	worldY := (clientY - v.OffsetY) / v.Scale
	v.OffsetX = clientX - worldX*newScale
	v.OffsetY = clientY - worldY*newScale
	v.Scale = newScale
}

// Pan moves the offset so dragging follows the pointer.
func (v *View) Pan(offsetX, offsetY float64) {
	v.OffsetX = offsetX
	v.OffsetY = offsetY
}
