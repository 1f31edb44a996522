package canvas

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"
	"sync"

	"github.com/fogleman/gg"

	"sketchroom/internal/shape"
)

const (
	highlightColor = "#00aaff"
	backgroundHex  = "#ffffff"
	// arrow head geometry, in world units
	arrowHeadMin    = 10
	arrowHeadFactor = 5
	arrowHeadAngle  = math.Pi / 7
	// the built-in bitmap face gg ships is 13px; text scales off it
	baseFontPx = 13
)

// Frame paints one frame if a repaint was requested since the last call, and
// reports whether it painted. Input handlers never paint; they only set the
// request flag, so any burst of pointer moves inside one display interval
// coalesces into a single repaint here.
func (e *Engine) Frame() bool {
	if e.inert {
		return false
	}
	e.mu.Lock()
	if !e.renderRequested {
		e.mu.Unlock()
		return false
	}
	e.renderRequested = false
	frame := e.renderLocked()
	e.mu.Unlock()
	e.surface.Present(frame)
	return true
}

// RequestRender schedules a repaint on the next frame.
func (e *Engine) RequestRender() {
	if e.inert {
		return
	}
	e.mu.Lock()
	e.renderRequested = true
	e.mu.Unlock()
}

func (e *Engine) renderLocked() image.Image {
	w, h := e.surface.Size()
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}
	dc := gg.NewContext(w, h)
	dc.SetHexColor(backgroundHex)
	dc.Clear()

	dc.Translate(e.view.OffsetX, e.view.OffsetY)
	dc.Scale(e.view.Scale, e.view.Scale)

	// 1. Persisted shapes in store order: insertion order is z-order.
	for _, s := range e.store.Shapes() {
		e.drawShape(dc, s)
	}

	// 2. Selection highlight outlines.
	for _, id := range e.selected {
		s, ok := e.store.Get(id)
		if !ok {
			continue
		}
		if b := s.Bounds(); b != nil {
			dc.Push()
			dc.SetHexColor(highlightColor)
			dc.SetLineWidth(2 / e.view.Scale)
			dc.SetDash(5, 5)
			dc.DrawRectangle(b.X, b.Y, b.Width, b.Height)
			dc.Stroke()
			dc.Pop()
		}
	}

	// 3. Marquee rectangle while active.
	if e.state == modeMarquee {
		dc.Push()
		dc.SetHexColor(highlightColor)
		dc.SetLineWidth(1 / e.view.Scale)
		dc.SetDash(2, 2)
		x := minf(e.marqueeStartX, e.marqueeCurrentX)
		y := minf(e.marqueeStartY, e.marqueeCurrentY)
		dc.DrawRectangle(x, y, abs(e.marqueeCurrentX-e.marqueeStartX), abs(e.marqueeCurrentY-e.marqueeStartY))
		dc.Stroke()
		dc.Pop()
	}

	// 4. Interaction preview for the current state.
	e.drawPreviewLocked(dc)

	return dc.Image()
}

func (e *Engine) drawPreviewLocked(dc *gg.Context) {
	switch e.state {
	case modeDrawing:
		dc.Push()
		setStrokeStyle(dc, e.strokeColor, e.strokeWidth)
		switch e.tool {
		case ToolRect:
			dc.DrawRectangle(e.startX, e.startY, e.currentX-e.startX, e.currentY-e.startY)
		case ToolCircle:
			dc.DrawEllipse((e.startX+e.currentX)/2, (e.startY+e.currentY)/2,
				abs(e.currentX-e.startX)/2, abs(e.currentY-e.startY)/2)
		case ToolLine, ToolArrow:
			dc.MoveTo(e.startX, e.startY)
			dc.LineTo(e.currentX, e.currentY)
		case ToolTriangle:
			tx, ty := thirdTrianglePoint(e.startX, e.startY, e.currentX, e.currentY)
			dc.MoveTo(e.startX, e.startY)
			dc.LineTo(e.currentX, e.currentY)
			dc.LineTo(tx, ty)
			dc.ClosePath()
		}
		dc.Stroke()
		dc.Pop()
	case modeFreehand:
		if len(e.freehandPoints) > 0 {
			dc.Push()
			setStrokeStyle(dc, e.strokeColor, e.strokeWidth)
			strokePolyline(dc, e.freehandPoints)
			dc.Pop()
		}
	case modeErasing:
		if len(e.eraserPoints) > 0 {
			dc.Push()
			setStrokeStyle(dc, backgroundHex, e.strokeWidth*eraserSizeFactor)
			strokePolyline(dc, e.eraserPoints)
			dc.Pop()
		}
	}

	if e.text != nil {
		display := e.text.buf.String()
		if e.text.showCursor {
			display += "|"
		}
		drawText(dc, e.text.x, e.text.y, display, e.strokeColor, e.strokeWidth)
	}
}

// drawShape paints one finalized shape. The switch is exhaustive over the
// shape union so a new variant cannot silently render as nothing.
func (e *Engine) drawShape(dc *gg.Context, s shape.Shape) {
	dc.Push()
	defer dc.Pop()
	switch s.Kind {
	case shape.KindRectangle:
		setStrokeStyle(dc, s.StrokeColor, s.StrokeWidth)
		dc.DrawRectangle(s.X, s.Y, s.Width, s.Height)
		dc.Stroke()
	case shape.KindCircle:
		setStrokeStyle(dc, s.StrokeColor, s.StrokeWidth)
		dc.DrawEllipse(s.X, s.Y, s.RadiusX, s.RadiusY)
		dc.Stroke()
	case shape.KindLine:
		setStrokeStyle(dc, s.StrokeColor, s.StrokeWidth)
		dc.DrawLine(s.X1, s.Y1, s.X2, s.Y2)
		dc.Stroke()
	case shape.KindTriangle:
		setStrokeStyle(dc, s.StrokeColor, s.StrokeWidth)
		dc.MoveTo(s.X1, s.Y1)
		dc.LineTo(s.X2, s.Y2)
		dc.LineTo(s.X3, s.Y3)
		dc.ClosePath()
		dc.Stroke()
	case shape.KindFreehand:
		setStrokeStyle(dc, s.StrokeColor, s.StrokeWidth)
		strokePolyline(dc, s.Points)
	case shape.KindText:
		drawText(dc, s.X, s.Y, s.Content, s.StrokeColor, s.StrokeWidth)
	case shape.KindEraser:
		// The board is a single opaque layer, so erasing is painting in the
		// background color.
		setStrokeStyle(dc, backgroundHex, s.Size)
		strokePolyline(dc, s.Points)
	case shape.KindArrow:
		setStrokeStyle(dc, s.StrokeColor, s.StrokeWidth)
		dc.DrawLine(s.X1, s.Y1, s.X2, s.Y2)
		dc.Stroke()
		angle := math.Atan2(s.Y2-s.Y1, s.X2-s.X1)
		head := math.Max(arrowHeadMin, s.StrokeWidth*arrowHeadFactor)
		dc.MoveTo(s.X2, s.Y2)
		dc.LineTo(s.X2-head*math.Cos(angle-arrowHeadAngle), s.Y2-head*math.Sin(angle-arrowHeadAngle))
		dc.LineTo(s.X2-head*math.Cos(angle+arrowHeadAngle), s.Y2-head*math.Sin(angle+arrowHeadAngle))
		dc.ClosePath()
		dc.Fill()
	case shape.KindImage:
		if img := e.images.get(s.Src); img != nil {
			iw := float64(img.Bounds().Dx())
			ih := float64(img.Bounds().Dy())
			if iw > 0 && ih > 0 {
				dc.Translate(s.X, s.Y)
				dc.Scale(s.Width/iw, s.Height/ih)
				dc.DrawImage(img, 0, 0)
			}
		}
	}
}

func setStrokeStyle(dc *gg.Context, colorStr string, width float64) {
	dc.SetHexColor(colorToHex(colorStr))
	dc.SetLineWidth(width)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
}

func strokePolyline(dc *gg.Context, points []shape.Point) {
	if len(points) == 0 {
		return
	}
	dc.MoveTo(points[0].X, points[0].Y)
	for _, p := range points[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()
}

// drawText renders multiline content at a font size of strokeWidth*10,
// scaling the built-in face.
func drawText(dc *gg.Context, x, y float64, content, colorStr string, strokeWidth float64) {
	fontSize := strokeWidth * 10
	if fontSize <= 0 {
		fontSize = baseFontPx
	}
	k := fontSize / baseFontPx
	dc.Push()
	dc.SetHexColor(colorToHex(colorStr))
	dc.Translate(x, y)
	dc.Scale(k, k)
	for i, line := range strings.Split(content, "\n") {
		dc.DrawString(line, 0, float64(i)*baseFontPx*1.2)
	}
	dc.Pop()
}

// colorToHex maps the palette names clients put on the wire to hex; hex
// strings pass through.
func colorToHex(s string) string {
	if strings.HasPrefix(s, "#") {
		return s
	}
	switch strings.ToLower(s) {
	case "red":
		return "#ff0000"
	case "green":
		return "#00aa00"
	case "blue":
		return "#0000ff"
	case "yellow":
		return "#e8b500"
	case "orange":
		return "#ff7700"
	case "purple":
		return "#8800cc"
	case "white":
		return "#ffffff"
	default:
		return "#000000"
	}
}

// imageCache decodes and caches raster payloads of image shapes. Only data
// URLs are decoded; anything else renders as empty until the payload arrives
// inline.
type imageCache struct {
	mu sync.Mutex
	m  map[string]image.Image
}

func newImageCache() *imageCache {
	return &imageCache{m: make(map[string]image.Image)}
}

func (c *imageCache) get(src string) image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.m[src]; ok {
		return img
	}
	img := decodeDataURL(src)
	c.m[src] = img
	return img
}

func decodeDataURL(src string) image.Image {
	const marker = "base64,"
	i := strings.Index(src, marker)
	if !strings.HasPrefix(src, "data:image") || i < 0 {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(src[i+len(marker):])
	if err != nil {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	return img
}
