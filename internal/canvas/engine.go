// Package canvas is the client-side drawing engine: an ordered shape store,
// a pan/zoom view, and the pointer-driven interaction state machine that
// turns input into immutable shape records.
package canvas

import (
	"image"
	"sync"

	"sketchroom/internal/shape"
)

// Tool is the user-selected drawing mode. It is set independently of the
// interaction state: picking a tool arms the next pointer gesture.
type Tool string

const (
	ToolNone     Tool = ""
	ToolRect     Tool = "rect"
	ToolCircle   Tool = "circle"
	ToolLine     Tool = "line"
	ToolTriangle Tool = "triangle"
	ToolFreehand Tool = "freehand"
	ToolText     Tool = "text"
	ToolEraser   Tool = "eraser"
	ToolArrow    Tool = "arrow"
	ToolSelect   Tool = "select"
)

// Button identifies the pointer button of a down/up event.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
)

// Modifiers carries the modifier keys held during a pointer event. Multi is
// the ctrl/cmd selection modifier.
type Modifiers struct {
	Multi bool
}

// mode is the active interaction. Exactly one is in effect at a time; the
// text overlay session is tracked separately because it outlives gestures.
type mode int

const (
	modeIdle mode = iota
	modeDrawing
	modeFreehand
	modeErasing
	modePanning
	modeMarquee
)

// Surface is the display the engine paints to. A nil Surface yields an inert
// engine whose operations are no-ops returning zero values; callers treat a
// missing surface as a dead session, not an error.
type Surface interface {
	Size() (width, height int)
	Present(frame image.Image)
}

// SelectedShape describes one member of the selection set.
type SelectedShape struct {
	Shape  shape.Shape
	Index  int
	Bounds shape.Rect
}

// Engine owns all client-local draw state for one board session. All
// mutation happens under one mutex: pointer events arrive from the UI thread
// and remote shapes from the transport's read loop.
type Engine struct {
	// OnShape is called with each locally finalized shape, after it has been
	// applied to the store. Assign before wiring input. The send is
	// fire-and-forget: the local copy stays authoritative whatever happens
	// to delivery.
	OnShape func(shape.Shape)

	surface Surface
	inert   bool

	mu    sync.Mutex
	store *Store
	view  View

	tool        Tool
	strokeColor string
	strokeWidth float64

	state              mode
	startX, startY     float64
	currentX, currentY float64
	panStartX          float64
	panStartY          float64
	freehandPoints     []shape.Point
	eraserPoints       []shape.Point

	selected []string

	marqueeStartX, marqueeStartY     float64
	marqueeCurrentX, marqueeCurrentY float64

	text *textSession

	renderRequested bool
	images          *imageCache
	closed          bool
}

// NewEngine creates an engine painting to the given surface. Passing a nil
// surface returns an inert engine.
func NewEngine(surface Surface) *Engine {
	e := &Engine{
		surface:     surface,
		inert:       surface == nil,
		store:       NewStore(),
		view:        NewView(),
		strokeColor: "black",
		strokeWidth: 2,
		images:      newImageCache(),
	}
	return e
}

// SetTool arms the given tool for the next gesture.
func (e *Engine) SetTool(t Tool) {
	if e.inert {
		return
	}
	e.mu.Lock()
	e.tool = t
	e.mu.Unlock()
}

// Tool returns the armed tool.
func (e *Engine) Tool() Tool {
	if e.inert {
		return ToolNone
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tool
}

// SetStroke sets the color and width applied to newly drawn shapes.
func (e *Engine) SetStroke(color string, width float64) {
	if e.inert {
		return
	}
	e.mu.Lock()
	e.strokeColor = color
	e.strokeWidth = width
	e.mu.Unlock()
}

// View returns the current pan/zoom transform.
func (e *Engine) View() View {
	if e.inert {
		return NewView()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// IsEmpty reports whether the board has no shapes.
func (e *Engine) IsEmpty() bool {
	if e.inert {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Len() == 0
}

// Shapes returns a z-ordered copy of the store.
func (e *Engine) Shapes() []shape.Shape {
	if e.inert {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Shapes()
}

// Selection returns the selected ids in selection order.
func (e *Engine) Selection() []string {
	if e.inert {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.selected))
	copy(out, e.selected)
	return out
}

// SelectedInfo returns the shape, z-index and bounds of each selected shape.
// Selected ids whose shape has since been deleted are skipped.
func (e *Engine) SelectedInfo() []SelectedShape {
	if e.inert {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var infos []SelectedShape
	for _, id := range e.selected {
		s, ok := e.store.Get(id)
		if !ok {
			continue
		}
		b := s.Bounds()
		if b == nil {
			continue
		}
		infos = append(infos, SelectedShape{Shape: s, Index: e.store.IndexOf(id), Bounds: *b})
	}
	return infos
}

// ApplyRemote inserts a shape authored elsewhere (live delivery or replay)
// and schedules a repaint. Redelivered ids are ignored.
func (e *Engine) ApplyRemote(s shape.Shape) {
	if e.inert {
		return
	}
	e.mu.Lock()
	if e.store.Add(s) {
		e.renderRequested = true
	}
	e.mu.Unlock()
}

// DeleteShape removes a shape from the store and, in the same step, from the
// selection set. The deletion is local: the wire protocol has no per-shape
// delete, only room-level clear.
func (e *Engine) DeleteShape(id string) bool {
	if e.inert {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.store.Delete(id) {
		return false
	}
	e.selected = removeID(e.selected, id)
	e.renderRequested = true
	return true
}

// PointerDown begins a gesture at the client-space point.
func (e *Engine) PointerDown(clientX, clientY float64, btn Button, mods Modifiers) {
	if e.inert {
		return
	}
	e.mu.Lock()
	// An open text session has priority: pressing anywhere while the text
	// tool is armed commits it and consumes the event.
	if e.text != nil && e.tool == ToolText {
		emitted := e.finalizeTextLocked()
		e.mu.Unlock()
		e.emit(emitted)
		return
	}

	worldX, worldY := e.view.WorldAt(clientX, clientY)

	if btn == ButtonSecondary {
		e.state = modePanning
		e.panStartX = clientX - e.view.OffsetX
		e.panStartY = clientY - e.view.OffsetY
		e.selected = nil
		e.renderRequested = true
		e.mu.Unlock()
		return
	}

	switch e.tool {
	case ToolSelect:
		e.selectionStartLocked(worldX, worldY, mods.Multi)
	case ToolFreehand:
		e.selected = nil
		e.state = modeFreehand
		e.freehandPoints = []shape.Point{{X: worldX, Y: worldY}}
		e.renderRequested = true
	case ToolEraser:
		e.selected = nil
		e.state = modeErasing
		e.eraserPoints = []shape.Point{{X: worldX, Y: worldY}}
		e.renderRequested = true
	case ToolText:
		// Text starts on double-click, not press.
	case ToolRect, ToolCircle, ToolLine, ToolTriangle, ToolArrow:
		e.selected = nil
		e.state = modeDrawing
		e.startX, e.startY = worldX, worldY
		e.currentX, e.currentY = worldX, worldY
		e.renderRequested = true
	case ToolNone:
		e.selected = nil
		e.renderRequested = true
	}
	e.mu.Unlock()
}

func (e *Engine) selectionStartLocked(worldX, worldY float64, multi bool) {
	hit := e.store.HitTest(worldX, worldY)
	if hit != "" {
		if multi {
			if containsID(e.selected, hit) {
				e.selected = removeID(e.selected, hit)
			} else {
				e.selected = append(e.selected, hit)
			}
		} else {
			e.selected = []string{hit}
		}
		e.renderRequested = true
		return
	}
	e.state = modeMarquee
	e.marqueeStartX, e.marqueeStartY = worldX, worldY
	e.marqueeCurrentX, e.marqueeCurrentY = worldX, worldY
	if !multi {
		e.selected = nil
	}
	e.renderRequested = true
}

// PointerMove advances the active gesture. Exactly one of the point buffer,
// shape preview, pan offset or marquee corner is updated per move.
func (e *Engine) PointerMove(clientX, clientY float64) {
	if e.inert {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	worldX, worldY := e.view.WorldAt(clientX, clientY)
	switch e.state {
	case modeErasing:
		e.eraserPoints = append(e.eraserPoints, shape.Point{X: worldX, Y: worldY})
	case modeFreehand:
		e.freehandPoints = append(e.freehandPoints, shape.Point{X: worldX, Y: worldY})
	case modeDrawing:
		e.currentX, e.currentY = worldX, worldY
	case modePanning:
		e.view.Pan(clientX-e.panStartX, clientY-e.panStartY)
	case modeMarquee:
		e.marqueeCurrentX, e.marqueeCurrentY = worldX, worldY
	default:
		return
	}
	e.renderRequested = true
}

// PointerUp finalizes the active gesture into an immutable shape (or a
// selection), returning the engine to idle.
func (e *Engine) PointerUp(clientX, clientY float64, btn Button, mods Modifiers) {
	if e.inert {
		return
	}
	e.mu.Lock()
	if btn == ButtonSecondary && e.state == modePanning {
		e.state = modeIdle
		e.mu.Unlock()
		return
	}
	worldX, worldY := e.view.WorldAt(clientX, clientY)

	var emitted *shape.Shape
	switch {
	case e.state == modeFreehand:
		emitted = e.finalizeFreehandLocked()
	case e.state == modeErasing:
		emitted = e.finalizeEraserLocked()
	case e.state == modeDrawing:
		emitted = e.finalizeDrawingLocked(worldX, worldY)
	case e.state == modeMarquee:
		e.endMarqueeLocked(worldX, worldY, mods.Multi)
	}
	e.mu.Unlock()
	e.emit(emitted)
}

func (e *Engine) finalizeFreehandLocked() *shape.Shape {
	e.state = modeIdle
	points := e.freehandPoints
	e.freehandPoints = nil
	e.renderRequested = true
	if len(points) == 0 {
		return nil
	}
	s := shape.Shape{
		ID:          shape.NewID(),
		Kind:        shape.KindFreehand,
		Points:      points,
		StrokeColor: e.strokeColor,
		StrokeWidth: e.strokeWidth,
	}
	e.store.Add(s)
	return &s
}

func (e *Engine) finalizeEraserLocked() *shape.Shape {
	e.state = modeIdle
	points := e.eraserPoints
	e.eraserPoints = nil
	e.renderRequested = true
	if len(points) == 0 {
		return nil
	}
	s := shape.Shape{
		ID:     shape.NewID(),
		Kind:   shape.KindEraser,
		Points: points,
		Size:   e.strokeWidth * eraserSizeFactor,
	}
	e.store.Add(s)
	return &s
}

// eraserSizeFactor scales the stroke width slider up to an eraser diameter.
const eraserSizeFactor = 10

func (e *Engine) finalizeDrawingLocked(finalX, finalY float64) *shape.Shape {
	e.state = modeIdle
	e.currentX, e.currentY = 0, 0
	e.renderRequested = true

	s := shape.Shape{
		ID:          shape.NewID(),
		StrokeColor: e.strokeColor,
		StrokeWidth: e.strokeWidth,
	}
	switch e.tool {
	case ToolRect:
		s.Kind = shape.KindRectangle
		s.X, s.Y = e.startX, e.startY
		s.Width, s.Height = finalX-e.startX, finalY-e.startY
	case ToolCircle:
		s.Kind = shape.KindCircle
		s.X = (e.startX + finalX) / 2
		s.Y = (e.startY + finalY) / 2
		s.RadiusX = abs(finalX-e.startX) / 2
		s.RadiusY = abs(finalY-e.startY) / 2
	case ToolLine:
		s.Kind = shape.KindLine
		s.X1, s.Y1, s.X2, s.Y2 = e.startX, e.startY, finalX, finalY
	case ToolArrow:
		s.Kind = shape.KindArrow
		s.X1, s.Y1, s.X2, s.Y2 = e.startX, e.startY, finalX, finalY
	case ToolTriangle:
		s.Kind = shape.KindTriangle
		s.X1, s.Y1, s.X2, s.Y2 = e.startX, e.startY, finalX, finalY
		s.X3, s.Y3 = thirdTrianglePoint(e.startX, e.startY, finalX, finalY)
	default:
		return nil
	}
	e.store.Add(s)
	return &s
}

// thirdTrianglePoint places the apex so the two drag endpoints and the apex
// form an equilateral triangle.
func thirdTrianglePoint(x1, y1, x2, y2 float64) (float64, float64) {
	dx, dy := x2-x1, y2-y1
	midX, midY := (x1+x2)/2, (y1+y2)/2
	const h = 0.8660254037844386 // sqrt(3)/2
	return midX - dy*h, midY + dx*h
}

func (e *Engine) endMarqueeLocked(worldX, worldY float64, multi bool) {
	e.state = modeIdle
	r := shape.Rect{
		X:      minf(e.marqueeStartX, worldX),
		Y:      minf(e.marqueeStartY, worldY),
		Width:  abs(worldX - e.marqueeStartX),
		Height: abs(worldY - e.marqueeStartY),
	}
	if !multi {
		e.selected = nil
	}
	for _, id := range e.store.Intersecting(r) {
		if !containsID(e.selected, id) {
			e.selected = append(e.selected, id)
		}
	}
	e.marqueeStartX, e.marqueeStartY = 0, 0
	e.marqueeCurrentX, e.marqueeCurrentY = 0, 0
	e.renderRequested = true
}

// Wheel zooms about the cursor, clamped to the scale band.
func (e *Engine) Wheel(deltaY, clientX, clientY float64) {
	if e.inert {
		return
	}
	e.mu.Lock()
	e.view.Zoom(deltaY, clientX, clientY)
	e.renderRequested = true
	e.mu.Unlock()
}

// Close tears the session down. An open text session is force-finalized
// (committed if non-empty) before teardown completes.
func (e *Engine) Close() {
	if e.inert {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	emitted := e.finalizeTextLocked()
	e.mu.Unlock()
	e.emit(emitted)
}

func (e *Engine) emit(s *shape.Shape) {
	if s == nil {
		return
	}
	if cb := e.OnShape; cb != nil {
		cb(*s)
	}
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
