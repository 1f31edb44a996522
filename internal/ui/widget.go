// Package ui is the fyne desktop front end: a widget that presents the
// engine's raster and forwards mouse, wheel and keyboard input to it.
package ui

import (
	"image"
	"sync"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"sketchroom/internal/canvas"
)

// BoardWidget shows one board session. Construct it first, then build the
// engine on top of Surface() and attach it with SetEngine.
type BoardWidget struct {
	widget.BaseWidget
	engine *canvas.Engine

	frameMu sync.Mutex
	frame   image.Image
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ fyne.Scrollable = (*BoardWidget)(nil)
var _ fyne.DoubleTappable = (*BoardWidget)(nil)
var _ fyne.Focusable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)

func NewBoardWidget() *BoardWidget {
	b := &BoardWidget{}
	b.ExtendBaseWidget(b)
	return b
}

// Surface returns the engine-facing side of the widget.
func (b *BoardWidget) Surface() canvas.Surface {
	return widgetSurface{board: b}
}

// SetEngine attaches the engine whose frames this widget presents.
func (b *BoardWidget) SetEngine(e *canvas.Engine) {
	b.engine = e
	e.RequestRender()
}

// widgetSurface adapts the widget to the engine's Surface interface; the
// widget itself cannot implement it because fyne already claims Size.
type widgetSurface struct {
	board *BoardWidget
}

func (s widgetSurface) Size() (int, int) {
	sz := s.board.BaseWidget.Size()
	w, h := int(sz.Width), int(sz.Height)
	if w < 1 || h < 1 {
		return 800, 600
	}
	return w, h
}

// Present stores the frame and refreshes on the fyne thread. The frame
// ticker runs on its own goroutine, so the UI call must be marshalled.
func (s widgetSurface) Present(frame image.Image) {
	s.board.frameMu.Lock()
	s.board.frame = frame
	s.board.frameMu.Unlock()
	fyne.Do(func() {
		s.board.Refresh()
	})
}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	raster := fynecanvas.NewRaster(b.currentFrame)
	return widget.NewSimpleRenderer(raster)
}

func (b *BoardWidget) currentFrame(w, h int) image.Image {
	b.frameMu.Lock()
	defer b.frameMu.Unlock()
	if b.frame == nil {
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return b.frame
}

func (b *BoardWidget) Resize(size fyne.Size) {
	b.BaseWidget.Resize(size)
	if b.engine != nil {
		b.engine.RequestRender()
	}
}

func (b *BoardWidget) MouseDown(ev *desktop.MouseEvent) {
	if b.engine == nil {
		return
	}
	if c := fyne.CurrentApp().Driver().CanvasForObject(b); c != nil {
		c.Focus(b)
	}
	b.engine.PointerDown(float64(ev.Position.X), float64(ev.Position.Y), button(ev.Button), modifiers(ev.Modifier))
}

func (b *BoardWidget) MouseUp(ev *desktop.MouseEvent) {
	if b.engine == nil {
		return
	}
	b.engine.PointerUp(float64(ev.Position.X), float64(ev.Position.Y), button(ev.Button), modifiers(ev.Modifier))
}

func (b *BoardWidget) Dragged(ev *fyne.DragEvent) {
	if b.engine == nil {
		return
	}
	b.engine.PointerMove(float64(ev.Position.X), float64(ev.Position.Y))
}

func (b *BoardWidget) DragEnd() {}

func (b *BoardWidget) MouseIn(*desktop.MouseEvent) {}
func (b *BoardWidget) MouseOut()                   {}

func (b *BoardWidget) MouseMoved(ev *desktop.MouseEvent) {
	if b.engine == nil {
		return
	}
	b.engine.PointerMove(float64(ev.Position.X), float64(ev.Position.Y))
}

func (b *BoardWidget) Scrolled(ev *fyne.ScrollEvent) {
	if b.engine == nil {
		return
	}
	// wheel-up zooms in; the engine treats positive delta as zoom-out
	b.engine.Wheel(-float64(ev.Scrolled.DY)*10, float64(ev.Position.X), float64(ev.Position.Y))
}

func (b *BoardWidget) DoubleTapped(ev *fyne.PointEvent) {
	if b.engine == nil {
		return
	}
	b.engine.DoubleClick(float64(ev.Position.X), float64(ev.Position.Y))
}

func (b *BoardWidget) FocusGained() {}
func (b *BoardWidget) FocusLost()   {}

func (b *BoardWidget) TypedRune(r rune) {
	if b.engine == nil {
		return
	}
	b.engine.KeyRune(r)
}

func (b *BoardWidget) TypedKey(ev *fyne.KeyEvent) {
	if b.engine == nil {
		return
	}
	switch ev.Name {
	case fyne.KeyReturn, fyne.KeyEnter:
		b.engine.KeyEnter()
	case fyne.KeyBackspace:
		b.engine.KeyBackspace()
	case fyne.KeyDelete:
		for _, id := range b.engine.Selection() {
			b.engine.DeleteShape(id)
		}
	}
}

func button(btn desktop.MouseButton) canvas.Button {
	if btn == desktop.MouseButtonSecondary {
		return canvas.ButtonSecondary
	}
	return canvas.ButtonPrimary
}

func modifiers(m fyne.KeyModifier) canvas.Modifiers {
	return canvas.Modifiers{
		Multi: m&fyne.KeyModifierControl != 0 || m&fyne.KeyModifierSuper != 0,
	}
}
