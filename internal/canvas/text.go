package canvas

import (
	"strings"

	"sketchroom/internal/shape"
)

// textSession is an open text composition anchored at a world point. At most
// one session exists per engine; opening a new one force-finalizes the old.
// Owning the session on the Engine (instead of ambient state) keeps multiple
// boards in one process from interfering with each other.
type textSession struct {
	x, y       float64
	buf        strings.Builder
	showCursor bool
}

// DoubleClick opens a text composition at the click point when the text tool
// is armed. A session already open is committed first.
func (e *Engine) DoubleClick(clientX, clientY float64) {
	if e.inert {
		return
	}
	e.mu.Lock()
	if e.tool != ToolText {
		e.mu.Unlock()
		return
	}
	emitted := e.finalizeTextLocked()
	worldX, worldY := e.view.WorldAt(clientX, clientY)
	e.text = &textSession{x: worldX, y: worldY, showCursor: true}
	e.renderRequested = true
	e.mu.Unlock()
	e.emit(emitted)
}

// ComposingText reports whether a text session is open.
func (e *Engine) ComposingText() bool {
	if e.inert {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text != nil
}

// KeyRune appends a printable character to the open session.
func (e *Engine) KeyRune(r rune) {
	if e.inert {
		return
	}
	e.mu.Lock()
	if e.text != nil {
		e.text.buf.WriteRune(r)
		e.renderRequested = true
	}
	e.mu.Unlock()
}

// KeyEnter inserts a literal newline.
func (e *Engine) KeyEnter() {
	e.KeyRune('\n')
}

// KeyBackspace removes the last character.
func (e *Engine) KeyBackspace() {
	if e.inert {
		return
	}
	e.mu.Lock()
	if e.text != nil {
		current := e.text.buf.String()
		if current != "" {
			runes := []rune(current)
			e.text.buf.Reset()
			e.text.buf.WriteString(string(runes[:len(runes)-1]))
			e.renderRequested = true
		}
	}
	e.mu.Unlock()
}

// ToggleTextCursor flips the caret for blink animation; the UI drives it on
// a timer.
func (e *Engine) ToggleTextCursor() {
	if e.inert {
		return
	}
	e.mu.Lock()
	if e.text != nil {
		e.text.showCursor = !e.text.showCursor
		e.renderRequested = true
	}
	e.mu.Unlock()
}

// finalizeTextLocked commits the open session as a text shape if it has
// non-blank content, discards it otherwise, and returns the shape to emit.
func (e *Engine) finalizeTextLocked() *shape.Shape {
	if e.text == nil {
		return nil
	}
	session := e.text
	e.text = nil
	e.renderRequested = true
	content := session.buf.String()
	if strings.TrimSpace(content) == "" {
		return nil
	}
	s := shape.Shape{
		ID:          shape.NewID(),
		Kind:        shape.KindText,
		X:           session.x,
		Y:           session.y,
		Content:     content,
		StrokeColor: e.strokeColor,
		StrokeWidth: e.strokeWidth,
	}
	e.store.Add(s)
	return &s
}
