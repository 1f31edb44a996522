package canvas

import (
	"bytes"
	"encoding/base64"
	"errors"

	"github.com/fogleman/gg"

	"sketchroom/internal/shape"
)

// capturePadding is the margin left around a captured selection.
const capturePadding = 10

// ErrNothingSelected is returned by capture and replace operations when the
// selection set is empty.
var ErrNothingSelected = errors.New("canvas: nothing selected")

// CaptureSelected rasterizes only the selected shapes, within their combined
// bounds plus padding, and returns the PNG bytes. The raster feeds the AI
// collaborator's analyze/improve calls.
func (e *Engine) CaptureSelected() ([]byte, error) {
	if e.inert {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	shapes, bounds := e.selectedWithBoundsLocked()
	if len(shapes) == 0 {
		return nil, ErrNothingSelected
	}

	w := int(bounds.Width) + 2*capturePadding
	h := int(bounds.Height) + 2*capturePadding
	if w <= 0 || h <= 0 {
		return nil, ErrNothingSelected
	}
	dc := gg.NewContext(w, h)
	dc.SetHexColor(backgroundHex)
	dc.Clear()
	dc.Translate(-bounds.X+capturePadding, -bounds.Y+capturePadding)
	for _, s := range shapes {
		e.drawShape(dc, s)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReplaceSelected deletes every selected shape and inserts a single image
// shape covering their former combined bounds, carrying the given PNG. The
// new shape is transmitted like any locally authored one; the deletions stay
// local, since the wire protocol has no per-shape delete.
func (e *Engine) ReplaceSelected(png []byte) (shape.Shape, error) {
	if e.inert {
		return shape.Shape{}, nil
	}
	e.mu.Lock()
	shapes, bounds := e.selectedWithBoundsLocked()
	if len(shapes) == 0 {
		e.mu.Unlock()
		return shape.Shape{}, ErrNothingSelected
	}
	for _, s := range shapes {
		e.store.Delete(s.ID)
	}
	e.selected = nil

	img := shape.Shape{
		ID:     shape.NewID(),
		Kind:   shape.KindImage,
		X:      bounds.X,
		Y:      bounds.Y,
		Width:  bounds.Width,
		Height: bounds.Height,
		Src:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}
	e.store.Add(img)
	e.renderRequested = true
	e.mu.Unlock()

	e.emit(&img)
	return img, nil
}

func (e *Engine) selectedWithBoundsLocked() ([]shape.Shape, shape.Rect) {
	var shapes []shape.Shape
	var bounds shape.Rect
	for _, id := range e.selected {
		s, ok := e.store.Get(id)
		if !ok {
			continue
		}
		b := s.Bounds()
		if b == nil {
			continue
		}
		if len(shapes) == 0 {
			bounds = *b
		} else {
			bounds = bounds.Union(*b)
		}
		shapes = append(shapes, s)
	}
	return shapes, bounds
}
