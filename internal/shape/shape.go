// Package shape defines the drawable primitives shared by the board client
// and the relay. A Shape is an immutable value: edits travel over the wire as
// a delete of the old id plus an insert of a new shape, never as mutation.
package shape

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Kind tags the shape union. The wire values match the room event log, so a
// record written by any client decodes on every other.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindLine      Kind = "line"
	KindTriangle  Kind = "triangle"
	KindFreehand  Kind = "freehand"
	KindText      Kind = "text"
	KindEraser    Kind = "eraser"
	KindArrow     Kind = "arrow"
	KindImage     Kind = "image"
)

// Point is a world-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape is the tagged union of drawable records. Only the fields of the
// active Kind are meaningful; the JSON codec below emits exactly the variant's
// own fields so that decode/encode round-trips a record unchanged.
type Shape struct {
	ID   string
	Kind Kind

	// rectangle, image: origin and extent. circle: center.
	// text: baseline origin of the first line.
	X, Y          float64
	Width, Height float64

	// circle
	RadiusX, RadiusY float64

	// line, arrow, triangle
	X1, Y1 float64
	X2, Y2 float64
	X3, Y3 float64

	// freehand, eraser
	Points []Point

	// text
	Content string

	// image: raster payload, a data URL or fetchable source
	Src string

	// eraser stroke diameter
	Size float64

	StrokeColor string
	StrokeWidth float64
}

// NewID returns a fresh globally unique shape id. Ids are assigned once, by
// the authoring client, and never reused.
func NewID() string {
	return uuid.NewString()
}

type rectangleWire struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
}

type circleWire struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	RadiusX     float64 `json:"radiusX"`
	RadiusY     float64 `json:"radiusY"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
}

type lineWire struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"type"`
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
}

type triangleWire struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"type"`
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	X3          float64 `json:"x3"`
	Y3          float64 `json:"y3"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
}

type freehandWire struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"type"`
	Points      []Point `json:"points"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
}

type textWire struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Content     string  `json:"content"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
}

type eraserWire struct {
	ID     string  `json:"id"`
	Kind   Kind    `json:"type"`
	Points []Point `json:"points"`
	Size   float64 `json:"size"`
}

type imageWire struct {
	ID     string  `json:"id"`
	Kind   Kind    `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Src    string  `json:"src"`
}

// MarshalJSON emits the variant's wire form. The switch is exhaustive over
// Kind; a new variant that is not handled here fails loudly at encode time.
func (s Shape) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindRectangle:
		return json.Marshal(rectangleWire{s.ID, s.Kind, s.X, s.Y, s.Width, s.Height, s.StrokeColor, s.StrokeWidth})
	case KindCircle:
		return json.Marshal(circleWire{s.ID, s.Kind, s.X, s.Y, s.RadiusX, s.RadiusY, s.StrokeColor, s.StrokeWidth})
	case KindLine, KindArrow:
		return json.Marshal(lineWire{s.ID, s.Kind, s.X1, s.Y1, s.X2, s.Y2, s.StrokeColor, s.StrokeWidth})
	case KindTriangle:
		return json.Marshal(triangleWire{s.ID, s.Kind, s.X1, s.Y1, s.X2, s.Y2, s.X3, s.Y3, s.StrokeColor, s.StrokeWidth})
	case KindFreehand:
		return json.Marshal(freehandWire{s.ID, s.Kind, s.Points, s.StrokeColor, s.StrokeWidth})
	case KindText:
		return json.Marshal(textWire{s.ID, s.Kind, s.X, s.Y, s.Content, s.StrokeColor, s.StrokeWidth})
	case KindEraser:
		return json.Marshal(eraserWire{s.ID, s.Kind, s.Points, s.Size})
	case KindImage:
		return json.Marshal(imageWire{s.ID, s.Kind, s.X, s.Y, s.Width, s.Height, s.Src})
	default:
		return nil, fmt.Errorf("shape: marshal: unknown kind %q", s.Kind)
	}
}

// shapeWire is the superset used for decoding; the Kind tag selects which
// fields are carried into the Shape.
type shapeWire struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	RadiusX     float64 `json:"radiusX"`
	RadiusY     float64 `json:"radiusY"`
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	X3          float64 `json:"x3"`
	Y3          float64 `json:"y3"`
	Points      []Point `json:"points"`
	Content     string  `json:"content"`
	Src         string  `json:"src"`
	Size        float64 `json:"size"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
}

func (s *Shape) UnmarshalJSON(data []byte) error {
	var w shapeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("shape: unmarshal: %w", err)
	}
	decoded := Shape{ID: w.ID, Kind: w.Kind}
	switch w.Kind {
	case KindRectangle:
		decoded.X, decoded.Y, decoded.Width, decoded.Height = w.X, w.Y, w.Width, w.Height
		decoded.StrokeColor, decoded.StrokeWidth = w.StrokeColor, w.StrokeWidth
	case KindCircle:
		decoded.X, decoded.Y, decoded.RadiusX, decoded.RadiusY = w.X, w.Y, w.RadiusX, w.RadiusY
		decoded.StrokeColor, decoded.StrokeWidth = w.StrokeColor, w.StrokeWidth
	case KindLine, KindArrow:
		decoded.X1, decoded.Y1, decoded.X2, decoded.Y2 = w.X1, w.Y1, w.X2, w.Y2
		decoded.StrokeColor, decoded.StrokeWidth = w.StrokeColor, w.StrokeWidth
	case KindTriangle:
		decoded.X1, decoded.Y1, decoded.X2, decoded.Y2 = w.X1, w.Y1, w.X2, w.Y2
		decoded.X3, decoded.Y3 = w.X3, w.Y3
		decoded.StrokeColor, decoded.StrokeWidth = w.StrokeColor, w.StrokeWidth
	case KindFreehand:
		decoded.Points = w.Points
		decoded.StrokeColor, decoded.StrokeWidth = w.StrokeColor, w.StrokeWidth
	case KindText:
		decoded.X, decoded.Y, decoded.Content = w.X, w.Y, w.Content
		decoded.StrokeColor, decoded.StrokeWidth = w.StrokeColor, w.StrokeWidth
	case KindEraser:
		decoded.Points, decoded.Size = w.Points, w.Size
	case KindImage:
		decoded.X, decoded.Y, decoded.Width, decoded.Height = w.X, w.Y, w.Width, w.Height
		decoded.Src = w.Src
	default:
		return fmt.Errorf("shape: unmarshal: unknown kind %q", w.Kind)
	}
	*s = decoded
	return nil
}

// Decode parses a single serialized shape record.
func Decode(data []byte) (Shape, error) {
	var s Shape
	if err := json.Unmarshal(data, &s); err != nil {
		return Shape{}, err
	}
	return s, nil
}

// Encode serializes a shape to its wire form.
func Encode(s Shape) ([]byte, error) {
	return json.Marshal(s)
}
