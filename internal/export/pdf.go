// Package export writes a board snapshot to PDF.
package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"sketchroom/internal/shape"
)

const (
	pageMargin = 10.0
	maxScale   = 1.0
)

// ExportPDF renders the shapes onto a single A4 page, scaled to fit. An
// empty board yields a blank page.
func ExportPDF(path string, shapes []shape.Shape) error {
	p := gofpdf.New("P", "mm", "A4", "")
	p.AddPage()

	bounds := boardBounds(shapes)
	pageW, pageH := p.GetPageSize()
	usableW := pageW - 2*pageMargin
	usableH := pageH - 2*pageMargin

	scale := maxScale
	if bounds.Width > 0 && bounds.Height > 0 {
		scale = math.Min(usableW/bounds.Width, usableH/bounds.Height)
		if scale > maxScale {
			scale = maxScale
		}
	}
	tx := func(x float64) float64 { return pageMargin + (x-bounds.X)*scale }
	ty := func(y float64) float64 { return pageMargin + (y-bounds.Y)*scale }

	for _, st := range shapes {
		if st.Kind == shape.KindEraser {
			continue
		}
		r, g, b := strokeRGB(st.StrokeColor)
		p.SetDrawColor(r, g, b)
		p.SetLineWidth(math.Max(st.StrokeWidth*scale, 0.2))

		switch st.Kind {
		case shape.KindRectangle:
			p.Rect(tx(st.X), ty(st.Y), st.Width*scale, st.Height*scale, "D")
		case shape.KindCircle:
			p.Ellipse(tx(st.X), ty(st.Y), st.RadiusX*scale, st.RadiusY*scale, 0, "D")
		case shape.KindLine:
			p.Line(tx(st.X1), ty(st.Y1), tx(st.X2), ty(st.Y2))
		case shape.KindTriangle:
			p.Polygon([]gofpdf.PointType{
				{X: tx(st.X1), Y: ty(st.Y1)},
				{X: tx(st.X2), Y: ty(st.Y2)},
				{X: tx(st.X3), Y: ty(st.Y3)},
			}, "D")
		case shape.KindFreehand:
			for i := 1; i < len(st.Points); i++ {
				p.Line(
					tx(st.Points[i-1].X), ty(st.Points[i-1].Y),
					tx(st.Points[i].X), ty(st.Points[i].Y),
				)
			}
		case shape.KindArrow:
			drawArrow(p, st, tx, ty, scale)
		case shape.KindText:
			drawText(p, st, tx, ty, scale, r, g, b)
		case shape.KindImage:
			drawImage(p, st, tx, ty, scale)
		}
	}
	return p.OutputFileAndClose(path)
}

func boardBounds(shapes []shape.Shape) shape.Rect {
	var union *shape.Rect
	for _, st := range shapes {
		b := st.Bounds()
		if b == nil {
			continue
		}
		if union == nil {
			r := *b
			union = &r
		} else {
			*union = union.Union(*b)
		}
	}
	if union == nil {
		return shape.Rect{}
	}
	return *union
}

func drawArrow(p *gofpdf.Fpdf, st shape.Shape, tx, ty func(float64) float64, scale float64) {
	p.Line(tx(st.X1), ty(st.Y1), tx(st.X2), ty(st.Y2))
	angle := math.Atan2(st.Y2-st.Y1, st.X2-st.X1)
	head := math.Max(10, st.StrokeWidth*5) * scale
	for _, da := range []float64{math.Pi / 7, -math.Pi / 7} {
		p.Line(
			tx(st.X2), ty(st.Y2),
			tx(st.X2)-head*math.Cos(angle-da),
			ty(st.Y2)-head*math.Sin(angle-da),
		)
	}
}

func drawText(p *gofpdf.Fpdf, st shape.Shape, tx, ty func(float64) float64, scale float64, r, g, b int) {
	fontPt := st.StrokeWidth * 10 * scale * 72 / 25.4
	if fontPt < 4 {
		fontPt = 4
	}
	p.SetFont("Helvetica", "", fontPt)
	p.SetTextColor(r, g, b)
	lineH := st.StrokeWidth * 10 * 1.2 * scale
	ascent := st.StrokeWidth * 10 * 0.8 * scale
	for i, line := range strings.Split(st.Content, "\n") {
		p.Text(tx(st.X), ty(st.Y)+ascent+float64(i)*lineH, line)
	}
}

func drawImage(p *gofpdf.Fpdf, st shape.Shape, tx, ty func(float64) float64, scale float64) {
	idx := strings.Index(st.Src, "base64,")
	if idx < 0 {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(st.Src[idx+len("base64,"):])
	if err != nil {
		return
	}
	name := fmt.Sprintf("img-%s", st.ID)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader(name, opts, bytes.NewReader(raw))
	p.ImageOptions(name, tx(st.X), ty(st.Y), st.Width*scale, st.Height*scale, false, opts, 0, "")
}

func strokeRGB(color string) (int, int, int) {
	hex := color
	switch strings.ToLower(color) {
	case "red":
		hex = "#ff0000"
	case "green":
		hex = "#00ff00"
	case "blue":
		hex = "#0000ff"
	case "yellow":
		hex = "#ffff00"
	case "orange":
		hex = "#ffa500"
	case "purple":
		hex = "#800080"
	case "white":
		hex = "#ffffff"
	}
	if !strings.HasPrefix(hex, "#") || len(hex) != 7 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
