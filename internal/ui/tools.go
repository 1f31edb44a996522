package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"sketchroom/internal/canvas"
)

// ToolbarActions are the board-level commands the toolbar triggers.
type ToolbarActions struct {
	OnAnalyze func()
	OnImprove func()
	OnExport  func()
}

// colorSwatch is a tappable square of one palette color.
type colorSwatch struct {
	widget.BaseWidget
	Color    color.Color
	Name     string
	OnTapped func(name string)
}

func newColorSwatch(c color.Color, name string, tapped func(string)) *colorSwatch {
	s := &colorSwatch{Color: c, Name: name, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := fynecanvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(24, 24))

	border := fynecanvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Name)
	}
}

// NewToolbar builds the tool strip: the ten tool modes, the color palette,
// the stroke width slider and the board commands.
func NewToolbar(engine *canvas.Engine, actions ToolbarActions) fyne.CanvasObject {
	currentColor := "black"
	currentWidth := 2.0

	setTool := func(t canvas.Tool) func() {
		return func() { engine.SetTool(t) }
	}

	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.MailComposeIcon(), setTool(canvas.ToolSelect)),
		widget.NewToolbarAction(theme.CheckButtonIcon(), setTool(canvas.ToolRect)),
		widget.NewToolbarAction(theme.RadioButtonIcon(), setTool(canvas.ToolCircle)),
		widget.NewToolbarAction(theme.ContentRemoveIcon(), setTool(canvas.ToolLine)),
		widget.NewToolbarAction(theme.MenuDropUpIcon(), setTool(canvas.ToolTriangle)),
		widget.NewToolbarAction(theme.DocumentCreateIcon(), setTool(canvas.ToolFreehand)),
		widget.NewToolbarAction(theme.DocumentIcon(), setTool(canvas.ToolText)),
		widget.NewToolbarAction(theme.DeleteIcon(), setTool(canvas.ToolEraser)),
		widget.NewToolbarAction(theme.NavigateNextIcon(), setTool(canvas.ToolArrow)),
		widget.NewToolbarAction(theme.ViewRestoreIcon(), setTool(canvas.ToolNone)),
	)

	onColorTapped := func(name string) {
		currentColor = name
		engine.SetStroke(currentColor, currentWidth)
	}
	colorBox := container.NewHBox(
		newColorSwatch(color.Black, "black", onColorTapped),
		newColorSwatch(color.NRGBA{R: 255, A: 255}, "red", onColorTapped),
		newColorSwatch(color.NRGBA{G: 160, A: 255}, "green", onColorTapped),
		newColorSwatch(color.NRGBA{B: 255, A: 255}, "blue", onColorTapped),
		newColorSwatch(color.NRGBA{R: 255, G: 200, A: 255}, "orange", onColorTapped),
		newColorSwatch(color.NRGBA{R: 128, B: 128, A: 255}, "purple", onColorTapped),
	)

	strokeSlider := widget.NewSlider(1.0, 10.0)
	strokeSlider.SetValue(currentWidth)
	strokeSlider.OnChanged = func(val float64) {
		currentWidth = val
		engine.SetStroke(currentColor, currentWidth)
	}
	sliderContainer := container.New(layout.NewGridWrapLayout(fyne.NewSize(120, 35)), strokeSlider)

	commands := widget.NewToolbar(
		widget.NewToolbarAction(theme.SearchIcon(), func() {
			if actions.OnAnalyze != nil {
				actions.OnAnalyze()
			}
		}),
		widget.NewToolbarAction(theme.ColorPaletteIcon(), func() {
			if actions.OnImprove != nil {
				actions.OnImprove()
			}
		}),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), func() {
			if actions.OnExport != nil {
				actions.OnExport()
			}
		}),
	)

	return container.NewHBox(
		widget.NewLabel("Tool:"),
		tb,
		widget.NewSeparator(),
		widget.NewLabel("Color:"),
		colorBox,
		widget.NewSeparator(),
		widget.NewLabel("Size:"),
		sliderContainer,
		widget.NewSeparator(),
		commands,
		layout.NewSpacer(),
	)
}
