package ui

import (
	"context"
	"log"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"sketchroom/internal/ai"
	"sketchroom/internal/canvas"
	"sketchroom/internal/client"
	"sketchroom/internal/export"
)

const frameInterval = time.Second / 60

// Config is everything the board app needs to join a room.
type Config struct {
	ServerURL string
	Slug      string
	Token     string
	AIBaseURL string
}

// Run connects to the room and runs the board window until it is closed.
func Run(cfg Config) error {
	myApp := app.New()
	myWindow := myApp.NewWindow("Sketchroom: " + cfg.Slug)
	myWindow.Resize(fyne.NewSize(1024, 768))

	board := NewBoardWidget()
	engine := canvas.NewEngine(board.Surface())
	board.SetEngine(engine)

	status := widget.NewLabel("Connecting to " + cfg.ServerURL)
	setStatus := func(text string) {
		fyne.Do(func() { status.SetText(text) })
	}

	session, err := client.Dial(context.Background(), cfg.ServerURL, cfg.Slug, cfg.Token, engine)
	if err != nil {
		return err
	}
	session.SetOnAI(func(msg string) {
		setStatus("assistant: " + msg)
	})

	var assistant *ai.Client
	if cfg.AIBaseURL != "" {
		assistant = ai.NewClient(cfg.AIBaseURL)
	}

	actions := ToolbarActions{
		OnAnalyze: func() {
			if assistant == nil {
				setStatus("no assistant configured")
				return
			}
			go func() {
				png, err := engine.CaptureSelected()
				if err != nil {
					setStatus(err.Error())
					return
				}
				msg, err := assistant.Analyze(context.Background(), png)
				if err != nil {
					log.Printf("[ui] analyze: %v", err)
					setStatus("analyze failed")
					return
				}
				if err := session.SendAI(msg); err != nil {
					log.Printf("[ui] send ai message: %v", err)
				}
				setStatus("assistant: " + msg)
			}()
		},
		OnImprove: func() {
			if assistant == nil {
				setStatus("no assistant configured")
				return
			}
			go func() {
				png, err := engine.CaptureSelected()
				if err != nil {
					setStatus(err.Error())
					return
				}
				improved, err := assistant.Improve(context.Background(), png)
				if err != nil {
					log.Printf("[ui] improve: %v", err)
					setStatus("improve failed")
					return
				}
				if _, err := engine.ReplaceSelected(improved); err != nil {
					setStatus(err.Error())
					return
				}
				setStatus("selection redrawn")
			}()
		},
		OnExport: func() {
			dialog.ShowFileSave(func(writer fyne.URIWriteCloser, err error) {
				if err != nil || writer == nil {
					return
				}
				path := writer.URI().Path()
				writer.Close()
				if err := export.ExportPDF(path, engine.Shapes()); err != nil {
					log.Printf("[ui] export pdf: %v", err)
					setStatus("export failed")
					return
				}
				setStatus("exported " + path)
			}, myWindow)
		},
	}

	toolbar := NewToolbar(engine, actions)
	content := container.NewBorder(toolbar, status, nil, nil, board)
	myWindow.SetContent(content)

	stop := make(chan struct{})
	go func() {
		frame := time.NewTicker(frameInterval)
		cursor := time.NewTicker(500 * time.Millisecond)
		defer frame.Stop()
		defer cursor.Stop()
		for {
			select {
			case <-frame.C:
				engine.Frame()
			case <-cursor.C:
				engine.ToggleTextCursor()
			case <-stop:
				return
			}
		}
	}()

	setStatus("joined " + cfg.Slug)
	myWindow.ShowAndRun()

	close(stop)
	engine.Close() // may commit an open text session, so close before the transport
	if err := session.Close(); err != nil {
		log.Printf("[ui] close session: %v", err)
	}
	return nil
}
