package ui

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.design/x/clipboard"

	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/emu"
)

// menu modes
const (
	menuMain  = "main"
	menuSlot  = "slot"
	menuFiles = "files"
	menuKeys  = "keys"
)

type App struct {
	cfg    Config
	m      *emu.Machine
	w, h   int
	tex    *ebiten.Image
	shade  *ebiten.Image
	paused bool
	fast   bool

	// overlay/menu
	showMenu    bool
	menuMode    string
	menuIdx     int
	currentSlot int
	keysOff     int

	fileList []string
	fileSel  int
	fileOff  int

	toastMsg   string
	toastUntil time.Time

	clipboardOK  bool
	clipboardErr error
}

func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	w, h := m.Size()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(w*cfg.Scale, h*cfg.Scale)
	a := &App{cfg: cfg, m: m, w: w, h: h, menuMode: menuMain}
	if err := clipboard.Init(); err != nil {
		a.clipboardErr = err
	} else {
		a.clipboardOK = true
	}
	return a
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	// Pause toggle (P)
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}

	// Fast-forward (Tab): while held, run multiple frames per Ebiten update
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		a.m.Reset()
		a.toast("Reset")
	}

	// Frame-step when paused (N)
	if a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		a.m.StepFrame()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		a.reportSave(a.currentSlot)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		a.reportLoad(a.currentSlot)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}

	// Screenshot (F12) and clipboard copy (C)
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		if name, err := a.saveScreenshot(); err != nil {
			a.toast("Screenshot failed: " + err.Error())
		} else {
			a.toast("Saved " + name)
		}
	}
	if !a.showMenu && inpututil.IsKeyJustPressed(ebiten.KeyC) {
		if err := a.copyScreenshot(); err != nil {
			a.toast("Copy failed: " + err.Error())
		} else {
			a.toast("Screenshot copied")
		}
	}

	// Toggle menu (Escape)
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		if a.showMenu && a.menuMode != menuMain {
			a.menuMode = menuMain
			a.menuIdx = 0
		} else {
			a.showMenu = !a.showMenu
			a.menuMode = menuMain
			a.menuIdx = 0
		}
	} else if a.showMenu {
		switch a.menuMode {
		case menuSlot:
			a.updateSlotMenu()
		case menuFiles:
			a.updateFileMenu()
		case menuKeys:
			a.updateKeysMenu()
		default:
			a.updateMainMenu()
		}
	}

	if !a.paused && !a.showMenu {
		if a.fast {
			// Run a few frames to speed up
			for i := 0; i < 5; i++ {
				a.m.StepFrame()
			}
		} else {
			a.m.StepFrame()
		}
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(a.w, a.h)
	}
	a.tex.WritePixels(a.m.Framebuffer())
	screen.DrawImage(a.tex, nil)

	if a.showMenu {
		if a.shade == nil {
			a.shade = ebiten.NewImage(a.w, a.h)
			a.shade.Fill(color.RGBA{0, 0, 0, 160})
		}
		screen.DrawImage(a.shade, nil)
		switch a.menuMode {
		case menuSlot:
			a.drawSlotMenu(screen)
		case menuFiles:
			a.drawFileMenu(screen)
		case menuKeys:
			a.drawKeysMenu(screen)
		default:
			a.drawMainMenu(screen)
		}
	} else if a.paused {
		ebitenutil.DebugPrintAt(screen, "PAUSED", 4, 4)
	}
	a.drawToast(screen)
}

func (a *App) Layout(outW, outH int) (int, int) { return a.w, a.h }

func (a *App) screenshotPNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, a.m.Screenshot(a.cfg.Scale)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *App) saveScreenshot() (string, error) {
	data, err := a.screenshotPNG()
	if err != nil {
		return "", err
	}
	ts := time.Now().Format("20060102_150405")
	name := fmt.Sprintf("screenshot_%s.png", ts)
	if err := os.WriteFile(name, data, 0644); err != nil {
		return "", err
	}
	log.Printf("ui: wrote %s", name)
	return name, nil
}

func (a *App) copyScreenshot() error {
	if !a.clipboardOK {
		return fmt.Errorf("clipboard unavailable: %w", a.clipboardErr)
	}
	data, err := a.screenshotPNG()
	if err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtImage, data)
	return nil
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}
