package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/vic"
)

const numSlots = 4

// main menu entries
var mainMenu = []string{
	"Save state",
	"Load state",
	"Select slot",
	"Insert disk / load program",
	"Palette",
	"Keybindings",
	"Close",
}

func (a *App) updateMainMenu() {
	max := len(mainMenu) - 1
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < max {
		a.menuIdx++
	}
	if a.menuIdx == 4 {
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) {
			a.cyclePalette(-1)
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) {
			a.cyclePalette(1)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		switch a.menuIdx {
		case 0:
			a.reportSave(a.currentSlot)
		case 1:
			if _, err := os.Stat(a.statePath(a.currentSlot)); err != nil {
				a.toast("Slot is empty")
			} else {
				a.reportLoad(a.currentSlot)
			}
		case 2:
			a.menuMode = menuSlot
			a.menuIdx = a.currentSlot
		case 3:
			a.fileList = a.findFiles()
			a.fileSel = 0
			a.fileOff = 0
			a.menuMode = menuFiles
		case 4:
			a.cyclePalette(1)
		case 5:
			a.menuMode = menuKeys
			a.keysOff = 0
		case 6:
			a.showMenu = false
		}
	}
	// Back with Backspace
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.showMenu = false
	}
}

func (a *App) updateSlotMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < numSlots-1 {
		a.menuIdx++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		a.currentSlot = a.menuIdx
		a.toast(fmt.Sprintf("Slot set to %d", a.currentSlot+1))
		a.menuMode = menuMain
		a.menuIdx = 2
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = menuMain
		a.menuIdx = 2
	}
}

func (a *App) updateFileMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.fileSel > 0 {
		a.fileSel--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.fileSel < len(a.fileList)-1 {
		a.fileSel++
	}
	// keep the selection on screen
	rows := a.fileRows()
	if a.fileSel < a.fileOff {
		a.fileOff = a.fileSel
	}
	if a.fileSel >= a.fileOff+rows {
		a.fileOff = a.fileSel - rows + 1
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) && len(a.fileList) > 0 {
		path := a.fileList[a.fileSel]
		typ, err := a.m.LoadFile(path)
		if err != nil {
			a.toast("Load failed: " + err.Error())
			return
		}
		a.toast(fmt.Sprintf("%v: %s", typ, filepath.Base(path)))
		a.showMenu = false
		a.menuMode = menuMain
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = menuMain
		a.menuIdx = 3
	}
}

func (a *App) updateKeysMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		a.keysOff--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		a.keysOff++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = menuMain
		a.menuIdx = 5
	}
}

func (a *App) cyclePalette(dir int) {
	n := int(vic.Grayscale) + 1
	next := vic.ColorScheme((int(a.m.PixelEngine().ColorScheme()) + dir + n) % n)
	if err := a.m.PixelEngine().SetColorScheme(next); err != nil {
		a.toast(err.Error())
		return
	}
	a.toast("Palette: " + next.String())
}

func (a *App) statePath(slot int) string {
	return filepath.Join(a.cfg.StateDir, fmt.Sprintf("slot%d.savestate", slot))
}

func (a *App) reportSave(slot int) {
	if err := a.m.SaveStateToFile(a.statePath(slot)); err != nil {
		a.toast("Save failed: " + err.Error())
		return
	}
	a.toast(fmt.Sprintf("Saved slot %d", slot+1))
}

func (a *App) reportLoad(slot int) {
	if err := a.m.LoadStateFromFile(a.statePath(slot)); err != nil {
		a.toast("Load failed: " + err.Error())
		return
	}
	a.toast(fmt.Sprintf("Loaded slot %d", slot+1))
}

// findFiles lists the loadable files below the disks directory.
func (a *App) findFiles() []string {
	var out []string
	_ = filepath.WalkDir(a.cfg.DisksDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		low := strings.ToLower(d.Name())
		for _, ext := range []string{".gz", ".zip", ".7z"} {
			low = strings.TrimSuffix(low, ext)
		}
		switch filepath.Ext(low) {
		case ".d64", ".g64", ".prg":
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out
}
