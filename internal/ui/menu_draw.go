package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// debug font metrics
const (
	charWidth  = 6
	lineHeight = 14
)

func (a *App) drawMainMenu(screen *ebiten.Image) {
	lines := []string{"Menu:"}
	for i, s := range mainMenu {
		switch i {
		case 0, 1:
			s = fmt.Sprintf("%s (slot %d)", s, a.currentSlot+1)
		case 4:
			s = fmt.Sprintf("%s: %v", s, a.m.PixelEngine().ColorScheme())
		}
		lines = append(lines, s)
	}
	for i, s := range lines {
		prefix := "  "
		if i == a.menuIdx+1 {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, prefix+s, 10, 10+i*lineHeight)
	}
	// quick hints, keep on-screen
	hint := "F5: Save  F9: Load  F12: Screenshot  C: Copy  Backspace: Back"
	y := 10 + (len(lines)+1)*lineHeight
	for _, w := range a.wrapText(hint, a.maxCharsForText(10)) {
		ebitenutil.DebugPrintAt(screen, w, 10, y)
		y += lineHeight
	}
}

func (a *App) drawSlotMenu(screen *ebiten.Image) {
	// Show the slots, mark empty ones
	lines := []string{"Select Slot:"}
	for i := 0; i < numSlots; i++ {
		state := "[empty]"
		if _, err := os.Stat(a.statePath(i)); err == nil {
			state = ""
		}
		lines = append(lines, fmt.Sprintf("%d %s", i+1, state))
	}
	for i, s := range lines {
		prefix := "  "
		if i == a.menuIdx+1 {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, prefix+s, 10, 10+i*lineHeight)
	}
}

const fileListY = 40

func (a *App) fileRows() int {
	rows := (a.h - fileListY) / lineHeight
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (a *App) drawFileMenu(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, "Select file (Enter to load, Backspace/Esc to return)", 10, 10)
	d := a.truncateText("Dir: "+a.cfg.DisksDir, a.maxCharsForText(10))
	ebitenutil.DebugPrintAt(screen, d, 10, 24)
	if len(a.fileList) == 0 {
		ebitenutil.DebugPrintAt(screen, "No disk images or programs found", 10, fileListY)
		return
	}
	maxRows := a.fileRows()
	end := a.fileOff + maxRows
	if end > len(a.fileList) {
		end = len(a.fileList)
	}
	maxChars := a.maxCharsForText(10) - 2 // account for "> " prefix
	for i, p := range a.fileList[a.fileOff:end] {
		name := a.truncateText(filepath.Base(p), maxChars)
		prefix := "  "
		if a.fileOff+i == a.fileSel {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, prefix+name, 10, fileListY+i*lineHeight)
	}
	// scroll indicators
	if a.fileOff > 0 {
		ebitenutil.DebugPrintAt(screen, "^", 2, fileListY)
	}
	if end < len(a.fileList) {
		ebitenutil.DebugPrintAt(screen, "v", 2, fileListY+(maxRows-1)*lineHeight)
	}
}

var keyRows = []string{
	"P: Pause",
	"N: Step (when paused)",
	"Tab: Fast-forward",
	"R: Reset",
	"F5/F9: Save/Load state",
	"F11: Fullscreen",
	"F12: Screenshot to PNG",
	"C: Copy screenshot",
	"Esc: Open/Close Menu",
}

func (a *App) drawKeysMenu(screen *ebiten.Image) {
	title := "Keybindings (Up/Down to scroll, Backspace/Esc to return)"
	cursorY := 10
	for _, w := range a.wrapText(title, a.maxCharsForText(10)) {
		ebitenutil.DebugPrintAt(screen, w, 10, cursorY)
		cursorY += lineHeight
	}
	baseY := cursorY + 4
	maxRows := (a.h - baseY) / lineHeight
	if maxRows < 1 {
		maxRows = 1
	}
	if a.keysOff > len(keyRows)-1 {
		a.keysOff = len(keyRows) - 1
	}
	if a.keysOff < 0 {
		a.keysOff = 0
	}
	end := a.keysOff + maxRows
	if end > len(keyRows) {
		end = len(keyRows)
	}
	maxChars := a.maxCharsForText(10)
	for i := a.keysOff; i < end; i++ {
		line := a.truncateText(keyRows[i], maxChars)
		ebitenutil.DebugPrintAt(screen, line, 10, baseY+(i-a.keysOff)*lineHeight)
	}
}

func (a *App) drawToast(screen *ebiten.Image) {
	if a.toastMsg == "" || time.Now().After(a.toastUntil) {
		return
	}
	msg := a.truncateText(a.toastMsg, a.maxCharsForText(4))
	ebitenutil.DebugPrintAt(screen, msg, 4, a.h-lineHeight-4)
}

// maxCharsForText returns how many debug font characters fit on a line
// starting at x.
func (a *App) maxCharsForText(x int) int {
	n := (a.w - x) / charWidth
	if n < 1 {
		n = 1
	}
	return n
}

func (a *App) truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// wrapText breaks s at spaces into lines of at most max characters.
func (a *App) wrapText(s string, max int) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(s) {
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) <= max:
			line += " " + word
		default:
			lines = append(lines, line)
			line = word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
