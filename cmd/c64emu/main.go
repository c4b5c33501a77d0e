package main

import (
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/emu"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/ui"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/vic"
)

type CLIFlags struct {
	PRGPath  string
	DiskPath string
	CharROM  string
	State    string // save state restored before running
	PAL      bool
	NTSC     bool
	Palette  string
	Scale    int
	Title    string
	Trace    bool

	// headless
	Headless bool
	Frames   int
	PNGOut   string
	Expect   string // expected frame digest, xxhash64 hex
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.PRGPath, "prg", "", "program to load into memory (.prg, optionally .gz/.zip/.7z)")
	flag.StringVar(&f.DiskPath, "disk", "", "disk image to insert (.d64/.g64, optionally .gz/.zip/.7z)")
	flag.StringVar(&f.CharROM, "charrom", "", "optional 4K character generator ROM")
	flag.StringVar(&f.State, "state", "", "save state to restore at start")
	flag.BoolVar(&f.PAL, "pal", true, "6569 PAL timing")
	flag.BoolVar(&f.NTSC, "ntsc", false, "6567R8 NTSC timing (overrides -pal)")
	flag.StringVar(&f.Palette, "palette", "ccs64", "color scheme: ccs64, vice, frodo, pc64, c64s, godot, pepto, grayscale")
	flag.IntVar(&f.Scale, "scale", 2, "window and screenshot scale")
	flag.StringVar(&f.Title, "title", "c64emu", "window title")
	flag.BoolVar(&f.Trace, "trace", false, "log a line per frame")

	// headless options
	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 50, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last frame to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert frame digest (xxhash64 hex)")
	flag.Parse()
	return f
}

func runHeadless(m *emu.Machine, frames, scale int, pngPath, expect string) error {
	if frames <= 0 {
		frames = 1
	}

	start := time.Now()
	for i := 0; i < frames; i++ {
		m.StepFrame()
	}
	dur := time.Since(start)

	digest := m.FrameDigest()
	fps := float64(frames) / dur.Seconds()

	log.Printf("headless: frames=%d elapsed=%s fps=%.2f digest=%016x",
		frames, dur.Truncate(time.Millisecond), fps, digest)

	if pngPath != "" {
		if err := saveFramePNG(m, scale, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}

	if expect != "" {
		// normalize expected hex (allow with/without 0x, upper/lowercase)
		want, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(expect), "0x"), 16, 64)
		if err != nil {
			return fmt.Errorf("bad -expect value %q: %w", expect, err)
		}
		if digest != want {
			return fmt.Errorf("digest mismatch: got %016x, want %016x", digest, want)
		}
	}
	return nil
}

func saveFramePNG(m *emu.Machine, scale int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, m.Screenshot(scale)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func main() {
	f := parseFlags()

	scheme, err := vic.ParseColorScheme(strings.ToLower(f.Palette))
	if err != nil {
		log.Fatal(err)
	}
	emuCfg := emu.Config{
		NTSC:    f.NTSC || !f.PAL,
		Palette: scheme,
		Trace:   f.Trace,
	}
	m := emu.New(emuCfg)
	log.Printf("VIC-II %s, %dx%d, palette %v", m.Spec().ID, m.Spec().Width(), m.Spec().Height(), scheme)

	if rom := mustRead(f.CharROM); rom != nil {
		if err := m.Bus().SetCharROM(rom); err != nil {
			log.Fatalf("char ROM: %v", err)
		}
	}
	for _, path := range []string{f.DiskPath, f.PRGPath} {
		if path == "" {
			continue
		}
		if _, err := m.LoadFile(path); err != nil {
			log.Fatalf("load %s: %v", path, err)
		}
	}
	if f.State != "" {
		if err := m.LoadStateFromFile(f.State); err != nil {
			log.Fatalf("load state: %v", err)
		}
		log.Printf("restored %s", f.State)
	}

	if f.Headless {
		if err := runHeadless(m, f.Frames, f.Scale, f.PNGOut, f.Expect); err != nil {
			log.Fatal(err)
		}
		return
	}

	uiCfg := ui.Config{Title: f.Title, Scale: f.Scale}
	app := ui.NewApp(uiCfg, m)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
