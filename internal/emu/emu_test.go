package emu

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/d64"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/disk"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/loader"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/vic"
)

// row returns the frame buffer row of rasterline y.
func row(m *Machine, y int) int { return y - m.Spec().FirstVisibleLine }

func pixelAt(m *Machine, x, y int) uint32 {
	w, _ := m.Size()
	return binary.LittleEndian.Uint32(m.Framebuffer()[(y*w+x)*4:])
}

func expectPixel(t *testing.T, m *Machine, x, y int, color uint8) {
	t.Helper()
	if got, want := pixelAt(m, x, y), m.PixelEngine().Color(color); got != want {
		t.Errorf("pixel (%d,%d) = %08x, want color %d (%08x)", x, y, got, color, want)
	}
}

// withCharset selects a character set at $2000 and fills the screen with
// character 1, a solid block, in white.
func withCharset(m *Machine) {
	b := m.Bus()
	b.Write(0xD018, 0x18)
	for i := uint16(0); i < 1000; i++ {
		b.Poke(0x0400+i, 1)
		b.Write(0xD800+i, vic.White)
	}
	for i := uint16(0); i < 8; i++ {
		b.Poke(0x2008+i, 0xFF)
	}
}

func TestGeometry(t *testing.T) {
	m := New(Config{})
	if w, h := m.Size(); w != 384 || h != 284 {
		t.Fatalf("PAL size = %dx%d, want 384x284", w, h)
	}
	m = New(Config{NTSC: true})
	if w, h := m.Size(); w != 384 || h != 235 {
		t.Fatalf("NTSC size = %dx%d, want 384x235", w, h)
	}
	m.StepFrame()
	if m.Frame() != 1 {
		t.Fatalf("Frame() = %d, want 1", m.Frame())
	}
	if y, c := m.Position(); y != 0 || c != 1 {
		t.Fatalf("Position() = (%d,%d), want (0,1)", y, c)
	}
}

func TestStepLine(t *testing.T) {
	m := New(Config{})
	for i := 0; i < 10; i++ {
		m.StepLine()
	}
	if y, c := m.Position(); y != 10 || c != 1 {
		t.Fatalf("Position() = (%d,%d), want (10,1)", y, c)
	}
}

func TestPowerUpScreen(t *testing.T) {
	m := New(Config{})
	expectPixel(t, m, 100, 100, vic.Blue)
	m.StepFrame()

	top, bottom := row(m, 0x33), row(m, 0xFB)
	expectPixel(t, m, 0, 0, vic.LightBlue)
	expectPixel(t, m, 31, top, vic.LightBlue)
	expectPixel(t, m, 32, top-1, vic.LightBlue)
	expectPixel(t, m, 32, top, vic.Blue)
	expectPixel(t, m, 351, bottom-1, vic.Blue)
	expectPixel(t, m, 352, bottom-1, vic.LightBlue)
	expectPixel(t, m, 32, bottom, vic.LightBlue)
}

func TestBlankScreen(t *testing.T) {
	m := New(Config{})
	m.Bus().Write(0xD011, 0x0B) // DEN off
	m.StepFrame()
	expectPixel(t, m, 100, 100, vic.LightBlue)
	expectPixel(t, m, 200, 200, vic.LightBlue)
}

func TestRowSelect(t *testing.T) {
	m := New(Config{})
	m.Bus().Write(0xD011, 0x13) // RSEL=0
	m.StepFrame()
	expectPixel(t, m, 100, row(m, 0x36), vic.LightBlue)
	expectPixel(t, m, 100, row(m, 0x37), vic.Blue)
	expectPixel(t, m, 100, row(m, 0xF6), vic.Blue)
	expectPixel(t, m, 100, row(m, 0xF7), vic.LightBlue)
}

func TestCharacters(t *testing.T) {
	m := New(Config{})
	b := m.Bus()
	b.Write(0xD018, 0x18)
	b.Poke(0x0400, 1)
	b.Poke(0x0401, 2)
	b.Write(0xD800, vic.White)
	b.Write(0xD801, vic.Red)
	b.Poke(0x2008, 0x80) // character 1: top left pixel
	b.Poke(0x2017, 0x01) // character 2: bottom right pixel
	m.StepFrame()

	y := row(m, 0x33)
	expectPixel(t, m, 32, y, vic.White)
	expectPixel(t, m, 33, y, vic.Blue)
	expectPixel(t, m, 32, y+1, vic.Blue)
	expectPixel(t, m, 47, y+7, vic.Red)
	expectPixel(t, m, 47, y+6, vic.Blue)
	// second character row uses the matrix from $0428
	expectPixel(t, m, 32, y+8, vic.Blue)
}

func TestHorizontalScroll(t *testing.T) {
	m := New(Config{})
	b := m.Bus()
	b.Write(0xD018, 0x18)
	b.Poke(0x0400, 1)
	b.Write(0xD800, vic.White)
	b.Poke(0x2008, 0x80)
	b.Write(0xD016, 0x0B) // XSCROLL 3
	m.StepFrame()

	y := row(m, 0x33)
	expectPixel(t, m, 34, y, vic.Blue)
	expectPixel(t, m, 35, y, vic.White)
}

func TestBitmapMode(t *testing.T) {
	m := New(Config{})
	b := m.Bus()
	b.Write(0xD011, 0x3B)
	b.Write(0xD018, 0x18) // bitmap at $2000
	b.Poke(0x0400, 0x25)  // fg red, bg green
	b.Poke(0x2000, 0xF0)
	m.StepFrame()

	y := row(m, 0x33)
	expectPixel(t, m, 32, y, vic.Red)
	expectPixel(t, m, 35, y, vic.Red)
	expectPixel(t, m, 36, y, vic.Green)
}

func TestModeChangeInBorder(t *testing.T) {
	m := New(Config{})
	b := m.Bus()
	b.Write(0xD018, 0x18)
	b.Poke(0x0400, 0x25)
	b.Poke(0x2000, 0xF0)
	m.StepFrame()

	// switch to bitmap mode in the lower border
	m.SetCycleHook(func(y uint16, cycle int, b *bus.Bus) {
		if y == 0x120 && cycle == 1 {
			b.Write(0xD011, 0x3B)
		}
	})
	m.StepFrame()
	m.StepFrame()

	y := row(m, 0x33)
	for x := 32; x < 36; x++ {
		expectPixel(t, m, x, y, vic.Red)
	}
	for x := 36; x < 40; x++ {
		expectPixel(t, m, x, y, vic.Green)
	}
}

func Test38Columns(t *testing.T) {
	m := New(Config{})
	m.Bus().Write(0xD016, 0x00)
	m.StepFrame()

	y := row(m, 0x80)
	expectPixel(t, m, 38, y, vic.LightBlue)
	expectPixel(t, m, 39, y, vic.Blue)
	expectPixel(t, m, 342, y, vic.Blue)
	expectPixel(t, m, 343, y, vic.LightBlue)
}

func TestSprites(t *testing.T) {
	setup := func(t *testing.T, behind bool) *Machine {
		m := New(Config{})
		withCharset(m)
		b := m.Bus()
		b.Write(0xD015, 0x01)
		b.Write(0xD000, 24)
		b.Write(0xD001, 0x40)
		b.Write(0xD027, vic.Red)
		if behind {
			b.Write(0xD01B, 0x01)
		}
		b.Poke(0x07F8, 13)
		for i := uint16(0); i < 63; i++ {
			b.Poke(13*64+i, 0xFF)
		}
		m.StepFrame()
		return m
	}

	t.Run("front", func(t *testing.T) {
		m := setup(t, false)
		y := row(m, 0x40)
		expectPixel(t, m, 32, y, vic.Red)
		expectPixel(t, m, 55, y+20, vic.Red)
		expectPixel(t, m, 56, y, vic.White)
		expectPixel(t, m, 32, y+21, vic.White)
		expectPixel(t, m, 32, y-1, vic.White)
		if got := m.Bus().Read(0xD01F); got != 0x01 {
			t.Fatalf("D01F = %02x, want 01", got)
		}
		if got := m.Bus().Read(0xD01F); got != 0 {
			t.Fatalf("D01F after read = %02x, want 00", got)
		}
		if m.Bus().Reg(bus.RegIRQ)&bus.IRQSpriteBackground == 0 {
			t.Fatal("sprite/background IRQ not latched")
		}
	})

	t.Run("behind", func(t *testing.T) {
		m := setup(t, true)
		expectPixel(t, m, 32, row(m, 0x40), vic.White)
	})
}

func TestSpriteExpansion(t *testing.T) {
	m := New(Config{})
	b := m.Bus()
	b.Write(0xD015, 0x02)
	b.Write(0xD002, 24)
	b.Write(0xD003, 0x80)
	b.Write(0xD028, vic.Yellow)
	b.Write(0xD01D, 0x02)
	b.Write(0xD017, 0x02)
	b.Poke(0x07F9, 13)
	for i := uint16(0); i < 63; i++ {
		b.Poke(13*64+i, 0xFF)
	}
	m.StepFrame()

	y := row(m, 0x80)
	expectPixel(t, m, 32+47, y, vic.Yellow)
	expectPixel(t, m, 32+48, y, vic.Blue)
	expectPixel(t, m, 32, y+41, vic.Yellow)
	expectPixel(t, m, 32, y+42, vic.Blue)
}

func TestMulticolorSprite(t *testing.T) {
	m := New(Config{})
	b := m.Bus()
	b.Write(0xD015, 0x01)
	b.Write(0xD000, 24)
	b.Write(0xD001, 0x80)
	b.Write(0xD01C, 0x01)
	b.Write(0xD025, vic.Green)
	b.Write(0xD026, vic.Purple)
	b.Write(0xD027, vic.Red)
	b.Poke(0x07F8, 13)
	b.Poke(13*64, 0x1B) // 00 01 10 11
	m.StepFrame()

	y := row(m, 0x80)
	expectPixel(t, m, 32, y, vic.Blue)
	expectPixel(t, m, 34, y, vic.Green)
	expectPixel(t, m, 36, y, vic.Red)
	expectPixel(t, m, 38, y, vic.Purple)
	expectPixel(t, m, 39, y, vic.Purple)
}

func TestSpriteSpriteCollision(t *testing.T) {
	m := New(Config{})
	b := m.Bus()
	b.Write(0xD015, 0x03)
	b.Write(0xD000, 100)
	b.Write(0xD001, 0x80)
	b.Write(0xD002, 110)
	b.Write(0xD003, 0x80)
	b.Poke(0x07F8, 13)
	b.Poke(0x07F9, 13)
	for i := uint16(0); i < 63; i++ {
		b.Poke(13*64+i, 0xFF)
	}
	m.StepFrame()
	if got := b.Read(0xD01E); got != 0x03 {
		t.Fatalf("D01E = %02x, want 03", got)
	}
	if got := b.Read(0xD01F); got != 0 {
		t.Fatalf("D01F = %02x, want 00", got)
	}

	m = New(Config{NoSpriteSpriteCollisions: true})
	b = m.Bus()
	b.Write(0xD015, 0x03)
	b.Write(0xD000, 100)
	b.Write(0xD001, 0x80)
	b.Write(0xD002, 110)
	b.Write(0xD003, 0x80)
	b.Poke(0x07F8, 13)
	b.Poke(0x07F9, 13)
	for i := uint16(0); i < 63; i++ {
		b.Poke(13*64+i, 0xFF)
	}
	m.StepFrame()
	if got := b.Read(0xD01E); got != 0 {
		t.Fatalf("D01E with detection off = %02x, want 00", got)
	}
}

func TestRasterIRQ(t *testing.T) {
	m := New(Config{})
	b := m.Bus()
	b.Write(0xD012, 100)
	b.Write(0xD01A, bus.IRQRaster)
	for i := 0; i < 100; i++ {
		m.StepLine()
	}
	if b.IRQ() {
		t.Fatal("IRQ before the compare line")
	}
	m.StepCycle()
	if !b.IRQ() {
		t.Fatal("no IRQ at the compare line")
	}
	if got := b.Read(0xD019); got&0x81 != 0x81 {
		t.Fatalf("D019 = %02x, want bits 7 and 0", got)
	}
	b.Write(0xD019, bus.IRQRaster)
	if b.IRQ() {
		t.Fatal("IRQ still pending after acknowledge")
	}
}

func TestCycleHook(t *testing.T) {
	m := New(Config{})
	m.SetCycleHook(func(y uint16, cycle int, b *bus.Bus) {
		switch {
		case y == 0x80 && cycle == 1:
			b.Write(0xD020, vic.Red)
		case y == 0x81 && cycle == 1:
			b.Write(0xD020, vic.LightBlue)
			b.Write(0xD021, vic.Blue)
		case y == 0x80 && cycle == 30:
			b.Write(0xD021, vic.Black)
		}
	})
	m.StepFrame()

	y := row(m, 0x80)
	expectPixel(t, m, 0, y-1, vic.LightBlue)
	expectPixel(t, m, 0, y, vic.Red)
	expectPixel(t, m, 383, y, vic.Red)
	expectPixel(t, m, 0, y+1, vic.LightBlue)

	// the background change shows up with the second pixel of cycle 30
	x := (30 - vic.FirstCanvasCycle) * 8
	expectPixel(t, m, x, y, vic.Blue)
	expectPixel(t, m, x+1, y, vic.Black)
	expectPixel(t, m, 300, y, vic.Black)
	expectPixel(t, m, 300, y+1, vic.Blue)
}

func TestFrameDigest(t *testing.T) {
	a, b := New(Config{}), New(Config{})
	a.StepFrame()
	b.StepFrame()
	if a.FrameDigest() != b.FrameDigest() {
		t.Fatalf("digests differ: %016x vs %016x", a.FrameDigest(), b.FrameDigest())
	}
	b.Bus().Write(0xD020, vic.Black)
	b.StepFrame()
	if a.FrameDigest() == b.FrameDigest() {
		t.Fatal("digest did not change with the border color")
	}

	c := New(Config{Palette: vic.Pepto})
	c.StepFrame()
	if c.FrameDigest() == a.FrameDigest() {
		t.Fatal("digest did not change with the palette")
	}
}

func TestScreenshot(t *testing.T) {
	m := New(Config{})
	m.StepFrame()
	img := m.Screenshot(2)
	if img.Bounds().Dx() != 768 || img.Bounds().Dy() != 568 {
		t.Fatalf("bounds = %v, want 768x568", img.Bounds())
	}
	r, g, b, a := vic.Unpack(pixelAt(m, 0, 0))
	c := img.RGBAAt(1, 1)
	if c.R != r || c.G != g || c.B != b || c.A != a {
		t.Fatalf("scaled pixel = %v, want %d,%d,%d,%d", c, r, g, b, a)
	}
	if got := m.Screenshot(0).Bounds().Dx(); got != 384 {
		t.Fatalf("scale 0 width = %d, want 384", got)
	}
}

func TestStateRoundTrip(t *testing.T) {
	m := New(Config{})
	withCharset(m)
	m.Bus().Write(0xD015, 0x01)
	m.Bus().Write(0xD001, 0x60)
	m.InsertDisk(disk.New(disk.EncoderConfig{}))
	m.StepFrame()
	state := m.SaveState()

	m.StepFrame()
	want := m.FrameDigest()

	other := New(Config{})
	if err := other.LoadState(state); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if other.Disk() == nil {
		t.Fatal("disk lost")
	}
	if other.Frame() != 1 {
		t.Fatalf("Frame() = %d, want 1", other.Frame())
	}
	other.StepFrame()
	if got := other.FrameDigest(); got != want {
		t.Fatalf("digest after restore = %016x, want %016x", got, want)
	}

	if err := other.LoadState([]byte("garbage")); err == nil {
		t.Fatal("LoadState accepted garbage")
	}
}

func TestStateFile(t *testing.T) {
	m := New(Config{})
	m.StepFrame()
	path := filepath.Join(t.TempDir(), "c64.state")
	if err := m.SaveStateToFile(path); err != nil {
		t.Fatal(err)
	}
	other := New(Config{})
	if err := other.LoadStateFromFile(path); err != nil {
		t.Fatal(err)
	}
	if y, c := other.Position(); y != 0 || c != 1 || other.Frame() != 1 {
		t.Fatalf("restored position (%d,%d) frame %d", y, c, other.Frame())
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	m := New(Config{})
	typ, err := m.LoadFile(write("demo.prg", []byte{0x00, 0xC0, 1, 2, 3}))
	if err != nil || typ != loader.TypePRG {
		t.Fatalf("LoadFile(prg) = %v, %v", typ, err)
	}
	if m.Bus().Peek(0xC000) != 1 || m.Bus().Peek(0xC002) != 3 {
		t.Fatal("program not in memory")
	}

	a, err := d64.New(35)
	if err != nil {
		t.Fatal(err)
	}
	a.Format("TEST", [2]byte{'4', '2'})
	typ, err = m.LoadFile(write("test.d64", a.Bytes()))
	if err != nil || typ != loader.TypeD64 {
		t.Fatalf("LoadFile(d64) = %v, %v", typ, err)
	}
	if m.Disk() == nil || m.Disk().NumTracks() != 35 {
		t.Fatal("disk not inserted")
	}

	if _, err := m.LoadFile(write("notes.txt", []byte("hello"))); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("LoadFile(txt) error = %v, want ErrUnsupportedFile", err)
	}
	if _, err := m.LoadFile(filepath.Join(dir, "missing.prg")); err == nil {
		t.Fatal("LoadFile accepted a missing file")
	}
}
