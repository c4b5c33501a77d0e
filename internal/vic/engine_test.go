package vic

import (
	"bytes"
	"errors"
	"testing"
)

type collisions struct {
	spriteSprite     []uint8
	spriteBackground []uint8
}

func (c *collisions) SpriteSpriteCollision(mask uint8) { c.spriteSprite = append(c.spriteSprite, mask) }
func (c *collisions) SpriteBackgroundCollision(mask uint8) { c.spriteBackground = append(c.spriteBackground, mask) }

// textState returns the state of a standard text cycle with background 6.
func textState(cycle int, data, color uint8) ChipState {
	s := ChipState{
		XCounter:    SpecPAL.XCounter(cycle),
		YCounter:    0x80,
		GData:       data,
		GColor:      color,
		D011:        0x1B,
		D016:        0x08,
		BorderColor: LightBlue,
	}
	s.BackgroundColor[0] = Blue
	return s
}

// drawCycle latches s and draws the canvas with live as the updated state.
// Both states are moved to the x position of cycle.
func drawCycle(p *PixelEngine, cycle int, s, live ChipState) {
	s.XCounter = SpecPAL.XCounter(cycle)
	live.XCounter = s.XCounter
	p.PrepareForCycle(uint8(cycle), s)
	p.DrawCanvas(live)
}

func newEngine(t *testing.T) (*PixelEngine, *collisions) {
	t.Helper()
	c := &collisions{}
	p := New(SpecPAL, c)
	p.BeginRasterline()
	return p, c
}

func pixelX(cycle int) int { return (cycle - FirstCanvasCycle) * 8 }

func (p *PixelEngine) pixel(x int) uint32 { return p.DrawingBuffer()[p.Row()*p.Width()+x] }

func expectColors(t *testing.T, p *PixelEngine, x int, want []uint8) {
	t.Helper()
	for i, c := range want {
		if got := p.pixel(x + i); got != p.Color(c) {
			t.Fatalf("pixel %d = %#08x, want color %d (%#08x)", i, got, c, p.Color(c))
		}
	}
}

func TestGeometry(t *testing.T) {
	if SpecPAL.Width() != 384 || SpecPAL.Height() != 284 {
		t.Fatalf("PAL screen %dx%d", SpecPAL.Width(), SpecPAL.Height())
	}
	if SpecPAL.LeftBorderWidth != 32 {
		t.Fatalf("left border = %d", SpecPAL.LeftBorderWidth)
	}
	if SpecPAL.XCounter(17) != 28 || SpecPAL.XCounter(18) != 36 {
		t.Fatalf("XCounter mismatch")
	}
	if SpecNTSC.CyclesPerLine != 65 || SpecNTSC.LinesPerFrame != 263 {
		t.Fatalf("NTSC timing mismatch")
	}
	if SpecNTSC.Height() >= SpecPAL.Height() {
		t.Fatalf("NTSC screen should be lower than PAL")
	}
}

func TestStandardTextPixels(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0xB2, White)
	p.UpdateColorRegisters(s)
	drawCycle(p, 20, s, s)
	expectColors(t, p, pixelX(20), []uint8{White, Blue, White, White, Blue, Blue, White, Blue})

	s.GData = 0xB0
	drawCycle(p, 21, s, s)
	expectColors(t, p, pixelX(21), []uint8{White, Blue, White, White, Blue, Blue, Blue, Blue})
}

func TestFirstCanvasCycleStartsLine(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(FirstCanvasCycle, 0xFF, Red)
	p.UpdateColorRegisters(s)
	drawCycle(p, FirstCanvasCycle, s, s)
	if p.pixel(0) != p.Color(Red) || p.pixel(7) != p.Color(Red) {
		t.Fatalf("cycle 13 does not cover pixels 0..7")
	}
	last := textState(LastCanvasCycle, 0xFF, Green)
	drawCycle(p, LastCanvasCycle, last, last)
	if p.pixel(p.Width()-1) != p.Color(Green) {
		t.Fatalf("cycle 60 does not end the line")
	}
}

func TestHorizontalScrollDelaysReload(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0xB0, White)
	s.HorizontalScroll = 3
	p.UpdateColorRegisters(s)
	drawCycle(p, 20, s, s)
	expectColors(t, p, pixelX(20), []uint8{Blue, Blue, Blue, White, Blue, White, White, Blue})
}

func TestColorChangeVisibleFromSecondPixel(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0x00, White)
	p.UpdateColorRegisters(s)
	live := s
	live.BackgroundColor[0] = Red
	drawCycle(p, 20, s, live)
	expectColors(t, p, pixelX(20), []uint8{Blue, Red, Red, Red, Red, Red, Red, Red})
}

func TestModeBitsLatchedMidCycle(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0xFF, White)
	s.GCharacter = 0x5E
	p.UpdateColorRegisters(s)

	// text -> bitmap: one bits appear with the fifth pixel
	live := s
	live.D011 = 0x3B
	drawCycle(p, 20, s, live)
	expectColors(t, p, pixelX(20), []uint8{White, White, White, White, Green, Green, Green, Green})

	// bitmap -> text: zero bits appear with the seventh pixel
	next := textState(21, 0xFF, White)
	next.GCharacter = 0x5E
	drawCycle(p, 21, next, next)
	expectColors(t, p, pixelX(21), []uint8{Green, Green, Green, Green, Green, Green, White, White})
}

func TestMulticolorText(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0x1B, 0x08|Cyan)
	s.D016 = 0x18
	s.BackgroundColor = [4]uint8{Blue, Red, Green, Black}
	p.UpdateColorRegisters(s)
	drawCycle(p, 20, s, s) // latches MCM
	drawCycle(p, 21, s, s)
	expectColors(t, p, pixelX(21), []uint8{Blue, Blue, Red, Red, Green, Green, Cyan, Cyan})

	// without the MC flag the character is drawn in single color
	s.GColor = Cyan
	drawCycle(p, 22, s, s)
	expectColors(t, p, pixelX(22), []uint8{Blue, Blue, Blue, Cyan, Cyan, Blue, Cyan, Cyan})
}

func TestMulticolorBitmap(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0x1B, Yellow)
	s.GCharacter = 0x25
	s.D011 = 0x3B
	s.D016 = 0x18
	p.UpdateColorRegisters(s)
	drawCycle(p, 20, s, s)
	drawCycle(p, 21, s, s)
	expectColors(t, p, pixelX(21), []uint8{Blue, Blue, Red, Red, Green, Green, Yellow, Yellow})
}

func TestExtendedBackgroundAndInvalidModes(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0x0F, White)
	s.GCharacter = 0xC1
	s.D011 = 0x5B
	s.BackgroundColor = [4]uint8{Blue, Red, Green, Purple}
	p.UpdateColorRegisters(s)
	drawCycle(p, 20, s, s)
	drawCycle(p, 21, s, s)
	expectColors(t, p, pixelX(21), []uint8{Purple, Purple, Purple, Purple, White, White, White, White})

	s.D011 = 0x7B
	drawCycle(p, 22, s, s)
	drawCycle(p, 23, s, s)
	expectColors(t, p, pixelX(23), []uint8{Black, Black, Black, Black, Black, Black, Black, Black})
}

func TestVerticalFrameDrawsBackground(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0xFF, White)
	s.VerticalFrameFF = true
	p.UpdateColorRegisters(s)
	live := s
	live.BackgroundColor[0] = Brown
	drawCycle(p, 20, s, live)
	expectColors(t, p, pixelX(20), []uint8{Brown, Brown, Brown, Brown, Brown, Brown, Brown, Brown})
}

func TestModeLatchedUnderVerticalFrame(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0xF0, White)
	s.GCharacter = 0x25
	s.VerticalFrameFF = true
	p.UpdateColorRegisters(s)

	// bitmap mode switched on while the vertical frame flip-flop is set
	live := s
	live.D011 = 0x3B
	drawCycle(p, 20, s, live)

	// the first canvas cycle shows bitmap colors from its first pixel
	s.D011 = 0x3B
	s.VerticalFrameFF = false
	drawCycle(p, 21, s, s)
	expectColors(t, p, pixelX(21), []uint8{Red, Red, Red, Red, Green, Green, Green, Green})
}

func TestUpdateModeRegisters(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0xF0, White)
	s.GCharacter = 0x25
	s.D011 = 0x3B
	p.UpdateColorRegisters(s)
	p.UpdateModeRegisters(s)
	drawCycle(p, 20, s, s)
	expectColors(t, p, pixelX(20), []uint8{Red, Red, Red, Red, Green, Green, Green, Green})
}

func TestBorder(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(30, 0xFF, White)
	s.MainFrameFF = true
	p.UpdateColorRegisters(s)
	live := s
	live.BorderColor = Yellow
	p.PrepareForCycle(30, s)
	p.DrawBorder(live)
	expectColors(t, p, pixelX(30), []uint8{LightBlue, Yellow, Yellow, Yellow, Yellow, Yellow, Yellow, Yellow})

	// cleared flip-flop leaves the canvas alone
	s.MainFrameFF = false
	drawCycle(p, 31, s, s)
	p.DrawBorder(s)
	expectColors(t, p, pixelX(31), []uint8{White, White, White, White, White, White, White, White})
}

func TestBorder38Columns(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(FirstTextCycle, 0xFF, White)
	s.MainFrameFF = true
	p.UpdateColorRegisters(s)
	live := s
	live.MainFrameFF = false
	drawCycle(p, FirstTextCycle, s, live)
	p.DrawBorder(live)
	expectColors(t, p, pixelX(FirstTextCycle), []uint8{LightBlue, LightBlue, LightBlue, LightBlue, LightBlue, LightBlue, LightBlue, White})

	s = textState(55, 0xFF, White)
	live = s
	live.MainFrameFF = true
	drawCycle(p, 55, s, live)
	p.DrawBorder(live)
	expectColors(t, p, pixelX(55), []uint8{White, White, White, White, White, White, White, LightBlue})
}

func TestSpriteDepth(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0xB0, White)
	p.UpdateColorRegisters(s)
	drawCycle(p, 20, s, s)
	x := pixelX(20)

	// behind foreground: hidden by pixel 0, visible over background pixel 1
	p.DrawSpritePixel(x, Red, 2, true)
	p.DrawSpritePixel(x+1, Red, 2, true)
	if p.pixel(x) != p.Color(White) {
		t.Fatalf("background sprite overwrote foreground")
	}
	if p.pixel(x+1) != p.Color(Red) {
		t.Fatalf("background sprite hidden by background graphics")
	}

	// in front of foreground
	p.DrawSpritePixel(x+2, Green, 3, false)
	if p.pixel(x+2) != p.Color(Green) {
		t.Fatalf("foreground sprite hidden")
	}

	// lower sprite numbers win
	p.DrawSpritePixel(x+4, Cyan, 1, false)
	p.DrawSpritePixel(x+4, Purple, 5, false)
	if p.pixel(x+4) != p.Color(Cyan) {
		t.Fatalf("sprite 5 drawn over sprite 1")
	}

	// border hides everything
	b := textState(21, 0, White)
	b.MainFrameFF = true
	drawCycle(p, 21, b, b)
	p.DrawBorder(b)
	p.DrawSpritePixel(pixelX(21), Red, 0, false)
	if p.pixel(pixelX(21)) != p.Color(LightBlue) {
		t.Fatalf("sprite drawn over border")
	}
}

func TestSpriteCollisions(t *testing.T) {
	p, c := newEngine(t)
	s := textState(20, 0x80, White)
	p.UpdateColorRegisters(s)
	drawCycle(p, 20, s, s)
	x := pixelX(20)

	p.DrawSpritePixel(x, Red, 0, false) // over foreground
	if len(c.spriteBackground) != 1 || c.spriteBackground[0] != 0x01 {
		t.Fatalf("sprite/background collisions = %v", c.spriteBackground)
	}
	p.DrawSpritePixel(x+1, Red, 2, false)
	p.DrawSpritePixel(x+1, Red, 4, false)
	if len(c.spriteSprite) != 1 || c.spriteSprite[0] != 0x14 {
		t.Fatalf("sprite/sprite collisions = %v", c.spriteSprite)
	}

	// sprite 7 does not leave a trace in the source buffer
	p.DrawSpritePixel(x+2, Red, 7, false)
	p.DrawSpritePixel(x+2, Red, 1, false)
	if len(c.spriteSprite) != 1 {
		t.Fatalf("unexpected collision with sprite 7: %v", c.spriteSprite)
	}

	p.SetCollisionDetection(false, false)
	p.DrawSpritePixel(x, Red, 3, false)
	if len(c.spriteSprite) != 1 || len(c.spriteBackground) != 1 {
		t.Fatalf("collisions reported while disabled")
	}
}

func TestBorderHidesForegroundFromCollisions(t *testing.T) {
	p, c := newEngine(t)
	s := textState(20, 0xFF, White)
	s.MainFrameFF = true
	p.UpdateColorRegisters(s)
	drawCycle(p, 20, s, s)
	p.DrawBorder(s)
	p.DrawSpritePixel(pixelX(20), Red, 0, false)
	if len(c.spriteBackground) != 0 {
		t.Fatalf("collision with foreground under the border")
	}
}

func TestEndFrameSwapsBuffers(t *testing.T) {
	p := New(SpecPAL, nil)
	first := &p.DrawingBuffer()[0]
	p.EndFrame()
	if &p.Screen()[0] != first {
		t.Fatalf("completed frame is not the screen")
	}
	second := &p.DrawingBuffer()[0]
	if second == first {
		t.Fatalf("drawing into the displayed buffer")
	}
	p.EndFrame()
	if &p.DrawingBuffer()[0] != first || &p.Screen()[0] != second {
		t.Fatalf("buffers do not alternate")
	}
	if p.Row() != 0 {
		t.Fatalf("row = %d after EndFrame", p.Row())
	}
}

func TestFrameIsDrawnIntoDrawingBuffer(t *testing.T) {
	p := New(SpecPAL, nil)
	s := textState(20, 0xFF, Red)
	p.UpdateColorRegisters(s)
	for y := 0; y < p.Height(); y++ {
		p.BeginRasterline()
		drawCycle(p, 20, s, s)
		p.EndRasterline()
	}
	p.EndFrame()
	screen := p.Screen()
	last := (p.Height()-1)*p.Width() + pixelX(20)
	if screen[pixelX(20)] != p.Color(Red) || screen[last] != p.Color(Red) {
		t.Fatalf("frame not drawn")
	}
	if p.DrawingBuffer()[pixelX(20)] != p.Color(Blue) {
		t.Fatalf("fresh buffer does not hold the reset color")
	}
}

func TestRasterlineOverrunPanics(t *testing.T) {
	p := New(SpecNTSC, nil)
	for y := 0; y < p.Height(); y++ {
		p.BeginRasterline()
		p.EndRasterline()
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	p.BeginRasterline()
}

func TestMarkLine(t *testing.T) {
	p, _ := newEngine(t)
	p.MarkLine(Yellow, 10, 20)
	if p.pixel(9) == p.Color(Yellow) || p.pixel(10) != p.Color(Yellow) || p.pixel(19) != p.Color(Yellow) || p.pixel(20) == p.Color(Yellow) {
		t.Fatalf("MarkLine painted the wrong range")
	}
}

func TestStateRoundTrip(t *testing.T) {
	p, _ := newEngine(t)
	s := textState(20, 0x1B, 0x08|Cyan)
	s.D016 = 0x18
	s.HorizontalScroll = 5
	p.UpdateColorRegisters(s)
	drawCycle(p, 20, s, s)
	p.EndRasterline()
	if err := p.SetColorScheme(Pepto); err != nil {
		t.Fatalf("SetColorScheme: %v", err)
	}
	state := p.SaveState()
	if len(state) != p.StateSize() {
		t.Fatalf("SaveState produced %d bytes, StateSize %d", len(state), p.StateSize())
	}

	q := New(SpecPAL, nil)
	if err := q.LoadState(state); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if !bytes.Equal(q.SaveState(), state) {
		t.Fatalf("restored state differs")
	}
	if q.ColorScheme() != Pepto || q.Row() != 1 {
		t.Fatalf("scheme %v row %d", q.ColorScheme(), q.Row())
	}
	if err := q.LoadState(state[:10]); !errors.Is(err, ErrStateSize) {
		t.Fatalf("short snapshot: err = %v", err)
	}
}

func TestPalettes(t *testing.T) {
	if RGBA(0x11, 0x22, 0x33) != 0xFF332211 {
		t.Fatalf("RGBA packing = %#08x", RGBA(0x11, 0x22, 0x33))
	}
	r, g, b, a := Unpack(RGBA(1, 2, 3))
	if r != 1 || g != 2 || b != 3 || a != 0xFF {
		t.Fatalf("Unpack = %d %d %d %d", r, g, b, a)
	}
	for _, scheme := range []ColorScheme{CCS64, VICE, Frodo, PC64, C64S, Godot, Pepto, Grayscale} {
		pal, err := Palette(scheme)
		if err != nil {
			t.Fatalf("%v: %v", scheme, err)
		}
		if pal[White] == pal[Black] {
			t.Fatalf("%v: black equals white", scheme)
		}
		parsed, err := ParseColorScheme(scheme.String())
		if err != nil || parsed != scheme {
			t.Fatalf("ParseColorScheme(%q) = %v, %v", scheme.String(), parsed, err)
		}
	}
	gray, _ := Palette(Grayscale)
	for i, c := range gray {
		r, g, b, _ := Unpack(c)
		if r != g || g != b {
			t.Fatalf("grayscale color %d is not gray", i)
		}
	}
	if _, err := ParseColorScheme("amiga"); err == nil {
		t.Fatalf("expected error for unknown scheme")
	}
}
