// Package vic synthesizes the pixels of the VIC-II video chip.
//
// The PixelEngine does not model registers or raster timing itself. A timing
// model drives it once per cycle: PrepareForCycle latches the chip state that
// was valid at the start of the cycle, DrawCanvas and DrawBorder then produce
// the 8 pixels of the cycle. Both draw calls receive the chip state as it
// looks after the CPU had its share of the cycle, which is how register
// writes become visible in the middle of a cycle.
package vic

import "fmt"

// Layer depths. Smaller values are closer to the viewer.
const (
	BorderLayerDepth           = 0x10
	SpriteForegroundLayerDepth = 0x20 // + sprite number
	ForegroundLayerDepth       = 0x30
	SpriteBackgroundLayerDepth = 0x40 // + sprite number
	BackgroundLayerDepth       = 0x50

	farAway = 0x7F
)

// pixel source bit set by foreground graphics
const foregroundSource = 0x80

// In 38 column mode the right border starts with the last pixel of this cycle.
const borderOnCycle38 = 55

// ChipState is the part of the VIC-II state the pixel engine reads.
type ChipState struct {
	XCounter uint16
	YCounter uint16

	VerticalFrameFF bool
	MainFrameFF     bool

	// result of the last g-access
	GData      uint8
	GCharacter uint8
	GColor     uint8
	GMode      uint8

	HorizontalScroll uint8 // D016 bits 0..2

	D011 uint8
	D016 uint8

	BorderColor     uint8
	BackgroundColor [4]uint8
}

// Collider receives the collisions detected while drawing sprites.
type Collider interface {
	SpriteSpriteCollision(mask uint8)
	SpriteBackgroundCollision(mask uint8)
}

// displayCycle is the chip state latched for the cycle being drawn.
type displayCycle struct {
	cycle    uint8
	xCounter uint16
	yCounter uint16

	verticalFrameFF bool
	mainFrameFF     bool

	data      uint8
	character uint8
	color     uint8
	mode      uint8
	delay     uint8

	borderColor     uint8
	backgroundColor [4]uint8

	// delayed copies of the mode bits (ECM|BMM and MCM)
	d011 uint8
	d016 uint8
}

type shiftRegister struct {
	data             uint8
	latchedCharacter uint8
	latchedColor     uint8
	mcFlop           bool  // multicolor synchronization flip-flop
	colorBits        uint8 // last two bits read in multicolor mode
}

// PixelEngine renders VIC-II output into a pair of frame buffers.
type PixelEngine struct {
	spec     Spec
	width    int
	height   int
	collider Collider

	spriteSpriteCollisions     bool
	spriteBackgroundCollisions bool

	scheme ColorScheme
	colors [16]uint32

	dc displayCycle
	sr shiftRegister

	// colors of the current display mode, see loadColors
	colRGBA  [4]uint32
	multicol bool

	buffers [2][]uint32
	current int // index of the buffer being drawn
	row     int
	line    []uint32

	zBuffer     []uint8
	pixelSource []uint8
}

// New returns a pixel engine for the given geometry. collider may be nil.
func New(spec Spec, collider Collider) *PixelEngine {
	p := &PixelEngine{
		spec:                       spec,
		width:                      spec.Width(),
		height:                     spec.Height(),
		collider:                   collider,
		spriteSpriteCollisions:     true,
		spriteBackgroundCollisions: true,
	}
	p.zBuffer = make([]uint8, p.width)
	p.pixelSource = make([]uint8, p.width)
	for i := range p.buffers {
		p.buffers[i] = make([]uint32, p.width*p.height)
	}
	if err := p.SetColorScheme(CCS64); err != nil {
		panic(err)
	}
	for _, buf := range p.buffers {
		for i := range buf {
			buf[i] = p.colors[Blue]
		}
	}
	p.line = p.buffers[0][:p.width]
	return p
}

// Reset clears the latches and restarts drawing at the top of the first
// buffer. Buffer contents are kept.
func (p *PixelEngine) Reset() {
	p.dc = displayCycle{}
	p.sr = shiftRegister{}
	p.current = 0
	p.row = 0
	p.line = p.buffers[0][:p.width]
}

// Spec returns the geometry the engine was created with.
func (p *PixelEngine) Spec() Spec { return p.spec }

// Width returns the number of pixels per line.
func (p *PixelEngine) Width() int { return p.width }

// Height returns the number of lines per frame.
func (p *PixelEngine) Height() int { return p.height }

// Row returns the line of the drawing buffer written next.
func (p *PixelEngine) Row() int { return p.row }

// SetCollisionDetection enables or disables the two collision checks.
func (p *PixelEngine) SetCollisionDetection(spriteSprite, spriteBackground bool) {
	p.spriteSpriteCollisions = spriteSprite
	p.spriteBackgroundCollisions = spriteBackground
}

// SetColorScheme selects the palette used for all following pixels.
func (p *PixelEngine) SetColorScheme(scheme ColorScheme) error {
	colors, err := Palette(scheme)
	if err != nil {
		return err
	}
	p.scheme = scheme
	p.colors = colors
	return nil
}

// ColorScheme returns the active palette.
func (p *PixelEngine) ColorScheme() ColorScheme { return p.scheme }

// Color returns the frame buffer value of VIC color c.
func (p *PixelEngine) Color(c uint8) uint32 { return p.colors[c&0x0F] }

// Screen returns the last completed frame. It stays untouched until the
// frame after the current one is completed.
func (p *PixelEngine) Screen() []uint32 { return p.buffers[p.current^1] }

// DrawingBuffer returns the frame being drawn.
func (p *PixelEngine) DrawingBuffer() []uint32 { return p.buffers[p.current] }

//
// Frame and line bookkeeping
//

// BeginFrame starts drawing at the top of the drawing buffer.
func (p *PixelEngine) BeginFrame() {
	p.row = 0
	p.line = p.buffers[p.current][:p.width]
}

// BeginRasterline prepares the engine for a new visible line.
func (p *PixelEngine) BeginRasterline() {
	if p.row >= p.height {
		panic(fmt.Sprintf("vic: frame buffer overrun at row %d", p.row))
	}
	for i := range p.zBuffer {
		p.zBuffer[i] = farAway
	}
	for i := range p.pixelSource {
		p.pixelSource[i] = 0
	}
	p.line = p.buffers[p.current][p.row*p.width : (p.row+1)*p.width]
	p.sr.data = 0
}

// EndRasterline advances to the next line of the drawing buffer.
func (p *PixelEngine) EndRasterline() {
	p.row++
	if p.row > p.height {
		panic(fmt.Sprintf("vic: frame buffer overrun at row %d", p.row))
	}
}

// EndFrame swaps the two buffers. The completed frame becomes the screen.
func (p *PixelEngine) EndFrame() {
	p.current ^= 1
	p.BeginFrame()
}

//
// State latching
//

// PrepareForCycle latches the chip state at the beginning of a cycle.
// Colors and the mode bits are latched separately while drawing.
func (p *PixelEngine) PrepareForCycle(cycle uint8, s ChipState) {
	p.dc.cycle = cycle
	p.dc.yCounter = s.YCounter
	p.dc.xCounter = s.XCounter
	p.dc.verticalFrameFF = s.VerticalFrameFF
	p.dc.mainFrameFF = s.MainFrameFF
	p.dc.data = s.GData
	p.dc.character = s.GCharacter
	p.dc.color = s.GColor
	p.dc.mode = s.GMode
	p.dc.delay = s.HorizontalScroll & 0x07
}

// UpdateColorRegisters latches the border and background colors.
func (p *PixelEngine) UpdateColorRegisters(s ChipState) {
	p.dc.borderColor = s.BorderColor & 0x0F
	for i, c := range s.BackgroundColor {
		p.dc.backgroundColor[i] = c & 0x0F
	}
}

// UpdateModeRegisters latches the ECM, BMM and MCM bits.
func (p *PixelEngine) UpdateModeRegisters(s ChipState) {
	p.dc.d011 = s.D011 & 0x60
	p.dc.d016 = s.D016 & 0x10
}

// xCoord returns the buffer offset of the first pixel of the latched cycle.
func (p *PixelEngine) xCoord() int {
	return int(p.dc.xCounter - xCounterAtFirstTextCycle + uint16(p.spec.LeftBorderWidth))
}

//
// Drawing
//

// DrawCanvas draws the 8 graphics pixels of the latched cycle. live is the
// chip state after the CPU half of the cycle.
func (p *PixelEngine) DrawCanvas(live ChipState) {
	if !p.spec.IsVisibleCycle(int(p.dc.cycle)) {
		panic(fmt.Sprintf("vic: canvas drawn in cycle %d", p.dc.cycle))
	}
	x := p.xCoord()

	// With the vertical frame flip-flop set the sequencer outputs the
	// current background color. The border usually covers it.
	if p.dc.verticalFrameFF {
		rgba := p.colors[live.BackgroundColor[0]&0x0F]
		for i := 0; i < 8; i++ {
			p.setBackgroundPixel(x+i, rgba)
		}
		// the mode bits keep following the registers behind the frame
		p.UpdateModeRegisters(live)
		return
	}

	p.drawCanvasPixel(x, 0)

	// color changes show up with the second pixel
	p.UpdateColorRegisters(live)

	p.drawCanvasPixel(x+1, 1)
	p.drawCanvasPixel(x+2, 2)
	p.drawCanvasPixel(x+3, 3)

	// MCM and the one bits of ECM/BMM show up with the fifth pixel
	p.dc.d016 = live.D016 & 0x10
	p.dc.d011 |= live.D011 & 0x60

	p.drawCanvasPixel(x+4, 4)
	p.drawCanvasPixel(x+5, 5)

	// the zero bits of ECM/BMM show up with the seventh pixel
	p.dc.d011 &= live.D011 & 0x60

	p.drawCanvasPixel(x+6, 6)
	p.drawCanvasPixel(x+7, 7)
}

func (p *PixelEngine) drawCanvasPixel(offset int, pixel uint8) {
	if pixel == p.dc.delay {
		p.sr.data = p.dc.data
		p.sr.latchedCharacter = p.dc.character
		p.sr.latchedColor = p.dc.color
		p.sr.mcFlop = true
	}

	mode := DisplayMode((p.dc.d011 & 0x60) | (p.dc.d016 & 0x10))
	p.loadColors(mode, p.sr.latchedCharacter, p.sr.latchedColor)

	if p.multicol {
		if p.sr.mcFlop {
			p.sr.colorBits = p.sr.data >> 6
		}
		p.setMultiColorPixel(offset, p.sr.colorBits)
	} else {
		p.setSingleColorPixel(offset, p.sr.data>>7)
	}

	p.sr.data <<= 1
	p.sr.mcFlop = !p.sr.mcFlop
}

// DrawBorder draws the border pixels of the latched cycle. live is the chip
// state after the CPU half of the cycle.
func (p *PixelEngine) DrawBorder(live ChipState) {
	x := p.xCoord()

	// 38 column mode: the main frame flip-flop flips inside the cycle
	if p.dc.cycle == FirstTextCycle && p.dc.mainFrameFF && !live.MainFrameFF {
		rgba := p.colors[p.dc.borderColor]
		for i := 0; i < 7; i++ {
			p.setFramePixel(x+i, rgba)
		}
		return
	}
	if p.dc.cycle == borderOnCycle38 && !p.dc.mainFrameFF && live.MainFrameFF {
		p.setFramePixel(x+7, p.colors[p.dc.borderColor])
		return
	}

	if p.dc.mainFrameFF {
		p.setFramePixel(x, p.colors[p.dc.borderColor])
		p.UpdateColorRegisters(live)
		rgba := p.colors[p.dc.borderColor]
		for i := 1; i < 8; i++ {
			p.setFramePixel(x+i, rgba)
		}
	}
}

// DrawSpritePixel draws a pixel of sprite nr at offset of the current line.
// behind selects the sprite-behind-foreground priority. Collisions with
// previously drawn sprites and foreground pixels are reported to the
// collider; the border hides foreground pixels from the collision logic.
func (p *PixelEngine) DrawSpritePixel(offset int, color uint8, nr int, behind bool) {
	if offset < 0 || offset >= p.width {
		return
	}
	mask := uint8(1) << uint(nr)

	if p.collider != nil {
		if p.spriteSpriteCollisions && p.pixelSource[offset]&0x7F != 0 {
			p.collider.SpriteSpriteCollision(p.pixelSource[offset]&0x7F | mask)
		}
		if p.spriteBackgroundCollisions && p.pixelSource[offset]&foregroundSource != 0 {
			p.collider.SpriteBackgroundCollision(mask)
		}
	}

	// bit 7 of the source marks foreground graphics
	if nr == 7 {
		mask = 0
	}

	depth := uint8(SpriteForegroundLayerDepth + nr)
	if behind {
		depth = uint8(SpriteBackgroundLayerDepth + nr)
	}
	p.setSpritePixel(offset, p.colors[color&0x0F], depth, mask)
}

// MarkLine paints pixels [start, end) of the current line. It is used to
// make rasterlines visible while debugging.
func (p *PixelEngine) MarkLine(color uint8, start, end int) {
	if start < 0 || end > p.width {
		panic(fmt.Sprintf("vic: mark [%d, %d) outside line", start, end))
	}
	rgba := p.colors[color&0x0F]
	for i := start; i < end; i++ {
		p.line[i] = rgba
	}
}

//
// Pixel level
//

func (p *PixelEngine) setSingleColorPixel(offset int, bit uint8) {
	rgba := p.colRGBA[bit]
	if bit != 0 {
		p.setForegroundPixel(offset, rgba)
	} else {
		p.setBackgroundPixel(offset, rgba)
	}
}

func (p *PixelEngine) setMultiColorPixel(offset int, twoBits uint8) {
	rgba := p.colRGBA[twoBits]
	if twoBits&0x02 != 0 {
		p.setForegroundPixel(offset, rgba)
	} else {
		p.setBackgroundPixel(offset, rgba)
	}
}

func (p *PixelEngine) setFramePixel(offset int, rgba uint32) {
	p.zBuffer[offset] = BorderLayerDepth
	p.line[offset] = rgba
	p.pixelSource[offset] &^= foregroundSource
}

func (p *PixelEngine) setForegroundPixel(offset int, rgba uint32) {
	if ForegroundLayerDepth <= p.zBuffer[offset] {
		p.zBuffer[offset] = ForegroundLayerDepth
		p.line[offset] = rgba
		p.pixelSource[offset] |= foregroundSource
	}
}

func (p *PixelEngine) setBackgroundPixel(offset int, rgba uint32) {
	if BackgroundLayerDepth <= p.zBuffer[offset] {
		p.zBuffer[offset] = BackgroundLayerDepth
		p.line[offset] = rgba
	}
}

func (p *PixelEngine) setSpritePixel(offset int, rgba uint32, depth, source uint8) {
	if depth <= p.zBuffer[offset] {
		p.zBuffer[offset] = depth
		p.line[offset] = rgba
	}
	p.pixelSource[offset] |= source
}
