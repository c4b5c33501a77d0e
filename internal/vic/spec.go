package vic

// Spec describes the raster geometry of a VIC-II model.
type Spec struct {
	ID string

	CyclesPerLine   int
	LinesPerFrame   int
	FramesPerSecond float64

	// first and last rasterline that reach the screen
	FirstVisibleLine int
	LastVisibleLine  int

	// first and last cycle whose pixels reach the screen; each cycle
	// produces 8 pixels
	FirstVisibleCycle int
	LastVisibleCycle  int

	// width of the left border in pixels, i.e. the number of pixels drawn
	// before the first pixel of the 40 column text area
	LeftBorderWidth int

	// first and last rasterline of the 25 row text area
	FirstDisplayLine int
	LastDisplayLine  int
}

// Geometry shared by both models. The first text column is output in
// cycle 17 where the x counter reads 28 (sprite coordinate 24 plus the
// pixel pipeline delay).
const (
	FirstCanvasCycle = 13
	LastCanvasCycle  = 60
	FirstTextCycle   = 17
	LastTextCycle    = 56

	xCounterAtFirstTextCycle = 28
)

// SpecPAL is the geometry of the 6569.
var SpecPAL = Spec{
	ID:                "PAL",
	CyclesPerLine:     63,
	LinesPerFrame:     312,
	FramesPerSecond:   50.125,
	FirstVisibleLine:  16,
	LastVisibleLine:   299,
	FirstVisibleCycle: FirstCanvasCycle,
	LastVisibleCycle:  LastCanvasCycle,
	LeftBorderWidth:   (FirstTextCycle - FirstCanvasCycle) * 8,
	FirstDisplayLine:  0x33,
	LastDisplayLine:   0xFA,
}

// SpecNTSC is the geometry of the 6567R8.
var SpecNTSC = Spec{
	ID:                "NTSC",
	CyclesPerLine:     65,
	LinesPerFrame:     263,
	FramesPerSecond:   59.826,
	FirstVisibleLine:  28,
	LastVisibleLine:   262,
	FirstVisibleCycle: FirstCanvasCycle,
	LastVisibleCycle:  LastCanvasCycle,
	LeftBorderWidth:   (FirstTextCycle - FirstCanvasCycle) * 8,
	FirstDisplayLine:  0x33,
	LastDisplayLine:   0xFA,
}

// Width returns the number of pixels per screen line.
func (s Spec) Width() int { return (s.LastVisibleCycle - s.FirstVisibleCycle + 1) * 8 }

// Height returns the number of visible rasterlines.
func (s Spec) Height() int { return s.LastVisibleLine - s.FirstVisibleLine + 1 }

// IsVisibleLine reports whether rasterline y reaches the screen.
func (s Spec) IsVisibleLine(y int) bool {
	return y >= s.FirstVisibleLine && y <= s.LastVisibleLine
}

// IsVisibleCycle reports whether cycle c produces pixels.
func (s Spec) IsVisibleCycle(c int) bool {
	return c >= s.FirstVisibleCycle && c <= s.LastVisibleCycle
}

// XCounter returns the value of the x counter during cycle c. Canvas
// cycles before the first text cycle wrap below zero; the pixel engine only
// uses the counter modulo 2^16.
func (s Spec) XCounter(c int) uint16 {
	return uint16(xCounterAtFirstTextCycle + (c-FirstTextCycle)*8)
}
