package emu

import (
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/vic"
)

// Raster positions of the VIC-II timing model.
const (
	firstDMALine = 0x30
	lastDMALine  = 0xF7

	cycleVCReset   = 14 // VC := VCBASE, bad line c-accesses
	cycleRCUpdate  = 58 // RC / VCBASE / idle state update
	cycleBorder38R = 55 // right border in 38 column mode
	cycleBorder40R = 57 // right border in 40 column mode
)

// timing is the state of the raster timing model. Exported fields are
// serialized with gob.
type timing struct {
	Cycle int    // 1..CyclesPerLine
	Y     uint16 // rasterline
	Frame uint64

	VC, VCBase uint16
	RC         uint8
	VMLI       int
	Display    bool // display state (false: idle state)
	BadLine    bool
	DENSeen    bool // DEN was set in line $30

	MainFF     bool
	VerticalFF bool

	GData, GChar, GColor uint8

	Matrix [40]uint8 // video matrix line from the last bad line
	Colors [40]uint8

	Sprites [8]spriteUnit
}

type spriteUnit struct {
	Active bool
	Data   uint32 // 24 pixels of the current line
	MCBase uint8
	ExpFF  bool
}

func (m *Machine) d011() byte { return m.bus.Reg(bus.RegControl1) }
func (m *Machine) d016() byte { return m.bus.Reg(bus.RegControl2) }

func (m *Machine) matrixBase() uint16 { return uint16(m.bus.Reg(bus.RegMemory)&0xF0) << 6 }
func (m *Machine) charBase() uint16   { return uint16(m.bus.Reg(bus.RegMemory)&0x0E) << 10 }

// borderLines returns the top and bottom comparison lines for RSEL.
func (m *Machine) borderLines() (top, bottom uint16) {
	if m.d011()&0x08 != 0 {
		return 0x33, 0xFB
	}
	return 0x37, 0xF7
}

func (m *Machine) verticalCompare() {
	top, bottom := m.borderLines()
	if m.t.Y == bottom {
		m.t.VerticalFF = true
	}
	if m.t.Y == top && m.d011()&0x10 != 0 {
		m.t.VerticalFF = false
	}
}

func (m *Machine) leftCompare() {
	m.verticalCompare()
	if !m.t.VerticalFF {
		m.t.MainFF = false
	}
}

func (m *Machine) isBadLine() bool {
	y := m.t.Y
	return m.t.DENSeen && y >= firstDMALine && y <= lastDMALine && byte(y)&7 == m.d011()&7
}

// cAccess reads a line of the video matrix and color RAM.
func (m *Machine) cAccess() {
	base := m.matrixBase()
	for i := 0; i < 40; i++ {
		pos := (m.t.VC + uint16(i)) & 0x3FF
		m.t.Matrix[i] = m.bus.VICRead(base | pos)
		m.t.Colors[i] = m.bus.ColorRAM(pos)
	}
}

// gAccess fetches the graphics byte for the next 8 pixels.
func (m *Machine) gAccess() {
	ecm := m.d011()&0x40 != 0
	if !m.t.Display {
		addr := uint16(0x3FFF)
		if ecm {
			addr = 0x39FF
		}
		m.t.GData = m.bus.VICRead(addr)
		m.t.GChar, m.t.GColor = 0, 0
		return
	}

	char := m.t.Matrix[m.t.VMLI]
	var addr uint16
	if m.d011()&0x20 != 0 {
		addr = m.charBase()&0x2000 | (m.t.VC&0x3FF)<<3 | uint16(m.t.RC)
	} else {
		c := char
		if ecm {
			c &= 0x3F
		}
		addr = m.charBase() | uint16(c)<<3 | uint16(m.t.RC)
	}
	m.t.GData = m.bus.VICRead(addr)
	m.t.GChar = char
	m.t.GColor = m.t.Colors[m.t.VMLI]
	m.t.VC = (m.t.VC + 1) & 0x3FF
	m.t.VMLI++
}

// gMode returns the ECM/BMM/MCM combination at the time of the g-access.
func (m *Machine) gMode() uint8 { return m.d011()&0x60 | m.d016()&0x10 }

func (m *Machine) chipState() vic.ChipState {
	s := vic.ChipState{
		XCounter:         m.spec.XCounter(m.t.Cycle),
		YCounter:         m.t.Y,
		VerticalFrameFF:  m.t.VerticalFF,
		MainFrameFF:      m.t.MainFF,
		GData:            m.t.GData,
		GCharacter:       m.t.GChar,
		GColor:           m.t.GColor,
		GMode:            m.gMode(),
		HorizontalScroll: m.d016() & 0x07,
		D011:             m.d011(),
		D016:             m.d016(),
		BorderColor:      m.bus.Reg(bus.RegBorder),
	}
	for i := range s.BackgroundColor {
		s.BackgroundColor[i] = m.bus.Reg(bus.RegBackground + i)
	}
	return s
}

//
// Sprites
//

func (m *Machine) spriteX(n int) int {
	x := int(m.bus.Reg(bus.RegSprite0X + 2*n))
	if m.bus.Reg(bus.RegSpriteXMSB)&(1<<uint(n)) != 0 {
		x |= 0x100
	}
	return x
}

// startSpriteLine activates sprites whose Y coordinate matches and fetches
// their 3 data bytes for the line.
func (m *Machine) startSpriteLine() {
	enabled := m.bus.Reg(bus.RegSpriteOn)
	for n := range m.t.Sprites {
		sp := &m.t.Sprites[n]
		if !sp.Active && enabled&(1<<uint(n)) != 0 && byte(m.t.Y) == m.bus.Reg(bus.RegSprite0X+2*n+1) {
			sp.Active = true
			sp.MCBase = 0
			sp.ExpFF = true
		}
		if !sp.Active {
			continue
		}
		ptr := uint16(m.bus.VICRead(m.matrixBase()|0x3F8|uint16(n))) << 6
		addr := ptr + uint16(sp.MCBase)
		sp.Data = uint32(m.bus.VICRead(addr))<<16 | uint32(m.bus.VICRead(addr+1))<<8 | uint32(m.bus.VICRead(addr+2))
	}
}

// endSpriteLine advances the sprite data counters.
func (m *Machine) endSpriteLine() {
	yexp := m.bus.Reg(bus.RegSpriteYExp)
	for n := range m.t.Sprites {
		sp := &m.t.Sprites[n]
		if !sp.Active {
			continue
		}
		if yexp&(1<<uint(n)) != 0 {
			sp.ExpFF = !sp.ExpFF
		}
		if sp.ExpFF {
			sp.MCBase += 3
		}
		if sp.MCBase >= 63 {
			sp.Active = false
		}
	}
}

// spriteOffset is the distance between a buffer offset and the sprite
// coordinate shown there.
const spriteOffset = 8

// drawSprites draws the sprite pixels of the current cycle.
func (m *Machine) drawSprites() {
	x0 := (m.t.Cycle - m.spec.FirstVisibleCycle) * 8
	xexp := m.bus.Reg(bus.RegSpriteXExp)
	mc := m.bus.Reg(bus.RegSpriteMC)
	prio := m.bus.Reg(bus.RegSpritePrio)

	for n := range m.t.Sprites {
		sp := &m.t.Sprites[n]
		if !sp.Active {
			continue
		}
		bit := uint8(1) << uint(n)
		width, shift := 24, uint(0)
		if xexp&bit != 0 {
			width, shift = 48, 1
		}
		sx := m.spriteX(n)
		for i := 0; i < 8; i++ {
			rel := x0 + i - spriteOffset - sx
			if rel < 0 || rel >= width {
				continue
			}
			px := uint(rel) >> shift
			var color uint8
			if mc&bit != 0 {
				switch sp.Data >> (22 - 2*(px/2)) & 0x03 {
				case 0:
					continue
				case 1:
					color = m.bus.Reg(bus.RegSpriteMC0)
				case 2:
					color = m.bus.Reg(bus.RegSprite0Col + n)
				case 3:
					color = m.bus.Reg(bus.RegSpriteMC1)
				}
			} else {
				if sp.Data>>(23-px)&1 == 0 {
					continue
				}
				color = m.bus.Reg(bus.RegSprite0Col + n)
			}
			m.pe.DrawSpritePixel(x0+i, color, n, prio&bit != 0)
		}
	}
}
