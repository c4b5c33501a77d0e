// Package bus holds the memory the VIC-II sees: 64K RAM, color RAM, the
// optional character ROM and the VIC register file at $D000-$D03F.
package bus

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// VIC register offsets
const (
	RegSprite0X   = 0x00
	RegSpriteXMSB = 0x10
	RegControl1   = 0x11 // D011: YSCROLL, RSEL, DEN, BMM, ECM, RST8
	RegRaster     = 0x12
	RegSpriteOn   = 0x15
	RegControl2   = 0x16 // D016: XSCROLL, CSEL, MCM
	RegSpriteYExp = 0x17
	RegMemory     = 0x18
	RegIRQ        = 0x19
	RegIRQEnable  = 0x1A
	RegSpritePrio = 0x1B
	RegSpriteMC   = 0x1C
	RegSpriteXExp = 0x1D
	RegSpriteColl = 0x1E // sprite/sprite collisions, cleared on read
	RegSpriteBg   = 0x1F // sprite/background collisions, cleared on read
	RegBorder     = 0x20
	RegBackground = 0x21 // 0x21..0x24
	RegSpriteMC0  = 0x25
	RegSpriteMC1  = 0x26
	RegSprite0Col = 0x27
)

// Interrupt sources in D019/D01A
const (
	IRQRaster           = 0x01
	IRQSpriteBackground = 0x02
	IRQSpriteSprite     = 0x04
	IRQLightpen         = 0x08
)

// ErrBadPRG is returned for program files that do not fit into memory.
var ErrBadPRG = errors.New("bus: invalid program file")

// unused register bits read back as 1
var regReadMask = [0x40]byte{
	0x16: 0xC0, 0x18: 0x01, 0x19: 0x70, 0x1A: 0xF0,
	0x20: 0xF0, 0x21: 0xF0, 0x22: 0xF0, 0x23: 0xF0, 0x24: 0xF0, 0x25: 0xF0, 0x26: 0xF0,
	0x27: 0xF0, 0x28: 0xF0, 0x29: 0xF0, 0x2A: 0xF0, 0x2B: 0xF0, 0x2C: 0xF0, 0x2D: 0xF0, 0x2E: 0xF0,
}

type Bus struct {
	ram      [0x10000]byte
	colorRAM [0x400]byte // 4 bit wide
	charROM  []byte      // nil: the VIC sees RAM at $1000/$9000

	regs [0x40]byte

	cia2PortA byte // $DD00, bits 0..1 select the VIC bank (inverted)

	raster        uint16 // current rasterline, set by the timing model
	rasterCompare uint16
}

func New() *Bus {
	b := &Bus{cia2PortA: 0x03}
	b.Reset()
	return b
}

// Reset clears the VIC registers and selects bank 0.
func (b *Bus) Reset() {
	b.regs = [0x40]byte{}
	b.regs[RegControl1] = 0x1B
	b.regs[RegControl2] = 0x08
	b.regs[RegMemory] = 0x14
	b.regs[RegBorder] = 0x0E
	b.regs[RegBackground] = 0x06
	b.cia2PortA = 0x03
	b.raster = 0
	b.rasterCompare = 0
}

// SetCharROM installs a 4K character generator image.
func (b *Bus) SetCharROM(rom []byte) error {
	if rom == nil {
		b.charROM = nil
		return nil
	}
	if len(rom) != 0x1000 {
		return fmt.Errorf("bus: character ROM has %d bytes, want 4096", len(rom))
	}
	b.charROM = append([]byte(nil), rom...)
	return nil
}

// Read returns the byte at addr as the CPU would see it with the I/O area
// banked in.
func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr >= 0xD000 && addr < 0xD400:
		return b.readRegister(byte(addr & 0x3F))
	case addr >= 0xD800 && addr < 0xDC00:
		return b.colorRAM[addr-0xD800] | 0xF0
	case addr == 0xDD00:
		return b.cia2PortA
	default:
		return b.ram[addr]
	}
}

// Write stores value at addr with the I/O area banked in.
func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr >= 0xD000 && addr < 0xD400:
		b.writeRegister(byte(addr&0x3F), value)
	case addr >= 0xD800 && addr < 0xDC00:
		b.colorRAM[addr-0xD800] = value & 0x0F
	case addr == 0xDD00:
		b.cia2PortA = value
	default:
		b.ram[addr] = value
	}
}

// Poke writes RAM below the I/O area.
func (b *Bus) Poke(addr uint16, value byte) { b.ram[addr] = value }

// Peek reads RAM below the I/O area.
func (b *Bus) Peek(addr uint16) byte { return b.ram[addr] }

func (b *Bus) readRegister(reg byte) byte {
	switch {
	case reg == RegControl1:
		return b.regs[reg]&0x7F | byte(b.raster>>1)&0x80
	case reg == RegRaster:
		return byte(b.raster)
	case reg == RegIRQ:
		v := b.regs[reg] | regReadMask[reg]
		if b.IRQ() {
			v |= 0x80
		}
		return v
	case reg == RegSpriteColl || reg == RegSpriteBg:
		v := b.regs[reg]
		b.regs[reg] = 0
		return v
	case reg >= 0x2F:
		return 0xFF
	}
	return b.regs[reg] | regReadMask[reg]
}

func (b *Bus) writeRegister(reg byte, value byte) {
	switch {
	case reg == RegControl1:
		b.regs[reg] = value
		b.rasterCompare = b.rasterCompare&0xFF | uint16(value&0x80)<<1
	case reg == RegRaster:
		b.rasterCompare = b.rasterCompare&0x100 | uint16(value)
	case reg == RegIRQ:
		// writing a one acknowledges the interrupt source
		b.regs[reg] &^= value & 0x0F
	case reg == RegIRQEnable:
		b.regs[reg] = value & 0x0F
	case reg == RegSpriteColl || reg == RegSpriteBg:
		// read only
	case reg >= 0x2F:
	default:
		b.regs[reg] = value
	}
}

// Reg returns the raw content of VIC register reg without side effects.
func (b *Bus) Reg(reg int) byte { return b.regs[reg&0x3F] }

// SetRaster publishes the current rasterline for D011/D012 reads.
func (b *Bus) SetRaster(y uint16) { b.raster = y }

// RasterCompare returns the rasterline an interrupt was requested for.
func (b *Bus) RasterCompare() uint16 { return b.rasterCompare }

// TriggerIRQ latches an interrupt source in D019.
func (b *Bus) TriggerIRQ(source byte) { b.regs[RegIRQ] |= source & 0x0F }

// IRQ reports whether an enabled interrupt source is pending.
func (b *Bus) IRQ() bool { return b.regs[RegIRQ]&b.regs[RegIRQEnable]&0x0F != 0 }

// SpriteSpriteCollision latches a sprite/sprite collision.
func (b *Bus) SpriteSpriteCollision(mask uint8) {
	b.regs[RegSpriteColl] |= mask
	b.TriggerIRQ(IRQSpriteSprite)
}

// SpriteBackgroundCollision latches a sprite/background collision.
func (b *Bus) SpriteBackgroundCollision(mask uint8) {
	b.regs[RegSpriteBg] |= mask
	b.TriggerIRQ(IRQSpriteBackground)
}

// BankBase returns the first address of the 16K window the VIC sees.
func (b *Bus) BankBase() uint16 { return uint16(3-b.cia2PortA&0x03) * 0x4000 }

// VICRead performs a VIC memory access. addr is relative to the bank.
// Banks 0 and 2 show the character ROM at $1000-$1FFF.
func (b *Bus) VICRead(addr uint16) byte {
	addr &= 0x3FFF
	base := b.BankBase()
	if b.charROM != nil && base&0x4000 == 0 && addr&0x3000 == 0x1000 {
		return b.charROM[addr&0x0FFF]
	}
	return b.ram[base+addr]
}

// ColorRAM returns the color nibble for video matrix position pos.
func (b *Bus) ColorRAM(pos uint16) byte { return b.colorRAM[pos&0x3FF] }

// LoadPRG copies a program file into RAM and returns its load address.
func (b *Bus) LoadPRG(prg []byte) (uint16, error) {
	if len(prg) < 2 {
		return 0, fmt.Errorf("%w: %d bytes", ErrBadPRG, len(prg))
	}
	start := binary.LittleEndian.Uint16(prg)
	body := prg[2:]
	if int(start)+len(body) > len(b.ram) {
		return 0, fmt.Errorf("%w: $%04X + %d bytes exceeds memory", ErrBadPRG, start, len(body))
	}
	copy(b.ram[start:], body)
	return start, nil
}

// --- Save/Load state ---

const stateSize = 0x10000 + 0x400 + 0x40 + 1 + 2 + 2

// StateSize returns the number of bytes SaveState produces.
func (b *Bus) StateSize() int { return stateSize }

func (b *Bus) SaveState() []byte {
	buf := make([]byte, 0, stateSize)
	buf = append(buf, b.ram[:]...)
	buf = append(buf, b.colorRAM[:]...)
	buf = append(buf, b.regs[:]...)
	buf = append(buf, b.cia2PortA)
	buf = binary.LittleEndian.AppendUint16(buf, b.raster)
	buf = binary.LittleEndian.AppendUint16(buf, b.rasterCompare)
	return buf
}

func (b *Bus) LoadState(buf []byte) error {
	if len(buf) != stateSize {
		return fmt.Errorf("bus: snapshot has %d bytes, want %d", len(buf), stateSize)
	}
	n := copy(b.ram[:], buf)
	n += copy(b.colorRAM[:], buf[n:])
	n += copy(b.regs[:], buf[n:])
	b.cia2PortA = buf[n]
	b.raster = binary.LittleEndian.Uint16(buf[n+1:])
	b.rasterCompare = binary.LittleEndian.Uint16(buf[n+3:])
	return nil
}
