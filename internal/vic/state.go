package vic

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrStateSize is returned by LoadState for a snapshot of the wrong size.
var ErrStateSize = errors.New("vic: snapshot size mismatch")

// stateSize is the size of a pixel engine snapshot. Frame buffers are not
// part of it; they are redrawn within one frame.
const stateSize = 30

// StateSize returns the number of bytes SaveState produces.
func (p *PixelEngine) StateSize() int { return stateSize }

func putBool(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// SaveState serializes the latches, the shift register and the buffer
// position.
func (p *PixelEngine) SaveState() []byte {
	buf := make([]byte, stateSize)
	dc := &p.dc
	buf[0] = dc.cycle
	binary.LittleEndian.PutUint16(buf[1:], dc.xCounter)
	binary.LittleEndian.PutUint16(buf[3:], dc.yCounter)
	buf[5] = putBool(dc.verticalFrameFF)
	buf[6] = putBool(dc.mainFrameFF)
	buf[7] = dc.data
	buf[8] = dc.character
	buf[9] = dc.color
	buf[10] = dc.mode
	buf[11] = dc.delay
	buf[12] = dc.borderColor
	copy(buf[13:17], dc.backgroundColor[:])
	buf[17] = dc.d011
	buf[18] = dc.d016

	buf[19] = p.sr.data
	buf[20] = p.sr.latchedCharacter
	buf[21] = p.sr.latchedColor
	buf[22] = putBool(p.sr.mcFlop)
	buf[23] = p.sr.colorBits

	buf[24] = byte(p.scheme)
	buf[25] = byte(p.current)
	binary.LittleEndian.PutUint16(buf[26:], uint16(p.row))
	buf[28] = putBool(p.spriteSpriteCollisions)
	buf[29] = putBool(p.spriteBackgroundCollisions)
	return buf
}

// LoadState restores a snapshot taken by SaveState.
func (p *PixelEngine) LoadState(buf []byte) error {
	if len(buf) != stateSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrStateSize, len(buf), stateSize)
	}
	row := int(binary.LittleEndian.Uint16(buf[26:]))
	if row > p.height || buf[25] > 1 {
		return fmt.Errorf("vic: snapshot row %d of buffer %d out of range", row, buf[25])
	}
	if err := p.SetColorScheme(ColorScheme(buf[24])); err != nil {
		return err
	}

	dc := &p.dc
	dc.cycle = buf[0]
	dc.xCounter = binary.LittleEndian.Uint16(buf[1:])
	dc.yCounter = binary.LittleEndian.Uint16(buf[3:])
	dc.verticalFrameFF = buf[5] != 0
	dc.mainFrameFF = buf[6] != 0
	dc.data = buf[7]
	dc.character = buf[8]
	dc.color = buf[9]
	dc.mode = buf[10]
	dc.delay = buf[11] & 0x07
	dc.borderColor = buf[12] & 0x0F
	for i := range dc.backgroundColor {
		dc.backgroundColor[i] = buf[13+i] & 0x0F
	}
	dc.d011 = buf[17] & 0x60
	dc.d016 = buf[18] & 0x10

	p.sr.data = buf[19]
	p.sr.latchedCharacter = buf[20]
	p.sr.latchedColor = buf[21]
	p.sr.mcFlop = buf[22] != 0
	p.sr.colorBits = buf[23]

	p.current = int(buf[25])
	p.row = row
	p.spriteSpriteCollisions = buf[28] != 0
	p.spriteBackgroundCollisions = buf[29] != 0
	if p.row < p.height {
		p.line = p.buffers[p.current][p.row*p.width : (p.row+1)*p.width]
	}
	return nil
}
