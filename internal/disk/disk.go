// Package disk models the magnetic surface of a 5.25" floppy disk as seen by
// the VC1541 read/write head.
//
// The head can be moved between position 1 and 84. The odd positions are the
// 42 full tracks, the even positions lie in between:
//
//	Track layout:      |  1  | 1.5 |  2  | 2.5 | ... |  35  | 35.5 | ... |  42  | 42.5 |
//	Halftrack address:    1     2     3     4          69     70          83     84
//	Track address:        1           2                35                 42
//
// Every halftrack stores an independent, non byte-aligned bitstream.
package disk

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Halftrack is a head position in halftrack addressing (1..84).
type Halftrack uint8

// Track is a head position in track addressing (1..42).
type Track uint8

const (
	// NumHalftracks is the highest halftrack number.
	NumHalftracks = 84

	// NumTracks is the highest track number.
	NumTracks = 42

	// TrackCapacity is the number of bytes a single halftrack can hold. The
	// actual number depends on the track and the write speed of the drive.
	TrackCapacity = 7928
)

// ErrInvalidHalftrack is returned by operations addressed with a halftrack
// outside 1..84.
var ErrInvalidHalftrack = errors.New("disk: invalid halftrack")

// IsHalftrack reports whether nr is a valid halftrack number.
func IsHalftrack(nr int) bool { return 1 <= nr && nr <= NumHalftracks }

// IsTrack reports whether nr is a valid track number.
func IsTrack(nr int) bool { return 1 <= nr && nr <= NumTracks }

// TrackToHalftrack returns the halftrack a full track is stored on.
func TrackToHalftrack(t Track) Halftrack { return Halftrack(2*int(t) - 1) }

// HalftrackToTrack returns the track a halftrack belongs to. Even halftracks
// map to the track below them.
func HalftrackToTrack(ht Halftrack) Track { return Track((int(ht) + 1) / 2) }

// Disk holds the bit data of all 84 halftracks. Slot 0 is never used.
type Disk struct {
	data      [NumHalftracks + 1][TrackCapacity]byte
	length    [NumHalftracks + 1]uint16 // bytes
	bitLength [NumHalftracks + 1]uint16 // bits
	numTracks uint8

	cfg EncoderConfig
}

// New returns an empty disk. cfg controls the gap sizes used by EncodeArchive.
func New(cfg EncoderConfig) *Disk {
	cfg.Defaults()
	return &Disk{cfg: cfg}
}

// EncoderConfig returns the gap configuration of the disk.
func (d *Disk) EncoderConfig() EncoderConfig { return d.cfg }

// NumTracks returns the number of tracks that carry data.
func (d *Disk) NumTracks() int { return int(d.numTracks) }

func mustHalftrack(ht Halftrack) {
	if !IsHalftrack(int(ht)) {
		panic(fmt.Sprintf("disk: halftrack %d out of range", ht))
	}
}

// IsValidDiskPosition reports whether ht is a valid halftrack and offset
// addresses a recorded bit on it.
func (d *Disk) IsValidDiskPosition(ht Halftrack, offset int) bool {
	return IsHalftrack(int(ht)) && offset >= 0 && offset < int(d.bitLength[ht])
}

// ByteLength returns the number of bytes stored on halftrack ht.
func (d *Disk) ByteLength(ht Halftrack) int {
	mustHalftrack(ht)
	return int(d.length[ht])
}

// BitLength returns the number of bits stored on halftrack ht.
func (d *Disk) BitLength(ht Halftrack) int {
	mustHalftrack(ht)
	return int(d.bitLength[ht])
}

// Halftrack returns the recorded bytes of ht. The slice aliases disk memory.
func (d *Disk) Halftrack(ht Halftrack) []byte {
	mustHalftrack(ht)
	return d.data[ht][:d.length[ht]]
}

// SetHalftrack replaces the content of ht. bitLength 0 means 8*len(data).
func (d *Disk) SetHalftrack(ht Halftrack, data []byte, bitLength int) error {
	if !IsHalftrack(int(ht)) {
		return fmt.Errorf("%w: %d", ErrInvalidHalftrack, ht)
	}
	if len(data) > TrackCapacity {
		return fmt.Errorf("%w: halftrack %d holds %d bytes", ErrTrackOverflow, ht, len(data))
	}
	if bitLength == 0 {
		bitLength = 8 * len(data)
	}
	if bitLength > 8*len(data) {
		return fmt.Errorf("disk: halftrack %d: bit length %d exceeds %d bytes", ht, bitLength, len(data))
	}
	d.ClearHalftrack(ht)
	copy(d.data[ht][:], data)
	d.length[ht] = uint16(len(data))
	d.bitLength[ht] = uint16(bitLength)
	d.updateNumTracks()
	return nil
}

func (d *Disk) updateNumTracks() {
	d.numTracks = 0
	for ht := NumHalftracks; ht >= 1; ht-- {
		if d.length[ht] != 0 {
			d.numTracks = uint8(HalftrackToTrack(Halftrack(ht)))
			return
		}
	}
}

// ReadBit returns bit offset (MSB first) of buf as 0 or 1.
func ReadBit(buf []byte, offset int) uint8 {
	if buf[offset/8]&(0x80>>uint(offset%8)) != 0 {
		return 1
	}
	return 0
}

// WriteBit sets bit offset of buf to 1 if bit is non-zero, to 0 otherwise.
func WriteBit(buf []byte, offset int, bit uint8) {
	mask := byte(0x80 >> uint(offset%8))
	if bit != 0 {
		buf[offset/8] |= mask
	} else {
		buf[offset/8] &^= mask
	}
}

// ReadByte composes the 8 bits starting at offset. offset need not be byte
// aligned.
func ReadByte(buf []byte, offset int) byte {
	var result byte
	for i, mask := 0, byte(0x80); i < 8; i, mask = i+1, mask>>1 {
		if ReadBit(buf, offset+i) != 0 {
			result |= mask
		}
	}
	return result
}

// WriteByte writes the 8 bits of b starting at offset.
func WriteByte(buf []byte, offset int, b byte) {
	for i, mask := 0, byte(0x80); i < 8; i, mask = i+1, mask>>1 {
		WriteBit(buf, offset+i, b&mask)
	}
}

// ReadBitFromHalftrack returns a single bit of ht.
func (d *Disk) ReadBitFromHalftrack(ht Halftrack, offset int) uint8 {
	mustHalftrack(ht)
	return ReadBit(d.data[ht][:], offset)
}

// WriteBitToHalftrack writes a single bit of ht.
func (d *Disk) WriteBitToHalftrack(ht Halftrack, offset int, bit uint8) {
	mustHalftrack(ht)
	WriteBit(d.data[ht][:], offset, bit)
}

// ReadByteFromHalftrack reads 8 bits of ht starting at offset.
func (d *Disk) ReadByteFromHalftrack(ht Halftrack, offset int) byte {
	mustHalftrack(ht)
	return ReadByte(d.data[ht][:], offset)
}

// WriteByteToHalftrack writes 8 bits of ht starting at offset.
func (d *Disk) WriteByteToHalftrack(ht Halftrack, offset int, b byte) {
	mustHalftrack(ht)
	WriteByte(d.data[ht][:], offset, b)
}

// readByteWrapped reads 8 bits of ht treating the track as the endless loop
// the head sees while the disk spins.
func (d *Disk) readByteWrapped(ht Halftrack, offset int) byte {
	bits := int(d.bitLength[ht])
	var result byte
	for i, mask := 0, byte(0x80); i < 8; i, mask = i+1, mask>>1 {
		if ReadBit(d.data[ht][:], (offset+i)%bits) != 0 {
			result |= mask
		}
	}
	return result
}

// ClearDisk zeroes all halftracks.
func (d *Disk) ClearDisk() {
	for ht := 1; ht <= NumHalftracks; ht++ {
		d.ClearHalftrack(Halftrack(ht))
	}
	d.numTracks = 0
}

// ClearHalftrack zeroes a single halftrack and its lengths.
func (d *Disk) ClearHalftrack(ht Halftrack) {
	mustHalftrack(ht)
	d.data[ht] = [TrackCapacity]byte{}
	d.length[ht] = 0
	d.bitLength[ht] = 0
}

// DumpHalftrack writes the bits of ht in [from, to) to w, width bits per
// line. The bit at highlight is bracketed; pass -1 for none.
func (d *Disk) DumpHalftrack(w io.Writer, ht Halftrack, from, to, highlight, width int) error {
	mustHalftrack(ht)
	if to < 0 || to > int(d.bitLength[ht]) {
		to = int(d.bitLength[ht])
	}
	if from < 0 {
		from = 0
	}
	if width <= 0 {
		width = 64
	}
	var sb strings.Builder
	for line := from; line < to; line += width {
		sb.Reset()
		fmt.Fprintf(&sb, "%05d: ", line)
		for i := line; i < line+width && i < to; i++ {
			c := byte('0' + ReadBit(d.data[ht][:], i))
			if i == highlight {
				sb.WriteByte('[')
				sb.WriteByte(c)
				sb.WriteByte(']')
			} else {
				sb.WriteByte(c)
			}
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
