package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrStateSize is returned by LoadState when the snapshot does not match the
// layout it announces.
var ErrStateSize = errors.New("disk: snapshot size mismatch")

const stateHeaderSize = 1 + 2*(NumHalftracks+1)*2

// StateSize returns the number of bytes SaveState produces.
func (d *Disk) StateSize() int {
	n := stateHeaderSize
	for ht := 1; ht <= NumHalftracks; ht++ {
		n += int(d.length[ht])
	}
	return n
}

// SaveState serializes the disk: the track count, the byte and bit lengths of
// all 85 slots, then the used bytes of every halftrack.
func (d *Disk) SaveState() []byte {
	buf := make([]byte, d.StateSize())
	buf[0] = d.numTracks
	offset := 1
	for ht := 0; ht <= NumHalftracks; ht++ {
		binary.LittleEndian.PutUint16(buf[offset:], d.length[ht])
		offset += 2
	}
	for ht := 0; ht <= NumHalftracks; ht++ {
		binary.LittleEndian.PutUint16(buf[offset:], d.bitLength[ht])
		offset += 2
	}
	for ht := 1; ht <= NumHalftracks; ht++ {
		offset += copy(buf[offset:], d.data[ht][:d.length[ht]])
	}
	return buf
}

// LoadState restores a snapshot taken by SaveState. The disk is left
// unchanged if the snapshot is malformed.
func (d *Disk) LoadState(buf []byte) error {
	if len(buf) < stateHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrStateSize, len(buf))
	}
	var length, bitLength [NumHalftracks + 1]uint16
	offset := 1
	for ht := range length {
		length[ht] = binary.LittleEndian.Uint16(buf[offset:])
		offset += 2
	}
	for ht := range bitLength {
		bitLength[ht] = binary.LittleEndian.Uint16(buf[offset:])
		offset += 2
	}
	want := stateHeaderSize
	for ht := 1; ht <= NumHalftracks; ht++ {
		if length[ht] > TrackCapacity || int(bitLength[ht]) > 8*int(length[ht]) {
			return fmt.Errorf("disk: snapshot halftrack %d: invalid length %d/%d", ht, length[ht], bitLength[ht])
		}
		want += int(length[ht])
	}
	if len(buf) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrStateSize, len(buf), want)
	}

	d.ClearDisk()
	d.numTracks = buf[0]
	d.length = length
	d.bitLength = bitLength
	d.length[0], d.bitLength[0] = 0, 0
	for ht := 1; ht <= NumHalftracks; ht++ {
		offset += copy(d.data[ht][:], buf[offset:offset+int(length[ht])])
	}
	return nil
}
