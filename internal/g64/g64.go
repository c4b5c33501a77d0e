// Package g64 reads and writes G64 images, the raw GCR dump of a 1541 disk.
//
// Layout (all values little endian):
//
//	0x0000  "GCR-1541"
//	0x0008  version (0)
//	0x0009  number of halftracks (84)
//	0x000A  maximum track size (uint16)
//	0x000C  halftrack offset table (84 x uint32, 0 = no data)
//	0x015C  speed zone table (84 x uint32)
//	0x02AC  track records: uint16 length, data padded to the maximum size
package g64

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/disk"
)

const (
	Signature    = "GCR-1541"
	Version      = 0
	headerSize   = 0x0C
	tableSize    = 4 * disk.NumHalftracks
	dataStart    = headerSize + 2*tableSize
	maxTrackSize = disk.TrackCapacity
)

var (
	ErrSignature = errors.New("g64: bad signature")
	ErrVersion   = errors.New("g64: unsupported version")
	ErrCorrupt   = errors.New("g64: corrupt image")
)

// SpeedZone returns the density zone the 1541 uses on track t: 3 for the
// outer tracks down to 0 for the inner ones.
func SpeedZone(t disk.Track) uint32 {
	switch {
	case t <= 17:
		return 3
	case t <= 24:
		return 2
	case t <= 30:
		return 1
	default:
		return 0
	}
}

// Write stores every non-empty halftrack of d as a G64 image.
func Write(w io.Writer, d *disk.Disk) error {
	var hdr [dataStart]byte
	copy(hdr[:], Signature)
	hdr[8] = Version
	hdr[9] = disk.NumHalftracks
	binary.LittleEndian.PutUint16(hdr[10:], maxTrackSize)

	offset := uint32(dataStart)
	for ht := disk.Halftrack(1); ht <= disk.NumHalftracks; ht++ {
		i := int(ht - 1)
		binary.LittleEndian.PutUint32(hdr[headerSize+tableSize+4*i:], SpeedZone(disk.HalftrackToTrack(ht)))
		if d.ByteLength(ht) == 0 {
			continue
		}
		binary.LittleEndian.PutUint32(hdr[headerSize+4*i:], offset)
		offset += 2 + maxTrackSize
	}
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	record := make([]byte, 2+maxTrackSize)
	for ht := disk.Halftrack(1); ht <= disk.NumHalftracks; ht++ {
		data := d.Halftrack(ht)
		if len(data) == 0 {
			continue
		}
		for i := range record {
			record[i] = 0
		}
		binary.LittleEndian.PutUint16(record, uint16(len(data)))
		copy(record[2:], data)
		if _, err := w.Write(record); err != nil {
			return fmt.Errorf("g64: writing halftrack %d: %w", ht, err)
		}
	}
	return nil
}

// Bytes returns the G64 image of d.
func Bytes(d *disk.Disk) []byte {
	var buf bytes.Buffer
	_ = Write(&buf, d) // bytes.Buffer never fails
	return buf.Bytes()
}

// Read replaces the content of d with the halftracks stored in data.
func Read(data []byte, d *disk.Disk) error {
	if len(data) < headerSize || string(data[:8]) != Signature {
		return ErrSignature
	}
	if data[8] != Version {
		return fmt.Errorf("%w: %d", ErrVersion, data[8])
	}
	numHalftracks := int(data[9])
	if numHalftracks > disk.NumHalftracks {
		return fmt.Errorf("%w: %d halftracks", ErrCorrupt, numHalftracks)
	}
	maxSize := int(binary.LittleEndian.Uint16(data[10:]))
	if len(data) < headerSize+8*numHalftracks {
		return fmt.Errorf("%w: truncated header", ErrCorrupt)
	}

	d.ClearDisk()
	for i := 0; i < numHalftracks; i++ {
		offset := int(binary.LittleEndian.Uint32(data[headerSize+4*i:]))
		if offset == 0 {
			continue
		}
		ht := disk.Halftrack(i + 1)
		if offset+2 > len(data) {
			return fmt.Errorf("%w: halftrack %d offset %#x out of range", ErrCorrupt, ht, offset)
		}
		length := int(binary.LittleEndian.Uint16(data[offset:]))
		if length > maxSize || offset+2+length > len(data) {
			return fmt.Errorf("%w: halftrack %d length %d", ErrCorrupt, ht, length)
		}
		if err := d.SetHalftrack(ht, data[offset+2:offset+2+length], 0); err != nil {
			return fmt.Errorf("g64: %w", err)
		}
	}
	return nil
}
