package disk

import (
	"errors"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/d64"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/gcr"
)

const (
	syncByte = 0xFF
	gapByte  = 0x55

	syncLength = 5

	headerBlockID = 0x08
	dataBlockID   = 0x07

	// GCR sizes of the two blocks of a sector
	headerGCRLength = 10  // 8 bytes
	dataGCRLength   = 325 // 260 bytes
)

// ErrTrackOverflow is returned when a track does not fit on the medium.
var ErrTrackOverflow = errors.New("disk: track exceeds capacity")

// EncoderConfig holds the gap sizes written between blocks.
type EncoderConfig struct {
	HeaderGap   int // gap bytes between header and data block
	TailGapEven int // gap bytes after sectors with an even number
	TailGapOdd  int // gap bytes after sectors with an odd number
}

// Defaults fills unset gaps. The tail gaps differ between even and odd
// sectors the way the 1541 formats a disk.
func (c *EncoderConfig) Defaults() {
	if c.HeaderGap <= 0 {
		c.HeaderGap = 9
	}
	if c.TailGapEven <= 0 {
		c.TailGapEven = 9
	}
	if c.TailGapOdd <= 0 {
		c.TailGapOdd = 19
	}
}

// SectorLength returns the number of bytes a sector occupies on disk,
// including its tail gap.
func (c EncoderConfig) SectorLength(sector int) int {
	n := syncLength + headerGCRLength + c.HeaderGap + syncLength + dataGCRLength
	if sector%2 == 0 {
		return n + c.TailGapEven
	}
	return n + c.TailGapOdd
}

// Archive is a sector addressable disk image.
type Archive interface {
	NumTracks() int
	Sector(t, s int) []byte
	DiskID() (id1, id2 byte)
	ErrorCode(t, s int) byte
}

// SectorOrder returns the order in which the sectors of a track with n
// sectors are written: 0, h, 1, h+1, ... with h = (n+1)/2.
func SectorOrder(n int) []int {
	order := make([]int, 0, n)
	h := (n + 1) / 2
	for i := 0; i < h; i++ {
		order = append(order, i)
		if h+i < n {
			order = append(order, h+i)
		}
	}
	return order
}

// EncodeArchive converts a sector image into the physical bitstream: SYNC
// marks, GCR encoded header and data blocks, checksums and gaps. The disk is
// cleared first; tracks the archive does not provide stay empty.
func (d *Disk) EncodeArchive(a Archive) error {
	d.ClearDisk()
	numTracks := a.NumTracks()
	if numTracks > NumTracks {
		numTracks = NumTracks
	}
	for t := 1; t <= NumTracks; t++ {
		if t > numTracks {
			continue
		}
		if _, err := d.encodeTrack(a, Track(t)); err != nil {
			d.ClearDisk()
			return err
		}
	}
	d.numTracks = uint8(numTracks)
	return nil
}

// encodeTrack writes a single track and returns the number of bytes written.
func (d *Disk) encodeTrack(a Archive, t Track) (int, error) {
	n := d64.SectorsPerTrack(int(t))
	buf := make([]byte, 0, TrackCapacity+d.cfg.SectorLength(1))
	for _, s := range SectorOrder(n) {
		gap := d.cfg.TailGapEven
		if s%2 == 1 {
			gap = d.cfg.TailGapOdd
		}
		buf = d.encodeSector(buf, a, t, s, gap)
	}
	if len(buf) > TrackCapacity {
		return 0, fmt.Errorf("%w: track %d needs %d bytes", ErrTrackOverflow, t, len(buf))
	}
	ht := TrackToHalftrack(t)
	copy(d.data[ht][:], buf)
	d.length[ht] = uint16(len(buf))
	d.bitLength[ht] = uint16(8 * len(buf))
	return len(buf), nil
}

// encodeSector appends a sector followed by a tail gap of gap bytes. A non-zero
// error code in the archive damages the sector the same way the original
// disk was damaged.
func (d *Disk) encodeSector(buf []byte, a Archive, t Track, s, gap int) []byte {
	errorCode := a.ErrorCode(int(t), s)
	id1, id2 := a.DiskID()
	if errorCode == d64.ErrorIDMismatch {
		id1, id2 = id1^0xFF, id2^0xFF
	}
	track, sector := byte(t), byte(s)

	// header block
	if errorCode == d64.ErrorNoSync {
		buf = encodeGap(buf, syncLength)
	} else {
		buf = encodeSync(buf)
	}
	headerID := byte(headerBlockID)
	if errorCode == d64.ErrorHeaderNotFound {
		headerID = 0x00
	}
	checksum := sector ^ track ^ id2 ^ id1
	if errorCode == d64.ErrorHeaderChecksum {
		checksum ^= 0xFF
	}
	buf = encodeGcr(buf, headerID, checksum, sector, track)
	buf = encodeGcr(buf, id2, id1, 0x0F, 0x0F)
	buf = encodeGap(buf, d.cfg.HeaderGap)

	// data block
	if errorCode == d64.ErrorNoSync {
		buf = encodeGap(buf, syncLength)
	} else {
		buf = encodeSync(buf)
	}
	block := make([]byte, 260)
	block[0] = dataBlockID
	if errorCode == d64.ErrorDataNotFound {
		block[0] = 0x00
	}
	copy(block[1:257], a.Sector(int(t), s))
	block[257] = xorChecksum(block[1:257])
	if errorCode == d64.ErrorDataChecksum {
		block[257] ^= 0xFF
	}
	for i := 0; i < len(block); i += 4 {
		buf = encodeGcr(buf, block[i], block[i+1], block[i+2], block[i+3])
	}

	return encodeGap(buf, gap)
}

func encodeSync(buf []byte) []byte {
	for i := 0; i < syncLength; i++ {
		buf = append(buf, syncByte)
	}
	return buf
}

func encodeGap(buf []byte, size int) []byte {
	for i := 0; i < size; i++ {
		buf = append(buf, gapByte)
	}
	return buf
}

func encodeGcr(buf []byte, b1, b2, b3, b4 byte) []byte {
	g := gcr.Encode(b1, b2, b3, b4)
	return append(buf, g[:]...)
}

func xorChecksum(data []byte) byte {
	var x byte
	for _, b := range data {
		x ^= b
	}
	return x
}
