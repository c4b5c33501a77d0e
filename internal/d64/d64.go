// Package d64 implements the D64 disk image, the sector dump of a VC1541
// floppy disk. A D64 stores the 256 byte sectors of every track back to back,
// optionally followed by one error code byte per sector.
package d64

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// SectorSize is the payload of a single sector.
	SectorSize = 256

	// MaxTracks is the highest track a D64 may describe.
	MaxTracks = 42

	// DirectoryTrack holds the BAM (sector 0) and the directory.
	DirectoryTrack = 18
)

// Error codes as stored in the error info block of a D64. The values are the
// job codes of the 1541 DOS, not the DOS error numbers.
const (
	ErrorNone           byte = 0x01
	ErrorHeaderNotFound byte = 0x02
	ErrorNoSync         byte = 0x03
	ErrorDataNotFound   byte = 0x04
	ErrorDataChecksum   byte = 0x05
	ErrorHeaderChecksum byte = 0x09
	ErrorIDMismatch     byte = 0x0B
)

var (
	ErrInvalidSize   = errors.New("d64: unsupported image size")
	ErrInvalidTrack  = errors.New("d64: invalid track")
	ErrInvalidSector = errors.New("d64: invalid sector")
)

// SectorsPerTrack returns the number of sectors of track t (1..42), or 0 for
// an invalid track. The inner tracks hold fewer sectors.
func SectorsPerTrack(t int) int {
	switch {
	case t < 1 || t > MaxTracks:
		return 0
	case t <= 17:
		return 21
	case t <= 24:
		return 19
	case t <= 30:
		return 18
	default:
		return 17
	}
}

// NumSectors returns the number of sectors on a disk with numTracks tracks.
func NumSectors(numTracks int) int {
	n := 0
	for t := 1; t <= numTracks; t++ {
		n += SectorsPerTrack(t)
	}
	return n
}

// SectorIndex returns the position of track/sector in the linear sector list,
// or -1 for an invalid address.
func SectorIndex(t, s int) int {
	if s < 0 || s >= SectorsPerTrack(t) {
		return -1
	}
	return NumSectors(t-1) + s
}

// Offset returns the byte offset of track/sector inside a D64, or -1.
func Offset(t, s int) int {
	i := SectorIndex(t, s)
	if i < 0 {
		return -1
	}
	return i * SectorSize
}

// SizeForTracks returns the file size of a D64 with numTracks tracks.
func SizeForTracks(numTracks int, withErrors bool) int {
	n := NumSectors(numTracks)
	if withErrors {
		return n * (SectorSize + 1)
	}
	return n * SectorSize
}

// Archive is a parsed D64 image.
type Archive struct {
	numTracks int
	data      []byte
	errs      []byte // nil when the image carries no error info
}

// New returns an empty, unformatted image with numTracks tracks (35, 40 or 42).
func New(numTracks int) (*Archive, error) {
	switch numTracks {
	case 35, 40, 42:
	default:
		return nil, fmt.Errorf("%w: %d tracks", ErrInvalidSize, numTracks)
	}
	return &Archive{
		numTracks: numTracks,
		data:      make([]byte, SizeForTracks(numTracks, false)),
	}, nil
}

// Parse reads a D64 image. The image size selects the number of tracks and
// whether an error info block is present.
func Parse(data []byte) (*Archive, error) {
	for _, n := range []int{35, 40, 42} {
		switch len(data) {
		case SizeForTracks(n, false):
			a := &Archive{numTracks: n, data: make([]byte, len(data))}
			copy(a.data, data)
			return a, nil
		case SizeForTracks(n, true):
			size := SizeForTracks(n, false)
			a := &Archive{
				numTracks: n,
				data:      make([]byte, size),
				errs:      make([]byte, len(data)-size),
			}
			copy(a.data, data[:size])
			copy(a.errs, data[size:])
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSize, len(data))
}

// NumTracks returns 35, 40 or 42.
func (a *Archive) NumTracks() int { return a.numTracks }

// NumSectors returns the number of sectors of track t on this image.
func (a *Archive) NumSectors(t int) int {
	if t < 1 || t > a.numTracks {
		return 0
	}
	return SectorsPerTrack(t)
}

// Sector returns the 256 bytes of track t, sector s. The slice aliases the
// image; it is nil for an invalid address.
func (a *Archive) Sector(t, s int) []byte {
	if t > a.numTracks {
		return nil
	}
	off := Offset(t, s)
	if off < 0 {
		return nil
	}
	return a.data[off : off+SectorSize]
}

// SetSector overwrites track t, sector s with data (at most 256 bytes, the
// rest of the sector is zeroed).
func (a *Archive) SetSector(t, s int, data []byte) error {
	sec := a.Sector(t, s)
	if sec == nil {
		return fmt.Errorf("%w: %d/%d", ErrInvalidSector, t, s)
	}
	n := copy(sec, data)
	for i := n; i < SectorSize; i++ {
		sec[i] = 0
	}
	return nil
}

// HasErrorInfo reports whether the image carries per-sector error codes.
func (a *Archive) HasErrorInfo() bool { return a.errs != nil }

// ErrorCode returns the stored error code of track t, sector s. Images
// without error info report ErrorNone for every sector.
func (a *Archive) ErrorCode(t, s int) byte {
	if a.errs == nil || t > a.numTracks {
		return ErrorNone
	}
	i := SectorIndex(t, s)
	if i < 0 {
		return ErrorNone
	}
	if a.errs[i] == 0 {
		return ErrorNone
	}
	return a.errs[i]
}

// SetErrorCode stores an error code, adding an error info block if needed.
func (a *Archive) SetErrorCode(t, s int, code byte) error {
	i := SectorIndex(t, s)
	if i < 0 || t > a.numTracks {
		return fmt.Errorf("%w: %d/%d", ErrInvalidSector, t, s)
	}
	if a.errs == nil {
		a.errs = make([]byte, NumSectors(a.numTracks))
		for j := range a.errs {
			a.errs[j] = ErrorNone
		}
	}
	a.errs[i] = code
	return nil
}

// SetErrorInfo replaces the error info block. A nil table removes it.
func (a *Archive) SetErrorInfo(codes []byte) error {
	if codes == nil {
		a.errs = nil
		return nil
	}
	if len(codes) != NumSectors(a.numTracks) {
		return fmt.Errorf("%w: %d error codes for %d sectors", ErrInvalidSize, len(codes), NumSectors(a.numTracks))
	}
	a.errs = make([]byte, len(codes))
	copy(a.errs, codes)
	return nil
}

// Bytes returns the image in D64 file format.
func (a *Archive) Bytes() []byte {
	out := make([]byte, 0, len(a.data)+len(a.errs))
	out = append(out, a.data...)
	return append(out, a.errs...)
}

// Size returns the length of Bytes.
func (a *Archive) Size() int { return len(a.data) + len(a.errs) }

// DiskID returns the two ID characters stored in the BAM. They are written
// into every sector header when the disk is encoded.
func (a *Archive) DiskID() (id1, id2 byte) {
	bam := a.Sector(DirectoryTrack, 0)
	return bam[0xA2], bam[0xA3]
}

// DiskName returns the disk name stored in the BAM.
func (a *Archive) DiskName() string {
	bam := a.Sector(DirectoryTrack, 0)
	name := bam[0x90:0xA0]
	end := len(name)
	for end > 0 && (name[end-1] == 0xA0 || name[end-1] == 0x00) {
		end--
	}
	return petsciiToASCII(name[:end])
}

// Format writes an empty BAM and directory, similar to the DOS NEW command.
func (a *Archive) Format(name string, id [2]byte) {
	for i := range a.data {
		a.data[i] = 0
	}
	bam := a.Sector(DirectoryTrack, 0)
	bam[0x00] = DirectoryTrack
	bam[0x01] = 1
	bam[0x02] = 'A'

	// block availability map for tracks 1..35
	for t := 1; t <= 35; t++ {
		n := SectorsPerTrack(t)
		entry := bam[4*t : 4*t+4]
		bits := uint32(1)<<uint(n) - 1
		if t == DirectoryTrack {
			bits &^= 0x03 // BAM and first directory sector
		}
		free := 0
		for s := 0; s < n; s++ {
			if bits&(1<<uint(s)) != 0 {
				free++
			}
		}
		entry[0] = byte(free)
		entry[1] = byte(bits)
		entry[2] = byte(bits >> 8)
		entry[3] = byte(bits >> 16)
	}

	for i := 0x90; i < 0xAB; i++ {
		bam[i] = 0xA0
	}
	copy(bam[0x90:0xA0], asciiToPETSCII(name, 16))
	bam[0xA2], bam[0xA3] = id[0], id[1]
	bam[0xA5], bam[0xA6] = '2', 'A'

	dir := a.Sector(DirectoryTrack, 1)
	dir[0x00] = 0x00
	dir[0x01] = 0xFF
}

func asciiToPETSCII(s string, max int) []byte {
	s = strings.ToUpper(s)
	out := make([]byte, 0, max)
	for i := 0; i < len(s) && len(out) < max; i++ {
		c := s[i]
		if c < 0x20 || c > 0x5F {
			c = '?'
		}
		out = append(out, c)
	}
	return out
}

func petsciiToASCII(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c >= 0x20 && c <= 0x5F:
			sb.WriteByte(c)
		case c >= 0xC1 && c <= 0xDA:
			sb.WriteByte(c - 0x80)
		default:
			sb.WriteByte('?')
		}
	}
	return sb.String()
}
