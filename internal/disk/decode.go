package disk

import (
	"errors"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/d64"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/gcr"
)

// minSyncBits is the number of consecutive one bits the 1541 recognizes as a
// SYNC mark.
const minSyncBits = 10

// ErrorKind classifies a decode failure.
type ErrorKind uint8

const (
	NoSync ErrorKind = iota + 1
	HeaderNotFound
	HeaderChecksum
	DataNotFound
	DataChecksum
	InvalidGCR
)

var (
	ErrNoSync         = errors.New("no sync mark")
	ErrHeaderNotFound = errors.New("header block not found")
	ErrHeaderChecksum = errors.New("header checksum mismatch")
	ErrDataNotFound   = errors.New("data block not found")
	ErrDataChecksum   = errors.New("data checksum mismatch")
)

func (k ErrorKind) String() string {
	switch k {
	case NoSync:
		return "NoSync"
	case HeaderNotFound:
		return "HeaderNotFound"
	case HeaderChecksum:
		return "HeaderChecksum"
	case DataNotFound:
		return "DataNotFound"
	case DataChecksum:
		return "DataChecksum"
	case InvalidGCR:
		return "InvalidGCR"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case NoSync:
		return ErrNoSync
	case HeaderNotFound:
		return ErrHeaderNotFound
	case HeaderChecksum:
		return ErrHeaderChecksum
	case DataNotFound:
		return ErrDataNotFound
	case DataChecksum:
		return ErrDataChecksum
	case InvalidGCR:
		return gcr.ErrInvalidSymbol
	}
	return nil
}

// errorCode maps the kind to the matching D64 error info byte.
func (k ErrorKind) errorCode() byte {
	switch k {
	case NoSync:
		return d64.ErrorNoSync
	case HeaderNotFound:
		return d64.ErrorHeaderNotFound
	case HeaderChecksum:
		return d64.ErrorHeaderChecksum
	case DataNotFound, InvalidGCR:
		return d64.ErrorDataNotFound
	case DataChecksum:
		return d64.ErrorDataChecksum
	}
	return d64.ErrorNone
}

// SectorError describes a single decode failure. Sector is -1 when the
// failure cannot be attributed to a sector (a track without SYNC marks or a
// header that is not valid GCR).
type SectorError struct {
	Kind   ErrorKind
	Track  int
	Sector int
	Offset int   // bit offset of the block on the track, -1 if unknown
	Err    error // underlying cause, e.g. a *gcr.SymbolError
}

func (e *SectorError) Error() string {
	where := fmt.Sprintf("track %d", e.Track)
	if e.Sector >= 0 {
		where = fmt.Sprintf("track %d sector %d", e.Track, e.Sector)
	}
	if e.Err != nil {
		return fmt.Sprintf("disk: %s: %v: %v", where, e.Kind.sentinel(), e.Err)
	}
	return fmt.Sprintf("disk: %s: %v", where, e.Kind.sentinel())
}

// Unwrap exposes the kind sentinel and the underlying cause to errors.Is.
func (e *SectorError) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// DecodeResult is the outcome of DecodeDisk.
type DecodeResult struct {
	Bytes     int // size of the decoded D64 without error info
	NumTracks int
	Errors    []SectorError
}

// Err joins all sector errors, or returns nil for a clean decode.
func (r DecodeResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i := range r.Errors {
		errs[i] = &r.Errors[i]
	}
	return errors.Join(errs...)
}

// ErrorCodes returns a D64 error info block describing the decode: one byte
// per sector, ErrorNone for sectors that decoded cleanly. The first error of
// a sector wins.
func (r DecodeResult) ErrorCodes() []byte {
	codes := make([]byte, d64.NumSectors(r.NumTracks))
	for i := range codes {
		codes[i] = d64.ErrorNone
	}
	for _, e := range r.Errors {
		if e.Track < 1 || e.Track > r.NumTracks {
			continue
		}
		if e.Sector < 0 {
			if e.Kind != NoSync {
				continue
			}
			for s := 0; s < d64.SectorsPerTrack(e.Track); s++ {
				codes[d64.SectorIndex(e.Track, s)] = d64.ErrorNoSync
			}
			continue
		}
		i := d64.SectorIndex(e.Track, e.Sector)
		if i >= 0 && codes[i] == d64.ErrorNone {
			codes[i] = e.Kind.errorCode()
		}
	}
	return codes
}

// decodedTracks returns the number of tracks of the D64 the disk decodes to:
// the highest track carrying data, rounded up to 35, 40 or 42.
func (d *Disk) decodedTracks() int {
	highest := 0
	for t := NumTracks; t >= 1; t-- {
		if d.length[TrackToHalftrack(Track(t))] != 0 {
			highest = t
			break
		}
	}
	switch {
	case highest <= 35:
		return 35
	case highest <= 40:
		return 40
	default:
		return 42
	}
}

// DecodeDisk converts the bitstreams of all full tracks back into a D64 sector
// dump written to dest. A nil dest performs a dry run that only reports the
// size. Damaged sectors are recorded in the result and never stop the
// decode; their payload is written when a data block was found. DecodeDisk
// panics if dest is non-nil and shorter than the result size.
func (d *Disk) DecodeDisk(dest []byte) DecodeResult {
	numTracks := d.decodedTracks()
	res := DecodeResult{
		Bytes:     d64.SizeForTracks(numTracks, false),
		NumTracks: numTracks,
	}
	if dest == nil {
		return res
	}
	if len(dest) < res.Bytes {
		panic(fmt.Sprintf("disk: decode buffer holds %d bytes, need %d", len(dest), res.Bytes))
	}
	for t := 1; t <= numTracks; t++ {
		res.Errors = d.decodeTrack(Track(t), dest, res.Errors)
	}
	return res
}

// DecodeArchive decodes the disk into a new D64 archive. The archive carries
// an error info block if any sector failed to decode.
func (d *Disk) DecodeArchive() (*d64.Archive, DecodeResult, error) {
	res := d.DecodeDisk(nil)
	buf := make([]byte, res.Bytes)
	res = d.DecodeDisk(buf)
	a, err := d64.Parse(buf)
	if err != nil {
		return nil, res, err
	}
	if len(res.Errors) > 0 {
		if err := a.SetErrorInfo(res.ErrorCodes()); err != nil {
			return nil, res, err
		}
	}
	return a, res, nil
}

// syncMarks returns the bit offsets of the first bit following every SYNC mark
// on ht, in the order the head passes them.
func (d *Disk) syncMarks(ht Halftrack) []int {
	bits := int(d.bitLength[ht])
	buf := d.data[ht][:]

	// Start behind a zero bit so that no mark is split at the track end.
	start := -1
	for i := 0; i < bits; i++ {
		if ReadBit(buf, i) == 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	var marks []int
	ones := 0
	for i := 1; i <= bits; i++ {
		pos := (start + i) % bits
		if ReadBit(buf, pos) == 1 {
			ones++
			continue
		}
		if ones >= minSyncBits {
			marks = append(marks, pos)
		}
		ones = 0
	}
	return marks
}

// readBlock GCR-decodes n bytes starting at bit offset pos of ht.
func (d *Disk) readBlock(ht Halftrack, pos, n int) ([]byte, error) {
	raw := make([]byte, gcr.EncodedLen(n))
	for i := range raw {
		raw[i] = d.readByteWrapped(ht, pos+8*i)
	}
	out := make([]byte, n)
	if _, err := gcr.DecodeBlock(out, raw); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Disk) decodeTrack(t Track, dest []byte, errs []SectorError) []SectorError {
	ht := TrackToHalftrack(t)
	track := int(t)
	numSectors := d64.SectorsPerTrack(track)

	var marks []int
	if d.bitLength[ht] != 0 {
		marks = d.syncMarks(ht)
	}
	if len(marks) == 0 {
		return append(errs, SectorError{Kind: NoSync, Track: track, Sector: -1, Offset: -1})
	}

	found := make([]bool, numSectors)
	failed := make([]bool, numSectors)
	for i, pos := range marks {
		header, err := d.readBlock(ht, pos, 8)
		if err != nil {
			errs = append(errs, SectorError{Kind: InvalidGCR, Track: track, Sector: -1, Offset: pos, Err: err})
			continue
		}
		if header[0] != headerBlockID {
			continue // data block or garbage
		}
		sector, hdrTrack := int(header[2]), int(header[3])
		if hdrTrack != track || sector >= numSectors || found[sector] {
			continue
		}
		if header[1] != header[2]^header[3]^header[4]^header[5] {
			if !failed[sector] {
				errs = append(errs, SectorError{Kind: HeaderChecksum, Track: track, Sector: sector, Offset: pos})
				failed[sector] = true
			}
			continue
		}
		found[sector] = true

		dataPos := marks[(i+1)%len(marks)]
		block, err := d.readBlock(ht, dataPos, 260)
		if err != nil {
			errs = append(errs, SectorError{Kind: InvalidGCR, Track: track, Sector: sector, Offset: dataPos, Err: err})
			continue
		}
		if block[0] != dataBlockID || len(marks) == 1 {
			errs = append(errs, SectorError{Kind: DataNotFound, Track: track, Sector: sector, Offset: dataPos})
			continue
		}
		off := d64.Offset(track, sector)
		copy(dest[off:off+d64.SectorSize], block[1:257])
		if block[257] != xorChecksum(block[1:257]) {
			errs = append(errs, SectorError{Kind: DataChecksum, Track: track, Sector: sector, Offset: dataPos})
		}
	}

	for s := 0; s < numSectors; s++ {
		if !found[s] && !failed[s] {
			errs = append(errs, SectorError{Kind: HeaderNotFound, Track: track, Sector: s, Offset: -1})
		}
	}
	return errs
}
