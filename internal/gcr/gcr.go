// Package gcr implements the group code recording used by the VC1541 floppy
// drive. Every 4 bit nibble is written to disk as a 5 bit code that never
// contains more than two consecutive zero bits and never produces the run of
// ones the drive uses as a SYNC mark.
package gcr

import (
	"errors"
	"fmt"
)

// invalid marks the unpopulated entries of the inverse table.
const invalid = 0xFF

// encodeTable maps 4 data bits to 5 GCR bits.
var encodeTable = [16]byte{
	0x0a, 0x0b, 0x12, 0x13,
	0x0e, 0x0f, 0x16, 0x17,
	0x09, 0x19, 0x1a, 0x1b,
	0x0d, 0x1d, 0x1e, 0x15,
}

// decodeTable maps 5 GCR bits back to 4 data bits. Only 16 of the 32 entries
// are valid codes.
var decodeTable [32]byte

func init() {
	for i := range decodeTable {
		decodeTable[i] = invalid
	}
	for nibble, code := range encodeTable {
		decodeTable[code] = byte(nibble)
	}
}

// ErrInvalidSymbol is returned (wrapped in a *SymbolError) when a 5 bit group
// has no inverse.
var ErrInvalidSymbol = errors.New("gcr: invalid symbol")

// SymbolError describes the first undecodable 5 bit group of a block.
type SymbolError struct {
	Code  byte // offending 5 bit value
	Index int  // position of the group within the decoded block (0..7 per 5 bytes)
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("gcr: invalid symbol %05b at group %d", e.Code, e.Index)
}

func (e *SymbolError) Unwrap() error { return ErrInvalidSymbol }

// Valid reports whether code is one of the 16 GCR codes.
func Valid(code byte) bool {
	return code < 32 && decodeTable[code] != invalid
}

// EncodeNibble returns the 5 bit code of a nibble.
func EncodeNibble(n byte) byte { return encodeTable[n&0x0F] }

// Encode translates 4 data bytes into 5 GCR bytes. The eight 5 bit codes are
// packed MSB first.
func Encode(b1, b2, b3, b4 byte) [5]byte {
	var acc uint64
	for _, b := range [4]byte{b1, b2, b3, b4} {
		acc = acc<<5 | uint64(EncodeNibble(b>>4))
		acc = acc<<5 | uint64(EncodeNibble(b))
	}
	return [5]byte{
		byte(acc >> 32),
		byte(acc >> 24),
		byte(acc >> 16),
		byte(acc >> 8),
		byte(acc),
	}
}

// Decode translates 5 GCR bytes into the 4 data bytes they encode.
func Decode(b [5]byte) ([4]byte, error) {
	var out [4]byte
	acc := uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
	for i := 0; i < 8; i++ {
		code := byte(acc>>(35-5*uint(i))) & 0x1F
		nibble := decodeTable[code]
		if nibble == invalid {
			return out, &SymbolError{Code: code, Index: i}
		}
		if i%2 == 0 {
			out[i/2] = nibble << 4
		} else {
			out[i/2] |= nibble
		}
	}
	return out, nil
}

// EncodedLen returns the number of GCR bytes needed for n data bytes. n must
// be a multiple of 4.
func EncodedLen(n int) int { return n / 4 * 5 }

// DecodedLen returns the number of data bytes encoded by n GCR bytes. n must
// be a multiple of 5.
func DecodedLen(n int) int { return n / 5 * 4 }

// EncodeBlock encodes src into dst and returns the number of bytes written.
// len(src) must be a multiple of 4 and dst must hold EncodedLen(len(src)) bytes.
func EncodeBlock(dst, src []byte) int {
	if len(src)%4 != 0 {
		panic(fmt.Sprintf("gcr: block length %d is not a multiple of 4", len(src)))
	}
	n := 0
	for i := 0; i < len(src); i += 4 {
		g := Encode(src[i], src[i+1], src[i+2], src[i+3])
		n += copy(dst[n:], g[:])
	}
	return n
}

// DecodeBlock decodes src into dst and returns the number of bytes written.
// Decoding stops at the first invalid symbol; the returned *SymbolError has
// its Index adjusted to the position within the whole block.
func DecodeBlock(dst, src []byte) (int, error) {
	if len(src)%5 != 0 {
		panic(fmt.Sprintf("gcr: block length %d is not a multiple of 5", len(src)))
	}
	n := 0
	for i := 0; i < len(src); i += 5 {
		var g [5]byte
		copy(g[:], src[i:i+5])
		b, err := Decode(g)
		if err != nil {
			var se *SymbolError
			if errors.As(err, &se) {
				se.Index += i / 5 * 8
			}
			return n, err
		}
		n += copy(dst[n:], b[:])
	}
	return n, nil
}
