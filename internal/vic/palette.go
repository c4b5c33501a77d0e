package vic

import "fmt"

// The 16 colors of the VIC-II.
const (
	Black = iota
	White
	Red
	Cyan
	Purple
	Green
	Blue
	Yellow
	LightBrown
	Brown
	LightRed
	DarkGrey
	Grey
	LightGreen
	LightBlue
	LightGrey
)

// ColorScheme selects one of the well known VIC-II palettes.
type ColorScheme int

const (
	CCS64 ColorScheme = iota
	VICE
	Frodo
	PC64
	C64S
	Godot
	Pepto
	Grayscale
)

var schemeNames = [...]string{"ccs64", "vice", "frodo", "pc64", "c64s", "godot", "pepto", "grayscale"}

func (c ColorScheme) String() string {
	if c >= 0 && int(c) < len(schemeNames) {
		return schemeNames[c]
	}
	return fmt.Sprintf("ColorScheme(%d)", int(c))
}

// ParseColorScheme returns the scheme with the given name.
func ParseColorScheme(name string) (ColorScheme, error) {
	for i, n := range schemeNames {
		if n == name {
			return ColorScheme(i), nil
		}
	}
	return 0, fmt.Errorf("vic: unknown color scheme %q", name)
}

// palettes in 0xRRGGBB notation
var palettes = map[ColorScheme][16]uint32{
	CCS64: {
		0x000000, 0xFFFFFF, 0xE04040, 0x60FFFF, 0xE060E0, 0x40E040, 0x4040E0, 0xFFFF40,
		0xE0A040, 0x9C7448, 0xFFA0A0, 0x545454, 0x888888, 0xA0FFA0, 0xA0A0FF, 0xC0C0C0,
	},
	VICE: {
		0x000000, 0xFDFEFC, 0xBE1A24, 0x30E6C6, 0xB41AE2, 0x1FD21E, 0x211BAE, 0xDFF60A,
		0xB84104, 0x6A3304, 0xFE4A57, 0x424540, 0x70746F, 0x59FE59, 0x5F53FE, 0xA4A7A2,
	},
	Frodo: {
		0x000000, 0xFFFFFF, 0xCC0000, 0x00FFCC, 0xFF00FF, 0x00CC00, 0x0000CC, 0xFFFF00,
		0xFF8800, 0x884400, 0xFF8888, 0x444444, 0x888888, 0x88FF88, 0x8888FF, 0xCCCCCC,
	},
	PC64: {
		0x212121, 0xFFFFFF, 0xB52121, 0x73FFFF, 0xB521B5, 0x21B521, 0x2121B5, 0xFFFF21,
		0xB57321, 0x944221, 0xFF7373, 0x737373, 0x949494, 0x73FF73, 0x7373FF, 0xB5B5B5,
	},
	C64S: {
		0x000000, 0xFCFCFC, 0xA80000, 0x54FCFC, 0xA800A8, 0x00A800, 0x0000A8, 0xFCFC00,
		0xA85400, 0x802C00, 0xFC5454, 0x545454, 0x808080, 0x54FC54, 0x5454FC, 0xA8A8A8,
	},
	Godot: {
		0x000000, 0xFFFFFF, 0x880000, 0xAAFFEE, 0xCC44CC, 0x00CC55, 0x0000AA, 0xEEEE77,
		0xDD8855, 0x664400, 0xFE7777, 0x333333, 0x777777, 0xAAFF66, 0x0088FF, 0xBBBBBB,
	},
	Pepto: {
		0x000000, 0xFFFFFF, 0x68372B, 0x70A4B2, 0x6F3D86, 0x588D43, 0x352879, 0xB8C76F,
		0x6F4F25, 0x433900, 0x9A6759, 0x444444, 0x6C6C6C, 0x9AD284, 0x6C5EB5, 0x959595,
	},
}

func init() {
	var gray [16]uint32
	for i, c := range palettes[Pepto] {
		r, g, b := c>>16&0xFF, c>>8&0xFF, c&0xFF
		y := (299*r + 587*g + 114*b) / 1000
		gray[i] = y<<16 | y<<8 | y
	}
	palettes[Grayscale] = gray
}

// RGBA packs a color into the frame buffer format: the bytes R, G, B, A in
// memory order on a little endian machine.
func RGBA(r, g, b uint8) uint32 {
	return 0xFF<<24 | uint32(b)<<16 | uint32(g)<<8 | uint32(r)
}

// Unpack splits a frame buffer pixel into its components.
func Unpack(p uint32) (r, g, b, a uint8) {
	return uint8(p), uint8(p >> 8), uint8(p >> 16), uint8(p >> 24)
}

// Palette returns the 16 frame buffer colors of scheme.
func Palette(scheme ColorScheme) ([16]uint32, error) {
	src, ok := palettes[scheme]
	if !ok {
		return [16]uint32{}, fmt.Errorf("vic: unknown color scheme %d", int(scheme))
	}
	var out [16]uint32
	for i, c := range src {
		out[i] = RGBA(uint8(c>>16), uint8(c>>8), uint8(c))
	}
	return out, nil
}
