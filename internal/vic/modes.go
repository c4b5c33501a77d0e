package vic

import "fmt"

// DisplayMode is the combination of the ECM and BMM bits of D011 (0x40,
// 0x20) with the MCM bit of D016 (0x10).
type DisplayMode uint8

const (
	StandardText            DisplayMode = 0x00
	MulticolorText          DisplayMode = 0x10
	StandardBitmap          DisplayMode = 0x20
	MulticolorBitmap        DisplayMode = 0x30
	ExtendedBackgroundColor DisplayMode = 0x40
	InvalidText             DisplayMode = 0x50
	InvalidStandardBitmap   DisplayMode = 0x60
	InvalidMulticolorBitmap DisplayMode = 0x70
)

func (m DisplayMode) String() string {
	switch m {
	case StandardText:
		return "standard text"
	case MulticolorText:
		return "multicolor text"
	case StandardBitmap:
		return "standard bitmap"
	case MulticolorBitmap:
		return "multicolor bitmap"
	case ExtendedBackgroundColor:
		return "extended background color"
	case InvalidText:
		return "invalid text"
	case InvalidStandardBitmap:
		return "invalid standard bitmap"
	case InvalidMulticolorBitmap:
		return "invalid multicolor bitmap"
	}
	return fmt.Sprintf("DisplayMode(%#x)", uint8(m))
}

// loadColors sets up colRGBA and multicol for a pixel drawn in mode.
// character is the byte read in the c-access (video matrix or bitmap
// colors), color the nibble from color RAM.
func (p *PixelEngine) loadColors(mode DisplayMode, character, color uint8) {
	color &= 0x0F
	bg := &p.dc.backgroundColor

	switch mode {
	case StandardText:
		p.colRGBA[0] = p.colors[bg[0]]
		p.colRGBA[1] = p.colors[color]
		p.multicol = false

	case MulticolorText:
		if color&0x08 != 0 {
			p.colRGBA[0] = p.colors[bg[0]]
			p.colRGBA[1] = p.colors[bg[1]]
			p.colRGBA[2] = p.colors[bg[2]]
			p.colRGBA[3] = p.colors[color&0x07]
			p.multicol = true
		} else {
			p.colRGBA[0] = p.colors[bg[0]]
			p.colRGBA[1] = p.colors[color]
			p.multicol = false
		}

	case StandardBitmap:
		p.colRGBA[0] = p.colors[character&0x0F]
		p.colRGBA[1] = p.colors[character>>4]
		p.multicol = false

	case MulticolorBitmap:
		p.colRGBA[0] = p.colors[bg[0]]
		p.colRGBA[1] = p.colors[character>>4]
		p.colRGBA[2] = p.colors[character&0x0F]
		p.colRGBA[3] = p.colors[color]
		p.multicol = true

	case ExtendedBackgroundColor:
		p.colRGBA[0] = p.colors[bg[character>>6]]
		p.colRGBA[1] = p.colors[color]
		p.multicol = false

	case InvalidText:
		p.setBlack()
		p.multicol = color&0x08 != 0

	case InvalidStandardBitmap:
		p.setBlack()
		p.multicol = false

	case InvalidMulticolorBitmap:
		p.setBlack()
		p.multicol = true

	default:
		panic(fmt.Sprintf("vic: invalid display mode %#x", uint8(mode)))
	}
}

func (p *PixelEngine) setBlack() {
	for i := range p.colRGBA {
		p.colRGBA[i] = p.colors[Black]
	}
}
