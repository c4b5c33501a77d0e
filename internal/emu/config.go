package emu

import (
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/disk"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/vic"
)

// Config contains settings that affect emulation behavior.
type Config struct {
	NTSC    bool            // 6567R8 timing instead of 6569 (PAL)
	Palette vic.ColorScheme // color scheme of the frame buffer
	Trace   bool            // log a summary of every frame

	// collision detection, both enabled by default
	NoSpriteSpriteCollisions     bool
	NoSpriteBackgroundCollisions bool

	Disk disk.EncoderConfig // gap sizes used when D64 images are inserted
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	c.Disk.Defaults()
}

// Spec returns the raster geometry selected by the config.
func (c Config) Spec() vic.Spec {
	if c.NTSC {
		return vic.SpecNTSC
	}
	return vic.SpecPAL
}
