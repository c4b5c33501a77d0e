package ui

// Config contains window and menu related settings.
type Config struct {
	Title    string // window title
	Scale    int    // integer upscaling factor
	DisksDir string // directory to browse for disk images and programs
	StateDir string // directory holding the save state slots
	// Later: fullscreen, vsync toggle, key mapping, etc.
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "c64emu"
	}
	if c.Scale <= 0 {
		c.Scale = 2
	}
	if c.DisksDir == "" {
		c.DisksDir = "disks"
	}
	if c.StateDir == "" {
		c.StateDir = "."
	}
}
