package emu

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"image"
	"log"
	"os"

	"github.com/cespare/xxhash"
	"golang.org/x/image/draw"

	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/disk"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/loader"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/vic"
)

// ErrUnsupportedFile is returned by LoadFile for files that are neither
// programs nor disk images.
var ErrUnsupportedFile = errors.New("emu: unsupported file type")

// CycleHook runs in the CPU half of every cycle. Register and memory writes
// made through b become visible in the pixels of the same cycle.
type CycleHook func(y uint16, cycle int, b *bus.Bus)

type Machine struct {
	cfg  Config
	spec vic.Spec
	w, h int
	fb   []byte // RGBA w*h*4, last completed frame

	// core components
	bus  *bus.Bus
	pe   *vic.PixelEngine
	t    timing
	disk *disk.Disk
	hook CycleHook
}

func New(cfg Config) *Machine {
	cfg.Defaults()
	spec := cfg.Spec()
	m := &Machine{
		cfg:  cfg,
		spec: spec,
		w:    spec.Width(),
		h:    spec.Height(),
		bus:  bus.New(),
	}
	m.fb = make([]byte, m.w*m.h*4)
	m.pe = vic.New(spec, m.bus)
	if err := m.pe.SetColorScheme(cfg.Palette); err != nil {
		log.Printf("emu: %v, using %v", err, vic.CCS64)
	}
	m.pe.SetCollisionDetection(!cfg.NoSpriteSpriteCollisions, !cfg.NoSpriteBackgroundCollisions)
	m.Reset()
	return m
}

// Reset restarts the raster beam at the top of a frame. Memory is kept,
// the VIC registers get their power-up values.
func (m *Machine) Reset() {
	m.bus.Reset()
	m.pe.Reset()
	m.t = timing{Cycle: 1, VerticalFF: true, MainFF: true}
	m.pe.UpdateColorRegisters(m.chipState())
	m.pe.UpdateModeRegisters(m.chipState())
	m.updateFramebuffer()
}

func (m *Machine) Config() Config { return m.cfg }

func (m *Machine) Spec() vic.Spec { return m.spec }

func (m *Machine) Bus() *bus.Bus { return m.bus }

func (m *Machine) PixelEngine() *vic.PixelEngine { return m.pe }

// Size returns the frame buffer dimensions in pixels.
func (m *Machine) Size() (w, h int) { return m.w, m.h }

// Frame returns the number of completed frames.
func (m *Machine) Frame() uint64 { return m.t.Frame }

// Position returns the rasterline and the cycle executed next.
func (m *Machine) Position() (y uint16, cycle int) { return m.t.Y, m.t.Cycle }

// SetCycleHook installs f as the CPU side of the machine. nil removes it.
func (m *Machine) SetCycleHook(f CycleHook) { m.hook = f }

// StepCycle executes one cycle of the raster beam.
func (m *Machine) StepCycle() {
	c := m.t.Cycle
	visible := m.spec.IsVisibleLine(int(m.t.Y)) && m.spec.IsVisibleCycle(c)

	if c == 1 {
		m.beginLine()
	}
	if c == cycleVCReset {
		m.t.VC = m.t.VCBase
		m.t.VMLI = 0
		m.t.BadLine = m.isBadLine()
		if m.t.BadLine {
			m.t.RC = 0
			m.t.Display = true
			m.cAccess()
		}
	}

	// 40 column mode: the flip-flops switch before the cycle is latched
	if m.d016()&0x08 != 0 {
		m.checkBorder(c)
	}

	if c >= vic.FirstTextCycle && c <= vic.LastTextCycle {
		m.gAccess()
	} else {
		m.t.GData, m.t.GChar, m.t.GColor = 0, 0, 0
	}

	if visible {
		m.pe.PrepareForCycle(uint8(c), m.chipState())
	}

	if m.hook != nil {
		m.hook(m.t.Y, c, m.bus)
	}

	// 38 column mode: the flip-flops switch inside the cycle
	if m.d016()&0x08 == 0 {
		m.checkBorder(c)
	}

	if visible {
		live := m.chipState()
		m.pe.DrawCanvas(live)
		m.pe.DrawBorder(live)
		m.drawSprites()
	}

	if c == cycleRCUpdate {
		if m.t.RC == 7 {
			m.t.VCBase = m.t.VC
			if !m.t.BadLine {
				m.t.Display = false
			}
		}
		if m.t.Display {
			m.t.RC = (m.t.RC + 1) & 7
		}
	}

	if c == m.spec.CyclesPerLine {
		m.verticalCompare()
		m.endLine()
		return
	}
	m.t.Cycle++
}

// checkBorder applies the horizontal border comparisons of cycle c.
func (m *Machine) checkBorder(c int) {
	if c == vic.FirstTextCycle {
		m.leftCompare()
	}
	right := cycleBorder38R
	if m.d016()&0x08 != 0 {
		right = cycleBorder40R
	}
	if c == right {
		m.t.MainFF = true
	}
}

func (m *Machine) beginLine() {
	y := m.t.Y
	m.bus.SetRaster(y)
	if y == 0 {
		m.t.VCBase = 0
		m.t.DENSeen = false
	}
	if y == firstDMALine && m.d011()&0x10 != 0 {
		m.t.DENSeen = true
	}
	if y == m.bus.RasterCompare() {
		m.bus.TriggerIRQ(bus.IRQRaster)
	}
	if m.spec.IsVisibleLine(int(y)) {
		m.pe.BeginRasterline()
	}
	m.startSpriteLine()
}

func (m *Machine) endLine() {
	m.endSpriteLine()
	if m.spec.IsVisibleLine(int(m.t.Y)) {
		m.pe.EndRasterline()
	}
	m.t.Cycle = 1
	m.t.Y++
	if int(m.t.Y) < m.spec.LinesPerFrame {
		return
	}
	m.t.Y = 0
	m.pe.EndFrame()
	m.t.Frame++
	m.updateFramebuffer()
	if m.cfg.Trace {
		log.Printf("emu: frame %d digest=%016x d011=%02x d016=%02x d019=%02x",
			m.t.Frame, m.FrameDigest(), m.d011(), m.d016(), m.bus.Reg(bus.RegIRQ))
	}
}

// StepLine runs the machine to the start of the next rasterline.
func (m *Machine) StepLine() {
	m.StepCycle()
	for m.t.Cycle != 1 {
		m.StepCycle()
	}
}

// StepFrame runs the machine to the start of the next frame.
func (m *Machine) StepFrame() {
	frame := m.t.Frame
	for m.t.Frame == frame {
		m.StepCycle()
	}
}

// updateFramebuffer converts the completed screen into RGBA bytes.
func (m *Machine) updateFramebuffer() {
	for i, px := range m.pe.Screen() {
		binary.LittleEndian.PutUint32(m.fb[i*4:], px)
	}
}

// Framebuffer returns the last completed frame as RGBA bytes.
func (m *Machine) Framebuffer() []byte { return m.fb }

// FrameDigest hashes the last completed frame.
func (m *Machine) FrameDigest() uint64 { return xxhash.Sum64(m.fb) }

// Screenshot returns a copy of the last completed frame scaled by an
// integer factor.
func (m *Machine) Screenshot(scale int) *image.RGBA {
	src := &image.RGBA{Pix: m.fb, Stride: m.w * 4, Rect: image.Rect(0, 0, m.w, m.h)}
	if scale < 1 {
		scale = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, m.w*scale, m.h*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

//
// Disks and programs
//

// InsertDisk puts d into the drive. nil ejects the disk.
func (m *Machine) InsertDisk(d *disk.Disk) { m.disk = d }

// Disk returns the inserted disk or nil.
func (m *Machine) Disk() *disk.Disk { return m.disk }

// LoadFile loads a program into memory or inserts a disk image.
func (m *Machine) LoadFile(path string) (loader.Type, error) {
	f, err := loader.Load(path)
	if err != nil {
		return loader.TypeUnknown, err
	}
	switch f.Type {
	case loader.TypePRG:
		addr, err := m.bus.LoadPRG(f.Data)
		if err != nil {
			return f.Type, fmt.Errorf("%s: %w", f.Name, err)
		}
		log.Printf("emu: loaded %s at $%04X (%d bytes)", f.Name, addr, len(f.Data)-2)
	case loader.TypeD64, loader.TypeG64:
		d, err := f.Disk(m.cfg.Disk)
		if err != nil {
			return f.Type, err
		}
		m.InsertDisk(d)
		log.Printf("emu: inserted %s (%d tracks)", f.Name, d.NumTracks())
	default:
		return f.Type, fmt.Errorf("%s: %w", f.Name, ErrUnsupportedFile)
	}
	return f.Type, nil
}

// --- Save/Load state ---
type machineState struct {
	Bus    []byte
	VIC    []byte
	Timing timing
	Disk   []byte // nil without a disk
}

func (m *Machine) SaveState() []byte {
	s := machineState{Bus: m.bus.SaveState(), VIC: m.pe.SaveState(), Timing: m.t}
	if m.disk != nil {
		s.Disk = m.disk.SaveState()
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(s); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (m *Machine) LoadState(data []byte) error {
	var s machineState
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return err
	}
	if err := m.bus.LoadState(s.Bus); err != nil {
		return err
	}
	if err := m.pe.LoadState(s.VIC); err != nil {
		return err
	}
	m.t = s.Timing
	m.disk = nil
	if s.Disk != nil {
		d := disk.New(m.cfg.Disk)
		if err := d.LoadState(s.Disk); err != nil {
			return err
		}
		m.disk = d
	}
	m.updateFramebuffer()
	return nil
}

func (m *Machine) SaveStateToFile(path string) error {
	return os.WriteFile(path, m.SaveState(), 0644)
}

func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadState(data)
}
