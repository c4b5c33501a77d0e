package bus

import "testing"

func TestRegisters_ReadMasks(t *testing.T) {
	b := New()
	b.Write(0xD020, 0x02)
	if got := b.Read(0xD020); got != 0xF2 {
		t.Fatalf("D020 got %02x, want F2", got)
	}
	// registers repeat every 64 bytes
	if got := b.Read(0xD060); got != 0xF2 {
		t.Fatalf("D060 mirror got %02x, want F2", got)
	}
	if got := b.Read(0xD016); got != 0xC8 {
		t.Fatalf("D016 got %02x, want C8", got)
	}
	if got := b.Read(0xD03F); got != 0xFF {
		t.Fatalf("unused register got %02x, want FF", got)
	}
}

func TestRegisters_Raster(t *testing.T) {
	b := New()
	b.SetRaster(0x137)
	if got := b.Read(0xD012); got != 0x37 {
		t.Fatalf("D012 got %02x, want 37", got)
	}
	if got := b.Read(0xD011); got&0x80 == 0 {
		t.Fatalf("D011 bit 7 does not reflect raster bit 8")
	}

	b.Write(0xD012, 0x10)
	b.Write(0xD011, 0x9B)
	if got := b.RasterCompare(); got != 0x110 {
		t.Fatalf("raster compare got %03x, want 110", got)
	}
	if got := b.Reg(RegControl1); got != 0x9B {
		t.Fatalf("D011 raw got %02x, want 9B", got)
	}
}

func TestRegisters_InterruptLatch(t *testing.T) {
	b := New()
	b.TriggerIRQ(IRQRaster)
	if b.IRQ() {
		t.Fatalf("disabled source raised IRQ")
	}
	b.Write(0xD01A, IRQRaster)
	if !b.IRQ() {
		t.Fatalf("enabled source did not raise IRQ")
	}
	if got := b.Read(0xD019); got != 0xF1 {
		t.Fatalf("D019 got %02x, want F1", got)
	}
	b.Write(0xD019, IRQRaster) // acknowledge
	if b.IRQ() || b.Read(0xD019) != 0x70 {
		t.Fatalf("IRQ not acknowledged")
	}
}

func TestRegisters_CollisionLatches(t *testing.T) {
	b := New()
	b.SpriteSpriteCollision(0x03)
	b.SpriteSpriteCollision(0x10)
	b.SpriteBackgroundCollision(0x04)
	if got := b.Reg(RegIRQ); got != IRQSpriteSprite|IRQSpriteBackground {
		t.Fatalf("D019 got %02x", got)
	}
	if got := b.Read(0xD01E); got != 0x13 {
		t.Fatalf("D01E got %02x, want 13", got)
	}
	if got := b.Read(0xD01E); got != 0 {
		t.Fatalf("D01E not cleared on read: %02x", got)
	}
	if got := b.Read(0xD01F); got != 0x04 {
		t.Fatalf("D01F got %02x, want 04", got)
	}
	b.Write(0xD01F, 0xFF)
	if got := b.Read(0xD01F); got != 0 {
		t.Fatalf("D01F writable: %02x", got)
	}
}
