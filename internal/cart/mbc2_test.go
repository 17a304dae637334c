package cart

import "testing"

func TestMBC2_ROMBanking(t *testing.T) {
	rom := make([]byte, 256*1024)
	for bank := 0; bank < 16; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC2(rom)

	if got := m.Read(0x0000); got != 0x00 {
		t.Fatalf("bank0 read got %02X want 00", got)
	}
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("switchable bank defaults to 1, got %02X", got)
	}

	// Bit 8 of the address selects ROM bank (vs RAM enable).
	m.Write(0x2100, 0x05)
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank5 read got %02X want 05", got)
	}

	// Writing 0 remaps to 1, same as MBC1.
	m.Write(0x2100, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC2_RAMEnableAndMirroring(t *testing.T) {
	rom := make([]byte, 32*1024)
	m := NewMBC2(rom)

	// RAM disabled: writes don't stick and reads are 0xFF.
	m.Write(0xA000, 0x05)
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read got %02X want FF", got)
	}

	// Bit 8 clear selects RAM-enable; low nibble 0x0A enables it.
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0x05)
	if got := m.Read(0xA000); got != 0xF5 {
		t.Fatalf("enabled RAM read got %02X want F5 (upper nibble forced to 1s)", got)
	}

	// The 512-byte RAM is mirrored across the whole 0xA000-0xBFFF window.
	if got := m.Read(0xA000 + 512); got != 0xF5 {
		t.Fatalf("mirrored RAM read got %02X want F5", got)
	}
	m.Write(0xA000+512, 0x0C)
	if got := m.Read(0xA000); got != 0xFC {
		t.Fatalf("write through mirror not reflected at base: got %02X want FC", got)
	}
}
