package ppu

// dmgShades maps the four possible DMG shade indices (0=lightest) to an
// RGBA8 color, in the classic pea-green LCD tint.
var dmgShades = [4][4]byte{
	{0xE0, 0xF8, 0xD0, 0xFF},
	{0x88, 0xC0, 0x70, 0xFF},
	{0x34, 0x68, 0x56, 0xFF},
	{0x08, 0x18, 0x20, 0xFF},
}

// ApplyPalette maps a 2-bit color index through a palette register (BGP,
// OBP0, or OBP1 — each packs four 2-bit shade codes) to an RGBA8 color.
func ApplyPalette(colorIndex byte, paletteReg byte) [4]byte {
	shade := (paletteReg >> (uint(colorIndex&0x03) * 2)) & 0x03
	return dmgShades[shade]
}
