package ppu

import "sort"

// Sprite is a decoded OAM entry, already shifted into screen space
// (Y = OAM byte - 16, X = OAM byte - 8).
type Sprite struct {
	Y, X     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

// ScanOAM walks the 40 OAM entries in index order and returns up to 10
// sprites that intersect scanline ly, matching the real DMG per-line sprite
// limit (the 11th+ matching sprite in OAM order is simply dropped).
func ScanOAM(oam [0xA0]byte, ly int, doubleHeight bool) []Sprite {
	height := 8
	if doubleHeight {
		height = 16
	}
	var out []Sprite
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		y := int(oam[base]) - 16
		x := int(oam[base+1]) - 8
		tile := oam[base+2]
		attr := oam[base+3]
		if ly >= y && ly < y+height {
			out = append(out, Sprite{Y: y, X: x, Tile: tile, Attr: attr, OAMIndex: i})
		}
	}
	return out
}

// ComposeSpriteLine renders the sprite layer for scanline ly. The returned
// byte packs the 2-bit color index in bits 0-1 (0 = transparent, never
// written) and the OBP1-vs-OBP0 palette selection in bit 2.
//
// Overlap priority: lower X wins; ties break by lower OAM index (drawn on
// top). Attribute bit 7 (behind BG) hides the sprite pixel wherever the BG
// color index for that pixel is non-zero.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly int, bgci [160]byte, doubleHeight bool) [160]byte {
	var out [160]byte
	height := 8
	if doubleHeight {
		height = 16
	}

	visible := make([]Sprite, 0, len(sprites))
	for _, s := range sprites {
		if ly >= s.Y && ly < s.Y+height {
			visible = append(visible, s)
		}
	}
	// Draw lowest-priority sprites first so the highest-priority sprite
	// (lowest X, then lowest OAM index) is written last and wins ties.
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].X != visible[j].X {
			return visible[i].X > visible[j].X
		}
		return visible[i].OAMIndex > visible[j].OAMIndex
	})

	for _, s := range visible {
		row := ly - s.Y
		yflip := s.Attr&0x40 != 0
		xflip := s.Attr&0x20 != 0
		behindBG := s.Attr&0x80 != 0
		obpSelect := s.Attr & 0x10

		r := row
		if yflip {
			r = height - 1 - row
		}
		tileNum := s.Tile
		if doubleHeight {
			tileNum &^= 0x01
			if r >= 8 {
				tileNum |= 0x01
				r -= 8
			}
		}
		tileAddr := uint16(0x8000) + uint16(tileNum)*16 + uint16(r)*2
		lo := mem.Read(tileAddr)
		hi := mem.Read(tileAddr + 1)

		for col := 0; col < 8; col++ {
			x := s.X + col
			if x < 0 || x >= 160 {
				continue
			}
			bit := 7 - col
			if xflip {
				bit = col
			}
			ci := ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
			if ci == 0 {
				continue
			}
			if behindBG && bgci[x] != 0 {
				continue
			}
			v := ci
			if obpSelect != 0 {
				v |= 0x04
			}
			out[x] = v
		}
	}
	return out
}
