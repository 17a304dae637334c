package cart

import (
	"encoding/binary"
	"strings"
)

const (
	headerStart = 0x0100
	headerEnd   = 0x014F
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// Header mirrors the DMG cartridge header at ROM offset 0x0100.
type Header struct {
	Title          string // 0x0134-0x0143, trimmed ASCII
	CGBFlag        byte   // 0x0143
	NewLicensee    string // 0x0144-0x0145 (ASCII), used when OldLicensee == 0x33
	SGBFlag        byte   // 0x0146
	CartType       byte   // 0x0147
	ROMSizeCode    byte   // 0x0148
	RAMSizeCode    byte   // 0x0149
	Destination    byte   // 0x014A
	OldLicensee    byte   // 0x014B
	ROMVersion     byte   // 0x014C
	HeaderChecksum byte   // 0x014D
	GlobalChecksum uint16 // 0x014E-0x014F

	ROMSizeBytes int
	ROMBanks     int
	RAMSizeBytes int
	CartTypeStr  string
	LicenseeStr  string
}

// ErrHeaderTooShort is returned by ParseHeader when rom is smaller than the header region.
type ErrHeaderTooShort struct{ Len int }

func (e *ErrHeaderTooShort) Error() string {
	return "cart: rom too small to contain header"
}

// ErrBadChecksum is returned by ParseHeader/NewCartridge when the header checksum doesn't validate.
type ErrBadChecksum struct {
	Want, Got byte
}

func (e *ErrBadChecksum) Error() string {
	return "cart: header checksum mismatch"
}

func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < headerEnd+1 {
		return nil, &ErrHeaderTooShort{Len: len(rom)}
	}

	rawTitle := rom[0x0134:0x0144]
	title := strings.TrimRight(string(rawTitle), "\x00")

	h := &Header{
		Title:          title,
		CGBFlag:        rom[0x0143],
		NewLicensee:    string(rom[0x0144:0x0146]),
		SGBFlag:        rom[0x0146],
		CartType:       rom[0x0147],
		ROMSizeCode:    rom[0x0148],
		RAMSizeCode:    rom[0x0149],
		Destination:    rom[0x014A],
		OldLicensee:    rom[0x014B],
		ROMVersion:     rom[0x014C],
		HeaderChecksum: rom[0x014D],
		GlobalChecksum: binary.BigEndian.Uint16(rom[0x014E:0x0150]),
	}

	h.ROMSizeBytes, h.ROMBanks = decodeROMSize(h.ROMSizeCode)
	h.RAMSizeBytes = decodeRAMSize(h.RAMSizeCode)
	h.CartTypeStr = cartTypeString(h.CartType)
	h.LicenseeStr = licenseeString(h)

	if !HeaderChecksumOK(rom) {
		return h, &ErrBadChecksum{Want: h.HeaderChecksum, Got: computeChecksum(rom)}
	}
	return h, nil
}

// LogoMatches reports whether the Nintendo logo bitmap at 0x0104 is intact.
// Some homebrew/test ROMs omit it; callers should treat a mismatch as a
// warning, not a load failure.
func LogoMatches(rom []byte) bool {
	if len(rom) < 0x0104+48 {
		return false
	}
	for i := 0; i < 48; i++ {
		if rom[0x0104+i] != nintendoLogo[i] {
			return false
		}
	}
	return true
}

func computeChecksum(rom []byte) byte {
	var sum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	return sum
}

// HeaderChecksumOK validates the title-checksum test from spec.md section 3:
// sum_{0x0134..0x014C}(-ROM[a]-1) & 0xFF == ROM[0x014D].
func HeaderChecksumOK(rom []byte) bool {
	if len(rom) < 0x014E {
		return false
	}
	return computeChecksum(rom) == rom[0x014D]
}

func decodeROMSize(code byte) (size, banks int) {
	switch code {
	case 0x00:
		return 32 * 1024, 2
	case 0x01:
		return 64 * 1024, 4
	case 0x02:
		return 128 * 1024, 8
	case 0x03:
		return 256 * 1024, 16
	case 0x04:
		return 512 * 1024, 32
	case 0x05:
		return 1 * 1024 * 1024, 64
	case 0x06:
		return 2 * 1024 * 1024, 128
	case 0x07:
		return 4 * 1024 * 1024, 256
	case 0x08:
		return 8 * 1024 * 1024, 512
	case 0x52:
		return 1152 * 1024, 72
	case 0x53:
		return 1280 * 1024, 80
	case 0x54:
		return 1536 * 1024, 96
	default:
		return 0, 0
	}
}

// decodeRAMSize follows spec.md section 6: sizes are 0, --, 8, 32, 128, 64 KiB
// for codes 0x00-0x05 (code 0x01 is unused on real cartridges).
func decodeRAMSize(code byte) int {
	switch code {
	case 0x00:
		return 0
	case 0x02:
		return 8 * 1024
	case 0x03:
		return 32 * 1024
	case 0x04:
		return 128 * 1024
	case 0x05:
		return 64 * 1024
	default:
		return 0
	}
}

func cartTypeString(code byte) string {
	switch code {
	case 0x00:
		return "ROM ONLY"
	case 0x01, 0x02, 0x03:
		return "MBC1 (variants)"
	case 0x05, 0x06:
		return "MBC2 (variants)"
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return "MBC3 (variants)"
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return "MBC5 (variants)"
	default:
		return "Other/unknown"
	}
}

// licenseeNames maps old-licensee codes to publisher names, used only for
// the startup log line (cmd/gbemu). Grounded on original_source's
// cartridge.cpp GetCartridgeLicCodeName.
var licenseeNames = map[byte]string{
	0x00: "None", 0x01: "Nintendo R&D1", 0x08: "Capcom", 0x13: "Electronic Arts",
	0x18: "Hudson Soft", 0x19: "b-ai", 0x20: "kss", 0x22: "pow",
	0x24: "PCM Complete", 0x25: "san-x", 0x28: "Kemco Japan", 0x29: "seta",
	0x30: "Viacom", 0x31: "Nintendo", 0x32: "Bandai", 0x33: "Ocean/Acclaim",
	0x34: "Konami", 0x35: "Hector", 0x37: "Taito", 0x38: "Hudson",
	0x39: "Banpresto", 0x41: "Ubi Soft", 0x42: "Atlus", 0x44: "Malibu",
	0x46: "angel", 0x47: "Bullet-Proof", 0x49: "irem", 0x50: "Absolute",
	0x51: "Acclaim", 0x52: "Activision", 0x53: "American sammy", 0x54: "Konami",
	0x55: "Hi tech entertainment", 0x56: "LJN", 0x57: "Matchbox", 0x58: "Mattel",
	0x59: "Milton Bradley", 0x60: "Titus", 0x61: "Virgin", 0x64: "LucasArts",
	0x67: "Ocean", 0x69: "Electronic Arts", 0x70: "Infogrames", 0x71: "Interplay",
	0x72: "Broderbund", 0x73: "sculptured", 0x75: "sci", 0x78: "THQ",
	0x79: "Accolade", 0x80: "misawa", 0x83: "lozc", 0x86: "Tokuma Shoten Intermedia",
	0x87: "Tsukuda Original", 0x91: "Chunsoft", 0x92: "Video system",
	0x93: "Ocean/Acclaim", 0x95: "Varie", 0x97: "Kaneko", 0x99: "Pack in soft",
}

func licenseeString(h *Header) string {
	if h.OldLicensee == 0x33 {
		return strings.TrimSpace(h.NewLicensee)
	}
	if name, ok := licenseeNames[h.OldLicensee]; ok {
		return name
	}
	return "UNKNOWN"
}
