package bus

// oamDMA implements the 0xFF46 OAM DMA trigger: a 160-byte copy from
// src*0x100 into OAM (0xFE00-0xFE9F) at 4 T-cycles per byte, 640 T-cycles
// total. CPU access to OAM is blocked for the duration (enforced by Bus).
type oamDMA struct {
	reg    byte // last value written to FF46
	active bool
	src    uint16
	index  int

	ticksLeft int // T-cycles remaining until the next byte copies
}

const ticksPerDMAByte = 4

func newOAMDMA() *oamDMA {
	return &oamDMA{}
}

func (d *oamDMA) start(value byte) {
	d.reg = value
	d.active = true
	d.src = uint16(value) << 8
	d.index = 0
	d.ticksLeft = ticksPerDMAByte
}

// tick advances the transfer by one T-cycle, copying one byte using the
// supplied read/write callbacks every ticksPerDMAByte cycles.
func (d *oamDMA) tick(read func(uint16) byte, write func(uint16, byte)) {
	if !d.active {
		return
	}
	d.ticksLeft--
	if d.ticksLeft > 0 {
		return
	}
	write(0xFE00+uint16(d.index), read(d.src+uint16(d.index)))
	d.index++
	if d.index >= 0xA0 {
		d.active = false
		return
	}
	d.ticksLeft = ticksPerDMAByte
}

type oamDMAState struct {
	Reg    byte
	Active bool
	Src    uint16
	Index  int

	TicksLeft int
}

func (d *oamDMA) saveState() oamDMAState {
	return oamDMAState{Reg: d.reg, Active: d.active, Src: d.src, Index: d.index, TicksLeft: d.ticksLeft}
}

func (d *oamDMA) loadState(s oamDMAState) {
	d.reg, d.active, d.src, d.index, d.ticksLeft = s.Reg, s.Active, s.Src, s.Index, s.TicksLeft
}
