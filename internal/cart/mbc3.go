package cart

import (
	"bytes"
	"encoding/gob"
)

// cyclesPerSimSecond is the DMG master clock rate; the RTC advances one
// simulated second for every this-many T-cycles the bus ticks it.
const cyclesPerSimSecond = 4194304

// MBC3 implements ROM/RAM banking plus the real-time clock register window
// used by RTC-equipped cartridge types (0x0F, 0x10). TickRTC is driven by
// bus.Tick's own T-cycle loop, so the clock advances against the emulator's
// simulated time rather than the host's wall clock: it stays reproducible
// and in sync under fast-forward, headless stepping, or any
// clock_speed_scale, instead of racing the OS clock.
//
// Banking behavior:
//   - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
//   - 2000-3FFF: ROM bank, 7 bits (0 maps to 1)
//   - 4000-5FFF: RAM bank 0-3, or RTC register select 0x08-0x0C
//   - 6000-7FFF: RTC latch (write 0x00 then 0x01)
//   - A000-BFFF: external RAM, or the latched RTC register selected above
type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte // 7 bits (1..127)
	bankSel    byte // 0-3 selects RAM bank; 0x08-0x0C selects an RTC register

	// Live RTC registers.
	rtcSec, rtcMin, rtcHour byte
	rtcDay                  uint16 // 9 bits (0-511)
	rtcHalt, rtcCarry       bool
	rtcCycleAccum           int64 // T-cycles accumulated since the last whole simulated second

	// Latched snapshot exposed to reads, refreshed on a 0x00->0x01 latch write.
	latchSec, latchMin, latchHour byte
	latchDayLow, latchDayHigh     byte
	lastLatchWrite                byte
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	return m
}

// TickRTC advances the live RTC registers by the simulated time represented
// by cycles T-cycles, per spec's update(dt): "if not halted, time += dt".
func (m *MBC3) TickRTC(cycles int) {
	if m.rtcHalt {
		return
	}
	m.rtcCycleAccum += int64(cycles)
	if m.rtcCycleAccum < cyclesPerSimSecond {
		return
	}
	elapsed := m.rtcCycleAccum / cyclesPerSimSecond
	m.rtcCycleAccum -= elapsed * cyclesPerSimSecond
	m.advanceRTC(elapsed)
}

// advanceRTC adds elapsed whole seconds to the live S/M/H/day registers.
func (m *MBC3) advanceRTC(elapsed int64) {
	total := int64(m.rtcSec) + int64(m.rtcMin)*60 + int64(m.rtcHour)*3600 + int64(m.rtcDay)*86400 + elapsed
	const dayLen = 86400
	days := total / dayLen
	rem := total % dayLen
	if days > 511 {
		m.rtcCarry = true
		days %= 512
	}
	m.rtcDay = uint16(days)
	m.rtcHour = byte(rem / 3600)
	m.rtcMin = byte((rem % 3600) / 60)
	m.rtcSec = byte(rem % 60)
}

func (m *MBC3) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.bankSel >= 0x08 && m.bankSel <= 0x0C {
			return m.readRTCRegister(m.bankSel)
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		rb := int(m.bankSel & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) readRTCRegister(sel byte) byte {
	switch sel {
	case 0x08:
		return m.latchSec
	case 0x09:
		return m.latchMin
	case 0x0A:
		return m.latchHour
	case 0x0B:
		return m.latchDayLow
	case 0x0C:
		return m.latchDayHigh
	}
	return 0xFF
}

func (m *MBC3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		m.bankSel = value
	case addr < 0x8000:
		m.latch(value)
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.bankSel >= 0x08 && m.bankSel <= 0x0C {
			m.writeRTCRegister(m.bankSel, value)
			return
		}
		if len(m.ram) == 0 {
			return
		}
		rb := int(m.bankSel & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC3) latch(value byte) {
	if m.lastLatchWrite == 0x00 && value == 0x01 {
		m.latchSec = m.rtcSec
		m.latchMin = m.rtcMin
		m.latchHour = m.rtcHour
		m.latchDayLow = byte(m.rtcDay & 0xFF)
		m.latchDayHigh = byte((m.rtcDay >> 8) & 0x01)
		if m.rtcHalt {
			m.latchDayHigh |= 0x40
		}
		if m.rtcCarry {
			m.latchDayHigh |= 0x80
		}
	}
	m.lastLatchWrite = value
}

// writeRTCRegister writes through to the live registers (not the latch),
// letting the running clock resume from the new value.
func (m *MBC3) writeRTCRegister(sel, value byte) {
	switch sel {
	case 0x08:
		m.rtcSec = value % 60
	case 0x09:
		m.rtcMin = value % 60
	case 0x0A:
		m.rtcHour = value % 24
	case 0x0B:
		m.rtcDay = (m.rtcDay &^ 0xFF) | uint16(value)
	case 0x0C:
		m.rtcDay = (m.rtcDay & 0xFF) | (uint16(value&0x01) << 8)
		m.rtcHalt = value&0x40 != 0
		m.rtcCarry = value&0x80 != 0
	}
}

type mbc3Persisted struct {
	RAM                     []byte
	RtcSec, RtcMin, RtcHour byte
	RtcDay                  uint16
	RtcHalt, RtcCarry       bool
	RtcCycleAccum           int64
}

func (m *MBC3) SaveRAM() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3Persisted{
		RAM: m.ram, RtcSec: m.rtcSec, RtcMin: m.rtcMin, RtcHour: m.rtcHour, RtcDay: m.rtcDay,
		RtcHalt: m.rtcHalt, RtcCarry: m.rtcCarry, RtcCycleAccum: m.rtcCycleAccum,
	})
	return buf.Bytes()
}

func (m *MBC3) LoadRAM(data []byte) {
	var p mbc3Persisted
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return
	}
	if len(p.RAM) == len(m.ram) {
		copy(m.ram, p.RAM)
	}
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = p.RtcSec, p.RtcMin, p.RtcHour, p.RtcDay
	m.rtcHalt, m.rtcCarry, m.rtcCycleAccum = p.RtcHalt, p.RtcCarry, p.RtcCycleAccum
}

type mbc3State struct {
	Persisted        mbc3Persisted
	RamEnabled       bool
	RomBank, BankSel byte
}

func (m *MBC3) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3State{
		Persisted: mbc3Persisted{
			RAM: m.ram, RtcSec: m.rtcSec, RtcMin: m.rtcMin, RtcHour: m.rtcHour, RtcDay: m.rtcDay,
			RtcHalt: m.rtcHalt, RtcCarry: m.rtcCarry, RtcCycleAccum: m.rtcCycleAccum,
		},
		RamEnabled: m.ramEnabled, RomBank: m.romBank, BankSel: m.bankSel,
	})
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(s.Persisted.RAM) == len(m.ram) {
		copy(m.ram, s.Persisted.RAM)
	}
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = s.Persisted.RtcSec, s.Persisted.RtcMin, s.Persisted.RtcHour, s.Persisted.RtcDay
	m.rtcHalt, m.rtcCarry, m.rtcCycleAccum = s.Persisted.RtcHalt, s.Persisted.RtcCarry, s.Persisted.RtcCycleAccum
	m.ramEnabled, m.romBank, m.bankSel = s.RamEnabled, s.RomBank, s.BankSel
}
