package emu

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/hollowclock/dmgcore/internal/bus"
	"github.com/hollowclock/dmgcore/internal/cart"
	"github.com/hollowclock/dmgcore/internal/cpu"
)

// Buttons is the host-facing joypad state for one StepFrame.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

const cyclesPerFrame = 70224 // 456 dots/line * 154 lines

// Machine owns the cartridge, bus, and CPU, and drives them one frame at a
// time (StepFrame) for a host (a CLI runner or the ebiten UI).
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	romPath  string
	romTitle string
	bootROM  []byte

	buttons Buttons
}

// New creates a Machine with no cartridge loaded; LoadCartridge or
// LoadROMFromFile must be called before stepping.
func New(cfg Config) *Machine {
	if cfg.ClockSpeedScale <= 0 {
		cfg.ClockSpeedScale = 1.0
	}
	return &Machine{cfg: cfg}
}

// LoadCartridge parses rom's header, builds the matching MBC, and wires a
// fresh Bus/CPU pair. A bad header (checksum mismatch, too short to parse)
// fails initialization rather than silently falling back to ROM-only — the
// lenient fallback in bus.New exists for synthetic test ROMs, not real carts.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	c, err := cart.NewCartridge(rom)
	if err != nil {
		return fmt.Errorf("load cartridge: %w", err)
	}
	h, _ := cart.ParseHeader(rom)
	m.romTitle = h.Title

	m.bus = bus.NewWithCartridge(c)
	m.cpu = cpu.New(m.bus)
	if len(boot) >= 0x100 {
		m.bootROM = boot
		m.bus.SetBootROM(boot)
	} else {
		m.cpu.ResetNoBoot()
	}
	return nil
}

// LoadROMFromFile reads path and loads it as the current cartridge,
// remembering path for save-RAM/save-state placement and ROMPath().
func (m *Machine) LoadROMFromFile(path string) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read ROM: %w", err)
	}
	if err := m.LoadCartridge(rom, m.bootROM); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// SetBootROM installs a DMG boot ROM used by subsequent LoadROMFromFile /
// ResetWithBoot calls (LoadCartridge uses only its own boot argument).
func (m *Machine) SetBootROM(data []byte) {
	m.bootROM = data
	if m.bus != nil && len(data) >= 0x100 {
		m.bus.SetBootROM(data)
	}
}

// SetSerialWriter attaches a sink for bytes written to the serial port
// (SB/SC), used by test ROMs (Blargg's suite) to report pass/fail.
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// ROMPath returns the path LoadROMFromFile last loaded, or "".
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header's title field.
func (m *Machine) ROMTitle() string { return m.romTitle }

// SetButtons records joypad state to apply on the next StepFrame.
func (m *Machine) SetButtons(b Buttons) { m.buttons = b }

// ResetPostBoot reinitializes the CPU to typical post-boot register values,
// keeping the currently loaded cartridge.
func (m *Machine) ResetPostBoot() {
	if m.cpu != nil {
		m.cpu.ResetNoBoot()
	}
}

// ResetWithBoot restarts from 0x0000 through the installed boot ROM.
func (m *Machine) ResetWithBoot() {
	if m.bus == nil {
		return
	}
	m.cpu = cpu.New(m.bus)
	if len(m.bootROM) >= 0x100 {
		m.bus.SetBootROM(m.bootROM)
	} else {
		m.cpu.ResetNoBoot()
	}
}

// LoadBattery restores external RAM (and RTC state, for MBC3) from data
// saved by SaveBattery. Returns false only for cartridges without an
// external-RAM controller (ROM-only); the header's battery flag is not checked.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.bus == nil {
		return false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns a copy of the cartridge's external RAM (for MBC3, RAM
// and RTC state gob-encoded together), or ok=false for cartridges without an
// external-RAM controller (ROM-only); the header's battery flag is not checked.
func (m *Machine) SaveBattery() (data []byte, ok bool) {
	if m.bus == nil {
		return nil, false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// step executes one CPU instruction, applying buttons first so interrupts
// raised by a button press land before the instruction they're expected to
// interrupt.
func (m *Machine) step() int {
	m.bus.SetJoypadState(m.buttons.mask())
	return m.cpu.Step()
}

// StepFrame runs one frame's worth of CPU instructions (with rendering:
// the PPU is ticked transparently by bus.Tick inside cpu.Step).
func (m *Machine) StepFrame() {
	if m.cpu == nil || m.cpu.Stopped {
		return
	}
	target := int(float64(cyclesPerFrame) * m.cfg.ClockSpeedScale)
	done := 0
	for done < target {
		done += m.step()
	}
}

// StepFrameNoRender is identical to StepFrame; the PPU always renders as
// part of bus.Tick, so there is no cheaper headless path, but callers
// (e.g. the Blargg-suite harness, which only watches the serial port) use
// this name to say they don't care about the framebuffer this frame.
func (m *Machine) StepFrameNoRender() { m.StepFrame() }

// Framebuffer returns the current frame as packed RGBA8, 160x144.
func (m *Machine) Framebuffer() []byte {
	if m.bus == nil {
		return make([]byte, 160*144*4)
	}
	return m.bus.PPU().FrameBuffer()
}

// Paused reports whether the CPU has hit an illegal opcode and stopped.
func (m *Machine) Paused() bool {
	return m.cpu != nil && m.cpu.Paused
}

// PausedOpcode/PausedPC surface the illegal opcode and the address it was
// fetched from, for a debugger to display.
func (m *Machine) PausedOpcode() byte {
	if m.cpu == nil {
		return 0
	}
	return m.cpu.PausedOpcode
}

func (m *Machine) PausedPC() uint16 {
	if m.cpu == nil {
		return 0
	}
	return m.cpu.PausedPC
}

// BusRead/BusWrite expose raw memory access for a debugger.
func (m *Machine) BusRead(addr uint16) byte {
	if m.bus == nil {
		return 0xFF
	}
	return m.bus.Read(addr)
}

func (m *Machine) BusWrite(addr uint16, v byte) {
	if m.bus != nil {
		m.bus.Write(addr, v)
	}
}

// CPUState is a snapshot of registers for a debugger.
type CPUState struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME, Halted, Stopped   bool
}

func (m *Machine) CPU() CPUState {
	if m.cpu == nil {
		return CPUState{}
	}
	c := m.cpu
	return CPUState{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP: c.SP, PC: c.PC, IME: c.IME, Stopped: c.Stopped,
	}
}

type machineState struct {
	Bus      []byte
	CPU      cpuState
	RomPath  string
	RomTitle string
}

type cpuState struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME                    bool
	Stopped                bool
}

// SaveState serializes bus + CPU register state for a save-state slot.
func (m *Machine) SaveState() []byte {
	if m.bus == nil || m.cpu == nil {
		return nil
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := machineState{
		Bus:      m.bus.SaveState(),
		RomPath:  m.romPath,
		RomTitle: m.romTitle,
		CPU: cpuState{
			A: m.cpu.A, F: m.cpu.F, B: m.cpu.B, C: m.cpu.C,
			D: m.cpu.D, E: m.cpu.E, H: m.cpu.H, L: m.cpu.L,
			SP: m.cpu.SP, PC: m.cpu.PC,
			IME: m.cpu.IME, Stopped: m.cpu.Stopped,
		},
	}
	_ = enc.Encode(s)
	return buf.Bytes()
}

// LoadState restores a snapshot written by SaveState.
func (m *Machine) LoadState(data []byte) error {
	if m.bus == nil || m.cpu == nil {
		return fmt.Errorf("no cartridge loaded")
	}
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s machineState
	if err := dec.Decode(&s); err != nil {
		return fmt.Errorf("decode save state: %w", err)
	}
	m.bus.LoadState(s.Bus)
	m.cpu.A, m.cpu.F = s.CPU.A, s.CPU.F
	m.cpu.B, m.cpu.C = s.CPU.B, s.CPU.C
	m.cpu.D, m.cpu.E = s.CPU.D, s.CPU.E
	m.cpu.H, m.cpu.L = s.CPU.H, s.CPU.L
	m.cpu.SP, m.cpu.PC = s.CPU.SP, s.CPU.PC
	m.cpu.IME, m.cpu.Stopped = s.CPU.IME, s.CPU.Stopped
	return nil
}

// SaveStateToFile writes SaveState's output to path.
func (m *Machine) SaveStateToFile(path string) error {
	data := m.SaveState()
	if data == nil {
		return fmt.Errorf("nothing to save: no cartridge loaded")
	}
	return os.WriteFile(path, data, 0644)
}

// LoadStateFromFile reads and applies a save state written by SaveStateToFile.
func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadState(data)
}
