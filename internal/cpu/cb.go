package cpu

// execCB dispatches the CB-prefixed table: a second, independent 256-entry
// opcode map reached only through 0xCB. Every opcode here operates on one of
// the eight regGet/regSet targets (0=B,1=C,2=D,3=E,4=H,5=L,6=(HL),7=A).
func (c *CPU) execCB() int {
	op := c.fetch8()
	group := op >> 6
	reg := op & 7
	bit := (op >> 3) & 7

	cycles := 8
	if reg == 6 {
		cycles = 16
	}

	switch group {
	case 0: // rotate/shift/swap, selected by bits 3-5
		v := c.regGet(reg)
		var res byte
		var cy bool
		switch bit {
		case 0: // RLC
			cy = v&0x80 != 0
			res = (v << 1) | b2B(cy)
		case 1: // RRC
			cy = v&0x01 != 0
			res = (v >> 1) | (b2B(cy) << 7)
		case 2: // RL
			cy = v&0x80 != 0
			res = (v << 1) | b2B((c.F&flagC) != 0)
		case 3: // RR
			cy = v&0x01 != 0
			res = (v >> 1) | (b2B((c.F&flagC) != 0) << 7)
		case 4: // SLA
			cy = v&0x80 != 0
			res = v << 1
		case 5: // SRA
			cy = v&0x01 != 0
			res = (v >> 1) | (v & 0x80)
		case 6: // SWAP
			cy = false
			res = (v << 4) | (v >> 4)
		case 7: // SRL
			cy = v&0x01 != 0
			res = v >> 1
		}
		c.regSet(reg, res)
		c.setZNHC(res == 0, false, false, cy)
		return cycles

	case 1: // BIT b,r
		v := c.regGet(reg)
		zero := v&(1<<bit) == 0
		c.F = (c.F & flagC) | flagH
		if zero {
			c.F |= flagZ
		}
		if reg == 6 {
			return 12
		}
		return 8

	case 2: // RES b,r
		v := c.regGet(reg)
		c.regSet(reg, v&^(1<<bit))
		return cycles

	case 3: // SET b,r
		v := c.regGet(reg)
		c.regSet(reg, v|(1<<bit))
		return cycles
	}

	return cycles
}

func b2B(b bool) byte {
	if b {
		return 1
	}
	return 0
}
