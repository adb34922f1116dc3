// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package syscon

import (
	"github.com/pion/logging"
)

// SYSCON base address (LPC55S6x UM11126, Table 4).
const SYSCON_BASE = 0x40000000

// SYSCON clock and reset control registers (UM11126, 4.5), each bank
// of three covers peripheral numbers 0-95.
const (
	PRESETCTRLCLR0 = 0x140
	AHBCLKCTRLSET0 = 0x220
	CONTROL_BANKS  = 3
)

// Bus represents 32-bit access to the SYSCON register file.
type Bus interface {
	Read(off uint32) uint32
	Write(off uint32, val uint32)
}

// Registers is a Controller operating the SYSCON clock and reset registers
// directly, for tasks granted access to them.
type Registers struct {
	bus Bus
	log logging.LeveledLogger
}

// NewRegisters returns a controller on the SYSCON register file.
func NewRegisters(bus Bus, lf logging.LoggerFactory) *Registers {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	return &Registers{
		bus: bus,
		log: lf.NewLogger("syscon"),
	}
}

// Call implements Controller. Clock enable and reset release use the
// atomic SET and CLR aliases, leaving other peripherals untouched.
func (r *Registers) Call(op uint16, peripheral uint32) (code uint32) {
	bank := peripheral / 32
	mask := uint32(1) << (peripheral % 32)

	if bank >= CONTROL_BANKS {
		r.log.Warnf("op %d on unknown peripheral %d", op, peripheral)
		return BAD_PERIPH
	}

	switch op {
	case ENABLE_CLOCK:
		r.log.Debugf("enabling clock for peripheral %d", peripheral)
		r.bus.Write(AHBCLKCTRLSET0+bank*4, mask)
	case LEAVE_RESET:
		r.log.Debugf("releasing reset for peripheral %d", peripheral)
		r.bus.Write(PRESETCTRLCLR0+bank*4, mask)
	default:
		return BAD_OP
	}

	return OK
}
