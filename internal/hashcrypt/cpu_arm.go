// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

package hashcrypt

import (
	"github.com/usbarmory/armory-hashcrypt/internal/mmio"
)

// defined in barrier_arm.s
func dmb()
func isb()

// CPU issues ARMv7 barriers.
type CPU struct{}

func (CPU) DMB() { dmb() }
func (CPU) ISB() { isb() }

// NewMMIO returns the register file at the default base address and the
// core barriers, as arguments for New.
func NewMMIO() (*mmio.Region, CPU) {
	return mmio.Map(HASHCRYPT_BASE), CPU{}
}
