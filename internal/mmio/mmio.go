// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mmio provides 32-bit access to memory mapped register files.
package mmio

import (
	"sync/atomic"
	"unsafe"
)

// Region represents a memory mapped register file.
type Region struct {
	// Base points to the register at offset 0.
	Base unsafe.Pointer
}

func (r *Region) reg(off uint32) *uint32 {
	if off&3 != 0 {
		panic("mmio: unaligned register offset")
	}

	return (*uint32)(unsafe.Add(r.Base, off))
}

// Read returns the register at offset off.
func (r *Region) Read(off uint32) uint32 {
	return atomic.LoadUint32(r.reg(off))
}

// Write sets the register at offset off.
func (r *Region) Write(off uint32, val uint32) {
	atomic.StoreUint32(r.reg(off), val)
}
