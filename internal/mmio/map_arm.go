// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

package mmio

import (
	"unsafe"
)

// Map returns the register file at physical address base.
func Map(base uint32) *Region {
	return &Region{Base: unsafe.Pointer(uintptr(base))}
}
