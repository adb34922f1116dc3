// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package hashcrypt provides access to the NXP LPC55 HASHCRYPT engine
// configured for AES-128-ECB encryption.
//
// The engine has no logic of its own in this package, all methods map to
// register field accesses on a Bus.
package hashcrypt

import (
	"math/bits"

	"github.com/pion/logging"

	tbits "github.com/usbarmory/tamago/bits"
)

// Bus represents 32-bit access to the peripheral register file.
type Bus interface {
	Read(off uint32) uint32
	Write(off uint32, val uint32)
}

// Barrier represents the memory and instruction synchronization barriers
// of the target core.
type Barrier interface {
	DMB()
	ISB()
}

// Status represents a STATUS register snapshot.
type Status uint32

func (s Status) NeedKey() bool { return tbits.IsSet((*uint32)(&s), STATUS_NEEDKEY) }
func (s Status) Waiting() bool { return tbits.IsSet((*uint32)(&s), STATUS_WAITING) }
func (s Status) Digest() bool  { return tbits.IsSet((*uint32)(&s), STATUS_DIGEST) }
func (s Status) Error() bool   { return tbits.IsSet((*uint32)(&s), STATUS_ERROR) }

// Engine represents the HASHCRYPT instance.
type Engine struct {
	bus     Bus
	barrier Barrier
	log     logging.LeveledLogger
}

// New returns an engine operating on bus, barrier is issued between
// dependent register accesses.
func New(bus Bus, barrier Barrier, lf logging.LoggerFactory) *Engine {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	return &Engine{
		bus:     bus,
		barrier: barrier,
		log:     lf.NewLogger("hashcrypt"),
	}
}

func (e *Engine) modify(off uint32, fn func(reg *uint32)) {
	val := e.bus.Read(off)
	fn(&val)
	e.bus.Write(off, val)
}

// Configure selects AES-128-ECB encryption with key, data and output byte
// swapping, as the engine native word order does not match the system one.
func (e *Engine) Configure() {
	e.modify(CTRL, func(reg *uint32) {
		tbits.SetN(reg, CTRL_MODE, CTRL_MODE_MASK, MODE_AES)
		tbits.Set(reg, CTRL_HASHSWPB)
	})

	e.modify(CRYPTCFG, func(reg *uint32) {
		tbits.SetN(reg, CRYPTCFG_AESMODE, 0b11, AESMODE_ECB)
		tbits.Clear(reg, CRYPTCFG_AESDECRYPT)
		tbits.Clear(reg, CRYPTCFG_AESSECRET)
		tbits.SetN(reg, CRYPTCFG_AESKEYSZ, 0b11, AESKEYSZ_128)
		tbits.Set(reg, CRYPTCFG_MSW1ST_OUT)
		tbits.Set(reg, CRYPTCFG_MSW1ST)
		tbits.Set(reg, CRYPTCFG_SWAPKEY)
		tbits.Set(reg, CRYPTCFG_SWAPDAT)
	})

	e.log.Debugf("configured AES-128-ECB (ctrl:%#x cryptcfg:%#x)", e.bus.Read(CTRL), e.bus.Read(CRYPTCFG))
}

// NewOperation starts a new operation, the engine then expects the key.
//
// NEW_HASH is documented as self clearing after one clock cycle, but
// without the barriers NEEDKEY occasionally never clears as if the
// following INDATA writes were lost.
func (e *Engine) NewOperation() {
	e.modify(CTRL, func(reg *uint32) {
		tbits.Set(reg, CTRL_NEW_HASH)
	})

	e.barrier.DMB()
	e.barrier.ISB()
}

// WriteInput writes a key or data block to the input port.
func (e *Engine) WriteInput(words [4]uint32) {
	for _, w := range words {
		e.bus.Write(INDATA, w)
	}
}

// ReadDigest reads an output block, each word is converted from the big
// endian order emitted by the engine.
func (e *Engine) ReadDigest() (words [4]uint32) {
	for i := range words {
		words[i] = bits.ReverseBytes32(e.bus.Read(DigestRegister(i)))
	}

	return
}

// Status returns the current engine status.
func (e *Engine) Status() Status {
	return Status(e.bus.Read(STATUS))
}

// KeyLatched reports whether the engine consumed the key.
func (e *Engine) KeyLatched() bool {
	return !e.Status().NeedKey()
}

// EnableInterrupts enables the interrupt sources in mask (WAITING, DIGEST,
// ERROR), previously enabled sources are retained.
func (e *Engine) EnableInterrupts(mask uint32) {
	e.modify(INTENSET, func(reg *uint32) {
		*reg |= mask
	})
}

// Asserted reports the interrupt line level, which is high while an enabled
// source has its status flag set.
func (e *Engine) Asserted() bool {
	return e.bus.Read(STATUS)&e.bus.Read(INTENSET)&(WAITING|DIGEST|ERROR) != 0
}

// DisableInterrupts disables the interrupt sources in mask.
func (e *Engine) DisableInterrupts(mask uint32) {
	e.bus.Write(INTENCLR, mask)
}
