// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package emulator provides a behavioural model of the HASHCRYPT engine in
// AES-ECB encryption mode, for running the driver off-target.
//
// The model implements the register Bus and Barrier used by the driver, the
// clock and reset gating of the syscon controller and the level triggered
// interrupt line of the kernel endpoint.
package emulator

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/usbarmory/crucible/util"
	"github.com/usbarmory/tamago/bits"

	"github.com/usbarmory/armory-hashcrypt/internal/hashcrypt"
)

// Access kinds recorded in the trace.
const (
	READ = iota
	WRITE
	DMB
	ISB
)

// Access represents a traced bus or barrier operation.
type Access struct {
	Kind int
	Off  uint32
	Val  uint32
}

func (a Access) String() string {
	switch a.Kind {
	case READ:
		return fmt.Sprintf("r %#02x %#08x", a.Off, a.Val)
	case WRITE:
		return fmt.Sprintf("w %#02x %#08x", a.Off, a.Val)
	case DMB:
		return "dmb"
	default:
		return "isb"
	}
}

// Emulator models a HASHCRYPT instance.
type Emulator struct {
	sync.Mutex

	// LatchDelay is the number of STATUS reads after the fourth key word
	// before NEEDKEY clears.
	LatchDelay int
	// StuckKey prevents NEEDKEY from ever clearing.
	StuckKey bool

	clock bool
	reset bool

	ctrl     uint32
	cryptcfg uint32
	status   uint32
	inten    uint32

	key      []uint32
	latching int
	block    cipher.Block

	in         []uint32
	digest     [4]uint32
	digestRead uint32

	paused   bool
	notifier func()

	trace    []Access
	traceOn  bool
	blocks   int
	overruns int
}

// New returns an unpowered engine held in reset.
func New() *Emulator {
	return &Emulator{
		reset:   true,
		traceOn: true,
	}
}

// EnableClock implements syscon.Peripheral.
func (e *Emulator) EnableClock() {
	e.Lock()
	defer e.Unlock()

	e.clock = true
}

// LeaveReset implements syscon.Peripheral.
func (e *Emulator) LeaveReset() {
	e.Lock()
	defer e.Unlock()

	e.reset = false
}

func (e *Emulator) powered() bool {
	return e.clock && !e.reset
}

// SetNotifier registers a function invoked when the interrupt line may
// have changed level outside of bus accesses.
func (e *Emulator) SetNotifier(fn func()) {
	e.Lock()
	defer e.Unlock()

	e.notifier = fn
}

// Pause suspends the engine, the interrupt line is held low until Resume.
func (e *Emulator) Pause() {
	e.Lock()
	defer e.Unlock()

	e.paused = true
}

// Resume restarts a paused engine.
func (e *Emulator) Resume() {
	e.Lock()
	e.paused = false
	fn := e.notifier
	e.Unlock()

	if fn != nil {
		fn()
	}
}

// InjectError halts the engine with the ERROR status flag set.
func (e *Emulator) InjectError() {
	e.Lock()
	e.fault()
	fn := e.notifier
	e.Unlock()

	if fn != nil {
		fn()
	}
}

// Asserted implements kernel.Line.
func (e *Emulator) Asserted() bool {
	e.Lock()
	defer e.Unlock()

	return e.powered() && !e.paused && e.status&e.inten&(hashcrypt.WAITING|hashcrypt.DIGEST|hashcrypt.ERROR) != 0
}

// Status returns the STATUS register without side effects.
func (e *Emulator) Status() hashcrypt.Status {
	e.Lock()
	defer e.Unlock()

	return hashcrypt.Status(e.status)
}

// Interrupts returns the enabled interrupt sources.
func (e *Emulator) Interrupts() uint32 {
	e.Lock()
	defer e.Unlock()

	return e.inten
}

// Blocks returns the number of encrypted blocks.
func (e *Emulator) Blocks() int {
	e.Lock()
	defer e.Unlock()

	return e.blocks
}

// Overruns returns the number of blocks fed over an undrained output.
func (e *Emulator) Overruns() int {
	e.Lock()
	defer e.Unlock()

	return e.overruns
}

// Trace returns the recorded register accesses and barriers.
func (e *Emulator) Trace() []Access {
	e.Lock()
	defer e.Unlock()

	return append([]Access(nil), e.trace...)
}

// ResetTrace discards the recorded accesses.
func (e *Emulator) ResetTrace() {
	e.Lock()
	defer e.Unlock()

	e.trace = nil
}

func (e *Emulator) record(kind int, off uint32, val uint32) {
	if e.traceOn {
		e.trace = append(e.trace, Access{Kind: kind, Off: off, Val: val})
	}
}

// DMB implements hashcrypt.Barrier.
func (e *Emulator) DMB() {
	e.Lock()
	defer e.Unlock()

	e.record(DMB, 0, 0)
}

// ISB implements hashcrypt.Barrier.
func (e *Emulator) ISB() {
	e.Lock()
	defer e.Unlock()

	e.record(ISB, 0, 0)
}

// Read implements hashcrypt.Bus.
func (e *Emulator) Read(off uint32) (val uint32) {
	e.Lock()
	defer e.Unlock()

	defer func() {
		e.record(READ, off, val)
	}()

	if !e.powered() {
		return 0
	}

	switch {
	case off == hashcrypt.CTRL:
		return e.ctrl
	case off == hashcrypt.STATUS:
		e.tick()
		return e.status
	case off == hashcrypt.INTENSET, off == hashcrypt.INTENCLR:
		return e.inten
	case off == hashcrypt.CRYPTCFG:
		return e.cryptcfg
	case off >= hashcrypt.DIGEST0 && off < hashcrypt.DigestRegister(4):
		i := (off - hashcrypt.DIGEST0) / 4
		e.digestRead |= 1 << i

		if e.digestRead == 0b1111 {
			bits.Clear(&e.status, hashcrypt.STATUS_DIGEST)
		}

		return e.digest[i]
	}

	return 0
}

// Write implements hashcrypt.Bus.
func (e *Emulator) Write(off uint32, val uint32) {
	e.Lock()
	defer e.Unlock()

	e.record(WRITE, off, val)

	if !e.powered() {
		return
	}

	switch off {
	case hashcrypt.CTRL:
		e.ctrl = val

		if bits.IsSet(&e.ctrl, hashcrypt.CTRL_NEW_HASH) {
			bits.Clear(&e.ctrl, hashcrypt.CTRL_NEW_HASH)
			e.start()
		}
	case hashcrypt.CRYPTCFG:
		e.cryptcfg = val
	case hashcrypt.INTENSET:
		e.inten |= val & (hashcrypt.WAITING | hashcrypt.DIGEST | hashcrypt.ERROR)
	case hashcrypt.INTENCLR:
		e.inten &^= val
	case hashcrypt.INDATA:
		e.input(val)
	}
}

func (e *Emulator) fault() {
	e.status = 1 << hashcrypt.STATUS_ERROR
	e.key = nil
	e.in = nil
	e.block = nil
	e.latching = 0
}

func (e *Emulator) start() {
	if bits.Get(&e.ctrl, hashcrypt.CTRL_MODE, hashcrypt.CTRL_MODE_MASK) != hashcrypt.MODE_AES {
		e.fault()
		return
	}

	e.status = 1 << hashcrypt.STATUS_NEEDKEY
	e.key = nil
	e.in = nil
	e.block = nil
	e.latching = 0
	e.digestRead = 0
}

// tick advances a pending key latch on STATUS polls.
func (e *Emulator) tick() {
	if len(e.key) != 4 || e.block != nil || e.StuckKey {
		return
	}

	if e.latching > 0 {
		e.latching--
		return
	}

	e.latch()
}

func (e *Emulator) latch() {
	key := wordsToBytes(e.key, bits.IsSet(&e.cryptcfg, hashcrypt.CRYPTCFG_SWAPKEY))

	block, err := aes.NewCipher(key)

	if err != nil {
		e.fault()
		return
	}

	e.block = block
	bits.Clear(&e.status, hashcrypt.STATUS_NEEDKEY)
	bits.Set(&e.status, hashcrypt.STATUS_WAITING)
}

func (e *Emulator) input(w uint32) {
	switch {
	case bits.IsSet(&e.status, hashcrypt.STATUS_ERROR):
		return
	case bits.IsSet(&e.status, hashcrypt.STATUS_NEEDKEY) && len(e.key) < 4:
		e.key = append(e.key, w)

		if len(e.key) == 4 {
			e.latching = e.LatchDelay
		}
	case e.block != nil:
		e.in = append(e.in, w)

		if len(e.in) == 4 {
			e.encrypt()
		}
	default:
		// data without a key, or past the key while NEEDKEY is still set
		e.fault()
	}
}

func (e *Emulator) encrypt() {
	defer func() {
		e.in = nil
	}()

	if bits.Get(&e.cryptcfg, hashcrypt.CRYPTCFG_AESMODE, 0b11) != hashcrypt.AESMODE_ECB ||
		bits.IsSet(&e.cryptcfg, hashcrypt.CRYPTCFG_AESDECRYPT) ||
		bits.Get(&e.cryptcfg, hashcrypt.CRYPTCFG_AESKEYSZ, 0b11) != hashcrypt.AESKEYSZ_128 {
		e.fault()
		return
	}

	if bits.IsSet(&e.status, hashcrypt.STATUS_DIGEST) {
		// previous output was never read and is lost
		e.overruns++
		e.fault()
		return
	}

	src := wordsToBytes(e.in, bits.IsSet(&e.cryptcfg, hashcrypt.CRYPTCFG_SWAPDAT))
	dst := make([]byte, aes.BlockSize)

	e.block.Encrypt(dst, src)

	for i := range e.digest {
		e.digest[i] = binary.BigEndian.Uint32(dst[i*4:])
	}

	e.blocks++
	e.digestRead = 0

	// input is double buffered, the engine is ready for the next block
	// as soon as the output is available
	bits.Set(&e.status, hashcrypt.STATUS_DIGEST)
	bits.Set(&e.status, hashcrypt.STATUS_WAITING)
}

// wordsToBytes returns the byte stream seen by the engine for words written
// to INDATA, the engine is big endian unless byte swapping is selected.
func wordsToBytes(words []uint32, swap bool) []byte {
	buf := make([]byte, 0, len(words)*4)

	for _, w := range words {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, w)

		if swap {
			b = util.SwitchEndianness(b)
		}

		buf = append(buf, b...)
	}

	return buf
}
