// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package hashcrypt

// HASHCRYPT peripheral base address (LPC55S6x UM11126, Table 4).
const HASHCRYPT_BASE = 0x400a4000

// HASHCRYPT registers (UM11126, 48.6)
const (
	CTRL           = 0x00
	CTRL_HASHSWPB  = 12
	CTRL_DMA_O     = 9
	CTRL_DMA_I     = 8
	CTRL_NEW_HASH  = 4
	CTRL_MODE      = 0
	CTRL_MODE_MASK = 0b111
	MODE_DISABLED  = 0
	MODE_SHA1      = 1
	MODE_SHA2_256  = 2
	MODE_AES       = 4
	MODE_ICB_AES   = 5

	STATUS         = 0x04
	STATUS_NEEDIV  = 5
	STATUS_NEEDKEY = 4
	STATUS_ERROR   = 2
	STATUS_DIGEST  = 1
	STATUS_WAITING = 0

	INTENSET = 0x08
	INTENCLR = 0x0c

	// interrupt sources, shared by INTENSET and INTENCLR
	INT_ERROR   = 2
	INT_DIGEST  = 1
	INT_WAITING = 0

	INDATA = 0x20

	// DIGEST0[0..7], AES output uses the first four words
	DIGEST0 = 0x40

	CRYPTCFG            = 0x80
	CRYPTCFG_AESKEYSZ   = 8
	CRYPTCFG_AESSECRET  = 7
	CRYPTCFG_AESDECRYPT = 6
	CRYPTCFG_AESMODE    = 4
	CRYPTCFG_MSW1ST     = 3
	CRYPTCFG_SWAPDAT    = 2
	CRYPTCFG_SWAPKEY    = 1
	CRYPTCFG_MSW1ST_OUT = 0

	AESMODE_ECB = 0
	AESMODE_CBC = 1
	AESMODE_CTR = 2

	AESKEYSZ_128 = 0
	AESKEYSZ_192 = 1
	AESKEYSZ_256 = 2
)

// Interrupt source masks for EnableInterrupts and DisableInterrupts.
const (
	WAITING = 1 << INT_WAITING
	DIGEST  = 1 << INT_DIGEST
	ERROR   = 1 << INT_ERROR
)

// DigestRegister returns the offset of the i-th output word.
func DigestRegister(i int) uint32 {
	return DIGEST0 + uint32(i)*4
}
