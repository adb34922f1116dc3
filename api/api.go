// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package api defines the IPC protocol served by the HASHCRYPT AES driver
// task.
//
// # encrypt (1)
//
// Encrypts the contents of lease #0 (R) to lease #1 (W) using the AES-128
// key passed as four 32-bit argument words. Only AES-ECB is supported, both
// leases must have the same length.
package api

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// OpCode represents a driver operation.
type OpCode uint16

const (
	Encrypt OpCode = 1
)

func (op OpCode) String() string {
	switch op {
	case Encrypt:
		return "encrypt"
	default:
		return fmt.Sprintf("op(%d)", uint16(op))
	}
}

// ResponseCode represents the status returned to a caller, zero indicates
// success.
type ResponseCode uint32

const (
	Success ResponseCode = iota
	// BadOp is returned for unknown operations.
	BadOp
	// BadArg is returned for malformed arguments, lease permission or
	// length errors and short reads or writes while streaming.
	BadArg
	// Busy is returned when an operation is already in flight.
	Busy
	// EngineFault is returned when the engine reports an error or fails
	// to latch the key.
	EngineFault
)

func (rc ResponseCode) String() string {
	switch rc {
	case Success:
		return "success"
	case BadOp:
		return "bad operation"
	case BadArg:
		return "bad argument"
	case Busy:
		return "busy"
	case EngineFault:
		return "engine fault"
	default:
		return fmt.Sprintf("response code %d", uint32(rc))
	}
}

// Error implements the error interface so that failure codes can be returned
// and matched with errors.As.
func (rc ResponseCode) Error() string {
	return "hashcrypt: " + rc.String()
}

const (
	// BlockSize is the AES block size in bytes.
	BlockSize = 16
	// KeySize is the only supported AES key size in bytes (AES-128).
	KeySize = 16

	// SourceLease is the index of the read-only plaintext lease.
	SourceLease = 0
	// DestinationLease is the index of the write-only ciphertext lease.
	DestinationLease = 1
	// EncryptLeases is the number of leases an encrypt request carries.
	EncryptLeases = 2
)

// ErrArgs is returned when encrypt arguments have an invalid size.
var ErrArgs = errors.New("invalid encrypt arguments")

// EncryptArgs represents the fixed size arguments of an encrypt request.
type EncryptArgs struct {
	// Key holds the AES-128 key as four native (little-endian) words.
	Key [4]uint32
}

// NewEncryptArgs converts a 16 bytes AES key into encrypt arguments.
func NewEncryptArgs(key []byte) (args *EncryptArgs, err error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w, key size %d", ErrArgs, len(key))
	}

	return ParseEncryptArgs(key)
}

// ParseEncryptArgs decodes the argument bytes of an encrypt message.
func ParseEncryptArgs(buf []byte) (args *EncryptArgs, err error) {
	if len(buf) != KeySize {
		return nil, fmt.Errorf("%w, got %d bytes", ErrArgs, len(buf))
	}

	args = &EncryptArgs{}

	for i := range args.Key {
		args.Key[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}

	return
}

// Bytes returns the argument bytes of an encrypt message.
func (args *EncryptArgs) Bytes() []byte {
	buf := make([]byte, KeySize)

	for i, w := range args.Key {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}

	return buf
}
