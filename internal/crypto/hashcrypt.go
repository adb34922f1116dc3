// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package crypto provides client access to the HASHCRYPT driver task.
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/usbarmory/armory-hashcrypt/api"
	"github.com/usbarmory/armory-hashcrypt/internal/kernel"
)

// Sender represents the client side of the driver task endpoint.
type Sender interface {
	Send(ctx context.Context, op uint16, args []byte, leases ...kernel.Lease) (kernel.Response, error)
}

type hashcryptCipher struct {
	task Sender
	args []byte
}

// NewCipher creates and returns a new cipher.Block. The key argument should
// be a 16 bytes AES key for hardware accelerated AES-128, each Encrypt call
// is a request to the driver task.
//
// Only encryption is supported, Decrypt panics.
func NewCipher(task Sender, key []byte) (c cipher.Block, err error) {
	args, err := api.NewEncryptArgs(key)

	if err != nil {
		return
	}

	c = &hashcryptCipher{
		task: task,
		args: args.Bytes(),
	}

	return
}

// BlockSize returns the AES block size in bytes.
func (c *hashcryptCipher) BlockSize() int {
	return aes.BlockSize
}

// Encrypt encrypts the first block in src into dst using AES-128-ECB.
func (c *hashcryptCipher) Encrypt(dst []byte, src []byte) {
	if len(src) < aes.BlockSize {
		panic("crypto/hashcrypt: input not full block")
	}

	if len(dst) < aes.BlockSize {
		panic("crypto/hashcrypt: output not full block")
	}

	// the destination lease cannot alias the source one
	out := make([]byte, aes.BlockSize)

	if err := encrypt(context.Background(), c.task, c.args, out, src[:aes.BlockSize]); err != nil {
		panic(fmt.Sprintf("crypto/hashcrypt: %v", err))
	}

	copy(dst, out)
}

// Decrypt is not supported by the engine configuration.
func (c *hashcryptCipher) Decrypt(_ []byte, _ []byte) {
	panic("crypto/hashcrypt: decryption not supported")
}

// EncryptECB encrypts src into dst with AES-128-ECB in a single request,
// both buffers are lent to the driver task. The length of src must be a
// multiple of the block size and dst must not overlap src.
func EncryptECB(ctx context.Context, task Sender, key []byte, dst []byte, src []byte) (err error) {
	args, err := api.NewEncryptArgs(key)

	if err != nil {
		return
	}

	switch {
	case len(src) == 0 || len(src)%aes.BlockSize != 0:
		return fmt.Errorf("invalid input size %d", len(src))
	case len(dst) < len(src):
		return errors.New("output smaller than input")
	}

	return encrypt(ctx, task, args.Bytes(), dst[:len(src)], src)
}

func encrypt(ctx context.Context, task Sender, args []byte, dst []byte, src []byte) (err error) {
	res, err := task.Send(ctx, uint16(api.Encrypt), args, kernel.NewReadLease(src), kernel.NewWriteLease(dst))

	if err != nil {
		return
	}

	if res.Code != uint32(api.Success) {
		return api.ResponseCode(res.Code)
	}

	return
}
