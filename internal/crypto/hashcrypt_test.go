// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package crypto

import (
	"bytes"
	"context"
	"crypto/aes"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/usbarmory/armory-hashcrypt/api"
	"github.com/usbarmory/armory-hashcrypt/internal/driver"
	"github.com/usbarmory/armory-hashcrypt/internal/hashcrypt"
	"github.com/usbarmory/armory-hashcrypt/internal/hashcrypt/emulator"
	"github.com/usbarmory/armory-hashcrypt/internal/kernel"
	"github.com/usbarmory/armory-hashcrypt/internal/syscon"
)

var key = []byte("YELLOW SUBMARINE")

func startTask(t *testing.T) *kernel.Endpoint {
	ctx, cancel := context.WithCancel(context.Background())

	emu := emulator.New()

	host := syscon.NewHost(nil)
	host.Register(syscon.HASHCRYPT, emu)

	ep := kernel.NewEndpoint(kernel.EndpointConfig{Queue: 8})
	ep.BindInterrupt(driver.IRQ_NOTIFICATION, emu)
	emu.SetNotifier(ep.Kick)

	drv := driver.New(driver.Config{
		Engine: hashcrypt.New(emu, emu, nil),
		Kernel: ep,
		Syscon: host,
	})
	drv.Init()

	done := make(chan error, 1)

	go func() {
		done <- drv.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	return ep
}

func TestCipherBlock(t *testing.T) {
	require := require.New(t)

	ep := startTask(t)

	c, err := NewCipher(ep, key)
	require.NoError(err)
	require.Equal(aes.BlockSize, c.BlockSize())

	ref, err := aes.NewCipher(key)
	require.NoError(err)

	src := []byte("sixteen byte blk")
	dst := make([]byte, aes.BlockSize)
	exp := make([]byte, aes.BlockSize)

	c.Encrypt(dst, src)
	ref.Encrypt(exp, src)
	require.Equal(exp, dst)

	// in-place
	buf := append([]byte(nil), src...)
	c.Encrypt(buf, buf)
	require.Equal(exp, buf)

	require.Panics(func() { c.Decrypt(dst, src) })
	require.Panics(func() { c.Encrypt(dst, src[:8]) })
}

func TestNewCipherKeySize(t *testing.T) {
	_, err := NewCipher(nil, make([]byte, 32))
	require.ErrorIs(t, err, api.ErrArgs)
}

func TestEncryptECB(t *testing.T) {
	require := require.New(t)

	ep := startTask(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	k, _ := hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")
	pt, _ := hex.DecodeString("6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac45af8e51")
	ct, _ := hex.DecodeString("3ad77bb40d7a3660a89ecaf32466ef97f5d3d58503b9699de785895a96fdbaaf")

	dst := make([]byte, len(pt))
	require.NoError(EncryptECB(ctx, ep, k, dst, pt))
	require.Equal(ct, dst)

	require.Error(EncryptECB(ctx, ep, k, dst, pt[:20]))
	require.Error(EncryptECB(ctx, ep, k, dst[:16], pt))
	require.ErrorIs(EncryptECB(ctx, ep, k[:8], dst, pt), api.ErrArgs)
}

func TestEncryptResponseCode(t *testing.T) {
	require := require.New(t)

	ep := startTask(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	args, err := api.NewEncryptArgs(key)
	require.NoError(err)

	require.NoError(encrypt(ctx, ep, args.Bytes(), make([]byte, 16), make([]byte, 16)))

	// read-only destination
	res, err := ep.Send(ctx, uint16(api.Encrypt), args.Bytes(), kernel.NewReadLease(make([]byte, 16)), kernel.NewReadLease(make([]byte, 16)))
	require.NoError(err)
	require.Equal(uint32(api.BadArg), res.Code)

	var rc api.ResponseCode
	err = encrypt(ctx, ep, args.Bytes()[:4], make([]byte, 16), make([]byte, 16))
	require.True(errors.As(err, &rc))
	require.Equal(api.BadArg, rc)
}

func TestConcurrentClients(t *testing.T) {
	require := require.New(t)

	ep := startTask(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ref, err := aes.NewCipher(key)
	require.NoError(err)

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < 8; i++ {
		i := i

		g.Go(func() error {
			src := bytes.Repeat([]byte{byte(i)}, (i+1)*aes.BlockSize)
			dst := make([]byte, len(src))

			if err := EncryptECB(ctx, ep, key, dst, src); err != nil {
				return err
			}

			exp := make([]byte, aes.BlockSize)
			ref.Encrypt(exp, src)

			for off := 0; off < len(dst); off += aes.BlockSize {
				if !bytes.Equal(exp, dst[off:off+aes.BlockSize]) {
					return errors.New("ciphertext mismatch")
				}
			}

			return nil
		})
	}

	require.NoError(g.Wait())
}

func TestSelfTest(t *testing.T) {
	require := require.New(t)

	ep := startTask(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	passed, err := SelfTest(ctx, ep)
	require.NoError(err)
	require.Len(passed, len(vectors))
}
