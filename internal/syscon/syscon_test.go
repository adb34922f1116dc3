// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package syscon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usbarmory/armory-hashcrypt/internal/kernel"
)

type device struct {
	clock bool
	reset bool
}

func (d *device) EnableClock() { d.clock = true }
func (d *device) LeaveReset()  { d.reset = false }

func TestPowerOn(t *testing.T) {
	require := require.New(t)

	dev := &device{reset: true}
	h := NewHost(nil)
	h.Register(HASHCRYPT, dev)

	PowerOn(h, HASHCRYPT)

	require.True(dev.clock)
	require.False(dev.reset)
}

func TestPowerOnFault(t *testing.T) {
	h := NewHost(nil)

	require.Panics(t, func() {
		PowerOn(h, HASHCRYPT)
	})
}

func TestCallCodes(t *testing.T) {
	require := require.New(t)

	h := NewHost(nil)
	h.Register(1, &device{})

	require.Equal(uint32(BAD_PERIPH), h.Call(ENABLE_CLOCK, 2))
	require.Equal(uint32(BAD_OP), h.Call(9, 1))
	require.Equal(uint32(OK), h.Call(LEAVE_RESET, 1))
}

func TestServe(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := &device{reset: true}
	h := NewHost(nil)
	h.Register(HASHCRYPT, dev)

	ep := kernel.NewEndpoint(kernel.EndpointConfig{})
	done := make(chan struct{})

	go func() {
		h.Serve(ctx, ep)
		close(done)
	}()

	PowerOn(&Client{Endpoint: ep}, HASHCRYPT)

	require.True(dev.clock)
	require.False(dev.reset)

	require.Equal(uint32(BAD_PERIPH), (&Client{Endpoint: ep}).Call(ENABLE_CLOCK, 3))

	res, err := ep.Send(ctx, ENABLE_CLOCK, []byte{1})
	require.NoError(err)
	require.Equal(uint32(BAD_ARGUMENT), res.Code)

	cancel()
	<-done
}

type sysconRegs map[uint32]uint32

func (r sysconRegs) Read(off uint32) uint32       { return r[off] }
func (r sysconRegs) Write(off uint32, val uint32) { r[off] = val }

func TestRegisters(t *testing.T) {
	require := require.New(t)

	regs := sysconRegs{}
	r := NewRegisters(regs, nil)

	PowerOn(r, HASHCRYPT)

	// HASH_AES is bit 18 of AHBCLKCTRL2 and PRESETCTRL2
	require.Equal(sysconRegs{
		0x228: 1 << 18,
		0x148: 1 << 18,
	}, regs)

	require.Equal(uint32(BAD_PERIPH), r.Call(ENABLE_CLOCK, 96))
	require.Equal(uint32(BAD_OP), r.Call(2, HASHCRYPT))
	require.Equal(uint32(OK), r.Call(ENABLE_CLOCK, 0))
	require.Equal(uint32(1), regs[AHBCLKCTRLSET0])
}
