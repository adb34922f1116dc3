// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package syscon implements the clock and reset control collaborator used by
// drivers to power on their peripheral.
package syscon

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pion/logging"

	"github.com/usbarmory/armory-hashcrypt/internal/kernel"
)

// Operations
const (
	ENABLE_CLOCK = 1
	LEAVE_RESET  = 4
)

// Response codes
const (
	OK           = 0
	BAD_OP       = 1
	BAD_PERIPH   = 2
	BAD_ARGUMENT = 3
)

// HASHCRYPT peripheral number (AHBCLKCTRL2/PRESETCTRL2 bit index).
const HASHCRYPT = 82

// Controller represents the clock and reset control task.
type Controller interface {
	Call(op uint16, peripheral uint32) (code uint32)
}

// PowerOn enables the peripheral clock and takes it out of reset. Any failure
// is fatal as a driver cannot operate an unpowered peripheral.
func PowerOn(c Controller, peripheral uint32) {
	if code := c.Call(ENABLE_CLOCK, peripheral); code != OK {
		panic(fmt.Sprintf("syscon: could not enable clock for peripheral %d (%d)", peripheral, code))
	}

	if code := c.Call(LEAVE_RESET, peripheral); code != OK {
		panic(fmt.Sprintf("syscon: could not release reset for peripheral %d (%d)", peripheral, code))
	}
}

// Peripheral represents a clock and reset gated device.
type Peripheral interface {
	EnableClock()
	LeaveReset()
}

// Host is an in-memory clock and reset controller.
type Host struct {
	sync.Mutex

	devices map[uint32]Peripheral
	log     logging.LeveledLogger
}

// NewHost creates a controller without registered peripherals.
func NewHost(lf logging.LoggerFactory) *Host {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	return &Host{
		devices: make(map[uint32]Peripheral),
		log:     lf.NewLogger("syscon"),
	}
}

// Register gates dev behind peripheral number n.
func (h *Host) Register(n uint32, dev Peripheral) {
	h.Lock()
	defer h.Unlock()

	h.devices[n] = dev
}

// Call implements Controller.
func (h *Host) Call(op uint16, peripheral uint32) (code uint32) {
	h.Lock()
	dev, ok := h.devices[peripheral]
	h.Unlock()

	if !ok {
		h.log.Warnf("op %d on unknown peripheral %d", op, peripheral)
		return BAD_PERIPH
	}

	switch op {
	case ENABLE_CLOCK:
		h.log.Debugf("enabling clock for peripheral %d", peripheral)
		dev.EnableClock()
	case LEAVE_RESET:
		h.log.Debugf("releasing reset for peripheral %d", peripheral)
		dev.LeaveReset()
	default:
		return BAD_OP
	}

	return OK
}

// Serve runs the controller as a task answering requests on ep until ctx is
// cancelled. The peripheral number is passed as a little-endian 32-bit
// argument.
func (h *Host) Serve(ctx context.Context, ep *kernel.Endpoint) error {
	for {
		ev, err := ep.Recv(ctx, 0)

		if err != nil {
			return nil
		}

		if ev.Message == nil {
			continue
		}

		caller := ev.Message.Caller()

		if len(ev.Message.Args) != 4 {
			caller.ReplyFail(BAD_ARGUMENT)
			continue
		}

		code := h.Call(ev.Message.Op, binary.LittleEndian.Uint32(ev.Message.Args))

		if code != OK {
			caller.ReplyFail(code)
			continue
		}

		caller.Reply(nil)
	}
}

// Client is a Controller which sends requests to a controller task.
type Client struct {
	Endpoint *kernel.Endpoint
}

// Call implements Controller, transport errors are reported as BAD_OP.
func (c *Client) Call(op uint16, peripheral uint32) (code uint32) {
	arg := make([]byte, 4)
	binary.LittleEndian.PutUint32(arg, peripheral)

	res, err := c.Endpoint.Send(context.Background(), op, arg)

	if err != nil {
		return BAD_OP
	}

	return res.Code
}
