// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package driver implements the HASHCRYPT AES-ECB driver task.
//
// The engine wants to be interrupt driven and is easily put out of sequence
// when an output block is not read before the next input, the task therefore
// alternates between feeding one block and draining one block, always
// draining first when both conditions are signaled.
//
// The task is single threaded: Run, or Step, must be called from one
// goroutine only.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/usbarmory/armory-hashcrypt/api"
	"github.com/usbarmory/armory-hashcrypt/internal/hashcrypt"
	"github.com/usbarmory/armory-hashcrypt/internal/kernel"
	"github.com/usbarmory/armory-hashcrypt/internal/syscon"
)

// Default notification bit for the engine interrupt.
const IRQ_NOTIFICATION = 1

// ErrorPolicy selects the reaction to the engine ERROR status.
type ErrorPolicy int

const (
	// Abort fails the in-flight request with EngineFault and frees the
	// session.
	Abort ErrorPolicy = iota
	// LogOnly reports the error and leaves the in-flight request
	// stalled.
	LogOnly
)

func (p ErrorPolicy) String() string {
	switch p {
	case Abort:
		return "abort"
	case LogOnly:
		return "log"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseErrorPolicy parses "abort" or "log".
func ParseErrorPolicy(s string) (p ErrorPolicy, err error) {
	switch strings.ToLower(s) {
	case "abort", "":
		return Abort, nil
	case "log":
		return LogOnly, nil
	default:
		return p, fmt.Errorf("invalid error policy %q", s)
	}
}

// Kernel represents the task view of the kernel.
type Kernel interface {
	Recv(ctx context.Context, mask uint32) (kernel.Event, error)
	IRQControl(mask uint32, enable bool)
}

// Config configures a Driver.
type Config struct {
	// Engine is the HASHCRYPT register interface.
	// Required.
	Engine *hashcrypt.Engine

	// Kernel provides message and notification delivery.
	// Required.
	Kernel Kernel

	// Syscon powers on the peripheral.
	// Required.
	Syscon syscon.Controller

	// Peripheral is the clock and reset control peripheral number.
	// Defaults to syscon.HASHCRYPT if 0.
	Peripheral uint32

	// Notification is the engine interrupt notification mask.
	// Defaults to IRQ_NOTIFICATION if 0.
	Notification uint32

	// ErrorPolicy selects the reaction to engine errors.
	ErrorPolicy ErrorPolicy

	// KeyLatchSpin bounds the number of status polls waiting for the
	// engine to accept the key, 0 waits forever.
	KeyLatchSpin int

	// Registerer receives the driver metrics.
	// Optional - if nil, metrics are not registered.
	Registerer prometheus.Registerer

	// LoggerFactory is the factory for creating loggers.
	// If nil, the pion default factory is used.
	LoggerFactory logging.LoggerFactory
}

// Driver represents the AES driver task.
type Driver struct {
	config Config

	engine *hashcrypt.Engine
	kernel Kernel

	slot  slot
	state State

	metrics *metrics
	log     logging.LeveledLogger
}

// New creates a driver task, Init must be called before Run.
func New(config Config) *Driver {
	if config.Peripheral == 0 {
		config.Peripheral = syscon.HASHCRYPT
	}

	if config.Notification == 0 {
		config.Notification = IRQ_NOTIFICATION
	}

	lf := config.LoggerFactory

	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	return &Driver{
		config:  config,
		engine:  config.Engine,
		kernel:  config.Kernel,
		metrics: newMetrics(config.Registerer),
		log:     lf.NewLogger("driver"),
	}
}

// Init powers on and configures the engine, it panics if the peripheral
// cannot be powered on. Interrupt sources stay disabled until a request is
// admitted.
func (d *Driver) Init() {
	syscon.PowerOn(d.config.Syscon, d.config.Peripheral)

	d.engine.Configure()
	d.kernel.IRQControl(d.config.Notification, true)

	d.log.Infof("AES-128-ECB driver ready (peripheral:%d notification:%#x policy:%v)",
		d.config.Peripheral, d.config.Notification, d.config.ErrorPolicy)
}

// Run services interrupts and requests until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if err := d.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		}
	}
}

// Step blocks for one notification or message and handles it.
func (d *Driver) Step(ctx context.Context) (err error) {
	ev, err := d.kernel.Recv(ctx, d.config.Notification)

	if err != nil {
		return
	}

	if ev.Notification&d.config.Notification != 0 {
		d.service()
		d.kernel.IRQControl(d.config.Notification, true)
	}

	if ev.Message != nil {
		d.handleMessage(ev.Message)
	}

	return
}

// State returns the driver logical state.
func (d *Driver) State() State {
	return d.state
}

// Session returns the in-flight encryption progress, if any.
func (d *Driver) Session() (SessionInfo, bool) {
	return d.slot.info()
}

// Stats returns the driver counters.
func (d *Driver) Stats() Stats {
	return d.metrics.stats
}

func (d *Driver) handleMessage(msg *kernel.Message) {
	var err error

	switch api.OpCode(msg.Op) {
	case api.Encrypt:
		err = d.encrypt(msg)
	default:
		err = api.BadOp
	}

	if err == nil {
		return
	}

	rc := api.BadArg
	errors.As(err, &rc)

	d.log.Debugf("%v rejected: %v", api.OpCode(msg.Op), err)
	d.metrics.reply(rc)

	msg.Caller().ReplyFail(uint32(rc))
}

// encrypt admits an encrypt request. All argument checks happen before the
// engine is touched, on success the reply is deferred to the end of the
// stream.
func (d *Driver) encrypt(msg *kernel.Message) (err error) {
	caller := msg.Caller()

	args, err := api.ParseEncryptArgs(msg.Args)

	if err != nil || caller.Leases() != api.EncryptLeases {
		return api.BadArg
	}

	if d.slot.busy() {
		return api.Busy
	}

	src, ok := caller.Lease(api.SourceLease).Info()

	if !ok || !src.Attributes.Contains(kernel.READ) {
		return api.BadArg
	}

	dst, ok := caller.Lease(api.DestinationLease).Info()

	if !ok || !dst.Attributes.Contains(kernel.WRITE) {
		return api.BadArg
	}

	if src.Len != dst.Len || dst.Len == 0 {
		return api.BadArg
	}

	d.state = KeyLoading

	d.engine.NewOperation()
	d.engine.WriteInput(args.Key)

	if !d.waitKey() {
		d.log.Errorf("engine did not latch the key after %d polls", d.config.KeyLatchSpin)
		d.state = Idle
		return api.EngineFault
	}

	d.slot.put(caller, dst.Len)
	d.state = Streaming

	sources := uint32(hashcrypt.WAITING)

	if d.config.ErrorPolicy == Abort {
		sources |= hashcrypt.ERROR
	}

	d.engine.EnableInterrupts(sources)
	d.log.Debugf("encrypting %d bytes", dst.Len)

	return
}

// waitKey spins until the engine has loaded the key. Without a bound this
// may never return, which is preferred over an engine stuck interrupting.
func (d *Driver) waitKey() bool {
	for n := 0; d.config.KeyLatchSpin == 0 || n < d.config.KeyLatchSpin; n++ {
		if d.engine.KeyLatched() {
			return true
		}
	}

	return false
}
