// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package kernel implements the task boundary used by drivers: a blocking
// receive returning either notifications or messages, interrupt masking,
// leases and reply capabilities.
//
// Endpoint is an in-memory implementation used to run driver tasks as
// goroutines on the host.
package kernel

import (
	"context"
	"sync"
	"time"

	"github.com/pion/logging"
)

// Line represents a level triggered interrupt source.
type Line interface {
	Asserted() bool
}

// Event is the result of a receive, either Notification is non-zero or
// Message is set.
type Event struct {
	Notification uint32
	Message      *Message
}

// EndpointConfig configures an Endpoint.
type EndpointConfig struct {
	// Queue is the inbox depth, senders block when it is full.
	Queue int

	// LoggerFactory is the factory for creating loggers.
	// If nil, the pion default factory is used.
	LoggerFactory logging.LoggerFactory
}

// Endpoint represents the receive side of a task.
type Endpoint struct {
	sync.Mutex

	inbox chan *Message
	kick  chan struct{}

	// posted notification bits
	pending uint32
	// notification bits with IRQ delivery enabled
	enabled uint32
	// interrupt lines bound to notification bits
	lines map[uint32]Line

	log logging.LeveledLogger
}

// NewEndpoint creates a task endpoint.
func NewEndpoint(config EndpointConfig) *Endpoint {
	lf := config.LoggerFactory

	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	return &Endpoint{
		inbox: make(chan *Message, config.Queue),
		kick:  make(chan struct{}, 1),
		lines: make(map[uint32]Line),
		log:   lf.NewLogger("kernel"),
	}
}

// BindInterrupt associates an interrupt line with notification bits.
func (e *Endpoint) BindInterrupt(mask uint32, line Line) {
	e.Lock()
	defer e.Unlock()

	e.lines[mask] = line
}

// IRQControl enables or disables interrupt delivery for the notification
// bits in mask. Delivery of a notification disables its bits until they are
// enabled again.
func (e *Endpoint) IRQControl(mask uint32, enable bool) {
	e.Lock()

	if enable {
		e.enabled |= mask
	} else {
		e.enabled &^= mask
	}

	e.Unlock()

	if enable {
		e.Kick()
	}
}

// Post raises notification bits, it is safe for use from any goroutine.
func (e *Endpoint) Post(bits uint32) {
	e.Lock()
	e.pending |= bits
	e.Unlock()

	e.Kick()
}

// Kick wakes up a blocked receive to re-evaluate interrupt lines.
func (e *Endpoint) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Sample wakes up the receive side every period so that interrupt lines
// without an edge notifier are evaluated, it returns when ctx is done.
func (e *Endpoint) Sample(ctx context.Context, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			e.Kick()
		case <-ctx.Done():
			return
		}
	}
}

func (e *Endpoint) fired(mask uint32) (bits uint32) {
	e.Lock()
	defer e.Unlock()

	for m, line := range e.lines {
		if e.enabled&m != 0 && line.Asserted() {
			e.pending |= m
		}
	}

	bits = e.pending & e.enabled & mask
	e.pending &^= bits
	e.enabled &^= bits

	return
}

// Recv blocks until a notification in mask or a message is available,
// notifications take precedence over messages.
func (e *Endpoint) Recv(ctx context.Context, mask uint32) (ev Event, err error) {
	for {
		if bits := e.fired(mask); bits != 0 {
			ev.Notification = bits
			return
		}

		select {
		case msg := <-e.inbox:
			ev.Message = msg
			return
		case <-e.kick:
		case <-ctx.Done():
			return ev, ctx.Err()
		}
	}
}

// Send delivers a message and blocks until it is answered.
func (e *Endpoint) Send(ctx context.Context, op uint16, args []byte, leases ...Lease) (res Response, err error) {
	msg := &Message{
		Op:     op,
		Args:   args,
		caller: newCaller(leases),
	}

	select {
	case e.inbox <- msg:
	case <-ctx.Done():
		return res, ctx.Err()
	}

	select {
	case res = <-msg.caller.reply:
	case <-ctx.Done():
		e.log.Warnf("sender gave up waiting for op %d reply", op)
		err = ctx.Err()
	}

	return
}
