// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"errors"
	"sync/atomic"
)

// ErrReplied is returned when replying more than once to the same caller.
var ErrReplied = errors.New("caller already replied")

// Response represents the reply to a message.
type Response struct {
	Code    uint32
	Payload []byte
}

// Message represents a received request.
type Message struct {
	Op   uint16
	Args []byte

	caller *Caller
}

// Caller returns the reply capability of the message sender.
func (m *Message) Caller() *Caller {
	return m.caller
}

// Caller represents a blocked sender, its leases and its pending reply.
//
// A Caller can be answered once, with either Reply or ReplyFail. Servers
// holding a Caller across receive loop iterations own that reply.
type Caller struct {
	leases  []Lease
	reply   chan Response
	replied atomic.Bool
}

func newCaller(leases []Lease) *Caller {
	return &Caller{
		leases: leases,
		reply:  make(chan Response, 1),
	}
}

// Leases returns the number of leases lent by the caller.
func (c *Caller) Leases() int {
	return len(c.leases)
}

// Lease returns lease i, an absent index or a nil lease yields a lease
// without info.
func (c *Caller) Lease(i int) Lease {
	if i < 0 || i >= len(c.leases) || c.leases[i] == nil {
		return missing{}
	}

	if b, ok := c.leases[i].(*Buffer); ok && b == nil {
		return missing{}
	}

	return c.leases[i]
}

// Replied reports whether the caller has been answered.
func (c *Caller) Replied() bool {
	return c.replied.Load()
}

func (c *Caller) send(res Response) error {
	if !c.replied.CompareAndSwap(false, true) {
		return ErrReplied
	}

	c.reply <- res

	return nil
}

// Reply unblocks the caller with a successful response.
func (c *Caller) Reply(payload []byte) error {
	return c.send(Response{Payload: payload})
}

// ReplyFail unblocks the caller with a non-zero response code.
func (c *Caller) ReplyFail(code uint32) error {
	return c.send(Response{Code: code})
}
