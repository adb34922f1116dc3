// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testLine struct {
	level atomic.Bool
}

func (l *testLine) Asserted() bool {
	return l.level.Load()
}

func TestLeaseAccess(t *testing.T) {
	require := require.New(t)

	buf := []byte("0123456789abcdef0123")
	r := NewReadLease(buf)

	info, ok := r.Info()
	require.True(ok)
	require.Equal(LeaseInfo{Attributes: READ, Len: 20}, info)

	block := make([]byte, 16)
	require.NoError(r.ReadAt(0, block))
	require.Equal(buf[:16], block)

	require.ErrorIs(r.ReadAt(16, block), ErrOutOfBounds)
	require.ErrorIs(r.ReadAt(-1, block), ErrOutOfBounds)
	require.ErrorIs(r.WriteAt(0, block), ErrPermission)

	dst := make([]byte, 16)
	w := NewWriteLease(dst)
	require.NoError(w.WriteAt(0, block))
	require.Equal(block, dst)
	require.ErrorIs(w.ReadAt(0, block), ErrPermission)

	w.Revoke()
	_, ok = w.Info()
	require.False(ok)
	require.ErrorIs(w.WriteAt(0, block), ErrRevoked)
}

func TestLeaseAttributes(t *testing.T) {
	require := require.New(t)

	require.True((READ | WRITE).Contains(READ))
	require.False(WRITE.Contains(READ))
	require.Equal("RW", (READ | WRITE).String())
	require.Equal("-", LeaseAttributes(0).String())
}

func TestCallerReplyOnce(t *testing.T) {
	require := require.New(t)

	c := newCaller([]Lease{NewReadLease(nil)})
	require.Equal(1, c.Leases())

	_, ok := c.Lease(1).Info()
	require.False(ok)

	require.NoError(c.ReplyFail(3))
	require.True(c.Replied())
	require.ErrorIs(c.Reply(nil), ErrReplied)
	require.Equal(Response{Code: 3}, <-c.reply)
}

func TestCallerNilLease(t *testing.T) {
	require := require.New(t)

	var b *Buffer

	c := newCaller([]Lease{b, nil})
	require.Equal(2, c.Leases())

	for i := 0; i < c.Leases(); i++ {
		_, ok := c.Lease(i).Info()
		require.False(ok)
		require.ErrorIs(c.Lease(i).ReadAt(0, make([]byte, 16)), ErrRevoked)
	}
}

func TestEndpointSendRecv(t *testing.T) {
	require := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ep := NewEndpoint(EndpointConfig{})
	done := make(chan Response, 1)

	go func() {
		res, err := ep.Send(ctx, 1, []byte{1, 2}, NewReadLease([]byte{0}))

		if err == nil {
			done <- res
		}
	}()

	ev, err := ep.Recv(ctx, 1)
	require.NoError(err)
	require.Zero(ev.Notification)
	require.NotNil(ev.Message)
	require.Equal(uint16(1), ev.Message.Op)
	require.Equal([]byte{1, 2}, ev.Message.Args)

	require.NoError(ev.Message.Caller().Reply([]byte("ok")))
	require.Equal(Response{Payload: []byte("ok")}, <-done)
}

func TestEndpointInterruptMasking(t *testing.T) {
	require := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	line := &testLine{}
	line.level.Store(true)

	ep := NewEndpoint(EndpointConfig{Queue: 1})
	ep.BindInterrupt(1, line)

	// not enabled yet, a message is delivered instead
	go ep.Send(ctx, 7, nil)

	ev, err := ep.Recv(ctx, 1)
	require.NoError(err)
	require.NotNil(ev.Message)

	ep.IRQControl(1, true)

	ev, err = ep.Recv(ctx, 1)
	require.NoError(err)
	require.Equal(uint32(1), ev.Notification)

	// delivery masks the line until re-armed
	short, stop := context.WithTimeout(ctx, 50*time.Millisecond)
	defer stop()

	_, err = ep.Recv(short, 1)
	require.ErrorIs(err, context.DeadlineExceeded)

	ep.IRQControl(1, true)

	ev, err = ep.Recv(ctx, 1)
	require.NoError(err)
	require.Equal(uint32(1), ev.Notification)
}

func TestEndpointNotificationPrecedence(t *testing.T) {
	require := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ep := NewEndpoint(EndpointConfig{Queue: 1})
	ep.IRQControl(2, true)

	go ep.Send(ctx, 1, nil)

	require.Eventually(func() bool { return len(ep.inbox) == 1 }, time.Second, time.Millisecond)

	ep.Post(2)

	ev, err := ep.Recv(ctx, 3)
	require.NoError(err)
	require.Equal(uint32(2), ev.Notification)

	ev, err = ep.Recv(ctx, 3)
	require.NoError(err)
	require.NotNil(ev.Message)
}

func TestEndpointSample(t *testing.T) {
	require := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	line := &testLine{}

	ep := NewEndpoint(EndpointConfig{})
	ep.BindInterrupt(1, line)
	ep.IRQControl(1, true)

	done := make(chan Event, 1)

	go func() {
		if ev, err := ep.Recv(ctx, 1); err == nil {
			done <- ev
		}
	}()

	// the line rises without any notifier once the receiver is blocked
	require.Eventually(func() bool { return len(ep.kick) == 0 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	line.level.Store(true)

	select {
	case <-done:
		t.Fatal("line observed without sampling")
	case <-time.After(50 * time.Millisecond):
	}

	sampling, stop := context.WithCancel(ctx)
	defer stop()

	go ep.Sample(sampling, time.Millisecond)

	select {
	case ev := <-done:
		require.Equal(uint32(1), ev.Notification)
	case <-ctx.Done():
		t.Fatal("line not sampled")
	}
}
