// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// LeaseAttributes represents the access rights granted by a lease.
type LeaseAttributes uint32

const (
	READ LeaseAttributes = 1 << iota
	WRITE
)

// Contains reports whether all attributes in b are granted.
func (a LeaseAttributes) Contains(b LeaseAttributes) bool {
	return a&b == b
}

func (a LeaseAttributes) String() string {
	s := ""

	if a.Contains(READ) {
		s += "R"
	}

	if a.Contains(WRITE) {
		s += "W"
	}

	if s == "" {
		s = "-"
	}

	return s
}

// LeaseInfo describes a lease.
type LeaseInfo struct {
	Attributes LeaseAttributes
	Len        int
}

var (
	ErrPermission  = errors.New("lease permission denied")
	ErrOutOfBounds = errors.New("lease access out of bounds")
	ErrRevoked     = errors.New("lease revoked")
)

// Lease represents a caller memory region borrowed by a server for the
// duration of one request. Accesses are bounds and permission checked and
// copy only the requested window.
type Lease interface {
	// Info returns the lease description, ok is false when the lease
	// does not exist (anymore).
	Info() (info LeaseInfo, ok bool)
	// ReadAt copies len(buf) bytes at offset off into buf.
	ReadAt(off int, buf []byte) error
	// WriteAt copies buf into the lease at offset off.
	WriteAt(off int, buf []byte) error
}

// Buffer is a Lease over caller owned memory.
type Buffer struct {
	attr    LeaseAttributes
	data    []byte
	revoked atomic.Bool
}

// NewLease grants access to buf with the given attributes, buf is not copied.
func NewLease(buf []byte, attr LeaseAttributes) *Buffer {
	return &Buffer{
		attr: attr,
		data: buf,
	}
}

// NewReadLease grants read-only access to buf.
func NewReadLease(buf []byte) *Buffer {
	return NewLease(buf, READ)
}

// NewWriteLease grants write-only access to buf.
func NewWriteLease(buf []byte) *Buffer {
	return NewLease(buf, WRITE)
}

// Revoke withdraws the lease, as it happens when the lending task dies.
func (b *Buffer) Revoke() {
	b.revoked.Store(true)
}

func (b *Buffer) Info() (info LeaseInfo, ok bool) {
	if b.revoked.Load() {
		return
	}

	return LeaseInfo{Attributes: b.attr, Len: len(b.data)}, true
}

func (b *Buffer) window(off int, n int, attr LeaseAttributes) (buf []byte, err error) {
	switch {
	case b.revoked.Load():
		return nil, ErrRevoked
	case !b.attr.Contains(attr):
		return nil, fmt.Errorf("%w (%v lease, %v access)", ErrPermission, b.attr, attr)
	case off < 0 || n > len(b.data) || off > len(b.data)-n:
		return nil, fmt.Errorf("%w (off:%d len:%d size:%d)", ErrOutOfBounds, off, n, len(b.data))
	}

	return b.data[off : off+n], nil
}

func (b *Buffer) ReadAt(off int, buf []byte) (err error) {
	w, err := b.window(off, len(buf), READ)

	if err != nil {
		return
	}

	copy(buf, w)

	return
}

func (b *Buffer) WriteAt(off int, buf []byte) (err error) {
	w, err := b.window(off, len(buf), WRITE)

	if err != nil {
		return
	}

	copy(w, buf)

	return
}

// missing represents an absent lease index.
type missing struct{}

func (missing) Info() (LeaseInfo, bool)   { return LeaseInfo{}, false }
func (missing) ReadAt(int, []byte) error  { return ErrRevoked }
func (missing) WriteAt(int, []byte) error { return ErrRevoked }
