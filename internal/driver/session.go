// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package driver

import (
	"github.com/usbarmory/armory-hashcrypt/internal/kernel"
)

// State represents the driver logical state.
type State int

const (
	Idle State = iota
	KeyLoading
	Streaming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case KeyLoading:
		return "key loading"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// session represents the in-flight encryption.
type session struct {
	caller *kernel.Caller

	// total length
	len int
	// bytes fed to the engine
	rpos int
	// bytes written back to the caller
	wpos int
}

// SessionInfo is a snapshot of the in-flight encryption progress.
type SessionInfo struct {
	Len  int
	RPos int
	WPos int
}

// slot holds at most one session, the caller reply capability can only be
// obtained by taking the session out of the slot.
type slot struct {
	s    session
	used bool
}

func (sl *slot) busy() bool {
	return sl.used
}

func (sl *slot) put(caller *kernel.Caller, n int) {
	sl.s = session{
		caller: caller,
		len:    n,
	}
	sl.used = true
}

func (sl *slot) peek() *session {
	if !sl.used {
		return nil
	}

	return &sl.s
}

// take empties the slot and returns its caller, nil when empty.
func (sl *slot) take() (caller *kernel.Caller) {
	if !sl.used {
		return
	}

	caller = sl.s.caller
	sl.s = session{}
	sl.used = false

	return
}

func (sl *slot) info() (info SessionInfo, ok bool) {
	if !sl.used {
		return
	}

	return SessionInfo{Len: sl.s.len, RPos: sl.s.rpos, WPos: sl.s.wpos}, true
}
