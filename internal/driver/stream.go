// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package driver

import (
	"encoding/binary"

	"github.com/usbarmory/armory-hashcrypt/api"
	"github.com/usbarmory/armory-hashcrypt/internal/hashcrypt"
)

const allSources = hashcrypt.WAITING | hashcrypt.DIGEST | hashcrypt.ERROR

// service handles an engine interrupt. Output is always collected before
// new input is loaded, otherwise a pending digest could be overwritten.
func (d *Driver) service() {
	status := d.engine.Status()

	switch {
	case status.Digest():
		d.drain()
	case status.Waiting():
		d.feed()
	case status.Error():
		d.fault()
	}
}

// feed loads the next plaintext block.
func (d *Driver) feed() {
	s := d.slot.peek()

	if s == nil {
		return
	}

	var block [api.BlockSize]byte

	if err := s.caller.Lease(api.SourceLease).ReadAt(s.rpos, block[:]); err != nil {
		d.log.Debugf("source read at %d: %v", s.rpos, err)
		d.finish(api.BadArg)
		return
	}

	var words [4]uint32

	for i := range words {
		words[i] = binary.LittleEndian.Uint32(block[i*4:])
	}

	d.engine.WriteInput(words)
	s.rpos += api.BlockSize
	d.metrics.fed()

	d.engine.EnableInterrupts(hashcrypt.DIGEST)
}

// drain stores the next ciphertext block and completes the request after
// the last one.
func (d *Driver) drain() {
	s := d.slot.peek()

	if s == nil {
		return
	}

	var block [api.BlockSize]byte

	for i, w := range d.engine.ReadDigest() {
		binary.LittleEndian.PutUint32(block[i*4:], w)
	}

	if err := s.caller.Lease(api.DestinationLease).WriteAt(s.wpos, block[:]); err != nil {
		d.log.Debugf("destination write at %d: %v", s.wpos, err)
		d.finish(api.BadArg)
		return
	}

	s.wpos += api.BlockSize
	d.metrics.drained()

	if s.wpos == s.len {
		d.finish(api.Success)
	}
}

// fault handles the engine ERROR status.
func (d *Driver) fault() {
	d.metrics.fault()

	s, ok := d.slot.info()

	if !ok {
		d.log.Error("AES error")
		d.engine.DisableInterrupts(allSources)
		return
	}

	d.log.Errorf("AES error (len:%d rpos:%d wpos:%d)", s.Len, s.RPos, s.WPos)

	if d.config.ErrorPolicy == LogOnly {
		return
	}

	d.finish(api.EngineFault)
}

// finish disables the engine interrupt sources, frees the session and
// answers its caller.
func (d *Driver) finish(rc api.ResponseCode) {
	d.engine.DisableInterrupts(allSources)

	caller := d.slot.take()
	d.state = Idle

	if caller == nil {
		return
	}

	d.metrics.reply(rc)

	if rc == api.Success {
		caller.Reply(nil)
	} else {
		caller.ReplyFail(uint32(rc))
	}
}
