// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds28exx

import (
	"fmt"
	"time"

	"github.com/GermanBionicSystems/onewire/common"
	"github.com/GermanBionicSystems/onewire/owmaster"
	"github.com/GermanBionicSystems/onewire/sha256mac"
	"go.uber.org/zap"
)

// Completion code returned by the device, and written by the host to release
// a command into its power phase.
const csSuccess = 0xaa

// frame runs one command on the device, phase by phase.
//
// It accumulates the CRC16 of the current phase. The first error sticks:
// every later call is a no-op and err is returned by the command.
type frame struct {
	d   *Dev
	op  string
	crc uint16
	err error
}

func (d *Dev) newFrame(op string) *frame {
	return &frame{d: d, op: "ds28exx: " + op}
}

// start selects the device and sends the command and its parameter.
func (f *frame) start(cmd, param byte) {
	if f.err != nil {
		return
	}
	if err := f.d.sel.SelectDevice(f.d.id); err != nil {
		f.err = owmaster.Wrap(f.op, err)
		return
	}
	f.write([]byte{cmd, param})
}

// seed starts the CRC16 of the phase from the CRC16 of b.
func (f *frame) seed(b ...byte) {
	f.crc = common.CRC16(b, 0)
}

func (f *frame) write(w []byte) {
	if f.err != nil {
		return
	}
	f.crc = common.CRC16(w, f.crc)
	f.err = owmaster.Wrap(f.op, f.d.m.WriteBlock(w))
}

func (f *frame) read(r []byte) {
	if f.err != nil {
		return
	}
	if f.err = owmaster.Wrap(f.op, f.d.m.ReadBlock(r)); f.err == nil {
		f.crc = common.CRC16(r, f.crc)
	}
}

// readPower reads r byte by byte and switches to the strong pull-up after
// the last one, then holds it for d.
func (f *frame) readPower(r []byte, d time.Duration) {
	for i := range r {
		if f.err != nil {
			return
		}
		after := owmaster.NormalLevel
		if i == len(r)-1 {
			after = owmaster.StrongLevel
		}
		var err error
		if r[i], err = f.d.m.ReadByteSetLevel(after); err != nil {
			f.err = owmaster.Wrap(f.op, err)
			return
		}
		f.crc = common.CRC16(r[i:i+1], f.crc)
	}
	f.power(d)
}

// power holds the strong pull-up for d then returns to the normal level.
func (f *frame) power(d time.Duration) {
	if f.err != nil {
		return
	}
	sleep(d)
	f.err = owmaster.Wrap(f.op, f.d.m.SetLevel(owmaster.NormalLevel))
}

// check verifies the CRC16 residue of the phase and starts the next one.
func (f *frame) check(phase string) {
	if f.err != nil {
		return
	}
	if f.crc != common.CRC16Residue {
		f.d.log.Debug("crc16 mismatch", zap.String("op", f.op), zap.String("phase", phase), zap.Stringer("rom", f.d.id), zap.Uint16("residue", f.crc))
		f.err = owmaster.NewError(owmaster.ErrCRC, f.op, crcError(phase))
	}
	f.crc = 0
}

// release sends the release byte with the strong pull-up, waits d for the
// device to complete, and reads the completion code.
func (f *frame) release(d time.Duration) {
	if f.err != nil {
		return
	}
	if err := f.d.m.WriteByteSetLevel(csSuccess, owmaster.StrongLevel); err != nil {
		f.err = owmaster.Wrap(f.op, err)
		return
	}
	f.power(d)
	f.status()
}

// status reads the completion code.
func (f *frame) status() {
	if f.err != nil {
		return
	}
	cs, err := f.d.m.ReadByteSetLevel(owmaster.NormalLevel)
	if err != nil {
		f.err = owmaster.Wrap(f.op, err)
		return
	}
	f.completed(cs)
}

// completed checks a completion code.
func (f *frame) completed(cs byte) {
	if cs != csSuccess {
		f.d.log.Debug("operation rejected", zap.String("op", f.op), zap.Stringer("rom", f.d.id), zap.Uint8("cs", cs))
		f.err = owmaster.NewError(owmaster.ErrOperationFailure, f.op, csError(cs))
	}
}

// sendMac sends the write MAC, checks its CRC16 and the completion code
// that follows it.
func (f *frame) sendMac(mac sha256mac.Mac) {
	f.write(mac[:])
	if f.err != nil {
		return
	}
	var b [3]byte
	if f.err = owmaster.Wrap(f.op, f.d.m.ReadBlock(b[:])); f.err != nil {
		return
	}
	f.crc = common.CRC16(b[:2], f.crc)
	f.check("mac")
	if f.err == nil {
		f.completed(b[2])
	}
}

// fail records err from the coprocessor or the host side as an operation
// failure.
func (f *frame) fail(err error) {
	if f.err == nil && err != nil {
		f.err = owmaster.NewError(owmaster.ErrOperationFailure, f.op, err)
	}
}

// crcError is the cause of an ErrCRC; it names the phase.
type crcError string

func (e crcError) Error() string {
	return "invalid crc16 in " + string(e) + " phase"
}

// csError is the cause of an ErrOperationFailure for a completion code other
// than 0xaa.
type csError byte

func (e csError) Error() string {
	return fmt.Sprintf("completion code 0x%02x", byte(e))
}
