// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owmastertest is meant to be used to test drivers over a fake
// 1-wire bus master, one primitive at a time.
package owmastertest

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/onewire/owmaster"
	"periph.io/x/conn/v3/onewire"
)

// Op is a Master primitive.
type Op uint8

const (
	Reset Op = iota + 1
	TouchBit
	ReadByte
	WriteByte
	ReadBlock
	WriteBlock
	SetSpeed
	SetLevel
	Triplet
)

var opNames = [...]string{"?", "Reset", "TouchBit", "ReadByte", "WriteByte", "ReadBlock", "WriteBlock", "SetSpeed", "SetLevel", "Triplet"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// IO registers one primitive call.
//
// W holds the written bit, byte, block or triplet direction, R the read bit,
// byte or block. Level is the after level of bit and byte operations and the
// level of SetLevel.
type IO struct {
	Op      Op
	W       []byte
	R       []byte
	Level   owmaster.Level
	Speed   owmaster.Speed
	Present bool
	Triplet onewire.TripletResult
}

func (io IO) String() string {
	switch io.Op {
	case Reset:
		return fmt.Sprintf("Reset(present=%t)", io.Present)
	case SetLevel:
		return fmt.Sprintf("SetLevel(%s)", io.Level)
	case SetSpeed:
		return fmt.Sprintf("SetSpeed(%s)", io.Speed)
	case Triplet:
		return fmt.Sprintf("Triplet(%#v)=%+v", io.W, io.Triplet)
	default:
		return fmt.Sprintf("%s(w=%#v r=%#v %s)", io.Op, io.W, io.R, io.Level)
	}
}

// Record implements owmaster.Master and records everything written to and
// read from the wrapped Master.
//
// If Master is nil, reads return zeros, resets report a presence pulse and
// triplets report no responding device.
type Record struct {
	sync.Mutex
	Master owmaster.Master
	Ops    []IO
}

func (r *Record) String() string {
	return "record"
}

// Reset implements owmaster.Master.
func (r *Record) Reset() (bool, error) {
	present := true
	var err error
	if r.Master != nil {
		present, err = r.Master.Reset()
	}
	r.Ops = append(r.Ops, IO{Op: Reset, Present: present})
	return present, err
}

// TouchBitSetLevel implements owmaster.Master.
func (r *Record) TouchBitSetLevel(bit byte, after owmaster.Level) (byte, error) {
	out := bit
	var err error
	if r.Master != nil {
		out, err = r.Master.TouchBitSetLevel(bit, after)
	}
	r.Ops = append(r.Ops, IO{Op: TouchBit, W: []byte{bit}, R: []byte{out}, Level: after})
	return out, err
}

// ReadByteSetLevel implements owmaster.Master.
func (r *Record) ReadByteSetLevel(after owmaster.Level) (byte, error) {
	var b byte
	var err error
	if r.Master != nil {
		b, err = r.Master.ReadByteSetLevel(after)
	}
	r.Ops = append(r.Ops, IO{Op: ReadByte, R: []byte{b}, Level: after})
	return b, err
}

// WriteByteSetLevel implements owmaster.Master.
func (r *Record) WriteByteSetLevel(b byte, after owmaster.Level) error {
	var err error
	if r.Master != nil {
		err = r.Master.WriteByteSetLevel(b, after)
	}
	r.Ops = append(r.Ops, IO{Op: WriteByte, W: []byte{b}, Level: after})
	return err
}

// ReadBlock implements owmaster.Master.
func (r *Record) ReadBlock(p []byte) error {
	var err error
	if r.Master != nil {
		err = r.Master.ReadBlock(p)
	}
	r.Ops = append(r.Ops, IO{Op: ReadBlock, R: append([]byte(nil), p...)})
	return err
}

// WriteBlock implements owmaster.Master.
func (r *Record) WriteBlock(p []byte) error {
	var err error
	if r.Master != nil {
		err = r.Master.WriteBlock(p)
	}
	r.Ops = append(r.Ops, IO{Op: WriteBlock, W: append([]byte(nil), p...)})
	return err
}

// SetSpeed implements owmaster.Master.
func (r *Record) SetSpeed(s owmaster.Speed) error {
	var err error
	if r.Master != nil {
		err = r.Master.SetSpeed(s)
	}
	r.Ops = append(r.Ops, IO{Op: SetSpeed, Speed: s})
	return err
}

// SetLevel implements owmaster.Master.
func (r *Record) SetLevel(l owmaster.Level) error {
	var err error
	if r.Master != nil {
		err = r.Master.SetLevel(l)
	}
	r.Ops = append(r.Ops, IO{Op: SetLevel, Level: l})
	return err
}

// Triplet implements owmaster.Master.
func (r *Record) Triplet(direction byte) (onewire.TripletResult, error) {
	tr := onewire.TripletResult{Taken: 1}
	var err error
	if r.Master != nil {
		tr, err = r.Master.Triplet(direction)
	}
	r.Ops = append(r.Ops, IO{Op: Triplet, W: []byte{direction}, Triplet: tr})
	return tr, err
}

// Playback implements owmaster.Master and plays back a recorded sequence of
// primitives.
//
// While "replay" type of unit tests are of limited value, they help
// reproduce the exact frame layout a device expects.
type Playback struct {
	sync.Mutex
	Ops       []IO
	Count     int
	DontPanic bool
}

func (p *Playback) String() string {
	return "playback"
}

// Close implements io.Closer. It fails if not all the recorded operations
// were consumed.
func (p *Playback) Close() error {
	if len(p.Ops) != p.Count {
		return errorf(p.DontPanic, "owmastertest: expected playback to be empty: I/O count %d; expected %d", p.Count, len(p.Ops))
	}
	return nil
}

// Reset implements owmaster.Master.
func (p *Playback) Reset() (bool, error) {
	io, err := p.next(IO{Op: Reset})
	return io.Present, err
}

// TouchBitSetLevel implements owmaster.Master.
func (p *Playback) TouchBitSetLevel(bit byte, after owmaster.Level) (byte, error) {
	io, err := p.next(IO{Op: TouchBit, W: []byte{bit}, Level: after})
	if err != nil || len(io.R) == 0 {
		return 0, err
	}
	return io.R[0], nil
}

// ReadByteSetLevel implements owmaster.Master.
func (p *Playback) ReadByteSetLevel(after owmaster.Level) (byte, error) {
	io, err := p.next(IO{Op: ReadByte, R: []byte{0}, Level: after})
	if err != nil {
		return 0, err
	}
	return io.R[0], nil
}

// WriteByteSetLevel implements owmaster.Master.
func (p *Playback) WriteByteSetLevel(b byte, after owmaster.Level) error {
	_, err := p.next(IO{Op: WriteByte, W: []byte{b}, Level: after})
	return err
}

// ReadBlock implements owmaster.Master.
func (p *Playback) ReadBlock(r []byte) error {
	io, err := p.next(IO{Op: ReadBlock, R: r})
	if err == nil {
		copy(r, io.R)
	}
	return err
}

// WriteBlock implements owmaster.Master.
func (p *Playback) WriteBlock(w []byte) error {
	_, err := p.next(IO{Op: WriteBlock, W: w})
	return err
}

// SetSpeed implements owmaster.Master.
func (p *Playback) SetSpeed(s owmaster.Speed) error {
	_, err := p.next(IO{Op: SetSpeed, Speed: s})
	return err
}

// SetLevel implements owmaster.Master.
func (p *Playback) SetLevel(l owmaster.Level) error {
	_, err := p.next(IO{Op: SetLevel, Level: l})
	return err
}

// Triplet implements owmaster.Master.
func (p *Playback) Triplet(direction byte) (onewire.TripletResult, error) {
	io, err := p.next(IO{Op: Triplet, W: []byte{direction}})
	return io.Triplet, err
}

// next matches got against the next recorded operation. Only the shape of
// reads (their length) is compared; written data and levels must match
// exactly.
//
// next does not take the lock: owmaster.Exclusive holds it for the whole
// command.
func (p *Playback) next(got IO) (IO, error) {
	if p.Count >= len(p.Ops) {
		return IO{}, errorf(p.DontPanic, "owmastertest: unexpected %s (count #%d > len(ops) %d)", got, p.Count, len(p.Ops))
	}
	want := p.Ops[p.Count]
	if want.Op != got.Op {
		return IO{}, errorf(p.DontPanic, "owmastertest: unexpected %s at #%d; expected %s", got, p.Count, want)
	}
	switch got.Op {
	case TouchBit, WriteByte, WriteBlock, Triplet:
		if !bytes.Equal(want.W, got.W) {
			return IO{}, errorf(p.DontPanic, "owmastertest: unexpected write %#v at #%d; expected %#v", got.W, p.Count, want.W)
		}
	case ReadBlock:
		if len(want.R) != len(got.R) {
			return IO{}, errorf(p.DontPanic, "owmastertest: unexpected read length %d at #%d; expected %d", len(got.R), p.Count, len(want.R))
		}
	}
	switch got.Op {
	case TouchBit, ReadByte, WriteByte, SetLevel:
		if want.Level != got.Level {
			return IO{}, errorf(p.DontPanic, "owmastertest: unexpected level %s at #%d; expected %s", got.Level, p.Count, want.Level)
		}
	case SetSpeed:
		if want.Speed != got.Speed {
			return IO{}, errorf(p.DontPanic, "owmastertest: unexpected speed %s at #%d; expected %s", got.Speed, p.Count, want.Speed)
		}
	}
	if got.Op == ReadByte && len(want.R) != 1 {
		return IO{}, errorf(p.DontPanic, "owmastertest: recorded ReadByte at #%d must hold one byte", p.Count)
	}
	p.Count++
	return want, nil
}

func errorf(dontPanic bool, format string, a ...interface{}) error {
	err := fmt.Errorf(format, a...)
	if !dontPanic {
		panic(err)
	}
	return err
}

var _ owmaster.Master = &Record{}
var _ owmaster.Master = &Playback{}
