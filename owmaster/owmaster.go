// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owmaster defines the primitive operations a 1-wire bus master
// exposes to protocol code.
//
// periph's onewire.Bus performs whole transactions (reset, write, read).
// Authenticator commands need finer control: they read CRCs between phases,
// hold a strong pull-up on the bus while the slave computes, then drop it and
// read a completion byte, all without an intervening reset. Master provides
// that control; Conn turns any Master back into a onewire.Bus.
package owmaster

import (
	"sync"

	"periph.io/x/conn/v3/onewire"
)

// Level is the pull-up applied to the bus after an operation completes.
type Level uint8

const (
	// NormalLevel is the default, weak pull-up.
	NormalLevel Level = iota
	// StrongLevel supplies the extra current drawn by EEPROM programming
	// and SHA-256 computation on parasite-powered devices.
	StrongLevel
)

func (l Level) String() string {
	if l == StrongLevel {
		return "Strong"
	}
	return "Normal"
}

// Pullup converts the level to periph's representation.
func (l Level) Pullup() onewire.Pullup {
	return l == StrongLevel
}

// Speed is the 1-wire bus signalling speed.
type Speed uint8

const (
	StandardSpeed Speed = iota
	OverdriveSpeed
)

func (s Speed) String() string {
	if s == OverdriveSpeed {
		return "Overdrive"
	}
	return "Standard"
}

// Master is a 1-wire bus master.
//
// Every method blocks until the bus operation completes. Implementations
// report a bounded wait that expired as an *Error of kind ErrTimeout and any
// other failure of the master itself as a plain error or an *Error of kind
// ErrCommunication.
//
// A Master is not required to be safe for concurrent use. If it implements
// sync.Locker, Exclusive uses it to keep a multi-phase command together.
type Master interface {
	// Reset issues a reset pulse and reports whether any slave answered with
	// a presence pulse.
	Reset() (bool, error)
	// TouchBitSetLevel writes bit (0 or 1) in one time slot and returns the bit
	// sampled in the same slot. Writing 1 reads the bus.
	TouchBitSetLevel(bit byte, after Level) (byte, error)
	// ReadByteSetLevel reads 8 time slots, then applies the after level.
	ReadByteSetLevel(after Level) (byte, error)
	// WriteByteSetLevel writes 8 time slots, then applies the after level.
	WriteByteSetLevel(b byte, after Level) error
	// ReadBlock fills r, leaving the bus at NormalLevel.
	ReadBlock(r []byte) error
	// WriteBlock writes w, leaving the bus at NormalLevel.
	WriteBlock(w []byte) error
	SetSpeed(s Speed) error
	SetLevel(l Level) error
	// Triplet performs two read slots and one write slot: it samples the id
	// bit and its complement from all participating slaves, then writes the
	// chosen direction so that only slaves with that bit keep participating.
	// If both values were seen, direction is written; otherwise the only
	// value present is.
	Triplet(direction byte) (onewire.TripletResult, error)
}

// ReadBit reads one time slot.
func ReadBit(m Master) (byte, error) {
	return m.TouchBitSetLevel(1, NormalLevel)
}

// WriteBit writes one time slot.
func WriteBit(m Master, bit byte) error {
	_, err := m.TouchBitSetLevel(bit&1, NormalLevel)
	return err
}

// ReadByte reads one byte at NormalLevel.
func ReadByte(m Master) (byte, error) {
	return m.ReadByteSetLevel(NormalLevel)
}

// WriteByte writes one byte at NormalLevel.
func WriteByte(m Master, b byte) error {
	return m.WriteByteSetLevel(b, NormalLevel)
}

// SoftTriplet implements Master.Triplet with three single bit operations,
// for masters that have no hardware triplet.
func SoftTriplet(m Master, direction byte) (onewire.TripletResult, error) {
	id, err := ReadBit(m)
	if err != nil {
		return onewire.TripletResult{}, err
	}
	cmp, err := ReadBit(m)
	if err != nil {
		return onewire.TripletResult{}, err
	}
	tr := onewire.TripletResult{GotZero: id == 0, GotOne: cmp == 0}
	switch {
	case tr.GotZero && tr.GotOne:
		tr.Taken = direction & 1
	case tr.GotOne:
		tr.Taken = 1
	case tr.GotZero:
		tr.Taken = 0
	default:
		// Nobody answered; the write slot is irrelevant but keeps the
		// timing identical to the hardware triplet.
		tr.Taken = 1
	}
	return tr, WriteBit(m, tr.Taken)
}

// Exclusive runs fn while holding m's lock, if m implements sync.Locker.
//
// Every logical command, from device selection to the final completion byte,
// must run inside one Exclusive call when the Master is shared between
// goroutines.
func Exclusive(m Master, fn func() error) error {
	if l, ok := m.(sync.Locker); ok {
		l.Lock()
		defer l.Unlock()
	}
	return fn()
}
