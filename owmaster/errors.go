// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owmaster

import (
	"errors"

	"periph.io/x/conn/v3/onewire"
)

// Kind classifies a failed 1-wire transaction by what the caller can do
// about it. A Kind is itself an error so it can be used as an errors.Is
// target:
//
//	if errors.Is(err, owmaster.ErrCRC) {
//		// retry the same command
//	}
type Kind uint8

const (
	// ErrCommunication is a bus-level failure: no presence pulse, a master
	// error, an invalid ROM id. Re-address, possibly re-discover, before
	// retrying.
	ErrCommunication Kind = iota + 1
	// ErrTimeout is a bounded wait inside the master that expired. It is
	// handled exactly like ErrCommunication and errors.Is reports a match
	// for both.
	ErrTimeout
	// ErrCRC is a corrupted frame. The whole command can be retried as is.
	ErrCRC
	// ErrOperationFailure means the device (or the MAC coprocessor) rejected
	// the operation. It is not safe to retry without re-reading the device
	// state.
	ErrOperationFailure
)

func (k Kind) Error() string {
	switch k {
	case ErrCommunication:
		return "communication error"
	case ErrTimeout:
		return "timeout"
	case ErrCRC:
		return "crc error"
	case ErrOperationFailure:
		return "operation failure"
	default:
		return "unknown error"
	}
}

// Error is a classified 1-wire failure.
type Error struct {
	Kind Kind
	Op   string // command that failed, e.g. "ds28exx: write memory"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	s := e.Kind.Error()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the Kind sentinels. A timeout also matches ErrCommunication.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	if !ok {
		return false
	}
	return k == e.Kind || (k == ErrCommunication && e.Kind == ErrTimeout)
}

// Retryable reports whether repeating the same command is safe.
func (e *Error) Retryable() bool {
	return e.Kind == ErrCRC
}

// BusError implements onewire.BusError. It is false only when the cause is
// a failure of the master hardware itself rather than of the 1-wire bus.
func (e *Error) BusError() bool {
	if e.Err == nil {
		return true
	}
	var be interface{ BusError() bool }
	if errors.As(e.Err, &be) {
		return be.BusError()
	}
	return e.Kind != ErrCommunication && e.Kind != ErrTimeout
}

// Wrap classifies err, returned by a Master primitive while running op, as
// ErrCommunication unless it already carries a Kind. It returns nil if err
// is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" {
			return &Error{Kind: e.Kind, Op: op, Err: e.Err}
		}
		return err
	}
	var k Kind
	if errors.As(err, &k) {
		return &Error{Kind: k, Op: op}
	}
	return &Error{Kind: ErrCommunication, Op: op, Err: err}
}

// NewError returns an *Error of kind k.
func NewError(k Kind, op string, cause error) error {
	return &Error{Kind: k, Op: op, Err: cause}
}

// noPresence is the cause of an ErrCommunication when a reset got no
// presence pulse. It implements periph's no-devices marker.
type noPresence struct{}

func (noPresence) Error() string   { return "no device present" }
func (noPresence) NoDevices() bool { return true }
func (noPresence) BusError() bool  { return true }

// ErrNoPresence is the cause wrapped when no slave answered a reset.
var ErrNoPresence error = noPresence{}

// ResetPresent resets the bus and fails with ErrCommunication wrapping
// ErrNoPresence if no slave answered.
func ResetPresent(m Master, op string) error {
	present, err := m.Reset()
	if err != nil {
		return Wrap(op, err)
	}
	if !present {
		return &Error{Kind: ErrCommunication, Op: op, Err: ErrNoPresence}
	}
	return nil
}

var _ onewire.BusError = &Error{}
