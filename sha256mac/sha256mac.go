// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sha256mac defines the SHA-256 MAC coprocessor used to authenticate
// DS28E15, DS28E22 and DS28E25 devices, and a software implementation.
//
// A coprocessor holds a master secret. The secret of each slave is derived
// from it with ComputeSlaveSecret; MACs are then computed with that slave
// secret. Implementations are not safe for concurrent use by several
// authentication sessions since the slave secret is state.
package sha256mac

import (
	"crypto/sha256"
	"errors"
	"sync"
)

// Secret is a device or master secret.
type Secret [32]byte

// Mac is a SHA-256 message authentication code.
type Mac [32]byte

// DevicePage is the contents of a device memory page.
type DevicePage [32]byte

// DeviceScratchpad is the contents of a device scratchpad, or a challenge.
type DeviceScratchpad [32]byte

// WriteMacData is the additional input of a write MAC:
//
//	[0:8]   ROM id
//	[8:10]  manufacturer id, high byte first
//	[10]    page or block number
//	[11]    segment number
//	[12:16] old data
//	[16:20] new data
type WriteMacData [20]byte

// AuthMacData is the additional input of an authentication MAC:
//
//	[0:8]   ROM id, all 0xFF for an anonymous MAC
//	[8:10]  manufacturer id, high byte first
//	[10]    page number
//	[11]    0
type AuthMacData [12]byte

// SlaveSecretData is the additional input of a slave secret computation. It
// has the same layout as AuthMacData.
type SlaveSecretData [12]byte

// Coproc is a SHA-256 MAC coprocessor compatible with the DS28E15/22/25.
//
// Errors are coprocessor failures; callers classify them as operation
// failures.
type Coproc interface {
	// SetMasterSecret replaces the master secret.
	SetMasterSecret(s Secret) error
	// ComputeSlaveSecret derives the slave secret from the master secret and
	// keeps it for the following MAC computations.
	ComputeSlaveSecret(page DevicePage, scratchpad DeviceScratchpad, data SlaveSecretData) error
	// ComputeWriteMac computes the MAC a device expects for an authenticated
	// write.
	ComputeWriteMac(data WriteMacData) (Mac, error)
	// ComputeAuthMac computes the MAC a device returns for a page read with
	// challenge.
	ComputeAuthMac(page DevicePage, challenge DeviceScratchpad, data AuthMacData) (Mac, error)
}

// ErrNoSecret is returned when a MAC is requested before a secret was set.
var ErrNoSecret = errors.New("sha256mac: no secret")

// Soft is a Coproc computing in software.
//
// Inputs are hashed after the secret, in the order a DS2465 lays them out in
// its scratchpad. The zero value has no secret.
type Soft struct {
	mu          sync.Mutex
	master      Secret
	slave       Secret
	masterValid bool
	slaveValid  bool
}

// NewSoft returns a software coprocessor holding master.
func NewSoft(master Secret) *Soft {
	return &Soft{master: master, masterValid: true}
}

func (s *Soft) String() string {
	return "sha256mac.Soft"
}

// SetMasterSecret implements Coproc. The slave secret is dropped.
func (s *Soft) SetMasterSecret(m Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.master = m
	s.masterValid = true
	s.slaveValid = false
	return nil
}

// SetSlaveSecret uses sec as the slave secret directly, for devices
// provisioned with a secret loaded as is instead of a computed one.
func (s *Soft) SetSlaveSecret(sec Secret) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slave = sec
	s.slaveValid = true
}

// ComputeSlaveSecret implements Coproc.
func (s *Soft) ComputeSlaveSecret(page DevicePage, scratchpad DeviceScratchpad, data SlaveSecretData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.masterValid {
		return ErrNoSecret
	}
	s.slave = hash(&s.master, page[:], scratchpad[:], data[:])
	s.slaveValid = true
	return nil
}

// ComputeWriteMac implements Coproc.
func (s *Soft) ComputeWriteMac(data WriteMacData) (Mac, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.slaveValid {
		return Mac{}, ErrNoSecret
	}
	return Mac(hash(&s.slave, data[:])), nil
}

// ComputeAuthMac implements Coproc.
func (s *Soft) ComputeAuthMac(page DevicePage, challenge DeviceScratchpad, data AuthMacData) (Mac, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.slaveValid {
		return Mac{}, ErrNoSecret
	}
	return Mac(hash(&s.slave, page[:], challenge[:], data[:])), nil
}

func hash(secret *Secret, parts ...[]byte) [32]byte {
	h := sha256.New()
	h.Write(secret[:])
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

var _ Coproc = &Soft{}
