// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds28exx

import (
	"crypto/subtle"
	"errors"

	"github.com/GermanBionicSystems/onewire/owmaster"
	"github.com/GermanBionicSystems/onewire/romid"
	"github.com/GermanBionicSystems/onewire/sha256mac"
)

// ErrMacMismatch is the cause of the ErrOperationFailure returned by
// Authenticate when the device MAC is not the expected one.
var ErrMacMismatch = errors.New("ds28exx: mac mismatch")

var anonRomID = romid.RomID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// NewWriteMacData returns the write MAC input for a segment write.
func NewWriteMacData(id romid.RomID, man ManID, page, segment int, newData, oldData Segment) sha256mac.WriteMacData {
	var w sha256mac.WriteMacData
	copy(w[:8], id[:])
	w[8] = man[1]
	w[9] = man[0]
	w[10] = byte(page)
	w[11] = byte(segment)
	copy(w[12:16], oldData[:])
	copy(w[16:20], newData[:])
	return w
}

// NewProtectionWriteMacData returns the write MAC input for a block
// protection change.
func NewProtectionWriteMacData(id romid.RomID, man ManID, newP, oldP BlockProtection) sha256mac.WriteMacData {
	var w sha256mac.WriteMacData
	copy(w[:8], id[:])
	w[8] = man[1]
	w[9] = man[0]
	w[10] = byte(newP.Block())
	w[11] = 0
	o, n := oldP.flags(), newP.flags()
	copy(w[12:16], o[:])
	copy(w[16:20], n[:])
	return w
}

// NewAuthMacData returns the authentication MAC input for page. Use the
// anonymous variant for MACs computed with ComputeReadPageMac(page, true).
func NewAuthMacData(id romid.RomID, man ManID, page int) sha256mac.AuthMacData {
	var a sha256mac.AuthMacData
	copy(a[:8], id[:])
	a[8] = man[1]
	a[9] = man[0]
	a[10] = byte(page)
	a[11] = 0
	return a
}

// NewAnonAuthMacData returns the anonymous authentication MAC input for
// page.
func NewAnonAuthMacData(man ManID, page int) sha256mac.AuthMacData {
	return NewAuthMacData(anonRomID, man, page)
}

// NewSlaveSecretData returns the slave secret input for a binding page.
func NewSlaveSecretData(id romid.RomID, man ManID, bindingPage int) sha256mac.SlaveSecretData {
	return sha256mac.SlaveSecretData(NewAuthMacData(id, man, bindingPage))
}

// ComputeSegmentWriteMac computes the MAC expected by an authenticated
// segment write.
func ComputeSegmentWriteMac(c sha256mac.Coproc, page, segment int, newData, oldData Segment, id romid.RomID, man ManID) (sha256mac.Mac, error) {
	return c.ComputeWriteMac(NewWriteMacData(id, man, page, segment, newData, oldData))
}

// ComputeProtectionWriteMac computes the MAC expected by an authenticated
// block protection write.
func ComputeProtectionWriteMac(c sha256mac.Coproc, newP, oldP BlockProtection, id romid.RomID, man ManID) (sha256mac.Mac, error) {
	return c.ComputeWriteMac(NewProtectionWriteMacData(id, man, newP, oldP))
}

// ComputeNextSecret derives in c the secret a device computes with
// ComputeSecret: from its binding page, the partial secret written to its
// scratchpad and its identity.
func ComputeNextSecret(c sha256mac.Coproc, binding Page, bindingPage int, partial Scratchpad, id romid.RomID, man ManID) error {
	return c.ComputeSlaveSecret(sha256mac.DevicePage(binding), sha256mac.DeviceScratchpad(partial), NewSlaveSecretData(id, man, bindingPage))
}

// ComputeAuthMac computes the MAC a device returns for page read with
// challenge.
func ComputeAuthMac(c sha256mac.Coproc, data Page, page int, challenge Scratchpad, id romid.RomID, man ManID) (sha256mac.Mac, error) {
	return c.ComputeAuthMac(sha256mac.DevicePage(data), sha256mac.DeviceScratchpad(challenge), NewAuthMacData(id, man, page))
}

// ComputeAuthMacAnon computes the MAC a device returns for an anonymous
// read of page with challenge.
func ComputeAuthMacAnon(c sha256mac.Coproc, data Page, page int, challenge Scratchpad, man ManID) (sha256mac.Mac, error) {
	return ComputeAuthMac(c, data, page, challenge, anonRomID, man)
}

// Authenticate checks that the device holds the secret in c: it writes
// challenge to the scratchpad, has the device compute the MAC of page and
// compares it with the MAC computed by c over the page contents.
//
// The page contents are returned, authenticated on success. A wrong MAC is
// an ErrOperationFailure wrapping ErrMacMismatch.
func (d *Dev) Authenticate(c sha256mac.Coproc, page int, challenge Scratchpad, anon bool) (Page, error) {
	var data Page
	if err := d.checkPage(page); err != nil {
		return data, err
	}
	err := d.exclusive(func() error {
		if err := d.writeScratchpad(challenge); err != nil {
			return err
		}
		got, err := d.computeReadPageMac(page, anon)
		if err != nil {
			return err
		}
		if data, err = d.readPage(page, false); err != nil {
			return err
		}
		id := d.id
		if anon {
			id = anonRomID
		}
		want, err := ComputeAuthMac(c, data, page, challenge, id, d.manID)
		if err != nil {
			return owmaster.NewError(owmaster.ErrOperationFailure, "ds28exx: authenticate", err)
		}
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			return owmaster.NewError(owmaster.ErrOperationFailure, "ds28exx: authenticate", ErrMacMismatch)
		}
		return nil
	})
	return data, err
}
