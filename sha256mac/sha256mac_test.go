// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sha256mac

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoft_noSecret(t *testing.T) {
	var s Soft
	assert.ErrorIs(t, s.ComputeSlaveSecret(DevicePage{}, DeviceScratchpad{}, SlaveSecretData{}), ErrNoSecret)
	_, err := s.ComputeWriteMac(WriteMacData{})
	assert.ErrorIs(t, err, ErrNoSecret)

	s2 := NewSoft(Secret{1})
	_, err = s2.ComputeAuthMac(DevicePage{}, DeviceScratchpad{}, AuthMacData{})
	assert.ErrorIs(t, err, ErrNoSecret, "slave secret not computed yet")
}

func TestSoft_deterministic(t *testing.T) {
	master := Secret{0xde, 0xad, 0xbe, 0xef}
	page := DevicePage{1, 2, 3}
	pad := DeviceScratchpad{4, 5, 6}
	data := SlaveSecretData{0x17, 0, 0, 0, 0, 0, 0, 0x11, 0x00, 0x00, 0, 0}

	a, b := NewSoft(master), NewSoft(Secret{})
	require.NoError(t, b.SetMasterSecret(master))
	require.NoError(t, a.ComputeSlaveSecret(page, pad, data))
	require.NoError(t, b.ComputeSlaveSecret(page, pad, data))

	auth := AuthMacData{0x17, 1, 2, 3, 4, 5, 6, 7, 0, 0, 1, 0}
	ma, err := a.ComputeAuthMac(page, pad, auth)
	require.NoError(t, err)
	mb, err := b.ComputeAuthMac(page, pad, auth)
	require.NoError(t, err)
	assert.Equal(t, ma, mb)

	// Any input bit changes the MAC.
	auth[10] = 0
	mc, err := a.ComputeAuthMac(page, pad, auth)
	require.NoError(t, err)
	assert.NotEqual(t, ma, mc)

	wa, err := a.ComputeWriteMac(WriteMacData{1})
	require.NoError(t, err)
	wb, err := b.ComputeWriteMac(WriteMacData{1})
	require.NoError(t, err)
	assert.Equal(t, wa, wb)
}

func TestSoft_layout(t *testing.T) {
	master := Secret{9}
	page := DevicePage{1}
	pad := DeviceScratchpad{2}
	data := SlaveSecretData{3}
	s := NewSoft(master)
	require.NoError(t, s.ComputeSlaveSecret(page, pad, data))

	var msg []byte
	msg = append(msg, master[:]...)
	msg = append(msg, page[:]...)
	msg = append(msg, pad[:]...)
	msg = append(msg, data[:]...)
	slave := sha256.Sum256(msg)

	w := WriteMacData{0x17, 0xaa}
	got, err := s.ComputeWriteMac(w)
	require.NoError(t, err)
	assert.Equal(t, Mac(sha256.Sum256(append(slave[:], w[:]...))), got)
}

func TestSoft_setMasterDropsSlave(t *testing.T) {
	s := NewSoft(Secret{1})
	s.SetSlaveSecret(Secret{2})
	_, err := s.ComputeWriteMac(WriteMacData{})
	require.NoError(t, err)
	require.NoError(t, s.SetMasterSecret(Secret{3}))
	_, err = s.ComputeWriteMac(WriteMacData{})
	assert.ErrorIs(t, err, ErrNoSecret)
}
