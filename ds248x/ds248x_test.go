// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x

import (
	"errors"
	"testing"
	"time"

	"github.com/GermanBionicSystems/onewire/owmaster"
	"github.com/GermanBionicSystems/onewire/romid"
	"github.com/GermanBionicSystems/onewire/romiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/onewire"
)

const addr = 0x18

func tx(w []byte, r ...byte) i2ctest.IO {
	if len(r) == 0 {
		return i2ctest.IO{Addr: addr, W: w}
	}
	return i2ctest.IO{Addr: addr, W: w, R: r}
}

// status is a poll of the status register.
func status(s byte) i2ctest.IO {
	return i2ctest.IO{Addr: addr, R: []byte{s}}
}

var initDS2483 = []i2ctest.IO{
	tx([]byte{0xf0}),
	tx([]byte{0xe1, 0xf0}, 0x18),
	tx([]byte{0xd2, 0xe1}, 0x01),
	tx([]byte{0xe1, 0xb4}),
	tx([]byte{0xc3, 0x06, 0x26, 0x46, 0x66, 0x86}),
}

func newDev(t *testing.T, ops ...i2ctest.IO) (*Dev, *i2ctest.Playback) {
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = time.Sleep })
	bus := &i2ctest.Playback{Ops: append(append([]i2ctest.IO(nil), initDS2483...), ops...)}
	d, err := New(bus, addr, nil)
	require.NoError(t, err)
	return d, bus
}

func resetOps(s byte) []i2ctest.IO {
	return []i2ctest.IO{tx([]byte{0xb4}), status(s)}
}

func writeOps(b byte) []i2ctest.IO {
	return []i2ctest.IO{tx([]byte{0xa5, b}), status(0)}
}

func readOps(b byte) []i2ctest.IO {
	return []i2ctest.IO{tx([]byte{0x96}), status(0), tx([]byte{0xe1, 0xe1}, b)}
}

func cat(parts ...[]i2ctest.IO) []i2ctest.IO {
	var out []i2ctest.IO
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestNew_address(t *testing.T) {
	_, err := New(&i2ctest.Playback{}, 0x30, nil)
	assert.Error(t, err)
}

func TestNew_status(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		tx([]byte{0xf0}),
		tx([]byte{0xe1, 0xf0}, 0x00),
	}}
	_, err := New(bus, addr, nil)
	assert.Error(t, err)
}

func TestNew_DS2483(t *testing.T) {
	d, bus := newDev(t)
	assert.Contains(t, d.String(), "DS2483")
	assert.Equal(t, 0, d.SelectedChannel())
	assert.NoError(t, d.ChannelSelect(3))
	assert.NoError(t, d.Halt())
	assert.NoError(t, bus.Close())
}

func TestReset(t *testing.T) {
	d, bus := newDev(t, cat(resetOps(0x02), resetOps(0x00), resetOps(0x04))...)
	present, err := d.Reset()
	require.NoError(t, err)
	assert.True(t, present)

	present, err = d.Reset()
	require.NoError(t, err)
	assert.False(t, present)

	_, err = d.Reset()
	var s onewire.ShortedBusError
	require.True(t, errors.As(err, &s))
	assert.True(t, s.IsShorted())
	// A bus error is not persistent.
	assert.NoError(t, d.err)
	assert.NoError(t, bus.Close())
}

func TestBytes(t *testing.T) {
	d, bus := newDev(t, cat(
		// Strong pull-up armed before the byte.
		[]i2ctest.IO{tx([]byte{0xd2, 0xa5})},
		writeOps(0x5a),
		[]i2ctest.IO{tx([]byte{0xd2, 0xe1})},
		readOps(0x3c),
		readOps(0x01),
		readOps(0x02),
	)...)
	require.NoError(t, d.WriteByteSetLevel(0x5a, owmaster.StrongLevel))
	require.NoError(t, d.SetLevel(owmaster.NormalLevel))
	b, err := d.ReadByteSetLevel(owmaster.NormalLevel)
	require.NoError(t, err)
	assert.Equal(t, byte(0x3c), b)
	var r [2]byte
	require.NoError(t, d.ReadBlock(r[:]))
	assert.Equal(t, [2]byte{1, 2}, r)
	assert.NoError(t, bus.Close())
}

func TestTouchBitAndTriplet(t *testing.T) {
	d, bus := newDev(t,
		tx([]byte{0x87, 0x80}), status(0x20),
		tx([]byte{0x87, 0x00}), status(0x00),
		tx([]byte{0x78, 0x80}), status(0x80),
		tx([]byte{0x78, 0x00}), status(0x20),
	)
	bit, err := d.TouchBitSetLevel(1, owmaster.NormalLevel)
	require.NoError(t, err)
	assert.Equal(t, byte(1), bit)
	bit, err = d.TouchBitSetLevel(0, owmaster.NormalLevel)
	require.NoError(t, err)
	assert.Equal(t, byte(0), bit)

	tr, err := d.Triplet(1)
	require.NoError(t, err)
	assert.Equal(t, onewire.TripletResult{GotZero: true, GotOne: true, Taken: 1}, tr)
	tr, err = d.SearchTriplet(0)
	require.NoError(t, err)
	assert.Equal(t, onewire.TripletResult{GotZero: false, GotOne: true, Taken: 0}, tr)
	assert.NoError(t, bus.Close())
}

func TestSetSpeed(t *testing.T) {
	d, bus := newDev(t,
		tx([]byte{0xd2, 0x69}),
		tx([]byte{0xd2, 0xe1}),
	)
	require.NoError(t, d.SetSpeed(owmaster.OverdriveSpeed))
	assert.Equal(t, d.tSlot/8, d.slot())
	require.NoError(t, d.SetSpeed(owmaster.StandardSpeed))
	assert.Equal(t, d.tSlot, d.slot())
	assert.NoError(t, bus.Close())
}

func TestTx(t *testing.T) {
	d, bus := newDev(t, cat(
		resetOps(0x02),
		writeOps(0xcc),
		[]i2ctest.IO{tx([]byte{0xd2, 0xa5})},
		writeOps(0x44),
		resetOps(0x00),
	)...)
	require.NoError(t, d.Tx([]byte{0xcc, 0x44}, nil, onewire.StrongPullup))
	err := d.Tx([]byte{0xcc}, nil, onewire.WeakPullup)
	var b onewire.BusError
	require.True(t, errors.As(err, &b))
	assert.True(t, b.BusError())
	assert.NoError(t, bus.Close())
}

// TestReadROM runs a ROM command through the primitives.
func TestReadROM(t *testing.T) {
	id := romid.New(0x17, 0x00000a0b0c0d)
	ops := cat(resetOps(0x02), writeOps(0x33))
	for _, b := range id {
		ops = append(ops, readOps(b)...)
	}
	d, bus := newDev(t, ops...)
	got, err := romiter.ReadROM(d)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.NoError(t, bus.Close())
}

func TestPersistentError(t *testing.T) {
	d, _ := newDev(t)
	d.err = owmaster.NewError(owmaster.ErrTimeout, "ds248x", errBusyTimeout)
	_, err := d.Reset()
	assert.True(t, errors.Is(err, owmaster.ErrTimeout))
	assert.True(t, errors.Is(owmaster.Wrap("romiter: search", err), owmaster.ErrCommunication))
}
