// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package romiter

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/GermanBionicSystems/onewire/owmaster"
	"github.com/GermanBionicSystems/onewire/owmaster/owmastertest"
	"github.com/GermanBionicSystems/onewire/romid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/onewire"
)

func randomIDs(r *rand.Rand, n int, families ...byte) []romid.RomID {
	seen := map[romid.RomID]bool{}
	var ids []romid.RomID
	for len(ids) < n {
		id := romid.New(families[r.Intn(len(families))], uint64(r.Int63())&0xffffffffffff)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func TestForwardSearch_all(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, n := range []int{1, 2, 3, 8, 31} {
		devs := randomIDs(r, n, 0x17, 0x28, 0x47, 0x48)
		sim := owmastertest.NewSim(devs...)
		f := NewForwardSearch(sim)

		found := map[romid.RomID]int{}
		require.NoError(t, f.SelectFirstDevice())
		for {
			id := f.RomID()
			assert.True(t, id.Valid())
			found[id]++
			sel, ok := sim.Selected()
			require.True(t, ok, "search must leave the device selected")
			assert.Equal(t, id, sel)
			if len(found) < n {
				assert.False(t, f.LastDevice(), "last device flag set after %d of %d", len(found), n)
			}
			if f.LastDevice() {
				break
			}
			require.NoError(t, f.SelectNextDevice())
		}
		assert.Len(t, found, n)
		for _, d := range devs {
			assert.Equal(t, 1, found[d], "device %s", d)
		}
		err := f.SelectNextDevice()
		assert.True(t, errors.Is(err, ErrNoMoreDevices))
		// The state was reset: the walk restarts from the first device.
		require.NoError(t, f.SelectNextDevice())
	}
}

func TestSearchAll(t *testing.T) {
	devs := randomIDs(rand.New(rand.NewSource(8)), 12, 0x17, 0x28)
	ids, err := SearchAll(owmastertest.NewSim(devs...))
	require.NoError(t, err)
	assert.ElementsMatch(t, devs, ids)

	ids, err = SearchAll(owmastertest.NewSim())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

// TestSearchAll_softTriplet checks the algorithm does not depend on the
// master having a hardware triplet.
func TestSearchAll_softTriplet(t *testing.T) {
	devs := randomIDs(rand.New(rand.NewSource(9)), 5, 0x17)
	ids, err := SearchAll(&bitOnly{Sim: owmastertest.NewSim(devs...)})
	require.NoError(t, err)
	assert.ElementsMatch(t, devs, ids)
}

type bitOnly struct {
	*owmastertest.Sim
}

func (b *bitOnly) Triplet(direction byte) (onewire.TripletResult, error) {
	return owmaster.SoftTriplet(b.Sim, direction)
}

func TestSearch_invalidCRC(t *testing.T) {
	bad := romid.New(0x17, 0x1234)
	bad[7] ^= 0x01
	var s SearchState
	err := First(owmastertest.NewSim(bad), &s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, owmaster.ErrCommunication))
	assert.Equal(t, SearchState{}, s)
}

func TestSearch_noDevice(t *testing.T) {
	var s SearchState
	err := First(owmastertest.NewSim(), &s)
	assert.True(t, errors.Is(err, owmaster.ErrCommunication))
	assert.True(t, errors.Is(err, owmaster.ErrNoPresence))
}

func TestForwardSearch_family(t *testing.T) {
	devs := []romid.RomID{
		romid.New(0x10, 0x000000000001),
		romid.New(0x17, 0x000000000002),
		romid.New(0x17, 0x000000000003),
		romid.New(0x17, 0x000000000104),
		romid.New(0x28, 0x000000000005),
		romid.New(0x28, 0x000000000006),
	}
	f := NewForwardSearch(owmastertest.NewSim(devs...))
	require.NoError(t, f.SelectFirstDeviceInFamily(0x17))
	assert.Equal(t, byte(0x17), f.RomID().Family())

	var family []romid.RomID
	for f.RomID().Family() == 0x17 {
		family = append(family, f.RomID())
		if f.LastDevice() {
			break
		}
		require.NoError(t, f.SelectNextDevice())
	}
	assert.ElementsMatch(t, devs[1:4], family)
}

func TestForwardSearch_skipFamily(t *testing.T) {
	devs := []romid.RomID{
		romid.New(0x10, 0x000000000001),
		romid.New(0x17, 0x000000000002),
		romid.New(0x17, 0x000000000003),
		romid.New(0x28, 0x000000000005),
		romid.New(0x28, 0x000000000006),
	}
	f := NewForwardSearch(owmastertest.NewSim(devs...))
	require.NoError(t, f.SelectFirstDevice())
	// Families in search order: 0x10, 0x28, 0x17 (LSB first).
	var families []byte
	for {
		families = append(families, f.RomID().Family())
		err := f.SelectNextFamilyDevice()
		if errors.Is(err, ErrNoMoreDevices) {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, []byte{0x10, 0x28, 0x17}, families)
}

func TestVerify(t *testing.T) {
	devs := randomIDs(rand.New(rand.NewSource(10)), 6, 0x17, 0x28)
	sim := owmastertest.NewSim(devs...)
	for _, d := range devs {
		require.NoError(t, Verify(sim, d))
		sel, ok := sim.Selected()
		require.True(t, ok)
		assert.Equal(t, d, sel)
	}
	err := Verify(sim, romid.New(0x17, 0xdeadbeef))
	assert.True(t, errors.Is(err, owmaster.ErrCommunication))
}

func TestReadROM(t *testing.T) {
	d := romid.New(0x17, 0x00123456)
	id, err := ReadROM(owmastertest.NewSim(d))
	require.NoError(t, err)
	assert.Equal(t, d, id)

	_, err = ReadROM(owmastertest.NewSim(romid.New(0x17, 0x1), romid.New(0x17, 0x2)))
	assert.True(t, errors.Is(err, owmaster.ErrCommunication))
}

func TestSingledrop(t *testing.T) {
	rec := &owmastertest.Record{}
	s := NewSingledrop(rec)
	require.NoError(t, s.SelectDevice(romid.New(0x17, 1)))
	assert.Equal(t, []owmastertest.IO{
		{Op: owmastertest.Reset, Present: true},
		{Op: owmastertest.WriteByte, W: []byte{0xcc}},
	}, rec.Ops)
}

func TestMultidrop(t *testing.T) {
	a, b := romid.New(0x17, 1), romid.New(0x17, 2)
	sim := owmastertest.NewSim(a, b)
	rec := &owmastertest.Record{Master: sim}
	s := NewMultidrop(rec)
	for range 2 {
		require.NoError(t, s.SelectDevice(b))
		sel, ok := sim.Selected()
		require.True(t, ok)
		assert.Equal(t, b, sel)
	}
	assert.Equal(t, []byte{0x55, 0x55}, sim.Commands)
}

func TestMultidropWithResume(t *testing.T) {
	a, b := romid.New(0x17, 1), romid.New(0x17, 2)
	sim := owmastertest.NewSim(a, b)
	rec := &owmastertest.Record{Master: sim}
	s := NewMultidropWithResume(rec)

	require.NoError(t, s.SelectDevice(a))
	require.NoError(t, s.SelectDevice(a))
	match := append([]byte{0x55}, a[:]...)
	assert.Equal(t, []owmastertest.IO{
		{Op: owmastertest.Reset, Present: true},
		{Op: owmastertest.WriteBlock, W: match},
		{Op: owmastertest.Reset, Present: true},
		{Op: owmastertest.WriteByte, W: []byte{0xa5}},
	}, rec.Ops)
	sel, ok := sim.Selected()
	require.True(t, ok)
	assert.Equal(t, a, sel)

	require.NoError(t, s.SelectDevice(b))
	require.NoError(t, s.SelectDevice(a))
	assert.Equal(t, []byte{0x55, 0xa5, 0x55, 0x55}, sim.Commands)

	s.Forget()
	require.NoError(t, s.SelectDevice(a))
	assert.Equal(t, byte(0x55), sim.Commands[len(sim.Commands)-1])
}

func TestMultidropWithResume_failure(t *testing.T) {
	a := romid.New(0x17, 1)
	bus := &owmastertest.Playback{Ops: []owmastertest.IO{
		{Op: owmastertest.Reset, Present: false},
		{Op: owmastertest.Reset, Present: true},
		{Op: owmastertest.WriteBlock, W: append([]byte{0x55}, a[:]...)},
	}}
	s := NewMultidropWithResume(bus)
	assert.True(t, errors.Is(s.SelectDevice(a), owmaster.ErrCommunication))
	// A failed match does not arm resume.
	require.NoError(t, s.SelectDevice(a))
	assert.NoError(t, bus.Close())
}

func TestReselectCurrentDevice(t *testing.T) {
	devs := []romid.RomID{romid.New(0x17, 1), romid.New(0x28, 2)}
	sim := owmastertest.NewSim(devs...)
	f := NewForwardSearch(sim)
	require.NoError(t, f.SelectFirstDevice())
	require.NoError(t, f.ReselectCurrentDevice())
	assert.Equal(t, []byte{0xf0, 0xa5}, sim.Commands)
	sel, ok := sim.Selected()
	require.True(t, ok)
	assert.Equal(t, f.RomID(), sel)
}

func TestOverdrive(t *testing.T) {
	d := romid.New(0x17, 1)
	sim := owmastertest.NewSim(d)
	require.NoError(t, OverdriveSkipROM(sim))
	assert.Equal(t, owmaster.OverdriveSpeed, sim.Speed())

	rec := &owmastertest.Record{}
	require.NoError(t, OverdriveMatchROM(rec, d))
	assert.Equal(t, []owmastertest.IO{
		{Op: owmastertest.SetSpeed, Speed: owmaster.StandardSpeed},
		{Op: owmastertest.Reset, Present: true},
		{Op: owmastertest.WriteByte, W: []byte{0x69}},
		{Op: owmastertest.SetSpeed, Speed: owmaster.OverdriveSpeed},
		{Op: owmastertest.WriteBlock, W: d[:]},
	}, rec.Ops)
}
