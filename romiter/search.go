// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package romiter

import (
	"errors"

	"github.com/GermanBionicSystems/onewire/owmaster"
	"github.com/GermanBionicSystems/onewire/romid"
)

// ErrNoMoreDevices is returned by Next once the previous search found the
// last device. The state is reset so the following Next starts over.
var ErrNoMoreDevices = errors.New("romiter: no more devices")

// ErrNotFound is the cause of the ErrCommunication returned by Verify when
// the device does not answer.
var ErrNotFound = errors.New("romiter: device not found")

// SearchState is the state of the search algorithm between two discovered
// devices.
//
// Bit positions are numbered 1 to 64 in bus order; 0 means none.
type SearchState struct {
	RomID                 romid.RomID // last device found
	LastDiscrepancy       int         // highest position where a 0 was taken at a collision
	LastFamilyDiscrepancy int         // same, restricted to the family code byte
	LastDevice            bool        // no branch left to explore
}

// Reset prepares the state for a search from the first device.
func (s *SearchState) Reset() {
	*s = SearchState{}
}

// FindFamily prepares the state so that the next search finds the first
// device whose family code is family, or the next device in search order if
// there is none.
func (s *SearchState) FindFamily(family byte) {
	*s = SearchState{LastDiscrepancy: 64}
	s.RomID[0] = family
}

// SkipCurrentFamily prepares the state so that the next search skips the
// remaining devices of the current family.
func (s *SearchState) SkipCurrentFamily() {
	s.LastDiscrepancy = s.LastFamilyDiscrepancy
	s.LastFamilyDiscrepancy = 0
	if s.LastDiscrepancy == 0 {
		s.LastDevice = true
	}
}

// First searches for the first device on the bus. On success s.RomID holds
// its id and the device is selected.
func First(m owmaster.Master, s *SearchState) error {
	s.Reset()
	return search(m, s)
}

// Next searches for the device following the one in s.RomID.
func Next(m owmaster.Master, s *SearchState) error {
	return search(m, s)
}

// Verify checks that the device with id is on the bus. The device is left
// selected.
func Verify(m owmaster.Master, id romid.RomID) error {
	s := SearchState{RomID: id, LastDiscrepancy: 64}
	if err := search(m, &s); err != nil {
		return err
	}
	if s.RomID != id {
		return owmaster.NewError(owmaster.ErrCommunication, "romiter: verify", ErrNotFound)
	}
	return nil
}

// SearchAll returns the ids of every device on the bus, in search order.
//
// An empty bus is not an error. If an error occurs, the devices found so far
// are returned with it.
func SearchAll(m owmaster.Master) ([]romid.RomID, error) {
	var s SearchState
	var ids []romid.RomID
	err := owmaster.Exclusive(m, func() error {
		if err := First(m, &s); err != nil {
			if errors.Is(err, owmaster.ErrNoPresence) {
				return nil
			}
			return err
		}
		ids = append(ids, s.RomID)
		for !s.LastDevice {
			if err := Next(m, &s); err != nil {
				return err
			}
			ids = append(ids, s.RomID)
		}
		return nil
	})
	return ids, err
}

// search runs one pass of the search algorithm: one triplet per id bit,
// replaying the path to the previous device up to its last discrepancy, then
// taking the 1 branch there and the 0 branch at every later collision.
func search(m owmaster.Master, s *SearchState) error {
	const op = "romiter: search"
	if s.LastDevice {
		s.Reset()
		return ErrNoMoreDevices
	}
	if err := owmaster.ResetPresent(m, op); err != nil {
		s.Reset()
		return err
	}
	if err := owmaster.WriteByte(m, cmdSearchROM); err != nil {
		s.Reset()
		return owmaster.Wrap(op, err)
	}
	lastZero := 0
	lastFamilyZero := s.LastFamilyDiscrepancy
	id := s.RomID
	for bit := 1; bit <= 64; bit++ {
		var dir byte
		switch {
		case bit < s.LastDiscrepancy:
			dir = id.Bit(bit - 1)
		case bit == s.LastDiscrepancy:
			dir = 1
		}
		tr, err := m.Triplet(dir)
		if err != nil {
			s.Reset()
			return owmaster.Wrap(op, err)
		}
		if !tr.GotZero && !tr.GotOne {
			// Every device dropped out: a device left the bus mid search.
			s.Reset()
			return owmaster.NewError(owmaster.ErrCommunication, op, ErrNotFound)
		}
		if tr.GotZero && tr.GotOne && tr.Taken == 0 {
			lastZero = bit
			if bit < 9 {
				lastFamilyZero = bit
			}
		}
		id.SetBit(bit-1, tr.Taken)
	}
	if !id.Valid() || id.Family() == 0 {
		s.Reset()
		return owmaster.NewError(owmaster.ErrCommunication, op, errInvalidCRC(id))
	}
	s.RomID = id
	s.LastDiscrepancy = lastZero
	s.LastFamilyDiscrepancy = lastFamilyZero
	s.LastDevice = lastZero == 0
	return nil
}
