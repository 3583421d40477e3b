// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package romiter discovers and addresses devices on a 1-wire bus.
//
// Discovery uses the ROM search algorithm: it resolves collisions between
// devices answering at the same time, one id bit at a time, into a full
// enumeration of the bus. Addressing strategies trade generality for bus
// time:
//
//	Singledrop            skip rom, exactly one device on the bus
//	Multidrop             match rom, always correct
//	MultidropWithResume   resume when the same device is addressed again
//	ForwardSearch         search order, resume to reselect
package romiter

import (
	"fmt"

	"github.com/GermanBionicSystems/onewire/owmaster"
	"github.com/GermanBionicSystems/onewire/romid"
)

// Selector addresses one device at a time on a bus. It is what device
// drivers use before each command.
//
// SelectDevice must run inside the caller's owmaster.Exclusive section; it
// does not lock the bus itself.
type Selector interface {
	Master() owmaster.Master
	SelectDevice(id romid.RomID) error
}

// Singledrop addresses the only device on the bus with the shortest possible
// sequence. The id passed to SelectDevice is ignored.
type Singledrop struct {
	m owmaster.Master
}

// NewSingledrop returns a Singledrop selector on m.
func NewSingledrop(m owmaster.Master) *Singledrop {
	return &Singledrop{m: m}
}

func (s *Singledrop) String() string {
	return fmt.Sprintf("Singledrop{%v}", s.m)
}

// Master implements Selector.
func (s *Singledrop) Master() owmaster.Master {
	return s.m
}

// SelectDevice implements Selector.
func (s *Singledrop) SelectDevice(romid.RomID) error {
	return SkipROM(s.m)
}

// Multidrop always addresses with a full match rom.
type Multidrop struct {
	m owmaster.Master
}

// NewMultidrop returns a Multidrop selector on m.
func NewMultidrop(m owmaster.Master) *Multidrop {
	return &Multidrop{m: m}
}

func (s *Multidrop) String() string {
	return fmt.Sprintf("Multidrop{%v}", s.m)
}

// Master implements Selector.
func (s *Multidrop) Master() owmaster.Master {
	return s.m
}

// SelectDevice implements Selector.
func (s *Multidrop) SelectDevice(id romid.RomID) error {
	return MatchROM(s.m, id)
}

// MultidropWithResume remembers the last device it addressed and uses the
// resume command when it is addressed again.
//
// It assumes it is the only code addressing devices on its bus. Share one
// instance between all the drivers on a bus.
type MultidropWithResume struct {
	m     owmaster.Master
	last  romid.RomID
	valid bool
}

// NewMultidropWithResume returns a MultidropWithResume selector on m.
func NewMultidropWithResume(m owmaster.Master) *MultidropWithResume {
	return &MultidropWithResume{m: m}
}

func (s *MultidropWithResume) String() string {
	return fmt.Sprintf("MultidropWithResume{%v}", s.m)
}

// Master implements Selector.
func (s *MultidropWithResume) Master() owmaster.Master {
	return s.m
}

// SelectDevice implements Selector.
func (s *MultidropWithResume) SelectDevice(id romid.RomID) error {
	if s.valid && id == s.last {
		if err := ResumeROM(s.m); err != nil {
			s.valid = false
			return err
		}
		return nil
	}
	if err := MatchROM(s.m, id); err != nil {
		s.valid = false
		return err
	}
	s.last = id
	s.valid = true
	return nil
}

// Forget drops the cached id so that the next selection uses match rom.
// Call it after anything else addressed a device on the bus.
func (s *MultidropWithResume) Forget() {
	s.valid = false
}

// ForwardSearch walks the bus in search order. Each successful step leaves
// the found device selected.
type ForwardSearch struct {
	m     owmaster.Master
	state SearchState
}

// NewForwardSearch returns a ForwardSearch on m.
func NewForwardSearch(m owmaster.Master) *ForwardSearch {
	return &ForwardSearch{m: m}
}

func (f *ForwardSearch) String() string {
	return fmt.Sprintf("ForwardSearch{%v}", f.m)
}

// Master returns the bus master.
func (f *ForwardSearch) Master() owmaster.Master {
	return f.m
}

// RomID returns the id of the current device.
func (f *ForwardSearch) RomID() romid.RomID {
	return f.state.RomID
}

// LastDevice reports whether the current device is the last one.
func (f *ForwardSearch) LastDevice() bool {
	return f.state.LastDevice
}

// SelectFirstDevice finds and selects the first device on the bus.
func (f *ForwardSearch) SelectFirstDevice() error {
	return owmaster.Exclusive(f.m, func() error {
		return First(f.m, &f.state)
	})
}

// SelectNextDevice finds and selects the next device. It returns
// ErrNoMoreDevices after the last one.
func (f *ForwardSearch) SelectNextDevice() error {
	return owmaster.Exclusive(f.m, func() error {
		return Next(f.m, &f.state)
	})
}

// ReselectCurrentDevice selects the current device again with the resume
// command.
func (f *ForwardSearch) ReselectCurrentDevice() error {
	return owmaster.Exclusive(f.m, func() error {
		return ResumeROM(f.m)
	})
}

// SelectFirstDeviceInFamily finds and selects the first device of family.
// If the bus has none, the next device in search order is selected instead;
// check RomID().Family().
func (f *ForwardSearch) SelectFirstDeviceInFamily(family byte) error {
	return owmaster.Exclusive(f.m, func() error {
		f.state.FindFamily(family)
		return Next(f.m, &f.state)
	})
}

// SelectNextFamilyDevice skips the remaining devices of the current family
// and selects the first device of the next one.
func (f *ForwardSearch) SelectNextFamilyDevice() error {
	return owmaster.Exclusive(f.m, func() error {
		f.state.SkipCurrentFamily()
		return Next(f.m, &f.state)
	})
}

var _ Selector = &Singledrop{}
var _ Selector = &Multidrop{}
var _ Selector = &MultidropWithResume{}
