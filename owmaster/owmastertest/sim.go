// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owmastertest

import (
	"sync"

	"github.com/GermanBionicSystems/onewire/owmaster"
	"github.com/GermanBionicSystems/onewire/romid"
	"periph.io/x/conn/v3/onewire"
)

type simState uint8

const (
	simIdle     simState = iota // waiting for a reset
	simROM                      // waiting for a ROM command
	simSearch                   // running a search
	simMatch                    // collecting the 8 bytes of a match
	simReadROM                  // sending the id of the selected devices
	simFunction                 // devices selected, function commands
)

// Sim implements owmaster.Master as a bus of simulated slaves that answer
// ROM commands: search, match, skip, resume, read ROM and their overdrive
// variants.
//
// Reads that no slave drives return 0xFF. With more than one slave driving
// the bus the result is the wired-AND of their answers, as on real hardware.
type Sim struct {
	sync.Mutex
	Devices []romid.RomID

	// Commands logs every ROM command byte received after a reset.
	Commands []byte
	// Function logs every byte written once a device was selected.
	Function []byte

	state   simState
	speed   owmaster.Speed
	active  []bool // participating in the current search or selected
	bit     int    // search bit position
	slot    int    // 0: id bit, 1: complement, 2: direction
	match   []byte
	readPos int
	resume  int // index of the device holding the resume flag, -1 if none
}

// NewSim returns a simulated bus with the given slaves.
func NewSim(devices ...romid.RomID) *Sim {
	return &Sim{Devices: devices, resume: -1}
}

func (s *Sim) String() string {
	return "sim"
}

// Selected returns the single selected device, if exactly one is.
func (s *Sim) Selected() (romid.RomID, bool) {
	if s.state != simFunction {
		return romid.RomID{}, false
	}
	idx := -1
	for i, a := range s.active {
		if a {
			if idx >= 0 {
				return romid.RomID{}, false
			}
			idx = i
		}
	}
	if idx < 0 {
		return romid.RomID{}, false
	}
	return s.Devices[idx], true
}

// Speed returns the current bus speed.
func (s *Sim) Speed() owmaster.Speed {
	return s.speed
}

// Reset implements owmaster.Master.
func (s *Sim) Reset() (bool, error) {
	s.state = simROM
	s.active = make([]bool, len(s.Devices))
	return len(s.Devices) != 0, nil
}

// TouchBitSetLevel implements owmaster.Master.
func (s *Sim) TouchBitSetLevel(bit byte, after owmaster.Level) (byte, error) {
	if s.state != simSearch {
		return bit, nil
	}
	switch s.slot {
	case 0:
		s.slot = 1
		// Every participant drives its id bit; any 0 pulls the bus low.
		var v byte = 1
		for i, a := range s.active {
			if a && s.Devices[i].Bit(s.bit) == 0 {
				v = 0
			}
		}
		return v & bit, nil
	case 1:
		s.slot = 2
		var v byte = 1
		for i, a := range s.active {
			if a && s.Devices[i].Bit(s.bit) == 1 {
				v = 0
			}
		}
		return v & bit, nil
	default:
		s.slot = 0
		for i, a := range s.active {
			if a && s.Devices[i].Bit(s.bit) != bit {
				s.active[i] = false
			}
		}
		s.bit++
		if s.bit == 64 {
			s.selectActive()
		}
		return bit, nil
	}
}

// ReadByteSetLevel implements owmaster.Master.
func (s *Sim) ReadByteSetLevel(after owmaster.Level) (byte, error) {
	return s.read(), nil
}

// WriteByteSetLevel implements owmaster.Master.
func (s *Sim) WriteByteSetLevel(b byte, after owmaster.Level) error {
	s.write(b)
	return nil
}

// ReadBlock implements owmaster.Master.
func (s *Sim) ReadBlock(r []byte) error {
	for i := range r {
		r[i] = s.read()
	}
	return nil
}

// WriteBlock implements owmaster.Master.
func (s *Sim) WriteBlock(w []byte) error {
	for _, b := range w {
		s.write(b)
	}
	return nil
}

// SetSpeed implements owmaster.Master.
func (s *Sim) SetSpeed(sp owmaster.Speed) error {
	s.speed = sp
	return nil
}

// SetLevel implements owmaster.Master.
func (s *Sim) SetLevel(l owmaster.Level) error {
	return nil
}

// Triplet implements owmaster.Master.
func (s *Sim) Triplet(direction byte) (onewire.TripletResult, error) {
	id, _ := s.TouchBitSetLevel(1, owmaster.NormalLevel)
	cmp, _ := s.TouchBitSetLevel(1, owmaster.NormalLevel)
	tr := onewire.TripletResult{GotZero: id == 0, GotOne: cmp == 0}
	switch {
	case tr.GotZero && tr.GotOne:
		tr.Taken = direction & 1
	case tr.GotZero:
		tr.Taken = 0
	default:
		tr.Taken = 1
	}
	_, _ = s.TouchBitSetLevel(tr.Taken, owmaster.NormalLevel)
	return tr, nil
}

func (s *Sim) write(b byte) {
	switch s.state {
	case simROM:
		s.Commands = append(s.Commands, b)
		s.rom(b)
	case simMatch:
		s.match = append(s.match, b)
		if len(s.match) == romid.Size {
			for i, d := range s.Devices {
				s.active[i] = d == romid.RomID(s.match)
			}
			s.selectActive()
		}
	case simFunction:
		s.Function = append(s.Function, b)
	}
}

func (s *Sim) rom(cmd byte) {
	switch cmd {
	case 0xf0: // search
		s.state = simSearch
		s.bit, s.slot = 0, 0
		for i := range s.active {
			s.active[i] = true
		}
	case 0x55, 0x69: // match, overdrive match
		if cmd == 0x69 {
			s.speed = owmaster.OverdriveSpeed
		}
		s.state = simMatch
		s.match = s.match[:0]
	case 0xcc, 0x3c: // skip, overdrive skip
		if cmd == 0x3c {
			s.speed = owmaster.OverdriveSpeed
		}
		for i := range s.active {
			s.active[i] = true
		}
		s.resume = -1
		s.state = simFunction
	case 0xa5: // resume
		if s.resume >= 0 {
			s.active[s.resume] = true
		}
		s.state = simFunction
	case 0x33: // read rom
		for i := range s.active {
			s.active[i] = true
		}
		s.readPos = 0
		s.state = simReadROM
	default:
		s.state = simIdle
	}
}

// selectActive moves the bus to the function phase and gives the resume
// flag to the device left selected, if exactly one is.
func (s *Sim) selectActive() {
	s.state = simFunction
	s.resume = -1
	n := 0
	for i, a := range s.active {
		if a {
			n++
			s.resume = i
		}
	}
	if n != 1 {
		s.resume = -1
	}
}

func (s *Sim) read() byte {
	if s.state != simReadROM || s.readPos >= romid.Size {
		return 0xff
	}
	var v byte = 0xff
	for i, a := range s.active {
		if a {
			v &= s.Devices[i][s.readPos]
		}
	}
	s.readPos++
	if s.readPos == romid.Size {
		s.state = simFunction
	}
	return v
}

var _ owmaster.Master = &Sim{}
