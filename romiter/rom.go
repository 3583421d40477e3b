// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package romiter

import (
	"github.com/GermanBionicSystems/onewire/owmaster"
	"github.com/GermanBionicSystems/onewire/romid"
)

// ROM command bytes, valid right after a bus reset.
const (
	cmdReadROM           = 0x33
	cmdMatchROM          = 0x55
	cmdSearchROM         = 0xf0
	cmdSkipROM           = 0xcc
	cmdResumeROM         = 0xa5
	cmdOverdriveSkipROM  = 0x3c
	cmdOverdriveMatchROM = 0x69
)

// MatchROM resets the bus and addresses the device with id.
func MatchROM(m owmaster.Master, id romid.RomID) error {
	const op = "romiter: match rom"
	if err := owmaster.ResetPresent(m, op); err != nil {
		return err
	}
	buf := make([]byte, 0, 1+romid.Size)
	buf = append(buf, cmdMatchROM)
	buf = append(buf, id[:]...)
	return owmaster.Wrap(op, m.WriteBlock(buf))
}

// SkipROM resets the bus and addresses every device at once. Only useful with
// a single device on the bus or for commands all devices may execute
// together.
func SkipROM(m owmaster.Master) error {
	const op = "romiter: skip rom"
	if err := owmaster.ResetPresent(m, op); err != nil {
		return err
	}
	return owmaster.Wrap(op, owmaster.WriteByte(m, cmdSkipROM))
}

// ResumeROM resets the bus and re-addresses the device that was selected
// last by a match or a search.
func ResumeROM(m owmaster.Master) error {
	const op = "romiter: resume"
	if err := owmaster.ResetPresent(m, op); err != nil {
		return err
	}
	return owmaster.Wrap(op, owmaster.WriteByte(m, cmdResumeROM))
}

// ReadROM reads the id of the only device on the bus. With several devices
// the answers collide and the CRC check fails.
func ReadROM(m owmaster.Master) (romid.RomID, error) {
	const op = "romiter: read rom"
	var id romid.RomID
	if err := owmaster.ResetPresent(m, op); err != nil {
		return id, err
	}
	if err := owmaster.WriteByte(m, cmdReadROM); err != nil {
		return id, owmaster.Wrap(op, err)
	}
	if err := m.ReadBlock(id[:]); err != nil {
		return id, owmaster.Wrap(op, err)
	}
	if !id.Valid() {
		return id, owmaster.NewError(owmaster.ErrCommunication, op, errInvalidCRC(id))
	}
	return id, nil
}

// OverdriveSkipROM addresses every overdrive capable device and switches the
// bus to overdrive speed.
func OverdriveSkipROM(m owmaster.Master) error {
	const op = "romiter: overdrive skip rom"
	if err := m.SetSpeed(owmaster.StandardSpeed); err != nil {
		return owmaster.Wrap(op, err)
	}
	if err := owmaster.ResetPresent(m, op); err != nil {
		return err
	}
	if err := owmaster.WriteByte(m, cmdOverdriveSkipROM); err != nil {
		return owmaster.Wrap(op, err)
	}
	return owmaster.Wrap(op, m.SetSpeed(owmaster.OverdriveSpeed))
}

// OverdriveMatchROM addresses the device with id and switches the bus to
// overdrive speed. The id is sent at overdrive speed.
func OverdriveMatchROM(m owmaster.Master, id romid.RomID) error {
	const op = "romiter: overdrive match rom"
	if err := m.SetSpeed(owmaster.StandardSpeed); err != nil {
		return owmaster.Wrap(op, err)
	}
	if err := owmaster.ResetPresent(m, op); err != nil {
		return err
	}
	if err := owmaster.WriteByte(m, cmdOverdriveMatchROM); err != nil {
		return owmaster.Wrap(op, err)
	}
	if err := m.SetSpeed(owmaster.OverdriveSpeed); err != nil {
		return owmaster.Wrap(op, err)
	}
	return owmaster.Wrap(op, m.WriteBlock(id[:]))
}

// errInvalidCRC is the cause of an ErrCommunication for a ROM id whose CRC8
// does not match.
type errInvalidCRC romid.RomID

func (e errInvalidCRC) Error() string {
	return "invalid crc in rom id " + romid.RomID(e).String()
}

func (e errInvalidCRC) BusError() bool { return true }
