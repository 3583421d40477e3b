// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package romid implements the 64-bit ROM id burned into every 1-wire slave.
//
//	byte 0         bytes 1..6              byte 7
//	+-------------+-----------------------+-----------+
//	| family code | 48-bit serial number  |   CRC8    |
//	+-------------+-----------------------+-----------+
//
// Bytes are stored in bus order: byte 0 is transmitted first, least
// significant bit first.
package romid

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/GermanBionicSystems/onewire/common"
	"periph.io/x/conn/v3/onewire"
)

// Size is the number of bytes in a ROM id.
const Size = 8

// RomID is a 1-wire ROM id. It is a comparable value type; equality is
// byte-wise.
type RomID [Size]byte

// New builds a ROM id from a family code and a 48-bit serial number and
// computes its CRC8.
func New(family byte, serial uint64) RomID {
	var r RomID
	r[0] = family
	for i := 1; i < 7; i++ {
		r[i] = byte(serial)
		serial >>= 8
	}
	r[7] = common.CRC8(r[:7], 0)
	return r
}

// FromBytes copies b into a ROM id and validates its CRC8.
func FromBytes(b []byte) (RomID, error) {
	var r RomID
	if len(b) != Size {
		return r, errors.New("romid: invalid buffer length")
	}
	copy(r[:], b)
	if !r.Valid() {
		return r, fmt.Errorf("romid: invalid crc in %s", r)
	}
	return r, nil
}

// FromAddress converts a periph onewire.Address, whose least significant
// byte is the family code.
func FromAddress(a onewire.Address) RomID {
	var r RomID
	binary.LittleEndian.PutUint64(r[:], uint64(a))
	return r
}

// Parse accepts the 16 hex digit form returned by String, in bus order, with
// optional '.', ':' or '-' separators.
func Parse(s string) (RomID, error) {
	var r RomID
	clean := strings.NewReplacer(".", "", ":", "", "-", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil || len(b) != Size {
		return r, errors.New("romid: invalid rom id " + s)
	}
	return FromBytes(b)
}

// Family returns the family code byte.
func (r RomID) Family() byte {
	return r[0]
}

// Serial returns the 48-bit serial number.
func (r RomID) Serial() uint64 {
	var s uint64
	for i := 6; i > 0; i-- {
		s = s<<8 | uint64(r[i])
	}
	return s
}

// CRC returns the stored CRC8 byte.
func (r RomID) CRC() byte {
	return r[7]
}

// Valid returns true if the stored CRC8 matches the first 7 bytes.
func (r RomID) Valid() bool {
	return common.CRC8(r[:7], 0) == r[7]
}

// Address returns the id as a periph onewire.Address.
func (r RomID) Address() onewire.Address {
	return onewire.Address(binary.LittleEndian.Uint64(r[:]))
}

func (r RomID) String() string {
	return hex.EncodeToString(r[:])
}

// Bit returns bit n (0..63) of the id in bus transmission order.
func (r RomID) Bit(n int) byte {
	return (r[n/8] >> uint(n%8)) & 1
}

// SetBit sets bit n (0..63) in bus transmission order.
func (r *RomID) SetBit(n int, v byte) {
	mask := byte(1) << uint(n%8)
	if v != 0 {
		r[n/8] |= mask
	} else {
		r[n/8] &^= mask
	}
}
