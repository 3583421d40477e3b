// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds28exx

import (
	"fmt"
)

// Segment is the unit of memory writes.
type Segment [4]byte

// Page is the unit of memory reads and MAC computations.
type Page [32]byte

// SegmentsPerPage is the number of segments in a page.
const SegmentsPerPage = len(Page{}) / len(Segment{})

// Scratchpad holds the contents of the device scratchpad: a challenge, or a
// partial secret.
type Scratchpad [32]byte

// ManID is the manufacturer id.
type ManID [2]byte

// SegmentFromPage returns segment n of p. n is clamped to the last segment.
func SegmentFromPage(n int, p *Page) Segment {
	n = clampSegment(n)
	var s Segment
	copy(s[:], p[n*len(s):])
	return s
}

// SegmentToPage copies s into segment n of p. n is clamped to the last
// segment.
func SegmentToPage(n int, s Segment, p *Page) {
	n = clampSegment(n)
	copy(p[n*len(s):], s[:])
}

func clampSegment(n int) int {
	if n < 0 {
		return 0
	}
	if n > SegmentsPerPage-1 {
		return SegmentsPerPage - 1
	}
	return n
}

// Personality is returned by the read status command.
type Personality [4]byte

// PB1 returns the first personality byte.
func (p Personality) PB1() byte { return p[0] }

// PB2 returns the second personality byte.
func (p Personality) PB2() byte { return p[1] }

// ManID returns the manufacturer id embedded in the personality.
func (p Personality) ManID() ManID { return ManID{p[2], p[3]} }

// SecretLocked reports whether the secret can no longer be changed.
func (p Personality) SecretLocked() bool { return p.PB2()&0x01 != 0 }

// BlockProtection is the protection status byte of a memory block. The high
// nibble holds the protection flags, the low nibble the block number.
//
// Protection is only ever raised by the device; a write that lowers it is
// rejected.
type BlockProtection byte

const (
	readProtection  BlockProtection = 0x80
	writeProtection BlockProtection = 0x40
	eepromEmulation BlockProtection = 0x20
	authProtection  BlockProtection = 0x10
	blockMask       BlockProtection = 0x0f
)

// NewBlockProtection returns the status byte for block with the given flags.
func NewBlockProtection(read, write, eeprom, auth bool, block int) BlockProtection {
	p := BlockProtection(block) & blockMask
	p = p.set(readProtection, read)
	p = p.set(writeProtection, write)
	p = p.set(eepromEmulation, eeprom)
	return p.set(authProtection, auth)
}

func (p BlockProtection) set(mask BlockProtection, v bool) BlockProtection {
	if v {
		return p | mask
	}
	return p &^ mask
}

// ReadProtection reports whether reading the block is forbidden.
func (p BlockProtection) ReadProtection() bool { return p&readProtection != 0 }

// WriteProtection reports whether writing the block is forbidden.
func (p BlockProtection) WriteProtection() bool { return p&writeProtection != 0 }

// EepromEmulation reports whether writes may only clear bits.
func (p BlockProtection) EepromEmulation() bool { return p&eepromEmulation != 0 }

// AuthProtection reports whether writes need a MAC.
func (p BlockProtection) AuthProtection() bool { return p&authProtection != 0 }

// Block returns the block number.
func (p BlockProtection) Block() int { return int(p & blockMask) }

// NoProtection reports whether no flag is set.
func (p BlockProtection) NoProtection() bool { return p&^blockMask == 0 }

func (p BlockProtection) String() string {
	return fmt.Sprintf("Block%d{read:%t write:%t eeprom:%t auth:%t}", p.Block(), p.ReadProtection(), p.WriteProtection(), p.EepromEmulation(), p.AuthProtection())
}

// flags returns the protection flags in write MAC order: auth, eeprom
// emulation, write, read.
func (p BlockProtection) flags() [4]byte {
	var f [4]byte
	for i, m := range [...]BlockProtection{authProtection, eepromEmulation, writeProtection, readProtection} {
		if p&m != 0 {
			f[i] = 1
		}
	}
	return f
}
