// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds28exx

import "fmt"

// Variant describes what differs between the devices sharing the protocol.
type Variant struct {
	Name             string
	Family           byte
	Pages            int // memory pages
	ProtectionBlocks int
	PagesPerBlock    int  // read status addresses blocks by their first page
	ScratchpadParam  byte // write scratchpad parameter; reads or 0x0f in
	StatusBytes      int  // data bytes returned when reading all protections
	// ContinuingCRCSeed is set when a continuing authenticated write folds
	// the previous release byte into the CRC16 of its data phase.
	ContinuingCRCSeed bool
}

func (v *Variant) String() string {
	return v.Name
}

var (
	// DS28E15 has 2 pages in 4 protection blocks of one half page each.
	DS28E15 = Variant{
		Name:             "DS28E15",
		Family:           0x17,
		Pages:            2,
		ProtectionBlocks: 4,
		PagesPerBlock:    1,
		ScratchpadParam:  0x00,
		StatusBytes:      4,
	}
	// DS28E22 has 8 pages in 4 protection blocks of 2 pages.
	DS28E22 = Variant{
		Name:              "DS28E22",
		Family:            0x48,
		Pages:             8,
		ProtectionBlocks:  4,
		PagesPerBlock:     2,
		ScratchpadParam:   0x20,
		StatusBytes:       16,
		ContinuingCRCSeed: true,
	}
	// DS28E25 has 16 pages in 8 protection blocks of 2 pages.
	DS28E25 = Variant{
		Name:              "DS28E25",
		Family:            0x47,
		Pages:             16,
		ProtectionBlocks:  8,
		PagesPerBlock:     2,
		ScratchpadParam:   0x20,
		StatusBytes:       16,
		ContinuingCRCSeed: true,
	}
)

// VariantOf returns the variant with the family code.
func VariantOf(family byte) (*Variant, error) {
	for _, v := range []*Variant{&DS28E15, &DS28E22, &DS28E25} {
		if v.Family == family {
			return v, nil
		}
	}
	return nil, fmt.Errorf("ds28exx: unknown family code 0x%02x", family)
}

// segmentAddr packs a page and a segment number in an address byte.
func segmentAddr(page, segment int) byte {
	return byte(segment<<5) | byte(page)
}

// statusToProtection converts a status byte read by page to one numbered by
// protection block.
func (v *Variant) statusToProtection(b byte) BlockProtection {
	return BlockProtection(b&0xf0 | (b&0x0f)/byte(v.PagesPerBlock))
}
