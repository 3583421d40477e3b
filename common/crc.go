// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, the CRC8 used to validate 1-wire ROM ids and the CRC16 used to
// validate every authenticator command frame.
package common

// CRC16Residue is the value CRC16 yields when run over a frame followed by
// the inverted CRC16 the device appended to it. Any other value means the
// frame was corrupted.
const CRC16Residue uint16 = 0xb001

// CRC8 calculates the Dallas/Maxim 8-bit CRC (polynomial X^8+X^5+X^4+1, bit
// reversed) of bytes starting from seed.
//
// A valid ROM id satisfies CRC8(id[:7], 0) == id[7], equivalently
// CRC8(id[:], 0) == 0.
func CRC8(bytes []byte, seed byte) byte {
	crc := seed
	for _, val := range bytes {
		crc ^= val
		for range 8 {
			if crc&1 == 0 {
				crc >>= 1
			} else {
				crc = (crc >> 1) ^ 0x8c
			}
		}
	}
	return crc
}

// CRC16 calculates the Dallas/Maxim 16-bit CRC (polynomial X^16+X^15+X^2+1,
// bit reversed) of bytes starting from seed.
//
// The seed makes the calculation chainable: CRC16(b, CRC16(a, 0)) equals
// CRC16(append(a, b...), 0).
func CRC16(bytes []byte, seed uint16) uint16 {
	crc := seed
	for _, val := range bytes {
		crc ^= uint16(val)
		for range 8 {
			if crc&1 == 0 {
				crc >>= 1
			} else {
				crc = (crc >> 1) ^ 0xa001
			}
		}
	}
	return crc
}

// AppendCRC16 appends the inverted CRC16 of frame, least significant byte
// first, the way a 1-wire device transmits it.
func AppendCRC16(frame []byte, seed uint16) []byte {
	crc := ^CRC16(frame, seed)
	return append(frame, byte(crc), byte(crc>>8))
}
