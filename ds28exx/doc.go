// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds28exx controls the DS28E15, DS28E22 and DS28E25 SHA-256 secure
// authenticators with EEPROM.
//
// Memory is organized in 32 byte pages of 8 segments of 4 bytes; pages are
// grouped in protection blocks. Blocks may be read or write protected,
// emulate an EEPROM (bits can only be cleared) or require a write MAC
// computed with the device secret.
//
// Every command is a frame of phases, each closed by a CRC16 sent by the
// device. Commands that program the EEPROM or compute a MAC end with a power
// phase on the strong pull-up, then a completion code.
//
// The host side secret holder is a sha256mac.Coproc.
//
// # Datasheet
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/DS28E15.pdf
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/DS28E22.pdf
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/DS28E25.pdf
package ds28exx
