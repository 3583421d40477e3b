// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package onewire is a container for 1-Wire bus discovery and the
// DS28E15/DS28E22/DS28E25 SHA-256 authenticators.
//
// owmaster defines the primitives a bus master provides, romiter finds and
// selects devices, sha256mac computes the MACs the authenticators check and
// ds28exx drives the authenticators themselves. ds248x is an I²C bus master
// implementing owmaster.Master.
package onewire
