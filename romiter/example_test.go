// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package romiter_test

import (
	"fmt"
	"log"

	"github.com/GermanBionicSystems/onewire/owmaster/owmastertest"
	"github.com/GermanBionicSystems/onewire/romid"
	"github.com/GermanBionicSystems/onewire/romiter"
)

// ExampleForwardSearch walks a simulated bus.
func ExampleForwardSearch() {
	bus := owmastertest.NewSim(
		romid.New(0x28, 0x0000070e41ac),
		romid.New(0x17, 0x000012345678),
	)
	it := romiter.NewForwardSearch(bus)
	if err := it.SelectFirstDevice(); err != nil {
		log.Fatal(err)
	}
	for {
		fmt.Printf("0x%02x\n", it.RomID().Family())
		if it.LastDevice() {
			break
		}
		if err := it.SelectNextDevice(); err != nil {
			log.Fatal(err)
		}
	}
	// Output:
	// 0x28
	// 0x17
}
