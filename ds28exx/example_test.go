// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds28exx_test

import (
	"crypto/rand"
	"fmt"
	"log"

	"github.com/GermanBionicSystems/onewire/ds248x"
	"github.com/GermanBionicSystems/onewire/ds28exx"
	"github.com/GermanBionicSystems/onewire/romiter"
	"github.com/GermanBionicSystems/onewire/sha256mac"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Example authenticates the first DS28E15 found on the bus.
func Example() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	bus, err := i2creg.Open("")
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()
	ow, err := ds248x.New(bus, 0x18, &ds248x.DefaultOpts)
	if err != nil {
		log.Fatal(err)
	}

	it := romiter.NewForwardSearch(ow)
	if err := it.SelectFirstDeviceInFamily(ds28exx.DS28E15.Family); err != nil {
		log.Fatal(err)
	}
	if it.RomID().Family() != ds28exx.DS28E15.Family {
		log.Fatal("no DS28E15 found")
	}
	logger, _ := zap.NewDevelopment()
	dev, err := ds28exx.New(romiter.NewMultidropWithResume(ow), it.RomID(), &ds28exx.Opts{Logger: logger})
	if err != nil {
		log.Fatal(err)
	}
	man, err := dev.ReadManID()
	if err != nil {
		log.Fatal(err)
	}

	// The device secret was computed from this master secret and page 0.
	coproc := sha256mac.NewSoft(sha256mac.Secret{ /* master secret */ })
	binding, err := dev.ReadPage(0)
	if err != nil {
		log.Fatal(err)
	}
	var partial ds28exx.Scratchpad
	if err := ds28exx.ComputeNextSecret(coproc, binding, 0, partial, dev.RomID(), man); err != nil {
		log.Fatal(err)
	}

	var challenge ds28exx.Scratchpad
	if _, err := rand.Read(challenge[:]); err != nil {
		log.Fatal(err)
	}
	page, err := dev.Authenticate(coproc, 1, challenge, false)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s: authentic, page 1: %x\n", dev, page)
}
