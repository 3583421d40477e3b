// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owmaster

import (
	"fmt"

	"periph.io/x/conn/v3/onewire"
)

// Conn exposes a Master as a periph onewire.Bus so that drivers written
// against periph (and onewire.Search) run on any Master.
type Conn struct {
	M Master
}

func (c *Conn) String() string {
	return fmt.Sprintf("owmaster.Conn{%v}", c.M)
}

// Tx implements onewire.Bus: reset, write w, read r, then apply power after
// the last byte of the transaction.
func (c *Conn) Tx(w, r []byte, power onewire.Pullup) error {
	after := NormalLevel
	if power == onewire.StrongPullup {
		after = StrongLevel
	}
	return Exclusive(c.M, func() error {
		if err := ResetPresent(c.M, "owmaster: tx"); err != nil {
			return err
		}
		for i, b := range w {
			l := NormalLevel
			if i == len(w)-1 && len(r) == 0 {
				l = after
			}
			if err := c.M.WriteByteSetLevel(b, l); err != nil {
				return Wrap("owmaster: tx", err)
			}
		}
		for i := range r {
			l := NormalLevel
			if i == len(r)-1 {
				l = after
			}
			v, err := c.M.ReadByteSetLevel(l)
			if err != nil {
				return Wrap("owmaster: tx", err)
			}
			r[i] = v
		}
		return nil
	})
}

// Search implements onewire.Bus using periph's search algorithm.
func (c *Conn) Search(alarmOnly bool) ([]onewire.Address, error) {
	return onewire.Search(c, alarmOnly)
}

// SearchTriplet implements onewire.BusSearcher.
func (c *Conn) SearchTriplet(direction byte) (onewire.TripletResult, error) {
	tr, err := c.M.Triplet(direction)
	return tr, Wrap("owmaster: triplet", err)
}

var _ onewire.Bus = &Conn{}
var _ onewire.BusSearcher = &Conn{}
