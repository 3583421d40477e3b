// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds28exx

import (
	"errors"
	"time"

	"github.com/GermanBionicSystems/onewire/owmaster"
	"github.com/GermanBionicSystems/onewire/romid"
	"github.com/GermanBionicSystems/onewire/romiter"
	"github.com/GermanBionicSystems/onewire/sha256mac"
	"go.uber.org/zap"
	"periph.io/x/conn/v3"
)

// Function commands.
const (
	cmdWriteMemory              = 0x55
	cmdReadMemory               = 0xf0
	cmdLoadAndLockSecret        = 0x33
	cmdComputeAndLockSecret     = 0x3c
	cmdReadWriteScratchpad      = 0x0f
	cmdComputePageMac           = 0xa5
	cmdReadStatus               = 0xaa
	cmdWriteBlockProtection     = 0xc3
	cmdAuthWriteMemory          = 0x5a
	cmdAuthWriteBlockProtection = 0xcc
)

// Power phase durations.
const (
	shaDelay          = 3 * time.Millisecond
	eepromDelay       = 10 * time.Millisecond
	secretDelay       = 100 * time.Millisecond
	secretDelayLowVcc = 200 * time.Millisecond
)

// Opts contains options to pass to the constructor.
type Opts struct {
	// LowVoltage selects the longer secret programming time of the DS28EL
	// parts.
	LowVoltage bool
	// Variant overrides the variant derived from the family code.
	Variant *Variant
	// Logger receives debug messages about rejected frames. Defaults to a
	// no-op logger.
	Logger *zap.Logger
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{}

// New returns a handle to the device with id, addressed through sel.
//
// The manufacturer id is not read; call ReadManID before computing MACs.
func New(sel romiter.Selector, id romid.RomID, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	v := opts.Variant
	if v == nil {
		var err error
		if v, err = VariantOf(id.Family()); err != nil {
			return nil, err
		}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Dev{
		sel:        sel,
		m:          sel.Master(),
		id:         id,
		v:          v,
		log:        log.With(zap.String("device", v.Name)),
		lowVoltage: opts.LowVoltage,
	}, nil
}

// Dev is a handle to a DS28E15, DS28E22 or DS28E25 authenticator.
//
// Every command selects the device and holds the bus master exclusively
// until it completes. Errors are *owmaster.Error: ErrCRC when a frame was
// corrupted, ErrOperationFailure when the device rejected the command and
// ErrCommunication when the bus failed. No command is retried.
type Dev struct {
	sel        romiter.Selector
	m          owmaster.Master
	id         romid.RomID
	v          *Variant
	log        *zap.Logger
	lowVoltage bool
	manID      ManID
}

func (d *Dev) String() string {
	return d.v.Name + "{" + d.id.String() + "}"
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// RomID returns the ROM id of the device.
func (d *Dev) RomID() romid.RomID {
	return d.id
}

// Variant returns the device variant.
func (d *Dev) Variant() *Variant {
	return d.v
}

// ManID returns the cached manufacturer id.
func (d *Dev) ManID() ManID {
	return d.manID
}

// SetManID sets the manufacturer id used in MAC computations, when it is
// known without reading the device.
func (d *Dev) SetManID(m ManID) {
	d.manID = m
}

// ReadManID reads the personality and caches its manufacturer id.
func (d *Dev) ReadManID() (ManID, error) {
	p, err := d.ReadPersonality()
	if err != nil {
		return ManID{}, err
	}
	d.manID = p.ManID()
	return d.manID, nil
}

func (d *Dev) secretDelay() time.Duration {
	if d.lowVoltage {
		return secretDelayLowVcc
	}
	return secretDelay
}

func (d *Dev) exclusive(fn func() error) error {
	return owmaster.Exclusive(d.m, fn)
}

func (d *Dev) checkPage(page int) error {
	if page < 0 || page >= d.v.Pages {
		return errors.New("ds28exx: invalid page number")
	}
	return nil
}

func (d *Dev) checkSegments(page, segment, n int) error {
	if err := d.checkPage(page); err != nil {
		return err
	}
	if segment < 0 || n < 1 || segment+n > SegmentsPerPage {
		return errors.New("ds28exx: invalid segment number")
	}
	return nil
}

func (d *Dev) checkBlock(block int) error {
	if block < 0 || block >= d.v.ProtectionBlocks {
		return errors.New("ds28exx: invalid block number")
	}
	return nil
}

// WriteScratchpad writes data to the scratchpad.
func (d *Dev) WriteScratchpad(data Scratchpad) error {
	return d.exclusive(func() error {
		return d.writeScratchpad(data)
	})
}

func (d *Dev) writeScratchpad(data Scratchpad) error {
	f := d.newFrame("write scratchpad")
	f.start(cmdReadWriteScratchpad, d.v.ScratchpadParam)
	var crc [2]byte
	f.read(crc[:])
	f.check("command")
	f.write(data[:])
	f.read(crc[:])
	f.check("data")
	return f.err
}

// ReadScratchpad reads the scratchpad.
func (d *Dev) ReadScratchpad() (Scratchpad, error) {
	var data Scratchpad
	err := d.exclusive(func() error {
		f := d.newFrame("read scratchpad")
		f.start(cmdReadWriteScratchpad, d.v.ScratchpadParam|0x0f)
		var crc [2]byte
		f.read(crc[:])
		f.check("command")
		f.read(data[:])
		f.read(crc[:])
		f.check("data")
		return f.err
	})
	return data, err
}

// readStatus runs the read status command with param and returns the n data
// bytes. The data CRC16 is only sent for multi-byte replies.
func (d *Dev) readStatus(op string, param byte, n int) ([]byte, error) {
	f := d.newFrame(op)
	f.start(cmdReadStatus, param)
	var crc [2]byte
	f.read(crc[:])
	f.check("command")
	data := make([]byte, n)
	f.read(data)
	f.read(crc[:])
	if n > 1 {
		f.check("data")
	}
	return data, f.err
}

// ReadPersonality reads the personality bytes.
func (d *Dev) ReadPersonality() (Personality, error) {
	var p Personality
	err := d.exclusive(func() error {
		b, err := d.readStatus("read personality", 0xe0, len(p))
		copy(p[:], b)
		return err
	})
	return p, err
}

// ReadBlockProtection reads the protection status of one block.
func (d *Dev) ReadBlockProtection(block int) (BlockProtection, error) {
	if err := d.checkBlock(block); err != nil {
		return 0, err
	}
	var p BlockProtection
	err := d.exclusive(func() error {
		b, err := d.readStatus("read block protection", byte(block*d.v.PagesPerBlock), 1)
		p = d.v.statusToProtection(b[0])
		return err
	})
	return p, err
}

// ReadAllBlockProtection reads the protection status of every block.
func (d *Dev) ReadAllBlockProtection() ([]BlockProtection, error) {
	var out []BlockProtection
	err := d.exclusive(func() error {
		b, err := d.readStatus("read all block protection", 0, d.v.StatusBytes)
		if err != nil {
			return err
		}
		out = make([]BlockProtection, d.v.ProtectionBlocks)
		for i := range out {
			out[i] = d.v.statusToProtection(b[i*d.v.PagesPerBlock])
		}
		return nil
	})
	return out, err
}

// WriteBlockProtection raises the protection of a block that does not
// require authenticated writes.
func (d *Dev) WriteBlockProtection(p BlockProtection) error {
	if err := d.checkBlock(p.Block()); err != nil {
		return err
	}
	return d.exclusive(func() error {
		f := d.newFrame("write block protection")
		f.start(cmdWriteBlockProtection, byte(p))
		var crc [2]byte
		f.read(crc[:])
		f.check("command")
		f.release(eepromDelay)
		return f.err
	})
}

// WriteAuthBlockProtection changes the protection of an authentication
// protected block from oldP to newP. c must hold the slave secret of the
// device.
func (d *Dev) WriteAuthBlockProtection(c sha256mac.Coproc, newP, oldP BlockProtection) error {
	if err := d.checkBlock(newP.Block()); err != nil {
		return err
	}
	return d.exclusive(func() error {
		f := d.newFrame("write auth block protection")
		f.start(cmdAuthWriteBlockProtection, byte(newP))
		var crc [2]byte
		f.readPower(crc[:], shaDelay)
		f.check("command")
		if f.err != nil {
			return f.err
		}
		mac, err := ComputeProtectionWriteMac(c, newP, oldP, d.id, d.manID)
		f.fail(err)
		f.sendMac(mac)
		f.release(eepromDelay)
		return f.err
	})
}

// ComputeReadPageMac makes the device compute the MAC of page with the
// scratchpad as challenge. With anon, the ROM id is replaced by 0xFF bytes
// in the computation.
func (d *Dev) ComputeReadPageMac(page int, anon bool) (sha256mac.Mac, error) {
	var mac sha256mac.Mac
	if err := d.checkPage(page); err != nil {
		return mac, err
	}
	err := d.exclusive(func() error {
		var err error
		mac, err = d.computeReadPageMac(page, anon)
		return err
	})
	return mac, err
}

func (d *Dev) computeReadPageMac(page int, anon bool) (sha256mac.Mac, error) {
	var mac sha256mac.Mac
	param := byte(page)
	if anon {
		param |= 0xe0
	}
	f := d.newFrame("compute read page mac")
	f.start(cmdComputePageMac, param)
	var crc [2]byte
	f.readPower(crc[:], 2*shaDelay)
	f.check("command")
	f.status()
	f.read(mac[:])
	f.read(crc[:])
	f.check("mac")
	return mac, f.err
}

// ComputeSecret makes the device compute its next secret from its current
// secret, the binding page and the partial secret in the scratchpad. With
// lock, the secret is write protected afterward.
func (d *Dev) ComputeSecret(page int, lock bool) error {
	if err := d.checkPage(page); err != nil {
		return err
	}
	return d.exclusive(func() error {
		param := byte(page)
		if lock {
			param |= 0xe0
		}
		f := d.newFrame("compute secret")
		f.start(cmdComputeAndLockSecret, param)
		var crc [2]byte
		f.read(crc[:])
		f.check("command")
		f.release(2*shaDelay + d.secretDelay())
		return f.err
	})
}

// LoadSecret loads the scratchpad as the secret. With lock, the secret is
// write protected afterward.
func (d *Dev) LoadSecret(lock bool) error {
	return d.exclusive(func() error {
		var param byte
		if lock {
			param = 0xe0
		}
		f := d.newFrame("load secret")
		f.start(cmdLoadAndLockSecret, param)
		var crc [2]byte
		f.read(crc[:])
		f.check("command")
		f.release(d.secretDelay())
		return f.err
	})
}

// ReadPage reads one page.
func (d *Dev) ReadPage(page int) (Page, error) {
	var p Page
	if err := d.checkPage(page); err != nil {
		return p, err
	}
	err := d.exclusive(func() error {
		var err error
		p, err = d.readPage(page, false)
		return err
	})
	return p, err
}

// ReadPages reads n consecutive pages from first in one command.
func (d *Dev) ReadPages(first, n int) ([]Page, error) {
	if err := d.checkPage(first); err != nil {
		return nil, err
	}
	if n < 1 || first+n > d.v.Pages {
		return nil, errors.New("ds28exx: invalid page count")
	}
	var out []Page
	err := d.exclusive(func() error {
		for i := 0; i < n; i++ {
			p, err := d.readPage(first+i, i > 0)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// readPage reads a page. When continuing, the device already streams the
// page following the previous one.
func (d *Dev) readPage(page int, continuing bool) (Page, error) {
	var p Page
	f := d.newFrame("read page")
	var crc [2]byte
	if !continuing {
		f.start(cmdReadMemory, byte(page))
		f.read(crc[:])
		f.check("command")
	}
	f.read(p[:])
	f.read(crc[:])
	f.check("data")
	return p, f.err
}

// ReadSegment reads one segment. Segment reads carry no data CRC16.
func (d *Dev) ReadSegment(page, segment int) (Segment, error) {
	var s Segment
	if err := d.checkSegments(page, segment, 1); err != nil {
		return s, err
	}
	err := d.exclusive(func() error {
		f := d.newFrame("read segment")
		f.start(cmdReadMemory, segmentAddr(page, segment))
		var crc [2]byte
		f.read(crc[:])
		f.check("command")
		f.read(s[:])
		return f.err
	})
	return s, err
}

// WriteSegment writes a segment of a block that does not require
// authenticated writes.
func (d *Dev) WriteSegment(page, segment int, data Segment) error {
	return d.WriteSegments(page, segment, []Segment{data})
}

// WriteSegments writes consecutive segments from segment in one command.
// They must fit in the page.
func (d *Dev) WriteSegments(page, segment int, data []Segment) error {
	if err := d.checkSegments(page, segment, len(data)); err != nil {
		return err
	}
	return d.exclusive(func() error {
		for i, s := range data {
			if err := d.writeSegment(page, segment+i, s, i > 0); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Dev) writeSegment(page, segment int, data Segment, continuing bool) error {
	f := d.newFrame("write segment")
	var crc [2]byte
	if !continuing {
		f.start(cmdWriteMemory, segmentAddr(page, segment))
		f.read(crc[:])
		f.check("command")
	}
	f.write(data[:])
	f.read(crc[:])
	f.check("data")
	f.release(eepromDelay)
	return f.err
}

// WriteAuthSegment replaces oldData with newData in a segment of an
// authentication protected block. c must hold the slave secret of the
// device.
func (d *Dev) WriteAuthSegment(c sha256mac.Coproc, page, segment int, newData, oldData Segment) error {
	return d.WriteAuthSegments(c, page, segment, []Segment{newData}, []Segment{oldData})
}

// WriteAuthSegments writes consecutive segments of an authentication
// protected block in one command.
func (d *Dev) WriteAuthSegments(c sha256mac.Coproc, page, segment int, newData, oldData []Segment) error {
	if len(newData) != len(oldData) {
		return errors.New("ds28exx: new and old data length mismatch")
	}
	if err := d.checkSegments(page, segment, len(newData)); err != nil {
		return err
	}
	return d.exclusive(func() error {
		for i := range newData {
			seg := segment + i
			mac := func() (sha256mac.Mac, error) {
				return ComputeSegmentWriteMac(c, page, seg, newData[i], oldData[i], d.id, d.manID)
			}
			if err := d.writeAuthSegment(page, seg, newData[i], mac, i > 0); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteAuthSegmentMac writes a segment of an authentication protected block
// with a write MAC computed elsewhere.
func (d *Dev) WriteAuthSegmentMac(page, segment int, data Segment, mac sha256mac.Mac) error {
	if err := d.checkSegments(page, segment, 1); err != nil {
		return err
	}
	return d.exclusive(func() error {
		return d.writeAuthSegment(page, segment, data, func() (sha256mac.Mac, error) { return mac, nil }, false)
	})
}

func (d *Dev) writeAuthSegment(page, segment int, data Segment, mac func() (sha256mac.Mac, error), continuing bool) error {
	f := d.newFrame("write auth segment")
	var crc [2]byte
	if !continuing {
		f.start(cmdAuthWriteMemory, segmentAddr(page, segment))
		f.read(crc[:])
		f.check("command")
	} else if d.v.ContinuingCRCSeed {
		f.seed(csSuccess)
	}
	f.write(data[:])
	f.readPower(crc[:], shaDelay)
	f.check("data")
	if f.err != nil {
		return f.err
	}
	m, err := mac()
	f.fail(err)
	f.sendMac(m)
	f.release(eepromDelay)
	return f.err
}

var sleep = time.Sleep

var _ conn.Resource = &Dev{}
