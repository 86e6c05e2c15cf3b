// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package hackdb is a database of USB-ATA bridge presets, keyed by USB vendor and product ID.
package hackdb

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/passthru"
	"github.com/dswarbrick/passthru/scsi"
)

const defaultName = "DEFAULT"

//go:embed bridges.yaml
var builtin []byte

// Bridge is the preset for one family of USB-ATA bridges.
type Bridge struct {
	Name string `yaml:"name"`
	// USBID is a regular expression matched against "0xvvvv:0xpppp".
	USBID string `yaml:"usb_id,omitempty"`
	// BCDDevice optionally restricts the match to device releases, as "0xrrrr".
	BCDDevice    string `yaml:"bcd_device,omitempty"`
	ProductRegex string `yaml:"product_regex,omitempty"`
	PassThrough  string `yaml:"passthrough,omitempty"`
	// Port is the JMicron port; unset means probe for the connected port.
	Port           *int   `yaml:"port,omitempty"`
	NoGPL          bool   `yaml:"no_gpl,omitempty"`
	CheckCondition bool   `yaml:"check_condition,omitempty"`
	Warning        string `yaml:"warning,omitempty"`

	usbID       *regexp.Regexp
	bcdDevice   *regexp.Regexp
	product     *regexp.Regexp
	passThrough scsi.PassThrough
}

type HackDb struct {
	Bridges []Bridge `yaml:"bridges"`
}

// anchored compiles expr so that it must match the whole input.
func anchored(expr string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + expr + ")$")
}

// compile validates b and prepares it for lookups.
func (b *Bridge) compile() error {
	var (
		errs *multierror.Error
		err  error
	)

	if b.Name == "" {
		errs = multierror.Append(errs, fmt.Errorf("missing name"))
	}

	if b.USBID == "" && b.Name != defaultName {
		errs = multierror.Append(errs, fmt.Errorf("missing usb_id"))
	} else if b.USBID != "" {
		if b.usbID, err = anchored(b.USBID); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("usb_id: %v", err))
		}
	}

	if b.BCDDevice != "" {
		if b.bcdDevice, err = anchored(b.BCDDevice); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("bcd_device: %v", err))
		}
	}

	if b.ProductRegex != "" {
		if b.product, err = regexp.Compile(b.ProductRegex); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("product_regex: %v", err))
		}
	}

	if b.PassThrough != "" {
		if b.passThrough, err = scsi.ParsePassThrough(b.PassThrough); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	// Only ATA PASS-THROUGH (16) carries the 48-bit commands general purpose logging needs
	if b.passThrough != scsi.PassThroughSAT16 && !b.NoGPL {
		errs = multierror.Append(errs, fmt.Errorf("%s pass-through requires no_gpl", b.passThrough))
	}

	if b.Port != nil && *b.Port != 0 && *b.Port != 1 {
		errs = multierror.Append(errs, fmt.Errorf("invalid port %d", *b.Port))
	}

	return errs.ErrorOrNil()
}

// Parse decodes a YAML-formatted hack database. Every entry is validated and all problems are
// reported together.
func Parse(r io.Reader) (*HackDb, error) {
	var (
		db   HackDb
		errs *multierror.Error
	)

	if err := yaml.NewDecoder(r).Decode(&db); err != nil && err != io.EOF {
		return nil, err
	}

	defaults := 0

	for i := range db.Bridges {
		b := &db.Bridges[i]

		if b.Name == defaultName {
			defaults++
		}

		if err := b.compile(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("bridge %d (%s): %v", i, b.Name, err))
		}
	}

	if defaults > 1 {
		errs = multierror.Append(errs, fmt.Errorf("%d %s entries", defaults, defaultName))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &db, nil
}

// Open opens a YAML-formatted hack database, unmarshalls it, and returns a HackDb.
func Open(path string) (*HackDb, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	return Parse(f)
}

// Default returns the built-in hack database.
func Default() (*HackDb, error) {
	return Parse(bytes.NewReader(builtin))
}

// Match reports whether the bridge preset applies to the USB device.
func (b *Bridge) Match(vendorID, productID, bcdDevice uint16, product string) bool {
	if b.usbID == nil || !b.usbID.MatchString(fmt.Sprintf("0x%04x:0x%04x", vendorID, productID)) {
		return false
	}

	if b.bcdDevice != nil && !b.bcdDevice.MatchString(fmt.Sprintf("0x%04x", bcdDevice)) {
		return false
	}

	if b.product != nil && !b.product.MatchString(product) {
		return false
	}

	return true
}

// Lookup returns the first bridge preset matching the USB device, or the DEFAULT entry.
func (db *HackDb) Lookup(vendorID, productID, bcdDevice uint16, product string) Bridge {
	bridge := Bridge{Name: defaultName}

	for _, b := range db.Bridges {
		if b.Name == defaultName {
			bridge = b
			continue
		}

		if b.Match(vendorID, productID, bcdDevice, product) {
			return b
		}
	}

	return bridge
}

// Options converts the preset to device handle options.
func (b Bridge) Options() passthru.BridgeOptions {
	opts := passthru.BridgeOptions{
		PassThrough:          b.passThrough,
		Port:                 -1,
		NoGPL:                b.NoGPL,
		AlwaysCheckCondition: b.CheckCondition,
	}

	if b.Port != nil {
		opts.Port = *b.Port
	}

	return opts
}
