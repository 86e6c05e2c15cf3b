// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/passthru"
	"github.com/dswarbrick/passthru/bot"
	"github.com/dswarbrick/passthru/hackdb"
	"github.com/dswarbrick/passthru/megaraid"
	"github.com/dswarbrick/passthru/result"
	"github.com/dswarbrick/passthru/scsi"
)

// parseUSBID parses "vvvv:pppp", with or without 0x prefixes.
func parseUSBID(s string) (vid, pid gousb.ID, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, result.Newf(result.BadParameter, "usb", "invalid USB ID %q", s)
	}

	ids := make([]uint64, 2)
	for i, p := range parts {
		if ids[i], err = strconv.ParseUint(strings.TrimPrefix(p, "0x"), 16, 16); err != nil {
			return 0, 0, result.Wrap(result.BadParameter, "usb", err)
		}
	}

	return gousb.ID(ids[0]), gousb.ID(ids[1]), nil
}

func loadHackDb(cfg *Config) (*hackdb.HackDb, error) {
	if cfg.HackDb != "" {
		return hackdb.Open(cfg.HackDb)
	}

	return hackdb.Default()
}

// openTransport opens the transport selected by cfg and resolves the bridge options.
func openTransport(cfg *Config, log logrus.FieldLogger) (scsi.Transport, passthru.BridgeOptions, error) {
	opts := passthru.BridgeOptions{Port: -1}

	switch {
	case cfg.Device != "":
		d, err := scsi.OpenSGIO(cfg.Device)
		if err != nil {
			return nil, opts, err
		}

		if inq, err := scsi.Inquiry(d); err == nil {
			log.WithField("inquiry", inq).Debug("SCSI device")
			if !inq.IsATA() {
				log.Warn("device does not identify as ATA, pass-through may be rejected")
			}
		}

		return d, opts, nil
	case cfg.MegaRAID != "":
		var (
			host uint16
			disk uint8
		)

		if _, err := fmt.Sscanf(cfg.MegaRAID, "megaraid%d_%d", &host, &disk); err != nil {
			return nil, opts, result.Newf(result.BadParameter, "megaraid", "invalid MegaRAID host / device ID syntax %q", cfg.MegaRAID)
		}

		c, err := megaraid.OpenController(log)
		if err != nil {
			return nil, opts, err
		}

		return &controllerDisk{Disk: c.Disk(host, disk), ctl: c}, opts, nil
	case cfg.USB != "":
		vid, pid, err := parseUSBID(cfg.USB)
		if err != nil {
			return nil, opts, err
		}

		db, err := loadHackDb(cfg)
		if err != nil {
			return nil, opts, err
		}

		d, err := bot.Open(vid, pid, log)
		if err != nil {
			return nil, opts, err
		}

		bridge := db.Lookup(uint16(vid), uint16(pid), uint16(d.Release), d.Product)
		log.WithFields(logrus.Fields{
			"bridge":      bridge.Name,
			"passthrough": bridge.Options().PassThrough,
		}).Info("bridge preset")

		if bridge.Warning != "" {
			log.Warn(bridge.Warning)
		}

		return d, bridge.Options(), nil
	}

	return nil, opts, result.Newf(result.BadParameter, "satctl", "one of --device, --megaraid or --usb is required")
}

// controllerDisk closes the MegaRAID controller along with the disk.
type controllerDisk struct {
	*megaraid.Disk
	ctl *megaraid.Controller
}

func (c *controllerDisk) Close() error {
	return c.ctl.Close()
}

// openDevice opens the device selected by cfg, applying command line overrides to the bridge
// options.
func openDevice(cfg *Config, log logrus.FieldLogger) (*passthru.Device, error) {
	checkCaps(log)

	t, opts, err := openTransport(cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.PassThrough != "" {
		if opts.PassThrough, err = scsi.ParsePassThrough(cfg.PassThrough); err != nil {
			t.Close()
			return nil, err
		}
	}

	if cfg.Port >= 0 {
		opts.Port = cfg.Port
	}

	return passthru.Open(t, passthru.Options{Bridge: opts, Timeout: cfg.Timeout, Log: log}), nil
}
