// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package passthru is a pure Go SCSI / ATA command translation library. It issues ATA commands
// to drives behind SAT capable HBAs and USB bridges, learning per-device transport quirks as it
// goes.
//
package passthru

import (
	"path/filepath"
)

// ScanDevices returns the names of the SCSI disk devices present on the system. Physical disks
// behind a MegaRAID controller are listed by megaraid.Controller.Disks.
func ScanDevices() []string {
	var devices []string

	// Find all SCSI disk devices
	files, err := filepath.Glob("/dev/sd*[^0-9]")
	if err != nil {
		return devices
	}

	for _, file := range files {
		devices = append(devices, file)
	}

	return devices
}
