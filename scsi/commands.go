// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI command definitions.

package scsi

import (
	"fmt"
)

const (
	// SCSI commands used by this package
	SCSI_TEST_UNIT_READY      = 0x00
	SCSI_REQUEST_SENSE        = 0x03
	SCSI_INQUIRY              = 0x12
	SCSI_MODE_SENSE_6         = 0x1a
	SCSI_READ_CAPACITY_10     = 0x25
	SCSI_READ_10              = 0x28
	SCSI_VARIABLE_LENGTH      = 0x7f
	SCSI_ATA_PASSTHRU_16      = 0x85
	SCSI_READ_16              = 0x88
	SCSI_SERVICE_ACTION_IN_16 = 0x9e
	SCSI_ATA_PASSTHRU_12      = 0xa1
	SCSI_READ_12              = 0xa8

	// Minimum length of standard INQUIRY response
	INQ_REPLY_LEN = 36

	// Timeout in milliseconds
	DEFAULT_TIMEOUT = 20000

	// Fixed size of a REQUEST SENSE allocation
	SENSE_BUF_LEN = 64

	// SCSI-3 mode pages
	RIGID_DISK_DRIVE_GEOMETRY_PAGE = 0x04

	// Mode page control field
	MPAGE_CONTROL_DEFAULT = 2
)

// SCSI status codes (SAM-5)
const (
	SAM_STAT_GOOD                 = 0x00
	SAM_STAT_CHECK_CONDITION      = 0x02
	SAM_STAT_CONDITION_MET        = 0x04
	SAM_STAT_BUSY                 = 0x08
	SAM_STAT_RESERVATION_CONFLICT = 0x18
	SAM_STAT_TASK_SET_FULL        = 0x28
	SAM_STAT_ACA_ACTIVE           = 0x30
	SAM_STAT_TASK_ABORTED         = 0x40
)

// SCSI CDB types
type CDB6 [6]byte
type CDB10 [10]byte
type CDB12 [12]byte
type CDB16 [16]byte
type CDB32 [32]byte

// SCSI INQUIRY response
type InquiryResponse struct {
	Peripheral   byte // peripheral qualifier, device type
	_            byte
	Version      byte
	_            [5]byte
	VendorIdent  [8]byte
	ProductIdent [16]byte
	ProductRev   [4]byte
}

func (inq InquiryResponse) String() string {
	return fmt.Sprintf("%.8s  %.16s  %.4s", inq.VendorIdent, inq.ProductIdent, inq.ProductRev)
}

// IsATA reports whether the vendor identification is the "ATA     " string a SAT layer reports.
func (inq InquiryResponse) IsATA() bool {
	return inq.VendorIdent == [8]byte{0x41, 0x54, 0x41, 0x20, 0x20, 0x20, 0x20, 0x20}
}
