// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Classification of sense key / ASC / ASCQ triples into result codes.

package scsi

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/dswarbrick/passthru/result"
)

// Sense key masks for ascEntry.keys
const (
	kNoSense   = 1 << SENSE_NO_SENSE
	kRecovered = 1 << SENSE_RECOVERED_ERROR
	kIllegal   = 1 << SENSE_ILLEGAL_REQUEST
	kAny       = 0xffff
)

// ascEntry overrides the sense key default for an ASC and a range of ASCQ values, under the
// sense keys set in keys. The first matching entry wins.
type ascEntry struct {
	asc    uint8
	ascqLo uint8
	ascqHi uint8
	keys   uint16
	code   result.Code
}

// Overrides of the sense key defaults, after SPC-5 Annex F, SBC-4, SSC-5, MMC-6 and SAT-4.
var ascTable = []ascEntry{
	// 00h: informational and operation state
	{0x00, 0x06, 0x06, kAny, result.Aborted},                  // I/O process terminated
	{0x00, 0x11, 0x11, kAny, result.InProgress},               // audio play operation in progress
	{0x00, 0x12, 0x12, kAny, result.Success},                  // audio play operation paused
	{0x00, 0x13, 0x13, kAny, result.Success},                  // audio play operation successfully completed
	{0x00, 0x14, 0x14, kAny, result.Failure},                  // audio play operation stopped due to error
	{0x00, 0x16, 0x16, kAny, result.InProgress},               // operation in progress
	{0x00, 0x18, 0x1c, kAny, result.InProgress},               // erase, locate, rewind, set capacity, verify operation in progress
	{0x00, 0x1d, 0x1d, kNoSense | kRecovered, result.Success}, // ATA pass-through information available
	{0x00, 0x1e, 0x1e, kAny, result.Failure},                  // conflicting SA creation request
	{0x00, 0x1f, 0x1f, kAny, result.Failure},                  // logical unit transitioning to another power condition
	{0x00, 0x20, 0x20, kAny, result.Failure},                  // extended copy information available
	{0x00, 0x21, 0x21, kAny, result.Aborted},                  // atomic command aborted due to ACA

	// 04h: logical unit not ready
	{0x04, 0x01, 0x01, kAny, result.InProgress}, // in process of becoming ready
	{0x04, 0x04, 0x04, kAny, result.InProgress}, // format in progress
	{0x04, 0x05, 0x05, kAny, result.InProgress}, // rebuild in progress
	{0x04, 0x06, 0x06, kAny, result.InProgress}, // recalculation in progress
	{0x04, 0x07, 0x07, kAny, result.InProgress}, // operation in progress
	{0x04, 0x08, 0x08, kAny, result.InProgress}, // long write in progress
	{0x04, 0x09, 0x09, kAny, result.InProgress}, // self-test in progress
	{0x04, 0x0a, 0x0a, kAny, result.InProgress}, // asymmetric access state transition
	{0x04, 0x0e, 0x0e, kAny, result.InProgress}, // security session in progress
	{0x04, 0x13, 0x13, kAny, result.InProgress}, // SA creation in progress
	{0x04, 0x14, 0x14, kAny, result.InProgress}, // space allocation in progress
	{0x04, 0x1a, 0x1a, kAny, result.InProgress}, // start stop unit command in progress
	{0x04, 0x1b, 0x1b, kAny, result.InProgress}, // sanitize in progress
	{0x04, 0x1d, 0x1d, kAny, result.InProgress}, // configuration in progress
	{0x04, 0x24, 0x25, kAny, result.InProgress}, // depopulation in progress, depopulation restoration in progress

	// 08h, 0Bh: communication and warnings
	{0x08, 0x01, 0x01, kAny, result.Aborted},                  // logical unit communication time-out
	{0x0b, 0x00, 0x14, kNoSense | kRecovered, result.Success}, // warning

	// 1Ah..2Ch: request errors that are not about support
	{0x1a, 0x00, 0x00, kIllegal, result.NotSupported}, // parameter list length error
	{0x20, 0x00, 0x00, kIllegal, result.NotSupported}, // invalid command operation code
	{0x20, 0x01, 0x0c, kIllegal, result.Failure},      // access denied, invalid LU / proxy token
	{0x21, 0x00, 0x07, kAny, result.Failure},          // LBA out of range, invalid element address
	{0x24, 0x00, 0x00, kIllegal, result.NotSupported}, // invalid field in CDB
	{0x24, 0x01, 0x08, kAny, result.Failure},          // CDB decryption error, security audit
	{0x25, 0x00, 0x00, kAny, result.NotSupported},     // logical unit not supported
	{0x26, 0x00, 0x00, kIllegal, result.NotSupported}, // invalid field in parameter list
	{0x26, 0x01, 0x01, kIllegal, result.NotSupported}, // parameter not supported
	{0x26, 0x02, 0x14, kAny, result.Failure},          // parameter value invalid, threshold, release of reservation
	{0x27, 0x00, 0x08, kAny, result.Failure},          // write protected
	{0x2c, 0x00, 0x0c, kAny, result.Failure},          // command sequence error
	{0x2f, 0x00, 0x03, kAny, result.Aborted},          // commands cleared by another initiator / power loss / device server
	{0x30, 0x00, 0x13, kAny, result.Failure},          // incompatible medium installed, cannot read / write / format medium

	// 3xh: media and target state
	{0x3a, 0x00, 0x04, kAny, result.Failure},          // medium not present
	{0x3d, 0x00, 0x00, kIllegal, result.NotSupported}, // invalid bits in identify message
	{0x3e, 0x02, 0x02, kAny, result.Aborted},          // timeout on logical unit
	{0x3e, 0x03, 0x04, kAny, result.Failure},          // logical unit failed self-test / unable to update self-test log
	{0x3f, 0x0f, 0x0f, kAny, result.Success},          // echo buffer overwritten

	// 4xh..5xh: transport, internal and prediction
	{0x43, 0x00, 0x00, kAny, result.Aborted},                  // message error
	{0x44, 0x00, 0x00, kAny, result.Failure},                  // internal target failure
	{0x45, 0x00, 0x00, kAny, result.Aborted},                  // select or reselect failure
	{0x47, 0x00, 0x7f, kAny, result.Aborted},                  // SCSI parity error and information unit errors
	{0x48, 0x00, 0x00, kAny, result.Aborted},                  // initiator detected error message received
	{0x49, 0x00, 0x00, kAny, result.Aborted},                  // invalid message error
	{0x4b, 0x00, 0x7f, kAny, result.Aborted},                  // data phase error
	{0x4d, 0x00, 0xff, kAny, result.Aborted},                  // tagged overlapped commands, ASCQ is the task tag
	{0x4e, 0x00, 0x00, kAny, result.Aborted},                  // overlapped commands attempted
	{0x53, 0x00, 0x08, kAny, result.Failure},                  // media load or eject failed, medium removal prevented
	{0x55, 0x00, 0x7f, kAny, result.Failure},                  // system resource failure
	{0x5d, 0x00, 0x7f, kNoSense | kRecovered, result.Success}, // failure prediction threshold exceeded
	{0x5e, 0x00, 0x7f, kNoSense | kRecovered, result.Success}, // low power condition on

	// 6xh..7xh
	{0x67, 0x00, 0x7f, kAny, result.Failure}, // configuration failure
	{0x6f, 0x00, 0x07, kAny, result.Failure}, // copy protection key exchange failure
	{0x72, 0x00, 0x08, kAny, result.Failure}, // session fixation error
	{0x73, 0x00, 0x7f, kAny, result.Failure}, // CD control error
	{0x74, 0x00, 0x7f, kAny, result.Failure}, // security error
}

// senseKeyDefault is the classification of a sense key when no table entry applies.
var senseKeyDefault = [16]result.Code{
	SENSE_NO_SENSE:        result.Success,
	SENSE_RECOVERED_ERROR: result.Success,
	SENSE_NOT_READY:       result.Failure,
	SENSE_MEDIUM_ERROR:    result.Failure,
	SENSE_HARDWARE_ERROR:  result.Failure,
	SENSE_ILLEGAL_REQUEST: result.NotSupported,
	SENSE_UNIT_ATTENTION:  result.Failure,
	SENSE_DATA_PROTECT:    result.Failure,
	SENSE_BLANK_CHECK:     result.Failure,
	SENSE_VENDOR_SPECIFIC: result.Unknown,
	SENSE_COPY_ABORTED:    result.Aborted,
	SENSE_ABORTED_COMMAND: result.Aborted,
	SENSE_RESERVED_C:      result.Unknown,
	SENSE_VOLUME_OVERFLOW: result.Failure,
	SENSE_MISCOMPARE:      result.Failure,
	SENSE_COMPLETED:       result.Success,
}

// Classify maps a sense key, ASC and ASCQ to a single result code. It is total over all inputs.
func Classify(key, asc, ascq uint8) result.Code {
	key &= 0x0f
	mask := uint16(1) << key

	for _, e := range ascTable {
		if e.asc == asc && ascq >= e.ascqLo && ascq <= e.ascqHi && e.keys&mask != 0 {
			return e.code
		}
	}

	// Vendor specific ASC or ASCQ
	if asc >= 0x80 || ascq >= 0x80 {
		return result.Unknown
	}

	return senseKeyDefault[key]
}

// ClassifySense classifies raw sense data.
func ClassifySense(sense []byte, length int) result.Code {
	key, asc, ascq, _ := SenseKeyASC(sense, length)
	return Classify(key, asc, ascq)
}

var classifyOutcomes = map[result.Code]bool{
	result.Success:      true,
	result.Failure:      true,
	result.NotSupported: true,
	result.InProgress:   true,
	result.Aborted:      true,
	result.Unknown:      true,
}

// SelfTest checks the classification table for malformed entries, then enumerates every sense
// key, ASC and ASCQ combination and verifies each classifies to a sense outcome. All problems are
// reported together.
func SelfTest() error {
	var errs *multierror.Error

	for i, e := range ascTable {
		if e.ascqLo > e.ascqHi {
			errs = multierror.Append(errs, fmt.Errorf("entry %d (%02xh): ASCQ range %02xh..%02xh is empty", i, e.asc, e.ascqLo, e.ascqHi))
		}
		if e.keys == 0 {
			errs = multierror.Append(errs, fmt.Errorf("entry %d (%02xh): no sense keys", i, e.asc))
		}
		if !classifyOutcomes[e.code] {
			errs = multierror.Append(errs, fmt.Errorf("entry %d (%02xh): outcome %q", i, e.asc, e.code))
		}
	}

	for key := 0; key < 16; key++ {
		for asc := 0; asc < 256; asc++ {
			for ascq := 0; ascq < 256; ascq++ {
				code := Classify(uint8(key), uint8(asc), uint8(ascq))
				if !classifyOutcomes[code] {
					errs = multierror.Append(errs, fmt.Errorf("%x/%02x/%02x: outcome %q", key, asc, ascq, code))
				}
			}
		}
	}

	return errs.ErrorOrNil()
}
