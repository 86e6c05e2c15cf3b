// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Sense data decoding (SPC-5, section 4.4).
//
// Every extractor takes the sense buffer together with the length declared by the transport, and
// never reads beyond the shorter of the two.

package scsi

import (
	"encoding/binary"
	"fmt"

	"github.com/dswarbrick/passthru/ata"
)

// Sense keys
const (
	SENSE_NO_SENSE        = 0x00
	SENSE_RECOVERED_ERROR = 0x01
	SENSE_NOT_READY       = 0x02
	SENSE_MEDIUM_ERROR    = 0x03
	SENSE_HARDWARE_ERROR  = 0x04
	SENSE_ILLEGAL_REQUEST = 0x05
	SENSE_UNIT_ATTENTION  = 0x06
	SENSE_DATA_PROTECT    = 0x07
	SENSE_BLANK_CHECK     = 0x08
	SENSE_VENDOR_SPECIFIC = 0x09
	SENSE_COPY_ABORTED    = 0x0a
	SENSE_ABORTED_COMMAND = 0x0b
	SENSE_RESERVED_C      = 0x0c
	SENSE_VOLUME_OVERFLOW = 0x0d
	SENSE_MISCOMPARE      = 0x0e
	SENSE_COMPLETED       = 0x0f
)

var senseKeyNames = [16]string{
	"NO SENSE",
	"RECOVERED ERROR",
	"NOT READY",
	"MEDIUM ERROR",
	"HARDWARE ERROR",
	"ILLEGAL REQUEST",
	"UNIT ATTENTION",
	"DATA PROTECT",
	"BLANK CHECK",
	"VENDOR SPECIFIC",
	"COPY ABORTED",
	"ABORTED COMMAND",
	"RESERVED",
	"VOLUME OVERFLOW",
	"MISCOMPARE",
	"COMPLETED",
}

// SenseKeyName returns the SPC name of a sense key.
func SenseKeyName(key uint8) string {
	return senseKeyNames[key&0x0f]
}

// Response codes
const (
	SENSE_FIXED_CURRENT       = 0x70
	SENSE_FIXED_DEFERRED      = 0x71
	SENSE_DESCRIPTOR_CURRENT  = 0x72
	SENSE_DESCRIPTOR_DEFERRED = 0x73
)

// Sense data descriptor types
const (
	DESC_INFORMATION      = 0x00
	DESC_COMMAND_SPECIFIC = 0x01
	DESC_SENSE_KEY_SPEC   = 0x02
	DESC_FRU              = 0x03
	DESC_STREAM_COMMANDS  = 0x04
	DESC_BLOCK_COMMANDS   = 0x05
	DESC_ATA_STATUS       = 0x09
)

const (
	// Length reported for sense data in a format this package does not recognize
	SENSE_UNKNOWN_FORMAT_LEN = 252

	// SAT fixed format: ATA PASS-THROUGH INFORMATION AVAILABLE
	ASC_ATA_PASSTHRU_INFO  = 0x00
	ASCQ_ATA_PASSTHRU_INFO = 0x1d
)

// clamp limits the buffer to the declared length.
func clamp(sense []byte, length int) []byte {
	if length < 0 {
		length = 0
	}

	if length < len(sense) {
		return sense[:length]
	}

	return sense
}

// ResponseCode returns the response code (byte 0 bits 6:0), or zero for an empty buffer.
func ResponseCode(sense []byte, length int) uint8 {
	b := clamp(sense, length)
	if len(b) < 1 {
		return 0
	}

	return b[0] & 0x7f
}

func isDescriptor(code uint8) bool {
	return code == SENSE_DESCRIPTOR_CURRENT || code == SENSE_DESCRIPTOR_DEFERRED
}

func isFixed(code uint8) bool {
	return code == SENSE_FIXED_CURRENT || code == SENSE_FIXED_DEFERRED
}

// IsDeferred reports whether the sense data describes an error from an earlier command.
func IsDeferred(sense []byte, length int) bool {
	code := ResponseCode(sense, length)
	return code == SENSE_FIXED_DEFERRED || code == SENSE_DESCRIPTOR_DEFERRED
}

// SenseKeyASC returns the sense key, additional sense code, its qualifier and the field
// replaceable unit code. Fields that lie beyond the available data are returned as zero.
func SenseKeyASC(sense []byte, length int) (key, asc, ascq, fru uint8) {
	b := clamp(sense, length)
	code := ResponseCode(b, len(b))

	switch {
	case isDescriptor(code):
		if len(b) > 1 {
			key = b[1] & 0x0f
		}
		if len(b) > 3 {
			asc, ascq = b[2], b[3]
		}
		if d := findDescriptor(b, DESC_FRU); len(d) > 3 {
			fru = d[3]
		}
	case isFixed(code):
		if len(b) > 2 {
			key = b[2] & 0x0f
		}
		if len(b) > 13 {
			asc, ascq = b[12], b[13]
		}
		if len(b) > 14 {
			fru = b[14]
		}
	}

	return
}

// ReturnedSenseLength returns the length of the sense data as described by its own header: 8
// when no response code is present, 8 plus the additional sense length for the standard
// formats, and 252 for anything else.
func ReturnedSenseLength(sense []byte, length int) int {
	b := clamp(sense, length)
	code := ResponseCode(b, len(b))

	switch {
	case code == 0:
		return 8
	case isFixed(code), isDescriptor(code):
		if len(b) < 8 {
			return 8
		}
		return 8 + int(b[7])
	}

	return SENSE_UNKNOWN_FORMAT_LEN
}

// findDescriptor returns the first descriptor of type typ in descriptor format sense data,
// truncated to the available bytes, or nil.
func findDescriptor(b []byte, typ uint8) []byte {
	if len(b) < 8 || !isDescriptor(b[0]&0x7f) {
		return nil
	}

	end := 8 + int(b[7])
	if end > len(b) {
		end = len(b)
	}

	for off := 8; off+1 < end; {
		dlen := int(b[off+1]) + 2
		if b[off] == typ {
			last := off + dlen
			if last > end {
				last = end
			}
			return b[off:last]
		}
		off += dlen
	}

	return nil
}

// Information returns the INFORMATION field and its VALID bit.
func Information(sense []byte, length int) (info uint64, valid bool) {
	b := clamp(sense, length)
	code := ResponseCode(b, len(b))

	switch {
	case isDescriptor(code):
		if d := findDescriptor(b, DESC_INFORMATION); len(d) >= 12 {
			return binary.BigEndian.Uint64(d[4:]), d[2]&0x80 != 0
		}
	case isFixed(code):
		if len(b) >= 7 {
			return uint64(binary.BigEndian.Uint32(b[3:])), b[0]&0x80 != 0
		}
	}

	return 0, false
}

// CommandSpecific returns the COMMAND-SPECIFIC INFORMATION field. ok is false if absent.
func CommandSpecific(sense []byte, length int) (info uint64, ok bool) {
	b := clamp(sense, length)
	code := ResponseCode(b, len(b))

	switch {
	case isDescriptor(code):
		if d := findDescriptor(b, DESC_COMMAND_SPECIFIC); len(d) >= 12 {
			return binary.BigEndian.Uint64(d[4:]), true
		}
	case isFixed(code):
		if len(b) >= 12 {
			return uint64(binary.BigEndian.Uint32(b[8:])), true
		}
	}

	return 0, false
}

// StreamFlags returns the FILEMARK, EOM and ILI bits.
func StreamFlags(sense []byte, length int) (filemark, eom, ili bool) {
	b := clamp(sense, length)
	code := ResponseCode(b, len(b))

	var flags uint8
	switch {
	case isDescriptor(code):
		if d := findDescriptor(b, DESC_STREAM_COMMANDS); len(d) >= 4 {
			flags = d[3]
		} else if d := findDescriptor(b, DESC_BLOCK_COMMANDS); len(d) >= 4 {
			flags = d[3] & 0x20
		}
	case isFixed(code):
		if len(b) >= 3 {
			flags = b[2]
		}
	}

	return flags&0x80 != 0, flags&0x40 != 0, flags&0x20 != 0
}

// SKSType identifies which variant of sense-key specific information is present. The variant
// follows from the sense key.
type SKSType int

const (
	SKSNone SKSType = iota
	SKSFieldPointer
	SKSProgress
	SKSRetryCount
	SKSSegmentPointer
	SKSOverflow
)

var sksTypeNames = [...]string{"none", "field pointer", "progress indication", "actual retry count",
	"segment pointer", "unit attention condition queue overflow"}

func (t SKSType) String() string {
	if t >= 0 && int(t) < len(sksTypeNames) {
		return sksTypeNames[t]
	}

	return fmt.Sprintf("sks(%d)", int(t))
}

// SenseKeySpecific is the decoded three-byte SENSE KEY SPECIFIC field.
type SenseKeySpecific struct {
	Type SKSType
	Raw  [3]byte
}

// CommandData is the C/D bit of a field pointer: the error is in the CDB rather than the
// parameter data.
func (s SenseKeySpecific) CommandData() bool {
	return s.Raw[0]&0x40 != 0
}

// BitPointer returns the bit within the byte in error, if the field pointer supplies one.
func (s SenseKeySpecific) BitPointer() (bit uint8, valid bool) {
	return s.Raw[0] & 0x07, s.Raw[0]&0x08 != 0
}

// FieldPointer is the byte in error for SKSFieldPointer, the segment for SKSSegmentPointer.
func (s SenseKeySpecific) FieldPointer() uint16 {
	return binary.BigEndian.Uint16(s.Raw[1:])
}

// Progress returns the progress indication as a fraction of 65536.
func (s SenseKeySpecific) Progress() uint16 {
	return binary.BigEndian.Uint16(s.Raw[1:])
}

// ProgressPercent returns the progress indication as a percentage.
func (s SenseKeySpecific) ProgressPercent() float64 {
	return float64(s.Progress()) * 100 / 65536
}

// RetryCount returns the actual retry count.
func (s SenseKeySpecific) RetryCount() uint16 {
	return binary.BigEndian.Uint16(s.Raw[1:])
}

// Overflow reports a unit attention condition queue overflow.
func (s SenseKeySpecific) Overflow() bool {
	return s.Raw[0]&0x01 != 0
}

func sksType(key uint8) SKSType {
	switch key {
	case SENSE_ILLEGAL_REQUEST:
		return SKSFieldPointer
	case SENSE_NO_SENSE, SENSE_NOT_READY:
		return SKSProgress
	case SENSE_RECOVERED_ERROR, SENSE_MEDIUM_ERROR, SENSE_HARDWARE_ERROR:
		return SKSRetryCount
	case SENSE_COPY_ABORTED:
		return SKSSegmentPointer
	case SENSE_UNIT_ATTENTION:
		return SKSOverflow
	}

	return SKSNone
}

// SenseKeySpecificInfo returns the sense-key specific field, tagged by the sense key. ok is false
// when the field is absent or its SKSV bit is clear.
func SenseKeySpecificInfo(sense []byte, length int) (sks SenseKeySpecific, ok bool) {
	b := clamp(sense, length)
	code := ResponseCode(b, len(b))

	var raw []byte
	switch {
	case isDescriptor(code):
		if d := findDescriptor(b, DESC_SENSE_KEY_SPEC); len(d) >= 7 {
			raw = d[4:7]
		}
	case isFixed(code):
		if len(b) >= 18 {
			raw = b[15:18]
		}
	}

	if raw == nil || raw[0]&0x80 == 0 {
		return sks, false
	}

	key, _, _, _ := SenseKeyASC(b, len(b))
	sks.Type = sksType(key)
	copy(sks.Raw[:], raw)

	return sks, sks.Type != SKSNone
}

// ParseATAReturn extracts the ATA registers returned by a SAT layer, from the ATA Status Return
// descriptor or from the fixed format layout.
func ParseATAReturn(sense []byte, length int) (rtf ata.ReturnTaskFile, ok bool) {
	b := clamp(sense, length)
	code := ResponseCode(b, len(b))

	switch {
	case isDescriptor(code):
		d := findDescriptor(b, DESC_ATA_STATUS)
		if len(d) < 14 {
			return rtf, false
		}

		rtf.Extend = d[2]&0x01 != 0
		rtf.Error = d[3]
		rtf.CountExt = d[4]
		rtf.Count = d[5]
		rtf.LBALowExt = d[6]
		rtf.LBALow = d[7]
		rtf.LBAMidExt = d[8]
		rtf.LBAMid = d[9]
		rtf.LBAHighExt = d[10]
		rtf.LBAHigh = d[11]
		rtf.Device = d[12]
		rtf.Status = d[13]

		return rtf, true
	case isFixed(code):
		if len(b) < 12 {
			return rtf, false
		}

		rtf.Error = b[3]
		rtf.Status = b[4]
		rtf.Device = b[5]
		rtf.Count = b[6]
		rtf.LBAHigh = b[9]
		rtf.LBAMid = b[10]
		rtf.LBALow = b[11]

		return rtf, true
	}

	return rtf, false
}

// SenseFields collects every field the decoder knows about.
type SenseFields struct {
	ResponseCode uint8
	Deferred     bool
	Key          uint8
	ASC          uint8
	ASCQ         uint8
	FRU          uint8

	Filemark bool
	EOM      bool
	ILI      bool

	Information      uint64
	InformationValid bool

	CommandSpecific      uint64
	CommandSpecificValid bool

	SKS      SenseKeySpecific
	SKSValid bool

	// Length is the length declared by the sense data itself.
	Length int
}

// ParseSense decodes sense data. Truncated data yields zero for the missing fields.
func ParseSense(sense []byte, length int) SenseFields {
	var f SenseFields

	f.ResponseCode = ResponseCode(sense, length)
	f.Deferred = IsDeferred(sense, length)
	f.Key, f.ASC, f.ASCQ, f.FRU = SenseKeyASC(sense, length)
	f.Filemark, f.EOM, f.ILI = StreamFlags(sense, length)
	f.Information, f.InformationValid = Information(sense, length)
	f.CommandSpecific, f.CommandSpecificValid = CommandSpecific(sense, length)
	f.SKS, f.SKSValid = SenseKeySpecificInfo(sense, length)
	f.Length = ReturnedSenseLength(sense, length)

	return f
}

func (f SenseFields) String() string {
	return fmt.Sprintf("%s, ASC/ASCQ %02xh/%02xh", SenseKeyName(f.Key), f.ASC, f.ASCQ)
}
