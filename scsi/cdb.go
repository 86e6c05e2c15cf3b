// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Command descriptor block encoders for the fixed-length CDB families (SPC-5, section 4.2.5).

package scsi

import (
	"encoding/binary"
)

// Fields holds the values packed into a CDB. Each family encoder takes the fields it has room
// for and masks the rest to the width of its byte layout.
type Fields struct {
	OpCode uint8
	// ServiceAction occupies the low five bits of byte 1 in the 10, 12 and 16-byte families, and
	// bytes 8..9 in the 32-byte family.
	ServiceAction uint16
	// Flags are the command-specific bits 4:0 of byte 1 (e.g. DPO, FUA).
	Flags   uint8
	Protect uint8
	LBA     uint64
	Length  uint32
	Group   uint8
	Control uint8
}

func (f *Fields) byte1() byte {
	return f.Protect<<5 | (f.Flags|uint8(f.ServiceAction))&0x1f
}

// CDB6 packs a 6-byte CDB: 21-bit LBA, 8-bit transfer length.
func (f *Fields) CDB6() CDB6 {
	var cdb CDB6

	cdb[0] = f.OpCode
	cdb[1] = uint8(f.LBA>>16) & 0x1f
	cdb[2] = uint8(f.LBA >> 8)
	cdb[3] = uint8(f.LBA)
	cdb[4] = uint8(f.Length)
	cdb[5] = f.Control

	return cdb
}

// CDB10 packs a 10-byte CDB: 32-bit LBA, 16-bit transfer length.
func (f *Fields) CDB10() CDB10 {
	var cdb CDB10

	cdb[0] = f.OpCode
	cdb[1] = f.byte1()
	binary.BigEndian.PutUint32(cdb[2:], uint32(f.LBA))
	cdb[6] = f.Group & 0x1f
	binary.BigEndian.PutUint16(cdb[7:], uint16(f.Length))
	cdb[9] = f.Control

	return cdb
}

// CDB12 packs a 12-byte CDB: 32-bit LBA, 32-bit transfer length.
func (f *Fields) CDB12() CDB12 {
	var cdb CDB12

	cdb[0] = f.OpCode
	cdb[1] = f.byte1()
	binary.BigEndian.PutUint32(cdb[2:], uint32(f.LBA))
	binary.BigEndian.PutUint32(cdb[6:], f.Length)
	cdb[10] = f.Group & 0x1f
	cdb[11] = f.Control

	return cdb
}

// CDB16LBA32 packs the 16-byte family that carries a 32-bit LBA in bytes 2..5, followed by
// four bytes of additional CDB data which are left zero.
func (f *Fields) CDB16LBA32() CDB16 {
	var cdb CDB16

	cdb[0] = f.OpCode
	cdb[1] = f.byte1()
	binary.BigEndian.PutUint32(cdb[2:], uint32(f.LBA))
	binary.BigEndian.PutUint32(cdb[10:], f.Length)
	cdb[14] = f.Group & 0x1f
	cdb[15] = f.Control

	return cdb
}

// CDB16 packs the long LBA 16-byte family: 64-bit LBA, 32-bit transfer length.
func (f *Fields) CDB16() CDB16 {
	var cdb CDB16

	cdb[0] = f.OpCode
	cdb[1] = f.byte1()
	binary.BigEndian.PutUint64(cdb[2:], f.LBA)
	binary.BigEndian.PutUint32(cdb[10:], f.Length)
	cdb[14] = f.Group & 0x1f
	cdb[15] = f.Control

	return cdb
}

// CDB32 packs a variable length CDB with the 32-byte layout used by SBC. The operation code is
// always VARIABLE LENGTH (7Fh); the command is selected by the service action.
func (f *Fields) CDB32() CDB32 {
	var cdb CDB32

	cdb[0] = SCSI_VARIABLE_LENGTH
	cdb[1] = f.Control
	cdb[6] = f.Group & 0x1f
	cdb[7] = 0x18 // additional CDB length
	binary.BigEndian.PutUint16(cdb[8:], f.ServiceAction)
	cdb[10] = f.Protect<<5 | f.Flags&0x1f
	binary.BigEndian.PutUint64(cdb[12:], f.LBA)
	binary.BigEndian.PutUint32(cdb[28:], f.Length)

	return cdb
}
