// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// ATA task file registers and return task file registers.

package ata

import "fmt"

// Direction is the data phase direction of an ATA command.
type Direction int

const (
	DirNoData Direction = iota
	DirIn
	DirOut
)

func (d Direction) String() string {
	switch d {
	case DirNoData:
		return "no data"
	case DirIn:
		return "in"
	case DirOut:
		return "out"
	}

	return fmt.Sprintf("direction(%d)", int(d))
}

// Protocol is the ATA protocol used to transfer a command, named after the SAT PROTOCOL field.
type Protocol int

const (
	ProtocolHardReset Protocol = iota
	ProtocolSoftReset
	ProtocolNoData
	ProtocolPIO
	ProtocolDMA
	ProtocolDMAQueued
	ProtocolFPDMA
	ProtocolDeviceReset
	ProtocolDeviceDiagnostic
	ProtocolPacket
	ProtocolPacketDMA
	ProtocolUDMA
	ProtocolReturnResponse
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHardReset:
		return "hard reset"
	case ProtocolSoftReset:
		return "soft reset"
	case ProtocolNoData:
		return "non-data"
	case ProtocolPIO:
		return "PIO"
	case ProtocolDMA:
		return "DMA"
	case ProtocolDMAQueued:
		return "DMA queued"
	case ProtocolFPDMA:
		return "FPDMA"
	case ProtocolDeviceReset:
		return "device reset"
	case ProtocolDeviceDiagnostic:
		return "device diagnostic"
	case ProtocolPacket:
		return "packet"
	case ProtocolPacketDMA:
		return "packet DMA"
	case ProtocolUDMA:
		return "UDMA"
	case ProtocolReturnResponse:
		return "return response information"
	}

	return fmt.Sprintf("protocol(%d)", int(p))
}

// IsDMA reports whether p moves data by DMA.
func (p Protocol) IsDMA() bool {
	switch p {
	case ProtocolDMA, ProtocolDMAQueued, ProtocolFPDMA, ProtocolPacketDMA, ProtocolUDMA:
		return true
	}

	return false
}

// TaskFile is the ATA command register set. The Ext registers hold bits 15:8 of the feature and
// count registers and bits 47:24 of the LBA for 48-bit commands.
type TaskFile struct {
	Feature    uint8
	FeatureExt uint8
	Count      uint8
	CountExt   uint8
	LBALow     uint8
	LBAMid     uint8
	LBAHigh    uint8
	LBALowExt  uint8
	LBAMidExt  uint8
	LBAHighExt uint8
	Device     uint8
	Command    uint8
	ICC        uint8
	Control    uint8
	Aux        uint32

	Direction Direction
	Protocol  Protocol
	// Ext marks a 48-bit command, which needs the Ext registers delivered to the device.
	Ext bool
	// TransferLen is the expected data phase length in bytes.
	TransferLen uint32
}

// SetLBA28 loads a 28-bit LBA into the low registers and the device register.
func (tf *TaskFile) SetLBA28(lba uint32) {
	tf.LBALow = uint8(lba)
	tf.LBAMid = uint8(lba >> 8)
	tf.LBAHigh = uint8(lba >> 16)
	tf.Device = (tf.Device &^ 0x0f) | uint8(lba>>24)&0x0f
}

// SetLBA48 loads a 48-bit LBA into the low and Ext registers.
func (tf *TaskFile) SetLBA48(lba uint64) {
	tf.LBALow = uint8(lba)
	tf.LBAMid = uint8(lba >> 8)
	tf.LBAHigh = uint8(lba >> 16)
	tf.LBALowExt = uint8(lba >> 24)
	tf.LBAMidExt = uint8(lba >> 32)
	tf.LBAHighExt = uint8(lba >> 40)
}

// LBA48 returns the 48-bit LBA held by the registers.
func (tf *TaskFile) LBA48() uint64 {
	return uint64(tf.LBALow) | uint64(tf.LBAMid)<<8 | uint64(tf.LBAHigh)<<16 |
		uint64(tf.LBALowExt)<<24 | uint64(tf.LBAMidExt)<<32 | uint64(tf.LBAHighExt)<<40
}

// SetCount16 loads a 16-bit sector count.
func (tf *TaskFile) SetCount16(n uint16) {
	tf.Count = uint8(n)
	tf.CountExt = uint8(n >> 8)
}

// Count16 returns the 16-bit sector count.
func (tf *TaskFile) Count16() uint16 {
	return uint16(tf.CountExt)<<8 | uint16(tf.Count)
}

// SetFeature16 loads a 16-bit feature value.
func (tf *TaskFile) SetFeature16(n uint16) {
	tf.Feature = uint8(n)
	tf.FeatureExt = uint8(n >> 8)
}

// Requires48Bit reports whether the command cannot be carried by a 28-bit register set: either it
// is a 48-bit command or one of its Ext registers is populated.
func (tf *TaskFile) Requires48Bit() bool {
	return tf.Ext || tf.FeatureExt != 0 || tf.CountExt != 0 ||
		tf.LBALowExt != 0 || tf.LBAMidExt != 0 || tf.LBAHighExt != 0
}

// ATA status register bits
const (
	StatusError        = 0x01
	StatusBit2         = 0x04
	StatusDataRequest  = 0x08
	StatusSeekComplete = 0x10
	StatusDeviceFault  = 0x20
	StatusReady        = 0x40
	StatusBusy         = 0x80
)

// ATA error register bits
const (
	ErrorAMNF = 0x01 // address mark not found (obsolete)
	ErrorEOM  = 0x02 // end of media
	ErrorABRT = 0x04 // command aborted
	ErrorMCR  = 0x08 // media change request
	ErrorIDNF = 0x10 // ID not found
	ErrorMC   = 0x20 // media changed
	ErrorUNC  = 0x40 // uncorrectable data
	ErrorICRC = 0x80 // interface CRC error
)

// CommandContext selects the meaning of status bit 2, which depends on the command issued.
type CommandContext int

const (
	ContextOther CommandContext = iota
	ContextRead
	ContextWrite
)

// Bit2Meaning is the interpretation of status bit 2 for a given command context.
type Bit2Meaning int

const (
	Bit2Obsolete Bit2Meaning = iota
	Bit2CorrectedData
	Bit2AlignmentError
)

// ReturnTaskFile holds the registers returned by the device on command completion.
type ReturnTaskFile struct {
	Error      uint8
	Count      uint8
	CountExt   uint8
	LBALow     uint8
	LBAMid     uint8
	LBAHigh    uint8
	LBALowExt  uint8
	LBAMidExt  uint8
	LBAHighExt uint8
	Device     uint8
	Status     uint8
	// Extend is set when the Ext registers hold valid 48-bit values.
	Extend bool
}

func (r *ReturnTaskFile) Busy() bool         { return r.Status&StatusBusy != 0 }
func (r *ReturnTaskFile) Ready() bool        { return r.Status&StatusReady != 0 }
func (r *ReturnTaskFile) DeviceFault() bool  { return r.Status&StatusDeviceFault != 0 }
func (r *ReturnTaskFile) SeekComplete() bool { return r.Status&StatusSeekComplete != 0 }
func (r *ReturnTaskFile) DataRequest() bool  { return r.Status&StatusDataRequest != 0 }
func (r *ReturnTaskFile) HasError() bool     { return r.Status&StatusError != 0 }

// Aborted reports an ABRT error, the device refusing the command or its parameters.
func (r *ReturnTaskFile) Aborted() bool {
	return r.HasError() && r.Error&ErrorABRT != 0
}

// Bit2 returns the meaning of status bit 2 for the command that produced these registers, or
// Bit2Obsolete when the bit is clear or carries no meaning in ctx.
func (r *ReturnTaskFile) Bit2(ctx CommandContext) Bit2Meaning {
	if r.Status&StatusBit2 == 0 {
		return Bit2Obsolete
	}

	switch ctx {
	case ContextRead:
		return Bit2CorrectedData
	case ContextWrite:
		return Bit2AlignmentError
	}

	return Bit2Obsolete
}

// LBA48 returns the LBA held by the returned registers.
func (r *ReturnTaskFile) LBA48() uint64 {
	lba := uint64(r.LBALow) | uint64(r.LBAMid)<<8 | uint64(r.LBAHigh)<<16
	if r.Extend {
		lba |= uint64(r.LBALowExt)<<24 | uint64(r.LBAMidExt)<<32 | uint64(r.LBAHighExt)<<40
	}

	return lba
}

// SMARTThresholdExceeded decodes the result of SMART RETURN STATUS. ok is false when the LBA
// registers hold neither signature.
func (r *ReturnTaskFile) SMARTThresholdExceeded() (exceeded bool, ok bool) {
	switch {
	case r.LBAMid == SMART_LBA_MID && r.LBAHigh == SMART_LBA_HIGH:
		return false, true
	case r.LBAMid == SMART_THRESHOLD_EXCEEDED_LBA_MID && r.LBAHigh == SMART_THRESHOLD_EXCEEDED_LBA_HIGH:
		return true, true
	}

	return false, false
}
