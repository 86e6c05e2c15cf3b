// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI / ATA Translation (SAT) pass-through CDBs.

package scsi

import (
	"fmt"

	"github.com/dswarbrick/passthru/ata"
	"github.com/dswarbrick/passthru/result"
)

// PassThrough selects the CDB used to carry an ATA command.
type PassThrough int

const (
	PassThroughSAT16 PassThrough = iota
	PassThroughSAT12
	PassThroughJMicron
	// PassThroughJMicronExt is the JMicron variant that sends all 14 CDB bytes.
	PassThroughJMicronExt
)

var passThroughNames = [...]string{"sat16", "sat12", "jmicron", "jmicron-ext"}

func (p PassThrough) String() string {
	if p >= 0 && int(p) < len(passThroughNames) {
		return passThroughNames[p]
	}

	return fmt.Sprintf("passthrough(%d)", int(p))
}

// ParsePassThrough returns the PassThrough named s.
func ParsePassThrough(s string) (PassThrough, error) {
	for i, name := range passThroughNames {
		if s == name {
			return PassThrough(i), nil
		}
	}

	return 0, result.Newf(result.BadParameter, "sat", "unknown pass-through %q", s)
}

// SAT PROTOCOL field values (SAT-4, table 153)
const (
	SAT_PROTO_HARD_RESET      = 0x0
	SAT_PROTO_SRST            = 0x1
	SAT_PROTO_NON_DATA        = 0x3
	SAT_PROTO_PIO_DATA_IN     = 0x4
	SAT_PROTO_PIO_DATA_OUT    = 0x5
	SAT_PROTO_DMA             = 0x6
	SAT_PROTO_DMA_QUEUED      = 0x7
	SAT_PROTO_DEVICE_DIAG     = 0x8
	SAT_PROTO_DEVICE_RESET    = 0x9
	SAT_PROTO_UDMA_DATA_IN    = 0xa
	SAT_PROTO_UDMA_DATA_OUT   = 0xb
	SAT_PROTO_FPDMA           = 0xc
	SAT_PROTO_RETURN_RESPONSE = 0xf
)

// T_LENGTH field values
const (
	SAT_TLEN_NONE    = 0x0
	SAT_TLEN_FEATURE = 0x1
	SAT_TLEN_COUNT   = 0x2
	SAT_TLEN_TPSIU   = 0x3
)

// satProtocol maps a task file protocol and direction to the SAT PROTOCOL field.
func satProtocol(tf *ata.TaskFile) (uint8, error) {
	switch tf.Protocol {
	case ata.ProtocolHardReset:
		return SAT_PROTO_HARD_RESET, nil
	case ata.ProtocolSoftReset:
		return SAT_PROTO_SRST, nil
	case ata.ProtocolNoData:
		return SAT_PROTO_NON_DATA, nil
	case ata.ProtocolPIO, ata.ProtocolPacket:
		switch tf.Direction {
		case ata.DirIn:
			return SAT_PROTO_PIO_DATA_IN, nil
		case ata.DirOut:
			return SAT_PROTO_PIO_DATA_OUT, nil
		case ata.DirNoData:
			return SAT_PROTO_NON_DATA, nil
		}
	case ata.ProtocolDMA, ata.ProtocolPacketDMA:
		return SAT_PROTO_DMA, nil
	case ata.ProtocolDMAQueued:
		return SAT_PROTO_DMA_QUEUED, nil
	case ata.ProtocolDeviceDiagnostic:
		return SAT_PROTO_DEVICE_DIAG, nil
	case ata.ProtocolDeviceReset:
		return SAT_PROTO_DEVICE_RESET, nil
	case ata.ProtocolUDMA:
		switch tf.Direction {
		case ata.DirIn:
			return SAT_PROTO_UDMA_DATA_IN, nil
		case ata.DirOut:
			return SAT_PROTO_UDMA_DATA_OUT, nil
		}
	case ata.ProtocolFPDMA:
		return SAT_PROTO_FPDMA, nil
	case ata.ProtocolReturnResponse:
		return SAT_PROTO_RETURN_RESPONSE, nil
	}

	return 0, result.Newf(result.BadParameter, "sat", "no SAT protocol for %s %s", tf.Protocol, tf.Direction)
}

// satFlags builds byte 2 of the pass-through CDB. Data transfers are described in 512-byte
// blocks held in the count register.
func satFlags(tf *ata.TaskFile, ckCond bool) uint8 {
	var b uint8

	if ckCond {
		b |= 0x20
	}

	switch tf.Direction {
	case ata.DirIn:
		b |= 0x08 | 0x04 | SAT_TLEN_COUNT
	case ata.DirOut:
		b |= 0x04 | SAT_TLEN_COUNT
	}

	return b
}

// SAT16 builds an ATA PASS-THROUGH (16) CDB. ckCond requests the returned task file registers
// in the sense data even when the command succeeds.
func SAT16(tf *ata.TaskFile, ckCond bool) (CDB16, error) {
	var cdb CDB16

	if tf == nil {
		return cdb, result.New(result.BadParameter, "sat16")
	}

	proto, err := satProtocol(tf)
	if err != nil {
		return cdb, err
	}

	cdb[0] = SCSI_ATA_PASSTHRU_16
	cdb[1] = proto << 1
	if tf.Requires48Bit() {
		cdb[1] |= 0x01
	}
	cdb[2] = satFlags(tf, ckCond)
	cdb[3] = tf.FeatureExt
	cdb[4] = tf.Feature
	cdb[5] = tf.CountExt
	cdb[6] = tf.Count
	cdb[7] = tf.LBALowExt
	cdb[8] = tf.LBALow
	cdb[9] = tf.LBAMidExt
	cdb[10] = tf.LBAMid
	cdb[11] = tf.LBAHighExt
	cdb[12] = tf.LBAHigh
	cdb[13] = tf.Device
	cdb[14] = tf.Command
	cdb[15] = tf.Control

	return cdb, nil
}

// SAT12 builds an ATA PASS-THROUGH (12) CDB. The 12-byte form has no room for the Ext
// registers, so 48-bit task files are not available through it.
func SAT12(tf *ata.TaskFile, ckCond bool) (CDB12, error) {
	var cdb CDB12

	if tf == nil {
		return cdb, result.New(result.BadParameter, "sat12")
	}

	if tf.Requires48Bit() {
		return cdb, result.New(result.NotAvailable, "sat12")
	}

	proto, err := satProtocol(tf)
	if err != nil {
		return cdb, err
	}

	cdb[0] = SCSI_ATA_PASSTHRU_12
	cdb[1] = proto << 1
	cdb[2] = satFlags(tf, ckCond)
	cdb[3] = tf.Feature
	cdb[4] = tf.Count
	cdb[5] = tf.LBALow
	cdb[6] = tf.LBAMid
	cdb[7] = tf.LBAHigh
	cdb[8] = tf.Device
	cdb[9] = tf.Command
	cdb[11] = tf.Control

	return cdb, nil
}
