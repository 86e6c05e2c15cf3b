// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// JMicron USB-ATA bridge legacy pass-through (JM20329, JM20335-39 and clones).

package scsi

import (
	"encoding/binary"

	"github.com/dswarbrick/passthru/ata"
	"github.com/dswarbrick/passthru/result"
)

const (
	JMICRON_PASSTHRU         = 0xdf
	JMICRON_READ_REGISTER    = 0xfd
	JMICRON_DIR_IN           = 0x10
	JMICRON_DIR_OUT          = 0x00
	JMICRON_DIR_NONE         = 0x00
	JMICRON_PORT0_SELECT     = 0xa0
	JMICRON_PORT1_SELECT     = 0xb0
	JMICRON_CDB_LEN          = 12
	JMICRON_CDB_LEN_EXT      = 14
	JMICRON_REG_PORTS        = 0x720f
	JMICRON_REG_PORT0_RESULT = 0x8000
	JMICRON_REG_PORT1_RESULT = 0x9000
	JMICRON_RESULT_LEN       = 16
	jmicronPort0Connected    = 0x04
	jmicronPort1Connected    = 0x40
)

// The signature bytes at offset 12 are written even when only 12 bytes are sent.
var jmicronSignature = [2]byte{0x06, 0x7b}

func jmicronCDB(ext bool) []byte {
	cdb := make([]byte, JMICRON_CDB_LEN_EXT)
	cdb[0] = JMICRON_PASSTHRU
	copy(cdb[12:], jmicronSignature[:])

	if !ext {
		return cdb[:JMICRON_CDB_LEN]
	}

	return cdb
}

// JMicron packs an ATA command into the JMicron legacy pass-through CDB. port selects the
// master (0) or slave (1) device behind the bridge; ext selects the 14-byte variant.
func JMicron(tf *ata.TaskFile, port int, ext bool) ([]byte, error) {
	if tf == nil {
		return nil, result.New(result.BadParameter, "jmicron")
	}

	if tf.Requires48Bit() {
		return nil, result.New(result.NotAvailable, "jmicron")
	}

	var dir uint8
	switch tf.Direction {
	case ata.DirNoData:
		dir = JMICRON_DIR_NONE
	case ata.DirIn:
		dir = JMICRON_DIR_IN
	case ata.DirOut:
		dir = JMICRON_DIR_OUT
	default:
		return nil, result.Newf(result.BadParameter, "jmicron", "unknown direction %d", int(tf.Direction))
	}

	if tf.TransferLen > 0xffff {
		return nil, result.Newf(result.BadParameter, "jmicron", "transfer length %d exceeds 16 bits", tf.TransferLen)
	}

	sel, err := jmicronPortSelect(port)
	if err != nil {
		return nil, err
	}

	cdb := jmicronCDB(ext)
	cdb[1] = dir
	binary.BigEndian.PutUint16(cdb[3:], uint16(tf.TransferLen))
	cdb[5] = tf.Feature
	cdb[6] = tf.Count
	cdb[7] = tf.LBALow
	cdb[8] = tf.LBAMid
	cdb[9] = tf.LBAHigh
	cdb[10] = tf.Device | sel
	cdb[11] = tf.Command

	return cdb, nil
}

func jmicronPortSelect(port int) (uint8, error) {
	switch port {
	case 0:
		return JMICRON_PORT0_SELECT, nil
	case 1:
		return JMICRON_PORT1_SELECT, nil
	}

	return 0, result.Newf(result.BadParameter, "jmicron", "invalid port %d", port)
}

// JMicronReadRegister builds the CDB that reads size bytes of bridge-internal register space
// starting at addr.
func JMicronReadRegister(addr uint16, size uint16, ext bool) []byte {
	cdb := jmicronCDB(ext)
	cdb[1] = JMICRON_DIR_IN
	binary.BigEndian.PutUint16(cdb[3:], size)
	binary.BigEndian.PutUint16(cdb[6:], addr)
	cdb[11] = JMICRON_READ_REGISTER

	return cdb
}

// JMicronConnectedPort decodes the port bitmap register and returns the port to address,
// preferring port 0. It fails when no device is attached to either port.
func JMicronConnectedPort(bitmap byte) (int, error) {
	switch {
	case bitmap&jmicronPort0Connected != 0:
		return 0, nil
	case bitmap&jmicronPort1Connected != 0:
		return 1, nil
	}

	return -1, result.Newf(result.Failure, "jmicron", "no device connected (ports %#02x)", bitmap)
}

// JMicronResultRegister returns the register holding the task file of the last command on port.
func JMicronResultRegister(port int) uint16 {
	if port == 1 {
		return JMICRON_REG_PORT1_RESULT
	}

	return JMICRON_REG_PORT0_RESULT
}

// JMicronReturnTaskFile decodes the 16-byte result register block.
func JMicronReturnTaskFile(regs []byte) (ata.ReturnTaskFile, error) {
	var rtf ata.ReturnTaskFile

	if len(regs) < JMICRON_RESULT_LEN {
		return rtf, result.Newf(result.BadParameter, "jmicron", "short result register read: %d bytes", len(regs))
	}

	rtf.Count = regs[0]
	rtf.LBAMid = regs[4]
	rtf.LBALow = regs[6]
	rtf.Device = regs[9]
	rtf.LBAHigh = regs[10]
	rtf.Error = regs[13]
	rtf.Status = regs[14]

	return rtf, nil
}

// JMicronSMARTStatusTaskFile returns SMART RETURN STATUS rewritten as the one-byte data-in
// command these bridges expect, since they cannot return the LBA registers of a non-data command.
func JMicronSMARTStatusTaskFile() *ata.TaskFile {
	return &ata.TaskFile{
		Command:     ata.ATA_SMART,
		Feature:     ata.SMART_RETURN_STATUS,
		LBAMid:      ata.SMART_LBA_MID,
		LBAHigh:     ata.SMART_LBA_HIGH,
		Direction:   ata.DirIn,
		Protocol:    ata.ProtocolPIO,
		TransferLen: 1,
	}
}

// JMicronSMARTStatus synthesizes the SMART RETURN STATUS registers from the single status byte
// returned by JMicronSMARTStatusTaskFile.
func JMicronSMARTStatus(status byte) (ata.ReturnTaskFile, error) {
	rtf := ata.ReturnTaskFile{Status: ata.StatusReady}

	switch status {
	case 0x01, 0xc2:
		rtf.LBAMid, rtf.LBAHigh = ata.SMART_LBA_MID, ata.SMART_LBA_HIGH
	case 0x00, 0x2c:
		rtf.LBAMid, rtf.LBAHigh = ata.SMART_THRESHOLD_EXCEEDED_LBA_MID, ata.SMART_THRESHOLD_EXCEEDED_LBA_HIGH
	default:
		return rtf, result.Newf(result.NotAvailable, "jmicron", "unexpected SMART status byte %#02x", status)
	}

	return rtf, nil
}
