// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// ATA sub-command wrappers.

package passthru

import (
	"github.com/dswarbrick/passthru/ata"
	"github.com/dswarbrick/passthru/result"
	"github.com/dswarbrick/passthru/scsi"
)

// DOWNLOAD MICROCODE subcommands
const (
	MicrocodeTemporary        = 0x01
	MicrocodeOffsetsActivate  = 0x03
	MicrocodeOffsetsDefer     = 0x0e
	MicrocodeActivateDeferred = 0x0f
)

// sectors checks that data is a non-empty whole number of sectors, at most max of them.
func sectors(op string, data []byte, max int) (int, error) {
	n := len(data) / ata.SectorSize

	if len(data) == 0 || len(data)%ata.SectorSize != 0 || n > max {
		return 0, result.Newf(result.BadParameter, op, "transfer length %d", len(data))
	}

	return n, nil
}

// ReadBuffer reads the 512-byte device buffer into buf.
func (d *Device) ReadBuffer(buf []byte) error {
	if len(buf) != ata.SectorSize {
		return result.Newf(result.BadParameter, "read buffer", "transfer length %d", len(buf))
	}

	tf := &ata.TaskFile{Count: 1, Device: ata.DEVICE_LBA, TransferLen: ata.SectorSize}
	_, err := d.issue(FamilyBufferRead, tf, buf)

	return err
}

// WriteBuffer writes 512 bytes to the device buffer.
func (d *Device) WriteBuffer(data []byte) error {
	if len(data) != ata.SectorSize {
		return result.Newf(result.BadParameter, "write buffer", "transfer length %d", len(data))
	}

	tf := &ata.TaskFile{Count: 1, Device: ata.DEVICE_LBA, TransferLen: ata.SectorSize}
	_, err := d.issue(FamilyBufferWrite, tf, data)

	return err
}

// DownloadMicrocode sends a microcode segment at the given block offset. An empty segment with
// MicrocodeActivateDeferred activates previously downloaded microcode.
func (d *Device) DownloadMicrocode(mode uint8, offset uint16, data []byte) error {
	if len(data) == 0 {
		if mode != MicrocodeActivateDeferred {
			return result.Newf(result.BadParameter, "download microcode", "mode %#02x needs data", mode)
		}

		tf := &ata.TaskFile{
			Command:  ata.ATA_DOWNLOAD_MICROCODE,
			Feature:  mode,
			Protocol: ata.ProtocolNoData,
		}
		_, err := d.execute(tf, nil, false)

		return err
	}

	blocks, err := sectors("download microcode", data, 0xffff)
	if err != nil {
		return err
	}

	tf := &ata.TaskFile{
		Feature:     mode,
		Count:       uint8(blocks),
		LBALow:      uint8(blocks >> 8),
		LBAMid:      uint8(offset),
		LBAHigh:     uint8(offset >> 8),
		TransferLen: uint32(len(data)),
	}
	_, err = d.issue(FamilyDownloadMicrocode, tf, data)

	return err
}

func trustedTaskFile(protocol uint8, spSpecific uint16, blocks int) *ata.TaskFile {
	return &ata.TaskFile{
		Feature:     protocol,
		Count:       uint8(blocks),
		LBALow:      uint8(blocks >> 8),
		LBAMid:      uint8(spSpecific),
		LBAHigh:     uint8(spSpecific >> 8),
		TransferLen: uint32(blocks) * ata.SectorSize,
	}
}

// TrustedSend sends data to the security protocol. An empty payload is sent as TRUSTED NON-DATA.
func (d *Device) TrustedSend(protocol uint8, spSpecific uint16, data []byte) error {
	if len(data) == 0 {
		tf := trustedTaskFile(protocol, spSpecific, 0)
		tf.Command = ata.ATA_TRUSTED_NON_DATA
		tf.Protocol = ata.ProtocolNoData

		_, err := d.execute(tf, nil, false)
		return err
	}

	blocks, err := sectors("trusted send", data, 0xffff)
	if err != nil {
		return err
	}

	_, err = d.issue(FamilyTrustedSend, trustedTaskFile(protocol, spSpecific, blocks), data)

	return err
}

// TrustedReceive reads security protocol data into buf.
func (d *Device) TrustedReceive(protocol uint8, spSpecific uint16, buf []byte) error {
	blocks, err := sectors("trusted receive", buf, 0xffff)
	if err != nil {
		return err
	}

	_, err = d.issue(FamilyTrustedReceive, trustedTaskFile(protocol, spSpecific, blocks), buf)

	return err
}

func streamTaskFile(streamID uint8, lba uint64, blocks int) *ata.TaskFile {
	tf := &ata.TaskFile{
		Feature:     streamID & 0x07,
		Device:      ata.DEVICE_LBA,
		TransferLen: uint32(blocks) * ata.SectorSize,
	}
	tf.SetLBA48(lba)
	// A count of 0 means 65536 sectors
	tf.SetCount16(uint16(blocks))

	return tf
}

// ReadStream reads buf from stream streamID starting at lba.
func (d *Device) ReadStream(streamID uint8, lba uint64, buf []byte) error {
	blocks, err := sectors("read stream", buf, 0x10000)
	if err != nil {
		return err
	}

	_, err = d.issue(FamilyStreamRead, streamTaskFile(streamID, lba, blocks), buf)

	return err
}

// WriteStream writes data to stream streamID starting at lba.
func (d *Device) WriteStream(streamID uint8, lba uint64, data []byte) error {
	blocks, err := sectors("write stream", data, 0x10000)
	if err != nil {
		return err
	}

	_, err = d.issue(FamilyStreamWrite, streamTaskFile(streamID, lba, blocks), data)

	return err
}

// SMARTReturnStatus reports whether the drive's SMART status indicates a threshold exceeded
// condition.
func (d *Device) SMARTReturnStatus() (bool, error) {
	var rtf ata.ReturnTaskFile

	if d.jmicron() {
		var status [1]byte

		if _, err := d.execute(scsi.JMicronSMARTStatusTaskFile(), status[:], false); err != nil {
			return false, err
		}

		r, err := scsi.JMicronSMARTStatus(status[0])
		if err != nil {
			return false, err
		}
		rtf = r
	} else {
		tf := &ata.TaskFile{
			Command:  ata.ATA_SMART,
			Feature:  ata.SMART_RETURN_STATUS,
			LBAMid:   ata.SMART_LBA_MID,
			LBAHigh:  ata.SMART_LBA_HIGH,
			Protocol: ata.ProtocolNoData,
		}

		r, err := d.execute(tf, nil, true)
		if err != nil {
			return false, err
		}
		rtf = r
	}

	exceeded, ok := rtf.SMARTThresholdExceeded()
	if !ok {
		return false, result.Newf(result.NotAvailable, "smart return status", "registers %#02x/%#02x", rtf.LBAMid, rtf.LBAHigh)
	}

	return exceeded, nil
}
