// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// ATA log access, through general purpose logging or SMART.

package passthru

import (
	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/passthru/ata"
	"github.com/dswarbrick/passthru/result"
)

// GPL reports whether logs are accessed with READ / WRITE LOG EXT rather than SMART READ / WRITE
// LOG. It is false until the device has been identified.
func (d *Device) GPL() bool {
	return d.gpl
}

func logTaskFile(address uint8, page uint16, count uint16) *ata.TaskFile {
	tf := &ata.TaskFile{
		Device:      ata.DEVICE_LBA,
		LBALow:      address,
		LBAMid:      uint8(page),
		LBAMidExt:   uint8(page >> 8),
		TransferLen: uint32(count) * ata.SectorSize,
	}
	tf.SetCount16(count)

	return tf
}

// smartLogTaskFile builds SMART READ LOG or SMART WRITE LOG. SMART logs are always read from
// their first page.
func smartLogTaskFile(feature uint8, address uint8, page uint16, count uint16) (*ata.TaskFile, error) {
	if page != 0 {
		return nil, result.Newf(result.NotSupported, "smart log", "page %d of log %#02x needs general purpose logging", page, address)
	}

	if count > 0xff {
		return nil, result.Newf(result.BadParameter, "smart log", "%d pages", count)
	}

	tf := &ata.TaskFile{
		Command:     ata.ATA_SMART,
		Feature:     feature,
		Count:       uint8(count),
		LBALow:      address,
		LBAMid:      ata.SMART_LBA_MID,
		LBAHigh:     ata.SMART_LBA_HIGH,
		Protocol:    ata.ProtocolPIO,
		TransferLen: uint32(count) * ata.SectorSize,
	}

	return tf, nil
}

// ReadLog reads count pages of the log at address, starting from page.
func (d *Device) ReadLog(address uint8, page uint16, count uint16) ([]byte, error) {
	if count == 0 {
		return nil, result.New(result.BadParameter, "read log")
	}

	buf := make([]byte, int(count)*ata.SectorSize)

	if !d.gpl {
		tf, err := smartLogTaskFile(ata.SMART_READ_LOG, address, page, count)
		if err != nil {
			return nil, err
		}
		tf.Direction = ata.DirIn

		if _, err := d.execute(tf, buf, false); err != nil {
			return nil, err
		}

		return buf, nil
	}

	if _, err := d.issue(FamilyLogRead, logTaskFile(address, page, count), buf); err != nil {
		return nil, err
	}

	if address == ata.LOG_IDENTIFY_DEVICE_DATA {
		d.zonedFromLog(buf, page, count)
	}

	return buf, nil
}

// zonedFromLog feeds the Supported Capabilities page, if it was part of a read, to the capability
// model.
func (d *Device) zonedFromLog(buf []byte, page uint16, count uint16) {
	want := uint16(ata.IDDATA_PAGE_SUPPORTED_CAPABILITIES)
	if d.model == nil || want < page || want >= page+count {
		return
	}

	off := int(want-page) * ata.SectorSize

	if z, ok := ata.SupportedCapabilitiesZoned(buf[off : off+ata.SectorSize]); ok && d.model.UpgradeZoned(z) {
		d.log.WithFields(logrus.Fields{
			"zoned": z,
		}).Debug("zoned capabilities learned from IDENTIFY DEVICE DATA log")
	}
}

// WriteLog writes data, a whole number of pages, to the log at address starting from page.
func (d *Device) WriteLog(address uint8, page uint16, data []byte) error {
	count, err := sectors("write log", data, 0xffff)
	if err != nil {
		return err
	}

	if !d.gpl {
		tf, err := smartLogTaskFile(ata.SMART_WRITE_LOG, address, page, uint16(count))
		if err != nil {
			return err
		}
		tf.Direction = ata.DirOut

		_, err = d.execute(tf, data, false)
		return err
	}

	_, err = d.issue(FamilyLogWrite, logTaskFile(address, page, uint16(count)), data)

	return err
}
