// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// USB Mass Storage Bulk-Only Transport wrappers (USB MSC BOT 1.0).

package bot

import (
	"encoding/binary"

	"github.com/dswarbrick/passthru/result"
)

const (
	// Interface protocol code of the Bulk-Only Transport
	ProtocolBulkOnly = 0x50

	CBWSignature   = 0x43425355 // "USBC"
	CBWSize        = 31
	CBWFlagDataOut = 0x00
	CBWFlagDataIn  = 0x80
	CBWMaxCDBLen   = 16

	CSWSignature        = 0x53425355 // "USBS"
	CSWSize             = 13
	CSWStatusGood       = 0x00
	CSWStatusFailed     = 0x01
	CSWStatusPhaseError = 0x02
)

// CSW is a decoded Command Status Wrapper.
type CSW struct {
	Tag     uint32
	Residue uint32
	Status  uint8
}

// BuildCBW wraps a CDB in a Command Block Wrapper.
func BuildCBW(tag, dataLen uint32, flags, lun uint8, cdb []byte) ([]byte, error) {
	if len(cdb) == 0 || len(cdb) > CBWMaxCDBLen {
		return nil, result.Newf(result.BadParameter, "bot", "CDB length %d", len(cdb))
	}

	cbw := make([]byte, CBWSize)

	binary.LittleEndian.PutUint32(cbw[0:], CBWSignature)
	binary.LittleEndian.PutUint32(cbw[4:], tag)
	binary.LittleEndian.PutUint32(cbw[8:], dataLen)
	cbw[12] = flags
	cbw[13] = lun & 0x0f
	cbw[14] = uint8(len(cdb))
	copy(cbw[15:], cdb)

	return cbw, nil
}

// ParseCSW decodes a 13-byte Command Status Wrapper.
func ParseCSW(b []byte) (CSW, error) {
	if len(b) < CSWSize {
		return CSW{}, result.Newf(result.Failure, "bot", "short CSW: %d bytes", len(b))
	}

	if sig := binary.LittleEndian.Uint32(b[0:]); sig != CSWSignature {
		return CSW{}, result.Newf(result.Failure, "bot", "invalid CSW signature %#08x", sig)
	}

	return CSW{
		Tag:     binary.LittleEndian.Uint32(b[4:]),
		Residue: binary.LittleEndian.Uint32(b[8:]),
		Status:  b[12],
	}, nil
}
