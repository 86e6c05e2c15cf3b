// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Broadcom (formerly Avago, LSI) MegaRAID Firmware Interface (MFI) frames, as defined in
// drivers/scsi/megaraid/megaraid_sas.h.

package megaraid

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dswarbrick/passthru/result"
	"github.com/dswarbrick/passthru/scsi"
)

const (
	MAX_IOCTL_SGE = 16

	MFI_CMD_PD_SCSI_IO = 0x04
	MFI_CMD_DCMD       = 0x05

	MR_DCMD_PD_GET_LIST = 0x02010000 // Obsolete / deprecated command

	MFI_FRAME_DIR_NONE  = 0x0000
	MFI_FRAME_DIR_WRITE = 0x0008
	MFI_FRAME_DIR_READ  = 0x0010
	MFI_FRAME_DIR_BOTH  = 0x0018

	// MFI command status
	MFI_STAT_OK                    = 0x00
	MFI_STAT_DEVICE_NOT_FOUND      = 0x0c
	MFI_STAT_SCSI_DONE_WITH_ERROR  = 0x2d
	MFI_STAT_SCSI_IO_FAILED        = 0x2e
	MFI_STAT_INVALID_STATUS        = 0xff
	MFI_SENSE_LEN                  = 32
	MFI_FRAME_LEN                  = 128
	MFI_PTHRU_SENSE_OFFSET         = 24
	MFI_PTHRU_SGL_OFFSET           = 48
	MFI_DCMD_SGL_OFFSET            = 40
	MFI_IOC_FRAME_OFFSET           = 20
	MFI_IOC_PACKET_LEN             = 404
	MFI_FRAME_CMD_STATUS_OFFSET    = 2
	MFI_FRAME_SCSI_STATUS_OFFSET   = 3
	MFI_MAX_CDB_LEN                = 16
	MFI_PD_LIST_HEADER_LEN         = 8
	MFI_PD_ADDRESS_LEN             = 24
	MFI_SCSI_DEV_TYPE_DIRECT_BLOCK = 0
)

type megasas_sge64 struct {
	phys_addr uint32
	length    uint32
	_padding  uint32
}

type iovec struct {
	Base uint64
	Len  uint64
}

type megasas_dcmd_frame struct {
	cmd           uint8
	reserved_0    uint8
	cmd_status    uint8
	reserved_1    [4]uint8
	sge_count     uint8
	context       uint32
	pad_0         uint32
	flags         uint16
	timeout       uint16
	data_xfer_len uint32
	opcode        uint32
	mbox          [12]byte      // union of [12]uint8 / [6]uint16 / [3]uint32
	sgl           megasas_sge64 // union of megasas_sge64 / megasas_sge32
}

type megasas_pthru_frame struct {
	cmd                    uint8
	sense_len              uint8
	cmd_status             uint8
	scsi_status            uint8
	target_id              uint8
	lun                    uint8
	cdb_len                uint8
	sge_count              uint8
	context                uint32
	pad_0                  uint32
	flags                  uint16
	timeout                uint16
	data_xfer_len          uint32
	sense_buf_phys_addr_lo uint32
	sense_buf_phys_addr_hi uint32
	cdb                    [16]byte
	sgl                    megasas_sge64
}

// megasas_iocpacket is packed without the 4 bytes of padding Go would insert before sgl, which
// is why the ioctl number is built from a literal size rather than unsafe.Sizeof.
type megasas_iocpacket struct {
	host_no   uint16
	__pad1    uint16
	sgl_off   uint32
	sge_count uint32
	sense_off uint32
	sense_len uint32
	frame     [MFI_FRAME_LEN]byte // union of megasas_header / megasas_pthru_frame / megasas_dcmd_frame
	sgl       [MAX_IOCTL_SGE]iovec
}

// PDAddress is a physical device address, as returned by MR_DCMD_PD_GET_LIST.
type PDAddress struct {
	DeviceId          uint16
	EnclosureId       uint16
	EnclosureIndex    uint8
	SlotNumber        uint8
	SCSIDevType       uint8
	ConnectPortBitmap uint8
	SASAddr           [2]uint64
}

// pack serializes v in little-endian byte order without Go struct padding.
func pack(v interface{}) []byte {
	b := new(bytes.Buffer)
	binary.Write(b, binary.LittleEndian, v)
	return b.Bytes()
}

// PackedBytes packs the ioctl packet in little-endian format.
func (ioc *megasas_iocpacket) PackedBytes() []byte {
	return pack(ioc)
}

func frameFlags(dir scsi.DataDirection) uint16 {
	switch dir {
	case scsi.DataIn:
		return MFI_FRAME_DIR_READ
	case scsi.DataOut:
		return MFI_FRAME_DIR_WRITE
	}

	return MFI_FRAME_DIR_NONE
}

// passthruPacket builds the ioctl packet for a SCSI pass-through to a physical disk. dataAddr and
// senseAddr are user space addresses which the driver copies to and from.
func passthruPacket(host uint16, target uint8, cmd *scsi.Command, dataAddr, senseAddr uint64, timeoutSecs uint16) (*megasas_iocpacket, error) {
	if len(cmd.CDB) == 0 || len(cmd.CDB) > MFI_MAX_CDB_LEN {
		return nil, result.Newf(result.BadParameter, "megaraid", "CDB length %d", len(cmd.CDB))
	}

	ioc := &megasas_iocpacket{host_no: host}

	pthru := megasas_pthru_frame{
		cmd:                    MFI_CMD_PD_SCSI_IO,
		cmd_status:             MFI_STAT_INVALID_STATUS,
		target_id:              target,
		cdb_len:                uint8(len(cmd.CDB)),
		flags:                  frameFlags(cmd.Direction),
		timeout:                timeoutSecs,
		sense_len:              MFI_SENSE_LEN,
		sense_buf_phys_addr_lo: uint32(senseAddr),
		sense_buf_phys_addr_hi: uint32(senseAddr >> 32),
	}
	copy(pthru.cdb[:], cmd.CDB)

	ioc.sense_off = MFI_PTHRU_SENSE_OFFSET
	ioc.sense_len = MFI_SENSE_LEN

	if cmd.Direction != scsi.DataNone && len(cmd.Data) > 0 {
		pthru.data_xfer_len = uint32(len(cmd.Data))
		pthru.sge_count = 1

		ioc.sge_count = 1
		ioc.sgl_off = MFI_PTHRU_SGL_OFFSET
		ioc.sgl[0] = iovec{dataAddr, uint64(len(cmd.Data))}
	}

	copy(ioc.frame[:], pack(&pthru))

	return ioc, nil
}

// dcmdPacket builds the ioctl packet for a data-in firmware command.
func dcmdPacket(host uint16, opcode uint32, dataAddr uint64, dataLen int) *megasas_iocpacket {
	ioc := &megasas_iocpacket{host_no: host}

	dcmd := megasas_dcmd_frame{
		cmd:           MFI_CMD_DCMD,
		cmd_status:    MFI_STAT_INVALID_STATUS,
		opcode:        opcode,
		flags:         MFI_FRAME_DIR_READ,
		data_xfer_len: uint32(dataLen),
		sge_count:     1,
	}

	ioc.sge_count = 1
	ioc.sgl_off = MFI_DCMD_SGL_OFFSET
	ioc.sgl[0] = iovec{dataAddr, uint64(dataLen)}

	copy(ioc.frame[:], pack(&dcmd))

	return ioc
}

// passthruResponse converts the completion status the driver wrote back into the packed frame.
func passthruResponse(pkt []byte, sense []byte) (*scsi.Response, error) {
	frame := pkt[MFI_IOC_FRAME_OFFSET:]
	status := frame[MFI_FRAME_CMD_STATUS_OFFSET]

	switch status {
	case MFI_STAT_OK:
		return &scsi.Response{Status: frame[MFI_FRAME_SCSI_STATUS_OFFSET]}, nil
	case MFI_STAT_SCSI_DONE_WITH_ERROR:
		resp := &scsi.Response{Status: frame[MFI_FRAME_SCSI_STATUS_OFFSET]}
		if resp.Status == scsi.SAM_STAT_GOOD {
			resp.Status = scsi.SAM_STAT_CHECK_CONDITION
		}
		if scsi.ResponseCode(sense, len(sense)) != 0 {
			resp.Sense = sense
		}
		return resp, nil
	case MFI_STAT_DEVICE_NOT_FOUND:
		return nil, result.Newf(result.BadParameter, "megaraid", "device not found")
	}

	return nil, result.Newf(result.Failure, "megaraid", "MFI command status %#02x", status)
}

// parsePDList decodes the MR_DCMD_PD_GET_LIST response.
func parsePDList(b []byte, order binary.ByteOrder) ([]PDAddress, error) {
	if len(b) < MFI_PD_LIST_HEADER_LEN {
		return nil, fmt.Errorf("short PD list: %d bytes", len(b))
	}

	count := int(order.Uint32(b[4:]))
	if max := (len(b) - MFI_PD_LIST_HEADER_LEN) / MFI_PD_ADDRESS_LEN; count > max {
		count = max
	}

	devices := make([]PDAddress, count)
	if err := binary.Read(bytes.NewReader(b[MFI_PD_LIST_HEADER_LEN:]), order, &devices); err != nil {
		return nil, err
	}

	return devices, nil
}
