// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI generic IO functions.

package scsi

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/dswarbrick/passthru/ioctl"
	"github.com/dswarbrick/passthru/result"
)

const (
	SG_DXFER_NONE        = -1
	SG_DXFER_TO_DEV      = -2
	SG_DXFER_FROM_DEV    = -3
	SG_DXFER_TO_FROM_DEV = -4

	SG_INFO_OK_MASK = 0x1
	SG_INFO_OK      = 0x0

	SG_IO = 0x2285

	// Host and driver status values reporting a command timeout
	DID_TIME_OUT   = 0x03
	DRIVER_TIMEOUT = 0x06
)

// SCSI generic ioctl header, defined as sg_io_hdr_t in <scsi/sg.h>
type sgIoHdr struct {
	interface_id    int32   // 'S' for SCSI generic (required)
	dxfer_direction int32   // data transfer direction
	cmd_len         uint8   // SCSI command length (<= 16 bytes)
	mx_sb_len       uint8   // max length to write to sbp
	iovec_count     uint16  // 0 implies no scatter gather
	dxfer_len       uint32  // byte count of data transfer
	dxferp          uintptr // points to data transfer memory or scatter gather list
	cmdp            uintptr // points to command to perform
	sbp             uintptr // points to sense_buffer memory
	timeout         uint32  // MAX_UINT -> no timeout (unit: millisec)
	flags           uint32  // 0 -> default, see SG_FLAG...
	pack_id         int32   // unused internally (normally)
	usr_ptr         uintptr // unused internally
	status          uint8   // SCSI status
	masked_status   uint8   // shifted, masked scsi status
	msg_status      uint8   // messaging level data (optional)
	sb_len_wr       uint8   // byte count actually written to sbp
	host_status     uint16  // errors from host adapter
	driver_status   uint16  // errors from software driver
	resid           int32   // dxfer_len - actual_transferred
	duration        uint32  // time taken by cmd (unit: millisec)
	info            uint32  // auxiliary information
}

type sgioError struct {
	scsiStatus   uint8
	hostStatus   uint16
	driverStatus uint16
}

func (e sgioError) Error() string {
	return fmt.Sprintf("SCSI status: %#02x, host status: %#02x, driver status: %#02x",
		e.scsiStatus, e.hostStatus, e.driverStatus)
}

// SGIODevice is a Linux SCSI generic device (/dev/sdX, /dev/sgN).
type SGIODevice struct {
	Name string
	fd   int
}

// OpenSGIO opens the named device for SG_IO.
func OpenSGIO(name string) (*SGIODevice, error) {
	d := &SGIODevice{Name: name}

	fd, err := unix.Open(name, unix.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	d.fd = fd

	return d, nil
}

func (d *SGIODevice) Close() error {
	return unix.Close(d.fd)
}

func (d *SGIODevice) execGenericIO(hdr *sgIoHdr) error {
	if err := ioctl.Ioctl(uintptr(d.fd), SG_IO, uintptr(unsafe.Pointer(hdr))); err != nil {
		if errors.Is(err, unix.ETIMEDOUT) {
			return result.Wrap(result.Timeout, "sg_io", err)
		}
		return err
	}

	if hdr.host_status == DID_TIME_OUT || hdr.driver_status&0x0f == DRIVER_TIMEOUT {
		return result.Wrap(result.Timeout, "sg_io", sgioError{hdr.status, hdr.host_status, hdr.driver_status})
	}

	// See http://www.t10.org/lists/2status.htm for SCSI status codes. A SCSI status with sense
	// data is a device response, not a transport failure.
	if hdr.info&SG_INFO_OK_MASK != SG_INFO_OK && hdr.host_status != 0 {
		return sgioError{
			scsiStatus:   hdr.status,
			hostStatus:   hdr.host_status,
			driverStatus: hdr.driver_status,
		}
	}

	return nil
}

// SendCDB sends a SCSI Command Descriptor Block to the device. Sense data written by the kernel
// is returned in the Response.
func (d *SGIODevice) SendCDB(cmd *Command) (*Response, error) {
	if len(cmd.CDB) == 0 {
		return nil, result.New(result.BadParameter, "sg_io")
	}

	senseBuf := make([]byte, SENSE_BUF_LEN)

	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	// Populate required fields of "sg_io_hdr_t" struct
	hdr := sgIoHdr{
		interface_id: 'S',
		timeout:      uint32(timeout.Milliseconds()),
		cmd_len:      uint8(len(cmd.CDB)),
		mx_sb_len:    uint8(len(senseBuf)),
		cmdp:         uintptr(unsafe.Pointer(&cmd.CDB[0])),
		sbp:          uintptr(unsafe.Pointer(&senseBuf[0])),
	}

	switch cmd.Direction {
	case DataIn:
		hdr.dxfer_direction = SG_DXFER_FROM_DEV
	case DataOut:
		hdr.dxfer_direction = SG_DXFER_TO_DEV
	default:
		hdr.dxfer_direction = SG_DXFER_NONE
	}

	if cmd.Direction != DataNone && len(cmd.Data) > 0 {
		hdr.dxfer_len = uint32(len(cmd.Data))
		hdr.dxferp = uintptr(unsafe.Pointer(&cmd.Data[0]))
	}

	if err := d.execGenericIO(&hdr); err != nil {
		return nil, err
	}

	resp := &Response{
		Status: hdr.status,
		Resid:  int(hdr.resid),
	}

	if hdr.sb_len_wr > 0 {
		resp.Sense = senseBuf[:hdr.sb_len_wr]
	}

	return resp, nil
}
