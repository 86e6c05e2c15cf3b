// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Transport abstraction for issuing CDBs.

package scsi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dswarbrick/passthru/utils"
)

// DefaultTimeout is used for commands that do not specify one.
const DefaultTimeout = DEFAULT_TIMEOUT * time.Millisecond

// DataDirection is the direction of a command's data phase.
type DataDirection int

const (
	DataNone DataDirection = iota
	DataIn
	DataOut
)

func (d DataDirection) String() string {
	switch d {
	case DataNone:
		return "none"
	case DataIn:
		return "in"
	case DataOut:
		return "out"
	}

	return fmt.Sprintf("direction(%d)", int(d))
}

// Command is a CDB together with its data buffer. Data is read into for DataIn and written from
// for DataOut.
type Command struct {
	CDB       []byte
	Direction DataDirection
	Data      []byte
	Timeout   time.Duration
}

// Response is the outcome of a command that reached the device.
type Response struct {
	// Status is the SCSI status byte
	Status uint8
	// Sense holds the sense data returned with CHECK CONDITION, if any
	Sense []byte
	// Resid is the number of requested data bytes not transferred
	Resid int
}

// CheckCondition reports whether the command completed with CHECK CONDITION.
func (r *Response) CheckCondition() bool {
	return r.Status == SAM_STAT_CHECK_CONDITION
}

// Transport delivers CDBs to a device. A transport error means the command did not complete;
// device-reported failures are returned in the Response. A command that times out returns an
// error carrying result.Timeout.
type Transport interface {
	SendCDB(cmd *Command) (*Response, error)
	Close() error
}

// StatusError is returned when a command completes with a status other than GOOD.
type StatusError struct {
	Status uint8
	Sense  []byte
}

func (e *StatusError) Error() string {
	if len(e.Sense) > 0 {
		f := ParseSense(e.Sense, len(e.Sense))
		return fmt.Sprintf("SCSI status %#02x: %s", e.Status, f)
	}

	return fmt.Sprintf("SCSI status %#02x", e.Status)
}

// exec sends a data-in command and fails unless it completes with GOOD status.
func exec(t Transport, cdb []byte, buf []byte) error {
	resp, err := t.SendCDB(&Command{CDB: cdb, Direction: DataIn, Data: buf, Timeout: DefaultTimeout})
	if err != nil {
		return err
	}

	if resp.Status != SAM_STAT_GOOD {
		return &StatusError{Status: resp.Status, Sense: resp.Sense}
	}

	return nil
}

// Inquiry sends a SCSI INQUIRY command to a device and returns an InquiryResponse struct.
func Inquiry(t Transport) (InquiryResponse, error) {
	var resp InquiryResponse

	respBuf := make([]byte, INQ_REPLY_LEN)

	cdb := CDB6{SCSI_INQUIRY}
	binary.BigEndian.PutUint16(cdb[3:], uint16(len(respBuf)))

	if err := exec(t, cdb[:], respBuf); err != nil {
		return resp, err
	}

	binary.Read(bytes.NewBuffer(respBuf), utils.NativeEndian, &resp)

	return resp, nil
}

// ReadCapacity sends a SCSI READ CAPACITY(10) command to a device and returns the capacity in
// bytes.
func ReadCapacity(t Transport) (uint64, error) {
	respBuf := make([]byte, 8)
	cdb := CDB10{SCSI_READ_CAPACITY_10}

	if err := exec(t, cdb[:], respBuf); err != nil {
		return 0, err
	}

	lastLBA := binary.BigEndian.Uint32(respBuf[0:]) // max. addressable LBA
	LBsize := binary.BigEndian.Uint32(respBuf[4:])  // logical block (i.e., sector) size
	capacity := (uint64(lastLBA) + 1) * uint64(LBsize)

	return capacity, nil
}

// ModeSense sends a SCSI MODE SENSE(6) command to a device.
func ModeSense(t Transport, pageNum, subPageNum, pageControl uint8) ([]byte, error) {
	respBuf := make([]byte, 64)

	cdb := CDB6{SCSI_MODE_SENSE_6}
	cdb[2] = (pageControl << 6) | (pageNum & 0x3f)
	cdb[3] = subPageNum
	cdb[4] = uint8(len(respBuf))

	if err := exec(t, cdb[:], respBuf); err != nil {
		return respBuf, err
	}

	return respBuf, nil
}

// RotationRate reads the rigid disk drive geometry mode page and returns the medium rotation
// rate in RPM.
func RotationRate(t Transport) (uint16, error) {
	resp, err := ModeSense(t, RIGID_DISK_DRIVE_GEOMETRY_PAGE, 0, MPAGE_CONTROL_DEFAULT)
	if err != nil {
		return 0, err
	}

	// Skip the mode parameter header and any block descriptors
	offset := int(resp[3]) + 4
	if offset+22 > len(resp) {
		return 0, fmt.Errorf("short MODE SENSE response: block descriptor length %d", resp[3])
	}

	return binary.BigEndian.Uint16(resp[offset+20:]), nil
}

// RequestSense sends a SCSI REQUEST SENSE command, for transports that do not return sense data
// automatically.
func RequestSense(t Transport) ([]byte, error) {
	respBuf := make([]byte, SENSE_BUF_LEN)
	cdb := CDB6{SCSI_REQUEST_SENSE}
	cdb[4] = uint8(len(respBuf))

	resp, err := t.SendCDB(&Command{CDB: cdb[:], Direction: DataIn, Data: respBuf, Timeout: DefaultTimeout})
	if err != nil {
		return nil, err
	}

	if resp.Status != SAM_STAT_GOOD {
		return nil, &StatusError{Status: resp.Status}
	}

	n := len(respBuf) - resp.Resid
	if n < 0 {
		n = 0
	}

	return respBuf[:n], nil
}
