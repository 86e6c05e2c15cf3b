// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SATA Frame Information Structures (SATA 3.2, section 10.5).

package ata

import (
	"encoding/binary"

	"github.com/dswarbrick/passthru/result"
)

// FISType is the first byte of every FIS.
type FISType uint8

const (
	FISTypeRegH2D        FISType = 0x27
	FISTypeRegD2H        FISType = 0x34
	FISTypeDMASetup      FISType = 0x41
	FISTypeData          FISType = 0x46
	FISTypePIOSetup      FISType = 0x5f
	FISTypeSetDeviceBits FISType = 0xa1
)

const (
	h2dFISLen      = 20
	d2hFISLen      = 20
	pioSetupFISLen = 20
	dmaSetupFISLen = 28
	sdbFISLen      = 8
	dataFISHdrLen  = 4
)

// FIS is one of the frame variants below. Each variant keeps the frame in wire order and decodes
// its fields with explicit accessors.
type FIS interface {
	Type() FISType
	Bytes() []byte
}

// H2DFIS is a Register Host to Device FIS.
type H2DFIS [h2dFISLen]byte

// BuildH2DFIS maps a task file onto a Register Host to Device FIS with the C bit set, addressed
// to port multiplier port pmPort.
func BuildH2DFIS(tf *TaskFile, pmPort uint8) (*H2DFIS, error) {
	if tf == nil {
		return nil, result.New(result.BadParameter, "build h2d fis")
	}

	var f H2DFIS

	f[0] = byte(FISTypeRegH2D)
	f[1] = 0x80 | pmPort&0x0f
	f[2] = tf.Command
	f[3] = tf.Feature
	f[4] = tf.LBALow
	f[5] = tf.LBAMid
	f[6] = tf.LBAHigh
	f[7] = tf.Device
	f[8] = tf.LBALowExt
	f[9] = tf.LBAMidExt
	f[10] = tf.LBAHighExt
	f[11] = tf.FeatureExt
	f[12] = tf.Count
	f[13] = tf.CountExt
	f[14] = tf.ICC
	f[15] = tf.Control
	binary.LittleEndian.PutUint32(f[16:], tf.Aux)

	return &f, nil
}

func (f *H2DFIS) Type() FISType   { return FISTypeRegH2D }
func (f *H2DFIS) Bytes() []byte   { return f[:] }
func (f *H2DFIS) PMPort() uint8   { return f[1] & 0x0f }
func (f *H2DFIS) IsCommand() bool { return f[1]&0x80 != 0 }
func (f *H2DFIS) Command() uint8  { return f[2] }
func (f *H2DFIS) Device() uint8   { return f[7] }
func (f *H2DFIS) Control() uint8  { return f[15] }
func (f *H2DFIS) Aux() uint32     { return binary.LittleEndian.Uint32(f[16:]) }

// TaskFile recovers the register values carried by the FIS.
func (f *H2DFIS) TaskFile() TaskFile {
	return TaskFile{
		Command:    f[2],
		Feature:    f[3],
		LBALow:     f[4],
		LBAMid:     f[5],
		LBAHigh:    f[6],
		Device:     f[7],
		LBALowExt:  f[8],
		LBAMidExt:  f[9],
		LBAHighExt: f[10],
		FeatureExt: f[11],
		Count:      f[12],
		CountExt:   f[13],
		ICC:        f[14],
		Control:    f[15],
		Aux:        binary.LittleEndian.Uint32(f[16:]),
	}
}

// D2HFIS is a Register Device to Host FIS.
type D2HFIS [d2hFISLen]byte

func (f *D2HFIS) Type() FISType   { return FISTypeRegD2H }
func (f *D2HFIS) Bytes() []byte   { return f[:] }
func (f *D2HFIS) PMPort() uint8   { return f[1] & 0x0f }
func (f *D2HFIS) Interrupt() bool { return f[1]&0x40 != 0 }
func (f *D2HFIS) Status() uint8   { return f[2] }
func (f *D2HFIS) Error() uint8    { return f[3] }

// ReturnTaskFile returns the registers carried by the FIS.
func (f *D2HFIS) ReturnTaskFile() ReturnTaskFile {
	return ReturnTaskFile{
		Status:     f[2],
		Error:      f[3],
		LBALow:     f[4],
		LBAMid:     f[5],
		LBAHigh:    f[6],
		Device:     f[7],
		LBALowExt:  f[8],
		LBAMidExt:  f[9],
		LBAHighExt: f[10],
		Count:      f[12],
		CountExt:   f[13],
		Extend:     true,
	}
}

// PIOSetupFIS precedes each PIO data phase.
type PIOSetupFIS [pioSetupFISLen]byte

func (f *PIOSetupFIS) Type() FISType   { return FISTypePIOSetup }
func (f *PIOSetupFIS) Bytes() []byte   { return f[:] }
func (f *PIOSetupFIS) PMPort() uint8   { return f[1] & 0x0f }
func (f *PIOSetupFIS) Interrupt() bool { return f[1]&0x40 != 0 }
func (f *PIOSetupFIS) Status() uint8   { return f[2] }
func (f *PIOSetupFIS) Error() uint8    { return f[3] }
func (f *PIOSetupFIS) EStatus() uint8  { return f[15] }

// DeviceToHost reports the D bit: the data phase moves data from device to host.
func (f *PIOSetupFIS) DeviceToHost() bool {
	return f[1]&0x20 != 0
}

// TransferCount is the number of bytes in the following Data FIS.
func (f *PIOSetupFIS) TransferCount() uint16 {
	return binary.LittleEndian.Uint16(f[16:])
}

// DMASetupFIS selects the host buffer for a first-party DMA transfer.
type DMASetupFIS [dmaSetupFISLen]byte

func (f *DMASetupFIS) Type() FISType      { return FISTypeDMASetup }
func (f *DMASetupFIS) Bytes() []byte      { return f[:] }
func (f *DMASetupFIS) PMPort() uint8      { return f[1] & 0x0f }
func (f *DMASetupFIS) DeviceToHost() bool { return f[1]&0x20 != 0 }
func (f *DMASetupFIS) Interrupt() bool    { return f[1]&0x40 != 0 }
func (f *DMASetupFIS) AutoActivate() bool { return f[1]&0x80 != 0 }

func (f *DMASetupFIS) BufferID() uint64 {
	return binary.LittleEndian.Uint64(f[4:])
}

func (f *DMASetupFIS) BufferOffset() uint32 {
	return binary.LittleEndian.Uint32(f[16:])
}

func (f *DMASetupFIS) TransferCount() uint32 {
	return binary.LittleEndian.Uint32(f[20:])
}

// SetDeviceBitsFIS updates status and error and completes NCQ commands.
type SetDeviceBitsFIS [sdbFISLen]byte

func (f *SetDeviceBitsFIS) Type() FISType   { return FISTypeSetDeviceBits }
func (f *SetDeviceBitsFIS) Bytes() []byte   { return f[:] }
func (f *SetDeviceBitsFIS) PMPort() uint8   { return f[1] & 0x0f }
func (f *SetDeviceBitsFIS) Interrupt() bool { return f[1]&0x40 != 0 }
func (f *SetDeviceBitsFIS) Notify() bool    { return f[1]&0x80 != 0 }
func (f *SetDeviceBitsFIS) Error() uint8    { return f[3] }

// Status merges the two status nibbles carried in byte 2 (bits 6:4 and 2:0).
func (f *SetDeviceBitsFIS) Status() uint8 {
	return f[2] & 0x77
}

// SActive is the bitmap of NCQ tags completed by this FIS.
func (f *SetDeviceBitsFIS) SActive() uint32 {
	return binary.LittleEndian.Uint32(f[4:])
}

// DataFIS carries a data payload after its 4-byte header.
type DataFIS []byte

func (f DataFIS) Type() FISType   { return FISTypeData }
func (f DataFIS) Bytes() []byte   { return f }
func (f DataFIS) PMPort() uint8   { return f[1] & 0x0f }
func (f DataFIS) Payload() []byte { return f[dataFISHdrLen:] }

// ParseFIS decodes a received frame into its variant.
func ParseFIS(b []byte) (FIS, error) {
	if len(b) == 0 {
		return nil, result.New(result.BadParameter, "parse fis")
	}

	short := func(n int) error {
		return result.Newf(result.BadParameter, "parse fis", "type %#02x needs %d bytes, have %d", b[0], n, len(b))
	}

	switch FISType(b[0]) {
	case FISTypeRegH2D:
		var f H2DFIS
		if len(b) < len(f) {
			return nil, short(len(f))
		}
		copy(f[:], b)
		return &f, nil
	case FISTypeRegD2H:
		var f D2HFIS
		if len(b) < len(f) {
			return nil, short(len(f))
		}
		copy(f[:], b)
		return &f, nil
	case FISTypePIOSetup:
		var f PIOSetupFIS
		if len(b) < len(f) {
			return nil, short(len(f))
		}
		copy(f[:], b)
		return &f, nil
	case FISTypeDMASetup:
		var f DMASetupFIS
		if len(b) < len(f) {
			return nil, short(len(f))
		}
		copy(f[:], b)
		return &f, nil
	case FISTypeSetDeviceBits:
		var f SetDeviceBitsFIS
		if len(b) < len(f) {
			return nil, short(len(f))
		}
		copy(f[:], b)
		return &f, nil
	case FISTypeData:
		if len(b) < dataFISHdrLen {
			return nil, short(dataFISHdrLen)
		}
		return DataFIS(append([]byte(nil), b...)), nil
	}

	return nil, result.Newf(result.BadParameter, "parse fis", "unknown fis type %#02x", b[0])
}
