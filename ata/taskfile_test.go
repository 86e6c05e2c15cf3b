// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskFileRegisters(t *testing.T) {
	var tf TaskFile

	tf.Device = DEVICE_LBA
	tf.SetLBA28(0x0fedcba9)
	assert.Equal(t, uint8(0xa9), tf.LBALow)
	assert.Equal(t, uint8(0xcb), tf.LBAMid)
	assert.Equal(t, uint8(0xed), tf.LBAHigh)
	assert.Equal(t, uint8(0x4f), tf.Device)
	assert.False(t, tf.Requires48Bit())

	tf.SetCount16(0x0100)
	assert.True(t, tf.Requires48Bit())

	tf = TaskFile{Ext: true}
	assert.True(t, tf.Requires48Bit())
}

func TestProtocolIsDMA(t *testing.T) {
	assert.True(t, ProtocolDMA.IsDMA())
	assert.True(t, ProtocolUDMA.IsDMA())
	assert.True(t, ProtocolFPDMA.IsDMA())
	assert.False(t, ProtocolPIO.IsDMA())
	assert.False(t, ProtocolNoData.IsDMA())
	assert.Equal(t, "PIO", ProtocolPIO.String())
	assert.Equal(t, "in", DirIn.String())
}

func TestReturnTaskFileStatus(t *testing.T) {
	r := ReturnTaskFile{Status: StatusReady | StatusSeekComplete | StatusBit2}

	assert.True(t, r.Ready())
	assert.True(t, r.SeekComplete())
	assert.False(t, r.Busy())
	assert.False(t, r.HasError())
	assert.Equal(t, Bit2CorrectedData, r.Bit2(ContextRead))
	assert.Equal(t, Bit2AlignmentError, r.Bit2(ContextWrite))
	assert.Equal(t, Bit2Obsolete, r.Bit2(ContextOther))

	r.Status = StatusReady | StatusError
	r.Error = ErrorABRT
	assert.True(t, r.Aborted())
	assert.Equal(t, Bit2Obsolete, r.Bit2(ContextRead))
}

func TestSMARTThresholdExceeded(t *testing.T) {
	r := ReturnTaskFile{LBAMid: SMART_LBA_MID, LBAHigh: SMART_LBA_HIGH}
	exceeded, ok := r.SMARTThresholdExceeded()
	assert.True(t, ok)
	assert.False(t, exceeded)

	r = ReturnTaskFile{LBAMid: 0x12, LBAHigh: 0x34}
	_, ok = r.SMARTThresholdExceeded()
	assert.False(t, ok)
}

func TestReturnTaskFileLBA48(t *testing.T) {
	r := ReturnTaskFile{LBALow: 1, LBAMid: 2, LBAHigh: 3, LBALowExt: 4, LBAMidExt: 5, LBAHighExt: 6}
	assert.Equal(t, uint64(0x030201), r.LBA48())

	r.Extend = true
	assert.Equal(t, uint64(0x060504030201), r.LBA48())
}
