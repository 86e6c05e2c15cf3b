// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package scsi

import (
	"testing"

	"github.com/dswarbrick/passthru/ata"
	"github.com/dswarbrick/passthru/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJMicronIdentify(t *testing.T) {
	cdb, err := JMicron(identifyTaskFile(), 0, true)
	require.NoError(t, err)

	want := []byte{0xdf, 0x10, 0x00, 0x02, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0xa0, 0xec, 0x06, 0x7b}
	assert.Equal(t, want, cdb)

	cdb, err = JMicron(identifyTaskFile(), 1, false)
	require.NoError(t, err)
	assert.Len(t, cdb, 12)
	assert.Equal(t, uint8(0xb0), cdb[10])
	assert.Equal(t, []byte{0x06, 0x7b}, cdb[12:14], "signature is present in the backing array")
}

func TestJMicronDirection(t *testing.T) {
	tf := &ata.TaskFile{Command: ata.ATA_CHECK_POWER_MODE, Direction: ata.DirNoData, Protocol: ata.ProtocolNoData}
	cdb, err := JMicron(tf, 0, false)
	require.NoError(t, err)
	assert.Equal(t, uint8(JMICRON_DIR_NONE), cdb[1])

	tf.Direction = ata.DirOut
	cdb, err = JMicron(tf, 0, false)
	require.NoError(t, err)
	assert.Equal(t, uint8(JMICRON_DIR_OUT), cdb[1])

	tf.Direction = ata.Direction(7)
	_, err = JMicron(tf, 0, false)
	assert.True(t, result.Is(err, result.BadParameter))
}

func TestJMicronErrors(t *testing.T) {
	tf := identifyTaskFile()
	tf.TransferLen = 0x10001
	_, err := JMicron(tf, 0, true)
	assert.True(t, result.Is(err, result.BadParameter))

	tf = identifyTaskFile()
	tf.Ext = true
	_, err = JMicron(tf, 0, true)
	assert.True(t, result.Is(err, result.NotAvailable))

	tf = identifyTaskFile()
	tf.LBALowExt = 1
	_, err = JMicron(tf, 0, true)
	assert.True(t, result.Is(err, result.NotAvailable))

	_, err = JMicron(identifyTaskFile(), 2, true)
	assert.True(t, result.Is(err, result.BadParameter))

	_, err = JMicron(nil, 0, true)
	assert.True(t, result.Is(err, result.BadParameter))
}

func TestJMicronReadRegister(t *testing.T) {
	cdb := JMicronReadRegister(JMICRON_REG_PORTS, 1, true)
	want := []byte{0xdf, 0x10, 0x00, 0x00, 0x01, 0x00, 0x72, 0x0f, 0x00, 0x00, 0x00, 0xfd, 0x06, 0x7b}
	assert.Equal(t, want, cdb)

	assert.Len(t, JMicronReadRegister(JMICRON_REG_PORT0_RESULT, 16, false), 12)
}

func TestJMicronConnectedPort(t *testing.T) {
	port, err := JMicronConnectedPort(0x44)
	require.NoError(t, err)
	assert.Equal(t, 0, port)

	port, err = JMicronConnectedPort(0x40)
	require.NoError(t, err)
	assert.Equal(t, 1, port)

	_, err = JMicronConnectedPort(0x00)
	assert.Error(t, err)

	assert.Equal(t, uint16(0x8000), JMicronResultRegister(0))
	assert.Equal(t, uint16(0x9000), JMicronResultRegister(1))
}

func TestJMicronReturnTaskFile(t *testing.T) {
	regs := []byte{0x01, 0, 0, 0, 0x4f, 0, 0x02, 0, 0, 0xa0, 0xc2, 0, 0, 0x04, 0x51, 0}

	rtf, err := JMicronReturnTaskFile(regs)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), rtf.Count)
	assert.Equal(t, uint8(0x4f), rtf.LBAMid)
	assert.Equal(t, uint8(0x02), rtf.LBALow)
	assert.Equal(t, uint8(0xa0), rtf.Device)
	assert.Equal(t, uint8(0xc2), rtf.LBAHigh)
	assert.True(t, rtf.Aborted())

	_, err = JMicronReturnTaskFile(regs[:8])
	assert.True(t, result.Is(err, result.BadParameter))
}

func TestJMicronSMARTStatus(t *testing.T) {
	for _, b := range []byte{0x01, 0xc2} {
		rtf, err := JMicronSMARTStatus(b)
		require.NoError(t, err)
		exceeded, ok := rtf.SMARTThresholdExceeded()
		assert.True(t, ok)
		assert.False(t, exceeded)
	}

	for _, b := range []byte{0x00, 0x2c} {
		rtf, err := JMicronSMARTStatus(b)
		require.NoError(t, err)
		exceeded, ok := rtf.SMARTThresholdExceeded()
		assert.True(t, ok)
		assert.True(t, exceeded)
	}

	_, err := JMicronSMARTStatus(0x55)
	assert.True(t, result.Is(err, result.NotAvailable))

	tf := JMicronSMARTStatusTaskFile()
	cdb, err := JMicron(tf, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xdf, 0x10, 0x00, 0x00, 0x01, 0xda, 0x00, 0x00, 0x4f, 0xc2, 0xa0, 0xb0}, cdb)
}
