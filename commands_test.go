// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package passthru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/passthru/ata"
	"github.com/dswarbrick/passthru/result"
	"github.com/dswarbrick/passthru/scsi"
)

func goodTransport() *mockTransport {
	return &mockTransport{handler: func(cmd *scsi.Command) (*scsi.Response, error) { return good() }}
}

func TestReadLogSMART(t *testing.T) {
	// No GPL support
	var id ata.IdentifyData
	id[49] = 0x0200

	m := goodTransport()
	d := identified(t, m, id.Bytes(), BridgeOptions{})
	assert.False(t, d.GPL())

	buf, err := d.ReadLog(0x01, 0, 1)
	require.NoError(t, err)
	assert.Len(t, buf, ata.SectorSize)

	require.Len(t, m.sent, 1)
	cdb := m.sent[0]
	assert.Equal(t, uint8(ata.ATA_SMART), cdb[14])
	assert.Equal(t, uint8(ata.SMART_READ_LOG), cdb[4])
	assert.Equal(t, uint8(1), cdb[6])
	assert.Equal(t, uint8(0x01), cdb[8])
	assert.Equal(t, uint8(ata.SMART_LBA_MID), cdb[10])
	assert.Equal(t, uint8(ata.SMART_LBA_HIGH), cdb[12])

	_, err = d.ReadLog(0x01, 2, 1)
	assert.True(t, result.Is(err, result.NotSupported))

	_, err = d.ReadLog(0x01, 0, 0x100)
	assert.True(t, result.Is(err, result.BadParameter))

	_, err = d.ReadLog(0x01, 0, 0)
	assert.True(t, result.Is(err, result.BadParameter))
}

func TestReadLogNoGPL(t *testing.T) {
	m := goodTransport()
	d := identified(t, m, dmaDisk(), BridgeOptions{NoGPL: true})
	assert.False(t, d.GPL())

	_, err := d.ReadLog(0x04, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint8{ata.ATA_SMART}, m.opcodes())
}

func TestReadLogGPL(t *testing.T) {
	m := goodTransport()
	d := identified(t, m, dmaDisk(), BridgeOptions{})

	_, err := d.ReadLog(0x04, 0x0102, 2)
	require.NoError(t, err)

	require.Len(t, m.sent, 1)
	cdb := m.sent[0]
	assert.Equal(t, uint8(ata.ATA_READ_LOG_DMA_EXT), cdb[14])
	assert.Equal(t, uint8(0x01), cdb[1]&0x01, "EXTEND")
	assert.Equal(t, uint8(2), cdb[6])
	assert.Equal(t, uint8(0x04), cdb[8])
	assert.Equal(t, uint8(0x01), cdb[9])
	assert.Equal(t, uint8(0x02), cdb[10])
}

func TestWriteLog(t *testing.T) {
	m := goodTransport()
	d := identified(t, m, dmaDisk(), BridgeOptions{})

	require.NoError(t, d.WriteLog(0x80, 0, make([]byte, ata.SectorSize)))
	assert.Equal(t, []uint8{ata.ATA_WRITE_LOG_DMA_EXT}, m.opcodes())

	err := d.WriteLog(0x80, 0, make([]byte, 100))
	assert.True(t, result.Is(err, result.BadParameter))

	d = identified(t, m, dmaDisk(), BridgeOptions{NoGPL: true})
	require.NoError(t, d.WriteLog(0x80, 0, make([]byte, ata.SectorSize)))
	assert.Equal(t, uint8(ata.SMART_WRITE_LOG), m.sent[0][4])
}

func TestDownloadMicrocode(t *testing.T) {
	m := goodTransport()
	d := identified(t, m, dmaDisk(), BridgeOptions{})

	require.NoError(t, d.DownloadMicrocode(MicrocodeOffsetsActivate, 0x0203, make([]byte, 3*ata.SectorSize)))

	require.Len(t, m.sent, 1)
	cdb := m.sent[0]
	assert.Equal(t, uint8(ata.ATA_DOWNLOAD_MICROCODE_DMA), cdb[14])
	assert.Equal(t, uint8(MicrocodeOffsetsActivate), cdb[4])
	assert.Equal(t, uint8(3), cdb[6])
	assert.Equal(t, uint8(0x00), cdb[8])
	assert.Equal(t, uint8(0x03), cdb[10])
	assert.Equal(t, uint8(0x02), cdb[12])

	m.sent = nil
	require.NoError(t, d.DownloadMicrocode(MicrocodeActivateDeferred, 0, nil))
	assert.Equal(t, []uint8{ata.ATA_DOWNLOAD_MICROCODE}, m.opcodes())

	err := d.DownloadMicrocode(MicrocodeTemporary, 0, nil)
	assert.True(t, result.Is(err, result.BadParameter))
}

func TestTrusted(t *testing.T) {
	var id ata.IdentifyData
	id[48] = 0x4001 // trusted computing
	id[49] = 0x0300

	m := goodTransport()
	d := identified(t, m, id.Bytes(), BridgeOptions{})

	require.NoError(t, d.TrustedReceive(0x01, 0x0005, make([]byte, ata.SectorSize)))
	require.NoError(t, d.TrustedSend(0x01, 0x0005, make([]byte, ata.SectorSize)))
	assert.Equal(t, []uint8{ata.ATA_TRUSTED_RECEIVE_DMA, ata.ATA_TRUSTED_SEND_DMA}, m.opcodes())

	cdb := m.sent[0]
	assert.Equal(t, uint8(0x01), cdb[4])
	assert.Equal(t, uint8(1), cdb[6])
	assert.Equal(t, uint8(0x05), cdb[10])

	err := d.TrustedReceive(0x01, 0, nil)
	assert.True(t, result.Is(err, result.BadParameter))
}

func TestStreams(t *testing.T) {
	m := goodTransport()
	d := identified(t, m, dmaDisk(), BridgeOptions{})

	// Streaming not advertised: PIO only
	require.NoError(t, d.ReadStream(0x0a, 0x123456789a, make([]byte, 2*ata.SectorSize)))
	require.NoError(t, d.WriteStream(1, 0, make([]byte, ata.SectorSize)))
	assert.Equal(t, []uint8{ata.ATA_READ_STREAM_EXT, ata.ATA_WRITE_STREAM_EXT}, m.opcodes())

	cdb := m.sent[0]
	assert.Equal(t, uint8(0x02), cdb[4], "stream ID masked to 3 bits")
	assert.Equal(t, uint8(2), cdb[6])
	assert.Equal(t, uint8(0x34), cdb[7])
	assert.Equal(t, uint8(0x9a), cdb[8])

	// Stream commands are 48-bit only
	d = identified(t, m, dmaDisk(), BridgeOptions{PassThrough: scsi.PassThroughSAT12})
	err := d.ReadStream(0, 0, make([]byte, ata.SectorSize))
	assert.True(t, result.Is(err, result.NotAvailable))
}

func TestBufferLength(t *testing.T) {
	d := Open(goodTransport(), Options{Log: testLogger()})

	assert.True(t, result.Is(d.ReadBuffer(make([]byte, 100)), result.BadParameter))
	assert.True(t, result.Is(d.WriteBuffer(nil), result.BadParameter))
}

func TestSMARTReturnStatus(t *testing.T) {
	m := &mockTransport{handler: func(cmd *scsi.Command) (*scsi.Response, error) {
		assert.Equal(t, uint8(0x20), cmd.CDB[2]&0x20, "CK_COND")
		return ataReturn(ata.SMART_THRESHOLD_EXCEEDED_LBA_MID, ata.SMART_THRESHOLD_EXCEEDED_LBA_HIGH)
	}}
	d := Open(m, Options{Log: testLogger()})

	exceeded, err := d.SMARTReturnStatus()
	require.NoError(t, err)
	assert.True(t, exceeded)

	m.handler = func(cmd *scsi.Command) (*scsi.Response, error) {
		return ataReturn(ata.SMART_LBA_MID, ata.SMART_LBA_HIGH)
	}
	exceeded, err = d.SMARTReturnStatus()
	require.NoError(t, err)
	assert.False(t, exceeded)

	// Registers not returned
	m.handler = func(cmd *scsi.Command) (*scsi.Response, error) { return good() }
	_, err = d.SMARTReturnStatus()
	assert.True(t, result.Is(err, result.NotAvailable))
}

func TestSMARTReturnStatusJMicron(t *testing.T) {
	m := &mockTransport{handler: func(cmd *scsi.Command) (*scsi.Response, error) {
		assert.Equal(t, uint8(scsi.JMICRON_PASSTHRU), cmd.CDB[0])
		assert.Equal(t, uint8(ata.SMART_RETURN_STATUS), cmd.CDB[5])
		require.Len(t, cmd.Data, 1)
		cmd.Data[0] = 0x2c
		return good()
	}}
	d := Open(m, Options{Bridge: BridgeOptions{PassThrough: scsi.PassThroughJMicronExt}, Log: testLogger()})

	exceeded, err := d.SMARTReturnStatus()
	require.NoError(t, err)
	assert.True(t, exceeded)
	assert.Len(t, m.sent[0], scsi.JMICRON_CDB_LEN_EXT)
}

func TestJMicronRegisters(t *testing.T) {
	m := &mockTransport{handler: func(cmd *scsi.Command) (*scsi.Response, error) {
		if cmd.CDB[11] == scsi.JMICRON_READ_REGISTER {
			regs := make([]byte, scsi.JMICRON_RESULT_LEN)
			regs[4] = 0x4f
			regs[10] = 0xc2
			regs[14] = ata.StatusReady
			copy(cmd.Data, regs)
		}
		return good()
	}}
	d := Open(m, Options{Bridge: BridgeOptions{PassThrough: scsi.PassThroughJMicron}, Log: testLogger()})

	tf := &ata.TaskFile{Command: ata.ATA_CHECK_POWER_MODE, Protocol: ata.ProtocolNoData}
	rtf, err := d.execute(tf, nil, true)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x4f), rtf.LBAMid)
	assert.Equal(t, uint8(0xc2), rtf.LBAHigh)
	assert.True(t, rtf.Ready())
	assert.Len(t, m.sent, 2)
}
