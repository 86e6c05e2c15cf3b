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

func TestFamilyOpcodes(t *testing.T) {
	assert.Equal(t, uint8(ata.ATA_READ_LOG_DMA_EXT), FamilyLogRead.Opcode(true))
	assert.Equal(t, uint8(ata.ATA_READ_LOG_EXT), FamilyLogRead.Opcode(false))
	assert.Equal(t, uint8(ata.ATA_DOWNLOAD_MICROCODE_DMA), FamilyDownloadMicrocode.Opcode(true))
	assert.Equal(t, uint8(ata.ATA_WRITE_STREAM_EXT), FamilyStreamWrite.Opcode(false))
	assert.Equal(t, "trusted receive", FamilyTrustedReceive.String())
	assert.Equal(t, "family(42)", Family(42).String())

	for f := Family(0); f < numFamilies; f++ {
		assert.NotEqual(t, f.Opcode(true), f.Opcode(false), f.String())
	}
}

func TestVariant(t *testing.T) {
	tf := logTaskFile(0x04, 0, 1)

	dma := variant(FamilyLogRead, tf, true)
	assert.Equal(t, uint8(ata.ATA_READ_LOG_DMA_EXT), dma.Command)
	assert.Equal(t, ata.ProtocolDMA, dma.Protocol)
	assert.Equal(t, ata.DirIn, dma.Direction)
	assert.True(t, dma.Ext)

	pio := variant(FamilyLogRead, tf, false)
	assert.Equal(t, uint8(ata.ATA_READ_LOG_EXT), pio.Command)
	assert.Equal(t, ata.ProtocolPIO, pio.Protocol)

	// The template is not modified
	assert.Zero(t, tf.Command)
}

func TestDMARejected(t *testing.T) {
	check := func(key, asc, ascq uint8) bool {
		resp, _ := fixedSense(key, asc, ascq)
		return dmaRejected(result.Wrap(result.NotSupported, "ata", &scsi.StatusError{Status: resp.Status, Sense: resp.Sense}))
	}

	assert.True(t, check(scsi.SENSE_ILLEGAL_REQUEST, 0x24, 0x00))
	assert.False(t, check(scsi.SENSE_ILLEGAL_REQUEST, 0x24, 0x01))
	assert.False(t, check(scsi.SENSE_ILLEGAL_REQUEST, 0x20, 0x00))
	assert.False(t, check(scsi.SENSE_ABORTED_COMMAND, 0x24, 0x00))
	assert.False(t, dmaRejected(result.New(result.Timeout, "sgio")))
	assert.False(t, dmaRejected(nil))
}

// TestDMAFallback fails READ LOG DMA EXT with INVALID FIELD IN CDB; the PIO variant succeeds and
// the next read goes straight to PIO.
func TestDMAFallback(t *testing.T) {
	m := &mockTransport{handler: func(cmd *scsi.Command) (*scsi.Response, error) {
		if cmd.CDB[14] == ata.ATA_READ_LOG_DMA_EXT {
			return fixedSense(scsi.SENSE_ILLEGAL_REQUEST, 0x24, 0x00)
		}
		cmd.Data[0] = 0xa5
		return good()
	}}
	d := identified(t, m, dmaDisk(), BridgeOptions{})

	buf, err := d.ReadLog(0x04, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xa5), buf[0])
	assert.Equal(t, []uint8{ata.ATA_READ_LOG_DMA_EXT, ata.ATA_READ_LOG_EXT}, m.opcodes())

	hacks := d.Hacks()
	assert.Equal(t, Stable, hacks.State(FamilyLogRead))
	assert.False(t, hacks.DMA(FamilyLogRead))

	m.sent = nil
	_, err = d.ReadLog(0x04, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint8{ata.ATA_READ_LOG_EXT}, m.opcodes())

	// Other families keep their own state
	assert.Equal(t, AttemptPreferred, hacksOf(d).State(FamilyBufferRead))
	assert.True(t, hacksOf(d).DMA(FamilyBufferRead))

	// Identifying again does not re-arm the family
	_, err = d.IdentifyDevice()
	require.NoError(t, err)
	assert.False(t, hacksOf(d).DMA(FamilyLogRead))
}

func TestDMAFallbackRestore(t *testing.T) {
	m := &mockTransport{handler: func(cmd *scsi.Command) (*scsi.Response, error) {
		if cmd.CDB[14] == ata.ATA_READ_BUFFER_DMA {
			return fixedSense(scsi.SENSE_ILLEGAL_REQUEST, 0x24, 0x00)
		}
		return fixedSense(scsi.SENSE_MEDIUM_ERROR, 0x11, 0x00)
	}}
	d := identified(t, m, dmaDisk(), BridgeOptions{})

	err := d.ReadBuffer(make([]byte, ata.SectorSize))
	assert.True(t, result.Is(err, result.Failure))
	assert.Equal(t, []uint8{ata.ATA_READ_BUFFER_DMA, ata.ATA_READ_BUFFER}, m.opcodes())

	hacks := d.Hacks()
	assert.Equal(t, AttemptPreferred, hacks.State(FamilyBufferRead))
	assert.True(t, hacks.DMA(FamilyBufferRead))
}

func TestDMAOtherFailure(t *testing.T) {
	m := &mockTransport{handler: func(cmd *scsi.Command) (*scsi.Response, error) {
		return fixedSense(scsi.SENSE_MEDIUM_ERROR, 0x11, 0x00)
	}}
	d := identified(t, m, dmaDisk(), BridgeOptions{})

	err := d.WriteBuffer(make([]byte, ata.SectorSize))
	assert.True(t, result.Is(err, result.Failure))
	assert.Equal(t, []uint8{ata.ATA_WRITE_BUFFER_DMA}, m.opcodes())
	assert.True(t, hacksOf(d).DMA(FamilyBufferWrite))
}

func TestDMATimeout(t *testing.T) {
	m := &mockTransport{handler: func(cmd *scsi.Command) (*scsi.Response, error) {
		return nil, result.New(result.Timeout, "sgio")
	}}
	d := identified(t, m, dmaDisk(), BridgeOptions{})

	_, err := d.ReadLog(0x04, 0, 1)
	assert.True(t, result.Is(err, result.Timeout))
	assert.Len(t, m.sent, 1)
	assert.Equal(t, AttemptPreferred, hacksOf(d).State(FamilyLogRead))
}

func TestNoDMAMode(t *testing.T) {
	id, err := ata.ParseIdentify(dmaDisk())
	require.NoError(t, err)

	// Log DMA advertised, but no DMA transfer mode at all
	id[49] = 0x0200
	id[53] = 0

	m := &mockTransport{handler: func(cmd *scsi.Command) (*scsi.Response, error) { return good() }}
	d := identified(t, m, id.Bytes(), BridgeOptions{})

	_, err = d.ReadLog(0x04, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint8{ata.ATA_READ_LOG_EXT}, m.opcodes())
}

// hacksOf returns an addressable snapshot of d.Hacks() so pointer-receiver accessors can be called.
func hacksOf(d *Device) *HackProfile {
	h := d.Hacks()
	return &h
}
