// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ata

import (
	"testing"

	"github.com/dswarbrick/passthru/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildH2DFIS(t *testing.T) {
	tf := &TaskFile{
		Command: ATA_READ_LOG_DMA_EXT,
		Device:  DEVICE_LBA,
		ICC:     0x11,
		Control: 0x08,
		Aux:     0xaabbccdd,
	}
	tf.SetFeature16(0x0201)
	tf.SetCount16(0x0403)
	tf.SetLBA48(0x0a0908070605)

	f, err := BuildH2DFIS(tf, 0x13)
	require.NoError(t, err)

	want := []byte{
		0x27, 0x83, 0x47, 0x01,
		0x05, 0x06, 0x07, 0x40,
		0x08, 0x09, 0x0a, 0x02,
		0x03, 0x04, 0x11, 0x08,
		0xdd, 0xcc, 0xbb, 0xaa,
	}
	assert.Equal(t, want, f.Bytes())
	assert.True(t, f.IsCommand())
	assert.Equal(t, uint8(3), f.PMPort())
	assert.Equal(t, uint32(0xaabbccdd), f.Aux())

	back := f.TaskFile()
	assert.Equal(t, uint64(0x0a0908070605), back.LBA48())
	assert.Equal(t, uint16(0x0403), back.Count16())
	assert.Equal(t, tf.Command, back.Command)

	_, err = BuildH2DFIS(nil, 0)
	assert.True(t, result.Is(err, result.BadParameter))
}

func TestParseFIS(t *testing.T) {
	d2h := make([]byte, 20)
	d2h[0] = 0x34
	d2h[1] = 0x42
	d2h[2] = StatusReady | StatusError
	d2h[3] = ErrorABRT
	d2h[5] = SMART_THRESHOLD_EXCEEDED_LBA_MID
	d2h[6] = SMART_THRESHOLD_EXCEEDED_LBA_HIGH

	f, err := ParseFIS(d2h)
	require.NoError(t, err)
	require.IsType(t, &D2HFIS{}, f)

	reg := f.(*D2HFIS)
	assert.True(t, reg.Interrupt())
	assert.Equal(t, uint8(2), reg.PMPort())

	rtf := reg.ReturnTaskFile()
	assert.True(t, rtf.Aborted())
	exceeded, ok := rtf.SMARTThresholdExceeded()
	assert.True(t, ok)
	assert.True(t, exceeded)

	sdb := []byte{0xa1, 0xc0, 0x51, 0x00, 0x05, 0x00, 0x00, 0x80}
	f, err = ParseFIS(sdb)
	require.NoError(t, err)
	bits := f.(*SetDeviceBitsFIS)
	assert.True(t, bits.Notify())
	assert.Equal(t, uint8(0x51), bits.Status())
	assert.Equal(t, uint32(0x80000005), bits.SActive())

	pio := make([]byte, 20)
	pio[0], pio[1], pio[15], pio[16], pio[17] = 0x5f, 0x20, 0x50, 0x00, 0x02
	f, err = ParseFIS(pio)
	require.NoError(t, err)
	setup := f.(*PIOSetupFIS)
	assert.True(t, setup.DeviceToHost())
	assert.Equal(t, uint16(512), setup.TransferCount())
	assert.Equal(t, uint8(0x50), setup.EStatus())

	dma := make([]byte, 28)
	dma[0], dma[1], dma[4], dma[20] = 0x41, 0x80, 0x07, 0x10
	f, err = ParseFIS(dma)
	require.NoError(t, err)
	ds := f.(*DMASetupFIS)
	assert.True(t, ds.AutoActivate())
	assert.Equal(t, uint64(7), ds.BufferID())
	assert.Equal(t, uint32(16), ds.TransferCount())

	f, err = ParseFIS([]byte{0x46, 0x00, 0x00, 0x00, 0xde, 0xad})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, f.(DataFIS).Payload())
}

func TestParseFISErrors(t *testing.T) {
	_, err := ParseFIS(nil)
	assert.True(t, result.Is(err, result.BadParameter))

	_, err = ParseFIS([]byte{0x34, 0x00})
	assert.True(t, result.Is(err, result.BadParameter))

	_, err = ParseFIS([]byte{0x99, 0x00, 0x00, 0x00})
	assert.True(t, result.Is(err, result.BadParameter))
}
