// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ata

import (
	"encoding/binary"
	"testing"

	"github.com/dswarbrick/passthru/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// putString stores s in IDENTIFY string order (byte-swapped words, space padded).
func putString(d *IdentifyData, word, nwords int, s string) {
	b := make([]byte, nwords*2)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)

	for i := 0; i < nwords; i++ {
		d[word+i] = uint16(b[i*2])<<8 | uint16(b[i*2+1])
	}
}

func putDword(d *IdentifyData, word int, v uint32) {
	d[word] = uint16(v)
	d[word+1] = uint16(v >> 16)
}

func putQword(d *IdentifyData, word int, v uint64) {
	for i := 0; i < 4; i++ {
		d[word+i] = uint16(v >> (16 * uint(i)))
	}
}

// sataDisk returns IDENTIFY data resembling a modern 48-bit SATA disk.
func sataDisk() *IdentifyData {
	var d IdentifyData

	d[wordNumCylinders] = 16383
	d[wordNumHeads] = 16
	d[wordSectorsPerTrack] = 63
	putString(&d, wordSerialNumber, 10, "WD-WCC4E0000001")
	putString(&d, wordFirmwareRevision, 4, "82.00A82")
	putString(&d, wordModelNumber, 20, "WDC WD40EFRX-68N32N0")
	d[wordCapabilities] = 0x0300
	d[wordFieldValidity] = 0x0007
	d[wordMultiwordDMA] = 0x0007
	d[wordUltraDMA] = 0x407f
	putDword(&d, wordUserSectors28, 0x0fffffff)
	d[wordQueueDepth] = 0x001f
	d[wordSATACap] = 0x870e
	d[wordMajorVersion] = 0x07f0
	d[wordMinorVersion] = 0x006d
	d[wordCommandSet1] = 0x746b
	d[wordCommandSet2] = 0x7f61
	d[wordCommandSetExt] = 0x6163
	d[wordCommandEnabled1] = 0x7469
	d[wordCommandEnabledExt] = 0x6163
	putQword(&d, wordUserSectors48, 7814037168)
	d[wordSectorSizeInfo] = 0x6003
	d[wordWWN], d[wordWWN+1], d[wordWWN+2], d[wordWWN+3] = 0x5001, 0x4ee2, 0xb5c3, 0xa2f1
	d[wordCommandSet3] = 0x405c
	d[wordTransportMajor] = 0x107f

	return &d
}

func TestParseIdentify(t *testing.T) {
	_, err := ParseIdentify(make([]byte, 511))
	assert.True(t, result.Is(err, result.BadParameter))

	buf := make([]byte, SectorSize)
	binary.LittleEndian.PutUint16(buf[wordCapabilities*2:], 0x0200)
	binary.LittleEndian.PutUint16(buf[wordUserSectors28*2:], 0x1234)

	d, err := ParseIdentify(buf)
	require.NoError(t, err)
	assert.True(t, d.LBASupported())
	assert.Equal(t, uint32(0x1234), d.UserSectors28())
	assert.Equal(t, buf, d.Bytes())
}

func TestWordPredicates(t *testing.T) {
	assert := assert.New(t)

	assert.False(IsValidWord(0x0000))
	assert.False(IsValidWord(0xffff))
	assert.True(IsValidWord(0x0001))

	assert.True(IsValidFixedPatternWord(0x4000))
	assert.True(IsValidFixedPatternWord(0x7f61))
	assert.False(IsValidFixedPatternWord(0x8000))
	assert.False(IsValidFixedPatternWord(0x3fff))
	assert.False(IsValidFixedPatternWord(0xffff))

	assert.True(IsValidSATAWord(0x870e))
	assert.False(IsValidSATAWord(0x870f))
	assert.False(IsValidSATAWord(0))
}

func TestIdentifyStrings(t *testing.T) {
	d := sataDisk()

	assert.Equal(t, "WDC WD40EFRX-68N32N0", d.ModelNumber())
	assert.Equal(t, "WD-WCC4E0000001", d.SerialNumber())
	assert.Equal(t, "82.00A82", d.FirmwareRevision())
	assert.Equal(t, "ACS-3", d.ATAMajorVersion())
	assert.Equal(t, "ACS-3 T13/2161-D revision 5", d.ATAMinorVersion())
	assert.Equal(t, "Serial ATA SATA 3.1", d.Transport())
	assert.Equal(t, "5 0014ee 2b5c3a2f1", d.WWNString())
}

func TestIdentifyCapabilities(t *testing.T) {
	assert := assert.New(t)
	d := sataDisk()

	assert.True(d.IsATA())
	assert.True(d.Supports48Bit())
	assert.True(d.GPLSupported())
	assert.True(d.WWNSupported())
	assert.Equal(uint64(0x50014ee2b5c3a2f1), d.WWN())
	assert.Equal(QueueNCQ, d.QueueType())
	assert.Equal(32, d.QueueDepth())
	assert.Equal(DMAModeUDMA, d.DMAModeClass())
	assert.Equal(uint8(0x7f), d.UDMAModesSupported())
	assert.Equal(TransportSerial, d.TransportClass())
	assert.True(d.ReadLogDMA())
	assert.True(d.WriteLogDMA())
	assert.True(d.SMARTSupported())
	assert.True(d.SMARTEnabled())
	assert.Equal(uint32(512), d.LogicalSectorSize())
	assert.Equal(uint32(4096), d.PhysicalSectorSize())
}

func TestDMAModeClass(t *testing.T) {
	var d IdentifyData
	assert.Equal(t, DMAModeNone, d.DMAModeClass())

	d[wordCapabilities] = 0x0100
	assert.Equal(t, DMAModeDMA, d.DMAModeClass())

	d[wordMultiwordDMA] = 0x0004
	assert.Equal(t, DMAModeMWDMA, d.DMAModeClass())

	// Word 88 is ignored until word 53 bit 2 validates it.
	d[wordUltraDMA] = 0x003f
	assert.Equal(t, DMAModeMWDMA, d.DMAModeClass())

	d[wordFieldValidity] = 0x0004
	assert.Equal(t, DMAModeUDMA, d.DMAModeClass())
}

func TestQueueTypeTCQ(t *testing.T) {
	var d IdentifyData
	d[wordCommandSet2] = 0x4002
	assert.Equal(t, QueueTCQ, d.QueueType())

	// NCQ wins over TCQ.
	d[wordSATACap] = 0x0100
	assert.Equal(t, QueueNCQ, d.QueueType())

	// Bit 0 set invalidates the SATA word.
	d[wordSATACap] = 0x0101
	assert.Equal(t, QueueTCQ, d.QueueType())
}

func TestSectorSizes(t *testing.T) {
	var d IdentifyData

	assert.Equal(t, uint32(512), d.LogicalSectorSize())
	assert.Equal(t, uint32(512), d.PhysicalSectorSize())

	// 4Kn: logical sector length valid, 2048 words.
	d[wordSectorSizeInfo] = 0x5000
	putDword(&d, wordLogicalSectorSize, 2048)
	assert.Equal(t, uint32(4096), d.LogicalSectorSize())
	assert.Equal(t, uint32(4096), d.PhysicalSectorSize())

	// Invalid fixed pattern ignores the word entirely.
	d[wordSectorSizeInfo] = 0xf003
	assert.Equal(t, uint32(512), d.LogicalSectorSize())

	d[wordAlignment] = 0x4001
	assert.Equal(t, uint16(1), d.SectorAlignment())
	d[wordAlignment] = 0x8001
	assert.Equal(t, uint16(0), d.SectorAlignment())
}

func TestTransportClass(t *testing.T) {
	var d IdentifyData
	tests := []struct {
		w    uint16
		want TransportClass
	}{
		{0x0000, TransportUnknown},
		{0xffff, TransportUnknown},
		{0x0020, TransportParallel},
		{0x1020, TransportSerial},
		{0xe001, TransportPCIe},
		{0x5001, TransportUnknown},
	}

	for _, tt := range tests {
		d[wordTransportMajor] = tt.w
		assert.Equal(t, tt.want, d.TransportClass(), "word 222 = %#04x", tt.w)
	}
}

func TestSubCommandDMAFlags(t *testing.T) {
	var d IdentifyData

	d[wordAdditionalSupport] = 0x0d00
	assert.True(t, d.DownloadMicrocodeDMA())
	assert.True(t, d.ReadBufferDMA())
	assert.True(t, d.WriteBufferDMA())

	// Trusted computing is strict: the fixed pattern must be valid.
	d[wordTrustedComputing] = 0x0001
	assert.False(t, d.TrustedComputing())
	d[wordTrustedComputing] = 0x4001
	assert.True(t, d.TrustedComputing())

	d[wordCommandSetExt] = 0x4010
	assert.True(t, d.Streaming())
	assert.False(t, d.GPLSupported())

	d[wordSATACap] = 0x8000
	assert.True(t, d.ReadLogDMA())
	assert.False(t, d.WriteLogDMA())
}

func TestChecksum(t *testing.T) {
	d := sataDisk()

	present, _ := d.Checksum()
	assert.False(t, present)

	d[wordIntegrity] = 0x00a5
	var sum uint8
	for _, b := range d.Bytes()[:511] {
		sum += b
	}
	d[wordIntegrity] |= uint16(-sum) << 8

	present, ok := d.Checksum()
	assert.True(t, present)
	assert.True(t, ok)

	d[wordModelNumber] ^= 0x0100
	present, ok = d.Checksum()
	assert.True(t, present)
	assert.False(t, ok)
}
