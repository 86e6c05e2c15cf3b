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

func TestMaxLBA(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *IdentifyData)
		want  uint64
	}{
		{
			name:  "lba28 saturated uses 48-bit count",
			setup: func(d *IdentifyData) {},
			want:  7814037167,
		},
		{
			name: "extended sectors preferred when announced",
			setup: func(d *IdentifyData) {
				d[wordAdditionalSupport] = 0x0008
				putQword(d, wordExtSectors, 1000)
			},
			want: 999,
		},
		{
			name: "extended sectors empty falls back to 48-bit count",
			setup: func(d *IdentifyData) {
				d[wordAdditionalSupport] = 0x0008
			},
			want: 7814037167,
		},
		{
			name: "lba28 not saturated",
			setup: func(d *IdentifyData) {
				putDword(d, wordUserSectors28, 1000000)
			},
			want: 999999,
		},
		{
			name: "chs only native geometry",
			setup: func(d *IdentifyData) {
				*d = IdentifyData{}
				d[wordNumCylinders] = 100
				d[wordNumHeads] = 16
				d[wordSectorsPerTrack] = 63
			},
			want: 100800,
		},
		{
			name: "chs only current capacity",
			setup: func(d *IdentifyData) {
				*d = IdentifyData{}
				d[wordNumCylinders] = 100
				d[wordNumHeads] = 16
				d[wordSectorsPerTrack] = 63
				d[wordFieldValidity] = 0x0001
				d[wordCurCylinders] = 50
				d[wordCurHeads] = 16
				d[wordCurSectors] = 63
				putDword(d, wordCurCapacity, 50400)
			},
			want: 50400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sataDisk()
			tt.setup(d)
			assert.Equal(t, tt.want, NewCapabilityModel(d).MaxLBA)
		})
	}
}

func TestCapabilityModel(t *testing.T) {
	m := NewCapabilityModel(sataDisk())

	assert.Equal(t, "WDC WD40EFRX-68N32N0", m.ModelNumber)
	assert.True(t, m.LBAMode)
	assert.True(t, m.Addressing48)
	assert.True(t, m.GPL)
	assert.True(t, m.WWNValid)
	assert.Equal(t, uint64(0x50014ee2b5c3a2f1), m.WWN)
	assert.Equal(t, DMAModeUDMA, m.DMAMode)
	assert.Equal(t, QueueNCQ, m.Queue)
	assert.Equal(t, TransportSerial, m.Transport)
	assert.Equal(t, DMASupport{LogRead: true, LogWrite: true}, m.DMA)
	assert.Equal(t, ZonedNotReported, m.Zoned())
}

func chsModel() *CapabilityModel {
	var d IdentifyData
	d[wordNumCylinders] = 100
	d[wordNumHeads] = 16
	d[wordSectorsPerTrack] = 63

	return NewCapabilityModel(&d)
}

func TestCHSRoundTrip(t *testing.T) {
	m := chsModel()

	for c := uint32(0); c < 100; c++ {
		for h := uint16(0); h < 16; h++ {
			for s := uint16(1); s <= 63; s++ {
				in := CHS{Cylinder: c, Head: h, Sector: s}

				lba, err := m.CHSToLBA(in)
				if !assert.NoError(t, err) {
					return
				}

				out, err := m.LBAToCHS(lba)
				if !assert.NoError(t, err) || !assert.Equal(t, in, out) {
					return
				}
			}
		}
	}
}

func TestCHSBeyondCapacity(t *testing.T) {
	m := chsModel()

	lba, err := m.CHSToLBA(CHS{Cylinder: 100, Head: 0, Sector: 1})
	assert.True(t, result.Is(err, result.NotSupported))
	assert.Equal(t, uint64(100800), lba)

	addr, err := m.LBAToCHS(100800)
	assert.True(t, result.Is(err, result.NotSupported))
	assert.Equal(t, CHS{Cylinder: 100, Head: 0, Sector: 1}, addr)

	_, err = m.CHSToLBA(CHS{Cylinder: 1, Head: 1, Sector: 0})
	assert.True(t, result.Is(err, result.BadParameter))
}

func TestCHSCurrentGeometry(t *testing.T) {
	var d IdentifyData
	d[wordNumCylinders] = 100
	d[wordNumHeads] = 16
	d[wordSectorsPerTrack] = 63
	d[wordFieldValidity] = 0x0001
	d[wordCurCylinders] = 200
	d[wordCurHeads] = 8
	d[wordCurSectors] = 63
	putDword(&d, wordCurCapacity, 200*8*63)

	m := NewCapabilityModel(&d)
	assert.Equal(t, Geometry{200, 8, 63}, m.Geometry())

	lba, err := m.CHSToLBA(CHS{Cylinder: 1, Head: 0, Sector: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(8*63), lba)

	// Zero current fields fall back to the native translation.
	d[wordCurHeads] = 0
	m = NewCapabilityModel(&d)
	assert.Equal(t, Geometry{100, 16, 63}, m.Geometry())
}

func TestUpgradeZoned(t *testing.T) {
	m := NewCapabilityModel(sataDisk())

	assert.False(t, m.UpgradeZoned(ZonedHostManaged))
	assert.False(t, m.UpgradeZoned(ZonedNotReported))
	assert.True(t, m.UpgradeZoned(ZonedHostAware))
	assert.Equal(t, ZonedHostAware, m.Zoned())
	assert.False(t, m.UpgradeZoned(ZonedDeviceManaged))
	assert.Equal(t, ZonedHostAware, m.Zoned())

	d := sataDisk()
	d[wordAdditionalSupport] = 0x0002
	m = NewCapabilityModel(d)
	assert.Equal(t, ZonedDeviceManaged, m.Zoned())
	assert.False(t, m.UpgradeZoned(ZonedHostAware))
}

func supportedCapabilitiesPage(zoned uint64) []byte {
	page := make([]byte, SectorSize)
	binary.LittleEndian.PutUint64(page[0:], 1<<63|uint64(IDDATA_PAGE_SUPPORTED_CAPABILITIES)<<16|0x0001)
	binary.LittleEndian.PutUint64(page[104:], 1<<63|zoned)

	return page
}

func TestSupportedCapabilitiesZoned(t *testing.T) {
	z, ok := SupportedCapabilitiesZoned(supportedCapabilitiesPage(1))
	assert.True(t, ok)
	assert.Equal(t, ZonedHostAware, z)

	z, ok = SupportedCapabilitiesZoned(supportedCapabilitiesPage(2))
	assert.True(t, ok)
	assert.Equal(t, ZonedDeviceManaged, z)

	_, ok = SupportedCapabilitiesZoned(make([]byte, SectorSize))
	assert.False(t, ok)

	_, ok = SupportedCapabilitiesZoned(make([]byte, 16))
	assert.False(t, ok)

	page := supportedCapabilitiesPage(1)
	page[111] = 0
	_, ok = SupportedCapabilitiesZoned(page)
	assert.False(t, ok)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "UDMA", DMAModeUDMA.String())
	assert.Equal(t, "dma mode(9)", DMAMode(9).String())
	assert.Equal(t, "host managed", ZonedHostManaged.String())
	assert.Equal(t, "zoned(-1)", ZonedType(-1).String())
}
