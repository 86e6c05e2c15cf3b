// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Drive capability model derived from IDENTIFY DEVICE data.

package ata

import (
	"encoding/binary"
	"fmt"
)

// DMAMode is the class of DMA transfer a device supports.
type DMAMode int

const (
	DMAModeNone DMAMode = iota
	DMAModeDMA
	DMAModeMWDMA
	DMAModeUDMA
)

var dmaModeNames = [...]string{"none", "DMA", "MWDMA", "UDMA"}

func (m DMAMode) String() string {
	if m >= 0 && int(m) < len(dmaModeNames) {
		return dmaModeNames[m]
	}

	return fmt.Sprintf("dma mode(%d)", int(m))
}

// ZonedType is the zoned block device classification. The first four values match word 69
// bits 1:0.
type ZonedType int

const (
	ZonedNotReported ZonedType = iota
	ZonedHostAware
	ZonedDeviceManaged
	ZonedReserved
	ZonedHostManaged
)

var zonedNames = [...]string{"not reported", "host aware", "device managed", "reserved", "host managed"}

func (z ZonedType) String() string {
	if z >= 0 && int(z) < len(zonedNames) {
		return zonedNames[z]
	}

	return fmt.Sprintf("zoned(%d)", int(z))
}

// QueueType is the command queuing style of the device.
type QueueType int

const (
	QueueNone QueueType = iota
	QueueTCQ
	QueueNCQ
)

// TransportClass is the physical interface reported in word 222.
type TransportClass int

const (
	TransportUnknown TransportClass = iota
	TransportParallel
	TransportSerial
	TransportPCIe
)

// Geometry is a CHS translation.
type Geometry struct {
	Cylinders uint16
	Heads     uint16
	Sectors   uint16
}

// Capacity returns the number of sectors addressable through g.
func (g Geometry) Capacity() uint32 {
	return uint32(g.Cylinders) * uint32(g.Heads) * uint32(g.Sectors)
}

func (g Geometry) zero() bool {
	return g.Cylinders == 0 || g.Heads == 0 || g.Sectors == 0
}

// DMASupport records which sub-command families have a DMA variant on the device.
type DMASupport struct {
	LogRead           bool
	LogWrite          bool
	BufferRead        bool
	BufferWrite       bool
	DownloadMicrocode bool
	TrustedSend       bool
	TrustedReceive    bool
	StreamRead        bool
	StreamWrite       bool
}

// CapabilityModel is the snapshot of a drive's capabilities taken during IDENTIFY processing. It
// is not modified afterwards except by UpgradeZoned.
type CapabilityModel struct {
	ModelNumber      string
	SerialNumber     string
	FirmwareRevision string

	LBAMode      bool
	Addressing48 bool
	GPL          bool
	WWNValid     bool
	WWN          uint64

	LogicalSectorSize  uint32
	PhysicalSectorSize uint32
	// SectorAlignment is in logical sectors.
	SectorAlignment uint16
	MaxLBA          uint64

	DMAMode   DMAMode
	DMA       DMASupport
	Queue     QueueType
	Transport TransportClass

	NativeCHS       Geometry
	CurrentCHS      Geometry
	CurrentCHSValid bool
	// CurrentCHSCapacity is the sector count from words 57..58.
	CurrentCHSCapacity uint32

	zoned ZonedType
}

// NewCapabilityModel derives the capability model from IDENTIFY DEVICE data.
func NewCapabilityModel(d *IdentifyData) *CapabilityModel {
	m := &CapabilityModel{
		ModelNumber:        d.ModelNumber(),
		SerialNumber:       d.SerialNumber(),
		FirmwareRevision:   d.FirmwareRevision(),
		LBAMode:            d.LBASupported(),
		Addressing48:       d.Supports48Bit(),
		GPL:                d.GPLSupported(),
		WWNValid:           d.WWNSupported(),
		LogicalSectorSize:  d.LogicalSectorSize(),
		PhysicalSectorSize: d.PhysicalSectorSize(),
		SectorAlignment:    d.SectorAlignment(),
		DMAMode:            d.DMAModeClass(),
		Queue:              d.QueueType(),
		Transport:          d.TransportClass(),
		NativeCHS:          d.NativeGeometry(),
		CurrentCHS:         d.CurrentGeometry(),
		CurrentCHSValid:    d.CurrentCHSValid(),
		CurrentCHSCapacity: d.CurrentCHSCapacity(),
		zoned:              d.Zoned(),
	}

	if m.WWNValid {
		m.WWN = d.WWN()
	}

	m.DMA = DMASupport{
		LogRead:           m.GPL && d.ReadLogDMA(),
		LogWrite:          m.GPL && d.WriteLogDMA(),
		BufferRead:        d.ReadBufferDMA(),
		BufferWrite:       d.WriteBufferDMA(),
		DownloadMicrocode: d.DownloadMicrocodeDMA(),
		TrustedSend:       d.TrustedComputing(),
		TrustedReceive:    d.TrustedComputing(),
		StreamRead:        d.Streaming(),
		StreamWrite:       d.Streaming(),
	}

	m.MaxLBA = resolveMaxLBA(d, m)

	return m
}

// resolveMaxLBA starts from the CHS capacity, then prefers the 28-bit LBA count, then the 48-bit
// counts when the 28-bit field is saturated or word 69 announces the extended count. Counts are
// converted to a maximum LBA unless the device is CHS only.
func resolveMaxLBA(d *IdentifyData, m *CapabilityModel) uint64 {
	g, capacity := m.geometry()
	if capacity == 0 {
		capacity = g.Capacity()
	}

	maxLBA := uint64(capacity)

	if !m.LBAMode {
		return maxLBA
	}

	maxLBA = uint64(d.UserSectors28())

	extended := d.ExtendedSectorsSupported()
	if maxLBA == 0x0fffffff || extended {
		if n := d.ExtendedSectors(); extended && n != 0 {
			maxLBA = n
		} else if n := d.UserSectors48(); n != 0 {
			maxLBA = n
		}
	}

	if maxLBA > 0 {
		maxLBA--
	}

	return maxLBA
}

// Zoned returns the zoned classification.
func (m *CapabilityModel) Zoned() ZonedType {
	return m.zoned
}

// UpgradeZoned applies a zoned classification learned from the Supported Capabilities log page.
// Only a device whose IDENTIFY data did not report a zoned type is upgraded, and only to host
// aware or device managed. It reports whether the model changed.
func (m *CapabilityModel) UpgradeZoned(z ZonedType) bool {
	if m.zoned != ZonedNotReported {
		return false
	}

	if z != ZonedHostAware && z != ZonedDeviceManaged {
		return false
	}

	m.zoned = z
	return true
}

// SupportedCapabilitiesZoned extracts the zoned capabilities from page 03h of the IDENTIFY
// DEVICE DATA log (qword at byte 104, bit 63 valid, bits 1:0 zoned). ok is false if the page or
// the field is not valid.
func SupportedCapabilitiesZoned(page []byte) (z ZonedType, ok bool) {
	if len(page) < SectorSize {
		return ZonedNotReported, false
	}

	header := binary.LittleEndian.Uint64(page[0:])
	if header&(1<<63) == 0 || page[2] != IDDATA_PAGE_SUPPORTED_CAPABILITIES {
		return ZonedNotReported, false
	}

	q := binary.LittleEndian.Uint64(page[104:])
	if q&(1<<63) == 0 {
		return ZonedNotReported, false
	}

	return ZonedType(q & 0x3), true
}
