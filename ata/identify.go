// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// ATA IDENTIFY DEVICE response parsing

package ata

import (
	"encoding/binary"
	"fmt"

	"github.com/dswarbrick/passthru/result"
	"github.com/dswarbrick/passthru/utils"
)

// IDENTIFY DEVICE word offsets used by this package (ACS-4).
const (
	wordGeneralConfig     = 0
	wordNumCylinders      = 1
	wordNumHeads          = 3
	wordSectorsPerTrack   = 6
	wordSerialNumber      = 10
	wordFirmwareRevision  = 23
	wordModelNumber       = 27
	wordTrustedComputing  = 48
	wordCapabilities      = 49
	wordFieldValidity     = 53
	wordCurCylinders      = 54
	wordCurHeads          = 55
	wordCurSectors        = 56
	wordCurCapacity       = 57
	wordUserSectors28     = 60
	wordMultiwordDMA      = 63
	wordAdditionalSupport = 69
	wordQueueDepth        = 75
	wordSATACap           = 76
	wordSATACapAddl       = 77
	wordMajorVersion      = 80
	wordMinorVersion      = 81
	wordCommandSet1       = 82
	wordCommandSet2       = 83
	wordCommandSetExt     = 84
	wordCommandEnabled1   = 85
	wordCommandEnabled2   = 86
	wordCommandEnabledExt = 87
	wordUltraDMA          = 88
	wordUserSectors48     = 100
	wordSectorSizeInfo    = 106
	wordWWN               = 108
	wordLogicalSectorSize = 117
	wordCommandSet3       = 119
	wordCommandEnabled3   = 120
	wordAlignment         = 209
	wordRotationRate      = 217
	wordTransportMajor    = 222
	wordExtSectors        = 230
	wordIntegrity         = 255
)

// Table 10 of X3T13/2008D (ATA-3) Revision 7b, January 27, 1997
// Table 28 of T13/1410D (ATA/ATAPI-6) Revision 3b, February 26, 2002
// Table 31 of T13/1699-D (ATA8-ACS) Revision 6a, September 6, 2008
// Table 52 of T13/BSR INCITS 529 (ACS-4) Revision 14, October 14, 2016
var ataMinorVersions = map[uint16]string{
	0x0001: "ATA-1 X3T9.2/781D prior to revision 4",      // obsolete
	0x0002: "ATA-1 published, ANSI X3.221-1994",          // obsolete
	0x0003: "ATA-1 X3T9.2/781D revision 4",               // obsolete
	0x0004: "ATA-2 published, ANSI X3.279-1996",          // obsolete
	0x0005: "ATA-2 X3T10/948D prior to revision 2k",      // obsolete
	0x0006: "ATA-3 X3T10/2008D revision 1",               // obsolete
	0x0007: "ATA-2 X3T10/948D revision 2k",               // obsolete
	0x0008: "ATA-3 X3T10/2008D revision 0",               // obsolete
	0x0009: "ATA-2 X3T10/948D revision 3",                // obsolete
	0x000a: "ATA-3 published, ANSI X3.298-1997",          // obsolete
	0x000b: "ATA-3 X3T10/2008D revision 6",               // obsolete
	0x000c: "ATA-3 X3T13/2008D revision 7 and 7a",        // obsolete
	0x000d: "ATA/ATAPI-4 X3T13/1153D revision 6",         // obsolete
	0x000e: "ATA/ATAPI-4 T13/1153D revision 13",          // obsolete
	0x000f: "ATA/ATAPI-4 X3T13/1153D revision 7",         // obsolete
	0x0010: "ATA/ATAPI-4 T13/1153D revision 18",          // obsolete
	0x0011: "ATA/ATAPI-4 T13/1153D revision 15",          // obsolete
	0x0012: "ATA/ATAPI-4 published, ANSI NCITS 317-1998", // obsolete
	0x0013: "ATA/ATAPI-5 T13/1321D revision 3",
	0x0014: "ATA/ATAPI-4 T13/1153D revision 14", // obsolete
	0x0015: "ATA/ATAPI-5 T13/1321D revision 1",
	0x0016: "ATA/ATAPI-5 published, ANSI NCITS 340-2000",
	0x0017: "ATA/ATAPI-4 T13/1153D revision 17", // obsolete
	0x0018: "ATA/ATAPI-6 T13/1410D revision 0",
	0x0019: "ATA/ATAPI-6 T13/1410D revision 3a",
	0x001a: "ATA/ATAPI-7 T13/1532D revision 1",
	0x001b: "ATA/ATAPI-6 T13/1410D revision 2",
	0x001c: "ATA/ATAPI-6 T13/1410D revision 1",
	0x001d: "ATA/ATAPI-7 published, ANSI INCITS 397-2005",
	0x001e: "ATA/ATAPI-7 T13/1532D revision 0",
	0x001f: "ACS-3 T13/2161-D revision 3b",
	0x0021: "ATA/ATAPI-7 T13/1532D revision 4a",
	0x0022: "ATA/ATAPI-6 published, ANSI INCITS 361-2002",
	0x0027: "ATA8-ACS T13/1699-D revision 3c",
	0x0028: "ATA8-ACS T13/1699-D revision 6",
	0x0029: "ATA8-ACS T13/1699-D revision 4",
	0x0031: "ACS-2 T13/2015-D revision 2",
	0x0033: "ATA8-ACS T13/1699-D revision 3e",
	0x0039: "ATA8-ACS T13/1699-D revision 4c",
	0x0042: "ATA8-ACS T13/1699-D revision 3f",
	0x0052: "ATA8-ACS T13/1699-D revision 3b",
	0x005e: "ACS-4 T13/BSR INCITS 529 revision 5",
	0x006d: "ACS-3 T13/2161-D revision 5",
	0x0082: "ACS-2 published, ANSI INCITS 482-2012",
	0x0107: "ATA8-ACS T13/1699-D revision 2d",
	0x010a: "ACS-3 published, ANSI INCITS 522-2014",
	0x0110: "ACS-2 T13/2015-D revision 3",
	0x011b: "ACS-3 T13/2161-D revision 4",
}

// IsValidWord reports whether an IDENTIFY word carries information at all. Devices report both
// 0000h and FFFFh for fields they do not implement.
func IsValidWord(w uint16) bool {
	return w != 0 && w != 0xffff
}

// IsValidFixedPatternWord additionally requires bit 15 cleared and bit 14 set, the marker ATA
// uses on words defined since ATA/ATAPI-7.
func IsValidFixedPatternWord(w uint16) bool {
	return IsValidWord(w) && w&0xc000 == 0x4000
}

// IsValidSATAWord additionally requires bit 0 cleared, which SATA defines as reserved zero in
// words 76..79.
func IsValidSATAWord(w uint16) bool {
	return IsValidWord(w) && w&0x0001 == 0
}

// IdentifyData is the 512-byte IDENTIFY DEVICE response as 256 little-endian words.
type IdentifyData [256]uint16

// ParseIdentify decodes a raw IDENTIFY DEVICE buffer.
func ParseIdentify(buf []byte) (*IdentifyData, error) {
	if len(buf) < SectorSize {
		return nil, result.Newf(result.BadParameter, "identify", "short buffer: %d bytes", len(buf))
	}

	var id IdentifyData
	for i := range id {
		id[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}

	return &id, nil
}

// Bytes returns the raw 512-byte representation of the data.
func (d *IdentifyData) Bytes() []byte {
	buf := make([]byte, SectorSize)
	for i, w := range d {
		binary.LittleEndian.PutUint16(buf[i*2:], w)
	}

	return buf
}

func (d *IdentifyData) dword(word int) uint32 {
	return uint32(d[word]) | uint32(d[word+1])<<16
}

func (d *IdentifyData) qword(word int) uint64 {
	return uint64(d[word]) | uint64(d[word+1])<<16 | uint64(d[word+2])<<32 | uint64(d[word+3])<<48
}

func (d *IdentifyData) str(word, nwords int) string {
	b := make([]byte, nwords*2)
	for i := 0; i < nwords; i++ {
		binary.LittleEndian.PutUint16(b[i*2:], d[word+i])
	}

	return utils.ATAString(b)
}

// IsATA reports whether word 0 identifies an ATA (not ATAPI) device.
func (d *IdentifyData) IsATA() bool {
	return d[wordGeneralConfig]&0x8000 == 0
}

// SerialNumber returns the device serial number.
func (d *IdentifyData) SerialNumber() string {
	return d.str(wordSerialNumber, 10)
}

// FirmwareRevision returns the device firmware revision.
func (d *IdentifyData) FirmwareRevision() string {
	return d.str(wordFirmwareRevision, 4)
}

// ModelNumber returns the device model number.
func (d *IdentifyData) ModelNumber() string {
	return d.str(wordModelNumber, 20)
}

// LBASupported reports word 49 bit 9. Devices that clear it are addressed by CHS only.
func (d *IdentifyData) LBASupported() bool {
	return d[wordCapabilities]&0x0200 != 0
}

// DMASupported reports word 49 bit 8.
func (d *IdentifyData) DMASupported() bool {
	return d[wordCapabilities]&0x0100 != 0
}

// UDMAWordValid reports word 53 bit 2, which validates word 88.
func (d *IdentifyData) UDMAWordValid() bool {
	return d[wordFieldValidity]&0x0004 != 0
}

// CurrentCHSValid reports word 53 bit 0, which validates words 54..58.
func (d *IdentifyData) CurrentCHSValid() bool {
	return d[wordFieldValidity]&0x0001 != 0
}

// UDMAModesSupported returns the bitmap of supported Ultra DMA modes from word 88.
func (d *IdentifyData) UDMAModesSupported() uint8 {
	if !IsValidWord(d[wordUltraDMA]) {
		return 0
	}

	return uint8(d[wordUltraDMA] & 0x007f)
}

// MWDMAModesSupported returns the bitmap of supported multiword DMA modes from word 63.
func (d *IdentifyData) MWDMAModesSupported() uint8 {
	if !IsValidWord(d[wordMultiwordDMA]) {
		return 0
	}

	return uint8(d[wordMultiwordDMA] & 0x0007)
}

// DMAModeClass returns the best DMA transfer class the device reports.
func (d *IdentifyData) DMAModeClass() DMAMode {
	switch {
	case d.UDMAWordValid() && d.UDMAModesSupported() != 0:
		return DMAModeUDMA
	case d.MWDMAModesSupported() != 0:
		return DMAModeMWDMA
	case d.DMASupported():
		return DMAModeDMA
	}

	return DMAModeNone
}

// Supports48Bit reports the 48-bit Address feature set (word 83 bit 10).
func (d *IdentifyData) Supports48Bit() bool {
	return IsValidFixedPatternWord(d[wordCommandSet2]) && d[wordCommandSet2]&0x0400 != 0
}

// QueueType returns the command queuing style, preferring NCQ over legacy TCQ.
func (d *IdentifyData) QueueType() QueueType {
	if IsValidSATAWord(d[wordSATACap]) && d[wordSATACap]&0x0100 != 0 {
		return QueueNCQ
	}

	if IsValidFixedPatternWord(d[wordCommandSet2]) && d[wordCommandSet2]&0x0002 != 0 {
		return QueueTCQ
	}

	return QueueNone
}

// QueueDepth returns the maximum queue depth (word 75 bits 4:0, plus one).
func (d *IdentifyData) QueueDepth() int {
	if !IsValidWord(d[wordQueueDepth]) {
		return 0
	}

	return int(d[wordQueueDepth]&0x001f) + 1
}

// GPLSupported reports the General Purpose Logging feature set (word 84 or 87 bit 5).
func (d *IdentifyData) GPLSupported() bool {
	for _, w := range []uint16{d[wordCommandSetExt], d[wordCommandEnabledExt]} {
		if IsValidFixedPatternWord(w) && w&0x0020 != 0 {
			return true
		}
	}

	return false
}

// WWNSupported reports a world wide name in words 108..111 (word 84 or 87 bit 8).
func (d *IdentifyData) WWNSupported() bool {
	for _, w := range []uint16{d[wordCommandSetExt], d[wordCommandEnabledExt]} {
		if IsValidFixedPatternWord(w) && w&0x0100 != 0 {
			return true
		}
	}

	return false
}

// WWN returns the 64-bit world wide name. Word 108 holds the most significant bits.
func (d *IdentifyData) WWN() uint64 {
	return uint64(d[wordWWN])<<48 | uint64(d[wordWWN+1])<<32 | uint64(d[wordWWN+2])<<16 | uint64(d[wordWWN+3])
}

// WWNString formats the world wide name as NAA, OUI and unique ID.
func (d *IdentifyData) WWNString() string {
	naa := d[wordWWN] >> 12
	oui := (uint32(d[wordWWN]&0x0fff) << 12) | (uint32(d[wordWWN+1]) >> 4)
	uniqueID := ((uint64(d[wordWWN+1]) & 0xf) << 32) | (uint64(d[wordWWN+2]) << 16) | uint64(d[wordWWN+3])

	return fmt.Sprintf("%x %06x %09x", naa, oui, uniqueID)
}

// LogicalSectorSize returns the logical sector size in bytes (words 106, 117..118).
func (d *IdentifyData) LogicalSectorSize() uint32 {
	w := d[wordSectorSizeInfo]
	if IsValidFixedPatternWord(w) && w&0x1000 != 0 {
		if words := d.dword(wordLogicalSectorSize); words != 0 {
			return words * 2
		}
	}

	return SectorSize
}

// PhysicalSectorSize returns the physical sector size in bytes (word 106 bits 13, 3:0).
func (d *IdentifyData) PhysicalSectorSize() uint32 {
	logical := d.LogicalSectorSize()
	w := d[wordSectorSizeInfo]

	if IsValidFixedPatternWord(w) && w&0x2000 != 0 {
		return logical << (w & 0x000f)
	}

	return logical
}

// SectorAlignment returns the offset of logical sector 0 within the first physical sector, in
// logical sectors (word 209).
func (d *IdentifyData) SectorAlignment() uint16 {
	w := d[wordAlignment]
	if IsValidFixedPatternWord(w) {
		return w & 0x3fff
	}

	return 0
}

// Zoned returns the zoned capabilities field (word 69 bits 1:0).
func (d *IdentifyData) Zoned() ZonedType {
	w := d[wordAdditionalSupport]
	if !IsValidWord(w) {
		return ZonedNotReported
	}

	return ZonedType(w & 0x0003)
}

// ExtendedSectorsSupported reports word 69 bit 3, which validates words 230..233.
func (d *IdentifyData) ExtendedSectorsSupported() bool {
	w := d[wordAdditionalSupport]
	return IsValidWord(w) && w&0x0008 != 0
}

// UserSectors28 returns the 28-bit total number of user addressable sectors (words 60..61).
func (d *IdentifyData) UserSectors28() uint32 {
	return d.dword(wordUserSectors28)
}

// UserSectors48 returns the 48-bit total number of user addressable sectors (words 100..103).
func (d *IdentifyData) UserSectors48() uint64 {
	return d.qword(wordUserSectors48) & 0xffffffffffff
}

// ExtendedSectors returns the extended number of user addressable sectors (words 230..233).
func (d *IdentifyData) ExtendedSectors() uint64 {
	return d.qword(wordExtSectors) & 0xffffffffffff
}

// TransportClass returns the physical transport from word 222 bits 15:12.
func (d *IdentifyData) TransportClass() TransportClass {
	w := d[wordTransportMajor]
	if !IsValidWord(w) {
		return TransportUnknown
	}

	switch w >> 12 {
	case 0x0:
		return TransportParallel
	case 0x1:
		return TransportSerial
	case 0xe:
		return TransportPCIe
	}

	return TransportUnknown
}

// DownloadMicrocodeDMA reports word 69 bit 8.
func (d *IdentifyData) DownloadMicrocodeDMA() bool {
	w := d[wordAdditionalSupport]
	return IsValidWord(w) && w&0x0100 != 0
}

// ReadBufferDMA reports word 69 bit 11.
func (d *IdentifyData) ReadBufferDMA() bool {
	w := d[wordAdditionalSupport]
	return IsValidWord(w) && w&0x0800 != 0
}

// WriteBufferDMA reports word 69 bit 10.
func (d *IdentifyData) WriteBufferDMA() bool {
	w := d[wordAdditionalSupport]
	return IsValidWord(w) && w&0x0400 != 0
}

// ReadLogDMA reports READ LOG DMA EXT, from word 119 bit 3 or the SATA capability word 76 bit 15.
func (d *IdentifyData) ReadLogDMA() bool {
	if IsValidFixedPatternWord(d[wordCommandSet3]) && d[wordCommandSet3]&0x0008 != 0 {
		return true
	}

	return IsValidSATAWord(d[wordSATACap]) && d[wordSATACap]&0x8000 != 0
}

// WriteLogDMA reports WRITE LOG DMA EXT (word 119 bit 3).
func (d *IdentifyData) WriteLogDMA() bool {
	return IsValidFixedPatternWord(d[wordCommandSet3]) && d[wordCommandSet3]&0x0008 != 0
}

// TrustedComputing reports the Trusted Computing feature set (word 48 bit 0), which makes
// TRUSTED SEND DMA and TRUSTED RECEIVE DMA mandatory.
func (d *IdentifyData) TrustedComputing() bool {
	w := d[wordTrustedComputing]
	return IsValidFixedPatternWord(w) && w&0x0001 != 0
}

// Streaming reports the Streaming feature set (word 84 bit 4).
func (d *IdentifyData) Streaming() bool {
	w := d[wordCommandSetExt]
	return IsValidFixedPatternWord(w) && w&0x0010 != 0
}

// SMARTSupported reports the SMART feature set (word 82 bit 0).
func (d *IdentifyData) SMARTSupported() bool {
	w := d[wordCommandSet1]
	return IsValidWord(w) && w&0x0001 != 0
}

// SMARTEnabled reports the SMART feature set enabled (word 85 bit 0).
func (d *IdentifyData) SMARTEnabled() bool {
	w := d[wordCommandEnabled1]
	return IsValidWord(w) && w&0x0001 != 0
}

// RotationRate returns word 217: 1 for non-rotating media, otherwise the nominal RPM.
func (d *IdentifyData) RotationRate() uint16 {
	return d[wordRotationRate]
}

// NativeGeometry returns the default CHS translation (words 1, 3 and 6).
func (d *IdentifyData) NativeGeometry() Geometry {
	return Geometry{
		Cylinders: d[wordNumCylinders],
		Heads:     d[wordNumHeads],
		Sectors:   d[wordSectorsPerTrack],
	}
}

// CurrentGeometry returns the current CHS translation (words 54..56).
func (d *IdentifyData) CurrentGeometry() Geometry {
	return Geometry{
		Cylinders: d[wordCurCylinders],
		Heads:     d[wordCurHeads],
		Sectors:   d[wordCurSectors],
	}
}

// CurrentCHSCapacity returns the current capacity in sectors (words 57..58).
func (d *IdentifyData) CurrentCHSCapacity() uint32 {
	return d.dword(wordCurCapacity)
}

// Checksum validates the integrity word. present is false when word 255 carries no signature.
func (d *IdentifyData) Checksum() (present bool, ok bool) {
	if d[wordIntegrity]&0x00ff != 0xa5 {
		return false, false
	}

	var sum uint8
	for _, b := range d.Bytes() {
		sum += b
	}

	return true, sum == 0
}

// ATAMajorVersion returns the ATA major version from an ATA IDENTIFY command.
func (d *IdentifyData) ATAMajorVersion() (s string) {
	w := d[wordMajorVersion]
	if !IsValidWord(w) {
		s = "device does not report ATA major version"
		return
	}

	switch utils.Log2b(uint(w)) {
	case 1:
		s = "ATA-1"
	case 2:
		s = "ATA-2"
	case 3:
		s = "ATA-3"
	case 4:
		s = "ATA/ATAPI-4"
	case 5:
		s = "ATA/ATAPI-5"
	case 6:
		s = "ATA/ATAPI-6"
	case 7:
		s = "ATA/ATAPI-7"
	case 8:
		s = "ATA8-ACS"
	case 9:
		s = "ACS-2"
	case 10:
		s = "ACS-3"
	case 11:
		s = "ACS-4"
	case 12:
		s = "ACS-5"
	}

	return
}

// ATAMinorVersion returns the ATA minor version from an ATA IDENTIFY command.
func (d *IdentifyData) ATAMinorVersion() string {
	w := d[wordMinorVersion]
	if !IsValidWord(w) {
		return "device does not report ATA minor version"
	}

	// Since the ATA minor version word is not a bitmask, we simply do a map lookup
	if s, ok := ataMinorVersions[w]; ok {
		return s
	}

	return "unknown"
}

// Transport describes the transport major version in word 222.
func (d *IdentifyData) Transport() (s string) {
	w := d[wordTransportMajor]
	if !IsValidWord(w) {
		s = "device does not report transport"
		return
	}

	switch w >> 12 {
	case 0x0:
		s = "Parallel ATA"
	case 0x1:
		s = "Serial ATA"

		switch utils.Log2b(uint(w & 0x0fff)) {
		case 0:
			s += " ATA8-AST"
		case 1:
			s += " SATA 1.0a"
		case 2:
			s += " SATA II Ext"
		case 3:
			s += " SATA 2.5"
		case 4:
			s += " SATA 2.6"
		case 5:
			s += " SATA 3.0"
		case 6:
			s += " SATA 3.1"
		case 7:
			s += " SATA 3.2"
		default:
			s += fmt.Sprintf(" SATA (%#03x)", w&0x0fff)
		}
	case 0xe:
		s = fmt.Sprintf("PCIe (%#03x)", w&0x0fff)
	default:
		s = fmt.Sprintf("Unknown (%#04x)", w)
	}

	return
}
