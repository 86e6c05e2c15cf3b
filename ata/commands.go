// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// ATA command definitions.

package ata

const (
	// ATA commands
	ATA_READ_LOG_EXT           = 0x2f
	ATA_READ_LOG_DMA_EXT       = 0x47
	ATA_WRITE_LOG_EXT          = 0x3f
	ATA_WRITE_LOG_DMA_EXT      = 0x57
	ATA_READ_STREAM_DMA_EXT    = 0x2a
	ATA_READ_STREAM_EXT        = 0x2b
	ATA_WRITE_STREAM_DMA_EXT   = 0x3a
	ATA_WRITE_STREAM_EXT       = 0x3b
	ATA_TRUSTED_NON_DATA       = 0x5b
	ATA_TRUSTED_RECEIVE        = 0x5c
	ATA_TRUSTED_RECEIVE_DMA    = 0x5d
	ATA_TRUSTED_SEND           = 0x5e
	ATA_TRUSTED_SEND_DMA       = 0x5f
	ATA_DOWNLOAD_MICROCODE     = 0x92
	ATA_DOWNLOAD_MICROCODE_DMA = 0x93
	ATA_SMART                  = 0xb0
	ATA_READ_BUFFER            = 0xe4
	ATA_WRITE_BUFFER           = 0xe8
	ATA_READ_BUFFER_DMA        = 0xe9
	ATA_WRITE_BUFFER_DMA       = 0xeb
	ATA_IDENTIFY_DEVICE        = 0xec
	ATA_IDENTIFY_PACKET_DEVICE = 0xa1
	ATA_CHECK_POWER_MODE       = 0xe5
	ATA_FLUSH_CACHE            = 0xe7

	// ATA feature register values for SMART
	SMART_READ_DATA       = 0xd0
	SMART_READ_THRESHOLDS = 0xd1
	SMART_READ_LOG        = 0xd5
	SMART_WRITE_LOG       = 0xd6
	SMART_RETURN_STATUS   = 0xda

	// SMART command signature in LBA mid / high
	SMART_LBA_MID  = 0x4f
	SMART_LBA_HIGH = 0xc2

	// SMART RETURN STATUS result when a threshold has been exceeded
	SMART_THRESHOLD_EXCEEDED_LBA_MID  = 0xf4
	SMART_THRESHOLD_EXCEEDED_LBA_HIGH = 0x2c

	// Device register: bit 6 selects LBA addressing
	DEVICE_LBA = 0x40

	// General purpose log addresses used by this package
	LOG_DIRECTORY            = 0x00
	LOG_IDENTIFY_DEVICE_DATA = 0x30

	// IDENTIFY DEVICE DATA log pages
	IDDATA_PAGE_SUPPORTED_CAPABILITIES = 0x03
	IDDATA_PAGE_ZONED_INFORMATION      = 0x09

	// Bytes per 512-byte sector / log page
	SectorSize = 512
)
