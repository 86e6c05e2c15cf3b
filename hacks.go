// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Per-device transport hacks learned while issuing commands.

package passthru

import (
	"fmt"

	"github.com/dswarbrick/passthru/ata"
	"github.com/dswarbrick/passthru/scsi"
)

// Family is a group of ATA commands which exist in both a DMA and a PIO variant.
type Family int

const (
	FamilyLogRead Family = iota
	FamilyLogWrite
	FamilyBufferRead
	FamilyBufferWrite
	FamilyDownloadMicrocode
	FamilyTrustedSend
	FamilyTrustedReceive
	FamilyStreamRead
	FamilyStreamWrite

	numFamilies
)

type familyInfo struct {
	name string
	dma  uint8
	pio  uint8
	// ext marks the 48-bit command families
	ext bool
	dir ata.Direction
}

var families = [numFamilies]familyInfo{
	FamilyLogRead:           {"log read", ata.ATA_READ_LOG_DMA_EXT, ata.ATA_READ_LOG_EXT, true, ata.DirIn},
	FamilyLogWrite:          {"log write", ata.ATA_WRITE_LOG_DMA_EXT, ata.ATA_WRITE_LOG_EXT, true, ata.DirOut},
	FamilyBufferRead:        {"buffer read", ata.ATA_READ_BUFFER_DMA, ata.ATA_READ_BUFFER, false, ata.DirIn},
	FamilyBufferWrite:       {"buffer write", ata.ATA_WRITE_BUFFER_DMA, ata.ATA_WRITE_BUFFER, false, ata.DirOut},
	FamilyDownloadMicrocode: {"download microcode", ata.ATA_DOWNLOAD_MICROCODE_DMA, ata.ATA_DOWNLOAD_MICROCODE, false, ata.DirOut},
	FamilyTrustedSend:       {"trusted send", ata.ATA_TRUSTED_SEND_DMA, ata.ATA_TRUSTED_SEND, false, ata.DirOut},
	FamilyTrustedReceive:    {"trusted receive", ata.ATA_TRUSTED_RECEIVE_DMA, ata.ATA_TRUSTED_RECEIVE, false, ata.DirIn},
	FamilyStreamRead:        {"stream read", ata.ATA_READ_STREAM_DMA_EXT, ata.ATA_READ_STREAM_EXT, true, ata.DirIn},
	FamilyStreamWrite:       {"stream write", ata.ATA_WRITE_STREAM_DMA_EXT, ata.ATA_WRITE_STREAM_EXT, true, ata.DirOut},
}

func (f Family) String() string {
	if f >= 0 && f < numFamilies {
		return families[f].name
	}

	return fmt.Sprintf("family(%d)", int(f))
}

// Opcode returns the ATA command for the DMA or PIO variant of the family.
func (f Family) Opcode(dma bool) uint8 {
	if dma {
		return families[f].dma
	}

	return families[f].pio
}

// FamilyState is the position of a command family in the DMA to PIO retry state machine.
type FamilyState int

const (
	// AttemptPreferred issues the DMA variant whenever the device advertises it.
	AttemptPreferred FamilyState = iota
	// Fallback is entered when the DMA variant was rejected; the PIO variant is tried next.
	Fallback
	// Stable means the PIO variant succeeded after a rejection and is used from now on.
	Stable
)

func (s FamilyState) String() string {
	switch s {
	case AttemptPreferred:
		return "attempt preferred"
	case Fallback:
		return "fallback"
	case Stable:
		return "stable"
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// HackProfile records what has been learned about one device's transport. It is created with
// the device handle and only changed by the retry engine.
type HackProfile struct {
	state [numFamilies]FamilyState
	// dma is the sticky per-family DMA flag, seeded from the capability model
	dma [numFamilies]bool

	// PassThrough is the CDB currently used to carry ATA commands.
	PassThrough scsi.PassThrough
	// SAT12Learned is set once a SAT (16) rejection switched PassThrough to SAT (12).
	SAT12Learned bool
	// AlwaysCheckCondition sets CK_COND on every SAT CDB, for bridges that otherwise drop the
	// returned registers.
	AlwaysCheckCondition bool

	unsupported map[uint8]bool
}

// State returns the retry state of family f.
func (p *HackProfile) State(f Family) FamilyState {
	return p.state[f]
}

// DMA returns the sticky DMA flag of family f.
func (p *HackProfile) DMA(f Family) bool {
	return p.dma[f]
}

// Unsupported reports whether the device rejected the ATA command as an invalid opcode.
func (p *HackProfile) Unsupported(opcode uint8) bool {
	return p.unsupported[opcode]
}

// seed loads the sticky DMA flags from a freshly interpreted capability model. Families which
// already fell back keep their cleared flag.
func (p *HackProfile) seed(m *ata.CapabilityModel) {
	flags := [numFamilies]bool{
		FamilyLogRead:           m.DMA.LogRead,
		FamilyLogWrite:          m.DMA.LogWrite,
		FamilyBufferRead:        m.DMA.BufferRead,
		FamilyBufferWrite:       m.DMA.BufferWrite,
		FamilyDownloadMicrocode: m.DMA.DownloadMicrocode,
		FamilyTrustedSend:       m.DMA.TrustedSend,
		FamilyTrustedReceive:    m.DMA.TrustedReceive,
		FamilyStreamRead:        m.DMA.StreamRead,
		FamilyStreamWrite:       m.DMA.StreamWrite,
	}

	for f := range flags {
		if p.state[f] == AttemptPreferred {
			p.dma[f] = flags[f]
		}
	}
}

func (p *HackProfile) markUnsupported(opcode uint8) {
	if p.unsupported == nil {
		p.unsupported = make(map[uint8]bool)
	}

	p.unsupported[opcode] = true
}
