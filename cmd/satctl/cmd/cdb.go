// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dswarbrick/passthru/ata"
	"github.com/dswarbrick/passthru/result"
	"github.com/dswarbrick/passthru/scsi"
)

var protocolNames = map[string]ata.Protocol{
	"hard-reset":      ata.ProtocolHardReset,
	"srst":            ata.ProtocolSoftReset,
	"non-data":        ata.ProtocolNoData,
	"pio":             ata.ProtocolPIO,
	"dma":             ata.ProtocolDMA,
	"dma-queued":      ata.ProtocolDMAQueued,
	"fpdma":           ata.ProtocolFPDMA,
	"device-reset":    ata.ProtocolDeviceReset,
	"diag":            ata.ProtocolDeviceDiagnostic,
	"udma":            ata.ProtocolUDMA,
	"return-response": ata.ProtocolReturnResponse,
}

var directionNames = map[string]ata.Direction{
	"none": ata.DirNoData,
	"in":   ata.DirIn,
	"out":  ata.DirOut,
}

// cdbOptions describes one ATA command to encode.
type cdbOptions struct {
	Command     uint8
	Feature     uint16
	Count       uint16
	LBA         uint64
	Device      uint8
	Protocol    string
	Direction   string
	TransferLen uint32
	Ext         bool
	PassThrough string
	Port        int
	CheckCond   bool
	FIS         bool
	PMPort      uint8
}

func (o *cdbOptions) taskFile() (*ata.TaskFile, error) {
	proto, ok := protocolNames[o.Protocol]
	if !ok {
		return nil, result.Newf(result.BadParameter, "cdb", "unknown protocol %q", o.Protocol)
	}

	dir, ok := directionNames[o.Direction]
	if !ok {
		return nil, result.Newf(result.BadParameter, "cdb", "unknown direction %q", o.Direction)
	}

	tf := &ata.TaskFile{
		Command:     o.Command,
		Device:      o.Device,
		Protocol:    proto,
		Direction:   dir,
		TransferLen: o.TransferLen,
		Ext:         o.Ext,
	}
	tf.SetFeature16(o.Feature)
	tf.SetCount16(o.Count)

	if o.Ext {
		tf.SetLBA48(o.LBA)
	} else {
		if o.LBA > 0x0fffffff {
			return nil, result.Newf(result.BadParameter, "cdb", "LBA %#x needs a 48-bit command", o.LBA)
		}
		tf.SetLBA28(uint32(o.LBA))
		tf.Device |= uint8(o.LBA>>24) & 0x0f
	}

	return tf, nil
}

// encodeCDB builds the pass-through CDB, or the Register H2D FIS, for o.
func encodeCDB(o *cdbOptions) ([]byte, error) {
	tf, err := o.taskFile()
	if err != nil {
		return nil, err
	}

	if o.FIS {
		fis, err := ata.BuildH2DFIS(tf, o.PMPort)
		if err != nil {
			return nil, err
		}
		return fis.Bytes(), nil
	}

	pt, err := scsi.ParsePassThrough(o.PassThrough)
	if err != nil {
		return nil, err
	}

	switch pt {
	case scsi.PassThroughSAT16:
		cdb, err := scsi.SAT16(tf, o.CheckCond)
		return cdb[:], err
	case scsi.PassThroughSAT12:
		cdb, err := scsi.SAT12(tf, o.CheckCond)
		return cdb[:], err
	}

	port := o.Port
	if port < 0 {
		port = 0
	}

	return scsi.JMicron(tf, port, pt == scsi.PassThroughJMicronExt)
}

func printCDB(w io.Writer, b []byte) {
	fmt.Fprintf(w, "%s\n", hex.EncodeToString(b))
}

func NewCDBCmd(root *cobra.Command) *cobra.Command {
	o := &cdbOptions{}

	c := &cobra.Command{
		Use:   "cdb",
		Short: "Encode an ATA command as a pass-through CDB or H2D FIS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := encodeCDB(o)
			if err != nil {
				return err
			}

			printCDB(cmd.OutOrStdout(), b)
			return nil
		},
	}

	f := c.Flags()
	f.Uint8Var(&o.Command, "command", ata.ATA_IDENTIFY_DEVICE, "ATA command opcode")
	f.Uint16Var(&o.Feature, "feature", 0, "feature register (16 bits for 48-bit commands)")
	f.Uint16Var(&o.Count, "count", 1, "count register (16 bits for 48-bit commands)")
	f.Uint64Var(&o.LBA, "lba", 0, "logical block address")
	f.Uint8Var(&o.Device, "device-reg", ata.DEVICE_LBA, "device register")
	f.StringVar(&o.Protocol, "protocol", "pio", "ATA protocol (non-data, pio, dma, udma, fpdma, ...)")
	f.StringVar(&o.Direction, "dir", "in", "data direction (none, in, out)")
	f.Uint32Var(&o.TransferLen, "length", ata.SectorSize, "data transfer length in bytes")
	f.BoolVar(&o.Ext, "ext", false, "48-bit command")
	f.StringVar(&o.PassThrough, "passthrough", "sat16", "pass-through CDB (sat16, sat12, jmicron, jmicron-ext)")
	f.IntVar(&o.Port, "port", 0, "JMicron bridge port")
	f.BoolVar(&o.CheckCond, "ck-cond", false, "set CK_COND to request the returned registers")
	f.BoolVar(&o.FIS, "fis", false, "emit a Register H2D FIS instead of a CDB")
	f.Uint8Var(&o.PMPort, "pm-port", 0, "port multiplier port for --fis")

	root.AddCommand(c)
	return c
}

func init() {
	NewCDBCmd(rootCmd)
}
