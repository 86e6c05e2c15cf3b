// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"io"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"github.com/dswarbrick/passthru"
	"github.com/dswarbrick/passthru/ata"
	"github.com/dswarbrick/passthru/utils"
)

func NewIdentifyCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "identify",
		Short: "Identify an ATA device and print its capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ReadConfig(cmd)
			if err != nil {
				return err
			}

			d, err := openDevice(cfg, NewLogger(cfg))
			if err != nil {
				return err
			}
			defer d.Close()

			id, err := d.IdentifyDevice()
			if err != nil {
				return err
			}

			if dump, _ := cmd.Flags().GetBool("dump"); dump {
				fmt.Fprintln(cmd.OutOrStdout(), litter.Sdump(d.Capabilities()))
				return nil
			}

			printIdentify(cmd.OutOrStdout(), id, d)
			return nil
		},
	}
	addDeviceFlags(c)
	c.Flags().Bool("dump", false, "Dump the capability model")
	root.AddCommand(c)
	return c
}

func printIdentify(w io.Writer, id *ata.IdentifyData, d *passthru.Device) {
	m := d.Capabilities()

	fmt.Fprintf(w, "Model number:       %s\n", m.ModelNumber)
	fmt.Fprintf(w, "Serial number:      %s\n", m.SerialNumber)
	fmt.Fprintf(w, "Firmware revision:  %s\n", m.FirmwareRevision)
	if m.WWNValid {
		fmt.Fprintf(w, "LU WWN device id:   %s\n", id.WWNString())
	}
	fmt.Fprintf(w, "ATA version:        %s\n", id.ATAMajorVersion())
	fmt.Fprintf(w, "Transport:          %s\n", id.Transport())
	fmt.Fprintf(w, "Capacity:           %s\n", utils.FormatBytes((m.MaxLBA+1)*uint64(m.LogicalSectorSize)))
	fmt.Fprintf(w, "Sector size:        %d bytes logical, %d bytes physical\n", m.LogicalSectorSize, m.PhysicalSectorSize)
	fmt.Fprintf(w, "48-bit addressing:  %v\n", m.Addressing48)
	fmt.Fprintf(w, "DMA mode:           %s\n", m.DMAMode)
	fmt.Fprintf(w, "GPL:                %v (in use: %v)\n", m.GPL, d.GPL())
	fmt.Fprintf(w, "Zoned:              %s\n", m.Zoned())

	hacks := d.Hacks()
	fmt.Fprintf(w, "Pass-through:       %s\n", hacks.PassThrough)
	for f := passthru.FamilyLogRead; f <= passthru.FamilyStreamWrite; f++ {
		if hacks.DMA(f) {
			fmt.Fprintf(w, "DMA %-18s %#02x\n", f.String()+":", f.Opcode(true))
		}
	}
}

func init() {
	NewIdentifyCmd(rootCmd)
}
