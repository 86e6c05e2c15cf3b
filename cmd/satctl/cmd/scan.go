// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dswarbrick/passthru"
	"github.com/dswarbrick/passthru/megaraid"
)

func NewScanCmd(root *cobra.Command) *cobra.Command {
	var megaraidHost int

	c := &cobra.Command{
		Use:   "scan",
		Short: "List candidate devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ReadConfig(cmd)
			if err != nil {
				return err
			}
			log := NewLogger(cfg)
			w := cmd.OutOrStdout()

			for _, name := range passthru.ScanDevices() {
				fmt.Fprintln(w, name)
			}

			if megaraidHost < 0 {
				return nil
			}

			checkCaps(log)

			ctl, err := megaraid.OpenController(log)
			if err != nil {
				return err
			}
			defer ctl.Close()

			disks, err := ctl.Disks(uint16(megaraidHost))
			if err != nil {
				return err
			}

			for _, d := range disks {
				fmt.Fprintf(w, "megaraid%d_%d\n", d.Host, d.DeviceID)
			}

			return nil
		},
	}
	c.Flags().IntVar(&megaraidHost, "host", -1, "Also list disks behind this MegaRAID host")
	root.AddCommand(c)
	return c
}

func init() {
	NewScanCmd(rootCmd)
}
