// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

func NewReadLogCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "readlog",
		Short: "Read an ATA log and hex dump it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ReadConfig(cmd)
			if err != nil {
				return err
			}

			address, _ := cmd.Flags().GetUint8("address")
			page, _ := cmd.Flags().GetUint16("page")
			count, _ := cmd.Flags().GetUint16("count")

			d, err := openDevice(cfg, NewLogger(cfg))
			if err != nil {
				return err
			}
			defer d.Close()

			// Log routing depends on the IDENTIFY data
			if _, err := d.IdentifyDevice(); err != nil {
				return err
			}

			buf, err := d.ReadLog(address, page, count)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), hex.Dump(buf))
			return nil
		},
	}
	addDeviceFlags(c)
	c.Flags().Uint8("address", 0, "Log address")
	c.Flags().Uint16("page", 0, "First page")
	c.Flags().Uint16("count", 1, "Number of pages")
	root.AddCommand(c)
	return c
}

func init() {
	NewReadLogCmd(rootCmd)
}
