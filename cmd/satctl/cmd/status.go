// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dswarbrick/passthru/result"
)

func NewStatusCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "status",
		Short: "Print the SMART overall health status",
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

			exceeded, err := d.SMARTReturnStatus()
			if err != nil {
				return err
			}

			if exceeded {
				fmt.Fprintln(cmd.OutOrStdout(), "SMART overall-health self-assessment test result: FAILED!")
				return result.New(result.Failure, "smart return status")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "SMART overall-health self-assessment test result: PASSED")
			return nil
		},
	}
	addDeviceFlags(c)
	root.AddCommand(c)
	return c
}

func init() {
	NewStatusCmd(rootCmd)
}
