// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dswarbrick/passthru/result"
	"github.com/dswarbrick/passthru/scsi"
)

func NewSelfTestCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "selftest",
		Short: "Check every sense key / ASC / ASCQ combination classifies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scsi.SelfTest(); err != nil {
				return result.Wrap(result.Failure, "selftest", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "sense classification: OK")
			return nil
		},
	}
	root.AddCommand(c)
	return c
}

func init() {
	NewSelfTestCmd(rootCmd)
}
