// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dswarbrick/passthru/result"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "satctl",
		Short:         "Issue ATA commands through SCSI / ATA translation layers",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	cmd.PersistentFlags().String("config", "", "Optional config file")
	cmd.PersistentFlags().String("hackdb", "", "USB bridge hack database (default: built-in)")
	cmd.PersistentFlags().Duration("timeout", 0, "Command timeout")
	_ = viper.BindPFlag("debug", cmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("hackdb", cmd.PersistentFlags().Lookup("hackdb"))
	_ = viper.BindPFlag("timeout", cmd.PersistentFlags().Lookup("timeout"))
	return cmd
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = NewRootCmd()

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		// The result code doubles as exit status
		code := int(result.CodeOf(err))
		if code == 0 {
			code = 1
		}
		os.Exit(code)
	}
}
