// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dswarbrick/passthru/result"
	"github.com/dswarbrick/passthru/scsi"
)

// parseHex decodes hex bytes, ignoring whitespace and colon separators.
func parseHex(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.NewReplacer(" ", "", ":", "", "\n", "", "\t", "").Replace(s)

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, result.Wrap(result.BadParameter, "hex", err)
	}

	return b, nil
}

func printSense(w io.Writer, sense []byte) {
	f := scsi.ParseSense(sense, len(sense))

	fmt.Fprintf(w, "Response code:      %#02x (deferred: %v)\n", f.ResponseCode, f.Deferred)
	fmt.Fprintf(w, "Sense:              %s\n", f)
	fmt.Fprintf(w, "Result:             %s\n", scsi.Classify(f.Key, f.ASC, f.ASCQ))
	fmt.Fprintf(w, "Length:             %d\n", f.Length)

	if f.FRU != 0 {
		fmt.Fprintf(w, "FRU:                %#02x\n", f.FRU)
	}

	if f.Filemark || f.EOM || f.ILI {
		fmt.Fprintf(w, "Flags:              filemark=%v eom=%v ili=%v\n", f.Filemark, f.EOM, f.ILI)
	}

	if f.InformationValid {
		fmt.Fprintf(w, "Information:        %#x\n", f.Information)
	}

	if f.CommandSpecificValid {
		fmt.Fprintf(w, "Command specific:   %#x\n", f.CommandSpecific)
	}

	if f.SKSValid {
		fmt.Fprintf(w, "Sense key specific: %s %x\n", f.SKS.Type, f.SKS.Raw)
	}

	if rtf, ok := scsi.ParseATAReturn(sense, len(sense)); ok {
		fmt.Fprintf(w, "ATA status:         %#02x error: %#02x count: %#02x LBA: %#x device: %#02x\n",
			rtf.Status, rtf.Error, rtf.Count, rtf.LBA48(), rtf.Device)
	}
}

func NewSenseCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "sense <hex>",
		Short: "Decode and classify sense data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sense, err := parseHex(args)
			if err != nil {
				return err
			}

			printSense(cmd.OutOrStdout(), sense)
			return nil
		},
	}
	root.AddCommand(c)
	return c
}

func init() {
	NewSenseCmd(rootCmd)
}
