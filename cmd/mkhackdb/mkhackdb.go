// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Smartmontools drivedb.h USB bridge entries to YAML hack database converter.
//
package main

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/scanner"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/passthru/hackdb"
	"github.com/dswarbrick/passthru/scsi"
)

const (
	defaultDrivedbURL = "https://www.smartmontools.org/export/HEAD/trunk/smartmontools/drivedb.h"
	usbPrefix         = "USB: "
)

// bridgePreset converts the "-d" option of a drivedb.h USB entry. ok is false for bridge types
// without a pass-through implementation.
func bridgePreset(presets string) (b hackdb.Bridge, ok bool) {
	tokens := strings.Fields(presets)

	for t := 0; t+1 < len(tokens); t += 2 {
		if tokens[t] != "-d" {
			continue
		}

		args := strings.Split(tokens[t+1], ",")

		switch args[0] {
		case "sat":
			b.PassThrough = scsi.PassThroughSAT16.String()
			if len(args) > 1 && args[1] == "12" {
				b.PassThrough = scsi.PassThroughSAT12.String()
			}
		case "usbjmicron":
			b.PassThrough = scsi.PassThroughJMicron.String()

			for _, arg := range args[1:] {
				switch arg {
				case "x":
					b.PassThrough = scsi.PassThroughJMicronExt.String()
				case "0", "1":
					port, _ := strconv.Atoi(arg)
					b.Port = &port
				default:
					return b, false
				}
			}
		default:
			return b, false
		}

		b.NoGPL = b.PassThrough != scsi.PassThroughSAT16.String()

		return b, true
	}

	return b, false
}

// bridgeName turns "USB: Device; Bridge" into "Device (Bridge)", or whichever half is present.
func bridgeName(family string) string {
	parts := strings.SplitN(strings.TrimPrefix(family, usbPrefix), ";", 2)
	device := strings.TrimSpace(parts[0])

	var bridge string
	if len(parts) > 1 {
		bridge = strings.TrimSpace(parts[1])
	}

	switch {
	case device == "":
		return bridge
	case bridge == "":
		return device
	}

	return device + " (" + bridge + ")"
}

func parseDrivedb(src io.Reader) (string, []hackdb.Bridge, int) {
	var (
		s       scanner.Scanner
		prev    rune
		idx     int
		skipped int
	)

	header := "# This file was generated from:\n"
	bridges := []hackdb.Bridge{{Name: "DEFAULT", PassThrough: scsi.PassThroughSAT16.String()}}
	items := make([]string, 5)

	s.Init(src)
	s.Mode ^= scanner.SkipComments

	// Extremely simple state machine like processing of tokens.
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		if prev == 0 && tok == scanner.Comment {
			// First comment from drivedb.h should be copyright / license header. Convert C-style
			// comment to a YAML comment.
			for _, line := range strings.Split(s.TokenText(), "\n") {
				header += "# " + strings.TrimLeft(line, "/* ") + "\n"
			}
		} else if (prev == '{' || prev == ',') && tok == scanner.String {
			if idx < len(items) {
				items[idx] = strings.Trim(s.TokenText(), `"`)
			}
		} else if prev == scanner.String && tok == ',' {
			idx++
		} else if (prev == scanner.String || prev == scanner.Comment) && tok == scanner.String {
			if idx < len(items) {
				items[idx] += strings.Trim(s.TokenText(), `"`)
			}
		} else if tok == '}' {
			for i := range items {
				if tmp, err := strconv.Unquote(`"` + items[i] + `"`); err == nil {
					items[i] = tmp
				}
			}

			if strings.HasPrefix(items[0], usbPrefix) {
				if b, ok := bridgePreset(items[4]); ok {
					b.Name = bridgeName(items[0])
					b.USBID = items[1]
					b.BCDDevice = items[2]
					b.Warning = items[3]
					bridges = append(bridges, b)
				} else {
					log.WithFields(log.Fields{
						"name":    items[0],
						"presets": items[4],
					}).Debug("skipping unsupported bridge")
					skipped++
				}
			}

			items = make([]string, 5)
			idx = 0
		}

		prev = tok
	}

	return header, bridges, skipped
}

func main() {
	var (
		drivedbURL              string
		inFilename, outFilename string
		debug                   bool
		reader                  io.Reader
	)

	flag.StringVar(&drivedbURL, "url", defaultDrivedbURL, "Optional drivedb URL")
	flag.StringVar(&inFilename, "in", "", "Optional path to local drivedb.h")
	flag.StringVarP(&outFilename, "out", "o", "bridges.yaml", "Output .yaml filename")
	flag.BoolVar(&debug, "debug", false, "Log skipped entries")
	flag.Parse()

	if debug {
		log.SetLevel(log.DebugLevel)
	}

	if inFilename != "" {
		f, err := os.Open(inFilename)
		if err != nil {
			log.WithError(err).Fatal("cannot read drivedb")
		}

		defer f.Close()
		log.Infof("Reading from local file %s", f.Name())
		reader = f
	} else {
		resp, err := http.Get(drivedbURL)
		if err != nil {
			log.WithError(err).Fatal("cannot fetch drivedb")
		}

		defer resp.Body.Close()
		log.Infof("Reading from fetched drivedb %s", drivedbURL)
		reader = resp.Body
	}

	header, bridges, skipped := parseDrivedb(reader)
	log.Infof("Parsed drivedb.h - %d USB bridges, %d skipped", len(bridges)-1, skipped)

	destFile, err := os.Create(outFilename)
	if err != nil {
		log.WithError(err).Fatal("cannot create output")
	}

	defer destFile.Close()
	destFile.WriteString(header)

	enc := yaml.NewEncoder(destFile)

	if err := enc.Encode(hackdb.HackDb{Bridges: bridges}); err != nil {
		log.WithError(err).Fatal("error encoding yaml")
	}

	log.Infof("Successfully wrote output to %s", outFilename)
}
