// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// DMA to PIO retry engine.

package passthru

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/passthru/ata"
	"github.com/dswarbrick/passthru/scsi"
)

// variant returns a copy of tf carrying the DMA or PIO command of family f.
func variant(f Family, tf *ata.TaskFile, dma bool) *ata.TaskFile {
	v := *tf
	v.Command = f.Opcode(dma)
	v.Ext = families[f].ext
	v.Direction = families[f].dir
	v.Protocol = ata.ProtocolPIO

	if dma {
		v.Protocol = ata.ProtocolDMA
	}

	return &v
}

// dmaRejected reports whether err carries exactly ILLEGAL REQUEST / INVALID FIELD IN CDB. The raw
// sense triple is inspected rather than the classified result, since other causes classify the
// same way.
func dmaRejected(err error) bool {
	var se *scsi.StatusError
	if !errors.As(err, &se) || len(se.Sense) == 0 {
		return false
	}

	key, asc, ascq, _ := scsi.SenseKeyASC(se.Sense, len(se.Sense))

	return key == scsi.SENSE_ILLEGAL_REQUEST && asc == 0x24 && ascq == 0x00
}

func (d *Device) preferDMA(f Family) bool {
	return d.hacks.dma[f] && d.model != nil && d.model.DMAMode != ata.DMAModeNone
}

// issue runs a command of family f. The DMA variant is preferred while the family's sticky flag
// is set; if the transport rejects it, the flag is cleared and the PIO variant is tried. A PIO
// failure restores the flag, since the rejection evidently had nothing to do with DMA.
func (d *Device) issue(f Family, tf *ata.TaskFile, data []byte) (ata.ReturnTaskFile, error) {
	if !d.preferDMA(f) {
		return d.execute(variant(f, tf, false), data, false)
	}

	rtf, err := d.execute(variant(f, tf, true), data, false)
	if err == nil || !dmaRejected(err) {
		return rtf, err
	}

	log := d.log.WithFields(logrus.Fields{
		"family": f,
		"opcode": f.Opcode(false),
	})

	d.hacks.dma[f] = false
	d.hacks.state[f] = Fallback
	log.Debug("DMA command rejected, retrying with PIO")

	rtf, err = d.execute(variant(f, tf, false), data, false)
	if err != nil {
		d.hacks.dma[f] = true
		d.hacks.state[f] = AttemptPreferred
		log.WithError(err).Debug("PIO command failed, restoring DMA flag")
		return rtf, err
	}

	d.hacks.state[f] = Stable
	log.Info("transport does not pass DMA commands, using PIO")

	return rtf, nil
}
