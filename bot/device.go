// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// USB-attached SCSI device driven through libusb.

package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/passthru/result"
	"github.com/dswarbrick/passthru/scsi"
)

type bulkIn interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

type bulkOut interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

// Device is a USB mass storage device speaking the Bulk-Only Transport. It implements
// scsi.Transport.
type Device struct {
	VendorID  gousb.ID
	ProductID gousb.ID
	// Release is the device release number (bcdDevice)
	Release gousb.BCD
	// Product is the USB product string, used to match bridge presets
	Product string

	ctx    *gousb.Context
	dev    *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	in     bulkIn
	out    bulkOut
	tag    uint32
	lun    uint8
	log    logrus.FieldLogger
}

// Open opens the first USB device matching vid:pid and claims its mass storage interface.
func Open(vid, pid gousb.ID, log logrus.FieldLogger) (*Device, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("open device %s:%s: %v", vid, pid, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("device %s:%s not found", vid, pid)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		log.WithError(err).Debug("kernel driver auto-detach not supported")
	}

	d := &Device{VendorID: vid, ProductID: pid, Release: dev.Desc.Device, ctx: ctx, dev: dev, tag: 1, log: log}

	if d.Product, err = dev.Product(); err != nil {
		log.WithError(err).Debug("cannot read USB product string")
	}

	if err := d.claim(); err != nil {
		d.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"usb_id":  fmt.Sprintf("%s:%s", vid, pid),
		"product": d.Product,
	}).Info("opened USB mass storage device")

	return d, nil
}

// claim selects the first bulk-only mass storage interface and its bulk endpoints.
func (d *Device) claim() error {
	var err error

	if d.config, err = d.dev.Config(1); err != nil {
		return fmt.Errorf("get config: %v", err)
	}

	for _, iface := range d.config.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class != gousb.ClassMassStorage || alt.Protocol != gousb.Protocol(ProtocolBulkOnly) {
				continue
			}

			intf, err := d.config.Interface(iface.Number, alt.Alternate)
			if err != nil {
				continue
			}

			var in *gousb.InEndpoint
			var out *gousb.OutEndpoint

			for _, ep := range intf.Setting.Endpoints {
				if ep.TransferType != gousb.TransferTypeBulk {
					continue
				}
				if ep.Direction == gousb.EndpointDirectionIn && in == nil {
					in, _ = intf.InEndpoint(ep.Number)
				} else if ep.Direction == gousb.EndpointDirectionOut && out == nil {
					out, _ = intf.OutEndpoint(ep.Number)
				}
			}

			if in == nil || out == nil {
				intf.Close()
				continue
			}

			d.intf, d.in, d.out = intf, in, out
			return nil
		}
	}

	return errors.New("no bulk-only mass storage interface found")
}

// Close releases the interface, configuration, device and libusb context.
func (d *Device) Close() error {
	if d.intf != nil {
		d.intf.Close()
	}

	if d.config != nil {
		d.config.Close()
	}

	var err error
	if d.dev != nil {
		err = d.dev.Close()
	}

	if d.ctx != nil {
		d.ctx.Close()
	}

	return err
}

func (d *Device) nextTag() uint32 {
	t := d.tag
	d.tag++

	return t
}

func transferError(ctx context.Context, op string, err error) error {
	if ctx.Err() == context.DeadlineExceeded || errors.Is(err, gousb.TransferTimedOut) || errors.Is(err, gousb.ErrorTimeout) {
		return result.Wrap(result.Timeout, "bot", fmt.Errorf("%s: %w", op, err))
	}

	return fmt.Errorf("%s: %w", op, err)
}

func (d *Device) readCSW(ctx context.Context, tag uint32) (CSW, error) {
	buf := make([]byte, CSWSize)

	n, err := d.in.ReadContext(ctx, buf)
	if err != nil {
		return CSW{}, transferError(ctx, "CSW read", err)
	}

	csw, err := ParseCSW(buf[:n])
	if err != nil {
		return csw, err
	}

	if csw.Tag != tag {
		return csw, result.Newf(result.Failure, "bot", "CSW tag %d does not match CBW tag %d", csw.Tag, tag)
	}

	return csw, nil
}

// SendCDB runs one command through the command, data and status stages. A failed command is
// followed by REQUEST SENSE and reported as CHECK CONDITION with the sense data attached.
func (d *Device) SendCDB(cmd *scsi.Command) (*scsi.Response, error) {
	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = scsi.DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var flags uint8
	var dataLen int

	switch cmd.Direction {
	case scsi.DataIn:
		flags, dataLen = CBWFlagDataIn, len(cmd.Data)
	case scsi.DataOut:
		flags, dataLen = CBWFlagDataOut, len(cmd.Data)
	}

	tag := d.nextTag()

	cbw, err := BuildCBW(tag, uint32(dataLen), flags, d.lun, cmd.CDB)
	if err != nil {
		return nil, err
	}

	if _, err := d.out.WriteContext(ctx, cbw); err != nil {
		return nil, transferError(ctx, "CBW write", err)
	}

	if dataLen > 0 {
		var err error
		if cmd.Direction == scsi.DataIn {
			_, err = d.in.ReadContext(ctx, cmd.Data)
		} else {
			_, err = d.out.WriteContext(ctx, cmd.Data)
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, transferError(ctx, "data stage", err)
			}
			// The device may stall the data stage and still report status
			d.log.WithError(err).WithField("opcode", fmt.Sprintf("%#02x", cmd.CDB[0])).Debug("data stage ended early")
		}
	}

	csw, err := d.readCSW(ctx, tag)
	if err != nil {
		return nil, err
	}

	resp := &scsi.Response{Resid: int(csw.Residue)}

	switch csw.Status {
	case CSWStatusGood:
		resp.Status = scsi.SAM_STAT_GOOD
	case CSWStatusFailed:
		resp.Status = scsi.SAM_STAT_CHECK_CONDITION
		if cmd.CDB[0] != scsi.SCSI_REQUEST_SENSE {
			sense, err := scsi.RequestSense(d)
			if err != nil {
				d.log.WithError(err).Debug("REQUEST SENSE failed")
			}
			resp.Sense = sense
		}
	default:
		return nil, result.Newf(result.Failure, "bot", "CSW status %#02x (phase error)", csw.Status)
	}

	return resp, nil
}
