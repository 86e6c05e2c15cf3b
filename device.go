// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// ATA device handle on top of a SCSI transport.

package passthru

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/passthru/ata"
	"github.com/dswarbrick/passthru/result"
	"github.com/dswarbrick/passthru/scsi"
)

// BridgeOptions describes how ATA commands reach the drive. They are fixed for the lifetime of a
// device handle.
type BridgeOptions struct {
	PassThrough scsi.PassThrough
	// Port is the JMicron bridge port (0 or 1); -1 selects the first connected port.
	Port int
	// NoGPL forces SMART READ / WRITE LOG even when the drive supports general purpose logging.
	NoGPL bool
	// AlwaysCheckCondition requests the returned registers with every SAT command.
	AlwaysCheckCondition bool
}

// Options configures a device handle.
type Options struct {
	Bridge  BridgeOptions
	Timeout time.Duration
	Log     logrus.FieldLogger
}

// Device is an ATA device reached through a SCSI transport. A Device is not safe for concurrent
// use; callers must serialize commands.
type Device struct {
	t       scsi.Transport
	bridge  BridgeOptions
	timeout time.Duration
	log     logrus.FieldLogger

	hacks HackProfile
	model *ata.CapabilityModel
	// gpl is decided once, when the device is identified
	gpl bool
	// proven is set once any pass-through command has completed
	proven bool
}

// Open wraps a transport in a device handle. The transport is owned by the handle from now on.
func Open(t scsi.Transport, opts Options) *Device {
	d := &Device{
		t:       t,
		bridge:  opts.Bridge,
		timeout: opts.Timeout,
		log:     opts.Log,
	}

	if d.timeout == 0 {
		d.timeout = scsi.DefaultTimeout
	}

	if d.log == nil {
		d.log = logrus.StandardLogger()
	}

	d.hacks.PassThrough = opts.Bridge.PassThrough
	d.hacks.AlwaysCheckCondition = opts.Bridge.AlwaysCheckCondition

	return d
}

// Close closes the underlying transport.
func (d *Device) Close() error {
	return d.t.Close()
}

// Hacks returns a snapshot of the transport hacks learned so far.
func (d *Device) Hacks() HackProfile {
	return d.hacks
}

// Capabilities returns the capability model, or nil if the device has not been identified.
func (d *Device) Capabilities() *ata.CapabilityModel {
	return d.model
}

func dataDirection(dir ata.Direction) scsi.DataDirection {
	switch dir {
	case ata.DirIn:
		return scsi.DataIn
	case ata.DirOut:
		return scsi.DataOut
	}

	return scsi.DataNone
}

// encode wraps tf in the CDB of the current pass-through variant.
func (d *Device) encode(tf *ata.TaskFile, ckCond bool) ([]byte, error) {
	switch d.hacks.PassThrough {
	case scsi.PassThroughSAT16:
		cdb, err := scsi.SAT16(tf, ckCond)
		return cdb[:], err
	case scsi.PassThroughSAT12:
		cdb, err := scsi.SAT12(tf, ckCond)
		return cdb[:], err
	case scsi.PassThroughJMicron, scsi.PassThroughJMicronExt:
		port, err := d.jmicronPort()
		if err != nil {
			return nil, err
		}
		return scsi.JMicron(tf, port, d.hacks.PassThrough == scsi.PassThroughJMicronExt)
	}

	return nil, result.Newf(result.BadParameter, "passthru", "unknown pass-through %d", d.hacks.PassThrough)
}

func (d *Device) send(cdb []byte, dir scsi.DataDirection, data []byte) (*scsi.Response, error) {
	return d.t.SendCDB(&scsi.Command{CDB: cdb, Direction: dir, Data: data, Timeout: d.timeout})
}

// execute issues one ATA command. needRegs asks for the returned task file registers. A transport
// error, including a timeout, is returned unchanged.
func (d *Device) execute(tf *ata.TaskFile, data []byte, needRegs bool) (ata.ReturnTaskFile, error) {
	var rtf ata.ReturnTaskFile

	if d.hacks.Unsupported(tf.Command) {
		return rtf, result.Newf(result.NotSupported, "ata", "command %#02x rejected by transport", tf.Command)
	}

	cdb, err := d.encode(tf, needRegs || d.hacks.AlwaysCheckCondition)
	if err != nil {
		return rtf, err
	}

	resp, err := d.send(cdb, dataDirection(tf.Direction), data)
	if err != nil {
		return rtf, err
	}

	if resp.CheckCondition() && d.learnSAT12(tf, resp) {
		cdb, err = d.encode(tf, needRegs || d.hacks.AlwaysCheckCondition)
		if err != nil {
			return rtf, err
		}

		if resp, err = d.send(cdb, dataDirection(tf.Direction), data); err != nil {
			return rtf, err
		}
	}

	switch resp.Status {
	case scsi.SAM_STAT_GOOD:
		d.proven = true

		if needRegs && d.jmicron() {
			return d.jmicronRegisters()
		}

		return rtf, nil
	case scsi.SAM_STAT_CHECK_CONDITION:
		return d.checkCondition(tf, resp)
	}

	return rtf, result.Wrap(result.Failure, "ata", &scsi.StatusError{Status: resp.Status, Sense: resp.Sense})
}

// checkCondition classifies the sense data of a failed command. SAT layers report the returned
// registers as recovered errors, which count as success.
func (d *Device) checkCondition(tf *ata.TaskFile, resp *scsi.Response) (ata.ReturnTaskFile, error) {
	statusErr := &scsi.StatusError{Status: resp.Status, Sense: resp.Sense}

	if len(resp.Sense) == 0 {
		return ata.ReturnTaskFile{}, result.Wrap(result.Failure, "ata", statusErr)
	}

	rtf, _ := scsi.ParseATAReturn(resp.Sense, len(resp.Sense))

	code := scsi.ClassifySense(resp.Sense, len(resp.Sense))
	if code == result.Success {
		d.proven = true
		return rtf, nil
	}

	key, asc, ascq, _ := scsi.SenseKeyASC(resp.Sense, len(resp.Sense))
	if d.proven && key == scsi.SENSE_ILLEGAL_REQUEST && asc == 0x20 && ascq == 0x00 {
		d.hacks.markUnsupported(tf.Command)
		d.log.WithField("opcode", tf.Command).Info("ATA command rejected by transport")
	}

	return rtf, result.Wrap(code, "ata", statusErr)
}

// learnSAT12 switches a SAT (16) device to SAT (12) when the bridge does not know the ATA
// PASS-THROUGH (16) opcode. It reports whether the command should be resent.
func (d *Device) learnSAT12(tf *ata.TaskFile, resp *scsi.Response) bool {
	if d.proven || d.hacks.PassThrough != scsi.PassThroughSAT16 || tf.Requires48Bit() {
		return false
	}

	key, asc, ascq, _ := scsi.SenseKeyASC(resp.Sense, len(resp.Sense))
	if key != scsi.SENSE_ILLEGAL_REQUEST || asc != 0x20 || ascq != 0x00 {
		return false
	}

	d.hacks.PassThrough = scsi.PassThroughSAT12
	d.hacks.SAT12Learned = true
	d.log.Info("ATA PASS-THROUGH (16) rejected, switching to ATA PASS-THROUGH (12)")

	return true
}

func (d *Device) jmicron() bool {
	return d.hacks.PassThrough == scsi.PassThroughJMicron || d.hacks.PassThrough == scsi.PassThroughJMicronExt
}

// jmicronPort returns the configured bridge port, probing the port bitmap register on first use
// when none was configured.
func (d *Device) jmicronPort() (int, error) {
	if d.bridge.Port >= 0 {
		return d.bridge.Port, nil
	}

	var bitmap [1]byte

	cdb := scsi.JMicronReadRegister(scsi.JMICRON_REG_PORTS, uint16(len(bitmap)), d.hacks.PassThrough == scsi.PassThroughJMicronExt)
	if err := d.readRegister(cdb, bitmap[:]); err != nil {
		return -1, err
	}

	port, err := scsi.JMicronConnectedPort(bitmap[0])
	if err != nil {
		return -1, err
	}

	d.log.WithField("port", port).Debug("JMicron bridge port detected")
	d.bridge.Port = port

	return port, nil
}

func (d *Device) readRegister(cdb []byte, buf []byte) error {
	resp, err := d.send(cdb, scsi.DataIn, buf)
	if err != nil {
		return err
	}

	if resp.Status != scsi.SAM_STAT_GOOD {
		return result.Wrap(scsi.ClassifySense(resp.Sense, len(resp.Sense)), "jmicron", &scsi.StatusError{Status: resp.Status, Sense: resp.Sense})
	}

	return nil
}

// jmicronRegisters reads back the task file of the last command from the bridge.
func (d *Device) jmicronRegisters() (ata.ReturnTaskFile, error) {
	regs := make([]byte, scsi.JMICRON_RESULT_LEN)

	cdb := scsi.JMicronReadRegister(scsi.JMicronResultRegister(d.bridge.Port), uint16(len(regs)), d.hacks.PassThrough == scsi.PassThroughJMicronExt)
	if err := d.readRegister(cdb, regs); err != nil {
		return ata.ReturnTaskFile{}, err
	}

	return scsi.JMicronReturnTaskFile(regs)
}

// IdentifyDevice issues IDENTIFY DEVICE. The first successful call builds the capability model,
// which seeds the DMA flags of the hack profile and decides whether logs are read through general
// purpose logging. Later calls return fresh IDENTIFY data and leave the model untouched.
func (d *Device) IdentifyDevice() (*ata.IdentifyData, error) {
	buf := make([]byte, ata.SectorSize)

	tf := &ata.TaskFile{
		Command:     ata.ATA_IDENTIFY_DEVICE,
		Count:       1,
		Direction:   ata.DirIn,
		Protocol:    ata.ProtocolPIO,
		TransferLen: ata.SectorSize,
	}

	if _, err := d.execute(tf, buf, false); err != nil {
		return nil, err
	}

	id, err := ata.ParseIdentify(buf)
	if err != nil {
		return nil, err
	}

	if d.model != nil {
		return id, nil
	}

	d.model = ata.NewCapabilityModel(id)
	d.hacks.seed(d.model)
	d.gpl = d.model.GPL && !d.bridge.NoGPL

	log := d.log.WithFields(logrus.Fields{
		"model":  d.model.ModelNumber,
		"serial": d.model.SerialNumber,
		"dma":    d.model.DMAMode,
		"gpl":    d.gpl,
	})
	log.Debug("device identified")

	if d.gpl && d.model.Zoned() == ata.ZonedNotReported {
		if _, err := d.ReadLog(ata.LOG_IDENTIFY_DEVICE_DATA, ata.IDDATA_PAGE_SUPPORTED_CAPABILITIES, 1); err != nil {
			log.WithError(err).Debug("cannot read supported capabilities page")
		}
	}

	return id, nil
}
