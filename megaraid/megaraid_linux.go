// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// MegaRAID ioctl device and physical disk pass-through.
// TODO: enumerate hosts via /sys/class/scsi_host/host%d/proc_name == "megaraid_sas" instead of
// requiring the host number.

package megaraid

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/dswarbrick/passthru/ioctl"
	"github.com/dswarbrick/passthru/scsi"
	"github.com/dswarbrick/passthru/utils"
)

const ioctlNode = "/dev/megaraid_sas_ioctl_node"

var (
	// 0xc1944d01 - Beware: cannot use unsafe.Sizeof(megasas_iocpacket{}) due to Go struct padding!
	MEGASAS_IOC_FIRMWARE = ioctl.Iowr('M', 1, MFI_IOC_PACKET_LEN)
)

// Controller is the megaraid_sas ioctl device, shared by all disks behind the driver.
type Controller struct {
	DeviceMajor int
	fd          int
	log         logrus.FieldLogger
	// submit issues one packed ioctl packet; the driver writes the command status back into it
	submit func(pkt []byte) error
}

// deviceMajor finds the major number of the megaraid_sas ioctl character device.
func deviceMajor(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if strings.HasSuffix(scanner.Text(), "megaraid_sas_ioctl") {
			var major int
			if _, err := fmt.Sscanf(scanner.Text(), "%d", &major); err == nil {
				return major, nil
			}
		}
	}

	return 0, fmt.Errorf("megaraid_sas_ioctl not listed in %s", path)
}

// OpenController determines the device ID for the MegaRAID SAS ioctl device, creates the node if
// necessary, and opens it.
func OpenController(log logrus.FieldLogger) (*Controller, error) {
	var err error

	c := &Controller{log: log}

	// megaraid_sas driver does not automatically create ioctl device node
	if c.DeviceMajor, err = deviceMajor("/proc/devices"); err != nil {
		return nil, err
	}

	dev := unix.Mkdev(uint32(c.DeviceMajor), 0)
	if err := unix.Mknod(ioctlNode, unix.S_IFCHR|0600, int(dev)); err != nil && err != unix.EEXIST {
		log.WithError(err).Warn("cannot create megaraid ioctl node")
	}

	if c.fd, err = unix.Open(ioctlNode, unix.O_RDWR, 0600); err != nil {
		return nil, err
	}

	c.submit = func(pkt []byte) error {
		return ioctl.Ioctl(uintptr(c.fd), MEGASAS_IOC_FIRMWARE, uintptr(unsafe.Pointer(&pkt[0])))
	}

	return c, nil
}

// Close closes the ioctl device.
func (c *Controller) Close() error {
	return unix.Close(c.fd)
}

// DeviceList retrieves the physical devices attached to the specified host.
func (c *Controller) DeviceList(host uint16) ([]PDAddress, error) {
	respBuf := make([]byte, 4096)

	pkt := dcmdPacket(host, MR_DCMD_PD_GET_LIST, uint64(uintptr(unsafe.Pointer(&respBuf[0]))), len(respBuf)).PackedBytes()
	err := c.submit(pkt)
	runtime.KeepAlive(respBuf)

	if err != nil {
		return nil, err
	}

	if status := pkt[MFI_IOC_FRAME_OFFSET+MFI_FRAME_CMD_STATUS_OFFSET]; status != MFI_STAT_OK {
		return nil, fmt.Errorf("MR_DCMD_PD_GET_LIST: MFI command status %#02x", status)
	}

	return parsePDList(respBuf, utils.NativeEndian)
}

// Disks returns a transport for every SCSI direct-access disk on host.
func (c *Controller) Disks(host uint16) ([]*Disk, error) {
	devices, err := c.DeviceList(host)
	if err != nil {
		return nil, err
	}

	var disks []*Disk
	for _, pd := range devices {
		if pd.SCSIDevType == MFI_SCSI_DEV_TYPE_DIRECT_BLOCK {
			disks = append(disks, c.Disk(host, uint8(pd.DeviceId)))
		}
	}

	return disks, nil
}

// Disk returns the transport for one physical disk.
func (c *Controller) Disk(host uint16, deviceID uint8) *Disk {
	return &Disk{Host: host, DeviceID: deviceID, ctl: c}
}

// Disk sends CDBs to a physical disk behind a MegaRAID controller. It implements
// scsi.Transport.
type Disk struct {
	Host     uint16
	DeviceID uint8
	ctl      *Controller
}

// SendCDB passes a CDB through the controller firmware to the disk.
func (d *Disk) SendCDB(cmd *scsi.Command) (*scsi.Response, error) {
	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = scsi.DefaultTimeout
	}

	sense := make([]byte, MFI_SENSE_LEN)

	var dataAddr uint64
	if len(cmd.Data) > 0 {
		dataAddr = uint64(uintptr(unsafe.Pointer(&cmd.Data[0])))
	}

	ioc, err := passthruPacket(d.Host, d.DeviceID, cmd, dataAddr, uint64(uintptr(unsafe.Pointer(&sense[0]))), uint16(timeout.Seconds()))
	if err != nil {
		return nil, err
	}

	pkt := ioc.PackedBytes()
	err = d.ctl.submit(pkt)
	runtime.KeepAlive(cmd.Data)
	runtime.KeepAlive(sense)

	if err != nil {
		return nil, err
	}

	resp, err := passthruResponse(pkt, sense)
	if err != nil {
		d.ctl.log.WithError(err).WithFields(logrus.Fields{
			"host":   d.Host,
			"device": d.DeviceID,
		}).Debug("pass-through failed")
	}

	return resp, err
}

// Close is a no-op; the controller owns the ioctl device.
func (d *Disk) Close() error {
	return nil
}
