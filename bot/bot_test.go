// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package bot

import (
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/passthru/result"
	"github.com/dswarbrick/passthru/scsi"
)

func buildCSW(tag, residue uint32, status uint8) []byte {
	b := make([]byte, CSWSize)
	binary.LittleEndian.PutUint32(b[0:], CSWSignature)
	binary.LittleEndian.PutUint32(b[4:], tag)
	binary.LittleEndian.PutUint32(b[8:], residue)
	b[12] = status

	return b
}

// fakeEndpoints serves queued IN transfers and records OUT transfers.
type fakeEndpoints struct {
	reads  [][]byte
	writes [][]byte
	err    error
}

func (f *fakeEndpoints) ReadContext(ctx context.Context, buf []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}

	if len(f.reads) == 0 {
		return 0, io.EOF
	}

	n := copy(buf, f.reads[0])
	f.reads = f.reads[1:]

	return n, nil
}

func (f *fakeEndpoints) WriteContext(ctx context.Context, buf []byte) (int, error) {
	f.writes = append(f.writes, append([]byte(nil), buf...))
	return len(buf), nil
}

func testDevice(ep *fakeEndpoints) *Device {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return &Device{in: ep, out: ep, tag: 1, log: log}
}

func TestBuildCBW(t *testing.T) {
	cdb := []byte{scsi.SCSI_INQUIRY, 0, 0, 0, 36, 0}

	cbw, err := BuildCBW(7, 36, CBWFlagDataIn, 0, cdb)
	require.NoError(t, err)
	require.Len(t, cbw, CBWSize)

	assert.Equal(t, uint32(CBWSignature), binary.LittleEndian.Uint32(cbw[0:]))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(cbw[4:]))
	assert.Equal(t, uint32(36), binary.LittleEndian.Uint32(cbw[8:]))
	assert.Equal(t, uint8(CBWFlagDataIn), cbw[12])
	assert.Equal(t, uint8(6), cbw[14])
	assert.Equal(t, cdb, cbw[15:21])

	_, err = BuildCBW(1, 0, 0, 0, make([]byte, 17))
	assert.True(t, result.Is(err, result.BadParameter))

	_, err = BuildCBW(1, 0, 0, 0, nil)
	assert.True(t, result.Is(err, result.BadParameter))
}

func TestParseCSW(t *testing.T) {
	csw, err := ParseCSW(buildCSW(42, 10, CSWStatusFailed))
	require.NoError(t, err)
	assert.Equal(t, CSW{Tag: 42, Residue: 10, Status: CSWStatusFailed}, csw)

	_, err = ParseCSW(make([]byte, 12))
	assert.Error(t, err)

	_, err = ParseCSW(make([]byte, CSWSize))
	assert.Error(t, err)
}

func TestSendCDBDataIn(t *testing.T) {
	ep := &fakeEndpoints{reads: [][]byte{{0xde, 0xad, 0xbe, 0xef}, buildCSW(1, 0, CSWStatusGood)}}
	d := testDevice(ep)

	buf := make([]byte, 4)
	resp, err := d.SendCDB(&scsi.Command{CDB: []byte{scsi.SCSI_READ_10, 0, 0, 0, 0, 0, 0, 0, 1, 0}, Direction: scsi.DataIn, Data: buf})
	require.NoError(t, err)

	assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), resp.Status)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, buf)
	require.Len(t, ep.writes, 1)
	assert.Equal(t, uint8(CBWFlagDataIn), ep.writes[0][12])
}

func TestSendCDBDataOut(t *testing.T) {
	ep := &fakeEndpoints{reads: [][]byte{buildCSW(1, 0, CSWStatusGood)}}
	d := testDevice(ep)

	_, err := d.SendCDB(&scsi.Command{CDB: make([]byte, 16), Direction: scsi.DataOut, Data: []byte{1, 2, 3}})
	require.NoError(t, err)

	require.Len(t, ep.writes, 2)
	assert.Equal(t, uint8(CBWFlagDataOut), ep.writes[0][12])
	assert.Equal(t, []byte{1, 2, 3}, ep.writes[1])
}

func TestSendCDBAutoSense(t *testing.T) {
	sense := make([]byte, 18)
	sense[0] = scsi.SENSE_FIXED_CURRENT
	sense[2] = scsi.SENSE_ILLEGAL_REQUEST
	sense[7] = 10
	sense[12] = 0x24

	ep := &fakeEndpoints{reads: [][]byte{
		buildCSW(1, 0, CSWStatusFailed),
		sense,
		buildCSW(2, scsi.SENSE_BUF_LEN-18, CSWStatusGood),
	}}
	d := testDevice(ep)

	resp, err := d.SendCDB(&scsi.Command{CDB: make([]byte, 16), Direction: scsi.DataNone})
	require.NoError(t, err)

	assert.True(t, resp.CheckCondition())
	assert.Equal(t, sense, resp.Sense)
	assert.Equal(t, scsi.ClassifySense(resp.Sense, len(resp.Sense)), result.NotSupported)
	assert.Equal(t, uint8(scsi.SCSI_REQUEST_SENSE), ep.writes[1][15])
}

func TestSendCDBErrors(t *testing.T) {
	// Tag mismatch
	d := testDevice(&fakeEndpoints{reads: [][]byte{buildCSW(9, 0, CSWStatusGood)}})
	_, err := d.SendCDB(&scsi.Command{CDB: make([]byte, 6)})
	assert.Error(t, err)

	// Phase error
	d = testDevice(&fakeEndpoints{reads: [][]byte{buildCSW(1, 0, CSWStatusPhaseError)}})
	_, err = d.SendCDB(&scsi.Command{CDB: make([]byte, 6)})
	assert.True(t, result.Is(err, result.Failure))

	// Timeout is reported as such
	d = testDevice(&fakeEndpoints{err: gousb.TransferTimedOut})
	_, err = d.SendCDB(&scsi.Command{CDB: make([]byte, 6)})
	assert.True(t, result.Is(err, result.Timeout))
}
