package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/agsensors"
)

type fakeHID struct {
	requests  [][]byte
	responses [][]byte
	closed    int
}

func (f *fakeHID) Write(b []byte) (int, error) {
	f.requests = append(f.requests, append([]byte(nil), b...))
	return len(b), nil
}

func (f *fakeHID) Read(b []byte) (int, error) {
	if len(f.responses) == 0 {
		return 0, errors.New("no response queued")
	}
	copy(b, f.responses[0])
	f.responses = f.responses[1:]
	return reportSize, nil
}

func (f *fakeHID) Close() error {
	f.closed++
	return nil
}

func response(bytes ...byte) []byte {
	r := make([]byte, reportSize)
	copy(r, bytes)
	return r
}

func newTestAdapter(devs ...*fakeHID) *MCP2221 {
	a := NewMCP2221()
	a.responseWait = 0
	a.open = func() ([]device, error) {
		res := make([]device, 0, len(devs))
		for _, d := range devs {
			res = append(res, d)
		}
		return res, nil
	}
	return a
}

func TestMCP2221_WriteToAddr(t *testing.T) {
	dev := &fakeHID{responses: [][]byte{response(cmdI2CWrite, 0x00)}}
	a := newTestAdapter(dev)

	err := a.WriteToAddr(context.Background(), 0x5C, []byte{0x03, 0x00, 0x04})
	require.NoError(t, err)
	require.Len(t, dev.requests, 1)
	req := dev.requests[0]
	assert.Equal(t, []byte{cmdI2CWrite, 0x03, 0x00, 0xB8, 0x03, 0x00, 0x04}, req[:7])
	assert.Equal(t, 1, dev.closed)
}

func TestMCP2221_WriteBusy(t *testing.T) {
	dev := &fakeHID{responses: [][]byte{response(cmdI2CWrite, respI2CBusy)}}
	a := newTestAdapter(dev)
	err := a.WriteToAddr(context.Background(), 0x5C, nil)
	assert.ErrorIs(t, err, agsensors.ErrBusBusy)
}

func TestMCP2221_ReadFromAddr(t *testing.T) {
	data := []byte{0x03, 0x04, 0x00, 0xC8, 0x00, 0xFA, 0x12, 0x34}
	dev := &fakeHID{responses: [][]byte{
		response(cmdI2CRead, 0x00),
		response(append([]byte{cmdI2CGetData, 0x00, 0x00, byte(len(data))}, data...)...),
	}}
	a := newTestAdapter(dev)

	buf := make([]byte, 8)
	require.NoError(t, a.ReadFromAddr(context.Background(), 0x5C, buf))
	assert.Equal(t, data, buf)
	require.Len(t, dev.requests, 2)
	assert.Equal(t, []byte{cmdI2CRead, 0x08, 0x00, 0xB9}, dev.requests[0][:4])
	assert.Equal(t, byte(cmdI2CGetData), dev.requests[1][0])
}

func TestMCP2221_ReadInvalidSize(t *testing.T) {
	dev := &fakeHID{responses: [][]byte{
		response(cmdI2CRead, 0x00),
		response(cmdI2CGetData, 0x00, 0x00, respInvalidSize),
	}}
	a := newTestAdapter(dev)
	err := a.ReadFromAddr(context.Background(), 0x5C, make([]byte, 8))
	assert.ErrorContains(t, err, "invalid data size")
}

func TestMCP2221_ReadEngineError(t *testing.T) {
	dev := &fakeHID{responses: [][]byte{
		response(cmdI2CRead, 0x00),
		response(cmdI2CGetData, respI2CReadError),
	}}
	a := newTestAdapter(dev)
	err := a.ReadFromAddr(context.Background(), 0x5C, make([]byte, 8))
	assert.ErrorContains(t, err, "I2C engine")
}

func TestMCP2221_DeviceDiscovery(t *testing.T) {
	ctx := context.Background()

	err := newTestAdapter().WriteToAddr(ctx, 0x5C, nil)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	a, b := &fakeHID{}, &fakeHID{}
	err = newTestAdapter(a, b).WriteToAddr(ctx, 0x5C, nil)
	assert.ErrorIs(t, err, ErrAmbiguousDevice)
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
}

func TestMCP2221_InitReleasesBus(t *testing.T) {
	status := response(cmdStatusSetParams, 0x00)
	status[14] = 0x75
	status[15] = 0x20
	status[16], status[17] = 0xB8, 0x00
	dev := &fakeHID{responses: [][]byte{status}}
	a := newTestAdapter(dev)

	require.NoError(t, a.Init(context.Background()))
	assert.Equal(t, byte(statusCancelTransfer), dev.requests[0][2])
}

func TestMCP2221_Status(t *testing.T) {
	raw := response(cmdStatusSetParams, 0x00)
	raw[9], raw[10] = 0x04, 0x00
	raw[11], raw[12] = 0x03, 0x00
	raw[13] = 2
	raw[14] = 0x75
	raw[15] = 0x20
	raw[16], raw[17] = 0xB8, 0x00
	raw[25] = 1
	dev := &fakeHID{responses: [][]byte{raw}}
	a := newTestAdapter(dev)

	status, err := a.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &MCP2221Status{
		I2CDataBufferCounter:   2,
		I2CSpeedDivider:        0x75,
		I2CTimeout:             0x20,
		CurrentAddress:         "b800",
		LastWriteRequestedSize: 4,
		LastWriteSentSize:      3,
		ReadPending:            1,
	}, status)
}

func TestMCP2221_WriteTooLong(t *testing.T) {
	a := newTestAdapter(&fakeHID{})
	err := a.WriteToAddr(context.Background(), 0x5C, make([]byte, 61))
	assert.ErrorContains(t, err, "exceed report size")
}
