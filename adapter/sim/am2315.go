// Package sim provides an in-memory AM2315 that speaks the register read
// protocol over the agsensors.I2CBus contract. It needs no hardware and is
// used by the CLI "sim" adapter and by tests.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/mklimuk/agsensors"
)

const (
	DefaultAddress = 0x5C
	readRegister   = 0x03
)

var ErrNoAck = errors.New("sim: device did not acknowledge")

var _ agsensors.I2CBus = &AM2315{}

// TemperatureBehaviorFunc returns the temperature in Celsius or an error.
type TemperatureBehaviorFunc func(ctx context.Context) (float32, error)

// HumidityBehaviorFunc returns the relative humidity in %RH or an error.
type HumidityBehaviorFunc func(ctx context.Context) (float32, error)

// AM2315 answers the "read registers" request with an 8-byte reply:
// function code, byte count, humidity (2 bytes), temperature (2 bytes,
// sign-magnitude) and a CRC16 trailer (low byte first).
type AM2315 struct {
	mx          sync.Mutex
	address     byte
	temperature TemperatureBehaviorFunc
	humidity    HumidityBehaviorFunc

	awake   bool
	request []byte
	// corrupt makes replies echo a wrong function code, see SetCorruptHeader.
	corrupt bool

	writes int
	reads  int
}

// NewAM2315 creates a simulated sensor. Behaviour functions are called on
// every read so they can model changing conditions.
//
//	dev := sim.NewAM2315(
//		func(ctx context.Context) (float32, error) { return 22.5, nil },
//		func(ctx context.Context) (float32, error) { return 45.0, nil },
//	)
func NewAM2315(temperature TemperatureBehaviorFunc, humidity HumidityBehaviorFunc) *AM2315 {
	return &AM2315{
		address:     DefaultAddress,
		temperature: temperature,
		humidity:    humidity,
	}
}

// NewStaticAM2315 creates a simulated sensor that always reports the same values.
func NewStaticAM2315(temperature, humidity float32) *AM2315 {
	return NewAM2315(
		func(ctx context.Context) (float32, error) { return temperature, nil },
		func(ctx context.Context) (float32, error) { return humidity, nil },
	)
}

// SetCorruptHeader makes all following replies carry an invalid function
// code until it is called with false.
func (d *AM2315) SetCorruptHeader(corrupt bool) {
	d.mx.Lock()
	d.corrupt = corrupt
	d.mx.Unlock()
}

// Transactions returns the number of write and read transactions seen.
func (d *AM2315) Transactions() (writes, reads int) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.writes, d.reads
}

func (d *AM2315) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if address != d.address {
		return fmt.Errorf("%w: address %#x", ErrNoAck, address)
	}
	d.writes++
	if len(buffer) == 0 {
		// first transaction only wakes the sensor up, like the real device
		// it is not acknowledged
		wasAwake := d.awake
		d.awake = true
		if !wasAwake {
			return ErrNoAck
		}
		return nil
	}
	if !d.awake {
		return ErrNoAck
	}
	d.request = append(d.request[:0], buffer...)
	return nil
}

func (d *AM2315) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if address != d.address || !d.awake {
		return fmt.Errorf("%w: address %#x", ErrNoAck, address)
	}
	d.reads++
	// the sensor falls asleep again after answering
	d.awake = false
	if len(d.request) != 3 || d.request[0] != readRegister || d.request[2] == 0 {
		return fmt.Errorf("sim: unsupported request % x", d.request)
	}
	temp, err := d.temperature(ctx)
	if err != nil {
		return err
	}
	hum, err := d.humidity(ctx)
	if err != nil {
		return err
	}
	reply := EncodeReply(temp, hum)
	if d.corrupt {
		reply[0] = 0xFF
	}
	if len(buffer) > len(reply) {
		return fmt.Errorf("sim: requested %d bytes, device sends %d", len(buffer), len(reply))
	}
	copy(buffer, reply)
	return nil
}

func (d *AM2315) Release(ctx context.Context) error {
	return nil
}

// EncodeReply builds the 8-byte reply for the given values.
func EncodeReply(temperature, humidity float32) []byte {
	reply := make([]byte, 8)
	reply[0] = readRegister
	reply[1] = 4
	h := uint16(math.Round(float64(humidity) * 10))
	reply[2] = byte(h >> 8)
	reply[3] = byte(h)
	t := uint16(math.Round(math.Abs(float64(temperature)) * 10))
	reply[4] = byte(t>>8) & 0x7F
	if temperature < 0 {
		reply[4] |= 0x80
	}
	reply[5] = byte(t)
	crc := crc16(reply[:6])
	reply[6] = byte(crc)
	reply[7] = byte(crc >> 8)
	return reply
}

// crc16 is the Modbus CRC used by the sensor (poly 0xA001 reflected, init 0xFFFF).
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for range 8 {
			if crc&0x01 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
