package environment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/mklimuk/agsensors"
	"github.com/mklimuk/agsensors/clock"
)

const (
	AM2315Address      = 0x5C
	AM2315ReadRegister = 0x03
)

const (
	am2315DataLen  = 4
	am2315ReplyLen = 8
	signBit        = 0x80
)

// ReadFailureMessage is reported by ErrorMessage while the error flag is set.
const ReadFailureMessage = "Read failure"

// ErrReadFailure means the reply did not echo the expected register and byte count.
var ErrReadFailure = errors.New(ReadFailureMessage)

type AM2315Opts struct {
	Address  byte
	Register byte
	// MinUpdateInterval is the minimum time between two polls issued by Update.
	// Negative values count as 0, sub-millisecond values are rounded up to 1ms.
	MinUpdateInterval time.Duration
	WakeDelay         time.Duration
	ReadDelay         time.Duration
	Clock             clock.Clock
	// StickyError keeps the error flag set after a later successful read.
	StickyError bool
}

type AM2315Opt func(*AM2315Opts)

func WithAddress(address byte) AM2315Opt {
	return func(o *AM2315Opts) {
		o.Address = address
	}
}

func WithRegister(register byte) AM2315Opt {
	return func(o *AM2315Opts) {
		o.Register = register
	}
}

func WithMinUpdateInterval(interval time.Duration) AM2315Opt {
	return func(o *AM2315Opts) {
		o.MinUpdateInterval = interval
	}
}

func WithWakeDelay(delay time.Duration) AM2315Opt {
	return func(o *AM2315Opts) {
		o.WakeDelay = delay
	}
}

func WithReadDelay(delay time.Duration) AM2315Opt {
	return func(o *AM2315Opts) {
		o.ReadDelay = delay
	}
}

func WithClock(c clock.Clock) AM2315Opt {
	return func(o *AM2315Opts) {
		o.Clock = c
	}
}

func WithStickyError() AM2315Opt {
	return func(o *AM2315Opts) {
		o.StickyError = true
	}
}

// Reading holds one decoded sample.
type Reading struct {
	Temperature float32 // °C
	Humidity    float32 // %RH
}

// PollResult describes what a single Update call did.
type PollResult struct {
	// Polled is false when Update returned early because of rate limiting.
	Polled  bool
	At      uint32
	Reading Reading
	Err     error
}

// AM2315 represents Aosong AM2315 encased temperature/humidity sensor.
// Typical usage:
//
//	s := NewAM2315(bus)
//	_ = s.Begin(ctx)
//	for {
//		s.Update(ctx)
//		if t, ok := s.GetAirTemperature(); ok {
//			...
//		}
//	}
//
// Update is rate limited, it is safe to call it from a tight loop.
//
// All methods share one mutex which Update and Measure hold for the whole
// poll, device delays included. Accessors called from another goroutine
// block until a running poll completes (about 12ms plus bus time).
type AM2315 struct {
	mx         sync.Mutex
	config     AM2315Opts
	transport  agsensors.I2CBus
	buf        []byte
	intervalMs uint32

	lastRead uint32
	primed   bool

	temperature float32
	humidity    float32
	tempPending bool
	humPending  bool

	hasError bool
	lastErr  error
}

func NewAM2315(transport agsensors.I2CBus, opts ...AM2315Opt) *AM2315 {
	config := AM2315Opts{
		Address:           AM2315Address,
		Register:          AM2315ReadRegister,
		MinUpdateInterval: 2 * time.Second,
		WakeDelay:         2 * time.Millisecond,
		ReadDelay:         10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Clock == nil {
		config.Clock = clock.NewSystem()
	}
	return &AM2315{
		config:     config,
		transport:  transport,
		buf:        make([]byte, am2315ReplyLen),
		intervalMs: intervalMillis(config.MinUpdateInterval),
	}
}

// intervalMillis converts the update interval to the driver's millisecond
// counter. The result stays below 2^31 so the wrapping comparison in Update
// holds.
func intervalMillis(d time.Duration) uint32 {
	switch {
	case d <= 0:
		return 0
	case d < time.Millisecond:
		return 1
	case d.Milliseconds() > math.MaxInt32:
		return math.MaxInt32
	}
	return uint32(d.Milliseconds())
}

// Begin initializes the transport and resets the driver state. The next
// Update polls the device immediately.
func (s *AM2315) Begin(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if initializer, ok := s.transport.(agsensors.Initializer); ok {
		if err := initializer.Init(ctx); err != nil {
			return fmt.Errorf("am2315: could not initialize transport: %w", err)
		}
	}
	s.hasError = false
	s.lastErr = nil
	s.tempPending = false
	s.humPending = false
	s.lastRead = 0
	s.primed = false
	return nil
}

// Update polls the device when more than MinUpdateInterval has passed since
// the previous poll attempt. Failed attempts count too.
func (s *AM2315) Update(ctx context.Context) PollResult {
	s.mx.Lock()
	defer s.mx.Unlock()
	now := s.config.Clock.NowMillis()
	if s.primed && now-s.lastRead <= s.intervalMs {
		return PollResult{At: now}
	}
	return s.poll(ctx, now)
}

// Measure polls the device right away regardless of the update interval.
func (s *AM2315) Measure(ctx context.Context) (Reading, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	res := s.poll(ctx, s.config.Clock.NowMillis())
	return res.Reading, res.Err
}

// GetTemperature performs a single measurement and returns temperature in Celsius.
func (s *AM2315) GetTemperature(ctx context.Context) (float32, error) {
	r, err := s.Measure(ctx)
	if err != nil {
		return 0, err
	}
	return r.Temperature, nil
}

// GetHumidity performs a single measurement and returns relative humidity in %RH.
func (s *AM2315) GetHumidity(ctx context.Context) (float32, error) {
	r, err := s.Measure(ctx)
	if err != nil {
		return 0, err
	}
	return r.Humidity, nil
}

func (s *AM2315) GetTempAndHum(ctx context.Context) (float32, float32, error) {
	r, err := s.Measure(ctx)
	if err != nil {
		return 0, 0, err
	}
	return r.Temperature, r.Humidity, nil
}

// GetAirTemperature returns the last good temperature and whether it has not
// been returned before. It never touches the bus.
func (s *AM2315) GetAirTemperature() (float32, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	pending := s.tempPending
	s.tempPending = false
	return s.temperature, pending
}

// GetAirHumidity is the humidity counterpart of GetAirTemperature.
func (s *AM2315) GetAirHumidity() (float32, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	pending := s.humPending
	s.humPending = false
	return s.humidity, pending
}

func (s *AM2315) HasError() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.hasError
}

// Err returns the error of the poll that set the error flag.
func (s *AM2315) Err() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.lastErr
}

func (s *AM2315) ErrorMessage() string {
	if s.HasError() {
		return ReadFailureMessage
	}
	return ""
}

func (s *AM2315) poll(ctx context.Context, now uint32) PollResult {
	s.primed = true
	s.lastRead = now
	res := PollResult{Polled: true, At: now}
	reading, err := s.readData(ctx)
	if err != nil {
		res.Err = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res
		}
		s.hasError = true
		s.lastErr = err
		slog.DebugContext(ctx, "am2315 poll failed", "address", s.config.Address, "error", err)
		return res
	}
	s.temperature = reading.Temperature
	s.humidity = reading.Humidity
	s.tempPending = true
	s.humPending = true
	if !s.config.StickyError {
		s.hasError = false
		s.lastErr = nil
	}
	res.Reading = reading
	return res
}

func (s *AM2315) readData(ctx context.Context) (Reading, error) {
	// the sensor sleeps between reads and does not acknowledge the wake-up call
	if err := s.transport.WriteToAddr(ctx, s.config.Address, []byte{}); err != nil {
		slog.DebugContext(ctx, "am2315 wake-up not acknowledged", "error", err)
	}
	if err := s.config.Clock.Sleep(ctx, s.config.WakeDelay); err != nil {
		return Reading{}, err
	}
	// function code, start address, number of registers
	err := s.transport.WriteToAddr(ctx, s.config.Address, []byte{s.config.Register, 0x00, am2315DataLen})
	if err != nil {
		return Reading{}, fmt.Errorf("am2315: read request failed: %w", err)
	}
	if err := s.config.Clock.Sleep(ctx, s.config.ReadDelay); err != nil {
		return Reading{}, err
	}
	clear(s.buf)
	if err := s.transport.ReadFromAddr(ctx, s.config.Address, s.buf); err != nil {
		return Reading{}, fmt.Errorf("am2315: read failed: %w", err)
	}
	return decodeReply(s.buf, s.config.Register)
}

// decodeReply validates the echoed header and decodes humidity and
// temperature. Temperature uses sign-magnitude encoding: bit 7 of the high
// byte is the sign, the remaining 15 bits are the magnitude.
func decodeReply(reply []byte, register byte) (Reading, error) {
	if len(reply) < am2315ReplyLen {
		return Reading{}, fmt.Errorf("%w: short reply of %d bytes", ErrReadFailure, len(reply))
	}
	if reply[0] != register || reply[1] != am2315DataLen {
		return Reading{}, fmt.Errorf("%w: expected header %#x/%d, got %#x/%d",
			ErrReadFailure, register, am2315DataLen, reply[0], reply[1])
	}
	hum := float32(uint16(reply[2])<<8|uint16(reply[3])) / 10
	temp := float32(uint16(reply[4]&^signBit)<<8|uint16(reply[5])) / 10
	if reply[4]&signBit != 0 {
		temp = -temp
	}
	return Reading{Temperature: temp, Humidity: hum}, nil
}
