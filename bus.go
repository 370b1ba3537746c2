package agsensors

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type BusReader interface {
	Read(ctx context.Context, buffer []byte) error
}

type BusWriter interface {
	Write(ctx context.Context, buffer []byte) error
}

// AddressableReader fills the whole buffer from the device at address or
// returns an error. Short reads are reported as errors.
type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

// AddressableWriter sends buffer to the device at address in a single
// transaction. An empty buffer addresses the device without payload.
type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// Initializer is implemented by transports that need to be brought up before
// the first transaction.
type Initializer interface {
	Init(ctx context.Context) error
}
