package genericlinux

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/viam-modules/vl53l3cx/components/board"
)

// i2cBus opens the underlying periph bus on first use and hands out at most one handle per
// address at a time.
type i2cBus struct {
	name string

	mu     sync.Mutex
	closer i2c.BusCloser
	inUse  map[byte]bool
}

func newI2cBus(name string) *i2cBus {
	return &i2cBus{name: name, inUse: map[byte]bool{}}
}

// This lets the i2cBus type implement the board.I2C interface.
func (bus *i2cBus) OpenHandle(addr byte) (board.I2CHandle, error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.inUse[addr] {
		return nil, errors.Errorf("i2c address 0x%02x on bus %s already has an open handle", addr, bus.name)
	}
	if bus.closer == nil {
		closer, err := i2creg.Open(bus.name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open i2c bus %s", bus.name)
		}
		bus.closer = closer
	}
	bus.inUse[addr] = true
	return &i2cHandle{bus: bus, addr: addr, dev: &i2c.Dev{Bus: bus.closer, Addr: uint16(addr)}}, nil
}

func (bus *i2cBus) release(addr byte) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.inUse, addr)
}

func (bus *i2cBus) Close() error {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.closer == nil {
		return nil
	}
	err := bus.closer.Close()
	bus.closer = nil
	return err
}

// We want to use the periph i2c.Dev, but we also want to have it conform to the board.I2CHandle
// interface, so we wrap it in a local struct that also releases the address on Close.
type i2cHandle struct {
	bus  *i2cBus
	addr byte
	dev  *i2c.Dev
	once sync.Once
}

func (h *i2cHandle) Write(ctx context.Context, tx []byte) error {
	if err := h.dev.Tx(tx, nil); err != nil {
		return errors.Wrapf(err, "write to i2c address 0x%02x on bus %s", h.addr, h.bus.name)
	}
	return nil
}

func (h *i2cHandle) Read(ctx context.Context, count int) ([]byte, error) {
	buffer := make([]byte, count)
	if err := h.dev.Tx(nil, buffer); err != nil {
		return nil, errors.Wrapf(err, "read from i2c address 0x%02x on bus %s", h.addr, h.bus.name)
	}
	return buffer, nil
}

func (h *i2cHandle) Close() error {
	h.once.Do(func() { h.bus.release(h.addr) })
	return nil
}
