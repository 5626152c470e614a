package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/viam-modules/vl53l3cx/components/board"
)

// An I2CDevice is something that answers on a fake bus. Write receives a whole write
// transaction and Read a whole read transaction.
type I2CDevice interface {
	Write(tx []byte) error
	Read(count int) ([]byte, error)
}

// I2C is a fake bus. Devices answer at their address until moved; addresses with no device NACK.
type I2C struct {
	mu      sync.Mutex
	devices map[byte]I2CDevice
	open    map[byte]bool
}

// NewI2C returns an empty fake bus.
func NewI2C() *I2C {
	return &I2C{devices: map[byte]I2CDevice{}, open: map[byte]bool{}}
}

// AddDevice attaches a device at the given address.
func (bus *I2C) AddDevice(addr byte, dev I2CDevice) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.devices[addr] = dev
}

// RemoveDevice detaches whatever device answers at addr.
func (bus *I2C) RemoveDevice(addr byte) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.devices, addr)
}

// MoveDevice re-addresses the device answering at from so it answers at to.
func (bus *I2C) MoveDevice(from, to byte) error {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	dev, ok := bus.devices[from]
	if !ok {
		return errors.Errorf("no device at address 0x%02x", from)
	}
	if _, taken := bus.devices[to]; taken && from != to {
		return errors.Errorf("address 0x%02x already in use", to)
	}
	delete(bus.devices, from)
	bus.devices[to] = dev
	return nil
}

// Addresses returns the addresses that currently have a device.
func (bus *I2C) Addresses() []byte {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	addrs := make([]byte, 0, len(bus.devices))
	for addr := range bus.devices {
		addrs = append(addrs, addr)
	}
	return addrs
}

// OpenHandle opens a handle for the address. Only one handle per address may be open.
func (bus *I2C) OpenHandle(addr byte) (board.I2CHandle, error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.open[addr] {
		return nil, errors.Errorf("handle for address 0x%02x already open", addr)
	}
	bus.open[addr] = true
	return &i2cHandle{bus: bus, addr: addr}, nil
}

func (bus *I2C) device(addr byte) (I2CDevice, error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	dev, ok := bus.devices[addr]
	if !ok {
		return nil, errors.Errorf("no ack from address 0x%02x", addr)
	}
	return dev, nil
}

type i2cHandle struct {
	bus    *I2C
	addr   byte
	closed bool
}

func (h *i2cHandle) Write(ctx context.Context, tx []byte) error {
	if h.closed {
		return errors.New("handle is closed")
	}
	dev, err := h.bus.device(h.addr)
	if err != nil {
		return err
	}
	return dev.Write(tx)
}

func (h *i2cHandle) Read(ctx context.Context, count int) ([]byte, error) {
	if h.closed {
		return nil, errors.New("handle is closed")
	}
	dev, err := h.bus.device(h.addr)
	if err != nil {
		return nil, err
	}
	return dev.Read(count)
}

func (h *i2cHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.bus.mu.Lock()
	defer h.bus.mu.Unlock()
	delete(h.bus.open, h.addr)
	return nil
}

// Register16Device is an I2CDevice with a 16-bit, auto-incrementing register address space,
// the layout used by ST time-of-flight sensors. A write transaction starts with the big-endian
// register index followed by data bytes; a read continues from the last index written.
type Register16Device struct {
	mu        sync.Mutex
	registers map[uint16]byte
	pointer   uint16

	// OnWrite, if set, is called after each data byte lands in a register.
	OnWrite func(reg uint16, value byte)
	// OnRead, if set, is called before each register is read out.
	OnRead func(reg uint16)
}

// NewRegister16Device returns a device whose registers all read as zero.
func NewRegister16Device() *Register16Device {
	return &Register16Device{registers: map[uint16]byte{}}
}

// Write implements I2CDevice.
func (d *Register16Device) Write(tx []byte) error {
	if len(tx) < 2 {
		return errors.Errorf("write of %d bytes is missing the register index", len(tx))
	}
	reg := uint16(tx[0])<<8 | uint16(tx[1])
	type written struct {
		reg uint16
		val byte
	}
	var hooks []written

	d.mu.Lock()
	d.pointer = reg
	for _, b := range tx[2:] {
		d.registers[d.pointer] = b
		hooks = append(hooks, written{d.pointer, b})
		d.pointer++
	}
	onWrite := d.OnWrite
	d.mu.Unlock()

	if onWrite != nil {
		for _, w := range hooks {
			onWrite(w.reg, w.val)
		}
	}
	return nil
}

// Read implements I2CDevice.
func (d *Register16Device) Read(count int) ([]byte, error) {
	d.mu.Lock()
	start := d.pointer
	onRead := d.OnRead
	d.mu.Unlock()

	if onRead != nil {
		for i := 0; i < count; i++ {
			onRead(start + uint16(i))
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, count)
	for i := range out {
		out[i] = d.registers[d.pointer]
		d.pointer++
	}
	return out, nil
}

// Poke sets register values directly, bypassing hooks.
func (d *Register16Device) Poke(reg uint16, values ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, v := range values {
		d.registers[reg+uint16(i)] = v
	}
}

// Peek returns a register value.
func (d *Register16Device) Peek(reg uint16) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registers[reg]
}
