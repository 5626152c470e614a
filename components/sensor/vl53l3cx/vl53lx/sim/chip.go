// Package sim simulates a VL53L3CX on a fake I2C bus, closely enough for vl53lx.Device to boot,
// calibrate and range against it.
package sim

import (
	"encoding/binary"
	"sync"

	"github.com/viam-modules/vl53l3cx/components/board/fake"
	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx/vl53lx"
)

const (
	// FastOscFrequency is the oscillator frequency the chip reports, 4.12 fixed point MHz.
	FastOscFrequency uint16 = 0xC000
	// OscCalibrateVal is the oscillator calibration value the chip reports.
	OscCalibrateVal uint16 = 0x0100

	deviceStatusRangeComplete byte = 9
	deviceStatusNoTarget      byte = 0
	deviceStatusSignalFail    byte = 4
)

// A Target is what the next measurement sees.
type Target struct {
	DistanceMM int16
	// DeviceStatus is the raw status the chip reports. Zero means no target.
	DeviceStatus byte
	// SignalRate and AmbientRate are 9.7 fixed point MCPS.
	SignalRate  uint16
	AmbientRate uint16
}

// Found returns a target at mm that ranges cleanly.
func Found(mm int16) Target {
	return Target{DistanceMM: mm, DeviceStatus: deviceStatusRangeComplete, SignalRate: 0x0A00, AmbientRate: 0x0010}
}

// Weak returns a target at mm whose signal is too weak to trust.
func Weak(mm int16) Target {
	return Target{DistanceMM: mm, DeviceStatus: deviceStatusSignalFail, SignalRate: 0x0001, AmbientRate: 0x0010}
}

// Nothing returns an empty field of view with a little crosstalk signal.
func Nothing() Target {
	return Target{DeviceStatus: deviceStatusNoTarget, SignalRate: 0x0001}
}

// Chip is a simulated VL53L3CX.
type Chip struct {
	bus  *fake.I2C
	regs *fake.Register16Device

	mu       sync.Mutex
	addr     byte
	powered  bool
	booting  int
	measure  bool
	polls    int
	starts   int
	targets  []Target
	fallback Target

	// BootPolls is how many firmware status reads happen before the chip reports booted.
	BootPolls int
	// ReadyAfterPolls is how many interrupt status reads happen before a started measurement
	// completes.
	ReadyAfterPolls int
}

// NewChip attaches a powered chip at the factory default address.
func NewChip(bus *fake.I2C) *Chip {
	c := &Chip{
		bus:      bus,
		regs:     fake.NewRegister16Device(),
		fallback: Nothing(),
	}
	c.regs.OnWrite = c.onWrite
	c.regs.OnRead = c.onRead
	c.powerOn()
	return c
}

// AttachEnable makes the chip follow the level of an enable pin. Driving it low takes the chip off
// the bus; driving it high brings it back at the factory default address.
func (c *Chip) AttachEnable(pin *fake.GPIOPin) {
	c.powerOff()
	pin.OnSet(func(high bool) {
		if high {
			c.powerOn()
		} else {
			c.powerOff()
		}
	})
}

func (c *Chip) powerOn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.powered {
		return
	}
	c.powered = true
	c.addr = vl53lx.DefaultAddress
	c.booting = c.BootPolls
	c.measure = false
	c.regs.Poke(vl53lx.RegIdentificationModelID, vl53lx.ModelID, vl53lx.ModuleType)
	c.regs.Poke(vl53lx.RegOscMeasuredFastOscFrequency, byte(FastOscFrequency>>8), byte(FastOscFrequency&0xFF))
	c.regs.Poke(vl53lx.RegResultOscCalibrateVal, byte(OscCalibrateVal>>8), byte(OscCalibrateVal&0xFF))
	// active high interrupt
	c.regs.Poke(vl53lx.RegGpioHvMuxCtrl, 0x01)
	c.regs.Poke(vl53lx.RegGpioTioHvStatus, 0x00)
	c.regs.Poke(vl53lx.RegFirmwareSystemStatus, 0x00)
	c.bus.AddDevice(c.addr, c.regs)
}

func (c *Chip) powerOff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.powered {
		return
	}
	c.powered = false
	c.bus.RemoveDevice(c.addr)
}

// Queue sets what the following measurements see, in order. Once the queue runs dry every
// measurement sees the last queued target.
func (c *Chip) Queue(targets ...Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets = append(c.targets, targets...)
}

// Address returns the address the chip answers on.
func (c *Chip) Address() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Powered reports whether the chip is on the bus.
func (c *Chip) Powered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.powered
}

// Starts returns how many measurements have been started.
func (c *Chip) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

// Register returns the current value of a register.
func (c *Chip) Register(reg uint16) byte {
	return c.regs.Peek(reg)
}

// Register16 returns the current big-endian value of a register pair.
func (c *Chip) Register16(reg uint16) uint16 {
	return uint16(c.regs.Peek(reg))<<8 | uint16(c.regs.Peek(reg+1))
}

func (c *Chip) onWrite(reg uint16, value byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch reg {
	case vl53lx.RegI2CSlaveDeviceAddress:
		to := value & 0x7F
		if err := c.bus.MoveDevice(c.addr, to); err == nil {
			c.addr = to
		}
	case vl53lx.RegSystemModeStart:
		switch value {
		case vl53lx.ModeStartSingleShot, vl53lx.ModeStartTimed:
			c.measure = true
			c.polls = 0
			c.starts++
		case vl53lx.ModeStartAbort:
			c.measure = false
		}
	case vl53lx.RegSystemInterruptClear:
		c.regs.Poke(vl53lx.RegGpioTioHvStatus, 0x00)
	}
}

func (c *Chip) onRead(reg uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch reg {
	case vl53lx.RegFirmwareSystemStatus:
		if c.booting > 0 {
			c.booting--
			return
		}
		c.regs.Poke(vl53lx.RegFirmwareSystemStatus, 0x01)
	case vl53lx.RegGpioTioHvStatus:
		if !c.measure {
			return
		}
		c.polls++
		if c.polls <= c.ReadyAfterPolls {
			return
		}
		c.measure = false
		c.complete()
	}
}

// complete writes the next target into the result block and raises the interrupt.
func (c *Chip) complete() {
	target := c.fallback
	if len(c.targets) > 0 {
		target = c.targets[0]
		if len(c.targets) > 1 {
			c.targets = c.targets[1:]
		} else {
			c.fallback = target
			c.targets = nil
		}
	}

	block := make([]byte, vl53lx.ResultBlockSize)
	block[0] = target.DeviceStatus
	// stream count, never zero
	block[2] = byte(c.starts%255) + 1
	binary.BigEndian.PutUint16(block[3:5], 0x1000)
	binary.BigEndian.PutUint16(block[7:9], target.AmbientRate)
	binary.BigEndian.PutUint16(block[13:15], rawRange(target.DistanceMM))
	binary.BigEndian.PutUint16(block[15:17], target.SignalRate)
	c.regs.Poke(vl53lx.RegResultRangeStatus, block...)
	c.regs.Poke(vl53lx.RegGpioTioHvStatus, 0x01)
}

// rawRange inverts the driver's gain correction.
func rawRange(mm int16) uint16 {
	if mm <= 0 {
		return 0
	}
	return uint16((uint32(mm)*0x800 + 1005) / 2011)
}
