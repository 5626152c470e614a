package sim

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/viam-modules/vl53l3cx/components/board/fake"
	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx/vl53lx"
)

func TestChipPowerOn(t *testing.T) {
	ctx := context.Background()
	bus := fake.NewI2C()
	chip := NewChip(bus)

	test.That(t, chip.Powered(), test.ShouldBeTrue)
	test.That(t, chip.Address(), test.ShouldEqual, vl53lx.DefaultAddress)
	test.That(t, chip.Register16(vl53lx.RegOscMeasuredFastOscFrequency), test.ShouldEqual, FastOscFrequency)
	test.That(t, chip.Register16(vl53lx.RegResultOscCalibrateVal), test.ShouldEqual, OscCalibrateVal)

	handle, err := bus.OpenHandle(vl53lx.DefaultAddress)
	test.That(t, err, test.ShouldBeNil)
	defer handle.Close()
	test.That(t, handle.Write(ctx, []byte{0x00, byte(vl53lx.RegOscMeasuredFastOscFrequency)}), test.ShouldBeNil)
	got, err := handle.Read(ctx, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []byte{0xc0, 0x00})
}

func TestChipFollowsEnablePin(t *testing.T) {
	ctx := context.Background()
	bus := fake.NewI2C()
	chip := NewChip(bus)
	pin := &fake.GPIOPin{}

	chip.AttachEnable(pin)
	test.That(t, chip.Powered(), test.ShouldBeFalse)
	test.That(t, bus.Addresses(), test.ShouldBeEmpty)

	test.That(t, pin.Set(ctx, true, nil), test.ShouldBeNil)
	test.That(t, chip.Powered(), test.ShouldBeTrue)
	test.That(t, bus.Addresses(), test.ShouldResemble, []byte{vl53lx.DefaultAddress})
	test.That(t, chip.Register16(vl53lx.RegOscMeasuredFastOscFrequency), test.ShouldEqual, FastOscFrequency)

	test.That(t, pin.Set(ctx, false, nil), test.ShouldBeNil)
	test.That(t, chip.Powered(), test.ShouldBeFalse)
}
