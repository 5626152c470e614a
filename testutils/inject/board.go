package inject

import (
	"context"

	"github.com/viam-modules/vl53l3cx/components/board"
	"github.com/viam-modules/vl53l3cx/resource"
)

// Board is an injected board.
type Board struct {
	board.Board
	name              resource.Name
	DoFunc            func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
	GPIOPinByNameFunc func(name string) (board.GPIOPin, error)
	I2CByNameFunc     func(name string) (board.I2C, bool)
	CloseFunc         func(ctx context.Context) error
}

// NewBoard returns a new injected board.
func NewBoard(name string) *Board {
	return &Board{name: board.Named(name)}
}

// Name returns the name of the resource.
func (b *Board) Name() resource.Name {
	return b.name
}

// GPIOPinByName calls the injected GPIOPinByName or the real version.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	if b.GPIOPinByNameFunc == nil {
		return b.Board.GPIOPinByName(name)
	}
	return b.GPIOPinByNameFunc(name)
}

// I2CByName calls the injected I2CByName or the real version.
func (b *Board) I2CByName(name string) (board.I2C, bool) {
	if b.I2CByNameFunc == nil {
		return b.Board.I2CByName(name)
	}
	return b.I2CByNameFunc(name)
}

// DoCommand calls the injected DoCommand or the real version.
func (b *Board) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	if b.DoFunc == nil {
		return b.Board.DoCommand(ctx, cmd)
	}
	return b.DoFunc(ctx, cmd)
}

// Close calls the injected Close or the real version.
func (b *Board) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		if b.Board == nil {
			return nil
		}
		return b.Board.Close(ctx)
	}
	return b.CloseFunc(ctx)
}

// GPIOPin is an injected GPIOPin.
type GPIOPin struct {
	board.GPIOPin
	SetFunc func(ctx context.Context, high bool, extra map[string]interface{}) error
	GetFunc func(ctx context.Context, extra map[string]interface{}) (bool, error)
}

// Set calls the injected Set or the real version.
func (gp *GPIOPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	if gp.SetFunc == nil {
		return gp.GPIOPin.Set(ctx, high, extra)
	}
	return gp.SetFunc(ctx, high, extra)
}

// Get calls the injected Get or the real version.
func (gp *GPIOPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	if gp.GetFunc == nil {
		return gp.GPIOPin.Get(ctx, extra)
	}
	return gp.GetFunc(ctx, extra)
}
