package robot

import (
	"context"

	"github.com/viam-modules/vl53l3cx/components/board"
)

// BoardsReadyFunc is called once every board exists and every enable pin is driven low, before
// any component is built.
type BoardsReadyFunc func(ctx context.Context, boards map[string]board.Board) error

// options configures a Robot.
type options struct {
	boardsReady BoardsReadyFunc
}

// Option configures how a Robot is built.
// Cribbed from https://github.com/grpc/grpc-go/blob/aff571cc86e6e7e740130dbbb32a9741558db805/dialoptions.go#L41
type Option interface {
	apply(*options)
}

// funcOption wraps a function that modifies options into an
// implementation of the Option interface.
type funcOption struct {
	f func(*options)
}

func (fdo *funcOption) apply(do *options) {
	fdo.f(do)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// WithBoardsReady returns an Option that runs f between building the boards and building the
// components, e.g. to attach simulated devices to a fake board.
func WithBoardsReady(f BoardsReadyFunc) Option {
	return newFuncOption(func(o *options) {
		o.boardsReady = f
	})
}
