// Package robot builds the boards and sensors a config describes and owns them until Close.
package robot

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/viam-modules/vl53l3cx/components/board"
	"github.com/viam-modules/vl53l3cx/config"
	"github.com/viam-modules/vl53l3cx/logging"
	"github.com/viam-modules/vl53l3cx/resource"
)

// An enableTarget is a component attribute set with a pin that powers the device.
type enableTarget interface {
	EnableTarget() (boardName, pin string, ok bool)
}

// Robot holds every resource built from a config.
type Robot struct {
	logger logging.Logger

	mu     sync.Mutex
	boards map[string]board.Board
	// resources in the order they were built
	order     []resource.Name
	resources map[resource.Name]resource.Resource
}

// New builds every board, drives every configured enable pin low and then builds the components
// one at a time in config order. Devices that share a bus all power up at the same address, so
// each must be held off until its own setup moves it.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (_ *Robot, err error) {
	var rOpts options
	for _, opt := range opts {
		opt.apply(&rOpts)
	}

	r := &Robot{
		logger:    logger,
		boards:    make(map[string]board.Board, len(cfg.Boards)),
		resources: map[resource.Name]resource.Resource{},
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, r.Close(ctx))
		}
	}()

	for _, conf := range cfg.Boards {
		res, err := r.build(ctx, conf, nil)
		if err != nil {
			return nil, err
		}
		b, ok := res.(board.Board)
		if !ok {
			return nil, errors.Errorf("%q is not a board", conf.Name)
		}
		r.boards[conf.Name] = b
	}

	if err := r.holdEnablePinsLow(ctx, cfg.Components); err != nil {
		return nil, err
	}
	if rOpts.boardsReady != nil {
		if err := rOpts.boardsReady(ctx, r.boards); err != nil {
			return nil, err
		}
	}

	for _, conf := range cfg.Components {
		deps := resource.Dependencies{}
		for _, dep := range conf.Dependencies() {
			b, ok := r.boards[dep]
			if !ok {
				return nil, resource.DependencyNotFoundError(board.Named(dep))
			}
			deps[b.Name()] = b
		}
		if _, err := r.build(ctx, conf, deps); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Robot) build(ctx context.Context, conf resource.Config, deps resource.Dependencies) (resource.Resource, error) {
	reg, ok := resource.LookupRegistration(conf.API, conf.Model)
	if !ok {
		return nil, errors.Errorf("no registration for api %q, model %q", conf.API, conf.Model)
	}
	logger := r.logger.Sublogger(conf.Name)
	res, err := reg.Constructor(ctx, deps, conf, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot build %s", conf.ResourceName())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, res.Name())
	r.resources[res.Name()] = res
	r.logger.Debugw("built resource", "name", res.Name().String(), "model", conf.Model.String(), "uuid", res.Name().UUID())
	return res, nil
}

func (r *Robot) holdEnablePinsLow(ctx context.Context, components []resource.Config) error {
	for _, conf := range components {
		target, ok := conf.ConvertedAttributes.(enableTarget)
		if !ok {
			continue
		}
		boardName, pinName, ok := target.EnableTarget()
		if !ok {
			continue
		}
		b, ok := r.boards[boardName]
		if !ok {
			return resource.DependencyNotFoundError(board.Named(boardName))
		}
		pin, err := b.GPIOPinByName(pinName)
		if err != nil {
			return errors.Wrapf(err, "%s: cannot find enable pin %s", conf.Name, pinName)
		}
		if err := pin.Set(ctx, false, nil); err != nil {
			return errors.Wrapf(err, "%s: cannot drive enable pin %s low", conf.Name, pinName)
		}
	}
	return nil
}

// ResourceByName returns the component or board with the given name.
func (r *Robot) ResourceByName(name string) (resource.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.order {
		if n.Name == name {
			return r.resources[n], nil
		}
	}
	return nil, errors.Errorf("resource %q not found", name)
}

// ResourceNames returns the names of everything built, boards first.
func (r *Robot) ResourceNames() []resource.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]resource.Name(nil), r.order...)
}

// Close closes every resource in the reverse of the order they were built.
func (r *Robot) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if closeErr := r.resources[name].Close(ctx); closeErr != nil {
			err = multierr.Combine(err, errors.Wrapf(closeErr, "cannot close %s", name))
		}
	}
	r.order = nil
	r.resources = map[resource.Name]resource.Resource{}
	return err
}
