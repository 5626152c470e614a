// Package board defines the interfaces that typically live on a single-board computer such as a
// Raspberry Pi: GPIO pins used as enable/reset lines and I2C buses used to talk to sensors.
package board

import (
	"context"

	"github.com/viam-modules/vl53l3cx/resource"
)

// SubtypeName is a constant that identifies the component resource API string "board".
const SubtypeName = "board"

// API is a variable that identifies the component resource API.
var API = resource.APINamespace(resource.APINamespaceRDK).WithComponentType(SubtypeName)

// Named is a helper for getting the named board's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// A Board represents a physical general purpose board that contains GPIO pins and I2C buses.
type Board interface {
	resource.Resource

	// GPIOPinByName returns a GPIOPin by name.
	GPIOPinByName(name string) (GPIOPin, error)

	// I2CByName returns an I2C bus by name.
	I2CByName(name string) (I2C, bool)
}

// A GPIOPin represents an individual GPIO pin on a board.
type GPIOPin interface {
	// Set sets the pin to either low or high.
	Set(ctx context.Context, high bool, extra map[string]interface{}) error

	// Get gets the high/low state of the pin.
	Get(ctx context.Context, extra map[string]interface{}) (bool, error)
}

// FromDependencies is a helper for getting the named board from a collection of dependencies.
func FromDependencies(deps resource.Dependencies, name string) (Board, error) {
	return resource.FromDependencies[Board](deps, Named(name))
}
