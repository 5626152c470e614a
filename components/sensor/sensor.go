// Package sensor defines an abstract sensing device that can provide measurement readings.
package sensor

import (
	"context"

	"github.com/viam-modules/vl53l3cx/resource"
)

// SubtypeName is a constant that identifies the component resource API string "sensor".
const SubtypeName = "sensor"

// API is a variable that identifies the component resource API.
var API = resource.APINamespace(resource.APINamespaceRDK).WithComponentType(SubtypeName)

// Named is a helper for getting the named Sensor's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// A Sensor represents a general purpose sensors that can give arbitrary readings
// of some thing that it is sensing.
type Sensor interface {
	resource.Resource
	// Readings return data specific to the type of sensor and can be of any type.
	Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error)
}
