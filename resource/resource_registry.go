package resource

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/viam-modules/vl53l3cx/logging"
)

type (
	// A Create creates a resource (component) from a collection of dependencies and a config.
	Create[ResourceT Resource] func(
		ctx context.Context,
		deps Dependencies,
		conf Config,
		logger logging.Logger,
	) (ResourceT, error)

	// AttributeMapConverter converts an attribute map into a native config type.
	AttributeMapConverter[ConfigT any] func(attributes map[string]interface{}) (ConfigT, error)
)

// APIModel uniquely identifies the construction information of a resource.
type APIModel struct {
	API   API
	Model Model
}

func (m APIModel) String() string {
	return fmt.Sprintf("%s/%s", m.API, m.Model)
}

var (
	registryMu sync.RWMutex
	registry   = map[APIModel]Registration[Resource, ConfigValidator]{}
)

// A Registration stores construction info for a resource. A single constructor is mandatory.
type Registration[ResourceT Resource, ConfigT any] struct {
	Constructor Create[ResourceT]

	// AttributeMapConverter is used to convert raw attributes to the resource's native config.
	AttributeMapConverter AttributeMapConverter[ConfigT]
}

// RegisterComponent registers a model for a component and its construction info.
func RegisterComponent[ResourceT Resource, ConfigT ConfigValidator](
	api API,
	model Model,
	reg Registration[ResourceT, ConfigT],
) {
	if !api.IsComponent() {
		panic(errors.Errorf("trying to register a non-component api: %q, model: %q", api, model))
	}
	registryMu.Lock()
	defer registryMu.Unlock()

	apiModel := APIModel{api, model}
	if _, old := registry[apiModel]; old {
		panic(errors.Errorf("trying to register two resources with same api: %q, model: %q", api, model))
	}
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for api: %q, model: %q", api, model))
	}
	if reg.AttributeMapConverter == nil {
		// provide one for free
		reg.AttributeMapConverter = TransformAttributeMap[ConfigT]
	}
	registry[apiModel] = makeGenericResourceRegistration(reg)
}

// Deregister removes a previously registered resource.
func Deregister(api API, model Model) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, APIModel{api, model})
}

// LookupRegistration looks up a creator by the given api and model. nil is returned if
// there is no creator registered.
func LookupRegistration(api API, model Model) (Registration[Resource, ConfigValidator], bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[APIModel{api, model}]
	return reg, ok
}

// RegisteredResources returns a copy of the registered resources.
func RegisteredResources() map[APIModel]Registration[Resource, ConfigValidator] {
	registryMu.RLock()
	defer registryMu.RUnlock()
	copied := make(map[APIModel]Registration[Resource, ConfigValidator], len(registry))
	for k, v := range registry {
		copied[k] = v
	}
	return copied
}

// makeGenericResourceRegistration allows a registration to be generic and ensures all input/output types
// are actually T's.
func makeGenericResourceRegistration[ResourceT Resource, ConfigT ConfigValidator](
	typed Registration[ResourceT, ConfigT],
) Registration[Resource, ConfigValidator] {
	return Registration[Resource, ConfigValidator]{
		Constructor: func(
			ctx context.Context,
			deps Dependencies,
			conf Config,
			logger logging.Logger,
		) (Resource, error) {
			return typed.Constructor(ctx, deps, conf, logger)
		},
		AttributeMapConverter: func(attributes map[string]interface{}) (ConfigValidator, error) {
			return typed.AttributeMapConverter(attributes)
		},
	}
}
