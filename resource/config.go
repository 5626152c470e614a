package resource

import (
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// A Config describes the configuration of a resource.
type Config struct {
	Name       string                 `json:"name" yaml:"name"`
	API        API                    `json:"api" yaml:"api"`
	Model      Model                  `json:"model" yaml:"model"`
	DependsOn  []string               `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Attributes map[string]interface{} `json:"attributes" yaml:"attributes"`

	ConvertedAttributes ConfigValidator `json:"-" yaml:"-"`
	ImplicitDependsOn   []string        `json:"-" yaml:"-"`
}

// A ConfigValidator validates a configuration and also
// returns dependencies that were implicitly discovered.
type ConfigValidator interface {
	Validate(path string) ([]string, error)
}

// NativeConfig returns the native config from the given config via its
// converted attributes.
func NativeConfig[T any](conf Config) (T, error) {
	var zero T
	typed, ok := conf.ConvertedAttributes.(T)
	if !ok {
		return zero, errors.Errorf("expected config attributes to be %T but got %T", zero, conf.ConvertedAttributes)
	}
	return typed, nil
}

// ResourceName returns the resource name for the component.
func (conf *Config) ResourceName() Name {
	return NewName(conf.API, conf.Name)
}

// String returns a verbose representation of the config.
func (conf *Config) String() string {
	return conf.ResourceName().String()
}

// Dependencies returns the explicit and implicit dependencies of the resource.
func (conf *Config) Dependencies() []string {
	deps := make([]string, 0, len(conf.DependsOn)+len(conf.ImplicitDependsOn))
	deps = append(deps, conf.DependsOn...)
	return append(deps, conf.ImplicitDependsOn...)
}

// Validate ensures all parts of the config are valid, converting raw attributes with the
// registered converter first. Implicit dependencies are recorded on the config.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.Name == "" {
		return nil, NewConfigValidationFieldRequiredError(path, "name")
	}
	if err := conf.API.Validate(); err != nil {
		return nil, NewConfigValidationError(path, err)
	}
	if conf.ConvertedAttributes == nil {
		reg, ok := LookupRegistration(conf.API, conf.Model)
		if !ok {
			return nil, errors.Errorf("%s: no registration for api %q, model %q", path, conf.API, conf.Model)
		}
		converted, err := reg.AttributeMapConverter(conf.Attributes)
		if err != nil {
			return nil, NewConfigValidationError(path, err)
		}
		conf.ConvertedAttributes = converted
	}
	deps, err := conf.ConvertedAttributes.Validate(path)
	if err != nil {
		return nil, err
	}
	conf.ImplicitDependsOn = deps
	return deps, nil
}

// TransformAttributeMap uses an attribute map to transform attributes to the prescribed format.
// Unknown attributes are rejected.
func TransformAttributeMap[T any](attributes map[string]interface{}) (T, error) {
	var out T

	var forResult interface{}

	toT := reflect.TypeOf(out)
	if toT == nil {
		// nothing to transform
		return out, nil
	}
	if toT.Kind() == reflect.Ptr {
		// needs to be allocated then
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate default config type %T", out)
		}
		forResult = out
	} else {
		forResult = &out
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           forResult,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return out, err
	}
	return out, nil
}
