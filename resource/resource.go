// Package resource contains a Resource type that can be used to hold information about a component.
package resource

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Placeholder definitions for a few known constants.
const (
	APINamespaceRDK       = "rdk"
	APITypeComponentName  = "component"
	DefaultModelNamespace = "rdk"
	DefaultModelFamily    = "builtin"
)

var (
	modelRegexValidator      = regexp.MustCompile(`^([\w-]+):([\w-]+):([\w-]+)$`)
	shortModelRegexValidator = regexp.MustCompile(`^([\w-]+)$`)
	apiRegexValidator        = regexp.MustCompile(`^([\w-]+):([\w-]+):([\w-]+)$`)
)

// ErrDoUnimplemented is returned when a resource does not support a DoCommand request.
var ErrDoUnimplemented = errors.New("DoCommand unimplemented")

// API identifies a resource API such as rdk:component:sensor.
type API struct {
	Namespace   string
	Type        string
	SubtypeName string
}

// APINamespace is used to build component APIs in the rdk namespace.
type APINamespace string

// WithComponentType returns the component API for the given subtype.
func (n APINamespace) WithComponentType(subtypeName string) API {
	return API{Namespace: string(n), Type: APITypeComponentName, SubtypeName: subtypeName}
}

// IsComponent returns whether the API is a component API.
func (a API) IsComponent() bool {
	return a.Type == APITypeComponentName
}

// String returns the triplet form of the API.
func (a API) String() string {
	return fmt.Sprintf("%s:%s:%s", a.Namespace, a.Type, a.SubtypeName)
}

// Validate ensures that important fields exist.
func (a API) Validate() error {
	if a.Namespace == "" {
		return errors.New("namespace field for api missing")
	}
	if a.Type == "" {
		return errors.New("type field for api missing")
	}
	if a.SubtypeName == "" {
		return errors.New("subtype field for api missing")
	}
	return nil
}

// UnmarshalText parses "namespace:type:subtype" or a bare subtype, which is taken as an rdk component.
func (a *API) UnmarshalText(text []byte) error {
	s := string(text)
	if matches := apiRegexValidator.FindStringSubmatch(s); matches != nil {
		*a = API{Namespace: matches[1], Type: matches[2], SubtypeName: matches[3]}
		return nil
	}
	if shortModelRegexValidator.MatchString(s) {
		*a = APINamespace(APINamespaceRDK).WithComponentType(s)
		return nil
	}
	return errors.Errorf("not a valid api: %q", s)
}

// MarshalText returns the triplet form of the API.
func (a API) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Model represents an individual model within a family.
type Model struct {
	Namespace string
	Family    string
	Name      string
}

// NewModel creates a new Model based on parameters passed in.
func NewModel(namespace, family, name string) Model {
	return Model{Namespace: namespace, Family: family, Name: name}
}

// NewDefaultModel creates a new Model in the rdk:builtin family.
func NewDefaultModel(name string) Model {
	return NewModel(DefaultModelNamespace, DefaultModelFamily, name)
}

// NewModelFromString parses a full "namespace:family:name" model or a short name in the default family.
func NewModelFromString(modelStr string) (Model, error) {
	if matches := modelRegexValidator.FindStringSubmatch(modelStr); matches != nil {
		return NewModel(matches[1], matches[2], matches[3]), nil
	}
	if shortModelRegexValidator.MatchString(modelStr) {
		return NewDefaultModel(modelStr), nil
	}
	return Model{}, errors.Errorf("string %q is not a valid model name", modelStr)
}

// String returns the resource model string for the resource.
func (m Model) String() string {
	return fmt.Sprintf("%s:%s:%s", m.Namespace, m.Family, m.Name)
}

// UnmarshalText parses a model from configuration.
func (m *Model) UnmarshalText(text []byte) error {
	parsed, err := NewModelFromString(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText returns the full model string.
func (m Model) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Name represents a known component of a machine.
type Name struct {
	API  API
	Name string
}

// NewName creates a new Name based on parameters passed in.
func NewName(api API, name string) Name {
	return Name{API: api, Name: name}
}

// UUID returns a stable name-derived identifier for the resource.
func (n Name) UUID() string {
	return uuid.NewSHA1(uuid.NameSpaceX500, []byte(n.String())).String()
}

// String returns the fully qualified name for the resource.
func (n Name) String() string {
	return fmt.Sprintf("%s/%s", n.API, n.Name)
}

// Validate ensures that important fields exist and are valid.
func (n Name) Validate() error {
	if err := n.API.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(n.Name) == "" {
		return errors.New("name field for resource is empty")
	}
	return nil
}

// A Resource is the basic unit of a machine: it has a name, accepts free-form commands and
// must release what it holds on Close.
type Resource interface {
	Name() Name
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
	Close(ctx context.Context) error
}

// Named is to be embedded by resources that just need to return their name and have no
// DoCommand support.
type Named interface {
	Name() Name
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

type selfNamed struct {
	name Name
}

// AsNamed is a helper to let this name return itself as a basic resource that does nothing.
func (n Name) AsNamed() Named {
	return selfNamed{name: n}
}

func (s selfNamed) Name() Name {
	return s.name
}

func (s selfNamed) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, ErrDoUnimplemented
}

// Dependencies are a set of resources that a resource requires for reconfiguration.
type Dependencies map[Name]Resource

// FromDependencies returns the named resource from the dependencies, asserted to T.
func FromDependencies[T Resource](deps Dependencies, name Name) (T, error) {
	var zero T
	res, ok := deps[name]
	if !ok {
		return zero, DependencyNotFoundError(name)
	}
	typed, ok := res.(T)
	if !ok {
		return zero, errors.Errorf("expected resource %q to be %T but got %T", name, zero, res)
	}
	return typed, nil
}
