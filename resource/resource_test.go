package resource

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/viam-modules/vl53l3cx/logging"
)

var testAPI = APINamespace(APINamespaceRDK).WithComponentType("widget")

type widgetConfig struct {
	Board   string `json:"board"`
	Address int    `json:"i2c_addr,omitempty"`
}

func (c *widgetConfig) Validate(path string) ([]string, error) {
	if c.Board == "" {
		return nil, NewConfigValidationFieldRequiredError(path, "board")
	}
	return []string{c.Board}, nil
}

type widget struct {
	Named
}

func (w *widget) Close(ctx context.Context) error {
	return nil
}

func TestModelAndAPIParsing(t *testing.T) {
	m, err := NewModelFromString("viam:tof:vl53l3cx")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m, test.ShouldResemble, NewModel("viam", "tof", "vl53l3cx"))

	m, err = NewModelFromString("fake")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.String(), test.ShouldEqual, "rdk:builtin:fake")

	_, err = NewModelFromString("a:b")
	test.That(t, err, test.ShouldNotBeNil)

	var api API
	test.That(t, api.UnmarshalText([]byte("sensor")), test.ShouldBeNil)
	test.That(t, api.String(), test.ShouldEqual, "rdk:component:sensor")
	test.That(t, api.IsComponent(), test.ShouldBeTrue)

	name := NewName(api, "front")
	test.That(t, name.String(), test.ShouldEqual, "rdk:component:sensor/front")
	test.That(t, name.UUID(), test.ShouldEqual, NewName(api, "front").UUID())
	test.That(t, name.Validate(), test.ShouldBeNil)
	test.That(t, NewName(api, " ").Validate(), test.ShouldNotBeNil)
}

func TestRegistrationAndValidate(t *testing.T) {
	model := NewDefaultModel("widget-test")
	RegisterComponent(testAPI, model, Registration[*widget, *widgetConfig]{
		Constructor: func(ctx context.Context, deps Dependencies, conf Config, logger logging.Logger) (*widget, error) {
			return &widget{Named: conf.ResourceName().AsNamed()}, nil
		},
	})
	defer Deregister(testAPI, model)

	test.That(t, func() {
		RegisterComponent(testAPI, model, Registration[*widget, *widgetConfig]{
			Constructor: func(context.Context, Dependencies, Config, logging.Logger) (*widget, error) { return nil, nil },
		})
	}, test.ShouldPanic)

	conf := Config{Name: "w1", API: testAPI, Model: model, Attributes: map[string]interface{}{}}
	_, err := conf.Validate("components.0")
	test.That(t, GetFieldFromFieldRequiredError(err), test.ShouldEqual, "board")

	conf = Config{
		Name:       "w1",
		API:        testAPI,
		Model:      model,
		Attributes: map[string]interface{}{"board": "pi", "i2c_addr": "41"},
	}
	deps, err := conf.Validate("components.0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"pi"})
	test.That(t, conf.Dependencies(), test.ShouldResemble, []string{"pi"})

	native, err := NativeConfig[*widgetConfig](conf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, native.Address, test.ShouldEqual, 41)

	reg, ok := LookupRegistration(testAPI, model)
	test.That(t, ok, test.ShouldBeTrue)
	res, err := reg.Constructor(context.Background(), nil, conf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Name(), test.ShouldResemble, NewName(testAPI, "w1"))

	_, err = res.DoCommand(context.Background(), nil)
	test.That(t, err, test.ShouldEqual, ErrDoUnimplemented)

	got, err := FromDependencies[*widget](Dependencies{res.Name(): res}, res.Name())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, res)
	_, err = FromDependencies[*widget](Dependencies{}, res.Name())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTransformAttributeMapRejectsUnknown(t *testing.T) {
	_, err := TransformAttributeMap[*widgetConfig](map[string]interface{}{"board": "pi", "bogus": 1})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bogus")
}
