package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/viam-modules/vl53l3cx/components/board"
	fakeboard "github.com/viam-modules/vl53l3cx/components/board/fake"
	"github.com/viam-modules/vl53l3cx/components/sensor"
	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx"
	"github.com/viam-modules/vl53l3cx/config"
	"github.com/viam-modules/vl53l3cx/logging"
)

const twoSensors = `
log:
  level: debug
boards:
  - name: local
    model: fake
    attributes:
      i2c_buses: ["${TOF_BUS}"]
components:
  - name: left
    model: vl53l3cx
    attributes:
      board: local
      i2c_bus: "${TOF_BUS}"
      i2c_addr: 0x30
      enable_pin: xshut_left
  - name: right
    model: vl53l3cx
    attributes:
      board: local
      i2c_bus: "${TOF_BUS}"
      i2c_addr: 0x31
      enable_pin: xshut_right
      mode: furtherest
jobs:
  - name: report
    schedule: 1s
    resource: left
    method: Readings
  - name: nightly calibration
    schedule: "0 3 * * *"
    resource: right
    method: DoCommand
    command:
      calibrate: true
`

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestRead(t *testing.T) {
	logger := logging.NewTestLogger(t)
	t.Setenv("TOF_BUS", "3")
	path := writeConfig(t, "tof.yaml", twoSensors)

	cfg, err := config.Read(path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, cfg.Log.Level, test.ShouldEqual, "debug")

	test.That(t, cfg.Boards, test.ShouldHaveLength, 1)
	test.That(t, cfg.Boards[0].ResourceName(), test.ShouldResemble, board.Named("local"))
	test.That(t, cfg.Boards[0].Model, test.ShouldResemble, fakeboard.Model)
	boardConf, ok := cfg.Boards[0].ConvertedAttributes.(*fakeboard.Config)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, boardConf.I2CBuses, test.ShouldResemble, []string{"3"})

	test.That(t, cfg.Components, test.ShouldHaveLength, 2)
	right := cfg.FindComponent("right")
	test.That(t, right, test.ShouldNotBeNil)
	test.That(t, right.ResourceName(), test.ShouldResemble, sensor.Named("right"))
	test.That(t, right.Model, test.ShouldResemble, vl53l3cx.Model)
	test.That(t, right.Dependencies(), test.ShouldResemble, []string{"local"})
	sensorConf, ok := right.ConvertedAttributes.(*vl53l3cx.Config)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, sensorConf.I2CBus, test.ShouldEqual, "3")
	test.That(t, sensorConf.I2CAddr, test.ShouldEqual, 0x31)
	test.That(t, sensorConf.Mode, test.ShouldEqual, "furtherest")

	test.That(t, cfg.FindComponent("middle"), test.ShouldBeNil)

	test.That(t, cfg.Jobs, test.ShouldHaveLength, 2)
	d, ok := cfg.Jobs[0].Duration()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d, test.ShouldEqual, time.Second)
	_, ok = cfg.Jobs[1].Duration()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, cfg.Jobs[1].Command, test.ShouldResemble, map[string]interface{}{"calibrate": true})

	summary := cfg.String()
	test.That(t, summary, test.ShouldContainSubstring, "0x31")
	test.That(t, summary, test.ShouldContainSubstring, "nightly calibration")
	test.That(t, summary, test.ShouldContainSubstring, "0 3 * * *")
}

func TestReadJSON(t *testing.T) {
	path := writeConfig(t, "tof.json", `{
  "boards": [{"name": "local", "model": "fake", "attributes": {"i2c_buses": ["1"]}}],
  "components": [{"name": "front", "api": "rdk:component:sensor", "model": "rdk:builtin:vl53l3cx",
    "attributes": {"board": "local", "i2c_bus": "1"}}]
}`)
	cfg, err := config.Read(path, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Jobs, test.ShouldBeEmpty)
	test.That(t, cfg.FindComponent("front").ResourceName(), test.ShouldResemble, sensor.Named("front"))
}

func TestReadErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := config.Read(filepath.Join(t.TempDir(), "missing.yaml"), logger)
	test.That(t, err, test.ShouldNotBeNil)

	for _, tc := range []struct {
		name     string
		contents string
		errMsg   string
	}{
		{"empty", "", "is empty"},
		{"unknown field", "bords: []\n", "bords"},
		{"unknown model", `
boards:
  - name: local
    model: abacus
`, "no registration"},
		{"missing attribute", `
boards:
  - name: local
    model: fake
components:
  - name: front
    model: vl53l3cx
    attributes:
      board: local
`, "i2c_bus"},
		{"unknown board", `
boards:
  - name: local
    model: fake
components:
  - name: front
    model: vl53l3cx
    attributes:
      board: remote
      i2c_bus: "1"
`, "not a configured board"},
		{"duplicate name", `
boards:
  - name: local
    model: fake
components:
  - name: front
    model: vl53l3cx
    attributes: {board: local, i2c_bus: "1"}
  - name: front
    model: vl53l3cx
    attributes: {board: local, i2c_bus: "2"}
`, "not unique"},
		{"shared address", `
boards:
  - name: local
    model: fake
components:
  - name: front
    model: vl53l3cx
    attributes: {board: local, i2c_bus: "1"}
  - name: back
    model: vl53l3cx
    attributes: {board: local, i2c_bus: "1"}
`, "both use address 0x29"},
		{"board with sensor api", `
boards:
  - name: local
    api: sensor
    model: fake
`, "api must be"},
		{"job without resource", `
jobs:
  - name: report
    schedule: 1s
    method: Readings
`, "resource"},
		{"job on unknown component", `
jobs:
  - name: report
    schedule: 1s
    resource: front
    method: Readings
`, "unknown component"},
		{"job with bad schedule", `
jobs:
  - name: report
    schedule: sometimes
    resource: front
    method: Readings
`, "neither a duration nor a cron"},
		{"job with unknown method", `
jobs:
  - name: report
    schedule: 1s
    resource: front
    method: Reboot
`, "Reboot"},
		{"command job without command", `
jobs:
  - name: calibrate
    schedule: 1h
    resource: front
    method: DoCommand
`, "command"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, "tof.yaml", strings.TrimPrefix(tc.contents, "\n"))
			_, err := config.Read(path, logger)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errMsg)
		})
	}
}
