package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/viam-modules/vl53l3cx/config"
	"github.com/viam-modules/vl53l3cx/logging"
)

const simulatedConfig = `
boards:
  - name: local
    model: fake
    attributes:
      i2c_buses: ["1"]
components:
  - name: front
    model: vl53l3cx
    attributes:
      board: local
      i2c_bus: "1"
      i2c_addr: 0x30
      enable_pin: xshut
      update_interval_ms: 20
      poll_interval_ms: 2
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tof.yaml")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeConfig(t, simulatedConfig)
	app := NewApp()
	var out bytes.Buffer
	app.Writer = &out

	test.That(t, app.Run([]string{"tofranger", "validate", "--config", path}), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "1 boards, 1 components, 0 jobs")
	test.That(t, out.String(), test.ShouldContainSubstring, "front")
	test.That(t, out.String(), test.ShouldContainSubstring, "0x30")

	err := app.Run([]string{"tofranger", "validate", "-c", filepath.Join(t.TempDir(), "missing.yaml")})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunCommandSimulated(t *testing.T) {
	defer logging.ReplaceGlobal(logging.Global())
	path := writeConfig(t, simulatedConfig)

	app := NewApp()
	err := app.Run([]string{"tofranger", "run", "-c", path, "--duration", "200ms", "--sim-distance-mm", "750"})
	test.That(t, err, test.ShouldBeNil)
}

func TestDefaultJobs(t *testing.T) {
	cfg, err := config.Read(writeConfig(t, simulatedConfig), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, defaultJobs(cfg), test.ShouldResemble, []config.JobConfig{{
		Name:     "front readings",
		Schedule: "1s",
		Resource: "front",
		Method:   config.JobMethodReadings,
	}})
}
