package config

import (
	"bytes"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/viam-modules/vl53l3cx/logging"
)

// Read reads a config from the given file, expanding ${VAR} references from the environment
// first. YAML and JSON files are both accepted.
func Read(filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	cfg := &Config{ConfigFilePath: originalPath}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Errorf("config %q is empty", originalPath)
		}
		return nil, errors.Wrap(err, "cannot parse config")
	}
	if err := cfg.Ensure(); err != nil {
		return nil, err
	}

	logger.Debugw("config read",
		"path", originalPath,
		"boards", len(cfg.Boards),
		"components", len(cfg.Components),
	)
	return cfg, nil
}
