package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes where and how verbosely a process logs.
type Config struct {
	Level string `json:"level" yaml:"level"`
	// File, when set, additionally writes logs to a size-rotated file.
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	JSON       bool   `json:"json,omitempty" yaml:"json,omitempty"`
}

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
)

// NewFromConfig builds a named logger writing to stdout and, optionally, to a rotating file.
// An empty level means INFO.
func NewFromConfig(name string, conf Config) (Logger, error) {
	lvl := INFO
	if conf.Level != "" {
		parsed, err := LevelFromString(conf.Level)
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}
	level := zap.NewAtomicLevelAt(lvl.AsZap())

	encCfg := utcEncoderConfig(NewLoggerConfig().EncoderConfig)
	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(encCfg, conf.JSON), zapcore.Lock(os.Stdout), level),
	}

	if conf.File != "" {
		fileCfg := encCfg
		// no color escapes in files
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		rotator := &lumberjack.Logger{
			Filename:   conf.File,
			MaxSize:    conf.MaxSizeMB,
			MaxBackups: conf.MaxBackups,
		}
		if rotator.MaxSize == 0 {
			rotator.MaxSize = defaultMaxSizeMB
		}
		if rotator.MaxBackups == 0 {
			rotator.MaxBackups = defaultMaxBackups
		}
		cores = append(cores, zapcore.NewCore(newEncoder(fileCfg, conf.JSON), zapcore.AddSync(rotator), level))
	}

	return newImpl(name, level, cores...), nil
}

func newEncoder(cfg zapcore.EncoderConfig, json bool) zapcore.Encoder {
	if json {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	return zapcore.NewConsoleEncoder(cfg)
}
