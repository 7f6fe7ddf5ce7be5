// Package logging builds the zap logger shared by the CLI and the session components.
package logging

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output targets.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Conf holds logging configuration.
type Conf struct {
	Level      string `mapstructure:"level"`      // debug, info, warn, error
	Encoding   string `mapstructure:"encoding"`   // json or console
	Output     string `mapstructure:"output"`     // stdout, stderr or file
	Path       string `mapstructure:"path"`       // directory of the log file
	Filename   string `mapstructure:"filename"`   // log file name
	RotateSize int    `mapstructure:"rotateSize"` // MB per file before rotation
	RotateNum  int    `mapstructure:"rotateNum"`  // rotated files kept
	KeepDays   int    `mapstructure:"keepDays"`   // days rotated files are kept
}

// Defaults returns the default configuration.
func Defaults() Conf {
	return Conf{
		Level:      "info",
		Encoding:   "console",
		Output:     OutputStderr,
		Path:       "./logs",
		Filename:   "hrsession.log",
		RotateSize: 100,
		RotateNum:  10,
		KeepDays:   7,
	}
}

// Validate checks the configuration and fills rotation defaults.
func (c *Conf) Validate() error {
	switch c.Output {
	case "", OutputStdout, OutputStderr:
	case OutputFile:
		if c.Path == "" {
			return errors.New("log path is required when output is 'file'")
		}
		if c.Filename == "" {
			c.Filename = Defaults().Filename
		}
		if c.RotateSize <= 0 {
			c.RotateSize = 100
		}
		if c.RotateNum <= 0 {
			c.RotateNum = 10
		}
		if c.KeepDays <= 0 {
			c.KeepDays = 7
		}
	default:
		return errors.Newf("unknown log output %q", c.Output)
	}
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	return nil
}

// New builds a logger from conf.
func New(conf Conf) (*zap.Logger, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid log config")
	}
	level, _ := ParseLevel(conf.Level)

	var sink zapcore.WriteSyncer
	switch conf.Output {
	case OutputStdout:
		sink = zapcore.AddSync(os.Stdout)
	case OutputFile:
		sink = fileWriter(conf)
	default:
		sink = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(encoder(conf.Encoding), sink, level)
	return zap.New(core, zap.AddCaller()), nil
}

// ParseLevel maps a level name to a zap level. An empty name is info.
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return zapcore.InfoLevel, errors.Newf("unknown log level %q", name)
	}
	return level, nil
}

func encoder(encoding string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	if encoding == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func fileWriter(conf Conf) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(conf.Path, conf.Filename),
		MaxSize:    conf.RotateSize,
		MaxBackups: conf.RotateNum,
		MaxAge:     conf.KeepDays,
		Compress:   true,
	})
}
