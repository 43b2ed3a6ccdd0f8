package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/crmoraes/nga/internal/rules"
)

type Config struct {
	DataDir          string
	DBPath           string
	RulesPath        string
	HooksPath        string
	ProjectHooksPath string
	LogLevel         string
	LogFormat        string
}

func New() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("NGA_DATA_DIR", filepath.Join(homeDir, ".nga"))

	c := &Config{
		DataDir:          dataDir,
		DBPath:           filepath.Join(dataDir, "nga.db"),
		RulesPath:        getEnv("NGA_RULES", ""),
		HooksPath:        getEnv("NGA_HOOKS", ""),
		ProjectHooksPath: ".nga/hooks.lua",
		LogLevel:         strings.ToLower(getEnv("NGA_LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(getEnv("NGA_LOG_FORMAT", "console")),
	}

	return c, nil
}

func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(c.OutputsDir(), 0755); err != nil {
		return err
	}
	return nil
}

func (c *Config) OutputsDir() string {
	return filepath.Join(c.DataDir, "outputs")
}

// Rules loads the configured rules file, or the built-in rules when none is set.
func (c *Config) Rules() (*rules.Rules, error) {
	if c.RulesPath == "" {
		return rules.Default(), nil
	}
	return rules.Load(c.RulesPath)
}

// Hooks returns the hooks file to use: NGA_HOOKS when set, else the project
// file when it exists, else "".
func (c *Config) Hooks() string {
	if c.HooksPath != "" {
		return c.HooksPath
	}
	if _, err := os.Stat(c.ProjectHooksPath); err == nil {
		return c.ProjectHooksPath
	}
	return ""
}

// Logger builds the diagnostics logger. It always writes to stderr so stdout
// stays free for converted output.
func (c *Config) Logger() (*zap.Logger, error) {
	var level zapcore.Level
	switch c.LogLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "info", "":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	switch c.LogFormat {
	case "console", "":
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return zapConfig.Build(zap.AddCaller())
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
