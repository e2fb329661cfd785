package server

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/util"
)

const (
	ConfigDefaultHz                  = 10
	ConfigMinHz                      = 1
	ConfigMaxHz                      = 500
	ConfigDefaultDbnum               = 16
	ConfigDefaultSetMaxIntsetEntries = 512
	ConfigDefaultActiveRehashing     = true
	ConfigDefaultLogLevel            = "notice"
)

var ErrConfig = errors.New("config error")

// ConfigError locates a bad directive in the configuration text.
type ConfigError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config line %d '%s': %s", e.Line, e.Text, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// Fatal formats e the way the server reports a configuration it cannot
// start with.
func (e *ConfigError) Fatal() string {
	return fmt.Sprintf("\n*** FATAL CONFIG FILE ERROR ***\nReading the configuration file, at line %d\n>>> '%s'\n%s\n",
		e.Line, e.Text, e.Reason)
}

type Config struct {
	Hz                  int
	Databases           int
	ActiveRehashing     bool
	LogLevel            slog.Level
	LogFile             string
	MaxMemory           int64
	HashSeed            []byte // nil: random at startup
	SetMaxIntsetEntries int
}

func DefaultConfig() *Config {
	return &Config{
		Hz:                  ConfigDefaultHz,
		Databases:           ConfigDefaultDbnum,
		ActiveRehashing:     ConfigDefaultActiveRehashing,
		LogLevel:            slog.LevelInfo,
		SetMaxIntsetEntries: ConfigDefaultSetMaxIntsetEntries,
	}
}

// ParseLogLevel maps the verbosity names onto slog levels.
func ParseLogLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug", "verbose":
		return slog.LevelDebug, true
	case "notice":
		return slog.LevelInfo, true
	case "warning":
		return slog.LevelWarn, true
	}
	return 0, false
}

// LoadConfig reads filename ("-" for stdin, "" for none) and appends
// options, a string of extra "directive args" lines, before parsing.
func LoadConfig(filename, options string) (*Config, error) {
	var config strings.Builder
	if filename != "" {
		b, err := readConfigFile(filename)
		if err != nil {
			return nil, err
		}
		config.Write(b)
	}
	if options != "" {
		config.WriteString("\n")
		config.WriteString(options)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromString(config.String()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(filename string) ([]byte, error) {
	var r io.Reader
	if filename == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("fatal error, can't open config file '%s': %w", filename, err)
		}
		defer f.Close()
		r = f
	}
	return io.ReadAll(bufio.NewReader(r))
}

// LoadFromString applies every directive of config to cfg.
func (cfg *Config) LoadFromString(config string) error {
	lines := strings.Split(config, "\n")
	for i, line := range lines {
		line = strings.Trim(line, " \t\r\n")

		// 跳过注释和空行
		if line == "" || line[0] == '#' {
			continue
		}

		fail := func(reason string) error {
			return &ConfigError{Line: i + 1, Text: line, Reason: reason}
		}

		argv, err := sds.SplitArgs(line)
		if err != nil {
			return fail("Unbalanced quotes in configuration line")
		}
		if len(argv) == 0 {
			continue
		}
		sds.ToLower(argv[0])
		name := argv[0].String()
		args := make([]string, len(argv)-1)
		for j, a := range argv[1:] {
			args[j] = a.String()
		}

		if reason := cfg.apply(name, args); reason != "" {
			return fail(reason)
		}
	}
	return nil
}

func (cfg *Config) apply(name string, args []string) string {
	if name != "include" && len(args) != 1 {
		return "wrong number of arguments"
	}
	switch name {
	case "hz":
		hz, err := strconv.Atoi(args[0])
		if err != nil || hz < 0 {
			return "Invalid hz value"
		}
		// 超出范围时截断
		hz = max(hz, ConfigMinHz)
		hz = min(hz, ConfigMaxHz)
		cfg.Hz = hz
	case "databases":
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return "Invalid number of databases"
		}
		cfg.Databases = n
	case "activerehashing":
		yes := util.YesNoToI(args[0])
		if yes == -1 {
			return "argument must be 'yes' or 'no'"
		}
		cfg.ActiveRehashing = yes == 1
	case "loglevel":
		level, ok := ParseLogLevel(args[0])
		if !ok {
			return "Invalid log level. Must be one of debug, verbose, notice, warning"
		}
		cfg.LogLevel = level
	case "logfile":
		cfg.LogFile = args[0]
		if cfg.LogFile != "" {
			// 先确认可以打开
			f, err := os.OpenFile(cfg.LogFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
			if err != nil {
				return fmt.Sprintf("Can't open the log file: %v", err)
			}
			f.Close()
		}
	case "maxmemory":
		v, ok := util.MemToLL(args[0])
		if !ok || v < 0 {
			return "Invalid maxmemory value"
		}
		cfg.MaxMemory = v
	case "hash-seed":
		seed, err := hex.DecodeString(args[0])
		if err != nil || len(seed) != 16 {
			return "hash-seed must be 32 hexadecimal characters"
		}
		cfg.HashSeed = seed
	case "set-max-intset-entries":
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return "Invalid set-max-intset-entries value"
		}
		cfg.SetMaxIntsetEntries = n
	case "include":
		if len(args) != 1 {
			return "wrong number of arguments"
		}
		b, err := readConfigFile(args[0])
		if err != nil {
			return err.Error()
		}
		if err := cfg.LoadFromString(string(b)); err != nil {
			return fmt.Sprintf("in included file '%s': %v", args[0], err)
		}
	default:
		return "Bad directive or wrong number of arguments"
	}
	return ""
}
