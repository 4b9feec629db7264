// Package queuefileconfig loads queuefile-cli settings from layered JSONC
// config files, following the same global-then-project-then-flags
// precedence the rest of the ambient tooling uses.
package queuefileconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// ConfigFileName is the project-local config file name, resolved relative
// to the working directory.
const ConfigFileName = ".queuefile.json5"

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("cannot read config file")
	errConfigInvalid      = errors.New("invalid config file")
)

// maxAllowedFileLength mirrors the engine's own ceiling: header fields are
// 32-bit big-endian words, so no override may push MaxFileLength past the
// 31-bit boundary.
const maxAllowedFileLength = math.MaxInt32 - 16

// Config holds the settings the CLI and library consult when a path isn't
// given explicitly.
type Config struct {
	DefaultQueuePath string `json:"default_queue_path,omitempty"` //nolint:tagliatelle // snake_case for config file
	InitialLength    uint32 `json:"initial_length,omitempty"`
	MaxFileLength    uint32 `json:"max_file_length,omitempty"`
}

// Sources records which files, if any, contributed to a loaded Config.
type Sources struct {
	Global  string
	Project string
}

// Default returns the built-in configuration: no default path, engine
// defaults for length fields.
func Default() Config {
	return Config{}
}

// getGlobalConfigPath returns $XDG_CONFIG_HOME/queuefile/config.json5, or
// ~/.config/queuefile/config.json5 if XDG_CONFIG_HOME is unset. Returns
// empty string if the home directory cannot be determined.
func getGlobalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "queuefile", "config.json5")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "queuefile", "config.json5")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "queuefile", "config.json5")
	}

	return ""
}

// Load resolves configuration with the following precedence (highest
// wins): built-in defaults < global config < project config
// (workDir/.queuefile.json5, or the file at configPath if non-empty) <
// cliOverrides.
func Load(workDir, configPath string, cliOverrides Config, env []string) (Config, Sources, error) {
	cfg := Default()

	var sources Sources

	globalCfg, globalPath, err := loadGlobalConfig(env)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, configPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	cfg = merge(cfg, cliOverrides)

	if err := validate(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

func loadGlobalConfig(env []string) (Config, string, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var (
		path      string
		mustExist bool
	)

	if configPath != "" {
		path = configPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		mustExist = true

		if _, err := os.Stat(path); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
		}
	} else {
		path = filepath.Join(workDir, ConfigFileName)
		mustExist = false
	}

	cfg, loaded, err := loadConfigFile(path, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", errConfigFileRead, path)
		}

		return Config{}, false, nil
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.DefaultQueuePath != "" {
		base.DefaultQueuePath = overlay.DefaultQueuePath
	}

	if overlay.InitialLength != 0 {
		base.InitialLength = overlay.InitialLength
	}

	if overlay.MaxFileLength != 0 {
		base.MaxFileLength = overlay.MaxFileLength
	}

	return base
}

func validate(cfg Config) error {
	if cfg.MaxFileLength != 0 && cfg.MaxFileLength > maxAllowedFileLength {
		return fmt.Errorf("%w: max_file_length %d exceeds ceiling %d", errConfigInvalid, cfg.MaxFileLength, maxAllowedFileLength)
	}

	return nil
}

// Format renders cfg as indented JSON; Save writes this form to disk.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting config: %w", err)
	}

	return string(data), nil
}

// Save writes cfg to path as indented JSON via a temp-file-then-rename, so
// a crash or concurrent read mid-write never observes a partial config
// file. Used by the CLI's config-init command.
func Save(path string, cfg Config) error {
	formatted, err := Format(cfg)
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, bytes.NewReader([]byte(formatted))); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}

	return nil
}
