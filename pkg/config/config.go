// Package config loads the go-docstore server configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/adfharrison1/go-docstore/pkg/storage"
)

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigInvalid      = errors.New("invalid config")
)

// Config holds the server settings. Files are JSON with comments and
// trailing commas allowed.
type Config struct {
	Port         string              `json:"port"`
	DataDir      string              `json:"data_dir"`
	Format       storage.Format      `json:"format"`
	Backend      storage.BackendKind `json:"backend"`
	AtomicWrites bool                `json:"atomic_writes"`
	EventBuffer  int                 `json:"event_buffer"`
	MatcherCache int                 `json:"matcher_cache"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Port:         "8080",
		DataDir:      "./data",
		Format:       storage.FormatJSON,
		Backend:      storage.BackendFile,
		EventBuffer:  64,
		MatcherCache: 128,
	}
}

// Load reads path on top of the defaults. An empty path returns Default().
// Fields absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := Parse(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}
	return cfg, nil
}

// Parse decodes JSONC data into cfg and validates the result
func Parse(data []byte, cfg *Config) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}

	decoder := json.NewDecoder(strings.NewReader(string(standardized)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate checks enumerated values and bounds
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port cannot be empty")
	}
	if c.DataDir == "" {
		return errors.New("data_dir cannot be empty")
	}
	switch c.Format {
	case storage.FormatJSON, storage.FormatBinary:
	default:
		return fmt.Errorf("unknown format %q (want json or binary)", c.Format)
	}
	switch c.Backend {
	case storage.BackendFile, storage.BackendBolt:
	default:
		return fmt.Errorf("unknown backend %q (want file or bolt)", c.Backend)
	}
	if c.EventBuffer < 0 {
		return errors.New("event_buffer cannot be negative")
	}
	if c.MatcherCache < 0 {
		return errors.New("matcher_cache cannot be negative")
	}
	return nil
}

// StorageOptions translates the config into engine options
func (c Config) StorageOptions() []storage.StorageOption {
	return []storage.StorageOption{
		storage.WithDataDir(c.DataDir),
		storage.WithFormat(c.Format),
		storage.WithBackend(c.Backend),
		storage.WithAtomicWrites(c.AtomicWrites),
		storage.WithEventBuffer(c.EventBuffer),
		storage.WithMatcherCache(c.MatcherCache),
	}
}
