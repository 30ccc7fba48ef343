// Package config loads the YAML configuration shared by the overlay
// binaries.
//
// A missing file is not an error: Load returns Default in that case. Unknown
// keys are rejected so typos do not silently fall back to defaults.
//
//	socket: /run/user/1000/overlay.sock
//	store:
//	  driver: bolt
//	  path: ~/.cache/overlay/state.db
//	render:
//	  refresh: 16ms
//	  resize_debounce: 16ms
//	  max_fps: 60
//	  backend: vulkan
//	log:
//	  level: info
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/overlay/store"
	"github.com/gogpu/overlay/surface"
)

// Rendering backends selectable from the configuration.
const (
	BackendVulkan = "vulkan"
	BackendNoop   = "noop"
)

const appDir = "overlay"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the complete configuration.
type Config struct {
	// Socket is the unix socket the daemon listens on.
	Socket string      `yaml:"socket"`
	Store  StoreConfig `yaml:"store"`
	Render Render      `yaml:"render"`
	Log    Log         `yaml:"log"`
}

// StoreConfig selects the persisted state backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Render configures page hosts.
type Render struct {
	Refresh        time.Duration `yaml:"refresh"`
	ResizeDebounce time.Duration `yaml:"resize_debounce"`
	MaxFPS         int           `yaml:"max_fps"`
	Backend        string        `yaml:"backend"`
}

// Log configures the process logger.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Socket: filepath.Join(runtimeDir(), appDir+".sock"),
		Store: StoreConfig{
			Driver: store.DriverBolt,
			Path:   filepath.Join(cacheDir(), appDir, "state.db"),
		},
		Render: Render{
			Refresh:        surface.DefaultRefreshInterval,
			ResizeDebounce: surface.DefaultResizeDebounce,
			MaxFPS:         surface.DefaultMaxFPS,
			Backend:        BackendVulkan,
		},
		Log: Log{Level: "info"},
	}
}

// DefaultPath returns the configuration file location under the user's
// config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, appDir, "config.yaml")
}

// Load reads and validates the file at path. Values absent from the file
// keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	c.Store.Path = expandHome(c.Store.Path)
	c.Socket = expandHome(c.Socket)
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Socket == "":
		return fmt.Errorf("%w: socket is empty", ErrInvalid)
	case c.Render.Refresh <= 0:
		return fmt.Errorf("%w: render.refresh must be positive, got %v", ErrInvalid, c.Render.Refresh)
	case c.Render.ResizeDebounce < 0:
		return fmt.Errorf("%w: render.resize_debounce is negative", ErrInvalid)
	case c.Render.MaxFPS < 0:
		return fmt.Errorf("%w: render.max_fps is negative", ErrInvalid)
	}
	switch c.Store.Driver {
	case store.DriverMemory:
	case store.DriverBolt, store.DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for driver %q", ErrInvalid, c.Store.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown store.driver %q", ErrInvalid, c.Store.Driver)
	}
	switch c.Render.Backend {
	case BackendVulkan, BackendNoop:
	default:
		return fmt.Errorf("%w: unknown render.backend %q", ErrInvalid, c.Render.Backend)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, l.Level)
	}
	return lv, nil
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

func cacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return os.TempDir()
	}
	return dir
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
