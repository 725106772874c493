// Package config loads irlower.toml, the pipeline configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"irlower/internal/trace"
)

// FileName is the configuration file looked up by Find.
const FileName = "irlower.toml"

// ErrUnknownKey is returned when the file contains keys irlower does not know.
var ErrUnknownKey = errors.New("unknown configuration key")

// Pipeline configures the pass manager.
type Pipeline struct {
	Passes          []string `toml:"passes"` // empty means the default order
	Skip            []string `toml:"skip"`
	Verify          bool     `toml:"verify"`
	Fast            bool     `toml:"fast"`
	TimeReport      bool     `toml:"time_report"`
	FixedPointLimit int      `toml:"fixed_point_limit"`
	// Namespace suffixes generated names. "random" draws a fresh suffix
	// per pipeline.
	Namespace string `toml:"namespace"`
}

// RandomNamespace is the Namespace value asking for a fresh suffix.
const RandomNamespace = "random"

// Unused configures unused-symbol elimination.
type Unused struct {
	Rounds int  `toml:"rounds"`
	Force  bool `toml:"force"`
}

// Cache configures the on-disk module cache.
type Cache struct {
	Dir  string `toml:"dir"`
	Text bool   `toml:"text"` // debugging text encoding instead of binary
}

// Trace configures the tracer. In ring mode events stay in memory and are
// written to Output only when lowering fails.
type Trace struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"`
	Output   string `toml:"output"`
	Mode     string `toml:"mode"`
	RingSize int    `toml:"ring_size"`
}

// Config is the decoded irlower.toml.
type Config struct {
	Pipeline Pipeline `toml:"pipeline"`
	Unused   Unused   `toml:"unused"`
	Cache    Cache    `toml:"cache"`
	Trace    Trace    `toml:"trace"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Pipeline: Pipeline{Verify: true, FixedPointLimit: 16},
		Unused:   Unused{Rounds: 4},
		Cache:    Cache{Dir: filepath.Join(".irlower", "cache")},
		Trace:    Trace{Level: "off", Format: "text", Mode: "stream", RingSize: 4096},
	}
}

// Decode parses TOML from r on top of the defaults.
func Decode(r io.Reader, name string) (Config, error) {
	cfg := Default()
	meta, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", name, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slices.Sort(keys)
		return Config{}, fmt.Errorf("%s: %w: %s", name, ErrUnknownKey, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

// Load reads and decodes the file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Decode(f, path)
}

// Find walks up from startDir to locate irlower.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Validate checks value ranges. Pass names are checked by the pass manager.
func (c *Config) Validate() error {
	if c.Pipeline.FixedPointLimit < 1 {
		return fmt.Errorf("pipeline.fixed_point_limit must be positive, got %d", c.Pipeline.FixedPointLimit)
	}
	for _, r := range c.Pipeline.Namespace {
		if !isNameRune(r) {
			return fmt.Errorf("pipeline.namespace %q: only letters, digits and '_' are allowed", c.Pipeline.Namespace)
		}
	}
	if c.Unused.Rounds < 1 {
		return fmt.Errorf("unused.rounds must be positive, got %d", c.Unused.Rounds)
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		return err
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		return err
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		return err
	}
	if c.Trace.RingSize < 0 {
		return fmt.Errorf("trace.ring_size must not be negative, got %d", c.Trace.RingSize)
	}
	return nil
}

func isNameRune(r rune) bool {
	return r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

// TraceConfig converts the [trace] section into a tracer config.
func (c *Config) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
	}, nil
}
