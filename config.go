package deathchest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

// Overflow policies for items that do not fit into a single chest.
const (
	OverflowSpill   = "spill"
	OverflowDiscard = "discard"
)

// Default configuration values.
const (
	DefaultPrefix         = "&f&l[&3&lDeathChest&f&l] "
	DefaultBreakTime      = 10
	DefaultFallHeight     = 20
	DefaultFallTimeout    = 200
	DefaultHologramHeight = 1.0
	DefaultLineSpacing    = 0.3
)

// Config is the user configuration of death chests.
type Config struct {
	Prefix            string `koanf:"prefix" yaml:"prefix"`
	BreakTime         int    `koanf:"chest-break-time" yaml:"chest-break-time"`
	AllowInstantBreak bool   `koanf:"allow-instant-break" yaml:"allow-instant-break"`
	Announce          bool   `koanf:"announce-death-chest" yaml:"announce-death-chest"`
	CreatedMessage    string `koanf:"death-chest-message" yaml:"death-chest-message"`
	BreakMessage      string `koanf:"chest-break-message" yaml:"chest-break-message"`
	Overflow          string `koanf:"overflow" yaml:"overflow"`

	Falling  FallingConfig  `koanf:"falling-chest" yaml:"falling-chest"`
	Hologram HologramConfig `koanf:"hologram" yaml:"hologram"`
	Worlds   WorldsConfig   `koanf:"worlds" yaml:"worlds"`
}

// FallingConfig configures the falling animation played before a chest appears.
type FallingConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
	// Height is the number of blocks above the target the chest starts falling from.
	Height int `koanf:"height" yaml:"height"`
	// TimeoutTicks is the number of ticks after which a chest that has not
	// landed is placed anyway.
	TimeoutTicks int `koanf:"timeout-ticks" yaml:"timeout-ticks"`
}

// HologramConfig configures the floating countdown above a chest.
type HologramConfig struct {
	Enabled     bool    `koanf:"enabled" yaml:"enabled"`
	Height      float64 `koanf:"height" yaml:"height"`
	LineSpacing float64 `koanf:"line-spacing" yaml:"line-spacing"`
	FirstLine   string  `koanf:"first-line" yaml:"first-line"`
	SecondLine  string  `koanf:"second-line" yaml:"second-line"`
}

// WorldsConfig restricts the worlds death chests are created in.
type WorldsConfig struct {
	// Disabled holds glob patterns of world names without death chests.
	Disabled []string `koanf:"disabled" yaml:"disabled"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Prefix:            DefaultPrefix,
		BreakTime:         DefaultBreakTime,
		AllowInstantBreak: true,
		Announce:          true,
		CreatedMessage:    "&c%player%'s death chest has been created! It will break in %time% seconds!",
		BreakMessage:      "&cDeath chest is breaking!",
		Overflow:          OverflowSpill,
		Falling: FallingConfig{
			Enabled:      true,
			Height:       DefaultFallHeight,
			TimeoutTicks: DefaultFallTimeout,
		},
		Hologram: HologramConfig{
			Enabled:     true,
			Height:      DefaultHologramHeight,
			LineSpacing: DefaultLineSpacing,
			FirstLine:   "&7%player%'s &fLoot",
			SecondLine:  "&fTime remaining: &c%seconds%s",
		},
		Worlds: WorldsConfig{Disabled: []string{}},
	}
}

// Validate returns a copy of c with every invalid value replaced by its
// default, together with one warning per replaced value.
func (c Config) Validate() (Config, []string) {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	if c.Prefix == "" {
		warn("prefix is empty, using default")
		c.Prefix = DefaultPrefix
	}
	if c.BreakTime < 0 {
		warn("chest-break-time %d is negative, using %d", c.BreakTime, DefaultBreakTime)
		c.BreakTime = DefaultBreakTime
	}
	switch c.Overflow {
	case OverflowSpill, OverflowDiscard:
	default:
		warn("overflow %q is unknown, using %q", c.Overflow, OverflowSpill)
		c.Overflow = OverflowSpill
	}
	if c.Falling.Height < 1 {
		warn("falling-chest.height %d is below 1, using %d", c.Falling.Height, DefaultFallHeight)
		c.Falling.Height = DefaultFallHeight
	}
	if c.Falling.TimeoutTicks < 1 {
		warn("falling-chest.timeout-ticks %d is below 1, using %d", c.Falling.TimeoutTicks, DefaultFallTimeout)
		c.Falling.TimeoutTicks = DefaultFallTimeout
	}
	if c.Hologram.Height < 0 {
		warn("hologram.height %v is negative, using %v", c.Hologram.Height, DefaultHologramHeight)
		c.Hologram.Height = DefaultHologramHeight
	}
	if c.Hologram.LineSpacing < 0 {
		warn("hologram.line-spacing %v is negative, using %v", c.Hologram.LineSpacing, DefaultLineSpacing)
		c.Hologram.LineSpacing = DefaultLineSpacing
	}

	valid := make([]string, 0, len(c.Worlds.Disabled))
	for _, p := range c.Worlds.Disabled {
		if _, err := glob.Compile(p); err != nil {
			warn("worlds.disabled pattern %q is invalid and ignored: %v", p, err)
			continue
		}
		valid = append(valid, p)
	}
	c.Worlds.Disabled = valid

	return c, warnings
}

// LoadConfig reads the YAML file at path on top of DefaultConfig. Flags that
// were explicitly set on the command line override the file. flags may be nil.
// The returned config is not validated.
func LoadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code(CodeConfigInvalid).With("path", path).Wrapf(err, "loading config")
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code(CodeConfigInvalid).Wrapf(err, "loading flags")
		}
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code(CodeConfigInvalid).With("path", path).Wrapf(err, "decoding config")
	}
	return cfg, nil
}

// WriteDefaultConfig writes DefaultConfig to path if no file exists there yet.
// It reports whether a file was written.
func WriteDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, oops.Code(CodeConfigInvalid).With("path", path).Wrap(err)
	}

	data, err := yamlv3.Marshal(DefaultConfig())
	if err != nil {
		return false, oops.Code(CodeConfigInvalid).Wrapf(err, "encoding default config")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, oops.Code(CodeConfigInvalid).With("path", path).Wrap(err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, oops.Code(CodeConfigInvalid).With("path", path).Wrap(err)
	}
	return true, nil
}

// Settings holds the active, validated configuration. The configuration can
// be swapped at runtime with Reload while other goroutines read it.
type Settings struct {
	path  string
	flags *pflag.FlagSet
	log   *slog.Logger

	cur atomic.Pointer[settingsSnapshot]
}

type settingsSnapshot struct {
	cfg      Config
	disabled []glob.Glob
}

// NewSettings validates cfg and returns settings holding it. Settings created
// this way have no file to reload from unless SetSource is called.
func NewSettings(cfg Config, log *slog.Logger) *Settings {
	if log == nil {
		log = slog.Default()
	}
	s := &Settings{log: log}
	s.store(cfg)
	return s
}

// LoadSettings loads and validates the configuration file at path.
func LoadSettings(path string, flags *pflag.FlagSet, log *slog.Logger) (*Settings, error) {
	cfg, err := LoadConfig(path, flags)
	if err != nil {
		return nil, err
	}
	s := NewSettings(cfg, log)
	s.SetSource(path, flags)
	return s, nil
}

// SetSource sets the file and flags Reload reads from.
func (s *Settings) SetSource(path string, flags *pflag.FlagSet) {
	s.path, s.flags = path, flags
}

// Path returns the file the settings are reloaded from.
func (s *Settings) Path() string {
	return s.path
}

// Config returns the active configuration.
func (s *Settings) Config() Config {
	return s.cur.Load().cfg
}

// WorldDisabled reports whether death chests are disabled in the named world.
func (s *Settings) WorldDisabled(name string) bool {
	for _, g := range s.cur.Load().disabled {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Reload re-reads the configuration source. If it cannot be read, the active
// configuration stays in place and the error is returned.
func (s *Settings) Reload() error {
	if s.path == "" {
		return oops.Code(CodeConfigInvalid).Errorf("no configuration file to reload from")
	}
	cfg, err := LoadConfig(s.path, s.flags)
	if err != nil {
		return err
	}
	s.store(cfg)
	s.log.Info("configuration reloaded", "path", s.path)
	return nil
}

func (s *Settings) store(cfg Config) {
	cfg, warnings := cfg.Validate()
	for _, w := range warnings {
		s.log.Warn("invalid configuration value", "detail", w)
	}
	snap := &settingsSnapshot{cfg: cfg}
	for _, p := range cfg.Worlds.Disabled {
		snap.disabled = append(snap.disabled, glob.MustCompile(p))
	}
	s.cur.Store(snap)
}

// Message prefixes msg with the configured prefix and translates its colour
// codes.
func (s *Settings) Message(msg string) string {
	return prefixed(s.Config(), msg)
}
