package arena

import (
	"flag"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count that parses human-readable sizes such as "64KiB"
// or "4 MB" from flags and YAML.
type ByteSize uint64

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Set implements flag.Value.
func (b *ByteSize) Set(s string) error {
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return errors.Wrapf(err, "invalid byte size %q", s)
	}
	*b = ByteSize(v)
	return nil
}

// UnmarshalYAML accepts plain integers as well as human-readable sizes.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: byte size must be a scalar", value.Line)
	}
	return b.Set(value.Value)
}

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// Config configures a GrowingArena.
type Config struct {
	MinSize  ByteSize `yaml:"min_size"`
	MaxBytes ByteSize `yaml:"max_bytes"`
}

// RegisterFlags registers the config flags under the "arena." prefix.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("arena.", f)
}

// RegisterFlagsWithPrefix registers the config flags and sets their defaults.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	cfg.MinSize = DefaultMinGrowingCapacity
	cfg.MaxBytes = 0
	f.Var(&cfg.MinSize, prefix+"min-size", "Smallest allocation the first arena must hold. Arenas double in size as they fill up.")
	f.Var(&cfg.MaxBytes, prefix+"max-bytes", "Upper bound on the summed capacity of all arenas. 0 means unlimited.")
}

// Validate checks the config for values NewGrowingArena would reject.
func (cfg *Config) Validate() error {
	if cfg.MinSize == 0 {
		return errors.New("arena min size must be positive")
	}
	first := MinSizeFor(uintptr(cfg.MinSize))
	if first == 0 || first > MaxCapacity {
		return errors.Errorf("arena min size %s exceeds the maximum arena capacity", cfg.MinSize)
	}
	if cfg.MaxBytes != 0 && uint64(cfg.MaxBytes) < uint64(first) {
		return errors.Errorf("arena max bytes %s is smaller than the first arena (%s)", cfg.MaxBytes, ByteSize(first))
	}
	return nil
}

// Options returns the arena options the config implies.
func (cfg *Config) Options() []Option {
	return []Option{WithMaxBytes(int(cfg.MaxBytes))}
}

// LoadConfig decodes a YAML document on top of the default config.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := Config{MinSize: DefaultMinGrowingCapacity}
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decoding arena config")
	}
	return cfg, cfg.Validate()
}

// NewGrowingArenaFromConfig validates cfg and creates a GrowingArena from it.
// opts are applied after the config's own options.
func NewGrowingArenaFromConfig(cfg Config, opts ...Option) (*GrowingArena, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewGrowingArena(int(cfg.MinSize), append(cfg.Options(), opts...)...)
}
