package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/justapithecus/asechunk/log"
	"github.com/justapithecus/asechunk/policy"
	"github.com/justapithecus/asechunk/stream"
)

// Config represents an asechunk.yaml configuration file.
// All values are optional.
type Config struct {
	// Source names the byte source in logs and metrics.
	Source string       `yaml:"source"`
	Decode DecodeConfig `yaml:"decode"`
	Log    LogConfig    `yaml:"log"`
}

// DecodeConfig holds stream reader settings.
type DecodeConfig struct {
	// Policy is "strict" (default) or "lenient".
	Policy       string   `yaml:"policy"`
	VerifySize   bool     `yaml:"verify_size"`
	MaxChunkSize ByteSize `yaml:"max_chunk_size"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is debug, info (default), warn or error.
	Level string `yaml:"level"`
}

// ByteSize is a byte count parsed from an integer or a string with a
// binary unit suffix ("64KiB", "16MiB", "1GiB").
type ByteSize uint32

var byteUnits = []struct {
	suffix string
	mult   uint64
}{
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"B", 1},
}

// ParseByteSize parses s as a ByteSize.
func ParseByteSize(raw string) (ByteSize, error) {
	s := strings.TrimSpace(raw)
	mult := uint64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q", raw)
	}
	if n > math.MaxUint32/mult {
		return 0, fmt.Errorf("byte size %q exceeds %d bytes", raw, uint32(math.MaxUint32))
	}
	return ByteSize(n * mult), nil
}

// UnmarshalYAML parses a byte size like 1024 or "64KiB".
func (b *ByteSize) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Validate checks the policy name and log level.
func (c *Config) Validate() error {
	if _, err := policy.New(c.Decode.Policy); err != nil {
		return fmt.Errorf("decode.policy: %w", err)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Policy returns a new instance of the configured policy.
func (c *Config) Policy() (policy.Policy, error) {
	return policy.New(c.Decode.Policy)
}

// Logger returns a logger for the configured source and level.
func (c *Config) Logger() (*log.Logger, error) {
	logger := log.NewLogger(c.Source)
	if err := logger.SetLevel(c.Log.Level); err != nil {
		return nil, err
	}
	return logger, nil
}

// ReaderOptions builds stream reader options from the configuration.
func (c *Config) ReaderOptions() (stream.Options, error) {
	if err := c.Validate(); err != nil {
		return stream.Options{}, err
	}
	pol, err := c.Policy()
	if err != nil {
		return stream.Options{}, err
	}
	logger, err := c.Logger()
	if err != nil {
		return stream.Options{}, err
	}
	return stream.Options{
		Source:       c.Source,
		Policy:       pol,
		Logger:       logger,
		VerifySize:   c.Decode.VerifySize,
		MaxChunkSize: uint32(c.Decode.MaxChunkSize),
	}, nil
}
