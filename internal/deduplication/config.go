package deduplication

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Method names a near-duplicate backend
type Method string

const (
	// MethodMinHash clusters with MinHash signatures over word shingles and an LSH index
	MethodMinHash Method = "minhash"
	// MethodSimHash clusters with 64-bit SimHash fingerprints and Hamming distance
	MethodSimHash Method = "simhash"
	// MethodSequence clusters with a pairwise sequence-matching ratio
	MethodSequence Method = "sequence"
)

// IsValid checks if the method value is valid
func (m Method) IsValid() bool {
	switch m {
	case MethodMinHash, MethodSimHash, MethodSequence:
		return true
	}
	return false
}

// ParseMethod converts a user supplied backend name into a Method
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q (want minhash, simhash or sequence)", ErrUnknownMethod, s)
	}
	return m, nil
}

var (
	// ErrInvalidConfig is returned when a Config fails validation
	ErrInvalidConfig = errors.New("invalid deduplication config")
	// ErrUnknownMethod is returned for backend names outside minhash, simhash and sequence
	ErrUnknownMethod = errors.New("unknown near-duplicate method")
)

// Config holds configuration for the deduplication engine.
// A Config is treated as immutable for the duration of a run.
type Config struct {
	// Enabled turns the whole engine on. When false, detection is a passthrough
	// that leaves every item untouched.
	Enabled bool `yaml:"enabled"`

	// ExactEnabled runs the fingerprint phase before near-duplicate clustering
	ExactEnabled bool `yaml:"exact_enabled"`

	// Method selects the near-duplicate backend (minhash, simhash, sequence).
	// An unavailable backend degrades along minhash -> simhash -> sequence.
	Method Method `yaml:"method"`

	// Threshold is the inclusive similarity cutoff (0.0-1.0) for near duplicates
	Threshold float64 `yaml:"threshold"`

	// WriteAliases makes canonical items record the duplicates they absorbed
	WriteAliases bool `yaml:"write_aliases"`

	// MinTextLength is the minimum normalized length (in runes) an item needs to
	// be fingerprinted or compared. Shorter items, including empty notes, always
	// survive unclustered.
	MinTextLength int `yaml:"min_text_length"`

	// NumPermutations is the MinHash signature width
	NumPermutations int `yaml:"num_permutations"`

	// ShingleSize is the number of words per shingle for the minhash backend
	ShingleSize int `yaml:"shingle_size"`

	// MinHashMinWords excludes shorter items from the minhash backend
	MinHashMinWords int `yaml:"minhash_min_words"`

	// SimHashMinWords excludes shorter items from the simhash backend
	SimHashMinWords int `yaml:"simhash_min_words"`

	// Workers bounds the goroutines used for pairwise comparisons.
	// 1 keeps the scan on the calling goroutine.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the default deduplication configuration
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		ExactEnabled:    true,
		Method:          MethodMinHash,
		Threshold:       0.85,
		WriteAliases:    false,
		MinTextLength:   1,
		NumPermutations: 128,
		ShingleSize:     5,
		MinHashMinWords: 5,
		SimHashMinWords: 10,
		Workers:         4,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if !c.Method.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrUnknownMethod, c.Method)
	}
	if c.Threshold < 0.0 || c.Threshold > 1.0 || math.IsNaN(c.Threshold) {
		return fmt.Errorf("%w: threshold must be between 0.0 and 1.0 (got %.2f)", ErrInvalidConfig, c.Threshold)
	}
	if c.MinTextLength < 0 {
		return fmt.Errorf("%w: min_text_length cannot be negative (got %d)", ErrInvalidConfig, c.MinTextLength)
	}
	if c.NumPermutations < 16 || c.NumPermutations > 1024 {
		return fmt.Errorf("%w: num_permutations must be between 16 and 1024 (got %d)", ErrInvalidConfig, c.NumPermutations)
	}
	if c.ShingleSize < 1 || c.ShingleSize > 32 {
		return fmt.Errorf("%w: shingle_size must be between 1 and 32 (got %d)", ErrInvalidConfig, c.ShingleSize)
	}
	if c.MinHashMinWords < c.ShingleSize {
		return fmt.Errorf("%w: minhash_min_words (%d) must be at least shingle_size (%d)",
			ErrInvalidConfig, c.MinHashMinWords, c.ShingleSize)
	}
	if c.SimHashMinWords < 1 {
		return fmt.Errorf("%w: simhash_min_words must be positive (got %d)", ErrInvalidConfig, c.SimHashMinWords)
	}
	if c.Workers < 1 || c.Workers > 256 {
		return fmt.Errorf("%w: workers must be between 1 and 256 (got %d)", ErrInvalidConfig, c.Workers)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Enabled: %t, Exact: %t, Method: %s, Threshold: %.2f, Aliases: %t, "+
			"MinTextLen: %d, Perms: %d, Shingle: %d, MinHashWords: %d, SimHashWords: %d, Workers: %d}",
		c.Enabled, c.ExactEnabled, c.Method, c.Threshold, c.WriteAliases,
		c.MinTextLength, c.NumPermutations, c.ShingleSize, c.MinHashMinWords, c.SimHashMinWords, c.Workers,
	)
}

// LoadConfigFile overlays a YAML config file on top of DefaultConfig.
// A missing file yields the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigFromEnv overlays environment variables on top of base
//
// Environment variables:
//   - CURATE_DEDUP_ENABLED: Enable the engine (default: true)
//   - CURATE_DEDUP_EXACT: Run the exact fingerprint phase (default: true)
//   - CURATE_DEDUP_METHOD: minhash, simhash or sequence (default: minhash)
//   - CURATE_DEDUP_THRESHOLD: Near-duplicate similarity cutoff 0.0-1.0 (default: 0.85)
//   - CURATE_DEDUP_WRITE_ALIASES: Record absorbed duplicates on canonicals (default: false)
//   - CURATE_DEDUP_MIN_TEXT_LENGTH: Minimum normalized length to compare (default: 1)
//   - CURATE_DEDUP_WORKERS: Goroutines for pairwise comparisons (default: 4)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv(base Config) (Config, error) {
	cfg := base

	if err := parseEnvBool("CURATE_DEDUP_ENABLED", &cfg.Enabled); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("CURATE_DEDUP_EXACT", &cfg.ExactEnabled); err != nil {
		return cfg, err
	}
	if value := os.Getenv("CURATE_DEDUP_METHOD"); value != "" {
		m, err := ParseMethod(value)
		if err != nil {
			return cfg, fmt.Errorf("invalid value for CURATE_DEDUP_METHOD: %w", err)
		}
		cfg.Method = m
	}
	if err := parseEnvFloat("CURATE_DEDUP_THRESHOLD", &cfg.Threshold); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("CURATE_DEDUP_WRITE_ALIASES", &cfg.WriteAliases); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("CURATE_DEDUP_MIN_TEXT_LENGTH", &cfg.MinTextLength); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("CURATE_DEDUP_WORKERS", &cfg.Workers); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// UnavailableFromEnv lists backends named in CURATE_DEDUP_UNAVAILABLE_BACKENDS
// (comma separated). Unknown names are an error.
func UnavailableFromEnv() ([]Method, error) {
	value := os.Getenv("CURATE_DEDUP_UNAVAILABLE_BACKENDS")
	if value == "" {
		return nil, nil
	}
	var methods []Method
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m, err := ParseMethod(part)
		if err != nil {
			return nil, fmt.Errorf("invalid value for CURATE_DEDUP_UNAVAILABLE_BACKENDS: %w", err)
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
