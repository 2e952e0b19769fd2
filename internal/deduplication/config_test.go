package deduplication

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dedupEnvKeys = []string{
	"CURATE_DEDUP_ENABLED",
	"CURATE_DEDUP_EXACT",
	"CURATE_DEDUP_METHOD",
	"CURATE_DEDUP_THRESHOLD",
	"CURATE_DEDUP_WRITE_ALIASES",
	"CURATE_DEDUP_MIN_TEXT_LENGTH",
	"CURATE_DEDUP_WORKERS",
	"CURATE_DEDUP_UNAVAILABLE_BACKENDS",
}

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name:    "no environment variables uses defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "valid custom configuration",
			envVars: map[string]string{
				"CURATE_DEDUP_ENABLED":         "true",
				"CURATE_DEDUP_EXACT":           "false",
				"CURATE_DEDUP_METHOD":          "SimHash",
				"CURATE_DEDUP_THRESHOLD":       "0.9",
				"CURATE_DEDUP_WRITE_ALIASES":   "true",
				"CURATE_DEDUP_MIN_TEXT_LENGTH": "20",
				"CURATE_DEDUP_WORKERS":         "8",
			},
			check: func(t *testing.T, cfg Config) {
				assert.True(t, cfg.Enabled)
				assert.False(t, cfg.ExactEnabled)
				assert.Equal(t, MethodSimHash, cfg.Method)
				assert.Equal(t, 0.9, cfg.Threshold)
				assert.True(t, cfg.WriteAliases)
				assert.Equal(t, 20, cfg.MinTextLength)
				assert.Equal(t, 8, cfg.Workers)
			},
		},
		{
			name: "partial configuration keeps defaults",
			envVars: map[string]string{
				"CURATE_DEDUP_THRESHOLD": "0.75",
			},
			check: func(t *testing.T, cfg Config) {
				defaults := DefaultConfig()
				assert.Equal(t, 0.75, cfg.Threshold)
				assert.Equal(t, defaults.Method, cfg.Method)
				assert.Equal(t, defaults.Workers, cfg.Workers)
			},
		},
		{
			name:    "invalid float value",
			envVars: map[string]string{"CURATE_DEDUP_THRESHOLD": "not-a-number"},
			wantErr: true,
		},
		{
			name:    "invalid int value",
			envVars: map[string]string{"CURATE_DEDUP_WORKERS": "many"},
			wantErr: true,
		},
		{
			name:    "invalid bool value",
			envVars: map[string]string{"CURATE_DEDUP_EXACT": "maybe"},
			wantErr: true,
		},
		{
			name:    "unknown method",
			envVars: map[string]string{"CURATE_DEDUP_METHOD": "embedding"},
			wantErr: true,
		},
		{
			name:    "threshold out of range",
			envVars: map[string]string{"CURATE_DEDUP_THRESHOLD": "1.5"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range dedupEnvKeys {
				t.Setenv(key, "")
			}
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := ConfigFromEnv(DefaultConfig())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "threshold zero is valid", mutate: func(c *Config) { c.Threshold = 0 }},
		{name: "threshold one is valid", mutate: func(c *Config) { c.Threshold = 1 }},
		{name: "negative threshold", mutate: func(c *Config) { c.Threshold = -0.1 }, wantErr: ErrInvalidConfig},
		{name: "NaN threshold", mutate: func(c *Config) { c.Threshold = math.NaN() }, wantErr: ErrInvalidConfig},
		{name: "unknown method", mutate: func(c *Config) { c.Method = "lsh" }, wantErr: ErrUnknownMethod},
		{name: "empty method", mutate: func(c *Config) { c.Method = "" }, wantErr: ErrInvalidConfig},
		{name: "too few permutations", mutate: func(c *Config) { c.NumPermutations = 4 }, wantErr: ErrInvalidConfig},
		{name: "min words below shingle size", mutate: func(c *Config) { c.MinHashMinWords = 3 }, wantErr: ErrInvalidConfig},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: ErrInvalidConfig},
		{name: "negative min text length", mutate: func(c *Config) { c.MinTextLength = -1 }, wantErr: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
		})
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" MinHash ")
	require.NoError(t, err)
	assert.Equal(t, MethodMinHash, m)

	_, err = ParseMethod("difflib")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadConfigFile(filepath.Join(dir, "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(dir, "dedup.yaml")
		data := []byte("method: sequence\nthreshold: 0.8\nwrite_aliases: true\nexact_enabled: false\n")
		require.NoError(t, os.WriteFile(path, data, 0644))

		cfg, err := LoadConfigFile(path)
		require.NoError(t, err)
		assert.Equal(t, MethodSequence, cfg.Method)
		assert.Equal(t, 0.8, cfg.Threshold)
		assert.True(t, cfg.WriteAliases)
		assert.False(t, cfg.ExactEnabled)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, 128, cfg.NumPermutations)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("threshold: 2\n"), 0644))

		_, err := LoadConfigFile(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("threshold: [\n"), 0644))

		_, err := LoadConfigFile(path)
		assert.Error(t, err)
	})
}

func TestUnavailableFromEnv(t *testing.T) {
	t.Setenv("CURATE_DEDUP_UNAVAILABLE_BACKENDS", "minhash, simhash")
	methods, err := UnavailableFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []Method{MethodMinHash, MethodSimHash}, methods)

	t.Setenv("CURATE_DEDUP_UNAVAILABLE_BACKENDS", "minhash,bogus")
	_, err = UnavailableFromEnv()
	assert.ErrorIs(t, err, ErrUnknownMethod)
}
