package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicestream/merger/pkg/merger/config"
	"github.com/invoicestream/merger/pkg/merger/errors"
)

// TestString verifies string extraction with defaults.
func TestString(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal string
		want       string
	}{
		{"key exists", map[string]any{"name": "alice"}, "name", "default", "alice"},
		{"key missing", map[string]any{"other": "value"}, "name", "default", "default"},
		{"empty string", map[string]any{"name": ""}, "name", "default", ""},
		{"wrong type int", map[string]any{"name": 123}, "name", "default", "default"},
		{"nil map", nil, "name", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.String(tt.key, tt.defaultVal))
		})
	}
}

// TestDuration verifies duration extraction with various input types.
func TestDuration(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"string duration", map[string]any{"timeout": "30s"}, "timeout", 10 * time.Second, 30 * time.Second},
		{"int seconds", map[string]any{"timeout": 5}, "timeout", 10 * time.Second, 5 * time.Second},
		{"float seconds", map[string]any{"timeout": 1.5}, "timeout", 10 * time.Second, 1500 * time.Millisecond},
		{"duration value", map[string]any{"timeout": 2 * time.Minute}, "timeout", 10 * time.Second, 2 * time.Minute},
		{"bad string", map[string]any{"timeout": "soon"}, "timeout", 10 * time.Second, 10 * time.Second},
		{"missing", nil, "timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Duration(tt.key, tt.defaultVal))
		})
	}
}

// TestInt verifies integer extraction.
func TestInt(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal int
		want       int
	}{
		{"int", map[string]any{"n": 3}, "n", 5, 3},
		{"int64", map[string]any{"n": int64(4)}, "n", 5, 4},
		{"whole float", map[string]any{"n": 6.0}, "n", 5, 6},
		{"fractional float", map[string]any{"n": 6.5}, "n", 5, 5},
		{"wrong type", map[string]any{"n": "three"}, "n", 5, 5},
		{"missing", nil, "n", 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Int(tt.key, tt.defaultVal))
		})
	}
}

func TestBoolAndFloatAndHas(t *testing.T) {
	cfg := config.New(map[string]any{"on": true, "factor": 2.5, "count": 3})

	assert.True(t, cfg.Bool("on", false))
	assert.False(t, cfg.Bool("off", false))
	assert.Equal(t, 2.5, cfg.Float("factor", 1.0))
	assert.Equal(t, 3.0, cfg.Float("count", 1.0))
	assert.True(t, cfg.Has("on"))
	assert.False(t, cfg.Has("missing"))
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "merger.yaml")
		require.NoError(t, os.WriteFile(path, []byte("retry_max_attempts: 3\nretry_initial_backoff: 500ms\n"), 0o644))

		cfg, err := config.FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Int("retry_max_attempts", 5))
		assert.Equal(t, 500*time.Millisecond, cfg.Duration("retry_initial_backoff", time.Second))
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "merger.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"retry_jitter": 0.2}`), 0o644))

		cfg, err := config.FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 0.2, cfg.Float("retry_jitter", 0.1))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "merger.toml")
		require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

		_, err := config.FromFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.FromFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("MERGER_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("MERGER_RETRY_INITIAL_BACKOFF", "250ms")
	t.Setenv("MERGER_ARCHIVE_PATH", "./dlq.db")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Int("retry_max_attempts", 5))
	assert.Equal(t, 250*time.Millisecond, cfg.Duration("retry_initial_backoff", time.Second))
	assert.Equal(t, "./dlq.db", cfg.String("archive_path", ""))

	// Unset variables don't appear and thus don't shadow file values.
	assert.False(t, cfg.Has("retry_jitter"))
}

func TestMerge(t *testing.T) {
	base := config.New(map[string]any{"retry_max_attempts": 5, "retry_jitter": 0.1})
	override := config.New(map[string]any{"retry_max_attempts": 9})

	merged := base.Merge(override)
	assert.Equal(t, 9, merged.Int("retry_max_attempts", 0))
	assert.Equal(t, 0.1, merged.Float("retry_jitter", 0))
}

func TestRetryFromConfig(t *testing.T) {
	cfg := config.New(map[string]any{
		"retry_max_attempts":    8,
		"retry_initial_backoff": "100ms",
		"retry_backoff_factor":  3.0,
	})

	rc := config.RetryFromConfig(cfg)
	assert.Equal(t, 8, rc.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, rc.InitialBackoff)
	assert.Equal(t, 3.0, rc.BackoffFactor)

	// Absent keys fall back to the defaults.
	assert.Equal(t, errors.DefaultRetry.MaxBackoff, rc.MaxBackoff)
	assert.Equal(t, errors.DefaultRetry.Jitter, rc.Jitter)
}
