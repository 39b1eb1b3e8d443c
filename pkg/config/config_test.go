package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	Backend string        `envconfig:"BACKEND" default:"memory"`
	Timeout time.Duration `split_words:"true" default:"5s"`
	Limit   int           `split_words:"true"`
}

var errBadLimit = errors.New("limit must not be negative")

func (c sampleConfig) Validate() error {
	if c.Limit < 0 {
		return errBadLimit
	}
	return nil
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("SAMPLE_BACKEND", "postgres")
	t.Setenv("SAMPLE_LIMIT", "7")

	conf, err := New[sampleConfig]("SAMPLE")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Backend != "postgres" || conf.Limit != 7 || conf.Timeout != 5*time.Second {
		t.Fatalf("unexpected config: %#v", conf)
	}
}

func TestNewRunsValidator(t *testing.T) {
	t.Setenv("CHECKED_LIMIT", "-1")

	if _, err := New[sampleConfig]("CHECKED"); !errors.Is(err, errBadLimit) {
		t.Fatalf("expected errBadLimit, got %v", err)
	}
}

func TestExportEnvironmentIfExists(t *testing.T) {
	if err := exportEnvironmentIfExists(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("FILECFG_BACKEND=redis\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("FILECFG_BACKEND") })

	if err := exportEnvironmentIfExists(path); err != nil {
		t.Fatalf("exportEnvironmentIfExists() error = %v", err)
	}
	if got := os.Getenv("FILECFG_BACKEND"); got != "redis" {
		t.Fatalf("FILECFG_BACKEND = %q", got)
	}
}
