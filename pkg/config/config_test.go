package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sample struct {
	Name    string        `split_words:"true" default:"fallback"`
	Port    int           `split_words:"true" default:"80"`
	Timeout time.Duration `split_words:"true" default:"5s"`
}

func writeEnv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

// These tests touch process env and the package-level env file, so they
// do not run in parallel.

func TestNewReadsEnvFile(t *testing.T) {
	path := writeEnv(t, "CONFTEST_NAME=alpha\nCONFTEST_TIMEOUT=2s\n")
	SetEnvFile(path)
	t.Cleanup(func() {
		SetEnvFile("")
		_ = os.Unsetenv("CONFTEST_NAME")
		_ = os.Unsetenv("CONFTEST_TIMEOUT")
	})
	t.Setenv("CONFTEST_PORT", "9090")

	conf, err := New[sample]("CONFTEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Name != "alpha" {
		t.Fatalf("name = %q, want alpha", conf.Name)
	}
	if conf.Port != 9090 {
		t.Fatalf("port = %d, want 9090", conf.Port)
	}
	if conf.Timeout != 2*time.Second {
		t.Fatalf("timeout = %v, want 2s", conf.Timeout)
	}
}

func TestProcessEnvBeatsFile(t *testing.T) {
	path := writeEnv(t, "CONFPREC_NAME=from-file\n")
	SetEnvFile(path)
	t.Cleanup(func() { SetEnvFile("") })
	t.Setenv("CONFPREC_NAME", "from-env")

	conf, err := New[sample]("CONFPREC")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Name != "from-env" {
		t.Fatalf("name = %q, want from-env", conf.Name)
	}
}

func TestNewMissingEnvFile(t *testing.T) {
	SetEnvFile(filepath.Join(t.TempDir(), "absent.env"))
	t.Cleanup(func() { SetEnvFile("") })

	if _, err := New[sample]("CONFMISSING"); err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}

func TestMustNewPanicsOnRequired(t *testing.T) {
	type required struct {
		Secret string `required:"true"`
	}
	SetEnvFile("")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustNew[required]("CONFREQ_UNSET")
}
