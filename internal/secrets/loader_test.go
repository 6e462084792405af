package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "key")
	if err := os.WriteFile(file, []byte("  from-file \n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	t.Setenv("JOB_HARVESTER_TEST_KEY", "from-env")

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr bool
	}{
		{"file wins", Source{File: file, Env: "JOB_HARVESTER_TEST_KEY", Value: "inline"}, "from-file", false},
		{"env over value", Source{Env: "JOB_HARVESTER_TEST_KEY", Value: "inline"}, "from-env", false},
		{"unset env falls back to value", Source{Env: "JOB_HARVESTER_TEST_UNSET", Value: " inline "}, "inline", false},
		{"empty file", Source{File: empty, Value: "inline"}, "", true},
		{"missing file", Source{File: filepath.Join(dir, "missing")}, "", true},
		{"nothing", Source{Name: "api key"}, "", true},
	}

	for _, tt := range tests {
		got, err := Load(tt.src)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: unexpected error state: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

func TestOptional(t *testing.T) {
	got, err := Optional(Source{Name: "redis url", Env: "JOB_HARVESTER_TEST_UNSET"})
	if err != nil || got != "" {
		t.Fatalf("expected empty secret without error, got %q %v", got, err)
	}

	if _, err := Optional(Source{File: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
