package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPaths(t *testing.T) {
	paths, err := NewPaths()
	if err != nil {
		t.Fatalf("NewPaths error: %v", err)
	}
	if paths.HomeDir == "" {
		t.Error("HomeDir should not be empty")
	}
}

func TestPaths_Layout(t *testing.T) {
	tmpDir := t.TempDir()
	paths := &Paths{HomeDir: tmpDir}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BaseDir", paths.BaseDir(), filepath.Join(tmpDir, DefaultBaseDir)},
		{"ConfigFile", paths.ConfigFile(), filepath.Join(tmpDir, DefaultBaseDir, DefaultConfigFile)},
		{"ModelDir", paths.ModelDir(), filepath.Join(tmpDir, DefaultBaseDir, "models")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestPaths_EnsureBaseDir(t *testing.T) {
	paths := &Paths{HomeDir: t.TempDir()}

	if err := paths.EnsureBaseDir(); err != nil {
		t.Fatalf("EnsureBaseDir error: %v", err)
	}
	info, err := os.Stat(paths.BaseDir())
	if err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	if !info.IsDir() {
		t.Error("BaseDir should be a directory")
	}
}

func TestPaths_EnsureModelDir(t *testing.T) {
	paths := &Paths{HomeDir: t.TempDir()}

	if err := paths.EnsureModelDir(); err != nil {
		t.Fatalf("EnsureModelDir error: %v", err)
	}
	for _, dir := range []string{paths.BaseDir(), paths.ModelDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("Stat error: %v", err)
		}
		if !info.IsDir() {
			t.Errorf("%s should be a directory", dir)
		}
	}
}
