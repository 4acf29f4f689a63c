package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andresmejia3/maskguard/internal/mask"
	"github.com/spf13/cobra"
)

func TestResolveDBURL(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  map[string]string
		want string
	}{
		{"Off by default", "", nil, ""},
		{"Flag wins", "postgres://a@b/c", map[string]string{"POSTGRES_HOST": "db"}, "postgres://a@b/c"},
		{
			name: "Built from env with default port",
			env:  map[string]string{"POSTGRES_HOST": "db", "POSTGRES_USER": "u", "POSTGRES_PASSWORD": "p", "POSTGRES_DB": "masks"},
			want: "postgres://u:p@db:5432/masks",
		},
		{
			name: "Explicit port",
			env:  map[string]string{"POSTGRES_HOST": "db", "POSTGRES_PORT": "6543", "POSTGRES_USER": "u", "POSTGRES_PASSWORD": "p", "POSTGRES_DB": "masks"},
			want: "postgres://u:p@db:6543/masks",
		},
		{"User without host stays off", "", map[string]string{"POSTGRES_USER": "u"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			if got := resolveDBURL(tt.flag, getenv); got != tt.want {
				t.Errorf("resolveDBURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequiresDB(t *testing.T) {
	if !requiresDB(sessionsCmd) || !requiresDB(noteCmd) {
		t.Error("sessions and note must require a database")
	}
	for _, c := range []*cobra.Command{runCmd, scanCmd, classifyCmd, resetCmd, paletteCmd} {
		if requiresDB(c) {
			t.Errorf("%s should run without a database", c.Name())
		}
	}
}

func TestLoadClassifier(t *testing.T) {
	c, err := loadClassifier("")
	if err != nil {
		t.Fatalf("default palette failed: %v", err)
	}
	if got := c.Config().MaskThreshold; got != mask.DefaultThreshold {
		t.Errorf("MaskThreshold = %v, want %v", got, mask.DefaultThreshold)
	}

	path := filepath.Join(t.TempDir(), "palette.yaml")
	if err := os.WriteFile(path, []byte("mask_threshold: 40\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = loadClassifier(path)
	if err != nil {
		t.Fatalf("custom palette failed: %v", err)
	}
	if got := c.Config().MaskThreshold; got != 40 {
		t.Errorf("MaskThreshold = %v, want 40", got)
	}
	if n := len(c.Config().ColorRanges); n != 3 {
		t.Errorf("Expected default ranges to be kept, got %d", n)
	}

	if _, err := loadClassifier(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing palette")
	}
}

func TestValidateRunFlags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"Valid", Options{Device: 0, MinFaceSize: 50, OutputDir: dir}, false},
		{"Empty dir defaults to cwd", Options{MinFaceSize: 50}, false},
		{"Negative device", Options{Device: -1, MinFaceSize: 50, OutputDir: dir}, true},
		{"Zero min-face", Options{MinFaceSize: 0, OutputDir: dir}, true},
		{"Missing dir", Options{MinFaceSize: 50, OutputDir: filepath.Join(dir, "nope")}, true},
		{"Dir is a file", Options{MinFaceSize: 50, OutputDir: file}, true},
		{"Missing palette", Options{MinFaceSize: 50, OutputDir: dir, PalettePath: filepath.Join(dir, "p.yaml")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := validateRunFlags(&opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRunFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && opts.OutputDir == "" {
				t.Error("OutputDir should default to the working directory")
			}
		})
	}
}
