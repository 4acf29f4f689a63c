package cmd

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRemoveScreenshots(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"screenshot_1.jpg", "screenshot_2.jpg", "holiday.jpg", "screenshot_3.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := removeScreenshots(dir)
	if err != nil {
		t.Fatalf("removeScreenshots failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Removed %d files, want 2", n)
	}

	left, _ := os.ReadDir(dir)
	if len(left) != 2 {
		t.Errorf("Expected unrelated files to survive, found %d", len(left))
	}
	for _, e := range left {
		if strings.HasSuffix(e.Name(), ".jpg") && strings.HasPrefix(e.Name(), "screenshot_") {
			t.Errorf("%s should have been removed", e.Name())
		}
	}
}

func TestConfirm(t *testing.T) {
	defer func(old bool) { resetYes = old }(resetYes)

	tests := []struct {
		name  string
		input string
		yes   bool
		want  bool
	}{
		{"Yes", "y\n", false, true},
		{"Full word, mixed case", "  YES \n", false, true},
		{"No", "n\n", false, false},
		{"Empty defaults to no", "\n", false, false},
		{"EOF defaults to no", "", false, false},
		{"Flag skips prompt", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetYes = tt.yes
			r := bufio.NewReader(strings.NewReader(tt.input))
			if got := confirm(r, io.Discard, "sure?"); got != tt.want {
				t.Errorf("confirm() = %v, want %v", got, tt.want)
			}
		})
	}
}
