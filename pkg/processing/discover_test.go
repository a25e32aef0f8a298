package processing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validPipeline = `
stages:
  - name: build
    type: build
    build:
      script: gradlew
`

func writePipeline(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".release.yaml"), []byte(validPipeline), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverPipeline_PrefersShallowest(t *testing.T) {
	root := t.TempDir()
	writePipeline(t, filepath.Join(root, "services", "api"))
	writePipeline(t, filepath.Join(root, "services", "api", "nested"))

	p, err := DiscoverPipeline(root, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Dir != filepath.Join(root, "services", "api") {
		t.Errorf("unexpected pipeline dir %q", p.Dir)
	}
}

func TestDiscoverPipeline_MaxDepth(t *testing.T) {
	root := t.TempDir()
	writePipeline(t, filepath.Join(root, "a", "b"))

	if _, err := DiscoverPipeline(root, 1); err == nil {
		t.Fatal("expected no pipeline within depth 1")
	}
	if _, err := DiscoverPipeline(root, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDiscoverPipeline_Ambiguous(t *testing.T) {
	root := t.TempDir()
	writePipeline(t, filepath.Join(root, "api"))
	writePipeline(t, filepath.Join(root, "web"))

	_, err := DiscoverPipeline(root, -1)
	if err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Fatalf("expected ambiguity error, got %v", err)
	}
}

func TestDiscoverPipeline_SkipsGitDir(t *testing.T) {
	root := t.TempDir()
	writePipeline(t, filepath.Join(root, ".git"))

	if _, err := DiscoverPipeline(root, -1); err == nil {
		t.Fatal("pipeline inside .git should be ignored")
	}
}

func TestDiscoverPipeline_InvalidPipeline(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".release.yaml"), []byte("{{invalid"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := DiscoverPipeline(root, -1); err == nil {
		t.Fatal("expected error for invalid pipeline")
	}
}

func TestPathDepth(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{".", 0},
		{"a", 1},
		{"a/b", 2},
		{"a/b/c", 3},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := pathDepth(tt.path)
			if got != tt.want {
				t.Errorf("pathDepth(%q) = %d, want %d", tt.path, got, tt.want)
			}
		})
	}
}
