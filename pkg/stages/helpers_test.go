package stages

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestFile writes content to a file in dir, failing the test on error.
func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func secrets(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

var june2024 = time.Date(2024, time.June, 14, 9, 30, 5, 0, time.UTC)
