package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteConfigFile writes a configuration document into its own temp
// directory and returns the file path.
func WriteConfigFile(t testing.TB, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config %s: %v", path, err)
	}
	return path
}
