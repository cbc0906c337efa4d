package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/docmap/internal/catalog"
)

// ModelsDir returns the absolute path of the shared testdata/models
// directory, found by walking up from the working directory to go.mod.
func ModelsDir(t testing.TB) string {
	t.Helper()
	return filepath.Join(repoRoot(t), "testdata", "models")
}

// ScenariosDir returns the absolute path of testdata/scenarios.
func ScenariosDir(t testing.TB) string {
	t.Helper()
	return filepath.Join(repoRoot(t), "testdata", "scenarios")
}

// LoadCatalog loads every model in dir and fails the test on any error.
func LoadCatalog(t testing.TB, dir string) *catalog.Catalog {
	t.Helper()
	result, errs := catalog.LoadDir(dir, catalog.LoadModeFailFast)
	if len(errs) > 0 {
		t.Fatalf("loading models from %s: %v", dir, errs[0])
	}
	return result.Catalog
}

// BlogCatalog loads the shared Author/Profile/Post/Comment models.
func BlogCatalog(t testing.TB) *catalog.Catalog {
	t.Helper()
	return LoadCatalog(t, ModelsDir(t))
}

func repoRoot(t testing.TB) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found above the working directory")
		}
		dir = parent
	}
}
