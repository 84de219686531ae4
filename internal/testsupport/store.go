package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelforge/internal/artifact"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/runs"
)

// OpenStores opens an artifact store and a run registry under the config's
// runs directory, registering cleanup with the test.
func OpenStores(t testing.TB, cfg *config.Config) (*artifact.Store, *runs.Store) {
	t.Helper()
	logger := logging.NewNop()
	store, err := artifact.NewStore(filepath.Join(cfg.Paths.RunsDir, "artifacts"), logger)
	if err != nil {
		t.Fatalf("open artifact store: %v", err)
	}
	registry, err := runs.OpenPath(filepath.Join(cfg.Paths.RunsDir, "runs.db"))
	if err != nil {
		t.Fatalf("open run registry: %v", err)
	}
	t.Cleanup(func() { registry.Close() })
	return store, registry
}

// WriteAssets drops placeholder reference images into the config's assets
// directory and returns their paths.
func WriteAssets(t testing.TB, cfg *config.Config, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(cfg.Paths.AssetsDir, name)
		if err := os.WriteFile(path, []byte("reference image "+name), 0o644); err != nil {
			t.Fatalf("write asset %s: %v", name, err)
		}
		paths = append(paths, path)
	}
	return paths
}
