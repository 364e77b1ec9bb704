package apps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasspane/webdesk/internal/logging"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestSeedRegistersKnownApps(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "calculator.yaml", `
id: calculator
name: Calculator
icon: calculator.svg
category: utilities
singleton: true
installed: true
`)
	writeManifest(t, dir, "ghost.yaml", `
id: ghost
name: Ghost
`)
	writeManifest(t, dir, "broken.yaml", "id: [not valid")
	writeManifest(t, dir, "notes.txt", "ignored")

	loader := newTestLoader(ModuleTable{
		"calculator": func(ctx context.Context) (Constructor, error) {
			return constructorFor("calculator"), nil
		},
	})
	registry, _ := newTestRegistry()
	seeder := NewSeeder(registry, loader, dir, logging.NewNop())

	var seeded []Manifest
	err := seeder.Seed(func(m Manifest) bool {
		seeded = append(seeded, m)
		return true
	})
	require.NoError(t, err)

	// Only the manifest whose app the loader can resolve made it through.
	require.Len(t, seeded, 1)
	assert.Equal(t, "calculator", seeded[0].ID)
	assert.True(t, seeded[0].Singleton)
}

func TestSeedMissingDirectoryIsNotAnError(t *testing.T) {
	loader := newTestLoader(ModuleTable{})
	registry, _ := newTestRegistry()
	seeder := NewSeeder(registry, loader, "/nonexistent/catalogue", logging.NewNop())

	err := seeder.Seed(func(Manifest) bool { return true })
	assert.NoError(t, err)
}
