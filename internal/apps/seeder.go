package apps

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/glasspane/webdesk/internal/logging"
)

// Manifest declares one app in the catalogue directory. Manifests carry
// installation state and taskbar pinning for apps whose code the loader
// already knows how to resolve.
type Manifest struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Icon      string `yaml:"icon"`
	Category  string `yaml:"category"`
	Singleton bool   `yaml:"singleton"`
	System    bool   `yaml:"system"`
	Installed bool   `yaml:"installed"`
	Pinned    bool   `yaml:"pinned"`
}

// Seeder loads app manifests from disk into the registry at startup,
// validating each against the loader's module table so the two inventories
// cannot drift silently.
type Seeder struct {
	registry *Registry
	loader   *Loader
	dir      string
	log      *logging.Logger
}

// NewSeeder creates a seeder reading manifests from dir.
func NewSeeder(registry *Registry, loader *Loader, dir string, log *logging.Logger) *Seeder {
	return &Seeder{
		registry: registry,
		loader:   loader,
		dir:      dir,
		log:      log.Named("seeder"),
	}
}

// Seed reads every *.yaml manifest in the directory and registers the apps
// it declares. A missing directory is a logged warning, not an error;
// individual bad manifests are skipped.
func (s *Seeder) Seed(register func(m Manifest) bool) error {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		s.log.Warn("catalogue directory not found", zap.String("dir", s.dir))
		return nil
	}
	if err != nil {
		return err
	}

	var loaded, failed int
	for _, entry := range entries {
		if entry.IsDir() || !isManifest(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		manifest, err := s.readManifest(path)
		if err != nil {
			s.log.Warn("skipping bad manifest", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}
		if !s.loader.IsAppAvailable(manifest.ID) {
			s.log.Warn("manifest names an app the loader cannot resolve",
				zap.String("app", manifest.ID), zap.String("path", path))
			failed++
			continue
		}
		if register(manifest) {
			loaded++
		} else {
			failed++
		}
	}

	s.log.Info("catalogue seeded", zap.Int("loaded", loaded), zap.Int("failed", failed))
	return nil
}

func (s *Seeder) readManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	if m.ID == "" {
		return Manifest{}, errEmptyID
	}
	return m, nil
}

var errEmptyID = yamlError("manifest has empty id")

type yamlError string

func (e yamlError) Error() string { return string(e) }

func isManifest(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
