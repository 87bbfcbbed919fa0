package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory. Settings missing from the
// file keep their default values. An empty path returns the defaults.
func Load(fs afero.Fs, path string) (*Configuration, error) {
	out := defaultConfig()
	if path == "" {
		return out, nil
	}

	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	configContents, err := afero.ReadFile(fs, filepath.Join(path, ConfigurationName))
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(configContents, out); err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigurationName, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigurationName, err)
	}
	return out, nil
}

// Initialize writes the default configuration into dir, leaving an existing
// configuration alone, and loads it.
func Initialize(fs afero.Fs, dir string, logger *log.Logger) (*Configuration, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, ConfigurationName)
	switch exists, err := afero.Exists(fs, configPath); {
	case err != nil:
		return nil, err
	case exists:
		logger.Printf("%s already exists, leaving it alone", configPath)
	default:
		if err := afero.WriteFile(fs, configPath, defaultConfigData, os.FileMode(0644)); err != nil {
			return nil, err
		}
		logger.Printf("wrote %s", configPath)
	}

	return Load(fs, dir)
}
