package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Load loads the configuration from the directory.
func Load(path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	out, err := LoadFs(afero.NewBasePathFs(afero.NewOsFs(), abs))
	if err != nil {
		return nil, err
	}
	out.configDir = abs
	return out, nil
}

// LoadFs loads the configuration from the root of fs.
func LoadFs(fs afero.Fs) (*Configuration, error) {
	configContents, err := afero.ReadFile(fs, ConfigurationName)
	if err != nil {
		return nil, err
	}

	out, err := parse(configContents)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigurationName, err)
	}

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigurationName, err)
	}

	out.configFs = fs
	return out, nil
}

// Initialize writes the default configuration to dir unless one already
// exists and returns the loaded result.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	fs := afero.NewBasePathFs(afero.NewOsFs(), dir)
	if err := initializeFs(fs, logger); err != nil {
		return nil, err
	}

	return Load(dir)
}

func initializeFs(fs afero.Fs, logger *log.Logger) error {
	exists, err := afero.Exists(fs, ConfigurationName)
	switch {
	case err != nil:
		return err
	case exists:
		logger.Printf("%s already exists, leaving it alone\n", ConfigurationName)
		return nil
	}

	logger.Printf("Writing %s\n", ConfigurationName)
	return afero.WriteFile(fs, ConfigurationName, defaultConfigData, 0600)
}
