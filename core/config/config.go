package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"

	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	configFs  afero.Fs
	configDir string

	Prompt      string   `json:"prompt" validate:"required"`
	Color       string   `json:"color" validate:"oneof=always auto never"`
	HistoryFile string   `json:"history_file"`
	EventLog    string   `json:"event_log" validate:"required"`
	Builtins    []string `json:"builtins" validate:"unique,dive,required"`
	MetricsAddr string   `json:"metrics_addr" validate:"omitempty,hostname_port"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// Dir returns the directory the configuration was loaded from, empty for the
// built-in defaults.
func (c *Configuration) Dir() string {
	return c.configDir
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// HistoryPath returns the host path of the history file or "" if history is
// disabled or the configuration does not live on disk.
func (c *Configuration) HistoryPath() string {
	if c.HistoryFile == "" || c.configDir == "" {
		return ""
	}
	if filepath.IsAbs(c.HistoryFile) {
		return c.HistoryFile
	}
	return filepath.Join(c.configDir, c.HistoryFile)
}

func parse(data []byte) (*Configuration, error) {
	var out Configuration
	if err := yaml.UnmarshalStrict(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func defaultConfig() *Configuration {
	out, err := parse(defaultConfigData)
	if err != nil {
		panic(err)
	}
	return out
}

// Default returns the built-in configuration backed by an in-memory
// filesystem, so the event log does not outlive the process.
func Default() *Configuration {
	out := defaultConfig()
	out.configFs = afero.NewMemMapFs()
	return out
}
