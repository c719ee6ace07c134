package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrConfigExists is returned by WriteFile when the target exists and
// overwrite is false.
var ErrConfigExists = errors.New("config file already exists")

const redacted = "********"

// Default returns the configuration produced by defaults alone.
func Default() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	return Load(v)
}

// Redacted returns a copy with secrets masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = redacted
	}
	if out.Telemetry.APIKey != "" {
		out.Telemetry.APIKey = redacted
	}
	if out.Store.DSN != "" {
		out.Store.DSN = redacted
	}
	return out
}

// Marshal renders c as YAML.
func Marshal(c Config) ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteFile writes c as a YAML config file. Secrets are written as-is, so
// the file is created 0600.
func WriteFile(fs afero.Fs, path string, c *Config, overwrite bool) error {
	if !overwrite {
		if _, err := fs.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	data, err := Marshal(*c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	header := []byte("# TodoBuilder configuration\n")
	return afero.WriteFile(fs, path, append(header, data...), 0o600)
}
