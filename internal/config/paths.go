package config

import (
	"os"
	"path/filepath"
)

// GetGlobalConfigDir returns the per-user configuration directory
// (~/.todobuilder). It's a variable to allow overriding in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".todobuilder"), nil
}

// RegistryDir is where the sqlite store keeps registry.db.
func (c *Config) RegistryDir() string {
	return c.DataDir
}

// BackupDir holds integration backups.
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// PoliciesDir holds the Rego guardrails.
func (c *Config) PoliciesDir() string {
	return c.Policy.Dir
}

// CrashLogDir holds panic reports.
func (c *Config) CrashLogDir() string {
	return filepath.Join(c.DataDir, "crash_logs")
}

// AbsProjectRoot resolves ProjectRoot against the working directory.
func (c *Config) AbsProjectRoot() (string, error) {
	return filepath.Abs(c.ProjectRoot)
}
