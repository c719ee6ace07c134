// Package config loads TodoBuilder settings from flags, environment, .env and
// .todobuilder.yaml through viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/josephgoksu/TodoBuilder/internal/testpipeline"
	"github.com/josephgoksu/TodoBuilder/internal/validation"
)

const (
	// ConfigName is the config file name without extension.
	ConfigName = ".todobuilder"
	// EnvPrefix prefixes every environment override, e.g. TODOBUILDER_SERVER_PORT.
	EnvPrefix = "TODOBUILDER"
	// DefaultDataDir holds the sqlite database, backups, policies and crash logs.
	DefaultDataDir = ".todobuilder"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is the effective configuration.
type Config struct {
	DataDir     string `mapstructure:"dataDir" yaml:"dataDir" validate:"required"`
	ProjectRoot string `mapstructure:"projectRoot" yaml:"projectRoot" validate:"required"`

	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Generation GenerationConfig `mapstructure:"generation" yaml:"generation"`
	Testing    TestingConfig    `mapstructure:"testing" yaml:"testing"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Registry   RegistryConfig   `mapstructure:"registry" yaml:"registry"`
	Policy     PolicyConfig     `mapstructure:"policy" yaml:"policy"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" yaml:"telemetry"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" validate:"oneof=sqlite postgres memory"`
	DSN     string `mapstructure:"dsn" yaml:"dsn,omitempty" validate:"required_if=Backend postgres"`
}

type LLMConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider" validate:"oneof=openai ollama anthropic gemini"`
	Model    string `mapstructure:"model" yaml:"model,omitempty"`
	APIKey   string `mapstructure:"apiKey" yaml:"apiKey,omitempty"`
	BaseURL  string `mapstructure:"baseURL" yaml:"baseURL,omitempty"`
}

type GenerationConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxAttempts   int           `mapstructure:"maxAttempts" yaml:"maxAttempts" validate:"min=1,max=10"`
	Framework     string        `mapstructure:"framework" yaml:"framework" validate:"oneof=react vue svelte next express"`
	Language      string        `mapstructure:"language" yaml:"language" validate:"oneof=typescript javascript"`
	TestFramework string        `mapstructure:"testFramework" yaml:"testFramework" validate:"oneof=vitest jest"`
	SQLDialect    string        `mapstructure:"sqlDialect" yaml:"sqlDialect" validate:"oneof=postgres sqlite"`
}

type TestingConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	Command      []string      `mapstructure:"command" yaml:"command" validate:"min=1"`
	CoverageArgs []string      `mapstructure:"coverageArgs" yaml:"coverageArgs"`
	CoverageFile string        `mapstructure:"coverageFile" yaml:"coverageFile"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `mapstructure:"allowedOrigins" yaml:"allowedOrigins"`
}

type RegistryConfig struct {
	StrictEnable bool `mapstructure:"strictEnable" yaml:"strictEnable"`
}

type PolicyConfig struct {
	// Dir defaults to <dataDir>/policies.
	Dir            string   `mapstructure:"dir" yaml:"dir,omitempty"`
	ProtectedZones []string `mapstructure:"protectedZones" yaml:"protectedZones"`
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	APIKey   string `mapstructure:"apiKey" yaml:"apiKey,omitempty"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dataDir", DefaultDataDir)
	v.SetDefault("projectRoot", ".")

	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.dsn", "")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.baseURL", "")

	v.SetDefault("generation.timeout", "2m")
	v.SetDefault("generation.maxAttempts", 1)
	v.SetDefault("generation.framework", "react")
	v.SetDefault("generation.language", "typescript")
	v.SetDefault("generation.testFramework", "vitest")
	v.SetDefault("generation.sqlDialect", "postgres")

	v.SetDefault("testing.timeout", "5m")
	v.SetDefault("testing.command", testpipeline.DefaultCommand)
	v.SetDefault("testing.coverageArgs", testpipeline.DefaultCoverageArgs)
	v.SetDefault("testing.coverageFile", testpipeline.DefaultCoverageFile)

	v.SetDefault("server.port", 8787)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("registry.strictEnable", false)

	v.SetDefault("policy.dir", "")
	v.SetDefault("policy.protectedZones", []string{})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.apiKey", "")
	v.SetDefault("telemetry.endpoint", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Configure points v at the environment and the config file search path.
// cfgFile, when set, replaces the search.
func Configure(v *viper.Viper, cfgFile, home string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		return
	}
	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(DefaultDataDir)
	if home != "" {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := validation.Struct("config.load", cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.ProjectRoot = strings.TrimSpace(c.ProjectRoot)
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Policy.Dir == "" && c.DataDir != "" {
		c.Policy.Dir = filepath.Join(c.DataDir, "policies")
	}
}
