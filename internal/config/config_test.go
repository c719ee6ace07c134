package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/llm"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	Configure(v, "", "")
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("store.backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Generation.Timeout != 2*time.Minute {
		t.Errorf("generation.timeout = %v, want 2m", cfg.Generation.Timeout)
	}
	if cfg.Generation.MaxAttempts != 1 {
		t.Errorf("generation.maxAttempts = %d, want 1", cfg.Generation.MaxAttempts)
	}
	if cfg.Testing.Timeout != 5*time.Minute {
		t.Errorf("testing.timeout = %v, want 5m", cfg.Testing.Timeout)
	}
	if len(cfg.Testing.Command) == 0 || cfg.Testing.Command[0] != "npx" {
		t.Errorf("testing.command = %v, want npx vitest ...", cfg.Testing.Command)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("server.port = %d, want 8787", cfg.Server.Port)
	}
	if cfg.Registry.StrictEnable {
		t.Error("registry.strictEnable should default to false")
	}
	if want := filepath.Join(DefaultDataDir, "policies"); cfg.PoliciesDir() != want {
		t.Errorf("PoliciesDir() = %q, want %q", cfg.PoliciesDir(), want)
	}
	if want := filepath.Join(DefaultDataDir, "backups"); cfg.BackupDir() != want {
		t.Errorf("BackupDir() = %q, want %q", cfg.BackupDir(), want)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TODOBUILDER_SERVER_PORT", "9100")
	t.Setenv("TODOBUILDER_STORE_BACKEND", "memory")
	t.Setenv("TODOBUILDER_GENERATION_TIMEOUT", "30s")
	t.Setenv("TODOBUILDER_REGISTRY_STRICTENABLE", "true")

	cfg, err := Load(newViper(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("server.port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("store.backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Generation.Timeout != 30*time.Second {
		t.Errorf("generation.timeout = %v, want 30s", cfg.Generation.Timeout)
	}
	if !cfg.Registry.StrictEnable {
		t.Error("registry.strictEnable override ignored")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"unknown backend", "store.backend", "mongo"},
		{"postgres without dsn", "store.backend", "postgres"},
		{"unknown provider", "llm.provider", "cohere"},
		{"bad log level", "log.level", "trace"},
		{"zero attempts", "generation.maxAttempts", 0},
		{"empty test command", "testing.command", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newViper(t)
			v.Set(tc.key, tc.val)
			_, err := Load(v)
			if err == nil {
				t.Fatalf("Load() with %s=%v succeeded, want validation error", tc.key, tc.val)
			}
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("Load() error kind = %s, want validation (%v)", apperr.KindOf(err), err)
			}
		})
	}
}

func TestChatModel(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg, err := Load(newViper(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.LLM.Provider = "anthropic"
	got, err := cfg.ChatModel()
	if err != nil {
		t.Fatalf("ChatModel() error = %v", err)
	}
	if got.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env fallback", got.APIKey)
	}
	if got.Model != llm.DefaultModelForProvider(llm.ProviderAnthropic) {
		t.Errorf("Model = %q, want provider default", got.Model)
	}

	cfg.LLM.APIKey = "configured"
	got, _ = cfg.ChatModel()
	if got.APIKey != "configured" {
		t.Errorf("APIKey = %q, want configured key to win", got.APIKey)
	}

	cfg.LLM.Provider = "ollama"
	cfg.LLM.APIKey = ""
	got, _ = cfg.ChatModel()
	if got.BaseURL != llm.DefaultOllamaURL {
		t.Errorf("BaseURL = %q, want %q", got.BaseURL, llm.DefaultOllamaURL)
	}
}

func TestWriteFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	cfg.Server.Port = 9200
	cfg.LLM.APIKey = "sk-secret"

	path := "/work/.todobuilder/.todobuilder.yaml"
	if err := WriteFile(fs, path, cfg, false); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := WriteFile(fs, path, cfg, false); !errors.Is(err, ErrConfigExists) {
		t.Fatalf("second WriteFile() error = %v, want ErrConfigExists", err)
	}

	v := viper.New()
	v.SetFs(fs)
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}
	got, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Server.Port != 9200 || got.LLM.APIKey != "sk-secret" {
		t.Fatalf("reloaded config = port %d key %q", got.Server.Port, got.LLM.APIKey)
	}
	if got.Generation.Timeout != cfg.Generation.Timeout {
		t.Fatalf("generation.timeout = %v, want %v", got.Generation.Timeout, cfg.Generation.Timeout)
	}
}

func TestRedacted(t *testing.T) {
	cfg, _ := Default()
	cfg.LLM.APIKey = "sk-secret"
	cfg.Store.DSN = "postgres://user:pw@db/app"

	data, err := Marshal(cfg.Redacted())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	out := string(data)
	if strings.Contains(out, "sk-secret") || strings.Contains(out, "pw@db") {
		t.Fatalf("secrets leaked:\n%s", out)
	}
	if cfg.LLM.APIKey != "sk-secret" {
		t.Fatal("Redacted() modified the original")
	}
}
