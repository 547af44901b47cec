package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestReadConfig(t *testing.T) {
	var (
		err         error
		projectRoot string
	)

	// Get the project root by going up from internal/config
	projectRoot, err = filepath.Abs("../../")
	if err != nil {
		t.Fatalf("failed to get project root: %v", err)
	}

	configPath := filepath.Join(projectRoot, "etc") + string(filepath.Separator)

	var cfg Config

	cfg, err = ReadConfig(configPath)
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	// Test basic config fields
	if cfg.Title == "" {
		t.Error("Config.Title should not be empty")
	}

	if cfg.Webserver.Port == 0 {
		t.Error("Webserver.Port should not be 0")
	}

	if cfg.Webserver.URL == "" {
		t.Error("Webserver.URL should not be empty")
	}

	if cfg.DB.GormEngine == "" {
		t.Error("DB.GormEngine should not be empty")
	}
}

func TestReadConfigEnvOverride(t *testing.T) {
	projectRoot, err := filepath.Abs("../../")
	if err != nil {
		t.Fatalf("failed to get project root: %v", err)
	}

	configPath := filepath.Join(projectRoot, "etc") + string(filepath.Separator)

	t.Setenv("EVALFORGE_CONFIG_JSON", `{"Title":"overridden"}`)

	cfg, err := ReadConfig(configPath)
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Title != "overridden" {
		t.Errorf("Title = %q, want %q", cfg.Title, "overridden")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
			Identity:  Identity{DevTokenSecret: "secret"},
		}
	}

	t.Run("missing port", func(t *testing.T) {
		cfg := base()
		cfg.Webserver.Port = 0

		if err := validate(cfg); err == nil || !strings.Contains(err.Error(), "port") {
			t.Errorf("validate() = %v, want port error", err)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		cfg := base()
		cfg.Webserver.URL = ""

		if err := validate(cfg); err == nil {
			t.Error("validate() expected error for empty URL")
		}
	})

	t.Run("no verifier", func(t *testing.T) {
		cfg := base()
		cfg.Identity.DevTokenSecret = ""

		if err := validate(cfg); err == nil {
			t.Error("validate() expected error for missing verifier")
		}
	})

	t.Run("valid", func(t *testing.T) {
		if err := validate(base()); err != nil {
			t.Errorf("validate() unexpected error: %v", err)
		}
	})
}
