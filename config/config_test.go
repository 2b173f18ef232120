package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected default driver sqlite, got %q", cfg.Store.Driver)
	}
	if !cfg.Redemption.RefundOnRejection {
		t.Error("expected refund_on_rejection to default to true")
	}
}

func TestLoadPartialFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
referral:
  referrer_award: 750
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Referral.ReferrerAward != 750 {
		t.Errorf("expected referrer award 750, got %d", cfg.Referral.ReferrerAward)
	}
	// Untouched sections keep their defaults.
	if cfg.Referral.WelcomeBonus != 100 {
		t.Errorf("expected welcome bonus 100, got %d", cfg.Referral.WelcomeBonus)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected driver sqlite, got %q", cfg.Store.Driver)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad driver", "store:\n  driver: oracle\n"},
		{"postgres without dsn", "store:\n  driver: postgres\n"},
		{"negative award", "referral:\n  referrer_award: -1\n"},
		{"short code length", "referral:\n  code_length: 2\n"},
		{"port out of range", "server:\n  port: 99999\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
