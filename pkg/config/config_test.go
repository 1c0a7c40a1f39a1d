package config

import (
	"strings"
	"testing"
)

func TestEnsureDSNPrefersExplicitValue(t *testing.T) {
	cfg := DBConfig{DSN: "postgres://tally:secret@db:5432/tallypos"}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DSN != "postgres://tally:secret@db:5432/tallypos" {
		t.Fatalf("dsn was rewritten: %s", cfg.DSN)
	}
}

func TestEnsureDSNAssemblesLegacyVars(t *testing.T) {
	cfg := DBConfig{
		LegacyHost:     "localhost",
		LegacyPort:     5433,
		LegacyUser:     "tally",
		LegacyPassword: "s3cret",
		LegacyName:     "tallypos",
		LegacySSLMode:  "disable",
	}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"postgres://", "tally:s3cret@", "localhost:5433", "/tallypos", "sslmode=disable"} {
		if !strings.Contains(cfg.DSN, want) {
			t.Fatalf("dsn %q missing %q", cfg.DSN, want)
		}
	}
}

func TestEnsureDSNReportsMissingLegacyVars(t *testing.T) {
	cfg := DBConfig{LegacyHost: "localhost"}
	err := cfg.ensureDSN()
	if err == nil {
		t.Fatal("expected error for missing legacy vars")
	}
	if !strings.Contains(err.Error(), EnvDBUser) || !strings.Contains(err.Error(), EnvDBName) {
		t.Fatalf("error should name missing vars, got: %v", err)
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	if !(AppConfig{Env: "Dev"}).IsDev() {
		t.Fatal("expected IsDev for Dev")
	}
	if !(AppConfig{Env: "PROD"}).IsProd() {
		t.Fatal("expected IsProd for PROD")
	}
	if (AppConfig{Env: "staging"}).IsProd() {
		t.Fatal("staging must not be prod")
	}
}

func TestStripeEnvironmentDefaultsToTest(t *testing.T) {
	if got := (StripeConfig{}).Environment(); got != "test" {
		t.Fatalf("expected test, got %s", got)
	}
	if got := (StripeConfig{Env: " Live "}).Environment(); got != "live" {
		t.Fatalf("expected live, got %s", got)
	}
}
