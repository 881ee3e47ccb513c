package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
server:
  port: 9090
marketdata:
  base_url: http://md.local
backtest:
  engine_url: http://engine.local
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if cfg.Session.MaxSlots != 5 {
		t.Fatalf("expected default max slots, got %d", cfg.Session.MaxSlots)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Fatalf("expected default ttl, got %v", cfg.Session.TTL)
	}
	if cfg.Backtest.MinCapital != 10000 {
		t.Fatalf("expected default min capital, got %f", cfg.Backtest.MinCapital)
	}
}

func TestLoadRequiresCollaboratorURLs(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: test\n"))
	if err == nil {
		t.Fatal("expected validation error for missing collaborator URLs")
	}
}

func TestLoadRejectsKafkaWithoutBrokers(t *testing.T) {
	yaml := minimalYAML + `
kafka:
  enabled: true
  snapshot_topic: t
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatal("expected validation error for enabled kafka without brokers")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("MARKETDATA_URL", "http://override.local")
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MarketData.BaseURL != "http://override.local" {
		t.Fatalf("env override ignored: %s", cfg.MarketData.BaseURL)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
}
