package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Battery.Driver != "sysfs" {
		t.Fatalf("expected sysfs driver, got %q", cfg.Battery.Driver)
	}
	if cfg.QueueSize != 20 {
		t.Fatalf("expected queue size 20, got %d", cfg.QueueSize)
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Fatalf("expected 30s poll interval, got %v", cfg.PollInterval())
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"server": {"port": " 9000 "},
		"battery": {"driver": "Dummy", "default_charge_rate": 2500},
		"mqtt": {"topic_prefix": "deck/"}
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("POWERTOOLS_MQTT_ENABLED", "true")
	t.Setenv("POWERTOOLS_QUEUE_SIZE", "64")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("expected trimmed port 9000, got %q", cfg.Server.Port)
	}
	if cfg.Battery.Driver != "dummy" {
		t.Fatalf("expected dummy driver, got %q", cfg.Battery.Driver)
	}
	if cfg.Battery.DefaultRate == nil || *cfg.Battery.DefaultRate != 2500 {
		t.Fatalf("expected default rate 2500, got %v", cfg.Battery.DefaultRate)
	}
	if cfg.MQTT.TopicPrefix != "deck" {
		t.Fatalf("expected prefix deck, got %q", cfg.MQTT.TopicPrefix)
	}
	if !cfg.MQTT.Enabled {
		t.Fatal("expected env to enable mqtt")
	}
	if cfg.QueueSize != 64 {
		t.Fatalf("expected env queue size 64, got %d", cfg.QueueSize)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{`, "failed to decode json"},
		{"unknown driver", `{"battery": {"driver": "acpi"}}`, "unknown battery driver"},
		{"negative queue", `{"queue_size": -1}`, "queue_size"},
		{"bad poll interval", `{"mqtt": {"poll_interval": "soon"}}`, "poll_interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tc.body), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadEnvError(t *testing.T) {
	t.Setenv("POWERTOOLS_QUEUE_SIZE", "lots")
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}
