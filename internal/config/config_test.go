package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "config"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "config", "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestLoadDefaults(t *testing.T) {
	loader, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	conf := loader.Config()

	if conf.Server.Port != "5050" {
		t.Errorf("Expected port 5050, got %s", conf.Server.Port)
	}
	if conf.Experiment.Blocks != 3 {
		t.Errorf("Expected 3 blocks, got %d", conf.Experiment.Blocks)
	}
	if conf.Experiment.SeekTolerance != 0.05 {
		t.Errorf("Expected seek tolerance 0.05, got %f", conf.Experiment.SeekTolerance)
	}
	if conf.Experiment.CompletionDisplay != 4*time.Second {
		t.Errorf("Expected 4s completion display, got %s", conf.Experiment.CompletionDisplay)
	}
	if conf.Experiment.UnspedLow {
		t.Error("Unsped low condition should be off by default")
	}
	if len(conf.Experiment.UnspedLowGenders) != 1 || conf.Experiment.UnspedLowGenders[0] != "male" {
		t.Errorf("Expected unsped genders [male], got %v", conf.Experiment.UnspedLowGenders)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	root := writeConfig(t, `
server:
  port: "8081"
experiment:
  blocks: 2
  unsped_low: true
  completion_display: 10s
`)
	t.Setenv("VOICE_RATING_DATABASE_HOST", "localhost")

	loader, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	conf := loader.Config()

	if conf.Server.Port != "8081" {
		t.Errorf("Expected port 8081, got %s", conf.Server.Port)
	}
	if conf.Experiment.Blocks != 2 {
		t.Errorf("Expected 2 blocks, got %d", conf.Experiment.Blocks)
	}
	if !conf.Experiment.UnspedLow {
		t.Error("Expected unsped low enabled")
	}
	if conf.Experiment.CompletionDisplay != 10*time.Second {
		t.Errorf("Expected 10s, got %s", conf.Experiment.CompletionDisplay)
	}
	if conf.Database.Host != "localhost" {
		t.Errorf("Expected env override of database host, got %s", conf.Database.Host)
	}
}

func TestLoadRejectsInvalidBlocks(t *testing.T) {
	root := writeConfig(t, "experiment:\n  blocks: 0\n")
	if _, err := Load(root); err == nil {
		t.Error("Expected error for zero blocks")
	}
}

func TestLoadRejectsUnknownGender(t *testing.T) {
	root := writeConfig(t, "experiment:\n  unsped_low_genders: [other]\n")
	if _, err := Load(root); err == nil {
		t.Error("Expected error for unknown gender")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "n"}
	want := "host=h user=u password=p dbname=n port=1 sslmode=disable TimeZone=UTC"
	if got := d.DSN(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
