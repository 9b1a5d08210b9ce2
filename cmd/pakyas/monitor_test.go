package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Pakyas-Monitoring/pakyas-cli/internal/external"
)

func setConfigHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("PAKYAS_MIGRATION_MODE", "")
	t.Setenv("EXTERNAL_WEBHOOK_URL", "")
	return dir
}

func TestLoadExternalTargetsDisabled(t *testing.T) {
	setConfigHome(t)

	targets, migration := loadExternalTargets("job", true, true, nil)
	if targets != nil {
		t.Errorf("targets = %+v, want none with --no-external", targets)
	}
	if migration {
		t.Error("--no-external must disable migration mode")
	}
}

func TestLoadExternalTargetsMissingConfig(t *testing.T) {
	setConfigHome(t)

	targets, migration := loadExternalTargets("job", false, true, nil)
	if len(targets) != 0 {
		t.Errorf("targets = %+v, want none without a config file", targets)
	}
	if !migration {
		t.Error("CLI migration flag should survive a missing config file")
	}
}

func TestLoadExternalTargetsFromFile(t *testing.T) {
	dir := setConfigHome(t)
	cfgDir := filepath.Join(dir, "pakyas")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `
migration_mode: true
targets:
  webhook:
    url: https://hooks.example.com/jobs
`
	if err := os.WriteFile(filepath.Join(cfgDir, "external_monitors.yml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	targets, migration := loadExternalTargets("job", false, false, nil)
	if len(targets) != 1 || targets[0].Kind != external.KindWebhook {
		t.Errorf("targets = %+v, want one webhook", targets)
	}
	if !migration {
		t.Error("file migration_mode should enable migration even without the flag")
	}
}
