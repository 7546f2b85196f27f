package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gantry/gantry/pkg/types"
)

func TestRunInit_NewConfiguration(t *testing.T) {
	// Setup temp directory
	tempDir := t.TempDir()
	originalProjectRoot := projectRoot
	projectRoot = tempDir
	defer func() { projectRoot = originalProjectRoot }()

	configPath := filepath.Join(tempDir, "gantry.config.json")

	err := runInit("pipeline", false)
	if err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	// Verify config file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Configuration file was not created")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var cfg types.PlanConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	if cfg.Version != "1.0" {
		t.Errorf("Expected version 1.0, got %s", cfg.Version)
	}
	if cfg.Name != "pipeline" {
		t.Errorf("Expected plan name pipeline, got %s", cfg.Name)
	}
	if len(cfg.Nodes) == 0 {
		t.Error("Expected starter nodes to be created")
	}
}

func TestRunInit_ExistingConfigurationNeedsForce(t *testing.T) {
	tempDir := t.TempDir()
	originalProjectRoot := projectRoot
	projectRoot = tempDir
	defer func() { projectRoot = originalProjectRoot }()

	if err := runInit("first", false); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	// Second init without --force must refuse to overwrite
	if err := runInit("second", false); err == nil {
		t.Fatal("Expected error when configuration already exists")
	}

	if err := runInit("second", true); err != nil {
		t.Fatalf("runInit with force failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tempDir, "gantry.config.json"))
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	var cfg types.PlanConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	if cfg.Name != "second" {
		t.Errorf("Expected forced overwrite to win, got plan name %s", cfg.Name)
	}
}

func TestGetConfigPath(t *testing.T) {
	originalCfgFile := cfgFile
	originalProjectRoot := projectRoot
	defer func() {
		cfgFile = originalCfgFile
		projectRoot = originalProjectRoot
	}()

	cfgFile = ""
	projectRoot = "/tmp/project"
	if got := getConfigPath(); got != filepath.Join("/tmp/project", "gantry.config.json") {
		t.Errorf("unexpected default config path: %s", got)
	}

	cfgFile = "/explicit/path.json"
	if got := getConfigPath(); got != "/explicit/path.json" {
		t.Errorf("explicit --config must win, got %s", got)
	}
}
