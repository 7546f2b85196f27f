// Package config handles plan configuration loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gantry/gantry/pkg/types"
)

// SupportedVersion is the plan configuration schema version this build accepts
const SupportedVersion = "1.0"

// ConfigFileNames lists the file names probed during discovery, in order
var ConfigFileNames = []string{
	"gantry.config.json",
	"gantry.config.yaml",
	"gantry.config.yml",
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadConfig loads a plan configuration from a file. JSON and YAML are both
// accepted; YAML is normalized through JSON so both paths share one schema.
func (m *Manager) LoadConfig(path string) (*types.PlanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg types.PlanConfig

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.finishLoad(&cfg)
	}

	// Try YAML, converting through JSON
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err == nil {
		jsonData, err := json.Marshal(yamlData)
		if err == nil {
			if err := json.Unmarshal(jsonData, &cfg); err == nil {
				return m.finishLoad(&cfg)
			}
		}
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

// Discover searches the given directory and its ancestors for a plan
// configuration file, returning its path
func (m *Manager) Discover(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no plan configuration found in %s or any parent directory", dir)
		}
		dir = parent
	}
}

// ValidateConfig checks the structural validity of a configuration: schema
// version, node presence, name uniqueness and intra-config references. Graph
// properties such as cycles are checked separately by the validation package.
func (m *Manager) ValidateConfig(cfg *types.PlanConfig) error {
	if cfg.Version != SupportedVersion {
		return fmt.Errorf("unsupported config version: %s", cfg.Version)
	}
	if cfg.Name == "" {
		return fmt.Errorf("plan name is required")
	}
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("no nodes defined")
	}
	if cfg.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative")
	}

	names := make(map[string]bool)
	for i, node := range cfg.Nodes {
		if node.Name == "" {
			return fmt.Errorf("node %d: name is required", i)
		}
		if names[node.Name] {
			return fmt.Errorf("duplicate node name: %s", node.Name)
		}
		names[node.Name] = true

		if err := m.validateNode(&node); err != nil {
			return fmt.Errorf("node '%s': %w", node.Name, err)
		}
	}

	for _, node := range cfg.Nodes {
		for _, ref := range referencedNames(&node) {
			if !names[ref] {
				return fmt.Errorf("node '%s' references unknown node '%s'", node.Name, ref)
			}
		}
	}

	return nil
}

// GetDefaultConfig returns a starter configuration
func (m *Manager) GetDefaultConfig(name string) *types.PlanConfig {
	enabled := true
	return &types.PlanConfig{
		Version:     SupportedVersion,
		Name:        name,
		Parallelism: 2,
		Nodes:       []types.NodeConfig{},
		Notifications: &types.NotificationConfig{
			Enabled: &enabled,
		},
	}
}

// SaveConfig writes a configuration to the given path as indented JSON
func (m *Manager) SaveConfig(cfg *types.PlanConfig, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (m *Manager) finishLoad(cfg *types.PlanConfig) (*types.PlanConfig, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *Manager) validateNode(node *types.NodeConfig) error {
	if node.Command == "" {
		return fmt.Errorf("no command defined")
	}
	if node.Role != "" {
		if node.Ordinal == nil {
			return fmt.Errorf("role %q requires an ordinal", node.Role)
		}
		if node.Role != types.OrdinalRoleProducer && node.Role != types.OrdinalRoleDestroyer {
			return fmt.Errorf("unknown ordinal role: %s", node.Role)
		}
	}
	if node.Ordinal != nil {
		if node.Role == "" {
			return fmt.Errorf("ordinal %d requires a role", *node.Ordinal)
		}
		if *node.Ordinal < 0 {
			return fmt.Errorf("ordinal must not be negative")
		}
	}
	return nil
}

func referencedNames(node *types.NodeConfig) []string {
	refs := make([]string, 0, len(node.DependsOn)+len(node.OutcomeDependsOn)+len(node.RunAfter)+len(node.Finalizes))
	refs = append(refs, node.DependsOn...)
	refs = append(refs, node.OutcomeDependsOn...)
	refs = append(refs, node.RunAfter...)
	refs = append(refs, node.Finalizes...)
	return refs
}
