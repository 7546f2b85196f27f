package validation_test

import (
	"strings"
	"testing"

	"github.com/gantry/gantry/pkg/types"
	"github.com/gantry/gantry/pkg/validation"
)

func planWith(nodes ...types.NodeConfig) *types.PlanConfig {
	return &types.PlanConfig{Version: "1.0", Name: "p", Nodes: nodes}
}

func TestValidateGraph_AcceptsAcyclicPlans(t *testing.T) {
	cfg := planWith(
		types.NodeConfig{Name: "a", Command: "true"},
		types.NodeConfig{Name: "b", Command: "true", DependsOn: []string{"a"}},
		types.NodeConfig{Name: "c", Command: "true", DependsOn: []string{"a"}, RunAfter: []string{"b"}},
		types.NodeConfig{Name: "d", Command: "true", Finalizes: []string{"c"}},
	)
	if err := validation.ValidateGraph(cfg); err != nil {
		t.Errorf("acyclic plan rejected: %v", err)
	}
}

func TestValidateGraph_RejectsSelfDependency(t *testing.T) {
	cfg := planWith(
		types.NodeConfig{Name: "a", Command: "true", DependsOn: []string{"a"}},
	)
	err := validation.ValidateGraph(cfg)
	if err == nil || !strings.Contains(err.Error(), "itself") {
		t.Errorf("expected self-dependency error, got %v", err)
	}
}

func TestValidateGraph_RejectsCycles(t *testing.T) {
	cfg := planWith(
		types.NodeConfig{Name: "a", Command: "true", DependsOn: []string{"c"}},
		types.NodeConfig{Name: "b", Command: "true", DependsOn: []string{"a"}},
		types.NodeConfig{Name: "c", Command: "true", DependsOn: []string{"b"}},
	)
	err := validation.ValidateGraph(cfg)
	if err == nil {
		t.Fatal("cyclic plan must be rejected")
	}
	for _, name := range []string{"a", "b", "c"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("cycle report must name %q: %v", name, err)
		}
	}
}

func TestValidateGraph_CountsSoftEdgesTowardCycles(t *testing.T) {
	cfg := planWith(
		types.NodeConfig{Name: "a", Command: "true", RunAfter: []string{"b"}},
		types.NodeConfig{Name: "b", Command: "true", DependsOn: []string{"a"}},
	)
	if err := validation.ValidateGraph(cfg); err == nil {
		t.Error("mixed hard/soft cycle must be rejected")
	}
}

func TestValidateGraph_IgnoresFinalizerBackEdges(t *testing.T) {
	// A finalizer may depend on work that it also finalizes
	cfg := planWith(
		types.NodeConfig{Name: "a", Command: "true"},
		types.NodeConfig{Name: "f", Command: "true", DependsOn: []string{"a"}, Finalizes: []string{"a"}},
	)
	if err := validation.ValidateGraph(cfg); err != nil {
		t.Errorf("finalizer edges must not count toward cycles: %v", err)
	}
}
