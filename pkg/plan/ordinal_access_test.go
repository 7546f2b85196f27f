package plan_test

import (
	"strings"
	"testing"

	"github.com/gantry/gantry/pkg/plan"
)

func TestOrdinalNodeAccess_GroupsAreCached(t *testing.T) {
	p := newTestPlan()

	g1 := p.Ordinals().Group(1)
	g2 := p.Ordinals().Group(1)
	if g1 != g2 {
		t.Error("the same ordinal must always map to the same group")
	}
	if g1.Ordinal() != 1 {
		t.Errorf("expected ordinal 1, got %d", g1.Ordinal())
	}
}

func TestOrdinalNodeAccess_BarrierNodesAreLazyAndCached(t *testing.T) {
	p := newTestPlan()
	group := p.Ordinals().Group(0)

	if len(p.Ordinals().AllNodes()) != 0 {
		t.Fatal("no barrier nodes must exist before first use")
	}

	destroyer := p.Ordinals().DestroyerLocationNode(group)
	if destroyer != p.Ordinals().DestroyerLocationNode(group) {
		t.Error("barrier node for an ordinal must be created once")
	}
	if !destroyer.IsRequired() {
		t.Error("barrier nodes must be scheduled on creation")
	}
	if destroyer.Work() != nil {
		t.Error("barrier nodes are synthetic and carry no work")
	}
	if destroyer.OrdinalRole() != plan.RoleDestroyer {
		t.Errorf("expected destroyer role, got %s", destroyer.OrdinalRole())
	}
	if !strings.Contains(destroyer.Name(), "locations") {
		t.Errorf("unexpected barrier node name: %s", destroyer.Name())
	}
}

func TestOrdinalNodeAccess_PrecedingNodesAreStrictAndAscending(t *testing.T) {
	p := newTestPlan()
	for _, ordinal := range []int{3, 0, 2} {
		p.Ordinals().ProducerLocationNode(p.Ordinals().Group(ordinal))
	}

	preceding := p.Ordinals().PrecedingProducerLocationNodes(3)
	if len(preceding) != 2 {
		t.Fatalf("expected 2 preceding producers, got %d", len(preceding))
	}
	first := p.Ordinals().ProducerLocationNode(p.Ordinals().Group(0))
	second := p.Ordinals().ProducerLocationNode(p.Ordinals().Group(2))
	if preceding[0] != first || preceding[1] != second {
		t.Error("preceding barriers must come back in ascending ordinal order")
	}

	if len(p.Ordinals().PrecedingProducerLocationNodes(0)) != 0 {
		t.Error("preceding must be strictly before the given ordinal")
	}
}

func TestOrdinalNodeAccess_AllNodesListsDestroyersThenProducers(t *testing.T) {
	p := newTestPlan()
	p.Ordinals().ProducerLocationNode(p.Ordinals().Group(1))
	p.Ordinals().DestroyerLocationNode(p.Ordinals().Group(0))
	p.Ordinals().DestroyerLocationNode(p.Ordinals().Group(2))

	all := p.Ordinals().AllNodes()
	if len(all) != 3 {
		t.Fatalf("expected 3 barrier nodes, got %d", len(all))
	}
	if all[0].OrdinalRole() != plan.RoleDestroyer || all[1].OrdinalRole() != plan.RoleDestroyer {
		t.Error("destroyer barriers must come first")
	}
	if all[2].OrdinalRole() != plan.RoleProducer {
		t.Error("producer barriers must come last")
	}
}

func TestOrdinalRole_String(t *testing.T) {
	cases := map[plan.OrdinalRole]string{
		plan.RoleNone:      "NONE",
		plan.RoleProducer:  "PRODUCER",
		plan.RoleDestroyer: "DESTROYER",
	}
	for role, want := range cases {
		if got := role.String(); got != want {
			t.Errorf("role %d: expected %q, got %q", int(role), want, got)
		}
	}
}
