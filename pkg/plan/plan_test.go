package plan_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gantry/gantry/pkg/interfaces"
	"github.com/gantry/gantry/pkg/plan"
	"github.com/gantry/gantry/pkg/types"
)

// stubWork is a minimal work item for graph tests. The failure field is what
// NodeFailure reports after the node "runs".
type stubWork struct {
	name    string
	failure error

	wiring  []string
	outcome []string
	soft    []string
}

func (w *stubWork) Name() string                                 { return w.name }
func (w *stubWork) Execute(ctx context.Context) error            { return nil }
func (w *stubWork) NodeFailure() error                           { return w.failure }
func (w *stubWork) ResourcesToLock() []interfaces.ResourceLock   { return nil }
func (w *stubWork) ProjectToLock() interfaces.ResourceLock       { return nil }
func (w *stubWork) OwningProject() string                        { return "" }

// stubResolver resolves the name lists declared on stubWork against a node map
type stubResolver struct {
	nodes map[string]*plan.Node
}

func (r *stubResolver) ResolveDependenciesFor(item plan.WorkItem) (plan.ResolvedDependencies, error) {
	work, ok := item.(*stubWork)
	if !ok {
		return plan.ResolvedDependencies{}, nil
	}
	var resolved plan.ResolvedDependencies
	for _, name := range work.wiring {
		resolved.Wiring = append(resolved.Wiring, r.nodes[name])
	}
	for _, name := range work.outcome {
		resolved.Outcome = append(resolved.Outcome, r.nodes[name])
	}
	for _, name := range work.soft {
		resolved.Soft = append(resolved.Soft, r.nodes[name])
	}
	return resolved, nil
}

func newTestPlan() *plan.Plan {
	return plan.NewPlan("test", nil)
}

func addNode(p *plan.Plan, name string) *plan.Node {
	return p.NewNode(name, &stubWork{name: name})
}

// runNode drives a ready node through a full successful execution
func runNode(t *testing.T, n *plan.Node) {
	t.Helper()
	n.ForceAllDependenciesCompleteUpdate()
	if !n.AllDependenciesComplete() || !n.AllDependenciesSuccessful() {
		t.Fatalf("node %s is not ready to execute", n)
	}
	n.StartExecution(nil)
	n.FinishExecution(nil)
}

func TestPlan_AddEntryNodes_PlacesBatchesAtIncreasingOrdinals(t *testing.T) {
	p := newTestPlan()
	a := addNode(p, "a")
	b := addNode(p, "b")

	p.AddEntryNodes(a)
	p.AddEntryNodes(b)

	if !a.IsRequired() || !b.IsRequired() {
		t.Fatal("entry nodes must be scheduled")
	}

	ordinalA := a.Group().AsOrdinal()
	ordinalB := b.Group().AsOrdinal()
	if ordinalA == nil || ordinalB == nil {
		t.Fatal("entry nodes must belong to ordinal groups")
	}
	if ordinalA.Ordinal() != 0 || ordinalB.Ordinal() != 1 {
		t.Errorf("expected ordinals 0 and 1, got %d and %d", ordinalA.Ordinal(), ordinalB.Ordinal())
	}
	if !a.Group().IsReachableFromEntryPoint() {
		t.Error("entry node group must be reachable from an entry point")
	}
}

func TestPlan_ResolveDependencies_PullsInHardEdgesOnly(t *testing.T) {
	p := newTestPlan()
	a := addNode(p, "a")
	b := p.NewNode("b", &stubWork{name: "b", wiring: []string{"a"}, soft: []string{"c"}})
	c := addNode(p, "c")

	resolver := &stubResolver{nodes: map[string]*plan.Node{"a": a, "b": b, "c": c}}
	p.AddEntryNodes(b)

	if err := p.ResolveDependencies(resolver); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if !a.IsRequired() {
		t.Error("wiring dependency must be pulled into the plan")
	}
	if c.IsRequired() {
		t.Error("soft constraint must not pull work into the plan")
	}
	if !b.HasHardSuccessor(a) {
		t.Error("expected hard edge b -> a")
	}
}

func TestPlan_ResolveDependencies_ReachesFixpointThroughChains(t *testing.T) {
	p := newTestPlan()
	a := addNode(p, "a")
	b := p.NewNode("b", &stubWork{name: "b", wiring: []string{"a"}})
	c := p.NewNode("c", &stubWork{name: "c", wiring: []string{"b"}})

	resolver := &stubResolver{nodes: map[string]*plan.Node{"a": a, "b": b, "c": c}}
	p.AddEntryNodes(c)

	if err := p.ResolveDependencies(resolver); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	for _, n := range []*plan.Node{a, b, c} {
		if !n.IsRequired() {
			t.Errorf("node %s must be required after transitive resolution", n)
		}
		if !n.DependenciesProcessed() {
			t.Errorf("node %s must have its dependencies processed", n)
		}
	}
}

func TestPlan_ResolveDependencies_SchedulesFinalizers(t *testing.T) {
	p := newTestPlan()
	a := addNode(p, "a")
	f := addNode(p, "f")

	p.AddFinalizer(f, a)
	p.AddEntryNodes(a)

	resolver := &stubResolver{nodes: map[string]*plan.Node{"a": a, "f": f}}
	if err := p.ResolveDependencies(resolver); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if !f.IsRequired() {
		t.Error("scheduling a node must schedule its finalizers")
	}
}

func TestPlan_AddFinalizer_FinalizedNodeKeepsItsGroup(t *testing.T) {
	p := newTestPlan()
	a := addNode(p, "a")
	f := addNode(p, "f")

	group := p.AddFinalizer(f, a)

	if f.Group() != group {
		t.Error("finalizer must move into its own group")
	}
	if a.Group() != plan.DefaultGroup {
		t.Error("finalized node must keep its own group so it stays free to run first")
	}
	finalized := group.FinalizedNodes()
	if len(finalized) != 1 || finalized[0] != a {
		t.Errorf("expected finalized nodes [a], got %v", finalized)
	}
}

// The scenario behind this test: an entry node depends on a node that also has
// a finalizer. The finalized node must stay runnable through its entry-point
// cause instead of waiting on the group of its own finalizer.
func TestPlan_ResolveDependencies_FinalizedDependencyOfEntryNodeStaysRunnable(t *testing.T) {
	p := newTestPlan()
	b := addNode(p, "b")
	a := p.NewNode("a", &stubWork{name: "a", wiring: []string{"b"}})
	f := addNode(p, "f")

	p.AddEntryNodes(a)
	p.AddFinalizer(f, b)

	resolver := &stubResolver{nodes: map[string]*plan.Node{"a": a, "b": b, "f": f}}
	if err := p.ResolveDependencies(resolver); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if !b.IsRequired() {
		t.Fatal("dependency of the entry node must be scheduled")
	}
	if len(b.Group().FinalizerGroups()) != 0 {
		t.Fatalf("finalized node must not be gated by its finalizer's group, got %s", b.Group())
	}
	runNode(t, b)

	if !f.IsRequired() {
		t.Error("scheduling the finalized node must schedule its finalizer")
	}
	f.ForceAllDependenciesCompleteUpdate()
	if !f.AllDependenciesComplete() || !f.AllDependenciesSuccessful() {
		t.Error("finalizer must be ready once the finalized node executed")
	}
}

// A finalizer that depends on the node it finalizes must never pull that node
// into its own group, or the node would wait for itself.
func TestPlan_ResolveDependencies_FinalizerDependingOnFinalizedNode(t *testing.T) {
	p := newTestPlan()
	b := addNode(p, "b")
	f := p.NewNode("f", &stubWork{name: "f", wiring: []string{"b"}})

	p.AddEntryNodes(b)
	group := p.AddFinalizer(f, b)

	resolver := &stubResolver{nodes: map[string]*plan.Node{"b": b, "f": f}}
	if err := p.ResolveDependencies(resolver); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	for _, cause := range b.Group().FinalizerGroups() {
		if cause == group {
			t.Fatal("finalized node must not join the group of its own finalizer")
		}
	}
	runNode(t, b)
	runNode(t, f)
}

func TestPlan_ResolveDependencies_FinalizerDependenciesJoinItsGroup(t *testing.T) {
	p := newTestPlan()
	a := addNode(p, "a")
	d := addNode(p, "d")
	f := p.NewNode("f", &stubWork{name: "f", wiring: []string{"d"}})

	p.AddEntryNodes(a)
	group := p.AddFinalizer(f, a)

	resolver := &stubResolver{nodes: map[string]*plan.Node{"a": a, "d": d, "f": f}}
	if err := p.ResolveDependencies(resolver); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if d.Group().AsFinalizer() != group {
		t.Fatalf("node reachable only through the finalizer must join its group, got %s", d.Group())
	}

	// The group gates its members until a finalized node executed
	d.ForceAllDependenciesCompleteUpdate()
	if d.AllDependenciesComplete() {
		t.Error("finalizer dependency must wait until the group can fire")
	}
	runNode(t, a)
	runNode(t, d)
	runNode(t, f)
}

func TestPlan_ResolveDependencies_EntryReachableFinalizerDependencyGetsComposite(t *testing.T) {
	p := newTestPlan()
	a := addNode(p, "a")
	d := addNode(p, "d")
	f := p.NewNode("f", &stubWork{name: "f", wiring: []string{"d"}})

	p.AddEntryNodes(a, d)
	group := p.AddFinalizer(f, a)

	resolver := &stubResolver{nodes: map[string]*plan.Node{"a": a, "d": d, "f": f}}
	if err := p.ResolveDependencies(resolver); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	dg := d.Group()
	if dg.AsOrdinal() == nil {
		t.Error("entry-reachable finalizer dependency must keep its ordinal cause")
	}
	if causes := dg.FinalizerGroups(); len(causes) != 1 || causes[0] != group {
		t.Errorf("expected the finalizer cause alongside the ordinal, got %s", dg)
	}
	if !dg.IsReachableFromEntryPoint() {
		t.Error("composite with an ordinal must be entry-reachable")
	}
	runNode(t, d)
}

func TestPlan_ResolveDependencies_SharedFinalizerDependencyCombinesCauses(t *testing.T) {
	p := newTestPlan()
	a := addNode(p, "a")
	b := addNode(p, "b")
	shared := addNode(p, "shared")
	f1 := p.NewNode("f1", &stubWork{name: "f1", wiring: []string{"shared"}})
	f2 := p.NewNode("f2", &stubWork{name: "f2", wiring: []string{"shared"}})

	p.AddEntryNodes(a, b)
	p.AddFinalizer(f1, a)
	p.AddFinalizer(f2, b)

	resolver := &stubResolver{nodes: map[string]*plan.Node{
		"a": a, "b": b, "shared": shared, "f1": f1, "f2": f2,
	}}
	if err := p.ResolveDependencies(resolver); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	group := shared.Group()
	if group.AsFinalizer() != nil {
		t.Error("dependency shared by two finalizers must use a composite group")
	}
	if len(group.FinalizerGroups()) != 2 {
		t.Errorf("expected two finalizer causes, got %d", len(group.FinalizerGroups()))
	}
	if group.IsReachableFromEntryPoint() {
		t.Error("composite without an ordinal must not be entry-reachable")
	}
}

// Two members of the same group depending on one node must not record the
// group as a cause twice on that node.
func TestPlan_ResolveDependencies_GroupPropagationDoesNotDuplicateCauses(t *testing.T) {
	p := newTestPlan()
	a := addNode(p, "a")
	shared := addNode(p, "shared")
	d1 := p.NewNode("d1", &stubWork{name: "d1", wiring: []string{"shared"}})
	d2 := p.NewNode("d2", &stubWork{name: "d2", wiring: []string{"shared"}})
	f := p.NewNode("f", &stubWork{name: "f", wiring: []string{"d1", "d2"}})

	p.AddEntryNodes(a, shared)
	group := p.AddFinalizer(f, a)

	resolver := &stubResolver{nodes: map[string]*plan.Node{
		"a": a, "shared": shared, "d1": d1, "d2": d2, "f": f,
	}}
	if err := p.ResolveDependencies(resolver); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	causes := shared.Group().FinalizerGroups()
	if len(causes) != 1 || causes[0] != group {
		t.Errorf("expected exactly one finalizer cause, got %s", shared.Group())
	}
	if shared.Group().AsOrdinal() == nil {
		t.Error("entry-reachable shared dependency must keep its ordinal cause")
	}
}

func TestPlan_Abort_ReturnsPendingNodesToNotScheduled(t *testing.T) {
	p := newTestPlan()
	a := addNode(p, "a")
	b := addNode(p, "b")
	p.AddEntryNodes(a, b)

	runNode(t, a)

	var aborted []*plan.Node
	p.Abort(func(n *plan.Node) {
		aborted = append(aborted, n)
	})

	if a.State() != plan.Executed {
		t.Error("executed nodes must not be aborted")
	}
	if b.State() != plan.NotScheduled {
		t.Errorf("pending node must return to NOT_SCHEDULED, got %s", b.State())
	}
	if len(aborted) != 1 || aborted[0] != b {
		t.Errorf("expected abort callback for b only, got %v", aborted)
	}
}

func TestPlan_IsCompleteAndFailures(t *testing.T) {
	p := newTestPlan()
	failure := errors.New("boom")
	a := p.NewNode("a", &stubWork{name: "a"})
	b := p.NewNode("b", &stubWork{name: "b", failure: failure})
	p.AddEntryNodes(a, b)

	if p.IsComplete() {
		t.Fatal("plan with scheduled work must not be complete")
	}

	runNode(t, a)
	runNode(t, b)

	if !p.IsComplete() {
		t.Fatal("plan must be complete after all nodes executed")
	}
	failures := p.Failures()
	if len(failures) != 1 || !errors.Is(failures[0], failure) {
		t.Errorf("expected the work failure to be collected, got %v", failures)
	}
}

func TestPlan_MarkDestroyerAndProducer_WiresBarrierEdges(t *testing.T) {
	p := newTestPlan()
	producer := addNode(p, "producer")
	destroyer := addNode(p, "destroyer")

	p.MarkProducer(producer, p.Ordinals().Group(1))
	p.MarkDestroyer(destroyer, p.Ordinals().Group(3))

	producerBarrier := p.Ordinals().ProducerLocationNode(p.Ordinals().Group(1))
	destroyerBarrier := p.Ordinals().DestroyerLocationNode(p.Ordinals().Group(3))

	if !producerBarrier.HasHardSuccessor(producer) {
		t.Error("producer barrier must wait for its producer")
	}
	if !destroyerBarrier.HasHardSuccessor(destroyer) {
		t.Error("destroyer barrier must wait for its destroyer")
	}
	if !destroyer.HasHardSuccessor(producerBarrier) {
		t.Error("destroyer at 3 must wait for the producer barrier at 1")
	}
	if producer.HasHardSuccessor(destroyerBarrier) {
		t.Error("producer at 1 must not wait for a later destroyer barrier")
	}
	if producer.OrdinalRole() != plan.RoleProducer || destroyer.OrdinalRole() != plan.RoleDestroyer {
		t.Error("ordinal roles must be recorded on the nodes")
	}
}

func TestPlan_FinalizeGraph_LinksBarrierNodes(t *testing.T) {
	p := newTestPlan()
	producer := addNode(p, "producer")
	destroyer := addNode(p, "destroyer")

	p.MarkProducer(producer, p.Ordinals().Group(0))
	p.MarkDestroyer(destroyer, p.Ordinals().Group(2))
	p.FinalizeGraph()

	producerBarrier := p.Ordinals().ProducerLocationNode(p.Ordinals().Group(0))
	destroyerBarrier := p.Ordinals().DestroyerLocationNode(p.Ordinals().Group(2))

	if !destroyerBarrier.HasHardSuccessor(producerBarrier) {
		t.Error("destroyer barrier must wait for all earlier producer barriers")
	}
}

func TestPlan_NodeSequenceGivesStableOrdering(t *testing.T) {
	p := newTestPlan()
	a := addNode(p, "a")
	b := addNode(p, "b")
	c := addNode(p, "c")

	nodes := p.Nodes()
	if len(nodes) != 3 || nodes[0] != a || nodes[1] != b || nodes[2] != c {
		t.Errorf("expected creation order [a b c], got %v", nodes)
	}
	if !(a.Sequence() < b.Sequence() && b.Sequence() < c.Sequence()) {
		t.Error("sequence numbers must increase with creation order")
	}
}

func TestVerificationError_Detection(t *testing.T) {
	cause := errors.New("checksum mismatch")
	err := types.NewVerificationError("artifact check", cause)

	if !types.IsVerificationError(err) {
		t.Error("verification error must be detected directly")
	}
	if !errors.Is(err, cause) {
		t.Error("verification error must unwrap to its cause")
	}
	if types.IsVerificationError(cause) {
		t.Error("plain errors must not be detected as verification failures")
	}
}
