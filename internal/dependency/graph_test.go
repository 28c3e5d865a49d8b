package dependency

import (
	"testing"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

func newTask(id string) *model.Task {
	return &model.Task{ID: id, Status: model.TaskPending}
}

func TestReadyReturnsOnlyUnblockedTasks(t *testing.T) {
	g := New()
	a := newTask("a")
	b := newTask("b")
	g.AddTask(a, PriorityResourceDelete)
	g.AddTask(b, PriorityResourceDelete)
	g.AddEdge("b", "a", false)

	ready := g.Ready()
	if len(ready) != 1 || ready[0] != "a" {
		t.Fatalf("expected only 'a' ready, got %v", ready)
	}

	g.Complete("a", model.TaskSucceeded)
	ready = g.Ready()
	if len(ready) != 1 || ready[0] != "b" {
		t.Fatalf("expected 'b' ready after 'a' succeeds, got %v", ready)
	}
}

func TestCompleteFailurePropagatesSkipToDependents(t *testing.T) {
	g := New()
	root := newTask("root")
	child := newTask("child")
	grandchild := newTask("grandchild")
	g.AddTask(root, PriorityResourceDelete)
	g.AddTask(child, PriorityResourceDelete)
	g.AddTask(grandchild, PriorityResourceDelete)
	g.AddEdge("child", "root", false)
	g.AddEdge("grandchild", "child", false)

	g.Complete("root", model.TaskFailed)

	if child.Status != model.TaskSkipped || child.SkipReason != "parent-failed" {
		t.Errorf("expected child skipped with parent-failed, got status=%s reason=%s", child.Status, child.SkipReason)
	}
	if grandchild.Status != model.TaskSkipped {
		t.Errorf("expected grandchild transitively skipped, got %s", grandchild.Status)
	}
}

func TestSoftEdgeSurvivesParentFailure(t *testing.T) {
	g := New()
	defaultSG := newTask("default-sg-delete")
	dependent := newTask("depends-on-default-sg")
	g.AddTask(defaultSG, PriorityResourceDelete)
	g.AddTask(dependent, PriorityResourceDelete)
	g.AddEdge("depends-on-default-sg", "default-sg-delete", true)

	g.Complete("default-sg-delete", model.TaskFailed)

	if dependent.Status != model.TaskPending {
		t.Errorf("expected soft-edge dependent to remain pending after parent failure, got %s", dependent.Status)
	}
}

func TestTieBreakByPriorityThenCreationOrder(t *testing.T) {
	g := New()
	first := newTask("first-delete")
	second := newTask("second-delete")
	sgClear := newTask("sg-rule-clear")
	g.AddTask(first, PriorityResourceDelete)
	g.AddTask(second, PriorityResourceDelete)
	g.AddTask(sgClear, PrioritySharedDependencyClearing)

	ready := g.Ready()
	if len(ready) != 3 {
		t.Fatalf("expected 3 ready tasks, got %d", len(ready))
	}
	if ready[0] != "sg-rule-clear" {
		t.Errorf("expected sg-rule-clear first (higher priority), got %v", ready)
	}
	if ready[1] != "first-delete" || ready[2] != "second-delete" {
		t.Errorf("expected creation order among equal priority, got %v", ready[1:])
	}
}

func TestInstanceSecurityGroupOrdering(t *testing.T) {
	// SG dependency violation scenario: instance delete must precede SG delete.
	g := New()
	deleteInstance := newTask("delete-instance-iX")
	deleteSG := newTask("delete-sg-A")
	g.AddTask(deleteInstance, PriorityResourceDelete)
	g.AddTask(deleteSG, PriorityResourceDelete)
	g.AddEdge("delete-sg-A", "delete-instance-iX", false)

	ready := g.Ready()
	if len(ready) != 1 || ready[0] != "delete-instance-iX" {
		t.Fatalf("expected only instance delete ready first, got %v", ready)
	}

	g.Complete("delete-instance-iX", model.TaskSucceeded)
	ready = g.Ready()
	if len(ready) != 1 || ready[0] != "delete-sg-A" {
		t.Fatalf("expected sg delete ready after instance delete succeeds, got %v", ready)
	}
}

func TestAllTasksReturnsEveryTaskInCreationOrder(t *testing.T) {
	g := New()
	first := newTask("first")
	second := newTask("second")
	g.AddTask(first, PriorityResourceDelete)
	g.AddTask(second, PriorityResourceDelete)

	// A delete-expansion child attached after planning, as ExpandDeletes does.
	child := newTask("child-of-first")
	g.AddTask(child, PriorityResourceDelete)
	g.AddEdge(child.ID, first.ID, true)

	all := g.AllTasks()
	if len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(all))
	}
	if all[0].ID != "first" || all[1].ID != "second" || all[2].ID != "child-of-first" {
		t.Fatalf("expected creation order [first second child-of-first], got %v", []string{all[0].ID, all[1].ID, all[2].ID})
	}
}
