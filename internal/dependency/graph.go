// Package dependency implements the DependencyGraph: a directed acyclic
// graph over Tasks that tracks readiness, propagates failure as skips to
// dependents, and breaks ties among ready tasks by priority and creation
// order.
package dependency

import (
	"sort"
	"sync"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// Priority orders ready tasks when more than one is runnable. Higher values
// run first.
type Priority int

const (
	PriorityResourceCreate          Priority = 0
	PriorityResourceDelete          Priority = 1
	PrioritySharedDependencyClearing Priority = 2 // e.g. security-group rule clearing
)

// node is the graph's bookkeeping for one task.
type node struct {
	task         *model.Task
	dependsOn    map[string]bool
	soft         map[string]bool // subset of dependsOn that does not propagate skip on parent failure
	dependents   []string
	creationSeq  int
	priority     Priority
	resolvedDeps map[string]bool // dependency ids already satisfied (succeeded or skipped)
}

// Graph is the DependencyGraph.
type Graph struct {
	mu       sync.Mutex
	cond     *sync.Cond
	nodes    map[string]*node
	seq      int
	readyBuf []string // queued task ids currently ready but not yet claimed
}

// New constructs an empty Graph.
func New() *Graph {
	g := &Graph{nodes: make(map[string]*node)}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// AddTask registers a task with the graph. Call AddEdge afterward for each
// dependency. priority controls tie-breaking among simultaneously ready
// tasks.
func (g *Graph) AddTask(t *model.Task, priority Priority) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	n := &node{
		task:         t,
		dependsOn:    make(map[string]bool),
		soft:         make(map[string]bool),
		resolvedDeps: make(map[string]bool),
		creationSeq:  g.seq,
		priority:     priority,
	}
	g.nodes[t.ID] = n
	g.maybeMarkReadyLocked(t.ID)
}

// AddEdge records that task dependsOnTaskID must reach a terminal state
// before taskID may run. soft edges do not propagate skip when the
// dependency fails, and a failed soft dependency counts as satisfied (used
// for the default security group, which is expected to survive deletion of
// its dependents).
func (g *Graph) AddEdge(taskID, dependsOnTaskID string, soft bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[taskID]
	if !ok {
		return
	}
	n.dependsOn[dependsOnTaskID] = true
	if soft {
		n.soft[dependsOnTaskID] = true
	}

	dep, ok := g.nodes[dependsOnTaskID]
	if ok {
		dep.dependents = append(dep.dependents, taskID)
	}

	// Re-evaluate readiness for taskID now that it has a new dependency.
	n.task.Status = model.TaskPending
}

// Ready returns task ids whose dependencies are satisfied and which are
// currently pending, ordered by (priority descending, creation order
// ascending).
func (g *Graph) Ready() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readySnapshotLocked()
}

func (g *Graph) readySnapshotLocked() []string {
	var ready []string
	for id, n := range g.nodes {
		if n.task.Status != model.TaskPending {
			continue
		}
		if g.isSatisfiedLocked(n) {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		ni, nj := g.nodes[ready[i]], g.nodes[ready[j]]
		if ni.priority != nj.priority {
			return ni.priority > nj.priority
		}
		return ni.creationSeq < nj.creationSeq
	})
	return ready
}

func (g *Graph) isSatisfiedLocked(n *node) bool {
	for dep := range n.dependsOn {
		depNode, ok := g.nodes[dep]
		if !ok {
			continue
		}
		if depNode.task.Status == model.TaskFailed && n.soft[dep] {
			continue
		}
		if depNode.task.Status != model.TaskSucceeded && depNode.task.Status != model.TaskSkipped {
			return false
		}
	}
	return true
}

func (g *Graph) maybeMarkReadyLocked(taskID string) {
	// no-op placeholder retained for symmetry with Complete's propagation
	// path; readiness is computed on demand in Ready().
	_ = taskID
}

// Complete marks taskID with the given terminal outcome and propagates
// readiness/skip to its dependents. If the task failed, dependents that
// declared the edge soft are left unaffected; all others are marked
// TaskSkipped with reason "parent-failed".
func (g *Graph) Complete(taskID string, outcome model.TaskStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[taskID]
	if !ok {
		return
	}
	n.task.Status = outcome

	if outcome == model.TaskFailed {
		g.propagateSkipLocked(taskID)
	}

	g.cond.Broadcast()
}

func (g *Graph) propagateSkipLocked(failedID string) {
	for _, depID := range g.nodes[failedID].dependents {
		depNode, ok := g.nodes[depID]
		if !ok {
			continue
		}
		if depNode.soft[failedID] {
			continue
		}
		if depNode.task.Status == model.TaskPending {
			depNode.task.Status = model.TaskSkipped
			depNode.task.SkipReason = "parent-failed"
			g.propagateSkipLocked(depID)
		}
	}
}

// WaitForReady blocks until at least one task is ready or every task has
// reached a terminal state, then returns the current ready snapshot
// (possibly empty, which signals the caller that the graph is drained).
func (g *Graph) WaitForReady() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		ready := g.readySnapshotLocked()
		if len(ready) > 0 {
			return ready
		}
		if g.allTerminalLocked() {
			return nil
		}
		g.cond.Wait()
	}
}

func (g *Graph) allTerminalLocked() bool {
	for _, n := range g.nodes {
		if n.task.Status == model.TaskPending || n.task.Status == model.TaskRunning {
			return false
		}
	}
	return true
}

// Signal wakes any goroutine blocked in WaitForReady; used by the Executor
// after it claims a ready task so other workers re-evaluate readiness.
func (g *Graph) Signal() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cond.Broadcast()
}

// Claim atomically transitions taskID from TaskPending to TaskRunning and
// returns true, or returns false if another worker already claimed it (or
// it is no longer pending) between the caller's WaitForReady snapshot and
// this call — the race WaitForReady's snapshot-then-claim pattern leaves
// open when more than one worker drains the same ready list.
func (g *Graph) Claim(taskID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[taskID]
	if !ok || n.task.Status != model.TaskPending {
		return false
	}
	n.task.Status = model.TaskRunning
	return true
}

// Task returns the task registered under id, if any.
func (g *Graph) Task(id string) (*model.Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.task, true
}

// AllTasks returns every task registered with the graph, including ones
// ExpandDeletes attached after the initial AddTask pass, in creation order.
// Used by the final summary/exit-code computation, which needs every
// task's terminal status rather than just the plan's initial task list.
func (g *Graph) AllTasks() []*model.Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	nodes := make([]*node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].creationSeq < nodes[j].creationSeq })

	tasks := make([]*model.Task, len(nodes))
	for i, n := range nodes {
		tasks[i] = n.task
	}
	return tasks
}
