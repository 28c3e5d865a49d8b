// Package planner implements the TaskPlanner: expanding validated
// credential handles and user intent into a dependency-ordered task list,
// plus the pre-flight safety checks that gate enqueueing.
package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/dependency"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// productionMarkers are account-name substrings that require explicit
// confirmation before the planner enqueues any destructive task.
var productionMarkers = []string{"prod", "production", "live", "main", "master"}

// IsProductionMarked reports whether accountName contains a marker that
// requires explicit confirmation before destructive actions proceed.
func IsProductionMarked(accountName string) bool {
	lower := strings.ToLower(accountName)
	for _, marker := range productionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Intent describes what the user asked the engine to do.
type Intent struct {
	CreateEC2         bool
	CreateASG         bool
	DeleteServices    []string // service names to run discovery+delete for, e.g. "ec2", "s3", "eks"
	AllowProduction   bool
	NonInteractive    bool
	MaxResourcesPerSession int
	InstanceType      string // pre-selected instance type; empty means SpotAdvisor chooses
}

// ErrProductionConfirmationRequired is returned when a handle's account
// name carries a production marker and neither AllowProduction nor
// interactive confirmation is available.
type ErrProductionConfirmationRequired struct {
	AccountName string
}

func (e *ErrProductionConfirmationRequired) Error() string {
	return fmt.Sprintf("account %q appears to be a production account; pass --allow-production or confirm interactively", e.AccountName)
}

// ErrTooManyResources is returned when the expected resource count for a
// session exceeds Intent.MaxResourcesPerSession.
type ErrTooManyResources struct {
	Expected, Max int
}

func (e *ErrTooManyResources) Error() string {
	return fmt.Sprintf("expected resource count %d exceeds maxResourcesPerSession %d", e.Expected, e.Max)
}

// Plan is the planner's output: a flat task list plus the dependency graph
// already wired with edges.
type Plan struct {
	Tasks []*model.Task
	Graph *dependency.Graph
}

// Plan expands handles and intent into a Plan. It performs the
// production-account safety check before emitting any task.
func Plan(handles []model.CredentialHandle, intent Intent) (*Plan, error) {
	for _, h := range handles {
		if IsProductionMarked(h.AccountName) && !intent.AllowProduction {
			if intent.NonInteractive {
				return nil, &ErrProductionConfirmationRequired{AccountName: h.AccountName}
			}
			// Interactive mode defers the actual confirmation prompt to the
			// CLI layer; the planner only enforces that AllowProduction (or
			// a prior interactive confirmation recorded onto intent) gates
			// enqueueing in non-interactive runs.
		}
	}

	p := &Plan{Graph: dependency.New()}

	for _, h := range handles {
		for _, region := range h.Regions {
			if intent.CreateEC2 {
				p.addCreateTask(h, region, model.TaskCreateEC2, intent)
			}
			if intent.CreateASG {
				p.addCreateTask(h, region, model.TaskCreateASG, intent)
			}
			for _, svc := range intent.DeleteServices {
				p.addDiscoveryTask(h, region, svc)
			}
		}
	}

	expected := len(p.Tasks)
	if intent.MaxResourcesPerSession > 0 && expected > intent.MaxResourcesPerSession {
		return nil, &ErrTooManyResources{Expected: expected, Max: intent.MaxResourcesPerSession}
	}

	return p, nil
}

func (p *Plan) addTask(t *model.Task, priority dependency.Priority) *model.Task {
	t.ID = uuid.NewString()
	t.Status = model.TaskPending
	t.CreatedAt = time.Now()
	p.Tasks = append(p.Tasks, t)
	p.Graph.AddTask(t, priority)
	return t
}

func (p *Plan) addCreateTask(h model.CredentialHandle, region string, kind model.TaskKind, intent Intent) *model.Task {
	return p.addTask(&model.Task{
		Kind:       kind,
		Credential: h,
		Region:     region,
		Payload:    map[string]any{"instanceType": intent.InstanceType},
	}, dependency.PriorityResourceCreate)
}

// addDiscoveryTask emits the discovery task for (handle, region, service);
// its delete-task children are expanded later, once discovery completes,
// by ExpandDeletes.
func (p *Plan) addDiscoveryTask(h model.CredentialHandle, region, service string) *model.Task {
	return p.addTask(&model.Task{
		Kind:       model.TaskDiscoverResources,
		Credential: h,
		Region:     region,
		Payload:    map[string]any{"service": service},
	}, dependency.PriorityResourceDelete)
}
