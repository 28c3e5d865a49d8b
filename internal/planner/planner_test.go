package planner

import (
	"testing"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

func TestIsProductionMarked(t *testing.T) {
	cases := map[string]bool{
		"account01":         false,
		"prod-account":      true,
		"PRODUCTION-west":   true,
		"live-trading":      true,
		"main-billing":      true,
		"master-ledger":     true,
		"sandbox-account02": false,
	}
	for name, want := range cases {
		if got := IsProductionMarked(name); got != want {
			t.Errorf("IsProductionMarked(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestPlanRejectsProductionAccountNonInteractive(t *testing.T) {
	handles := []model.CredentialHandle{{AccountName: "prod-account", Regions: []string{"us-east-1"}}}

	_, err := Plan(handles, Intent{CreateEC2: true, NonInteractive: true})
	if err == nil {
		t.Fatal("expected production confirmation error")
	}
	if _, ok := err.(*ErrProductionConfirmationRequired); !ok {
		t.Errorf("expected *ErrProductionConfirmationRequired, got %T", err)
	}
}

func TestPlanAllowsProductionWithFlag(t *testing.T) {
	handles := []model.CredentialHandle{{AccountName: "prod-account", Regions: []string{"us-east-1"}}}

	plan, err := Plan(handles, Intent{CreateEC2: true, NonInteractive: true, AllowProduction: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Tasks) != 1 {
		t.Errorf("expected 1 task, got %d", len(plan.Tasks))
	}
}

func TestPlanExpandsPerIdentityCreateTasks(t *testing.T) {
	handles := []model.CredentialHandle{
		{AccountName: "account01", Regions: []string{"us-east-1", "us-west-2"}},
	}

	plan, err := Plan(handles, Intent{CreateEC2: true, CreateASG: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2 regions x (createEc2 + createAsg) = 4 tasks
	if len(plan.Tasks) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(plan.Tasks))
	}
}

func TestPlanAbortsWhenExceedingMaxResources(t *testing.T) {
	handles := []model.CredentialHandle{
		{AccountName: "account01", Regions: []string{"us-east-1", "us-west-2", "eu-west-1"}},
	}

	_, err := Plan(handles, Intent{CreateEC2: true, CreateASG: true, MaxResourcesPerSession: 2})
	if err == nil {
		t.Fatal("expected ErrTooManyResources")
	}
	if _, ok := err.(*ErrTooManyResources); !ok {
		t.Errorf("expected *ErrTooManyResources, got %T", err)
	}
}

func TestExpandEC2DeletesOrdersInstanceBeforeSecurityGroup(t *testing.T) {
	handles := []model.CredentialHandle{{AccountName: "account01", Regions: []string{"us-east-1"}}}
	plan, err := Plan(handles, Intent{DeleteServices: []string{"ec2"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	discoveryID := plan.Tasks[0].ID

	refs := []model.ResourceRef{
		{ResourceID: "i-X", ResourceType: "instance"},
		{ResourceID: "sg-A", ResourceType: "security-group", Metadata: map[string]any{
			"attachedInstanceIds": []string{"i-X"},
			"isDefault":           false,
		}},
	}

	tasks := plan.ExpandDeletes(discoveryID, "ec2", handles[0], "us-east-1", refs)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	// The discovery task has finished by the time its children are scheduled.
	plan.Graph.Complete(discoveryID, model.TaskSucceeded)

	ready := plan.Graph.Ready()
	foundInstanceOnly := false
	for _, id := range ready {
		task, _ := plan.Graph.Task(id)
		if task.Kind == model.TaskDeleteSG {
			t.Fatalf("security-group delete should not be ready before instance delete completes")
		}
		if task.Kind == model.TaskDeleteEC2 {
			foundInstanceOnly = true
		}
	}
	if !foundInstanceOnly {
		t.Fatal("expected instance delete task to be ready")
	}
}

func TestExpandS3DeletesCanonicalOrder(t *testing.T) {
	handles := []model.CredentialHandle{{AccountName: "account01", Regions: []string{"us-east-1"}}}
	plan, err := Plan(handles, Intent{DeleteServices: []string{"s3"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	discoveryID := plan.Tasks[0].ID

	refs := []model.ResourceRef{{ResourceID: "bucket-a", ResourceType: "bucket"}}
	tasks := plan.ExpandDeletes(discoveryID, "s3", handles[0], "us-east-1", refs)
	if len(tasks) != 4 {
		t.Fatalf("expected 4 tasks (remove-repl, disable-versioning, empty, delete), got %d", len(tasks))
	}
	// The discovery task has finished by the time its children are scheduled.
	plan.Graph.Complete(discoveryID, model.TaskSucceeded)

	ready := plan.Graph.Ready()
	for _, id := range ready {
		task, _ := plan.Graph.Task(id)
		if task.Kind != model.TaskRemoveReplication {
			t.Errorf("expected only remove-replication ready first, found %s ready too", task.Kind)
		}
	}
}
