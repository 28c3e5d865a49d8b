package planner

import (
	"time"

	"github.com/google/uuid"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/dependency"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// ExpandDeletes converts a discovery task's resulting ResourceRefs into
// delete tasks with the dependency edges named in the specification,
// attaching them to the plan's existing graph as children of the discovery
// task that found them.
func (p *Plan) ExpandDeletes(discoveryTaskID string, service string, h model.CredentialHandle, region string, refs []model.ResourceRef) []*model.Task {
	switch service {
	case "ec2":
		return p.expandEC2Deletes(discoveryTaskID, h, region, refs)
	case "s3":
		return p.expandS3Deletes(discoveryTaskID, h, region, refs)
	case "eventbridge":
		return p.expandEventBridgeDeletes(discoveryTaskID, h, region, refs)
	case "redshift":
		return p.expandRedshiftDeletes(discoveryTaskID, h, region, refs)
	case "sagemaker":
		return p.expandSageMakerDeletes(discoveryTaskID, h, region, refs)
	default:
		return p.expandFlatDeletes(discoveryTaskID, h, region, refs, defaultDeleteKind(service))
	}
}

func defaultDeleteKind(service string) model.TaskKind {
	switch service {
	case "iam":
		return model.TaskDeleteIAMUser
	case "sfn":
		return model.TaskDeleteStateMachine
	case "mq":
		return model.TaskDeleteMQBroker
	case "fsx":
		return model.TaskDeleteFSx
	case "storagegateway":
		return model.TaskDeleteStorageGateway
	case "eks":
		return model.TaskDeleteEKSAutoscaler
	default:
		return model.TaskDeleteEC2
	}
}

func (p *Plan) newChildTask(discoveryTaskID string, kind model.TaskKind, h model.CredentialHandle, region string, ref model.ResourceRef, priority dependency.Priority) *model.Task {
	t := &model.Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Credential: h,
		Region:     region,
		Payload:    map[string]any{"resourceRef": ref},
		Status:     model.TaskPending,
		CreatedAt:  time.Now(),
	}
	p.Tasks = append(p.Tasks, t)
	p.Graph.AddTask(t, priority)
	p.Graph.AddEdge(t.ID, discoveryTaskID, false)
	return t
}

// expandEC2Deletes orders instance deletes before the security groups they
// reference, per the dependency rule "delete-instance precedes
// delete-security-group". The default security group's delete is a soft
// dependency: it is expected to survive and must not propagate skip.
func (p *Plan) expandEC2Deletes(discoveryTaskID string, h model.CredentialHandle, region string, refs []model.ResourceRef) []*model.Task {
	var instances, groups []*model.Task
	instanceByID := map[string]*model.Task{}

	for _, ref := range refs {
		switch ref.ResourceType {
		case "instance":
			t := p.newChildTask(discoveryTaskID, model.TaskDeleteEC2, h, region, ref, dependency.PriorityResourceDelete)
			instances = append(instances, t)
			instanceByID[ref.ResourceID] = t
		case "security-group":
			t := p.newChildTask(discoveryTaskID, model.TaskDeleteSG, h, region, ref, dependency.PriorityResourceDelete)
			groups = append(groups, t)
		}
	}

	for _, sgTask := range groups {
		ref, _ := sgTask.Payload["resourceRef"].(model.ResourceRef)
		attachedInstanceIDs, _ := ref.Metadata["attachedInstanceIds"].([]string)
		isDefault, _ := ref.Metadata["isDefault"].(bool)

		for _, instanceID := range attachedInstanceIDs {
			if instanceTask, ok := instanceByID[instanceID]; ok {
				p.Graph.AddEdge(sgTask.ID, instanceTask.ID, isDefault)
			}
		}
	}

	return append(instances, groups...)
}

// expandS3Deletes implements the canonical order from the Open Questions
// resolution: remove-replication, then disable-versioning, then
// delete-all-objects, then delete-bucket.
func (p *Plan) expandS3Deletes(discoveryTaskID string, h model.CredentialHandle, region string, refs []model.ResourceRef) []*model.Task {
	var out []*model.Task
	for _, ref := range refs {
		if ref.ResourceType != "bucket" {
			continue
		}
		removeRepl := p.newChildTask(discoveryTaskID, model.TaskRemoveReplication, h, region, ref, dependency.PrioritySharedDependencyClearing)
		disableVersioning := p.newChildTask(discoveryTaskID, model.TaskDisableVersioning, h, region, ref, dependency.PrioritySharedDependencyClearing)
		emptyBucket := p.newChildTask(discoveryTaskID, model.TaskEmptyBucket, h, region, ref, dependency.PriorityResourceDelete)
		deleteBucket := p.newChildTask(discoveryTaskID, model.TaskDeleteBucket, h, region, ref, dependency.PriorityResourceDelete)

		p.Graph.AddEdge(disableVersioning.ID, removeRepl.ID, false)
		p.Graph.AddEdge(emptyBucket.ID, disableVersioning.ID, false)
		p.Graph.AddEdge(deleteBucket.ID, emptyBucket.ID, false)

		out = append(out, removeRepl, disableVersioning, emptyBucket, deleteBucket)
	}
	return out
}

// expandEventBridgeDeletes implements: delete-rule-targets precedes
// delete-rule precedes delete-event-bus (for non-default buses).
func (p *Plan) expandEventBridgeDeletes(discoveryTaskID string, h model.CredentialHandle, region string, refs []model.ResourceRef) []*model.Task {
	var out []*model.Task
	ruleTasks := map[string]*model.Task{}
	busTasks := map[string]*model.Task{}

	for _, ref := range refs {
		switch ref.ResourceType {
		case "rule-target":
			ruleName, _ := ref.Metadata["ruleName"].(string)
			t := p.newChildTask(discoveryTaskID, model.TaskDeleteRuleTargets, h, region, ref, dependency.PrioritySharedDependencyClearing)
			out = append(out, t)
			if rt, ok := ruleTasks[ruleName]; ok {
				p.Graph.AddEdge(rt.ID, t.ID, false)
			} else {
				ruleTasks[ruleName+"__pendingTargets"] = t
			}
		case "rule":
			t := p.newChildTask(discoveryTaskID, model.TaskDeleteRule, h, region, ref, dependency.PriorityResourceDelete)
			ruleTasks[ref.ResourceID] = t
			if pending, ok := ruleTasks[ref.ResourceID+"__pendingTargets"]; ok {
				p.Graph.AddEdge(t.ID, pending.ID, false)
			}
			out = append(out, t)
		case "event-bus":
			isDefault, _ := ref.Metadata["isDefault"].(bool)
			if isDefault {
				continue // default bus is never deleted
			}
			t := p.newChildTask(discoveryTaskID, model.TaskDeleteEventBus, h, region, ref, dependency.PriorityResourceDelete)
			busTasks[ref.ResourceID] = t
			out = append(out, t)
		}
	}

	for ruleName, busName := range busOwnership(refs) {
		ruleTask, okR := ruleTasks[ruleName]
		busTask, okB := busTasks[busName]
		if okR && okB {
			p.Graph.AddEdge(busTask.ID, ruleTask.ID, false)
		}
	}

	return out
}

func busOwnership(refs []model.ResourceRef) map[string]string {
	owners := map[string]string{}
	for _, ref := range refs {
		if ref.ResourceType != "rule" {
			continue
		}
		if busName, ok := ref.Metadata["eventBusName"].(string); ok {
			owners[ref.ResourceID] = busName
		}
	}
	return owners
}

// expandRedshiftDeletes implements: delete-cluster precedes
// delete-subnet-group and delete-parameter-group.
func (p *Plan) expandRedshiftDeletes(discoveryTaskID string, h model.CredentialHandle, region string, refs []model.ResourceRef) []*model.Task {
	var clusterTasks []*model.Task
	var out []*model.Task
	for _, ref := range refs {
		if ref.ResourceType == "cluster" {
			t := p.newChildTask(discoveryTaskID, model.TaskDeleteRedshiftCluster, h, region, ref, dependency.PriorityResourceDelete)
			clusterTasks = append(clusterTasks, t)
			out = append(out, t)
		}
	}
	for _, ref := range refs {
		var kind model.TaskKind
		switch ref.ResourceType {
		case "subnet-group":
			kind = model.TaskDeleteSubnetGroup
		case "parameter-group":
			kind = model.TaskDeleteParameterGroup
		default:
			continue
		}
		t := p.newChildTask(discoveryTaskID, kind, h, region, ref, dependency.PriorityResourceDelete)
		for _, ct := range clusterTasks {
			p.Graph.AddEdge(t.ID, ct.ID, false)
		}
		out = append(out, t)
	}
	return out
}

// expandSageMakerDeletes implements: stop-notebook precedes delete-notebook.
func (p *Plan) expandSageMakerDeletes(discoveryTaskID string, h model.CredentialHandle, region string, refs []model.ResourceRef) []*model.Task {
	var out []*model.Task
	for _, ref := range refs {
		switch ref.ResourceType {
		case "notebook-instance":
			stop := p.newChildTask(discoveryTaskID, model.TaskStopNotebook, h, region, ref, dependency.PrioritySharedDependencyClearing)
			del := p.newChildTask(discoveryTaskID, model.TaskDeleteNotebook, h, region, ref, dependency.PriorityResourceDelete)
			p.Graph.AddEdge(del.ID, stop.ID, false)
			out = append(out, stop, del)
		case "endpoint":
			t := p.newChildTask(discoveryTaskID, model.TaskDeleteSageMakerEndpoint, h, region, ref, dependency.PriorityResourceDelete)
			out = append(out, t)
		}
	}
	return out
}

func (p *Plan) expandFlatDeletes(discoveryTaskID string, h model.CredentialHandle, region string, refs []model.ResourceRef, kind model.TaskKind) []*model.Task {
	var out []*model.Task
	for _, ref := range refs {
		out = append(out, p.newChildTask(discoveryTaskID, kind, h, region, ref, dependency.PriorityResourceDelete))
	}
	return out
}
