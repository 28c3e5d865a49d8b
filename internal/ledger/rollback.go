package ledger

import (
	"sort"

	"github.com/google/uuid"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// rollbackPriority orders resource types so an ASG is torn down before the
// launch template it references, and the launch template before the
// instances it spawned, mirroring the creation order in reverse.
func rollbackPriority(resourceType string) int {
	switch resourceType {
	case "asg":
		return 0
	case "launch-template":
		return 1
	case "ec2-instance":
		return 2
	default:
		return 3
	}
}

// BuildRollbackTasks replays a session's ledger in reverse chronological
// order and emits one deletion Task per resource that was created and not
// already retired. Entries are regrouped by rollbackPriority so dependent
// resources are deleted before what they depend on, even though within a
// priority band the original reverse-chronological order is preserved.
// Rollback is best-effort: a task here failing does not prevent the
// remaining tasks from being attempted.
func BuildRollbackTasks(header Header, entries []Entry) []*model.Task {
	created := map[string]model.ResourceRef{}
	retired := map[string]bool{}

	for _, e := range entries {
		key := refKey(e.Ref)
		switch e.Event {
		case EventCreated:
			created[key] = e.Ref
		case EventRetired:
			retired[key] = true
		}
	}

	var pending []model.ResourceRef
	for key, ref := range created {
		if !retired[key] {
			pending = append(pending, ref)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		pi, pj := rollbackPriority(pending[i].ResourceType), rollbackPriority(pending[j].ResourceType)
		if pi != pj {
			return pi < pj
		}
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})

	tasks := make([]*model.Task, 0, len(pending))
	for _, ref := range pending {
		tasks = append(tasks, &model.Task{
			ID:     uuid.NewString(),
			Kind:   deleteKindFor(ref.ResourceType),
			Region: ref.Region,
			Credential: model.CredentialHandle{
				AccountName: ref.AccountName,
				AccountID:   ref.AccountID,
			},
			Payload: map[string]any{"resourceId": ref.ResourceID, "rollbackOf": header.SessionID},
			Status:  model.TaskPending,
		})
	}
	return tasks
}

func refKey(ref model.ResourceRef) string {
	return ref.ResourceType + "|" + ref.ResourceID + "|" + ref.Region + "|" + ref.AccountID
}

func deleteKindFor(resourceType string) model.TaskKind {
	switch resourceType {
	case "asg":
		return model.TaskDeleteASG
	case "launch-template":
		return model.TaskDeleteLaunchTemplate
	case "ec2-instance":
		return model.TaskDeleteEC2
	case "security-group":
		return model.TaskDeleteSG
	case "s3-bucket":
		return model.TaskDeleteBucket
	case "eks-autoscaler":
		return model.TaskDeleteEKSAutoscaler
	case "iam-user":
		return model.TaskDeleteIAMUser
	case "iam-group":
		return model.TaskDeleteIAMGroup
	case "eventbridge-rule":
		return model.TaskDeleteRule
	case "eventbridge-bus":
		return model.TaskDeleteEventBus
	case "redshift-cluster":
		return model.TaskDeleteRedshiftCluster
	case "redshift-subnet-group":
		return model.TaskDeleteSubnetGroup
	case "redshift-parameter-group":
		return model.TaskDeleteParameterGroup
	case "state-machine":
		return model.TaskDeleteStateMachine
	case "sagemaker-notebook":
		return model.TaskDeleteNotebook
	case "sagemaker-endpoint":
		return model.TaskDeleteSageMakerEndpoint
	case "mq-broker":
		return model.TaskDeleteMQBroker
	case "fsx-filesystem":
		return model.TaskDeleteFSx
	case "storage-gateway":
		return model.TaskDeleteStorageGateway
	default:
		return model.TaskDeleteEC2
	}
}
