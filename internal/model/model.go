// Package model holds the data types shared across the orchestration engine:
// credential handles, tasks, resource references, spot analysis results, and
// the ledger entries that tie them together.
package model

import "time"

// CredentialKind distinguishes root account credentials from IAM-user
// credentials loaded from an IAM credentials file.
type CredentialKind string

const (
	CredentialKindRoot CredentialKind = "root"
	CredentialKindIAM  CredentialKind = "iam"
)

// CredentialHandle is a validated identity plus the regions it operates in.
// It is created when the user selects an account (or an IAM credentials file
// line), validated once against STS GetCallerIdentity, and discarded at
// session end — it is never persisted unencrypted beyond the session.
type CredentialHandle struct {
	AccountName string
	AccountID   string
	Email       string
	AccessKey   string
	SecretKey   string
	Kind        CredentialKind
	Username    string // only set for CredentialKindIAM
	Regions     []string
}

// DisplayName returns a human-readable identifier for logs and reports.
func (h CredentialHandle) DisplayName() string {
	if h.Kind == CredentialKindIAM && h.Username != "" {
		return h.AccountName + "/" + h.Username
	}
	return h.AccountName
}

// TaskKind enumerates the unit-of-work kinds the planner can emit.
type TaskKind string

const (
	TaskCreateEC2              TaskKind = "createEc2"
	TaskCreateASG              TaskKind = "createAsg"
	TaskDiscoverResources      TaskKind = "discoverResources"
	TaskDeleteEC2              TaskKind = "deleteEc2"
	TaskDeleteSG               TaskKind = "deleteSg"
	TaskDeleteBucket           TaskKind = "deleteBucket"
	TaskEmptyBucket            TaskKind = "emptyBucket"
	TaskDisableVersioning      TaskKind = "disableVersioning"
	TaskRemoveReplication      TaskKind = "removeReplication"
	TaskDeleteEKSAutoscaler    TaskKind = "deleteEksAutoscaler"
	TaskConfigureEKSAuth       TaskKind = "configureEksAuth"
	TaskDeleteIAMUser          TaskKind = "deleteIamUser"
	TaskDeleteIAMGroup         TaskKind = "deleteIamGroup"
	TaskDeleteRuleTargets      TaskKind = "deleteRuleTargets"
	TaskDeleteRule             TaskKind = "deleteRule"
	TaskDeleteEventBus         TaskKind = "deleteEventBus"
	TaskDeleteRedshiftCluster  TaskKind = "deleteRedshiftCluster"
	TaskDeleteSubnetGroup      TaskKind = "deleteSubnetGroup"
	TaskDeleteParameterGroup   TaskKind = "deleteParameterGroup"
	TaskDeleteStateMachine     TaskKind = "deleteStateMachine"
	TaskStopNotebook           TaskKind = "stopNotebook"
	TaskDeleteNotebook         TaskKind = "deleteNotebook"
	TaskDeleteSageMakerEndpoint TaskKind = "deleteSageMakerEndpoint"
	TaskDeleteMQBroker         TaskKind = "deleteMqBroker"
	TaskDeleteFSx              TaskKind = "deleteFsx"
	TaskDeleteStorageGateway   TaskKind = "deleteStorageGateway"
	TaskDeleteASG              TaskKind = "deleteAsg"
	TaskDeleteLaunchTemplate   TaskKind = "deleteLaunchTemplate"
)

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// Task is a unit of work: one call to a worker. A task may transition to
// TaskRunning only when every task named in DependsOn is TaskSucceeded or
// TaskSkipped, or is TaskFailed and listed in SoftDeps.
type Task struct {
	ID         string
	Kind       TaskKind
	Credential CredentialHandle
	Region     string
	Payload    map[string]any
	DependsOn  []string
	SoftDeps   map[string]bool // DependsOn entries that may remain unsatisfied without propagating skip
	Attempts   int
	Status     TaskStatus
	SkipReason string
	Err        error
	CreatedAt  time.Time
}

// ResourceRef records a resource the engine created or is tracking for
// deletion. Exactly one ResourceRef is appended to the ledger before a
// created resource's success is acknowledged to the caller; a deleted
// resource's matching ResourceRef is marked Retired with a deletion
// timestamp.
type ResourceRef struct {
	ResourceID   string
	ResourceType string
	AccountName  string
	AccountID    string
	Region       string
	CreatedAt    time.Time
	SessionID    string
	Metadata     map[string]any
	Retired      bool
	RetiredAt    time.Time
}

// DataQuality records whether a SpotAnalysis component's source data was
// available.
type DataQuality struct {
	Advisor   string // "ok" | "missing"
	Placement string // "ok" | "missing"
	Price     string // "ok" | "missing"
}

// SpotAnalysis is a ranked candidate instance type with interruption,
// placement, and price data folded into a single confidence score.
type SpotAnalysis struct {
	InstanceType      string
	CurrentPrice      float64
	AvgPrice          float64
	VolatilityPct     float64
	InterruptionBand  int // 0..5, 5 = unknown
	PlacementScore    float64
	Confidence        float64
	VCPUs             int
	MemoryGB          float64
	DataQuality       DataQuality
	Degraded          bool
}

// AwsAuthMapping is the set of principals granted cluster-admin on a freshly
// provisioned EKS cluster, written to the aws-auth ConfigMap.
type AwsAuthMapping struct {
	ClusterName string
	Entries     []AuthMappingEntry
}

// AuthMappingEntry is one principal/group binding within an AwsAuthMapping.
type AuthMappingEntry struct {
	PrincipalArn string
	Username     string
	Groups       []string
}
