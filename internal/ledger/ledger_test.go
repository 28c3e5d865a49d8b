package ledger

import (
	"testing"
	"time"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

func TestNewWritesHeaderAndCreatedEntryIsDurable(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "sess-1", "clouduser01", false, map[string]any{"workers": 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ref := model.ResourceRef{ResourceID: "i-abc", ResourceType: "ec2-instance", AccountName: "account01", Region: "us-east-1", CreatedAt: time.Now()}
	if err := l.Created(ref); err != nil {
		t.Fatalf("Created: %v", err)
	}

	reopened, err := Open(PathFor(dir, "sess-1"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	header, entries := reopened.Snapshot()
	if header.SessionID != "sess-1" || header.User != "clouduser01" {
		t.Errorf("unexpected header %+v", header)
	}
	if len(entries) != 1 || entries[0].Event != EventCreated || entries[0].Ref.ResourceID != "i-abc" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestRetiredMarksRefAndAlreadyAbsent(t *testing.T) {
	dir := t.TempDir()
	l, _ := New(dir, "sess-2", "clouduser02", true, nil)
	ref := model.ResourceRef{ResourceID: "bucket-x", ResourceType: "s3-bucket"}
	if err := l.Retired(ref, true); err != nil {
		t.Fatalf("Retired: %v", err)
	}
	_, entries := l.Snapshot()
	if len(entries) != 1 || !entries[0].AlreadyAbsent || !entries[0].Ref.Retired {
		t.Errorf("expected retired/already-absent entry, got %+v", entries)
	}
}

func TestBuildRollbackTasksSkipsRetiredAndOrdersByDependency(t *testing.T) {
	now := time.Now()
	header := Header{SessionID: "sess-3"}
	entries := []Entry{
		{Event: EventCreated, Ref: model.ResourceRef{ResourceID: "i-1", ResourceType: "ec2-instance", CreatedAt: now}},
		{Event: EventCreated, Ref: model.ResourceRef{ResourceID: "asg-1", ResourceType: "asg", CreatedAt: now.Add(time.Second)}},
		{Event: EventCreated, Ref: model.ResourceRef{ResourceID: "bucket-1", ResourceType: "s3-bucket", CreatedAt: now.Add(2 * time.Second)}},
		{Event: EventRetired, Ref: model.ResourceRef{ResourceID: "bucket-1", ResourceType: "s3-bucket"}},
	}

	tasks := BuildRollbackTasks(header, entries)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 pending rollback tasks (bucket already retired), got %d: %+v", len(tasks), tasks)
	}
	if tasks[0].Kind != model.TaskDeleteASG || tasks[0].Payload["resourceId"] != "asg-1" {
		t.Errorf("expected ASG rollback ordered before instance, got %+v", tasks[0])
	}
}
