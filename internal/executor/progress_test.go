package executor

import (
	"bytes"
	"testing"
	"time"
)

func TestDisplayKind(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"deleteEc2", "Delete Ec2"},
		{"createASG", "Create ASG"},
		{"rollback", "Rollback"},
	}
	for _, tt := range tests {
		if got := displayKind(tt.kind); got != tt.want {
			t.Errorf("displayKind(%q) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestProgressWriterTaskStartAndDone(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressWriter(&buf, false)

	p.TaskStart("12345678-abcd", "deleteEc2", "account01", "us-east-1")
	p.TaskDone("12345678-abcd", "succeeded", 1, 150*time.Millisecond)

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("account01/us-east-1")) {
		t.Errorf("expected account/region in output, got %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("succeeded")) {
		t.Errorf("expected outcome in output, got %q", out)
	}
}
