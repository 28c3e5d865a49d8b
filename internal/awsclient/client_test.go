package awsclient

import (
	"context"
	"testing"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

func TestNewBuildsClientForStaticCredentials(t *testing.T) {
	h := model.CredentialHandle{
		AccountName: "account01",
		AccessKey:   "AKIAEXAMPLE",
		SecretKey:   "secretexample",
	}
	c, err := New(context.Background(), h, "us-east-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Region() != "us-east-1" {
		t.Errorf("expected region us-east-1, got %s", c.Region())
	}
	if c.EC2 == nil || c.S3 == nil || c.EKS == nil || c.IAM == nil || c.STS == nil {
		t.Error("expected all bundled service clients to be non-nil")
	}
}

func TestNewFallsBackToDefaultChainWithoutExplicitKeys(t *testing.T) {
	h := model.CredentialHandle{AccountName: "account01"}
	c, err := New(context.Background(), h, "us-west-2")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Region() != "us-west-2" {
		t.Errorf("expected region us-west-2, got %s", c.Region())
	}
}
