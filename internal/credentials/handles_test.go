package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

func TestBuildRootHandlesExpandsRegions(t *testing.T) {
	resolver := NewResolver(AccountsFile{
		Accounts: map[string]AccountConfig{
			"account01": {AccountID: "111111111111", AccessKey: "AKIA1", SecretKey: "s1"},
		},
	})

	handles, err := BuildHandles([]string{"account01"}, resolver, nil, model.CredentialKindRoot, RegionChoice{
		Expression: "all",
		Catalogue:  []string{"us-east-1", "us-west-2"},
	})
	if err != nil {
		t.Fatalf("BuildHandles: %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("expected 1 handle, got %d", len(handles))
	}
	if len(handles[0].Regions) != 2 {
		t.Errorf("expected 2 regions, got %v", handles[0].Regions)
	}
}

func TestBuildIamHandlesOnePerUser(t *testing.T) {
	iam := &IamFile{
		Accounts: map[string]IamFileAccount{
			"account01": {
				AccountID: "111111111111",
				Users: []IamFileUser{
					{Username: "account01_clouduser01", Region: "us-east-1", AccessKeyID: "AKIA1", SecretAccessKey: "SECRET1"},
					{Username: "account01_clouduser02", Region: "us-east-1", AccessKeyID: "AKIA2", SecretAccessKey: "SECRET2"},
				},
			},
		},
	}

	handles, err := BuildHandles([]string{"account01"}, nil, iam, model.CredentialKindIAM, RegionChoice{})
	if err != nil {
		t.Fatalf("BuildHandles: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("expected 2 handles (one per user), got %d", len(handles))
	}
	if handles[0].Username == "" {
		t.Error("expected IAM handle to carry a username")
	}
}

func TestValidateAllFiltersMismatchAndUnreachable(t *testing.T) {
	handles := []model.CredentialHandle{
		{AccountName: "ok-account", AccountID: "111111111111"},
		{AccountName: "mismatch-account", AccountID: "222222222222"},
		{AccountName: "unreachable-account", AccountID: "333333333333"},
	}

	lookup := func(ctx context.Context, h model.CredentialHandle) (string, error) {
		switch h.AccountName {
		case "ok-account":
			return "111111111111", nil
		case "mismatch-account":
			return "999999999999", nil
		default:
			return "", errors.New("network unreachable")
		}
	}

	valid, outcomes, err := ValidateAll(context.Background(), handles, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(valid) != 1 || valid[0].AccountName != "ok-account" {
		t.Errorf("expected only ok-account to validate, got %v", valid)
	}
	if outcomes["mismatch-account"] != ValidateMismatch {
		t.Errorf("expected mismatch outcome, got %v", outcomes["mismatch-account"])
	}
	if outcomes["unreachable-account"] != ValidateUnreachable {
		t.Errorf("expected unreachable outcome, got %v", outcomes["unreachable-account"])
	}
}

func TestValidateAllAllFailingReturnsNoValidCredentials(t *testing.T) {
	handles := []model.CredentialHandle{
		{AccountName: "bad-account", AccountID: "111111111111"},
	}
	lookup := func(ctx context.Context, h model.CredentialHandle) (string, error) {
		return "", errors.New("denied")
	}

	_, _, err := ValidateAll(context.Background(), handles, lookup)
	if err == nil {
		t.Fatal("expected ErrNoValidCredentials")
	}
	if _, ok := err.(*model.ErrNoValidCredentials); !ok {
		t.Errorf("expected *model.ErrNoValidCredentials, got %T", err)
	}
}
