package cmd

import (
	"testing"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/credentials"
)

func testResolver(t *testing.T) *credentials.Resolver {
	t.Helper()
	return credentials.NewResolver(credentials.AccountsFile{
		Accounts: map[string]credentials.AccountConfig{
			"root1": {AccountID: "111111111111", AccessKey: "AKIA1", SecretKey: "secret1"},
			"root2": {AccountID: "222222222222", AccessKey: "AKIA2", SecretKey: "secret2"},
			"root3": {AccountID: "333333333333", AccessKey: "AKIA3", SecretKey: "secret3"},
		},
		UserSettings: credentials.UserSettings{
			UserRegions: []string{"us-east-1", "us-west-2"},
		},
	})
}

func TestAccountSelection(t *testing.T) {
	resolver := testResolver(t)

	tests := []struct {
		name    string
		input   []string
		want    string
		wantErr bool
	}{
		{name: "empty means all", input: nil, want: ""},
		{name: "single known account", input: []string{"root2"}, want: "2"},
		{name: "unknown account errors", input: []string{"nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := accountSelection(resolver, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegionChoice(t *testing.T) {
	resolver := testResolver(t)

	t.Run("explicit regions become the catalogue", func(t *testing.T) {
		choice, err := regionChoice(resolver, []string{"eu-west-1", "ap-south-1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resolved, err := choice.Resolve()
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if len(resolved) != 2 || resolved[0] != "eu-west-1" || resolved[1] != "ap-south-1" {
			t.Fatalf("got %v", resolved)
		}
	})

	t.Run("falls back to user_settings.user_regions", func(t *testing.T) {
		choice, err := regionChoice(resolver, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resolved, err := choice.Resolve()
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if len(resolved) != 2 || resolved[0] != "us-east-1" {
			t.Fatalf("got %v", resolved)
		}
	})

	t.Run("no regions anywhere errors", func(t *testing.T) {
		empty := credentials.NewResolver(credentials.AccountsFile{
			Accounts: map[string]credentials.AccountConfig{"a": {AccessKey: "AKIA", SecretKey: "s"}},
		})
		if _, err := regionChoice(empty, nil); err == nil {
			t.Fatalf("expected error, got nil")
		}
	})
}
