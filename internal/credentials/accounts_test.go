package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func TestLoadAccountsFiltersPlaceholders(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "accounts.json", `{
		"accounts": {
			"account01": {"account_id": "111111111111", "email": "a@example.com", "access_key": "AKIAREAL", "secret_key": "s1"},
			"account02": {"account_id": "222222222222", "email": "b@example.com", "access_key": "ADD_YOUR_KEY_HERE", "secret_key": "s2"}
		},
		"user_settings": {"user_regions": ["us-east-1"], "users_per_account": 2, "allowed_instance_types": ["t3.micro"], "password": "x"}
	}`)

	resolver, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}

	names := resolver.Accounts()
	if len(names) != 1 || names[0] != "account01" {
		t.Errorf("expected only account01 to survive placeholder filtering, got %v", names)
	}
}

func TestLoadAccountsEmptyFileIsConfigError(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "accounts.json", "")

	_, err := LoadAccounts(path)
	if err == nil {
		t.Fatal("expected error for empty accounts file")
	}
	if _, ok := err.(*model.ErrInvalidConfiguration); !ok {
		t.Errorf("expected *model.ErrInvalidConfiguration, got %T", err)
	}
}

func TestLoadAccountsNoRealAccountsIsConfigError(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "accounts.json", `{
		"accounts": {"account01": {"account_id": "1", "access_key": "ADD_KEY"}}
	}`)

	_, err := LoadAccounts(path)
	if err == nil {
		t.Fatal("expected error when every account is a placeholder")
	}
}

func TestSelectAccountsDelegatesToParseSelection(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "accounts.json", `{
		"accounts": {
			"account01": {"account_id": "1", "access_key": "AKIAREAL1"},
			"account02": {"account_id": "2", "access_key": "AKIAREAL2"},
			"account03": {"account_id": "3", "access_key": "AKIAREAL3"}
		}
	}`)
	resolver, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}

	selected, err := resolver.SelectAccounts("1,3")
	if err != nil {
		t.Fatalf("SelectAccounts: %v", err)
	}
	if len(selected) != 2 || selected[0] != "account01" || selected[1] != "account03" {
		t.Errorf("unexpected selection: %v", selected)
	}
}

func TestNewestIamFilePicksLatestTimestamp(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "iam_users_credentials_20250101_090000.json", `{"accounts": {}}`)
	writeTempFile(t, dir, "iam_users_credentials_20250615_120000.json", `{"accounts": {}}`)
	writeTempFile(t, dir, "iam_users_credentials_20250301_120000.json", `{"accounts": {}}`)

	got, err := newestIamFile(dir)
	if err != nil {
		t.Fatalf("newestIamFile: %v", err)
	}
	want := filepath.Join(dir, "iam_users_credentials_20250615_120000.json")
	if got != want {
		t.Errorf("newestIamFile = %q, want %q", got, want)
	}
}

func TestResolverAccountByName(t *testing.T) {
	resolver := NewResolver(AccountsFile{
		Accounts: map[string]AccountConfig{
			"account01": {AccountID: "111111111111", AccessKey: "AKIAREAL1", SecretKey: "s1"},
		},
		UserSettings: UserSettings{
			UserRegions:          []string{"us-east-1", "us-west-2"},
			AllowedInstanceTypes: []string{"t3.micro", "t3.small"},
		},
	})

	acct, ok := resolver.AccountByName("account01")
	if !ok || acct.AccessKey != "AKIAREAL1" {
		t.Fatalf("AccountByName(account01) = %+v, %v", acct, ok)
	}
	if _, ok := resolver.AccountByName("missing"); ok {
		t.Fatalf("AccountByName(missing) should not be found")
	}

	if regions := resolver.UserRegions(); len(regions) != 2 || regions[0] != "us-east-1" {
		t.Errorf("UserRegions() = %v", regions)
	}
	if types := resolver.AllowedInstanceTypes(); len(types) != 2 || types[0] != "t3.micro" {
		t.Errorf("AllowedInstanceTypes() = %v", types)
	}
}

func TestIamFileFirstUserForAccount(t *testing.T) {
	f := &IamFile{
		Accounts: map[string]IamFileAccount{
			"account01": {
				Users: []IamFileUser{
					{Username: "user-east", Region: "us-east-1", AccessKeyID: "AKIA_EAST"},
					{Username: "user-west", Region: "us-west-2", AccessKeyID: "AKIA_WEST"},
				},
			},
		},
	}

	if u, ok := f.FirstUserForAccount("account01", "us-west-2"); !ok || u.Username != "user-west" {
		t.Errorf("expected exact region match, got %+v, %v", u, ok)
	}
	if u, ok := f.FirstUserForAccount("account01", "eu-central-1"); !ok || u.Username != "user-east" {
		t.Errorf("expected fallback to first user, got %+v, %v", u, ok)
	}
	if _, ok := f.FirstUserForAccount("missing", "us-east-1"); ok {
		t.Errorf("expected no match for unknown account")
	}
}

func TestLoadIamCredentialsFileParsesShape(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "iam_users_credentials_20250615_120000.json", `{
		"created_date": "2025-06-15",
		"created_time": "12:00:00",
		"created_by": "tester",
		"total_users": 1,
		"accounts": {
			"account01": {
				"account_id": "111111111111",
				"account_email": "a@example.com",
				"users": [
					{"username": "account01_clouduser01", "region": "us-east-1", "access_key_id": "AKIA1", "secret_access_key": "SECRET1"}
				]
			}
		}
	}`)

	f, err := LoadIamCredentialsFile(dir)
	if err != nil {
		t.Fatalf("LoadIamCredentialsFile: %v", err)
	}
	acct, ok := f.Accounts["account01"]
	if !ok {
		t.Fatal("expected account01 in parsed IAM file")
	}
	if len(acct.Users) != 1 || acct.Users[0].Username != "account01_clouduser01" {
		t.Errorf("unexpected users: %+v", acct.Users)
	}
}
