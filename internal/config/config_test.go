package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func TestAMIMappingAMIFor(t *testing.T) {
	m := &AMIMapping{RegionAMI: map[string]string{"us-east-1": "ami-111"}}

	ami, err := m.AMIFor("us-east-1")
	if err != nil || ami != "ami-111" {
		t.Fatalf("AMIFor(us-east-1) = %q, %v", ami, err)
	}

	if _, err := m.AMIFor("eu-west-1"); err == nil {
		t.Fatal("expected error for unmapped region")
	}
}

func TestLoadAMIMapping(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "ami.json", `{
		"region_ami_mapping": {"us-east-1": "ami-123"},
		"allowed_instance_types": ["t3.micro"],
		"eks_unsupported_azs": {"us-east-1": ["us-east-1e"]}
	}`)

	m, err := LoadAMIMapping(path)
	if err != nil {
		t.Fatalf("LoadAMIMapping: %v", err)
	}
	if m.RegionAMI["us-east-1"] != "ami-123" {
		t.Errorf("unexpected RegionAMI: %+v", m.RegionAMI)
	}
	if len(m.AllowedInstanceTypes) != 1 || m.AllowedInstanceTypes[0] != "t3.micro" {
		t.Errorf("unexpected AllowedInstanceTypes: %v", m.AllowedInstanceTypes)
	}
}

func TestLoadRequiresIamUnlessOptional(t *testing.T) {
	dir := t.TempDir()
	accounts := writeTempFile(t, dir, "accounts.json", `{
		"accounts": {"account01": {"account_id": "1", "access_key": "AKIAREAL", "secret_key": "s"}}
	}`)
	userMapping := writeTempFile(t, dir, "user_mapping.json", `{}`)

	paths := Paths{AccountsConfig: accounts, UserMapping: userMapping}

	if _, err := Load(paths, false); err == nil {
		t.Fatal("expected error when IAM credentials are required but not configured")
	}

	loaded, err := Load(paths, true)
	if err != nil {
		t.Fatalf("Load with iamOptional=true: %v", err)
	}
	if loaded.Iam != nil {
		t.Errorf("expected nil Iam, got %+v", loaded.Iam)
	}
	if loaded.Resolver == nil {
		t.Fatal("expected a non-nil Resolver")
	}
}

func TestBindFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("dry-run", false, "")
	flags.Int("max-resources", 0, "")
	flags.Int("workers", 0, "")
	flags.String("config", "", "")
	flags.String("iam-credentials", "", "")
	flags.Bool("no-fail-fast", false, "")
	flags.Bool("non-interactive", false, "")

	v := viper.New()
	if err := BindFlags(v, flags); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if v.GetInt("max_resources") != 50 {
		t.Errorf("expected default max_resources 50, got %d", v.GetInt("max_resources"))
	}
	if v.GetInt("workers") != 5 {
		t.Errorf("expected default workers 5, got %d", v.GetInt("workers"))
	}

	flags.Set("dry-run", "true")
	if !v.GetBool("dry_run") {
		t.Errorf("expected dry_run to follow bound flag value")
	}
}

func TestBindFlagsMissingFlagErrors(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := viper.New()
	if err := BindFlags(v, flags); err == nil {
		t.Fatal("expected error when required flags are not registered")
	}
}
