// Package config implements the ConfigProvider boundary: locating and
// loading the on-disk inputs named in the external-interfaces section
// (aws_accounts_config.json, an IAM credentials file, user_mapping.json,
// ec2-region-ami-mapping.json) and binding the shared CLI flags viper
// exposes to cmd's subcommands, the way the teacher's cmd/root.go
// initConfig wires --config/--debug into viper.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/credentials"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// AMIMapping is the decoded shape of ec2-region-ami-mapping.json.
type AMIMapping struct {
	RegionAMI            map[string]string   `json:"region_ami_mapping"`
	RegionInstanceTypes  map[string][]string `json:"region_instance_types,omitempty"`
	AllowedInstanceTypes []string            `json:"allowed_instance_types"`
	EKSUnsupportedAZs    map[string][]string `json:"eks_unsupported_azs"`
}

// AMIFor returns the AMI id configured for region, or a ConfigError if the
// region has no entry.
func (m *AMIMapping) AMIFor(region string) (string, error) {
	ami, ok := m.RegionAMI[region]
	if !ok || ami == "" {
		return "", model.NewInvalidConfiguration("no AMI mapped for region %q", region)
	}
	return ami, nil
}

// LoadAMIMapping reads ec2-region-ami-mapping.json from path.
func LoadAMIMapping(path string) (*AMIMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewInvalidConfiguration("reading AMI mapping %s: %v", path, err)
	}
	var m AMIMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, model.NewInvalidConfiguration("parsing AMI mapping %s: %v", path, err)
	}
	return &m, nil
}

// Paths collects the on-disk locations the ConfigProvider resolves, either
// from flags or from viper-bound defaults/config-file values.
type Paths struct {
	AccountsConfig string
	IamCredentials string // file or directory; newest matching file wins when a directory
	UserMapping    string
	AMIMapping     string
}

// Loaded bundles every decoded configuration input a session needs to build
// CredentialHandles and resolve AMIs, so OrchestratorCore has one value to
// carry from config-loading into credential resolution.
type Loaded struct {
	Resolver    *credentials.Resolver
	Iam         *credentials.IamFile // nil if no IAM credentials file was requested/found
	UserMapping *credentials.UserMappingFile
	AMIMapping  *AMIMapping
}

// Load resolves every ConfigProvider input named in Paths. iamOptional
// permits a provision/rollback session that only uses root credentials to
// proceed without an IAM credentials file; cleanup workflows that operate
// against IAM-created fleets should pass iamOptional=false.
func Load(p Paths, iamOptional bool) (*Loaded, error) {
	resolver, err := credentials.LoadAccounts(p.AccountsConfig)
	if err != nil {
		return nil, err
	}

	var iam *credentials.IamFile
	if p.IamCredentials != "" {
		iam, err = credentials.LoadIamCredentialsFile(p.IamCredentials)
		if err != nil {
			if !iamOptional {
				return nil, err
			}
			iam = nil
		}
	} else if !iamOptional {
		return nil, model.NewInvalidConfiguration("no IAM credentials file configured")
	}

	um, err := credentials.LoadUserMappingFile(p.UserMapping)
	if err != nil {
		return nil, model.NewInvalidConfiguration("loading user mapping %s: %v", p.UserMapping, err)
	}

	var ami *AMIMapping
	if p.AMIMapping != "" {
		ami, err = LoadAMIMapping(p.AMIMapping)
		if err != nil {
			return nil, err
		}
	}

	return &Loaded{Resolver: resolver, Iam: iam, UserMapping: um, AMIMapping: ami}, nil
}

// DefaultPaths returns the search-path defaults the teacher's initConfig
// pattern applies before flags/viper overrides take over: the current
// working directory for aws_accounts_config.json and its siblings.
func DefaultPaths() Paths {
	return Paths{
		AccountsConfig: "aws_accounts_config.json",
		IamCredentials: ".",
		UserMapping:    "user_mapping.json",
		AMIMapping:     "ec2-region-ami-mapping.json",
	}
}

// BindFlags registers the shared flags section 6 names against v, the way
// cmd/root.go's init() binds --debug/--local-mode: one BindPFlag call per
// flag. When neither the flag, the config file nor the environment sets a
// key, max_resources and workers take the defaults set here (50 and 5);
// every other key falls through to the flag's own default.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"dry_run":         "dry-run",
		"max_resources":   "max-resources",
		"workers":         "workers",
		"config":          "config",
		"iam_credentials": "iam-credentials",
		"no_fail_fast":    "no-fail-fast",
		"non_interactive": "non-interactive",
	}
	for key, flagName := range bindings {
		f := flags.Lookup(flagName)
		if f == nil {
			return fmt.Errorf("flag %q not registered", flagName)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	v.SetDefault("max_resources", 50)
	v.SetDefault("workers", 5)
	return nil
}
