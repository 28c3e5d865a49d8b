// Package credentials implements the CredentialResolver: loading the
// accounts configuration file and IAM credentials files, parsing account
// selection expressions, building CredentialHandle values, and validating
// them against AWS STS.
package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// placeholderPrefix marks access keys that are template placeholders rather
// than real credentials; accounts carrying one are ignored by LoadAccounts.
const placeholderPrefix = "ADD_"

// AccountConfig is one entry under the "accounts" key of
// aws_accounts_config.json.
type AccountConfig struct {
	AccountID      string `json:"account_id"`
	Email          string `json:"email"`
	AccessKey      string `json:"access_key"`
	SecretKey      string `json:"secret_key"`
	UsersPerAccount int   `json:"users_per_account,omitempty"`
}

// UserSettings is the "user_settings" key of aws_accounts_config.json.
type UserSettings struct {
	UserRegions           []string `json:"user_regions"`
	UsersPerAccount       int      `json:"users_per_account"`
	AllowedInstanceTypes  []string `json:"allowed_instance_types"`
	Password              string   `json:"password"`
}

// AccountsFile is the full decoded shape of aws_accounts_config.json.
type AccountsFile struct {
	Accounts     map[string]AccountConfig `json:"accounts"`
	UserSettings UserSettings             `json:"user_settings"`
}

// Resolver is the CredentialResolver. It holds no AWS client state of its
// own; Validate takes a caller-supplied identity-lookup function so it can
// be tested without live AWS credentials.
type Resolver struct {
	accounts map[string]AccountConfig
	settings UserSettings
}

// NewResolver constructs a Resolver from an already-decoded accounts file.
func NewResolver(f AccountsFile) *Resolver {
	return &Resolver{accounts: f.Accounts, settings: f.UserSettings}
}

// LoadAccounts reads the configuration provider's JSON payload and returns
// a Resolver holding the accountName -> accountConfig map, rejecting
// placeholder entries.
func LoadAccounts(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewInvalidConfiguration("reading accounts config %s: %v", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, model.NewInvalidConfiguration("accounts config %s is empty", path)
	}

	var f AccountsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, model.NewInvalidConfiguration("parsing accounts config %s: %v", path, err)
	}
	if len(f.Accounts) == 0 {
		return nil, model.NewInvalidConfiguration("accounts config %s has no accounts", path)
	}

	filtered := make(map[string]AccountConfig, len(f.Accounts))
	for name, acct := range f.Accounts {
		if strings.HasPrefix(acct.AccessKey, placeholderPrefix) {
			continue
		}
		filtered[name] = acct
	}
	if len(filtered) == 0 {
		return nil, model.NewInvalidConfiguration("accounts config %s has no accounts with real credentials", path)
	}

	return &Resolver{accounts: filtered, settings: f.UserSettings}, nil
}

// Accounts returns the loaded account names, sorted for determinism.
func (r *Resolver) Accounts() []string {
	names := make([]string, 0, len(r.accounts))
	for name := range r.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UserRegions returns the default region list configured under
// user_settings.user_regions, used when the caller supplies no explicit
// --region flags.
func (r *Resolver) UserRegions() []string {
	return r.settings.UserRegions
}

// AllowedInstanceTypes returns user_settings.allowed_instance_types.
func (r *Resolver) AllowedInstanceTypes() []string {
	return r.settings.AllowedInstanceTypes
}

// AccountByName returns the account config for name, if loaded.
func (r *Resolver) AccountByName(name string) (AccountConfig, bool) {
	acct, ok := r.accounts[name]
	return acct, ok
}

// SelectAccounts parses a selection expression against the available
// account names (ordered as returned by Accounts) and returns the chosen
// subset in ascending index order.
func (r *Resolver) SelectAccounts(selection string) ([]string, error) {
	available := r.Accounts()
	indices, err := ParseSelection(selection, len(available))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(indices))
	for _, idx := range indices {
		out = append(out, available[idx-1])
	}
	return out, nil
}

// RealUser is the nested real_user object inside an IAM credentials file
// entry.
type RealUser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
}

// IamFileUser is one entry in an account's "users" list within an IAM
// credentials file.
type IamFileUser struct {
	Username        string   `json:"username"`
	RealUser        RealUser `json:"real_user"`
	Region          string   `json:"region"`
	AccessKeyID     string   `json:"access_key_id"`
	SecretAccessKey string   `json:"secret_access_key"`
	ConsolePassword string   `json:"console_password"`
	ConsoleURL      string   `json:"console_url"`
}

// IamFileAccount is one entry under the "accounts" key of an IAM
// credentials file.
type IamFileAccount struct {
	AccountID    string        `json:"account_id"`
	AccountEmail string        `json:"account_email"`
	Users        []IamFileUser `json:"users"`
}

// IamFile is the full decoded shape of an
// iam_users_credentials_<YYYYMMDD>_<HHMMSS>.json file.
type IamFile struct {
	CreatedDate string                     `json:"created_date"`
	CreatedTime string                     `json:"created_time"`
	CreatedBy   string                     `json:"created_by"`
	TotalUsers  int                        `json:"total_users"`
	Accounts    map[string]IamFileAccount  `json:"accounts"`
}

// FirstUserForAccount returns the first user on accountName's user list
// whose region matches region, or failing that the first user on the
// account at all, since a rollback task's region is authoritative but the
// IAM file may have been generated before that region was added.
func (f *IamFile) FirstUserForAccount(accountName, region string) (IamFileUser, bool) {
	acct, ok := f.Accounts[accountName]
	if !ok || len(acct.Users) == 0 {
		return IamFileUser{}, false
	}
	for _, u := range acct.Users {
		if u.Region == region {
			return u, true
		}
	}
	return acct.Users[0], true
}

var iamFilePattern = regexp.MustCompile(`^iam_users_credentials_(\d{8})_(\d{6})\.json$`)

// LoadIamCredentialsFile reads the newest file in dir matching the IAM
// credentials filename pattern, or the file at path directly if path names
// a file rather than a directory.
func LoadIamCredentialsFile(path string) (*IamFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, model.NewInvalidConfiguration("locating IAM credentials file %s: %v", path, err)
	}

	target := path
	if info.IsDir() {
		newest, err := newestIamFile(path)
		if err != nil {
			return nil, err
		}
		target = newest
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, model.NewInvalidConfiguration("reading IAM credentials file %s: %v", target, err)
	}

	var f IamFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, model.NewInvalidConfiguration("parsing IAM credentials file %s: %v", target, err)
	}
	return &f, nil
}

func newestIamFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", model.NewInvalidConfiguration("listing %s: %v", dir, err)
	}

	var best string
	var bestStamp string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := iamFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		stamp := m[1] + m[2]
		if stamp > bestStamp {
			bestStamp = stamp
			best = e.Name()
		}
	}
	if best == "" {
		return "", model.NewInvalidConfiguration("no iam_users_credentials_*.json file found in %s", dir)
	}
	return filepath.Join(dir, best), nil
}
