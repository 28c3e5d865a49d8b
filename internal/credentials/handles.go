package credentials

import (
	"context"
	"fmt"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// RegionChoice selects which regions a root CredentialHandle should carry:
// a single region, an explicit list, a "start-end" range over an ordered
// region catalogue, or "all" (every region in the catalogue).
type RegionChoice struct {
	Expression string
	Catalogue  []string // ordered region codes used to resolve ranges and "all"
}

// Resolve expands a RegionChoice into an ordered, de-duplicated region list.
func (rc RegionChoice) Resolve() ([]string, error) {
	if len(rc.Catalogue) == 0 {
		if rc.Expression == "" {
			return nil, model.NewInvalidConfiguration("region choice requires a catalogue or an explicit region")
		}
		return []string{rc.Expression}, nil
	}
	indices, err := ParseSelection(rc.Expression, len(rc.Catalogue))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(indices))
	for _, idx := range indices {
		out = append(out, rc.Catalogue[idx-1])
	}
	return out, nil
}

// BuildHandles produces one CredentialHandle per (account, user) for IAM
// credentials, or one per (account, selected-regions) for root credentials.
func BuildHandles(accountNames []string, resolver *Resolver, iam *IamFile, kind model.CredentialKind, regionChoice RegionChoice) ([]model.CredentialHandle, error) {
	switch kind {
	case model.CredentialKindRoot:
		return buildRootHandles(accountNames, resolver, regionChoice)
	case model.CredentialKindIAM:
		return buildIamHandles(accountNames, iam, regionChoice)
	default:
		return nil, model.NewInvalidConfiguration("unknown credential kind %q", kind)
	}
}

func buildRootHandles(accountNames []string, resolver *Resolver, regionChoice RegionChoice) ([]model.CredentialHandle, error) {
	regions, err := regionChoice.Resolve()
	if err != nil {
		return nil, err
	}

	var handles []model.CredentialHandle
	for _, name := range accountNames {
		acct, ok := resolver.accounts[name]
		if !ok {
			return nil, model.NewInvalidConfiguration("account %q not found", name)
		}
		handles = append(handles, model.CredentialHandle{
			AccountName: name,
			AccountID:   acct.AccountID,
			Email:       acct.Email,
			AccessKey:   acct.AccessKey,
			SecretKey:   acct.SecretKey,
			Kind:        model.CredentialKindRoot,
			Regions:     regions,
		})
	}
	return handles, nil
}

func buildIamHandles(accountNames []string, iam *IamFile, regionChoice RegionChoice) ([]model.CredentialHandle, error) {
	if iam == nil {
		return nil, model.NewInvalidConfiguration("IAM credentials file required to build IAM handles")
	}

	var handles []model.CredentialHandle
	for _, name := range accountNames {
		acct, ok := iam.Accounts[name]
		if !ok {
			return nil, model.NewInvalidConfiguration("account %q not found in IAM credentials file", name)
		}
		for _, u := range acct.Users {
			regions := []string{u.Region}
			if regionChoice.Expression != "" {
				resolved, err := regionChoice.Resolve()
				if err != nil {
					return nil, err
				}
				regions = resolved
			}
			handles = append(handles, model.CredentialHandle{
				AccountName: name,
				AccountID:   acct.AccountID,
				Email:       acct.AccountEmail,
				AccessKey:   u.AccessKeyID,
				SecretKey:   u.SecretAccessKey,
				Kind:        model.CredentialKindIAM,
				Username:    u.Username,
				Regions:     regions,
			})
		}
	}
	return handles, nil
}

// ValidateOutcome is the result of validating one CredentialHandle against
// AWS identity.
type ValidateOutcome string

const (
	ValidateOK          ValidateOutcome = "ok"
	ValidateMismatch    ValidateOutcome = "mismatch"
	ValidateUnreachable ValidateOutcome = "unreachable"
)

// IdentityLookup performs an STS GetCallerIdentity-style call for the given
// handle and returns the account id the credentials actually belong to.
// Production code backs this with internal/awsclient; tests supply a fake.
type IdentityLookup func(ctx context.Context, handle model.CredentialHandle) (accountID string, err error)

// Validate performs an identity-lookup call and compares the returned
// account id against the handle's stored account id.
func Validate(ctx context.Context, handle model.CredentialHandle, lookup IdentityLookup) ValidateOutcome {
	accountID, err := lookup(ctx, handle)
	if err != nil {
		return ValidateUnreachable
	}
	if accountID != handle.AccountID {
		return ValidateMismatch
	}
	return ValidateOK
}

// ValidateAll validates every handle and returns the subset that passed,
// alongside a summary of per-handle outcomes in input order. If the
// returned subset is empty the orchestrator must abort with
// ErrNoValidCredentials.
func ValidateAll(ctx context.Context, handles []model.CredentialHandle, lookup IdentityLookup) (valid []model.CredentialHandle, outcomes map[string]ValidateOutcome, err error) {
	outcomes = make(map[string]ValidateOutcome, len(handles))
	for _, h := range handles {
		outcome := Validate(ctx, h, lookup)
		outcomes[h.DisplayName()] = outcome
		if outcome == ValidateOK {
			valid = append(valid, h)
		}
	}
	if len(valid) == 0 {
		return nil, outcomes, &model.ErrNoValidCredentials{}
	}
	return valid, outcomes, nil
}

// FormatOutcomeSummary renders a human-readable per-handle validation
// summary line, used by the CLI's non-interactive status output.
func FormatOutcomeSummary(name string, outcome ValidateOutcome) string {
	return fmt.Sprintf("%-40s %s", name, outcome)
}
