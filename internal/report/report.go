// Package report renders a completed session's ledger into the formats an
// operator or a later audit needs: a JSON document with the full ledger
// attached, a CSV row per (account, resource type), an HTML summary page,
// and a console table. Report generation never calls AWS; it is a pure
// consumer of internal/ledger.
package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/ledger"
)

// AccountSummary aggregates one account's resource counts for a session.
type AccountSummary struct {
	AccountName string                    `json:"accountName"`
	AccountID   string                    `json:"accountId"`
	ByResource  map[string]ResourceCounts `json:"byResource"`
}

// ResourceCounts is the created/retired/failed tally for one resource type
// within one account.
type ResourceCounts struct {
	Created int `json:"created"`
	Retired int `json:"retired"`
	Failed  int `json:"failed"`
}

// Document is the full JSON report: session metadata, the per-account
// summary, and the raw ledger entries for anyone auditing the session in
// detail.
type Document struct {
	SessionID   string                    `json:"sessionId"`
	StartedAt   time.Time                 `json:"startedAt"`
	User        string                    `json:"user"`
	DryRun      bool                      `json:"dryRun"`
	GeneratedAt time.Time                 `json:"generatedAt"`
	Accounts    []AccountSummary          `json:"accounts"`
	Ledger      []ledger.Entry            `json:"ledger"`
}

// Build aggregates a ledger's header and entries into a report Document.
// generatedAt is passed in by the caller rather than computed here, since
// workflow-driven callers may not have access to a live clock.
func Build(header ledger.Header, entries []ledger.Entry, generatedAt time.Time) Document {
	byAccount := map[string]*AccountSummary{}

	get := func(accountName, accountID string) *AccountSummary {
		s, ok := byAccount[accountName]
		if !ok {
			s = &AccountSummary{AccountName: accountName, AccountID: accountID, ByResource: map[string]ResourceCounts{}}
			byAccount[accountName] = s
		}
		return s
	}

	for _, e := range entries {
		s := get(e.Ref.AccountName, e.Ref.AccountID)
		c := s.ByResource[e.Ref.ResourceType]
		switch e.Event {
		case ledger.EventCreated:
			c.Created++
		case ledger.EventRetired:
			c.Retired++
		case ledger.EventFailed, ledger.EventFailedRetire:
			c.Failed++
		}
		s.ByResource[e.Ref.ResourceType] = c
	}

	names := make([]string, 0, len(byAccount))
	for name := range byAccount {
		names = append(names, name)
	}
	sort.Strings(names)

	accounts := make([]AccountSummary, 0, len(names))
	for _, name := range names {
		accounts = append(accounts, *byAccount[name])
	}

	return Document{
		SessionID:   header.SessionID,
		StartedAt:   header.StartedAt,
		User:        header.User,
		DryRun:      header.DryRun,
		GeneratedAt: generatedAt,
		Accounts:    accounts,
		Ledger:      entries,
	}
}

// WriteJSON writes the full report document as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteCSV writes one row per (account, resource type): account name,
// account id, resource type, created, retired, failed.
func WriteCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"account", "accountId", "resourceType", "created", "retired", "failed"}); err != nil {
		return err
	}

	for _, acc := range doc.Accounts {
		types := make([]string, 0, len(acc.ByResource))
		for t := range acc.ByResource {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			c := acc.ByResource[t]
			row := []string{
				acc.AccountName,
				acc.AccountID,
				t,
				strconv.Itoa(c.Created),
				strconv.Itoa(c.Retired),
				strconv.Itoa(c.Failed),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	return cw.Error()
}
