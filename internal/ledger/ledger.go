// Package ledger implements the SessionLedger: an append-only, durable
// record of resources created and destroyed during a session, plus the
// reverse-order replay used for rollback.
package ledger

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// EventKind is the kind of a ledger delta entry.
type EventKind string

const (
	EventCreated      EventKind = "created"
	EventRetired      EventKind = "retired"
	EventFailed       EventKind = "failed"
	EventFailedRetire EventKind = "failed-retire"
)

// Entry is one line of the ledger: a ResourceRef plus the event that
// produced it.
type Entry struct {
	Event          EventKind         `json:"event"`
	Ref            model.ResourceRef `json:"ref"`
	Timestamp      time.Time         `json:"timestamp"`
	ErrorKind      model.ErrKind     `json:"errorKind,omitempty"`
	AlreadyAbsent  bool              `json:"alreadyAbsent,omitempty"`
}

// Header is the first line written to a ledger file.
type Header struct {
	SessionID       string    `json:"sessionId"`
	StartedAt       time.Time `json:"startedAt"`
	User            string    `json:"user"`
	DryRun          bool      `json:"dryRun"`
	InvocationConfig map[string]any `json:"invocationConfig"`
}

// document is the full JSON shape persisted to disk: a header followed by
// the accumulated entries. The ledger is conceptually append-only; this
// struct is the in-memory mirror that gets rewritten to disk on every
// append so the file always holds valid, complete JSON (rather than a
// newline-delimited stream, matching the "session_<id>.json" single-file
// external interface named in the specification).
type document struct {
	Header  Header  `json:"header"`
	Entries []Entry `json:"entries"`
}

// Ledger is the SessionLedger. A single Ledger instance owns exclusive
// write access to its file via an in-process mutex; readers that need a
// consistent snapshot should use Snapshot.
type Ledger struct {
	mu   sync.Mutex
	path string
	doc  document
}

// New creates a new ledger file at "session_<sessionID>.json" in dir and
// writes its header. It is an error for the file to already exist.
func New(dir, sessionID, user string, dryRun bool, invocationConfig map[string]any) (*Ledger, error) {
	path := PathFor(dir, sessionID)
	l := &Ledger{
		path: path,
		doc: document{
			Header: Header{
				SessionID:        sessionID,
				StartedAt:        time.Now(),
				User:             user,
				DryRun:           dryRun,
				InvocationConfig: invocationConfig,
			},
		},
	}
	if err := l.flush(); err != nil {
		return nil, err
	}
	return l, nil
}

// PathFor returns the canonical ledger file path for a session id.
func PathFor(dir, sessionID string) string {
	if dir == "" {
		dir = "."
	}
	return dir + "/session_" + sessionID + ".json"
}

// Open loads an existing ledger file for reading (Reporter, Rollback).
func Open(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &Ledger{path: path, doc: doc}, nil
}

// Created appends a "created" entry for ref and durably persists the
// ledger before returning, satisfying the invariant that a resource's
// ledger entry exists before its creation success is acknowledged to the
// caller.
func (l *Ledger) Created(ref model.ResourceRef) error {
	return l.append(Entry{Event: EventCreated, Ref: ref, Timestamp: time.Now()})
}

// Retired appends a "retired" entry for ref. alreadyAbsent marks a delete
// of a resource that did not exist at delete time (still treated as
// success, per the specification's NotFound handling).
func (l *Ledger) Retired(ref model.ResourceRef, alreadyAbsent bool) error {
	ref.Retired = true
	ref.RetiredAt = time.Now()
	return l.append(Entry{Event: EventRetired, Ref: ref, Timestamp: time.Now(), AlreadyAbsent: alreadyAbsent})
}

// FailedRetire appends a "failed-retire" entry recording why a rollback
// delete did not succeed; rollback continues with later entries regardless.
func (l *Ledger) FailedRetire(ref model.ResourceRef, errKind model.ErrKind) error {
	return l.append(Entry{Event: EventFailedRetire, Ref: ref, Timestamp: time.Now(), ErrorKind: errKind})
}

// Failed appends a "failed" entry for a task that did not produce a
// resource.
func (l *Ledger) Failed(ref model.ResourceRef, errKind model.ErrKind) error {
	return l.append(Entry{Event: EventFailed, Ref: ref, Timestamp: time.Now(), ErrorKind: errKind})
}

func (l *Ledger) append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc.Entries = append(l.doc.Entries, e)
	return l.flush()
}

// flush durably persists the ledger document. It writes through a
// temp-file-and-rename so a concurrent reader taking a Snapshot never
// observes a partially written file, and calls Sync before rename so the
// append is durable before the caller proceeds.
func (l *Ledger) flush() error {
	data, err := json.MarshalIndent(l.doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dirOf(l.path), "ledger-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, l.path)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// Snapshot returns a copy of the entries appended so far, under the shared
// lock Reporter and Rollback use to read a consistent view.
func (l *Ledger) Snapshot() (Header, []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]Entry, len(l.doc.Entries))
	copy(entries, l.doc.Entries)
	return l.doc.Header, entries
}
