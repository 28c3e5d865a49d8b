// Package executor implements the Executor: a bounded worker pool that
// drains ready tasks from a dependency.Graph, dispatches each to the
// handler for its TaskKind, classifies and retries failures, and records
// every outcome to the session ledger.
package executor

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ProgressWriter serializes per-task progress lines to w. Workers share one
// instance, so writes are mutex-protected to keep lines from interleaving.
type ProgressWriter struct {
	mu    sync.Mutex
	w     io.Writer
	start time.Time
	debug bool
}

// NewProgressWriter builds a ProgressWriter over w.
func NewProgressWriter(w io.Writer, debug bool) *ProgressWriter {
	return &ProgressWriter{w: w, start: time.Now(), debug: debug}
}

// TaskStart announces a worker picking up a task.
func (p *ProgressWriter) TaskStart(taskID, kind, account, region string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[executor] %-10s %-22s %s/%s\n", taskID[:8], displayKind(kind), account, region)
}

// TaskDone announces a task's terminal outcome.
func (p *ProgressWriter) TaskDone(taskID, outcome string, attempts int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[executor] %-10s %-10s attempts=%d elapsed=%s\n", taskID[:8], outcome, attempts, elapsed.Round(time.Millisecond))
}

// Note logs a free-form informational line, used for retry backoffs,
// confirmation-prompt detection, and similar sub-steps within a task.
func (p *ProgressWriter) Note(taskID, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := taskID
	if len(id) > 8 {
		id = id[:8]
	}
	fmt.Fprintf(p.w, "[executor] %-10s %s\n", id, msg)
}

// displayKind renders a camelCase TaskKind as a title-cased phrase for
// progress lines, e.g. "deleteEc2" -> "Delete Ec2"; a run of capitals stays
// one word ("createASG" -> "Create ASG").
func displayKind(kind string) string {
	var sb strings.Builder
	var prev rune
	for i, r := range kind {
		if i > 0 && r >= 'A' && r <= 'Z' && !(prev >= 'A' && prev <= 'Z') {
			sb.WriteByte(' ')
		}
		sb.WriteRune(r)
		prev = r
	}
	return cases.Title(language.English, cases.NoLower).String(sb.String())
}
