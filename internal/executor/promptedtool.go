package executor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// confirmationPatterns is the closed set of regexes a spawned destructive
// tool's stdout is matched against to detect its interactive confirmation
// prompt.
var confirmationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Enter 'nuke' to confirm`),
	regexp.MustCompile(`(?i)type ['"]?nuke['"]? to confirm`),
	regexp.MustCompile(`(?i)please confirm.*nuke`),
	regexp.MustCompile(`(?i)are you sure you want to`),
	regexp.MustCompile(`\(y/n\)\s*$`),
}

// PromptedToolPolicy controls a PromptedTool's confirmation behavior.
type PromptedToolPolicy struct {
	// ConfirmationToken is written to the tool's stdin exactly once, the
	// first time a confirmation prompt is detected.
	ConfirmationToken string
	// ForceSendAfter force-sends ConfirmationToken if a prompt was
	// detected but not itself followed by a successful write within this
	// duration. Zero disables the fallback. Open Question 1 resolves this
	// as a configurable safety net, default 10s (see DESIGN.md).
	ForceSendAfter time.Duration
	// Timeout is the overall deadline for the subprocess; exceeding it
	// terminates the process and returns an ErrKindTimeout.
	Timeout time.Duration
}

// DefaultPromptedToolPolicy matches the source CloudNuke driver's defaults.
func DefaultPromptedToolPolicy(token string) PromptedToolPolicy {
	return PromptedToolPolicy{
		ConfirmationToken: token,
		ForceSendAfter:    10 * time.Second,
		Timeout:           30 * time.Minute,
	}
}

// PromptedTool drives an interactive subprocess (CloudNuke today; shaped to
// cover any tool that gates a destructive action behind a typed
// confirmation) by streaming its stdout, detecting the confirmation prompt
// by regex match, and writing the confirmation token to its stdin exactly
// once.
type PromptedTool struct {
	name   string
	args   []string
	env    []string
	policy PromptedToolPolicy
}

// NewPromptedTool builds a PromptedTool that will invoke name with args.
func NewPromptedTool(name string, args []string, env []string, policy PromptedToolPolicy) *PromptedTool {
	return &PromptedTool{name: name, args: args, env: env, policy: policy}
}

// Result is the outcome of one PromptedTool run.
type Result struct {
	Output            string
	ConfirmationSent  bool
	ForceSent         bool
	ExitErr           error
}

// Run spawns the tool, streams its combined output to progress (if
// non-nil), detects the confirmation prompt, writes the confirmation token
// once, and waits for completion or for ctx/policy.Timeout to expire.
func (t *PromptedTool) Run(ctx context.Context, taskID string, progress *ProgressWriter) (Result, error) {
	if _, err := exec.LookPath(t.name); err != nil {
		return Result{}, &model.ClassifiedError{Kind: model.ErrKindToolMissing, Err: fmt.Errorf("%s not found on PATH: %w", t.name, err)}
	}

	deadline := t.policy.Timeout
	if deadline <= 0 {
		deadline = 30 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.name, t.args...)
	cmd.Env = append(os.Environ(), t.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Result{}, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return Result{}, err
	}

	var (
		mu            sync.Mutex
		output        bytes.Buffer
		promptSeen    bool
		promptSeenAt  time.Time
		confirmedOnce bool
		forceSent     bool
	)

	send := func() bool {
		mu.Lock()
		defer mu.Unlock()
		if confirmedOnce {
			return false
		}
		if _, err := io.WriteString(stdin, t.policy.ConfirmationToken+"\n"); err != nil {
			return false
		}
		confirmedOnce = true
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			output.WriteString(line)
			output.WriteByte('\n')
			seen := promptSeen
			mu.Unlock()
			if progress != nil {
				progress.Note(taskID, "["+t.name+"] "+line)
			}
			if !seen && matchesConfirmationPrompt(line) {
				mu.Lock()
				promptSeen = true
				promptSeenAt = time.Now()
				mu.Unlock()
				if send() && progress != nil {
					progress.Note(taskID, "confirmation prompt detected, sent token")
				}
			}
		}
	}()

	if t.policy.ForceSendAfter > 0 {
		go func() {
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-runCtx.Done():
					return
				case <-ticker.C:
					mu.Lock()
					shouldForce := promptSeen && !confirmedOnce && time.Since(promptSeenAt) > t.policy.ForceSendAfter
					mu.Unlock()
					if shouldForce {
						if send() {
							mu.Lock()
							forceSent = true
							mu.Unlock()
							if progress != nil {
								progress.Note(taskID, "force-sent confirmation after unacknowledged prompt")
							}
						}
					}
				}
			}
		}()
	}

	waitErr := cmd.Wait()
	<-done
	stdin.Close()

	mu.Lock()
	res := Result{Output: output.String(), ConfirmationSent: confirmedOnce, ForceSent: forceSent, ExitErr: waitErr}
	mu.Unlock()

	if runCtx.Err() == context.DeadlineExceeded {
		return res, &model.ClassifiedError{Kind: model.ErrKindTimeout, Err: runCtx.Err()}
	}
	if waitErr != nil {
		return res, &model.ClassifiedError{Kind: model.ErrKindTransientApi, Err: waitErr}
	}
	return res, nil
}

func matchesConfirmationPrompt(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, re := range confirmationPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}
