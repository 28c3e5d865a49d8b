package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// CloudNukeTask drives an external cloud-nuke-style binary against one
// (account, region) pair for a destructive task whose safety belongs to the
// tool itself rather than to per-API deletes this engine issues directly.
// Used for resource kinds whose AWS SDK delete surface the engine does not
// implement directly, where the external tool is already depended on by
// operators.
type CloudNukeTask struct {
	Binary   string
	Args     func(h model.CredentialHandle, region string) []string
	AutoConfirm bool
	Token    string
}

// Run spawns the configured tool via a PromptedTool, auto-confirming
// exactly once if AutoConfirm is set.
func (c CloudNukeTask) Run(ctx context.Context, taskID string, h model.CredentialHandle, region string, progress *ProgressWriter) (Result, error) {
	args := c.Args(h, region)
	env := []string{
		"AWS_ACCESS_KEY_ID=" + h.AccessKey,
		"AWS_SECRET_ACCESS_KEY=" + h.SecretKey,
		"AWS_DEFAULT_REGION=" + region,
	}

	token := c.Token
	if token == "" {
		token = "nuke"
	}
	policy := PromptedToolPolicy{Timeout: 30 * time.Minute}
	if c.AutoConfirm {
		policy = DefaultPromptedToolPolicy(token)
	}

	tool := NewPromptedTool(c.Binary, args, env, policy)
	res, err := tool.Run(ctx, taskID, progress)
	if err != nil {
		return res, fmt.Errorf("cloud-nuke run for %s/%s: %w", h.DisplayName(), region, err)
	}
	return res, nil
}
