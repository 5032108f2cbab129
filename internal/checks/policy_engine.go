package checks

import "context"

// PolicyResult is a policy engine's verdict over one SDL document.
type PolicyResult struct {
	Warnings []string
	Errors   []string
}

func (r PolicyResult) Success() bool { return len(r.Errors) == 0 }

// PolicyEngine is the external policy-rules collaborator (§1 "out of
// scope: the policy engine"; §4.4 `policyCheck`).
type PolicyEngine interface {
	Check(ctx context.Context, incomingSDL, modifiedSDL string) (PolicyResult, error)
}

// NoPolicyEngine always succeeds with no warnings — the default when a
// project has not configured a policy engine.
type NoPolicyEngine struct{}

func (NoPolicyEngine) Check(ctx context.Context, incomingSDL, modifiedSDL string) (PolicyResult, error) {
	return PolicyResult{}, nil
}
