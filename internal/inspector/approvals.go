package inspector

import "github.com/gqlregistry/registry-core/internal/domain/registry"

// ApprovedChange is the stored snapshot of a previously-approved breaking
// change, keyed by the change's deterministic ID (§4.4 "Approval
// application").
type ApprovedChange struct {
	ChangeID   string
	ApproverID string
	ApprovedAt string
}

// ApplyApprovals replaces every detected change whose ID matches an entry
// in approved with the stored approval snapshot, preserving approver
// identity and timestamp, and marks it non-blocking.
func ApplyApprovals(changes []registry.SchemaChange, approved map[string]ApprovedChange) []registry.SchemaChange {
	if len(approved) == 0 {
		return changes
	}
	out := make([]registry.SchemaChange, len(changes))
	for i, c := range changes {
		a, ok := approved[c.ID]
		if !ok {
			out[i] = c
			continue
		}
		c.ApprovedByUserID = a.ApproverID
		c.ApprovedAt = a.ApprovedAt
		out[i] = c
	}
	return out
}
