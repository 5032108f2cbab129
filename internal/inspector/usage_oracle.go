package inspector

import "context"

// UsageCoordinate identifies one schema coordinate a breaking change might
// affect: a type/field pair, or a bare type for type-level changes.
type UsageCoordinate struct {
	TypeName  string
	FieldName string
}

// UsageOracle answers whether a coordinate was exercised by traffic within a
// target's validation window (§4.3, §9 "capability interfaces"). It is an
// external collaborator — usage analytics is explicitly out of scope for
// this registry (§1).
type UsageOracle interface {
	HasTrafficSince(ctx context.Context, targetID string, coord UsageCoordinate) (bool, error)
}

// NoUsageOracle reports traffic for every coordinate — the conservative
// default when a target has not configured a usage oracle. Every breaking
// change is then usage-unsafe and must go through approval.
type NoUsageOracle struct{}

func (NoUsageOracle) HasTrafficSince(ctx context.Context, targetID string, coord UsageCoordinate) (bool, error) {
	return true, nil
}
