package inspector

import "github.com/gqlregistry/registry-core/internal/domain/registry"

// ServiceEndpoint is one subgraph's name/URL pair, as tracked per check
// (§4.4 "URL-change detection").
type ServiceEndpoint struct {
	Name string
	URL  string
}

// DetectURLChanges emits a synthetic REGISTRY_SERVICE_URL_CHANGED change for
// every service present in both before and after sets whose URL differs.
//
// DetectURLChanges performs a single early-continue per service; see
// DESIGN.md for the ambiguity this resolves.
func DetectURLChanges(before, after []ServiceEndpoint) []registry.SchemaChange {
	beforeByName := make(map[string]string, len(before))
	for _, s := range before {
		beforeByName[s.Name] = s.URL
	}

	var changes []registry.SchemaChange
	for _, a := range after {
		oldURL, existed := beforeByName[a.Name]
		if !existed {
			continue
		}
		if oldURL == a.URL {
			continue
		}
		meta := map[string]any{"serviceName": a.Name, "old": oldURL, "new": a.URL}
		changes = append(changes, registry.SchemaChange{
			ID:                 registry.ChangeID(registry.ChangeServiceURLChanged, meta),
			Type:               registry.ChangeServiceURLChanged,
			Severity:           registry.SeveritySafe,
			Meta:               meta,
			Path:               a.Name,
			IsSafeBasedOnUsage: false,
		})
	}
	return changes
}
