package inspector

import (
	"strings"

	"github.com/gqlregistry/registry-core/internal/domain/registry"
)

// federationInternalNames is the fixed allow-list of federation-bookkeeping
// types and directives whose changes are noise on a public-facing diff
// (§4.4 "Federation-directive filtering"). Historical versions of
// federation subgraphs leaked these into the published schema; filtering
// them keeps the change list focused on the application schema.
var federationInternalNames = map[string]bool{
	"_Service":    true,
	"_Entity":     true,
	"_Any":        true,
	"_entities":   true,
	"_service":    true,
	"@key":        true,
	"@external":   true,
	"@requires":   true,
	"@provides":   true,
	"@extends":    true,
	"@shareable":  true,
	"@inaccessible": true,
	"@override":   true,
	"@tag":        true,
}

// FilterOutFederationChanges drops changes whose path references a known
// federation-internal type or directive. Applied only when the check
// request sets FilterOutFederationChanges; every model variant honors the
// flag the same way and none turns it on by default.
func FilterOutFederationChanges(changes []registry.SchemaChange) []registry.SchemaChange {
	out := make([]registry.SchemaChange, 0, len(changes))
	for _, c := range changes {
		if referencesFederationInternal(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func referencesFederationInternal(c registry.SchemaChange) bool {
	for name := range federationInternalNames {
		if strings.HasPrefix(name, "@") {
			if containsDirectiveToken(c, name) {
				return true
			}
			continue
		}
		if strings.Contains(c.Path, name) {
			return true
		}
		if tn, ok := c.Meta["typeName"].(string); ok && tn == name {
			return true
		}
	}
	return false
}

func containsDirectiveToken(c registry.SchemaChange, token string) bool {
	return strings.Contains(c.Path, token)
}
