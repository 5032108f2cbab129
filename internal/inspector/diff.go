// Package inspector implements the diff(existingSchema, incomingSchema,
// usageSelector) operation (§4.3): classifies every structural difference
// between two composed SDL documents, assigns a severity, and consults the
// usage oracle to mark breaking changes that no traffic exercises as
// usage-safe.
package inspector

import (
	"context"
	"sort"
	"strings"

	"github.com/gqlregistry/registry-core/internal/domain/registry"
)

// Diff computes the classified change list between two composed SDL
// documents for a target. ok is false when either side fails to parse,
// matching the diff primitive's skip condition (§4.4).
func Diff(ctx context.Context, targetID string, existingSDL, incomingSDL string, oracle UsageOracle) ([]registry.SchemaChange, bool) {
	if oracle == nil {
		oracle = NoUsageOracle{}
	}

	before, ok1 := parseSchema(existingSDL)
	after, ok2 := parseSchema(incomingSDL)
	if !ok1 || !ok2 {
		return nil, false
	}

	var changes []registry.SchemaChange

	for name, bt := range before.Types {
		at, exists := after.Types[name]
		if !exists {
			changes = append(changes, newChange(registry.ChangeTypeRemoved, registry.SeverityBreaking, name, "",
				map[string]any{"typeName": name}))
			continue
		}
		changes = append(changes, diffType(name, bt, at)...)
	}
	for name := range after.Types {
		if _, exists := before.Types[name]; !exists {
			changes = append(changes, newChange(registry.ChangeTypeAdded, registry.SeveritySafe, name, "",
				map[string]any{"typeName": name}))
		}
	}

	resolveUsageSafety(ctx, targetID, changes, oracle)

	sort.SliceStable(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
	return changes, true
}

func diffType(name string, bt, at *typeDecl) []registry.SchemaChange {
	var changes []registry.SchemaChange

	if bt.Kind != at.Kind {
		changes = append(changes, newChange(registry.ChangeTypeKindChanged, registry.SeverityBreaking, name, "",
			map[string]any{"typeName": name, "old": bt.Kind, "new": at.Kind}))
	}

	if bt.Kind == "enum" || at.Kind == "enum" {
		changes = append(changes, diffEnumValues(name, bt.EnumValues, at.EnumValues)...)
		return changes
	}

	for fname, bf := range bt.Fields {
		af, exists := at.Fields[fname]
		if !exists {
			changes = append(changes, newChange(registry.ChangeFieldRemoved, registry.SeverityBreaking, name, name+"."+fname,
				map[string]any{"typeName": name, "fieldName": fname}))
			continue
		}
		changes = append(changes, diffField(name, fname, bf, af)...)
	}
	for fname := range at.Fields {
		if _, exists := bt.Fields[fname]; !exists {
			changes = append(changes, newChange(registry.ChangeFieldAdded, registry.SeveritySafe, name, name+"."+fname,
				map[string]any{"typeName": name, "fieldName": fname}))
		}
	}

	return changes
}

func diffField(typeName, fieldName string, bf, af *fieldDecl) []registry.SchemaChange {
	var changes []registry.SchemaChange
	path := typeName + "." + fieldName

	if bf.TypeRef != af.TypeRef {
		changes = append(changes, newChange(registry.ChangeFieldTypeChanged, classifyTypeRefChange(bf.TypeRef, af.TypeRef), typeName, path,
			map[string]any{"typeName": typeName, "fieldName": fieldName, "old": bf.TypeRef, "new": af.TypeRef}))
	}
	if !bf.Deprecated && af.Deprecated {
		changes = append(changes, newChange(registry.ChangeFieldDeprecated, registry.SeverityDangerous, typeName, path,
			map[string]any{"typeName": typeName, "fieldName": fieldName}))
	}

	for aname, ba := range bf.Args {
		aa, exists := af.Args[aname]
		if !exists {
			changes = append(changes, newChange(registry.ChangeArgumentRemoved, registry.SeverityBreaking, typeName, path+"."+aname,
				map[string]any{"typeName": typeName, "fieldName": fieldName, "argName": aname}))
			continue
		}
		if ba.TypeRef != aa.TypeRef {
			changes = append(changes, newChange(registry.ChangeArgumentTypeChanged, classifyTypeRefChange(ba.TypeRef, aa.TypeRef), typeName, path+"."+aname,
				map[string]any{"typeName": typeName, "fieldName": fieldName, "argName": aname, "old": ba.TypeRef, "new": aa.TypeRef}))
		}
		if ba.Default != aa.Default {
			changes = append(changes, newChange(registry.ChangeArgumentDefaultValueChange, registry.SeverityDangerous, typeName, path+"."+aname,
				map[string]any{"typeName": typeName, "fieldName": fieldName, "argName": aname, "old": ba.Default, "new": aa.Default}))
		}
	}
	for aname, aa := range af.Args {
		if _, exists := bf.Args[aname]; !exists {
			sev := registry.SeveritySafe
			if strings.HasSuffix(aa.TypeRef, "!") && aa.Default == "" {
				sev = registry.SeverityBreaking
			}
			changes = append(changes, newChange(registry.ChangeArgumentAdded, sev, typeName, path+"."+aname,
				map[string]any{"typeName": typeName, "fieldName": fieldName, "argName": aname}))
		}
	}

	if directiveSetChanged(bf.Directives, af.Directives) {
		changes = append(changes, newChange(registry.ChangeDirectiveUsageChanged, registry.SeverityDangerous, typeName, path,
			map[string]any{"typeName": typeName, "fieldName": fieldName}))
	}

	return changes
}

func diffEnumValues(typeName string, before, after []string) []registry.SchemaChange {
	var changes []registry.SchemaChange
	beforeSet := toSet(before)
	afterSet := toSet(after)

	for _, v := range before {
		if !afterSet[v] {
			changes = append(changes, newChange(registry.ChangeEnumValueRemoved, registry.SeverityBreaking, typeName, typeName+"."+v,
				map[string]any{"typeName": typeName, "value": v}))
		}
	}
	for _, v := range after {
		if !beforeSet[v] {
			changes = append(changes, newChange(registry.ChangeEnumValueAdded, registry.SeverityDangerous, typeName, typeName+"."+v,
				map[string]any{"typeName": typeName, "value": v}))
		}
	}
	return changes
}

// classifyTypeRefChange narrows a required type from nullable to
// non-nullable is Dangerous to consumers that omit the field (it remains
// Breaking for anything beyond simple nullability, since narrowing the
// underlying named type is never safe).
func classifyTypeRefChange(old, new string) registry.Severity {
	oldBase := strings.TrimSuffix(old, "!")
	newBase := strings.TrimSuffix(new, "!")
	if oldBase == newBase {
		if !strings.HasSuffix(old, "!") && strings.HasSuffix(new, "!") {
			return registry.SeverityDangerous
		}
	}
	return registry.SeverityBreaking
}

func directiveSetChanged(before, after []string) bool {
	if len(before) != len(after) {
		return true
	}
	bs := toSet(before)
	for _, d := range after {
		if !bs[d] {
			return true
		}
	}
	return false
}

func toSet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, v := range in {
		out[v] = true
	}
	return out
}

func newChange(t registry.ChangeType, sev registry.Severity, typeName, path string, meta map[string]any) registry.SchemaChange {
	return registry.SchemaChange{
		ID:       registry.ChangeID(t, meta),
		Type:     t,
		Severity: sev,
		Meta:     meta,
		Path:     path,
	}
}

// resolveUsageSafety consults the usage oracle for every Breaking change and
// sets IsSafeBasedOnUsage when no traffic within the target's validation
// window exercises the affected coordinate (§4.3). Oracle failures leave a
// change usage-unsafe — the conservative outcome.
func resolveUsageSafety(ctx context.Context, targetID string, changes []registry.SchemaChange, oracle UsageOracle) {
	for i := range changes {
		if changes[i].Severity != registry.SeverityBreaking {
			continue
		}
		coord := coordinateFor(changes[i])
		hasTraffic, err := oracle.HasTrafficSince(ctx, targetID, coord)
		if err != nil {
			continue
		}
		changes[i].IsSafeBasedOnUsage = !hasTraffic
	}
}

func coordinateFor(c registry.SchemaChange) UsageCoordinate {
	coord := UsageCoordinate{}
	if v, ok := c.Meta["typeName"].(string); ok {
		coord.TypeName = v
	}
	if v, ok := c.Meta["fieldName"].(string); ok {
		coord.FieldName = v
	}
	return coord
}
