package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/gqlregistry/registry-core/internal/schemahelper"
)

// typeDeclRe captures a top-level GraphQL declaration's kind and name, e.g.
// "type Product" or "interface Node". Used only to detect the same type
// declared twice across services during naive composition — it is not a
// full GraphQL parser.
var typeDeclRe = regexp.MustCompile(`(?m)^\s*(type|interface|input|enum|union|scalar)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// Single is the Orchestrator variant for single-schema projects (§4.5.1,
// §4.5.3): there is exactly one service, so composition is identity —
// the incoming SDL is the composed SDL. No supergraph is produced.
type Single struct{}

func (Single) ComposeAndValidate(ctx context.Context, schemas []Schema, opts Options) (*Result, error) {
	if len(schemas) == 0 {
		return &Result{Errors: []CompositionError{{Message: "no schema provided", Source: ErrorSourceGraphQL}}}, nil
	}
	if len(schemas) > 1 {
		return &Result{Errors: []CompositionError{{
			Message: "single project composition requires exactly one service",
			Source:  ErrorSourceComposition,
		}}}, nil
	}
	sdl := schemas[0].SDL
	res := &Result{SDL: sdl}
	return withContracts(res, schemas, opts)
}

// Federation composes a set of subgraph SDLs into one supergraph (§4.5.2,
// §4.5.4). It is a textual composer: it merges declarations and flags a
// type declared identically-named but with conflicting bodies in more than
// one service as a composition error. Real entity-key merging is out of
// scope — this registry tracks and validates schemas, it does not execute
// them.
type Federation struct{}

func (Federation) ComposeAndValidate(ctx context.Context, schemas []Schema, opts Options) (*Result, error) {
	if len(schemas) == 0 {
		return &Result{Errors: []CompositionError{{Message: "no services provided", Source: ErrorSourceGraphQL}}}, nil
	}

	sorted := make([]Schema, len(schemas))
	copy(sorted, schemas)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	errs := detectConflictingDeclarations(sorted)

	hhSchemas := make([]schemahelper.Schema, 0, len(sorted))
	for _, s := range sorted {
		hhSchemas = append(hhSchemas, schemahelper.Schema{Name: s.Name, SDL: s.SDL})
	}
	supergraph := schemahelper.Canonicalize("", hhSchemas)

	res := &Result{
		SDL:        supergraph,
		Supergraph: supergraph,
		Errors:     errs,
	}
	return withContracts(res, schemas, opts)
}

// Stitching composes a set of service SDLs without building a supergraph
// document — each service schema remains independently addressable and the
// "composed" SDL is a concatenation for diagnostic/diff purposes only
// (§4.5.3, §4.5.4 "legacy" note: stitching predates federation's supergraph
// concept in this registry's project history).
type Stitching struct{}

func (Stitching) ComposeAndValidate(ctx context.Context, schemas []Schema, opts Options) (*Result, error) {
	if len(schemas) == 0 {
		return &Result{Errors: []CompositionError{{Message: "no services provided", Source: ErrorSourceGraphQL}}}, nil
	}

	sorted := make([]Schema, len(schemas))
	copy(sorted, schemas)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	errs := detectConflictingDeclarations(sorted)

	hhSchemas := make([]schemahelper.Schema, 0, len(sorted))
	for _, s := range sorted {
		hhSchemas = append(hhSchemas, schemahelper.Schema{Name: s.Name, SDL: s.SDL})
	}
	merged := schemahelper.Canonicalize("", hhSchemas)

	res := &Result{SDL: merged, Errors: errs}
	return withContracts(res, schemas, opts)
}

// detectConflictingDeclarations flags a type name declared with differing
// bodies by more than one service as a composition error. Identical
// redeclarations (the normal federation "extend" case) are not an error.
func detectConflictingDeclarations(sorted []Schema) []CompositionError {
	seen := map[string]string{} // name -> owning service that first declared it
	bodies := map[string]string{}
	var errs []CompositionError

	for _, s := range sorted {
		decls := typeDeclRe.FindAllStringSubmatchIndex(s.SDL, -1)
		for i, m := range decls {
			name := s.SDL[m[4]:m[5]]
			end := len(s.SDL)
			if i+1 < len(decls) {
				end = decls[i+1][0]
			}
			norm := normalizeForCompare(s.SDL[m[0]:end])
			if owner, ok := seen[name]; ok {
				if bodies[name] != norm {
					errs = append(errs, CompositionError{
						Message: fmt.Sprintf("type %q declared by both %q and %q with differing definitions", name, owner, s.Name),
						Source:  ErrorSourceComposition,
					})
				}
				continue
			}
			seen[name] = s.Name
			bodies[name] = norm
		}
	}
	return errs
}

func normalizeForCompare(sdl string) string {
	return strings.Join(strings.Fields(sdl), " ")
}

func withContracts(res *Result, schemas []Schema, opts Options) (*Result, error) {
	if len(opts.Contracts) == 0 {
		return res, nil
	}
	res.Contracts = make([]ContractResult, 0, len(opts.Contracts))
	for _, c := range opts.Contracts {
		res.Contracts = append(res.Contracts, applyContractFilter(res, c))
	}
	return res, nil
}

// applyContractFilter produces a filtered view of a composed SDL by
// dropping every line tagged (via a trailing "# tag:<name>" marker, the
// convention this registry's schemas use for contract annotation) with an
// excluded tag, or tagged without any of the include tags. Untagged lines
// are kept. Filtering is line by line: a tagged type header line is dropped
// without its field lines.
func applyContractFilter(res *Result, c ContractInput) ContractResult {
	if len(c.Filter.IncludeTags) == 0 && len(c.Filter.ExcludeTags) == 0 {
		return ContractResult{ID: c.ID, SDL: res.SDL, Supergraph: res.Supergraph, Errors: res.Errors}
	}

	lines := strings.Split(res.SDL, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if shouldExcludeLine(l, c.Filter) {
			continue
		}
		out = append(out, l)
	}
	filtered := strings.Join(out, "\n")
	return ContractResult{ID: c.ID, SDL: filtered, Errors: res.Errors}
}

func shouldExcludeLine(line string, f ContractFilter) bool {
	for _, tag := range f.ExcludeTags {
		if strings.Contains(line, "tag:"+tag) {
			return true
		}
	}
	if len(f.IncludeTags) == 0 {
		return false
	}
	hasTag := false
	for _, tag := range f.IncludeTags {
		if strings.Contains(line, "tag:"+tag) {
			hasTag = true
			break
		}
	}
	return strings.Contains(line, "tag:") && !hasTag
}
