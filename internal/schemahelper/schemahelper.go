// Package schemahelper canonicalizes a set of GraphQL schema documents into a
// stable, checksum-able form (§4.1). Two logically equivalent schema sets —
// regardless of service ordering, whitespace, or declaration order within a
// document — must produce byte-identical canonical forms.
package schemahelper

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// Schema is one named SDL document going into a canonicalization pass
// (typically one subgraph/service; a single-schema project passes exactly
// one).
type Schema struct {
	Name string
	SDL  string
}

var (
	blankLineRe = regexp.MustCompile(`\n{2,}`)
	wsRunRe     = regexp.MustCompile(`[ \t]+`)
)

// Canonicalize sorts services by name, sorts field/type declarations
// alphabetically within each document, normalizes whitespace, and prepends
// baseSchema (never sorted — it is a fixed prefix). The result is
// deterministic: shuffling schemas or re-declaring types in another order in
// the source never changes the output.
func Canonicalize(base string, schemas []Schema) string {
	ordered := make([]Schema, len(schemas))
	copy(ordered, schemas)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	var b strings.Builder
	if trimmed := normalizeWhitespace(base); trimmed != "" {
		b.WriteString(trimmed)
		b.WriteString("\n")
	}
	for _, s := range ordered {
		b.WriteString(canonicalizeOne(s.SDL))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// canonicalizeOne puts every "{" and "}" at a line end, normalizes
// whitespace, sorts the lines inside each brace-delimited block, then sorts
// the top-level declarations alphabetically by their text. This is a
// textual, not a parsing, canonicalization: it is sufficient for a stable
// checksum without depending on a full GraphQL AST library.
func canonicalizeOne(sdl string) string {
	normalized := normalizeWhitespace(strings.NewReplacer("{", "{\n", "}", "\n}\n").Replace(sdl))
	if normalized == "" {
		return ""
	}
	var decls, block []string
	for _, l := range splitDeclarations(normalized) {
		if len(block) == 0 && !strings.HasSuffix(l, "{") {
			decls = append(decls, l)
			continue
		}
		block = append(block, l)
		if l == "}" {
			sort.Strings(block[1 : len(block)-1])
			decls = append(decls, strings.Join(block, "\n"))
			block = nil
		}
	}
	decls = append(decls, block...)
	sort.Strings(decls)
	return strings.Join(decls, "\n")
}

// splitDeclarations returns the non-empty lines of a normalized SDL
// document, each trimmed of surrounding whitespace.
func splitDeclarations(normalized string) []string {
	lines := strings.Split(normalized, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

func normalizeWhitespace(sdl string) string {
	sdl = strings.ReplaceAll(sdl, "\r\n", "\n")
	sdl = blankLineRe.ReplaceAllString(sdl, "\n")
	sdl = wsRunRe.ReplaceAllString(sdl, " ")
	return strings.TrimSpace(sdl)
}

// Checksum computes the stable checksum of a canonical form (§4.1, §8 I3).
func Checksum(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// ChecksumSchemas is the common case: canonicalize then checksum in one call.
func ChecksumSchemas(base string, schemas []Schema) (canonical string, checksum string) {
	canonical = Canonicalize(base, schemas)
	return canonical, Checksum(canonical)
}
