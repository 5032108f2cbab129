package inspector

import (
	"regexp"
	"strings"
)

// parsedSchema is a shallow structural index of an SDL document: enough to
// diff field/type/argument/enum shape without a full GraphQL AST. There is
// no GraphQL parsing library in this registry's dependency set — the
// registry tracks and validates schema text, it never executes a query
// against it, so a textual index is sufficient (see DESIGN.md).
type parsedSchema struct {
	Types map[string]*typeDecl
}

type typeDecl struct {
	Kind       string // object, interface, input, enum, union, scalar
	Name       string
	Fields     map[string]*fieldDecl
	FieldOrder []string
	EnumValues []string
	Directives []string
}

type fieldDecl struct {
	Name       string
	TypeRef    string
	Args       map[string]*argDecl
	ArgOrder   []string
	Deprecated bool
	Directives []string
}

type argDecl struct {
	Name    string
	TypeRef string
	Default string
}

var (
	typeHeaderRe = regexp.MustCompile(`(?m)^\s*(type|interface|input|enum|union|scalar)\s+([A-Za-z_][A-Za-z0-9_]*)\s*(implements\s+[A-Za-z0-9_&\s]+)?\s*(@[A-Za-z0-9_]+(\([^)]*\))?)*\s*\{`)
	fieldLineRe  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(\(([^)]*)\))?\s*:\s*([A-Za-z0-9_!\[\]]+)\s*(@[A-Za-z0-9_]+(\([^)]*\))?)*`)
	argPairRe    = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*:\s*([A-Za-z0-9_!\[\]]+)\s*(=\s*([^,]+))?`)
	directiveRe  = regexp.MustCompile(`@[A-Za-z0-9_]+(\([^)]*\))?`)
	enumValueRe  = regexp.MustCompile(`^[A-Z][A-Z0-9_]*`)
)

// parseSchema builds a parsedSchema from raw SDL text. Unparseable input
// (malformed braces) returns ok=false so callers can treat it as "fails to
// parse" per the diff primitive's skip condition (§4.4).
func parseSchema(sdl string) (parsedSchema, bool) {
	out := parsedSchema{Types: map[string]*typeDecl{}}
	if strings.TrimSpace(sdl) == "" {
		return out, false
	}

	idx := typeHeaderRe.FindAllStringSubmatchIndex(sdl, -1)
	for _, m := range idx {
		kind := sdl[m[2]:m[3]]
		name := sdl[m[4]:m[5]]
		bodyStart := m[1] // position right after the opening "{"
		bodyEnd := matchingBrace(sdl, bodyStart-1)
		if bodyEnd < 0 {
			return out, false
		}
		body := sdl[bodyStart:bodyEnd]

		td := &typeDecl{Kind: kind, Name: name, Fields: map[string]*fieldDecl{}}
		td.Directives = directiveRe.FindAllString(sdl[m[0]:bodyStart], -1)

		if kind == "enum" {
			for _, line := range splitLines(body) {
				if ev := enumValueRe.FindString(line); ev != "" {
					td.EnumValues = append(td.EnumValues, ev)
				}
			}
		} else {
			for _, line := range splitLines(body) {
				fm := fieldLineRe.FindStringSubmatch(line)
				if fm == nil {
					continue
				}
				fd := &fieldDecl{
					Name:       fm[1],
					TypeRef:    fm[4],
					Args:       map[string]*argDecl{},
					Directives: directiveRe.FindAllString(line, -1),
				}
				for _, d := range fd.Directives {
					if strings.HasPrefix(d, "@deprecated") {
						fd.Deprecated = true
					}
				}
				if fm[3] != "" {
					for _, am := range argPairRe.FindAllStringSubmatch(fm[3], -1) {
						ad := &argDecl{Name: am[1], TypeRef: am[2]}
						if len(am) > 4 {
							ad.Default = strings.TrimSpace(am[4])
						}
						fd.Args[ad.Name] = ad
						fd.ArgOrder = append(fd.ArgOrder, ad.Name)
					}
				}
				td.Fields[fd.Name] = fd
				td.FieldOrder = append(td.FieldOrder, fd.Name)
			}
		}
		out.Types[name] = td
	}
	return out, true
}

func splitLines(body string) []string {
	raw := strings.Split(body, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// matchingBrace returns the index of the "}" matching the "{" at openIdx,
// or -1 if unbalanced.
func matchingBrace(s string, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
