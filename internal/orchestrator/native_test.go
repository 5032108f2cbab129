package orchestrator

import (
	"context"
	"strings"
	"testing"
)

func TestSingle_ComposeAndValidate_PassesThrough(t *testing.T) {
	sdl := "type Query { id: ID }"
	res, err := Single{}.ComposeAndValidate(context.Background(), []Schema{{Name: "svc", SDL: sdl}}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SDL != sdl {
		t.Fatalf("expected passthrough SDL, got %q", res.SDL)
	}
	if !res.Composable() {
		t.Fatalf("expected composable result")
	}
}

func TestSingle_ComposeAndValidate_RejectsMultipleServices(t *testing.T) {
	res, err := Single{}.ComposeAndValidate(context.Background(), []Schema{
		{Name: "a", SDL: "type Query { a: ID }"},
		{Name: "b", SDL: "type Query { b: ID }"},
	}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Composable() {
		t.Fatalf("expected a composition error for multiple services")
	}
}

func TestFederation_ComposeAndValidate_MergesServicesDeterministically(t *testing.T) {
	schemas := []Schema{
		{Name: "inventory", SDL: "type Product { sku: ID }"},
		{Name: "accounts", SDL: "type User { id: ID }"},
	}
	reversed := []Schema{schemas[1], schemas[0]}

	res1, err := Federation{}.ComposeAndValidate(context.Background(), schemas, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res2, err := Federation{}.ComposeAndValidate(context.Background(), reversed, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res1.Supergraph != res2.Supergraph {
		t.Fatalf("expected supergraph to be independent of input ordering")
	}
	if !res1.Composable() {
		t.Fatalf("expected composable result, got errors: %+v", res1.Errors)
	}
}

func TestFederation_ComposeAndValidate_FlagsConflictingDeclarations(t *testing.T) {
	schemas := []Schema{
		{Name: "a", SDL: "type Product { sku: ID }"},
		{Name: "b", SDL: "type Product { sku: String }"},
	}
	res, err := Federation{}.ComposeAndValidate(context.Background(), schemas, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Composable() {
		t.Fatalf("expected a composition conflict for differently-defined Product")
	}
	if res.Errors[0].Source != ErrorSourceComposition {
		t.Fatalf("expected composition-sourced error, got %q", res.Errors[0].Source)
	}
}

func TestFederation_ComposeAndValidate_AllowsIdenticalRedeclaration(t *testing.T) {
	schemas := []Schema{
		{Name: "a", SDL: "type Product { sku: ID }"},
		{Name: "b", SDL: "type Product { sku: ID }"},
	}
	res, err := Federation{}.ComposeAndValidate(context.Background(), schemas, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Composable() {
		t.Fatalf("expected identical redeclaration to be allowed, got errors: %+v", res.Errors)
	}
}

func TestApplyContractFilter_DropsExcludedTagLines(t *testing.T) {
	res := &Result{SDL: "type Query {\n  public: ID\n  internalOnly: ID # tag:internal\n}"}
	out := applyContractFilter(res, ContractInput{ID: "public-api", Filter: ContractFilter{ExcludeTags: []string{"internal"}}})
	if strings.Contains(out.SDL, "internalOnly") {
		t.Fatalf("expected internal-tagged line to be dropped, got: %q", out.SDL)
	}
	if !strings.Contains(out.SDL, "public") {
		t.Fatalf("expected untagged lines to survive filtering")
	}
}
