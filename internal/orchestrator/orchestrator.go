// Package orchestrator implements the composeAndValidate pluggable interface
// (§4.2): Single, Federation, and Stitching variants, plus an external
// HTTP delegate that hands composition to a user-controlled endpoint signed
// with HMAC.
package orchestrator

import (
	"context"
)

// ErrorSource classifies where a composition/validation error originated.
type ErrorSource string

const (
	ErrorSourceGraphQL     ErrorSource = "graphql"
	ErrorSourceComposition ErrorSource = "composition"
)

// CompositionError is one entry of the Result.Errors list.
type CompositionError struct {
	Message string      `json:"message"`
	Source  ErrorSource `json:"source"`
}

// Schema is one named SDL input to composeAndValidate — typically one
// subgraph/service, or the sole entry for a Single project.
type Schema struct {
	Name string
	SDL  string
	URL  string
}

// ContractInput selects a named filtered view of the composed schema.
type ContractInput struct {
	ID     string
	Filter ContractFilter
}

// ContractFilter narrows a composed supergraph down to the fields/types a
// contract is allowed to expose. The zero value excludes nothing.
type ContractFilter struct {
	IncludeTags []string
	ExcludeTags []string
}

// ContractResult is the filtered composition output for one ContractInput.
type ContractResult struct {
	ID         string
	SDL        string
	Supergraph string
	Errors     []CompositionError
}

// ExternalComposition delegates composeAndValidate to a user HTTP endpoint
// signed with HMAC (§4.2, §6).
type ExternalComposition struct {
	Endpoint string
	Secret   string
}

// Options configures one composeAndValidate call.
type Options struct {
	// External, when non-nil, delegates composition to a remote endpoint
	// instead of running the in-process composer.
	External *ExternalComposition
	// Native is read only by ExternalDelegate, which sends composition type
	// "federation" when it is set and "stitching" otherwise. The in-process
	// composers ignore it, and there is no legacy remote composer to select.
	Native bool
	// Contracts requests parallel filtered compositions.
	Contracts []ContractInput
}

// Result is the composeAndValidate() return value.
type Result struct {
	SDL        string
	Supergraph string
	Tags       []string
	Errors     []CompositionError
	Contracts  []ContractResult
}

// Composable reports whether r has no blocking errors. Composition may
// return both non-empty Errors and a non-null SDL (the legacy case);
// consumers treat the version as non-composable but may still persist the
// SDL for diagnostics (§4.2).
func (r Result) Composable() bool { return len(r.Errors) == 0 }

// Orchestrator is the pluggable composeAndValidate interface (§4.2). Single,
// Federation, and Stitching are concrete variants; an external delegate
// wraps any of them when Options.External is set.
type Orchestrator interface {
	ComposeAndValidate(ctx context.Context, schemas []Schema, opts Options) (*Result, error)
}

// OrchestratorUnavailable wraps a transport failure reaching an external
// composer. Callers retry on this; they do not retry validation errors
// (§4.2, §7).
type OrchestratorUnavailable struct {
	Endpoint string
	Err      error
}

func (e *OrchestratorUnavailable) Error() string {
	if e == nil {
		return "orchestrator unavailable"
	}
	return "orchestrator unavailable (" + e.Endpoint + "): " + e.Err.Error()
}

func (e *OrchestratorUnavailable) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *OrchestratorUnavailable) HTTPStatusCode() int { return 0 }
