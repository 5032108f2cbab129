package orchestrator

import "context"

// Bound fixes a project's composer configuration (native-vs-legacy
// federation, external delegate settings) so callers can invoke
// ComposeAndValidate without re-deriving it from project settings on every
// call (§4.2, §9 "Polymorphism").
type Bound struct {
	Inner    Orchestrator
	Native   bool
	External *ExternalComposition
}

func (b Bound) ComposeAndValidate(ctx context.Context, schemas []Schema, opts Options) (*Result, error) {
	if opts.External == nil {
		opts.External = b.External
	}
	if !opts.Native {
		opts.Native = b.Native
	}
	return b.Inner.ComposeAndValidate(ctx, schemas, opts)
}
