// Package checks implements the Registry Checks primitives (§4.4): each
// returns one of three outcomes — completed, failed, or skipped — over
// pure inputs plus the three capability interfaces (Orchestrator,
// PolicyEngine, UsageOracle) passed in explicitly by the caller.
package checks

// Outcome is the sum type every primitive returns. Exactly one of the three
// constructors below should be used to build one; Kind discriminates which
// branch is populated.
type Outcome struct {
	Kind   OutcomeKind
	Result any
	Reason string
}

type OutcomeKind string

const (
	KindCompleted OutcomeKind = "completed"
	KindFailed    OutcomeKind = "failed"
	KindSkipped   OutcomeKind = "skipped"
)

func Completed(result any) Outcome { return Outcome{Kind: KindCompleted, Result: result} }
func Failed(reason string) Outcome { return Outcome{Kind: KindFailed, Reason: reason} }
func Skipped() Outcome             { return Outcome{Kind: KindSkipped} }

func (o Outcome) Succeeded() bool { return o.Kind == KindCompleted || o.Kind == KindSkipped }
func (o Outcome) Failed() bool    { return o.Kind == KindFailed }
