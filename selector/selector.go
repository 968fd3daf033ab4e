package selector

import (
	"errors"
	"fmt"

	"github.com/trickstertwo/xroute/carryforward"
)

// ErrInvalidExpression reports an XPath expression that does not compile.
var ErrInvalidExpression = errors.New("selector: invalid expression")

// ErrInvalidPattern reports a malformed sender pattern entry.
var ErrInvalidPattern = errors.New("selector: invalid sender pattern")

// Target names the document a content selector evaluates.
type Target uint8

const (
	TargetBody Target = iota
	TargetContext
)

func (t Target) String() string {
	if t == TargetContext {
		return "context"
	}
	return "body"
}

// Input is the message state a selector decides on.
type Input struct {
	// Body is the text body.
	Body string
	// AppContext is the application context fragment carried forward.
	AppContext string
	// Context is the carried context, nil for a message that carries none.
	Context *carryforward.Context
}

// Selector admits or rejects a message.
type Selector interface {
	IsSelected(in Input) (bool, error)
}

// Func adapts a plain function to Selector.
type Func func(in Input) (bool, error)

func (f Func) IsSelected(in Input) (bool, error) { return f(in) }

// EvaluationError reports a selector that could not reach a decision. It is
// not a rejection.
type EvaluationError struct {
	Expr   string
	Target Target
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("selector: evaluate %q on %s: %v", e.Expr, e.Target, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
