package xroute

import "fmt"

// OutcomeKind is the result of running one operation on a message.
type OutcomeKind uint8

const (
	// Continue passes the message to the next operation.
	Continue OutcomeKind = iota
	// Filtered drops the message for this route. It is a decision, not a
	// failure.
	Filtered
	// Failed drops the message because the operation could not complete.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Filtered:
		return "filtered"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(k))
	}
}

// Outcome is returned by every operation handler.
type Outcome struct {
	Kind   OutcomeKind
	Reason string // set for Filtered
	Err    error  // set for Failed
}

// Proceed is the Continue outcome.
func Proceed() Outcome { return Outcome{Kind: Continue} }

// Filter returns a Filtered outcome with a reason for the logs.
func Filter(reason string) Outcome { return Outcome{Kind: Filtered, Reason: reason} }

// Fail returns a Failed outcome. A nil err is replaced so Failed always
// carries an error.
func Fail(err error) Outcome {
	if err == nil {
		err = fmt.Errorf("xroute: operation failed")
	}
	return Outcome{Kind: Failed, Err: err}
}

func (o Outcome) IsContinue() bool { return o.Kind == Continue }
func (o Outcome) IsFiltered() bool { return o.Kind == Filtered }
func (o Outcome) IsFailed() bool   { return o.Kind == Failed }

func (o Outcome) String() string {
	switch o.Kind {
	case Filtered:
		return "filtered: " + o.Reason
	case Failed:
		return fmt.Sprintf("failed: %v", o.Err)
	default:
		return o.Kind.String()
	}
}
