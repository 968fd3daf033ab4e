package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/trickstertwo/xroute/carryforward"
	"github.com/trickstertwo/xroute/message"
)

// Target selects what a body program's result replaces.
type Target uint8

const (
	// TargetBody replaces the text body.
	TargetBody Target = iota
	// TargetContext replaces the application context carried forward.
	TargetContext
)

func (t Target) String() string {
	if t == TargetContext {
		return "context"
	}
	return "body"
}

// Config describes one transform operation.
type Config struct {
	Target          Target
	BodyProgram     string
	PropertyProgram string
	// Engine names a registered engine; empty selects DefaultEngine.
	Engine string
	// DefaultAppContext is the root input when the message carries no
	// application context.
	DefaultAppContext string
}

// Transformer runs the property and body programs of one operation.
// It is immutable and safe for concurrent use.
type Transformer struct {
	cfg   Config
	body  Program
	props Program
}

// New compiles the configured programs.
func New(cfg Config) (*Transformer, error) {
	t := &Transformer{cfg: cfg}
	if strings.TrimSpace(cfg.BodyProgram) == "" && strings.TrimSpace(cfg.PropertyProgram) == "" {
		return t, nil
	}
	eng, err := NewEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.PropertyProgram) != "" {
		if t.props, err = eng.Compile(cfg.PropertyProgram); err != nil {
			return nil, fmt.Errorf("property program: %w", err)
		}
	}
	if strings.TrimSpace(cfg.BodyProgram) != "" {
		if t.body, err = eng.Compile(cfg.BodyProgram); err != nil {
			return nil, fmt.Errorf("body program: %w", err)
		}
	}
	return t, nil
}

// Configured reports whether any program is set.
func (t *Transformer) Configured() bool { return t.body != nil || t.props != nil }

func (t *Transformer) Target() Target { return t.cfg.Target }

// Result describes a successful Apply.
type Result struct {
	// Applied counts the property commands applied.
	Applied int
	// BodyReplaced is set when the body program ran.
	BodyReplaced bool
	// InputErrors are message reads that failed while binding inputs; the
	// affected inputs were left empty.
	InputErrors []error
}

// Apply runs the property program, applies its commands to m, then runs the
// body program. On any failure every change already made is rolled back and
// the error is returned, so m is left as it was.
func (t *Transformer) Apply(ctx context.Context, m message.Message) (Result, error) {
	var res Result
	if !t.Configured() {
		return res, nil
	}
	j := &journal{}
	fail := func(err error) (Result, error) {
		if rbErr := j.rollback(); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("transform: rollback: %w", rbErr))
		}
		return res, err
	}

	if t.props != nil {
		in, inErrs := BindInputs(m, t.cfg.DefaultAppContext)
		res.InputErrors = append(res.InputErrors, inErrs...)
		out, err := t.props.Executable().Execute(ctx, in)
		if err != nil {
			return fail(&EvaluationError{Program: ProgramProperty, Err: err})
		}
		cmds, err := ParseCommands(out)
		if err != nil {
			return fail(&EvaluationError{Program: ProgramProperty, Err: err})
		}
		steps, err := plan(cmds)
		if err != nil {
			var unsupported *UnsupportedOperationError
			if errors.As(err, &unsupported) {
				return fail(err)
			}
			return fail(&EvaluationError{Program: ProgramProperty, Err: err})
		}
		if err := j.apply(m, steps); err != nil {
			return fail(&EvaluationError{Program: ProgramProperty, Err: err})
		}
		res.Applied = len(steps)
	}

	if t.body != nil {
		in, inErrs := BindInputs(m, t.cfg.DefaultAppContext)
		res.InputErrors = append(res.InputErrors, inErrs...)
		out, err := t.body.Executable().Execute(ctx, in)
		if err != nil {
			return fail(&EvaluationError{Program: ProgramBody, Err: err})
		}
		if err := t.replace(j, m, out); err != nil {
			return fail(&EvaluationError{Program: ProgramBody, Err: err})
		}
		res.BodyReplaced = true
	}
	return res, nil
}

func (t *Transformer) replace(j *journal, m message.Message, out string) error {
	if t.cfg.Target == TargetBody {
		return j.setText(m, out)
	}
	c, found, err := carryforward.FromMessage(m)
	if err != nil {
		return err
	}
	if !found {
		c = carryforward.New()
	}
	c.SetAppContext(out)
	s, err := carryforward.Encode(c)
	if err != nil {
		return err
	}
	return j.setProperty(m, message.CarryForwardContext.Name, s)
}
