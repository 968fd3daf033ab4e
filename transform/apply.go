package transform

import (
	"errors"
	"fmt"

	"github.com/trickstertwo/xroute/message"
)

// step is one planned mutation, values already converted.
type step struct {
	kind  CommandKind
	name  string
	value any
}

// plan converts parsed commands into typed mutations. Nothing is applied
// when any command is unsupported or carries an unconvertible value.
func plan(cmds *Commands) ([]step, error) {
	steps := make([]step, 0, len(cmds.Items))
	for _, c := range cmds.Items {
		switch c.Kind {
		case CommandProperty:
			v, err := message.ParseValue(c.Type, c.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: Property %q as %s: %v", ErrInvalidCommand, c.Name, c.Type, err)
			}
			steps = append(steps, step{kind: c.Kind, name: c.Name, value: v})
		case CommandCorrelationID, CommandText:
			steps = append(steps, step{kind: c.Kind, value: c.Value})
		case CommandRemoveProperty:
			return nil, &UnsupportedOperationError{Command: c.Kind.String(), Name: c.Name}
		}
	}
	return steps, nil
}

// journal records how to undo each mutation made to a message.
type journal struct {
	undo []func() error
}

// rollback undoes recorded mutations newest first.
func (j *journal) rollback() error {
	var errs []error
	for i := len(j.undo) - 1; i >= 0; i-- {
		if err := j.undo[i](); err != nil {
			errs = append(errs, err)
		}
	}
	j.undo = nil
	return errors.Join(errs...)
}

func (j *journal) setProperty(m message.Message, name string, v any) error {
	prev, existed, err := m.Property(name)
	if err != nil {
		return err
	}
	if err := m.SetProperty(name, v); err != nil {
		return err
	}
	j.undo = append(j.undo, func() error {
		if existed {
			return m.SetProperty(name, prev)
		}
		return m.RemoveProperty(name)
	})
	return nil
}

func (j *journal) setHeader(m message.Message, f message.HeaderField, v any) error {
	prev, err := m.Header(f)
	if err != nil {
		return err
	}
	if err := m.SetHeader(f, v); err != nil {
		return err
	}
	j.undo = append(j.undo, func() error { return m.SetHeader(f, prev) })
	return nil
}

func (j *journal) setText(m message.Message, s string) error {
	prev, err := m.Text()
	if err != nil {
		return err
	}
	if err := m.SetText(s); err != nil {
		return err
	}
	j.undo = append(j.undo, func() error { return m.SetText(prev) })
	return nil
}

func (j *journal) apply(m message.Message, steps []step) error {
	for _, s := range steps {
		var err error
		switch s.kind {
		case CommandProperty:
			err = j.setProperty(m, s.name, s.value)
		case CommandCorrelationID:
			err = j.setHeader(m, message.HeaderCorrelationID, s.value)
		case CommandText:
			err = j.setText(m, s.value.(string))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
