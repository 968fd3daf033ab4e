package selector

import (
	"fmt"
	"maps"
	"math"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// XPath selects messages whose target document satisfies a boolean XPath
// query.
//
// Compiled expressions hold evaluation state, so every call compiles its own.
type XPath struct {
	expr       string
	namespaces map[string]string
	target     Target
}

// NewXPath validates expr against the namespace prefix map and returns a
// selector for target.
func NewXPath(expr string, namespaces map[string]string, target Target) (*XPath, error) {
	s := &XPath{
		expr:       strings.TrimSpace(expr),
		namespaces: maps.Clone(namespaces),
		target:     target,
	}
	if s.expr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidExpression)
	}
	if _, err := s.compile(); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, s.expr, err)
	}
	return s, nil
}

func (s *XPath) Expr() string   { return s.expr }
func (s *XPath) Target() Target { return s.target }

func (s *XPath) compile() (*xpath.Expr, error) {
	if len(s.namespaces) == 0 {
		return xpath.Compile(s.expr)
	}
	return xpath.CompileWithNS(s.expr, s.namespaces)
}

// IsSelected evaluates the query. Parse and evaluation failures are returned
// as *EvaluationError.
func (s *XPath) IsSelected(in Input) (bool, error) {
	doc := in.Body
	if s.target == TargetContext {
		doc = in.AppContext
	}
	node, err := xmlquery.Parse(strings.NewReader(doc))
	if err != nil {
		return false, s.evalErr(err)
	}
	expr, err := s.compile()
	if err != nil {
		return false, s.evalErr(err)
	}
	res, err := evaluate(expr, xmlquery.CreateXPathNavigator(node))
	if err != nil {
		return false, s.evalErr(err)
	}
	return truthy(res), nil
}

func (s *XPath) evalErr(err error) error {
	return &EvaluationError{Expr: s.expr, Target: s.target, Err: err}
}

// evaluate runs expr, converting a panic inside the evaluator into an error.
func evaluate(expr *xpath.Expr, nav xpath.NodeNavigator) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xpath panic: %v", r)
		}
	}()
	return expr.Evaluate(nav), nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	case *xpath.NodeIterator:
		return x.MoveNext()
	default:
		return false
	}
}
