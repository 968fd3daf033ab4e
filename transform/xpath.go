package transform

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// XPathEngineName selects programs that are a single XPath expression
// evaluated against the root input document.
const XPathEngineName = "xpath"

// XPathEngine compiles XPath expressions. A node-set result renders as the
// concatenated outer XML of its nodes, scalars render as text.
type XPathEngine struct{}

func (XPathEngine) Name() string { return XPathEngineName }

func (XPathEngine) Compile(src string) (Program, error) {
	src = strings.TrimSpace(src)
	if _, err := xpath.Compile(src); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}
	return xpathProgram{expr: src}, nil
}

type xpathProgram struct {
	expr string
}

func (p xpathProgram) Executable() Executable {
	return &xpathExecutable{expr: p.expr}
}

// xpathExecutable compiles lazily: an *xpath.Expr keeps iteration state and
// must not be shared.
type xpathExecutable struct {
	expr string
}

func (e *xpathExecutable) Execute(_ context.Context, in *Inputs) (string, error) {
	return evalXPath(e.expr, in.Root)
}

// evalXPath evaluates expr against doc and renders the result as text.
func evalXPath(expr, doc string) (out string, err error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return "", err
	}
	root, err := xmlquery.Parse(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xpath panic: %v", r)
		}
	}()

	switch v := compiled.Evaluate(xmlquery.CreateXPathNavigator(root)).(type) {
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case string:
		return v, nil
	case *xpath.NodeIterator:
		var b strings.Builder
		for v.MoveNext() {
			nav, ok := v.Current().(*xmlquery.NodeNavigator)
			if !ok {
				b.WriteString(v.Current().Value())
				continue
			}
			b.WriteString(nav.Current().OutputXML(true))
		}
		return b.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}
