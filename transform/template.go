package transform

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"text/template"
)

// TemplateEngineName selects Go text/template programs. The template data is
// the *Inputs of the invocation; besides the builtins it can call:
//
//	xpath EXPR DOC   evaluate an XPath expression against an XML document
//	b64enc S         base64 encode
//	b64dec S         base64 decode
//	xmlesc S         escape S for use in XML text or attributes
//	prop NAME        a message property rendered as text
//
// A property program emits command XML, for example:
//
//	<Commands>
//	  <Property name="ORDER_ID" type="Long">{{xpath "string(/order/id)" .Body}}</Property>
//	  <CorrelationID>{{prop "DOCUMENT_ID"}}</CorrelationID>
//	</Commands>
const TemplateEngineName = "template"

// TemplateEngine compiles text/template programs.
type TemplateEngine struct{}

func (TemplateEngine) Name() string { return TemplateEngineName }

func (TemplateEngine) Compile(src string) (Program, error) {
	t, err := template.New("transform").
		Option("missingkey=zero").
		Funcs(templateFuncs(nil)).
		Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}
	return templateProgram{tmpl: t}, nil
}

type templateProgram struct {
	tmpl *template.Template
}

func (p templateProgram) Executable() Executable {
	return &templateExecutable{src: p.tmpl}
}

type templateExecutable struct {
	src *template.Template
}

// Execute clones the parsed template so that prop can be bound to these
// inputs without touching the shared program.
func (e *templateExecutable) Execute(_ context.Context, in *Inputs) (string, error) {
	t, err := e.src.Clone()
	if err != nil {
		return "", err
	}
	t.Funcs(templateFuncs(in))

	var buf bytes.Buffer
	if err := t.Execute(&buf, in); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func templateFuncs(in *Inputs) template.FuncMap {
	return template.FuncMap{
		"xpath":  evalXPath,
		"b64enc": func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) },
		"b64dec": func(s string) (string, error) {
			b, err := base64.StdEncoding.DecodeString(s)
			return string(b), err
		},
		"xmlesc": func(s string) (string, error) {
			var buf bytes.Buffer
			if err := xml.EscapeText(&buf, []byte(s)); err != nil {
				return "", err
			}
			return buf.String(), nil
		},
		"prop": func(name string) string {
			if in == nil {
				return ""
			}
			return in.Prop(name)
		},
	}
}
