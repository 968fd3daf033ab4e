package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/trickstertwo/xroute/message"
)

// CommandSchemaVersion is the newest property command schema understood.
//
// Version 1 documents have any root element with an optional version
// attribute (default 1) and these children:
//
//	<Property name="N" type="T">value</Property>   (or value="...")
//	<CorrelationID>value</CorrelationID>
//	<Text>value</Text>
//	<RemoveProperty name="N"/>
//
// T is one of Byte, Short, Integer, Long, Float, Double, Boolean or String,
// matched case-insensitively; a missing or unknown type means String.
// Unknown elements are skipped so newer producers stay readable.
const CommandSchemaVersion = 1

// CommandKind identifies a property command.
type CommandKind uint8

const (
	CommandProperty CommandKind = iota + 1
	CommandCorrelationID
	CommandText
	CommandRemoveProperty
)

func (k CommandKind) String() string {
	switch k {
	case CommandProperty:
		return "Property"
	case CommandCorrelationID:
		return "CorrelationID"
	case CommandText:
		return "Text"
	case CommandRemoveProperty:
		return "RemoveProperty"
	default:
		return fmt.Sprintf("CommandKind(%d)", uint8(k))
	}
}

// Command is one parsed instruction. Name and Type apply to property
// commands only.
type Command struct {
	Kind  CommandKind
	Name  string
	Type  message.PropertyType
	Value string
}

// Commands is a parsed property program result.
type Commands struct {
	Version int
	Items   []Command
}

// ParseCommands parses the output of a property program. Blank output yields
// no commands.
func ParseCommands(doc string) (*Commands, error) {
	out := &Commands{Version: CommandSchemaVersion}
	if strings.TrimSpace(doc) == "" {
		return out, nil
	}

	root, err := xmlquery.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	top := firstElement(root)
	if top == nil {
		return out, nil
	}
	if v := strings.TrimSpace(top.SelectAttr("version")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: version %q", ErrInvalidCommand, v)
		}
		out.Version = n
	}

	for n := top.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		cmd, known, err := parseCommand(n)
		if err != nil {
			return nil, err
		}
		if known {
			out.Items = append(out.Items, cmd)
		}
	}
	return out, nil
}

func parseCommand(n *xmlquery.Node) (Command, bool, error) {
	switch n.Data {
	case "Property":
		name := strings.TrimSpace(n.SelectAttr("name"))
		if name == "" {
			return Command{}, false, fmt.Errorf("%w: Property without name", ErrInvalidCommand)
		}
		typ, ok := message.ParsePropertyType(n.SelectAttr("type"))
		if !ok || typ == message.TypeObject {
			typ = message.TypeString
		}
		value := n.InnerText()
		if hasAttr(n, "value") {
			value = n.SelectAttr("value")
		}
		return Command{Kind: CommandProperty, Name: name, Type: typ, Value: value}, true, nil
	case "CorrelationID":
		return Command{Kind: CommandCorrelationID, Value: n.InnerText()}, true, nil
	case "Text":
		return Command{Kind: CommandText, Value: n.InnerText()}, true, nil
	case "RemoveProperty":
		name := strings.TrimSpace(n.SelectAttr("name"))
		if name == "" {
			return Command{}, false, fmt.Errorf("%w: RemoveProperty without name", ErrInvalidCommand)
		}
		return Command{Kind: CommandRemoveProperty, Name: name}, true, nil
	}
	return Command{}, false, nil
}

func firstElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

func hasAttr(n *xmlquery.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Name.Local == name {
			return true
		}
	}
	return false
}
