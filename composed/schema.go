// Package composed implements the composed/splitter meta-node: a node type
// synthesized at runtime from a textual port schema of the form
// `name1(type1) | name2(type2) | ...`, per spec §4.3. A constructor node has
// N typed inputs and a single "OUT" composed output; a splitter node has a
// single "IN" composed input and N typed outputs. Both are ordinary
// flow.NodeType implementations from the engine's perspective.
package composed

import (
	"strings"

	"github.com/solettaproject/soletta-sub010/ferr"
	"github.com/solettaproject/soletta-sub010/flow"
	"github.com/solettaproject/soletta-sub010/packet"
)

// Port names one token of a parsed schema: `name(type)`.
type Port struct {
	Name string
	Type *packet.Type
}

// ParseSchema tokenizes schema on `|`, strips all whitespace first (spec
// §4.3: "any whitespace collapsed"), and resolves each `name(tag)` token's
// tag against packet.Builtins. At least two tokens are required.
func ParseSchema(schema string) ([]Port, error) {
	stripped := strings.Join(strings.Fields(schema), "")
	stripped = strings.ReplaceAll(stripped, " ", "")
	tokens := strings.Split(stripped, "|")
	if len(tokens) < 2 {
		return nil, ferr.Newf(ferr.InvalidArgument, "composed schema needs at least two ports, got %d", len(tokens))
	}

	ports := make([]Port, len(tokens))
	for i, tok := range tokens {
		name, tag, err := splitToken(tok)
		if err != nil {
			return nil, ferr.Newf(ferr.InvalidArgument, "composed schema token %d (%q): %v", i, tok, err)
		}
		typ, ok := packet.Builtins[tag]
		if !ok {
			return nil, ferr.Newf(ferr.InvalidType, "composed schema token %d: unknown port type tag %q", i, tag)
		}
		ports[i] = Port{Name: name, Type: typ}
	}
	return ports, nil
}

// splitToken parses `name(type)` into its two parts.
func splitToken(tok string) (name, tag string, err error) {
	open := strings.IndexByte(tok, '(')
	if open < 0 || !strings.HasSuffix(tok, ")") {
		return "", "", ferr.New(ferr.InvalidArgument, `expected "name(type)"`)
	}
	name = tok[:open]
	tag = tok[open+1 : len(tok)-1]
	if name == "" || tag == "" {
		return "", "", ferr.New(ferr.InvalidArgument, "empty name or type tag")
	}
	return name, tag, nil
}

// memberTypes extracts just the ordered member types from a parsed schema,
// the shape packet.Registry.ComposedType wants.
func memberTypes(ports []Port) []*packet.Type {
	out := make([]*packet.Type, len(ports))
	for i, p := range ports {
		out[i] = p.Type
	}
	return out
}

var _ flow.NodeType = (*Constructor)(nil)
var _ flow.NodeType = (*Splitter)(nil)
