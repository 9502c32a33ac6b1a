package composed

import (
	"github.com/solettaproject/soletta-sub010/flow"
	"github.com/solettaproject/soletta-sub010/packet"
)

// Splitter is the node type built from a schema's N output ports: its
// single "IN" input takes the schema's composed type, and on arrival it
// sends one duplicated member packet to each output port in schema order
// (spec §4.3 "Splitter semantics"). Per SPEC_FULL's resolution of the
// source's ambiguous splitter-direction open question, the splitter's N
// outputs come from the schema's own port list — the same schema a
// Constructor would use for its inputs — not from some separate out_ports
// vector.
type Splitter struct {
	name     string
	ports    []Port
	registry *packet.Registry
	inType   *packet.Type
}

// NewSplitter parses schema and resolves its composed input type against
// registry, the same way NewConstructor resolves its composed output type.
func NewSplitter(name, schema string, registry *packet.Registry) (*Splitter, error) {
	ports, err := ParseSchema(schema)
	if err != nil {
		return nil, err
	}
	inType, err := registry.ComposedType(memberTypes(ports))
	if err != nil {
		return nil, err
	}
	return &Splitter{name: name, ports: ports, registry: registry, inType: inType}, nil
}

func (s *Splitter) Name() string { return s.name }

func (s *Splitter) InPorts() []flow.PortSpec {
	return []flow.PortSpec{{Name: "IN", Type: s.inType}}
}

func (s *Splitter) OutPorts() []flow.PortSpec {
	out := make([]flow.PortSpec, len(s.ports))
	for i, p := range s.ports {
		out[i] = flow.PortSpec{Name: p.Name, Type: p.Type}
	}
	return out
}

func (s *Splitter) PrivateDataSize() int { return 0 }

type splitterState struct {
	sender flow.Sender
}

func (s *Splitter) Open(n *flow.Node, sender flow.Sender, options any) error {
	n.SetState(&splitterState{sender: sender})
	return nil
}

func (s *Splitter) Close(n *flow.Node) {}

// ProcessIn retrieves p's members, duplicates each, and sends one per
// output port in index order. Packets land in the next dispatch pass
// (spec §4.3: "Packets are emitted through the engine's send").
func (s *Splitter) ProcessIn(n *flow.Node, inPort, connID int, p *packet.Packet) {
	st, ok := n.State().(*splitterState)
	if !ok {
		return
	}
	members := packet.MembersOf(p)
	for i, m := range members {
		if i >= len(s.ports) {
			break
		}
		dup, err := packet.Duplicate(m)
		if err != nil {
			continue
		}
		if err := st.sender.Send(i, dup); err != nil {
			packet.Destroy(dup)
		}
	}
}

func (s *Splitter) ConnectOut(n *flow.Node, outPort, connID int) error { return nil }
func (s *Splitter) ConnectIn(n *flow.Node, inPort, connID int) error  { return nil }
func (s *Splitter) DisconnectOut(n *flow.Node, outPort, connID int)   {}
func (s *Splitter) DisconnectIn(n *flow.Node, inPort, connID int)     {}
