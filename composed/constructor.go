package composed

import (
	"github.com/solettaproject/soletta-sub010/flow"
	"github.com/solettaproject/soletta-sub010/packet"
)

// Constructor is the node type built from a schema's N input ports: it
// aggregates one packet per port into a single composed packet on "OUT"
// once every slot has been filled at least once (spec §4.3 "Constructor
// semantics").
type Constructor struct {
	name     string
	ports    []Port
	registry *packet.Registry
	outType  *packet.Type
}

// NewConstructor parses schema and resolves (or interns) its composed
// output type against registry. name identifies the resulting node type,
// e.g. for diagnostics or a parent flow's node-spec array.
func NewConstructor(name, schema string, registry *packet.Registry) (*Constructor, error) {
	ports, err := ParseSchema(schema)
	if err != nil {
		return nil, err
	}
	outType, err := registry.ComposedType(memberTypes(ports))
	if err != nil {
		return nil, err
	}
	return &Constructor{name: name, ports: ports, registry: registry, outType: outType}, nil
}

func (c *Constructor) Name() string { return c.name }

func (c *Constructor) InPorts() []flow.PortSpec {
	out := make([]flow.PortSpec, len(c.ports))
	for i, p := range c.ports {
		out[i] = flow.PortSpec{Name: p.Name, Type: p.Type}
	}
	return out
}

func (c *Constructor) OutPorts() []flow.PortSpec {
	return []flow.PortSpec{{Name: "OUT", Type: c.outType}}
}

func (c *Constructor) PrivateDataSize() int { return 0 }

// constructorState is the per-instance data: one packet slot per input
// port, plus the sender used to emit the assembled composed packet.
type constructorState struct {
	slots  []*packet.Packet
	sender flow.Sender
}

func (c *Constructor) Open(n *flow.Node, sender flow.Sender, options any) error {
	n.SetState(&constructorState{slots: make([]*packet.Packet, len(c.ports)), sender: sender})
	return nil
}

func (c *Constructor) Close(n *flow.Node) {
	st, ok := n.State().(*constructorState)
	if !ok {
		return
	}
	for _, p := range st.slots {
		packet.Destroy(p)
	}
}

// ProcessIn stores a duplicate of p in slot inPort (disposing whatever was
// there before) and, once every slot has been filled, assembles and emits
// one composed packet. The slot array is never cleared afterward — future
// arrivals keep overwriting their own slot and can trigger further emits
// (spec §4.3: "the slot array itself is not cleared — future writes
// continue to overwrite per slot").
func (c *Constructor) ProcessIn(n *flow.Node, inPort, connID int, p *packet.Packet) {
	st, ok := n.State().(*constructorState)
	if !ok || inPort < 0 || inPort >= len(st.slots) {
		return
	}

	dup, err := packet.Duplicate(p)
	if err != nil {
		return
	}
	if st.slots[inPort] != nil {
		packet.Destroy(st.slots[inPort])
	}
	st.slots[inPort] = dup

	for _, s := range st.slots {
		if s == nil {
			return
		}
	}

	composed, err := packet.Create(c.outType, append([]*packet.Packet(nil), st.slots...))
	if err != nil {
		// spec §4.3: "Fails with OutOfMemory if duplication fails" — the
		// composed type's own init is what duplicates each slot, so an
		// error here is exactly that failure. There's no per-node logger
		// to report through, so the failed emission is simply dropped.
		return
	}
	st.sender.Send(0, composed)
}

func (c *Constructor) ConnectOut(n *flow.Node, outPort, connID int) error { return nil }
func (c *Constructor) ConnectIn(n *flow.Node, inPort, connID int) error  { return nil }
func (c *Constructor) DisconnectOut(n *flow.Node, outPort, connID int)   {}
func (c *Constructor) DisconnectIn(n *flow.Node, inPort, connID int)     {}
