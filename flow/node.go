// Package flow implements the static flow engine: it holds a node type built
// from a (nodes, connections, exported-ports) spec, instantiates it, and
// routes packets between children in dispatch order, per spec §4.2.
package flow

import "github.com/solettaproject/soletta-sub010/packet"

// Sender is the capability a node instance uses to emit packets. Per Design
// Notes §9, a child holds this instead of a back-reference to its enclosing
// Engine, so the parent/child relationship isn't a cycle a child node type
// could walk arbitrarily — it can only call Send.
type Sender interface {
	// Send enqueues p as emitted from srcPort on the node holding this
	// Sender. Ownership of p transfers to the engine on success; on error
	// the caller still owns p and must dispose of it itself (spec §7:
	// "packet send with a type mismatch fails synchronously and does not
	// consume the packet").
	Send(srcPort int, p *packet.Packet) error
}

// PortSpec names and types one input or output port on a NodeType.
type PortSpec struct {
	Name string
	Type *packet.Type
}

// NodeType is the protocol every node type implements — both leaf node
// types (out of scope per spec §1, represented here only by the interface
// leaf implementations would satisfy) and the engine itself acting as a
// container node type for nested subflows (spec §3: "The engine implements
// the container node type protocol, so a flow itself is a node and flows
// may nest").
type NodeType interface {
	Name() string
	InPorts() []PortSpec
	OutPorts() []PortSpec

	// PrivateDataSize is the size in bytes of this node's private instance
	// storage, laid out contiguously with every other node's by the
	// enclosing flow (spec §4.2 step 1). Node types that keep their state as
	// a plain Go value via Node.SetState instead of raw bytes return 0.
	PrivateDataSize() int

	// Open initializes the node instance n, whose private storage (if any)
	// is n.Data(). sender is n's handle for emitting packets; options is
	// n's resolved options object (spec §3: "allocated from a user-supplied
	// named-options table against the type's option schema").
	Open(n *Node, sender Sender, options any) error

	// Close disposes whatever Open allocated for n.
	Close(n *Node)

	// ProcessIn delivers packet p on n's input port in-port, arriving via
	// the connection identified by connID (spec §3: "the kth connection on
	// that port gets id k-1"). p is owned by the caller; ProcessIn must
	// Duplicate it to retain a copy past the call, per spec §4.2 dispatch
	// step 4.
	ProcessIn(n *Node, inPort int, connID int, p *packet.Packet)

	// ConnectOut/ConnectIn are called once per connection, in connection
	// array order, when the flow containing n is opened (spec §4.2
	// "Instantiation"). An error here aborts instantiation and triggers
	// unwind.
	ConnectOut(n *Node, outPort int, connID int) error
	ConnectIn(n *Node, inPort int, connID int) error

	// DisconnectOut/DisconnectIn undo a ConnectOut/ConnectIn, called during
	// teardown in reverse connection order.
	DisconnectOut(n *Node, outPort int, connID int)
	DisconnectIn(n *Node, inPort int, connID int)
}

// NodeState is the per-engine-node lifecycle state from spec §4.2's state
// machine.
type NodeState int

const (
	StateUnopened NodeState = iota
	StateOpening
	StateConnected
	StateDispatching
	StateClosing
	StateClosed
)

func (s NodeState) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateConnected:
		return "connected"
	case StateDispatching:
		return "dispatching"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Node is one instance of a NodeType inside an enclosing flow (spec §3).
type Node struct {
	typ   NodeType
	index int
	data  []byte
	state any
}

// Index is this node's parent-assigned index within its enclosing flow.
func (n *Node) Index() int { return n.index }

// Type is this node's NodeType.
func (n *Node) Type() NodeType { return n.typ }

// Data is this node's slice of the enclosing flow's contiguous private
// storage region, len(Data()) == Type().PrivateDataSize(). Node types that
// manage raw bytes directly (mirroring the source's manual layout) use this;
// most Go-native node types use SetState/State instead.
func (n *Node) Data() []byte { return n.data }

// SetState/State hold an arbitrary Go value as this node's instance state —
// the idiomatic alternative to Data() for node types that don't need manual
// byte layout.
func (n *Node) SetState(v any) { n.state = v }
func (n *Node) State() any     { return n.state }
