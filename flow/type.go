package flow

import (
	"math"

	"github.com/solettaproject/soletta-sub010/ferr"
)

// pointerAlign is the alignment used when laying out node private storage
// contiguously, matching the source's pointer-sized alignment requirement
// (spec §4.2 step 1: "compute per-node private storage with pointer-
// alignment padding").
const pointerAlign = 8

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

// NodeSpec names one node in a flow.Type: its NodeType and, if it has one,
// the key into the named-options table supplied at Open time (spec §3:
// "allocated from a user-supplied named-options table").
type NodeSpec struct {
	Type        NodeType
	OptionsName string
}

// ExportedPortSpec names one port on the enclosing flow.Type that forwards
// to a child node's port (spec §3: "the container exposes child ports as
// its own under a chosen external name").
type ExportedPortSpec struct {
	Name string
	Node int
	Port int
}

// Type is a static flow type: a fixed node/connection/exported-port
// topology built once by Build and instantiated any number of times by
// Open. Type itself implements NodeType so a Type can be nested as a node
// inside another flow.Type (spec §3's subflow-as-node requirement).
type Type struct {
	name string

	nodeSpecs []NodeSpec
	conns     []Connection
	nodes     []nodeInfo
	connsInfo []connInfo

	exportedIn  []ExportedPortSpec
	exportedOut []ExportedPortSpec

	childOpts ChildOptionsSetter
	// baseIn/baseOut[i] is the count of internal connections already
	// landing on (or leaving from) the exported port's underlying child
	// port, i.e. the offset forwarded connection ids must start from (spec
	// §4.2: "adjusting the connection id by the base offset recorded for
	// that exported port").
	baseIn  []int
	baseOut []int

	totalStorage int
}

// Build validates nodeSpecs/conns/exportedIn/exportedOut against spec §4.2
// step 1-3 and returns the resulting static flow.Type.
func Build(name string, nodeSpecs []NodeSpec, conns []Connection, exportedIn, exportedOut []ExportedPortSpec) (*Type, error) {
	if len(nodeSpecs) == 0 {
		return nil, ferr.New(ferr.InvalidArgument, "a flow must have at least one node")
	}
	for i, ns := range nodeSpecs {
		if ns.Type == nil {
			return nil, ferr.Newf(ferr.InvalidArgument, "node %d has a nil type", i)
		}
	}

	nodes, connsInfo, err := validateConnections(nodeSpecs, conns)
	if err != nil {
		return nil, err
	}

	offset := 0
	for i, ns := range nodeSpecs {
		sz := ns.Type.PrivateDataSize()
		if sz < 0 {
			return nil, ferr.Newf(ferr.InvalidArgument, "node %d reports negative private data size", i)
		}
		offset = alignUp(offset, pointerAlign)
		if offset > math.MaxInt32-sz {
			return nil, ferr.New(ferr.OutOfRange, "flow node private storage overflows")
		}
		nodes[i].dataOffset = offset
		offset += sz
	}

	if err := validateExported(nodeSpecs, exportedIn, true); err != nil {
		return nil, err
	}
	if err := validateExported(nodeSpecs, exportedOut, false); err != nil {
		return nil, err
	}

	t := &Type{
		name:         name,
		nodeSpecs:    nodeSpecs,
		conns:        conns,
		nodes:        nodes,
		connsInfo:    connsInfo,
		exportedIn:   exportedIn,
		exportedOut:  exportedOut,
		totalStorage: offset,
	}
	t.baseIn = make([]int, len(exportedIn))
	for i, e := range exportedIn {
		t.baseIn[i] = countConns(conns, e.Node, e.Port, false)
	}
	t.baseOut = make([]int, len(exportedOut))
	for i, e := range exportedOut {
		t.baseOut[i] = countConns(conns, e.Node, e.Port, true)
	}
	return t, nil
}

func countConns(conns []Connection, node, port int, src bool) int {
	n := 0
	for _, c := range conns {
		if src {
			if c.SrcNode == node && c.SrcPort == port {
				n++
			}
		} else {
			if c.DstNode == node && c.DstPort == port {
				n++
			}
		}
	}
	return n
}

// validateExported enforces spec §4.2 step 3: entries sorted by (node,
// port), strictly increasing on port within the same node, and in range.
func validateExported(nodeSpecs []NodeSpec, exported []ExportedPortSpec, in bool) error {
	lastNode, lastPort := -1, -1
	for i, e := range exported {
		if e.Node < 0 || e.Node >= len(nodeSpecs) {
			return ferr.Newf(ferr.OutOfRange, "exported port %q: node %d out of range", e.Name, e.Node)
		}
		var count int
		if in {
			count = len(nodeSpecs[e.Node].Type.InPorts())
		} else {
			count = len(nodeSpecs[e.Node].Type.OutPorts())
		}
		if e.Port < 0 || e.Port >= count {
			return ferr.Newf(ferr.OutOfRange, "exported port %q: port %d out of range", e.Name, e.Port)
		}
		if i > 0 {
			if e.Node < lastNode || (e.Node == lastNode && e.Port <= lastPort) {
				return ferr.Newf(ferr.InvalidArgument, "exported port %d (%q) is out of (node, port) sort order, or duplicates one already exported", i, e.Name)
			}
		}
		lastNode, lastPort = e.Node, e.Port
	}
	return nil
}

// ChildOptionsSetter patches one child node's resolved options during
// instantiation: it receives the node's index, its type, and whatever the
// named-options table produced (nil if the node has no options entry), and
// its return value is what the child's open hook actually gets.
type ChildOptionsSetter func(nodeIndex int, nodeType NodeType, options any) any

// WithChildOptions installs the optional child-options setter on t and
// returns t for chaining off Build. It applies to leaf children only;
// nested subflows take the enclosing OpenOptions, not a named-options
// entry.
func (t *Type) WithChildOptions(fn ChildOptionsSetter) *Type {
	t.childOpts = fn
	return t
}

// Name, InPorts, OutPorts, PrivateDataSize implement NodeType, letting a
// Type be used as a node in another flow.Type's nodeSpecs.
func (t *Type) Name() string { return t.name }

func (t *Type) InPorts() []PortSpec {
	out := make([]PortSpec, len(t.exportedIn))
	for i, e := range t.exportedIn {
		out[i] = PortSpec{Name: e.Name, Type: t.nodeSpecs[e.Node].Type.InPorts()[e.Port].Type}
	}
	return out
}

func (t *Type) OutPorts() []PortSpec {
	out := make([]PortSpec, len(t.exportedOut))
	for i, e := range t.exportedOut {
		out[i] = PortSpec{Name: e.Name, Type: t.nodeSpecs[e.Node].Type.OutPorts()[e.Port].Type}
	}
	return out
}

// PrivateDataSize is always 0 for a Type acting as a node: its instance
// state is the *Engine it builds in Open, held via Node.SetState.
func (t *Type) PrivateDataSize() int { return 0 }
