package flow

import "github.com/solettaproject/soletta-sub010/packet"

// The methods below complete Type's NodeType implementation, letting a
// flow.Type be nested as a node inside another flow.Type (spec §3:
// "flows may nest"). Each forwards to the *Engine instantiated by Open and
// stored as the node's state.

// Open instantiates t as a child of the node n belongs to: sender is this
// node's handle in the parent flow, and options must be an *OpenOptions
// (the loop and named-options table to thread down to t's own children).
func (t *Type) Open(n *Node, sender Sender, options any) error {
	opts, _ := options.(*OpenOptions)
	if opts == nil {
		opts = &OpenOptions{}
	}
	e, err := t.instantiate(sender, opts)
	if err != nil {
		return err
	}
	n.SetState(e)
	return nil
}

func (t *Type) Close(n *Node) {
	if e, ok := n.State().(*Engine); ok {
		e.Close()
	}
}

func (t *Type) ProcessIn(n *Node, inPort, connID int, p *packet.Packet) {
	if e, ok := n.State().(*Engine); ok {
		e.deliverExportedIn(inPort, connID, p)
	}
}

func (t *Type) ConnectOut(n *Node, outPort, connID int) error {
	e, _ := n.State().(*Engine)
	return e.connectExportedOut(outPort, connID)
}

func (t *Type) ConnectIn(n *Node, inPort, connID int) error {
	e, _ := n.State().(*Engine)
	return e.connectExportedIn(inPort, connID)
}

func (t *Type) DisconnectOut(n *Node, outPort, connID int) {
	if e, ok := n.State().(*Engine); ok {
		e.disconnectExportedOut(outPort, connID)
	}
}

func (t *Type) DisconnectIn(n *Node, inPort, connID int) {
	if e, ok := n.State().(*Engine); ok {
		e.disconnectExportedIn(inPort, connID)
	}
}
