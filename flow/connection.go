package flow

import "github.com/solettaproject/soletta-sub010/ferr"

// Connection wires one node's output port to another node's input port,
// per spec §3. A connection array is the static topology of a flow.Type.
type Connection struct {
	SrcNode, SrcPort int
	DstNode, DstPort int
}

// less orders connections by (SrcNode, SrcPort), the sort order spec §4.2
// requires so that a node's outbound connections form one contiguous run.
func (c Connection) less(o Connection) bool {
	if c.SrcNode != o.SrcNode {
		return c.SrcNode < o.SrcNode
	}
	return c.SrcPort < o.SrcPort
}

func (c Connection) sameSrc(o Connection) bool {
	return c.SrcNode == o.SrcNode && c.SrcPort == o.SrcPort
}

// connInfo is the per-connection bookkeeping computed once at flow.Build
// time: the stable per-port connection ids spec §3 calls for ("the kth
// connection on that port gets id k-1"), computed independently for the
// source side and the destination side of each connection.
type connInfo struct {
	outConnID int // ordinal among connections sharing (SrcNode, SrcPort)
	inConnID  int // ordinal among connections sharing (DstNode, DstPort)
}

// nodeInfo is the per-node bookkeeping computed at flow.Build time.
type nodeInfo struct {
	firstOutConn int // index into the sorted connection array, or -1
	dataOffset   int // this node's offset into the engine's private storage
}

// validateConnections checks the sort-order and range invariants from spec
// §4.2 step 2, and computes nodeInfo/connInfo for the whole array.
func validateConnections(nodeSpecs []NodeSpec, conns []Connection) ([]nodeInfo, []connInfo, error) {
	nodes := make([]nodeInfo, len(nodeSpecs))
	for i := range nodes {
		nodes[i].firstOutConn = -1
	}

	for i, c := range conns {
		if i > 0 && conns[i-1].less(c) == false && !conns[i-1].sameSrc(c) {
			return nil, nil, ferr.Newf(ferr.InvalidArgument, "connection %d is out of (src node, src port) sort order", i)
		}
		if c.SrcNode < 0 || c.SrcNode >= len(nodeSpecs) {
			return nil, nil, ferr.Newf(ferr.OutOfRange, "connection %d: src node %d out of range", i, c.SrcNode)
		}
		if c.DstNode < 0 || c.DstNode >= len(nodeSpecs) {
			return nil, nil, ferr.Newf(ferr.OutOfRange, "connection %d: dst node %d out of range", i, c.DstNode)
		}
		srcOuts := nodeSpecs[c.SrcNode].Type.OutPorts()
		if c.SrcPort < 0 || c.SrcPort >= len(srcOuts) {
			return nil, nil, ferr.Newf(ferr.OutOfRange, "connection %d: src port %d out of range", i, c.SrcPort)
		}
		dstIns := nodeSpecs[c.DstNode].Type.InPorts()
		if c.DstPort < 0 || c.DstPort >= len(dstIns) {
			return nil, nil, ferr.Newf(ferr.OutOfRange, "connection %d: dst port %d out of range", i, c.DstPort)
		}
		if !srcOuts[c.SrcPort].Type.Matches(dstIns[c.DstPort].Type) {
			return nil, nil, ferr.Newf(ferr.InvalidType, "connection %d: type mismatch %s -> %s",
				i, srcOuts[c.SrcPort].Type.Name(), dstIns[c.DstPort].Type.Name())
		}
	}

	infos := make([]connInfo, len(conns))
	outCounter := map[[2]int]int{}
	for i, c := range conns {
		if nodes[c.SrcNode].firstOutConn == -1 {
			nodes[c.SrcNode].firstOutConn = i
		}
		key := [2]int{c.SrcNode, c.SrcPort}
		infos[i].outConnID = outCounter[key]
		outCounter[key]++
	}

	// Second pass over the same (src-sorted) order assigns each connection's
	// arrival ordinal on the destination side, since the array isn't grouped
	// by (DstNode, DstPort) the way it's grouped by source.
	inCounter := map[[2]int]int{}
	for i, c := range conns {
		key := [2]int{c.DstNode, c.DstPort}
		infos[i].inConnID = inCounter[key]
		inCounter[key]++
	}

	return nodes, infos, nil
}
