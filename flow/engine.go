package flow

import (
	"fmt"

	"github.com/solettaproject/soletta-sub010/ferr"
	"github.com/solettaproject/soletta-sub010/flowlog"
	"github.com/solettaproject/soletta-sub010/packet"
	"github.com/solettaproject/soletta-sub010/sched"
	"github.com/solettaproject/soletta-sub010/syncx"
)

// OpenOptions carries what every node's Open needs beyond its own options
// value: the shared run loop (one per root flow, reused by every nested
// subflow engine, since spec §5 requires the whole tree to behave as one
// cooperative single thread) and the named-options table nodes draw their
// own options from.
type OpenOptions struct {
	Loop   *sched.Loop
	Named  map[string]any
	Logger flowlog.Logger
}

// Engine is one running instance of a flow.Type (spec §4.2 "Instantiation").
// A root Engine is created by Open; a nested Engine is created internally
// when a flow.Type is opened as a node inside another flow.
type Engine struct {
	typ *Type

	nodes   []*Node
	states  []NodeState
	storage []byte

	parentSender Sender // nil for the root flow
	loop         *sched.Loop
	log          flowlog.Logger

	// exportedOutBySrc maps a child (node,port) pair to its index in
	// typ.exportedOut, for O(1) lookup during dispatch (spec §4.2 dispatch
	// step: "if the source port also matches an exported-out spec...").
	exportedOutBySrc map[[2]int]int

	// mu guards only the delayed list, the dispatcher handle, and the
	// engine-level state word: Send and Close are entry points a host may
	// call from its own goroutine, while dispatchPass runs on the loop.
	// Delivery itself (node state, ProcessIn) stays loop-only and lock-free.
	mu         syncx.Mutex
	delayed    []delayedSend
	dispatcher *sched.Handle
	state      NodeState
}

// delayedSend is one record on the engine's FIFO delayed list: a packet
// sent from (node, port) awaiting the next dispatch pass. Ownership of p
// belongs to the queue until the pass delivers or teardown disposes it.
type delayedSend struct {
	node, port int
	p          *packet.Packet
}

type nodeSender struct {
	e    *Engine
	node int
}

func (s nodeSender) Send(srcPort int, p *packet.Packet) error {
	return s.e.send(s.node, srcPort, p)
}

// Open instantiates the root flow.Type t: no enclosing flow, so any packet
// sent out an exported-out port with nowhere further to go is just
// disposed. loop is the shared run loop every node (including nested
// subflows) dispatches through.
func Open(t *Type, loop *sched.Loop, named map[string]any, log flowlog.Logger) (*Engine, error) {
	if log == nil {
		log = flowlog.Nop
	}
	return t.instantiate(nil, &OpenOptions{Loop: loop, Named: named, Logger: log})
}

func (t *Type) instantiate(parentSender Sender, opts *OpenOptions) (*Engine, error) {
	if opts.Loop == nil {
		return nil, ferr.New(ferr.InvalidArgument, "flow open requires a run loop")
	}
	log := opts.Logger
	if log == nil {
		log = flowlog.Nop
	}

	e := &Engine{
		typ:              t,
		nodes:            make([]*Node, len(t.nodeSpecs)),
		states:           make([]NodeState, len(t.nodeSpecs)),
		storage:          make([]byte, t.totalStorage),
		parentSender:     parentSender,
		loop:             opts.Loop,
		log:              log,
		exportedOutBySrc: make(map[[2]int]int, len(t.exportedOut)),
		state:            StateOpening,
	}
	for i, ep := range t.exportedOut {
		e.exportedOutBySrc[[2]int{ep.Node, ep.Port}] = i
	}

	// Index setup happens for every node before any open hook runs (spec
	// §4.2: "ordered parent-pointer/index setup before any open hook
	// runs"), so a node's ConnectIn/Open can safely assume every sibling
	// node object already exists.
	for i, spec := range t.nodeSpecs {
		sz := spec.Type.PrivateDataSize()
		off := t.nodes[i].dataOffset
		e.nodes[i] = &Node{typ: spec.Type, index: i, data: e.storage[off : off+sz]}
	}

	for i, spec := range t.nodeSpecs {
		e.states[i] = StateOpening
		sender := nodeSender{e: e, node: i}
		var err error
		if nested, ok := spec.Type.(*Type); ok {
			// A nested flow doesn't take options from the named-options
			// table like a leaf node does — it needs the whole OpenOptions
			// (shared run loop, logger, and the same named-options table
			// passed through to its own children).
			var child *Engine
			child, err = nested.instantiate(sender, opts)
			if err == nil {
				e.nodes[i].SetState(child)
			}
		} else {
			options := opts.Named[spec.OptionsName]
			if t.childOpts != nil {
				options = t.childOpts(i, spec.Type, options)
			}
			err = spec.Type.Open(e.nodes[i], sender, options)
		}
		if err != nil {
			e.unwindOpen(i)
			e.abortOpen()
			return nil, ferr.Wrap(ferr.InvalidArgument, fmt.Sprintf("opening node %d (%s)", i, spec.Type.Name()), err)
		}
		e.states[i] = StateConnected
	}

	if err := e.connectAll(); err != nil {
		e.unwindOpen(len(t.nodeSpecs))
		e.abortOpen()
		return nil, err
	}

	e.mu.Lock()
	e.state = StateConnected
	// packets emitted during children's open hooks sit on the delayed list
	// waiting for the connection pass to finish; deliver them now, in a
	// subsequent pass (spec §4.2 "Instantiation").
	if len(e.delayed) > 0 && e.dispatcher == nil {
		e.dispatcher = e.loop.Defer(e.dispatchPass)
	}
	e.mu.Unlock()
	return e, nil
}

// State reports where e is in the per-engine-node state machine from spec
// §4.2: Opening during instantiation, Connected once the connection pass
// succeeds, Dispatching transiently during each pass, Closing/Closed on
// teardown.
func (e *Engine) State() NodeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// abortOpen finalizes a failed instantiation: disposes anything children
// queued during their open hooks, disarms the dispatcher, and marks the
// engine closed so a dispatcher already in flight on the loop no-ops.
func (e *Engine) abortOpen() {
	e.mu.Lock()
	if e.dispatcher != nil {
		e.dispatcher.Cancel()
		e.dispatcher = nil
	}
	queued := e.delayed
	e.delayed = nil
	e.state = StateClosed
	e.mu.Unlock()

	for _, d := range queued {
		packet.Destroy(d.p)
	}
}

// unwindOpen closes nodes [0, upTo) in reverse order after a failed Open,
// per spec §4.2's unwind-on-failure requirement.
func (e *Engine) unwindOpen(upTo int) {
	for i := upTo - 1; i >= 0; i-- {
		if e.states[i] == StateUnopened {
			continue
		}
		e.nodes[i].typ.Close(e.nodes[i])
		e.states[i] = StateClosed
	}
}

// connectAll runs the connection pass: ConnectOut then ConnectIn for every
// connection in array order, unwinding (Disconnect in reverse) on failure.
func (e *Engine) connectAll() error {
	conns := e.typ.conns
	info := e.typ.connsInfo
	for i, c := range conns {
		if err := e.nodes[c.SrcNode].typ.ConnectOut(e.nodes[c.SrcNode], c.SrcPort, info[i].outConnID); err != nil {
			e.unwindConnections(i)
			return ferr.Wrap(ferr.InvalidArgument, fmt.Sprintf("connecting out node %d port %d", c.SrcNode, c.SrcPort), err)
		}
		if err := e.nodes[c.DstNode].typ.ConnectIn(e.nodes[c.DstNode], c.DstPort, info[i].inConnID); err != nil {
			e.nodes[c.SrcNode].typ.DisconnectOut(e.nodes[c.SrcNode], c.SrcPort, info[i].outConnID)
			e.unwindConnections(i)
			return ferr.Wrap(ferr.InvalidArgument, fmt.Sprintf("connecting in node %d port %d", c.DstNode, c.DstPort), err)
		}
	}
	return nil
}

func (e *Engine) unwindConnections(upTo int) {
	conns := e.typ.conns
	info := e.typ.connsInfo
	for i := upTo - 1; i >= 0; i-- {
		c := conns[i]
		e.nodes[c.DstNode].typ.DisconnectIn(e.nodes[c.DstNode], c.DstPort, info[i].inConnID)
		e.nodes[c.SrcNode].typ.DisconnectOut(e.nodes[c.SrcNode], c.SrcPort, info[i].outConnID)
	}
}

// Close tears down the engine, per spec §4.2 "Teardown": cancel the pending
// dispatcher and dispose every still-queued packet first, then disconnect
// every connection in reverse order, then close every node in reverse
// order. Once the closing flag is set no further send will be accepted, so
// nothing can dispatch into a half-closed node tree.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.state == StateClosing || e.state == StateClosed {
		e.mu.Unlock()
		return
	}
	e.state = StateClosing
	if e.dispatcher != nil {
		e.dispatcher.Cancel()
		e.dispatcher = nil
	}
	queued := e.delayed
	e.delayed = nil
	e.mu.Unlock()

	for _, d := range queued {
		packet.Destroy(d.p)
	}

	e.unwindConnections(len(e.typ.conns))
	for i := len(e.nodes) - 1; i >= 0; i-- {
		e.states[i] = StateClosing
		e.nodes[i].typ.Close(e.nodes[i])
		e.states[i] = StateClosed
	}

	e.mu.Lock()
	e.state = StateClosed
	e.mu.Unlock()
}

// send implements spec §4.2's send-queue contract: validate the source port
// and packet type synchronously, append a (node, port, packet) record to
// the engine's FIFO delayed list, and make sure exactly one deferred
// dispatcher is armed. Ownership of p transfers to the queue on success; on
// error the caller still owns p.
func (e *Engine) send(node, port int, p *packet.Packet) error {
	outPorts := e.nodes[node].typ.OutPorts()
	if port < 0 || port >= len(outPorts) {
		return ferr.Newf(ferr.OutOfRange, "send: port %d out of range for node %d", port, node)
	}
	if !outPorts[port].Type.Matches(p.Type()) {
		return ferr.Newf(ferr.InvalidType, "send: packet type %s does not match port type %s", p.Type().Name(), outPorts[port].Type.Name())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosing || e.state == StateClosed {
		return ferr.New(ferr.InvalidArgument, "send on a closing flow")
	}
	e.delayed = append(e.delayed, delayedSend{node: node, port: port, p: p})
	// During Opening the dispatcher stays unarmed: instantiate arms it once
	// the connection pass succeeds, so open-hook sends can't dispatch into
	// a flow that isn't wired up yet.
	if e.dispatcher == nil && (e.state == StateConnected || e.state == StateDispatching) {
		e.dispatcher = e.loop.Defer(e.dispatchPass)
	}
	return nil
}

// dispatchPass drains one pass: it steals the delayed list into a local
// head and disarms the dispatcher before delivering anything, so sends
// happening during dispatch land on a fresh list and arm a fresh dispatcher
// for the next pass instead of recursing (spec §4.2 "Dispatch pass").
func (e *Engine) dispatchPass() {
	e.mu.Lock()
	if e.state != StateConnected {
		e.dispatcher = nil
		e.mu.Unlock()
		return
	}
	batch := e.delayed
	e.delayed = nil
	e.dispatcher = nil
	e.state = StateDispatching
	e.mu.Unlock()

	for _, d := range batch {
		e.dispatch(d.node, d.port, d.p)
	}

	e.mu.Lock()
	if e.state == StateDispatching {
		e.state = StateConnected
	}
	e.mu.Unlock()
}

// dispatch delivers one sent packet to every connection leaving (node,
// port), in connection-array order (which is sort order), plus upward to
// the enclosing flow if that port is exported-out. Every connection
// receives its own duplicate (receivers must duplicate further if they
// want to retain beyond ProcessIn's return); the original p is reserved for
// the exported-out forward, if any, and is otherwise disposed exactly once
// at the end. This keeps p valid for the full fan-out instead of disposing
// it after the first delivery and duplicating from a dead packet for the
// rest.
func (e *Engine) dispatch(node, port int, p *packet.Packet) {
	conns := e.typ.conns
	info := e.typ.connsInfo
	start := e.typ.nodes[node].firstOutConn

	consumed := false
	if start >= 0 {
		for i := start; i < len(conns) && conns[i].SrcNode == node; i++ {
			c := conns[i]
			if c.SrcPort != port {
				continue
			}
			consumed = true
			dup, err := packet.Duplicate(p)
			if err != nil {
				e.log.Errorf("flow: duplicate for fan-out failed: %v", err)
				continue
			}
			e.nodes[c.DstNode].typ.ProcessIn(e.nodes[c.DstNode], c.DstPort, info[i].inConnID, dup)
			packet.Destroy(dup)
		}
	}

	if idx, ok := e.exportedOutBySrc[[2]int{node, port}]; ok && e.parentSender != nil {
		consumed = true
		err := e.parentSender.Send(idx, p)
		if err == nil {
			return
		}
		e.log.Errorf("flow: forwarding exported-out packet failed: %v", err)
	}

	// spec §4.2 dispatch step 3: an error packet nobody routed anywhere
	// (no matching connection, no export) is logged prominently rather
	// than silently dropped.
	if !consumed && p.Type().Kind() == packet.KindError {
		var v packet.ErrorValue
		if packet.Get(p, &v) == nil {
			e.log.Errorf("flow: unrouted error packet from node %d port %d: code=%d msg=%q", node, port, v.Code, v.Msg)
		} else {
			e.log.Errorf("flow: unrouted error packet from node %d port %d", node, port)
		}
	}

	packet.Destroy(p)
}

// deliverExportedIn forwards a packet arriving on the container's inPort
// (an exported-in port) to the underlying child port, adjusting connID by
// the port's recorded base offset.
func (e *Engine) deliverExportedIn(inPort, connID int, p *packet.Packet) {
	ep := e.typ.exportedIn[inPort]
	childConnID := e.typ.baseIn[inPort] + connID
	e.nodes[ep.Node].typ.ProcessIn(e.nodes[ep.Node], ep.Port, childConnID, p)
}

func (e *Engine) connectExportedOut(outPort, connID int) error {
	ep := e.typ.exportedOut[outPort]
	childConnID := e.typ.baseOut[outPort] + connID
	return e.nodes[ep.Node].typ.ConnectOut(e.nodes[ep.Node], ep.Port, childConnID)
}

func (e *Engine) connectExportedIn(inPort, connID int) error {
	ep := e.typ.exportedIn[inPort]
	childConnID := e.typ.baseIn[inPort] + connID
	return e.nodes[ep.Node].typ.ConnectIn(e.nodes[ep.Node], ep.Port, childConnID)
}

func (e *Engine) disconnectExportedOut(outPort, connID int) {
	ep := e.typ.exportedOut[outPort]
	childConnID := e.typ.baseOut[outPort] + connID
	e.nodes[ep.Node].typ.DisconnectOut(e.nodes[ep.Node], ep.Port, childConnID)
}

func (e *Engine) disconnectExportedIn(inPort, connID int) {
	ep := e.typ.exportedIn[inPort]
	childConnID := e.typ.baseIn[inPort] + connID
	e.nodes[ep.Node].typ.DisconnectIn(e.nodes[ep.Node], ep.Port, childConnID)
}
