package main

import (
	"github.com/solettaproject/soletta-sub010/flow"
	"github.com/solettaproject/soletta-sub010/flowlog"
	"github.com/solettaproject/soletta-sub010/packet"
)

// constNode and printNode are the only leaf node types flowctl ships: a
// source that emits one literal value at open time and a sink that logs
// everything it receives. Real leaf node implementations are explicitly out
// of scope (spec §1) — these exist solely so the YAML fixture loader below
// has something to wire together for a demo run, the same way a
// hand-written integration-test harness stands in for real devices.

// constNode emits a single Int packet carrying Value on Open.
type constNode struct {
	name  string
	value int32
}

func (n *constNode) Name() string          { return n.name }
func (n *constNode) InPorts() []flow.PortSpec  { return nil }
func (n *constNode) OutPorts() []flow.PortSpec { return []flow.PortSpec{{Name: "out", Type: packet.Int}} }
func (n *constNode) PrivateDataSize() int  { return 0 }

func (n *constNode) Open(node *flow.Node, sender flow.Sender, options any) error {
	p, err := packet.Create(packet.Int, packet.IRange{Value: n.value})
	if err != nil {
		return err
	}
	if err := sender.Send(0, p); err != nil {
		packet.Destroy(p)
		return err
	}
	return nil
}

func (n *constNode) Close(node *flow.Node)                                    {}
func (n *constNode) ProcessIn(node *flow.Node, port, connID int, p *packet.Packet) {}
func (n *constNode) ConnectOut(node *flow.Node, port, connID int) error       { return nil }
func (n *constNode) ConnectIn(node *flow.Node, port, connID int) error        { return nil }
func (n *constNode) DisconnectOut(node *flow.Node, port, connID int)          {}
func (n *constNode) DisconnectIn(node *flow.Node, port, connID int)           {}

// printNode logs every packet it receives through the runtime's
// flowlog.Logger, as a stand-in for an actual consuming device.
type printNode struct {
	name string
	log  flowlog.Logger
}

func (n *printNode) Name() string          { return n.name }
func (n *printNode) InPorts() []flow.PortSpec  { return []flow.PortSpec{{Name: "in", Type: packet.Any}} }
func (n *printNode) OutPorts() []flow.PortSpec { return nil }
func (n *printNode) PrivateDataSize() int  { return 0 }

func (n *printNode) Open(node *flow.Node, sender flow.Sender, options any) error { return nil }
func (n *printNode) Close(node *flow.Node)                                      {}

func (n *printNode) ProcessIn(node *flow.Node, port, connID int, p *packet.Packet) {
	var out packet.IRange
	if err := packet.Get(p, &out); err == nil {
		n.log.Infof("flowctl: %s received int %d", n.name, out.Value)
		return
	}
	n.log.Infof("flowctl: %s received packet of type %s", n.name, p.Type().Name())
}

func (n *printNode) ConnectOut(node *flow.Node, port, connID int) error { return nil }
func (n *printNode) ConnectIn(node *flow.Node, port, connID int) error  { return nil }
func (n *printNode) DisconnectOut(node *flow.Node, port, connID int)    {}
func (n *printNode) DisconnectIn(node *flow.Node, port, connID int)     {}
