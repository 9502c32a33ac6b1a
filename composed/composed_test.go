package composed

import (
	"testing"
	"time"

	"github.com/solettaproject/soletta-sub010/flow"
	"github.com/solettaproject/soletta-sub010/packet"
	"github.com/solettaproject/soletta-sub010/sched"
)

// sourceType is a minimal test leaf node with one typed output port whose
// Sender the test captures at Open time, mirroring flow's own test helper.
type sourceType struct {
	typ    *packet.Type
	sender flow.Sender
}

func (s *sourceType) Name() string       { return "source" }
func (s *sourceType) InPorts() []flow.PortSpec { return nil }
func (s *sourceType) OutPorts() []flow.PortSpec {
	return []flow.PortSpec{{Name: "out", Type: s.typ}}
}
func (s *sourceType) PrivateDataSize() int { return 0 }
func (s *sourceType) Open(n *flow.Node, sender flow.Sender, options any) error {
	s.sender = sender
	return nil
}
func (s *sourceType) Close(n *flow.Node)                                          {}
func (s *sourceType) ProcessIn(n *flow.Node, port, connID int, p *packet.Packet)   {}
func (s *sourceType) ConnectOut(n *flow.Node, port, connID int) error             { return nil }
func (s *sourceType) ConnectIn(n *flow.Node, port, connID int) error              { return nil }
func (s *sourceType) DisconnectOut(n *flow.Node, port, connID int)                {}
func (s *sourceType) DisconnectIn(n *flow.Node, port, connID int)                 {}

// recordingSink is a minimal test leaf node with one input port that
// forwards every received packet onto a channel for the test to observe.
type recordingSink struct {
	typ *packet.Type
	ch  chan *packet.Packet
}

func newRecordingSink(typ *packet.Type) *recordingSink {
	return &recordingSink{typ: typ, ch: make(chan *packet.Packet, 16)}
}

func (s *recordingSink) Name() string              { return "sink" }
func (s *recordingSink) InPorts() []flow.PortSpec   { return []flow.PortSpec{{Name: "in", Type: s.typ}} }
func (s *recordingSink) OutPorts() []flow.PortSpec  { return nil }
func (s *recordingSink) PrivateDataSize() int       { return 0 }
func (s *recordingSink) Open(n *flow.Node, sender flow.Sender, options any) error { return nil }
func (s *recordingSink) Close(n *flow.Node)                                      {}
func (s *recordingSink) ProcessIn(n *flow.Node, port, connID int, p *packet.Packet) {
	dup, err := packet.Duplicate(p)
	if err != nil {
		return
	}
	s.ch <- dup
}
func (s *recordingSink) ConnectOut(n *flow.Node, port, connID int) error { return nil }
func (s *recordingSink) ConnectIn(n *flow.Node, port, connID int) error  { return nil }
func (s *recordingSink) DisconnectOut(n *flow.Node, port, connID int)    {}
func (s *recordingSink) DisconnectIn(n *flow.Node, port, connID int)     {}

func recvOrTimeout(t *testing.T, ch chan *packet.Packet) *packet.Packet {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched packet")
		return nil
	}
}

func expectNothing(t *testing.T, ch chan *packet.Packet) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected packet before the slots were full")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestParseSchemaRejectsSingleToken(t *testing.T) {
	if _, err := ParseSchema("x(int)"); err == nil {
		t.Fatal("expected error: at least two tokens required")
	}
}

func TestParseSchemaRejectsUnknownTag(t *testing.T) {
	if _, err := ParseSchema("x(int)|y(nonsense)"); err == nil {
		t.Fatal("expected error for unknown type tag")
	}
}

func TestParseSchemaStripsWhitespace(t *testing.T) {
	ports, err := ParseSchema(" x(int) | y(string) | z(boolean) ")
	if err != nil {
		t.Fatal(err)
	}
	if len(ports) != 3 || ports[0].Name != "x" || ports[1].Name != "y" || ports[2].Name != "z" {
		t.Fatalf("got %+v", ports)
	}
}

// TestConstructorEmitsOnceAllSlotsFilled is scenario 2 from spec §8: a
// constructor with schema x(int)|y(string)|z(boolean) emits exactly one
// composed packet, after the final send's pass, whose members equal what
// was sent.
func TestConstructorEmitsOnceAllSlotsFilled(t *testing.T) {
	reg := packet.NewRegistry()
	ctor, err := NewConstructor("ctor", "x(int)|y(string)|z(boolean)", reg)
	if err != nil {
		t.Fatal(err)
	}
	srcX := &sourceType{typ: packet.Int}
	srcY := &sourceType{typ: packet.String}
	srcZ := &sourceType{typ: packet.Boolean}
	sink := newRecordingSink(ctor.OutPorts()[0].Type)

	typ, err := flow.Build("composed-ctor",
		[]flow.NodeSpec{{Type: srcX}, {Type: srcY}, {Type: srcZ}, {Type: ctor}, {Type: sink}},
		[]flow.Connection{
			{SrcNode: 0, SrcPort: 0, DstNode: 3, DstPort: 0},
			{SrcNode: 1, SrcPort: 0, DstNode: 3, DstPort: 1},
			{SrcNode: 2, SrcPort: 0, DstNode: 3, DstPort: 2},
			{SrcNode: 3, SrcPort: 0, DstNode: 4, DstPort: 0},
		}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	loop := sched.NewLoop()
	defer loop.Close()
	eng, err := flow.Open(typ, loop, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	xp, _ := packet.Create(packet.Int, packet.IRange{Value: 1})
	srcX.sender.Send(0, xp)
	expectNothing(t, sink.ch)

	yp, _ := packet.Create(packet.String, "hi")
	srcY.sender.Send(0, yp)
	expectNothing(t, sink.ch)

	zp, _ := packet.Create(packet.Boolean, true)
	srcZ.sender.Send(0, zp)

	got := recvOrTimeout(t, sink.ch)
	members := packet.MembersOf(got)
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3", len(members))
	}
	var vx packet.IRange
	packet.Get(members[0], &vx)
	var vy string
	packet.Get(members[1], &vy)
	var vz bool
	packet.Get(members[2], &vz)
	if vx.Value != 1 || vy != "hi" || vz != true {
		t.Fatalf("got x=%+v y=%q z=%v", vx, vy, vz)
	}
	packet.Destroy(got)
}

// TestSplitterRoundTrip is scenario 3 from spec §8: splitting a composed
// packet built from x(int)|y(string)|z(boolean) yields the same three
// values on the matching outputs, in the next dispatch pass.
func TestSplitterRoundTrip(t *testing.T) {
	reg := packet.NewRegistry()
	split, err := NewSplitter("split", "x(int)|y(string)|z(boolean)", reg)
	if err != nil {
		t.Fatal(err)
	}
	src := &sourceType{typ: split.InPorts()[0].Type}

	sinkX := newRecordingSink(split.OutPorts()[0].Type)
	sinkY := newRecordingSink(split.OutPorts()[1].Type)
	sinkZ := newRecordingSink(split.OutPorts()[2].Type)

	typ, err := flow.Build("composed-split",
		[]flow.NodeSpec{{Type: src}, {Type: split}, {Type: sinkX}, {Type: sinkY}, {Type: sinkZ}},
		[]flow.Connection{
			{SrcNode: 0, SrcPort: 0, DstNode: 1, DstPort: 0},
			{SrcNode: 1, SrcPort: 0, DstNode: 2, DstPort: 0},
			{SrcNode: 1, SrcPort: 1, DstNode: 3, DstPort: 0},
			{SrcNode: 1, SrcPort: 2, DstNode: 4, DstPort: 0},
		}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	loop := sched.NewLoop()
	defer loop.Close()
	eng, err := flow.Open(typ, loop, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	xp, _ := packet.Create(packet.Int, packet.IRange{Value: 1})
	yp, _ := packet.Create(packet.String, "hi")
	zp, _ := packet.Create(packet.Boolean, true)
	composedPkt, err := packet.Create(src.typ, []*packet.Packet{xp, yp, zp})
	if err != nil {
		t.Fatal(err)
	}
	packet.Destroy(xp)
	packet.Destroy(yp)
	packet.Destroy(zp)

	if err := src.sender.Send(0, composedPkt); err != nil {
		t.Fatal(err)
	}

	gx := recvOrTimeout(t, sinkX.ch)
	gy := recvOrTimeout(t, sinkY.ch)
	gz := recvOrTimeout(t, sinkZ.ch)

	var vx packet.IRange
	packet.Get(gx, &vx)
	var vy string
	packet.Get(gy, &vy)
	var vz bool
	packet.Get(gz, &vz)

	if vx.Value != 1 || vy != "hi" || vz != true {
		t.Fatalf("got x=%+v y=%q z=%v", vx, vy, vz)
	}
	packet.Destroy(gx)
	packet.Destroy(gy)
	packet.Destroy(gz)
}

func TestDescribeIsCached(t *testing.T) {
	d1, ok := Describe("constructor", "x(int) | y(string)")
	if !ok {
		t.Fatal("expected a description")
	}
	d2, ok := Describe("constructor", "x(int)|y(string)")
	if !ok {
		t.Fatal("expected a description")
	}
	if d1 != d2 {
		t.Fatalf("expected cached description to match regardless of whitespace, got %q vs %q", d1, d2)
	}
}
