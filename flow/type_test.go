package flow

import (
	"testing"

	"github.com/solettaproject/soletta-sub010/packet"
)

func TestBuildRejectsZeroNodes(t *testing.T) {
	if _, err := Build("empty", nil, nil, nil, nil); err == nil {
		t.Fatal("expected error building a flow with no nodes")
	}
}

func TestBuildRejectsOutOfOrderConnections(t *testing.T) {
	srcA := &sourceType{}
	srcB := &sourceType{}
	sink := newRecordingSink()

	_, err := Build("bad", []NodeSpec{{Type: srcA}, {Type: srcB}, {Type: sink}},
		[]Connection{
			{SrcNode: 1, SrcPort: 0, DstNode: 2, DstPort: 0},
			{SrcNode: 0, SrcPort: 0, DstNode: 2, DstPort: 0},
		}, nil, nil)
	if err == nil {
		t.Fatal("expected a (src node, src port) sort-order error")
	}
}

func TestBuildRejectsConnectionNodeOutOfRange(t *testing.T) {
	src := &sourceType{}
	_, err := Build("bad", []NodeSpec{{Type: src}},
		[]Connection{{SrcNode: 0, SrcPort: 0, DstNode: 5, DstPort: 0}}, nil, nil)
	if err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestBuildRejectsTypeMismatchedConnection(t *testing.T) {
	src := &sourceType{}
	sink := newRecordingSink()
	// swap a String-typed sink in place of the Int-typed one to force a
	// mismatch against source's Int output port.
	strSink := &stringSink{recordingSink: sink}
	_, err := Build("bad", []NodeSpec{{Type: src}, {Type: strSink}},
		[]Connection{{SrcNode: 0, SrcPort: 0, DstNode: 1, DstPort: 0}}, nil, nil)
	if err == nil {
		t.Fatal("expected a type-mismatch error at build time")
	}
}

func TestExportedPortBaseOffsetAccountsForInternalConnections(t *testing.T) {
	// sink has two direct internal connections into its in-port before the
	// port is also exported; a connection arriving via the export must get
	// a connection id starting at 2 (the base offset), not 0.
	srcA := &sourceType{}
	srcB := &sourceType{}
	sink := newRecordingSink()

	typ, err := Build("inner", []NodeSpec{{Type: srcA}, {Type: srcB}, {Type: sink}},
		[]Connection{
			{SrcNode: 0, SrcPort: 0, DstNode: 2, DstPort: 0},
			{SrcNode: 1, SrcPort: 0, DstNode: 2, DstPort: 0},
		},
		[]ExportedPortSpec{{Name: "in", Node: 2, Port: 0}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if typ.baseIn[0] != 2 {
		t.Fatalf("base offset = %d, want 2", typ.baseIn[0])
	}
}

func TestValidateExportedRejectsOutOfOrder(t *testing.T) {
	sinkA := newRecordingSink()
	sinkB := newRecordingSink()
	_, err := Build("bad", []NodeSpec{{Type: sinkA}, {Type: sinkB}}, nil,
		[]ExportedPortSpec{{Name: "b", Node: 1, Port: 0}, {Name: "a", Node: 0, Port: 0}}, nil)
	if err == nil {
		t.Fatal("expected out-of-order exported port error")
	}
}

// stringSink is a test double whose in-port type is String, for mismatch
// testing; it otherwise delegates to an embedded recordingSink.
type stringSink struct {
	*recordingSink
}

func (s *stringSink) InPorts() []PortSpec {
	return []PortSpec{{Name: "in", Type: packet.String}}
}
