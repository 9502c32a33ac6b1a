package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solettaproject/soletta-sub010/composed"
	"github.com/solettaproject/soletta-sub010/ferr"
	"github.com/solettaproject/soletta-sub010/flow"
	"github.com/solettaproject/soletta-sub010/flowlog"
	"github.com/solettaproject/soletta-sub010/packet"
	"github.com/solettaproject/soletta-sub010/runtime"
	"github.com/solettaproject/soletta-sub010/store"
)

// fixture is flowctl's hand-written stand-in for the textual flow-graph
// grammar spec.md explicitly leaves external (§1's "textual flow-graph
// parser" Non-goal) — a YAML document naming nodes, connections, and
// memory maps, parsed with gopkg.in/yaml.v3 the way the rest of the pack
// unmarshals its own config (e.g. vmconfig's YAML-tagged structs). It is
// deliberately NOT a general node-type language: "type" only ever selects
// among flowctl's own fixed demo node constructors below.
type fixture struct {
	Name        string        `yaml:"name"`
	Nodes       []nodeFixture `yaml:"nodes"`
	Connections []connFixture `yaml:"connections"`
	Maps        []mapFixture  `yaml:"maps"`
}

type nodeFixture struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Schema string `yaml:"schema"` // composed.constructor / composed.splitter
	Value  int32  `yaml:"value"`  // const
}

type connFixture struct {
	From string `yaml:"from"` // "node.port"
	To   string `yaml:"to"`
}

type entryFixture struct {
	Name      string `yaml:"name"`
	Offset    *int   `yaml:"offset"`
	Size      int    `yaml:"size"`
	BitSize   int    `yaml:"bit_size"`
	BitOffset int    `yaml:"bit_offset"`
}

type mapFixture struct {
	Name       string         `yaml:"name"`
	Version    int            `yaml:"version"`
	Path       string         `yaml:"path"`
	CoalesceMS int            `yaml:"coalesce_ms"`
	Entries    []entryFixture `yaml:"entries"`
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferr.Wrap(ferr.IoError, "flowctl: failed to read fixture", err)
	}
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, ferr.Wrap(ferr.InvalidArgument, "flowctl: failed to parse fixture yaml", err)
	}
	return &f, nil
}

// buildNodeType resolves one fixture node's "type" field to a concrete
// flow.NodeType, per the fixed set flowctl supports.
func buildNodeType(nf nodeFixture, reg *packet.Registry, log flowlog.Logger) (flow.NodeType, error) {
	switch nf.Type {
	case "const":
		return &constNode{name: nf.Name, value: nf.Value}, nil
	case "print":
		return &printNode{name: nf.Name, log: log}, nil
	case "composed.constructor":
		return composed.NewConstructor(nf.Name, nf.Schema, reg)
	case "composed.splitter":
		return composed.NewSplitter(nf.Name, nf.Schema, reg)
	default:
		return nil, ferr.Newf(ferr.InvalidArgument, "flowctl: unknown node type %q", nf.Type)
	}
}

// portRef splits a "node.port" reference from a connection fixture.
func portRef(ref string) (node, port string, err error) {
	i := strings.LastIndexByte(ref, '.')
	if i < 0 {
		return "", "", ferr.Newf(ferr.InvalidArgument, "flowctl: malformed port reference %q, want node.port", ref)
	}
	return ref[:i], ref[i+1:], nil
}

func portIndex(ports []flow.PortSpec, name string) (int, error) {
	for i, p := range ports {
		if p.Name == name {
			return i, nil
		}
	}
	return 0, ferr.Newf(ferr.NotFound, "flowctl: port %q not found", name)
}

// build turns f into a runnable flow.Type and registers its memory maps
// against rt, per spec §4.2's construction steps.
func build(f *fixture, rt *runtime.Runtime) (*flow.Type, []flow.NodeType, error) {
	types := make([]flow.NodeType, len(f.Nodes))
	byName := make(map[string]int, len(f.Nodes))
	for i, nf := range f.Nodes {
		t, err := buildNodeType(nf, rt.Registry, rt.Log)
		if err != nil {
			return nil, nil, err
		}
		types[i] = t
		byName[nf.Name] = i
	}

	specs := make([]flow.NodeSpec, len(types))
	for i, t := range types {
		specs[i] = flow.NodeSpec{Type: t}
	}

	conns := make([]flow.Connection, 0, len(f.Connections))
	for _, cf := range f.Connections {
		srcNodeName, srcPortName, err := portRef(cf.From)
		if err != nil {
			return nil, nil, err
		}
		dstNodeName, dstPortName, err := portRef(cf.To)
		if err != nil {
			return nil, nil, err
		}
		srcNode, ok := byName[srcNodeName]
		if !ok {
			return nil, nil, ferr.Newf(ferr.NotFound, "flowctl: node %q not found", srcNodeName)
		}
		dstNode, ok := byName[dstNodeName]
		if !ok {
			return nil, nil, ferr.Newf(ferr.NotFound, "flowctl: node %q not found", dstNodeName)
		}
		srcPort, err := portIndex(types[srcNode].OutPorts(), srcPortName)
		if err != nil {
			return nil, nil, err
		}
		dstPort, err := portIndex(types[dstNode].InPorts(), dstPortName)
		if err != nil {
			return nil, nil, err
		}
		conns = append(conns, flow.Connection{SrcNode: srcNode, SrcPort: srcPort, DstNode: dstNode, DstPort: dstPort})
	}

	for _, mf := range f.Maps {
		entries := make([]store.EntrySpec, len(mf.Entries))
		for i, ef := range mf.Entries {
			entries[i] = store.EntrySpec{
				Name:      ef.Name,
				Offset:    ef.Offset,
				Size:      ef.Size,
				BitSize:   ef.BitSize,
				BitOffset: ef.BitOffset,
			}
		}
		if _, err := rt.AddMap(store.MapSpec{
			Name:       mf.Name,
			Version:    byte(mf.Version),
			Path:       mf.Path,
			CoalesceMS: mf.CoalesceMS,
			Entries:    entries,
		}); err != nil {
			return nil, nil, fmt.Errorf("flowctl: registering map %q: %w", mf.Name, err)
		}
	}

	typ, err := flow.Build(f.Name, specs, conns, nil, nil)
	if err != nil {
		return nil, nil, err
	}
	return typ, types, nil
}
