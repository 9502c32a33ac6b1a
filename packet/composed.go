package packet

import (
	"strings"

	"github.com/solettaproject/soletta-sub010/ferr"
)

// composedName derives a deterministic name from an ordered member list, per
// spec §3 ("The composed type's name is derived deterministically from its
// members").
func composedName(members []*Type) string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.name
	}
	return "composed(" + strings.Join(names, ",") + ")"
}

// newComposedType builds the Type for a fixed member list. Init expects a
// value of []*Packet with len == len(members): one packet per member slot,
// already duplicated into composed ownership by the caller... except spec
// §3 says the composed type's own init "allocates and duplicates every
// member packet", so Init does the duplication itself, and the caller keeps
// (or disposes) its own originals.
func newComposedType(members []*Type) *Type {
	memberCopy := append([]*Type(nil), members...)
	t := &Type{
		name:    composedName(memberCopy),
		kind:    KindComposed,
		members: memberCopy,
	}
	t.init = func(p *Packet, value any) error {
		in, ok := value.([]*Packet)
		if !ok || len(in) != len(memberCopy) {
			return ferr.Newf(ferr.InvalidArgument, "composed packet requires %d member packets", len(memberCopy))
		}
		dup := make([]*Packet, len(in))
		for i, mp := range in {
			d, err := Duplicate(mp)
			if err != nil {
				for j := 0; j < i; j++ {
					Destroy(dup[j])
				}
				return ferr.Wrap(ferr.OutOfMemory, "composed member duplication failed", err)
			}
			dup[i] = d
		}
		p.payload = dup
		return nil
	}
	t.dispose = func(p *Packet) {
		members, _ := p.payload.([]*Packet)
		for _, m := range members {
			Destroy(m)
		}
		p.payload = nil
	}
	t.duplicate = func(p *Packet) (*Packet, error) {
		members, _ := p.payload.([]*Packet)
		return Create(t, members)
	}
	return t
}

// Members of a composed packet, in schema order. Returns nil if p's type
// isn't composed.
func MembersOf(p *Packet) []*Packet {
	if p == nil || p.typ == nil || p.typ.kind != KindComposed {
		return nil
	}
	members, _ := p.payload.([]*Packet)
	out := make([]*Packet, len(members))
	copy(out, members)
	return out
}
