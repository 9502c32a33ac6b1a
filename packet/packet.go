package packet

import "github.com/solettaproject/soletta-sub010/ferr"

// Packet is an instance of exactly one Type. Lifetime is manual: every
// packet Create'd (or Duplicate'd) must eventually reach exactly one
// Destroy, per spec §3's "reference-free from the engine's perspective"
// lifetime model.
type Packet struct {
	typ     *Type
	payload any
}

// Type returns the packet's type.
func (p *Packet) Type() *Type { return p.typ }

// Create allocates a new packet of type t from value, per spec §4.1:
//   - fails with InvalidType if t is ANY or nil
//   - if t declares a constant lookup, returns the interned singleton: no
//     allocation happens and value is passed through to the lookup
//   - otherwise allocates, then runs Init; on Init failure, deallocates and
//     reports Init's error
func Create(t *Type, value any) (*Packet, error) {
	if err := checkInstantiable(t); err != nil {
		return nil, err
	}

	if t.constant != nil {
		return t.constant(value), nil
	}

	p := &Packet{typ: t}
	if t.init != nil {
		if err := t.init(p, value); err != nil {
			// nothing to deallocate explicitly in Go; p is simply dropped.
			return nil, err
		}
	} else {
		p.payload = value
	}
	return p, nil
}

// Destroy releases p. It is a no-op for constant-backed types (spec §4.1:
// "destroy(packet) — no-op if the type is constant-backed"); otherwise it
// invokes the type's dispose hook.
func Destroy(p *Packet) {
	if p == nil || p.typ == nil {
		return
	}
	if p.typ.IsConstant() {
		return
	}
	if p.typ.dispose != nil {
		p.typ.dispose(p)
	}
}

// Get copies p's payload into out. Types without a custom Get just hand back
// the stored payload value via a raw assignment through out's pointee,
// standing in for spec §4.1's "defaults to raw memcpy" for the boxed-payload
// model used here (Design Notes §9).
func Get(p *Packet, out any) error {
	if p == nil {
		return ferr.New(ferr.InvalidArgument, "nil packet")
	}
	if p.typ.get != nil {
		return p.typ.get(p, out)
	}
	return defaultGet(p, out)
}

// Duplicate returns a new packet of the same type carrying a semantically
// identical payload (spec §4.1): blob-bearing types bump the blob refcount,
// composed types duplicate every member, everything else is a cheap value
// copy since payloads here are immutable Go values once created.
func Duplicate(p *Packet) (*Packet, error) {
	if p == nil {
		return nil, ferr.New(ferr.InvalidArgument, "nil packet")
	}
	if p.typ.IsConstant() {
		return p, nil
	}
	if p.typ.duplicate != nil {
		return p.typ.duplicate(p)
	}
	return &Packet{typ: p.typ, payload: p.payload}, nil
}
