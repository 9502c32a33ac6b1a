// Package packet implements the packet type system: type descriptors,
// packet instances, ref-counted blobs, interned constant packets, and
// dynamically manufactured composed types. Per Design Notes §9, the source's
// void-pointer descriptors and inline type-switch dispatch are replaced here
// by a closed Kind enum plus trait-style init/get/dispose functions bound to
// each Type — not a type switch repeated at every call site.
package packet

import "github.com/solettaproject/soletta-sub010/ferr"

// Kind identifies which built-in family a Type belongs to, or marks it as
// the dynamically built Composed family. Per-type behavior (init, get,
// dispose, duplicate) comes from the Type's own function fields; Kind is
// only consulted where a caller branches on family membership, such as the
// engine logging KindError packets and the composed accessors checking
// KindComposed. Composed-type interning keys on member names, not Kind.
type Kind int

const (
	KindAny Kind = iota
	KindEmpty
	KindBoolean
	KindByte
	KindInt
	KindFloat
	KindString
	KindBlob
	KindJSONObject
	KindJSONArray
	KindRGB
	KindVector
	KindLocation
	KindTimestamp
	KindError
	KindHTTPResponse
	KindComposed
)

// InitFunc initializes p's payload from value. Returning an error causes
// Create to deallocate p and report the error.
type InitFunc func(p *Packet, value any) error

// GetFunc copies p's payload into out, in whatever shape the caller expects
// for this Type (callers of Get know the Type and therefore the shape).
type GetFunc func(p *Packet, out any) error

// DisposeFunc releases anything p's payload owns (blob refs, composed
// members). It is never called for a constant-backed Type.
type DisposeFunc func(p *Packet)

// ConstantFunc looks up the interned singleton packet for a creation value;
// a non-nil ConstantFunc on a Type means that Type never allocates.
type ConstantFunc func(value any) *Packet

// DuplicateFunc produces a new packet carrying a semantically identical
// payload to p. The default (nil) behavior is a shallow copy: a new packet
// of p's Type sharing p's payload value. Types whose payload holds
// references that need their own ownership (blob-bearing, composed,
// http-response) supply their own.
type DuplicateFunc func(p *Packet) (*Packet, error)

// Type is an immutable packet type descriptor. Once registered (returned
// from a builtin var or from Registry.ComposedType) a Type is never mutated.
type Type struct {
	name string
	kind Kind
	size int

	init      InitFunc
	get       GetFunc
	dispose   DisposeFunc
	constant  ConstantFunc
	duplicate DuplicateFunc

	// members is non-nil only for KindComposed types.
	members []*Type
}

func (t *Type) Name() string { return t.name }
func (t *Type) Kind() Kind   { return t.kind }

// Size is the payload size in bytes, as documented for the type; Go packets
// don't allocate by this size (Design Notes §9: "a uniform boxed payload is
// acceptable"), but code generators and wire-format consumers need it.
func (t *Type) Size() int { return t.size }

// IsConstant reports whether t never allocates (create always returns an
// interned singleton).
func (t *Type) IsConstant() bool { return t.constant != nil }

// Members returns t's ordered member-type list; nil/empty for any Type that
// isn't KindComposed.
func (t *Type) Members() []*Type {
	if t.kind != KindComposed {
		return nil
	}
	out := make([]*Type, len(t.members))
	copy(out, t.members)
	return out
}

// Matches implements the connection-validation rule from spec §3: ANY
// matches every other type on either side; otherwise types must be
// identical (pointer equality — Types are only ever handed out by the
// registry, so structural and pointer equality coincide).
func (t *Type) Matches(other *Type) bool {
	if t == Any || other == Any {
		return true
	}
	return t == other
}

// checkInstantiable is the shared guard for Create: spec §4.1 says create
// "fails with InvalidType if type is ANY or null".
func checkInstantiable(t *Type) error {
	if t == nil {
		return ferr.New(ferr.InvalidType, "nil packet type")
	}
	if t == Any {
		return ferr.New(ferr.InvalidType, "ANY cannot instantiate packets")
	}
	return nil
}
