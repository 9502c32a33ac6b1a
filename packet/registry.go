package packet

import (
	"strings"
	"sync"

	"github.com/solettaproject/soletta-sub010/ferr"
)

// Registry interns composed types by structural equality of their member
// lists, per spec §4.1's composed_type operation and §8's invariant
// "composed_type(T) == composed_type(T) for any non-empty T". Per Design
// Notes §9 ("re-architect as a Runtime object"), this table is instance
// state owned by a Registry (in turn owned by a runtime.Runtime), not a
// package-level global — only the built-in, truly immutable types
// (packet.Int, packet.String, packet.Any, ...) are package-level, because
// they really are compile-time constants.
type Registry struct {
	mu    sync.Mutex
	byKey map[string]*Type
}

// NewRegistry returns an empty composed-type interning table.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Type)}
}

func compositeKey(members []*Type) string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.name
	}
	// NUL-separated: member type names never contain NUL, and this avoids
	// ambiguity between e.g. ["a,b"] and ["a","b"] the way a bare comma join
	// would (spec §3: "an ordered, NULL-terminated list of member types").
	return strings.Join(names, "\x00")
}

// ComposedType returns the interned Type for members, constructing and
// caching a new one on first request. Two calls with an identical ordered
// member list return the same *Type (pointer-equal), satisfying the
// structural-interning invariant.
func (r *Registry) ComposedType(members []*Type) (*Type, error) {
	if len(members) == 0 {
		return nil, ferr.New(ferr.InvalidArgument, "composed type requires at least one member")
	}
	for _, m := range members {
		if m == nil {
			return nil, ferr.New(ferr.InvalidArgument, "composed type member cannot be nil")
		}
	}

	key := compositeKey(members)

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.byKey[key]; ok {
		return t, nil
	}
	t := newComposedType(members)
	r.byKey[key] = t
	return t, nil
}

// Len reports how many distinct composed types have been interned, for
// tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

// Clear drops every interned composed type. Called by Runtime.Shutdown per
// Design Notes §9 ("allow a shutdown() that drains and clears both
// tables").
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = make(map[string]*Type)
}
