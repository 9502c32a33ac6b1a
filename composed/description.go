package composed

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// descriptionCacheSize bounds the number of rendered descriptions kept
// around. Composed node types are usually instantiated many times across a
// large flow graph from a handful of distinct schemas, so this stays small.
const descriptionCacheSize = 128

// descriptions is the process-wide LRU from canonicalized schema string to
// rendered description text (SPEC_FULL §4.3 "description caching"),
// grounded on scon/agent/tlsutil.TLSController's certsLRU. Unlike the
// packet-type interning table, eviction here never affects correctness —
// a miss just re-renders the string.
var descriptions = func() *lru.Cache[string, string] {
	c, err := lru.New[string, string](descriptionCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size, which descriptionCacheSize never is
	}
	return c
}()

// Describe renders a human-readable description of a composed node type
// built from schema, e.g. for a host that enables node-type descriptions
// (spec §4.3: "If descriptions are enabled by the host..."). kind is
// "constructor" or "splitter", for the heading.
func Describe(kind, schema string) (string, bool) {
	key := kind + ":" + canonicalize(schema)
	if cached, ok := descriptions.Get(key); ok {
		return cached, true
	}

	ports, err := ParseSchema(schema)
	if err != nil {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "composed %s:\n", kind)
	for _, p := range ports {
		fmt.Fprintf(&b, "  %s (%s)\n", p.Name, p.Type.Name())
	}
	out := b.String()
	descriptions.Add(key, out)
	return out, true
}

func canonicalize(schema string) string {
	return strings.Join(strings.Fields(schema), "")
}
