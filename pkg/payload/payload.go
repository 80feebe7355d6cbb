package payload

import (
	"fmt"
	"sort"
)

// Payload is a structured record of field values. Values are strings for
// element fields and nested Payloads for named ancestors.
type Payload map[string]any

// Get returns the value stored under name, or nil.
func (p Payload) Get(name string) any {
	return p[name]
}

// Lookup returns the value stored under name and whether it is present.
func (p Payload) Lookup(name string) (any, bool) {
	v, ok := p[name]
	return v, ok
}

// String returns the value under name formatted as a string. Absent and nil
// values yield "".
func (p Payload) String(name string) string {
	switch v := p[name].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Nested returns the sub-record stored under name, or nil.
func (p Payload) Nested(name string) Payload {
	switch v := p[name].(type) {
	case Payload:
		return v
	case map[string]any:
		return Payload(v)
	}
	return nil
}

// Keys returns the field names in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy. Nested records are copied too.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		switch nv := v.(type) {
		case Payload:
			out[k] = nv.Clone()
		case map[string]any:
			out[k] = Payload(nv).Clone()
		default:
			out[k] = v
		}
	}
	return out
}

// Merge copies every field of other into p, overwriting existing keys.
func (p Payload) Merge(other Payload) {
	for k, v := range other {
		p[k] = v
	}
}

// Map returns p as a plain map, recursively, for encoders that do not know
// about Payload.
func (p Payload) Map() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		if nested, ok := v.(Payload); ok {
			out[k] = nested.Map()
			continue
		}
		out[k] = v
	}
	return out
}
