package document

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Document is a nested property bag: string keys mapping to scalars, lists,
// or nested maps. Properties are addressed by dotted paths with optional
// array segments, e.g. "names[0].value".
type Document struct {
	props map[string]any
}

// New creates an empty document.
func New() Document {
	return Document{props: map[string]any{}}
}

// FromMap wraps an existing property map. The map is not copied; use Copy
// before handing a document to another request.
func FromMap(m map[string]any) Document {
	if m == nil {
		m = map[string]any{}
	}
	return Document{props: m}
}

// Parse decodes a JSON object into a document.
func Parse(data []byte) (Document, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Document{}, fmt.Errorf("parse document: %w", err)
	}
	return FromMap(m), nil
}

// Map returns the underlying property map.
func (d Document) Map() map[string]any {
	if d.props == nil {
		return map[string]any{}
	}
	return d.props
}

// IsEmpty reports whether the document has no properties.
func (d Document) IsEmpty() bool { return len(d.props) == 0 }

// MarshalJSON encodes the property map.
func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Map())
}

// UnmarshalJSON decodes a JSON object into the document.
func (d *Document) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	d.props = m
	return nil
}

// Get resolves a dotted/array path and reports whether it exists.
func (d Document) Get(path string) (any, bool) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	var cur any = d.Map()
	for _, seg := range segs {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// GetString resolves a path to a string value.
func (d Document) GetString(path string) (string, bool) {
	v, ok := d.Get(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set writes a value at a dotted path, creating intermediate maps as needed.
// Array segments must already exist; Set cannot grow lists.
func (d *Document) Set(path string, value any) error {
	if d.props == nil {
		d.props = map[string]any{}
	}
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	var cur any = d.props
	for i, seg := range segs[:len(segs)-1] {
		next, ok := step(cur, seg)
		if !ok {
			if seg.index >= 0 {
				return fmt.Errorf("set %q: missing list element at segment %d", path, i)
			}
			m, isMap := cur.(map[string]any)
			if !isMap {
				return fmt.Errorf("set %q: segment %d is not an object", path, i)
			}
			child := map[string]any{}
			m[seg.key] = child
			next = child
		}
		cur = next
	}
	return writeLeaf(cur, segs[len(segs)-1], value, path)
}

// Remove deletes the sub-tree at a path. Removing a missing path is a no-op.
// Removing a list element drops it and shifts later elements down.
func (d *Document) Remove(path string) {
	segs, err := splitPath(path)
	if err != nil || len(segs) == 0 {
		return
	}
	var cur any = d.Map()
	for _, seg := range segs[:len(segs)-1] {
		next, ok := step(cur, seg)
		if !ok {
			return
		}
		cur = next
	}
	last := segs[len(segs)-1]
	m, isMap := cur.(map[string]any)
	if !isMap {
		return
	}
	if last.index < 0 {
		delete(m, last.key)
		return
	}
	list, ok := m[last.key].([]any)
	if !ok || last.index >= len(list) {
		return
	}
	m[last.key] = append(list[:last.index], list[last.index+1:]...)
}

// Mask replaces the value at a path with a placeholder, keeping the key
// visible. Masking a missing path is a no-op.
func (d *Document) Mask(path string, placeholder any) {
	if _, ok := d.Get(path); !ok {
		return
	}
	_ = d.Set(path, placeholder)
}

// Copy returns a deep copy. Mutations of the copy are never visible through
// the original, so per-request redaction cannot leak across requests.
func (d Document) Copy() Document {
	return Document{props: deepCopyMap(d.Map())}
}

// Equal reports structural equality of the two documents.
func (d Document) Equal(other Document) bool {
	return deepEqual(d.Map(), other.Map())
}

type pathSeg struct {
	key   string
	index int // -1 for plain keys
}

func splitPath(path string) ([]pathSeg, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	parts := strings.Split(path, ".")
	segs := make([]pathSeg, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("path %q: empty segment", path)
		}
		key, idx := p, -1
		if open := strings.IndexByte(p, '['); open >= 0 {
			if !strings.HasSuffix(p, "]") {
				return nil, fmt.Errorf("path %q: malformed index in %q", path, p)
			}
			n, err := strconv.Atoi(p[open+1 : len(p)-1])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("path %q: bad index in %q", path, p)
			}
			key, idx = p[:open], n
		}
		segs = append(segs, pathSeg{key: key, index: idx})
	}
	return segs, nil
}

func step(cur any, seg pathSeg) (any, bool) {
	m, ok := cur.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[seg.key]
	if !ok {
		return nil, false
	}
	if seg.index < 0 {
		return v, true
	}
	list, ok := v.([]any)
	if !ok || seg.index >= len(list) {
		return nil, false
	}
	return list[seg.index], true
}

func writeLeaf(cur any, seg pathSeg, value any, path string) error {
	m, ok := cur.(map[string]any)
	if !ok {
		return fmt.Errorf("set %q: parent is not an object", path)
	}
	if seg.index < 0 {
		m[seg.key] = value
		return nil
	}
	list, ok := m[seg.key].([]any)
	if !ok || seg.index >= len(list) {
		return fmt.Errorf("set %q: missing list element", path)
	}
	list[seg.index] = value
	return nil
}

func deepCopyMap(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = deepCopyValue(v)
	}
	return c
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = deepCopyValue(e)
		}
		return c
	default:
		return v
	}
}

func deepEqual(a, b any) bool {
	switch at := a.(type) {
	case map[string]any:
		bt, ok := b.(map[string]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, av := range at {
			bv, ok := bt[k]
			if !ok || !deepEqual(av, bv) {
				return false
			}
		}
		return true
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !deepEqual(at[i], bt[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
