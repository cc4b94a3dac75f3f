package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one key/value pair of a [Map].
type Entry struct {
	Key   string
	Value string
}

// Map is a string-to-string mapping that remembers the order keys were
// declared in. package.json objects are processed in declaration order, which
// a Go map cannot preserve.
//
// The zero value is an empty map ready to use. Copies of a Map share storage;
// use [Map.Clone] before mutating a copy.
type Map struct {
	entries []Entry
	index   map[string]int
}

// NewMap builds a Map from alternating key/value pairs.
func NewMap(kv ...string) Map {
	var m Map
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

// Len returns the number of entries.
func (m Map) Len() int { return len(m.entries) }

// Get returns the value for key.
func (m Map) Get(key string) (string, bool) {
	if i, ok := m.index[key]; ok {
		return m.entries[i].Value, true
	}
	return "", false
}

// Has reports whether key is present.
func (m Map) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

// Set assigns value to key. An existing key keeps its position.
func (m *Map) Set(key, value string) {
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = value
		return
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

// Entries returns the entries in declaration order.
func (m Map) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Keys returns the keys in declaration order.
func (m Map) Keys() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Key
	}
	return out
}

// Clone returns an independent copy of m.
func (m Map) Clone() Map {
	return m.Merge(Map{})
}

// Merge returns m overlaid with other: keys of m keep their position (with
// other's value when both declare them), keys only in other are appended.
func (m Map) Merge(other Map) Map {
	var out Map
	for _, e := range m.entries {
		out.Set(e.Key, e.Value)
	}
	for _, e := range other.entries {
		out.Set(e.Key, e.Value)
	}
	return out
}

// UnmarshalJSON decodes a JSON object, keeping key order. null and an empty
// array decode to an empty map. Non-string values are rejected.
func (m *Map) UnmarshalJSON(data []byte) error {
	return m.decode(data, false)
}

// decode reads a JSON object into m. With loose set, entries whose value is
// not a string are dropped instead of failing the decode.
func (m *Map) decode(data []byte, loose bool) error {
	*m = Map{}
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); ok && d == '[' {
		// some published manifests write an empty dependency set as []
		if dec.More() {
			return fmt.Errorf("expected object, got non-empty array")
		}
		_, err = dec.Token()
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("value of %q: %w", key, err)
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			if loose {
				continue
			}
			return fmt.Errorf("value of %q: %w", key, err)
		}
		m.Set(key, value)
	}

	_, err = dec.Token()
	return err
}

// looseMap decodes like [Map] but skips non-string values. npm tolerates
// them in scripts, where tools park nested config objects.
type looseMap struct{ Map }

func (m *looseMap) UnmarshalJSON(data []byte) error {
	return m.Map.decode(data, true)
}

// MarshalJSON encodes the map as a JSON object in declaration order.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
