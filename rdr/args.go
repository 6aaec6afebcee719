package rdr

import (
	"bytes"
	"net/url"
)

// Args is an ordered multi-map of form/query fields: accumulate pairs
// in insertion order, then render them as a www-form-urlencoded body.
// net/url.Values is deliberately not used here since it's backed by a map
// and can't preserve the order fields were added in, which matters for
// servers that are sensitive to field order (some multi-step form APIs).
type Args struct {
	pairs []argKV
}

type argKV struct{ key, value string }

// Add appends a field, keeping any existing field with the same key (for
// repeated keys like "tag=a&tag=b").
func (a *Args) Add(key, value string) {
	a.pairs = append(a.pairs, argKV{key: key, value: value})
}

// Set replaces all fields named key with a single field holding value.
func (a *Args) Set(key, value string) {
	a.Del(key)
	a.Add(key, value)
}

// Del removes every field named key.
func (a *Args) Del(key string) {
	out := a.pairs[:0]
	for _, kv := range a.pairs {
		if kv.key != key {
			out = append(out, kv)
		}
	}
	a.pairs = out
}

// Get returns the first value for key, or "".
func (a *Args) Get(key string) string {
	for _, kv := range a.pairs {
		if kv.key == key {
			return kv.value
		}
	}
	return ""
}

// Len returns the number of fields.
func (a *Args) Len() int { return len(a.pairs) }

// VisitAll calls f for each field in insertion order.
func (a *Args) VisitAll(f func(key, value string)) {
	for _, kv := range a.pairs {
		f(kv.key, kv.value)
	}
}

// Encode renders the fields as an application/x-www-form-urlencoded body,
// e.g. "a=1&b=hello+world".
func (a *Args) Encode() string {
	var buf bytes.Buffer
	for i, kv := range a.pairs {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(url.QueryEscape(kv.key))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(kv.value))
	}
	return buf.String()
}
