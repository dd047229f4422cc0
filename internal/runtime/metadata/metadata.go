// Package metadata carries the string headers attached to a diagnostic
// request as it crosses a message binding.
package metadata

import "maps"

// Metadata represents the headers carried alongside a request or reply.
type Metadata map[string]string

// Clone returns a copy of the metadata map. It never returns nil.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	maps.Copy(cloned, m)
	return cloned
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned metadata map overlaid with entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.Clone()
	maps.Copy(cloned, entries)
	return cloned
}

// Get returns the value for key, or fallback when it is absent or empty.
func (m Metadata) Get(key, fallback string) string {
	if v := m[key]; v != "" {
		return v
	}
	return fallback
}

// New constructs a Metadata map from alternating key/value pairs. A trailing
// key without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
