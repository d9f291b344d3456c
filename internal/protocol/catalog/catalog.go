// Package catalog is the shared, versioned list of message types both sides
// of the bridge agree on. Changes must stay backwards compatible: new types
// and new optional fields only.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrDuplicateEntry = errors.New("catalog: duplicate entry")
	ErrUnknownType    = errors.New("catalog: unknown message type")
	ErrInvalidPayload = errors.New("catalog: invalid payload")
)

// Entry describes one message type.
type Entry struct {
	Name string
	// VoidResponse marks types whose response carries no payload.
	VoidResponse bool
	// Required lists top-level request fields that must be present.
	Required []string
	// Since is the catalog version that introduced the type.
	Since int
}

// Catalog is an immutable set of entries for one direction of the bridge.
type Catalog struct {
	name    string
	version int
	entries map[string]Entry
}

// New builds a catalog. It panics on duplicate names since catalogs are
// declared statically.
func New(name string, version int, entries ...Entry) Catalog {
	c := Catalog{name: name, version: version, entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if _, ok := c.entries[e.Name]; ok {
			panic(fmt.Errorf("%w: %s/%s", ErrDuplicateEntry, name, e.Name))
		}
		c.entries[e.Name] = e
	}
	return c
}

func (c Catalog) Name() string {
	return c.name
}

func (c Catalog) Version() int {
	return c.version
}

func (c Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

func (c Catalog) Has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// Names returns entry names in deterministic order.
func (c Catalog) Names() []string {
	out := make([]string, 0, len(c.entries))
	for name := range c.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ValidateRequest checks that payload is an object holding every required
// field of the entry. Entries without required fields accept any payload. Unknown extra fields are accepted for version skew.
func (c Catalog) ValidateRequest(name string, payload json.RawMessage) error {
	e, ok := c.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	if len(e.Required) == 0 {
		return nil
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: %s: missing payload", ErrInvalidPayload, name)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return fmt.Errorf("%w: %s: payload is not an object", ErrInvalidPayload, name)
	}
	for _, field := range e.Required {
		if _, ok := fields[field]; !ok {
			return fmt.Errorf("%w: %s: missing field %q", ErrInvalidPayload, name, field)
		}
	}
	return nil
}
