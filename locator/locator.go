// Package locator maps logical element names to selector expressions.
//
// The target UI is addressed exclusively through named locators loaded from
// a CSV table, so selector drift is a data maintenance problem rather than
// a code change. A Registry is loaded once per run and is immutable after
// load; an unresolvable name is a configuration error, never retried.
package locator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Kind identifies the selector language of an Entry.
type Kind string

const (
	KindCSS   Kind = "css"
	KindXPath Kind = "xpath"
	KindID    Kind = "id"
)

// ErrNotFound is returned when a logical name has no entry in the registry.
var ErrNotFound = errors.New("locator: no such locator")

// ErrInvalid is returned when the selector table itself is malformed:
// bad header, unknown kind, empty expression, or duplicate names.
var ErrInvalid = errors.New("locator: invalid selector table")

// Entry is one named selector. Immutable once loaded.
type Entry struct {
	Group      string
	Name       string
	Kind       Kind
	Expression string
}

// Ref names an Entry without carrying its expression. Descriptors and
// controllers hold Refs and resolve them against a Registry at run time.
type Ref struct {
	Group string
	Name  string
}

// Registry holds all named selectors for a run.
type Registry struct {
	entries map[string]Entry
}

func key(group, name string) string { return group + "/" + name }

// New builds a Registry from entries. Duplicate group/name pairs are
// rejected as ambiguous.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if err := validate(e); err != nil {
			return nil, err
		}
		k := key(e.Group, e.Name)
		if _, dup := r.entries[k]; dup {
			return nil, fmt.Errorf("%w: duplicate locator %q", ErrInvalid, k)
		}
		r.entries[k] = e
	}
	return r, nil
}

// LoadFile reads a selector table from a CSV file with the header
// group,name,selector_kind,selector_value.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("locator: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a selector table from r. See LoadFile for the expected format.
func Load(r io.Reader) (*Registry, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("locator: read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, want := range []string{"group", "name", "selector_kind", "selector_value"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalid, want)
		}
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("locator: line %d: %w", line, err)
		}
		e := Entry{
			Group:      strings.TrimSpace(rec[cols["group"]]),
			Name:       strings.TrimSpace(rec[cols["name"]]),
			Kind:       Kind(strings.TrimSpace(strings.ToLower(rec[cols["selector_kind"]]))),
			Expression: strings.TrimSpace(rec[cols["selector_value"]]),
		}
		if e.Group == "" && e.Name == "" && e.Expression == "" {
			continue // blank line
		}
		entries = append(entries, e)
	}
	return New(entries)
}

func validate(e Entry) error {
	if e.Group == "" || e.Name == "" {
		return fmt.Errorf("%w: empty group or name", ErrInvalid)
	}
	if e.Expression == "" {
		return fmt.Errorf("%w: empty expression for %q", ErrInvalid, key(e.Group, e.Name))
	}
	switch e.Kind {
	case KindCSS, KindXPath, KindID:
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q for %q", ErrInvalid, e.Kind, key(e.Group, e.Name))
	}
}

// Resolve returns the entry for group/name or ErrNotFound.
func (r *Registry) Resolve(group, name string) (Entry, error) {
	e, ok := r.entries[key(group, name)]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, key(group, name))
	}
	return e, nil
}

// ResolveRef resolves a Ref. See Resolve.
func (r *Registry) ResolveRef(ref Ref) (Entry, error) {
	return r.Resolve(ref.Group, ref.Name)
}

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.entries) }

// WithFallbacks returns a Registry that also contains every fallback entry
// not already present. The receiver is not modified.
func (r *Registry) WithFallbacks(fallbacks []Entry) *Registry {
	merged := &Registry{entries: make(map[string]Entry, len(r.entries)+len(fallbacks))}
	for k, e := range r.entries {
		merged.entries[k] = e
	}
	for _, e := range fallbacks {
		k := key(e.Group, e.Name)
		if _, ok := merged.entries[k]; !ok {
			merged.entries[k] = e
		}
	}
	return merged
}
