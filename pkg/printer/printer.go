// Package printer maps the type of a value of the inspected program to
// the printer that knows how to display it.
package printer

import (
	"regexp"
	"sync"

	"github.com/go-delve/lpdbg/pkg/proc"
)

// Printer renders a single value. Printers read target memory when String
// is called, never before, and keep no state between calls.
type Printer interface {
	String() (string, error)
}

// Factory returns the printer for v.
type Factory func(v *proc.Variable) Printer

type entry struct {
	tag     string
	pattern *regexp.Regexp
	factory Factory
}

func (e *entry) matches(tag string) bool {
	if e.pattern != nil {
		return e.pattern.MatchString(tag)
	}
	return e.tag == tag
}

// Registry is an ordered list of type tag to printer factory mappings.
// Lookup returns the first entry that matches.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
}

// Default is the registry used by the command line client.
var Default = &Registry{}

// Register adds a printer for values whose type tag is exactly tag. The
// entry takes precedence over every entry registered before it.
func (r *Registry) Register(tag string, f Factory) {
	r.insert(&entry{tag: tag, factory: f})
}

// RegisterPattern adds a printer for values whose type tag matches re, for
// example the instantiations of a class template.
func (r *Registry) RegisterPattern(re *regexp.Regexp, f Factory) {
	r.insert(&entry{pattern: re, factory: f})
}

func (r *Registry) insert(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]*entry{e}, r.entries...)
}

// Lookup returns the printer for v, or nil if no entry matches its type
// tag. The caller is expected to fall back to its default formatting.
func (r *Registry) Lookup(v *proc.Variable) Printer {
	if v == nil {
		return nil
	}
	tag := v.TypeTag()
	if tag == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.matches(tag) {
			return e.factory(v)
		}
	}
	return nil
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
