package cog

import (
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Descriptor declares a cog: its name, the container identifiers it
// requires, and its constructor. New receives the resolved dependencies in
// the order of Requires.
type Descriptor struct {
	Name     string
	Requires []string
	New      func(args []any) (Cog, error)
}

// Catalog is the compiled-in set of cogs available to the loader.
type Catalog struct {
	descriptors map[string]Descriptor
}

// NewCatalog indexes descriptors by name. Names must be unique and non-empty.
func NewCatalog(descriptors ...Descriptor) (*Catalog, error) {
	c := &Catalog{descriptors: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("cog descriptor without a name")
		}
		if _, dup := c.descriptors[d.Name]; dup {
			return nil, fmt.Errorf("cog %q declared twice", d.Name)
		}
		c.descriptors[d.Name] = d
	}
	return c, nil
}

// Lookup returns the descriptor registered under name.
func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	d, ok := c.descriptors[name]
	return d, ok
}

// Names lists every cog of the catalog in lexicographic order.
func (c *Catalog) Names() []string {
	return slices.Sorted(maps.Keys(c.descriptors))
}

// Discover yields descriptors in lexicographic order of name, skipping the
// disabled ones.
func (c *Catalog) Discover(disabled ...string) iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		for _, name := range c.Names() {
			if slices.Contains(disabled, name) {
				continue
			}
			if !yield(c.descriptors[name]) {
				return
			}
		}
	}
}
