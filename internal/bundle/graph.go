package bundle

import "sort"

// ReferenceGraph is the derived view of which policies are declared, which are
// invoked by endpoint Steps, and which resource file each policy owns.
type ReferenceGraph struct {
	Declared   []string          `json:"declared"`
	Referenced []string          `json:"referenced"`
	Unattached []string          `json:"unattached"`
	Resources  map[string]string `json:"resources,omitempty"`
}

// Graph builds the reference graph of the bundle. Resource links are resolved for
// every declared policy of a resource-bearing kind.
func (b *Bundle) Graph() *ReferenceGraph {
	g := &ReferenceGraph{
		Declared:   b.DeclaredUnits(),
		Referenced: b.ReferencedUnits(),
		Unattached: b.UnattachedUnits(),
		Resources:  make(map[string]string),
	}
	for _, name := range g.Declared {
		if link, ok := b.ResourceLink(name); ok {
			g.Resources[name] = link
		}
	}
	return g
}

// Unattached returns the names in declared that are absent from referenced, sorted.
func Unattached(declared, referenced []string) []string {
	refs := make(map[string]struct{}, len(referenced))
	for _, name := range referenced {
		refs[name] = struct{}{}
	}

	out := []string{}
	for _, name := range declared {
		if _, ok := refs[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
