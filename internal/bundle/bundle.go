package bundle

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Bundle is one extracted proxy bundle. Derived facts are computed on first use
// and cached for the lifetime of the value.
type Bundle struct {
	Name string
	Dir  string

	opts   Options
	logger *slog.Logger
	store  *Store

	declared    func() []string
	referenced  func() []string
	unattached  func() []string
	scriptUnits func() map[string]bool
}

// New creates a Bundle for an extracted apiproxy directory.
// A missing policies directory is a *StructureError.
func New(name, dir string, opts Options, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policiesDir := filepath.Join(dir, PoliciesDir)
	if info, err := os.Stat(policiesDir); err != nil || !info.IsDir() {
		return nil, &StructureError{Bundle: name, Dir: policiesDir}
	}

	b := &Bundle{
		Name:   name,
		Dir:    dir,
		opts:   opts.withDefaults(),
		logger: logger.With("bundle", name),
		store:  NewStore(name, dir, logger),
	}
	b.declared = sync.OnceValue(b.loadDeclared)
	b.referenced = sync.OnceValue(b.loadReferenced)
	b.unattached = sync.OnceValue(func() []string {
		return Unattached(b.declared(), b.referenced())
	})
	b.scriptUnits = sync.OnceValue(b.loadScriptUnits)
	return b, nil
}

// Store returns the bundle's document store.
func (b *Bundle) Store() *Store {
	return b.store
}

// DeclaredUnits returns the names of all policy files, sorted.
// Only file names are inspected; unparsable policies are still declared.
func (b *Bundle) DeclaredUnits() []string {
	return b.declared()
}

// ReferencedUnits returns every policy name invoked by a Step in any proxy or
// target endpoint, sorted.
func (b *Bundle) ReferencedUnits() []string {
	return b.referenced()
}

// UnattachedUnits returns declared policies that no endpoint Step invokes, sorted.
func (b *Bundle) UnattachedUnits() []string {
	return b.unattached()
}

// UnitKind returns the lowercased root tag of a policy document. The second
// result is false when the policy is missing or cannot be parsed.
func (b *Bundle) UnitKind(name string) (string, bool) {
	return unitKind(b.store, b.unitPath(name))
}

// ResourceLink returns the ResourceURL text of a resource-bearing policy.
func (b *Bundle) ResourceLink(name string) (string, bool) {
	return resourceLink(b.store, b.unitPath(name), b.opts)
}

// ScriptUnits returns the names of policies whose kind is the script kind, sorted.
func (b *Bundle) ScriptUnits() []string {
	set := b.scriptUnits()
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Bundle) unitPath(name string) string {
	return filepath.Join(b.Dir, PoliciesDir, name+xmlExt)
}

func (b *Bundle) loadDeclared() []string {
	files := b.store.UnitFiles()
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, unitName(f))
	}
	sort.Strings(names)
	return names
}

func (b *Bundle) loadReferenced() []string {
	set := make(map[string]struct{})
	for _, path := range b.store.EndpointFiles() {
		root := b.store.Root(path)
		if root == nil {
			continue
		}
		for _, step := range descendants(root, tagStep) {
			if target := stepTarget(step); target != "" {
				set[target] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Bundle) loadScriptUnits() map[string]bool {
	set := make(map[string]bool)
	for _, name := range b.declared() {
		if kind, ok := b.UnitKind(name); ok && kind == b.opts.ScriptKind {
			set[name] = true
		}
	}
	b.logger.Debug("classified script policies", "count", len(set))
	return set
}

func unitKind(store *Store, path string) (string, bool) {
	root := store.Root(path)
	if root == nil {
		return "", false
	}
	return strings.ToLower(root.Tag), true
}

func resourceLink(store *Store, path string, opts Options) (string, bool) {
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	kind, ok := unitKind(store, path)
	if !ok || !opts.isResourceKind(kind) {
		return "", false
	}
	elem := store.Root(path).SelectElement(tagResourceURL)
	if elem == nil {
		return "", false
	}
	return elem.Text(), true
}
