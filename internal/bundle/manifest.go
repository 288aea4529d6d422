package bundle

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// SyncSection replaces every child of root's section element with one item element
// per value, in order. The section is created when missing.
func SyncSection(root *etree.Element, section, item string, values []string) {
	elem := root.SelectElement(section)
	if elem == nil {
		elem = root.CreateElement(section)
	}
	for len(elem.Child) > 0 {
		elem.RemoveChildAt(len(elem.Child) - 1)
	}
	for _, v := range values {
		elem.CreateElement(item).SetText(v)
	}
}

// policyListing returns the base names of the policy files under dir, sorted.
func policyListing(dir string) []string {
	entries, err := os.ReadDir(filepath.Join(dir, PoliciesDir))
	if err != nil {
		return []string{}
	}
	names := []string{}
	for _, entry := range entries {
		if entry.Type().IsRegular() && filepath.Ext(entry.Name()) == xmlExt {
			names = append(names, strings.TrimSuffix(entry.Name(), xmlExt))
		}
	}
	sort.Strings(names)
	return names
}

// resourceListing returns scheme://filename entries for every file with an
// extension in the known resource type directories, sorted.
func resourceListing(dir string, types []string) []string {
	out := []string{}
	for _, typ := range types {
		entries, err := os.ReadDir(filepath.Join(dir, ResourcesDir, typ))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.Contains(entry.Name(), ".") {
				continue
			}
			out = append(out, ResourceLink{Scheme: typ, Filename: entry.Name()}.String())
		}
	}
	sort.Strings(out)
	return out
}
