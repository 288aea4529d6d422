package bundle

import (
	"fmt"
	"path/filepath"

	"github.com/beevik/etree"
)

// Sequence is a run of two or more consecutive, condition-less script Steps
// within one Request or Response path.
type Sequence struct {
	// File is the endpoint document's base name.
	File string `json:"file"`

	// Location is "<container>/<path>", e.g. "PreFlow/Request" or "Flow 'get'/Response".
	Location string `json:"location"`

	// Units are the invoked policy names in step order.
	Units []string `json:"sequence"`
}

// Sequences scans proxy endpoints, then target endpoints, for runs of script Steps.
// Containers are visited PreFlows first, then PostFlows, then Flows, each in document order.
func (b *Bundle) Sequences() []Sequence {
	scripts := b.scriptUnits()

	var out []Sequence
	for _, path := range b.store.EndpointFiles() {
		root := b.store.Root(path)
		if root == nil {
			continue
		}
		out = append(out, findSequences(filepath.Base(path), root, scripts)...)
	}
	return out
}

func findSequences(file string, root *etree.Element, scripts map[string]bool) []Sequence {
	var containers []*etree.Element
	for _, tag := range []string{tagPreFlow, tagPostFlow, tagFlow} {
		containers = append(containers, descendants(root, tag)...)
	}

	var out []Sequence
	for _, container := range containers {
		loc := containerLabel(container)
		for _, tag := range []string{tagRequest, tagResponse} {
			path := container.SelectElement(tag)
			if path == nil {
				continue
			}
			label := loc + "/" + path.Tag
			for _, run := range scriptRuns(path, scripts) {
				out = append(out, Sequence{File: file, Location: label, Units: run})
			}
		}
	}
	return out
}

func containerLabel(container *etree.Element) string {
	if container.Tag == tagFlow {
		if name := container.SelectAttrValue("name", ""); name != "" {
			return fmt.Sprintf("Flow '%s'", name)
		}
	}
	return container.Tag
}

// scriptRuns walks the direct Step children of a path. A Step extends the current run
// when it names a script policy and has no Condition; any other Step ends the run.
func scriptRuns(path *etree.Element, scripts map[string]bool) [][]string {
	var runs [][]string
	var run []string

	flush := func() {
		if len(run) >= 2 {
			runs = append(runs, run)
		}
		run = nil
	}

	for _, step := range path.SelectElements(tagStep) {
		target := stepTarget(step)
		if target != "" && scripts[target] && !hasCondition(step) {
			run = append(run, target)
			continue
		}
		flush()
	}
	flush()
	return runs
}
