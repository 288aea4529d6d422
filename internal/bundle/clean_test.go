package bundle

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func manifestItems(t *testing.T, path, section, item string) []string {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	sec := doc.Root().SelectElement(section)
	if sec == nil {
		t.Fatalf("section %s missing", section)
	}
	var out []string
	for _, e := range sec.SelectElements(item) {
		out = append(out, e.Text())
	}
	return out
}

// stepNames collects every Step Name in every XML document under dir.
func stepNames(t *testing.T, dir string) []string {
	t.Helper()
	var names []string
	for _, path := range allXMLFiles(dir) {
		doc, err := readDocument(path)
		if err != nil {
			continue
		}
		steps := descendants(doc.Root(), tagStep)
		if doc.Root().Tag == tagStep {
			steps = append(steps, doc.Root())
		}
		for _, s := range steps {
			if s.SelectElement(tagName) != nil {
				names = append(names, stepTarget(s))
			}
		}
	}
	return names
}

func TestClean(t *testing.T) {
	src := scenarioBundle(t)
	b, err := New("P1", src, DefaultOptions(), testLogger())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	out := t.TempDir()
	res, err := b.Clean(out)
	if err != nil {
		t.Fatalf("Clean error: %v", err)
	}

	if res.Dir != filepath.Join(out, "P1", "apiproxy") {
		t.Errorf("Dir = %q", res.Dir)
	}
	if !reflect.DeepEqual(res.RemovedUnits, []string{"U2", "U3"}) {
		t.Errorf("RemovedUnits = %v", res.RemovedUnits)
	}
	if !reflect.DeepEqual(res.RemovedResources, []string{"jsc://u2.js"}) {
		t.Errorf("RemovedResources = %v", res.RemovedResources)
	}
	if res.StrippedSteps != 1 {
		t.Errorf("StrippedSteps = %d, want 1", res.StrippedSteps)
	}

	for _, rel := range []string{"policies/U2.xml", "policies/U3.xml", "resources/jsc/u2.js"} {
		if exists(filepath.Join(res.Dir, rel)) {
			t.Errorf("%s should have been removed", rel)
		}
	}
	for _, rel := range []string{"policies/U1.xml", "resources/jsc/u1.js"} {
		if !exists(filepath.Join(res.Dir, rel)) {
			t.Errorf("%s should survive", rel)
		}
	}

	// The source bundle is untouched.
	if !exists(filepath.Join(src, "policies", "U2.xml")) {
		t.Error("source bundle was modified")
	}

	manifest := filepath.Join(res.Dir, "P1.xml")
	if got := manifestItems(t, manifest, "Policies", "Policy"); !reflect.DeepEqual(got, []string{"U1"}) {
		t.Errorf("Policies = %v", got)
	}
	if got := manifestItems(t, manifest, "Resources", "Resource"); !reflect.DeepEqual(got, []string{"jsc://u1.js"}) {
		t.Errorf("Resources = %v", got)
	}

	surviving := map[string]bool{"U1": true}
	for _, name := range stepNames(t, res.Dir) {
		if !surviving[name] {
			t.Errorf("dangling step %q remains", name)
		}
	}

	proxy, err := os.ReadFile(filepath.Join(res.Dir, "proxies", "default.xml"))
	if err != nil {
		t.Fatal(err)
	}
	orig, _ := os.ReadFile(filepath.Join(src, "proxies", "default.xml"))
	if !bytes.Equal(proxy, orig) {
		t.Error("unchanged endpoint should not be rewritten")
	}
}

func TestCleanStripsStepsUnderDocumentRoot(t *testing.T) {
	src := scenarioBundle(t)
	writeFiles(t, src, map[string]string{
		"stepdefinitions/shared.xml": decl + `<SharedFlow name="shared">
  <Step>
    <Name>U2</Name>
  </Step>
  <Step>
    <Name>U1</Name>
  </Step>
  <Step>
    <Name>   </Name>
  </Step>
  <Step>
    <Condition>true</Condition>
  </Step>
</SharedFlow>
`,
	})
	b, err := New("P1", src, DefaultOptions(), testLogger())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	res, err := b.Clean(t.TempDir())
	if err != nil {
		t.Fatalf("Clean error: %v", err)
	}

	shared := filepath.Join("stepdefinitions", "shared.xml")
	if !contains(res.RewrittenFiles, shared) {
		t.Errorf("RewrittenFiles = %v, want %s included", res.RewrittenFiles, shared)
	}
	// Ghost in the target endpoint, plus U2 and the blank name in shared.xml.
	if res.StrippedSteps != 3 {
		t.Errorf("StrippedSteps = %d, want 3", res.StrippedSteps)
	}

	doc, err := readDocument(filepath.Join(res.Dir, shared))
	if err != nil {
		t.Fatal(err)
	}
	steps := doc.Root().SelectElements(tagStep)
	if len(steps) != 2 {
		t.Fatalf("shared.xml keeps %d steps, want 2", len(steps))
	}
	if got := stepTarget(steps[0]); got != "U1" {
		t.Errorf("first step = %q, want U1", got)
	}
	if steps[1].SelectElement(tagName) != nil {
		t.Error("step without a Name element should be kept")
	}

	for _, name := range stepNames(t, res.Dir) {
		if name != "U1" {
			t.Errorf("dangling step %q remains", name)
		}
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	src := scenarioBundle(t)
	b, err := New("P1", src, DefaultOptions(), testLogger())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	first, err := b.Clean(t.TempDir())
	if err != nil {
		t.Fatalf("Clean error: %v", err)
	}

	again, err := New("P1", first.Dir, DefaultOptions(), testLogger())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if u := again.UnattachedUnits(); len(u) != 0 {
		t.Fatalf("UnattachedUnits = %v, want none", u)
	}
	second, err := again.Clean(t.TempDir())
	if err != nil {
		t.Fatalf("Clean error: %v", err)
	}

	if len(second.RemovedUnits) != 0 || second.StrippedSteps != 0 || len(second.RewrittenFiles) != 0 {
		t.Errorf("second pass changed the bundle: %+v", second)
	}
	for _, path := range allXMLFiles(first.Dir) {
		rel, _ := filepath.Rel(first.Dir, path)
		a, _ := os.ReadFile(path)
		c, err := os.ReadFile(filepath.Join(second.Dir, rel))
		if err != nil {
			t.Errorf("%s missing after second pass", rel)
			continue
		}
		if !bytes.Equal(a, c) {
			t.Errorf("%s differs after second pass", rel)
		}
	}
}

func TestCleanMalformedResourceLink(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"policies/Odd.xml":      `<JavaCallout name="Odd"><ResourceURL>not-a-link</ResourceURL></JavaCallout>`,
		"policies/Keep.xml":     `<Javascript name="Keep"><ResourceURL>jsc://keep.js</ResourceURL></Javascript>`,
		"resources/jsc/keep.js": "",
		"proxies/default.xml":   `<ProxyEndpoint><PreFlow><Request>` + step("Keep") + `</Request></PreFlow></ProxyEndpoint>`,
	})
	b, err := New("odd", dir, DefaultOptions(), testLogger())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	res, err := b.Clean(t.TempDir())
	if err != nil {
		t.Fatalf("Clean error: %v", err)
	}
	if !reflect.DeepEqual(res.RemovedUnits, []string{"Odd"}) {
		t.Errorf("RemovedUnits = %v", res.RemovedUnits)
	}
	if len(res.RemovedResources) != 0 {
		t.Errorf("RemovedResources = %v", res.RemovedResources)
	}
	if !exists(filepath.Join(res.Dir, "resources", "jsc", "keep.js")) {
		t.Error("keep.js should survive")
	}
}

func TestCleanSkipsUnparsableDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"broken.xml":          `<APIProxy><Policies>`,
		"proxy.xml":           `<APIProxy><Policies><Policy>Gone</Policy></Policies></APIProxy>`,
		"policies/Gone.xml":   `<Quota name="Gone"/>`,
		"proxies/default.xml": `<ProxyEndpoint><PreFlow><Request>` + step("Missing") + `</Request></PreFlow></ProxyEndpoint>`,
		"proxies/bad.xml":     `<ProxyEndpoint><Step>`,
	})
	b, err := New("mixed", dir, DefaultOptions(), testLogger())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	res, err := b.Clean(t.TempDir())
	if err != nil {
		t.Fatalf("Clean error: %v", err)
	}

	for _, want := range []string{"broken.xml", filepath.Join("proxies", "bad.xml")} {
		if !contains(res.SkippedFiles, want) {
			t.Errorf("SkippedFiles = %v, want %s", res.SkippedFiles, want)
		}
	}
	if res.StrippedSteps != 1 {
		t.Errorf("StrippedSteps = %d, want 1", res.StrippedSteps)
	}

	manifest := filepath.Join(res.Dir, "proxy.xml")
	if got := manifestItems(t, manifest, "Policies", "Policy"); len(got) != 0 {
		t.Errorf("Policies = %v, want empty", got)
	}
	data, _ := os.ReadFile(manifest)
	if !strings.Contains(string(data), "<Resources") {
		t.Error("missing Resources section should be created")
	}
}

func TestCleanCopyFailure(t *testing.T) {
	src := scenarioBundle(t)
	b, err := New("P1", src, DefaultOptions(), testLogger())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	// A regular file where the output base should be makes the copy fail.
	base := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(base, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = b.Clean(base)
	if !errors.Is(err, ErrCopy) {
		t.Errorf("error = %v, want ErrCopy", err)
	}
}

func TestSyncSection(t *testing.T) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(`<APIProxy><Policies><Policy>old</Policy><!-- c --></Policies></APIProxy>`); err != nil {
		t.Fatal(err)
	}
	root := doc.Root()

	SyncSection(root, "Policies", "Policy", []string{"a", "b"})
	SyncSection(root, "Resources", "Resource", []string{"jsc://x.js"})
	first, _ := doc.WriteToString()

	SyncSection(root, "Policies", "Policy", []string{"a", "b"})
	SyncSection(root, "Resources", "Resource", []string{"jsc://x.js"})
	second, _ := doc.WriteToString()

	want := `<APIProxy><Policies><Policy>a</Policy><Policy>b</Policy></Policies><Resources><Resource>jsc://x.js</Resource></Resources></APIProxy>`
	if first != want {
		t.Errorf("document = %s, want %s", first, want)
	}
	if first != second {
		t.Error("SyncSection is not idempotent")
	}
}
