package archive

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBundleName(t *testing.T) {
	tests := map[string]string{
		"orders_rev12_2024_01_31":  "orders",
		"orders":                   "orders",
		"orders_rev12":             "orders_rev12",
		"my_proxy_rev3_2023_12_01": "my_proxy",
	}
	for stem, want := range tests {
		if got := BundleName(stem); got != want {
			t.Errorf("BundleName(%q) = %q, want %q", stem, got, want)
		}
	}
}

func TestExtractAll(t *testing.T) {
	src := t.TempDir()
	tmp := filepath.Join(t.TempDir(), "temp")

	writeZip(t, filepath.Join(src, "orders_rev2_2024_05_01.zip"), map[string]string{
		"apiproxy/orders.xml":         "<APIProxy/>",
		"apiproxy/policies/Check.xml": "<Javascript/>",
	})
	writeZip(t, filepath.Join(src, "empty.zip"), map[string]string{
		"README.txt": "no bundle here",
	})
	if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// Stale content in the temp dir is cleared.
	if err := os.MkdirAll(filepath.Join(tmp, "stale"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := ExtractAll(src, tmp)
	if err != nil {
		t.Fatalf("ExtractAll error: %v", err)
	}

	if names := got.Names(); !reflect.DeepEqual(names, []string{"orders"}) {
		t.Errorf("Names = %v", names)
	}
	if got.Dirs["orders"] != filepath.Join(tmp, "orders", "apiproxy") {
		t.Errorf("Dirs[orders] = %q", got.Dirs["orders"])
	}
	if got.Sizes["orders"] == 0 || got.Sizes["empty"] == 0 {
		t.Errorf("Sizes = %v", got.Sizes)
	}
	if _, err := os.Stat(filepath.Join(tmp, "orders", "apiproxy", "policies", "Check.xml")); err != nil {
		t.Errorf("policy not extracted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "stale")); !os.IsNotExist(err) {
		t.Error("stale temp content should be removed")
	}
}

func TestExtractRejectsUnsafePaths(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	writeZip(t, zipPath, map[string]string{"../escape.txt": "x"})

	err := Extract(zipPath, filepath.Join(dir, "out"))
	if !errors.Is(err, ErrUnsafePath) {
		t.Errorf("error = %v, want ErrUnsafePath", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Error("entry escaped the destination")
	}
}

func TestPack(t *testing.T) {
	base := t.TempDir()
	bundleDir := filepath.Join(base, "orders", "apiproxy")
	files := map[string]string{
		"orders.xml":         "<APIProxy/>",
		"policies/Check.xml": "<Javascript/>",
		"resources/jsc/a.js": "var a = 1;",
	}
	for rel, content := range files {
		path := filepath.Join(bundleDir, rel)
		os.MkdirAll(filepath.Dir(path), 0755)
		os.WriteFile(path, []byte(content), 0644)
	}

	outDir := t.TempDir()
	size, err := Pack(bundleDir, outDir)
	if err != nil {
		t.Fatalf("Pack error: %v", err)
	}
	if size == 0 {
		t.Error("size should be non-zero")
	}

	r, err := zip.OpenReader(filepath.Join(outDir, "orders.zip"))
	if err != nil {
		t.Fatalf("open packed archive: %v", err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	want := []string{"apiproxy/orders.xml", "apiproxy/policies/Check.xml", "apiproxy/resources/jsc/a.js"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("entries = %v, want %v", names, want)
	}
}
