package report

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OpenMined/proxylint/internal/bundle"
)

func size(n int64) *int64 { return &n }

func TestUnattached(t *testing.T) {
	if got := Unattached("orders", nil); got != "No unattached policies found in orders.\n" {
		t.Errorf("Unattached(empty) = %q", got)
	}
	want := "Unattached policies in orders:\n  - A.xml\n  - B.xml\n"
	if got := Unattached("orders", []string{"A", "B"}); got != want {
		t.Errorf("Unattached = %q, want %q", got, want)
	}
}

func TestSequential(t *testing.T) {
	t.Run("none found", func(t *testing.T) {
		got := Sequential(map[string][]bundle.Sequence{"a": nil})
		if got != noSequences {
			t.Errorf("Sequential = %q", got)
		}
	})

	t.Run("sorted by bundle", func(t *testing.T) {
		got := Sequential(map[string][]bundle.Sequence{
			"zeta": {{File: "default.xml", Location: "PreFlow/Request", Units: []string{"A", "B"}}},
			"alpha": {
				{File: "default.xml", Location: "Flow 'get'/Response", Units: []string{"C", "D", "E"}},
				{File: "target.xml", Location: "PostFlow/Request", Units: []string{"F", "G"}},
			},
			"empty": nil,
		})
		want := "--- Found sequential JS steps in proxy: alpha ---\n" +
			"  - Location: default.xml -> Flow 'get'/Response\n" +
			"    Sequence: C, D, E\n" +
			"  - Location: target.xml -> PostFlow/Request\n" +
			"    Sequence: F, G\n" +
			"\n" +
			"--- Found sequential JS steps in proxy: zeta ---\n" +
			"  - Location: default.xml -> PreFlow/Request\n" +
			"    Sequence: A, B\n"
		if got != want {
			t.Errorf("Sequential =\n%s\nwant\n%s", got, want)
		}
	})
}

func TestSize(t *testing.T) {
	const mib = 1024 * 1024

	t.Run("report only", func(t *testing.T) {
		got := Size([]SizeEntry{{Name: "b", Original: mib}, {Name: "a", Original: mib / 2}})
		want := "# API Proxy Analysis Report\n" +
			"| Proxy Name | Original Size (MB) |\n" +
			"|---|---|\n" +
			"| a | 0.500 |\n" +
			"| b | 1.000 |\n" +
			"| **Total** | **1.500** |"
		if got != want {
			t.Errorf("Size =\n%s\nwant\n%s", got, want)
		}
	})

	t.Run("mixed apply", func(t *testing.T) {
		got := Size([]SizeEntry{
			{Name: "cleaned", Original: 2 * mib, Cleaned: size(mib)},
			{Name: "as-is", Original: mib},
		})
		want := "# API Proxy Refactoring Summary\n" +
			"| Proxy Name | Original Size (MB) | Cleaned Size (MB) | Reduction (MB) | Reduction (%) |\n" +
			"|---|---|---|---|---|\n" +
			"| as-is | 1.000 | N/A | N/A | N/A |\n" +
			"| cleaned | 2.000 | 1.000 | **1.000** | **50.00%** |\n" +
			"| **Total** | **3.000** | **2.000** | **1.000** | **33.33%** |"
		if got != want {
			t.Errorf("Size =\n%s\nwant\n%s", got, want)
		}
	})

	t.Run("zero original", func(t *testing.T) {
		got := Size([]SizeEntry{{Name: "x", Original: 0, Cleaned: size(0)}})
		want := "| x | 0.000 | 0.000 | **0.000** | **0.00%** |"
		if !containsLine(got, want) {
			t.Errorf("Size = %s, want line %s", got, want)
		}
	})

	if got := Size(nil); got != "" {
		t.Errorf("Size(nil) = %q", got)
	}
}

func containsLine(text, line string) bool {
	for _, l := range strings.Split(text, "\n") {
		if l == line {
			return true
		}
	}
	return false
}

func TestWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	path, err := w.WriteUnattached([]string{Unattached("a", nil), Unattached("b", []string{"X"})})
	if err != nil {
		t.Fatalf("WriteUnattached error: %v", err)
	}
	data, _ := os.ReadFile(path)
	want := "No unattached policies found in a.\n\nUnattached policies in b:\n  - X.xml\n"
	if string(data) != want {
		t.Errorf("unattached file = %q, want %q", data, want)
	}

	path, err = w.WriteSize(nil)
	if err != nil || path != "" {
		t.Errorf("WriteSize(nil) = %q, %v", path, err)
	}
	if _, err := os.Stat(filepath.Join(dir, SizeFile)); !os.IsNotExist(err) {
		t.Error("size report should not be written without entries")
	}

	if _, err := w.WriteSequential(nil); err != nil {
		t.Fatalf("WriteSequential error: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, SequentialFile))
	if string(data) != noSequences {
		t.Errorf("sequential file = %q", data)
	}
}
