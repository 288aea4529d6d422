// Package report renders the per-run report files.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/OpenMined/proxylint/internal/bundle"
)

// Report file names, written into the output directory.
const (
	UnattachedFile = "unattached_policies_summary.txt"
	SizeFile       = "refactor_summary_report.md"
	SequentialFile = "sequential_js_steps_report.txt"
)

const noSequences = "No sequential, condition-less JavaScript steps found across all proxies."

// Unattached returns the unattached-unit text block for one bundle.
func Unattached(name string, units []string) string {
	if len(units) == 0 {
		return fmt.Sprintf("No unattached policies found in %s.\n", name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Unattached policies in %s:\n", name)
	for i, u := range units {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "  - %s.xml", u)
	}
	b.WriteByte('\n')
	return b.String()
}

// Sequential renders the sequence report for all bundles, sorted by bundle name.
// Bundles with no sequences are omitted.
func Sequential(byBundle map[string][]bundle.Sequence) string {
	names := make([]string, 0, len(byBundle))
	for name := range byBundle {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	found := 0
	for _, name := range names {
		seqs := byBundle[name]
		if len(seqs) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("--- Found sequential JS steps in proxy: %s ---", name))
		for _, s := range seqs {
			found++
			lines = append(lines,
				fmt.Sprintf("  - Location: %s -> %s", s.File, s.Location),
				fmt.Sprintf("    Sequence: %s", strings.Join(s.Units, ", ")),
			)
		}
		lines = append(lines, "")
	}
	if found == 0 {
		lines = append(lines, noSequences)
	}
	return strings.Join(lines, "\n")
}

// SizeEntry is one bundle row of the size report.
type SizeEntry struct {
	Name     string `json:"name"`
	Original int64  `json:"original_size"`

	// Cleaned is nil when the bundle was not cleaned.
	Cleaned *int64 `json:"cleaned_size,omitempty"`
}

// Size renders the markdown size report. Entries are sorted by name. When any
// entry was cleaned the report compares sizes; otherwise it lists originals.
func Size(entries []SizeEntry) string {
	if len(entries) == 0 {
		return ""
	}
	sorted := append([]SizeEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	applied := false
	for _, e := range sorted {
		if e.Cleaned != nil {
			applied = true
			break
		}
	}
	if applied {
		return strings.Join(refactorTable(sorted), "\n")
	}
	return strings.Join(analysisTable(sorted), "\n")
}

func refactorTable(entries []SizeEntry) []string {
	lines := []string{
		"# API Proxy Refactoring Summary",
		"| Proxy Name | Original Size (MB) | Cleaned Size (MB) | Reduction (MB) | Reduction (%) |",
		"|---|---|---|---|---|",
	}
	var totalOrig, totalClean int64
	for _, e := range entries {
		clean := e.Original
		if e.Cleaned != nil {
			clean = *e.Cleaned
		}
		totalOrig += e.Original
		totalClean += clean

		if e.Cleaned == nil {
			lines = append(lines, fmt.Sprintf("| %s | %.3f | N/A | N/A | N/A |", e.Name, mb(e.Original)))
			continue
		}
		lines = append(lines, fmt.Sprintf("| %s | %.3f | %.3f | **%.3f** | **%.2f%%** |",
			e.Name, mb(e.Original), mb(clean), mb(e.Original-clean), percent(e.Original, clean)))
	}
	lines = append(lines, fmt.Sprintf("| **Total** | **%.3f** | **%.3f** | **%.3f** | **%.2f%%** |",
		mb(totalOrig), mb(totalClean), mb(totalOrig-totalClean), percent(totalOrig, totalClean)))
	return lines
}

func analysisTable(entries []SizeEntry) []string {
	lines := []string{
		"# API Proxy Analysis Report",
		"| Proxy Name | Original Size (MB) |",
		"|---|---|",
	}
	var total int64
	for _, e := range entries {
		total += e.Original
		lines = append(lines, fmt.Sprintf("| %s | %.3f |", e.Name, mb(e.Original)))
	}
	return append(lines, fmt.Sprintf("| **Total** | **%.3f** |", mb(total)))
}

func mb(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

func percent(orig, clean int64) float64 {
	if orig <= 0 {
		return 0
	}
	return float64(orig-clean) / float64(orig) * 100
}

// Writer writes report files into one directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer for dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, logger: logger}
}

// Path returns the full path of a report file.
func (w *Writer) Path(file string) string {
	return filepath.Join(w.dir, file)
}

// WriteUnattached joins per-bundle blocks with a newline and writes the summary file.
func (w *Writer) WriteUnattached(blocks []string) (string, error) {
	return w.write(UnattachedFile, strings.Join(blocks, "\n"))
}

// WriteSequential writes the sequence report.
func (w *Writer) WriteSequential(byBundle map[string][]bundle.Sequence) (string, error) {
	return w.write(SequentialFile, Sequential(byBundle))
}

// WriteSize writes the size report. Nothing is written, and the returned
// path is empty, when there are no entries.
func (w *Writer) WriteSize(entries []SizeEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	return w.write(SizeFile, Size(entries))
}

func (w *Writer) write(file, content string) (string, error) {
	path := w.Path(file)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", file, err)
	}
	w.logger.Info("report saved", "path", path)
	return path, nil
}
