// Package runner drives a full analysis run over a directory of bundle archives.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OpenMined/proxylint/internal/archive"
	"github.com/OpenMined/proxylint/internal/bundle"
	"github.com/OpenMined/proxylint/internal/report"
	"github.com/OpenMined/proxylint/internal/rules"
	"github.com/OpenMined/proxylint/internal/runlog"
)

// OutputProxiesDir is the subdirectory of the output dir holding cleaned bundles.
const OutputProxiesDir = "proxies"

// Options configures a Runner.
type Options struct {
	// ProxiesDir holds the *.zip bundle archives.
	ProxiesDir string

	// OutputDir receives reports and cleaned bundles. It is cleared at the start of each run.
	OutputDir string

	// TempDir is used for extraction and removed at the end of each run.
	TempDir string

	// Jobs bounds how many bundles are processed concurrently.
	Jobs int

	// Bundle holds the analysis options.
	Bundle bundle.Options

	// History records each run when set.
	History *runlog.Store

	Logger *slog.Logger
}

// Runner executes rule selections.
type Runner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{opts: opts, logger: logger}
}

// BundleResult is the outcome of running the selected rules on one bundle.
type BundleResult struct {
	Name       string              `json:"name"`
	Original   int64               `json:"original_size"`
	Cleaned    *int64              `json:"cleaned_size,omitempty"`
	Unattached []string            `json:"unattached,omitempty"`
	Sequences  []bundle.Sequence   `json:"sequences,omitempty"`
	Clean      *bundle.CleanResult `json:"clean,omitempty"`

	// Error is set when the bundle could not be loaded at all.
	Error string `json:"error,omitempty"`

	// RuleErrors maps rule names to failures on this bundle.
	RuleErrors map[string]string `json:"rule_errors,omitempty"`

	report string
}

// Loaded reports whether the bundle was analysed.
func (r *BundleResult) Loaded() bool {
	return r.Error == ""
}

func (r *BundleResult) ruleFailed(rule string, err error) {
	if r.RuleErrors == nil {
		r.RuleErrors = make(map[string]string)
	}
	r.RuleErrors[rule] = err.Error()
}

// Summary describes a completed run.
type Summary struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Rules     []string        `json:"rules"`
	Bundles   []*BundleResult `json:"bundles"`
	Reports   []string        `json:"reports"`
}

// Run executes the selected rules on every archive in the proxies directory
// and writes the reports.
func (r *Runner) Run(ctx context.Context, sel rules.Selection) (*Summary, error) {
	started := time.Now()
	rec := runlog.NewRecord(sel.Strings(), started)
	summary := &Summary{ID: rec.ID, StartedAt: started, Rules: rec.Rules, Bundles: []*BundleResult{}}

	r.logger.Info("starting run", "id", rec.ID, "rules", rec.Rules)

	if err := os.RemoveAll(r.opts.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to clear output directory: %w", err)
	}
	outProxies := filepath.Join(r.opts.OutputDir, OutputProxiesDir)
	if err := os.MkdirAll(outProxies, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	defer r.removeTemp()

	unpacked, err := archive.ExtractAll(r.opts.ProxiesDir, r.opts.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack bundles: %w", err)
	}
	names := unpacked.Names()
	if len(names) == 0 {
		r.logger.Warn("no proxy bundles found", "dir", r.opts.ProxiesDir)
		summary.Duration = time.Since(started)
		return summary, nil
	}

	results := make([]*BundleResult, len(names))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Jobs)
	for i, name := range names {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = r.processBundle(name, unpacked.Dirs[name], unpacked.Sizes[name], outProxies, sel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	summary.Bundles = results

	reports, err := r.writeReports(sel, results)
	if err != nil {
		return nil, err
	}
	summary.Reports = reports
	summary.Duration = time.Since(started)

	r.recordHistory(rec, summary)
	r.logger.Info("run finished", "id", rec.ID, "bundles", len(results), "duration", summary.Duration)
	return summary, nil
}

func (r *Runner) processBundle(name, dir string, size int64, outProxies string, sel rules.Selection) *BundleResult {
	res := &BundleResult{Name: name, Original: size}
	logger := r.logger.With("bundle", name)
	logger.Info("processing bundle")

	b, err := bundle.New(name, dir, r.opts.Bundle, r.logger)
	if err != nil {
		logger.Error("skipping bundle", "error", err)
		res.Error = err.Error()
		return res
	}

	for _, choice := range sel {
		logger.Info("running rule", "rule", choice.Rule, "variant", choice.Variant)
		var err error
		switch choice.Rule {
		case rules.UnattachedPolicy:
			err = r.unattached(b, choice.Variant, outProxies, res)
		case rules.SequentialJS:
			res.Sequences = b.Sequences()
		}
		if err != nil {
			logger.Error("rule failed", "rule", choice.Rule, "error", err)
			res.ruleFailed(choice.Rule, err)
		}
	}
	return res
}

func (r *Runner) unattached(b *bundle.Bundle, variant, outProxies string, res *BundleResult) error {
	res.Unattached = b.UnattachedUnits()
	res.report = report.Unattached(b.Name, res.Unattached)

	if variant != rules.ApplyAndReport {
		return nil
	}
	cleaned, err := b.Clean(outProxies)
	if err != nil {
		return err
	}
	res.Clean = cleaned

	size, err := archive.Pack(cleaned.Dir, outProxies)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", b.Name, err)
	}
	res.Cleaned = &size
	return nil
}

func (r *Runner) writeReports(sel rules.Selection, results []*BundleResult) ([]string, error) {
	w := report.NewWriter(r.opts.OutputDir, r.logger)
	var written []string
	add := func(path string, err error) error {
		if err != nil {
			return err
		}
		if path != "" {
			written = append(written, path)
		}
		return nil
	}

	if sel.Has(rules.UnattachedPolicy) {
		var blocks []string
		var sizes []report.SizeEntry
		for _, res := range results {
			if !res.Loaded() {
				continue
			}
			if res.report != "" {
				blocks = append(blocks, res.report)
			}
			sizes = append(sizes, report.SizeEntry{Name: res.Name, Original: res.Original, Cleaned: res.Cleaned})
		}
		if err := add(w.WriteUnattached(blocks)); err != nil {
			return nil, err
		}
		if err := add(w.WriteSize(sizes)); err != nil {
			return nil, err
		}
	}

	if sel.Has(rules.SequentialJS) {
		byBundle := make(map[string][]bundle.Sequence)
		for _, res := range results {
			if res.Loaded() {
				byBundle[res.Name] = res.Sequences
			}
		}
		if err := add(w.WriteSequential(byBundle)); err != nil {
			return nil, err
		}
	}
	return written, nil
}

func (r *Runner) removeTemp() {
	if err := os.RemoveAll(r.opts.TempDir); err != nil {
		r.logger.Warn("failed to remove temp directory", "dir", r.opts.TempDir, "error", err)
	}
}

func (r *Runner) recordHistory(rec *runlog.Record, summary *Summary) {
	if r.opts.History == nil {
		return
	}
	rec.DurationMs = summary.Duration.Milliseconds()
	for _, res := range summary.Bundles {
		entry := runlog.BundleEntry{
			Name:       res.Name,
			Unattached: len(res.Unattached),
			Sequences:  len(res.Sequences),
			Original:   res.Original,
			Cleaned:    res.Cleaned,
			Error:      res.Error,
		}
		if entry.Error == "" && len(res.RuleErrors) > 0 {
			entry.Error = fmt.Sprintf("%d rule(s) failed", len(res.RuleErrors))
		}
		rec.Bundles = append(rec.Bundles, entry)
	}
	if err := r.opts.History.Append(rec); err != nil {
		r.logger.Warn("failed to record run history", "path", r.opts.History.Path(), "error", err)
	}
}

// Analysis is the result of analysing one extracted bundle directory.
type Analysis struct {
	Name      string                 `json:"name"`
	Graph     *bundle.ReferenceGraph `json:"graph"`
	Sequences []bundle.Sequence      `json:"sequences"`

	// Kinds maps each unattached policy to its root tag.
	Kinds map[string]string `json:"kinds"`
}

// AnalyzeDir runs both detectors on an extracted bundle directory.
func (r *Runner) AnalyzeDir(dir string) (*Analysis, error) {
	b, err := r.open(dir)
	if err != nil {
		return nil, err
	}
	seqs := b.Sequences()
	if seqs == nil {
		seqs = []bundle.Sequence{}
	}
	a := &Analysis{Name: b.Name, Graph: b.Graph(), Sequences: seqs, Kinds: make(map[string]string)}
	for _, name := range a.Graph.Unattached {
		if kind, ok := b.UnitKind(name); ok {
			a.Kinds[name] = kind
		}
	}
	return a, nil
}

// CleanDir cleans an extracted bundle directory into outDir/<name>/apiproxy,
// optionally packing outDir/<name>.zip. The returned size is zero unless packed.
func (r *Runner) CleanDir(dir, outDir string, pack bool) (*bundle.CleanResult, int64, error) {
	b, err := r.open(dir)
	if err != nil {
		return nil, 0, err
	}
	res, err := b.Clean(outDir)
	if err != nil {
		return nil, 0, err
	}
	if !pack {
		return res, 0, nil
	}
	size, err := archive.Pack(res.Dir, outDir)
	if err != nil {
		return res, 0, fmt.Errorf("failed to pack %s: %w", b.Name, err)
	}
	return res, size, nil
}

func (r *Runner) open(dir string) (*bundle.Bundle, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return bundle.New(BundleNameForDir(abs), abs, r.opts.Bundle, r.logger)
}

// BundleNameForDir names a bundle after its directory, or after the parent
// when the directory is the apiproxy root itself.
func BundleNameForDir(dir string) string {
	dir = filepath.Clean(dir)
	if filepath.Base(dir) == archive.BundleRoot {
		return filepath.Base(filepath.Dir(dir))
	}
	return filepath.Base(dir)
}

// IsStructural reports whether err means a bundle could not be loaded at all.
func IsStructural(err error) bool {
	return errors.Is(err, bundle.ErrStructure)
}
