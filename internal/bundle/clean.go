package bundle

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CleanResult describes what a cleaning pass changed.
type CleanResult struct {
	// Dir is the cleaned apiproxy directory.
	Dir string `json:"dir"`

	// RemovedUnits are the policies whose files were deleted.
	RemovedUnits []string `json:"removed_units"`

	// RemovedResources are the scheme://filename links whose files were deleted.
	RemovedResources []string `json:"removed_resources"`

	// StrippedSteps counts Step elements removed across all documents.
	StrippedSteps int `json:"stripped_steps"`

	// RewrittenFiles are the documents saved with changes, relative to Dir.
	RewrittenFiles []string `json:"rewritten_files"`

	// SkippedFiles are documents that could not be parsed or saved, relative to Dir.
	SkippedFiles []string `json:"skipped_files,omitempty"`
}

// Clean copies the bundle to <outputBase>/<name>/apiproxy and removes every
// unattached policy from the copy, together with its resource file, any Step that
// invokes a removed policy, and the stale manifest entries.
//
// Failing to prepare or populate the destination is fatal. Documents that cannot be
// parsed or saved while stripping steps or syncing manifests are logged and skipped.
func (b *Bundle) Clean(outputBase string) (*CleanResult, error) {
	root := filepath.Join(outputBase, b.Name)
	dest := filepath.Join(root, "apiproxy")

	if err := os.RemoveAll(root); err != nil {
		return nil, &CopyError{Path: root, Message: "failed to clear previous output", Cause: err}
	}
	if err := copyTree(b.Dir, dest); err != nil {
		return nil, err
	}
	b.logger.Info("copied bundle", "dest", dest)

	result := &CleanResult{
		Dir:              dest,
		RemovedUnits:     []string{},
		RemovedResources: []string{},
		RewrittenFiles:   []string{},
	}

	b.removeUnits(dest, b.UnattachedUnits(), result)
	b.stripOrphanedSteps(dest, result)
	b.syncManifests(dest, result)

	b.logger.Info("cleaned bundle",
		"removed_units", len(result.RemovedUnits),
		"removed_resources", len(result.RemovedResources),
		"stripped_steps", result.StrippedSteps,
		"rewritten_files", len(result.RewrittenFiles),
	)
	return result, nil
}

// removeUnits deletes each policy file in dest and the resource it links to.
// The link is read from the copy before the policy file is deleted.
func (b *Bundle) removeUnits(dest string, names []string, result *CleanResult) {
	store := NewStore(b.Name, dest, b.logger)

	for _, name := range names {
		policyPath := filepath.Join(dest, PoliciesDir, name+xmlExt)
		raw, hasLink := resourceLink(store, policyPath, b.opts)

		if err := os.Remove(policyPath); err == nil {
			result.RemovedUnits = append(result.RemovedUnits, name)
		} else if !errors.Is(err, fs.ErrNotExist) {
			b.logger.Warn("failed to remove policy", "policy", name, "error", err)
		}

		if !hasLink {
			continue
		}
		link, err := ParseResourceLink(raw)
		if err != nil {
			b.logger.Warn("skipping resource of policy", "policy", name, "error", err)
			continue
		}
		if err := os.Remove(link.Path(dest)); err == nil {
			result.RemovedResources = append(result.RemovedResources, link.String())
		} else if !errors.Is(err, fs.ErrNotExist) {
			b.logger.Warn("failed to remove resource", "policy", name, "resource", link.String(), "error", err)
		}
	}
}

// stripOrphanedSteps removes, from every XML document under dest, each Step whose
// Name is not a surviving policy. Steps without a Name element are kept.
func (b *Bundle) stripOrphanedSteps(dest string, result *CleanResult) {
	surviving := make(map[string]bool)
	for _, name := range policyListing(dest) {
		surviving[name] = true
	}

	for _, path := range allXMLFiles(dest) {
		rel, _ := filepath.Rel(dest, path)
		removed, err := stripDocument(path, surviving)
		if err != nil {
			b.skip(result, rel, err)
			continue
		}
		if removed > 0 {
			result.StrippedSteps += removed
			result.RewrittenFiles = append(result.RewrittenFiles, rel)
			b.logger.Debug("removed orphaned steps", "file", rel, "count", removed)
		}
	}
}

// stripDocument owns one document for the duration of the edit.
func stripDocument(path string, surviving map[string]bool) (int, error) {
	doc, err := readDocument(path)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, parent := range stepParents(doc.Root()) {
		for _, step := range parent.SelectElements(tagStep) {
			if step.SelectElement(tagName) == nil || surviving[stepTarget(step)] {
				continue
			}
			removeElement(parent, step)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if _, err := writeDocument(doc, path); err != nil {
		return 0, err
	}
	return removed, nil
}

// syncManifests rewrites the Policies and Resources sections of every root-level
// manifest to match the files present in dest.
func (b *Bundle) syncManifests(dest string, result *CleanResult) {
	policies := policyListing(dest)
	resources := resourceListing(dest, b.opts.ResourceTypes)

	for _, path := range xmlFilesIn(dest) {
		rel := filepath.Base(path)
		doc, err := readDocument(path)
		if err != nil {
			b.skip(result, rel, err)
			continue
		}
		SyncSection(doc.Root(), tagPolicies, tagPolicy, policies)
		SyncSection(doc.Root(), tagResources, tagResource, resources)

		changed, err := writeDocument(doc, path)
		if err != nil {
			b.skip(result, rel, err)
			continue
		}
		if changed && !contains(result.RewrittenFiles, rel) {
			result.RewrittenFiles = append(result.RewrittenFiles, rel)
		}
	}
}

func (b *Bundle) skip(result *CleanResult, rel string, err error) {
	var parseErr *ParseError
	var writeErr *WriteError
	switch {
	case errors.As(err, &parseErr):
		b.logger.Warn("skipping unparsable document", "file", rel, "error", parseErr.Cause)
	case errors.As(err, &writeErr):
		b.logger.Warn("skipping document that could not be saved", "file", rel, "error", writeErr.Cause)
	default:
		b.logger.Warn("skipping unreadable document", "file", rel, "error", err)
	}
	result.SkippedFiles = append(result.SkippedFiles, rel)
}

// allXMLFiles walks dir depth-first and returns every *.xml regular file.
func allXMLFiles(dir string) []string {
	var files []string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() && filepath.Ext(path) == xmlExt {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// xmlFilesIn returns the *.xml regular files directly inside dir.
func xmlFilesIn(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && filepath.Ext(entry.Name()) == xmlExt {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// copyTree duplicates src into dst, which must not exist.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &CopyError{Path: path, Message: "failed to read source", Cause: err}
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return &CopyError{Path: path, Message: "failed to resolve path", Cause: err}
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return &CopyError{Path: target, Message: "failed to create directory", Cause: err}
			}
		case d.Type().IsRegular():
			if err := copyFile(path, target); err != nil {
				return &CopyError{Path: target, Message: "failed to copy file", Cause: err}
			}
		}
		return nil
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
