// Package archive unpacks proxy bundle archives and packs cleaned bundles back into archives.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrUnsafePath is returned for archive entries that would land outside the destination.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// BundleRoot is the directory inside an archive holding the bundle.
const BundleRoot = "apiproxy"

var revisionSuffix = regexp.MustCompile(`^(.*?)(?:_rev\d+_\d{4}_\d{2}_\d{2})?$`)

// BundleName derives a bundle name from an archive file stem by dropping a
// trailing _rev<N>_<YYYY>_<MM>_<DD> export suffix.
func BundleName(stem string) string {
	return revisionSuffix.FindStringSubmatch(stem)[1]
}

// Unpacked lists the bundles extracted by ExtractAll.
type Unpacked struct {
	// Dirs maps bundle names to their extracted apiproxy directory.
	Dirs map[string]string

	// Sizes maps bundle names to the size of their archive in bytes.
	Sizes map[string]int64
}

// Names returns the extracted bundle names, sorted.
func (u *Unpacked) Names() []string {
	names := make([]string, 0, len(u.Dirs))
	for name := range u.Dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExtractAll clears tempDir and extracts every *.zip in sourceDir into
// tempDir/<bundle-name>. Archives without an apiproxy directory are sized but
// not listed in Dirs.
func ExtractAll(sourceDir, tempDir string) (*Unpacked, error) {
	if err := os.RemoveAll(tempDir); err != nil {
		return nil, fmt.Errorf("failed to clear temp directory: %w", err)
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	archives, err := filepath.Glob(filepath.Join(sourceDir, "*.zip"))
	if err != nil {
		return nil, err
	}
	sort.Strings(archives)

	out := &Unpacked{Dirs: make(map[string]string), Sizes: make(map[string]int64)}
	for _, path := range archives {
		name := BundleName(strings.TrimSuffix(filepath.Base(path), ".zip"))

		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		out.Sizes[name] = info.Size()

		dest := filepath.Join(tempDir, name)
		if err := Extract(path, dest); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", filepath.Base(path), err)
		}

		bundleDir := filepath.Join(dest, BundleRoot)
		if info, err := os.Stat(bundleDir); err == nil && info.IsDir() {
			out.Dirs[name] = bundleDir
		}
	}
	return out, nil
}

// Extract unpacks a zip archive into dest.
func Extract(zipPath, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Pack writes <outDir>/<name>.zip where name is the parent directory of
// bundleDir. Entry names are relative to that parent, so they start with
// apiproxy/. It returns the archive size in bytes.
func Pack(bundleDir, outDir string) (int64, error) {
	parent := filepath.Dir(bundleDir)
	zipPath := filepath.Join(outDir, filepath.Base(parent)+".zip")

	file, err := os.Create(zipPath)
	if err != nil {
		return 0, err
	}

	w := zip.NewWriter(file)
	walkErr := filepath.WalkDir(bundleDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		return addFile(w, path, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		w.Close()
		file.Close()
		return 0, walkErr
	}
	if err := w.Close(); err != nil {
		file.Close()
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, err
	}

	info, err := os.Stat(zipPath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func addFile(w *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := w.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, in)
	return err
}
