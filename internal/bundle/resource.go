package bundle

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResourceLink is a policy's reference to a resource file, written as scheme://filename.
type ResourceLink struct {
	Scheme   string
	Filename string
}

// String returns the link in scheme://filename form.
func (l ResourceLink) String() string {
	return l.Scheme + "://" + l.Filename
}

// Path returns the resource file location under the bundle root.
func (l ResourceLink) Path(bundleDir string) string {
	return filepath.Join(bundleDir, ResourcesDir, l.Scheme, l.Filename)
}

// ParseResourceLink splits a scheme://filename URI.
// The URI must split into exactly two non-empty parts, and the filename must not
// name a path outside its scheme directory.
func ParseResourceLink(uri string) (ResourceLink, error) {
	parts := strings.Split(strings.TrimSpace(uri), "://")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ResourceLink{}, fmt.Errorf("%w: %q", ErrResourceLink, uri)
	}
	scheme, filename := parts[0], parts[1]
	if strings.ContainsAny(scheme, `/\`) || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return ResourceLink{}, fmt.Errorf("%w: %q", ErrResourceLink, uri)
	}
	return ResourceLink{Scheme: scheme, Filename: filename}, nil
}
