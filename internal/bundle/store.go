package bundle

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/beevik/etree"
)

// Store lazily parses and caches the XML documents of one bundle.
// Each document is parsed at most once; a parse failure is cached and logged once.
// Callers must not mutate documents returned by a Store.
type Store struct {
	dir    string
	name   string
	logger *slog.Logger

	mu   sync.Mutex
	docs map[string]storeEntry
}

type storeEntry struct {
	doc *etree.Document
	err error
}

// NewStore creates a document store rooted at a bundle directory.
func NewStore(name, dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:    dir,
		name:   name,
		logger: logger,
		docs:   make(map[string]storeEntry),
	}
}

// Dir returns the bundle root.
func (s *Store) Dir() string {
	return s.dir
}

// Document returns the parsed document at path. A nil document and an error are
// returned when the file cannot be read or parsed.
func (s *Store) Document(path string) (*etree.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.docs[path]; ok {
		return entry.doc, entry.err
	}

	doc, err := readDocument(path)
	if err != nil {
		s.logger.Warn("could not parse XML file",
			"bundle", s.name,
			"path", path,
			"error", err,
		)
	}
	s.docs[path] = storeEntry{doc: doc, err: err}
	return doc, err
}

// Root returns the root element of the document at path, or nil if it is absent or unparsable.
func (s *Store) Root(path string) *etree.Element {
	doc, err := s.Document(path)
	if err != nil || doc == nil {
		return nil
	}
	return doc.Root()
}

// UnitFiles lists the policy documents, sorted by name.
func (s *Store) UnitFiles() []string {
	return s.xmlFiles(filepath.Join(s.dir, PoliciesDir))
}

// ProxyEndpointFiles lists the proxy endpoint documents, sorted by name.
func (s *Store) ProxyEndpointFiles() []string {
	return s.xmlFiles(filepath.Join(s.dir, ProxiesDir))
}

// TargetEndpointFiles lists the target endpoint documents, sorted by name.
func (s *Store) TargetEndpointFiles() []string {
	return s.xmlFiles(filepath.Join(s.dir, TargetsDir))
}

// EndpointFiles lists proxy endpoints followed by target endpoints.
func (s *Store) EndpointFiles() []string {
	return append(s.ProxyEndpointFiles(), s.TargetEndpointFiles()...)
}

// ManifestFiles lists the XML documents directly under the bundle root.
func (s *Store) ManifestFiles() []string {
	return s.xmlFiles(s.dir)
}

// xmlFiles returns the regular *.xml files directly inside dir. A missing
// directory yields an empty list.
func (s *Store) xmlFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read directory",
				"bundle", s.name,
				"path", dir,
				"error", err,
			)
		}
		return nil
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || filepath.Ext(entry.Name()) != xmlExt {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files
}

// unitName derives a policy name from its file path.
func unitName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), xmlExt)
}

// readDocument parses an XML file without caching. Filesystem failures are
// returned as-is; malformed content is reported as a *ParseError.
func readDocument(path string) (*etree.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &ParseError{Path: path, Cause: err}
	}
	if doc.Root() == nil {
		return nil, &ParseError{Path: path, Cause: errNoRoot}
	}
	return doc, nil
}
