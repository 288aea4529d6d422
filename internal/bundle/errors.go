package bundle

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	ErrStructure    = errors.New("bundle structure error")
	ErrParse        = errors.New("parse error")
	ErrCopy         = errors.New("copy error")
	ErrWrite        = errors.New("write error")
	ErrResourceLink = errors.New("malformed resource link")

	errNoRoot = errors.New("document has no root element")
)

// StructureError indicates the bundle directory is missing a required directory.
// It is fatal for the bundle.
type StructureError struct {
	// Bundle is the bundle name.
	Bundle string

	// Dir is the directory that was expected.
	Dir string
}

// Error implements the error interface.
func (e *StructureError) Error() string {
	return fmt.Sprintf("bundle structure error: %s: required directory not found: %s", e.Bundle, e.Dir)
}

// Unwrap returns ErrStructure for errors.Is().
func (e *StructureError) Unwrap() error {
	return ErrStructure
}

// ParseError indicates a single XML document could not be parsed.
// Callers treat the document as absent.
type ParseError struct {
	// Path is the document that failed.
	Path string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s: %v", e.Path, e.Cause)
}

// Unwrap returns ErrParse for errors.Is().
func (e *ParseError) Unwrap() error {
	return ErrParse
}

// CopyError indicates the cleaning destination could not be prepared or populated.
type CopyError struct {
	// Path is the destination path.
	Path string

	// Message describes the failing step.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *CopyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("copy error: %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("copy error: %s: %s", e.Path, e.Message)
}

// Unwrap returns ErrCopy for errors.Is().
func (e *CopyError) Unwrap() error {
	return ErrCopy
}

// WriteError indicates a rewritten document could not be saved.
type WriteError struct {
	// Path is the document that failed.
	Path string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("write error: %s: %v", e.Path, e.Cause)
}

// Unwrap returns ErrWrite for errors.Is().
func (e *WriteError) Unwrap() error {
	return ErrWrite
}
