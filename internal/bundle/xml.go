package bundle

import (
	"bytes"
	"os"
	"strings"

	"github.com/beevik/etree"
)

// descendants returns every element below root with the given tag, in document order.
// The root itself is never included.
func descendants(root *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, child := range e.ChildElements() {
			if child.Tag == tag {
				out = append(out, child)
			}
			walk(child)
		}
	}
	walk(root)
	return out
}

// stepParents returns every element, root included, that has at least one direct Step child.
func stepParents(root *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		if len(e.SelectElements(tagStep)) > 0 {
			out = append(out, e)
		}
		for _, child := range e.ChildElements() {
			walk(child)
		}
	}
	walk(root)
	return out
}

// stepTarget returns the trimmed text of a Step's Name child.
func stepTarget(step *etree.Element) string {
	name := step.SelectElement(tagName)
	if name == nil {
		return ""
	}
	return strings.TrimSpace(name.Text())
}

// hasCondition reports whether a Step carries a Condition child, empty or not.
func hasCondition(step *etree.Element) bool {
	return step.SelectElement(tagCondition) != nil
}

// removeElement detaches child from parent together with the indentation in front of it.
func removeElement(parent, child *etree.Element) {
	if idx := child.Index(); idx > 0 {
		if cd, ok := parent.Child[idx-1].(*etree.CharData); ok && cd.IsWhitespace() {
			parent.RemoveChildAt(idx - 1)
		}
	}
	parent.RemoveChild(child)
}

// serialize renders a document, adding an XML declaration if it has none.
func serialize(doc *etree.Document) ([]byte, error) {
	if !hasDeclaration(doc) {
		doc.InsertChildAt(0, etree.NewProcInst("xml", `version="1.0" encoding="UTF-8"`))
		doc.InsertChildAt(1, etree.NewCharData("\n"))
	}
	return doc.WriteToBytes()
}

func hasDeclaration(doc *etree.Document) bool {
	for _, t := range doc.Child {
		if pi, ok := t.(*etree.ProcInst); ok && pi.Target == "xml" {
			return true
		}
	}
	return false
}

// writeDocument saves doc to path unless the serialized form equals the current
// file content. It reports whether the file changed.
func writeDocument(doc *etree.Document, path string) (bool, error) {
	data, err := serialize(doc)
	if err != nil {
		return false, &WriteError{Path: path, Cause: err}
	}
	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, data) {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, &WriteError{Path: path, Cause: err}
	}
	if err := os.WriteFile(path, data, info.Mode().Perm()); err != nil {
		return false, &WriteError{Path: path, Cause: err}
	}
	return true, nil
}
