package policyxml

import (
	"fmt"
	"slices"
	"strings"

	"github.com/beevik/etree"
)

// Parse reads a policy document.
func Parse(content string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(content); err != nil {
		return nil, fmt.Errorf("parsing policy xml: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("parsing policy xml: document has no root element")
	}
	return doc, nil
}

// Serialize writes a policy document back to a string.
func Serialize(doc *etree.Document) (string, error) {
	s, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("writing policy xml: %w", err)
	}
	return s, nil
}

// Elements returns every element below root, in document order, whose
// prefixed tag is one of tags.
func Elements(root *etree.Element, tags ...string) []*etree.Element {
	var out []*etree.Element
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if slices.Contains(tags, el.FullTag()) {
			out = append(out, el)
		}
		for _, c := range el.ChildElements() {
			walk(c)
		}
	}
	walk(root)
	return out
}

// Contains reports whether any element below root has one of tags.
func Contains(root *etree.Element, tags ...string) bool {
	return len(Elements(root, tags...)) > 0
}

// Child returns the first direct child with the prefixed tag.
func Child(el *etree.Element, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.FullTag() == tag {
			return c
		}
	}
	return nil
}

// StringValue returns the stringValue attribute of the child tag.
func StringValue(el *etree.Element, tag string) (string, bool) {
	c := Child(el, tag)
	if c == nil {
		return "", false
	}
	a := c.SelectAttr(AttrStringValue)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// BoolValue returns the booleanValue attribute of the child tag.
func BoolValue(el *etree.Element, tag string) bool {
	c := Child(el, tag)
	return c != nil && c.SelectAttrValue(AttrBooleanValue, "false") == "true"
}

// SetValue sets attr on the child tag, creating the child if needed.
func SetValue(el *etree.Element, tag, attr, value string) *etree.Element {
	c := Child(el, tag)
	if c == nil {
		c = el.CreateElement(tag)
	}
	c.CreateAttr(attr, value)
	return c
}

// Replace swaps the child oldTag for a new child newTag carrying attr=value,
// keeping its position.
func Replace(el *etree.Element, oldTag, newTag, attr, value string) {
	old := Child(el, oldTag)
	repl := etree.NewElement(newTag)
	repl.CreateAttr(attr, value)
	if old == nil {
		el.AddChild(repl)
		return
	}
	el.InsertChildAt(old.Index(), repl)
	el.RemoveChild(old)
}

// Text returns the character data of el, CDATA sections included, with
// entities already unescaped.
func Text(el *etree.Element) string {
	var b strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	return b.String()
}

// IncludePaths returns the policy paths included by the document.
func IncludePaths(root *etree.Element) []string {
	var out []string
	for _, el := range Elements(root, TagInclude) {
		if p, ok := StringValue(el, TagPolicyPath); ok {
			out = append(out, p)
		}
	}
	return out
}

// EncassNames returns the encapsulated assertion names used by the document.
func EncassNames(root *etree.Element) []string {
	var out []string
	for _, el := range Elements(root, TagEncapsulated) {
		if n, ok := StringValue(el, TagEncassName); ok {
			out = append(out, n)
		}
	}
	return out
}
