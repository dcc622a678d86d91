package policyxml

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/beevik/etree"

	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Property is one typed key/value pair in a restman Properties element.
// Value may be a string, bool, or int.
type Property struct {
	Key   string
	Value any
}

// NewElement creates a restman element, e.g. NewElement("Policy") for l7:Policy.
func NewElement(tag string) *etree.Element {
	return etree.NewElement(types.GatewayManagementPrefix + ":" + tag)
}

// AddElement appends a restman child element.
func AddElement(parent *etree.Element, tag string) *etree.Element {
	return parent.CreateElement(types.GatewayManagementPrefix + ":" + tag)
}

// AddText appends a restman child element holding text.
func AddText(parent *etree.Element, tag, text string) *etree.Element {
	el := AddElement(parent, tag)
	el.SetText(text)
	return el
}

// AddProperties appends an l7:Properties element with one l7:Property per
// entry in order. Nothing is added when props is empty.
func AddProperties(parent *etree.Element, props []Property) {
	if len(props) == 0 {
		return
	}
	container := AddElement(parent, "Properties")
	for _, p := range props {
		prop := AddElement(container, "Property")
		prop.CreateAttr("key", p.Key)
		switch v := p.Value.(type) {
		case bool:
			AddText(prop, "BooleanValue", strconv.FormatBool(v))
		case int:
			AddText(prop, "IntegerValue", strconv.Itoa(v))
		default:
			AddText(prop, "StringValue", fmt.Sprint(v))
		}
	}
}

// StringProperties converts a string map into properties sorted by key.
func StringProperties(m map[string]string) []Property {
	out := make([]Property, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, Property{Key: k, Value: m[k]})
	}
	return out
}
