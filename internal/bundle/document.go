package bundle

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/ia-eknorr/stoker-bundler/internal/builder"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Assemble builds the restman bundle document for records: every record
// with content becomes a reference item, and every record gets a mapping,
// both in record order.
func Assemble(records []builder.Record) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := policyxml.NewElement("Bundle")
	root.CreateAttr("xmlns:"+types.GatewayManagementPrefix, types.GatewayManagementNS)
	doc.SetRoot(root)

	refs := policyxml.AddElement(root, "References")
	mappings := policyxml.AddElement(root, "Mappings")

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		key := r.Type + "/" + r.ID
		if seen[key] {
			return nil, conditions.Errorf(conditions.ReasonInvalidContent, r.Name, "%s %s emitted twice", r.Type, r.ID)
		}
		seen[key] = true

		if r.Content != nil {
			item := policyxml.AddElement(refs, "Item")
			policyxml.AddText(item, "Name", r.Name)
			policyxml.AddText(item, "Id", r.ID)
			policyxml.AddText(item, "Type", r.Type)
			policyxml.AddElement(item, "Resource").AddChild(r.Content.Copy())
		}

		m := policyxml.AddElement(mappings, "Mapping")
		m.CreateAttr("action", r.Action)
		m.CreateAttr("srcId", r.ID)
		m.CreateAttr("type", r.Type)
		policyxml.AddProperties(m, r.Properties)
	}
	return doc, nil
}

// Render assembles records and serializes the document.
func Render(records []builder.Record) ([]byte, error) {
	doc, err := Assemble(records)
	if err != nil {
		return nil, err
	}
	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("writing bundle document: %w", err)
	}
	return out, nil
}
