package builder

import (
	"strconv"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

const defaultPaletteFolder = "internalAssertions"

// EncassBuilder emits encapsulated assertion configs.
type EncassBuilder struct{}

func (EncassBuilder) Name() string  { return "encass" }
func (EncassBuilder) Priority() int { return 1100 }

func (e EncassBuilder) Build(b *v1alpha1.Bundle, mode Mode, bc *Context) ([]Record, error) {
	switch mode {
	case Environment:
		return nil, nil
	case Deployment:
	default:
		return nil, unsupported(e.Name(), mode)
	}
	var records []Record
	for _, key := range v1alpha1.SortedKeys(b.EncapsulatedAssertions) {
		enc := b.EncapsulatedAssertions[key]
		if excluded(enc) {
			continue
		}
		m, err := bc.Resolver.Find(key, types.EntityTypePolicy, enc.Policy)
		if err != nil {
			return nil, err
		}

		el := entityElement("EncapsulatedAssertion", &enc.Base)
		policyxml.AddText(el, "Guid", enc.GUID)
		policyxml.AddElement(el, "PolicyReference").CreateAttr("id", m.Entity.GetBase().ID)

		args := policyxml.AddElement(el, "EncapsulatedArguments")
		for i, a := range enc.Arguments {
			arg := policyxml.AddElement(args, "EncapsulatedAssertionArgument")
			policyxml.AddText(arg, "Ordinal", strconv.Itoa(i+1))
			policyxml.AddText(arg, "ArgumentName", a.Name)
			policyxml.AddText(arg, "ArgumentType", a.Type)
			policyxml.AddText(arg, "GuiLabel", a.GuiLabel)
			policyxml.AddText(arg, "GuiPrompt", strconv.FormatBool(a.GuiPrompt))
		}
		results := policyxml.AddElement(el, "EncapsulatedResults")
		for _, r := range enc.Results {
			res := policyxml.AddElement(results, "EncapsulatedAssertionResult")
			policyxml.AddText(res, "ResultName", r.Name)
			policyxml.AddText(res, "ResultType", r.Type)
		}

		props := map[string]string{"paletteFolder": defaultPaletteFolder}
		for k, v := range enc.Properties {
			props[k] = v
		}
		if d := enc.Annotated().Description; d != "" {
			props["description"] = d
		}
		policyxml.AddProperties(el, policyxml.StringProperties(props))

		records = append(records, behaviorRecord(enc, el, bc))
	}
	return records, nil
}
