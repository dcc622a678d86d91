package rewrite

import (
	"github.com/beevik/etree"

	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// rewriteEncass points an encapsulated assertion at its config's guid and
// resolved name. An assertion marked NoOpIfConfigMissing gets a placeholder
// guid instead of failing when the config cannot be found.
func rewriteEncass(el *etree.Element, rc *Context) error {
	name, ok := policyxml.StringValue(el, policyxml.TagEncassName)
	if !ok {
		return missingElement(rc, policyxml.TagEncapsulated, policyxml.TagEncassName)
	}
	m, err := rc.Resolver.Find(rc.Consumer, types.EntityTypeEncass, name)
	if err != nil {
		if conditions.ReasonOf(err) == conditions.ReasonDependencyNotFound && policyxml.BoolValue(el, policyxml.TagNoOpIfConfigMissing) {
			rc.Log.V(1).Info("encapsulated assertion not found, writing no-op placeholder", "policy", rc.Consumer, "encass", name)
			policyxml.SetValue(el, policyxml.TagEncassGUID, policyxml.AttrStringValue, types.MissingEncassGUID)
			return nil
		}
		return err
	}
	if err := checkPublished(rc, m, name, false, true); err != nil {
		return err
	}
	target := m.Entity.GetBase()
	policyxml.SetValue(el, policyxml.TagEncassGUID, policyxml.AttrStringValue, target.GUID)
	policyxml.SetValue(el, policyxml.TagEncassName, policyxml.AttrStringValue, target.Name)
	return nil
}
