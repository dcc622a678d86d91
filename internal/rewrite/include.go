package rewrite

import (
	"github.com/beevik/etree"

	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// rewriteInclude swaps the included policy's path for its guid.
func rewriteInclude(el *etree.Element, rc *Context) error {
	path, ok := policyxml.StringValue(el, policyxml.TagPolicyPath)
	if !ok {
		if _, resolved := policyxml.StringValue(el, policyxml.TagPolicyGUID); resolved {
			return nil
		}
		return missingElement(rc, policyxml.TagInclude, policyxml.TagPolicyPath)
	}
	m, err := rc.Resolver.Find(rc.Consumer, types.EntityTypePolicy, path)
	if err != nil {
		return err
	}
	if err := checkPublished(rc, m, path, false, true); err != nil {
		return err
	}
	target := m.Entity.GetBase()
	if target.GUID == "" {
		return conditions.Errorf(conditions.ReasonDependencyNotFound, rc.Consumer, "included policy %q has no guid", path)
	}
	policyxml.Replace(el, policyxml.TagPolicyPath, policyxml.TagPolicyGUID, policyxml.AttrStringValue, target.GUID)
	if c := policyxml.Child(el, policyxml.TagPolicyName); c != nil {
		c.CreateAttr(policyxml.AttrStringValue, target.Name)
	}
	return nil
}
