package builder

import (
	"github.com/beevik/etree"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/internal/resolver"
	"github.com/ia-eknorr/stoker-bundler/internal/rewrite"
)

// PolicyBuilder emits policies, each after the policies it includes.
// Policies backing a service are emitted by ServiceBuilder instead.
type PolicyBuilder struct{}

func (PolicyBuilder) Name() string  { return "policy" }
func (PolicyBuilder) Priority() int { return 1000 }

func (p PolicyBuilder) Build(b *v1alpha1.Bundle, mode Mode, bc *Context) ([]Record, error) {
	switch mode {
	case Environment:
		return nil, nil
	case Deployment:
	default:
		return nil, unsupported(p.Name(), mode)
	}
	ordered, err := resolver.Order(b)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(ordered))
	for _, policy := range ordered {
		if excluded(policy) {
			continue
		}
		xml, err := rewritePolicy(policy, bc)
		if err != nil {
			return nil, err
		}
		records = append(records, behaviorRecord(policy, policyElement(policy, xml), bc))
	}
	return records, nil
}

// rewritePolicy returns the rewritten content of policy. The policy itself
// is left untouched.
func rewritePolicy(policy *v1alpha1.Policy, bc *Context) (string, error) {
	return bc.Rewriters.Policy(policy.Content, &rewrite.Context{
		Resolver:   bc.Resolver,
		Usage:      bc.Usage,
		Log:        bc.Log,
		Consumer:   policy.Path,
		PolicyName: v1alpha1.BaseName(policy.Path),
	})
}

func policyElement(p *v1alpha1.Policy, xml string) *etree.Element {
	el := policyxml.NewElement("Policy")
	el.CreateAttr("id", p.ID)
	el.CreateAttr("guid", p.GUID)

	detail := policyxml.AddElement(el, "PolicyDetail")
	detail.CreateAttr("id", p.ID)
	detail.CreateAttr("guid", p.GUID)
	detail.CreateAttr("folderId", folderID(p.Folder))
	policyxml.AddText(detail, "Name", p.Name)
	policyType := p.PolicyType
	if policyType == "" {
		policyType = "Include"
	}
	policyxml.AddText(detail, "PolicyType", policyType)
	props := []policyxml.Property{{Key: "soap", Value: false}}
	if p.Tag != "" {
		props = append(props, policyxml.Property{Key: "tag", Value: p.Tag})
	}
	policyxml.AddProperties(detail, props)

	addPolicyResource(el, xml)
	return el
}

func addPolicyResource(parent *etree.Element, xml string) {
	set := policyxml.AddElement(policyxml.AddElement(parent, "Resources"), "ResourceSet")
	set.CreateAttr("tag", "policy")
	res := policyxml.AddText(set, "Resource", xml)
	res.CreateAttr("type", "policy")
}
