package rewrite

import (
	"encoding/base64"
	"strings"

	"github.com/beevik/etree"

	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// EnvPrefix marks variables whose value is supplied by the environment.
const EnvPrefix = "ENV."

// EnvProperty returns the cluster property holding variable of policy.
func EnvProperty(policyName, variable string) string {
	return EnvPrefix + policyName + "." + strings.TrimPrefix(variable, EnvPrefix)
}

// rewriteSetVariable stores the expression Base64 encoded. ENV.* variables
// read their value from a per-policy cluster property instead.
func rewriteSetVariable(el *etree.Element, rc *Context) error {
	expr := policyxml.Child(el, policyxml.TagExpression)
	if expr == nil && policyxml.Child(el, policyxml.TagBase64Expression) != nil {
		return nil
	}
	variable, ok := policyxml.StringValue(el, policyxml.TagVariableToSet)
	if !ok {
		return missingElement(rc, policyxml.TagSetVariable, policyxml.TagVariableToSet)
	}

	var value string
	if strings.HasPrefix(variable, EnvPrefix) {
		prop := EnvProperty(rc.PolicyName, variable)
		value = "${gateway." + prop + "}"
		ref := Reference{Type: types.EntityTypeClusterProperty, Name: prop}
		if m, err := rc.Resolver.Find(rc.Consumer, types.EntityTypeClusterProperty, prop); err == nil {
			ref = referenceOf(m.Entity)
		} else {
			rc.Log.V(1).Info("no value for environment variable, expecting it on the gateway", "policy", rc.Consumer, "property", prop)
		}
		if rc.Usage != nil {
			rc.Usage.UseEnvironment(ref)
		}
	} else {
		if expr == nil {
			return missingElement(rc, policyxml.TagSetVariable, policyxml.TagExpression)
		}
		value = expressionText(expr)
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(value))
	if expr != nil {
		policyxml.Replace(el, policyxml.TagExpression, policyxml.TagBase64Expression, policyxml.AttrStringValue, encoded)
		return nil
	}
	policyxml.SetValue(el, policyxml.TagBase64Expression, policyxml.AttrStringValue, encoded)
	return nil
}

// expressionText reads an expression given either as a stringValue
// attribute or as element text.
func expressionText(el *etree.Element) string {
	if a := el.SelectAttr(policyxml.AttrStringValue); a != nil {
		return a.Value
	}
	return policyxml.Text(el)
}

// rewriteHardcodedResponse stores the response body Base64 encoded.
func rewriteHardcodedResponse(el *etree.Element, rc *Context) error {
	body := policyxml.Child(el, policyxml.TagResponseBody)
	if body == nil {
		return nil
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(expressionText(body)))
	policyxml.Replace(el, policyxml.TagResponseBody, policyxml.TagBase64ResponseBody, policyxml.AttrStringValue, encoded)
	return nil
}
