package rewrite

import (
	"github.com/beevik/etree"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// entityReference rewrites an assertion that names an environment entity:
// the name becomes the entity's resolved name and, when idTag is set, its
// goid is injected alongside.
type entityReference struct {
	assertion  string
	entityType string
	nameTag    string
	idTag      string
}

func (r entityReference) Rewrite(el *etree.Element, rc *Context) error {
	name, ok := policyxml.StringValue(el, r.nameTag)
	if !ok {
		return missingElement(rc, r.assertion, r.nameTag)
	}
	m, err := rc.Resolver.Find(rc.Consumer, r.entityType, name)
	if err != nil {
		return err
	}
	if err := checkPublished(rc, m, name, r.idTag != "", false); err != nil {
		return err
	}
	r.apply(el, rc, m.Entity)
	return nil
}

func (r entityReference) apply(el *etree.Element, rc *Context, e v1alpha1.Entity) {
	target := e.GetBase()
	policyxml.SetValue(el, r.nameTag, policyxml.AttrStringValue, target.Name)
	if r.idTag != "" {
		policyxml.SetValue(el, r.idTag, policyxml.AttrGoidValue, target.ID)
	}
	if rc.Usage != nil && v1alpha1.IsEnvironmentType(e.EntityType()) {
		rc.Usage.UseEnvironment(referenceOf(e))
	}
}

var (
	jdbcReference = entityReference{
		assertion:  policyxml.TagJdbcQuery,
		entityType: types.EntityTypeJdbcConnection,
		nameTag:    policyxml.TagConnectionName,
	}
	cassandraReference = entityReference{
		assertion:  policyxml.TagCassandraQuery,
		entityType: types.EntityTypeCassandraConnection,
		nameTag:    policyxml.TagConnectionName,
	}
	jmsReference = entityReference{
		assertion:  policyxml.TagJmsRouting,
		entityType: types.EntityTypeJmsDestination,
		nameTag:    policyxml.TagEndpointName,
		idTag:      policyxml.TagEndpointOid,
	}
	mqReference = entityReference{
		assertion:  policyxml.TagMqNativeRouting,
		entityType: types.EntityTypeMqNativeQueue,
		nameTag:    policyxml.TagSsgActiveConnectorName,
		idTag:      policyxml.TagSsgActiveConnectorGoid,
	}
	http2Reference = entityReference{
		assertion:  policyxml.TagHttp2Routing,
		entityType: types.EntityTypeHttp2ClientConfig,
		nameTag:    policyxml.TagHttp2ClientConfigName,
		idTag:      policyxml.TagHttp2ClientConfigGoid,
	}
	trustedCertReference = entityReference{
		assertion:  policyxml.TagNonSoapVerifyElement,
		entityType: types.EntityTypeTrustedCert,
		nameTag:    policyxml.TagVerifyCertificateName,
		idTag:      policyxml.TagVerifyCertificateGoid,
	}
	identityProviderReference = entityReference{
		assertion:  policyxml.TagAuthentication,
		entityType: types.EntityTypeIdentityProvider,
		nameTag:    policyxml.TagIdentityProviderName,
		idTag:      policyxml.TagIdentityProviderOid,
	}
)

// rewriteAuthentication resolves the identity provider of an authentication
// assertion. The internal provider always exists and needs no lookup.
func rewriteAuthentication(el *etree.Element, rc *Context) error {
	name, ok := policyxml.StringValue(el, policyxml.TagIdentityProviderName)
	if ok && name == types.InternalIdentityProviderName {
		policyxml.SetValue(el, policyxml.TagIdentityProviderOid, policyxml.AttrGoidValue, types.InternalIdentityProviderID)
		return nil
	}
	if !ok && policyxml.Child(el, policyxml.TagIdentityProviderOid) != nil {
		return nil
	}
	return identityProviderReference.Rewrite(el, rc)
}
