package builder

import (
	"encoding/base64"
	"strconv"

	"github.com/beevik/etree"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// environmentBuilder emits one kind of environment entity: placeholders in
// deployment builds, full entities in environment builds.
type environmentBuilder[E v1alpha1.Entity] struct {
	name     string
	priority int
	entities func(*v1alpha1.Bundle) map[string]E
	element  func(E, *Context) (*etree.Element, error)
}

func (e environmentBuilder[E]) Name() string  { return e.name }
func (e environmentBuilder[E]) Priority() int { return e.priority }

func (e environmentBuilder[E]) Build(b *v1alpha1.Bundle, mode Mode, bc *Context) ([]Record, error) {
	if mode != Deployment && mode != Environment {
		return nil, unsupported(e.name, mode)
	}
	m := e.entities(b)
	records := make([]Record, 0, len(m))
	for _, key := range v1alpha1.SortedKeys(m) {
		ent := m[key]
		if excluded(ent) {
			continue
		}
		rec, err := environmentRecord(ent, mode, func() (*etree.Element, error) { return e.element(ent, bc) })
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func ClusterPropertyBuilder() Builder {
	return environmentBuilder[*v1alpha1.ClusterProperty]{
		name:     "cluster-property",
		priority: 200,
		entities: func(b *v1alpha1.Bundle) map[string]*v1alpha1.ClusterProperty { return b.ClusterProperties },
		element: func(cp *v1alpha1.ClusterProperty, _ *Context) (*etree.Element, error) {
			el := entityElement("ClusterProperty", &cp.Base)
			policyxml.AddText(el, "Value", cp.Value)
			return el, nil
		},
	}
}

func StoredPasswordBuilder() Builder {
	return environmentBuilder[*v1alpha1.StoredPassword]{
		name:     "stored-password",
		priority: 300,
		entities: func(b *v1alpha1.Bundle) map[string]*v1alpha1.StoredPassword { return b.StoredPasswords },
		element:  storedPasswordElement,
	}
}

func storedPasswordElement(sp *v1alpha1.StoredPassword, bc *Context) (*etree.Element, error) {
	password := sp.Password
	if bc.Secrets != nil {
		enc, err := bc.Secrets.Encrypt(password)
		if err != nil {
			return nil, &conditions.BuildError{Reason: conditions.ReasonInvalidContent, Entity: sp.Name, Err: err}
		}
		password = enc
	}
	el := entityElement("StoredPassword", &sp.Base)
	policyxml.AddText(el, "Password", password)
	typ := sp.Type
	if typ == "" {
		typ = "Password"
	}
	props := []policyxml.Property{
		{Key: "type", Value: typ},
		{Key: "usageFromVariable", Value: sp.UsageFromVariable},
	}
	if sp.Description != "" {
		props = append(props, policyxml.Property{Key: "description", Value: sp.Description})
	}
	policyxml.AddProperties(el, props)
	return el, nil
}

func TrustedCertBuilder() Builder {
	return environmentBuilder[*v1alpha1.TrustedCert]{
		name:     "trusted-cert",
		priority: 400,
		entities: func(b *v1alpha1.Bundle) map[string]*v1alpha1.TrustedCert { return b.TrustedCerts },
		element: func(tc *v1alpha1.TrustedCert, _ *Context) (*etree.Element, error) {
			if _, err := base64.StdEncoding.DecodeString(tc.Encoded); err != nil {
				return nil, conditions.Errorf(conditions.ReasonInvalidContent, tc.Name, "certificate is not base64: %v", err)
			}
			el := entityElement("TrustedCertificate", &tc.Base)
			data := policyxml.AddElement(el, "CertificateData")
			policyxml.AddText(data, "Encoded", tc.Encoded)
			policyxml.AddProperties(el, policyxml.StringProperties(tc.Properties))
			return el, nil
		},
	}
}

func IdentityProviderBuilder() Builder {
	return environmentBuilder[*v1alpha1.IdentityProvider]{
		name:     "identity-provider",
		priority: 500,
		entities: func(b *v1alpha1.Bundle) map[string]*v1alpha1.IdentityProvider { return b.IdentityProviders },
		element:  identityProviderElement,
	}
}

func identityProviderElement(idp *v1alpha1.IdentityProvider, bc *Context) (*etree.Element, error) {
	el := entityElement("IdentityProvider", &idp.Base)
	policyxml.AddText(el, "IdentityProviderType", idp.Type)
	policyxml.AddProperties(el, policyxml.StringProperties(idp.Properties))
	if len(idp.TrustedCerts) > 0 {
		refs := policyxml.AddElement(policyxml.AddElement(policyxml.AddElement(el, "Extension"), "FederatedIdentityProviderDetail"), "CertificateReferences")
		for _, name := range idp.TrustedCerts {
			m, err := bc.Resolver.Find(idp.Name, types.EntityTypeTrustedCert, name)
			if err != nil {
				return nil, err
			}
			policyxml.AddText(refs, "Reference", m.Entity.GetBase().ID)
		}
	}
	return el, nil
}

func JdbcConnectionBuilder() Builder {
	return environmentBuilder[*v1alpha1.JdbcConnection]{
		name:     "jdbc-connection",
		priority: 600,
		entities: func(b *v1alpha1.Bundle) map[string]*v1alpha1.JdbcConnection { return b.JdbcConnections },
		element:  jdbcElement,
	}
}

func jdbcElement(c *v1alpha1.JdbcConnection, bc *Context) (*etree.Element, error) {
	el := entityElement("JDBCConnection", &c.Base)
	policyxml.AddText(el, "Enabled", "true")
	policyxml.AddProperties(el, []policyxml.Property{
		{Key: "maximumPoolSize", Value: orDefault(c.MaxPoolSize, 15)},
		{Key: "minimumPoolSize", Value: orDefault(c.MinPoolSize, 3)},
	})
	ext := policyxml.AddElement(el, "Extension")
	policyxml.AddText(ext, "DriverClass", c.Driver)
	policyxml.AddText(ext, "JdbcUrl", c.URL)
	conn := make(map[string]string, len(c.Properties)+2)
	for k, v := range c.Properties {
		conn[k] = v
	}
	if c.User != "" {
		conn["user"] = c.User
	}
	if c.PasswordRef != "" {
		m, err := bc.Resolver.Find(c.Name, types.EntityTypeStoredPassword, c.PasswordRef)
		if err != nil {
			return nil, err
		}
		conn["password"] = "${secpass." + m.Entity.GetBase().Name + ".plaintext}"
	}
	props := policyxml.AddElement(ext, "ConnectionProperties")
	for _, p := range policyxml.StringProperties(conn) {
		prop := policyxml.AddElement(props, "Property")
		prop.CreateAttr("key", p.Key)
		policyxml.AddText(prop, "StringValue", p.Value.(string))
	}
	return el, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func CassandraConnectionBuilder() Builder {
	return environmentBuilder[*v1alpha1.CassandraConnection]{
		name:     "cassandra-connection",
		priority: 650,
		entities: func(b *v1alpha1.Bundle) map[string]*v1alpha1.CassandraConnection { return b.CassandraConnections },
		element:  cassandraElement,
	}
}

func cassandraElement(c *v1alpha1.CassandraConnection, bc *Context) (*etree.Element, error) {
	el := entityElement("CassandraConnection", &c.Base)
	policyxml.AddText(el, "Keyspace", c.Keyspace)
	policyxml.AddText(el, "ContactPoint", c.ContactPoints)
	policyxml.AddText(el, "Port", strconv.Itoa(orDefault(c.Port, 9042)))
	policyxml.AddText(el, "Username", c.Username)
	if c.PasswordRef != "" {
		m, err := bc.Resolver.Find(c.Name, types.EntityTypeStoredPassword, c.PasswordRef)
		if err != nil {
			return nil, err
		}
		policyxml.AddText(el, "PasswordId", m.Entity.GetBase().ID)
	}
	compression := c.Compression
	if compression == "" {
		compression = "NONE"
	}
	policyxml.AddText(el, "Compression", compression)
	policyxml.AddText(el, "Ssl", strconv.FormatBool(c.TLS))
	policyxml.AddText(el, "Enabled", "true")
	policyxml.AddProperties(el, policyxml.StringProperties(c.Properties))
	return el, nil
}

func JmsDestinationBuilder() Builder {
	return environmentBuilder[*v1alpha1.JmsDestination]{
		name:     "jms-destination",
		priority: 700,
		entities: func(b *v1alpha1.Bundle) map[string]*v1alpha1.JmsDestination { return b.JmsDestinations },
		element: func(j *v1alpha1.JmsDestination, _ *Context) (*etree.Element, error) {
			el := policyxml.NewElement("JMSDestination")
			el.CreateAttr("id", j.ID)
			detail := policyxml.AddElement(el, "JMSDestinationDetail")
			detail.CreateAttr("id", j.ID)
			policyxml.AddText(detail, "Name", j.Name)
			policyxml.AddText(detail, "DestinationName", j.DestinationName)
			policyxml.AddText(detail, "Inbound", strconv.FormatBool(j.Inbound))
			policyxml.AddText(detail, "Enabled", "true")
			policyxml.AddProperties(detail, []policyxml.Property{{Key: "type", Value: j.DestinationType}})

			conn := policyxml.AddElement(el, "JMSConnection")
			provider := j.ProviderType
			if provider == "" {
				provider = "Generic"
			}
			policyxml.AddText(conn, "ProviderType", provider)
			props := map[string]string{
				"java.naming.provider.url":    j.JndiURL,
				"queue.connectionFactoryName": j.ConnectionFactory,
			}
			if j.InitialContext != "" {
				props["java.naming.factory.initial"] = j.InitialContext
			}
			for k, v := range j.Properties {
				props[k] = v
			}
			policyxml.AddProperties(conn, policyxml.StringProperties(props))
			return el, nil
		},
	}
}

func MqNativeQueueBuilder() Builder {
	return environmentBuilder[*v1alpha1.MqNativeQueue]{
		name:     "mq-native-queue",
		priority: 750,
		entities: func(b *v1alpha1.Bundle) map[string]*v1alpha1.MqNativeQueue { return b.MqNativeQueues },
		element: func(q *v1alpha1.MqNativeQueue, _ *Context) (*etree.Element, error) {
			el := entityElement("ActiveConnector", &q.Base)
			policyxml.AddText(el, "Enabled", "true")
			policyxml.AddText(el, "Type", "MqNative")
			props := map[string]string{
				"MqNativeHostName":         q.Host,
				"MqNativePort":             strconv.Itoa(q.Port),
				"MqNativeQueueManagerName": q.QueueManager,
				"MqNativeChannel":          q.Channel,
				"MqNativeTargetQueueName":  q.QueueName,
				"MqNativeIsInbound":        strconv.FormatBool(q.Inbound),
			}
			for k, v := range q.Properties {
				props[k] = v
			}
			policyxml.AddProperties(el, policyxml.StringProperties(props))
			return el, nil
		},
	}
}

// http2EntityClass is the generic entity class of HTTP/2 client configs.
const http2EntityClass = "com.l7tech.external.assertions.http2.client.Http2ClientConfigGenericEntity"

func Http2ClientConfigBuilder() Builder {
	return environmentBuilder[*v1alpha1.Http2ClientConfig]{
		name:     "http2-client-config",
		priority: 800,
		entities: func(b *v1alpha1.Bundle) map[string]*v1alpha1.Http2ClientConfig { return b.Http2ClientConfigs },
		element: func(h *v1alpha1.Http2ClientConfig, _ *Context) (*etree.Element, error) {
			el := entityElement("GenericEntity", &h.Base)
			policyxml.AddText(el, "EntityClassName", http2EntityClass)
			policyxml.AddText(el, "Enabled", "true")
			policyxml.AddProperties(el, policyxml.StringProperties(h.Properties))
			return el, nil
		},
	}
}
