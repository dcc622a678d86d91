package v1alpha1

import (
	"path"
	"strings"

	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// ProjectInfo identifies the project a bundle is built from.
type ProjectInfo struct {
	Name      string `json:"name"`
	GroupName string `json:"groupName,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Entities holds every entity of a project, each kind keyed by its manifest
// key: the folder path for folders, policies, and services, the name otherwise.
type Entities struct {
	// +optional
	Folders map[string]*Folder `json:"folders,omitempty"`
	// +optional
	Policies map[string]*Policy `json:"policies,omitempty"`
	// +optional
	Services map[string]*Service `json:"services,omitempty"`
	// +optional
	EncapsulatedAssertions map[string]*Encass `json:"encapsulatedAssertions,omitempty"`
	// +optional
	ScheduledTasks map[string]*ScheduledTask `json:"scheduledTasks,omitempty"`
	// +optional
	ClusterProperties map[string]*ClusterProperty `json:"clusterProperties,omitempty"`
	// +optional
	StoredPasswords map[string]*StoredPassword `json:"storedPasswords,omitempty"`
	// +optional
	TrustedCerts map[string]*TrustedCert `json:"trustedCerts,omitempty"`
	// +optional
	IdentityProviders map[string]*IdentityProvider `json:"identityProviders,omitempty"`
	// +optional
	JdbcConnections map[string]*JdbcConnection `json:"jdbcConnections,omitempty"`
	// +optional
	CassandraConnections map[string]*CassandraConnection `json:"cassandraConnections,omitempty"`
	// +optional
	JmsDestinations map[string]*JmsDestination `json:"jmsDestinations,omitempty"`
	// +optional
	MqNativeQueues map[string]*MqNativeQueue `json:"mqNativeQueues,omitempty"`
	// +optional
	Http2ClientConfigs map[string]*Http2ClientConfig `json:"http2ClientConfigs,omitempty"`
	// +optional
	ListenPorts map[string]*ListenPort `json:"listenPorts,omitempty"`
}

// Bundle is the in-memory model a compilation runs over.
type Bundle struct {
	Entities

	Project ProjectInfo

	// Environment holds values for ENV.* cluster properties, keyed by
	// "<policy name>.<variable>".
	Environment map[string]string

	// Missing lists entities known by reference but not built here.
	Missing []*MissingEntity

	// Dependencies are fully resolved bundles this bundle may reference.
	Dependencies []*Bundle
}

// IsEnvironmentType reports whether entities of the given type are
// environment-owned rather than part of a deployment.
func IsEnvironmentType(entityType string) bool {
	switch entityType {
	case types.EntityTypeClusterProperty, types.EntityTypeStoredPassword, types.EntityTypeTrustedCert,
		types.EntityTypeIdentityProvider, types.EntityTypeJdbcConnection, types.EntityTypeCassandraConnection,
		types.EntityTypeJmsDestination, types.EntityTypeMqNativeQueue, types.EntityTypeHttp2ClientConfig,
		types.EntityTypeListenPort:
		return true
	}
	return false
}

// Lookup returns the entity of the given type stored under key, or nil.
func (e *Entities) Lookup(entityType, key string) Entity {
	switch entityType {
	case types.EntityTypeFolder:
		return lookup(e.Folders, key)
	case types.EntityTypePolicy:
		return lookup(e.Policies, key)
	case types.EntityTypeService:
		return lookup(e.Services, key)
	case types.EntityTypeEncass:
		return lookup(e.EncapsulatedAssertions, key)
	case types.EntityTypeScheduledTask:
		return lookup(e.ScheduledTasks, key)
	case types.EntityTypeClusterProperty:
		return lookup(e.ClusterProperties, key)
	case types.EntityTypeStoredPassword:
		return lookup(e.StoredPasswords, key)
	case types.EntityTypeTrustedCert:
		return lookup(e.TrustedCerts, key)
	case types.EntityTypeIdentityProvider:
		return lookup(e.IdentityProviders, key)
	case types.EntityTypeJdbcConnection:
		return lookup(e.JdbcConnections, key)
	case types.EntityTypeCassandraConnection:
		return lookup(e.CassandraConnections, key)
	case types.EntityTypeJmsDestination:
		return lookup(e.JmsDestinations, key)
	case types.EntityTypeMqNativeQueue:
		return lookup(e.MqNativeQueues, key)
	case types.EntityTypeHttp2ClientConfig:
		return lookup(e.Http2ClientConfigs, key)
	case types.EntityTypeListenPort:
		return lookup(e.ListenPorts, key)
	}
	return nil
}

func lookup[E Entity](m map[string]E, key string) Entity {
	if v, ok := m[key]; ok {
		return v
	}
	return nil
}

// Keyed pairs an entity with its manifest key.
type Keyed struct {
	Key    string
	Entity Entity
}

// All returns every entity, grouped by kind in pipeline order and sorted by key.
func (e *Entities) All() []Keyed {
	var out []Keyed
	out = appendSorted(out, e.Folders)
	out = appendSorted(out, e.ClusterProperties)
	out = appendSorted(out, e.StoredPasswords)
	out = appendSorted(out, e.TrustedCerts)
	out = appendSorted(out, e.IdentityProviders)
	out = appendSorted(out, e.JdbcConnections)
	out = appendSorted(out, e.CassandraConnections)
	out = appendSorted(out, e.JmsDestinations)
	out = appendSorted(out, e.MqNativeQueues)
	out = appendSorted(out, e.Http2ClientConfigs)
	out = appendSorted(out, e.ListenPorts)
	out = appendSorted(out, e.Policies)
	out = appendSorted(out, e.EncapsulatedAssertions)
	out = appendSorted(out, e.Services)
	out = appendSorted(out, e.ScheduledTasks)
	return out
}

func appendSorted[E Entity](out []Keyed, m map[string]E) []Keyed {
	for _, k := range SortedKeys(m) {
		out = append(out, Keyed{Key: k, Entity: m[k]})
	}
	return out
}

// FindMissing returns the missing-table entry of the given type and name.
func (b *Bundle) FindMissing(entityType, name string) *MissingEntity {
	for _, m := range b.Missing {
		if m.Type == entityType && m.Name == name {
			return m
		}
	}
	return nil
}

// BaseName returns the last element of a policy or folder path.
func BaseName(p string) string {
	p = strings.TrimSuffix(p, ".xml")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// FolderPath returns the path of the folder containing p, "" for the root.
func FolderPath(p string) string {
	dir := path.Dir(strings.Trim(p, "/"))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
