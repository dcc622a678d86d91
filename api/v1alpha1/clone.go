package v1alpha1

import (
	"maps"
	"slices"
)

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// Clone returns a copy of b whose entities can be renamed and re-identified
// without touching b. Dependency bundles and the missing table are shared.
func (b *Bundle) Clone() *Bundle {
	out := &Bundle{
		Project:      b.Project,
		Environment:  maps.Clone(b.Environment),
		Missing:      slices.Clone(b.Missing),
		Dependencies: slices.Clone(b.Dependencies),
	}
	out.Entities = Entities{
		Folders:                cloneMap(b.Folders),
		Policies:               cloneMap(b.Policies),
		Services:               cloneMap(b.Services),
		EncapsulatedAssertions: cloneMap(b.EncapsulatedAssertions),
		ScheduledTasks:         cloneMap(b.ScheduledTasks),
		ClusterProperties:      cloneMap(b.ClusterProperties),
		StoredPasswords:        cloneMap(b.StoredPasswords),
		TrustedCerts:           cloneMap(b.TrustedCerts),
		IdentityProviders:      cloneMap(b.IdentityProviders),
		JdbcConnections:        cloneMap(b.JdbcConnections),
		CassandraConnections:   cloneMap(b.CassandraConnections),
		JmsDestinations:        cloneMap(b.JmsDestinations),
		MqNativeQueues:         cloneMap(b.MqNativeQueues),
		Http2ClientConfigs:     cloneMap(b.Http2ClientConfigs),
		ListenPorts:            cloneMap(b.ListenPorts),
	}
	out.relinkFolders()
	return out
}

func cloneMap[T any](m map[string]*T) map[string]*T {
	if m == nil {
		return nil
	}
	out := make(map[string]*T, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

// relinkFolders points every folder reference at this bundle's own folders.
func (b *Bundle) relinkFolders() {
	for _, f := range b.Folders {
		if f.Parent != nil {
			f.Parent = b.Folders[f.Parent.Path]
		}
	}
	for _, p := range b.Policies {
		if p.Folder != nil {
			p.Folder = b.Folders[p.Folder.Path]
		}
	}
	for _, s := range b.Services {
		if s.Folder != nil {
			s.Folder = b.Folders[s.Folder.Path]
		}
	}
}
