package compiler

import (
	"maps"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/resolver"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// target is one bundle to produce: the whole project, or the slice of it
// an annotated entity needs.
type target struct {
	Name   string
	Key    string
	Root   v1alpha1.Entity
	Bundle *v1alpha1.Bundle
}

// annotatedRoots returns the policies, encasses, and services carrying the
// bundle annotation, in pipeline order.
func annotatedRoots(b *v1alpha1.Bundle) []v1alpha1.Keyed {
	var roots []v1alpha1.Keyed
	for _, k := range b.All() {
		switch k.Entity.EntityType() {
		case types.EntityTypePolicy, types.EntityTypeEncass, types.EntityTypeService:
		default:
			continue
		}
		ann := k.Entity.GetBase().Annotated()
		if ann.Bundle && !ann.Excluded {
			roots = append(roots, k)
		}
	}
	return roots
}

// bundleName is the name an annotated bundle is published under.
func bundleName(root v1alpha1.Keyed) string {
	if n := root.Entity.GetBase().Annotated().Name; n != "" {
		return n
	}
	if root.Entity.EntityType() == types.EntityTypeEncass {
		return root.Key
	}
	return v1alpha1.BaseName(root.Key)
}

// viewOf returns a private copy of the part of b that root needs: root,
// every policy and encass it reaches, their folders, scheduled tasks
// running those policies, and all environment entities.
func viewOf(b *v1alpha1.Bundle, root v1alpha1.Keyed) target {
	full := b.Clone()
	out := &v1alpha1.Bundle{
		Project:      full.Project,
		Environment:  full.Environment,
		Missing:      full.Missing,
		Dependencies: full.Dependencies,
	}
	out.ClusterProperties = full.ClusterProperties
	out.StoredPasswords = full.StoredPasswords
	out.TrustedCerts = full.TrustedCerts
	out.IdentityProviders = full.IdentityProviders
	out.JdbcConnections = full.JdbcConnections
	out.CassandraConnections = full.CassandraConnections
	out.JmsDestinations = full.JmsDestinations
	out.MqNativeQueues = full.MqNativeQueues
	out.Http2ClientConfigs = full.Http2ClientConfigs

	var policyRoots []string
	encassRoot := ""
	serviceRoot := ""
	switch e := root.Entity.(type) {
	case *v1alpha1.Policy:
		policyRoots = append(policyRoots, root.Key)
	case *v1alpha1.Encass:
		policyRoots = append(policyRoots, e.Policy)
		encassRoot = root.Key
	case *v1alpha1.Service:
		policyRoots = append(policyRoots, e.Policy)
		serviceRoot = root.Key
	}
	policies, encasses := resolver.Reachable(full, policyRoots...)
	if encassRoot != "" {
		encasses.Insert(encassRoot)
	}

	out.Policies = pick(full.Policies, policies)
	out.EncapsulatedAssertions = pick(full.EncapsulatedAssertions, encasses)
	out.Services = make(map[string]*v1alpha1.Service)
	if serviceRoot != "" {
		out.Services[serviceRoot] = full.Services[serviceRoot]
	}
	out.ScheduledTasks = make(map[string]*v1alpha1.ScheduledTask)
	for key, task := range full.ScheduledTasks {
		if policies.Has(task.Policy) {
			out.ScheduledTasks[key] = task
		}
	}
	out.ListenPorts = make(map[string]*v1alpha1.ListenPort)
	for key, lp := range full.ListenPorts {
		if lp.TargetService == "" || out.Services[lp.TargetService] != nil {
			out.ListenPorts[key] = lp
		}
	}

	out.Folders = make(map[string]*v1alpha1.Folder)
	if rootFolder, ok := full.Folders[""]; ok {
		out.Folders[""] = rootFolder
	}
	addChain := func(f *v1alpha1.Folder) {
		for ; f != nil; f = f.Parent {
			out.Folders[f.Path] = f
		}
	}
	for _, p := range out.Policies {
		addChain(p.Folder)
	}
	for _, s := range out.Services {
		addChain(s.Folder)
	}

	return target{
		Name:   bundleName(root),
		Key:    root.Key,
		Root:   out.Lookup(root.Entity.EntityType(), root.Key),
		Bundle: out,
	}
}

func pick[E any](m map[string]E, keep sets.Set[string]) map[string]E {
	out := make(map[string]E, len(keep))
	maps.Copy(out, m)
	maps.DeleteFunc(out, func(k string, _ E) bool { return !keep.Has(k) })
	return out
}
