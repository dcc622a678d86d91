package resolver

import (
	"slices"
	"strings"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Match is a resolved reference.
type Match struct {
	Entity v1alpha1.Entity

	// Source is the dependency bundle that provided Entity. Nil when the
	// entity is local or comes from the missing table.
	Source *v1alpha1.Bundle

	// Missing is set when the entity is known only from the missing table.
	Missing bool
}

// Resolver looks up references made from one bundle's policies. It records
// which dependency bundles each consumer ends up needing.
type Resolver struct {
	bundle *v1alpha1.Bundle
	deps   []*v1alpha1.Bundle

	requirements map[string][]*v1alpha1.Bundle
	used         []*v1alpha1.Bundle
}

// New returns a resolver over b and, transitively, its dependency bundles.
func New(b *v1alpha1.Bundle) *Resolver {
	return &Resolver{
		bundle:       b,
		deps:         flatten(b.Dependencies),
		requirements: make(map[string][]*v1alpha1.Bundle),
	}
}

func flatten(roots []*v1alpha1.Bundle) []*v1alpha1.Bundle {
	var out []*v1alpha1.Bundle
	seen := make(map[*v1alpha1.Bundle]bool)
	queue := slices.Clone(roots)
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		if seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
		queue = append(queue, b.Dependencies...)
	}
	return out
}

// Bundle returns the bundle being resolved against.
func (r *Resolver) Bundle() *v1alpha1.Bundle { return r.bundle }

// Find resolves a reference of entityType to name, made by consumer.
//
// The local bundle is searched first, then every dependency bundle, and
// finally the missing table. Policies in dependency bundles match by exact
// path and then by bare name. More than one dependency match is an
// AmbiguousDependency error; no match at all is DependencyNotFound.
func (r *Resolver) Find(consumer, entityType, name string) (Match, error) {
	if e := r.bundle.Lookup(entityType, name); e != nil {
		return Match{Entity: e}, nil
	}

	var matches []Match
	for _, dep := range r.deps {
		if e := lookupInDependency(dep, entityType, name); e != nil {
			matches = append(matches, Match{Entity: e, Source: dep})
		}
	}
	switch len(matches) {
	case 0:
	case 1:
		r.require(consumer, matches[0].Source)
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Source.Project.Name)
		}
		return Match{}, conditions.Errorf(conditions.ReasonAmbiguousDependency, consumer,
			"%s %q is provided by more than one dependency bundle: %s", entityType, name, strings.Join(names, ", "))
	}

	if m := r.bundle.FindMissing(entityType, name); m != nil {
		return Match{Entity: m, Missing: true}, nil
	}
	if entityType == types.EntityTypePolicy {
		if m := r.bundle.FindMissing(entityType, v1alpha1.BaseName(name)); m != nil {
			return Match{Entity: m, Missing: true}, nil
		}
	}
	return Match{}, conditions.Errorf(conditions.ReasonDependencyNotFound, consumer,
		"%s %q not found", entityType, name)
}

func lookupInDependency(dep *v1alpha1.Bundle, entityType, name string) v1alpha1.Entity {
	if e := dep.Lookup(entityType, name); e != nil {
		return e
	}
	if entityType != types.EntityTypePolicy {
		return nil
	}
	bare := v1alpha1.BaseName(name)
	for _, key := range v1alpha1.SortedKeys(dep.Policies) {
		if v1alpha1.BaseName(key) == bare {
			return dep.Policies[key]
		}
	}
	return nil
}

func (r *Resolver) require(consumer string, dep *v1alpha1.Bundle) {
	if !slices.Contains(r.requirements[consumer], dep) {
		r.requirements[consumer] = append(r.requirements[consumer], dep)
	}
	if !slices.Contains(r.used, dep) {
		r.used = append(r.used, dep)
	}
}

// Requirements returns every dependency bundle a reference resolved to,
// in first-use order.
func (r *Resolver) Requirements() []*v1alpha1.Bundle {
	return slices.Clone(r.used)
}

// RequirementsOf returns the dependency bundles consumer needs.
func (r *Resolver) RequirementsOf(consumer string) []*v1alpha1.Bundle {
	return slices.Clone(r.requirements[consumer])
}
