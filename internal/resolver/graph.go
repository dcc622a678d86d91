package resolver

import (
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Scan parses every policy of b and records the local policies and
// encapsulated assertions it references. References that leave the bundle
// are resolved later, during rewriting.
func Scan(b *v1alpha1.Bundle) error {
	for _, key := range v1alpha1.SortedKeys(b.Policies) {
		p := b.Policies[key]
		doc, err := policyxml.Parse(p.Content)
		if err != nil {
			return &conditions.BuildError{Reason: conditions.ReasonInvalidContent, Entity: key, Err: err}
		}
		seen := make(map[v1alpha1.Dependency]bool)
		var deps []v1alpha1.Dependency
		add := func(d v1alpha1.Dependency) {
			if !seen[d] {
				seen[d] = true
				deps = append(deps, d)
			}
		}
		for _, path := range policyxml.IncludePaths(doc.Root()) {
			if _, ok := b.Policies[path]; ok {
				add(v1alpha1.Dependency{Type: types.EntityTypePolicy, Name: path})
			}
		}
		for _, name := range policyxml.EncassNames(doc.Root()) {
			if _, ok := b.EncapsulatedAssertions[name]; ok {
				add(v1alpha1.Dependency{Type: types.EntityTypeEncass, Name: name})
			}
		}
		p.Dependencies = deps
	}
	return nil
}

// edges returns the policy paths that path depends on, following
// encapsulated assertions to their backing policies.
func edges(b *v1alpha1.Bundle, path string) []string {
	p := b.Policies[path]
	if p == nil {
		return nil
	}
	var out []string
	for _, d := range p.Dependencies {
		switch d.Type {
		case types.EntityTypePolicy:
			out = append(out, d.Name)
		case types.EntityTypeEncass:
			if e := b.EncapsulatedAssertions[d.Name]; e != nil {
				if _, ok := b.Policies[e.Policy]; ok {
					out = append(out, e.Policy)
				}
			}
		}
	}
	return out
}

const (
	unvisited = iota
	onPath
	done
)

// walk visits policies depth first and returns them dependencies first.
// A policy reached again while still on the current path is a cycle.
func walk(b *v1alpha1.Bundle) ([]string, error) {
	state := make(map[string]int, len(b.Policies))
	var path, order []string

	var visit func(key string) error
	visit = func(key string) error {
		switch state[key] {
		case done:
			return nil
		case onPath:
			start := slices.Index(path, key)
			cycle := append(slices.Clone(path[start:]), key)
			return conditions.Errorf(conditions.ReasonCycleDetected, path[len(path)-1],
				"policy cycle: %s", strings.Join(cycle, " -> "))
		}
		state[key] = onPath
		path = append(path, key)
		for _, next := range edges(b, key) {
			if err := visit(next); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[key] = done
		order = append(order, key)
		return nil
	}

	for _, key := range v1alpha1.SortedKeys(b.Policies) {
		if err := visit(key); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// DetectCycles returns a CycleDetected error naming every policy on the
// first cycle found.
func DetectCycles(b *v1alpha1.Bundle) error {
	_, err := walk(b)
	return err
}

// Order returns the policies of b with every policy after the policies it
// depends on. Policies that back a service are left out; they are emitted
// with their service.
func Order(b *v1alpha1.Bundle) ([]*v1alpha1.Policy, error) {
	keys, err := walk(b)
	if err != nil {
		return nil, err
	}
	servicePolicies := sets.New[string]()
	for _, s := range b.Services {
		servicePolicies.Insert(s.Policy)
	}
	out := make([]*v1alpha1.Policy, 0, len(keys))
	for _, k := range keys {
		if !servicePolicies.Has(k) {
			out = append(out, b.Policies[k])
		}
	}
	return out, nil
}

// Reachable returns the keys of every local policy and encapsulated
// assertion reachable from the given policy paths, the roots included.
func Reachable(b *v1alpha1.Bundle, roots ...string) (policies, encasses sets.Set[string]) {
	policies = sets.New[string]()
	encasses = sets.New[string]()
	var visit func(key string)
	visit = func(key string) {
		p := b.Policies[key]
		if p == nil || policies.Has(key) {
			return
		}
		policies.Insert(key)
		for _, d := range p.Dependencies {
			switch d.Type {
			case types.EntityTypePolicy:
				visit(d.Name)
			case types.EntityTypeEncass:
				encasses.Insert(d.Name)
				if e := b.EncapsulatedAssertions[d.Name]; e != nil {
					visit(e.Policy)
				}
			}
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return policies, encasses
}
