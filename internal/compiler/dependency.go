package compiler

import (
	"fmt"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/identity"
	"github.com/ia-eknorr/stoker-bundler/internal/resolver"
)

// publishDependencies returns copies of deps, and of everything they depend
// on, carrying the name and identity each entity is deployed with by its own
// project's build. A dependency shared by several bundles is copied once.
// deps are not modified.
func publishDependencies(deps []*v1alpha1.Bundle) ([]*v1alpha1.Bundle, error) {
	return publishAll(deps, make(map[*v1alpha1.Bundle]*v1alpha1.Bundle))
}

func publishAll(deps []*v1alpha1.Bundle, done map[*v1alpha1.Bundle]*v1alpha1.Bundle) ([]*v1alpha1.Bundle, error) {
	out := make([]*v1alpha1.Bundle, 0, len(deps))
	for _, dep := range deps {
		p, err := publish(dep, done)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// publish applies what dep's own build does to names and identity:
//   - entities that keep their identity get it pinned, names untouched;
//   - other entities lose their id and guid, which that build draws at
//     random, and take the namespaced name of the one annotated bundle
//     deploying them. An entity deployed by several annotated bundles has no
//     single name and is left nameless.
func publish(dep *v1alpha1.Bundle, done map[*v1alpha1.Bundle]*v1alpha1.Bundle) (*v1alpha1.Bundle, error) {
	if p, ok := done[dep]; ok {
		return p, nil
	}
	p := dep.Clone()
	done[dep] = p
	deps, err := publishAll(dep.Dependencies, done)
	if err != nil {
		return nil, err
	}
	p.Dependencies = deps
	if err := resolver.Scan(p); err != nil {
		return nil, fmt.Errorf("dependency %s: %w", dep.Project.Name, err)
	}

	owners := deployingBundles(p)
	for _, k := range p.All() {
		if _, ok := k.Entity.(*v1alpha1.Folder); ok {
			continue
		}
		base := k.Entity.GetBase()
		published := identity.Published(p.Project, k.Key, k.Entity)
		base.ID, base.GUID = published.ID, published.GUID
		if base.Annotated().KeepsIdentity() {
			continue
		}
		switch names := owners[entityRef{k.Entity.EntityType(), k.Key}]; len(names) {
		case 0:
		case 1:
			namer := identity.Namer{Group: p.Project.GroupName, Bundle: names[0], Version: p.Project.Version}
			base.Name = namer.Name(base.Name)
		default:
			base.Name = ""
		}
	}
	return p, nil
}

type entityRef struct {
	Type string
	Key  string
}

// deployingBundles maps every entity of b to the annotated bundles whose
// view contains it. It is empty for a plain project.
func deployingBundles(b *v1alpha1.Bundle) map[entityRef][]string {
	owners := make(map[entityRef][]string)
	for _, root := range annotatedRoots(b) {
		t := viewOf(b, root)
		for _, k := range t.Bundle.All() {
			ref := entityRef{k.Entity.EntityType(), k.Key}
			owners[ref] = append(owners[ref], t.Name)
		}
	}
	return owners
}
