package compiler

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-logr/logr"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/identity"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// MergeExcludes trims and deduplicates exclude patterns, keeping their order.
func MergeExcludes(groups ...[]string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, group := range groups {
		for _, p := range group {
			p = strings.Trim(strings.TrimSpace(p), "/")
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}

// ShouldExclude checks if an entity path matches any exclude pattern.
func ShouldExclude(entityPath string, excludes []string) bool {
	entityPath = strings.Trim(path.Clean("/"+entityPath), "/")
	for _, pattern := range excludes {
		matched, err := doublestar.Match(pattern, entityPath)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// applyExcludes moves every policy, service, and folder matching excludes
// into the missing table so that references to them still resolve. Folders
// stay while anything kept still lives under them.
func applyExcludes(log logr.Logger, gen identity.Generator, b *v1alpha1.Bundle, excludes []string) {
	if len(excludes) == 0 {
		return
	}
	for _, key := range v1alpha1.SortedKeys(b.Policies) {
		if ShouldExclude(key, excludes) {
			b.Missing = append(b.Missing, missingFrom(gen, key, b.Policies[key]))
			delete(b.Policies, key)
			log.V(1).Info("excluded policy", "path", key)
		}
	}
	for _, key := range v1alpha1.SortedKeys(b.Services) {
		if ShouldExclude(key, excludes) {
			b.Missing = append(b.Missing, missingFrom(gen, key, b.Services[key]))
			delete(b.Services, key)
			log.V(1).Info("excluded service", "path", key)
		}
	}

	inUse := make(map[string]bool)
	mark := func(f *v1alpha1.Folder) {
		for ; f != nil; f = f.Parent {
			inUse[f.Path] = true
		}
	}
	for _, p := range b.Policies {
		mark(p.Folder)
	}
	for _, s := range b.Services {
		mark(s.Folder)
	}
	for _, key := range v1alpha1.SortedKeys(b.Folders) {
		f := b.Folders[key]
		if f.IsRoot() || !ShouldExclude(key, excludes) {
			continue
		}
		if inUse[key] {
			log.Info("keeping excluded folder, it still holds entities", "path", key)
			continue
		}
		b.Missing = append(b.Missing, missingFrom(gen, key, f))
		delete(b.Folders, key)
	}
	for pruned := true; pruned; {
		pruned = false
		for key, f := range b.Folders {
			if f.Parent != nil && !f.Parent.IsRoot() && b.Folders[f.Parent.Path] == nil {
				delete(b.Folders, key)
				pruned = true
			}
		}
	}
}

// missingFrom records ent under key, keeping its identity. Ids the manifest
// did not carry are generated.
func missingFrom(gen identity.Generator, key string, ent v1alpha1.Entity) *v1alpha1.MissingEntity {
	base := ent.GetBase()
	m := &v1alpha1.MissingEntity{
		Base: v1alpha1.Base{ID: base.ID, GUID: base.GUID, Name: key},
		Type: ent.EntityType(),
	}
	if !identity.ValidID(m.ID) {
		m.ID = gen.ID()
	}
	if ent.EntityType() == types.EntityTypePolicy && !identity.ValidGUID(m.GUID) {
		m.GUID = gen.GUID()
	}
	return m
}
