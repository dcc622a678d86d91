package identity

import (
	"github.com/go-logr/logr"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Override is the outcome of checking a user-supplied identifier.
// A rejected override carries the reason it was ignored.
type Override struct {
	Entity string
	Field  string
	Value  string
	Reason string
}

// Assigner gives every entity of a bundle its build identity.
type Assigner struct {
	Generator Generator

	// Project seeds the identity of reusable entities that pin none.
	Project v1alpha1.ProjectInfo

	// Namer namespaces display names. Nil for plain builds.
	Namer *Namer
}

// Assign sets ID, GUID, and Name on every entity of b in place and returns
// the overrides it had to ignore.
//
// Entities marked reusable or excluded keep their identity, taken from a
// valid override, the manifest, or derived from the project and key. Every
// other entity gets fresh identifiers on each build, and a namespaced name
// in an annotated build.
func (a Assigner) Assign(log logr.Logger, b *v1alpha1.Bundle) []Override {
	var rejected []Override
	for _, k := range b.All() {
		rejected = append(rejected, a.assign(k.Key, k.Entity)...)
	}
	for _, o := range rejected {
		log.Info("ignoring invalid identifier override", "entity", o.Entity, "field", o.Field, "value", o.Value, "reason", o.Reason)
	}
	return rejected
}

func (a Assigner) assign(key string, ent v1alpha1.Entity) []Override {
	base := ent.GetBase()
	entType := ent.EntityType()

	if f, ok := ent.(*v1alpha1.Folder); ok {
		if f.IsRoot() {
			base.ID = types.RootFolderID
			return nil
		}
		if a.Namer != nil || !ValidID(base.ID) {
			base.ID = a.Generator.ID()
		}
		return nil
	}

	if base.Annotated().KeepsIdentity() {
		return a.pin(key, entType, base)
	}
	base.ID = a.Generator.ID()
	if hasGUID(entType) {
		base.GUID = a.Generator.GUID()
	}
	if a.Namer != nil {
		base.Name = a.Namer.Name(base.Name)
	}
	return nil
}

// pin sets the identity a reusable or excluded entity keeps across builds.
func (a Assigner) pin(key, entType string, base *v1alpha1.Base) []Override {
	label := entType + " " + key
	ann := base.Annotated()

	id, rejected := a.keep(label, "id", ann.ID, base.ID, ValidID, conditions.ReasonInvalidID,
		func() string { return StableID(a.Project, entType, key) })
	base.ID = id
	if hasGUID(entType) {
		guid, o := a.keep(label, "guid", ann.GUID, base.GUID, ValidGUID, conditions.ReasonInvalidGUID,
			func() string { return StableGUID(a.Project, entType, key) })
		base.GUID = guid
		rejected = append(rejected, o...)
	}
	return rejected
}

// keep picks the first valid candidate among the override and the manifest
// value, deriving one when neither is usable.
func (a Assigner) keep(label, field, override, current string, valid func(string) bool, reason string, derive func() string) (string, []Override) {
	var rejected []Override
	for _, v := range []string{override, current} {
		if v == "" {
			continue
		}
		if valid(v) {
			return v, rejected
		}
		rejected = append(rejected, Override{Entity: label, Field: field, Value: v, Reason: reason})
	}
	return derive(), rejected
}

func hasGUID(entType string) bool {
	return entType == types.EntityTypePolicy || entType == types.EntityTypeEncass
}

// Published returns the identity ent is deployed with by the build of the
// project it belongs to. Fresh identifiers that build draws are unknowable,
// so ID and GUID are left empty unless the entity keeps its identity.
func Published(project v1alpha1.ProjectInfo, key string, ent v1alpha1.Entity) v1alpha1.Base {
	base := *ent.GetBase()
	if f, ok := ent.(*v1alpha1.Folder); ok && f.IsRoot() {
		base.ID = types.RootFolderID
		return base
	}
	if !base.Annotated().KeepsIdentity() {
		base.ID, base.GUID = "", ""
		return base
	}
	Assigner{Project: project}.pin(key, ent.EntityType(), &base)
	return base
}
