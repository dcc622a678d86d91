package builder

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/go-logr/logr"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/internal/resolver"
	"github.com/ia-eknorr/stoker-bundler/internal/rewrite"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Mode selects which half of a project a build emits.
type Mode int

const (
	// Deployment emits behavioral entities and placeholders for environment entities.
	Deployment Mode = iota + 1
	// Environment emits environment entities in full.
	Environment
)

func (m Mode) String() string {
	switch m {
	case Deployment:
		return "deployment"
	case Environment:
		return "environment"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses "deployment" or "environment".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "deployment":
		return Deployment, nil
	case "environment":
		return Environment, nil
	}
	return 0, fmt.Errorf("unknown build mode %q", s)
}

func unsupported(builder string, m Mode) error {
	return conditions.Errorf(conditions.ReasonUnsupportedMode, builder, "unsupported build mode %s", m)
}

// Record is one emitted reference and the mapping that goes with it.
// A nil Content is a mapping-only placeholder.
type Record struct {
	Type       string
	Name       string
	ID         string
	GUID       string
	Content    *etree.Element
	Action     string
	Properties []policyxml.Property
}

// IsPlaceholder reports whether r carries no entity content.
func (r Record) IsPlaceholder() bool { return r.Content == nil }

// Encryptor protects stored password values in environment documents.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
}

// Context is shared by all builders of one run.
type Context struct {
	Resolver  *resolver.Resolver
	Rewriters *rewrite.Registry
	Usage     *rewrite.Usage

	// Annotated is set when building the bundle of one annotated entity.
	Annotated bool

	// Secrets encrypts stored passwords. Nil writes them as given.
	Secrets Encryptor

	Log logr.Logger
}

// Builder turns one kind of entity into records.
type Builder interface {
	Name() string
	// Priority orders builders within a pipeline, lowest first. It must be
	// unique within a pipeline.
	Priority() int
	Build(b *v1alpha1.Bundle, mode Mode, bc *Context) ([]Record, error)
}

// ============================================================
// Mapping helpers
// ============================================================

func nameMapping(name string) []policyxml.Property {
	return []policyxml.Property{
		{Key: types.PropertyMapBy, Value: types.MapByName},
		{Key: types.PropertyMapTo, Value: name},
	}
}

// environmentRecord emits an environment entity in full, or, in deployment
// mode, as a placeholder that fails the import when the entity is missing.
func environmentRecord(e v1alpha1.Entity, mode Mode, content func() (*etree.Element, error)) (Record, error) {
	base := e.GetBase()
	rec := Record{Type: e.EntityType(), Name: base.Name, ID: base.ID}
	switch mode {
	case Deployment:
		rec.Action = types.ActionNewOrExisting
		rec.Properties = append([]policyxml.Property{{Key: types.PropertyFailOnNew, Value: true}}, nameMapping(base.Name)...)
	case Environment:
		el, err := content()
		if err != nil {
			return Record{}, err
		}
		rec.Content = el
		rec.Action = types.ActionNewOrUpdate
		rec.Properties = nameMapping(base.Name)
	default:
		return Record{}, unsupported(e.EntityType(), mode)
	}
	return rec, nil
}

// behaviorRecord emits a policy, encass, service, or scheduled task.
// Plain builds overwrite. Annotated builds keep what the gateway has unless
// the entity is redeployable, and map non-reusable entities by name since
// their ids change every build.
func behaviorRecord(e v1alpha1.Entity, content *etree.Element, bc *Context) Record {
	base := e.GetBase()
	rec := Record{Type: e.EntityType(), Name: base.Name, ID: base.ID, GUID: base.GUID, Content: content, Action: types.ActionNewOrUpdate}
	if !bc.Annotated {
		return rec
	}
	ann := base.Annotated()
	if !ann.Redeployable {
		rec.Action = types.ActionNewOrExisting
	}
	if !ann.Reusable {
		rec.Properties = nameMapping(base.Name)
	}
	return rec
}

func excluded(e v1alpha1.Entity) bool {
	return e.GetBase().Annotated().Excluded
}

// entityElement starts a restman element with an id attribute and a Name child.
func entityElement(tag string, base *v1alpha1.Base) *etree.Element {
	el := policyxml.NewElement(tag)
	el.CreateAttr("id", base.ID)
	policyxml.AddText(el, "Name", base.Name)
	return el
}
