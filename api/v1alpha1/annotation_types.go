package v1alpha1

import (
	"encoding/json"
	"fmt"

	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// ============================================================
// Annotations
// ============================================================

// Annotation is one entity annotation. In the manifest it is written either
// as a bare type string ("reusable") or as an object carrying overrides.
type Annotation struct {
	// type is one of the annotation kinds in pkg/types.
	Type string `json:"type"`

	// name overrides the display name of an annotated bundle.
	// +optional
	Name string `json:"name,omitempty"`

	// id overrides the goid. Only honored for reusable entities.
	// +optional
	ID string `json:"id,omitempty"`

	// guid overrides the reference id. Only honored for reusable entities.
	// +optional
	GUID string `json:"guid,omitempty"`

	// +optional
	Description string `json:"description,omitempty"`

	// +optional
	Tags []string `json:"tags,omitempty"`
}

// UnmarshalJSON accepts both the bare string and the object form.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = Annotation{Type: s}
		return nil
	}
	type plain Annotation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding annotation: %w", err)
	}
	if p.Type == "" {
		return fmt.Errorf("annotation %s has no type", string(data))
	}
	*a = Annotation(p)
	return nil
}

// KnownAnnotation reports whether t is a recognized annotation kind.
func KnownAnnotation(t string) bool {
	switch t {
	case types.AnnotationBundle, types.AnnotationBundleHints,
		types.AnnotationReusable, types.AnnotationReusableBundle, types.AnnotationReusableEntity,
		types.AnnotationRedeployable, types.AnnotationExclude:
		return true
	}
	return false
}

// Annotations is a set of annotations unique by kind. When the manifest
// repeats a kind, the first occurrence is kept.
type Annotations []Annotation

func (as *Annotations) UnmarshalJSON(data []byte) error {
	var raw []Annotation
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*as = Dedupe(raw)
	return nil
}

// Dedupe drops every annotation whose kind already appeared earlier.
func Dedupe(in []Annotation) Annotations {
	seen := make(map[string]bool, len(in))
	out := make(Annotations, 0, len(in))
	for _, a := range in {
		if seen[a.Type] {
			continue
		}
		seen[a.Type] = true
		out = append(out, a)
	}
	return out
}

// Get returns the annotation of the given kind.
func (as Annotations) Get(kind string) (Annotation, bool) {
	for _, a := range as {
		if a.Type == kind {
			return a, true
		}
	}
	return Annotation{}, false
}

// Has reports whether an annotation of the given kind is present.
func (as Annotations) Has(kind string) bool {
	_, ok := as.Get(kind)
	return ok
}

// AnnotatedEntity is the view of an entity derived from its annotations.
// It is read-only once derived.
type AnnotatedEntity struct {
	Bundle       bool
	Reusable     bool
	Redeployable bool
	Excluded     bool

	ID          string
	GUID        string
	Name        string
	Description string
	Tags        []string
}

// NewAnnotatedEntity derives the annotated view. Overrides from bundle-hints
// replace those carried by any other annotation.
func NewAnnotatedEntity(as Annotations) *AnnotatedEntity {
	ae := &AnnotatedEntity{}
	for _, a := range as {
		switch a.Type {
		case types.AnnotationBundle:
			ae.Bundle = true
		case types.AnnotationReusable, types.AnnotationReusableBundle, types.AnnotationReusableEntity:
			ae.Reusable = true
		case types.AnnotationRedeployable:
			ae.Redeployable = true
		case types.AnnotationExclude:
			ae.Excluded = true
		case types.AnnotationBundleHints:
			continue
		}
		ae.fill(a, false)
	}
	if hints, ok := as.Get(types.AnnotationBundleHints); ok {
		ae.fill(hints, true)
	}
	return ae
}

func (ae *AnnotatedEntity) fill(a Annotation, override bool) {
	set := func(dst *string, v string) {
		if v != "" && (override || *dst == "") {
			*dst = v
		}
	}
	set(&ae.ID, a.ID)
	set(&ae.GUID, a.GUID)
	set(&ae.Name, a.Name)
	set(&ae.Description, a.Description)
	if len(a.Tags) > 0 && (override || len(ae.Tags) == 0) {
		ae.Tags = a.Tags
	}
}

// KeepsIdentity reports whether the entity's id and guid must survive rebuilds.
func (ae *AnnotatedEntity) KeepsIdentity() bool {
	return ae.Reusable || ae.Excluded
}
