package rewrite

import (
	"fmt"
	"slices"

	"github.com/beevik/etree"
	"github.com/go-logr/logr"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/internal/resolver"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Reference is an entity a rewritten policy points at.
type Reference struct {
	Type string
	Name string
	ID   string
	GUID string
}

// Usage collects what rewriting touched across all policies of one build.
type Usage struct {
	Routing     bool
	environment []Reference
}

// UseEnvironment records a reference to an environment entity.
func (u *Usage) UseEnvironment(ref Reference) {
	if !slices.Contains(u.environment, ref) {
		u.environment = append(u.environment, ref)
	}
}

// Environment returns the recorded environment references in first-use order.
func (u *Usage) Environment() []Reference { return slices.Clone(u.environment) }

// Context is the state one policy is rewritten with.
type Context struct {
	Resolver *resolver.Resolver
	Usage    *Usage
	Log      logr.Logger

	// Consumer is the path of the policy being rewritten.
	Consumer string

	// PolicyName is the manifest name of that policy, before namespacing.
	PolicyName string
}

// Rewriter rewrites one assertion element in place.
type Rewriter interface {
	Rewrite(el *etree.Element, rc *Context) error
}

// Func adapts a function to a Rewriter.
type Func func(el *etree.Element, rc *Context) error

func (f Func) Rewrite(el *etree.Element, rc *Context) error { return f(el, rc) }

// Registry maps assertion tags to their rewriters.
type Registry struct {
	byTag map[string]Rewriter
	tags  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTag: make(map[string]Rewriter)}
}

// Register adds a rewriter for tag. A tag can only be registered once.
func (r *Registry) Register(tag string, rw Rewriter) error {
	if _, ok := r.byTag[tag]; ok {
		return fmt.Errorf("rewriter for %s already registered", tag)
	}
	r.byTag[tag] = rw
	r.tags = append(r.tags, tag)
	return nil
}

// Tags returns the registered tags in registration order.
func (r *Registry) Tags() []string { return slices.Clone(r.tags) }

// Policy parses content, runs every registered rewriter over the matching
// assertions, and returns the rewritten document. content is not modified.
func (r *Registry) Policy(content string, rc *Context) (string, error) {
	doc, err := policyxml.Parse(content)
	if err != nil {
		return "", &conditions.BuildError{Reason: conditions.ReasonInvalidContent, Entity: rc.Consumer, Err: err}
	}
	// Collect first so rewriters can restructure elements freely.
	for _, el := range policyxml.Elements(doc.Root(), r.tags...) {
		if err := r.byTag[el.FullTag()].Rewrite(el, rc); err != nil {
			return "", err
		}
	}
	if rc.Usage != nil && policyxml.Contains(doc.Root(), policyxml.RoutingTags...) {
		rc.Usage.Routing = true
	}
	return policyxml.Serialize(doc)
}

// Default returns a registry with every built-in rewriter.
func Default() *Registry {
	r := NewRegistry()
	for _, b := range builtin() {
		if err := r.Register(b.tag, b.rw); err != nil {
			panic(err)
		}
	}
	return r
}

type entry struct {
	tag string
	rw  Rewriter
}

func builtin() []entry {
	return []entry{
		{policyxml.TagInclude, Func(rewriteInclude)},
		{policyxml.TagEncapsulated, Func(rewriteEncass)},
		{policyxml.TagSetVariable, Func(rewriteSetVariable)},
		{policyxml.TagHardcodedResponse, Func(rewriteHardcodedResponse)},
		{policyxml.TagJdbcQuery, jdbcReference},
		{policyxml.TagCassandraQuery, cassandraReference},
		{policyxml.TagJmsRouting, jmsReference},
		{policyxml.TagMqNativeRouting, mqReference},
		{policyxml.TagHttp2Routing, http2Reference},
		{policyxml.TagAuthentication, Func(rewriteAuthentication)},
		{policyxml.TagNonSoapVerifyElement, trustedCertReference},
	}
}

func missingElement(rc *Context, assertion, child string) error {
	return conditions.Errorf(conditions.ReasonMissingElement, rc.Consumer, "%s has no %s element", assertion, child)
}

// checkPublished fails a reference into a dependency bundle whose target
// has no single deployed name, or lacks an identifier the reference needs.
// Local and missing-table targets always pass.
func checkPublished(rc *Context, m resolver.Match, name string, needID, needGUID bool) error {
	if m.Source == nil {
		return nil
	}
	base := m.Entity.GetBase()
	entType, dep := m.Entity.EntityType(), m.Source.Project.Name
	switch {
	case base.Name == "":
		return conditions.Errorf(conditions.ReasonUnstableReference, rc.Consumer,
			"%s %q of dependency %s is deployed under a different name by each of its bundles", entType, name, dep)
	case needID && base.ID == "", needGUID && base.GUID == "":
		return conditions.Errorf(conditions.ReasonUnstableReference, rc.Consumer,
			"%s %q of dependency %s gets new identifiers on every build; annotate it %s", entType, name, dep, types.AnnotationReusableEntity)
	}
	return nil
}

func referenceOf(e v1alpha1.Entity) Reference {
	b := e.GetBase()
	return Reference{Type: e.EntityType(), Name: b.Name, ID: b.ID, GUID: b.GUID}
}
