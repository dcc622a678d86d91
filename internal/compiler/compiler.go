package compiler

import (
	"cmp"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/builder"
	"github.com/ia-eknorr/stoker-bundler/internal/bundle"
	"github.com/ia-eknorr/stoker-bundler/internal/identity"
	"github.com/ia-eknorr/stoker-bundler/internal/resolver"
	"github.com/ia-eknorr/stoker-bundler/internal/rewrite"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Options tune a compilation.
type Options struct {
	// IncludeEnvironment merges the environment records into the deployment
	// document, so one file carries everything.
	IncludeEnvironment bool

	// Secrets encrypts stored passwords in environment documents. Nil
	// writes them as given.
	Secrets builder.Encryptor

	// MetadataOverrides are sjson paths set on every metadata document.
	MetadataOverrides map[string]string

	// SourceCommit is stamped into the metadata.
	SourceCommit string

	// ExcludePatterns add to the manifest's excludePatterns.
	ExcludePatterns []string
}

// Result is one compiled bundle.
type Result struct {
	Name    string
	Version string

	// Annotated is set for bundles built from an annotated entity.
	Annotated bool

	Deployment  []byte
	Environment []byte
	Metadata    []byte

	DeploymentRecords  []builder.Record
	EnvironmentRecords []builder.Record
	BundleMetadata     types.BundleMetadata

	// Overrides lists the identifier overrides that were ignored.
	Overrides []identity.Override
}

// FileBase is the file name stem of the bundle's artifacts.
func (r *Result) FileBase() string {
	name := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_").Replace(r.Name)
	if r.Version == "" {
		return name
	}
	return name + "-" + r.Version
}

// Files returns the bundle's artifacts keyed by file name.
func (r *Result) Files() map[string][]byte {
	base := r.FileBase()
	return map[string][]byte{
		base + ".bundle":             r.Deployment,
		base + ".environment.bundle": r.Environment,
		base + ".metadata.yml":       r.Metadata,
	}
}

// Compiler turns a loaded Bundle into bundle documents.
type Compiler struct {
	Pipeline  *builder.Pipeline
	Rewriters *rewrite.Registry
	Generator identity.Generator

	// Metrics is optional.
	Metrics *Metrics
}

// New returns a Compiler with the built-in builders and rewriters.
func New() *Compiler {
	return &Compiler{
		Pipeline:  builder.Default(),
		Rewriters: rewrite.Default(),
		Generator: identity.UUIDGenerator{},
	}
}

// Compile builds b. A project without bundle annotations yields one bundle
// named after the project; otherwise every annotated entity yields its own.
// Neither b nor its dependency bundles are modified.
// Any error aborts the whole compilation.
func (c *Compiler) Compile(ctx context.Context, b *v1alpha1.Bundle, opts Options) ([]*Result, error) {
	log := logf.FromContext(ctx).WithName("compiler")
	start := time.Now()

	results, err := c.compile(ctx, log, b, opts)
	if c.Metrics != nil {
		c.Metrics.buildFinished(err)
	}
	if err != nil {
		return nil, err
	}
	log.Info("compilation finished", "project", b.Project.Name, "bundles", len(results), "duration", time.Since(start).String())
	return results, nil
}

func (c *Compiler) compile(ctx context.Context, log logr.Logger, b *v1alpha1.Bundle, opts Options) ([]*Result, error) {
	src := b.Clone()
	applyExcludes(log, c.Generator, src, MergeExcludes(opts.ExcludePatterns))
	addEnvironmentProperties(log, src)
	deps, err := publishDependencies(src.Dependencies)
	if err != nil {
		return nil, err
	}
	src.Dependencies = deps
	if err := resolver.Scan(src); err != nil {
		return nil, err
	}
	if err := resolver.DetectCycles(src); err != nil {
		return nil, err
	}

	var targets []target
	if roots := annotatedRoots(src); len(roots) > 0 {
		for _, root := range roots {
			targets = append(targets, viewOf(src, root))
		}
	} else {
		targets = append(targets, target{Name: src.Project.Name, Bundle: src})
	}

	results := make([]*Result, 0, len(targets))
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := c.build(ctx, log.WithValues("bundle", t.Name), t, opts)
		if err != nil {
			if t.Root != nil {
				return nil, fmt.Errorf("bundle %s: %w", t.Name, err)
			}
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// build runs both pipeline passes over one target.
func (c *Compiler) build(ctx context.Context, log logr.Logger, t target, opts Options) (*Result, error) {
	project := t.Bundle.Project
	version := identity.NormalizeVersion(project.Version)

	assigner := identity.Assigner{Generator: c.Generator, Project: project}
	if t.Root != nil {
		assigner.Namer = &identity.Namer{Group: project.GroupName, Bundle: t.Name, Version: project.Version}
	}
	overrides := assigner.Assign(log, t.Bundle)
	if c.Metrics != nil {
		c.Metrics.IgnoredOverrides.Add(float64(len(overrides)))
	}

	usage := &rewrite.Usage{}
	bc := &builder.Context{
		Resolver:  resolver.New(t.Bundle),
		Rewriters: c.Rewriters,
		Usage:     usage,
		Annotated: t.Root != nil,
		Secrets:   opts.Secrets,
		Log:       log,
	}

	pipeline := c.Pipeline
	if c.Metrics != nil {
		p := *c.Pipeline
		prev := p.Observer
		p.Observer = func(name string, mode builder.Mode, elapsed time.Duration, records []builder.Record, err error) {
			c.Metrics.observe(name, mode, elapsed, records, err)
			if prev != nil {
				prev(name, mode, elapsed, records, err)
			}
		}
		pipeline = &p
	}

	deployment, err := pipeline.Run(ctx, t.Bundle, builder.Deployment, bc)
	if err != nil {
		return nil, err
	}
	environment, err := pipeline.Run(ctx, t.Bundle, builder.Environment, bc)
	if err != nil {
		return nil, err
	}

	documentRecords := deployment
	if opts.IncludeEnvironment {
		documentRecords = mergeRecords(environment, deployment)
	}
	deploymentDoc, err := bundle.Render(documentRecords)
	if err != nil {
		return nil, fmt.Errorf("rendering deployment bundle: %w", err)
	}
	environmentDoc, err := bundle.Render(environment)
	if err != nil {
		return nil, fmt.Errorf("rendering environment bundle: %w", err)
	}

	md := bundle.Metadata(bundle.MetadataInput{
		Name:                t.Name,
		ID:                  projectID(project),
		Project:             project,
		Root:                t.Root,
		Deployment:          deployment,
		Usage:               usage,
		Requirements:        bc.Resolver.Requirements(),
		EnvironmentIncluded: opts.IncludeEnvironment,
		SourceCommit:        opts.SourceCommit,
	})
	metadata, err := bundle.RenderMetadata(md, opts.MetadataOverrides)
	if err != nil {
		return nil, err
	}

	kind := "plain"
	if t.Root != nil {
		kind = "annotated"
	}
	if c.Metrics != nil {
		c.Metrics.BundlesTotal.WithLabelValues(kind).Inc()
	}
	log.V(1).Info("bundle built", "kind", kind, "deploymentRecords", len(documentRecords), "environmentRecords", len(environment))

	return &Result{
		Name:               t.Name,
		Version:            version,
		Annotated:          t.Root != nil,
		Deployment:         deploymentDoc,
		Environment:        environmentDoc,
		Metadata:           metadata,
		DeploymentRecords:  documentRecords,
		EnvironmentRecords: environment,
		BundleMetadata:     md,
		Overrides:          overrides,
	}, nil
}

// mergeRecords swaps every deployment placeholder for the matching full
// environment record. Environment records without a placeholder, such as
// the default listeners, go first.
func mergeRecords(environment, deployment []builder.Record) []builder.Record {
	type key struct{ typ, id string }
	full := make(map[key]builder.Record, len(environment))
	for _, r := range environment {
		full[key{r.Type, r.ID}] = r
	}
	placed := make(map[key]bool, len(deployment))
	merged := make([]builder.Record, 0, len(deployment))
	for _, r := range deployment {
		k := key{r.Type, r.ID}
		if env, ok := full[k]; ok && r.IsPlaceholder() {
			r = env
		}
		placed[k] = true
		merged = append(merged, r)
	}
	var out []builder.Record
	for _, r := range environment {
		if !placed[key{r.Type, r.ID}] {
			out = append(out, r)
		}
	}
	return append(out, merged...)
}

// projectID derives a stable id for a plain bundle from the project coordinates.
func projectID(p v1alpha1.ProjectInfo) string {
	coords := cmp.Or(p.GroupName, "default") + "." + p.Name + identity.Separator + identity.NormalizeVersion(p.Version)
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(coords))
	return hex.EncodeToString(id[:])
}
