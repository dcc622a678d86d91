package loader

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/yaml"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Project is a loaded manifest and the bundle built from it.
type Project struct {
	// Path is the absolute manifest path.
	Path     string
	Manifest *v1alpha1.GatewayBundle
	Bundle   *v1alpha1.Bundle
}

// Load reads the GatewayBundle manifest at manifestPath and, recursively,
// every manifest it depends on. Dependency manifests shared by several
// bundles are loaded once.
func Load(manifestPath string) (*Project, error) {
	l := &loader{
		loaded:  make(map[string]*Project),
		loading: make(map[string]bool),
	}
	return l.load(manifestPath)
}

type loader struct {
	loaded  map[string]*Project
	loading map[string]bool
	stack   []string
}

func (l *loader) load(manifestPath string) (*Project, error) {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", manifestPath, err)
	}
	if p, ok := l.loaded[abs]; ok {
		return p, nil
	}
	if l.loading[abs] {
		loop := append(slices.Clone(l.stack), abs)
		return nil, fmt.Errorf("dependency loop: %s", strings.Join(loop, " -> "))
	}
	l.loading[abs] = true
	l.stack = append(l.stack, abs)
	defer func() {
		delete(l.loading, abs)
		l.stack = l.stack[:len(l.stack)-1]
	}()

	manifest, err := Read(abs)
	if err != nil {
		return nil, err
	}
	b, err := Build(manifest, filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", abs, err)
	}
	for _, dep := range manifest.Spec.Dependencies {
		depPath := dep
		if !filepath.IsAbs(depPath) {
			depPath = filepath.Join(filepath.Dir(abs), dep)
		}
		p, err := l.load(depPath)
		if err != nil {
			return nil, err
		}
		b.Dependencies = append(b.Dependencies, p.Bundle)
	}

	p := &Project{Path: abs, Manifest: manifest, Bundle: b}
	l.loaded[abs] = p
	return p, nil
}

// Read parses a GatewayBundle manifest and checks its kind and apiVersion.
func Read(manifestPath string) (*v1alpha1.GatewayBundle, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	manifest := &v1alpha1.GatewayBundle{}
	if err := yaml.UnmarshalStrict(data, manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", manifestPath, err)
	}
	if manifest.Kind != v1alpha1.GatewayBundleKind {
		return nil, fmt.Errorf("%s: kind %q, expected %s", manifestPath, manifest.Kind, v1alpha1.GatewayBundleKind)
	}
	if manifest.APIVersion != v1alpha1.GroupVersion {
		return nil, fmt.Errorf("%s: apiVersion %q, expected %s", manifestPath, manifest.APIVersion, v1alpha1.GroupVersion)
	}
	if manifest.Name == "" {
		return nil, fmt.Errorf("%s: metadata.name is required", manifestPath)
	}
	return manifest, nil
}

// Build turns a manifest into a Bundle: names defaulted from keys, policy
// content read, and the folder tree linked. Relative content files are
// resolved against dir. Every problem found is reported together.
func Build(manifest *v1alpha1.GatewayBundle, dir string) (*v1alpha1.Bundle, error) {
	spec := manifest.Spec
	b := &v1alpha1.Bundle{
		Entities: spec.Entities,
		Project: v1alpha1.ProjectInfo{
			Name:      manifest.Name,
			GroupName: spec.GroupName,
			Version:   spec.Version,
		},
		Environment: spec.Environment,
		Missing:     spec.Missing,
	}

	var errs []error
	var err error
	if b.Policies, err = rekey(b.Policies, "policies"); err != nil {
		errs = append(errs, err)
	}
	if b.Services, err = rekey(b.Services, "services"); err != nil {
		errs = append(errs, err)
	}
	if b.Folders, err = rekey(b.Folders, "folders"); err != nil {
		errs = append(errs, err)
	}

	for _, key := range v1alpha1.SortedKeys(b.Policies) {
		p := b.Policies[key]
		p.Path = key
		defaultName(&p.Base, v1alpha1.BaseName(key))
		if err := readContent(p, dir); err != nil {
			errs = append(errs, fmt.Errorf("policies[%s]: %w", key, err))
		}
	}
	for _, key := range v1alpha1.SortedKeys(b.Services) {
		s := b.Services[key]
		s.Path = key
		defaultName(&s.Base, v1alpha1.BaseName(key))
		if s.Policy == "" {
			errs = append(errs, fmt.Errorf("services[%s].policy is required", key))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("services[%s].url is required", key))
		}
	}
	for _, key := range v1alpha1.SortedKeys(b.EncapsulatedAssertions) {
		e := b.EncapsulatedAssertions[key]
		defaultName(&e.Base, key)
		if e.Policy == "" {
			errs = append(errs, fmt.Errorf("encapsulatedAssertions[%s].policy is required", key))
		}
	}
	for _, key := range v1alpha1.SortedKeys(b.ScheduledTasks) {
		t := b.ScheduledTasks[key]
		defaultName(&t.Base, key)
		if t.Policy == "" {
			errs = append(errs, fmt.Errorf("scheduledTasks[%s].policy is required", key))
		}
	}
	for i, m := range b.Missing {
		if m.Type == "" || m.Name == "" {
			errs = append(errs, fmt.Errorf("missing[%d]: type and name are required", i))
		}
	}
	for _, k := range b.All() {
		if k.Entity.EntityType() == types.EntityTypeFolder || k.Entity.EntityType() == types.EntityTypePolicy ||
			k.Entity.EntityType() == types.EntityTypeService {
			continue
		}
		defaultName(k.Entity.GetBase(), k.Key)
	}

	linkFolders(b)

	for _, k := range b.All() {
		for _, a := range k.Entity.GetBase().Annotations {
			if !v1alpha1.KnownAnnotation(a.Type) {
				errs = append(errs, fmt.Errorf("%s %s: unknown annotation %q", k.Entity.EntityType(), k.Key, a.Type))
			}
		}
	}
	for _, pattern := range spec.ExcludePatterns {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, fmt.Errorf("excludePatterns: invalid pattern %q", pattern))
		}
	}

	if err := utilerrors.NewAggregate(errs); err != nil {
		return nil, err
	}
	return b, nil
}

func defaultName(base *v1alpha1.Base, name string) {
	if base.Name == "" {
		base.Name = name
	}
}

// rekey normalizes path keys ("/a/b.xml" becomes "a/b") and rejects
// absolute or escaping paths.
func rekey[E any](m map[string]E, field string) (map[string]E, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]E, len(m))
	var errs []error
	for _, key := range v1alpha1.SortedKeys(m) {
		if err := validatePath(strings.TrimLeft(key, "/"), field+"["+key+"]"); err != nil {
			errs = append(errs, err)
			continue
		}
		norm := normalizePath(key)
		if _, dup := out[norm]; dup {
			errs = append(errs, fmt.Errorf("%s: %q and another key both name %q", field, key, norm))
			continue
		}
		out[norm] = m[key]
	}
	return out, utilerrors.NewAggregate(errs)
}

func normalizePath(p string) string {
	p = strings.TrimSuffix(filepath.ToSlash(p), ".xml")
	return strings.Trim(path.Clean("/"+p), "/")
}

// validatePath rejects absolute paths and path traversal.
func validatePath(p, field string) error {
	if filepath.IsAbs(p) {
		return fmt.Errorf("%s: absolute paths not allowed (%q)", field, p)
	}
	if containsTraversal(p) {
		return fmt.Errorf("%s: path traversal (..) not allowed (%q)", field, p)
	}
	return nil
}

// containsTraversal checks for ".." path components.
func containsTraversal(p string) bool {
	return slices.Contains(strings.Split(filepath.ToSlash(p), "/"), "..")
}

func readContent(p *v1alpha1.Policy, dir string) error {
	switch {
	case p.Content != "" && p.ContentFile != "":
		return fmt.Errorf("content and contentFile are mutually exclusive")
	case p.Content != "":
		return nil
	case p.ContentFile == "":
		return fmt.Errorf("content or contentFile is required")
	}
	file := p.ContentFile
	if !filepath.IsAbs(file) {
		file = filepath.Join(dir, file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading contentFile: %w", err)
	}
	p.Content = string(data)
	return nil
}
