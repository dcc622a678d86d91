package bundle

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/tidwall/sjson"
	"sigs.k8s.io/yaml"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/builder"
	"github.com/ia-eknorr/stoker-bundler/internal/rewrite"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// MetadataInput is everything a compiled bundle's metadata is derived from.
type MetadataInput struct {
	Name    string
	ID      string
	Project v1alpha1.ProjectInfo

	// Root is the annotated entity the bundle was built for. Nil for plain builds.
	Root v1alpha1.Entity

	Deployment   []builder.Record
	Usage        *rewrite.Usage
	Requirements []*v1alpha1.Bundle

	EnvironmentIncluded bool
	SourceCommit        string
}

// Metadata derives the metadata record of a compiled bundle.
func Metadata(in MetadataInput) types.BundleMetadata {
	md := types.BundleMetadata{
		Type:                types.BundleTypePlain,
		Name:                in.Name,
		ID:                  in.ID,
		GroupName:           in.Project.GroupName,
		Version:             in.Project.Version,
		EnvironmentIncluded: in.EnvironmentIncluded,
		SourceCommit:        in.SourceCommit,
		DefinedEntities:     []types.MetadataEntity{},
		EnvironmentEntities: []types.MetadataEntity{},
		Dependencies:        []types.MetadataDependency{},
	}
	if in.Root != nil {
		ann := in.Root.GetBase().Annotated()
		md.Type = in.Root.EntityType()
		md.ID = in.Root.GetBase().ID
		md.Description = ann.Description
		md.Tags = ann.Tags
		md.Reusable = ann.Reusable
		md.Redeployable = ann.Redeployable
	}
	if in.Usage != nil {
		md.HasRouting = in.Usage.Routing
		for _, ref := range in.Usage.Environment() {
			md.EnvironmentEntities = append(md.EnvironmentEntities, types.MetadataEntity{Type: ref.Type, Name: ref.Name, ID: ref.ID, GUID: ref.GUID})
		}
		slices.SortFunc(md.EnvironmentEntities, func(a, b types.MetadataEntity) int {
			return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.Name, b.Name))
		})
	}
	for _, r := range in.Deployment {
		if r.IsPlaceholder() {
			continue
		}
		md.DefinedEntities = append(md.DefinedEntities, types.MetadataEntity{Type: r.Type, Name: r.Name, ID: r.ID, GUID: r.GUID})
	}
	for _, dep := range in.Requirements {
		md.Dependencies = append(md.Dependencies, types.MetadataDependency{
			Name:      dep.Project.Name,
			GroupName: dep.Project.GroupName,
			Version:   dep.Project.Version,
		})
	}
	return md
}

// RenderMetadata serializes md as YAML after applying overrides. Each
// override key is a gjson-style path; values that parse as JSON keep their
// type, anything else is set as a string.
func RenderMetadata(md types.BundleMetadata, overrides map[string]string) ([]byte, error) {
	raw, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	content := string(raw)
	for _, path := range v1alpha1.SortedKeys(overrides) {
		content, err = setJSON(content, path, overrides[path])
		if err != nil {
			return nil, err
		}
	}
	out, err := yaml.JSONToYAML([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("converting metadata to yaml: %w", err)
	}
	return out, nil
}

func setJSON(content, path, rawValue string) (string, error) {
	var typedValue any
	if err := json.Unmarshal([]byte(rawValue), &typedValue); err != nil {
		typedValue = rawValue
	}
	result, err := sjson.Set(content, path, typedValue)
	if err != nil {
		return "", fmt.Errorf("setting metadata %q: %w", path, err)
	}
	return result, nil
}
