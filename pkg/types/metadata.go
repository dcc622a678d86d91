package types

// BundleMetadata describes one compiled bundle. It is serialized as YAML
// next to the bundle documents and may be patched with --set overrides.
type BundleMetadata struct {
	// Type is the entity type of the annotated root, or BUNDLE for a plain build.
	Type string `json:"type"`

	Name        string   `json:"name"`
	ID          string   `json:"id"`
	GroupName   string   `json:"groupName,omitempty"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	Reusable            bool `json:"reusable"`
	Redeployable        bool `json:"redeployable"`
	HasRouting          bool `json:"hasRouting"`
	EnvironmentIncluded bool `json:"environmentIncluded"`

	// SourceCommit is the commit of the checkout the bundle was built from, if any.
	SourceCommit string `json:"sourceCommit,omitempty"`

	// DefinedEntities lists every entity the deployment document creates or updates.
	DefinedEntities []MetadataEntity `json:"definedEntities"`

	// EnvironmentEntities lists environment entities the bundle expects on the gateway.
	EnvironmentEntities []MetadataEntity `json:"environmentEntities"`

	// Dependencies lists other bundles that must be installed first.
	Dependencies []MetadataDependency `json:"dependencies"`
}

// MetadataEntity is one entity reference in BundleMetadata.
type MetadataEntity struct {
	Type string `json:"type"`
	Name string `json:"name"`
	ID   string `json:"id"`
	GUID string `json:"guid,omitempty"`
}

// MetadataDependency names a bundle another bundle depends on.
type MetadataDependency struct {
	Name      string `json:"name"`
	GroupName string `json:"groupName,omitempty"`
	Version   string `json:"version,omitempty"`
}
