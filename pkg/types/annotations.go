package types

const (
	// AnnotationPrefix is the base prefix for labels the bundler sets on published objects.
	AnnotationPrefix = "stoker.io"

	// Entity annotations, attached to policies, encapsulated assertions and
	// services in the GatewayBundle manifest.

	// AnnotationBundle marks an entity as the root of its own deployable bundle.
	AnnotationBundle = "bundle"

	// AnnotationBundleHints carries identity overrides for a bundle root.
	// Hints win over the plain bundle annotation when both set an id or guid.
	AnnotationBundleHints = "bundle-hints"

	// AnnotationReusable marks an entity whose identity is stable across builds.
	AnnotationReusable = "reusable"

	// AnnotationReusableBundle is the bundle-level variant of AnnotationReusable.
	AnnotationReusableBundle = "reusable-bundle"

	// AnnotationReusableEntity is the entity-level variant of AnnotationReusable.
	AnnotationReusableEntity = "reusable-entity"

	// AnnotationRedeployable allows an annotated bundle to overwrite an existing
	// entity on the gateway instead of keeping it.
	AnnotationRedeployable = "redeployable"

	// AnnotationExclude marks an entity as known by reference only. It resolves
	// but is never emitted.
	AnnotationExclude = "exclude"

	// Labels

	// LabelBundleName is set on published ConfigMaps and Secrets to identify the bundle.
	LabelBundleName = AnnotationPrefix + "/bundle-name"

	// LabelBundleVersion records the version of the published bundle.
	LabelBundleVersion = AnnotationPrefix + "/bundle-version"

	// LabelManagedBy is the standard managed-by label value for published objects.
	LabelManagedBy = "stoker-bundler"

	// AnnotationSourceCommit records the git commit a published bundle was built from.
	AnnotationSourceCommit = AnnotationPrefix + "/source-commit"
)
