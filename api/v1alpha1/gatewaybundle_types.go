package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ============================================================
// GatewayBundle manifest
// ============================================================

// GatewayBundleSpec describes a gateway project and everything it deploys.
type GatewayBundleSpec struct {
	// groupName namespaces annotated bundle names, e.g. com.example.
	// +optional
	GroupName string `json:"groupName,omitempty"`

	// version is the project version. "unspecified" or empty omits the
	// version suffix from annotated names.
	// +optional
	Version string `json:"version,omitempty"`

	// dependencies are paths to other GatewayBundle manifests, relative to
	// this one. Their entities may be referenced but are not built.
	// +optional
	Dependencies []string `json:"dependencies,omitempty"`

	// excludePatterns are doublestar globs matched against policy, service,
	// and folder paths. Matching entities move to the missing table.
	// +optional
	ExcludePatterns []string `json:"excludePatterns,omitempty"`

	// environment holds values for ENV.* variables, keyed by
	// "<policy name>.<variable>".
	// +optional
	Environment map[string]string `json:"environment,omitempty"`

	// missing lists entities that are referenced but deployed elsewhere.
	// +optional
	Missing []*MissingEntity `json:"missing,omitempty"`

	Entities `json:",inline"`
}

// GatewayBundle is the manifest a bundle is compiled from.
type GatewayBundle struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec GatewayBundleSpec `json:"spec"`
}

// GatewayBundleKind is the expected manifest kind.
const GatewayBundleKind = "GatewayBundle"

// GroupVersion is the expected manifest apiVersion.
const GroupVersion = "bundler.stoker.io/v1alpha1"
