package compiler

import (
	"github.com/go-logr/logr"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/rewrite"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// addEnvironmentProperties turns the project's environment values into the
// ENV.* cluster properties that rewritten set-variable assertions read.
// They keep their names in annotated builds so the ${gateway.ENV...}
// references stay valid.
func addEnvironmentProperties(log logr.Logger, b *v1alpha1.Bundle) {
	if len(b.Environment) == 0 {
		return
	}
	if b.ClusterProperties == nil {
		b.ClusterProperties = make(map[string]*v1alpha1.ClusterProperty, len(b.Environment))
	}
	for _, key := range v1alpha1.SortedKeys(b.Environment) {
		name := rewrite.EnvPrefix + key
		if _, ok := b.ClusterProperties[name]; ok {
			log.Info("cluster property already defined, ignoring environment value", "property", name)
			continue
		}
		b.ClusterProperties[name] = &v1alpha1.ClusterProperty{
			Base: v1alpha1.Base{
				Name:        name,
				Annotations: v1alpha1.Annotations{{Type: types.AnnotationReusableEntity}},
			},
			Value: b.Environment[key],
		}
	}
}
