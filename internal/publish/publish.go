package publish

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/ia-eknorr/stoker-bundler/internal/compiler"
	stokertypes "github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Data keys of the published objects.
const (
	KeyDeployment  = "deployment.bundle"
	KeyMetadata    = "metadata.yml"
	KeyEnvironment = "environment.bundle"
)

const maxRetries = 3

// ConfigMapName returns the name of the ConfigMap holding a bundle's
// deployment document and metadata.
func ConfigMapName(res *compiler.Result) string {
	return objectName("stoker-bundle-" + res.FileBase())
}

// SecretName returns the name of the Secret holding a bundle's environment
// document. Environment documents carry credentials, so they never go in a
// ConfigMap.
func SecretName(res *compiler.Result) string {
	return objectName("stoker-bundle-env-" + res.FileBase())
}

// objectName lowercases s and replaces everything a DNS-1123 subdomain does
// not allow.
func objectName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-.")
	if len(name) > 253 {
		name = strings.TrimRight(name[:253], "-.")
	}
	return name
}

// Publisher writes compiled bundles into a namespace.
type Publisher struct {
	Client    client.Client
	Namespace string
}

// Publish creates or updates one ConfigMap and one Secret per bundle.
func (p *Publisher) Publish(ctx context.Context, results []*compiler.Result, commit string) error {
	log := logf.FromContext(ctx).WithName("publish")
	for _, res := range results {
		labels := map[string]string{
			"app.kubernetes.io/managed-by": stokertypes.LabelManagedBy,
			stokertypes.LabelBundleName:    labelValue(res.Name),
			stokertypes.LabelBundleVersion: labelValue(res.Version),
		}
		annotations := map[string]string{}
		if commit != "" {
			annotations[stokertypes.AnnotationSourceCommit] = commit
		}

		cmKey := types.NamespacedName{Name: ConfigMapName(res), Namespace: p.Namespace}
		err := upsert(ctx, p.Client, cmKey, &corev1.ConfigMap{}, func(cm *corev1.ConfigMap) {
			setMeta(&cm.ObjectMeta, labels, annotations)
			cm.Data = map[string]string{
				KeyDeployment: string(res.Deployment),
				KeyMetadata:   string(res.Metadata),
			}
		})
		if err != nil {
			return fmt.Errorf("publishing ConfigMap %s: %w", cmKey.Name, err)
		}

		secretKey := types.NamespacedName{Name: SecretName(res), Namespace: p.Namespace}
		err = upsert(ctx, p.Client, secretKey, &corev1.Secret{}, func(s *corev1.Secret) {
			setMeta(&s.ObjectMeta, labels, annotations)
			s.Type = corev1.SecretTypeOpaque
			s.Data = map[string][]byte{KeyEnvironment: res.Environment}
		})
		if err != nil {
			return fmt.Errorf("publishing Secret %s: %w", secretKey.Name, err)
		}
		log.Info("published bundle", "bundle", res.Name, "configMap", cmKey.Name, "secret", secretKey.Name)
	}
	return nil
}

func setMeta(meta *metav1.ObjectMeta, labels, annotations map[string]string) {
	if meta.Labels == nil {
		meta.Labels = make(map[string]string, len(labels))
	}
	for k, v := range labels {
		meta.Labels[k] = v
	}
	if len(annotations) == 0 {
		return
	}
	if meta.Annotations == nil {
		meta.Annotations = make(map[string]string, len(annotations))
	}
	for k, v := range annotations {
		meta.Annotations[k] = v
	}
}

// upsert creates or updates the object at key. Uses optimistic concurrency
// with retry on conflict.
func upsert[T client.Object](ctx context.Context, c client.Client, key types.NamespacedName, obj T, mutate func(T)) error {
	for range maxRetries {
		err := c.Get(ctx, key, obj)
		if errors.IsNotFound(err) {
			obj.SetName(key.Name)
			obj.SetNamespace(key.Namespace)
			obj.SetResourceVersion("")
			mutate(obj)
			if createErr := c.Create(ctx, obj); createErr != nil {
				if errors.IsAlreadyExists(createErr) {
					continue // retry, someone else created it first
				}
				return fmt.Errorf("creating: %w", createErr)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("getting: %w", err)
		}

		mutate(obj)
		if updateErr := c.Update(ctx, obj); updateErr != nil {
			if errors.IsConflict(updateErr) {
				continue // retry with fresh resourceVersion
			}
			return fmt.Errorf("updating: %w", updateErr)
		}
		return nil
	}
	return fmt.Errorf("failed after %d retries", maxRetries)
}

// labelValue trims s to a valid label value.
func labelValue(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	v := b.String()
	if len(v) > 63 {
		v = v[:63]
	}
	return strings.Trim(v, "-_.")
}
