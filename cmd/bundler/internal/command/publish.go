package command

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/ia-eknorr/stoker-bundler/internal/publish"
)

// PublishOptions holds the flags of the publish command.
type PublishOptions struct {
	CompileOptions
	Namespace string

	// Client is used instead of one built from the kubeconfig when set.
	Client client.Client
}

// NewPublishCommand returns the publish command.
func NewPublishCommand() *cobra.Command {
	opts := &PublishOptions{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Compile a GatewayBundle manifest and publish it to Kubernetes",
		Long: "Compile a GatewayBundle manifest and store every bundle in the\n" +
			"namespace: the deployment bundle and metadata in a ConfigMap, the\n" +
			"environment bundle in a Secret. Existing objects are updated.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunPublish(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	addCompileFlags(cmd, &opts.CompileOptions)
	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "default",
		"Namespace the ConfigMaps and Secrets are written to")

	return cmd
}

// RunPublish compiles the project and publishes its bundles.
func RunPublish(ctx context.Context, out io.Writer, opts *PublishOptions) error {
	results, commit, err := compileProject(ctx, &opts.CompileOptions)
	if err != nil {
		return err
	}

	c := opts.Client
	if c == nil {
		cfg, err := config.GetConfig()
		if err != nil {
			return fmt.Errorf("loading kubeconfig: %w", err)
		}
		c, err = client.New(cfg, client.Options{Scheme: clientgoscheme.Scheme})
		if err != nil {
			return fmt.Errorf("creating client: %w", err)
		}
	}

	p := &publish.Publisher{Client: c, Namespace: opts.Namespace}
	if err := p.Publish(ctx, results, commit); err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(out, "published %s: configmap/%s secret/%s\n",
			r.Name, publish.ConfigMapName(r), publish.SecretName(r))
	}
	return nil
}
