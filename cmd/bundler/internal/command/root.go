package command

import (
	"flag"
	"fmt"

	"github.com/spf13/cobra"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// NewRootCommand returns the stoker-bundler command tree.
func NewRootCommand() *cobra.Command {
	zapOpts := zap.Options{Development: true}

	cmd := &cobra.Command{
		Use:   "stoker-bundler",
		Short: "Compile gateway projects into restman bundles",
		Long: "stoker-bundler compiles a GatewayBundle manifest into deployable\n" +
			"restman bundles: a deployment bundle with policies, services, and\n" +
			"encapsulated assertions, an environment bundle with connections,\n" +
			"listeners, and secrets, and metadata describing both.\n",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := zap.New(zap.UseFlagOptions(&zapOpts), zap.WriteTo(cmd.ErrOrStderr()))
			logf.SetLogger(logger)
			cmd.SetContext(logf.IntoContext(cmd.Context(), logger))
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	goFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	zapOpts.BindFlags(goFlags)
	cmd.PersistentFlags().AddGoFlagSet(goFlags)

	cmd.AddCommand(
		NewBuildCommand(),
		NewPublishCommand(),
		NewVersionCommand(),
	)
	cmd.SetVersionTemplate("{{.Version}}\n")
	return cmd
}

// Execute runs the root command and prints any error.
func Execute() error {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return err
}
