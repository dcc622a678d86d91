package command

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/ia-eknorr/stoker-bundler/internal/compiler"
	"github.com/ia-eknorr/stoker-bundler/internal/output"
)

// BuildOptions holds the flags of the build command.
type BuildOptions struct {
	CompileOptions
	OutputDir string
	DryRun    bool
}

// NewBuildCommand returns the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile a GatewayBundle manifest into bundle files",
		Long: "Compile a GatewayBundle manifest and write, per bundle, a\n" +
			"<name>.bundle, <name>.environment.bundle, and <name>.metadata.yml\n" +
			"to the output directory. Files whose content did not change are\n" +
			"left untouched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunBuild(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	addCompileFlags(cmd, &opts.CompileOptions)
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", "build",
		"Directory bundle files are written to")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false,
		"Report which files would change without writing them")

	return cmd
}

// RunBuild compiles the project and writes its bundle files.
func RunBuild(ctx context.Context, out io.Writer, opts *BuildOptions) error {
	results, _, err := compileProject(ctx, &opts.CompileOptions)
	if err != nil {
		return err
	}

	files, err := collectFiles(results)
	if err != nil {
		return err
	}
	w := &output.Writer{Dir: opts.OutputDir, DryRun: opts.DryRun}
	res, err := w.Write(files)
	if err != nil {
		return err
	}
	logf.FromContext(ctx).Info("bundle files written",
		"dir", opts.OutputDir, "added", len(res.Added), "modified", len(res.Modified), "unchanged", len(res.Unchanged))

	for _, r := range results {
		fmt.Fprintf(out, "bundle %s: %d deployment, %d environment records\n",
			r.Name, len(r.DeploymentRecords), len(r.EnvironmentRecords))
	}
	printFiles(out, "added", res.Added)
	printFiles(out, "modified", res.Modified)
	if opts.DryRun {
		fmt.Fprintln(out, "dry run, nothing written")
	}
	return nil
}

// collectFiles flattens the files of every result. Two bundles writing the
// same file is an error.
func collectFiles(results []*compiler.Result) (map[string][]byte, error) {
	files := make(map[string][]byte)
	owner := make(map[string]string)
	for _, r := range results {
		rf := r.Files()
		for _, name := range slices.Sorted(maps.Keys(rf)) {
			if prev, ok := owner[name]; ok {
				return nil, fmt.Errorf("bundles %s and %s both write %s", prev, r.Name, name)
			}
			owner[name] = r.Name
			files[name] = rf[name]
		}
	}
	return files, nil
}

func printFiles(out io.Writer, verb string, names []string) {
	for _, n := range names {
		fmt.Fprintf(out, "%s %s\n", verb, n)
	}
}
