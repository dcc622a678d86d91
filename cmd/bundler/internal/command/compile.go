package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/ia-eknorr/stoker-bundler/internal/compiler"
	"github.com/ia-eknorr/stoker-bundler/internal/git"
	"github.com/ia-eknorr/stoker-bundler/internal/loader"
	"github.com/ia-eknorr/stoker-bundler/internal/secrets"
)

// CompileOptions are the flags shared by every command that compiles a
// project.
type CompileOptions struct {
	Manifest           string
	IncludeEnvironment bool
	PassphraseFile     string
	Set                map[string]string
	Exclude            []string
	GitDir             string
	GitRef             string
	MetricsFile        string
}

// passphraseEnv is read when no passphrase file is given.
const passphraseEnv = "STOKER_BUNDLER_PASSPHRASE"

func addCompileFlags(cmd *cobra.Command, opts *CompileOptions) {
	cmd.Flags().StringVarP(&opts.Manifest, "file", "f", "",
		"Path to the GatewayBundle manifest")
	cmd.Flags().BoolVar(&opts.IncludeEnvironment, "include-environment", false,
		"Merge environment entities into the deployment bundle")
	cmd.Flags().StringVar(&opts.PassphraseFile, "passphrase-file", "",
		"File holding the passphrase stored passwords are encrypted with (default $"+passphraseEnv+")")
	cmd.Flags().StringToStringVar(&opts.Set, "set", nil,
		"Override metadata fields, e.g. --set description=nightly")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil,
		"Additional doublestar patterns of policies, services, and folders to exclude")
	cmd.Flags().StringVar(&opts.GitDir, "git-dir", "",
		"Checkout to stamp the source commit from (default: the manifest directory)")
	cmd.Flags().StringVar(&opts.GitRef, "git-ref", "HEAD",
		"Ref resolved to the source commit")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "",
		"Write build metrics in Prometheus text format to this file")

	_ = cmd.MarkFlagRequired("file")
}

// compileProject loads the manifest and compiles it. It returns the results
// and the source commit, empty when the project is not under git.
func compileProject(ctx context.Context, opts *CompileOptions) ([]*compiler.Result, string, error) {
	log := logf.FromContext(ctx)

	project, err := loader.Load(opts.Manifest)
	if err != nil {
		return nil, "", err
	}
	log.V(1).Info("manifest loaded", "path", project.Path, "dependencies", len(project.Bundle.Dependencies))

	commit, err := sourceCommit(ctx, opts, filepath.Dir(project.Path))
	if err != nil {
		return nil, "", err
	}

	copts := compiler.Options{
		IncludeEnvironment: opts.IncludeEnvironment,
		MetadataOverrides:  opts.Set,
		SourceCommit:       commit,
		ExcludePatterns:    compiler.MergeExcludes(project.Manifest.Spec.ExcludePatterns, opts.Exclude),
	}
	enc, err := encryptor(opts.PassphraseFile)
	if err != nil {
		return nil, "", err
	}
	if enc != nil {
		copts.Secrets = enc
	}

	c := compiler.New()
	if opts.MetricsFile != "" {
		c.Metrics = compiler.NewMetrics()
	}
	results, err := c.Compile(ctx, project.Bundle, copts)
	if c.Metrics != nil {
		if werr := c.Metrics.WriteTextfile(opts.MetricsFile); werr != nil {
			log.Error(werr, "writing metrics", "path", opts.MetricsFile)
		}
	}
	if err != nil {
		return nil, "", err
	}
	return results, commit, nil
}

func sourceCommit(ctx context.Context, opts *CompileOptions, manifestDir string) (string, error) {
	log := logf.FromContext(ctx)
	dir := opts.GitDir
	if dir == "" {
		dir = manifestDir
	}
	res, err := git.Resolve(dir, opts.GitRef)
	if errors.Is(err, git.ErrNotRepository) {
		if opts.GitDir != "" {
			return "", err
		}
		log.V(1).Info("manifest is not in a git checkout, no source commit recorded")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving source commit: %w", err)
	}
	if res.Dirty {
		log.Info("worktree has uncommitted changes", "commit", res.Commit)
	}
	return res.Commit, nil
}

// encryptor returns nil when no passphrase is configured.
func encryptor(passphraseFile string) (*secrets.Encryptor, error) {
	passphrase := os.Getenv(passphraseEnv)
	if passphraseFile != "" {
		data, err := os.ReadFile(passphraseFile)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		passphrase = strings.TrimSpace(string(data))
	}
	if passphrase == "" {
		return nil, nil
	}
	return secrets.NewEncryptor(passphrase)
}
