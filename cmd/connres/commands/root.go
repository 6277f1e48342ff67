// Package commands implements the CLI commands for connres.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/connres/internal/app"
	"go.trai.ch/connres/internal/build"
	"go.trai.ch/connres/internal/core/domain"
)

// CLI represents the command line interface for connres.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Resolve(ctx context.Context, opts app.Options) (domain.ResolutionResult, error)
	Lock(ctx context.Context, opts app.Options) (domain.Lockfile, error)
	Validate(ctx context.Context, opts app.Options) (domain.LockfileValidationResult, error)
	Update(ctx context.Context, opts app.Options) (domain.LockfileUpdate, error)
	Explain(ctx context.Context, opts app.Options) (domain.ResolutionDiagnostics, error)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "connres",
		Short:         "Resolve and lock connector dependencies",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to connres.yaml (default: search upwards from the working directory)")
	flags.StringP("strategy", "s", "", "Resolution strategy: highest, lowest, stable or pinned")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after the command")
	flags.Bool("log-json", false, "Write logs as JSON lines")
	flags.Bool("verbose", false, "Enable debug logging")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newResolveCmd())
	rootCmd.AddCommand(c.newLockCmd())
	rootCmd.AddCommand(c.newValidateCmd())
	rootCmd.AddCommand(c.newUpdateCmd())
	rootCmd.AddCommand(c.newExplainCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// options reads the persistent flags. Positional args override the configured requirements.
func options(cmd *cobra.Command, specs []string) app.Options {
	configPath, _ := cmd.Flags().GetString("config")
	strategy, _ := cmd.Flags().GetString("strategy")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	return app.Options{
		ConfigPath:  configPath,
		Strategy:    strategy,
		Specs:       specs,
		MetricsFile: metricsFile,
		Verbose:     verbose,
		JSON:        logJSON,
	}
}

func addPinFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("unlock", nil, "Ignore the lockfile pins of these connectors")
	cmd.Flags().Bool("unlock-all", false, "Ignore every lockfile pin")
	cmd.Flags().Bool("no-lockfile", false, "Do not read the existing lockfile")
}

func pinOptions(cmd *cobra.Command, opts app.Options) app.Options {
	opts.Unlock, _ = cmd.Flags().GetStringSlice("unlock")
	opts.UnlockAll, _ = cmd.Flags().GetBool("unlock-all")
	opts.NoLockfile, _ = cmd.Flags().GetBool("no-lockfile")
	return opts
}
