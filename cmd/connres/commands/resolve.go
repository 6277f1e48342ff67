package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [connector@range...]",
		Short: "Resolve requirements and print the selected versions",
		Long: "Resolve the requirements of connres.yaml, or the ones given as arguments, " +
			"and print one connector@version per line. The lockfile seeds the search but is not written.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.app.Resolve(cmd.Context(), pinOptions(cmd, options(cmd, args)))
			return err
		},
	}
	addPinFlags(cmd)
	return cmd
}

func (c *CLI) newLockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock [connector@range...]",
		Short: "Resolve requirements and write the lockfile",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.app.Lock(cmd.Context(), pinOptions(cmd, options(cmd, args)))
			return err
		},
	}
	addPinFlags(cmd)
	return cmd
}

func (c *CLI) newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [connector@range...]",
		Short: "Explain why requirements cannot be resolved",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.app.Explain(cmd.Context(), options(cmd, args))
			return err
		},
	}
}
