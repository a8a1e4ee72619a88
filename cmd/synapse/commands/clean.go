package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/synapse/internal/adapters/config"
	"go.trai.ch/synapse/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the compile cache and the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cacheOnly, _ := cmd.Flags().GetBool("cache-only")
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			sources, _ := cmd.Flags().GetStringSlice("source")

			cfg, err := c.app.LoadConfig(configPath, config.Overrides{})
			if err != nil {
				return err
			}
			return c.app.Clean(cmd.Context(), cfg, app.CleanOptions{
				CacheOnly: cacheOnly,
				OlderThan: olderThan,
				Sources:   sources,
			})
		},
	}

	cmd.Flags().Bool("cache-only", false, "Remove only the cache and keep compiled output")
	cmd.Flags().Duration("older-than", 0, "Remove only cache entries older than this age (e.g. 720h)")
	cmd.Flags().StringSlice("source", nil, "Remove only cache entries compiled from these source files")

	return cmd
}
