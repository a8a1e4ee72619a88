package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/synapse/internal/adapters/config"
	"go.trai.ch/synapse/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [entries...]",
		Short: "Compile sources into the output directory",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Build(cmd.Context(), args, buildOptions(cmd))
		},
	}
	addCompileFlags(cmd)
	return cmd
}

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [entries...]",
		Short: "Compile sources and recompile on every change",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.RunWatch(cmd.Context(), args, buildOptions(cmd))
		},
	}
	addCompileFlags(cmd)
	return cmd
}

func addCompileFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "", "Module format: esnext, commonjs, amd, umd or systemjs")
	cmd.Flags().Bool("minify", false, "Minify emitted code")
	cmd.Flags().Bool("no-source-maps", false, "Do not emit source maps")
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass the compile cache")
	cmd.Flags().StringP("jobs", "j", "", "Maximum files compiled in parallel, or \"auto\"")
	cmd.Flags().String("out", "", "Output directory")
	cmd.Flags().StringP("output", "o", "auto", "Output mode: auto, pretty or json")
	cmd.Flags().BoolP("verbose", "v", false, "Print a line per compiled file")
}

// buildOptions reads the compile flags. Only flags the user set override the
// configuration file.
func buildOptions(cmd *cobra.Command) app.BuildOptions {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	outputMode, _ := flags.GetString("output")
	verbose, _ := flags.GetBool("verbose")
	noCache, _ := flags.GetBool("no-cache")

	var o config.Overrides
	o.NoCache = noCache
	if flags.Changed("format") {
		v, _ := flags.GetString("format")
		o.ModuleFormat = &v
	}
	if flags.Changed("minify") {
		v, _ := flags.GetBool("minify")
		o.Minify = &v
	}
	if flags.Changed("no-source-maps") {
		v, _ := flags.GetBool("no-source-maps")
		maps := !v
		o.SourceMaps = &maps
	}
	if flags.Changed("jobs") {
		v, _ := flags.GetString("jobs")
		o.Parallelism = &v
	}
	if flags.Changed("out") {
		v, _ := flags.GetString("out")
		o.OutputDir = &v
	}

	return app.BuildOptions{
		ConfigPath: configPath,
		Overrides:  o,
		OutputMode: outputMode,
		Verbose:    verbose,
	}
}
