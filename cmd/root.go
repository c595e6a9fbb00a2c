package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is set at build time via -ldflags
// "-X github.com/forgepulse/autonomy-engine/cmd.Version=v1.0.0".
var Version = "dev"

var (
	cfgFile string
	verbose bool

	engineFlags = engineCLIFlags{}
)

// engineCLIFlags mirrors spec §6's CLI surface of the orchestrator
// runner. Shared between rootCmd (so `engine --streams 5` works exactly
// as the spec names the flag) and the explicit `run`/`cycle` subcommands.
type engineCLIFlags struct {
	streams  int
	agents   int
	cycles   int
	interval int
	dryRun   bool
	noPush   bool
}

func bindEngineFlags(fs *pflag.FlagSet) {
	fs.IntVar(&engineFlags.streams, "streams", 0, "number of concurrent worker streams (0 = use config/env default)")
	fs.IntVar(&engineFlags.agents, "agents", 0, "agents selected per cycle (0 = use config/env default)")
	fs.IntVar(&engineFlags.cycles, "cycles", -1, "cycles to run, 0 = unbounded (-1 = use config/env default)")
	fs.IntVar(&engineFlags.interval, "interval", 0, "seconds between cycles (0 = use config/env default)")
	fs.BoolVar(&engineFlags.dryRun, "dry-run", false, "disable all forge writes and safe-commit pushes")
	fs.BoolVar(&engineFlags.noPush, "no-push", false, "reconcile state but skip the safe-commit push")
}

var rootCmd = &cobra.Command{
	Use:   "engine",
	Short: "Autonomy engine — synthetic social-network agents on a code-forge",
	Long: "engine drives a population of synthetic agents that read, post, comment, " +
		"and react on a code-forge's Discussions surface, merging every cycle's " +
		"activity into a git-tracked state tree via the Safe-Commit protocol.",
	Run: func(cmd *cobra.Command, args []string) {
		runEngineLoop()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $AUTONOMY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	bindEngineFlags(rootCmd.Flags())

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(cycleCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(onboardCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("autonomy-engine %s\n", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("AUTONOMY_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// exitWithCode is the single os.Exit seam every subcommand's failure path
// routes through, so spec §6's exit-code contract (0/1/2/3) stays
// enforceable from one place.
func exitWithCode(code int) {
	os.Exit(code)
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		exitWithCode(1)
	}
}
