package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgepulse/autonomy-engine/internal/runner"
)

func cycleCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "cycle",
		Short: "Run exactly one orchestrator cycle and exit",
		Run: func(cmd *cobra.Command, args []string) {
			runOneCycle()
		},
	}
	bindEngineFlags(c.Flags())
	return c
}

// runOneCycle is for cron-driven or manual single-pass invocation
// (spec §4.11's cadence is ordinarily owned by `run`'s Continuous Runner,
// but an operator or an external scheduler may prefer to drive the
// interval itself).
func runOneCycle() {
	eng := buildEngineOrExit()
	defer eng.shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	preflightCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := eng.runner.CheckStartup(preflightCtx, eng.cfg.HasAnyProvider(), "")
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup:", err)
		if errors.Is(err, runner.ErrAllProvidersUnavailable) {
			exitWithCode(2)
		} else {
			exitWithCode(1)
		}
		return
	}

	if err := eng.runner.RunOnce(ctx, time.Now().UnixNano()); err != nil {
		fmt.Fprintln(os.Stderr, "cycle:", err)
		notifyFatal(eng.notifier, "cycle failed", err)
		exitWithCode(1)
	}
}
