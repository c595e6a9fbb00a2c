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

	"github.com/forgepulse/autonomy-engine/internal/notify"
	"github.com/forgepulse/autonomy-engine/internal/runner"
)

func runCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Run the continuous orchestrator loop until stopped",
		Run: func(cmd *cobra.Command, args []string) {
			runEngineLoop()
		},
	}
	bindEngineFlags(c.Flags())
	return c
}

// runEngineLoop implements the `run` entry point and the root command's
// default action: build every C1–C11 component, run spec §6's startup
// preflight, then block in the Continuous Runner (C11) until a stop
// signal, the stop-file, or --cycles is exhausted.
func runEngineLoop() {
	eng := buildEngineOrExit()
	defer eng.shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	probeChannel := ""
	for slug := range mustSnapshotChannels(eng) {
		probeChannel = slug
		break
	}

	preflightCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := eng.runner.CheckStartup(preflightCtx, eng.cfg.HasAnyProvider(), probeChannel)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup:", err)
		switch {
		case errors.Is(err, runner.ErrAllProvidersUnavailable):
			notifyFatal(eng.notifier, "all LLM backends unavailable at startup", err)
			exitWithCode(2)
		case errors.Is(err, runner.ErrForgeUnreachable):
			notifyFatal(eng.notifier, "forge unreachable at startup", err)
			exitWithCode(3)
		default:
			exitWithCode(1)
		}
		return
	}

	if err := eng.runner.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "runner:", err)
		notifyFatal(eng.notifier, "continuous runner exited with an error", err)
		exitWithCode(1)
	}
}

// mustSnapshotChannels loads the current channel set so CheckStartup's
// forge reachability probe has a real channel slug to query; an empty or
// unreadable state tree just means no probe runs (CheckStartup treats an
// empty probeChannel as "skip the reachability check").
func mustSnapshotChannels(eng *builtEngine) map[string]struct{} {
	out := map[string]struct{}{}
	snap, err := eng.store.LoadSnapshot()
	if err != nil {
		return out
	}
	for slug := range snap.Channels.Channels {
		out[slug] = struct{}{}
	}
	return out
}

func notifyFatal(n *notify.Notifier, title string, err error) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sendErr := n.Send(ctx, notify.Alert{Level: notify.LevelError, Title: title, Message: err.Error(), Source: "startup"})
	if sendErr != nil && sendErr != notify.ErrNotConfigured {
		fmt.Fprintln(os.Stderr, "notify:", sendErr)
	}
}
