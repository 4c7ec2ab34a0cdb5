package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cardsync/internal/api"
	"cardsync/internal/assignments"
	"cardsync/internal/config"
	"cardsync/internal/daemonctl"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the cardsync daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), ctx.configValue(), exe, daemonLaunchOptions(ctx), 10*time.Second)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the cardsync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cmd.Context(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, resolver, and assignment status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			status, running := daemonctl.StatusSnapshot(cmd.Context(), cfg)
			if statusJSON {
				return writeJSON(cmd, status)
			}
			stdout := cmd.OutOrStdout()
			renderStatus(cmd.Context(), stdout, cfg, status, running)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the daemon status payload as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderStatus(ctx context.Context, out io.Writer, cfg *config.Config, status api.DaemonStatus, running bool) {
	colorize := shouldColorize(out)
	section := func(title string) {
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(out, line)
		}
	}
	line := func(label string, kind statusKind, detail string) {
		fmt.Fprintln(out, renderStatusLine(label, kind, detail, colorize))
	}

	section("System Status")
	if running {
		line("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID))
	} else {
		line("Daemon", statusWarn, "Not running (run `cardsync start`)")
	}
	if baseURL, err := cfg.CardServerBaseURL(); err == nil {
		line("Card Server", statusInfo, baseURL)
	} else {
		line("Card Server", statusError, err.Error())
	}
	storeDetail := cfg.Store.Backend
	if cfg.Store.Backend == "sqlite" {
		storeDetail = fmt.Sprintf("sqlite (%s)", cfg.DatabasePath())
	}
	line("Store", statusInfo, storeDetail)
	if cfg.Scanner.AgentURL != "" {
		line("NFC Agent", statusOK, cfg.Scanner.AgentURL)
	} else {
		line("NFC Agent", statusInfo, "Disabled (scans via API only)")
	}
	if cfg.Notifications.NtfyTopic != "" {
		line("Notifications", statusOK, "Configured")
	} else {
		line("Notifications", statusWarn, "Not configured")
	}
	if running {
		line("Staging", statusInfo, fmt.Sprintf("%s (%s free)", status.StagingDir, humanBytes(int64(status.StagingFreeBytes))))
		line("Scan Queue", statusInfo, fmt.Sprintf("%d/%d", status.QueueLength, status.QueueCapacity))
	}
	fmt.Fprintln(out)

	if running {
		section("Resolver")
		res := status.Resolver
		line("State", statusInfo, res.State)
		if res.TagID != "" {
			detail := res.TagID
			if res.CardType != "" {
				detail += " (" + res.CardType + ")"
			}
			if res.TrackCount > 0 {
				detail += fmt.Sprintf(" track %d/%d", res.CurrentTrack, res.TrackCount)
			}
			line("Current Tag", statusInfo, detail)
		}
		if res.LastTagID != "" {
			kind := statusOK
			if res.LastError != "" {
				kind = statusError
			}
			detail := fmt.Sprintf("%s %s", res.LastTagID, res.LastOutcome)
			if res.LastError != "" {
				detail += ": " + res.LastError
			}
			line("Last Result", kind, detail)
		}
		line("Totals", statusInfo, fmt.Sprintf("%d resolved, %d failed", res.Resolved, res.Failed))
		fmt.Fprintln(out)
	}

	section("Assignments")
	counts, err := assignmentCounts(ctx, cfg, running)
	if err != nil {
		line("Store", statusError, err.Error())
		return
	}
	if len(counts) == 0 {
		fmt.Fprintln(out, "No assignments stored")
		return
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, []string{kind, strconv.Itoa(counts[kind])})
	}
	fmt.Fprintln(out, renderTable([]string{"Kind", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func assignmentCounts(ctx context.Context, cfg *config.Config, running bool) (map[string]int, error) {
	var list []api.Assignment
	if running {
		client, err := daemonctl.Dialer(cfg)()
		if err != nil {
			return nil, err
		}
		if list, err = client.Assignments(ctx); err != nil {
			return nil, err
		}
	} else {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		store, err := assignments.Open(queryCtx, cfg)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		stored, err := store.List(queryCtx)
		if err != nil {
			return nil, err
		}
		list = api.FromAssignments(stored)
	}
	counts := make(map[string]int)
	for _, item := range list {
		counts[item.Kind]++
	}
	return counts, nil
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{ConfigPath: ctx.configFlagValue()}
	if ctx.logLevelFlag != nil {
		opts.LogLevel = *ctx.logLevelFlag
	}
	return opts
}

func humanBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div := int64(unit)
	exp := 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(v) / float64(div)
	return fmt.Sprintf("%.1f %ciB", value, "KMGTPEZY"[exp])
}
