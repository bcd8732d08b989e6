package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/motodash/cluster/internal/api"
	"github.com/motodash/cluster/internal/config"
	"github.com/motodash/cluster/internal/telemetry"
)

const defaultServerURL = "http://localhost:5000"

// resolveServerURL picks the flag, then display.serverUrl, then the default.
func resolveServerURL(flag string) string {
	if flag != "" {
		return flag
	}
	if u := config.GetDisplayConfig().ServerURL; u != "" {
		return u
	}
	return defaultServerURL
}

func newSnapshotCmd() *cobra.Command {
	var (
		server string
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print one telemetry record as JSON",
		Long: "Print one telemetry record as JSON. Without --remote the record is " +
			"generated locally; with it the running server is asked.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap("motodash-cli", os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			var rec telemetry.Record
			if remote {
				client := api.New(resolveServerURL(server), rt.Logger)
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()
				if rec, err = client.MotorcycleData(ctx); err != nil {
					return fmt.Errorf("fetching snapshot: %w", err)
				}
			} else {
				rec = telemetry.RandomSnapshot(rand.New(rand.NewSource(time.Now().UnixNano())), time.Now())
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "server base URL (default display.serverUrl or "+defaultServerURL+")")
	cmd.Flags().BoolVar(&remote, "remote", false, "ask the running server instead of generating locally")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newWatchCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live telemetry stream of a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap("motodash-cli", os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return watch(ctx, api.New(resolveServerURL(server), rt.Logger), cmd.OutOrStdout(), rt.Logger)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "server base URL (default display.serverUrl or "+defaultServerURL+")")
	return cmd
}

func watch(ctx context.Context, client *api.Client, out io.Writer, log *slog.Logger) error {
	if err := client.Healthcheck(ctx); err != nil {
		log.Warn("Server not healthy yet, will keep retrying", "error", err)
	}
	return client.Stream(ctx, func(r telemetry.Record) {
		fmt.Fprintln(out, formatRecord(r))
	})
}

// formatRecord is the one-line watch view of a record.
func formatRecord(r telemetry.Record) string {
	return fmt.Sprintf("%s  %3.0f km/h  %5.0f rpm  gear %d  %-6s fuel %3d%%  %5.1f kW  trip %.1f km",
		r.Timestamp.Format("15:04:05"), r.Speed, r.RPM, r.Gear, r.DrivingMode, r.FuelLevel, r.Power, r.TripDistance)
}
