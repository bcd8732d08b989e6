package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/motodash/cluster/internal/config"
	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/storage"
	"github.com/motodash/cluster/internal/storage/factory"
)

// TripExport is the document written by trips export.
type TripExport struct {
	UserID     string       `json:"userId"`
	ExportedAt time.Time    `json:"exportedAt"`
	Trips      []model.Trip `json:"trips"`
}

func newTripsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trips",
		Short: "Work with recorded trips",
	}
	cmd.AddCommand(newTripsExportCmd())
	return cmd
}

func newTripsExportCmd() *cobra.Command {
	var (
		out   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "export <userId>",
		Short: "Write a user's completed trips to a gzipped JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap("motodash-cli", os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			store, err := factory.Open(config.GetStorageConfig(), rt.SlogManager)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			userID := args[0]
			if out == "" {
				out = fmt.Sprintf("trips_%s_%s.json.gz", userID, time.Now().Format("20060102_150405"))
			}
			start := time.Now()
			n, err := exportTrips(store, userID, limit, out, time.Now())
			if err != nil {
				return err
			}
			rt.Logger.Info("Exported trips", "userId", userID, "count", n, "file", out, "took", time.Since(start))
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", n, "trips to", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default trips_<userId>_<time>.json.gz)")
	cmd.Flags().IntVar(&limit, "limit", storage.DefaultHistoryLimit, "maximum number of trips")
	return cmd
}

// exportTrips writes the trip history of userID to path and returns how many
// trips were written.
func exportTrips(store storage.Store, userID string, limit int, path string, now time.Time) (int, error) {
	trips, err := store.TripHistory(userID, storage.HistoryLimit(limit))
	if err != nil {
		return 0, fmt.Errorf("error getting trips: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("error creating file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := writeTripExport(f, TripExport{UserID: userID, ExportedAt: now, Trips: trips}); err != nil {
		return 0, err
	}
	return len(trips), f.Close()
}

func writeTripExport(w io.Writer, doc TripExport) error {
	if doc.Trips == nil {
		doc.Trips = []model.Trip{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error marshalling trips: %w", err)
	}
	gzWriter := gzip.NewWriter(w)
	if _, err := gzWriter.Write(data); err != nil {
		return fmt.Errorf("error writing to gzip: %w", err)
	}
	return gzWriter.Close()
}
