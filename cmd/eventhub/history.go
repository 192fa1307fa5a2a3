package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/history"
)

var (
	historyDB     string
	historyHash   uint64
	historyMatch  map[string]string
	historySince  time.Duration
	historyBefore time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect a SQLite event history database",
	Long: `Inspect the fingerprints recorded for dispatched events that carry a mask.

The database defaults to eventhub.history_path from the configuration file.`,
}

var historyCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count records with a fingerprint",
	Long: `Count records with a fingerprint, given directly with --hash or computed
from masked key/value pairs with --match. Values are compared by their
printed form, so --match count=2 matches both 2 and "2".

Examples:
  eventhub history count --db history.db --hash 1234567890
  eventhub history count --db history.db --match action=view --since 24h`,
	RunE: runHistoryCount,
}

var historySummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show record counts per event type and source",
	RunE:  runHistorySummary,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records older than a duration",
	RunE:  runHistoryPrune,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyDB, "db", "", "history database path")

	historyCountCmd.Flags().Uint64Var(&historyHash, "hash", 0, "fingerprint to count")
	historyCountCmd.Flags().StringToStringVar(&historyMatch, "match", nil, "masked key=value pairs to fingerprint")
	historyCountCmd.Flags().DurationVar(&historySince, "since", 0, "only count records newer than this")

	historyPruneCmd.Flags().DurationVar(&historyBefore, "older-than", 30*24*time.Hour, "delete records older than this")

	historyCmd.AddCommand(historyCountCmd, historySummaryCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.SQLiteRecorder, error) {
	path := historyDB
	if path == "" {
		settings, err := loadSettings()
		if err != nil {
			return nil, err
		}
		path = settings.HistoryPath
	}
	if path == "" {
		return nil, errors.New("no history database: pass --db or set eventhub.history_path")
	}
	return history.NewSQLiteRecorder(path)
}

// matchHash fingerprints the --match pairs the way the hub fingerprints
// event data.
func matchHash(pairs map[string]string) uint64 {
	data := make(map[string]any, len(pairs))
	mask := make([]string, 0, len(pairs))
	for k, v := range pairs {
		data[k] = v
		mask = append(mask, k)
	}
	return event.FingerprintData(data, mask)
}

func runHistoryCount(cmd *cobra.Command, _ []string) error {
	hash := historyHash
	if len(historyMatch) > 0 {
		hash = matchHash(historyMatch)
	}
	if hash == 0 {
		return errors.New("pass --hash or --match")
	}

	rec, err := openHistory()
	if err != nil {
		return err
	}
	defer rec.Close()

	var from time.Time
	if historySince > 0 {
		from = time.Now().Add(-historySince)
	}
	n, err := rec.Count(cmd.Context(), hash, from, time.Time{})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d\n", n)
	return nil
}

func runHistorySummary(cmd *cobra.Command, _ []string) error {
	rec, err := openHistory()
	if err != nil {
		return err
	}
	defer rec.Close()

	counts, err := rec.Summary(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tSOURCE\tCOUNT")
	for _, tc := range counts {
		fmt.Fprintf(w, "%s\t%s\t%d\n", tc.Type, tc.Source, tc.Count)
	}
	return w.Flush()
}

func runHistoryPrune(cmd *cobra.Command, _ []string) error {
	rec, err := openHistory()
	if err != nil {
		return err
	}
	defer rec.Close()

	removed, err := rec.Prune(cmd.Context(), time.Now().Add(-historyBefore))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d records\n", removed)
	return nil
}
