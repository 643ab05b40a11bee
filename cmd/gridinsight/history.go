package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/gridinsight/internal/database"
)

var (
	historyLimit   int
	historyRecords bool
)

var historyCmd = &cobra.Command{
	Use:   "history [ingestion-id]",
	Short: "List archived ingestions",
	Long: `Displays the ingestion archive, newest first. Pass an ingestion ID to show
that ingestion, and --records to print its readings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum ingestions to list (0 = all)")
	historyCmd.Flags().BoolVar(&historyRecords, "records", false, "Print the readings of the given ingestion")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if len(args) == 1 {
		return showIngestion(ctx, db, args[0])
	}

	ingestions, err := db.ListIngestions(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("listing ingestions: %w", err)
	}
	if len(ingestions) == 0 {
		fmt.Printf("No ingestions archived in %s\n", db.Path())
		return nil
	}

	fmt.Printf("%-36s  %-16s  %8s  %12s  %10s\n", "ID", "Ingested", "Rows", "kWh", "Cost")
	fmt.Println("--------------------------------------------------------------------------------------------")
	for _, in := range ingestions {
		fmt.Printf("%-36s  %-16s  %8s  %12.2f  %10.2f\n",
			in.ID, humanize.Time(in.IngestedAt), humanize.Comma(int64(in.Rows)), in.TotalUsage, in.TotalCost)
	}
	return nil
}

func showIngestion(ctx context.Context, db *database.DB, id string) error {
	in, err := db.GetIngestion(ctx, id)
	if err != nil {
		return fmt.Errorf("getting ingestion: %w", err)
	}
	if in == nil {
		return fmt.Errorf("ingestion %s not found", id)
	}

	fmt.Printf("Ingestion %s\n", in.ID)
	fmt.Printf("Ingested: %s (%s)\n", in.IngestedAt.Format(time.DateTime), humanize.Time(in.IngestedAt))
	fmt.Printf("Readings: %s\n", humanize.Comma(int64(in.Rows)))
	if !in.First.IsZero() {
		fmt.Printf("Covers:   %s to %s\n", in.First.Format(time.DateTime), in.Last.Format(time.DateTime))
	}
	fmt.Printf("Total:    %s, %s\n", kwh(in.TotalUsage), dollars(in.TotalCost))

	if !historyRecords {
		return nil
	}

	records, err := db.ListRecords(ctx, id)
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}

	fmt.Println("----------------------------------------")
	fmt.Printf("%-19s  %10s  %10s\n", "Start", "kWh", "Cost")
	fmt.Println("----------------------------------------")
	for _, r := range records {
		fmt.Printf("%-19s  %10.2f  %10.2f\n", r.TimestampString(), r.KWh, r.Cost)
	}
	return nil
}
