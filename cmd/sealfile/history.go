package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/sealfile/internal/codec"
	"github.com/TheMichaelB/sealfile/internal/config"
	"github.com/TheMichaelB/sealfile/internal/state"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent encryptions",
	Long: `History lists recorded encryption attempts, newest first.

Recording is enabled with history.backend set to json or sqlite.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyLimit int

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20,
		"Maximum number of entries (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.History.Backend == config.HistoryNone {
		if jsonOutput {
			printJSON(map[string]interface{}{"records": []*state.Record{}})
		} else {
			printWarning("History is disabled (history.backend = none)")
		}
		return nil
	}

	store, err := state.Open(cfg.History, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(historyLimit)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"records": records})
		return nil
	}

	if len(records) == 0 {
		printInfo("No encryptions recorded")
		return nil
	}

	for _, r := range records {
		when := r.StartedAt.Local().Format(time.DateTime)
		if r.Outcome == state.OutcomeSuccess {
			fmt.Printf("%s  %s  %s (%s) -> %s  %s\n",
				when, color.GreenString("ok  "), r.FileName, codec.SizeString(r.FileSize),
				r.Location, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Printf("%s  %s  %s (%s)  %s: %s\n",
				when, color.RedString("fail"), r.FileName, codec.SizeString(r.FileSize),
				r.ErrorCode, r.Error)
		}
	}

	return nil
}
