package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/feedwatch/internal/alerting"
	"github.com/good-yellow-bee/feedwatch/internal/models"
	"github.com/good-yellow-bee/feedwatch/internal/storage"
)

var checkCmd = &cobra.Command{
	Use:   "check [items.json]",
	Short: "Run one matching pass over feed items and print the triggers",
	Long: `Check reads a JSON array of feed items from the given file (or stdin
when the argument is "-" or omitted), matches them against the alerts
defined in the seed file, and prints the resulting triggers as JSON.

Nothing is persisted and no notifications are sent; this is a dry run
for testing alert definitions.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	if seedFile == "" {
		return fmt.Errorf("--seed is required for check")
	}

	items, err := readFeedItems(args)
	if err != nil {
		return err
	}

	alerts, err := alerting.LoadSeedFile(seedFile)
	if err != nil {
		return fmt.Errorf("load seed file: %w", err)
	}

	ctx := context.Background()
	engine := alerting.NewEngine(storage.NewMemoryStorage(), nil)
	defer engine.Close()

	if _, err := alerting.Seed(ctx, engine, alerts); err != nil {
		return fmt.Errorf("seed alerts: %w", err)
	}
	engine.StartMonitoring()

	triggers := engine.CheckFeedItems(ctx, items)
	if triggers == nil {
		triggers = []*models.AlertTrigger{}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(triggers); err != nil {
		return fmt.Errorf("encode triggers: %w", err)
	}

	fmt.Fprintf(os.Stderr, "%d item(s), %d trigger(s)\n", len(items), len(triggers))
	return nil
}

func readFeedItems(args []string) ([]*models.FeedItem, error) {
	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("open items file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var items []*models.FeedItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("parse feed items: %w", err)
	}
	return items, nil
}
