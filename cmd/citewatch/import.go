// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citewatch/internal/ingest"
	"github.com/pdiddy/citewatch/internal/store"
	"github.com/pdiddy/citewatch/pkg/types"
)

var importCmd = &cobra.Command{
	Use:   "import [articles...]",
	Short: "Import citations from encyclopedia articles",
	Long: `Import runs the weekly cadence: fetch the current wikitext of each
monitored article, extract its citation templates, and store them. New
citations enter the store unchecked, so the next check run picks them up
first; re-imported citations keep their check timestamp.

Articles can be given as arguments or configured under ingest.articles.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("language", "", "encyclopedia language code (default en)")
	importCmd.Flags().Duration("delay", 0, "delay between consecutive API requests (default 1s)")
	importCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 30s)")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := types.IngestConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration("ingest.timeout"),
			UserAgent: defaultUserAgent,
		},
		Language:     viper.GetString("ingest.language"),
		Articles:     viper.GetStringSlice("ingest.articles"),
		RequestDelay: viper.GetDuration("ingest.request_delay"),
	}
	if len(args) > 0 {
		cfg.Articles = args
	}
	if v, _ := cmd.Flags().GetString("language"); v != "" {
		cfg.Language = v
	}
	if v, _ := cmd.Flags().GetDuration("delay"); v > 0 {
		cfg.RequestDelay = v
	}
	if v, _ := cmd.Flags().GetDuration("timeout"); v > 0 {
		cfg.Timeout = v
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	st, err := store.NewStore(types.StoreConfig{DataDir: dataDir(cmd)})
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := ingest.Run(context.Background(), cfg, st, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d article(s) failed import", summary.Failed)
	}
	return nil
}
