// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citewatch/internal/models"
	"github.com/pdiddy/citewatch/internal/refresh"
	"github.com/pdiddy/citewatch/internal/schedule"
	"github.com/pdiddy/citewatch/internal/store"
	"github.com/pdiddy/citewatch/pkg/types"
)

const defaultUserAgent = "citewatch/0.1"

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the retraction reference snapshot",
	Long: `Refresh runs the monthly cadence: download the upstream retraction
database, embed each record's bibliographic text, and write a new reference
snapshot. On success every citation is reset to unchecked so the next check
runs re-evaluate it against the updated catalog.

A failed refresh leaves the previous snapshot and the check schedule
untouched.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().String("database-url", "", "upstream retraction database CSV export (default: Retraction Watch)")
	refreshCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 5m)")
	refreshCmd.Flags().Bool("verify-crossref", false, "verify reason-less records against CrossRef")
	refreshCmd.Flags().Bool("verify-pubmed", false, "verify reason-less records against PubMed")
	refreshCmd.Flags().Bool("keep-schedule", false, "do not reset citation check timestamps after a successful refresh")

	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg := refreshConfigFromFlags(cmd)

	embedderCfg := types.EmbedderConfig{
		BaseURL: viper.GetString("models.embedder.base_url"),
		Model:   viper.GetString("models.embedder.model"),
		Timeout: viper.GetDuration("models.embedder.timeout"),
	}
	embedder := models.NewOllamaEmbedder(embedderCfg)
	if err := embedder.Probe(ctx); err != nil {
		return fmt.Errorf("embedding endpoint unavailable: %w", err)
	}

	dir := dataDir(cmd)
	summary, err := refresh.Run(ctx, cfg, embedder, dir, os.Stdout)
	if err != nil {
		return err
	}

	if keep, _ := cmd.Flags().GetBool("keep-schedule"); keep {
		return nil
	}

	st, err := store.NewStore(types.StoreConfig{DataDir: dir})
	if err != nil {
		return err
	}
	defer st.Close()

	sched := schedule.New(st, types.CheckConfig{})
	reset, err := sched.MarkReferenceRefreshed(ctx)
	if err != nil {
		return fmt.Errorf("resetting check schedule: %w", err)
	}
	fmt.Fprintf(os.Stdout, "reset %d citation(s) for re-checking against %d catalog record(s)\n",
		reset, summary.Embedded)
	return nil
}

func refreshConfigFromFlags(cmd *cobra.Command) types.RefreshConfig {
	cfg := types.RefreshConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration("refresh.timeout"),
			UserAgent: defaultUserAgent,
		},
		DatabaseURL:        viper.GetString("refresh.database_url"),
		VerifyWithCrossRef: viper.GetBool("refresh.verify_with_crossref"),
		CrossRefEmail:      secretDefault("crossref-email", viper.GetString("refresh.crossref_email")),
		VerifyWithPubMed:   viper.GetBool("refresh.verify_with_pubmed"),
		PubMedEmail:        viper.GetString("refresh.pubmed_email"),
	}

	if v, _ := cmd.Flags().GetString("database-url"); v != "" {
		cfg.DatabaseURL = v
	}
	if v, _ := cmd.Flags().GetDuration("timeout"); v > 0 {
		cfg.Timeout = v
	}
	if v, _ := cmd.Flags().GetBool("verify-crossref"); v {
		cfg.VerifyWithCrossRef = true
	}
	if v, _ := cmd.Flags().GetBool("verify-pubmed"); v {
		cfg.VerifyWithPubMed = true
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return cfg
}
