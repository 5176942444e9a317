// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citewatch/internal/checker"
	"github.com/pdiddy/citewatch/internal/models"
	"github.com/pdiddy/citewatch/internal/notify"
	"github.com/pdiddy/citewatch/internal/refindex"
	"github.com/pdiddy/citewatch/internal/store"
	"github.com/pdiddy/citewatch/pkg/types"
)

var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Review and act on recorded retraction findings",
	Long: `Findings manages the results of check runs. Use subcommands to list
findings, mark them posted or dismissed after review, retry notification
text generation for findings stored without text, or export them.`,
}

// --- list subcommand ---

var findingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List findings, newest first",
	RunE:  runFindingsList,
}

func runFindingsList(cmd *cobra.Command, args []string) error {
	st, err := store.NewStore(types.StoreConfig{DataDir: dataDir(cmd)})
	if err != nil {
		return err
	}
	defer st.Close()

	status, _ := cmd.Flags().GetString("status")
	findings, err := st.ListFindings(context.Background(), types.FindingStatus(status))
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(findings)
	}

	if len(findings) == 0 {
		fmt.Println("No findings.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-5s  %-20s  %-9s  %-10s  %-20s  %s\n",
		"ID", "Article", "Severity", "Conf", "Status", "Found")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
	for _, f := range findings {
		article := f.Article
		if len(article) > 20 {
			article = article[:17] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-5d  %-20s  %-9s  %-10.2f  %-20s  %s\n",
			f.ID, article, f.Severity, f.Confidence, f.Status, f.FoundAt.Format("2006-01-02"))
	}
	fmt.Fprintf(os.Stdout, "\n%d finding(s)\n", len(findings))
	return nil
}

// --- post / dismiss subcommands ---

var findingsPostCmd = &cobra.Command{
	Use:   "post [id...]",
	Short: "Mark findings as posted after acting on them",
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionFindings(cmd, args, types.StatusPosted)
	},
}

var findingsDismissCmd = &cobra.Command{
	Use:   "dismiss [id...]",
	Short: "Dismiss findings that review judged to be false matches",
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionFindings(cmd, args, types.StatusDismissed)
	},
}

func transitionFindings(cmd *cobra.Command, args []string, status types.FindingStatus) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more finding IDs")
	}

	st, err := store.NewStore(types.StoreConfig{DataDir: dataDir(cmd)})
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid finding ID %q", arg)
		}
		if err := st.UpdateFindingStatus(ctx, id, status); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "finding %d -> %s\n", id, status)
	}
	return nil
}

// --- retry-notify subcommand ---

var findingsRetryNotifyCmd = &cobra.Command{
	Use:   "retry-notify",
	Short: "Generate notification text for findings stored without it",
	Long: `Retry-notify picks up findings whose notification generation failed
during a check run (status pending_notification), re-derives the verdict for
each underlying citation, generates the notification text, and moves the
finding to pending. Findings that fail again stay pending_notification.`,
	RunE: runFindingsRetryNotify,
}

func runFindingsRetryNotify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	modelsCfg := modelsConfigFromViper()
	notifyCfg := notifyConfigFromViper()
	if notifyCfg.APIKey == "" || notifyCfg.Model == "" {
		return fmt.Errorf("notification generation requires notify.model and an API key")
	}
	gen := notify.NewClaudeGenerator(notifyCfg)

	dir := dataDir(cmd)
	embedModel := models.NewOllamaEmbedder(modelsCfg.Embedder).ModelID()
	index, err := refindex.Load(dir, embedModel)
	if err != nil {
		return fmt.Errorf("loading reference snapshot: %w", err)
	}
	registry := models.NewRegistry(ctx, modelsCfg, os.Stderr)
	chk := checker.New(index, registry, checkConfigFromFlags(cmd))

	st, err := store.NewStore(types.StoreConfig{DataDir: dir})
	if err != nil {
		return err
	}
	defer st.Close()

	pending, err := st.ListFindings(ctx, types.StatusPendingNotification)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("No findings awaiting notification text.")
		return nil
	}

	failed := 0
	for _, f := range pending {
		citation, err := st.GetCitation(ctx, f.CitationID)
		if err != nil {
			fmt.Fprintf(os.Stdout, "failed  finding %d: %v\n", f.ID, err)
			failed++
			continue
		}
		verdict, err := chk.Check(ctx, citation)
		if err != nil || !verdict.IsRetracted {
			fmt.Fprintf(os.Stdout, "failed  finding %d: could not re-derive verdict\n", f.ID)
			failed++
			continue
		}
		text, err := gen.Generate(ctx, verdict, citation)
		if err != nil {
			fmt.Fprintf(os.Stdout, "failed  finding %d: %v\n", f.ID, err)
			failed++
			continue
		}
		if err := st.SetNotification(ctx, f.ID, text); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "notified finding %d (%s)\n", f.ID, f.Article)
	}

	if failed > 0 {
		return fmt.Errorf("%d finding(s) still awaiting notification text", failed)
	}
	return nil
}

// --- export subcommand ---

var findingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export findings as YAML",
	RunE:  runFindingsExport,
}

func runFindingsExport(cmd *cobra.Command, args []string) error {
	st, err := store.NewStore(types.StoreConfig{DataDir: dataDir(cmd)})
	if err != nil {
		return err
	}
	defer st.Close()

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()
		out = f
	}

	status, _ := cmd.Flags().GetString("status")
	return st.ExportFindingsYAML(context.Background(), out, types.FindingStatus(status))
}

func init() {
	findingsListCmd.Flags().String("status", "", "filter by status: pending, pending_notification, posted, dismissed")
	findingsListCmd.Flags().Bool("json", false, "output findings as JSON")

	findingsExportCmd.Flags().String("status", "", "filter by status for partial export")
	findingsExportCmd.Flags().String("output", "", "write export to a file instead of stdout")

	findingsRetryNotifyCmd.Flags().Float64("threshold", 0, "minimum cosine similarity for a fuzzy match (default 0.85)")
	findingsRetryNotifyCmd.Flags().Bool("fuzzy-fallback", false, "try similarity matching when a citation's DOI misses the catalog")

	findingsCmd.AddCommand(findingsListCmd)
	findingsCmd.AddCommand(findingsPostCmd)
	findingsCmd.AddCommand(findingsDismissCmd)
	findingsCmd.AddCommand(findingsRetryNotifyCmd)
	findingsCmd.AddCommand(findingsExportCmd)

	rootCmd.AddCommand(findingsCmd)
}
