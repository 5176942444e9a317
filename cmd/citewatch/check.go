// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citewatch/internal/checker"
	"github.com/pdiddy/citewatch/internal/models"
	"github.com/pdiddy/citewatch/internal/notify"
	"github.com/pdiddy/citewatch/internal/refindex"
	"github.com/pdiddy/citewatch/internal/schedule"
	"github.com/pdiddy/citewatch/internal/store"
	"github.com/pdiddy/citewatch/internal/synth"
	"github.com/pdiddy/citewatch/pkg/types"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check stale citations against the retraction catalog",
	Long: `Check runs the daily cadence: select the stalest citations (never-checked
first), check each against the retraction reference snapshot, record findings
for matches, and stamp every processed citation as checked.

Citations with a DOI are matched exactly against the catalog; the rest are
matched by embedding similarity. Unavailable inference capabilities degrade
the affected citations to a no-verdict result rather than failing the run.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Int("batch-size", 0, "maximum citations per run (default 500)")
	checkCmd.Flags().Duration("recheck-interval", 0, "how long a checked citation stays fresh (default 720h)")
	checkCmd.Flags().Float64("threshold", 0, "minimum cosine similarity for a fuzzy match (default 0.85)")
	checkCmd.Flags().Bool("fuzzy-fallback", false, "try similarity matching when a citation's DOI misses the catalog")
	checkCmd.Flags().Bool("no-notify", false, "skip notification text generation; findings are stored for later")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	modelsCfg := modelsConfigFromViper()
	registry := models.NewRegistry(ctx, modelsCfg, os.Stderr)

	dir := dataDir(cmd)
	// Validate against the model the embedder will actually use, not the
	// raw config value: an unset config falls back to the embedder's
	// default model.
	embedModel := models.NewOllamaEmbedder(modelsCfg.Embedder).ModelID()
	index, err := refindex.Load(dir, embedModel)
	if err != nil {
		return fmt.Errorf("loading reference snapshot (run `citewatch refresh` first): %w", err)
	}
	fmt.Fprintf(os.Stderr, "Reference snapshot: %d work(s), model %s, built %s\n",
		index.Len(), index.Model(), index.BuiltAt().Format("2006-01-02"))

	st, err := store.NewStore(types.StoreConfig{DataDir: dir})
	if err != nil {
		return err
	}
	defer st.Close()

	checkCfg := checkConfigFromFlags(cmd)
	sched := schedule.New(st, checkCfg)
	chk := checker.New(index, registry, checkCfg)

	var gen synth.NotificationGenerator
	noNotify, _ := cmd.Flags().GetBool("no-notify")
	notifyCfg := notifyConfigFromViper()
	if !noNotify && notifyCfg.APIKey != "" && notifyCfg.Model != "" {
		gen = notify.NewClaudeGenerator(notifyCfg)
	}

	orchestrator := synth.New(st, sched, chk, gen)
	summary, err := orchestrator.Run(ctx, os.Stdout)
	if err != nil {
		return err
	}
	// Per-citation failures are already counted, logged, and marked
	// checked; only persistence failures escalate through Run's error.
	if summary.Errors > 0 {
		fmt.Fprintf(os.Stderr, "%d citation(s) failed checking and will be retried next interval\n", summary.Errors)
	}
	return nil
}

func checkConfigFromFlags(cmd *cobra.Command) types.CheckConfig {
	cfg := types.CheckConfig{
		SimilarityThreshold:           viper.GetFloat64("check.similarity_threshold"),
		FuzzyFallbackOnIdentifierMiss: viper.GetBool("check.fuzzy_fallback_on_identifier_miss"),
		RecheckInterval:               viper.GetDuration("check.recheck_interval"),
		BatchSize:                     viper.GetInt("check.batch_size"),
	}

	if v, _ := cmd.Flags().GetFloat64("threshold"); v > 0 {
		cfg.SimilarityThreshold = v
	}
	if v, _ := cmd.Flags().GetBool("fuzzy-fallback"); v {
		cfg.FuzzyFallbackOnIdentifierMiss = true
	}
	if v, _ := cmd.Flags().GetDuration("recheck-interval"); v > 0 {
		cfg.RecheckInterval = v
	}
	if v, _ := cmd.Flags().GetInt("batch-size"); v > 0 {
		cfg.BatchSize = v
	}
	return cfg
}

func modelsConfigFromViper() types.ModelsConfig {
	return types.ModelsConfig{
		Extractor: types.AIConfig{
			Model:      viper.GetString("models.extractor.model"),
			APIKey:     secretDefault("anthropic-api-key", viper.GetString("models.extractor.api_key")),
			MaxRetries: viper.GetInt("models.extractor.max_retries"),
		},
		Classifier: types.AIConfig{
			Model:      viper.GetString("models.classifier.model"),
			APIKey:     secretDefault("anthropic-api-key", viper.GetString("models.classifier.api_key")),
			MaxRetries: viper.GetInt("models.classifier.max_retries"),
		},
		Embedder: types.EmbedderConfig{
			BaseURL: viper.GetString("models.embedder.base_url"),
			Model:   viper.GetString("models.embedder.model"),
			Timeout: viper.GetDuration("models.embedder.timeout"),
		},
	}
}

func notifyConfigFromViper() types.NotifyConfig {
	cfg := types.NotifyConfig{
		AIConfig: types.AIConfig{
			Model:      viper.GetString("notify.model"),
			APIKey:     secretDefault("anthropic-api-key", viper.GetString("notify.api_key")),
			MaxRetries: viper.GetInt("notify.max_retries"),
		},
		Timeout: viper.GetDuration("notify.timeout"),
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	return cfg
}
