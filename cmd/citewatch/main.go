// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the citewatch CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citewatch/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, otherwise the secret value
// for key if one was loaded.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the citewatch CLI.
var rootCmd = &cobra.Command{
	Use:   "citewatch",
	Short: "Monitor encyclopedia citations for retracted works",
	Long: `citewatch tracks citations in encyclopedia articles and checks them
against a catalog of retracted scholarly works. Each maintenance cadence is
a subcommand: refresh rebuilds the retraction reference snapshot, import
scans articles for new citations, and check runs the retraction checker
over stale citations and records findings.

Findings are reviewed and acted on through the findings subcommand.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./citewatch.yaml or ~/.config/citewatch/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "data", "base directory for citations.db and reference.db")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("citewatch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "citewatch"))
		}
	}

	viper.SetEnvPrefix("CITEWATCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// dataDir resolves the base data directory from the flag, falling back
// to the config file.
func dataDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("data-dir")
	if dir == "" || dir == "data" {
		if v := viper.GetString("store.data_dir"); v != "" {
			return v
		}
	}
	if dir == "" {
		dir = "data"
	}
	return dir
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
