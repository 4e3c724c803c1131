// ecosortctl runs the EcoSort classifier in-process against the configured
// database.
//
// Usage:
//
//	ecosortctl classify text "plastic water bottle"
//	ecosortctl classify image ./photo.jpg
//	ecosortctl tips hazardous
//	ecosortctl analytics --start 2024-09-01 --end 2024-09-30 -o json
//	ecosortctl reconcile
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ecosort/internal/app"
	"ecosort/internal/config"
	"ecosort/internal/logger"
)

var version = "dev"

type cli struct {
	outputFmt string
	dbPath    string
	verbose   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:   "ecosortctl",
		Short: "Classify waste and inspect EcoSort analytics",
		Long: `ecosortctl runs the EcoSort classifiers and analytics against the
database named by DB_PATH (or --db), using the same configuration as the server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&c.outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(c.classifyCmd())
	rootCmd.AddCommand(c.tipsCmd())
	rootCmd.AddCommand(c.compareCmd())
	rootCmd.AddCommand(c.analyticsCmd())
	rootCmd.AddCommand(c.reconcileCmd())
	rootCmd.AddCommand(c.keywordsCmd())
	rootCmd.AddCommand(c.historyCmd())
	return rootCmd
}

func (c *cli) openCore() (*app.Core, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}
	log := logger.Nop()
	if c.verbose {
		if log, err = logger.New(cfg.LogMode); err != nil {
			return nil, err
		}
		for _, w := range cfg.Warnings {
			log.Warn(w)
		}
	}
	return app.OpenCore(cfg, log, nil)
}
