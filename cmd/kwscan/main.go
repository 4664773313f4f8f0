// Package main provides a CLI for one-off register lookups, useful for
// testing the scraper without running the HTTP service.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/czlonkowski/kw-scrapper/internal/config"
	"github.com/czlonkowski/kw-scrapper/internal/models"
	"github.com/czlonkowski/kw-scrapper/internal/scraper"
)

var (
	flagKod    string
	flagNumer  string
	flagCyfra  string
	flagOutput string
	flagDebug  bool
	flagRaw    bool
)

var rootCmd = &cobra.Command{
	Use:   "kwscan",
	Short: "Look up one land-and-mortgage register record",
	Long: `kwscan drives a headless browser against the public register portal,
extracts all five department sections, and prints the structured result as JSON.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&flagKod, "kod", "", "department code, e.g. WA1M")
	rootCmd.Flags().StringVar(&flagNumer, "numer", "", "register number, e.g. 00533284")
	rootCmd.Flags().StringVar(&flagCyfra, "cyfra", "", "check digit, e.g. 3")
	rootCmd.Flags().StringVar(&flagOutput, "output", "", "write the result to this file instead of stdout only")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "save checkpoint screenshots")
	rootCmd.Flags().BoolVar(&flagRaw, "raw", false, "keep raw section markup instead of cleaned output")

	rootCmd.MarkFlagRequired("kod")
	rootCmd.MarkFlagRequired("numer")
	rootCmd.MarkFlagRequired("cyfra")
}

func run(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	key := models.LookupKey{
		DepartmentCode: flagKod,
		RegisterNumber: flagNumer,
		CheckDigit:     flagCyfra,
	}
	if err := scraper.VerifyCheckDigit(key); err != nil {
		logger.Warn("check digit looks wrong", "error", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	s := scraper.New(cfg, logger)

	logger.Info("starting lookup", "kw", key.Identifier())
	result, err := s.Lookup(ctx, key, scraper.Options{
		CleanHTML: !flagRaw,
		Debug:     flagDebug,
	})
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))

	if flagOutput != "" {
		if err := os.WriteFile(flagOutput, out, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", flagOutput, err)
		}
		logger.Info("result saved", "path", flagOutput)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
