package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lunabot/internal/catalog"
	"lunabot/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Verify credentials, tunables and the card catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigCheck(cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, err := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	return cmd
}

// runConfigCheck prints one line per check and returns the load error, if
// any, so the process exits non-zero.
func runConfigCheck(w io.Writer) error {
	fmt.Fprintf(w, "lunabot config check v%s\n\n", version)

	src := "environment only"
	if configPath != "" {
		src = configPath
	}
	printCheck(w, "PASS", "Config source", src)

	cfg, err := config.Load(configPath)
	if err != nil {
		printCheck(w, "FAIL", "Configuration", err.Error())
		return errors.New("config check failed")
	}
	printCheck(w, "PASS", "Credentials", "telegram token, voiceflow key and version set")
	printCheck(w, "PASS", "Tunables", fmt.Sprintf("chunk=%d concurrency=%d", cfg.Telegram.ChunkSize, cfg.General.MaxConcurrentMessages))
	printCheck(w, "PASS", "Engagement", fmt.Sprintf("reminder=%s check-in=%s gift=%s",
		cfg.Engagement.InactivityDelay(), cfg.Engagement.CheckInDelay(), cfg.Engagement.GiftDelay()))

	cards, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		printCheck(w, "FAIL", "Card catalog", err.Error())
		return errors.New("config check failed")
	}
	printCheck(w, "PASS", "Card catalog", fmt.Sprintf("%d cards", cards.Len()))

	if cfg.Metrics.Enabled {
		printCheck(w, "PASS", "Metrics", "http://"+cfg.Metrics.Addr+cfg.Metrics.Path)
	} else {
		printCheck(w, "WARN", "Metrics", "disabled")
	}
	if cfg.General.LogFile == "" {
		printCheck(w, "WARN", "Log file", "not configured (stderr only)")
	} else {
		printCheck(w, "PASS", "Log file", cfg.General.LogFile)
	}
	return nil
}

func printCheck(w io.Writer, status, check, detail string) {
	fmt.Fprintf(w, "  [%s] %-16s %s\n", status, check, detail)
}
