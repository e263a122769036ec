package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"lunabot/internal/catalog"
	"lunabot/internal/config"
	"lunabot/internal/domain"
)

var (
	version    = "0.1.0"
	configPath string // --config
	envFile    string // --env-file
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		if errors.Is(err, domain.ErrConfigMissing) {
			fmt.Fprintln(os.Stderr, "   Set the variables in the environment or in a .env file (see --env-file).")
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lunabot",
		Short:         "Telegram relay for a Voiceflow tarot assistant",
		Long:          "lunabot forwards Telegram messages to a Voiceflow agent, renders its replies with card images, and sends follow-up reminders.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to an optional config.json")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	root.AddCommand(gatewayCmd())
	root.AddCommand(configCmd())
	root.AddCommand(catalogCmd())
	root.AddCommand(versionCmd())
	return root
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// newLogger builds the process logger. With a log file configured, output
// goes to stderr and to a size-rotated file.
func newLogger(cfg config.GeneralConfig) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotated)
		closer = rotated
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lunabot %s\n", version)
		},
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the card catalog",
	}

	var file string
	list := &cobra.Command{
		Use:   "list",
		Short: "List every card name and its image URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cards, err := catalog.LoadFile(file)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, name := range cards.Names() {
				url, _ := cards.Lookup(name)
				fmt.Fprintf(w, "%-24s %s\n", name, url)
			}
			fmt.Fprintf(w, "\n%d cards\n", cards.Len())
			return nil
		},
	}
	list.Flags().StringVar(&file, "file", "", "YAML file with extra or replacement cards")

	cmd.AddCommand(list)
	return cmd
}
