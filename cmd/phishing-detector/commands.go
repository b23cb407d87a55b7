package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stoik/phishing-detector/internal/config"
	"github.com/stoik/phishing-detector/internal/domain"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var a *app

	root := &cobra.Command{
		Use:           "phishing-detector",
		Short:         "Phishing risk classification for raw emails",
		Long:          "Scores uploaded emails for phishing risk, keeps the scan history and curates the domain reputation lists.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a, err = newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a == nil {
				return nil
			}
			return a.Close()
		},
	}

	service := func() *app { return a }
	root.AddCommand(
		newScanCommand(service),
		newAnalyzeCommand(service),
		newHistoryCommand(service),
		newShowCommand(service),
		newDomainsCommand(service),
		newCacheCommand(service),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readEmail(cmd *cobra.Command, path string) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read email: %w", err)
	}
	return raw, nil
}

func newScanCommand(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan FILE",
		Short: "Classify a raw email file and record it (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readEmail(cmd, args[0])
			if err != nil {
				return err
			}
			record, err := a().service.Scan(cmd.Context(), raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), record)
		},
	}
}

func newAnalyzeCommand(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE",
		Short: "Classify a raw email file without recording it (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readEmail(cmd, args[0])
			if err != nil {
				return err
			}
			record, err := a().service.Analyze(cmd.Context(), raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), record)
		},
	}
}

func newHistoryCommand(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past scans, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := a().service.History(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), history)
		},
	}
}

func newShowCommand(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print the full record of one scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid scan id %q: %w", args[0], err)
			}
			record, err := a().service.Record(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), record)
		},
	}
}

func newDomainsCommand(a func() *app) *cobra.Command {
	domains := &cobra.Command{
		Use:   "domains",
		Short: "Manage the domain reputation lists",
	}

	domains.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show malicious and whitelisted domains",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				lists, err := a().service.Domains(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), lists)
			},
		},
		&cobra.Command{
			Use:   "whitelist DOMAIN",
			Short: "Trust a domain for future scans",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				lists, err := a().service.WhitelistDomain(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), lists)
			},
		},
		&cobra.Command{
			Use:     "unwhitelist DOMAIN",
			Aliases: []string{"remove"},
			Short:   "Remove a domain from the whitelist",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				lists, err := a().service.RemoveWhitelist(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), lists)
			},
		},
	)
	return domains
}

type cacheStatsOutput struct {
	domain.CacheStats
	CacheDurationHours float64 `json:"cache_duration_hours"`
}

func newCacheCommand(a func() *app) *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear cached threat-intel answers",
	}

	cache.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Count cached answers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				stats, err := a().service.CacheStats(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), cacheStatsOutput{
					CacheStats:         stats,
					CacheDurationHours: a().cacheTTL.Hours(),
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget every cached answer",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := a().service.ClearCache(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]int{"cleared": n})
			},
		},
	)
	return cache
}
