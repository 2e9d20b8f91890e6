package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danieldreier/kanji-srs/internal/config"
	"github.com/danieldreier/kanji-srs/internal/srs"
	"github.com/danieldreier/kanji-srs/internal/storage"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	svc, cleanup, err := openService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s := newMCPServer(svc)
	svc.Logger.Info("Serving MCP over stdio",
		zap.String("strategy", string(svc.Config.Strategy)),
		zap.Int("daily_card_limit", svc.Config.DailyCardLimit))
	if err := server.ServeStdio(s); err != nil {
		svc.Logger.Error("Error serving MCP server", zap.Error(err))
		return err
	}
	return nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <cards.json>",
		Short: "Import or update kanji cards from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cards, err := storage.ReadCardsFile(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := openService(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			added, err := svc.Store.ImportCards(cmd.Context(), cards)
			if err != nil {
				return fmt.Errorf("error importing cards: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d cards (%d new)\n", len(cards), added)
			return nil
		},
	}
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Print the facets due for study now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openService(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var opts SessionOptions
			names, _ := cmd.Flags().GetStringSlice("facet")
			for _, name := range names {
				facet, err := srs.ParseFacet(name)
				if err != nil {
					return err
				}
				opts.Facets = append(opts.Facets, facet)
			}
			opts.Shuffle, _ = cmd.Flags().GetBool("shuffle")

			session, err := svc.GetSession(cmd.Context(), timeNow(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			review, fresh := session.Counts()
			fmt.Fprintf(out, "%d review, %d new\n", review, fresh)
			for i, item := range session.Items {
				fmt.Fprintf(out, "%3d. %-6s %s/%s\n", i+1, item.Kind, item.CardID, item.Facet)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("facet", nil, "Restrict to facets: meaning, reading_on, reading_kun")
	cmd.Flags().Bool("shuffle", false, "Shuffle items within their kind")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openService(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := svc.Stats(cmd.Context(), timeNow())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cards:            %d\n", st.TotalCards)
			fmt.Fprintf(out, "Facets:           %d (%d seen, %d new)\n", st.TotalFacets, st.Seen, st.New)
			fmt.Fprintf(out, "Due now:          %d\n", st.Due)
			fmt.Fprintf(out, "Learning:         %d\n", st.Learning)
			fmt.Fprintf(out, "Leeches:          %d\n", st.Leeches)
			fmt.Fprintf(out, "Introduced today: %d\n", st.IntroducedToday)
			fmt.Fprintf(out, "In study window:  %t\n", st.InStudyWindow)
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all review progress, keeping the cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New("refusing to reset without --yes")
			}
			svc, cleanup, err := openService(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Store.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("error resetting progress: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Review progress reset")
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm the reset")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _, err := resolveConfigPath(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config file %s already exists", path)
			}
			if err := config.Save(path, srs.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting and write the configuration file",
		Long: "Change one setting and write the configuration file. Nested keys are " +
			"dotted (learning_window.start) and values are YAML ([10m, 1d]). The file " +
			"is only written if the result is valid.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, explicit, err := resolveConfigPath(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path, explicit)
			if err != nil {
				return err
			}
			cfg, err = config.Set(cfg, args[0], args[1])
			if err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], path)
			return nil
		},
	})
	return cmd
}
