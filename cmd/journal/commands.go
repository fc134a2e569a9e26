package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"trade-journal-go/internal/client"
	"trade-journal-go/internal/models"
)

const dateLayout = "2006-01-02"

// newRootCmd builds the command tree on top of api.
func newRootCmd(api client.JournalAPI) *cobra.Command {
	root := &cobra.Command{
		Use:   "journal",
		Short: "Record and review trades in the journal",
		Long: `Journal talks to a running journal server.

Examples:
  journal add --stock AAPL --qty 10 --entry 150.5 --sl 148 --target 155 --strategy Breakout
  journal close <trade-id> 152
  journal today
  journal day 2025-03-14
  journal calendar 2025 3`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newAddCmd(api),
		newCloseCmd(api),
		newDeleteCmd(api),
		newDayCmd(api),
		newTodayCmd(api),
		newCalendarCmd(api),
		newMetricsCmd(api),
		newExportCmd(api),
	)
	return root
}

func newAddCmd(api client.JournalAPI) *cobra.Command {
	var (
		in   models.TradeInput
		date string
		exit float64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new trade",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(date)
			if err != nil {
				return err
			}
			in.Date = day
			if cmd.Flags().Changed("exit") {
				in.ExitPrice = &exit
			}

			result, err := api.AddTrade(cmd.Context(), in)
			if err != nil {
				return err
			}
			warnUnpersisted(cmd, result)
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", result.Trade.ID)
			renderTrades(cmd.OutOrStdout(), []models.Trade{result.Trade})
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&date, "date", time.Now().Format(dateLayout), "trade date (YYYY-MM-DD)")
	f.StringVar(&in.StockName, "stock", "", "stock name")
	f.Float64Var(&in.Quantity, "qty", 0, "quantity")
	f.Float64Var(&in.EntryPrice, "entry", 0, "entry price")
	f.Float64Var(&in.SLPrice, "sl", 0, "stop-loss price")
	f.Float64Var(&in.TargetPrice, "target", 0, "target price")
	f.Float64Var(&exit, "exit", 0, "exit price, leave unset for an open trade")
	f.BoolVar(&in.TrailedSL, "trailed-sl", false, "closed on a trailed stop")
	f.BoolVar(&in.SLHit, "sl-hit", false, "closed on the stop-loss")
	f.StringVar(&in.Strategy, "strategy", "", "strategy name")
	f.StringVar(&in.ImageURL, "image", "", "chart image URL")
	f.StringVar(&in.Notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("stock")
	_ = cmd.MarkFlagRequired("strategy")
	cmd.MarkFlagsMutuallyExclusive("trailed-sl", "sl-hit")
	return cmd
}

func newCloseCmd(api client.JournalAPI) *cobra.Command {
	var trailedSL, slHit bool

	cmd := &cobra.Command{
		Use:   "close <trade-id> <exit-price>",
		Short: "Close an open trade at an exit price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exit, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("exit price: %w", err)
			}
			patch := models.TradePatch{ExitPrice: &exit}
			if cmd.Flags().Changed("trailed-sl") {
				patch.TrailedSL = &trailedSL
			}
			if cmd.Flags().Changed("sl-hit") {
				patch.SLHit = &slHit
			}

			result, err := api.UpdateTrade(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			warnUnpersisted(cmd, result)
			renderTrades(cmd.OutOrStdout(), []models.Trade{result.Trade})
			return nil
		},
	}

	cmd.Flags().BoolVar(&trailedSL, "trailed-sl", false, "closed on a trailed stop")
	cmd.Flags().BoolVar(&slHit, "sl-hit", false, "closed on the stop-loss")
	cmd.MarkFlagsMutuallyExclusive("trailed-sl", "sl-hit")
	return cmd
}

func newDeleteCmd(api client.JournalAPI) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <trade-id>",
		Short: "Delete a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api.DeleteTrade(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, client.ErrNotFound) {
					return fmt.Errorf("no trade with id %s", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newDayCmd(api client.JournalAPI) *cobra.Command {
	return &cobra.Command{
		Use:   "day <YYYY-MM-DD>",
		Short: "List the trades and summary of a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(args[0])
			if err != nil {
				return err
			}
			return showDay(cmd, api, day)
		},
	}
}

func newTodayCmd(api client.JournalAPI) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "List today's trades and summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			return showDay(cmd, api, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
		},
	}
}

func showDay(cmd *cobra.Command, api client.JournalAPI, day time.Time) error {
	trades, err := api.ListTrades(cmd.Context(), &day)
	if err != nil {
		return err
	}
	summary, err := api.DailySummary(cmd.Context(), day)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if summary == nil {
		fmt.Fprintf(out, "No trades on %s\n", day.Format(dateLayout))
		return nil
	}
	renderTrades(out, trades)
	renderSummary(out, *summary)
	return nil
}

func newCalendarCmd(api client.JournalAPI) *cobra.Command {
	return &cobra.Command{
		Use:   "calendar [year [month]]",
		Short: "List the years, months or days that have trades",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if len(args) == 0 {
				years, err := api.Years(ctx)
				if err != nil {
					return err
				}
				renderList(out, "Year", years, strconv.Itoa)
				return nil
			}

			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("year: %w", err)
			}
			if len(args) == 1 {
				months, err := api.Months(ctx, year)
				if err != nil {
					return err
				}
				renderList(out, "Month", months, time.Month.String)
				return nil
			}

			month, err := strconv.Atoi(args[1])
			if err != nil || month < 1 || month > 12 {
				return fmt.Errorf("month must be between 1 and 12, got %q", args[1])
			}
			days, err := api.Days(ctx, year, time.Month(month))
			if err != nil {
				return err
			}
			renderList(out, "Day", days, strconv.Itoa)
			return nil
		},
	}
}

func newMetricsCmd(api client.JournalAPI) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <trade-id>",
		Short: "Show risk, reward and P&L of a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := api.TradeMetrics(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderBreakdown(cmd.OutOrStdout(), b)
			return nil
		},
	}
}

func newExportCmd(api client.JournalAPI) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every trade as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := api.ExportCSV(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout when empty")
	return cmd
}

func parseDay(s string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return day, nil
}

func warnUnpersisted(cmd *cobra.Command, result client.TradeResult) {
	if !result.Persisted {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: change kept in memory only: %s\n", result.Warning)
	}
}
