// Package main is the thin CLI entry point for the earnings-VRP scanner
// (§6, C20): whisper, analyze, prime, maintenance health, dispatch. Every
// subcommand loads configuration, builds the object graph via
// internal/app, and calls straight into the core; no decision logic
// lives here, matching the Non-goals' "thin CLI entry points" framing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/eddiefleurent/vrpscanner/internal/anomaly"
	"github.com/eddiefleurent/vrpscanner/internal/app"
	"github.com/eddiefleurent/vrpscanner/internal/httpapi"
	"github.com/eddiefleurent/vrpscanner/internal/models"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "vrpscanner",
		Short: "Earnings volatility-risk-premium scanner and orchestrator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config.yaml")
	pflag.CommandLine = root.PersistentFlags()

	root.AddCommand(
		whisperCmd(),
		analyzeCmd(),
		primeCmd(),
		maintenanceCmd(),
		dispatchCmd(),
		serveCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootContext() context.Context {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	_ = cancel
	return ctx
}

func whisperCmd() *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "whisper [START_DATE]",
		Short: "Rank top opportunities across the configured earnings window",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			if len(args) == 1 {
				start, err = time.Parse("2006-01-02", args[0])
				if err != nil {
					return fmt.Errorf("invalid START_DATE: %w", err)
				}
			}

			result, err := a.Scan(rootContext(), start, a.Cfg.Universe.DateWindowDays)
			if err != nil {
				return err
			}

			opps := result.Opportunities
			if topN > 0 && len(opps) > topN {
				opps = opps[:topN]
			}
			printJSON(summarizeScan(opps, result.Failures))

			for _, o := range opps {
				if o.Recommendation == anomaly.Trade {
					return nil
				}
			}
			os.Exit(1)
			return nil
		},
	}
	cmd.Flags().IntVar(&topN, "top", 10, "limit output to the top N opportunities")
	return cmd
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze TICKER [EARNINGS_DATE]",
		Short: "Deep-dive a single ticker's VRP opportunity",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ticker := args[0]
			earningsDate := time.Now()
			if len(args) == 2 {
				earningsDate, err = time.Parse("2006-01-02", args[1])
				if err != nil {
					return fmt.Errorf("invalid EARNINGS_DATE: %w", err)
				}
			} else {
				events, err := a.Provider.EarningsCalendar(rootContext(), time.Now(), time.Now().AddDate(0, 0, 30))
				if err != nil {
					return err
				}
				for _, e := range events {
					if e.Ticker == ticker {
						earningsDate = e.Date
						break
					}
				}
			}

			opp, err := a.Analyze(rootContext(), ticker, earningsDate)
			if err != nil {
				return err
			}
			printJSON(opp)
			if opp.Recommendation != anomaly.Trade {
				os.Exit(1)
			}
			return nil
		},
	}
	return cmd
}

func primeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prime [START_DATE]",
		Short: "Pre-populate the sentiment cache for upcoming earnings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			if len(args) == 1 {
				start, err = time.Parse("2006-01-02", args[0])
				if err != nil {
					return fmt.Errorf("invalid START_DATE: %w", err)
				}
			}

			primed, err := a.Prime(rootContext(), start, a.Cfg.Universe.DateWindowDays)
			if err != nil {
				return err
			}
			printJSON(map[string]any{"primed": primed})
			return nil
		},
	}
	return cmd
}

func maintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "maintenance", Short: "Operational maintenance commands"}
	health := &cobra.Command{
		Use:   "health",
		Short: "Run all health checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			checks := a.Health(rootContext())
			printJSON(checks)
			for _, c := range checks {
				if !c.Healthy {
					os.Exit(1)
				}
			}
			return nil
		},
	}
	cmd.AddCommand(health)
	return cmd
}

func dispatchCmd() *cobra.Command {
	var force string
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run one scheduler tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Scheduler.Dispatch(rootContext(), force)
			if err != nil {
				printJSON(map[string]any{"status": "error", "error": err.Error()})
				os.Exit(1)
			}
			resp := map[string]any{"status": result.Status, "job": result.Job}
			if result.Reason != "" {
				resp["reason"] = result.Reason
			}
			if result.Err != nil {
				resp["error"] = result.Err.Error()
			}
			printJSON(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&force, "force", "", "job name to force-run, bypassing the time slot and dependency checks")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the optional HTTP surface (/, /health, /dispatch, /metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.Cfg.HTTP.Enabled {
				return fmt.Errorf("http.enabled is false in %s", configPath)
			}
			srv := httpapi.New(httpapi.Config{Port: a.Cfg.HTTP.Port, APIKey: a.Cfg.HTTP.APIKey}, a, a.SLogger)
			a.SLogger.Infof("listening on :%d", a.Cfg.HTTP.Port)
			return srv.ListenAndServe()
		},
	}
}

func summarizeScan(opps []models.Opportunity, failures models.Failures) map[string]any {
	failed := make(map[string]string, len(failures))
	for ticker, err := range failures {
		failed[ticker] = err.Error()
	}
	return map[string]any{
		"opportunities": opps,
		"failures":      failed,
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
