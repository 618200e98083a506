// Command imisexport publishes the openIMIS analytics datasets to the
// warehouse, serves ad-hoc CSV exports and hands out facility sequence
// numbers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"imisexport/internal/config"
	"imisexport/internal/observability"
	"imisexport/internal/sequence"

	// register all warehouse backends; WAREHOUSE_KIND picks one.
	_ "imisexport/internal/warehouse/all"
)

type app struct {
	cfgFile string
	cfg     *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("imisexport failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "imisexport",
		Short:         "openIMIS data export: warehouse datasets, CSV exports and sequence numbers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			observability.InitLogger(cfg.Env, cfg.LogLevel)
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "optional config file (.env, yaml, json or toml); environment wins")

	root.AddCommand(a.publishCmd(), a.scheduleCmd(), a.serveCmd(), a.seqCmd(), a.validateCmd())
	return root
}

func (a *app) publishCmd() *cobra.Command {
	var datasets []string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Run the export once and republish the warehouse tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkConfig(a.cfg); err != nil {
				return err
			}
			flush := initMetrics(a.cfg)
			defer flush()
			return runLocked(cmd.Context(), a.cfg, datasets)
		},
	}
	cmd.Flags().StringSliceVar(&datasets, "dataset", nil, "publish only these datasets (repeatable); publication order is kept")
	return cmd
}

func (a *app) scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the export on SCHEDULE_CRON until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkConfig(a.cfg); err != nil {
				return err
			}
			s, err := newScheduler(a.cfg, nil)
			if err != nil {
				return err
			}
			return s.Run(cmd.Context())
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the CSV export and sequence API on HTTP_ADDR",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), a.cfg)
		},
	}
}

func (a *app) seqCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seq",
		Short: "Allocate facility sequence numbers",
	}
	for use, field := range map[string]sequence.Field{
		"next-insuree-id": sequence.FieldInsureeID,
		"next-claim-id":   sequence.FieldClaimID,
	} {
		field := field
		var hf int64
		sub := &cobra.Command{
			Use:   use,
			Short: "Print and consume the " + string(field) + " of a health facility",
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := nextSequence(cmd.Context(), a.cfg, hf, field)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatInt(v, 10))
				return err
			},
		}
		sub.Flags().Int64Var(&hf, "hf", 0, "health facility id")
		_ = sub.MarkFlagRequired("hf")
		cmd.AddCommand(sub)
	}
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and lint the configuration, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			issues := config.Validate(a.cfg)
			for _, iss := range issues {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if config.HasErrors(issues) {
				return fmt.Errorf("configuration is invalid")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}
