package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/DexAtlas/internal/config"
	"github.com/turtacn/DexAtlas/internal/infrastructure/filewatch"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// watchedInputs lists the configured inputs that can be watched.  Inputs
// whose directory does not exist are skipped.
func watchedInputs(in config.InputConfig) []string {
	candidates := []string{
		in.TablePath, in.RobPath, in.RulesPath, in.AdjudicationsPath,
		in.EventsPath, in.LinkagePolicyPath, in.ReferencesPath,
	}
	var out []string
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(filepath.Dir(p)); err == nil {
			out = append(out, p)
		}
	}
	if in.PDFDir != "" {
		if info, err := os.Stat(in.PDFDir); err == nil && info.IsDir() {
			out = append(out, in.PDFDir)
		}
	}
	return out
}

// hotReloadLogLevel follows log.level in the config file.
func hotReloadLogLevel(cc *CLIContext) {
	if cc.ConfigPath == "" {
		return
	}
	err := config.Watch(cc.ConfigPath, func(cfg *config.Config) {
		if logging.SetLevel(cc.Logger, cfg.Log.Level) {
			cc.Logger.Info("log level reloaded", logging.String("level", cfg.Log.Level))
		}
	}, func(err error) {
		cc.Logger.Warn("config reload failed", logging.Err(err))
	})
	if err != nil {
		cc.Logger.Warn("config hot reload disabled", logging.Err(err))
	}
}

func newWatchCmd() *cobra.Command {
	var (
		allow     bool
		skipFirst bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the pipeline whenever an input file changes",
		Long: "Watch runs the full pipeline once, then again after every change to\n" +
			"the configured inputs, debounced by pipeline.watch_debounce.  Failed\n" +
			"or blocked runs are logged and watching continues.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			w, err := filewatch.New(watchedInputs(cc.Config.Input), cc.Config.Pipeline.WatchDebounce, cc.Logger)
			if err != nil {
				return err
			}
			hotReloadLogLevel(cc)

			p := cc.Pipeline()
			allowed := allowUnresolved(cc, allow)
			rerun := func(ctx context.Context, changed []string) {
				if len(changed) > 0 {
					cc.Logger.Info("inputs changed, re-running", logging.Strings("changed", changed))
				}
				res, err := p.Run(ctx, allowed)
				switch {
				case errors.IsBuildBlocked(err):
					cc.Logger.Warn("build blocked", logging.Err(err))
				case err != nil:
					cc.Logger.Error("run failed", logging.Err(err))
				default:
					cc.Logger.Info("run passed", logging.Int("records", res.Report.NTrialsCurated))
				}
			}

			if !skipFirst {
				rerun(ctx, nil)
			}
			return w.Run(ctx, rerun)
		},
	}
	cmd.Flags().BoolVar(&allow, "allow-unresolved", false, "pass the gate despite unresolved critical flags")
	cmd.Flags().BoolVar(&skipFirst, "skip-initial", false, "wait for the first change before running")
	return cmd
}

//Personal.AI order the ending
