package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/turtacn/DexAtlas/internal/application/pipeline"
	"github.com/turtacn/DexAtlas/internal/application/summary"
	"github.com/turtacn/DexAtlas/internal/application/validation"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
)

// stageFunc runs one stage and returns what to print.  A non-nil result is
// printed even when err is set so a blocked gate still shows its counts.
type stageFunc func(ctx context.Context, cc *CLIContext, p *pipeline.Pipeline) (*Result, error)

func runStage(cmd *cobra.Command, fn stageFunc) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	p := cc.Pipeline()
	res, err := fn(cmd.Context(), cc, p)
	if res != nil {
		if perr := PrintResult(cmd, res); perr != nil && err == nil {
			err = perr
		}
	}
	if werr := p.WriteMetrics(); werr != nil {
		cc.Logger.Warn("metrics textfile not written", logging.Err(werr))
	}
	return err
}

func allowUnresolved(cc *CLIContext, flag bool) bool {
	return flag || cc.Config.Pipeline.AllowUnresolved
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Build trial records from the raw inputs into the interim dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, func(ctx context.Context, _ *CLIContext, p *pipeline.Pipeline) (*Result, error) {
				res, err := p.Extract(ctx)
				if err != nil {
					return nil, err
				}
				return extractResult(res), nil
			})
		},
	}
}

func extractResult(res *pipeline.ExtractResult) *Result {
	rep := res.Report
	out := NewResult(struct {
		Records        int                     `json:"n_records"`
		ReferenceLinks int                     `json:"n_reference_links"`
		Report         *pipeline.ExtractReport `json:"report"`
	}{len(res.Records), len(res.Links), rep}).
		Add("table_rows", rep.NArticlesRows).
		Add("canonical_rows", rep.NCanonicalRows).
		Add("records", len(res.Records)).
		AddCounts("excluded.", rep.Excluded).
		Add("unmatched_rob_keys", len(rep.UnmatchedRobKeys)).
		Add("override_warnings", len(rep.OverrideWarnings)).
		Add("reference_links", len(res.Links))
	if rep.ParsedWrite != nil {
		out.Add("parquet_written", rep.ParsedWrite.ParquetWritten)
	}
	return out
}

func newValidateCmd() *cobra.Command {
	var allow bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the QA gate and write the curated dataset",
		Long: "Validate flags every interim record, writes trials_curated.json,\n" +
			"review_queue.csv and validation_report.json, and fails with exit\n" +
			"status 2 while critical flags remain unresolved.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, func(ctx context.Context, cc *CLIContext, p *pipeline.Pipeline) (*Result, error) {
				report, err := p.Validate(ctx, allowUnresolved(cc, allow))
				if report == nil {
					return nil, err
				}
				return reportResult(report), err
			})
		},
	}
	cmd.Flags().BoolVar(&allow, "allow-unresolved", false, "pass the gate despite unresolved critical flags")
	return cmd
}

func reportResult(r *validation.Report) *Result {
	return NewResult(r).
		Add("run_id", r.RunID).
		Add("gate_passed", r.GatePassed).
		Add("allow_unresolved", r.AllowUnresolved).
		Add("trials_curated", r.NTrialsCurated).
		Add("review_queue", r.NReviewQueue).
		Add("unresolved_critical", r.NUnresolvedCritical).
		AddCounts("flag.", r.FlagCounts)
}

func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Write the pooled and per-RoB summaries of the curated dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, func(ctx context.Context, _ *CLIContext, p *pipeline.Pipeline) (*Result, error) {
				overall, byRob, err := p.Summarize(ctx)
				if err != nil {
					return nil, err
				}
				return summaryResult(overall, byRob), nil
			})
		},
	}
}

func summaryResult(overall *summary.Overall, byRob *summary.ByRob) *Result {
	out := NewResult(struct {
		Overall *summary.Overall `json:"overall"`
		ByRob   *summary.ByRob   `json:"by_rob"`
	}{overall, byRob}).
		Add("n_trials", overall.NTrials).
		Add("n_participants", overall.NParticipants).
		Add("n_missing_n_total", overall.NMissingNTotal)
	if m := overall.InfusionMidpointDistribution.Median; m != nil {
		out.Add("infusion_midpoint_median", fmt.Sprintf("%.3f", *m))
	}
	if byRob != nil {
		out.Add("low_risk_trials", byRob.LowRisk.NTrials).
			Add("some_concerns_trials", byRob.SomeConcerns.NTrials).
			Add("high_risk_trials", byRob.HighRisk.NTrials)
	}
	return out
}

func newChecksumsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checksums",
		Short: "Write sha256 checksums of the published artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, func(_ context.Context, _ *CLIContext, p *pipeline.Pipeline) (*Result, error) {
				sums, err := p.Checksums()
				if err != nil {
					return nil, err
				}
				return checksumResult(sums), nil
			})
		},
	}
}

func checksumResult(sums map[string]string) *Result {
	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)
	out := NewResult(sums)
	for _, name := range names {
		out.Add(name, sums[name])
	}
	return out
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Copy the published artifacts to the docs data dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, func(_ context.Context, cc *CLIContext, p *pipeline.Pipeline) (*Result, error) {
				files, err := p.Sync()
				if err != nil {
					return nil, err
				}
				return NewResult(files).
					Add("docs_data_dir", cc.Config.Output.DocsDataDir).
					Add("files", len(files)), nil
			})
		},
	}
}

func newRunCmd() *cobra.Command {
	var allow bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run extract, validate, summarize, checksums, linkage, bundle and sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, func(ctx context.Context, cc *CLIContext, p *pipeline.Pipeline) (*Result, error) {
				res, err := p.Run(ctx, allowUnresolved(cc, allow))
				if res == nil || res.Report == nil {
					return nil, err
				}
				return runResult(res), err
			})
		},
	}
	cmd.Flags().BoolVar(&allow, "allow-unresolved", false, "pass the gate despite unresolved critical flags")
	return cmd
}

func runResult(res *pipeline.RunResult) *Result {
	out := reportResult(res.Report)
	out.Data = res
	if res.Overall != nil {
		out.Add("n_participants", res.Overall.NParticipants)
	}
	if res.Checksums != nil {
		out.Add("checksums", len(res.Checksums))
	}
	if res.Linkage != nil {
		out.Add("linkage_arms", res.Linkage.Arms)
	}
	if res.Bundle != nil {
		out.Add("bundle_rows", res.Bundle.Coverage.NArmRows)
	}
	if res.Synced != nil {
		out.Add("synced", len(res.Synced))
	}
	return out
}

func newLinkageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "linkage",
		Short: "Join the curated dataset to the event-count CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, func(ctx context.Context, _ *CLIContext, p *pipeline.Pipeline) (*Result, error) {
				res, err := p.Linkage(ctx)
				if err != nil {
					return nil, err
				}
				c := res.Coverage
				return NewResult(res).
					Add("arms", res.Arms).
					Add("trials_curated", c.NTrialsCurated).
					Add("extracted_trials", c.NExtractedTrials).
					Add("missing_in_csv", c.NMissingInCSV).
					Add("control_mismatch", c.NControlMismatch).
					Add("ambiguous_unresolved", c.NAmbiguousUnresolved), nil
			})
		},
	}
}

func newBundleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bundle",
		Short: "Join the arm-level table with model summaries into the forest-plot bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, func(ctx context.Context, _ *CLIContext, p *pipeline.Pipeline) (*Result, error) {
				b, err := p.Bundle(ctx)
				if err != nil {
					return nil, err
				}
				c := b.Coverage
				return NewResult(b).
					Add("rows", c.NArmRows).
					Add("trials", c.NUniqueTrials).
					Add("with_model", c.NRowsWithModel).
					Add("missing_model", c.NRowsMissingModel), nil
			})
		},
	}
}

//Personal.AI order the ending
