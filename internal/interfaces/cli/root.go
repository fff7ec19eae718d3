package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/DexAtlas/internal/application/pipeline"
	"github.com/turtacn/DexAtlas/internal/config"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// skipConfig marks commands that run without a configuration.
const skipConfig = "skip-config"

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	ConfigPath   string
	Logger       logging.Logger
	Collector    prometheus.MetricsCollector
	OutputFormat string
	Verbose      bool
}

// Pipeline returns a pipeline bound to the loaded configuration, recording
// metrics when they are enabled.
func (c *CLIContext) Pipeline() *pipeline.Pipeline {
	var opts []pipeline.Option
	if c.Collector != nil {
		opts = append(opts, pipeline.WithMetrics(c.Collector))
	}
	return pipeline.New(c.Config, c.Logger, opts...)
}

// NewRootCommand creates the root cobra command with all global flags and subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dexatlas",
		Short: "DexAtlas builds the curated dexmedetomidine dosing dataset",
		Long: "DexAtlas turns a supplementary trial table, a risk-of-bias workbook and\n" +
			"manual adjudications into a validated, summarized dosing dataset.\n" +
			"A build with unresolved critical flags exits with status 2 unless\n" +
			"--allow-unresolved is given.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./dexatlas.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")

	cmd.AddCommand(
		newExtractCmd(),
		newValidateCmd(),
		newSummarizeCmd(),
		newChecksumsCmd(),
		newSyncCmd(),
		newRunCmd(),
		newLinkageCmd(),
		newBundleCmd(),
		newPublishCmd(),
		newExportCmd(),
		newWatchCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return cmd
}

// persistentPreRun initializes config, logger and metrics, then stores CLIContext.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	if cmd.Annotations[skipConfig] == "true" {
		return nil
	}
	switch strings.ToLower(opts.OutputFormat) {
	case "text", "json", "table":
	default:
		return errors.New(errors.ErrCodeBadRequest, "unknown output format "+opts.OutputFormat)
	}

	cfg, cfgPath, err := initConfig(opts)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfig, "config initialization failed")
	}

	logger, err := initLogger(cmd, cfg, opts)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfig, "logger initialization failed")
	}
	logging.SetDefault(logger)

	var collector prometheus.MetricsCollector
	if cfg.Metrics.Enabled {
		collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:       cfg.Metrics.Namespace,
			EnableGoMetrics: cmd.Name() == "serve",
		}, logger)
		if err != nil {
			return err
		}
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		ConfigPath:   cfgPath,
		Logger:       logger,
		Collector:    collector,
		OutputFormat: opts.OutputFormat,
		Verbose:      opts.Verbose,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority: env > file > defaults.  Without
// --config the first existing file of the search path is used, and failing
// that the environment alone.  The returned path is empty in that case.
func initConfig(opts *RootOptions) (*config.Config, string, error) {
	if opts.ConfigPath != "" {
		cfg, err := config.Load(opts.ConfigPath)
		return cfg, opts.ConfigPath, err
	}

	searchPaths := []string{"./dexatlas.yaml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".dexatlas", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/dexatlas/config.yaml")

	for _, p := range searchPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			cfg, err := config.Load(p)
			return cfg, p, err
		}
	}
	cfg, err := config.LoadFromEnv()
	return cfg, "", err
}

// initLogger creates the command logger.  Console logging to stderr goes
// through the command's error writer.
func initLogger(cmd *cobra.Command, cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if opts.Verbose {
		level = "debug"
	}
	cfg.Log.Level = level

	paths := cfg.Log.OutputPaths
	if cfg.Log.Format == "console" && (len(paths) == 0 || (len(paths) == 1 && paths[0] == "stderr")) {
		return logging.NewWriterLogger(cmd.ErrOrStderr(), level), nil
	}
	return logging.NewLogger(logging.LogConfig{
		Level:       level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLIContext not found in command context")
	}
	return cliCtx, nil
}

// Execute runs the root command against os.Args.  The returned error maps to
// an exit status through errors.ExitCodeFor.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipConfig: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "dexatlas %s (commit: %s, built: %s)\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Output
// ─────────────────────────────────────────────────────────────────────────────

// Result pairs a machine-readable value with the rows shown in text and
// table output.
type Result struct {
	Data any
	rows [][2]string
}

// NewResult wraps data for PrintResult.
func NewResult(data any) *Result { return &Result{Data: data} }

// Add appends one field row and returns r.
func (r *Result) Add(field string, value any) *Result {
	r.rows = append(r.rows, [2]string{field, fmt.Sprint(value)})
	return r
}

// AddCounts appends one row per key of counts in key order.
func (r *Result) AddCounts(prefix string, counts map[string]int) *Result {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.Add(prefix+k, counts[k])
	}
	return r
}

func (r *Result) MarshalJSON() ([]byte, error) { return json.Marshal(r.Data) }

func (r *Result) TableHeaders() []string { return []string{"FIELD", "VALUE"} }

func (r *Result) TableRows() [][]string {
	out := make([][]string, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, []string{row[0], row[1]})
	}
	return out
}

func (r *Result) String() string {
	var sb strings.Builder
	for i, row := range r.rows {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(row[0])
		sb.WriteString(": ")
		sb.WriteString(row[1])
	}
	return sb.String()
}

// PrintResult outputs data in the format specified by CLIContext.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return printJSON(cmd, data)
	}

	switch strings.ToLower(cliCtx.OutputFormat) {
	case "json":
		return printJSON(cmd, data)
	case "table":
		return printTable(cmd, data)
	default:
		return printText(cmd, data)
	}
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(cmd *cobra.Command, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
	}
	return nil
}

// printTable outputs data as a table if it provides headers and rows,
// otherwise falls back to text.
func printTable(cmd *cobra.Command, data interface{}) error {
	type tableProvider interface {
		TableHeaders() []string
		TableRows() [][]string
	}

	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	return printText(cmd, data)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", msg)
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(val)
			} else {
				sb.WriteString(padRight(val, colWidths[i]))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	sep := make([]string, len(colWidths))
	for i, w := range colWidths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

//Personal.AI order the ending
