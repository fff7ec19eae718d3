package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DexAtlas/internal/infrastructure/storage/artifacts"
	httpapi "github.com/turtacn/DexAtlas/internal/interfaces/http"
	"github.com/turtacn/DexAtlas/internal/interfaces/http/handlers"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the processed artifacts over a read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			hotReloadLogLevel(cc)

			serverCfg := cc.Config.Server
			if port > 0 {
				serverCfg.Port = port
			}
			dir := cc.Config.Output.ProcessedDir

			rc := httpapi.RouterConfig{
				Mode:           serverCfg.Mode,
				DatasetHandler: handlers.NewDatasetHandler(cc.Pipeline(), dir, cc.Logger),
				HealthHandler: handlers.NewHealthHandler(Version,
					handlers.FileChecker{Label: "validation_report", Path: filepath.Join(dir, artifacts.ValidationFile)},
					handlers.FileChecker{Label: "curated_dataset", Path: filepath.Join(dir, artifacts.CuratedFile)}),
				CORSOrigins: serverCfg.CORSOrigins,
				Logger:      cc.Logger.Named("http"),
			}
			if cc.Collector != nil {
				rc.MetricsCollector = cc.Collector
				rc.Metrics = prometheus.NewPipelineMetrics(cc.Collector)
			}

			return httpapi.NewServer(serverCfg, httpapi.NewRouter(rc), cc.Logger).Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port; overrides server.port")
	return cmd
}

//Personal.AI order the ending
