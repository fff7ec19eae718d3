package pipeline

import (
	"context"
	"time"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/DexAtlas/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/storage/artifacts"
	"github.com/turtacn/DexAtlas/internal/infrastructure/storage/minio"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// ReleaseStore uploads a release.  Satisfied by minio.ReleaseRepository.
type ReleaseStore interface {
	Publish(ctx context.Context, runID, dir string, files []string) (*minio.PublishResult, error)
}

// ReleaseNotifier announces a release.  Satisfied by *kafka.Producer.
type ReleaseNotifier interface {
	PublishReleased(ctx context.Context, payload kafka.DatasetReleasedPayload) (*kafka.EventEnvelope, error)
}

// TrialExporter stores a curated run.  Satisfied by
// *repositories.TrialRepository.
type TrialExporter interface {
	ExportRun(ctx context.Context, run repositories.RunSummary, records []*trial.TrialRecord) (int, error)
}

// PublishResult is the outcome of Publish.  Upload and Event are nil for a
// disabled target.
type PublishResult struct {
	RunID  string
	Upload *minio.PublishResult
	Event  *kafka.EventEnvelope
}

// Publish uploads the published artifacts and checksums.json under the run
// id and announces the release.  Either target may be nil, but not both.
// A blocked gate or a stale checksum manifest refuses the publish.
func (p *Pipeline) Publish(ctx context.Context, store ReleaseStore, notifier ReleaseNotifier) (*PublishResult, error) {
	start := time.Now()
	defer p.observe("publish", start)
	if store == nil && notifier == nil {
		return nil, errors.New(errors.ErrCodeConfig, "nothing to publish: minio and kafka are both disabled")
	}

	dir := p.cfg.Output.ProcessedDir
	if err := artifacts.CheckGate(dir); err != nil {
		return nil, err
	}
	report, err := p.ReadReport()
	if err != nil {
		return nil, err
	}
	manifest := p.processed(artifacts.ChecksumsFile)
	if err := artifacts.VerifyChecksums(dir, manifest); err != nil {
		return nil, err
	}
	var sums map[string]string
	if err := artifacts.ReadJSON(manifest, &sums); err != nil {
		return nil, err
	}

	res := &PublishResult{RunID: string(report.RunID)}
	payload := kafka.DatasetReleasedPayload{
		RunID:               res.RunID,
		NRecords:            report.NTrialsCurated,
		NUnresolvedCritical: report.NUnresolvedCritical,
		AllowUnresolved:     report.AllowUnresolved,
		Checksums:           sums,
		ReleasedAt:          p.clock().UTC(),
	}

	if store != nil {
		files := append(append([]string{}, artifacts.PublishedFiles...), artifacts.ChecksumsFile)
		if res.Upload, err = store.Publish(ctx, res.RunID, dir, files); err != nil {
			return res, err
		}
		payload.Bucket = res.Upload.Bucket
		payload.Prefix = res.Upload.Prefix
		if p.metrics != nil {
			p.metrics.RecordPublished("minio", len(res.Upload.Objects))
		}
	}
	if notifier != nil {
		if res.Event, err = notifier.PublishReleased(ctx, payload); err != nil {
			return res, err
		}
		if p.metrics != nil {
			p.metrics.RecordPublished("kafka", 1)
		}
	}

	logging.LogStageDuration(p.logger, "publish", start,
		logging.String("run_id", res.RunID),
		logging.Bool("uploaded", res.Upload != nil),
		logging.Bool("announced", res.Event != nil))
	return res, nil
}

// Export upserts the curated dataset and its run header.
func (p *Pipeline) Export(ctx context.Context, exporter TrialExporter) (int, error) {
	start := time.Now()
	defer p.observe("export", start)

	report, err := p.ReadReport()
	if err != nil {
		return 0, err
	}
	records, err := p.ReadCurated()
	if err != nil {
		return 0, err
	}
	n, err := exporter.ExportRun(ctx, repositories.RunSummary{
		RunID:               string(report.RunID),
		GeneratedAt:         p.clock().UTC(),
		NRecords:            len(records),
		NUnresolvedCritical: report.NUnresolvedCritical,
		AllowUnresolved:     report.AllowUnresolved,
		GatePassed:          report.GatePassed,
	}, records)
	if err != nil {
		return 0, err
	}
	logging.LogStageDuration(p.logger, "export", start, logging.Int("records", n))
	return n, nil
}

//Personal.AI order the ending
