package extraction

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/intelligence/classifier"
	"github.com/turtacn/DexAtlas/internal/intelligence/normalizer"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// DefaultWorkers bounds concurrent record building when Options.Workers is
// not positive.
const DefaultWorkers = 4

// Options configures an ExtractionService.
type Options struct {
	Policy  Policy
	Workers int
}

// Result is the output of one extraction run.
type Result struct {
	// Records are sorted by trial_id.
	Records []*trial.TrialRecord

	RowsRead int
	Excluded map[Decision]int

	// UnmatchedRobKeys are workbook keys that no built record matched, in
	// workbook order.
	UnmatchedRobKeys []string
}

// ExtractionService builds the canonical record set from typed table rows.
type ExtractionService interface {
	BuildAll(ctx context.Context, rows []trial.RawRow) (*Result, error)
}

type extractionServiceImpl struct {
	comparator *classifier.ComparatorClassifier
	rob        *classifier.RobIndex
	fulltext   map[string]Enrichment
	opts       Options
	logger     logging.Logger
}

// NewExtractionService wires the immutable lookups built at pipeline start.
// rob and fulltext may be empty.
func NewExtractionService(
	comparator *classifier.ComparatorClassifier,
	rob *classifier.RobIndex,
	fulltext map[string]Enrichment,
	opts Options,
	logger logging.Logger,
) ExtractionService {
	if comparator == nil {
		panic("extraction: comparator classifier must not be nil")
	}
	if logger == nil {
		panic("extraction: logger must not be nil")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &extractionServiceImpl{
		comparator: comparator,
		rob:        rob,
		fulltext:   fulltext,
		opts:       opts,
		logger:     logger,
	}
}

type rowOutcome struct {
	record   *trial.TrialRecord
	decision Decision
}

// BuildAll builds every row concurrently.  Row builds share no mutable state
// and write to their own slot, so output order depends only on the final sort.
func (s *extractionServiceImpl) BuildAll(ctx context.Context, rows []trial.RawRow) (*Result, error) {
	start := time.Now()
	outcomes := make([]rowOutcome, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i := range rows {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.buildOne(rows[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "record building interrupted")
	}

	res := &Result{RowsRead: len(rows), Excluded: make(map[Decision]int)}
	matched := make(map[string]bool)
	for _, o := range outcomes {
		if o.decision != DecisionBuilt {
			res.Excluded[o.decision]++
			continue
		}
		res.Records = append(res.Records, o.record)
		matched[o.record.StudyKey()] = true
	}
	trial.SortByID(res.Records)

	for i := 1; i < len(res.Records); i++ {
		if res.Records[i].TrialID == res.Records[i-1].TrialID {
			return nil, errors.NewSchemaError(errors.ErrCodeSchemaDuplicateID,
				"duplicate trial_id %s: two table rows share study key and source page", res.Records[i].TrialID).
				WithDetail(res.Records[i].TrialID)
		}
	}

	for _, key := range s.rob.Keys() {
		if !matched[key] {
			res.UnmatchedRobKeys = append(res.UnmatchedRobKeys, key)
		}
	}

	logging.LogStageDuration(s.logger, "extract", start,
		logging.Int("rows", res.RowsRead),
		logging.Int("records", len(res.Records)),
		logging.Int("excluded_no_dex_arm", res.Excluded[DecisionNoDexArm]),
		logging.Int("excluded_comparator", res.Excluded[DecisionComparatorExcluded]),
		logging.Int("unmatched_rob_keys", len(res.UnmatchedRobKeys)),
	)
	return res, nil
}

func (s *extractionServiceImpl) buildOne(row trial.RawRow) rowOutcome {
	key := normalizer.StudyKey(normalizer.CleanStudyLabel(row.Study))

	var robEntry *classifier.RobEntry
	if e, ok := s.rob.Lookup(key); ok {
		robEntry = &e
	}
	var enrichment *Enrichment
	if e, ok := s.fulltext[key]; ok {
		enrichment = &e
	}

	rec, decision := BuildRecord(row, s.comparator, robEntry, enrichment, s.opts.Policy)
	if decision != DecisionBuilt {
		s.logger.Debug("row excluded",
			logging.String("study", row.Study),
			logging.Int("source_page", row.SourcePage),
			logging.String("reason", string(decision)))
	}
	return rowOutcome{record: rec, decision: decision}
}

//Personal.AI order the ending
