package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
	"adsync/pkg/retry"
)

// SyncService composes the whole pipeline: fetch per account, merge across
// accounts, parse each row, resolve thumbnails once per creative, classify
// status per logical ad, upsert. Partial failure is the designed outcome: a
// bad window, ad name or thumbnail never aborts the run.
type SyncService struct {
	accounts   []domain.AdAccount
	fetcher    *AccountFetcher
	merger     *CrossAccountMerger
	parser     *AdNameParser
	resolver   *ThumbnailResolver
	classifier *StatusClassifier
	records    domain.AdRecordRepository
	runs       domain.RunRepository
	logger     *logger.Logger
	metrics    *metrics.Metrics

	thumbnailBatchSize int
	thumbnailPause     time.Duration
	upsertBatchSize    int
	pause              retry.SleepFunc
	now                func() time.Time
}

type SyncOption func(*SyncService)

// WithPause replaces the inter-batch pause, for tests.
func WithPause(fn retry.SleepFunc) SyncOption {
	return func(s *SyncService) { s.pause = fn }
}

// WithClock replaces the wall clock, for tests.
func WithClock(fn func() time.Time) SyncOption {
	return func(s *SyncService) { s.now = fn }
}

func NewSyncService(
	accounts []domain.AdAccount,
	fetcher *AccountFetcher,
	merger *CrossAccountMerger,
	parser *AdNameParser,
	resolver *ThumbnailResolver,
	classifier *StatusClassifier,
	records domain.AdRecordRepository,
	runs domain.RunRepository,
	log *logger.Logger,
	m *metrics.Metrics,
	thumbnailBatchSize int,
	thumbnailPause time.Duration,
	upsertBatchSize int,
	opts ...SyncOption,
) *SyncService {
	s := &SyncService{
		accounts:           accounts,
		fetcher:            fetcher,
		merger:             merger,
		parser:             parser,
		resolver:           resolver,
		classifier:         classifier,
		records:            records,
		runs:               runs,
		logger:             log,
		metrics:            m,
		thumbnailBatchSize: thumbnailBatchSize,
		thumbnailPause:     thumbnailPause,
		upsertBatchSize:    upsertBatchSize,
		pause: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
		now: time.Now,
	}
	if s.thumbnailBatchSize <= 0 {
		s.thumbnailBatchSize = 5
	}
	if s.upsertBatchSize <= 0 {
		s.upsertBatchSize = 100
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives one end-to-end sync over [start, end] and records the summary
// under runID so the trigger's caller can poll for completion.
func (s *SyncService) Run(ctx context.Context, runID string, start, end time.Time) (*domain.RunSummary, error) {
	began := s.now()
	s.metrics.IncSyncRunsInProgress()
	defer s.metrics.DecSyncRunsInProgress()

	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	log := s.logger.WithContext(ctx)

	summary := &domain.RunSummary{
		RunID:      runID,
		State:      domain.RunStateRunning,
		RangeStart: start,
		RangeEnd:   end,
		StartedAt:  began,
	}
	if err := s.runs.Save(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	log.WithFields(map[string]any{
		"range_start": start.Format("2006-01-02"),
		"range_end":   end.Format("2006-01-02"),
		"accounts":    len(s.accounts),
	}).Info("Starting sync run")

	// fetch each account concurrently: quotas are per account, so workers
	// never contend, and each worker owns its own result slot
	results := make([]FetchResult, len(s.accounts))
	var wg sync.WaitGroup
	for i, account := range s.accounts {
		wg.Add(1)
		go func(slot int, account domain.AdAccount) {
			defer wg.Done()
			results[slot] = s.fetcher.Fetch(ctx, account, start, end)
		}(i, account)
	}
	wg.Wait()

	rowsByAccount := make(map[string][]domain.RawInsightRow, len(results))
	for _, result := range results {
		rowsByAccount[result.AccountRef] = result.Rows
		summary.RowsFetched += len(result.Rows)
		summary.WindowsFailed += len(result.FailedWindows)
		for _, failure := range result.FailedWindows {
			summary.AddFailure("fetch",
				fmt.Sprintf("%s %s", result.AccountRef, failure.Window.Start.Format("2006-01-02")),
				failure.Err.Error())
		}
	}

	// single-threaded reduction: no shared mutable state past this point
	merged := s.merger.Merge(rowsByAccount)
	summary.RowsMerged = len(merged)
	s.metrics.RecordRowsProcessed("merge", len(merged))

	records := s.enrich(ctx, merged, summary)

	s.writeRecords(ctx, records, summary)

	finished := s.now()
	summary.FinishedAt = &finished
	summary.State = s.finalState(summary)
	s.metrics.RecordSyncRun(string(summary.State), finished.Sub(began))

	if err := s.runs.Save(ctx, summary); err != nil {
		log.WithError(err).Error("Failed to record run summary")
	}

	log.WithFields(map[string]any{
		"state":           string(summary.State),
		"rows_fetched":    summary.RowsFetched,
		"rows_merged":     summary.RowsMerged,
		"records_written": summary.RecordsWritten,
		"records_failed":  summary.RecordsFailed,
		"windows_failed":  summary.WindowsFailed,
		"duration":        finished.Sub(began).String(),
	}).Info("Sync run finished")

	return summary, nil
}

// enrich turns merged rows into storable records: parsed attributes per row,
// one thumbnail per distinct creative, one status per logical ad name.
func (s *SyncService) enrich(ctx context.Context, merged []domain.RawInsightRow, summary *domain.RunSummary) []domain.AdRecord {
	thumbnails := s.resolveThumbnails(ctx, merged, summary)
	statuses := s.classifyStatuses(ctx, merged)

	records := make([]domain.AdRecord, 0, len(merged))
	for _, row := range merged {
		attrs, err := s.parser.Parse(row.AdName, row.CampaignName, row.WindowEnd)
		if err != nil {
			// ambiguous names still produce safe defaults; count and keep going
			var ambiguous *domain.ParseAmbiguousError
			if errors.As(err, &ambiguous) {
				s.metrics.RecordUnitFailure("parse", "ambiguous")
				summary.AddFailure("parse", row.AdName, "matched neither parsing phase")
			}
		}

		records = append(records, domain.AdRecord{
			AdID:          row.AdID,
			AdName:        row.AdName,
			CampaignID:    row.CampaignID,
			CampaignName:  row.CampaignName,
			CreativeRef:   row.CreativeRef,
			WindowStart:   row.WindowStart,
			WindowEnd:     row.WindowEnd,
			Spend:         row.Spend,
			Impressions:   row.Impressions,
			Clicks:        row.Clicks,
			LinkClicks:    row.LinkClicks,
			Purchases:     row.Purchases,
			PurchaseValue: row.PurchaseValue,
			Attributes:    attrs,
			Thumbnail:     thumbnails[row.AdID],
			Status:        statuses[row.AdName],
			SyncedAt:      s.now(),
		})
	}

	s.metrics.RecordRowsProcessed("enrich", len(records))
	return records
}

// resolveThumbnails resolves once per distinct creative reference, in small
// batches with a pause in between to stay under the per-minute call budget.
// Already-stored results of a better tier are kept: resolution never
// regresses.
func (s *SyncService) resolveThumbnails(ctx context.Context, merged []domain.RawInsightRow, summary *domain.RunSummary) map[string]domain.ThumbnailResult {
	type adCreative struct {
		adID        string
		creativeRef string
	}

	seen := map[string]bool{}
	var pending []adCreative
	adIDs := make([]string, 0, len(merged))
	for _, row := range merged {
		if seen[row.AdID] {
			continue
		}
		seen[row.AdID] = true
		adIDs = append(adIDs, row.AdID)
		pending = append(pending, adCreative{adID: row.AdID, creativeRef: row.CreativeRef})
	}

	stored, err := s.records.GetThumbnailsByAdID(ctx, adIDs)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Could not load stored thumbnails, resolving fresh")
		stored = map[string]domain.ThumbnailResult{}
	}

	byCreative := map[string]domain.ThumbnailResult{}
	resolved := make(map[string]domain.ThumbnailResult, len(pending))

	for i, item := range pending {
		if i > 0 && i%s.thumbnailBatchSize == 0 {
			if err := s.pause(ctx, s.thumbnailPause); err != nil {
				s.logger.WithContext(ctx).WithError(err).Warn("Thumbnail batch pause interrupted")
				break
			}
		}

		var result domain.ThumbnailResult
		if cached, ok := byCreative[item.creativeRef]; ok && item.creativeRef != "" {
			result = cached
		} else {
			result = s.resolver.Resolve(ctx, item.adID, item.creativeRef)
			if item.creativeRef != "" {
				byCreative[item.creativeRef] = result
			}
		}

		// keep the stored result when this run could only do worse
		if existing, ok := stored[item.adID]; ok && !result.BetterThan(existing) {
			result = existing
		}

		resolved[item.adID] = result
		if result.Empty() {
			summary.ThumbnailsMissing++
			summary.AddFailure("thumbnail", item.adID, "no tier available")
		} else {
			summary.ThumbnailsResolved++
		}
	}

	return resolved
}

// classifyStatuses groups rows by logical ad (ad name across campaigns) and
// classifies each group against its stored status.
func (s *SyncService) classifyStatuses(ctx context.Context, merged []domain.RawInsightRow) map[string]domain.AdStatus {
	rowsByName := map[string][]domain.RawInsightRow{}
	names := make([]string, 0)
	for _, row := range merged {
		if _, ok := rowsByName[row.AdName]; !ok {
			names = append(names, row.AdName)
		}
		rowsByName[row.AdName] = append(rowsByName[row.AdName], row)
	}

	existing, err := s.records.GetStatusesByAdName(ctx, names)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Could not load stored statuses, classifying without history")
		existing = map[string]domain.AdStatus{}
	}

	now := s.now()
	statuses := make(map[string]domain.AdStatus, len(names))
	for _, name := range names {
		var prior *domain.AdStatus
		if status, ok := existing[name]; ok {
			prior = &status
		}
		statuses[name] = s.classifier.Classify(name, rowsByName[name], prior, now)
	}
	return statuses
}

// writeRecords upserts in batches. A failed batch is a hard failure for its
// rows only; earlier batches stay committed.
func (s *SyncService) writeRecords(ctx context.Context, records []domain.AdRecord, summary *domain.RunSummary) {
	for offset := 0; offset < len(records); offset += s.upsertBatchSize {
		end := offset + s.upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[offset:end]

		if err := s.records.UpsertRecords(ctx, batch); err != nil {
			s.metrics.RecordStorageWrite("failed", len(batch))
			summary.RecordsFailed += len(batch)
			summary.AddFailure("storage", fmt.Sprintf("batch %d-%d", offset, end), err.Error())
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"batch_start": offset,
				"batch_end":   end,
			}).Error("Storage write failed for batch")
			continue
		}
		s.metrics.RecordStorageWrite("success", len(batch))
		summary.RecordsWritten += len(batch)
	}
}

// finalState grades the run: everything produced was written -> completed,
// something was skipped or failed -> partial, nothing written at all while
// failures exist -> failed.
func (s *SyncService) finalState(summary *domain.RunSummary) domain.RunState {
	if summary.RecordsWritten == 0 && len(summary.Failures) > 0 {
		return domain.RunStateFailed
	}
	if len(summary.Failures) > 0 {
		return domain.RunStatePartial
	}
	return domain.RunStateCompleted
}
