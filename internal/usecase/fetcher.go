package usecase

import (
	"context"
	"errors"
	"time"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
	"adsync/pkg/retry"
)

// WindowFailure records one reporting window that was skipped after retry
// exhaustion or a hard remote error.
type WindowFailure struct {
	Window domain.ReportingWindow
	Err    error
}

// FetchResult carries whatever the fetcher managed to pull. The caller
// decides whether a partial result is acceptable.
type FetchResult struct {
	AccountRef    string
	Rows          []domain.RawInsightRow
	FailedWindows []WindowFailure
}

// AccountFetcher pulls raw insight rows for one advertiser account over a
// date range, one remote call per 7-day window, each wrapped in the
// rate-limit executor. Windows are fetched sequentially: the platform quota
// is per account, so serialization inside an account beats concurrency.
type AccountFetcher struct {
	api      domain.InsightsAPI
	executor *retry.Executor
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewAccountFetcher(api domain.InsightsAPI, executor *retry.Executor, log *logger.Logger, m *metrics.Metrics) *AccountFetcher {
	return &AccountFetcher{api: api, executor: executor, logger: log, metrics: m}
}

// Fetch returns the rows for every window it could read. A window that
// fails after the retry ceiling is recorded and skipped; the remaining
// windows are still fetched.
func (f *AccountFetcher) Fetch(ctx context.Context, account domain.AdAccount, start, end time.Time) FetchResult {
	result := FetchResult{AccountRef: account.AccountRef}
	windows := SegmentWeekly(start, end)

	log := f.logger.WithContext(ctx).WithFields(map[string]any{
		"account": account.AccountRef,
		"windows": len(windows),
	})
	log.Info("Fetching account insights")

	for _, window := range windows {
		var rows []domain.RawInsightRow
		err := f.executor.Execute(ctx, "fetch_insights", func() error {
			var ferr error
			rows, ferr = f.api.FetchInsights(ctx, account, window)
			return ferr
		})
		if err != nil {
			f.metrics.RecordUnitFailure("fetch", errorType(err))
			f.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"account":      account.AccountRef,
				"window_start": window.Start.Format("2006-01-02"),
				"window_end":   window.End.Format("2006-01-02"),
			}).Error("Window fetch failed, skipping")
			result.FailedWindows = append(result.FailedWindows, WindowFailure{Window: window, Err: err})
			continue
		}
		result.Rows = append(result.Rows, rows...)
	}

	f.metrics.RecordRowsProcessed("fetch", len(result.Rows))
	log.WithFields(map[string]any{
		"rows":           len(result.Rows),
		"failed_windows": len(result.FailedWindows),
	}).Info("Account fetch completed")

	return result
}

func errorType(err error) string {
	var rateLimited *domain.RateLimitedError
	var remote *domain.RemoteError
	switch {
	case errors.As(err, &rateLimited):
		return "rate_limited"
	case errors.As(err, &remote):
		return "remote_error"
	default:
		return "unknown"
	}
}
