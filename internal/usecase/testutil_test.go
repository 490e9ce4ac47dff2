package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
	"adsync/pkg/retry"
)

// one registry per test binary: promauto panics on duplicate registration
var (
	testMetrics = metrics.New()
	testLogger  = logger.New("error")
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func testExecutor(maxRetries int) *retry.Executor {
	return retry.NewExecutor(time.Millisecond, 10*time.Millisecond, maxRetries, testLogger, testMetrics, retry.WithSleep(noSleep))
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rateLimitErr() error {
	return &domain.RemoteError{Operation: "test", HTTPStatus: 400, Code: 17, Message: "User request limit reached"}
}

// fakeInsightsAPI serves canned rows per account, with optional per-window
// failures.
type fakeInsightsAPI struct {
	mu       sync.Mutex
	rows     map[string][]domain.RawInsightRow
	failWith map[string]error // keyed by account + window start date
	calls    int
}

func (f *fakeInsightsAPI) FetchInsights(ctx context.Context, account domain.AdAccount, window domain.ReportingWindow) ([]domain.RawInsightRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if err, ok := f.failWith[account.AccountRef+"|"+window.Start.Format("2006-01-02")]; ok {
		return nil, err
	}

	var out []domain.RawInsightRow
	for _, row := range f.rows[account.AccountRef] {
		if !row.WindowStart.Before(window.Start) && !row.WindowStart.After(window.End) {
			out = append(out, row)
		}
	}
	return out, nil
}

// fakeCreativeAPI returns fixed creative data with optional errors per call
type fakeCreativeAPI struct {
	creative    *domain.Creative
	creativeErr error
	crops       domain.ImageCrops
	cropsErr    error
	accountURL  string
	accountErr  error
	cropCalls   int
}

func (f *fakeCreativeAPI) GetCreative(ctx context.Context, creativeRef string) (*domain.Creative, error) {
	if f.creativeErr != nil {
		return nil, f.creativeErr
	}
	if f.creative == nil {
		return &domain.Creative{ID: creativeRef}, nil
	}
	return f.creative, nil
}

func (f *fakeCreativeAPI) GetImageCrops(ctx context.Context, creativeRef string) (domain.ImageCrops, error) {
	f.cropCalls++
	if f.cropsErr != nil {
		return nil, f.cropsErr
	}
	return f.crops, nil
}

func (f *fakeCreativeAPI) GetAccountImageURL(ctx context.Context, imageHash string) (string, error) {
	if f.accountErr != nil {
		return "", f.accountErr
	}
	return f.accountURL, nil
}

// fakeRecordRepo stores records in a map keyed by record identity, matching
// the upsert semantics of the real table.
type fakeRecordRepo struct {
	mu        sync.Mutex
	records   map[domain.RecordKey]domain.AdRecord
	failWrite error
	writes    int
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[domain.RecordKey]domain.AdRecord)}
}

func (f *fakeRecordRepo) UpsertRecords(ctx context.Context, records []domain.AdRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	f.writes++
	for _, rec := range records {
		key := rec.Key()
		if existing, ok := f.records[key]; ok {
			if existing.Status.Source == domain.StatusSourceManual {
				rec.Status = existing.Status
			}
			if existing.Thumbnail.BetterThan(rec.Thumbnail) {
				rec.Thumbnail = existing.Thumbnail
			}
		}
		f.records[key] = rec
	}
	return nil
}

func (f *fakeRecordRepo) GetStatusesByAdName(ctx context.Context, adNames []string) (map[string]domain.AdStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	statuses := map[string]domain.AdStatus{}
	for _, rec := range f.records {
		for _, name := range adNames {
			if rec.AdName == name {
				statuses[name] = rec.Status
			}
		}
	}
	return statuses, nil
}

func (f *fakeRecordRepo) GetThumbnailsByAdID(ctx context.Context, adIDs []string) (map[string]domain.ThumbnailResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	thumbnails := map[string]domain.ThumbnailResult{}
	for _, rec := range f.records {
		for _, adID := range adIDs {
			if rec.AdID == adID && !rec.Thumbnail.Empty() {
				if existing, ok := thumbnails[adID]; !ok || rec.Thumbnail.BetterThan(existing) {
					thumbnails[adID] = rec.Thumbnail
				}
			}
		}
	}
	return thumbnails, nil
}

// fakeRunRepo keeps summaries in a map
type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[string]domain.RunSummary
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string]domain.RunSummary)}
}

func (f *fakeRunRepo) Save(ctx context.Context, summary *domain.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[summary.RunID] = *summary
	return nil
}

func (f *fakeRunRepo) Get(ctx context.Context, runID string) (*domain.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary, ok := f.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return &summary, nil
}
