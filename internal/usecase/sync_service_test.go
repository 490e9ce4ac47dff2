package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsync/internal/domain"
)

type syncFixture struct {
	service  *SyncService
	insights *fakeInsightsAPI
	records  *fakeRecordRepo
	runs     *fakeRunRepo
}

func newSyncFixture(t *testing.T, accounts []domain.AdAccount, insights *fakeInsightsAPI) *syncFixture {
	t.Helper()

	records := newFakeRecordRepo()
	runs := newFakeRunRepo()
	creatives := &fakeCreativeAPI{
		creative: &domain.Creative{ID: "cr-1", ImageURL: "https://cdn.example.com/image.jpg"},
	}

	const (
		thumbnailBatchSize = 2
		upsertBatchSize    = 2
	)
	service := NewSyncService(
		accounts,
		NewAccountFetcher(insights, testExecutor(1), testLogger, testMetrics),
		NewCrossAccountMerger(accounts, testLogger),
		NewAdNameParser(domain.DefaultCategoryRules(), testLogger),
		NewThumbnailResolver(creatives, testExecutor(1), testLogger, testMetrics),
		NewStatusClassifier(testLogger),
		records,
		runs,
		testLogger,
		testMetrics,
		thumbnailBatchSize,
		time.Millisecond,
		upsertBatchSize,
		WithPause(noSleep),
		WithClock(func() time.Time { return day("2024-03-20") }),
	)

	return &syncFixture{service: service, insights: insights, records: records, runs: runs}
}

func primaryOnly() []domain.AdAccount {
	return []domain.AdAccount{{AccountRef: "act_primary", Role: domain.RolePrimary}}
}

func syncRow(adID, adName, windowStart string, spend float64, effectiveStatus string) domain.RawInsightRow {
	start := day(windowStart)
	return domain.RawInsightRow{
		AdID:            adID,
		AdName:          adName,
		CampaignID:      "camp-1",
		CampaignName:    "Prospecting - Play Mats",
		CreativeRef:     "cr-1",
		EffectiveStatus: effectiveStatus,
		WindowStart:     start,
		WindowEnd:       start.AddDate(0, 0, 6),
		Spend:           spend,
		Impressions:     1000,
		Clicks:          50,
	}
}

func TestRunEndToEndCompleted(t *testing.T) {
	insights := &fakeInsightsAPI{
		rows: map[string][]domain.RawInsightRow{
			"act_primary": {
				syncRow("ad-1", "3/4/2024 - Play Mats - Classic - Forest - UGC - jane - Video", "2024-03-04", 120.50, "ACTIVE"),
				syncRow("ad-2", "Standing Mats Dedicated Video", "2024-03-04", 80.00, "ACTIVE"),
			},
		},
	}
	fx := newSyncFixture(t, primaryOnly(), insights)

	summary, err := fx.service.Run(context.Background(), "run-1", day("2024-03-04"), day("2024-03-10"))

	require.NoError(t, err)
	assert.Equal(t, domain.RunStateCompleted, summary.State)
	assert.Equal(t, 2, summary.RowsFetched)
	assert.Equal(t, 2, summary.RowsMerged)
	assert.Equal(t, 2, summary.RecordsWritten)
	assert.Zero(t, summary.RecordsFailed)
	assert.Equal(t, 2, summary.ThumbnailsResolved)
	require.NotNil(t, summary.FinishedAt)

	// the summary is retrievable under its run id
	saved, err := fx.runs.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateCompleted, saved.State)

	// structured name parsed, heuristic name categorized
	rec1 := fx.records.records[domain.RecordKey{AdID: "ad-1", WindowStart: "2024-03-04", WindowEnd: "2024-03-10"}]
	assert.True(t, rec1.Attributes.Structured)
	assert.Equal(t, "Play Mats", rec1.Attributes.Category)
	assert.Equal(t, domain.FormatVideo, rec1.Attributes.Format)

	rec2 := fx.records.records[domain.RecordKey{AdID: "ad-2", WindowStart: "2024-03-04", WindowEnd: "2024-03-10"}]
	assert.False(t, rec2.Attributes.Structured)
	assert.Equal(t, "Standing Mats", rec2.Attributes.Category)
	assert.Equal(t, domain.StatusActive, rec2.Status.Status)
	assert.Equal(t, "https://cdn.example.com/image.jpg", rec2.Thumbnail.URL)
}

func TestRunIsIdempotent(t *testing.T) {
	insights := &fakeInsightsAPI{
		rows: map[string][]domain.RawInsightRow{
			"act_primary": {
				syncRow("ad-1", "3/4/2024 - Play Mats - Classic - Forest - UGC - jane - Video", "2024-03-04", 120.50, "ACTIVE"),
			},
		},
	}
	fx := newSyncFixture(t, primaryOnly(), insights)

	first, err := fx.service.Run(context.Background(), "run-1", day("2024-03-04"), day("2024-03-10"))
	require.NoError(t, err)
	second, err := fx.service.Run(context.Background(), "run-2", day("2024-03-04"), day("2024-03-10"))
	require.NoError(t, err)

	assert.Equal(t, domain.RunStateCompleted, first.State)
	assert.Equal(t, domain.RunStateCompleted, second.State)

	// same window, same ad: one record, not two
	assert.Len(t, fx.records.records, 1)
	rec := fx.records.records[domain.RecordKey{AdID: "ad-1", WindowStart: "2024-03-04", WindowEnd: "2024-03-10"}]
	assert.Equal(t, 120.50, rec.Spend)
	assert.Equal(t, "Play Mats", rec.Attributes.Category)
}

func TestRunManualStatusSurvivesResync(t *testing.T) {
	insights := &fakeInsightsAPI{
		rows: map[string][]domain.RawInsightRow{
			"act_primary": {
				syncRow("ad-1", "Play Couch Launch Video", "2024-03-04", 50, "PAUSED"),
			},
		},
	}
	fx := newSyncFixture(t, primaryOnly(), insights)

	// seed a stored record carrying a human decision
	manual := domain.AdStatus{
		Status:    domain.StatusWinner,
		Source:    domain.StatusSourceManual,
		Reason:    "promoted after creative review",
		UpdatedAt: day("2024-03-01"),
	}
	err := fx.records.UpsertRecords(context.Background(), []domain.AdRecord{{
		AdID:        "ad-1",
		AdName:      "Play Couch Launch Video",
		WindowStart: day("2024-03-04"),
		WindowEnd:   day("2024-03-10"),
		Status:      manual,
	}})
	require.NoError(t, err)

	summary, err := fx.service.Run(context.Background(), "run-1", day("2024-03-04"), day("2024-03-10"))
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateCompleted, summary.State)

	rec := fx.records.records[domain.RecordKey{AdID: "ad-1", WindowStart: "2024-03-04", WindowEnd: "2024-03-10"}]
	assert.Equal(t, manual, rec.Status, "manual status must survive an automated re-sync")
}

func TestRunPartialOnWindowFailure(t *testing.T) {
	insights := &fakeInsightsAPI{
		rows: map[string][]domain.RawInsightRow{
			"act_primary": {
				syncRow("ad-1", "Play Couch Launch Video", "2024-03-04", 50, "ACTIVE"),
				syncRow("ad-2", "Gift Card Promo Static", "2024-03-11", 30, "ACTIVE"),
			},
		},
		failWith: map[string]error{
			"act_primary|2024-03-11": rateLimitErr(),
		},
	}
	fx := newSyncFixture(t, primaryOnly(), insights)

	summary, err := fx.service.Run(context.Background(), "run-1", day("2024-03-04"), day("2024-03-17"))

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatePartial, summary.State)
	assert.Equal(t, 1, summary.WindowsFailed)
	assert.Equal(t, 1, summary.RowsFetched)
	assert.Equal(t, 1, summary.RecordsWritten)
	require.NotEmpty(t, summary.Failures)
	assert.Equal(t, "fetch", summary.Failures[0].Stage)
	assert.Equal(t, "act_primary 2024-03-11", summary.Failures[0].Unit)
}

func TestRunFailedWhenNothingWritten(t *testing.T) {
	insights := &fakeInsightsAPI{
		rows: map[string][]domain.RawInsightRow{
			"act_primary": {
				syncRow("ad-1", "Play Couch Launch Video", "2024-03-04", 50, "ACTIVE"),
			},
		},
	}
	fx := newSyncFixture(t, primaryOnly(), insights)
	fx.records.failWrite = assert.AnError

	summary, err := fx.service.Run(context.Background(), "run-1", day("2024-03-04"), day("2024-03-10"))

	require.NoError(t, err)
	assert.Equal(t, domain.RunStateFailed, summary.State)
	assert.Zero(t, summary.RecordsWritten)
	assert.Equal(t, 1, summary.RecordsFailed)
}

func TestRunMergesAcrossAccountsPrimaryWins(t *testing.T) {
	accounts := []domain.AdAccount{
		{AccountRef: "act_primary", Role: domain.RolePrimary},
		{AccountRef: "act_secondary", Role: domain.RoleSecondary},
	}
	insights := &fakeInsightsAPI{
		rows: map[string][]domain.RawInsightRow{
			"act_primary":   {syncRow("ad-1", "Play Couch Launch Video", "2024-03-04", 100, "ACTIVE")},
			"act_secondary": {syncRow("ad-1", "Play Couch Launch Video", "2024-03-04", 999, "ACTIVE")},
		},
	}
	fx := newSyncFixture(t, accounts, insights)

	summary, err := fx.service.Run(context.Background(), "run-1", day("2024-03-04"), day("2024-03-10"))

	require.NoError(t, err)
	assert.Equal(t, 2, summary.RowsFetched)
	assert.Equal(t, 1, summary.RowsMerged, "overlapping rows collapse to one")

	rec := fx.records.records[domain.RecordKey{AdID: "ad-1", WindowStart: "2024-03-04", WindowEnd: "2024-03-10"}]
	assert.Equal(t, 100.0, rec.Spend, "primary account's numbers win, never summed")
}

func TestRunAmbiguousNameIsNotFatal(t *testing.T) {
	ambiguous := syncRow("ad-1", "zzz qqq test", "2024-03-04", 10, "ACTIVE")
	ambiguous.CampaignName = "Q1 Awareness Push"
	insights := &fakeInsightsAPI{
		rows: map[string][]domain.RawInsightRow{
			"act_primary": {ambiguous},
		},
	}
	fx := newSyncFixture(t, primaryOnly(), insights)

	summary, err := fx.service.Run(context.Background(), "run-1", day("2024-03-04"), day("2024-03-10"))

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatePartial, summary.State)
	assert.Equal(t, 1, summary.RecordsWritten, "ambiguous rows are still stored with defaults")

	rec := fx.records.records[domain.RecordKey{AdID: "ad-1", WindowStart: "2024-03-04", WindowEnd: "2024-03-10"}]
	assert.Equal(t, domain.CategoryUncategorized, rec.Attributes.Category)
	assert.False(t, rec.Attributes.Structured)
}
