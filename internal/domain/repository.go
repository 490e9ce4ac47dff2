package domain

import (
	"context"
	"time"
)

// interface for the persisted ad-record table. Upsert semantics on
// (ad_id, window_start, window_end); the pipeline never deletes.
type AdRecordRepository interface {
	UpsertRecords(ctx context.Context, records []AdRecord) error
	GetStatusesByAdName(ctx context.Context, adNames []string) (map[string]AdStatus, error)
	GetThumbnailsByAdID(ctx context.Context, adIDs []string) (map[string]ThumbnailResult, error)
}

// interface for run-summary records, the async trigger's side channel
type RunRepository interface {
	Save(ctx context.Context, summary *RunSummary) error
	Get(ctx context.Context, runID string) (*RunSummary, error)
}

// interface for the ad-platform insights read API
type InsightsAPI interface {
	FetchInsights(ctx context.Context, account AdAccount, window ReportingWindow) ([]RawInsightRow, error)
}

// creative image-crop variants keyed by crop spec (e.g. "600x600")
type ImageCrops map[string]string

// Creative is the creative/image sub-API's view of one ad creative.
type Creative struct {
	ID           string
	ImageHash    string
	ImageURL     string
	ThumbnailURL string
	StoryPicture string
}

// interface for the creative/image sub-API
type CreativeAPI interface {
	GetCreative(ctx context.Context, creativeRef string) (*Creative, error)
	GetImageCrops(ctx context.Context, creativeRef string) (ImageCrops, error)
	GetAccountImageURL(ctx context.Context, imageHash string) (string, error)
}

// interface for the sync pipeline as the delivery layer sees it
type SyncRunner interface {
	Run(ctx context.Context, runID string, start, end time.Time) (*RunSummary, error)
}
