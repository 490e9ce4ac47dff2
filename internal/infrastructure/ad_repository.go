package infrastructure

import (
	"context"
	"fmt"
	"time"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const adRecordsSchema = `
CREATE TABLE IF NOT EXISTS ad_records (
	ad_id                 text        NOT NULL,
	reporting_starts      date        NOT NULL,
	reporting_ends        date        NOT NULL,
	ad_name               text        NOT NULL,
	cleaned_name          text        NOT NULL DEFAULT '',
	campaign_id           text        NOT NULL DEFAULT '',
	campaign_name         text        NOT NULL DEFAULT '',
	creative_ref          text        NOT NULL DEFAULT '',
	spend                 numeric     NOT NULL DEFAULT 0,
	impressions           bigint      NOT NULL DEFAULT 0,
	clicks                bigint      NOT NULL DEFAULT 0,
	link_clicks           bigint      NOT NULL DEFAULT 0,
	purchases             bigint      NOT NULL DEFAULT 0,
	purchase_value        numeric     NOT NULL DEFAULT 0,
	launch_date           date,
	days_live             integer,
	category              text        NOT NULL DEFAULT 'Uncategorized',
	product               text        NOT NULL DEFAULT '',
	color                 text        NOT NULL DEFAULT '',
	content_type          text        NOT NULL DEFAULT '',
	handle                text        NOT NULL DEFAULT '',
	format                text        NOT NULL DEFAULT '',
	campaign_optimization text        NOT NULL DEFAULT 'Standard',
	thumbnail_url         text        NOT NULL DEFAULT '',
	thumbnail_tier        integer     NOT NULL DEFAULT 0,
	thumbnail_source      text        NOT NULL DEFAULT '',
	status                text        NOT NULL DEFAULT 'active',
	status_source         text        NOT NULL DEFAULT 'automated',
	status_reason         text        NOT NULL DEFAULT '',
	status_updated_at     timestamptz NOT NULL DEFAULT now(),
	synced_at             timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (ad_id, reporting_starts, reporting_ends)
)`

// upsert keyed on (ad_id, reporting_starts, reporting_ends). Re-derived
// attributes overwrite prior values on every run, with two exceptions:
// a manual status is sticky, and an already-stored thumbnail of a better
// (lower) tier is never replaced by a worse one.
const upsertRecordSQL = `
INSERT INTO ad_records (
	ad_id, reporting_starts, reporting_ends, ad_name, cleaned_name,
	campaign_id, campaign_name, creative_ref,
	spend, impressions, clicks, link_clicks, purchases, purchase_value,
	launch_date, days_live, category, product, color, content_type, handle,
	format, campaign_optimization,
	thumbnail_url, thumbnail_tier, thumbnail_source,
	status, status_source, status_reason, status_updated_at, synced_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
	$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31
)
ON CONFLICT (ad_id, reporting_starts, reporting_ends) DO UPDATE SET
	ad_name               = EXCLUDED.ad_name,
	cleaned_name          = EXCLUDED.cleaned_name,
	campaign_id           = EXCLUDED.campaign_id,
	campaign_name         = EXCLUDED.campaign_name,
	creative_ref          = EXCLUDED.creative_ref,
	spend                 = EXCLUDED.spend,
	impressions           = EXCLUDED.impressions,
	clicks                = EXCLUDED.clicks,
	link_clicks           = EXCLUDED.link_clicks,
	purchases             = EXCLUDED.purchases,
	purchase_value        = EXCLUDED.purchase_value,
	launch_date           = EXCLUDED.launch_date,
	days_live             = EXCLUDED.days_live,
	category              = EXCLUDED.category,
	product               = EXCLUDED.product,
	color                 = EXCLUDED.color,
	content_type          = EXCLUDED.content_type,
	handle                = EXCLUDED.handle,
	format                = EXCLUDED.format,
	campaign_optimization = EXCLUDED.campaign_optimization,
	thumbnail_url = CASE
		WHEN ad_records.thumbnail_tier > 0
		 AND (EXCLUDED.thumbnail_tier = 0 OR EXCLUDED.thumbnail_tier > ad_records.thumbnail_tier)
		THEN ad_records.thumbnail_url ELSE EXCLUDED.thumbnail_url END,
	thumbnail_tier = CASE
		WHEN ad_records.thumbnail_tier > 0
		 AND (EXCLUDED.thumbnail_tier = 0 OR EXCLUDED.thumbnail_tier > ad_records.thumbnail_tier)
		THEN ad_records.thumbnail_tier ELSE EXCLUDED.thumbnail_tier END,
	thumbnail_source = CASE
		WHEN ad_records.thumbnail_tier > 0
		 AND (EXCLUDED.thumbnail_tier = 0 OR EXCLUDED.thumbnail_tier > ad_records.thumbnail_tier)
		THEN ad_records.thumbnail_source ELSE EXCLUDED.thumbnail_source END,
	status = CASE WHEN ad_records.status_source = 'manual'
		THEN ad_records.status ELSE EXCLUDED.status END,
	status_source = CASE WHEN ad_records.status_source = 'manual'
		THEN ad_records.status_source ELSE EXCLUDED.status_source END,
	status_reason = CASE WHEN ad_records.status_source = 'manual'
		THEN ad_records.status_reason ELSE EXCLUDED.status_reason END,
	status_updated_at = CASE WHEN ad_records.status_source = 'manual'
		THEN ad_records.status_updated_at ELSE EXCLUDED.status_updated_at END,
	synced_at = EXCLUDED.synced_at`

// PostgresAdRepository implements domain.AdRecordRepository on a single
// upsert table.
type PostgresAdRepository struct {
	pool    *pgxpool.Pool
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewPostgresAdRepository(ctx context.Context, dsn string, log *logger.Logger, m *metrics.Metrics) (*PostgresAdRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	repo := &PostgresAdRepository{pool: pool, logger: log, metrics: m}
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *PostgresAdRepository) ensureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, adRecordsSchema); err != nil {
		return fmt.Errorf("failed to ensure ad_records schema: %w", err)
	}
	return nil
}

func (r *PostgresAdRepository) Close() {
	r.pool.Close()
}

// UpsertRecords writes one batch. The batch is all-or-nothing at the
// pgx.Batch level; failures surface as *domain.StorageWriteError.
func (r *PostgresAdRepository) UpsertRecords(ctx context.Context, records []domain.AdRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertRecordSQL,
			rec.AdID,
			rec.WindowStart,
			rec.WindowEnd,
			rec.AdName,
			rec.Attributes.CleanedName,
			rec.CampaignID,
			rec.CampaignName,
			rec.CreativeRef,
			rec.Spend,
			rec.Impressions,
			rec.Clicks,
			rec.LinkClicks,
			rec.Purchases,
			rec.PurchaseValue,
			rec.Attributes.LaunchDate,
			rec.Attributes.DaysLive,
			rec.Attributes.Category,
			rec.Attributes.Product,
			rec.Attributes.Color,
			rec.Attributes.ContentType,
			rec.Attributes.Handle,
			string(rec.Attributes.Format),
			string(rec.Attributes.CampaignOptimization),
			rec.Thumbnail.URL,
			int(rec.Thumbnail.Tier),
			rec.Thumbnail.SourceMethod,
			string(rec.Status.Status),
			string(rec.Status.Source),
			rec.Status.Reason,
			rec.Status.UpdatedAt,
			rec.SyncedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return &domain.StorageWriteError{Records: len(records), Err: err}
		}
	}

	r.logger.WithContext(ctx).WithField("count", len(records)).Debug("Upserted ad records")
	return nil
}

// GetStatusesByAdName returns the most recently updated status per logical
// ad. The classifier needs these to keep manual overrides sticky.
func (r *PostgresAdRepository) GetStatusesByAdName(ctx context.Context, adNames []string) (map[string]domain.AdStatus, error) {
	if len(adNames) == 0 {
		return map[string]domain.AdStatus{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (ad_name)
			ad_name, status, status_source, status_reason, status_updated_at
		FROM ad_records
		WHERE ad_name = ANY($1)
		ORDER BY ad_name, status_updated_at DESC`, adNames)
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]domain.AdStatus)
	for rows.Next() {
		var name string
		var status domain.AdStatus
		var value, source string
		var updatedAt time.Time
		if err := rows.Scan(&name, &value, &source, &status.Reason, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status row: %w", err)
		}
		status.Status = domain.AdStatusValue(value)
		status.Source = domain.StatusSource(source)
		status.UpdatedAt = updatedAt
		statuses[name] = status
	}
	return statuses, rows.Err()
}

// GetThumbnailsByAdID returns the best stored thumbnail per ad so a re-sync
// never regresses an already-resolved tier.
func (r *PostgresAdRepository) GetThumbnailsByAdID(ctx context.Context, adIDs []string) (map[string]domain.ThumbnailResult, error) {
	if len(adIDs) == 0 {
		return map[string]domain.ThumbnailResult{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (ad_id)
			ad_id, thumbnail_url, thumbnail_tier, thumbnail_source
		FROM ad_records
		WHERE ad_id = ANY($1) AND thumbnail_tier > 0
		ORDER BY ad_id, thumbnail_tier ASC`, adIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query thumbnails: %w", err)
	}
	defer rows.Close()

	thumbnails := make(map[string]domain.ThumbnailResult)
	for rows.Next() {
		var adID string
		var result domain.ThumbnailResult
		var tier int
		if err := rows.Scan(&adID, &result.URL, &tier, &result.SourceMethod); err != nil {
			return nil, fmt.Errorf("failed to scan thumbnail row: %w", err)
		}
		result.Tier = domain.ThumbnailTier(tier)
		thumbnails[adID] = result
	}
	return thumbnails, rows.Err()
}
