package domain

import "time"

type AdFormat string

const (
	FormatVideo      AdFormat = "Video"
	FormatStatic     AdFormat = "Static"
	FormatGIF        AdFormat = "GIF"
	FormatCarousel   AdFormat = "Carousel"
	FormatCollection AdFormat = "Collection"
	FormatImage      AdFormat = "Image"
)

type CampaignOptimization string

const (
	OptimizationStandard    CampaignOptimization = "Standard"
	OptimizationIncremental CampaignOptimization = "Incremental"
)

// sentinel category for ad names no rule can place
const CategoryUncategorized = "Uncategorized"

// attributes mined from a free-text ad name (and campaign name for the
// optimization flag). Category is never empty: unmatched names resolve to
// CategoryUncategorized.
type ParsedAttributes struct {
	LaunchDate           *time.Time           `json:"launch_date,omitempty"`
	DaysLive             *int                 `json:"days_live,omitempty"`
	Category             string               `json:"category"`
	Product              string               `json:"product,omitempty"`
	Color                string               `json:"color,omitempty"`
	ContentType          string               `json:"content_type,omitempty"`
	Handle               string               `json:"handle,omitempty"`
	Format               AdFormat             `json:"format,omitempty"`
	CampaignOptimization CampaignOptimization `json:"campaign_optimization"`
	CleanedName          string               `json:"cleaned_name"`
	Structured           bool                 `json:"structured"`
}

// ThumbnailTier ranks image quality. Lower value is better; a stored result
// must never be overwritten by a higher-numbered (worse) tier.
type ThumbnailTier int

const (
	TierNone         ThumbnailTier = 0 // no thumbnail resolved
	TierImageCrop    ThumbnailTier = 1
	TierAccountImage ThumbnailTier = 2
	TierStoryPreview ThumbnailTier = 3
	TierImageURL     ThumbnailTier = 4
	TierThumbnailURL ThumbnailTier = 5
)

type ThumbnailResult struct {
	URL          string        `json:"url"`
	Tier         ThumbnailTier `json:"tier"`
	SourceMethod string        `json:"source_method"`
}

func (t ThumbnailResult) Empty() bool {
	return t.URL == "" || t.Tier == TierNone
}

// BetterThan reports whether t is a strictly higher-quality result than
// other. An empty result never beats anything.
func (t ThumbnailResult) BetterThan(other ThumbnailResult) bool {
	if t.Empty() {
		return false
	}
	if other.Empty() {
		return true
	}
	return t.Tier < other.Tier
}

type AdStatusValue string

const (
	StatusActive      AdStatusValue = "active"
	StatusWinner      AdStatusValue = "winner"
	StatusConsidering AdStatusValue = "considering"
	StatusPaused      AdStatusValue = "paused"
)

type StatusSource string

const (
	StatusSourceAutomated StatusSource = "automated"
	StatusSourceManual    StatusSource = "manual"
)

// lifecycle status of a logical ad (keyed by ad name across campaigns)
type AdStatus struct {
	Status    AdStatusValue `json:"status"`
	Source    StatusSource  `json:"source"`
	Reason    string        `json:"reason,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// the unit of storage: one merged row per (ad_id, window) enriched with
// parsed attributes, thumbnail and lifecycle status
type AdRecord struct {
	AdID          string           `json:"ad_id"`
	AdName        string           `json:"ad_name"`
	CampaignID    string           `json:"campaign_id"`
	CampaignName  string           `json:"campaign_name"`
	CreativeRef   string           `json:"creative_ref"`
	WindowStart   time.Time        `json:"window_start"`
	WindowEnd     time.Time        `json:"window_end"`
	Spend         float64          `json:"spend"`
	Impressions   int64            `json:"impressions"`
	Clicks        int64            `json:"clicks"`
	LinkClicks    int64            `json:"link_clicks"`
	Purchases     int64            `json:"purchases"`
	PurchaseValue float64          `json:"purchase_value"`
	Attributes    ParsedAttributes `json:"attributes"`
	Thumbnail     ThumbnailResult  `json:"thumbnail"`
	Status        AdStatus         `json:"status"`
	SyncedAt      time.Time        `json:"synced_at"`
}

func (r AdRecord) Key() RecordKey {
	return RecordKey{
		AdID:        r.AdID,
		WindowStart: r.WindowStart.Format("2006-01-02"),
		WindowEnd:   r.WindowEnd.Format("2006-01-02"),
	}
}
