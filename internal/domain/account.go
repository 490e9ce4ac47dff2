package domain

import "time"

type AccountRole string

const (
	RolePrimary   AccountRole = "primary"
	RoleSecondary AccountRole = "secondary"
)

// one advertiser account, supplied at startup and never mutated
type AdAccount struct {
	AccountRef string      `json:"account_ref"`
	Credential string      `json:"-"`
	Role       AccountRole `json:"role"`
}

// one platform-reported metric tuple for one ad in one reporting window.
// Ephemeral: produced by the fetcher, consumed by the merge/parse steps,
// never persisted as-is.
type RawInsightRow struct {
	AdID            string    `json:"ad_id"`
	AdName          string    `json:"ad_name"`
	CampaignID      string    `json:"campaign_id"`
	CampaignName    string    `json:"campaign_name"`
	CreativeRef     string    `json:"creative_ref"`
	EffectiveStatus string    `json:"effective_status"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	Spend           float64   `json:"spend"`
	Impressions     int64     `json:"impressions"`
	Clicks          int64     `json:"clicks"`
	LinkClicks      int64     `json:"link_clicks"`
	Purchases       int64     `json:"purchases"`
	PurchaseValue   float64   `json:"purchase_value"`
}

// storage identity of a row: same ad reported by two accounts for the same
// window collapses onto one key
type RecordKey struct {
	AdID        string
	WindowStart string
	WindowEnd   string
}

func (r RawInsightRow) Key() RecordKey {
	return RecordKey{
		AdID:        r.AdID,
		WindowStart: r.WindowStart.Format("2006-01-02"),
		WindowEnd:   r.WindowEnd.Format("2006-01-02"),
	}
}

// a 7-day platform-native reporting window
type ReportingWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
