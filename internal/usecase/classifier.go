package usecase

import (
	"fmt"
	"strings"
	"time"

	"adsync/internal/domain"
	"adsync/pkg/logger"
)

// platform delivery states that count as a live constituent
var activeEffectiveStatuses = map[string]bool{
	"ACTIVE":         true,
	"LIMITED":        true,
	"PENDING_REVIEW": true,
}

// StatusClassifier derives an ad's lifecycle status from all of its rows
// across every campaign it appears in. Campaigns are organizational
// containers that pause the same creative independently, so "is this ad
// dead" only has an answer aggregated across containers.
type StatusClassifier struct {
	logger *logger.Logger
}

func NewStatusClassifier(log *logger.Logger) *StatusClassifier {
	return &StatusClassifier{logger: log}
}

// Classify is a pure function of its inputs. rows must be every current row
// sharing adName, regardless of campaign. existing is the stored status, nil
// for an ad never seen before.
//
// Manual overrides are sticky: a human decision survives every re-sync.
// An ad with any active constituent is never downgraded.
func (c *StatusClassifier) Classify(adName string, rows []domain.RawInsightRow, existing *domain.AdStatus, now time.Time) domain.AdStatus {
	if existing != nil && existing.Source == domain.StatusSourceManual {
		return *existing
	}

	activeCampaigns := 0
	campaigns := map[string]bool{}
	for _, row := range rows {
		campaigns[row.CampaignID] = true
		if isActiveOnPlatform(row.EffectiveStatus) {
			activeCampaigns++
		}
	}

	if len(rows) > 0 && activeCampaigns == 0 {
		if existing != nil && existing.Status == domain.StatusPaused {
			return *existing
		}
		c.logger.WithFields(map[string]any{
			"ad_name":   adName,
			"campaigns": len(campaigns),
		}).Info("Ad paused in every campaign, classifying as paused")
		return domain.AdStatus{
			Status:    domain.StatusPaused,
			Source:    domain.StatusSourceAutomated,
			Reason:    fmt.Sprintf("inactive in all %d campaigns", len(campaigns)),
			UpdatedAt: now,
		}
	}

	// at least one constituent is delivering: never downgrade
	if existing != nil {
		return *existing
	}

	return domain.AdStatus{
		Status:    domain.StatusActive,
		Source:    domain.StatusSourceAutomated,
		Reason:    fmt.Sprintf("delivering in %d of %d campaigns", activeCampaigns, len(campaigns)),
		UpdatedAt: now,
	}
}

func isActiveOnPlatform(effectiveStatus string) bool {
	return activeEffectiveStatuses[strings.ToUpper(effectiveStatus)]
}
