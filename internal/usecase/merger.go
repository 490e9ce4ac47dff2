package usecase

import (
	"math"
	"sort"

	"adsync/internal/domain"
	"adsync/pkg/logger"
)

// spend deltas above this are logged as merge conflicts
const conflictSpendTolerance = 0.01

// CrossAccountMerger deduplicates rows reported by multiple accounts. The
// same creative can be dual-managed, so a key seen from two accounts is
// duplicate reporting of one ad, never additive: summing would double-count
// spend. The primary account's row wins deterministically.
type CrossAccountMerger struct {
	roles  map[string]domain.AccountRole
	logger *logger.Logger
}

func NewCrossAccountMerger(accounts []domain.AdAccount, log *logger.Logger) *CrossAccountMerger {
	roles := make(map[string]domain.AccountRole, len(accounts))
	for _, account := range accounts {
		roles[account.AccountRef] = account.Role
	}
	return &CrossAccountMerger{roles: roles, logger: log}
}

// Merge collapses rows from all accounts onto one row per
// (ad_id, window_start, window_end). Output order is deterministic.
func (m *CrossAccountMerger) Merge(rowsByAccount map[string][]domain.RawInsightRow) []domain.RawInsightRow {
	accountRefs := make([]string, 0, len(rowsByAccount))
	for ref := range rowsByAccount {
		accountRefs = append(accountRefs, ref)
	}
	sort.Strings(accountRefs)

	chosen := make(map[domain.RecordKey]domain.RawInsightRow)
	chosenFrom := make(map[domain.RecordKey]string)

	for _, ref := range accountRefs {
		for _, row := range rowsByAccount[ref] {
			key := row.Key()
			existing, seen := chosen[key]
			if !seen {
				chosen[key] = row
				chosenFrom[key] = ref
				continue
			}

			if math.Abs(existing.Spend-row.Spend) > conflictSpendTolerance {
				m.logger.WithFields(map[string]any{
					"ad_id":         row.AdID,
					"window_start":  key.WindowStart,
					"kept_account":  chosenFrom[key],
					"kept_spend":    existing.Spend,
					"dropped_spend": row.Spend,
					"other_account": ref,
				}).Warn("Merge conflict: duplicate ad reported with different spend")
			}

			// primary replaces whatever was seen first; otherwise first wins
			if m.roles[ref] == domain.RolePrimary && m.roles[chosenFrom[key]] != domain.RolePrimary {
				chosen[key] = row
				chosenFrom[key] = ref
			}
		}
	}

	merged := make([]domain.RawInsightRow, 0, len(chosen))
	for _, row := range chosen {
		merged = append(merged, row)
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].WindowStart.Equal(merged[j].WindowStart) {
			return merged[i].WindowStart.Before(merged[j].WindowStart)
		}
		return merged[i].AdID < merged[j].AdID
	})
	return merged
}
