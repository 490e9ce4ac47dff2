package usecase

import (
	"testing"

	"adsync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *AdNameParser {
	return NewAdNameParser(domain.DefaultCategoryRules(), testLogger)
}

func TestParseStructuredName(t *testing.T) {
	parser := newTestParser()

	attrs, err := parser.Parse(
		"7/9/2025 - Tumbling Mat - Folklore - Fog - Whitelist - BrookeKnuth - Video - free text",
		"Prospecting Campaign",
		day("2025-07-20"),
	)

	require.NoError(t, err)
	assert.True(t, attrs.Structured)
	assert.Equal(t, "Tumbling Mats", attrs.Category)
	assert.Equal(t, "Folklore", attrs.Product)
	assert.Equal(t, "Fog", attrs.Color)
	assert.Equal(t, "Whitelist", attrs.ContentType)
	assert.Equal(t, "BrookeKnuth", attrs.Handle)
	assert.Equal(t, domain.FormatVideo, attrs.Format)
	assert.Equal(t, domain.OptimizationStandard, attrs.CampaignOptimization)

	require.NotNil(t, attrs.LaunchDate)
	assert.Equal(t, day("2025-07-09"), *attrs.LaunchDate)
	require.NotNil(t, attrs.DaysLive)
	assert.Equal(t, 11, *attrs.DaysLive)
}

// the structured phase must win even when heuristic rules would place the
// name elsewhere: fallback logic silently overriding structured matches was
// a real production bug
func TestParseStructuredTakesPrecedenceOverHeuristics(t *testing.T) {
	parser := newTestParser()

	// "Play" appears in the free text, but the structured category token
	// says Standing
	attrs, err := parser.Parse(
		"1/2/2025 - Standing Mat - Atlas - Ivory - Dedicated - StudioTeam - Static - Play area refresh",
		"Prospecting",
		day("2025-02-01"),
	)

	require.NoError(t, err)
	assert.True(t, attrs.Structured)
	assert.Equal(t, "Standing Mats", attrs.Category)
	assert.Equal(t, domain.FormatStatic, attrs.Format)
}

func TestParseHeuristicFallback(t *testing.T) {
	parser := newTestParser()

	attrs, err := parser.Parse("Standing Mats Dedicated Video", "Prospecting", day("2025-05-01"))

	require.NoError(t, err)
	assert.False(t, attrs.Structured)
	assert.Equal(t, "Standing Mats", attrs.Category)
	assert.Equal(t, domain.FormatVideo, attrs.Format)
	assert.Nil(t, attrs.LaunchDate)
	assert.Nil(t, attrs.DaysLive)
}

// specificity ordering is part of the contract: a name matching both the
// Play-Furniture and Play-Mats keyword sets must resolve to Play Furniture
func TestParseCategoryPrecedence(t *testing.T) {
	parser := newTestParser()

	attrs, err := parser.Parse("Play Furniture Launch Teaser", "Prospecting", day("2025-05-01"))
	require.NoError(t, err)
	assert.Equal(t, "Play Furniture", attrs.Category)
}

func TestParseUnmatchedNameFallsBackSafely(t *testing.T) {
	parser := newTestParser()

	attrs, err := parser.Parse("completely unrelated creative 123", "Brand Awareness", day("2025-05-01"))

	var ambiguous *domain.ParseAmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, domain.CategoryUncategorized, attrs.Category)
	assert.Empty(t, attrs.Format)
}

func TestParseCategoryDefaultsFromCampaignName(t *testing.T) {
	parser := newTestParser()

	attrs, err := parser.Parse("UGC mashup v3", "Tumbling always-on", day("2025-05-01"))

	require.NoError(t, err)
	assert.Equal(t, "Tumbling Mats", attrs.Category)
}

func TestParseIncrementalityCampaign(t *testing.T) {
	parser := newTestParser()

	attrs, err := parser.Parse("Standing Mats Video", "Q3 Incrementality Test", day("2025-05-01"))

	require.NoError(t, err)
	assert.Equal(t, domain.OptimizationIncremental, attrs.CampaignOptimization)
}

func TestParseDaysLiveFlooredAtZero(t *testing.T) {
	parser := newTestParser()

	// launch date after the window end
	attrs, err := parser.Parse("12/31/2025 Standing Mat teaser video", "Prospecting", day("2025-05-01"))

	require.NoError(t, err)
	require.NotNil(t, attrs.LaunchDate)
	require.NotNil(t, attrs.DaysLive)
	assert.Equal(t, 0, *attrs.DaysLive)
}

func TestParseLaunchDateFormats(t *testing.T) {
	cases := map[string]string{
		"7/9/2025 launch standing mat video": "2025-07-09",
		"2025-07-09 standing mat video":      "2025-07-09",
		"07/09/2025 standing launch video":   "2025-07-09",
	}
	parser := newTestParser()

	for name, expected := range cases {
		attrs, err := parser.Parse(name, "Prospecting", day("2025-08-01"))
		require.NoError(t, err, name)
		require.NotNil(t, attrs.LaunchDate, name)
		assert.Equal(t, day(expected), *attrs.LaunchDate, name)
	}
}

func TestParseCleanedName(t *testing.T) {
	parser := newTestParser()

	attrs, _ := parser.Parse("  Standing   Mats  Video ", "Prospecting", day("2025-05-01"))
	assert.Equal(t, "Standing Mats Video", attrs.CleanedName)
}

func TestParseTooFewFieldsIsNotStructured(t *testing.T) {
	parser := newTestParser()

	attrs, err := parser.Parse("7/9/2025 - Standing Mat - Video", "Prospecting", day("2025-08-01"))
	require.NoError(t, err)
	assert.False(t, attrs.Structured)
	assert.Equal(t, "Standing Mats", attrs.Category)
}
