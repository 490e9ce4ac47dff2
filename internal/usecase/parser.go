package usecase

import (
	"regexp"
	"strings"
	"time"

	"adsync/internal/domain"
	"adsync/pkg/logger"
)

// structured ad names: "date - category - product - color - content_type - handle - format - free_text"
const (
	nameDelimiter         = " - "
	structuredFieldCount  = 7 // minimum fields for a structured match; trailing free text may add more
	structuredFormatIndex = 6
)

var formatTokens = map[string]domain.AdFormat{
	"video":      domain.FormatVideo,
	"static":     domain.FormatStatic,
	"gif":        domain.FormatGIF,
	"carousel":   domain.FormatCarousel,
	"collection": domain.FormatCollection,
	"image":      domain.FormatImage,
}

// date formats that show up in hand-typed ad names
var launchDateFormats = []string{
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
	"1.2.2006",
}

// deterministic scan order for the fallback format sniff; multi-asset
// formats first so "Carousel Video" resolves to Carousel
var heuristicFormatOrder = []string{"carousel", "collection", "gif", "video", "static", "image"}

var datePattern = regexp.MustCompile(`\b(\d{1,4}[/.\-]\d{1,2}[/.\-]\d{1,4})\b`)

// AdNameParser turns a free-text ad name into structured attributes. The
// structured-format phase takes absolute precedence over the heuristic
// phase: fallback logic must never override a correct structured match.
type AdNameParser struct {
	rules  domain.CategoryRuleSet
	logger *logger.Logger
}

// creates a parser bound to an explicit rule table
func NewAdNameParser(rules domain.CategoryRuleSet, log *logger.Logger) *AdNameParser {
	return &AdNameParser{rules: rules, logger: log}
}

// Parse derives attributes from adName and campaignName. windowEnd anchors
// the days_live calculation. The returned error is only ever a
// *domain.ParseAmbiguousError signalling that neither phase matched
// confidently; the attributes are still safe to store.
func (p *AdNameParser) Parse(adName, campaignName string, windowEnd time.Time) (domain.ParsedAttributes, error) {
	attrs := domain.ParsedAttributes{
		Category:             domain.CategoryUncategorized,
		CampaignOptimization: optimizationFor(campaignName),
		CleanedName:          cleanName(adName),
	}

	if p.parseStructured(adName, &attrs) {
		attrs.Structured = true
		p.fillDaysLive(&attrs, windowEnd)
		return attrs, nil
	}

	p.parseHeuristic(adName, campaignName, &attrs)
	p.fillDaysLive(&attrs, windowEnd)

	if attrs.Category == domain.CategoryUncategorized && attrs.Format == "" {
		return attrs, &domain.ParseAmbiguousError{AdName: adName}
	}
	return attrs, nil
}

// parseStructured attempts the fixed-template phase. A match requires the
// full field count and a recognizable format token in the format slot.
func (p *AdNameParser) parseStructured(adName string, attrs *domain.ParsedAttributes) bool {
	fields := strings.Split(adName, nameDelimiter)
	if len(fields) < structuredFieldCount {
		return false
	}

	format, ok := formatTokens[strings.ToLower(strings.TrimSpace(fields[structuredFormatIndex]))]
	if !ok {
		return false
	}

	launch := parseLaunchDate(strings.TrimSpace(fields[0]))
	if launch == nil {
		return false
	}

	attrs.LaunchDate = launch
	attrs.Category = p.canonicalCategory(strings.TrimSpace(fields[1]))
	attrs.Product = strings.TrimSpace(fields[2])
	attrs.Color = strings.TrimSpace(fields[3])
	attrs.ContentType = strings.TrimSpace(fields[4])
	attrs.Handle = strings.TrimSpace(fields[5])
	attrs.Format = format
	return true
}

// canonicalCategory maps a structured category token onto the rule table's
// canonical name. An unrecognized token is kept verbatim rather than pushed
// through full-name heuristics: the structured field is authoritative.
func (p *AdNameParser) canonicalCategory(token string) string {
	if token == "" {
		return domain.CategoryUncategorized
	}
	if category := p.rules.Categorize(token); category != domain.CategoryUncategorized {
		return category
	}
	return token
}

// parseHeuristic is the fallback phase: ordered keyword rules over the full
// ad name, campaign-name rules when the name yields nothing, and best-effort
// format and launch-date scans.
func (p *AdNameParser) parseHeuristic(adName, campaignName string, attrs *domain.ParsedAttributes) {
	attrs.Category = p.rules.Categorize(adName)
	if attrs.Category == domain.CategoryUncategorized && campaignName != "" {
		attrs.Category = p.rules.Categorize(campaignName)
	}

	lower := strings.ToLower(adName)
	for _, token := range heuristicFormatOrder {
		if containsWord(lower, token) {
			attrs.Format = formatTokens[token]
			break
		}
	}

	if match := datePattern.FindString(adName); match != "" {
		attrs.LaunchDate = parseLaunchDate(match)
	}
}

func (p *AdNameParser) fillDaysLive(attrs *domain.ParsedAttributes, windowEnd time.Time) {
	if attrs.LaunchDate == nil || windowEnd.IsZero() {
		return
	}
	days := int(windowEnd.Sub(*attrs.LaunchDate).Hours() / 24)
	if days < 0 {
		days = 0
	}
	attrs.DaysLive = &days
}

func parseLaunchDate(s string) *time.Time {
	for _, format := range launchDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	return nil
}

// optimizationFor derives the campaign optimization flag independently of
// which parsing phase resolved the other fields.
func optimizationFor(campaignName string) domain.CampaignOptimization {
	if strings.Contains(strings.ToLower(campaignName), "incrementality") {
		return domain.OptimizationIncremental
	}
	return domain.OptimizationStandard
}

func cleanName(adName string) string {
	return strings.Join(strings.Fields(adName), " ")
}

// containsWord matches token as a whole word so "gift" does not fire inside
// "gifted" creator names
func containsWord(lower, token string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], token)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(token)
		beforeOK := start == 0 || !isWordByte(lower[start-1])
		afterOK := end == len(lower) || !isWordByte(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
