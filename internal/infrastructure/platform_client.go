package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"

	"golang.org/x/time/rate"
)

// the fixed field set requested at ad granularity. The top-level clicks
// field stays raw; true link clicks and purchases come from actions[] and
// action_values[], since the top-level fields count likes and comments and
// inflate cost-per-click badly.
const insightsFields = "ad_id,ad_name,campaign_id,campaign_name,ad_effective_status,spend,impressions,clicks,actions,action_values,creative{id}"

// action types denoting a true link click
var linkClickActionTypes = []string{"link_click"}

// purchase action types in preference order; the first present wins so
// overlapping attribution variants are never summed
var purchaseActionTypes = []string{"omni_purchase", "purchase", "offsite_conversion.fb_pixel_purchase"}

// PlatformClient implements domain.InsightsAPI against the ad platform's
// read API. One instance serves all accounts; pacing is steady-state via a
// token bucket, burst throttling is the executor's job.
type PlatformClient struct {
	client      *http.Client
	baseURL     string
	apiVersion  string
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

func NewPlatformClient(baseURL, apiVersion string, timeout time.Duration, rps float64, log *logger.Logger, m *metrics.Metrics) *PlatformClient {
	return &PlatformClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:     baseURL,
		apiVersion:  apiVersion,
		logger:      log,
		metrics:     m,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// wire shapes

type insightsResponse struct {
	Data   []insightEntry `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type insightEntry struct {
	AdID            string        `json:"ad_id"`
	AdName          string        `json:"ad_name"`
	CampaignID      string        `json:"campaign_id"`
	CampaignName    string        `json:"campaign_name"`
	EffectiveStatus string        `json:"ad_effective_status"`
	Spend           string        `json:"spend"`
	Impressions     string        `json:"impressions"`
	Clicks          string        `json:"clicks"`
	Actions         []actionEntry `json:"actions"`
	ActionValues    []actionEntry `json:"action_values"`
	Creative        struct {
		ID string `json:"id"`
	} `json:"creative"`
	DateStart string `json:"date_start"`
	DateStop  string `json:"date_stop"`
}

type actionEntry struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
		Subcode int    `json:"error_subcode"`
	} `json:"error"`
}

// FetchInsights pulls one account's rows for one reporting window, following
// pagination until exhausted.
func (c *PlatformClient) FetchInsights(ctx context.Context, account domain.AdAccount, window domain.ReportingWindow) ([]domain.RawInsightRow, error) {
	params := url.Values{}
	params.Set("fields", insightsFields)
	params.Set("level", "ad")
	params.Set("time_increment", "7")
	params.Set("time_range", fmt.Sprintf(`{"since":"%s","until":"%s"}`,
		window.Start.Format("2006-01-02"), window.End.Format("2006-01-02")))
	params.Set("access_token", account.Credential)

	requestURL := fmt.Sprintf("%s/%s/%s/insights?%s", c.baseURL, c.apiVersion, account.AccountRef, params.Encode())

	var rows []domain.RawInsightRow
	for requestURL != "" {
		var page insightsResponse
		if err := c.getJSON(ctx, "insights", requestURL, &page); err != nil {
			return nil, err
		}
		for _, entry := range page.Data {
			rows = append(rows, entry.toRow(window))
		}
		requestURL = page.Paging.Next
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"account":      account.AccountRef,
		"window_start": window.Start.Format("2006-01-02"),
		"rows":         len(rows),
	}).Debug("Fetched insight window")

	return rows, nil
}

func (e insightEntry) toRow(window domain.ReportingWindow) domain.RawInsightRow {
	windowStart, windowEnd := window.Start, window.End
	if t, err := time.Parse("2006-01-02", e.DateStart); err == nil {
		windowStart = t
	}
	if t, err := time.Parse("2006-01-02", e.DateStop); err == nil {
		windowEnd = t
	}

	return domain.RawInsightRow{
		AdID:            e.AdID,
		AdName:          e.AdName,
		CampaignID:      e.CampaignID,
		CampaignName:    e.CampaignName,
		CreativeRef:     e.Creative.ID,
		EffectiveStatus: e.EffectiveStatus,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
		Spend:           parseFloat(e.Spend),
		Impressions:     parseInt(e.Impressions),
		Clicks:          parseInt(e.Clicks),
		LinkClicks:      scanActions(e.Actions, linkClickActionTypes),
		Purchases:       scanActions(e.Actions, purchaseActionTypes),
		PurchaseValue:   scanActionValues(e.ActionValues, purchaseActionTypes),
	}
}

// scanActions returns the count for the first action type present, in
// preference order.
func scanActions(actions []actionEntry, types []string) int64 {
	for _, actionType := range types {
		for _, action := range actions {
			if action.ActionType == actionType {
				return parseInt(action.Value)
			}
		}
	}
	return 0
}

func scanActionValues(values []actionEntry, types []string) float64 {
	for _, actionType := range types {
		for _, value := range values {
			if value.ActionType == actionType {
				return parseFloat(value.Value)
			}
		}
	}
	return 0
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt(s string) int64 {
	i, _ := strconv.ParseInt(s, 10, 64)
	return i
}

// getJSON performs one paced GET and decodes the response, mapping platform
// error envelopes onto *domain.RemoteError so retryability is classifiable.
func (c *PlatformClient) getJSON(ctx context.Context, api, requestURL string, out any) error {
	start := time.Now()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		c.metrics.RecordPlatformAPICall(api, "request_creation", time.Since(start))
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordPlatformAPICall(api, "network_error", time.Since(start))
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordPlatformAPICall(api, "read_body", time.Since(start))
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordPlatformAPICall(api, fmt.Sprintf("error_%d", resp.StatusCode), time.Since(start))
		return platformError(api, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.metrics.RecordPlatformAPICall(api, "json_parse", time.Since(start))
		return fmt.Errorf("failed to parse %s response: %w", api, err)
	}

	c.metrics.RecordPlatformAPICall(api, "success", time.Since(start))
	return nil
}

func platformError(operation string, statusCode int, body []byte) error {
	var envelope apiErrorResponse
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" {
		return &domain.RemoteError{
			Operation:  operation,
			HTTPStatus: statusCode,
			Message:    fmt.Sprintf("unexpected status %d", statusCode),
		}
	}
	return &domain.RemoteError{
		Operation:  operation,
		HTTPStatus: statusCode,
		Code:       envelope.Error.Code,
		Subcode:    envelope.Error.Subcode,
		Message:    envelope.Error.Message,
	}
}
