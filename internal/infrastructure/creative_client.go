package infrastructure

import (
	"context"
	"fmt"
	"net/url"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"

	"golang.org/x/time/rate"
)

// CreativeClient implements domain.CreativeAPI against the creative/image
// sub-API: per-creative lookups, image-crop variants and the account image
// library for content-hash matching.
type CreativeClient struct {
	accountRef  string
	accessToken string
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter

	// getJSON is shared with the insights client so error envelopes and
	// pacing behave identically
	transport *PlatformClient
}

func NewCreativeClient(platform *PlatformClient, accountRef, accessToken string, rps float64, log *logger.Logger, m *metrics.Metrics) *CreativeClient {
	return &CreativeClient{
		accountRef:  accountRef,
		accessToken: accessToken,
		logger:      log,
		metrics:     m,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 1),
		transport:   platform,
	}
}

type creativeResponse struct {
	ID           string `json:"id"`
	ImageHash    string `json:"image_hash"`
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	ObjectStory  struct {
		LinkData struct {
			Picture string `json:"picture"`
		} `json:"link_data"`
	} `json:"object_story_spec"`
}

type imageCropsResponse struct {
	ImageCrops map[string][]string `json:"image_crops"`
}

type accountImagesResponse struct {
	Data []struct {
		Hash string `json:"hash"`
		URL  string `json:"url"`
	} `json:"data"`
}

// GetCreative fetches the creative's image fields and story spec.
func (c *CreativeClient) GetCreative(ctx context.Context, creativeRef string) (*domain.Creative, error) {
	params := url.Values{}
	params.Set("fields", "image_hash,image_url,thumbnail_url,object_story_spec{link_data{picture}}")
	params.Set("access_token", c.accessToken)

	requestURL := fmt.Sprintf("%s/%s/%s?%s", c.transport.baseURL, c.transport.apiVersion, creativeRef, params.Encode())

	var resp creativeResponse
	if err := c.get(ctx, "creative", requestURL, &resp); err != nil {
		return nil, err
	}

	return &domain.Creative{
		ID:           resp.ID,
		ImageHash:    resp.ImageHash,
		ImageURL:     resp.ImageURL,
		ThumbnailURL: resp.ThumbnailURL,
		StoryPicture: resp.ObjectStory.LinkData.Picture,
	}, nil
}

// GetImageCrops fetches the creative's multi-size crop variants. The wire
// shape maps a crop spec to [url, ...]; only the first URL matters.
func (c *CreativeClient) GetImageCrops(ctx context.Context, creativeRef string) (domain.ImageCrops, error) {
	params := url.Values{}
	params.Set("fields", "image_crops")
	params.Set("access_token", c.accessToken)

	requestURL := fmt.Sprintf("%s/%s/%s?%s", c.transport.baseURL, c.transport.apiVersion, creativeRef, params.Encode())

	var resp imageCropsResponse
	if err := c.get(ctx, "image_crops", requestURL, &resp); err != nil {
		return nil, err
	}

	crops := make(domain.ImageCrops, len(resp.ImageCrops))
	for spec, urls := range resp.ImageCrops {
		if len(urls) > 0 {
			crops[spec] = urls[0]
		}
	}
	return crops, nil
}

// GetAccountImageURL looks up the original-resolution account image by
// content hash.
func (c *CreativeClient) GetAccountImageURL(ctx context.Context, imageHash string) (string, error) {
	params := url.Values{}
	params.Set("fields", "hash,url")
	params.Set("hashes", fmt.Sprintf(`["%s"]`, imageHash))
	params.Set("access_token", c.accessToken)

	requestURL := fmt.Sprintf("%s/%s/%s/adimages?%s", c.transport.baseURL, c.transport.apiVersion, c.accountRef, params.Encode())

	var resp accountImagesResponse
	if err := c.get(ctx, "account_images", requestURL, &resp); err != nil {
		return "", err
	}

	for _, image := range resp.Data {
		if image.Hash == imageHash {
			return image.URL, nil
		}
	}
	return "", nil
}

func (c *CreativeClient) get(ctx context.Context, api, requestURL string, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return c.transport.getJSON(ctx, api, requestURL, out)
}
