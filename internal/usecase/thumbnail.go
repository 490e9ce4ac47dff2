package usecase

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
	"adsync/pkg/retry"
)

// crop specs in descending quality order; the first available wins
var preferredCropSpecs = []string{"1080x1080", "600x600", "400x400", "320x320", "192x192"}

// low-resolution size token the platform bakes into default thumbnail URLs,
// and the best-effort replacement
const (
	lowResToken     = "64x64"
	upgradedToken   = "720x720"
	lowResDimension = "64"
	upgradedDim     = "720"
)

// one fallback tier: a pure lookup that either yields a URL or reports
// unavailability with an empty string
type thumbnailSource struct {
	method string
	tier   domain.ThumbnailTier
	lookup func(ctx context.Context, creativeRef string, creative *domain.Creative) (string, error)
}

// ThumbnailResolver finds the highest-quality creative image available for
// an ad, walking tiers in priority order and short-circuiting on the first
// hit. A rate-limited tier is unavailable this run, not a hard failure; when
// every tier misses the result is explicitly empty, never an error.
type ThumbnailResolver struct {
	creatives domain.CreativeAPI
	executor  *retry.Executor
	logger    *logger.Logger
	metrics   *metrics.Metrics
	sources   []thumbnailSource
}

func NewThumbnailResolver(creatives domain.CreativeAPI, executor *retry.Executor, log *logger.Logger, m *metrics.Metrics) *ThumbnailResolver {
	r := &ThumbnailResolver{
		creatives: creatives,
		executor:  executor,
		logger:    log,
		metrics:   m,
	}
	r.sources = []thumbnailSource{
		{method: "image_crops", tier: domain.TierImageCrop, lookup: r.fromImageCrops},
		{method: "account_image", tier: domain.TierAccountImage, lookup: r.fromAccountImage},
		{method: "story_preview", tier: domain.TierStoryPreview, lookup: r.fromStoryPreview},
		{method: "image_url", tier: domain.TierImageURL, lookup: r.fromImageURL},
		{method: "thumbnail_url", tier: domain.TierThumbnailURL, lookup: r.fromThumbnailURL},
	}
	return r
}

// Resolve walks the tiers for one ad. A lower tier is only accepted after
// every higher tier was attempted and came up empty or unavailable.
func (r *ThumbnailResolver) Resolve(ctx context.Context, adID, creativeRef string) domain.ThumbnailResult {
	if creativeRef == "" {
		r.metrics.RecordThumbnailResolution("none")
		return domain.ThumbnailResult{}
	}

	creative := r.loadCreative(ctx, creativeRef)

	for _, source := range r.sources {
		imageURL, err := source.lookup(ctx, creativeRef, creative)
		if err != nil {
			var rl *domain.RateLimitedError
			if errors.As(err, &rl) {
				r.logger.WithFields(map[string]any{
					"ad_id":  adID,
					"method": source.method,
				}).Warn("Thumbnail tier rate limited, treating as unavailable this run")
			} else {
				r.logger.WithError(err).WithFields(map[string]any{
					"ad_id":  adID,
					"method": source.method,
				}).Debug("Thumbnail tier failed")
			}
			continue
		}
		if imageURL == "" {
			continue
		}

		r.metrics.RecordThumbnailResolution(source.method)
		return domain.ThumbnailResult{
			URL:          imageURL,
			Tier:         source.tier,
			SourceMethod: source.method,
		}
	}

	r.metrics.RecordThumbnailResolution("none")
	return domain.ThumbnailResult{}
}

// loadCreative fetches the creative once for the tiers that read its fields.
// A failed fetch leaves those tiers unavailable rather than failing the ad.
func (r *ThumbnailResolver) loadCreative(ctx context.Context, creativeRef string) *domain.Creative {
	var creative *domain.Creative
	err := r.executor.Execute(ctx, "get_creative", func() error {
		var cerr error
		creative, cerr = r.creatives.GetCreative(ctx, creativeRef)
		return cerr
	})
	if err != nil {
		r.logger.WithError(err).WithField("creative_ref", creativeRef).Warn("Creative lookup failed")
		return nil
	}
	return creative
}

// tier 1: multi-size image-crop variants, largest preferred
func (r *ThumbnailResolver) fromImageCrops(ctx context.Context, creativeRef string, _ *domain.Creative) (string, error) {
	var crops domain.ImageCrops
	err := r.executor.Execute(ctx, "get_image_crops", func() error {
		var cerr error
		crops, cerr = r.creatives.GetImageCrops(ctx, creativeRef)
		return cerr
	})
	if err != nil {
		return "", err
	}
	return pickLargestCrop(crops), nil
}

// tier 2: original-resolution account image matched by content hash
func (r *ThumbnailResolver) fromAccountImage(ctx context.Context, _ string, creative *domain.Creative) (string, error) {
	if creative == nil || creative.ImageHash == "" {
		return "", nil
	}
	var imageURL string
	err := r.executor.Execute(ctx, "get_account_image", func() error {
		var cerr error
		imageURL, cerr = r.creatives.GetAccountImageURL(ctx, creative.ImageHash)
		return cerr
	})
	if err != nil {
		return "", err
	}
	return imageURL, nil
}

// tier 3: link-preview picture from the creative's story specification
func (r *ThumbnailResolver) fromStoryPreview(_ context.Context, _ string, creative *domain.Creative) (string, error) {
	if creative == nil {
		return "", nil
	}
	return creative.StoryPicture, nil
}

// tier 4: the creative's generic image URL field
func (r *ThumbnailResolver) fromImageURL(_ context.Context, _ string, creative *domain.Creative) (string, error) {
	if creative == nil {
		return "", nil
	}
	return creative.ImageURL, nil
}

// tier 5: the platform's default low-resolution thumbnail, passed through a
// best-effort size upgrade before being accepted as last resort
func (r *ThumbnailResolver) fromThumbnailURL(_ context.Context, _ string, creative *domain.Creative) (string, error) {
	if creative == nil || creative.ThumbnailURL == "" {
		return "", nil
	}
	return upgradeThumbnailURL(creative.ThumbnailURL), nil
}

// pickLargestCrop walks the preference list, then falls back to the largest
// crop by pixel area so an unexpected spec set still yields the best image.
func pickLargestCrop(crops domain.ImageCrops) string {
	if len(crops) == 0 {
		return ""
	}
	for _, spec := range preferredCropSpecs {
		if imageURL, ok := crops[spec]; ok && imageURL != "" {
			return imageURL
		}
	}

	specs := make([]string, 0, len(crops))
	for spec := range crops {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		ai, aj := cropArea(specs[i]), cropArea(specs[j])
		if ai != aj {
			return ai > aj
		}
		return specs[i] < specs[j]
	})
	for _, spec := range specs {
		if crops[spec] != "" {
			return crops[spec]
		}
	}
	return ""
}

func cropArea(spec string) int {
	parts := strings.SplitN(spec, "x", 2)
	if len(parts) != 2 {
		return 0
	}
	w, werr := strconv.Atoi(parts[0])
	h, herr := strconv.Atoi(parts[1])
	if werr != nil || herr != nil {
		return 0
	}
	return w * h
}

// upgradeThumbnailURL rewrites the known low-resolution size markers in a
// default thumbnail URL. Purely best-effort: an unrecognized URL passes
// through untouched.
func upgradeThumbnailURL(raw string) string {
	upgraded := strings.ReplaceAll(raw, lowResToken, upgradedToken)

	parsed, err := url.Parse(upgraded)
	if err != nil {
		return upgraded
	}
	query := parsed.Query()
	changed := false
	for _, param := range []string{"width", "height", "w", "h"} {
		if query.Get(param) == lowResDimension {
			query.Set(param, upgradedDim)
			changed = true
		}
	}
	if changed {
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}
	return upgraded
}
