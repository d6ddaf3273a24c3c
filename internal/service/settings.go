package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

const promoBannerKey = "promo_banner"

var hexColor = regexp.MustCompile(`^#([0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

var defaultPromoBanner = model.PromoBanner{
	BackgroundColor: "#000000",
	TextColor:       "#FFFFFF",
}

type SettingsService struct {
	settingsRepo repository.SettingsRepository
	now          func() time.Time
}

func NewSettingsService(settingsRepo repository.SettingsRepository) *SettingsService {
	return &SettingsService{settingsRepo: settingsRepo, now: time.Now}
}

// PromoBanner returns the stored banner, or a disabled default when none was saved yet.
func (s *SettingsService) PromoBanner(ctx context.Context) (*dto.PromoBannerResponse, error) {
	banner := defaultPromoBanner
	if _, err := s.settingsRepo.Get(ctx, promoBannerKey, &banner); err != nil {
		return nil, fmt.Errorf("get promo banner: %w", err)
	}
	return &dto.PromoBannerResponse{PromoBanner: banner, Active: banner.ActiveAt(s.now())}, nil
}

func (s *SettingsService) UpdatePromoBanner(ctx context.Context, banner model.PromoBanner) (*dto.PromoBannerResponse, error) {
	banner.Text = strings.TrimSpace(banner.Text)
	banner.Link = strings.TrimSpace(banner.Link)
	if banner.BackgroundColor == "" {
		banner.BackgroundColor = defaultPromoBanner.BackgroundColor
	}
	if banner.TextColor == "" {
		banner.TextColor = defaultPromoBanner.TextColor
	}

	switch {
	case banner.Enabled && banner.Text == "":
		return nil, fmt.Errorf("%w: text is required when the banner is enabled", ErrValidation)
	case !hexColor.MatchString(banner.BackgroundColor) || !hexColor.MatchString(banner.TextColor):
		return nil, fmt.Errorf("%w: colors must be #RGB or #RRGGBB", ErrValidation)
	case banner.StartsAt != nil && banner.EndsAt != nil && !banner.EndsAt.After(*banner.StartsAt):
		return nil, fmt.Errorf("%w: endsAt must be after startsAt", ErrValidation)
	}

	if err := s.settingsRepo.Put(ctx, promoBannerKey, banner); err != nil {
		return nil, fmt.Errorf("save promo banner: %w", err)
	}
	return &dto.PromoBannerResponse{PromoBanner: banner, Active: banner.ActiveAt(s.now())}, nil
}
