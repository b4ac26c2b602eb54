package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yourorg/profilehub/internal/domain"
	"github.com/yourorg/profilehub/pkg/cache"
)

const (
	profileCachePrefix = "profile:"
	profileCacheTTL    = 30 * time.Second

	maxAvatarBytes = 5 << 20 // 5 MiB
)

// MediaStore abstracts avatar object storage. Implemented by the S3
// store in internal/media.
type MediaStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string) (string, error)
	NewAvatarKey() string
}

// ProfileView is the read model served to the profile page
type ProfileView struct {
	AccountID string `json:"accountId"`
	Bio       string `json:"bio"`
	BirthDate string `json:"birthDate,omitempty"` // YYYY-MM-DD
	Location  string `json:"location"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// ProfileService handles profile reads and edits
type ProfileService struct {
	profiles domain.ProfileRepository
	media    MediaStore
	cache    *cache.Cache
	logger   *slog.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(
	profiles domain.ProfileRepository,
	media MediaStore,
	profileCache *cache.Cache,
	logger *slog.Logger,
) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{
		profiles: profiles,
		media:    media,
		cache:    profileCache,
		logger:   logger,
	}
}

// View returns the caller's own profile, read-only
func (s *ProfileService) View(ctx context.Context, accountID string) (*ProfileView, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(profileCachePrefix + accountID); ok {
			return v.(*ProfileView), nil
		}
	}

	profile, err := s.profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	view := &ProfileView{
		AccountID: profile.AccountID,
		Bio:       profile.Bio,
		Location:  profile.Location,
	}
	if profile.BirthDate != nil {
		view.BirthDate = profile.BirthDate.Format("2006-01-02")
	}
	if profile.AvatarKey != "" && s.media != nil {
		url, err := s.media.PresignGet(ctx, profile.AvatarKey)
		if err != nil {
			// The profile is still renderable without the image
			s.logger.Warn("failed to presign avatar url",
				slog.String("account_id", accountID),
				slog.String("error", err.Error()),
			)
		} else {
			view.AvatarURL = url
		}
	}

	if s.cache != nil {
		s.cache.Set(profileCachePrefix+accountID, view, profileCacheTTL)
	}
	return view, nil
}

// EditInput carries a partial profile edit; nil fields keep their
// prior values. BirthDate is the raw form string (YYYY-MM-DD or empty
// to clear).
type EditInput struct {
	Bio       *string
	BirthDate *string
	Location  *string
}

// Edit validates the submitted fields and applies a partial update.
// All bounds are checked before any write; failures come back as
// domain.FieldErrors.
func (s *ProfileService) Edit(ctx context.Context, accountID string, in EditInput) (*domain.Profile, error) {
	fe := domain.FieldErrors{}
	upd := domain.ProfileUpdate{}

	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		fe.Add("bio", ValidateBio(bio))
		upd.Bio = &bio
	}
	if in.Location != nil {
		location := strings.TrimSpace(*in.Location)
		fe.Add("location", ValidateLocation(location))
		upd.Location = &location
	}
	if in.BirthDate != nil {
		birthDate, err := ParseBirthDate(*in.BirthDate)
		switch {
		case err != nil:
			fe.Add("birthDate", err)
		case birthDate == nil:
			// An explicit empty value clears the stored date
			upd.ClearBirthDate = true
		default:
			upd.BirthDate = birthDate
		}
	}
	if len(fe) > 0 {
		return nil, fe
	}

	profile, err := s.profiles.Update(ctx, accountID, upd)
	if err != nil {
		s.logger.Error("failed to update profile", slog.String("account_id", accountID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if s.cache != nil {
		s.cache.Delete(profileCachePrefix + accountID)
	}
	s.logger.Info("profile updated", slog.String("account_id", accountID))
	return profile, nil
}

// RemoveAvatarObject deletes the stored avatar object for an account,
// if any. Used during account deletion, before the profile row goes
// away with the cascade.
func (s *ProfileService) RemoveAvatarObject(ctx context.Context, accountID string) error {
	if s.media == nil {
		return nil
	}
	profile, err := s.profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if profile.AvatarKey == "" {
		return nil
	}
	if err := s.media.Delete(ctx, profile.AvatarKey); err != nil {
		return fmt.Errorf("failed to delete avatar object: %w", err)
	}
	if s.cache != nil {
		s.cache.Delete(profileCachePrefix + accountID)
	}
	return nil
}

// SetAvatar stores the uploaded image and records its key on the
// profile. The previous object is removed best effort.
func (s *ProfileService) SetAvatar(ctx context.Context, accountID string, data []byte, contentType string) (string, error) {
	if s.media == nil {
		return "", fmt.Errorf("media store not configured")
	}
	if len(data) == 0 {
		return "", domain.FieldErrors{"avatar": fmt.Errorf("avatar file is empty")}
	}
	if len(data) > maxAvatarBytes {
		return "", domain.FieldErrors{"avatar": fmt.Errorf("avatar must be at most %d bytes", maxAvatarBytes)}
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", domain.FieldErrors{"avatar": fmt.Errorf("avatar must be an image")}
	}

	previous, err := s.profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}

	key := s.media.NewAvatarKey()
	if err := s.media.Put(ctx, key, data, contentType); err != nil {
		s.logger.Error("failed to store avatar", slog.String("account_id", accountID), slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to store avatar: %w", err)
	}

	if err := s.profiles.SetAvatarKey(ctx, accountID, key); err != nil {
		// The orphaned object is cleaned up so the failed edit leaves
		// no partial state behind.
		if delErr := s.media.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned avatar object", slog.String("key", key), slog.String("error", delErr.Error()))
		}
		return "", fmt.Errorf("failed to save avatar reference: %w", err)
	}

	if previous.AvatarKey != "" && previous.AvatarKey != key {
		if err := s.media.Delete(ctx, previous.AvatarKey); err != nil {
			s.logger.Warn("failed to remove previous avatar object", slog.String("key", previous.AvatarKey), slog.String("error", err.Error()))
		}
	}

	if s.cache != nil {
		s.cache.Delete(profileCachePrefix + accountID)
	}
	s.logger.Info("avatar updated", slog.String("account_id", accountID), slog.String("key", key))
	return key, nil
}
