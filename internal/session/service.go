package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ntalakanov/taskboard/internal/logging"
	"github.com/ntalakanov/taskboard/internal/models"
)

// Service owns the refresh-token lifecycle: issuing, single-use rotation,
// and revocation. All dependencies are injected; nothing here is a
// process-wide singleton.
type Service struct {
	DB            *gorm.DB
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Pair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// IssueInitialPair signs a fresh access/refresh pair for the account and
// persists the refresh token with the issuing request's ip and device.
func (s *Service) IssueInitialPair(ctx context.Context, account *models.Account, ip, device string) (*Pair, error) {
	now := time.Now()
	accessExp := now.Add(s.AccessTTL)
	refreshExp := now.Add(s.RefreshTTL)

	accessToken, err := s.signAccessToken(account, accessExp)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.signRefreshToken(account.ID, refreshExp)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	row := models.RefreshToken{
		AccountID: account.ID,
		Token:     refreshToken,
		ExpiresAt: refreshExp.Unix(),
		IP:        ip,
		Device:    device,
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Rotate exchanges a live refresh token for a new pair. The old row is
// deleted before the expiry check, so presenting an expired token still
// consumes it even though the call fails with ErrExpiredToken. The new
// refresh token records the ip/device of the current request, not the
// original one.
func (s *Service) Rotate(ctx context.Context, rawToken, ip, device string) (*Pair, error) {
	l := logging.FromContext(ctx).With("svc", "session.rotate")

	var row models.RefreshToken
	if err := s.DB.WithContext(ctx).Where("token = ?", rawToken).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	var account models.Account
	if err := s.DB.WithContext(ctx).First(&account, row.AccountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	// Single-use consumption happens before the expiry check.
	if err := s.DB.WithContext(ctx).Delete(&models.RefreshToken{}, row.ID).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if row.ExpiresAt <= time.Now().Unix() {
		l.Warn("expired refresh token consumed", "account_id", row.AccountID)
		return nil, ErrExpiredToken
	}

	return s.IssueInitialPair(ctx, &account, ip, device)
}

// Revoke deletes one of the caller's own sessions. Expiry is advisory
// here: revoking an already-expired token still succeeds.
func (s *Service) Revoke(ctx context.Context, callerAccountID uint, rawToken string) error {
	l := logging.FromContext(ctx).With("svc", "session.revoke", "account_id", callerAccountID)

	var row models.RefreshToken
	if err := s.DB.WithContext(ctx).Where("token = ?", rawToken).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("db error: %w", err)
	}

	if row.AccountID != callerAccountID {
		return ErrAccessDenied
	}

	if row.ExpiresAt <= time.Now().Unix() {
		l.Warn("revoking already-expired token")
	}

	if err := s.DB.WithContext(ctx).Delete(&models.RefreshToken{}, row.ID).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RevokeAll deletes every session the account owns. Idempotent: revoking
// an account with no sessions is not an error.
func (s *Service) RevokeAll(ctx context.Context, accountID uint) error {
	if err := s.DB.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.RefreshToken{}).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
