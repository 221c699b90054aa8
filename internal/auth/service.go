package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-clinic/meridian/internal/shared"
)

// Notifier delivers account emails out-of-band. Implementations are
// fire-and-forget from the auth core's perspective: a delivery failure
// is logged and never escalates to the caller.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, name, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}

// ServiceConfig carries the credential policy knobs.
type ServiceConfig struct {
	ResetTokenTTL time.Duration
	BcryptCost    int
}

const (
	defaultResetTokenTTL = time.Hour
	minBcryptCost        = 10
)

// Service implements the credential and session lifecycle: login,
// registration, token refresh, password reset, and email verification.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	signer   *TokenSigner
	notifier Notifier
	cfg      ServiceConfig
	now      func() time.Time

	// dummyHash is compared against when no account matches the email,
	// so lookup misses and wrong passwords take comparable time.
	dummyHash []byte
}

// NewService constructs a Service. A zero ResetTokenTTL falls back to
// one hour; the bcrypt cost is clamped to at least 10.
func NewService(logger *slog.Logger, repo Repository, signer *TokenSigner, notifier Notifier, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = defaultResetTokenTTL
	}
	if cfg.BcryptCost < minBcryptCost {
		cfg.BcryptCost = minBcryptCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	if err != nil {
		// bcrypt only fails on an out-of-range cost, which the clamp above rules out.
		panic(err)
	}
	return &Service{
		logger:    logger,
		repo:      repo,
		signer:    signer,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
		dummyHash: dummy,
	}
}

// NormalizeEmail lowercases and trims an email address so lookups and
// uniqueness work on a canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login validates credentials and mints a session token. Unknown email
// and wrong password yield the identical error after comparable work.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (*Session, error) {
	account, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Burn a bcrypt comparison so a miss is not measurably
			// faster than a wrong password.
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, shared.ErrAccountDeactivated
	}

	now := s.now()
	if err := s.repo.RecordLogin(ctx, account.ID, now, ip, ua); err != nil {
		s.logger.Warn("record login", slog.String("account", account.ID.String()), slog.Any("error", err))
	}
	account.LastLoginAt = &now

	token, err := s.signer.Sign(account.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Account: account.Public()}, nil
}

// RegisterInput carries the registration fields. Optional profile fields
// are opaque to the auth logic.
type RegisterInput struct {
	Name              string
	Email             string
	Password          string
	Phone             string
	DateOfBirth       *time.Time
	Address           string
	InsuranceProvider string
	InsurancePolicy   string
}

// Register creates an active, unverified account with a hashed password,
// dispatches a verification email, and mints a session token. A failed
// dispatch does not fail the registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := NormalizeEmail(in.Email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, shared.ErrEmailTaken
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	verificationToken, err := newSecretToken()
	if err != nil {
		return nil, err
	}

	account := &Account{
		ID:                uuid.New(),
		Name:              in.Name,
		Email:             email,
		PasswordHash:      string(hash),
		Phone:             in.Phone,
		DateOfBirth:       in.DateOfBirth,
		Address:           in.Address,
		InsuranceProvider: in.InsuranceProvider,
		InsurancePolicy:   in.InsurancePolicy,
		Role:              RolePatient,
		IsActive:          true,
		EmailVerified:     false,
		VerificationToken: verificationToken,
		CreatedAt:         s.now(),
		UpdatedAt:         s.now(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	if err := s.notifier.SendVerificationEmail(ctx, account.Email, account.Name, verificationToken); err != nil {
		s.logger.Warn("send verification email", slog.String("account", account.ID.String()), slog.Any("error", err))
	}

	token, err := s.signer.Sign(account.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Account: account.Public()}, nil
}

// Refresh verifies an existing token and, when the account still exists
// and is active, issues a fresh one with the same binding.
func (s *Service) Refresh(ctx context.Context, token string) (string, error) {
	id, err := s.signer.Verify(token)
	if err != nil {
		return "", shared.ErrInvalidToken
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", shared.ErrInvalidToken
		}
		return "", err
	}
	if !account.IsActive {
		return "", shared.ErrInvalidToken
	}
	return s.signer.Sign(account.ID)
}

// AccountFromToken resolves a bearer token to its live account. Used by
// the RequireAuth middleware.
func (s *Service) AccountFromToken(ctx context.Context, token string) (*Account, error) {
	id, err := s.signer.Verify(token)
	if err != nil {
		return nil, shared.ErrInvalidToken
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidToken
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, shared.ErrInvalidToken
	}
	return account, nil
}

// ForgotPassword stores a fresh one-hour reset token and dispatches it.
// It never reveals whether the email is registered: the unknown-email
// path does the same token generation and returns the same nil result.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	token, err := newSecretToken()
	if err != nil {
		return err
	}

	account, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}

	expires := s.now().Add(s.cfg.ResetTokenTTL)
	if err := s.repo.SetResetToken(ctx, account.ID, token, expires); err != nil {
		return err
	}
	if err := s.notifier.SendPasswordResetEmail(ctx, account.Email, token); err != nil {
		s.logger.Warn("send password reset email", slog.String("account", account.ID.String()), slog.Any("error", err))
	}
	return nil
}

// ResetPassword consumes a live reset token and replaces the password
// hash atomically with clearing the token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	consumed, err := s.repo.ConsumeResetToken(ctx, token, string(hash), s.now())
	if err != nil {
		return err
	}
	if !consumed {
		return shared.ErrResetTokenInvalid
	}
	return nil
}

// VerifyEmail consumes a single-use verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	consumed, err := s.repo.ConsumeVerificationToken(ctx, token)
	if err != nil {
		return err
	}
	if !consumed {
		return shared.ErrVerificationTokenInvalid
	}
	return nil
}

// newSecretToken returns 256 bits of hex-encoded randomness for reset
// and verification tokens.
func newSecretToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
