package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medistock/medistock/internal/auth"
	"github.com/medistock/medistock/internal/shared"
)

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(subject auth.Subject, ttl time.Duration) (string, error)
	Verify(token string) (auth.Subject, error)
}

// Config groups token lifetimes and hashing cost.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// Service handles registration and login.
type Service struct {
	repo      RepositoryPort
	access    TokenIssuer
	refresh   TokenIssuer
	cfg       Config
	validator *validator.Validate
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, access, refresh TokenIssuer, cfg Config) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:      repo,
		access:    access,
		refresh:   refresh,
		cfg:       cfg,
		validator: shared.NewValidator(),
		now:       time.Now,
	}
}

// RefreshTTL is the lifetime of refresh tokens, used for the cookie max age.
func (s *Service) RefreshTTL() time.Duration {
	return s.cfg.RefreshTTL
}

// Register creates a pharmacy and its admin user. Only super admins may call it.
func (s *Service) Register(ctx context.Context, caller auth.Subject, input RegisterInput) (User, error) {
	if err := auth.RequireRole(caller, auth.RoleSuperAdmin); err != nil {
		return User{}, err
	}
	input = normalizeRegister(input)
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return User{}, err
	}
	if err := s.ensureAvailable(ctx, input.Email, input.Mobile); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}

	now := s.now().UTC()
	var created User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pharmacy, err := tx.InsertPharmacy(ctx, Pharmacy{
			PharmacyID: uuid.NewString(),
			Name:       input.PharmacyName,
			Slug:       shared.Slugify(input.PharmacyName),
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
		created, err = tx.InsertUser(ctx, User{
			Name:         input.Name,
			Email:        input.Email,
			Mobile:       input.Mobile,
			PasswordHash: string(hash),
			PharmacyID:   pharmacy.PharmacyID,
			Role:         auth.RoleAdmin,
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}
		created.Pharmacy = &pharmacy
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return created, nil
}

// CreateSuperAdmin provisions a super admin without a pharmacy.
func (s *Service) CreateSuperAdmin(ctx context.Context, name, email, mobile, password string) (User, error) {
	input := normalizeRegister(RegisterInput{Name: name, Email: email, Mobile: mobile, PharmacyName: "n/a", Password: password})
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return User{}, err
	}
	if err := s.ensureAvailable(ctx, input.Email, input.Mobile); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	var created User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err = tx.InsertUser(ctx, User{
			Name:         input.Name,
			Email:        input.Email,
			Mobile:       input.Mobile,
			PasswordHash: string(hash),
			Role:         auth.RoleSuperAdmin,
			CreatedAt:    s.now().UTC(),
		})
		return err
	})
	return created, err
}

// Login verifies credentials and issues an access and a refresh token.
func (s *Service) Login(ctx context.Context, input LoginInput) (Session, error) {
	input.Identifier = strings.ToLower(stripSpaces(input.Identifier))
	input.Password = stripSpaces(input.Password)
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return Session{}, err
	}

	user, err := s.repo.FindByLogin(ctx, input.Identifier)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Session{}, fmt.Errorf("%w: Invalid email address, or mobile. Not found", shared.ErrInvalidInput)
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return Session{}, fmt.Errorf("%w: Invalid Password", shared.ErrUnauthorized)
	}
	if user.Banned {
		return Session{}, fmt.Errorf("%w: You are banned. Please contact authority", shared.ErrUnauthorized)
	}

	if !user.Subject().IsSuperAdmin() && user.PharmacyID != "" {
		pharmacy, err := s.repo.GetPharmacy(ctx, user.PharmacyID)
		switch {
		case err == nil:
			user.Pharmacy = &pharmacy
		case !errors.Is(err, shared.ErrNotFound):
			return Session{}, err
		}
	}

	access, err := s.access.Issue(user.Subject(), s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.refresh.Issue(user.Subject(), s.cfg.RefreshTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", fmt.Errorf("%w: Refresh token not found. Login first", shared.ErrNotFound)
	}
	subject, err := s.refresh.Verify(refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: Invalid refresh token. Please Login", shared.ErrUnauthorized)
	}
	return s.access.Issue(subject, s.cfg.AccessTTL)
}

func (s *Service) ensureAvailable(ctx context.Context, email, mobile string) error {
	emailTaken, mobileTaken, err := s.repo.Taken(ctx, email, mobile)
	if err != nil {
		return err
	}
	if emailTaken {
		return fmt.Errorf("%w: Email already exists", shared.ErrConflict)
	}
	if mobileTaken {
		return fmt.Errorf("%w: Mobile already exists", shared.ErrConflict)
	}
	return nil
}

func normalizeRegister(in RegisterInput) RegisterInput {
	in.Name = shared.NormalizeName(in.Name)
	in.PharmacyName = shared.NormalizeName(in.PharmacyName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.Password = stripSpaces(in.Password)
	return in
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
