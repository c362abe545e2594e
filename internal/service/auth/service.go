package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
	"github.com/medisuite/portal-api/pkg/auth"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
	"github.com/medisuite/portal-api/pkg/logger"
	"github.com/medisuite/portal-api/pkg/security"
)

type Service struct {
	userRepo repository.UserRepository
	hasher   security.PasswordHasher
	jwt      auth.JWTService
	logger   *logger.Logger
}

func NewService(userRepo repository.UserRepository, hasher security.PasswordHasher, jwt auth.JWTService, logger *logger.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		jwt:      jwt,
		logger:   logger,
	}
}

// Register creates a patient account. Doctor and admin accounts are
// provisioned by an admin, never self-registered.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	return s.createUser(ctx, req, model.RolePatient)
}

// CreateUser provisions an account with an explicit role, for admin use.
func (s *Service) CreateUser(ctx context.Context, req *model.RegisterRequest, role model.UserRole) (*model.User, error) {
	return s.createUser(ctx, req, role)
}

func (s *Service) createUser(ctx context.Context, req *model.RegisterRequest, role model.UserRole) (*model.User, error) {
	if existing, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, apperrors.NewBadRequest("email is already registered", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.NewValidation("password does not meet requirements", err)
	}

	user := &model.User{
		Base:         model.Base{ID: uuid.New()},
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return user, nil
}

// Login verifies credentials and issues a token pair. A wrong password and an
// unknown email produce the same error, so responses leak nothing about which
// accounts exist.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.User, *model.TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, nil, apperrors.Unauthorized(err)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, nil, apperrors.Unauthorized(err)
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) (*model.TokenPair, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return s.issueTokens(user)
}

func (s *Service) issueTokens(user *model.User) (*model.TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	refresh, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return &model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
