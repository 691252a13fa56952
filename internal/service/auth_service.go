package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/mindfold/questionnaire/config"
	"github.com/mindfold/questionnaire/internal/apperror"
	"github.com/mindfold/questionnaire/internal/model"
	"github.com/mindfold/questionnaire/internal/repository"
)

// AuthService issues and resolves bearer tokens bound to {userId, role}.
// Resolution is purely a function of the token string and current time, plus
// one user lookup; any failure is a 401-class error.
type AuthService interface {
	IssueToken(user *model.User) (string, error)
	ResolveToken(token string) (*model.User, error)
}

// Claims mirrors the token payload: user id and role, with standard expiry.
type Claims struct {
	UserID uint   `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	userRepo repository.UserRepository
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, cfg *config.Config) AuthService {
	return &authService{
		userRepo: userRepo,
		secret:   []byte(cfg.Auth.JWTSecret),
		tokenTTL: cfg.Auth.TokenTTL,
	}
}

func (s *authService) IssueToken(user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		log.Error().Err(err).Uint("userID", user.ID).Msg("Failed to sign token")
		return "", err
	}
	return signed, nil
}

func (s *authService) ResolveToken(tokenString string) (*model.User, error) {
	if tokenString == "" {
		return nil, apperror.Unauthorized("token_missing", "no authentication token provided")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.Wrap(apperror.KindAuth, "token_expired", "authentication token expired", err)
		}
		return nil, apperror.Wrap(apperror.KindAuth, "token_invalid", "invalid authentication token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperror.Unauthorized("token_invalid", "invalid authentication token")
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized("user_not_found", "token user no longer exists")
		}
		return nil, err
	}
	return user, nil
}
