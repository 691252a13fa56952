package service

import (
	"errors"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/mindfold/questionnaire/internal/apperror"
	"github.com/mindfold/questionnaire/internal/dto"
	"github.com/mindfold/questionnaire/internal/model"
	"github.com/mindfold/questionnaire/internal/repository"
)

type UserService interface {
	Register(req dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(req dto.LoginRequest) (*dto.AuthResponse, error)
	GetMe(user *model.User) (*dto.MeResponse, error)
}

type userService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.TestSessionRepository
	authSvc     AuthService
}

func NewUserService(userRepo repository.UserRepository, sessionRepo repository.TestSessionRepository, authSvc AuthService) UserService {
	return &userService{userRepo: userRepo, sessionRepo: sessionRepo, authSvc: authSvc}
}

func (s *userService) Register(req dto.RegisterRequest) (*dto.AuthResponse, error) {
	if _, err := s.userRepo.FindByEmail(req.Email); err == nil {
		return nil, apperror.Conflict("email_taken", "email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error checking email uniqueness: %w", err)
	}
	if _, err := s.userRepo.FindByUsername(req.Username); err == nil {
		return nil, apperror.Conflict("username_taken", "username is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error checking username uniqueness: %w", err)
	}

	user := model.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     model.RoleUser,
		Profile:  model.Profile{Nickname: req.Nickname},
	}
	if err := user.SetPassword(req.Password); err != nil {
		log.Error().Err(err).Msg("Failed to hash password")
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	if err := s.userRepo.Create(&user); err != nil {
		// The uniqueness pre-checks race with concurrent registrations; the
		// unique indexes are the source of truth.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if _, lookupErr := s.userRepo.FindByEmail(req.Email); lookupErr == nil {
				return nil, apperror.Conflict("email_taken", "email is already registered")
			}
			return nil, apperror.Conflict("username_taken", "username is already registered")
		}
		log.Error().Err(err).Str("email", req.Email).Msg("Failed to create user")
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return s.authResponse(&user)
}

func (s *userService) Login(req dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized("bad_credentials", "invalid email or password")
		}
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	if !user.CheckPassword(req.Password) {
		// Same message as the unknown-email case so credentials cannot be probed.
		return nil, apperror.Unauthorized("bad_credentials", "invalid email or password")
	}
	return s.authResponse(user)
}

func (s *userService) GetMe(user *model.User) (*dto.MeResponse, error) {
	sessions, err := s.sessionRepo.FindAllByUser(user.ID)
	if err != nil {
		log.Error().Err(err).Uint("userID", user.ID).Msg("Failed to fetch test history")
		return nil, fmt.Errorf("error fetching test history: %w", err)
	}

	resp := dto.MeResponse{}
	if err := copier.Copy(&resp.User, user); err != nil {
		return nil, fmt.Errorf("error preparing profile response: %w", err)
	}
	resp.History = make([]dto.SessionSummaryDTO, 0, len(sessions))
	for i := range sessions {
		var summary dto.SessionSummaryDTO
		if err := copier.Copy(&summary, &sessions[i]); err != nil {
			log.Error().Err(err).Uint("sessionID", sessions[i].ID).Msg("Error copying session to summary DTO")
			continue
		}
		resp.History = append(resp.History, summary)
	}
	return &resp, nil
}

func (s *userService) authResponse(user *model.User) (*dto.AuthResponse, error) {
	token, err := s.authSvc.IssueToken(user)
	if err != nil {
		return nil, fmt.Errorf("error issuing token: %w", err)
	}
	resp := dto.AuthResponse{Token: token}
	if err := copier.Copy(&resp.User, user); err != nil {
		return nil, fmt.Errorf("error preparing user response: %w", err)
	}
	return &resp, nil
}
