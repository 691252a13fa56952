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

const DefaultCategory = "procrastination"

// QuestionService is the question bank: read access for the session engine
// and the user-facing listing, plus admin authoring with structural
// validation (option counts per type, resolvable branch targets).
type QuestionService interface {
	GetActiveQuestions(category string) ([]dto.QuestionResponse, error)
	GetQuestion(id uint) (*dto.QuestionResponse, error)
	CreateQuestion(req dto.CreateQuestionRequest) (*dto.QuestionResponse, error)
	UpdateQuestion(id uint, req dto.UpdateQuestionRequest) (*dto.QuestionResponse, error)
	DeactivateQuestion(id uint) error
}

type questionService struct {
	questionRepo repository.QuestionRepository
}

func NewQuestionService(questionRepo repository.QuestionRepository) QuestionService {
	return &questionService{questionRepo: questionRepo}
}

func (s *questionService) GetActiveQuestions(category string) ([]dto.QuestionResponse, error) {
	if category == "" {
		category = DefaultCategory
	}
	questions, err := s.questionRepo.FindActiveByCategory(category)
	if err != nil {
		log.Error().Err(err).Str("category", category).Msg("Failed to fetch active questions")
		return nil, fmt.Errorf("error fetching questions: %w", err)
	}

	dtos := make([]dto.QuestionResponse, 0, len(questions))
	for i := range questions {
		var resp dto.QuestionResponse
		if err := copier.Copy(&resp, &questions[i]); err != nil {
			log.Error().Err(err).Uint("questionID", questions[i].ID).Msg("Error copying question to DTO")
			continue
		}
		dtos = append(dtos, resp)
	}
	return dtos, nil
}

func (s *questionService) GetQuestion(id uint) (*dto.QuestionResponse, error) {
	question, err := s.questionRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("question_not_found", fmt.Sprintf("question %d not found", id))
		}
		return nil, fmt.Errorf("error fetching question %d: %w", id, err)
	}
	var resp dto.QuestionResponse
	if err := copier.Copy(&resp, question); err != nil {
		return nil, fmt.Errorf("error preparing question response: %w", err)
	}
	return &resp, nil
}

func (s *questionService) CreateQuestion(req dto.CreateQuestionRequest) (*dto.QuestionResponse, error) {
	if err := s.validateStructure(req.Type, req.Options); err != nil {
		return nil, err
	}

	question := model.Question{
		Title:    req.Title,
		Type:     req.Type,
		Order:    req.Order,
		Category: req.Category,
		Required: true,
		IsActive: true,
	}
	if question.Category == "" {
		question.Category = DefaultCategory
	}
	if req.Required != nil {
		question.Required = *req.Required
	}
	question.Options = buildOptions(req.Options)

	if err := s.questionRepo.Create(&question); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("Failed to create question")
		return nil, fmt.Errorf("error creating question: %w", err)
	}

	var resp dto.QuestionResponse
	if err := copier.Copy(&resp, &question); err != nil {
		return nil, fmt.Errorf("error preparing question response: %w", err)
	}
	return &resp, nil
}

func (s *questionService) UpdateQuestion(id uint, req dto.UpdateQuestionRequest) (*dto.QuestionResponse, error) {
	question, err := s.questionRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("question_not_found", fmt.Sprintf("question %d not found", id))
		}
		return nil, fmt.Errorf("error fetching question %d: %w", id, err)
	}

	if err := s.validateStructure(req.Type, req.Options); err != nil {
		return nil, err
	}

	question.Title = req.Title
	question.Type = req.Type
	question.Order = req.Order
	if req.Category != "" {
		question.Category = req.Category
	}
	if req.Required != nil {
		question.Required = *req.Required
	}
	if req.IsActive != nil {
		question.IsActive = *req.IsActive
	}

	if err := s.questionRepo.ReplaceOptions(question, buildOptions(req.Options)); err != nil {
		log.Error().Err(err).Uint("questionID", id).Msg("Failed to update question")
		return nil, fmt.Errorf("error updating question %d: %w", id, err)
	}

	var resp dto.QuestionResponse
	if err := copier.Copy(&resp, question); err != nil {
		return nil, fmt.Errorf("error preparing question response: %w", err)
	}
	return &resp, nil
}

func (s *questionService) DeactivateQuestion(id uint) error {
	if _, err := s.questionRepo.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("question_not_found", fmt.Sprintf("question %d not found", id))
		}
		return fmt.Errorf("error fetching question %d: %w", id, err)
	}
	if err := s.questionRepo.Deactivate(id); err != nil {
		log.Error().Err(err).Uint("questionID", id).Msg("Failed to deactivate question")
		return fmt.Errorf("error deactivating question %d: %w", id, err)
	}
	return nil
}

// validateStructure enforces the type/options invariant: text questions carry
// no options, choice questions carry at least one, and every declared branch
// target must reference an existing question.
func (s *questionService) validateStructure(questionType string, options []dto.OptionCreateDTO) error {
	switch questionType {
	case model.QuestionTypeText:
		if len(options) > 0 {
			return apperror.Validation("options_on_text", "text questions cannot have options")
		}
	case model.QuestionTypeSingle, model.QuestionTypeMultiple:
		if len(options) == 0 {
			return apperror.Validation("options_required", "choice questions require at least one option")
		}
	default:
		return apperror.Validation("invalid_type", fmt.Sprintf("unknown question type %q", questionType))
	}

	for _, opt := range options {
		if opt.NextQuestionID == nil {
			continue
		}
		if _, err := s.questionRepo.FindByID(*opt.NextQuestionID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Validation("branch_target_missing",
					fmt.Sprintf("branch target question %d does not exist", *opt.NextQuestionID))
			}
			return fmt.Errorf("error checking branch target %d: %w", *opt.NextQuestionID, err)
		}
	}
	return nil
}

func buildOptions(dtos []dto.OptionCreateDTO) []model.Option {
	options := make([]model.Option, 0, len(dtos))
	for i, opt := range dtos {
		options = append(options, model.Option{
			Text:           opt.Text,
			Score:          opt.Score,
			NextQuestionID: opt.NextQuestionID,
			Position:       i + 1,
		})
	}
	return options
}
