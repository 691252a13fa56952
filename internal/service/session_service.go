package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/mindfold/questionnaire/internal/apperror"
	"github.com/mindfold/questionnaire/internal/dto"
	"github.com/mindfold/questionnaire/internal/model"
	"github.com/mindfold/questionnaire/internal/repository"
)

// SessionService drives one user through a branching questionnaire: it owns
// the session state machine, validates selections against question types,
// accumulates the score, and resolves the next question from the option
// graph. Submissions for the same session are serialized by a per-session
// mutex in-process and a version compare-and-swap at the store.
type SessionService interface {
	StartSession(user *model.User, req dto.StartSessionRequest) (*dto.SessionResponse, error)
	SubmitAnswer(caller *model.User, sessionID uint, req dto.SubmitAnswerRequest) (*dto.SubmitAnswerResponse, error)
	AbandonSession(caller *model.User, sessionID uint) (*dto.SessionResponse, error)
	GetSession(caller *model.User, sessionID uint) (*dto.SessionResponse, error)
}

type sessionService struct {
	questionRepo repository.QuestionRepository
	sessionRepo  repository.TestSessionRepository
	answerRepo   repository.AnswerRepository
	resultSvc    ResultService

	locks sync.Map // session id -> *sync.Mutex; entries dropped once the session is terminal
}

func NewSessionService(
	questionRepo repository.QuestionRepository,
	sessionRepo repository.TestSessionRepository,
	answerRepo repository.AnswerRepository,
	resultSvc ResultService,
) SessionService {
	return &sessionService{
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		answerRepo:   answerRepo,
		resultSvc:    resultSvc,
	}
}

func (s *sessionService) lockFor(sessionID uint) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *sessionService) StartSession(user *model.User, req dto.StartSessionRequest) (*dto.SessionResponse, error) {
	questions, err := s.questionRepo.FindActiveByCategory(req.TestType)
	if err != nil {
		log.Error().Err(err).Str("testType", req.TestType).Msg("StartSession: failed to fetch questions")
		return nil, fmt.Errorf("error fetching questions for %q: %w", req.TestType, err)
	}
	if len(questions) == 0 {
		return nil, apperror.Validation("invalid_test_type",
			fmt.Sprintf("no active questions for test type %q", req.TestType))
	}

	first := questions[0]
	session := model.TestSession{
		UserID:            user.ID,
		TestType:          req.TestType,
		TotalScore:        0,
		Status:            model.SessionStatusInProgress,
		CurrentQuestionID: &first.ID,
		Version:           1,
		StartedAt:         time.Now(),
	}
	if err := s.sessionRepo.Create(&session); err != nil {
		log.Error().Err(err).Uint("userID", user.ID).Msg("StartSession: failed to create session")
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	log.Info().Uint("sessionID", session.ID).Uint("userID", user.ID).
		Str("testType", req.TestType).Msg("Session started")

	return s.toSessionResponse(&session, &first, nil)
}

func (s *sessionService) SubmitAnswer(caller *model.User, sessionID uint, req dto.SubmitAnswerRequest) (*dto.SubmitAnswerResponse, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.loadOwnedSession(caller, sessionID, false)
	if err != nil {
		return nil, err
	}
	if session.Terminal() {
		return nil, apperror.Conflict("session_closed",
			fmt.Sprintf("session %d is %s", sessionID, session.Status))
	}
	if session.CurrentQuestionID == nil || *session.CurrentQuestionID != req.QuestionID {
		return nil, apperror.Conflict("question_mismatch",
			fmt.Sprintf("question %d is not the session's current question", req.QuestionID))
	}

	question, err := s.questionRepo.FindByID(req.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("question_not_found", fmt.Sprintf("question %d not found", req.QuestionID))
		}
		return nil, fmt.Errorf("error fetching question %d: %w", req.QuestionID, err)
	}

	selected, score, err := validateSelection(question, req)
	if err != nil {
		return nil, err
	}

	next, err := s.resolveNext(session, question, selected)
	if err != nil {
		return nil, err
	}

	textAnswer := (*string)(nil)
	if question.Type == model.QuestionTypeText {
		trimmed := strings.TrimSpace(req.TextAnswer)
		textAnswer = &trimmed
	}
	answer := model.Answer{
		UserID:            session.UserID,
		QuestionID:        question.ID,
		TestSessionID:     session.ID,
		SelectedOptionIDs: req.SelectedOptionIDs,
		TextAnswer:        textAnswer,
		Score:             score,
		AnsweredAt:        time.Now(),
	}

	session.TotalScore += score
	if next != nil {
		session.CurrentQuestionID = &next.ID
	} else {
		now := time.Now()
		result := s.resultSvc.Evaluate(session.TestType, session.TotalScore)
		session.CurrentQuestionID = nil
		session.Status = model.SessionStatusCompleted
		session.CompletedAt = &now
		session.Result = &result
	}

	// Answer row, score increment and position/status change land in one
	// transaction; a concurrent writer rolls the whole thing back.
	if err := s.sessionRepo.RecordAnswer(session, &answer); err != nil {
		if apperror.Is(err, apperror.KindConflict) {
			return nil, err
		}
		log.Error().Err(err).Uint("sessionID", session.ID).Uint("questionID", question.ID).
			Msg("SubmitAnswer: failed to record answer")
		return nil, fmt.Errorf("error recording answer: %w", err)
	}
	if session.Terminal() {
		// A terminal session takes no further submissions, so its mutex can go.
		s.locks.Delete(session.ID)
	}

	resp := dto.SubmitAnswerResponse{
		TotalScore: session.TotalScore,
		Completed:  session.Status == model.SessionStatusCompleted,
		Result:     session.Result,
	}
	if next != nil {
		var nextDTO dto.QuestionResponse
		if err := copier.Copy(&nextDTO, next); err != nil {
			return nil, fmt.Errorf("error preparing next question response: %w", err)
		}
		resp.NextQuestion = &nextDTO
	} else {
		log.Info().Uint("sessionID", session.ID).Float64("totalScore", session.TotalScore).
			Msg("Session completed")
	}
	return &resp, nil
}

func (s *sessionService) AbandonSession(caller *model.User, sessionID uint) (*dto.SessionResponse, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.loadOwnedSession(caller, sessionID, true)
	if err != nil {
		return nil, err
	}
	if session.Terminal() {
		// Idempotent: abandoning a terminal session reports its state unchanged.
		return s.toSessionResponse(session, nil, nil)
	}

	session.Status = model.SessionStatusAbandoned
	session.CurrentQuestionID = nil
	if err := s.sessionRepo.UpdateWithVersion(session); err != nil {
		if apperror.Is(err, apperror.KindConflict) {
			return nil, err
		}
		log.Error().Err(err).Uint("sessionID", sessionID).Msg("AbandonSession: failed to update session")
		return nil, fmt.Errorf("error abandoning session: %w", err)
	}

	s.locks.Delete(sessionID)
	log.Info().Uint("sessionID", sessionID).Msg("Session abandoned")
	return s.toSessionResponse(session, nil, nil)
}

func (s *sessionService) GetSession(caller *model.User, sessionID uint) (*dto.SessionResponse, error) {
	session, err := s.sessionRepo.FindByIDWithAnswers(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("session_not_found", fmt.Sprintf("session %d not found", sessionID))
		}
		return nil, fmt.Errorf("error fetching session %d: %w", sessionID, err)
	}
	if session.UserID != caller.ID && !caller.IsAdmin() {
		return nil, apperror.Forbidden("not_session_owner", "session belongs to another user")
	}

	var current *model.Question
	if session.CurrentQuestionID != nil {
		current, err = s.questionRepo.FindByID(*session.CurrentQuestionID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("error fetching current question: %w", err)
		}
	}
	return s.toSessionResponse(session, current, session.Answers)
}

// loadOwnedSession fetches the session and enforces ownership. allowAdmin
// lets admins act on other users' sessions (reads and abandons); answer
// submission stays owner-only.
func (s *sessionService) loadOwnedSession(caller *model.User, sessionID uint, allowAdmin bool) (*model.TestSession, error) {
	session, err := s.sessionRepo.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("session_not_found", fmt.Sprintf("session %d not found", sessionID))
		}
		return nil, fmt.Errorf("error fetching session %d: %w", sessionID, err)
	}
	if session.UserID != caller.ID && !(allowAdmin && caller.IsAdmin()) {
		return nil, apperror.Forbidden("not_session_owner", "session belongs to another user")
	}
	return session, nil
}

// validateSelection checks the submitted selection against the question type
// and returns the selected options with the derived score. Text answers score
// zero; choice answers sum their option weights.
func validateSelection(question *model.Question, req dto.SubmitAnswerRequest) ([]model.Option, float64, error) {
	switch question.Type {
	case model.QuestionTypeText:
		if len(req.SelectedOptionIDs) > 0 {
			return nil, 0, apperror.Validation("unexpected_options", "text questions take no option ids")
		}
		if strings.TrimSpace(req.TextAnswer) == "" {
			return nil, 0, apperror.Validation("text_required", "text questions require a non-empty answer")
		}
		return nil, 0, nil

	case model.QuestionTypeSingle:
		if req.TextAnswer != "" {
			return nil, 0, apperror.Validation("unexpected_text", "choice questions take no text answer")
		}
		if len(req.SelectedOptionIDs) != 1 {
			return nil, 0, apperror.Validation("single_choice_required", "single questions require exactly one option id")
		}

	case model.QuestionTypeMultiple:
		if req.TextAnswer != "" {
			return nil, 0, apperror.Validation("unexpected_text", "choice questions take no text answer")
		}
		if len(req.SelectedOptionIDs) == 0 {
			return nil, 0, apperror.Validation("selection_required", "multiple questions require at least one option id")
		}

	default:
		return nil, 0, apperror.Validation("invalid_type", fmt.Sprintf("question %d has unknown type %q", question.ID, question.Type))
	}

	seen := make(map[uint]bool, len(req.SelectedOptionIDs))
	selected := make([]model.Option, 0, len(req.SelectedOptionIDs))
	score := 0.0
	for _, optionID := range req.SelectedOptionIDs {
		if seen[optionID] {
			return nil, 0, apperror.Validation("duplicate_option", fmt.Sprintf("option %d selected more than once", optionID))
		}
		seen[optionID] = true

		option := question.OptionByID(optionID)
		if option == nil {
			return nil, 0, apperror.Validation("invalid_option",
				fmt.Sprintf("option %d does not belong to question %d", optionID, question.ID))
		}
		selected = append(selected, *option)
		score += option.Score
	}
	return selected, score, nil
}

// resolveNext picks the question that follows `current` for this session.
// A single selected option with a branch target wins; a dangling, inactive or
// already-answered target is an authoring error that degrades to
// end-of-questionnaire. With no branch the next unanswered active question in
// display order follows; nil means the questionnaire is finished.
func (s *sessionService) resolveNext(session *model.TestSession, current *model.Question, selected []model.Option) (*model.Question, error) {
	answeredIDs, err := s.answerRepo.AnsweredQuestionIDs(session.ID)
	if err != nil {
		return nil, fmt.Errorf("error fetching answered questions: %w", err)
	}
	answered := make(map[uint]bool, len(answeredIDs)+1)
	for _, id := range answeredIDs {
		answered[id] = true
	}
	answered[current.ID] = true

	if len(selected) == 1 && selected[0].NextQuestionID != nil {
		targetID := *selected[0].NextQuestionID
		target, err := s.questionRepo.FindByID(targetID)
		switch {
		case err != nil && errors.Is(err, gorm.ErrRecordNotFound):
			log.Error().Uint("sessionID", session.ID).Uint("questionID", current.ID).
				Uint("targetID", targetID).Msg("Broken branch target, ending questionnaire")
			return nil, nil
		case err != nil:
			return nil, fmt.Errorf("error resolving branch target %d: %w", targetID, err)
		case !target.IsActive:
			log.Error().Uint("sessionID", session.ID).Uint("questionID", current.ID).
				Uint("targetID", targetID).Msg("Branch target inactive, ending questionnaire")
			return nil, nil
		case answered[target.ID]:
			// A branch cycle would strand the session: the target can never be
			// answered a second time.
			log.Error().Uint("sessionID", session.ID).Uint("questionID", current.ID).
				Uint("targetID", targetID).Msg("Branch target already answered, ending questionnaire")
			return nil, nil
		default:
			return target, nil
		}
	}

	questions, err := s.questionRepo.FindActiveByCategory(session.TestType)
	if err != nil {
		return nil, fmt.Errorf("error fetching questions for %q: %w", session.TestType, err)
	}
	for i := range questions {
		q := &questions[i]
		if answered[q.ID] {
			continue
		}
		if q.Order > current.Order || (q.Order == current.Order && q.ID > current.ID) {
			return q, nil
		}
	}
	return nil, nil
}

func (s *sessionService) toSessionResponse(session *model.TestSession, current *model.Question, answers []model.Answer) (*dto.SessionResponse, error) {
	var resp dto.SessionResponse
	if err := copier.Copy(&resp, session); err != nil {
		return nil, fmt.Errorf("error preparing session response: %w", err)
	}
	if current != nil {
		var questionDTO dto.QuestionResponse
		if err := copier.Copy(&questionDTO, current); err != nil {
			return nil, fmt.Errorf("error preparing current question response: %w", err)
		}
		resp.CurrentQuestion = &questionDTO
	}
	if len(answers) > 0 {
		resp.Answers = make([]dto.AnswerResponse, len(answers))
		for i := range answers {
			if err := copier.Copy(&resp.Answers[i], &answers[i]); err != nil {
				return nil, fmt.Errorf("error preparing answer response: %w", err)
			}
		}
	}
	return &resp, nil
}
