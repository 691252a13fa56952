package repository

import (
	"github.com/mindfold/questionnaire/internal/model"
	"gorm.io/gorm"
)

type AnswerRepository interface {
	FindBySession(sessionID uint) ([]model.Answer, error)
	// AnsweredQuestionIDs returns the ids of questions already answered in the
	// session, in answer order.
	AnsweredQuestionIDs(sessionID uint) ([]uint, error)
}

type answerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) FindBySession(sessionID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.
		Where("test_session_id = ?", sessionID).
		Order("answered_at ASC, id ASC").
		Find(&answers).Error
	return answers, err
}

func (r *answerRepository) AnsweredQuestionIDs(sessionID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.Answer{}).
		Where("test_session_id = ?", sessionID).
		Order("answered_at ASC, id ASC").
		Pluck("question_id", &ids).Error
	return ids, err
}
