package repository

import (
	"github.com/mindfold/questionnaire/internal/apperror"
	"github.com/mindfold/questionnaire/internal/model"
	"gorm.io/gorm"
)

type TestSessionRepository interface {
	Create(session *model.TestSession) error
	FindByID(id uint) (*model.TestSession, error)
	FindByIDWithAnswers(id uint) (*model.TestSession, error)
	FindAllByUser(userID uint) ([]model.TestSession, error)
	// RecordAnswer persists the answer row and the mutated session state in a
	// single transaction. The session update is guarded by a version
	// compare-and-swap: a concurrent writer makes the whole transaction roll
	// back with a conflict, leaving no partial write.
	RecordAnswer(session *model.TestSession, answer *model.Answer) error
	// UpdateWithVersion applies the session's mutated fields under the same
	// version compare-and-swap, without an answer row (status transitions).
	UpdateWithVersion(session *model.TestSession) error
}

type testSessionRepository struct {
	db *gorm.DB
}

func NewTestSessionRepository(db *gorm.DB) TestSessionRepository {
	return &testSessionRepository{db: db}
}

func (r *testSessionRepository) Create(session *model.TestSession) error {
	return r.db.Create(session).Error
}

func (r *testSessionRepository) FindByID(id uint) (*model.TestSession, error) {
	var session model.TestSession
	if err := r.db.First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *testSessionRepository) FindByIDWithAnswers(id uint) (*model.TestSession, error) {
	var session model.TestSession
	err := r.db.
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.answered_at ASC, answers.id ASC")
		}).
		First(&session, id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *testSessionRepository) FindAllByUser(userID uint) ([]model.TestSession, error) {
	var sessions []model.TestSession
	err := r.db.
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *testSessionRepository) RecordAnswer(session *model.TestSession, answer *model.Answer) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(answer).Error; err != nil {
			return err
		}
		return casUpdate(tx, session)
	})
}

func (r *testSessionRepository) UpdateWithVersion(session *model.TestSession) error {
	return casUpdate(r.db, session)
}

func casUpdate(tx *gorm.DB, session *model.TestSession) error {
	res := tx.Model(&model.TestSession{}).
		Where("id = ? AND version = ?", session.ID, session.Version).
		Updates(map[string]interface{}{
			"total_score":         session.TotalScore,
			"result":              session.Result,
			"status":              session.Status,
			"current_question_id": session.CurrentQuestionID,
			"completed_at":        session.CompletedAt,
			"version":             session.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.Conflict("session_conflict", "session was modified concurrently")
	}
	session.Version++
	return nil
}
