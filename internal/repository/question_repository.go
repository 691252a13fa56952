package repository

import (
	"github.com/mindfold/questionnaire/internal/model"
	"gorm.io/gorm"
)

type QuestionRepository interface {
	Create(question *model.Question) error
	FindByID(id uint) (*model.Question, error)
	// FindActiveByCategory returns active questions ordered by display order
	// ascending, ties broken by creation order (id).
	FindActiveByCategory(category string) ([]model.Question, error)
	Update(question *model.Question) error
	ReplaceOptions(question *model.Question, options []model.Option) error
	Deactivate(id uint) error
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) Create(question *model.Question) error {
	// Create with associations persists the options as well.
	return r.db.Create(question).Error
}

func (r *questionRepository) FindByID(id uint) (*model.Question, error) {
	var question model.Question
	err := r.db.Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("options.position ASC")
	}).First(&question, id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *questionRepository) FindActiveByCategory(category string) ([]model.Question, error) {
	var questions []model.Question
	err := r.db.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.position ASC")
		}).
		Where("category = ? AND is_active = ?", category, true).
		Order("display_order ASC, id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepository) Update(question *model.Question) error {
	return r.db.Save(question).Error
}

func (r *questionRepository) ReplaceOptions(question *model.Question, options []model.Option) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", question.ID).Delete(&model.Option{}).Error; err != nil {
			return err
		}
		question.Options = options
		return tx.Save(question).Error
	})
}

func (r *questionRepository) Deactivate(id uint) error {
	return r.db.Model(&model.Question{}).Where("id = ?", id).Update("is_active", false).Error
}
