package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	QuestionTypeSingle   = "single"
	QuestionTypeMultiple = "multiple"
	QuestionTypeText     = "text"
)

// Question is shared, read-only reference data from the session engine's point
// of view. Choice questions carry at least one option; text questions carry
// none and never branch.
type Question struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Title     string         `json:"title" gorm:"not null"`
	Type      string         `json:"type" gorm:"not null"` // "single", "multiple", "text"
	Options   []Option       `json:"options,omitempty" gorm:"foreignKey:QuestionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Order     int            `json:"order" gorm:"column:display_order;not null;index"`
	Category  string         `json:"category" gorm:"not null;default:'procrastination';index"`
	Required  bool           `json:"required" gorm:"default:true"`
	IsActive  bool           `json:"is_active" gorm:"default:true;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Option is one selectable choice. NextQuestionID, when set, overrides the
// default sequential order as the branch target for a single-choice answer.
type Option struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	QuestionID     uint      `json:"question_id" gorm:"not null;index"`
	Text           string    `json:"text" gorm:"not null"`
	Score          float64   `json:"score" gorm:"default:0"`
	NextQuestionID *uint     `json:"next_question_id,omitempty"`
	Position       int       `json:"position" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OptionByID returns the option with the given id, or nil.
func (q *Question) OptionByID(id uint) *Option {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i]
		}
	}
	return nil
}
