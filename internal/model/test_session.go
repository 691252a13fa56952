package model

import (
	"time"
)

const (
	SessionStatusInProgress = "in_progress"
	SessionStatusCompleted  = "completed"
	SessionStatusAbandoned  = "abandoned"
)

// TestSession is one user's attempt at a questionnaire. Status transitions are
// one-directional: in_progress -> completed or in_progress -> abandoned.
// CurrentQuestionID tracks the expected question explicitly instead of being
// re-derived from the answer list. Version is the optimistic-lock counter that
// serializes concurrent submissions for the same session at the store.
type TestSession struct {
	ID                uint       `gorm:"primarykey" json:"id"`
	UserID            uint       `json:"user_id" gorm:"not null;index:idx_sessions_user_type"`
	TestType          string     `json:"test_type" gorm:"not null;default:'procrastination';index:idx_sessions_user_type"`
	TotalScore        float64    `json:"total_score" gorm:"not null;default:0"`
	Result            *string    `json:"result,omitempty"`
	Answers           []Answer   `json:"answers,omitempty" gorm:"foreignKey:TestSessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Status            string     `json:"status" gorm:"not null;default:'in_progress';index"`
	CurrentQuestionID *uint      `json:"current_question_id,omitempty"`
	Version           uint       `json:"-" gorm:"not null;default:1"`
	StartedAt         time.Time  `json:"started_at" gorm:"autoCreateTime"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Terminal reports whether the session can no longer be mutated.
func (s *TestSession) Terminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusAbandoned
}
