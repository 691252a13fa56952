package model

import (
	"time"
)

// Answer records one user's response to one question within one session.
// Created exactly once per (session, question) pair and never updated; the
// unique index backstops the engine's exactly-once check.
type Answer struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	UserID            uint      `json:"user_id" gorm:"not null;index:idx_answers_user_session"`
	QuestionID        uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_answers_session_question"`
	Question          Question  `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
	TestSessionID     uint      `json:"test_session_id" gorm:"not null;index:idx_answers_user_session;uniqueIndex:idx_answers_session_question"`
	SelectedOptionIDs []uint    `json:"selected_option_ids" gorm:"serializer:json"`
	TextAnswer        *string   `json:"text_answer,omitempty" gorm:"type:text"`
	Score             float64   `json:"score" gorm:"not null;default:0"`
	AnsweredAt        time.Time `json:"answered_at" gorm:"autoCreateTime"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
