package dto

import "time"

type StartSessionRequest struct {
	TestType string `json:"test_type" binding:"required"`
}

// SubmitAnswerRequest carries the user's selection for the session's current
// question: option ids for choice questions, free text for text questions.
type SubmitAnswerRequest struct {
	QuestionID        uint   `json:"question_id" binding:"required"`
	SelectedOptionIDs []uint `json:"selected_option_ids"`
	TextAnswer        string `json:"text_answer"`
}

type AnswerResponse struct {
	ID                uint      `json:"id"`
	QuestionID        uint      `json:"question_id"`
	SelectedOptionIDs []uint    `json:"selected_option_ids,omitempty"`
	TextAnswer        *string   `json:"text_answer,omitempty"`
	Score             float64   `json:"score"`
	AnsweredAt        time.Time `json:"answered_at"`
}

// SubmitAnswerResponse returns the resolved next question (null when the
// session just completed) together with the updated running score.
type SubmitAnswerResponse struct {
	NextQuestion *QuestionResponse `json:"next_question"`
	TotalScore   float64           `json:"total_score"`
	Completed    bool              `json:"completed"`
	Result       *string           `json:"result,omitempty"`
}

type SessionResponse struct {
	ID                uint              `json:"id"`
	UserID            uint              `json:"user_id"`
	TestType          string            `json:"test_type"`
	TotalScore        float64           `json:"total_score"`
	Result            *string           `json:"result,omitempty"`
	Status            string            `json:"status"`
	CurrentQuestion   *QuestionResponse `json:"current_question,omitempty"`
	Answers           []AnswerResponse  `json:"answers,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

type SessionSummaryDTO struct {
	ID          uint       `json:"id"`
	TestType    string     `json:"test_type"`
	TotalScore  float64    `json:"total_score"`
	Result      *string    `json:"result,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
