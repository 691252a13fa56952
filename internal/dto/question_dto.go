package dto

import "time"

// OptionCreateDTO is used within question authoring requests.
type OptionCreateDTO struct {
	Text           string  `json:"text" binding:"required"`
	Score          float64 `json:"score"`
	NextQuestionID *uint   `json:"next_question_id"`
}

type CreateQuestionRequest struct {
	Title    string            `json:"title" binding:"required"`
	Type     string            `json:"type" binding:"required,oneof=single multiple text"`
	Options  []OptionCreateDTO `json:"options" binding:"omitempty,dive"`
	Order    int               `json:"order"`
	Category string            `json:"category"`
	Required *bool             `json:"required"`
}

type UpdateQuestionRequest struct {
	Title    string            `json:"title" binding:"required"`
	Type     string            `json:"type" binding:"required,oneof=single multiple text"`
	Options  []OptionCreateDTO `json:"options" binding:"omitempty,dive"`
	Order    int               `json:"order"`
	Category string            `json:"category"`
	Required *bool             `json:"required"`
	IsActive *bool             `json:"is_active"`
}

type OptionResponse struct {
	ID             uint    `json:"id"`
	Text           string  `json:"text"`
	Score          float64 `json:"score"`
	NextQuestionID *uint   `json:"next_question_id,omitempty"`
	Position       int     `json:"position"`
}

type QuestionResponse struct {
	ID        uint             `json:"id"`
	Title     string           `json:"title"`
	Type      string           `json:"type"`
	Options   []OptionResponse `json:"options,omitempty"`
	Order     int              `json:"order"`
	Category  string           `json:"category"`
	Required  bool             `json:"required"`
	IsActive  bool             `json:"is_active"`
	CreatedAt time.Time        `json:"created_at"`
}
