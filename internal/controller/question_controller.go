package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mindfold/questionnaire/internal/dto"
)

// GetQuestionsHandler godoc
// @Summary Get active questions
// @Description Retrieve active questions for a test category, ordered for display
// @Tags questions
// @Produce json
// @Security BearerAuth
// @Param category query string false "Test category (defaults to procrastination)"
// @Success 200 {array} dto.QuestionResponse
// @Failure 401 {object} dto.ErrorResponse "Missing or invalid token"
// @Router /questions [get]
func (ctrl *Controller) GetQuestionsHandler(c *gin.Context) {
	questions, err := ctrl.questionSvc.GetActiveQuestions(c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// CreateQuestionHandler godoc
// @Summary Create a question
// @Description Add a new question with its options; branch targets must reference existing questions
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param question body dto.CreateQuestionRequest true "Question data"
// @Success 201 {object} dto.QuestionResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid request body or structure"
// @Failure 403 {object} dto.ErrorResponse "Admin role required"
// @Router /admin/questions [post]
func (ctrl *Controller) CreateQuestionHandler(c *gin.Context) {
	var req dto.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind CreateQuestionRequest")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := ctrl.questionSvc.CreateQuestion(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// UpdateQuestionHandler godoc
// @Summary Update a question
// @Description Replace a question's fields and options
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Param question body dto.UpdateQuestionRequest true "Updated question data"
// @Success 200 {object} dto.QuestionResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid request body or ID"
// @Failure 404 {object} dto.ErrorResponse "Question not found"
// @Router /admin/questions/{id} [put]
func (ctrl *Controller) UpdateQuestionHandler(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		return
	}

	var req dto.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := ctrl.questionSvc.UpdateQuestion(id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeactivateQuestionHandler godoc
// @Summary Deactivate a question
// @Description Remove a question from active questionnaires without deleting answer history
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Success 204 "No Content"
// @Failure 400 {object} dto.ErrorResponse "Invalid ID format"
// @Failure 404 {object} dto.ErrorResponse "Question not found"
// @Router /admin/questions/{id} [delete]
func (ctrl *Controller) DeactivateQuestionHandler(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		return
	}

	if err := ctrl.questionSvc.DeactivateQuestion(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseIDParam reads the :id path parameter, writing the 400 response itself
// on a malformed value.
func parseIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid ID format"})
		return 0, err
	}
	return uint(id), nil
}
