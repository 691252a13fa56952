package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mindfold/questionnaire/internal/dto"
)

// StartSessionHandler godoc
// @Summary Start a test session
// @Description Create an in-progress session positioned at the first active question for the test type
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param session body dto.StartSessionRequest true "Test type to start"
// @Success 201 {object} dto.SessionResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid request body or unknown test type"
// @Failure 401 {object} dto.ErrorResponse "Missing or invalid token"
// @Router /sessions [post]
func (ctrl *Controller) StartSessionHandler(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required"})
		return
	}

	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind StartSessionRequest")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := ctrl.sessionSvc.StartSession(user, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetSessionHandler godoc
// @Summary Get a session
// @Description Retrieve a session with its answers and current question; owner or admin only
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 403 {object} dto.ErrorResponse "Session belongs to another user"
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Router /sessions/{id} [get]
func (ctrl *Controller) GetSessionHandler(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required"})
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		return
	}

	resp, err := ctrl.sessionSvc.GetSession(user, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitAnswerHandler godoc
// @Summary Submit an answer
// @Description Answer the session's current question; returns the next question or the final result
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param answer body dto.SubmitAnswerRequest true "Selection for the current question"
// @Success 200 {object} dto.SubmitAnswerResponse
// @Failure 400 {object} dto.ErrorResponse "Malformed selection"
// @Failure 403 {object} dto.ErrorResponse "Session belongs to another user"
// @Failure 404 {object} dto.ErrorResponse "Session or question not found"
// @Failure 409 {object} dto.ErrorResponse "Session closed or question mismatch"
// @Router /sessions/{id}/answers [post]
func (ctrl *Controller) SubmitAnswerHandler(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required"})
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		return
	}

	var req dto.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind SubmitAnswerRequest")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := ctrl.sessionSvc.SubmitAnswer(user, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AbandonSessionHandler godoc
// @Summary Abandon a session
// @Description Transition an in-progress session to abandoned; idempotent on terminal sessions
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 403 {object} dto.ErrorResponse "Session belongs to another user"
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Router /sessions/{id}/abandon [post]
func (ctrl *Controller) AbandonSessionHandler(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required"})
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		return
	}

	resp, err := ctrl.sessionSvc.AbandonSession(user, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
