package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mindfold/questionnaire/internal/apperror"
	"github.com/mindfold/questionnaire/internal/dto"
	"github.com/mindfold/questionnaire/internal/service"
)

type Controller struct {
	userSvc     service.UserService
	questionSvc service.QuestionService
	sessionSvc  service.SessionService
}

func NewController(userSvc service.UserService, questionSvc service.QuestionService, sessionSvc service.SessionService) *Controller {
	return &Controller{
		userSvc:     userSvc,
		questionSvc: questionSvc,
		sessionSvc:  sessionSvc,
	}
}

func (ctrl *Controller) RegisterRoutes(router *gin.Engine, authMW *AuthMiddleware) {
	apiV1 := router.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		auth.POST("/register", ctrl.RegisterHandler)
		auth.POST("/login", ctrl.LoginHandler)

		authed := apiV1.Group("")
		authed.Use(authMW.RequireAuth())
		{
			authed.GET("/me", ctrl.MeHandler)
			authed.GET("/questions", ctrl.GetQuestionsHandler)

			sessions := authed.Group("/sessions")
			sessions.POST("", ctrl.StartSessionHandler)
			sessions.GET("/:id", ctrl.GetSessionHandler)
			sessions.POST("/:id/answers", ctrl.SubmitAnswerHandler)
			sessions.POST("/:id/abandon", ctrl.AbandonSessionHandler)
		}

		admin := apiV1.Group("/admin")
		admin.Use(authMW.RequireAuth(), authMW.RequireAdmin())
		{
			admin.POST("/questions", ctrl.CreateQuestionHandler)
			admin.PUT("/questions/:id", ctrl.UpdateQuestionHandler)
			admin.DELETE("/questions/:id", ctrl.DeactivateQuestionHandler)
		}
	}
}

// respondError translates a service failure into the response the API
// contract promises. Internal errors are logged and masked.
func respondError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(status, dto.ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(status, dto.ErrorResponse{Error: err.Error()})
}
