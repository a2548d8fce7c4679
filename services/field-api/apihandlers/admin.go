package apihandlers

import (
	"log/slog"
	"net/http"

	"github.com/case-framework/field-survey-backend/pkg/apihelpers"
	mw "github.com/case-framework/field-survey-backend/pkg/apihelpers/middlewares"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/gin-gonic/gin"
)

func (h *HttpEndpoints) addAdminSurveyEndpoints(rg *gin.RouterGroup) {
	surveysGroup := rg.Group("/surveys")
	{
		surveysGroup.GET("", h.adminListSurveys) // ?status=draft
		surveysGroup.POST("", mw.RequirePayload(), h.adminCreateSurvey)
		surveysGroup.GET("/:surveyID", h.adminGetSurvey)
		surveysGroup.PATCH("/:surveyID", mw.RequirePayload(), h.adminUpdateSurvey)
	}
}

func (h *HttpEndpoints) addAdminResponseEndpoints(rg *gin.RouterGroup) {
	responsesGroup := rg.Group("/responses")
	{
		responsesGroup.GET("", h.adminListResponses) // ?sessionId=&surveyId=&enumeratorId=&respondentId=&status=&page=&limit=
		responsesGroup.GET("/:responseID", h.adminGetResponse)
		responsesGroup.POST("/:responseID/void", mw.RequirePayload(), h.adminVoidResponse)
	}
}

func (h *HttpEndpoints) adminListSurveys(c *gin.Context) {
	status := types.SurveyStatus(c.Query("status"))

	list, err := h.engine.Surveys.List(c.Request.Context(), status)
	if err != nil {
		respondWithError(c, "failed to list surveys", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"surveys": list})
}

type createSurveyReq struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Version     string           `json:"version"`
	Questions   []types.Question `json:"questions"`
}

func (h *HttpEndpoints) adminCreateSurvey(c *gin.Context) {
	token := getToken(c)

	var req createSurveyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to bind request", err)
		return
	}

	survey, err := h.engine.Surveys.Create(c.Request.Context(), types.Survey{
		Title:       req.Title,
		Description: req.Description,
		Version:     req.Version,
		Questions:   req.Questions,
	})
	if err != nil {
		respondWithError(c, "failed to create survey", err)
		return
	}

	slog.Info("survey created", slog.String("surveyId", survey.ID), slog.String("userID", token.Subject))
	c.JSON(http.StatusOK, gin.H{"survey": survey})
}

func (h *HttpEndpoints) adminGetSurvey(c *gin.Context) {
	survey, err := h.engine.Surveys.Get(c.Request.Context(), c.Param("surveyID"))
	if err != nil {
		respondWithError(c, "failed to get survey", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"survey": survey})
}

func (h *HttpEndpoints) adminUpdateSurvey(c *gin.Context) {
	token := getToken(c)

	var req types.SurveyUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to bind request", err)
		return
	}

	survey, err := h.engine.Surveys.Update(c.Request.Context(), c.Param("surveyID"), req)
	if err != nil {
		respondWithError(c, "failed to update survey", err)
		return
	}

	slog.Info("survey updated", slog.String("surveyId", survey.ID), slog.String("status", string(survey.Status)), slog.String("userID", token.Subject))
	c.JSON(http.StatusOK, gin.H{"survey": survey})
}

func (h *HttpEndpoints) adminListResponses(c *gin.Context) {
	query, err := apihelpers.ParsePaginatedQueryFromCtx(c)
	if err != nil {
		badRequest(c, "invalid pagination", err)
		return
	}

	filter := types.ResponseFilter{
		SessionID:    c.Query("sessionId"),
		SurveyID:     c.Query("surveyId"),
		EnumeratorID: c.Query("enumeratorId"),
		RespondentID: c.Query("respondentId"),
		Status:       types.ResponseStatus(c.Query("status")),
	}

	list, paginationInfo, err := h.engine.Responses.List(c.Request.Context(), filter, query.Page, query.Limit)
	if err != nil {
		respondWithError(c, "failed to list responses", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"responses":  list,
		"pagination": paginationInfo,
	})
}

func (h *HttpEndpoints) adminGetResponse(c *gin.Context) {
	response, err := h.engine.Responses.Get(c.Request.Context(), c.Param("responseID"))
	if err != nil {
		respondWithError(c, "failed to get response", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": response})
}

type voidResponseReq struct {
	Reason string `json:"reason"`
}

func (h *HttpEndpoints) adminVoidResponse(c *gin.Context) {
	token := getToken(c)

	var req voidResponseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to bind request", err)
		return
	}

	response, err := h.engine.Responses.Void(c.Request.Context(), c.Param("responseID"), types.VoidRequest{
		VoidedBy:   token.Subject,
		VoidReason: req.Reason,
	})
	if err != nil {
		respondWithError(c, "failed to void response", err)
		return
	}

	slog.Info("response voided", slog.String("responseId", response.ID), slog.String("userID", token.Subject))
	c.JSON(http.StatusOK, gin.H{"response": response})
}
