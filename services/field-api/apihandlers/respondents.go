package apihandlers

import (
	"log/slog"
	"net/http"

	"github.com/case-framework/field-survey-backend/pkg/apihelpers"
	mw "github.com/case-framework/field-survey-backend/pkg/apihelpers/middlewares"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/respondents"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/gin-gonic/gin"
)

func (h *HttpEndpoints) addRespondentEndpoints(rg *gin.RouterGroup) {
	respondentsGroup := rg.Group("/respondents")
	{
		respondentsGroup.POST("", mw.RequirePayload(), h.registerRespondent)
		respondentsGroup.GET("", h.listOwnRespondents)
		respondentsGroup.GET("/:respondentID", h.getRespondent)
	}
}

func (h *HttpEndpoints) registerRespondent(c *gin.Context) {
	token := getToken(c)

	var req respondents.RegistrationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to bind request", err)
		return
	}
	req.EnumeratorID = token.Subject

	respondent, err := h.engine.Respondents.Register(c.Request.Context(), req)
	if err != nil {
		respondWithError(c, "failed to register respondent", err)
		return
	}

	slog.Info("respondent registered", slog.String("pseudonym", respondent.Pseudonym), slog.String("userID", token.Subject))
	c.JSON(http.StatusOK, gin.H{"respondent": respondent})
}

func (h *HttpEndpoints) listOwnRespondents(c *gin.Context) {
	token := getToken(c)

	query, err := apihelpers.ParsePaginatedQueryFromCtx(c)
	if err != nil {
		badRequest(c, "invalid pagination", err)
		return
	}

	list, paginationInfo, err := h.engine.Respondents.List(c.Request.Context(), token.Subject, query.Page, query.Limit)
	if err != nil {
		respondWithError(c, "failed to list respondents", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"respondents": list,
		"pagination":  paginationInfo,
	})
}

func (h *HttpEndpoints) getRespondent(c *gin.Context) {
	token := getToken(c)

	respondent, err := h.engine.Respondents.Get(c.Request.Context(), c.Param("respondentID"))
	if err != nil {
		respondWithError(c, "failed to get respondent", err)
		return
	}
	if respondent.EnumeratorID != token.Subject && !token.IsAdmin() {
		respondWithError(c, "respondent of another enumerator requested", types.NewError(types.KIND_NOT_FOUND, "respondent not found"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"respondent": respondent})
}
