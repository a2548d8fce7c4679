package apihandlers

import (
	"net/http"

	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/surveys"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/gin-gonic/gin"
)

func (h *HttpEndpoints) addSurveyEndpoints(rg *gin.RouterGroup) {
	surveysGroup := rg.Group("/surveys")
	{
		surveysGroup.GET("", h.listActiveSurveys)
		surveysGroup.GET("/:surveyID", h.getActiveSurvey)
	}
}

// enumerators only see surveys that take responses
func (h *HttpEndpoints) listActiveSurveys(c *gin.Context) {
	list, err := h.engine.Surveys.List(c.Request.Context(), types.SURVEY_STATUS_LOCKED)
	if err != nil {
		respondWithError(c, "failed to list surveys", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"surveys": list})
}

func (h *HttpEndpoints) getActiveSurvey(c *gin.Context) {
	survey, err := h.engine.Surveys.Get(c.Request.Context(), c.Param("surveyID"))
	if err != nil {
		respondWithError(c, "failed to get survey", err)
		return
	}
	if err := surveys.AcceptsResponses(survey); err != nil {
		respondWithError(c, "survey does not take responses", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"survey": survey})
}
