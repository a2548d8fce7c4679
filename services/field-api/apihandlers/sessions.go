package apihandlers

import (
	"net/http"

	mw "github.com/case-framework/field-survey-backend/pkg/apihelpers/middlewares"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	jwthandling "github.com/case-framework/field-survey-backend/pkg/jwt-handling"
	"github.com/gin-gonic/gin"
)

func (h *HttpEndpoints) addSessionEndpoints(rg *gin.RouterGroup) {
	sessionsGroup := rg.Group("/sessions")
	{
		sessionsGroup.POST("", mw.RequirePayload(), h.openSession)
		sessionsGroup.GET("/active", h.getActiveSession)
		sessionsGroup.GET("/:sessionID", h.getSession)
		sessionsGroup.POST("/:sessionID/touch", h.touchSession)
		sessionsGroup.POST("/:sessionID/close", mw.RequirePayload(), h.closeSession)
		sessionsGroup.GET("/:sessionID/completed/:surveyID", h.isSurveyCompleted)

		sessionsGroup.POST("/:sessionID/responses", mw.RequirePayload(), h.submitResponse)
		sessionsGroup.POST("/:sessionID/drafts", mw.RequirePayload(), h.saveDraft)
	}
}

// getOwnSession loads a session of the calling enumerator. Sessions of other enumerators are
// reported as not found; administrators can read any session.
func (h *HttpEndpoints) getOwnSession(c *gin.Context, token *jwthandling.FieldUserClaims) (types.Session, bool) {
	session, err := h.engine.Sessions.Get(c.Request.Context(), c.Param("sessionID"))
	if err != nil {
		respondWithError(c, "failed to get session", err)
		return session, false
	}
	if session.EnumeratorID != token.Subject && !token.IsAdmin() {
		respondWithError(c, "session of another enumerator requested", types.NewError(types.KIND_NOT_FOUND, "session not found"))
		return session, false
	}
	return session, true
}

type openSessionReq struct {
	RespondentID string `json:"respondentId"`
}

func (h *HttpEndpoints) openSession(c *gin.Context) {
	token := getToken(c)

	var req openSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to bind request", err)
		return
	}

	session, err := h.engine.Sessions.Create(c.Request.Context(), req.RespondentID, token.Subject)
	if err != nil {
		respondWithError(c, "failed to open session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": h.engine.Sessions.Describe(session)})
}

func (h *HttpEndpoints) getActiveSession(c *gin.Context) {
	token := getToken(c)

	session, err := h.engine.Sessions.GetActive(c.Request.Context(), token.Subject)
	if err != nil {
		respondWithError(c, "failed to get active session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": h.engine.Sessions.Describe(session)})
}

func (h *HttpEndpoints) getSession(c *gin.Context) {
	token := getToken(c)

	session, ok := h.getOwnSession(c, token)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": h.engine.Sessions.Describe(session)})
}

func (h *HttpEndpoints) touchSession(c *gin.Context) {
	token := getToken(c)

	session, ok := h.getOwnSession(c, token)
	if !ok {
		return
	}

	session, err := h.engine.Sessions.Touch(c.Request.Context(), session.ID)
	if err != nil {
		respondWithError(c, "failed to touch session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": h.engine.Sessions.Describe(session)})
}

type closeSessionReq struct {
	Reason types.CloseReason `json:"reason"`
}

func (h *HttpEndpoints) closeSession(c *gin.Context) {
	token := getToken(c)

	var req closeSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to bind request", err)
		return
	}

	session, ok := h.getOwnSession(c, token)
	if !ok {
		return
	}

	session, err := h.engine.Sessions.Close(c.Request.Context(), session.ID, req.Reason)
	if err != nil {
		respondWithError(c, "failed to close session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": h.engine.Sessions.Describe(session)})
}

func (h *HttpEndpoints) isSurveyCompleted(c *gin.Context) {
	token := getToken(c)

	session, ok := h.getOwnSession(c, token)
	if !ok {
		return
	}

	surveyID := c.Param("surveyID")
	completed, err := h.engine.Responses.IsCompleted(c.Request.Context(), session.ID, surveyID)
	if err != nil {
		respondWithError(c, "failed to check completion", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": session.ID,
		"surveyId":  surveyID,
		"completed": completed,
	})
}
