package apihandlers

import (
	"log/slog"
	"net/http"

	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/surveys"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/gin-gonic/gin"
)

type submissionReq struct {
	ResponseID string              `json:"responseId,omitempty"`
	SurveyID   string              `json:"surveyId"`
	Answers    []types.AnswerInput `json:"answers"`
	GPS        *types.Location     `json:"gps,omitempty"`
}

// prepareSubmission checks that the session in the path is open and owned by the caller and that
// the survey takes responses. Identity fields come from the session, never from the body.
func (h *HttpEndpoints) prepareSubmission(c *gin.Context) (types.SubmissionInput, types.Survey, bool) {
	token := getToken(c)

	var req submissionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to bind request", err)
		return types.SubmissionInput{}, types.Survey{}, false
	}

	session, ok := h.getOwnSession(c, token)
	if !ok {
		return types.SubmissionInput{}, types.Survey{}, false
	}
	if session.EnumeratorID != token.Subject {
		respondWithError(c, "only the session's enumerator can submit", types.NewError(types.KIND_NOT_FOUND, "session not found"))
		return types.SubmissionInput{}, types.Survey{}, false
	}
	if !session.IsOpen() {
		respondWithError(c, "session is not open", types.NewStateConflict(types.KIND_ALREADY_CLOSED, string(session.Status), string(types.SESSION_STATUS_OPEN)))
		return types.SubmissionInput{}, types.Survey{}, false
	}

	survey, err := h.engine.Surveys.Get(c.Request.Context(), req.SurveyID)
	if err != nil {
		respondWithError(c, "failed to get survey", err)
		return types.SubmissionInput{}, types.Survey{}, false
	}
	if err := surveys.AcceptsResponses(survey); err != nil {
		respondWithError(c, "survey does not take responses", err)
		return types.SubmissionInput{}, types.Survey{}, false
	}

	return types.SubmissionInput{
		ResponseID:    req.ResponseID,
		SessionID:     session.ID,
		SurveyID:      survey.ID,
		SurveyVersion: survey.Version,
		RespondentID:  session.RespondentID,
		EnumeratorID:  session.EnumeratorID,
		Answers:       req.Answers,
		GPS:           req.GPS,
	}, survey, true
}

func (h *HttpEndpoints) touchAfterWrite(c *gin.Context, sessionID string) {
	if _, err := h.engine.Sessions.Touch(c.Request.Context(), sessionID); err != nil {
		slog.Warn("failed to touch session after write", slog.String("sessionId", sessionID), slog.String("error", err.Error()))
	}
}

func (h *HttpEndpoints) submitResponse(c *gin.Context) {
	input, survey, ok := h.prepareSubmission(c)
	if !ok {
		return
	}

	result, err := h.engine.Responses.Submit(c.Request.Context(), input, surveys.RequiredQuestionIDs(survey))
	if err != nil {
		respondWithError(c, "failed to submit response", err)
		return
	}
	h.touchAfterWrite(c, input.SessionID)

	slog.Info("response submitted", slog.String("responseId", result.ResponseID), slog.String("sessionId", input.SessionID), slog.Int("attempts", result.Attempts))
	c.JSON(http.StatusOK, result)
}

func (h *HttpEndpoints) saveDraft(c *gin.Context) {
	input, _, ok := h.prepareSubmission(c)
	if !ok {
		return
	}

	draft, err := h.engine.Responses.SaveDraft(c.Request.Context(), input)
	if err != nil {
		respondWithError(c, "failed to save draft", err)
		return
	}
	h.touchAfterWrite(c, input.SessionID)

	c.JSON(http.StatusOK, gin.H{"response": draft})
}
