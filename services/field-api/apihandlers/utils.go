package apihandlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	jwthandling "github.com/case-framework/field-survey-backend/pkg/jwt-handling"
	"github.com/gin-gonic/gin"
)

func getToken(c *gin.Context) *jwthandling.FieldUserClaims {
	return c.MustGet("validatedToken").(*jwthandling.FieldUserClaims)
}

func statusForError(err error) int {
	kind := types.KindOf(err)
	switch {
	case kind == "":
		return http.StatusInternalServerError
	case types.IsValidationKind(kind):
		return http.StatusBadRequest
	case kind == types.KIND_NOT_FOUND:
		return http.StatusNotFound
	case types.IsStateConflictKind(kind):
		return http.StatusConflict
	case kind == types.KIND_CAPACITY_EXCEEDED:
		return http.StatusInsufficientStorage
	case kind == types.KIND_SUBMISSION_FAILED:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondWithError maps domain errors to status codes and carries their context to the client.
// Unexpected errors are logged and hidden behind a generic message.
func respondWithError(c *gin.Context, msg string, err error) {
	status := statusForError(err)

	var domainErr *types.Error
	if !errors.As(err, &domainErr) {
		slog.Error(msg, slog.String("error", err.Error()), slog.String("path", c.FullPath()))
		c.JSON(status, gin.H{"error": msg})
		return
	}

	if status >= http.StatusInternalServerError {
		slog.Error(msg, slog.String("error", err.Error()), slog.String("path", c.FullPath()))
	} else {
		slog.Warn(msg, slog.String("error", err.Error()), slog.String("path", c.FullPath()))
	}

	body := gin.H{
		"error": err.Error(),
		"kind":  domainErr.Kind,
	}
	if domainErr.Current != "" {
		body["current"] = domainErr.Current
	}
	if domainErr.Target != "" {
		body["target"] = domainErr.Target
	}
	if domainErr.Count > 0 {
		body["count"] = domainErr.Count
	}
	if domainErr.Attempts > 0 {
		body["attempts"] = domainErr.Attempts
	}
	if domainErr.DraftID != "" {
		body["draftId"] = domainErr.DraftID
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string, err error) {
	slog.Warn(msg, slog.String("error", err.Error()), slog.String("path", c.FullPath()))
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
