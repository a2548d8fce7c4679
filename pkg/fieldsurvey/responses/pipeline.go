// Package responses persists survey responses: submissions with bounded retry, drafts,
// voiding and the completion index that blocks a second submission of a survey in a session.
package responses

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/case-framework/field-survey-backend/pkg/db"
	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/case-framework/field-survey-backend/pkg/metrics"
	"github.com/case-framework/field-survey-backend/pkg/retry"
	"github.com/case-framework/field-survey-backend/pkg/utils"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// fallbackDraftTimeout bounds the draft write after a failed submission, which runs even when
// the caller's context is already done.
const fallbackDraftTimeout = 10 * time.Second

type Pipeline struct {
	store  docstore.Gateway
	clock  utils.Clock
	Policy retry.Policy
}

func NewPipeline(store docstore.Gateway, clock utils.Clock) *Pipeline {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &Pipeline{
		store:  store,
		clock:  clock,
		Policy: retry.DefaultPolicy(),
	}
}

func validateInput(input types.SubmissionInput) error {
	if input.SessionID == "" || input.SurveyID == "" {
		return types.NewError(types.KIND_INVALID_INPUT, "session and survey are required")
	}
	for _, answer := range input.Answers {
		if answer.QuestionID == "" {
			return types.NewError(types.KIND_INVALID_INPUT, "answer without question id")
		}
	}
	return nil
}

// missingRequired returns the required question IDs that have no answer.
func missingRequired(answers []types.AnswerInput, requiredQuestionIDs []string) []string {
	answered := map[string]bool{}
	for _, answer := range answers {
		answered[answer.QuestionID] = true
	}
	missing := []string{}
	for _, id := range requiredQuestionIDs {
		if !answered[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func buildResponse(id string, input types.SubmissionInput, status types.ResponseStatus, now time.Time) types.Response {
	answers := make([]types.Answer, 0, len(input.Answers))
	for _, a := range input.Answers {
		answers = append(answers, types.Answer{
			ID:          uuid.NewString(),
			ResponseID:  id,
			QuestionID:  a.QuestionID,
			AnswerValue: a.AnswerValue,
		})
	}
	return types.Response{
		ID:            id,
		SessionID:     input.SessionID,
		RespondentID:  input.RespondentID,
		EnumeratorID:  input.EnumeratorID,
		SurveyID:      input.SurveyID,
		SurveyVersion: input.SurveyVersion,
		Location:      input.GPS,
		Status:        status,
		Answers:       answers,
		CreatedAt:     now,
	}
}

// Submit validates and persists a submitted response. Store failures are retried according to
// Policy. Every attempt writes the same response ID, so an attempt whose acknowledgement got
// lost is recognised on the next attempt instead of producing a second response. When all
// attempts fail the answers are kept as a draft whose ID is reported in the error.
func (p *Pipeline) Submit(ctx context.Context, input types.SubmissionInput, requiredQuestionIDs []string) (types.SubmitResult, error) {
	if err := validateInput(input); err != nil {
		metrics.Submissions.WithLabelValues(metrics.RESULT_INVALID).Inc()
		return types.SubmitResult{}, err
	}
	if missing := missingRequired(input.Answers, requiredQuestionIDs); len(missing) > 0 {
		metrics.Submissions.WithLabelValues(metrics.RESULT_INVALID).Inc()
		return types.SubmitResult{}, &types.Error{
			Kind:    types.KIND_MISSING_REQUIRED_ANSWERS,
			Message: "unanswered: " + strings.Join(missing, ", "),
			Count:   len(missing),
		}
	}

	completed, err := p.IsCompleted(ctx, input.SessionID, input.SurveyID)
	if err != nil {
		// the unique index still rejects a duplicate on write
		slog.Warn("completion check failed", slog.String("sessionId", input.SessionID), slog.String("surveyId", input.SurveyID), slog.String("error", err.Error()))
	}
	if completed {
		metrics.Submissions.WithLabelValues(metrics.RESULT_ALREADY_SUBMITTED).Inc()
		return types.SubmitResult{}, alreadySubmitted(input, nil)
	}

	response := buildResponse(uuid.NewString(), input, types.RESPONSE_STATUS_SUBMITTED, p.clock.Now().UTC())

	result := retry.Run(ctx, p.clock, p.Policy, func(ctx context.Context, attempt int) error {
		metrics.SubmissionAttempts.Inc()
		submittedAt := p.clock.Now().UTC()
		response.SubmittedAt = &submittedAt
		return p.persistSubmitted(ctx, input, response)
	}, func(s retry.State) {
		switch s.Phase {
		case retry.PhaseWaiting:
			slog.Warn("submission attempt failed, retrying",
				slog.String("responseId", response.ID),
				slog.Int("attempt", s.Attempt),
				slog.Duration("delay", s.Delay),
				slog.String("error", s.Err.Error()),
			)
		case retry.PhaseExhausted, retry.PhaseCancelled:
			slog.Error("submission failed",
				slog.String("responseId", response.ID),
				slog.String("phase", string(s.Phase)),
				slog.Int("attempts", s.Attempt),
				slog.String("error", s.Err.Error()),
			)
		}
	})

	switch result.Phase {
	case retry.PhaseSucceeded:
		metrics.Submissions.WithLabelValues(metrics.RESULT_SUBMITTED).Inc()
		slog.Info("response submitted", slog.String("responseId", response.ID), slog.String("sessionId", input.SessionID), slog.String("surveyId", input.SurveyID), slog.Int("attempts", result.Attempts))
		return types.SubmitResult{ResponseID: response.ID, Attempts: result.Attempts}, nil
	case retry.PhaseAborted:
		if types.KindOf(result.Err) == types.KIND_ALREADY_SUBMITTED {
			metrics.Submissions.WithLabelValues(metrics.RESULT_ALREADY_SUBMITTED).Inc()
		} else {
			metrics.Submissions.WithLabelValues(metrics.RESULT_FAILED).Inc()
		}
		return types.SubmitResult{}, result.Err
	}

	metrics.Submissions.WithLabelValues(metrics.RESULT_FAILED).Inc()
	failure := &types.Error{
		Kind:     types.KIND_SUBMISSION_FAILED,
		Attempts: result.Attempts,
		Err:      result.Err,
	}
	draftCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fallbackDraftTimeout)
	defer cancel()
	draft, err := p.SaveDraft(draftCtx, types.SubmissionInput{
		SessionID:     input.SessionID,
		SurveyID:      input.SurveyID,
		SurveyVersion: input.SurveyVersion,
		RespondentID:  input.RespondentID,
		EnumeratorID:  input.EnumeratorID,
		Answers:       input.Answers,
		GPS:           input.GPS,
	})
	if err != nil {
		slog.Error("could not preserve failed submission as draft", slog.String("sessionId", input.SessionID), slog.String("error", err.Error()))
	} else {
		failure.DraftID = draft.ID
	}
	return types.SubmitResult{}, failure
}

func (p *Pipeline) persistSubmitted(ctx context.Context, input types.SubmissionInput, response types.Response) error {
	_, err := p.store.Create(ctx, types.COLLECTION_NAME_RESPONSES, response)
	if err == nil || !docstore.IsConflict(err) {
		return err
	}

	existing := types.Response{}
	getErr := p.store.Get(ctx, types.COLLECTION_NAME_RESPONSES, response.ID, &existing)
	switch {
	case getErr == nil:
		slog.Info("earlier submission attempt had been stored", slog.String("responseId", response.ID))
		return nil
	case docstore.IsNotFound(getErr):
		return retry.Permanent(alreadySubmitted(input, err))
	default:
		return getErr
	}
}

func alreadySubmitted(input types.SubmissionInput, cause error) *types.Error {
	return &types.Error{
		Kind:    types.KIND_ALREADY_SUBMITTED,
		Message: fmt.Sprintf("survey %s was already submitted in session %s", input.SurveyID, input.SessionID),
		Current: string(types.RESPONSE_STATUS_SUBMITTED),
		Target:  string(types.RESPONSE_STATUS_SUBMITTED),
		Err:     cause,
	}
}

// SaveDraft stores the answers as a draft without retry. With input.ResponseID set it rewrites
// that draft, which must still be a draft of the same session and survey.
func (p *Pipeline) SaveDraft(ctx context.Context, input types.SubmissionInput) (types.Response, error) {
	if err := validateInput(input); err != nil {
		return types.Response{}, err
	}

	if input.ResponseID == "" {
		draft := buildResponse(uuid.NewString(), input, types.RESPONSE_STATUS_DRAFT, p.clock.Now().UTC())
		if _, err := p.store.Create(ctx, types.COLLECTION_NAME_RESPONSES, draft); err != nil {
			return types.Response{}, fmt.Errorf("saving draft: %w", err)
		}
		metrics.DraftsSaved.Inc()
		slog.Debug("draft saved", slog.String("responseId", draft.ID), slog.String("sessionId", input.SessionID))
		return draft, nil
	}

	current, err := p.Get(ctx, input.ResponseID)
	if err != nil {
		return types.Response{}, err
	}
	if current.SessionID != input.SessionID || current.SurveyID != input.SurveyID {
		return types.Response{}, types.NewError(types.KIND_INVALID_INPUT, "draft belongs to another session or survey")
	}
	if current.Status != types.RESPONSE_STATUS_DRAFT {
		return types.Response{}, types.NewStateConflict(types.KIND_INVALID_TRANSITION, string(current.Status), string(types.RESPONSE_STATUS_DRAFT))
	}

	rebuilt := buildResponse(current.ID, input, types.RESPONSE_STATUS_DRAFT, current.CreatedAt)
	patch := bson.M{
		"answers":       rebuilt.Answers,
		"surveyVersion": rebuilt.SurveyVersion,
	}
	if rebuilt.Location != nil {
		patch["location"] = rebuilt.Location
	}

	updated := types.Response{}
	err = p.store.Update(ctx, types.COLLECTION_NAME_RESPONSES, current.ID, bson.M{"status": types.RESPONSE_STATUS_DRAFT}, patch, &updated)
	if err != nil {
		if docstore.IsConflict(err) {
			return types.Response{}, &types.Error{
				Kind:    types.KIND_INVALID_TRANSITION,
				Message: "draft changed status concurrently",
				Target:  string(types.RESPONSE_STATUS_DRAFT),
				Err:     err,
			}
		}
		return types.Response{}, err
	}
	metrics.DraftsSaved.Inc()
	return updated, nil
}

// Void marks a submitted response as voided. Voiding is terminal.
func (p *Pipeline) Void(ctx context.Context, responseID string, req types.VoidRequest) (types.Response, error) {
	current, err := p.Get(ctx, responseID)
	if err != nil {
		return types.Response{}, err
	}
	if current.Status != types.RESPONSE_STATUS_SUBMITTED {
		return types.Response{}, types.NewStateConflict(types.KIND_NOT_VOIDABLE, string(current.Status), string(types.RESPONSE_STATUS_VOIDED))
	}
	if strings.TrimSpace(req.VoidReason) == "" {
		return types.Response{}, types.NewError(types.KIND_REASON_REQUIRED, "a void reason is required")
	}
	if strings.TrimSpace(req.VoidedBy) == "" {
		return types.Response{}, types.NewError(types.KIND_INVALID_INPUT, "voidedBy is required")
	}

	updated := types.Response{}
	err = p.store.Update(ctx, types.COLLECTION_NAME_RESPONSES, responseID,
		bson.M{"status": types.RESPONSE_STATUS_SUBMITTED},
		bson.M{
			"status":     types.RESPONSE_STATUS_VOIDED,
			"voidedBy":   req.VoidedBy,
			"voidReason": strings.TrimSpace(req.VoidReason),
			"voidedAt":   p.clock.Now().UTC(),
		},
		&updated,
	)
	if err != nil {
		if docstore.IsConflict(err) {
			return types.Response{}, &types.Error{
				Kind:    types.KIND_NOT_VOIDABLE,
				Current: string(types.RESPONSE_STATUS_VOIDED),
				Target:  string(types.RESPONSE_STATUS_VOIDED),
				Err:     err,
			}
		}
		return types.Response{}, err
	}

	metrics.ResponsesVoided.Inc()
	slog.Info("response voided", slog.String("responseId", responseID), slog.String("voidedBy", req.VoidedBy))
	return updated, nil
}

// IsCompleted reports whether a submitted response exists for the session and survey. It reads
// the store on every call.
func (p *Pipeline) IsCompleted(ctx context.Context, sessionID string, surveyID string) (bool, error) {
	count, err := p.store.Count(ctx, types.COLLECTION_NAME_RESPONSES, bson.M{
		"sessionId": sessionID,
		"surveyId":  surveyID,
		"status":    types.RESPONSE_STATUS_SUBMITTED,
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *Pipeline) Get(ctx context.Context, id string) (types.Response, error) {
	response := types.Response{}
	if err := p.store.Get(ctx, types.COLLECTION_NAME_RESPONSES, id, &response); err != nil {
		if docstore.IsNotFound(err) {
			return response, types.NewError(types.KIND_NOT_FOUND, "response not found")
		}
		return response, err
	}
	return response, nil
}

func filterFor(f types.ResponseFilter) bson.M {
	filter := bson.M{}
	if f.SessionID != "" {
		filter["sessionId"] = f.SessionID
	}
	if f.SurveyID != "" {
		filter["surveyId"] = f.SurveyID
	}
	if f.EnumeratorID != "" {
		filter["enumeratorId"] = f.EnumeratorID
	}
	if f.RespondentID != "" {
		filter["respondentId"] = f.RespondentID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

// List returns a page of responses, newest first.
func (p *Pipeline) List(ctx context.Context, f types.ResponseFilter, page int64, limit int64) ([]types.Response, *db.PaginationInfos, error) {
	filter := filterFor(f)
	count, err := p.store.Count(ctx, types.COLLECTION_NAME_RESPONSES, filter)
	if err != nil {
		return nil, nil, err
	}
	paginationInfo := db.PreparePaginationInfos(count, page, limit)

	responses := []types.Response{}
	err = p.store.List(ctx, types.COLLECTION_NAME_RESPONSES, docstore.Query{
		Filter: filter,
		Sort:   []docstore.SortField{{Key: "createdAt", Desc: true}},
		Limit:  paginationInfo.PageSize,
		Offset: paginationInfo.Offset(),
	}, &responses)
	if err != nil {
		return nil, nil, err
	}
	return responses, paginationInfo, nil
}
