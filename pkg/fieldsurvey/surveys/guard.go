package surveys

import "github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"

// ValidateUpdate checks a proposed update against the lifecycle draft -> locked -> archived.
// Drafts are freely editable, locked surveys only move to archived and archived surveys are frozen.
func ValidateUpdate(current types.Survey, proposed types.SurveyUpdate) error {
	switch current.Status {
	case types.SURVEY_STATUS_ARCHIVED:
		if !proposed.IsEmpty() {
			return types.NewStateConflict(types.KIND_ARCHIVED_IMMUTABLE, string(current.Status), targetOf(current, proposed))
		}
	case types.SURVEY_STATUS_LOCKED:
		if proposed.HasContentChanges() {
			return types.NewStateConflict(types.KIND_LOCKED_IMMUTABLE, string(current.Status), targetOf(current, proposed))
		}
		if proposed.Status != nil && *proposed.Status != types.SURVEY_STATUS_ARCHIVED {
			return types.NewStateConflict(types.KIND_INVALID_TRANSITION, string(current.Status), string(*proposed.Status))
		}
	case types.SURVEY_STATUS_DRAFT:
		if proposed.Status != nil && *proposed.Status != types.SURVEY_STATUS_LOCKED {
			return types.NewStateConflict(types.KIND_INVALID_TRANSITION, string(current.Status), string(*proposed.Status))
		}
	default:
		return types.NewError(types.KIND_INVALID_INPUT, "unknown survey status "+string(current.Status))
	}
	return nil
}

func targetOf(current types.Survey, proposed types.SurveyUpdate) string {
	if proposed.Status != nil {
		return string(*proposed.Status)
	}
	return string(current.Status)
}

// AcceptsResponses reports whether responses can be collected against the survey. Only locked
// surveys are in the field.
func AcceptsResponses(s types.Survey) error {
	if s.Status != types.SURVEY_STATUS_LOCKED {
		return &types.Error{
			Kind:    types.KIND_SURVEY_NOT_ACTIVE,
			Message: "survey " + s.ID + " is not accepting responses",
			Current: string(s.Status),
			Target:  string(types.SURVEY_STATUS_LOCKED),
		}
	}
	return nil
}

// RequiredQuestionIDs lists the questions that must be answered before a submission.
func RequiredQuestionIDs(s types.Survey) []string {
	ids := []string{}
	for _, q := range s.Questions {
		if q.Required {
			ids = append(ids, q.ID)
		}
	}
	return ids
}
