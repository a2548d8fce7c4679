package surveys

import (
	"testing"

	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func statusPtr(s types.SurveyStatus) *types.SurveyStatus {
	return &s
}

func TestValidateUpdate(t *testing.T) {
	questions := []types.Question{{ID: "q1", Text: "Age?", Required: true}}

	tests := []struct {
		name    string
		current types.SurveyStatus
		update  types.SurveyUpdate
		wantErr *types.Error
	}{
		{name: "draft edit", current: types.SURVEY_STATUS_DRAFT, update: types.SurveyUpdate{Title: strPtr("new")}},
		{name: "draft edit questions", current: types.SURVEY_STATUS_DRAFT, update: types.SurveyUpdate{Questions: &questions}},
		{name: "draft to locked", current: types.SURVEY_STATUS_DRAFT, update: types.SurveyUpdate{Status: statusPtr(types.SURVEY_STATUS_LOCKED)}},
		{name: "draft edit and lock", current: types.SURVEY_STATUS_DRAFT, update: types.SurveyUpdate{Version: strPtr("2"), Status: statusPtr(types.SURVEY_STATUS_LOCKED)}},
		{name: "draft to archived", current: types.SURVEY_STATUS_DRAFT, update: types.SurveyUpdate{Status: statusPtr(types.SURVEY_STATUS_ARCHIVED)}, wantErr: types.ErrInvalidTransition},
		{name: "draft to draft", current: types.SURVEY_STATUS_DRAFT, update: types.SurveyUpdate{Status: statusPtr(types.SURVEY_STATUS_DRAFT)}, wantErr: types.ErrInvalidTransition},
		{name: "locked to archived", current: types.SURVEY_STATUS_LOCKED, update: types.SurveyUpdate{Status: statusPtr(types.SURVEY_STATUS_ARCHIVED)}},
		{name: "locked title edit", current: types.SURVEY_STATUS_LOCKED, update: types.SurveyUpdate{Title: strPtr("x")}, wantErr: types.ErrLockedImmutable},
		{name: "locked description edit", current: types.SURVEY_STATUS_LOCKED, update: types.SurveyUpdate{Description: strPtr("x")}, wantErr: types.ErrLockedImmutable},
		{name: "locked version edit", current: types.SURVEY_STATUS_LOCKED, update: types.SurveyUpdate{Version: strPtr("2")}, wantErr: types.ErrLockedImmutable},
		{name: "locked questions edit", current: types.SURVEY_STATUS_LOCKED, update: types.SurveyUpdate{Questions: &questions}, wantErr: types.ErrLockedImmutable},
		{name: "locked edit while archiving", current: types.SURVEY_STATUS_LOCKED, update: types.SurveyUpdate{Title: strPtr("x"), Status: statusPtr(types.SURVEY_STATUS_ARCHIVED)}, wantErr: types.ErrLockedImmutable},
		{name: "locked back to draft", current: types.SURVEY_STATUS_LOCKED, update: types.SurveyUpdate{Status: statusPtr(types.SURVEY_STATUS_DRAFT)}, wantErr: types.ErrInvalidTransition},
		{name: "archived edit", current: types.SURVEY_STATUS_ARCHIVED, update: types.SurveyUpdate{Title: strPtr("x")}, wantErr: types.ErrArchivedImmutable},
		{name: "archived to draft", current: types.SURVEY_STATUS_ARCHIVED, update: types.SurveyUpdate{Status: statusPtr(types.SURVEY_STATUS_DRAFT)}, wantErr: types.ErrArchivedImmutable},
		{name: "archived to archived", current: types.SURVEY_STATUS_ARCHIVED, update: types.SurveyUpdate{Status: statusPtr(types.SURVEY_STATUS_ARCHIVED)}, wantErr: types.ErrArchivedImmutable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpdate(types.Survey{ID: "s1", Status: tt.current}, tt.update)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateUpdateReportsStates(t *testing.T) {
	err := ValidateUpdate(types.Survey{Status: types.SURVEY_STATUS_LOCKED}, types.SurveyUpdate{Status: statusPtr(types.SURVEY_STATUS_DRAFT)})

	var domainErr *types.Error
	if assert.ErrorAs(t, err, &domainErr) {
		assert.Equal(t, string(types.SURVEY_STATUS_LOCKED), domainErr.Current)
		assert.Equal(t, string(types.SURVEY_STATUS_DRAFT), domainErr.Target)
	}
}

func TestAcceptsResponses(t *testing.T) {
	assert.NoError(t, AcceptsResponses(types.Survey{Status: types.SURVEY_STATUS_LOCKED}))
	assert.ErrorIs(t, AcceptsResponses(types.Survey{Status: types.SURVEY_STATUS_DRAFT}), types.ErrSurveyNotActive)
	assert.ErrorIs(t, AcceptsResponses(types.Survey{Status: types.SURVEY_STATUS_ARCHIVED}), types.ErrSurveyNotActive)
}

func TestRequiredQuestionIDs(t *testing.T) {
	survey := types.Survey{Questions: []types.Question{
		{ID: "q1", Required: true},
		{ID: "q2"},
		{ID: "q3", Required: true},
	}}
	assert.Equal(t, []string{"q1", "q3"}, RequiredQuestionIDs(survey))
	assert.Empty(t, RequiredQuestionIDs(types.Survey{}))
}
