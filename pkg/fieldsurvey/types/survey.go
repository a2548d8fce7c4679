package types

import "time"

type SurveyStatus string

const (
	SURVEY_STATUS_DRAFT    SurveyStatus = "draft"
	SURVEY_STATUS_LOCKED   SurveyStatus = "locked"
	SURVEY_STATUS_ARCHIVED SurveyStatus = "archived"
)

type Question struct {
	ID       string `bson:"id" json:"id"`
	Text     string `bson:"text" json:"text"`
	Required bool   `bson:"required" json:"required"`
}

// Survey is a survey instrument. Its content is frozen once it is locked.
type Survey struct {
	ID          string       `bson:"_id,omitempty" json:"id,omitempty"`
	Title       string       `bson:"title" json:"title"`
	Description string       `bson:"description" json:"description"`
	Version     string       `bson:"version" json:"version"`
	Status      SurveyStatus `bson:"status" json:"status"`
	Questions   []Question   `bson:"questions" json:"questions"`
	CreatedAt   time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// SurveyUpdate is a partial update: nil fields are not part of the change.
type SurveyUpdate struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Version     *string       `json:"version,omitempty"`
	Questions   *[]Question   `json:"questions,omitempty"`
	Status      *SurveyStatus `json:"status,omitempty"`
}

func (u SurveyUpdate) HasContentChanges() bool {
	return u.Title != nil || u.Description != nil || u.Version != nil || u.Questions != nil
}

func (u SurveyUpdate) IsEmpty() bool {
	return !u.HasContentChanges() && u.Status == nil
}
