package types

import "time"

type ResponseStatus string

const (
	RESPONSE_STATUS_DRAFT     ResponseStatus = "draft"
	RESPONSE_STATUS_SUBMITTED ResponseStatus = "submitted"
	RESPONSE_STATUS_VOIDED    ResponseStatus = "voided"
)

type Location struct {
	Latitude   float64    `bson:"latitude" json:"latitude"`
	Longitude  float64    `bson:"longitude" json:"longitude"`
	Accuracy   float64    `bson:"accuracy,omitempty" json:"accuracy,omitempty"`
	CapturedAt *time.Time `bson:"capturedAt,omitempty" json:"capturedAt,omitempty"`
}

type Answer struct {
	ID          string `bson:"id" json:"id"`
	ResponseID  string `bson:"responseId" json:"responseId"`
	QuestionID  string `bson:"questionId" json:"questionId"`
	AnswerValue string `bson:"answerValue" json:"answerValue"`
}

// Response is one survey's answers within a session. The answers are stored inside the response
// document so both become visible together.
type Response struct {
	ID            string         `bson:"_id,omitempty" json:"id,omitempty"`
	SessionID     string         `bson:"sessionId" json:"sessionId"`
	RespondentID  string         `bson:"respondentId" json:"respondentId"`
	EnumeratorID  string         `bson:"enumeratorId" json:"enumeratorId"`
	SurveyID      string         `bson:"surveyId" json:"surveyId"`
	SurveyVersion string         `bson:"surveyVersion" json:"surveyVersion"`
	Location      *Location      `bson:"location,omitempty" json:"location,omitempty"`
	Status        ResponseStatus `bson:"status" json:"status"`
	Answers       []Answer       `bson:"answers" json:"answers"`
	CreatedAt     time.Time      `bson:"createdAt" json:"createdAt"`
	SubmittedAt   *time.Time     `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`
	VoidedBy      string         `bson:"voidedBy,omitempty" json:"voidedBy,omitempty"`
	VoidReason    string         `bson:"voidReason,omitempty" json:"voidReason,omitempty"`
	VoidedAt      *time.Time     `bson:"voidedAt,omitempty" json:"voidedAt,omitempty"`
}

type AnswerInput struct {
	QuestionID  string `json:"questionId"`
	AnswerValue string `json:"answerValue"`
}

// SubmissionInput carries everything the pipeline needs to persist a response. ResponseID is
// only used by drafts, to rewrite an existing draft.
type SubmissionInput struct {
	ResponseID    string        `json:"responseId,omitempty"`
	SessionID     string        `json:"sessionId"`
	SurveyID      string        `json:"surveyId"`
	SurveyVersion string        `json:"surveyVersion"`
	RespondentID  string        `json:"respondentId"`
	EnumeratorID  string        `json:"enumeratorId"`
	Answers       []AnswerInput `json:"answers"`
	GPS           *Location     `json:"gps,omitempty"`
}

type SubmitResult struct {
	ResponseID string `json:"responseId"`
	Attempts   int    `json:"attempts"`
}

type VoidRequest struct {
	VoidedBy   string `json:"voidedBy"`
	VoidReason string `json:"voidReason"`
}

// ResponseFilter narrows admin listings. Empty fields are ignored.
type ResponseFilter struct {
	SessionID    string
	SurveyID     string
	EnumeratorID string
	RespondentID string
	Status       ResponseStatus
}
