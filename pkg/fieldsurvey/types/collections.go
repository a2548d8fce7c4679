package types

import (
	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"go.mongodb.org/mongo-driver/bson"
)

// collection names
const (
	COLLECTION_NAME_RESPONDENTS = "respondents"
	COLLECTION_NAME_SESSIONS    = "sessions"
	COLLECTION_NAME_RESPONSES   = "responses"
	COLLECTION_NAME_SURVEYS     = "surveys"
)

// Indexes lists the indexes the field survey collections rely on. The unique ones settle races
// between concurrent writers: pseudonyms, one open session per enumerator and one submitted
// response per session and survey.
var Indexes = []docstore.Index{
	{
		Collection: COLLECTION_NAME_RESPONDENTS,
		Name:       "pseudonym_1",
		Keys:       []string{"pseudonym"},
		Unique:     true,
	},
	{
		Collection: COLLECTION_NAME_RESPONDENTS,
		Name:       "enumeratorId_1",
		Keys:       []string{"enumeratorId"},
	},
	{
		Collection:    COLLECTION_NAME_SESSIONS,
		Name:          "enumeratorId_1_open",
		Keys:          []string{"enumeratorId"},
		Unique:        true,
		PartialFilter: bson.M{"status": string(SESSION_STATUS_OPEN)},
	},
	{
		Collection: COLLECTION_NAME_SESSIONS,
		Name:       "status_1",
		Keys:       []string{"status"},
	},
	{
		Collection:    COLLECTION_NAME_RESPONSES,
		Name:          "sessionId_1_surveyId_1_submitted",
		Keys:          []string{"sessionId", "surveyId"},
		Unique:        true,
		PartialFilter: bson.M{"status": string(RESPONSE_STATUS_SUBMITTED)},
	},
	{
		Collection: COLLECTION_NAME_RESPONSES,
		Name:       "surveyId_1_status_1",
		Keys:       []string{"surveyId", "status"},
	},
	{
		Collection: COLLECTION_NAME_SURVEYS,
		Name:       "status_1",
		Keys:       []string{"status"},
	},
}
