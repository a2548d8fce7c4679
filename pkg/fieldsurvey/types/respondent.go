package types

import "time"

const (
	AGE_RANGE_18_24 = "18-24"
	AGE_RANGE_25_34 = "25-34"
	AGE_RANGE_35_44 = "35-44"
	AGE_RANGE_45_54 = "45-54"
	AGE_RANGE_55_64 = "55-64"
	AGE_RANGE_65    = "65+"
)

const (
	SEX_MALE              = "male"
	SEX_FEMALE            = "female"
	SEX_OTHER             = "other"
	SEX_PREFER_NOT_TO_SAY = "prefer_not_to_say"
)

var (
	AgeRanges = []string{AGE_RANGE_18_24, AGE_RANGE_25_34, AGE_RANGE_35_44, AGE_RANGE_45_54, AGE_RANGE_55_64, AGE_RANGE_65}
	Sexes     = []string{SEX_MALE, SEX_FEMALE, SEX_OTHER, SEX_PREFER_NOT_TO_SAY}
)

// Respondent is an anonymized survey participant. It is immutable once created.
type Respondent struct {
	ID               string     `bson:"_id,omitempty" json:"id,omitempty"`
	Pseudonym        string     `bson:"pseudonym" json:"pseudonym"`
	AgeRange         string     `bson:"ageRange" json:"ageRange"`
	Sex              string     `bson:"sex" json:"sex"`
	AdminArea        string     `bson:"adminArea" json:"adminArea"`
	ConsentGiven     bool       `bson:"consentGiven" json:"consentGiven"`
	ConsentTimestamp *time.Time `bson:"consentTimestamp,omitempty" json:"consentTimestamp,omitempty"`
	EnumeratorID     string     `bson:"enumeratorId" json:"enumeratorId"`
	CreatedAt        time.Time  `bson:"createdAt" json:"createdAt"`
}
