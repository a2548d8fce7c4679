// Package metrics holds the Prometheus collectors of the field survey engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fieldsurvey"

var (
	SubmissionAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submission_attempts_total",
		Help:      "Write attempts made by the submission pipeline, retries included.",
	})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Submission outcomes by result.",
	}, []string{"result"})

	DraftsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "drafts_saved_total",
		Help:      "Draft responses written.",
	})

	ResponsesVoided = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "responses_voided_total",
		Help:      "Submitted responses voided by administrators.",
	})

	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_opened_total",
		Help:      "Field sessions opened.",
	})

	SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_closed_total",
		Help:      "Field sessions closed, by close reason.",
	}, []string{"reason"})

	PseudonymsAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pseudonyms_allocated_total",
		Help:      "Respondent pseudonyms successfully registered.",
	})

	PseudonymCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pseudonym_collisions_total",
		Help:      "Respondent creations rejected by the pseudonym unique index.",
	})
)

// submission results
const (
	RESULT_SUBMITTED         = "submitted"
	RESULT_ALREADY_SUBMITTED = "already_submitted"
	RESULT_INVALID           = "invalid"
	RESULT_FAILED            = "failed"
)
