// Package engine assembles the field survey components on top of one document store.
package engine

import (
	"fmt"
	"time"

	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/respondents"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/responses"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/sessions"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/surveys"
	"github.com/case-framework/field-survey-backend/pkg/retry"
	"github.com/case-framework/field-survey-backend/pkg/utils"
)

type Options struct {
	SessionTimeout       time.Duration
	SessionWarningWindow time.Duration
	SurveyCacheTTL       time.Duration
	SubmissionRetry      retry.Policy
}

func DefaultOptions() Options {
	return Options{
		SessionTimeout:       sessions.DefaultTimeout,
		SessionWarningWindow: sessions.DefaultWarningWindow,
		SurveyCacheTTL:       surveys.DefaultCacheTTL,
		SubmissionRetry:      retry.DefaultPolicy(),
	}
}

// ConfigYaml is the engine section of service and job config files. Empty values keep the defaults.
type ConfigYaml struct {
	SessionTimeout       string `json:"session_timeout" yaml:"session_timeout"`
	SessionWarningWindow string `json:"session_warning_window" yaml:"session_warning_window"`
	SurveyCacheTTL       string `json:"survey_cache_ttl" yaml:"survey_cache_ttl"`
	SubmissionRetry      struct {
		MaxAttempts  int     `json:"max_attempts" yaml:"max_attempts"`
		InitialDelay string  `json:"initial_delay" yaml:"initial_delay"`
		Multiplier   float64 `json:"multiplier" yaml:"multiplier"`
		MaxDelay     string  `json:"max_delay" yaml:"max_delay"`
	} `json:"submission_retry" yaml:"submission_retry"`
}

func OptionsFromYamlObj(conf ConfigYaml) (Options, error) {
	opts := DefaultOptions()

	durations := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{"session_timeout", conf.SessionTimeout, &opts.SessionTimeout},
		{"session_warning_window", conf.SessionWarningWindow, &opts.SessionWarningWindow},
		{"survey_cache_ttl", conf.SurveyCacheTTL, &opts.SurveyCacheTTL},
		{"submission_retry.initial_delay", conf.SubmissionRetry.InitialDelay, &opts.SubmissionRetry.InitialDelay},
		{"submission_retry.max_delay", conf.SubmissionRetry.MaxDelay, &opts.SubmissionRetry.MaxDelay},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := utils.ParseDurationString(d.value)
		if err != nil {
			return opts, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dest = parsed
	}

	if conf.SubmissionRetry.MaxAttempts > 0 {
		opts.SubmissionRetry.MaxAttempts = conf.SubmissionRetry.MaxAttempts
	}
	if conf.SubmissionRetry.Multiplier > 0 {
		opts.SubmissionRetry.Multiplier = conf.SubmissionRetry.Multiplier
	}

	if opts.SessionWarningWindow >= opts.SessionTimeout {
		return opts, fmt.Errorf("session warning window (%s) must be shorter than the timeout (%s)", opts.SessionWarningWindow, opts.SessionTimeout)
	}
	return opts, nil
}

type Engine struct {
	Store       docstore.Gateway
	Respondents *respondents.Service
	Sessions    *sessions.Manager
	Surveys     *surveys.Service
	Responses   *responses.Pipeline
}

func New(store docstore.Gateway, clock utils.Clock, opts Options) *Engine {
	sessionManager := sessions.NewManager(store, clock)
	sessionManager.Timeout = opts.SessionTimeout
	sessionManager.WarningWindow = opts.SessionWarningWindow

	surveyService := surveys.NewService(store, clock)
	surveyService.CacheTTL = opts.SurveyCacheTTL

	pipeline := responses.NewPipeline(store, clock)
	pipeline.Policy = opts.SubmissionRetry

	return &Engine{
		Store:       store,
		Respondents: respondents.NewService(store, clock),
		Sessions:    sessionManager,
		Surveys:     surveyService,
		Responses:   pipeline,
	}
}
