package surveys

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/case-framework/field-survey-backend/pkg/utils"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	DefaultCacheTTL = 5 * time.Minute

	maxUpdateAttempts = 3
)

type cachedSurvey struct {
	survey    types.Survey
	fetchedAt time.Time
}

// Service stores survey instruments. Reads go through a cache keyed by survey ID; entries
// expire after CacheTTL and are replaced by the service's own writes.
type Service struct {
	store    docstore.Gateway
	clock    utils.Clock
	CacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cachedSurvey
}

func NewService(store docstore.Gateway, clock utils.Clock) *Service {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &Service{
		store:    store,
		clock:    clock,
		CacheTTL: DefaultCacheTTL,
		cache:    map[string]cachedSurvey{},
	}
}

func validateContent(title string, questions []types.Question) error {
	if strings.TrimSpace(title) == "" {
		return types.NewError(types.KIND_INVALID_INPUT, "title is required")
	}
	seen := map[string]bool{}
	for _, q := range questions {
		if q.ID == "" {
			return types.NewError(types.KIND_INVALID_INPUT, "question id is required")
		}
		if seen[q.ID] {
			return types.NewError(types.KIND_INVALID_INPUT, fmt.Sprintf("duplicate question id %q", q.ID))
		}
		seen[q.ID] = true
	}
	return nil
}

// Create stores a new survey. New surveys always start as drafts.
func (s *Service) Create(ctx context.Context, survey types.Survey) (types.Survey, error) {
	if err := validateContent(survey.Title, survey.Questions); err != nil {
		return types.Survey{}, err
	}
	if survey.Questions == nil {
		survey.Questions = []types.Question{}
	}

	now := s.clock.Now().UTC()
	survey.ID = uuid.NewString()
	survey.Status = types.SURVEY_STATUS_DRAFT
	survey.CreatedAt = now
	survey.UpdatedAt = now

	if _, err := s.store.Create(ctx, types.COLLECTION_NAME_SURVEYS, survey); err != nil {
		return types.Survey{}, fmt.Errorf("creating survey: %w", err)
	}
	s.remember(survey)
	slog.Info("survey created", slog.String("surveyId", survey.ID), slog.String("version", survey.Version))
	return survey, nil
}

// Update applies a partial update after checking it against the survey lifecycle. The write is
// conditional on the status the guard saw, so a concurrent transition makes it re-check.
func (s *Service) Update(ctx context.Context, id string, update types.SurveyUpdate) (types.Survey, error) {
	if update.IsEmpty() {
		return types.Survey{}, types.NewError(types.KIND_INVALID_INPUT, "update is empty")
	}

	for attempt := 1; ; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return types.Survey{}, err
		}
		if err := ValidateUpdate(current, update); err != nil {
			return types.Survey{}, err
		}

		patch, err := s.patchFor(current, update)
		if err != nil {
			return types.Survey{}, err
		}

		updated := types.Survey{}
		err = s.store.Update(ctx, types.COLLECTION_NAME_SURVEYS, id, bson.M{"status": current.Status}, patch, &updated)
		if err == nil {
			s.remember(updated)
			if update.Status != nil {
				slog.Info("survey status changed", slog.String("surveyId", id), slog.String("from", string(current.Status)), slog.String("to", string(updated.Status)))
			}
			return updated, nil
		}
		if !docstore.IsConflict(err) || attempt >= maxUpdateAttempts {
			return types.Survey{}, err
		}
		slog.Debug("survey changed concurrently, checking again", slog.String("surveyId", id))
	}
}

func (s *Service) patchFor(current types.Survey, update types.SurveyUpdate) (bson.M, error) {
	title := current.Title
	if update.Title != nil {
		title = *update.Title
	}
	questions := current.Questions
	if update.Questions != nil {
		questions = *update.Questions
	}
	if err := validateContent(title, questions); err != nil {
		return nil, err
	}

	patch := bson.M{"updatedAt": s.clock.Now().UTC()}
	if update.Title != nil {
		patch["title"] = *update.Title
	}
	if update.Description != nil {
		patch["description"] = *update.Description
	}
	if update.Version != nil {
		patch["version"] = *update.Version
	}
	if update.Questions != nil {
		if questions == nil {
			questions = []types.Question{}
		}
		patch["questions"] = questions
	}
	if update.Status != nil {
		patch["status"] = *update.Status
	}
	return patch, nil
}

// Get returns a survey, from the cache while the entry is fresh.
func (s *Service) Get(ctx context.Context, id string) (types.Survey, error) {
	s.mu.RLock()
	entry, ok := s.cache[id]
	s.mu.RUnlock()
	if ok && s.clock.Now().Sub(entry.fetchedAt) < s.CacheTTL {
		return entry.survey, nil
	}

	survey, err := s.load(ctx, id)
	if err != nil {
		return survey, err
	}
	s.remember(survey)
	return survey, nil
}

func (s *Service) load(ctx context.Context, id string) (types.Survey, error) {
	survey := types.Survey{}
	if err := s.store.Get(ctx, types.COLLECTION_NAME_SURVEYS, id, &survey); err != nil {
		if docstore.IsNotFound(err) {
			return survey, types.NewError(types.KIND_NOT_FOUND, "survey not found")
		}
		return survey, err
	}
	return survey, nil
}

func (s *Service) remember(survey types.Survey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[survey.ID] = cachedSurvey{survey: survey, fetchedAt: s.clock.Now()}
}

// List returns surveys, newest first. An empty status lists all of them.
func (s *Service) List(ctx context.Context, status types.SurveyStatus) ([]types.Survey, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	surveys := []types.Survey{}
	err := s.store.List(ctx, types.COLLECTION_NAME_SURVEYS, docstore.Query{
		Filter: filter,
		Sort:   []docstore.SortField{{Key: "createdAt", Desc: true}},
	}, &surveys)
	if err != nil {
		return nil, err
	}
	return surveys, nil
}
