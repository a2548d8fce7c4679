package respondents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/case-framework/field-survey-backend/pkg/db"
	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/case-framework/field-survey-backend/pkg/metrics"
	"github.com/case-framework/field-survey-backend/pkg/utils"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// MaxAllocationAttempts bounds how often Register allocates again after losing a pseudonym race.
const MaxAllocationAttempts = 5

type RegistrationInput struct {
	AgeRange     string `json:"ageRange"`
	Sex          string `json:"sex"`
	AdminArea    string `json:"adminArea"`
	ConsentGiven bool   `json:"consentGiven"`
	EnumeratorID string `json:"-"`
}

func (in RegistrationInput) validate() error {
	if !in.ConsentGiven {
		return types.NewError(types.KIND_INVALID_INPUT, "consent is required")
	}
	if !slices.Contains(types.AgeRanges, in.AgeRange) {
		return types.NewError(types.KIND_INVALID_INPUT, fmt.Sprintf("unknown age range %q", in.AgeRange))
	}
	if !slices.Contains(types.Sexes, in.Sex) {
		return types.NewError(types.KIND_INVALID_INPUT, fmt.Sprintf("unknown sex %q", in.Sex))
	}
	if strings.TrimSpace(in.AdminArea) == "" {
		return types.NewError(types.KIND_INVALID_INPUT, "admin area is required")
	}
	if in.EnumeratorID == "" {
		return types.NewError(types.KIND_INVALID_INPUT, "enumerator is required")
	}
	return nil
}

type Service struct {
	store     docstore.Gateway
	allocator *Allocator
	clock     utils.Clock
}

func NewService(store docstore.Gateway, clock utils.Clock) *Service {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &Service{
		store:     store,
		allocator: NewAllocator(store),
		clock:     clock,
	}
}

// Register creates a respondent under a freshly allocated pseudonym.
func (s *Service) Register(ctx context.Context, input RegistrationInput) (types.Respondent, error) {
	if err := input.validate(); err != nil {
		return types.Respondent{}, err
	}

	for attempt := 1; attempt <= MaxAllocationAttempts; attempt++ {
		pseudonym, err := s.allocator.Allocate(ctx)
		if err != nil {
			return types.Respondent{}, err
		}

		now := s.clock.Now().UTC()
		respondent := types.Respondent{
			ID:               uuid.NewString(),
			Pseudonym:        pseudonym,
			AgeRange:         input.AgeRange,
			Sex:              input.Sex,
			AdminArea:        strings.TrimSpace(input.AdminArea),
			ConsentGiven:     true,
			ConsentTimestamp: &now,
			EnumeratorID:     input.EnumeratorID,
			CreatedAt:        now,
		}

		_, err = s.store.Create(ctx, types.COLLECTION_NAME_RESPONDENTS, respondent)
		if err == nil {
			metrics.PseudonymsAllocated.Inc()
			slog.Info("respondent registered", slog.String("pseudonym", pseudonym), slog.String("enumeratorId", input.EnumeratorID))
			return respondent, nil
		}
		if !errors.Is(err, docstore.ErrConflict) {
			return types.Respondent{}, fmt.Errorf("creating respondent: %w", err)
		}

		metrics.PseudonymCollisions.Inc()
		slog.Warn("pseudonym collision, allocating again", slog.String("pseudonym", pseudonym), slog.Int("attempt", attempt))
	}

	return types.Respondent{}, &types.Error{
		Kind:     types.KIND_CAPACITY_EXCEEDED,
		Message:  "could not allocate a free pseudonym",
		Attempts: MaxAllocationAttempts,
	}
}

func (s *Service) Get(ctx context.Context, id string) (types.Respondent, error) {
	respondent := types.Respondent{}
	if err := s.store.Get(ctx, types.COLLECTION_NAME_RESPONDENTS, id, &respondent); err != nil {
		if docstore.IsNotFound(err) {
			return respondent, types.NewError(types.KIND_NOT_FOUND, "respondent not found")
		}
		return respondent, err
	}
	return respondent, nil
}

// List returns the respondents registered by an enumerator, newest pseudonym first.
func (s *Service) List(ctx context.Context, enumeratorID string, page int64, limit int64) ([]types.Respondent, *db.PaginationInfos, error) {
	filter := bson.M{}
	if enumeratorID != "" {
		filter["enumeratorId"] = enumeratorID
	}

	count, err := s.store.Count(ctx, types.COLLECTION_NAME_RESPONDENTS, filter)
	if err != nil {
		return nil, nil, err
	}
	paginationInfo := db.PreparePaginationInfos(count, page, limit)

	respondents := []types.Respondent{}
	err = s.store.List(ctx, types.COLLECTION_NAME_RESPONDENTS, docstore.Query{
		Filter: filter,
		Sort:   []docstore.SortField{{Key: "pseudonym", Desc: true}},
		Limit:  paginationInfo.PageSize,
		Offset: paginationInfo.Offset(),
	}, &respondents)
	if err != nil {
		return nil, nil, err
	}
	return respondents, paginationInfo, nil
}
