package respondents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/case-framework/field-survey-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

func validInput(enumeratorID string) RegistrationInput {
	return RegistrationInput{
		AgeRange:     types.AGE_RANGE_25_34,
		Sex:          types.SEX_FEMALE,
		AdminArea:    "Northern District",
		ConsentGiven: true,
		EnumeratorID: enumeratorID,
	}
}

func seedPseudonym(t *testing.T, store docstore.Gateway, pseudonym string) {
	t.Helper()
	_, err := store.Create(context.Background(), types.COLLECTION_NAME_RESPONDENTS, types.Respondent{
		Pseudonym:    pseudonym,
		AgeRange:     types.AGE_RANGE_18_24,
		Sex:          types.SEX_MALE,
		AdminArea:    "seed",
		ConsentGiven: true,
		EnumeratorID: "seed",
		CreatedAt:    testStart,
	})
	require.NoError(t, err)
}

func TestParsePseudonym(t *testing.T) {
	tests := []struct {
		name      string
		pseudonym string
		want      int
		wantErr   bool
	}{
		{name: "first", pseudonym: "R-00001", want: 1},
		{name: "middle", pseudonym: "R-00042", want: 42},
		{name: "last", pseudonym: "R-99999", want: 99999},
		{name: "zero", pseudonym: "R-00000", wantErr: true},
		{name: "short", pseudonym: "R-123", wantErr: true},
		{name: "letters", pseudonym: "R-12a45", wantErr: true},
		{name: "wrong prefix", pseudonym: "P-00001", wantErr: true},
		{name: "empty", pseudonym: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePseudonym(tt.pseudonym)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatPseudonym(t *testing.T) {
	assert.Equal(t, "R-00001", FormatPseudonym(1))
	assert.Equal(t, "R-00042", FormatPseudonym(42))
	assert.Equal(t, "R-99999", FormatPseudonym(99999))
}

func TestAllocate(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store starts at one", func(t *testing.T) {
		allocator := NewAllocator(docstore.NewMemoryStore(types.Indexes))
		got, err := allocator.Allocate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "R-00001", got)
	})

	t.Run("follows the stored maximum", func(t *testing.T) {
		store := docstore.NewMemoryStore(types.Indexes)
		seedPseudonym(t, store, "R-00007")
		seedPseudonym(t, store, "R-00041")
		seedPseudonym(t, store, "R-00012")

		got, err := NewAllocator(store).Allocate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "R-00042", got)
	})

	t.Run("corrupt maximum", func(t *testing.T) {
		store := docstore.NewMemoryStore(types.Indexes)
		seedPseudonym(t, store, "R-00003")
		seedPseudonym(t, store, "R-1x")

		_, err := NewAllocator(store).Allocate(ctx)
		assert.ErrorIs(t, err, types.ErrCorruptSequence)
	})

	t.Run("capacity exceeded", func(t *testing.T) {
		store := docstore.NewMemoryStore(types.Indexes)
		seedPseudonym(t, store, "R-99999")

		_, err := NewAllocator(store).Allocate(ctx)
		assert.ErrorIs(t, err, types.ErrCapacityExceeded)
	})

	t.Run("not found on read counts as empty", func(t *testing.T) {
		store := testutil.NewFaultyStore(docstore.NewMemoryStore(types.Indexes))
		store.FailNext(testutil.OP_LIST, docstore.ErrNotFound)

		got, err := NewAllocator(store).Allocate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "R-00001", got)
	})

	t.Run("other read errors are fatal", func(t *testing.T) {
		store := testutil.NewFaultyStore(docstore.NewMemoryStore(types.Indexes))
		store.FailNext(testutil.OP_LIST, testutil.ErrInjected)

		_, err := NewAllocator(store).Allocate(ctx)
		assert.ErrorIs(t, err, testutil.ErrInjected)
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("sequential registrations", func(t *testing.T) {
		service := NewService(docstore.NewMemoryStore(types.Indexes), testutil.NewFakeClock(testStart))
		for i := 1; i <= 5; i++ {
			respondent, err := service.Register(ctx, validInput("enum-1"))
			require.NoError(t, err)
			assert.Equal(t, FormatPseudonym(i), respondent.Pseudonym)
			assert.NotEmpty(t, respondent.ID)
			assert.True(t, respondent.ConsentGiven)
			require.NotNil(t, respondent.ConsentTimestamp)
			assert.Equal(t, testStart, *respondent.ConsentTimestamp)
		}
	})

	t.Run("collision allocates again", func(t *testing.T) {
		inner := docstore.NewMemoryStore(types.Indexes)
		seedPseudonym(t, inner, "R-00001")
		store := testutil.NewFaultyStore(inner)
		store.StaleListNext(1)

		respondent, err := NewService(store, testutil.NewFakeClock(testStart)).Register(ctx, validInput("enum-1"))
		require.NoError(t, err)
		assert.Equal(t, "R-00002", respondent.Pseudonym)
		assert.Equal(t, 2, store.Calls(testutil.OP_CREATE))
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		inner := docstore.NewMemoryStore(types.Indexes)
		seedPseudonym(t, inner, "R-00001")
		store := testutil.NewFaultyStore(inner)
		store.StaleListNext(MaxAllocationAttempts)

		_, err := NewService(store, testutil.NewFakeClock(testStart)).Register(ctx, validInput("enum-1"))
		assert.ErrorIs(t, err, types.ErrCapacityExceeded)
		assert.Equal(t, MaxAllocationAttempts, store.Calls(testutil.OP_CREATE))
	})

	t.Run("create errors other than conflicts are returned", func(t *testing.T) {
		store := testutil.NewFaultyStore(docstore.NewMemoryStore(types.Indexes))
		store.FailNext(testutil.OP_CREATE, testutil.ErrInjected)

		_, err := NewService(store, testutil.NewFakeClock(testStart)).Register(ctx, validInput("enum-1"))
		assert.ErrorIs(t, err, testutil.ErrInjected)
		assert.Equal(t, 1, store.Calls(testutil.OP_CREATE))
	})

	t.Run("concurrent registrations never share a pseudonym", func(t *testing.T) {
		service := NewService(docstore.NewMemoryStore(types.Indexes), testutil.NewFakeClock(testStart))

		var wg sync.WaitGroup
		results := make(chan types.Respondent, 8)
		failures := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				respondent, err := service.Register(ctx, validInput(fmt.Sprintf("enum-%d", i)))
				if err != nil {
					failures <- err
					return
				}
				results <- respondent
			}(i)
		}
		wg.Wait()
		close(results)
		close(failures)

		seen := map[string]bool{}
		for respondent := range results {
			assert.False(t, seen[respondent.Pseudonym], "duplicate pseudonym %s", respondent.Pseudonym)
			seen[respondent.Pseudonym] = true
		}
		for err := range failures {
			assert.ErrorIs(t, err, types.ErrCapacityExceeded)
		}
	})
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *RegistrationInput)
	}{
		{name: "no consent", mutate: func(in *RegistrationInput) { in.ConsentGiven = false }},
		{name: "unknown age range", mutate: func(in *RegistrationInput) { in.AgeRange = "30-40" }},
		{name: "unknown sex", mutate: func(in *RegistrationInput) { in.Sex = "unknown" }},
		{name: "blank admin area", mutate: func(in *RegistrationInput) { in.AdminArea = "  " }},
		{name: "missing enumerator", mutate: func(in *RegistrationInput) { in.EnumeratorID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := docstore.NewMemoryStore(types.Indexes)
			input := validInput("enum-1")
			tt.mutate(&input)

			_, err := NewService(store, testutil.NewFakeClock(testStart)).Register(context.Background(), input)
			assert.ErrorIs(t, err, types.ErrInvalidInput)

			count, err := store.Count(context.Background(), types.COLLECTION_NAME_RESPONDENTS, nil)
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestGetAndList(t *testing.T) {
	ctx := context.Background()
	service := NewService(docstore.NewMemoryStore(types.Indexes), testutil.NewFakeClock(testStart))

	var first types.Respondent
	for i := 0; i < 3; i++ {
		respondent, err := service.Register(ctx, validInput("enum-1"))
		require.NoError(t, err)
		if i == 0 {
			first = respondent
		}
	}
	_, err := service.Register(ctx, validInput("enum-2"))
	require.NoError(t, err)

	got, err := service.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "R-00001", got.Pseudonym)

	_, err = service.Get(ctx, "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))

	list, paginationInfo, err := service.List(ctx, "enum-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), paginationInfo.TotalCount)
	assert.Equal(t, int64(2), paginationInfo.TotalPages)
	require.Len(t, list, 2)
	assert.Equal(t, "R-00003", list[0].Pseudonym)
	assert.Equal(t, "R-00002", list[1].Pseudonym)

	list, _, err = service.List(ctx, "enum-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "R-00001", list[0].Pseudonym)
}
