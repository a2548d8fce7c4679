package respondents

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
)

const (
	PSEUDONYM_PREFIX     = "R-"
	MAX_PSEUDONYM_NUMBER = 99999
)

var pseudonymPattern = regexp.MustCompile(`^R-(\d{5})$`)

// Allocator derives the next respondent pseudonym from the highest one stored. The read and
// the following create are not atomic: the unique index on pseudonym rejects the loser of a
// concurrent allocation and the caller allocates again.
type Allocator struct {
	store docstore.Gateway
}

func NewAllocator(store docstore.Gateway) *Allocator {
	return &Allocator{store: store}
}

func FormatPseudonym(n int) string {
	return fmt.Sprintf("%s%05d", PSEUDONYM_PREFIX, n)
}

// ParsePseudonym returns the sequence number of a well formed pseudonym.
func ParsePseudonym(pseudonym string) (int, error) {
	match := pseudonymPattern.FindStringSubmatch(pseudonym)
	if match == nil {
		return 0, fmt.Errorf("invalid pseudonym format: %q", pseudonym)
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("pseudonym out of range: %q", pseudonym)
	}
	return n, nil
}

// Allocate returns the pseudonym following the current maximum, R-00001 for an empty store.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	latest := []types.Respondent{}
	err := a.store.List(ctx, types.COLLECTION_NAME_RESPONDENTS, docstore.Query{
		Sort:  []docstore.SortField{{Key: "pseudonym", Desc: true}},
		Limit: 1,
	}, &latest)
	if err != nil && !docstore.IsNotFound(err) {
		return "", fmt.Errorf("reading latest pseudonym: %w", err)
	}

	if len(latest) == 0 {
		return FormatPseudonym(1), nil
	}

	current, err := ParsePseudonym(latest[0].Pseudonym)
	if err != nil {
		slog.Error("stored pseudonym sequence is corrupt", slog.String("pseudonym", latest[0].Pseudonym), slog.String("error", err.Error()))
		return "", &types.Error{Kind: types.KIND_CORRUPT_SEQUENCE, Current: latest[0].Pseudonym, Err: err}
	}

	next := current + 1
	if next > MAX_PSEUDONYM_NUMBER {
		return "", &types.Error{
			Kind:    types.KIND_CAPACITY_EXCEEDED,
			Message: fmt.Sprintf("pseudonym space exhausted at %d", MAX_PSEUDONYM_NUMBER),
			Current: latest[0].Pseudonym,
		}
	}
	return FormatPseudonym(next), nil
}
