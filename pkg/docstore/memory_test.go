package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type testDoc struct {
	ID        string    `bson:"_id,omitempty"`
	Code      string    `bson:"code"`
	Owner     string    `bson:"owner"`
	Status    string    `bson:"status"`
	Rank      int       `bson:"rank"`
	CreatedAt time.Time `bson:"createdAt"`
}

var testIndexes = []Index{
	{Collection: "docs", Name: "code_unique", Keys: []string{"code"}, Unique: true},
	{Collection: "docs", Name: "owner_open_unique", Keys: []string{"owner"}, Unique: true, PartialFilter: bson.M{"status": "open"}},
}

func seed(t *testing.T, store *MemoryStore, docs ...testDoc) {
	t.Helper()
	for _, d := range docs {
		_, err := store.Create(context.Background(), "docs", d)
		require.NoError(t, err)
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(testIndexes)

	t.Run("generates id when missing", func(t *testing.T) {
		id, err := store.Create(ctx, "docs", testDoc{Code: "A", Owner: "u1", Status: "closed"})
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		var got testDoc
		require.NoError(t, store.Get(ctx, "docs", id, &got))
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "A", got.Code)
	})

	t.Run("keeps given id", func(t *testing.T) {
		id, err := store.Create(ctx, "docs", testDoc{ID: "fixed", Code: "B", Owner: "u1", Status: "closed"})
		require.NoError(t, err)
		assert.Equal(t, "fixed", id)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		_, err := store.Create(ctx, "docs", testDoc{ID: "fixed", Code: "C", Owner: "u1", Status: "closed"})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("missing document", func(t *testing.T) {
		var got testDoc
		assert.ErrorIs(t, store.Get(ctx, "docs", "nope", &got), ErrNotFound)
		assert.ErrorIs(t, store.Get(ctx, "other", "nope", &got), ErrNotFound)
	})
}

func TestMemoryStoreUniqueIndexes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(testIndexes)
	seed(t, store, testDoc{ID: "1", Code: "A", Owner: "u1", Status: "open"})

	_, err := store.Create(ctx, "docs", testDoc{Code: "A", Owner: "u2", Status: "closed"})
	assert.ErrorIs(t, err, ErrConflict, "unique code")

	_, err = store.Create(ctx, "docs", testDoc{Code: "B", Owner: "u1", Status: "open"})
	assert.ErrorIs(t, err, ErrConflict, "second open doc for owner")

	_, err = store.Create(ctx, "docs", testDoc{Code: "C", Owner: "u1", Status: "closed"})
	assert.NoError(t, err, "partial index ignores closed docs")

	require.NoError(t, store.Update(ctx, "docs", "1", nil, bson.M{"status": "closed"}, nil))
	_, err = store.Create(ctx, "docs", testDoc{Code: "D", Owner: "u1", Status: "open"})
	assert.NoError(t, err, "open doc allowed after the previous one was closed")

	err = store.Update(ctx, "docs", "1", nil, bson.M{"status": "open"}, nil)
	assert.ErrorIs(t, err, ErrConflict, "update must respect partial unique index")
}

func TestMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(testIndexes)
	seed(t, store, testDoc{ID: "1", Code: "A", Owner: "u1", Status: "open", Rank: 1})

	t.Run("expectation met", func(t *testing.T) {
		var got testDoc
		err := store.Update(ctx, "docs", "1", bson.M{"status": "open"}, bson.M{"status": "closed", "rank": 2}, &got)
		require.NoError(t, err)
		assert.Equal(t, "closed", got.Status)
		assert.Equal(t, 2, got.Rank)
		assert.Equal(t, "A", got.Code)
	})

	t.Run("expectation failed", func(t *testing.T) {
		err := store.Update(ctx, "docs", "1", bson.M{"status": "open"}, bson.M{"status": "timeout"}, nil)
		assert.ErrorIs(t, err, ErrConflict)

		var got testDoc
		require.NoError(t, store.Get(ctx, "docs", "1", &got))
		assert.Equal(t, "closed", got.Status)
	})

	t.Run("missing document", func(t *testing.T) {
		err := store.Update(ctx, "docs", "2", nil, bson.M{"status": "closed"}, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	seed(t, store,
		testDoc{ID: "1", Code: "R-00002", Owner: "u1", Status: "open", Rank: 3, CreatedAt: base},
		testDoc{ID: "2", Code: "R-00010", Owner: "u2", Status: "closed", Rank: 1, CreatedAt: base.Add(time.Hour)},
		testDoc{ID: "3", Code: "R-00001", Owner: "u1", Status: "closed", Rank: 2, CreatedAt: base.Add(2 * time.Hour)},
	)

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "all in insertion order", query: Query{}, want: []string{"1", "2", "3"}},
		{name: "equality filter", query: Query{Filter: bson.M{"owner": "u1"}}, want: []string{"1", "3"}},
		{name: "sort desc limit 1", query: Query{Sort: []SortField{{Key: "code", Desc: true}}, Limit: 1}, want: []string{"2"}},
		{name: "sort asc by number", query: Query{Sort: []SortField{{Key: "rank"}}}, want: []string{"2", "3", "1"}},
		{name: "offset and limit", query: Query{Sort: []SortField{{Key: "rank"}}, Offset: 1, Limit: 1}, want: []string{"3"}},
		{name: "offset past end", query: Query{Offset: 5}, want: []string{}},
		{name: "in operator", query: Query{Filter: bson.M{"code": bson.M{"$in": []string{"R-00001", "R-00010"}}}}, want: []string{"2", "3"}},
		{name: "ne operator", query: Query{Filter: bson.M{"status": bson.M{"$ne": "closed"}}}, want: []string{"1"}},
		{name: "time range", query: Query{Filter: bson.M{"createdAt": bson.M{"$gte": base.Add(time.Hour)}}}, want: []string{"2", "3"}},
		{name: "exists", query: Query{Filter: bson.M{"missing": bson.M{"$exists": false}}}, want: []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var docs []testDoc
			require.NoError(t, store.List(ctx, "docs", tt.query, &docs))
			ids := []string{}
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	t.Run("count", func(t *testing.T) {
		n, err := store.Count(ctx, "docs", bson.M{"status": "closed"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = store.Count(ctx, "empty", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("rejects non slice target", func(t *testing.T) {
		var doc testDoc
		assert.Error(t, store.List(ctx, "docs", Query{}, &doc))
	})
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore(nil)
	_, err := store.Create(ctx, "docs", testDoc{Code: "A"})
	assert.ErrorIs(t, err, context.Canceled)
}
