package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryCollection struct {
	ids  []string
	docs map[string]bson.M
}

// MemoryStore keeps documents in process memory. Documents are stored in their BSON form, so
// decoding behaves like it does against MongoDB (including millisecond time precision).
// It supports equality filters and the $eq, $ne, $in, $nin, $exists, $gt, $gte, $lt, $lte
// operators.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	indexes     map[string][]Index
}

func NewMemoryStore(indexes []Index) *MemoryStore {
	store := &MemoryStore{
		collections: map[string]*memoryCollection{},
		indexes:     map[string][]Index{},
	}
	for _, index := range indexes {
		store.indexes[index.Collection] = append(store.indexes[index.Collection], index)
	}
	return store
}

func (s *MemoryStore) collection(name string) *memoryCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{docs: map[string]bson.M{}}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) List(ctx context.Context, collection string, query Query, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filter, err := normalize(query.Filter)
	if err != nil {
		return err
	}

	s.mu.RLock()
	matched := []bson.M{}
	if c, ok := s.collections[collection]; ok {
		for _, id := range c.ids {
			doc := c.docs[id]
			if matchesFilter(doc, filter) {
				matched = append(matched, doc)
			}
		}
	}
	s.mu.RUnlock()

	if len(query.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, field := range query.Sort {
				a, _ := getPath(matched[i], field.Key)
				b, _ := getPath(matched[j], field.Key)
				c, _ := compareValues(a, b)
				if c == 0 {
					continue
				}
				if field.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if query.Offset > 0 {
		if query.Offset >= int64(len(matched)) {
			matched = matched[:0]
		} else {
			matched = matched[query.Offset:]
		}
	}
	if query.Limit > 0 && query.Limit < int64(len(matched)) {
		matched = matched[:query.Limit]
	}
	return decodeList(matched, out)
}

func (s *MemoryStore) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	normalized, err := normalize(filter)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, nil
	}
	var count int64
	for _, doc := range c.docs {
		if matchesFilter(doc, normalized) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection string, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	return decodeDoc(doc, out)
}

func (s *MemoryStore) Create(ctx context.Context, collection string, doc any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m, err := normalize(doc)
	if err != nil {
		return "", err
	}
	if v, ok := m["_id"]; !ok || v == nil || v == "" {
		m["_id"] = uuid.NewString()
	}
	id := fmt.Sprint(m["_id"])

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	if _, exists := c.docs[id]; exists {
		return "", fmt.Errorf("%w: duplicate _id %s in %s", ErrConflict, id, collection)
	}
	if err := s.checkUnique(collection, id, m); err != nil {
		return "", err
	}
	c.docs[id] = m
	c.ids = append(c.ids, id)
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection string, id string, expect bson.M, patch bson.M, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalizedExpect, err := normalize(expect)
	if err != nil {
		return err
	}
	normalizedPatch, err := normalize(patch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return ErrNotFound
	}
	current, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	if !matchesFilter(current, normalizedExpect) {
		return fmt.Errorf("%w: %s/%s does not match the expected state", ErrConflict, collection, id)
	}

	updated, err := copyDoc(current)
	if err != nil {
		return err
	}
	for key, value := range normalizedPatch {
		if key == "_id" {
			continue
		}
		setPath(updated, key, value)
	}
	if err := s.checkUnique(collection, id, updated); err != nil {
		return err
	}
	c.docs[id] = updated

	if out == nil {
		return nil
	}
	return decodeDoc(updated, out)
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// checkUnique must be called with the write lock held.
func (s *MemoryStore) checkUnique(collection string, id string, doc bson.M) error {
	c := s.collection(collection)
	for _, index := range s.indexes[collection] {
		if !index.Unique {
			continue
		}
		partial, err := normalize(index.PartialFilter)
		if err != nil {
			return err
		}
		if !matchesFilter(doc, partial) {
			continue
		}
		for otherID, other := range c.docs {
			if otherID == id || !matchesFilter(other, partial) {
				continue
			}
			if sameKeys(doc, other, index.Keys) {
				return fmt.Errorf("%w: unique index %s violated in %s", ErrConflict, index.Name, collection)
			}
		}
	}
	return nil
}

func sameKeys(a, b bson.M, keys []string) bool {
	for _, key := range keys {
		va, _ := getPath(a, key)
		vb, _ := getPath(b, key)
		if !valuesEqual(va, vb) {
			return false
		}
	}
	return true
}

// normalize converts a document or filter into the representation BSON decoding produces, so
// stored values and filter values compare consistently.
func normalize(doc any) (bson.M, error) {
	if doc == nil {
		return bson.M{}, nil
	}
	if m, ok := doc.(bson.M); ok && len(m) == 0 {
		return bson.M{}, nil
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	m := bson.M{}
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func copyDoc(doc bson.M) (bson.M, error) {
	return normalize(doc)
}

func decodeDoc(doc bson.M, out any) error {
	data, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(data, out)
}

func decodeList(docs []bson.M, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return errors.New("docstore: list target must be a pointer to a slice")
	}
	sliceValue := rv.Elem()
	elemType := sliceValue.Type().Elem()

	result := reflect.MakeSlice(sliceValue.Type(), 0, len(docs))
	for _, doc := range docs {
		elem := reflect.New(elemType)
		if err := decodeDoc(doc, elem.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elem.Elem())
	}
	sliceValue.Set(result)
	return nil
}

func matchesFilter(doc bson.M, filter bson.M) bool {
	for key, condition := range filter {
		actual, exists := getPath(doc, key)
		if ops, ok := operatorDoc(condition); ok {
			for op, operand := range ops {
				if !matchOperator(op, actual, exists, operand) {
					return false
				}
			}
			continue
		}
		if !valuesEqual(actual, condition) {
			return false
		}
	}
	return true
}

func matchOperator(op string, actual any, exists bool, operand any) bool {
	switch op {
	case "$eq":
		return valuesEqual(actual, operand)
	case "$ne":
		return !valuesEqual(actual, operand)
	case "$in":
		values, _ := toSlice(operand)
		for _, v := range values {
			if valuesEqual(actual, v) {
				return true
			}
		}
		return false
	case "$nin":
		values, _ := toSlice(operand)
		for _, v := range values {
			if valuesEqual(actual, v) {
				return false
			}
		}
		return true
	case "$exists":
		want, _ := operand.(bool)
		return exists == want
	case "$gt", "$gte", "$lt", "$lte":
		if !exists || actual == nil {
			return false
		}
		c, ok := compareValues(actual, operand)
		if !ok {
			return false
		}
		switch op {
		case "$gt":
			return c > 0
		case "$gte":
			return c >= 0
		case "$lt":
			return c < 0
		default:
			return c <= 0
		}
	}
	return false
}

func operatorDoc(v any) (bson.M, bool) {
	m, ok := toM(v)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for key := range m {
		if !strings.HasPrefix(key, "$") {
			return nil, false
		}
	}
	return m, true
}

func toM(v any) (bson.M, bool) {
	switch t := v.(type) {
	case bson.M:
		return t, true
	case map[string]any:
		return bson.M(t), true
	case primitive.D:
		m := bson.M{}
		for _, e := range t {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

func toSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case primitive.A:
		return t, true
	case []any:
		return t, true
	}
	return nil, false
}

func getPath(doc bson.M, key string) (any, bool) {
	parts := strings.Split(key, ".")
	var current any = doc
	for _, part := range parts {
		m, ok := toM(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setPath(doc bson.M, key string, value any) {
	parts := strings.Split(key, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := toM(current[part])
		if !ok {
			next = bson.M{}
		}
		current[part] = next
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func valuesEqual(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// compareValues orders two BSON values of compatible types. nil sorts before everything.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		default:
			return 1, true
		}
	}
	if na, ok := toNumber(a); ok {
		if nb, ok := toNumber(b); ok {
			switch {
			case na < nb:
				return -1, true
			case na > nb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case primitive.DateTime:
		bv, ok := b.(primitive.DateTime)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}
