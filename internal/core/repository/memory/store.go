// Package memory implements domain.Store without a database server.
//
// Documents are kept BSON-encoded so reads decode exactly like the MongoDB
// store does. Filters support field equality only, updates support $set only,
// and aggregation supports $match, $sort, $skip, $limit and inclusion $project.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/duynhne/user-crud-service/internal/core/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrUnsupported is returned for query or update operators the memory store
// does not evaluate.
var ErrUnsupported = errors.New("memory store: unsupported operator")

// ErrImmutableID is returned when an update tries to change _id.
var ErrImmutableID = errors.New("memory store: _id is immutable")

const duplicateKeyCode = 11000

var _ domain.Store[domain.User] = (*Store[domain.User])(nil)

// Store keeps one collection of documents in insertion order.
type Store[T any] struct {
	name string

	mu   sync.RWMutex
	docs []bson.Raw
}

// NewStore creates an empty collection. name only appears in error messages.
func NewStore[T any](name string) *Store[T] {
	return &Store[T]{name: name}
}

// Insert stores entity. A missing _id gets a new ObjectID; a duplicate _id
// fails with the same write exception MongoDB returns.
func (s *Store[T]) Insert(ctx context.Context, entity T) (*domain.InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := bson.Marshal(entity)
	if err != nil {
		return nil, err
	}
	idVal, err := bson.Raw(raw).LookupErr("_id")
	if err != nil {
		var d bson.D
		if err := bson.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		d = append(bson.D{{Key: "_id", Value: primitive.NewObjectID()}}, d...)
		if raw, err = bson.Marshal(d); err != nil {
			return nil, err
		}
		idVal = bson.Raw(raw).Lookup("_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.docs {
		if rawEqual(doc.Lookup("_id"), idVal) {
			return nil, s.duplicateKeyError(idVal)
		}
	}
	s.docs = append(s.docs, raw)

	var id any
	if err := idVal.Unmarshal(&id); err != nil {
		return nil, err
	}
	return &domain.InsertResult{InsertedID: id}, nil
}

// Update applies a {$set: {...}} document to the first match of filter.
func (s *Store[T]) Update(ctx context.Context, filter, update bson.M) (*domain.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set, err := setFields(update)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, doc := range s.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		updated, modified, err := applySet(doc, set)
		if err != nil {
			return nil, err
		}
		res := &domain.UpdateResult{MatchedCount: 1}
		if modified {
			s.docs[i] = updated
			res.ModifiedCount = 1
		}
		return res, nil
	}
	return &domain.UpdateResult{}, nil
}

// Delete removes the first match of filter.
func (s *Store[T]) Delete(ctx context.Context, filter bson.M) (*domain.DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, doc := range s.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			s.docs = slices.Delete(s.docs, i, i+1)
			return &domain.DeleteResult{DeletedCount: 1}, nil
		}
	}
	return &domain.DeleteResult{}, nil
}

// Find returns the matches of filter, honoring Sort, Skip and Limit.
func (s *Store[T]) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs, err := s.match(filter)
	if err != nil {
		return nil, err
	}

	opt := options.MergeFindOptions(opts...)
	if opt.Sort != nil {
		keys, err := sortKeys(opt.Sort)
		if err != nil {
			return nil, err
		}
		sortDocs(docs, keys)
	}
	if opt.Skip != nil {
		docs = skip(docs, *opt.Skip)
	}
	if opt.Limit != nil {
		docs = limit(docs, *opt.Limit)
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := bson.Unmarshal(doc, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Aggregate evaluates pipeline stage by stage over the whole collection.
func (s *Store[T]) Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs, err := s.match(bson.M{})
	if err != nil {
		return nil, err
	}

	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("%w: stage must have exactly one operator, got %d", ErrUnsupported, len(stage))
		}
		op, arg := stage[0].Key, stage[0].Value

		switch op {
		case "$match":
			filter, err := toM(arg)
			if err != nil {
				return nil, err
			}
			kept := docs[:0:0]
			for _, doc := range docs {
				ok, err := matches(doc, filter)
				if err != nil {
					return nil, err
				}
				if ok {
					kept = append(kept, doc)
				}
			}
			docs = kept
		case "$sort":
			keys, err := sortKeys(arg)
			if err != nil {
				return nil, err
			}
			sortDocs(docs, keys)
		case "$skip":
			n, err := toInt64(arg)
			if err != nil {
				return nil, err
			}
			docs = skip(docs, n)
		case "$limit":
			n, err := toInt64(arg)
			if err != nil {
				return nil, err
			}
			docs = limit(docs, n)
		case "$project":
			if docs, err = project(docs, arg); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: aggregation stage %s", ErrUnsupported, op)
		}
	}

	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		var m bson.M
		if err := bson.Unmarshal(doc, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// match returns a copy of the documents matching filter.
func (s *Store[T]) match(filter bson.M) ([]bson.Raw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]bson.Raw, 0, len(s.docs))
	for _, doc := range s.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *Store[T]) duplicateKeyError(id bson.RawValue) error {
	return mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{
			Index:   0,
			Code:    duplicateKeyCode,
			Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: _id_ dup key: { _id: %s }", s.name, id),
		}},
	}
}

// matches reports whether every filter key equals the document's value.
// Dotted keys address embedded documents.
func matches(doc bson.Raw, filter bson.M) (bool, error) {
	for key, want := range filter {
		if strings.HasPrefix(key, "$") {
			return false, fmt.Errorf("%w: query operator %s", ErrUnsupported, key)
		}
		if isOperatorDoc(want) {
			return false, fmt.Errorf("%w: operator expression on field %s", ErrUnsupported, key)
		}

		got, err := doc.LookupErr(strings.Split(key, ".")...)
		if err != nil {
			if want == nil {
				continue
			}
			return false, nil
		}

		t, data, err := bson.MarshalValue(want)
		if err != nil {
			return false, err
		}
		if !rawEqual(got, bson.RawValue{Type: t, Value: data}) {
			return false, nil
		}
	}
	return true, nil
}

func isOperatorDoc(v any) bool {
	switch m := v.(type) {
	case bson.M:
		for k := range m {
			if strings.HasPrefix(k, "$") {
				return true
			}
		}
	case bson.D:
		for _, e := range m {
			if strings.HasPrefix(e.Key, "$") {
				return true
			}
		}
	}
	return false
}

func setFields(update bson.M) (bson.M, error) {
	arg, ok := update["$set"]
	if len(update) != 1 || !ok {
		return nil, fmt.Errorf("%w: update must be a single $set document", ErrUnsupported)
	}
	set, err := toM(arg)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: empty $set", ErrUnsupported)
	}
	return set, nil
}

// applySet rewrites doc with set applied and reports whether any value changed.
func applySet(doc bson.Raw, set bson.M) (bson.Raw, bool, error) {
	var d bson.D
	if err := bson.Unmarshal(doc, &d); err != nil {
		return nil, false, err
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	modified := false
	for _, key := range keys {
		if strings.Contains(key, ".") {
			return nil, false, fmt.Errorf("%w: dotted $set path %s", ErrUnsupported, key)
		}
		value := set[key]
		idx := slices.IndexFunc(d, func(e bson.E) bool { return e.Key == key })
		if idx >= 0 {
			same, err := valueEqual(d[idx].Value, value)
			if err != nil {
				return nil, false, err
			}
			if same {
				continue
			}
			if key == "_id" {
				return nil, false, ErrImmutableID
			}
			d[idx].Value = value
		} else {
			d = append(d, bson.E{Key: key, Value: value})
		}
		modified = true
	}
	if !modified {
		return doc, false, nil
	}

	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

type sortKey struct {
	field string
	desc  bool
}

func sortKeys(spec any) ([]sortKey, error) {
	var d bson.D
	switch v := spec.(type) {
	case bson.D:
		d = v
	case bson.M:
		if len(v) > 1 {
			return nil, fmt.Errorf("%w: multi-key sort needs an ordered bson.D", ErrUnsupported)
		}
		for k, dir := range v {
			d = bson.D{{Key: k, Value: dir}}
		}
	default:
		return nil, fmt.Errorf("%w: sort specification %T", ErrUnsupported, spec)
	}

	keys := make([]sortKey, 0, len(d))
	for _, e := range d {
		dir, err := toInt64(e.Value)
		if err != nil {
			return nil, err
		}
		if dir != 1 && dir != -1 {
			return nil, fmt.Errorf("%w: sort direction %d for %s", ErrUnsupported, dir, e.Key)
		}
		keys = append(keys, sortKey{field: e.Key, desc: dir == -1})
	}
	return keys, nil
}

func sortDocs(docs []bson.Raw, keys []sortKey) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			a, _ := docs[i].LookupErr(strings.Split(k.field, ".")...)
			b, _ := docs[j].LookupErr(strings.Split(k.field, ".")...)
			c := compareRaw(a, b)
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareRaw orders missing values first, then numbers, strings and booleans
// by value, and anything else by type and encoded bytes.
func compareRaw(a, b bson.RawValue) int {
	if a.Type == 0 || b.Type == 0 {
		switch {
		case a.Type == b.Type:
			return 0
		case a.Type == 0:
			return -1
		default:
			return 1
		}
	}

	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if a.Type == bsontype.String && b.Type == bsontype.String {
		return strings.Compare(a.StringValue(), b.StringValue())
	}
	if a.Type == bsontype.Boolean && b.Type == bsontype.Boolean {
		switch {
		case a.Boolean() == b.Boolean():
			return 0
		case !a.Boolean():
			return -1
		}
		return 1
	}
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.Value, b.Value)
}

func number(v bson.RawValue) (float64, bool) {
	switch v.Type {
	case bsontype.Int32:
		return float64(v.Int32()), true
	case bsontype.Int64:
		return float64(v.Int64()), true
	case bsontype.Double:
		return v.Double(), true
	}
	return 0, false
}

func rawEqual(a, b bson.RawValue) bool {
	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			return af == bf
		}
	}
	return a.Type == b.Type && bytes.Equal(a.Value, b.Value)
}

func valueEqual(a, b any) (bool, error) {
	at, ad, err := bson.MarshalValue(a)
	if err != nil {
		return false, err
	}
	bt, bd, err := bson.MarshalValue(b)
	if err != nil {
		return false, err
	}
	return rawEqual(bson.RawValue{Type: at, Value: ad}, bson.RawValue{Type: bt, Value: bd}), nil
}

func project(docs []bson.Raw, spec any) ([]bson.Raw, error) {
	fields, err := toM(spec)
	if err != nil {
		return nil, err
	}

	keepID := true
	include := make(map[string]bool, len(fields))
	for k, v := range fields {
		on, err := truthy(v)
		if err != nil {
			return nil, err
		}
		if k == "_id" {
			keepID = on
			continue
		}
		if !on {
			return nil, fmt.Errorf("%w: exclusion $project on %s", ErrUnsupported, k)
		}
		include[k] = true
	}

	out := make([]bson.Raw, 0, len(docs))
	for _, doc := range docs {
		elems, err := doc.Elements()
		if err != nil {
			return nil, err
		}
		var d bson.D
		for _, e := range elems {
			key := e.Key()
			if (key == "_id" && keepID) || include[key] {
				d = append(d, bson.E{Key: key, Value: e.Value()})
			}
		}
		raw, err := bson.Marshal(d)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func truthy(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

func skip(docs []bson.Raw, n int64) []bson.Raw {
	if n <= 0 {
		return docs
	}
	if n >= int64(len(docs)) {
		return docs[:0]
	}
	return docs[n:]
}

// limit treats 0 as unlimited and a negative n like its absolute value.
func limit(docs []bson.Raw, n int64) []bson.Raw {
	if n < 0 {
		n = -n
	}
	if n == 0 || n >= int64(len(docs)) {
		return docs
	}
	return docs[:n]
}

func toM(v any) (bson.M, error) {
	switch m := v.(type) {
	case bson.M:
		return m, nil
	case map[string]any:
		return bson.M(m), nil
	case bson.D:
		out := make(bson.M, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected a document, got %T", ErrUnsupported, v)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("%w: expected a number, got %T", ErrUnsupported, v)
}
