package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/models"
)

type milvusRow struct {
	entityType, sourceID, text string
	vector                     []float32
}

// fakeMilvus implements the calls the store makes; anything else panics
// through the nil embedded interface.
type fakeMilvus struct {
	client.Client

	hasCollection bool
	created       *entity.Schema
	indexed       string
	loads         int
	rows          map[string]milvusRow
	failQuery     error
}

func newFakeMilvus() *fakeMilvus {
	return &fakeMilvus{rows: map[string]milvusRow{}}
}

func (f *fakeMilvus) HasCollection(ctx context.Context, name string) (bool, error) {
	return f.hasCollection, nil
}

func (f *fakeMilvus) CreateCollection(ctx context.Context, schema *entity.Schema, shards int32, opts ...client.CreateCollectionOption) error {
	f.created = schema
	f.hasCollection = true
	return nil
}

func (f *fakeMilvus) CreateIndex(ctx context.Context, collName, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error {
	f.indexed = fieldName
	return nil
}

func (f *fakeMilvus) LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error {
	f.loads++
	return nil
}

func (f *fakeMilvus) Upsert(ctx context.Context, collName, partition string, columns ...entity.Column) (entity.Column, error) {
	var row milvusRow
	var id string
	for _, c := range columns {
		switch col := c.(type) {
		case *entity.ColumnVarChar:
			v := col.Data()[0]
			switch col.Name() {
			case milvusFieldID:
				id = v
			case milvusFieldEntityType:
				row.entityType = v
			case milvusFieldSourceID:
				row.sourceID = v
			case milvusFieldText:
				row.text = v
			}
		case *entity.ColumnFloatVector:
			row.vector = col.Data()[0]
		}
	}
	f.rows[id] = row
	return entity.NewColumnVarChar(milvusFieldID, []string{id}), nil
}

func (f *fakeMilvus) Query(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, opts ...client.SearchQueryOptionFunc) (client.ResultSet, error) {
	if f.failQuery != nil {
		return nil, f.failQuery
	}
	var keys []string
	if err := json.Unmarshal([]byte(strings.TrimPrefix(expr, milvusFieldID+" in ")), &keys); err != nil {
		return nil, err
	}

	var types, sources, texts []string
	var vectors [][]float32
	for _, k := range keys {
		row, ok := f.rows[k]
		if !ok {
			continue
		}
		types = append(types, row.entityType)
		sources = append(sources, row.sourceID)
		texts = append(texts, row.text)
		vectors = append(vectors, row.vector)
	}
	return client.ResultSet{
		entity.NewColumnVarChar(milvusFieldEntityType, types),
		entity.NewColumnVarChar(milvusFieldSourceID, sources),
		entity.NewColumnVarChar(milvusFieldText, texts),
		entity.NewColumnFloatVector(milvusFieldVector, 3, vectors),
	}, nil
}

func (f *fakeMilvus) DeleteByPks(ctx context.Context, collName, partition string, ids entity.Column) error {
	for _, id := range ids.(*entity.ColumnVarChar).Data() {
		delete(f.rows, id)
	}
	return nil
}

func newMilvusStore(f *fakeMilvus) *MilvusEmbeddingStore {
	return NewMilvusEmbeddingStore(f, MilvusOptions{Collection: "test_embeddings", VectorSize: 3}, nil)
}

func TestMilvusEmbeddingStore_CreatesCollectionOnce(t *testing.T) {
	fake := newFakeMilvus()
	store := newMilvusStore(fake)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, models.EntityJobPost, "job1", []float32{1, 0, 0}, "senior backend engineer"))
	require.NoError(t, store.Upsert(ctx, models.EntityJobPost, "job2", []float32{0, 1, 0}, "pastry chef"))

	require.NotNil(t, fake.created)
	assert.Equal(t, "test_embeddings", fake.created.CollectionName)
	assert.Equal(t, milvusFieldVector, fake.indexed)
	assert.Equal(t, 1, fake.loads)
	assert.Contains(t, fake.rows, "jobPost:job1")
}

func TestMilvusEmbeddingStore_UpsertIsIdempotentAndReplaces(t *testing.T) {
	fake := newFakeMilvus()
	fake.hasCollection = true
	store := newMilvusStore(fake)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, models.EntityApplication, "app-1", []float32{1, 2, 3}, "v1"))
	first, err := store.GetOne(ctx, models.EntityApplication, "app-1")
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, models.EntityApplication, "app-1", []float32{1, 2, 3}, "v1"))
	second, err := store.GetOne(ctx, models.EntityApplication, "app-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, store.Upsert(ctx, models.EntityApplication, "app-1", []float32{3, 2, 1}, "v2"))
	third, err := store.GetOne(ctx, models.EntityApplication, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", third.Text)
	assert.Equal(t, models.Vector{3, 2, 1}, third.Vector)
	assert.Len(t, fake.rows, 1)
}

func TestMilvusEmbeddingStore_GetManyReturnsExistingSubset(t *testing.T) {
	fake := newFakeMilvus()
	store := newMilvusStore(fake)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, models.EntityApplication, "a1", []float32{1, 0, 0}, "one"))
	require.NoError(t, store.Upsert(ctx, models.EntityApplication, "a3", []float32{0, 0, 1}, "three"))

	records, err := store.GetMany(ctx, models.EntityApplication, []string{"a3", "a2", "a1", "a3"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a3", records[0].SourceID)
	assert.Equal(t, "a1", records[1].SourceID)

	empty, err := store.GetMany(ctx, models.EntityApplication, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMilvusEmbeddingStore_NotFoundAndDelete(t *testing.T) {
	fake := newFakeMilvus()
	store := newMilvusStore(fake)
	ctx := context.Background()

	_, err := store.GetOne(ctx, models.EntityApplication, "app-missing")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))

	require.NoError(t, store.Upsert(ctx, models.EntityCandidateProfile, "u1", []float32{1, 1, 1}, "profile"))
	require.NoError(t, store.Delete(ctx, models.EntityCandidateProfile, "u1"))
	require.NoError(t, store.Delete(ctx, models.EntityCandidateProfile, "u1"))

	_, err = store.GetOne(ctx, models.EntityCandidateProfile, "u1")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestMilvusEmbeddingStore_Failures(t *testing.T) {
	fake := newFakeMilvus()
	store := newMilvusStore(fake)
	ctx := context.Background()

	err := store.Upsert(ctx, models.EntityJobPost, "job1", []float32{1, 0}, "short vector")
	assert.True(t, stderrors.Is(err, errors.ErrDimensionMismatch))

	fake.failQuery = stderrors.New("rpc error: unavailable")
	_, err = store.GetOne(ctx, models.EntityJobPost, "job1")
	assert.True(t, stderrors.Is(err, errors.ErrStoreUnavailable))
}
